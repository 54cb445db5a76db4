package manager

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/cta-wave/wave/internal/common/wavecontext"
	"github.com/cta-wave/wave/internal/wave/session"
)

// DeleteExpiredSessions deletes the pending sessions whose expiration date has passed.
// It has the signature of a background task.
func (m *SessionManager) DeleteExpiredSessions(ctx context.Context) error {
	waveCtx := wavecontext.FromContext(ctx)
	sessions, err := m.store.ReadExpiring(waveCtx)
	if err != nil {
		return err
	}
	now := m.clock.Now()
	var result *multierror.Error
	deleted := 0
	for _, sess := range sessions {
		if sess.Status != session.StatusPending || sess.ExpirationDate.After(now) {
			continue
		}
		if err := m.deleteExpired(waveCtx, sess.Token); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		waveCtx.Log.Infof("deleted %d expired sessions", deleted)
	}
	return result.ErrorOrNil()
}

// deleteExpired checks the expiration again under the lock, as the session may have
// been started since it was read.
func (m *SessionManager) deleteExpired(ctx *wavecontext.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.getLocked(ctx, token)
	if err != nil || sess == nil {
		return err
	}
	if sess.Status != session.StatusPending || sess.ExpirationDate == nil || sess.ExpirationDate.After(m.clock.Now()) {
		return nil
	}
	return m.deleteLocked(ctx, token)
}
