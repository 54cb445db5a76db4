package manager

import (
	"time"

	"github.com/cta-wave/wave/internal/common/wavecontext"
	"github.com/cta-wave/wave/internal/wave/events"
	"github.com/cta-wave/wave/internal/wave/metrics"
	"github.com/cta-wave/wave/internal/wave/session"
)

// StartSession starts a pending session or continues a paused one.
func (m *SessionManager) StartSession(ctx *wavecontext.Context, token string) error {
	return m.transition(ctx, token, (*session.Session).Start)
}

func (m *SessionManager) PauseSession(ctx *wavecontext.Context, token string) error {
	return m.transition(ctx, token, func(sess *session.Session, _ time.Time) bool {
		return sess.Pause()
	})
}

// StopSession aborts a session that has not finished.
func (m *SessionManager) StopSession(ctx *wavecontext.Context, token string) error {
	return m.transition(ctx, token, (*session.Session).Stop)
}

// ResumeSession hands a pending session over to the session resumeToken: its clients are
// told to continue there and it is deleted.
func (m *SessionManager) ResumeSession(ctx *wavecontext.Context, token, resumeToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.getLocked(ctx, token)
	if err != nil || sess == nil || sess.Status != session.StatusPending {
		return err
	}
	m.hub.Dispatch(token, events.Message{Type: events.MessageTypeResume, Data: resumeToken})
	return m.deleteLocked(ctx, token)
}

func (m *SessionManager) transition(ctx *wavecontext.Context, token string, change func(*session.Session, time.Time) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.getLocked(ctx, token)
	if err != nil || sess == nil {
		return err
	}
	if !change(sess, m.clock.Now()) {
		return nil
	}
	return m.transitionedLocked(ctx, sess)
}

// transitionedLocked stores a session whose status has just changed and tells its clients.
// Nothing is cancelled or announced if the write fails.
func (m *SessionManager) transitionedLocked(ctx *wavecontext.Context, sess *session.Session) error {
	if err := m.updateLocked(ctx, sess); err != nil {
		return err
	}
	m.announceTransitionLocked(ctx, sess)
	return nil
}

// announceTransitionLocked acts on a status change that has been stored.
func (m *SessionManager) announceTransitionLocked(ctx *wavecontext.Context, sess *session.Session) {
	if sess.IsTerminal() {
		m.scheduler.CancelTimeouts(sess.Token)
	}
	metrics.RecordSessionTransition(string(sess.Status))
	m.hub.Dispatch(sess.Token, events.Message{Type: events.MessageTypeStatus, Data: sess.Status})
	ctx.Log.WithField("token", sess.Token).Infof("session is now %s", sess.Status)
}
