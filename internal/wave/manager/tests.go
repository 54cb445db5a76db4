package manager

import (
	log "github.com/sirupsen/logrus"

	"github.com/cta-wave/wave/internal/common/logging"
	"github.com/cta-wave/wave/internal/common/wavecontext"
	"github.com/cta-wave/wave/internal/wave/session"
)

// NextTest hands out the next test of a running session. It returns "" if the session is
// not running or no test is left; in the latter case a session with no test still running
// is completed.
func (m *SessionManager) NextTest(ctx *wavecontext.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.getLocked(ctx, token)
	if err != nil || sess == nil || sess.Status != session.StatusRunning {
		return "", err
	}
	test, ok := m.scheduler.NextTest(sess)
	if !ok {
		if sess.AllTestsDone() && sess.Complete(m.clock.Now()) {
			return "", m.transitionedLocked(ctx, sess)
		}
		return "", nil
	}
	if err := m.store.UpdateTestLists(ctx, sess); err != nil {
		m.scheduler.CancelTimeout(token, test)
		m.cache.remove(token)
		return "", err
	}
	ctx.Log.WithFields(log.Fields{"token": token, "test": test}).Debug("dispatched test")
	return test, nil
}

// CompleteTest records that test has a result, and completes the session once every test
// has one. It returns false if the session does not exist or has finished, or if test is
// not pending or running in it.
func (m *SessionManager) CompleteTest(ctx *wavecontext.Context, token, test string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.getLocked(ctx, token)
	if err != nil || sess == nil || sess.IsTerminal() {
		return false, err
	}
	if !sess.PendingTests.Contains(test) && !sess.RunningTests.Contains(test) {
		return false, nil
	}
	api := sess.APIOfTest(test)
	if !sess.CompleteTest(api, test) {
		return false, nil
	}
	finished := sess.AllTestsDone() && sess.Complete(m.clock.Now())
	// The timer stays armed and listeners hear nothing until the completion is stored.
	if err := m.updateLocked(ctx, sess); err != nil {
		return false, err
	}
	m.scheduler.Completed(token, api, test)
	if finished {
		m.announceTransitionLocked(ctx, sess)
	}
	return true, nil
}

// onTestTimeout counts a test that ran out of time as complete, so the session can finish
// without it.
func (m *SessionManager) onTestTimeout(token, test string) {
	ctx := wavecontext.WithLogFields(wavecontext.Background(), log.Fields{"token": token, "test": test})
	ctx.Log.Warn("test timed out without a result; counting it as complete")
	if _, err := m.CompleteTest(ctx, token, test); err != nil {
		logging.WithStacktrace(ctx.Log, err).Error("error completing timed out test")
	}
}

// TestInSession returns true if test is still to be run, or running, in the session.
func (m *SessionManager) TestInSession(ctx *wavecontext.Context, token, test string) (bool, error) {
	return m.inspect(ctx, token, func(sess *session.Session) bool {
		return sess.PendingTests.Contains(test) || sess.RunningTests.Contains(test)
	})
}

func (m *SessionManager) IsTestRunning(ctx *wavecontext.Context, token, test string) (bool, error) {
	return m.inspect(ctx, token, func(sess *session.Session) bool {
		return sess.IsTestRunning(test)
	})
}

// IsTestComplete returns true if test is neither pending nor running in the session.
func (m *SessionManager) IsTestComplete(ctx *wavecontext.Context, token, test string) (bool, error) {
	return m.inspect(ctx, token, func(sess *session.Session) bool {
		return !sess.PendingTests.Contains(test) && !sess.RunningTests.Contains(test)
	})
}

func (m *SessionManager) IsAPIComplete(ctx *wavecontext.Context, token, api string) (bool, error) {
	return m.inspect(ctx, token, func(sess *session.Session) bool {
		return sess.IsAPIComplete(api)
	})
}

func (m *SessionManager) inspect(ctx *wavecontext.Context, token string, check func(*session.Session) bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.getLocked(ctx, token)
	if err != nil || sess == nil {
		return false, err
	}
	return check(sess), nil
}
