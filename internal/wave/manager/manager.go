// Package manager is the entry point to sessions: it creates them, moves them through their
// lifecycle, hands out their tests and tells clients what happened.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/cta-wave/wave/internal/common/wavecontext"
	"github.com/cta-wave/wave/internal/common/waveerrors"
	"github.com/cta-wave/wave/internal/wave/configuration"
	"github.com/cta-wave/wave/internal/wave/database"
	"github.com/cta-wave/wave/internal/wave/events"
	"github.com/cta-wave/wave/internal/wave/scheduler"
	"github.com/cta-wave/wave/internal/wave/session"
	"github.com/cta-wave/wave/internal/wave/testloader"
)

// MinTokenFragmentLength is the shortest fragment FindToken looks up.
const MinTokenFragmentLength = 8

// TestLoader selects the tests of a session.
type TestLoader interface {
	GetTests(ctx context.Context, filter testloader.Filter) (session.TestList, error)
}

// SessionOptions configures a new session. Zero fields take the configured defaults.
type SessionOptions struct {
	Tests           session.TestFilter
	Types           []session.TestType
	Timeouts        map[string]time.Duration
	ReferenceTokens []string
	WebhookUrls     []string
	Labels          []string
	UserAgent       string
	// A pending session is deleted once this date has passed.
	ExpirationDate *time.Time
}

// ConfigurationUpdate changes the configuration of a pending session. Nil fields are left as they are.
type ConfigurationUpdate struct {
	Tests           *session.TestFilter
	Types           []session.TestType
	Timeouts        map[string]time.Duration
	ReferenceTokens []string
	WebhookUrls     []string
}

// SessionManager owns every change to a session. Sessions returned to callers are
// copies; changing them has no effect.
type SessionManager struct {
	store     *database.SessionStore
	loader    TestLoader
	hub       *events.Hub
	scheduler *scheduler.TestScheduler
	clock     clock.WithDelayedExecution
	defaults  configuration.SessionsConfig

	// Held for every access to cache and for every change to a session, from
	// reading it to storing it.
	mu    sync.Mutex
	cache *sessionCache
}

func New(
	store *database.SessionStore,
	loader TestLoader,
	hub *events.Hub,
	clock clock.WithDelayedExecution,
	defaults configuration.SessionsConfig,
) (*SessionManager, error) {
	cache, err := newSessionCache(defaults.ArchiveCacheSize)
	if err != nil {
		return nil, err
	}
	m := &SessionManager{
		store:    store,
		loader:   loader,
		hub:      hub,
		clock:    clock,
		defaults: defaults,
		cache:    cache,
	}
	m.scheduler = scheduler.New(clock, hub, m.onTestTimeout)
	return m, nil
}

// CreateSession selects the tests of a new pending session and stores it.
func (m *SessionManager) CreateSession(ctx *wavecontext.Context, opts SessionOptions) (*session.Session, error) {
	token, err := session.NewToken()
	if err != nil {
		return nil, err
	}
	sess := session.New(token)
	sess.Tests = opts.Tests
	if sess.Tests.Include == nil {
		sess.Tests.Include = append([]string{}, m.defaults.DefaultInclude...)
	}
	if sess.Tests.Exclude == nil {
		sess.Tests.Exclude = []string{}
	}
	sess.Types = opts.Types
	if len(sess.Types) == 0 {
		sess.Types = append([]session.TestType{}, m.defaults.DefaultTypes...)
	}
	sess.Timeouts = withDefaultTimeouts(opts.Timeouts, m.defaults.DefaultTimeouts.AsMap())
	sess.ReferenceTokens = nonNil(opts.ReferenceTokens)
	sess.WebhookUrls = nonNil(opts.WebhookUrls)
	sess.Labels = nonNil(opts.Labels)
	sess.UserAgent = opts.UserAgent
	sess.ExpirationDate = opts.ExpirationDate

	tests, err := m.selectTests(ctx, sess)
	if err != nil {
		return nil, err
	}
	sess.SetPendingTests(tests)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	m.cache.put(sess)
	ctx.Log.WithField("token", token).Infof("created session with %d tests", tests.Len())
	return sess.Clone(), nil
}

// AddSession stores a session built elsewhere, e.g. imported from another server.
func (m *SessionManager) AddSession(ctx *wavecontext.Context, sess *session.Session) error {
	if sess == nil {
		return &waveerrors.ErrInvalidArgument{Name: "session", Value: "", Message: "no session given"}
	}
	if sess.Token == "" {
		return &waveerrors.ErrInvalidArgument{Name: "token", Value: sess.Token, Message: "a session needs a token"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, err := m.getLocked(ctx, sess.Token)
	if err != nil {
		return err
	}
	if existing != nil {
		return &waveerrors.ErrAlreadyExists{Type: "session", Value: sess.Token}
	}
	sess = sess.Clone()
	if err := m.store.Create(ctx, sess); err != nil {
		return err
	}
	m.cache.put(sess)
	return nil
}

// ReadSession returns the session with the given token, or nil if there is none.
func (m *SessionManager) ReadSession(ctx *wavecontext.Context, token string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.getLocked(ctx, token)
	if err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

func (m *SessionManager) ReadSessions(ctx *wavecontext.Context) ([]*session.Session, error) {
	return m.store.ReadAll(ctx)
}

func (m *SessionManager) ReadPublicSessions(ctx *wavecontext.Context) ([]*session.Session, error) {
	return m.store.ReadPublic(ctx)
}

// UpdateSessionConfiguration changes a pending session. The tests are selected again if the
// filter, types or reference sessions change. Sessions that have started are left unchanged.
func (m *SessionManager) UpdateSessionConfiguration(ctx *wavecontext.Context, token string, update ConfigurationUpdate) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.getLocked(ctx, token)
	if err != nil || sess == nil {
		return nil, err
	}
	if sess.Status != session.StatusPending {
		ctx.Log.WithFields(log.Fields{"token": token, "status": sess.Status}).
			Debug("ignoring configuration update of session that has started")
		return sess.Clone(), nil
	}

	updated := sess.Clone()
	reselect := false
	if update.Tests != nil {
		if update.Tests.Include != nil {
			updated.Tests.Include = append([]string{}, update.Tests.Include...)
		}
		if update.Tests.Exclude != nil {
			updated.Tests.Exclude = append([]string{}, update.Tests.Exclude...)
		}
		reselect = true
	}
	if update.Types != nil {
		updated.Types = append([]session.TestType{}, update.Types...)
		reselect = true
	}
	if update.ReferenceTokens != nil {
		updated.ReferenceTokens = append([]string{}, update.ReferenceTokens...)
		reselect = true
	}
	if update.Timeouts != nil {
		updated.Timeouts = withDefaultTimeouts(update.Timeouts, sess.Timeouts)
	}
	if update.WebhookUrls != nil {
		updated.WebhookUrls = append([]string{}, update.WebhookUrls...)
	}
	if reselect {
		tests, err := m.selectTests(ctx, updated)
		if err != nil {
			return nil, err
		}
		updated.SetPendingTests(tests)
	}

	if err := m.store.Update(ctx, updated); err != nil {
		return nil, err
	}
	m.cache.put(updated)
	return updated.Clone(), nil
}

// UpdateLabels replaces the labels of a session. Public sessions keep theirs.
func (m *SessionManager) UpdateLabels(ctx *wavecontext.Context, token string, labels []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.getLocked(ctx, token)
	if err != nil || sess == nil || sess.IsPublic {
		return err
	}
	sess.Labels = nonNil(labels)
	return m.updateLocked(ctx, sess)
}

// UpdateMalfunctioningTests replaces the tests flagged as malfunctioning.
func (m *SessionManager) UpdateMalfunctioningTests(ctx *wavecontext.Context, token string, tests session.TestList) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.getLocked(ctx, token)
	if err != nil || sess == nil {
		return err
	}
	sess.MalfunctioningTests = tests.Clone()
	if err := m.store.UpdateTestLists(ctx, sess); err != nil {
		m.cache.remove(token)
		return err
	}
	return nil
}

// DeleteSession removes a session and stops its timers. Public sessions are never deleted.
func (m *SessionManager) DeleteSession(ctx *wavecontext.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(ctx, token)
}

// FindToken returns the one token starting with fragment, or "" if there is not exactly
// one or fragment is too short.
func (m *SessionManager) FindToken(ctx *wavecontext.Context, fragment string) (string, error) {
	if len(fragment) < MinTokenFragmentLength {
		return "", nil
	}
	tokens, err := m.store.FindTokens(ctx, fragment)
	if err != nil {
		return "", err
	}
	if len(tokens) != 1 {
		return "", nil
	}
	return tokens[0], nil
}

// CountByStatus returns the number of cached sessions in each status.
func (m *SessionManager) CountByStatus() map[session.Status]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.countByStatus()
}

func (m *SessionManager) selectTests(ctx *wavecontext.Context, sess *session.Session) (session.TestList, error) {
	tests, err := m.loader.GetTests(ctx, testloader.Filter{
		Include:         sess.Tests.Include,
		Exclude:         sess.Tests.Exclude,
		ReferenceTokens: sess.ReferenceTokens,
		Types:           sess.Types,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "error selecting tests of session %s", sess.Token)
	}
	return tests, nil
}

// getLocked returns the cached session, loading it from the store on a miss.
// Callers must hold m.mu and may change the returned session in place, as long as
// they then store it.
func (m *SessionManager) getLocked(ctx *wavecontext.Context, token string) (*session.Session, error) {
	if sess, ok := m.cache.get(token); ok {
		return sess, nil
	}
	sess, err := m.store.Read(ctx, token)
	if err != nil || sess == nil {
		return nil, err
	}
	m.cache.put(sess)
	return sess, nil
}

// updateLocked stores the whole session. If that fails the session is dropped from the
// cache, so the next read sees what was last stored.
func (m *SessionManager) updateLocked(ctx *wavecontext.Context, sess *session.Session) error {
	if err := m.store.Update(ctx, sess); err != nil {
		m.cache.remove(sess.Token)
		return err
	}
	m.cache.put(sess)
	return nil
}

func (m *SessionManager) deleteLocked(ctx *wavecontext.Context, token string) error {
	sess, err := m.getLocked(ctx, token)
	if err != nil || sess == nil {
		return err
	}
	if sess.IsPublic {
		ctx.Log.WithField("token", token).Debug("not deleting public session")
		return nil
	}
	m.scheduler.CancelTimeouts(token)
	if err := m.store.Delete(ctx, token); err != nil {
		m.cache.remove(token)
		return err
	}
	m.cache.remove(token)
	ctx.Log.WithField("token", token).Info("deleted session")
	return nil
}

// withDefaultTimeouts returns timeouts with the automatic and manual entries of defaults
// filled in where missing.
func withDefaultTimeouts(timeouts, defaults map[string]time.Duration) map[string]time.Duration {
	merged := make(map[string]time.Duration, len(timeouts)+2)
	for key, timeout := range timeouts {
		merged[key] = timeout
	}
	for _, key := range []string{session.AutomaticTimeoutKey, session.ManualTimeoutKey} {
		if _, ok := merged[key]; !ok {
			if timeout, ok := defaults[key]; ok {
				merged[key] = timeout
			}
		}
	}
	return merged
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string{}, s...)
}
