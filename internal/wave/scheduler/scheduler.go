package scheduler

import (
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/cta-wave/wave/internal/wave/events"
	"github.com/cta-wave/wave/internal/wave/metrics"
	"github.com/cta-wave/wave/internal/wave/session"
)

const (
	// ManualTestTimeout applies to every manual test regardless of the session's timeouts.
	ManualTestTimeout = 5 * time.Minute
	// TimeoutGrace is added to the configured timeout of automatic tests, so the test's own
	// harness timeout fires first.
	TimeoutGrace = 10 * time.Second
)

// Notifier delivers messages to the listeners of a session.
type Notifier interface {
	Dispatch(token string, message events.Message) int
}

// TimeoutHandler is called, on its own goroutine, when a running test's timeout expires.
type TimeoutHandler func(token, test string)

type timeoutRecord struct {
	timer clock.Timer
}

// TestScheduler hands out pending tests and supervises how long they run.
// It mutates the sessions it is given but never persists them; callers must
// serialise calls for the same session.
type TestScheduler struct {
	clock     clock.WithDelayedExecution
	notifier  Notifier
	onTimeout TimeoutHandler

	mu sync.Mutex
	// token -> test -> armed timer
	timeouts map[string]map[string]*timeoutRecord
}

func New(clock clock.WithDelayedExecution, notifier Notifier, onTimeout TimeoutHandler) *TestScheduler {
	return &TestScheduler{
		clock:     clock,
		notifier:  notifier,
		onTimeout: onTimeout,
		timeouts:  map[string]map[string]*timeoutRecord{},
	}
}

// Each pass admits a superset of the tests admitted by the one before.
var passes = []func(test string) bool{
	func(test string) bool { return !isHttps(test) && isManual(test) },
	func(test string) bool { return isManual(test) },
	func(test string) bool { return true },
}

func isHttps(test string) bool {
	return strings.Contains(test, "https")
}

func isManual(test string) bool {
	return strings.Contains(test, "manual")
}

// NextTest moves the next test to hand out from pending to running and arms its timeout.
// Non-https manual tests are preferred, then any manual test, then anything. Within a pass,
// apis are scanned in case-insensitive order and tests in the order they were added.
func (s *TestScheduler) NextTest(sess *session.Session) (string, bool) {
	apis := sess.PendingTests.APIs()
	for _, admit := range passes {
		for _, api := range apis {
			for _, test := range sess.PendingTests[api] {
				if !admit(test) {
					continue
				}
				sess.DispatchTest(api, test)
				s.armTimeout(sess, test)
				metrics.RecordTestDispatched(api)
				return test, true
			}
		}
	}
	return "", false
}

// CompleteTest moves test to completed, cancels its timeout and tells the session's
// listeners. It returns false if the test was already complete; doing so is harmless.
// Callers that persist the session complete the test on it directly and call Completed
// once the write has succeeded.
func (s *TestScheduler) CompleteTest(sess *session.Session, test string) bool {
	api := sess.APIOfTest(test)
	if !sess.CompleteTest(api, test) {
		s.CancelTimeout(sess.Token, test)
		return false
	}
	s.Completed(sess.Token, api, test)
	return true
}

// Completed cancels the timeout of a test whose completion has been recorded and tells
// the session's listeners.
func (s *TestScheduler) Completed(token, api, test string) {
	s.CancelTimeout(token, test)
	metrics.RecordTestCompleted(api)
	s.notifier.Dispatch(token, events.Message{Type: events.MessageTypeComplete, Data: test})
}

// TimeoutFor returns how long test may run before it times out. ok is false if the
// session has no timeouts and so no timer is armed.
func TimeoutFor(sess *session.Session, test string) (time.Duration, bool) {
	configured, ok := sess.TimeoutFor(test)
	if !ok {
		return 0, false
	}
	if isManual(test) {
		return ManualTestTimeout, true
	}
	return configured + TimeoutGrace, true
}

// HasTimeout returns true if a timer is armed for test.
func (s *TestScheduler) HasTimeout(token, test string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timeouts[token][test]
	return ok
}

// CancelTimeouts stops every timer of a session, e.g. when it is stopped or deleted.
func (s *TestScheduler) CancelTimeouts(token string) {
	s.mu.Lock()
	records := s.timeouts[token]
	delete(s.timeouts, token)
	s.mu.Unlock()

	for _, record := range records {
		record.timer.Stop()
	}
}

func (s *TestScheduler) armTimeout(sess *session.Session, test string) {
	timeout, ok := TimeoutFor(sess, test)
	if !ok {
		return
	}
	token := sess.Token
	record := &timeoutRecord{}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.timeouts[token][test]; ok {
		existing.timer.Stop()
	}
	record.timer = s.clock.AfterFunc(timeout, func() {
		go s.expire(token, test, record)
	})
	if s.timeouts[token] == nil {
		s.timeouts[token] = map[string]*timeoutRecord{}
	}
	s.timeouts[token][test] = record
}

func (s *TestScheduler) expire(token, test string, record *timeoutRecord) {
	s.mu.Lock()
	current, ok := s.timeouts[token][test]
	if !ok || current != record {
		// Completed or re-armed while the timer was firing.
		s.mu.Unlock()
		return
	}
	s.removeLocked(token, test)
	s.mu.Unlock()

	log.WithFields(log.Fields{"token": token, "test": test}).Warn("test timed out")
	metrics.RecordTestTimedOut(session.APIOf(test))
	if s.onTimeout != nil {
		s.onTimeout(token, test)
	}
}

// CancelTimeout stops the timer of a single test, leaving the session's other timers armed.
func (s *TestScheduler) CancelTimeout(token, test string) {
	s.mu.Lock()
	record, ok := s.timeouts[token][test]
	if ok {
		s.removeLocked(token, test)
	}
	s.mu.Unlock()

	if ok {
		record.timer.Stop()
	}
}

func (s *TestScheduler) removeLocked(token, test string) {
	delete(s.timeouts[token], test)
	if len(s.timeouts[token]) == 0 {
		delete(s.timeouts, token)
	}
}
