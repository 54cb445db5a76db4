package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Session is one run of a set of tests by a device under test.
// A test id is in at most one of PendingTests, RunningTests and CompletedTests.
// MalfunctioningTests is independent of the other three.
type Session struct {
	Token  string
	Status Status

	Tests           TestFilter
	Types           []TestType
	Timeouts        map[string]time.Duration
	ReferenceTokens []string
	WebhookUrls     []string
	Labels          []string
	UserAgent       string
	IsPublic        bool

	PendingTests        TestList
	RunningTests        TestList
	CompletedTests      TestList
	MalfunctioningTests TestList

	// Number of tests per api when the test selection was made.
	TestFilesCount map[string]int
	// Number of tests per api with a result.
	TestFilesCompletedCount map[string]int

	DateStarted    *time.Time
	DateFinished   *time.Time
	ExpirationDate *time.Time
}

// NewToken returns a new time-based UUID.
func NewToken() (string, error) {
	token, err := uuid.NewUUID()
	if err != nil {
		return "", errors.WithStack(err)
	}
	return token.String(), nil
}

// New returns an empty pending session.
func New(token string) *Session {
	return &Session{
		Token:                   token,
		Status:                  StatusPending,
		Timeouts:                map[string]time.Duration{},
		PendingTests:            TestList{},
		RunningTests:            TestList{},
		CompletedTests:          TestList{},
		MalfunctioningTests:     TestList{},
		TestFilesCount:          map[string]int{},
		TestFilesCompletedCount: map[string]int{},
	}
}

// SetPendingTests replaces the test selection. Running and completed tests are cleared
// and the per-api counts recomputed.
func (s *Session) SetPendingTests(tests TestList) {
	s.PendingTests = tests.Clone()
	s.RunningTests = TestList{}
	s.CompletedTests = TestList{}
	s.TestFilesCount = map[string]int{}
	s.TestFilesCompletedCount = map[string]int{}
	for api, apiTests := range s.PendingTests {
		s.TestFilesCount[api] = len(apiTests)
		s.TestFilesCompletedCount[api] = 0
	}
}

// Start moves a pending or paused session to running. The start date is set only the first time.
func (s *Session) Start(now time.Time) bool {
	switch s.Status {
	case StatusPending:
		s.DateStarted = &now
		s.ExpirationDate = nil
	case StatusPaused:
	default:
		return false
	}
	s.Status = StatusRunning
	return true
}

func (s *Session) Pause() bool {
	if s.Status != StatusRunning {
		return false
	}
	s.Status = StatusPaused
	return true
}

// Stop aborts any session that has not finished.
func (s *Session) Stop(now time.Time) bool {
	if s.Status.IsTerminal() {
		return false
	}
	s.Status = StatusAborted
	s.DateFinished = &now
	return true
}

// Complete finishes any session that has not finished.
func (s *Session) Complete(now time.Time) bool {
	if s.Status.IsTerminal() {
		return false
	}
	s.Status = StatusCompleted
	s.DateFinished = &now
	return true
}

func (s *Session) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// DispatchTest moves test from api's pending list to its running list.
func (s *Session) DispatchTest(api, test string) bool {
	if !s.PendingTests.Remove(api, test) {
		return false
	}
	s.RunningTests.Add(api, test)
	return true
}

// CompleteTest moves test to api's completed list, from the running list or, for results
// that arrive for a test never dispatched, the pending list. It returns false if the test
// was already complete.
func (s *Session) CompleteTest(api, test string) bool {
	s.RunningTests.Remove(api, test)
	s.PendingTests.Remove(api, test)
	if !s.CompletedTests.Add(api, test) {
		return false
	}
	if s.TestFilesCompletedCount == nil {
		s.TestFilesCompletedCount = map[string]int{}
	}
	s.TestFilesCompletedCount[api]++
	return true
}

// APIOfTest returns the api a test is listed under, falling back to its first path segment.
func (s *Session) APIOfTest(test string) string {
	for _, list := range []TestList{s.RunningTests, s.PendingTests, s.CompletedTests} {
		if api, ok := list.Find(test); ok {
			return api
		}
	}
	return APIOf(test)
}

func (s *Session) HasTest(test string) bool {
	return s.PendingTests.Contains(test) || s.RunningTests.Contains(test) || s.CompletedTests.Contains(test)
}

func (s *Session) IsTestRunning(test string) bool {
	return s.RunningTests.Contains(test)
}

func (s *Session) IsTestComplete(test string) bool {
	return s.CompletedTests.Contains(test)
}

// IsAPIComplete returns true if no test of api is left pending or running.
func (s *Session) IsAPIComplete(api string) bool {
	return len(s.PendingTests[api]) == 0 && len(s.RunningTests[api]) == 0
}

// AllTestsDone returns true if every selected test has a result.
func (s *Session) AllTestsDone() bool {
	return s.PendingTests.IsEmpty() && s.RunningTests.IsEmpty()
}

// TimeoutFor returns the configured timeout for test: the longest path key that prefixes
// the test id, else the automatic timeout. ok is false if the session has no timeouts.
func (s *Session) TimeoutFor(test string) (time.Duration, bool) {
	if len(s.Timeouts) == 0 {
		return 0, false
	}
	bestKey := ""
	for key := range s.Timeouts {
		if strings.HasPrefix(key, "/") && strings.HasPrefix(test, key) && len(key) > len(bestKey) {
			bestKey = key
		}
	}
	if bestKey != "" {
		return s.Timeouts[bestKey], true
	}
	timeout, ok := s.Timeouts[AutomaticTimeoutKey]
	return timeout, ok
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Tests = s.Tests.clone()
	clone.Types = slices.Clone(s.Types)
	clone.Timeouts = maps.Clone(s.Timeouts)
	clone.ReferenceTokens = cloneStrings(s.ReferenceTokens)
	clone.WebhookUrls = cloneStrings(s.WebhookUrls)
	clone.Labels = cloneStrings(s.Labels)
	clone.PendingTests = s.PendingTests.Clone()
	clone.RunningTests = s.RunningTests.Clone()
	clone.CompletedTests = s.CompletedTests.Clone()
	clone.MalfunctioningTests = s.MalfunctioningTests.Clone()
	clone.TestFilesCount = maps.Clone(s.TestFilesCount)
	clone.TestFilesCompletedCount = maps.Clone(s.TestFilesCompletedCount)
	clone.DateStarted = cloneTime(s.DateStarted)
	clone.DateFinished = cloneTime(s.DateFinished)
	clone.ExpirationDate = cloneTime(s.ExpirationDate)
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
