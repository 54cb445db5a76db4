package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cta-wave/wave/internal/common/waveerrors"
)

var (
	startTime = time.Date(2023, 3, 1, 10, 0, 0, 0, time.UTC)
	laterTime = startTime.Add(time.Hour)
)

func sessionWithStatus(status Status) *Session {
	s := New("token")
	s.Status = status
	return s
}

func TestStateMachine(t *testing.T) {
	tests := map[string]struct {
		from            Status
		operation       func(s *Session) bool
		expectedChanged bool
		expectedStatus  Status
	}{
		"start pending":      {StatusPending, func(s *Session) bool { return s.Start(laterTime) }, true, StatusRunning},
		"start running":      {StatusRunning, func(s *Session) bool { return s.Start(laterTime) }, false, StatusRunning},
		"start paused":       {StatusPaused, func(s *Session) bool { return s.Start(laterTime) }, true, StatusRunning},
		"start aborted":      {StatusAborted, func(s *Session) bool { return s.Start(laterTime) }, false, StatusAborted},
		"start completed":    {StatusCompleted, func(s *Session) bool { return s.Start(laterTime) }, false, StatusCompleted},
		"pause pending":      {StatusPending, func(s *Session) bool { return s.Pause() }, false, StatusPending},
		"pause running":      {StatusRunning, func(s *Session) bool { return s.Pause() }, true, StatusPaused},
		"pause paused":       {StatusPaused, func(s *Session) bool { return s.Pause() }, false, StatusPaused},
		"pause aborted":      {StatusAborted, func(s *Session) bool { return s.Pause() }, false, StatusAborted},
		"pause completed":    {StatusCompleted, func(s *Session) bool { return s.Pause() }, false, StatusCompleted},
		"stop pending":       {StatusPending, func(s *Session) bool { return s.Stop(laterTime) }, true, StatusAborted},
		"stop running":       {StatusRunning, func(s *Session) bool { return s.Stop(laterTime) }, true, StatusAborted},
		"stop paused":        {StatusPaused, func(s *Session) bool { return s.Stop(laterTime) }, true, StatusAborted},
		"stop aborted":       {StatusAborted, func(s *Session) bool { return s.Stop(laterTime) }, false, StatusAborted},
		"stop completed":     {StatusCompleted, func(s *Session) bool { return s.Stop(laterTime) }, false, StatusCompleted},
		"complete pending":   {StatusPending, func(s *Session) bool { return s.Complete(laterTime) }, true, StatusCompleted},
		"complete running":   {StatusRunning, func(s *Session) bool { return s.Complete(laterTime) }, true, StatusCompleted},
		"complete aborted":   {StatusAborted, func(s *Session) bool { return s.Complete(laterTime) }, false, StatusAborted},
		"complete completed": {StatusCompleted, func(s *Session) bool { return s.Complete(laterTime) }, false, StatusCompleted},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			s := sessionWithStatus(tc.from)
			assert.Equal(t, tc.expectedChanged, tc.operation(s))
			assert.Equal(t, tc.expectedStatus, s.Status)
		})
	}
}

func TestStart_SetsStartDateOnlyOnce(t *testing.T) {
	s := New("token")
	expiry := startTime.Add(24 * time.Hour)
	s.ExpirationDate = &expiry

	require.True(t, s.Start(startTime))
	assert.Equal(t, startTime, *s.DateStarted)
	assert.Nil(t, s.ExpirationDate)

	require.True(t, s.Pause())
	require.True(t, s.Start(laterTime))
	assert.Equal(t, startTime, *s.DateStarted)
}

func TestTerminalTransitionsSetFinishDateOnce(t *testing.T) {
	s := sessionWithStatus(StatusRunning)
	require.True(t, s.Stop(startTime))
	assert.Equal(t, startTime, *s.DateFinished)

	assert.False(t, s.Complete(laterTime))
	assert.False(t, s.Stop(laterTime))
	assert.Equal(t, startTime, *s.DateFinished)
}

func TestSetPendingTests(t *testing.T) {
	s := New("token")
	s.CompletedTests.Add("old", "/old/a.html")
	s.SetPendingTests(TestList{"dom": {"/dom/a.html", "/dom/b.html"}, "fetch": {"/fetch/a.html"}})

	assert.Equal(t, map[string]int{"dom": 2, "fetch": 1}, s.TestFilesCount)
	assert.Equal(t, map[string]int{"dom": 0, "fetch": 0}, s.TestFilesCompletedCount)
	assert.Empty(t, s.CompletedTests)
	assert.Empty(t, s.RunningTests)
}

func TestDispatchAndCompleteTest(t *testing.T) {
	s := New("token")
	s.SetPendingTests(TestList{"dom": {"/dom/a.html", "/dom/b.html"}})

	require.True(t, s.DispatchTest("dom", "/dom/a.html"))
	assert.False(t, s.DispatchTest("dom", "/dom/a.html"))
	assert.True(t, s.IsTestRunning("/dom/a.html"))
	assert.Equal(t, "dom", s.APIOfTest("/dom/a.html"))

	require.True(t, s.CompleteTest("dom", "/dom/a.html"))
	assert.False(t, s.CompleteTest("dom", "/dom/a.html"))
	assert.True(t, s.IsTestComplete("/dom/a.html"))
	assert.Empty(t, s.RunningTests)
	assert.Equal(t, 1, s.TestFilesCompletedCount["dom"])
	assert.False(t, s.IsAPIComplete("dom"))
	assert.False(t, s.AllTestsDone())

	// A result for a test that was never handed out still completes it.
	require.True(t, s.CompleteTest("dom", "/dom/b.html"))
	assert.Empty(t, s.PendingTests)
	assert.True(t, s.IsAPIComplete("dom"))
	assert.True(t, s.AllTestsDone())
	assert.Equal(t, 2, s.TestFilesCompletedCount["dom"])
}

func TestPartitionsStayDisjoint(t *testing.T) {
	s := New("token")
	s.SetPendingTests(TestList{"a": {"/a/1", "/a/2", "/a/3"}})
	s.DispatchTest("a", "/a/1")
	s.DispatchTest("a", "/a/2")
	s.CompleteTest("a", "/a/1")
	s.CompleteTest("a", "/a/3")

	seen := map[string]int{}
	for _, list := range []TestList{s.PendingTests, s.RunningTests, s.CompletedTests} {
		for _, tests := range list {
			for _, test := range tests {
				seen[test]++
			}
		}
	}
	assert.Equal(t, map[string]int{"/a/1": 1, "/a/2": 1, "/a/3": 1}, seen)
	assert.True(t, s.HasTest("/a/2"))
	assert.False(t, s.HasTest("/a/4"))
}

func TestTimeoutFor(t *testing.T) {
	s := New("token")
	_, ok := s.TimeoutFor("/dom/a.html")
	assert.False(t, ok)

	s.Timeouts = map[string]time.Duration{
		AutomaticTimeoutKey: time.Minute,
		ManualTimeoutKey:    5 * time.Minute,
		"/dom":              2 * time.Minute,
		"/dom/events":       3 * time.Minute,
	}
	tests := map[string]time.Duration{
		"/fetch/a.html":         time.Minute,
		"/dom/a.html":           2 * time.Minute,
		"/dom/events/a.html":    3 * time.Minute,
		"/domparsing/a.html":    2 * time.Minute,
		"/webaudio/manual.html": time.Minute,
	}
	for test, expected := range tests {
		timeout, ok := s.TimeoutFor(test)
		assert.True(t, ok, test)
		assert.Equal(t, expected, timeout, test)
	}
}

func TestClone_IsDeep(t *testing.T) {
	s := New("token")
	s.SetPendingTests(TestList{"dom": {"/dom/a.html"}})
	s.Labels = []string{"nightly"}
	s.Timeouts[AutomaticTimeoutKey] = time.Minute
	s.Start(startTime)

	clone := s.Clone()
	clone.DispatchTest("dom", "/dom/a.html")
	clone.Labels[0] = "changed"
	clone.Timeouts[AutomaticTimeoutKey] = time.Hour
	*clone.DateStarted = laterTime

	assert.Equal(t, TestList{"dom": {"/dom/a.html"}}, s.PendingTests)
	assert.Equal(t, []string{"nightly"}, s.Labels)
	assert.Equal(t, time.Minute, s.Timeouts[AutomaticTimeoutKey])
	assert.Equal(t, startTime, *s.DateStarted)
	assert.Nil(t, (*Session)(nil).Clone())
}

func TestParseTestType(t *testing.T) {
	parsed, err := ParseTestType(" Manual ")
	require.NoError(t, err)
	assert.Equal(t, TestTypeManual, parsed)

	_, err = ParseTestType("fast")
	assert.True(t, waveerrors.IsInvalidArgument(err))

	var tt TestType
	require.NoError(t, tt.UnmarshalText([]byte("automatic")))
	assert.Equal(t, TestTypeAutomatic, tt)
	assert.Error(t, tt.UnmarshalText([]byte("other")))
}

func TestNewToken(t *testing.T) {
	token, err := NewToken()
	require.NoError(t, err)
	assert.Len(t, token, 36)

	other, err := NewToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}
