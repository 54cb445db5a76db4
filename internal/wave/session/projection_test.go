package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runningSession() *Session {
	s := New("d0c5e7a2-5a4b-11ed-9b6a-0242ac120002")
	s.Tests = TestFilter{Include: []string{"/"}, Exclude: []string{"/dom/manual"}}
	s.Types = []TestType{TestTypeAutomatic}
	s.Timeouts = map[string]time.Duration{AutomaticTimeoutKey: time.Minute}
	s.Labels = []string{"nightly"}
	s.UserAgent = "Mozilla/5.0"
	s.SetPendingTests(TestList{"dom": {"/dom/a.html", "/dom/b.html"}})
	s.Start(startTime)
	s.DispatchTest("dom", "/dom/a.html")
	s.MalfunctioningTests.Add("dom", "/dom/b.html")
	return s
}

func TestToRecord_UnfinishedLeavesListsOut(t *testing.T) {
	s := runningSession()
	r := ToRecord(s)

	assert.Nil(t, r.PendingTests)
	assert.Nil(t, r.RunningTests)
	assert.Nil(t, r.CompletedTests)
	assert.Nil(t, r.MalfunctioningTests)
	assert.Equal(t, map[string]int64{AutomaticTimeoutKey: 60000}, r.Timeouts)

	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "pending_tests")
	assert.Contains(t, string(raw), `"status":"running"`)
}

func TestToRecord_FinishedEmbedsLists(t *testing.T) {
	s := runningSession()
	s.Complete(laterTime)
	r := ToRecord(s)

	assert.Equal(t, TestList{"dom": {"/dom/b.html"}}, r.PendingTests)
	assert.Equal(t, TestList{"dom": {"/dom/a.html"}}, r.RunningTests)
	assert.Equal(t, TestList{"dom": {"/dom/b.html"}}, r.MalfunctioningTests)
}

func TestFromRecord_UnfinishedMergesLists(t *testing.T) {
	s := runningSession()
	rebuilt := FromRecord(ToRecord(s), ToTestListsRecord(s))
	assert.Equal(t, s, rebuilt)
}

func TestFromRecord_FinishedIgnoresSeparateLists(t *testing.T) {
	s := runningSession()
	s.Complete(laterTime)
	stale := &TestListsRecord{Token: s.Token, PendingTests: TestList{"stale": {"/stale/a.html"}}}

	rebuilt := FromRecord(ToRecord(s), stale)
	assert.Equal(t, s, rebuilt)
}

func TestFromRecord_SurvivesJsonRoundTrip(t *testing.T) {
	s := runningSession()
	raw, err := json.Marshal(ToRecord(s))
	require.NoError(t, err)
	var r Record
	require.NoError(t, json.Unmarshal(raw, &r))
	rawLists, err := json.Marshal(ToTestListsRecord(s))
	require.NoError(t, err)
	var lists TestListsRecord
	require.NoError(t, json.Unmarshal(rawLists, &lists))

	rebuilt := FromRecord(&r, &lists)
	assert.Equal(t, s.Status, rebuilt.Status)
	assert.Equal(t, s.PendingTests, rebuilt.PendingTests)
	assert.Equal(t, s.RunningTests, rebuilt.RunningTests)
	assert.Equal(t, s.Timeouts, rebuilt.Timeouts)
	assert.True(t, s.DateStarted.Equal(*rebuilt.DateStarted))
}

func TestViews(t *testing.T) {
	s := runningSession()

	status := ToStatusView(s)
	assert.Equal(t, s.Token, status.Token)
	assert.Equal(t, StatusRunning, status.Status)
	assert.Equal(t, map[string]int{"dom": 2}, status.TestFilesCount)
	assert.Equal(t, startTime, *status.DateStarted)

	config := ToConfigView(s)
	assert.Equal(t, s.Tests, config.Tests)
	assert.Equal(t, map[string]int64{AutomaticTimeoutKey: 60000}, config.Timeouts)
	assert.Equal(t, []string{"nightly"}, config.Labels)

	raw, err := json.Marshal(config)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "status")
	assert.NotContains(t, string(raw), "pending_tests")
}
