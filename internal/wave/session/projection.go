package session

import (
	"time"
)

// Record is the persisted form of a session. The test lists are only embedded once the
// session is finished; before that they are kept in a TestListsRecord of their own.
type Record struct {
	Token                   string           `json:"token"`
	Status                  Status           `json:"status"`
	Tests                   TestFilter       `json:"tests"`
	Types                   []TestType       `json:"types"`
	Timeouts                map[string]int64 `json:"timeouts"`
	ReferenceTokens         []string         `json:"reference_tokens"`
	WebhookUrls             []string         `json:"webhook_urls"`
	Labels                  []string         `json:"labels"`
	UserAgent               string           `json:"user_agent"`
	IsPublic                bool             `json:"is_public"`
	TestFilesCount          map[string]int   `json:"test_files_count"`
	TestFilesCompletedCount map[string]int   `json:"test_files_completed_count"`
	DateStarted             *time.Time       `json:"date_started"`
	DateFinished            *time.Time       `json:"date_finished"`
	ExpirationDate          *time.Time       `json:"expiration_date"`

	PendingTests        TestList `json:"pending_tests,omitempty"`
	RunningTests        TestList `json:"running_tests,omitempty"`
	CompletedTests      TestList `json:"completed_tests,omitempty"`
	MalfunctioningTests TestList `json:"malfunctioning_tests,omitempty"`
}

// TestListsRecord holds the test lists of an unfinished session.
type TestListsRecord struct {
	Token               string   `json:"token"`
	PendingTests        TestList `json:"pending_tests"`
	RunningTests        TestList `json:"running_tests"`
	CompletedTests      TestList `json:"completed_tests"`
	MalfunctioningTests TestList `json:"malfunctioning_tests"`
}

// ToRecord builds the persisted form of s. The test lists are embedded only if s is finished.
func ToRecord(s *Session) *Record {
	r := &Record{
		Token:                   s.Token,
		Status:                  s.Status,
		Tests:                   s.Tests.clone(),
		Types:                   append([]TestType{}, s.Types...),
		Timeouts:                timeoutsToMillis(s.Timeouts),
		ReferenceTokens:         cloneStrings(s.ReferenceTokens),
		WebhookUrls:             cloneStrings(s.WebhookUrls),
		Labels:                  cloneStrings(s.Labels),
		UserAgent:               s.UserAgent,
		IsPublic:                s.IsPublic,
		TestFilesCount:          cloneCounts(s.TestFilesCount),
		TestFilesCompletedCount: cloneCounts(s.TestFilesCompletedCount),
		DateStarted:             cloneTime(s.DateStarted),
		DateFinished:            cloneTime(s.DateFinished),
		ExpirationDate:          cloneTime(s.ExpirationDate),
	}
	if s.IsTerminal() {
		r.PendingTests = s.PendingTests.Clone()
		r.RunningTests = s.RunningTests.Clone()
		r.CompletedTests = s.CompletedTests.Clone()
		r.MalfunctioningTests = s.MalfunctioningTests.Clone()
	}
	return r
}

// ToTestListsRecord extracts the test lists of s.
func ToTestListsRecord(s *Session) *TestListsRecord {
	return &TestListsRecord{
		Token:               s.Token,
		PendingTests:        s.PendingTests.Clone(),
		RunningTests:        s.RunningTests.Clone(),
		CompletedTests:      s.CompletedTests.Clone(),
		MalfunctioningTests: s.MalfunctioningTests.Clone(),
	}
}

// FromRecord rebuilds a session. For an unfinished session the test lists come from lists,
// which may be nil if none were stored; a finished session uses only the lists embedded in r.
func FromRecord(r *Record, lists *TestListsRecord) *Session {
	s := &Session{
		Token:                   r.Token,
		Status:                  r.Status,
		Tests:                   r.Tests.clone(),
		Types:                   append([]TestType{}, r.Types...),
		Timeouts:                timeoutsFromMillis(r.Timeouts),
		ReferenceTokens:         cloneStrings(r.ReferenceTokens),
		WebhookUrls:             cloneStrings(r.WebhookUrls),
		Labels:                  cloneStrings(r.Labels),
		UserAgent:               r.UserAgent,
		IsPublic:                r.IsPublic,
		TestFilesCount:          cloneCounts(r.TestFilesCount),
		TestFilesCompletedCount: cloneCounts(r.TestFilesCompletedCount),
		DateStarted:             cloneTime(r.DateStarted),
		DateFinished:            cloneTime(r.DateFinished),
		ExpirationDate:          cloneTime(r.ExpirationDate),
	}
	if r.Status.IsTerminal() || lists == nil {
		s.PendingTests = r.PendingTests.Clone()
		s.RunningTests = r.RunningTests.Clone()
		s.CompletedTests = r.CompletedTests.Clone()
		s.MalfunctioningTests = r.MalfunctioningTests.Clone()
	} else {
		s.PendingTests = lists.PendingTests.Clone()
		s.RunningTests = lists.RunningTests.Clone()
		s.CompletedTests = lists.CompletedTests.Clone()
		s.MalfunctioningTests = lists.MalfunctioningTests.Clone()
	}
	return s
}

// StatusView is the progress of a session as shown to clients polling it.
type StatusView struct {
	Token                   string         `json:"token"`
	Status                  Status         `json:"status"`
	TestFilesCount          map[string]int `json:"test_files_count"`
	TestFilesCompletedCount map[string]int `json:"test_files_completed_count"`
	DateStarted             *time.Time     `json:"date_started"`
	DateFinished            *time.Time     `json:"date_finished"`
	ExpirationDate          *time.Time     `json:"expiration_date"`
}

func ToStatusView(s *Session) StatusView {
	return StatusView{
		Token:                   s.Token,
		Status:                  s.Status,
		TestFilesCount:          cloneCounts(s.TestFilesCount),
		TestFilesCompletedCount: cloneCounts(s.TestFilesCompletedCount),
		DateStarted:             cloneTime(s.DateStarted),
		DateFinished:            cloneTime(s.DateFinished),
		ExpirationDate:          cloneTime(s.ExpirationDate),
	}
}

// ConfigView is the configuration of a session, without progress or test lists.
type ConfigView struct {
	Token           string           `json:"token"`
	Tests           TestFilter       `json:"tests"`
	Types           []TestType       `json:"types"`
	Timeouts        map[string]int64 `json:"timeouts"`
	ReferenceTokens []string         `json:"reference_tokens"`
	WebhookUrls     []string         `json:"webhook_urls"`
	UserAgent       string           `json:"user_agent"`
	Labels          []string         `json:"labels"`
	IsPublic        bool             `json:"is_public"`
	ExpirationDate  *time.Time       `json:"expiration_date"`
}

func ToConfigView(s *Session) ConfigView {
	return ConfigView{
		Token:           s.Token,
		Tests:           s.Tests.clone(),
		Types:           append([]TestType{}, s.Types...),
		Timeouts:        timeoutsToMillis(s.Timeouts),
		ReferenceTokens: cloneStrings(s.ReferenceTokens),
		WebhookUrls:     cloneStrings(s.WebhookUrls),
		UserAgent:       s.UserAgent,
		Labels:          cloneStrings(s.Labels),
		IsPublic:        s.IsPublic,
		ExpirationDate:  cloneTime(s.ExpirationDate),
	}
}

func timeoutsToMillis(timeouts map[string]time.Duration) map[string]int64 {
	millis := make(map[string]int64, len(timeouts))
	for key, timeout := range timeouts {
		millis[key] = timeout.Milliseconds()
	}
	return millis
}

func timeoutsFromMillis(millis map[string]int64) map[string]time.Duration {
	timeouts := make(map[string]time.Duration, len(millis))
	for key, ms := range millis {
		timeouts[key] = time.Duration(ms) * time.Millisecond
	}
	return timeouts
}

func cloneCounts(counts map[string]int) map[string]int {
	clone := make(map[string]int, len(counts))
	for api, n := range counts {
		clone[api] = n
	}
	return clone
}
