package session

import (
	"strings"

	"github.com/cta-wave/wave/internal/common/waveerrors"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusAborted   Status = "aborted"
	StatusCompleted Status = "completed"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusRunning, StatusPaused, StatusAborted, StatusCompleted}

// IsTerminal returns true for statuses no operation can leave.
func (s Status) IsTerminal() bool {
	return s == StatusAborted || s == StatusCompleted
}

type TestType string

const (
	TestTypeAutomatic TestType = "automatic"
	TestTypeManual    TestType = "manual"
)

// Keys of the timeouts applied to tests that match no path-specific timeout.
const (
	AutomaticTimeoutKey = string(TestTypeAutomatic)
	ManualTimeoutKey    = string(TestTypeManual)
)

func ParseTestType(s string) (TestType, error) {
	switch TestType(strings.ToLower(strings.TrimSpace(s))) {
	case TestTypeAutomatic:
		return TestTypeAutomatic, nil
	case TestTypeManual:
		return TestTypeManual, nil
	}
	return "", &waveerrors.ErrInvalidArgument{
		Name:    "types",
		Value:   s,
		Message: "must be one of automatic, manual",
	}
}

func (t *TestType) UnmarshalText(text []byte) error {
	parsed, err := ParseTestType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TestFilter selects test files by path prefix.
type TestFilter struct {
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
}

func (f TestFilter) clone() TestFilter {
	return TestFilter{
		Include: cloneStrings(f.Include),
		Exclude: cloneStrings(f.Exclude),
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}
