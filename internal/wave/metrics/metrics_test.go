package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cta-wave/wave/internal/wave/session"
)

type fixedCounter map[session.Status]int

func (c fixedCounter) CountByStatus() map[session.Status]int {
	return c
}

func TestSessionCollector(t *testing.T) {
	collector := NewSessionCollector(fixedCounter{session.StatusRunning: 2, session.StatusCompleted: 1})
	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, registry.Register(collector))

	expected := `
# HELP wave_sessions Number of sessions held in memory, by status
# TYPE wave_sessions gauge
wave_sessions{status="aborted"} 0
wave_sessions{status="completed"} 1
wave_sessions{status="paused"} 0
wave_sessions{status="pending"} 0
wave_sessions{status="running"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "wave_sessions"))
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(testsDispatched.WithLabelValues("metrics-test"))
	RecordTestDispatched("metrics-test")
	assert.Equal(t, before+1, testutil.ToFloat64(testsDispatched.WithLabelValues("metrics-test")))

	RecordTestCompleted("metrics-test")
	RecordTestTimedOut("metrics-test")
	RecordSessionTransition("running")
	assert.Equal(t, float64(1), testutil.ToFloat64(testsTimedOut.WithLabelValues("metrics-test")))
}

func TestExposeSessionMetrics_ReplacesEarlierCollector(t *testing.T) {
	first := ExposeSessionMetrics(fixedCounter{session.StatusRunning: 5})
	second := ExposeSessionMetrics(fixedCounter{session.StatusPending: 3})
	t.Cleanup(func() {
		prometheus.Unregister(first)
		prometheus.Unregister(second)
	})

	expected := `
# HELP wave_sessions Number of sessions held in memory, by status
# TYPE wave_sessions gauge
wave_sessions{status="aborted"} 0
wave_sessions{status="completed"} 0
wave_sessions{status="paused"} 0
wave_sessions{status="pending"} 3
wave_sessions{status="running"} 0
`
	assert.NoError(t, testutil.GatherAndCompare(prometheus.DefaultGatherer, strings.NewReader(expected), "wave_sessions"))
}
