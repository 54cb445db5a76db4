package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricPrefix = "wave_"

var (
	testsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: MetricPrefix + "tests_dispatched_total",
		Help: "Number of tests handed out to clients",
	}, []string{"api"})
	testsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: MetricPrefix + "tests_completed_total",
		Help: "Number of tests that received a result",
	}, []string{"api"})
	testsTimedOut = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: MetricPrefix + "tests_timed_out_total",
		Help: "Number of running tests whose timeout expired",
	}, []string{"api"})
	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: MetricPrefix + "session_transitions_total",
		Help: "Number of session status changes, by new status",
	}, []string{"status"})
)

func RecordTestDispatched(api string) {
	testsDispatched.WithLabelValues(api).Inc()
}

func RecordTestCompleted(api string) {
	testsCompleted.WithLabelValues(api).Inc()
}

func RecordTestTimedOut(api string) {
	testsTimedOut.WithLabelValues(api).Inc()
}

func RecordSessionTransition(status string) {
	sessionTransitions.WithLabelValues(status).Inc()
}
