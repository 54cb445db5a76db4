package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cta-wave/wave/internal/wave/session"
)

// SessionCounter reports how many cached sessions are in each status.
type SessionCounter interface {
	CountByStatus() map[session.Status]int
}

// ExposeSessionMetrics registers a collector for counter on the default registry. A
// collector registered earlier in the process is replaced.
func ExposeSessionMetrics(counter SessionCounter) *SessionCollector {
	collector := NewSessionCollector(counter)
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if !errors.As(err, &alreadyRegistered) {
			panic(err)
		}
		prometheus.Unregister(alreadyRegistered.ExistingCollector)
		prometheus.MustRegister(collector)
	}
	return collector
}

type SessionCollector struct {
	counter SessionCounter
}

func NewSessionCollector(counter SessionCounter) *SessionCollector {
	return &SessionCollector{counter: counter}
}

var sessionsDesc = prometheus.NewDesc(
	MetricPrefix+"sessions",
	"Number of sessions held in memory, by status",
	[]string{"status"},
	nil,
)

func (c *SessionCollector) Describe(desc chan<- *prometheus.Desc) {
	desc <- sessionsDesc
}

func (c *SessionCollector) Collect(metrics chan<- prometheus.Metric) {
	counts := c.counter.CountByStatus()
	for _, status := range session.AllStatuses {
		metrics <- prometheus.MustNewConstMetric(sessionsDesc, prometheus.GaugeValue, float64(counts[status]), string(status))
	}
}
