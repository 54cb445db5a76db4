package task

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

type task struct {
	function    func(ctx context.Context) error
	interval    time.Duration
	metricName  string
	stopChannel chan struct{}
}

// BackgroundTaskManager is not threadsafe, it should only be accessed from a single goroutine.
type BackgroundTaskManager struct {
	tasks         []*task
	metricsPrefix string
	clock         clock.Clock
	wg            *sync.WaitGroup
}

func NewBackgroundTaskManager(metricsPrefix string, clock clock.Clock) *BackgroundTaskManager {
	return &BackgroundTaskManager{
		tasks:         []*task{},
		metricsPrefix: metricsPrefix,
		clock:         clock,
		wg:            &sync.WaitGroup{},
	}
}

// Register runs backgroundTask immediately and then every interval until StopAll is called.
// Errors are logged; they do not stop the task.
func (m *BackgroundTaskManager) Register(backgroundTask func(ctx context.Context) error, interval time.Duration, metricName string) {
	task := &task{
		function:    backgroundTask,
		interval:    interval,
		metricName:  metricName,
		stopChannel: make(chan struct{}),
	}
	m.startBackgroundTask(task)
	m.tasks = append(m.tasks, task)
}

// StopAll stops every task and waits up to timeout for running iterations to finish.
// It returns true if the timeout expired first.
func (m *BackgroundTaskManager) StopAll(timeout time.Duration) bool {
	m.stopTasks()
	return m.waitForShutdownCompletion(timeout)
}

func (m *BackgroundTaskManager) startBackgroundTask(task *task) {
	taskDurationHistogram := registerHistogram(prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    m.metricsPrefix + task.metricName + "_latency_seconds",
			Help:    "Background loop " + task.metricName + " latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}))

	ctx, cancel := context.WithCancel(context.Background())
	run := func() {
		start := m.clock.Now()
		if err := task.function(ctx); err != nil {
			log.WithField("task", task.metricName).WithError(err).Warn("background task failed")
		}
		taskDurationHistogram.Observe(m.clock.Since(start).Seconds())
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		run()
		for {
			select {
			case <-m.clock.After(task.interval):
			case <-task.stopChannel:
				return
			}
			run()
		}
	}()
	go func() {
		<-task.stopChannel
		cancel()
	}()
}

// registerHistogram registers h, or returns the histogram a previous manager registered
// under the same name.
func registerHistogram(h prometheus.Histogram) prometheus.Histogram {
	err := prometheus.Register(h)
	if err == nil {
		return h
	}
	var alreadyRegistered prometheus.AlreadyRegisteredError
	if errors.As(err, &alreadyRegistered) {
		if existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram); ok {
			return existing
		}
	}
	panic(err)
}

func (m *BackgroundTaskManager) waitForShutdownCompletion(timeout time.Duration) bool {
	c := make(chan struct{})
	go func() {
		defer close(c)
		m.wg.Wait()
	}()
	select {
	case <-c:
		return false
	case <-time.After(timeout):
		return true
	}
}

func (m *BackgroundTaskManager) stopTasks() {
	for _, task := range m.tasks {
		close(task.stopChannel)
	}
	m.tasks = nil
}
