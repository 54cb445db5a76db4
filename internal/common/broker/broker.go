// Package broker runs jobs under a global concurrency ceiling and an optional
// per-group ceiling. Jobs waiting on the same ceiling are admitted in the order
// they were submitted.
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
)

// NoGroup is the group label used for jobs submitted without a group.
const NoGroup = ""

var (
	queuedJobs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wave_broker_queued_jobs",
		Help: "Number of jobs waiting for admission",
	}, []string{"broker", "group"})
	runningJobs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wave_broker_running_jobs",
		Help: "Number of admitted jobs that have not finished",
	}, []string{"broker", "group"})
	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wave_broker_job_duration_seconds",
		Help:    "Time taken by jobs once admitted",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
	}, []string{"broker", "group"})
)

type Config struct {
	// Name labels the broker's metrics.
	Name string
	// Maximum number of jobs running at once across all groups.
	MaxJobs int64 `validate:"gte=1"`
	// Maximum number of jobs of any one group running at once. Zero means only MaxJobs applies.
	MaxGroupJobs int64 `validate:"gte=0"`
	// How long a job may wait for admission. Zero means it waits until its context is done.
	AdmissionTimeout time.Duration `validate:"gte=0"`
}

// Broker is safe for concurrent use.
type Broker struct {
	config Config
	global *semaphore.Weighted
	mu     sync.Mutex
	groups map[string]*semaphore.Weighted
}

func New(config Config) (*Broker, error) {
	if config.MaxJobs < 1 {
		return nil, errors.Errorf("broker %q: MaxJobs must be at least 1, got %d", config.Name, config.MaxJobs)
	}
	if config.MaxGroupJobs < 0 {
		return nil, errors.Errorf("broker %q: MaxGroupJobs must not be negative, got %d", config.Name, config.MaxGroupJobs)
	}
	return &Broker{
		config: config,
		global: semaphore.NewWeighted(config.MaxJobs),
		groups: map[string]*semaphore.Weighted{},
	}, nil
}

// Run blocks until job has been admitted and has finished, and returns the job's error unchanged.
// An error is also returned if ctx is done, or the admission timeout expires, before admission.
func (b *Broker) Run(ctx context.Context, group string, job func(ctx context.Context) error) error {
	_, err := Submit(ctx, b, group, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, job(ctx)
	})
	return err
}

// Submit runs job through b and returns its result. It is a function rather than
// a method because methods cannot have type parameters.
func Submit[T any](ctx context.Context, b *Broker, group string, job func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	release, err := b.admit(ctx, group)
	if err != nil {
		return zero, err
	}
	defer release()

	start := time.Now()
	defer func() {
		jobDuration.WithLabelValues(b.config.Name, group).Observe(time.Since(start).Seconds())
	}()
	return job(ctx)
}

// Future is the pending result of a job started with Go.
type Future[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Go submits job without blocking the caller. The job is admitted in submission order
// relative to other jobs whose admission started earlier.
func Go[T any](ctx context.Context, b *Broker, group string, job func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.result, f.err = Submit(ctx, b, group, job)
	}()
	return f
}

// Await blocks until the job has finished or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

func (b *Broker) admit(ctx context.Context, group string) (func(), error) {
	if b.config.AdmissionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.AdmissionTimeout)
		defer cancel()
	}

	queued := queuedJobs.WithLabelValues(b.config.Name, group)
	queued.Inc()
	defer queued.Dec()

	groupSemaphore := b.groupSemaphore(group)
	if groupSemaphore != nil {
		if err := groupSemaphore.Acquire(ctx, 1); err != nil {
			return nil, errors.Wrapf(err, "job in group %q not admitted", group)
		}
	}
	if err := b.global.Acquire(ctx, 1); err != nil {
		if groupSemaphore != nil {
			groupSemaphore.Release(1)
		}
		return nil, errors.Wrapf(err, "job in group %q not admitted", group)
	}

	running := runningJobs.WithLabelValues(b.config.Name, group)
	running.Inc()
	return func() {
		running.Dec()
		b.global.Release(1)
		if groupSemaphore != nil {
			groupSemaphore.Release(1)
		}
	}, nil
}

func (b *Broker) groupSemaphore(group string) *semaphore.Weighted {
	if group == NoGroup || b.config.MaxGroupJobs == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.groups[group]
	if !ok {
		s = semaphore.NewWeighted(b.config.MaxGroupJobs)
		b.groups[group] = s
	}
	return s
}
