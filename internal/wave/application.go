package wave

import (
	"time"

	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/cta-wave/wave/internal/common/app"
	"github.com/cta-wave/wave/internal/common/broker"
	"github.com/cta-wave/wave/internal/common/health"
	"github.com/cta-wave/wave/internal/common/serve"
	"github.com/cta-wave/wave/internal/common/task"
	"github.com/cta-wave/wave/internal/common/wavecontext"
	"github.com/cta-wave/wave/internal/wave/configuration"
	"github.com/cta-wave/wave/internal/wave/database"
	"github.com/cta-wave/wave/internal/wave/events"
	"github.com/cta-wave/wave/internal/wave/manager"
	"github.com/cta-wave/wave/internal/wave/metrics"
	"github.com/cta-wave/wave/internal/wave/testloader"
)

const backgroundTaskShutdownTimeout = 5 * time.Second

// App is a running session engine. The network layer drives it through Manager.
type App struct {
	Manager *manager.SessionManager
	Hub     *events.Hub

	repository    database.Repository
	tasks         *task.BackgroundTaskManager
	stopServer    func()
	startupCheck  *health.StartupCompleteChecker
	healthChecker *health.MultiChecker
}

// StartUp opens the session store, builds the engine and starts serving metrics and
// health, and the sweep of expired sessions.
func StartUp(ctx *wavecontext.Context, config configuration.WaveConfiguration) (*App, error) {
	startupCheck := health.NewStartupCompleteChecker()
	healthChecker := health.NewMultiChecker(startupCheck)
	a := &App{
		startupCheck:  startupCheck,
		healthChecker: healthChecker,
		stopServer:    serve.ServeHttp(config.MetricsPort, serve.MetricsMux(healthChecker)),
	}

	repository, err := OpenRepository(ctx, config.Database)
	if err != nil {
		a.Shutdown(ctx)
		return nil, errors.WithMessage(err, "error opening session store")
	}
	a.repository = repository
	healthChecker.Add(health.CheckerFunc(repository.Check))

	a.Hub = events.NewHub()
	a.Manager, err = NewSessionManager(config, repository, a.Hub)
	if err != nil {
		a.Shutdown(ctx)
		return nil, err
	}
	metrics.ExposeSessionMetrics(a.Manager)

	a.tasks = task.NewBackgroundTaskManager(metrics.MetricPrefix, clock.RealClock{})
	a.tasks.Register(a.Manager.DeleteExpiredSessions, config.Sessions.ExpirySweepInterval, "expired_sessions_sweep")

	startupCheck.MarkComplete()
	ctx.Log.Info("session engine started")
	return a, nil
}

// NewSessionManager builds a session manager on top of repository.
func NewSessionManager(config configuration.WaveConfiguration, repository database.Repository, hub *events.Hub) (*manager.SessionManager, error) {
	storeBroker, err := broker.New(config.Broker.AsBrokerConfig("session_store"))
	if err != nil {
		return nil, err
	}
	store := database.NewSessionStore(repository, repository, storeBroker)
	loader, err := testloader.LoadManifest(config.TestLoader.ManifestPath)
	if err != nil {
		return nil, err
	}
	return manager.New(store, loader, hub, clock.RealClock{}, config.Sessions)
}

// Shutdown stops the background tasks and the HTTP server and closes the store.
func (a *App) Shutdown(ctx *wavecontext.Context) {
	if a.tasks != nil && a.tasks.StopAll(backgroundTaskShutdownTimeout) {
		ctx.Log.Warn("background tasks did not stop in time")
	}
	if a.stopServer != nil {
		a.stopServer()
	}
	if a.repository != nil {
		if err := a.repository.Close(); err != nil {
			ctx.Log.WithError(err).Warn("session store did not close cleanly")
		}
	}
}

// Run starts the engine and blocks until SIGINT or SIGTERM is received.
func Run(config configuration.WaveConfiguration) error {
	g, ctx := wavecontext.ErrGroup(app.CreateContextWithShutdown())
	a, err := StartUp(ctx, config)
	if err != nil {
		return err
	}
	g.Go(func() error {
		<-ctx.Done()
		a.Shutdown(ctx)
		return nil
	})
	return g.Wait()
}
