// Package serve runs the HTTP endpoints of a process that are not part of its API.
package serve

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/cta-wave/wave/internal/common/health"
	"github.com/cta-wave/wave/internal/common/logging"
	"github.com/cta-wave/wave/internal/common/wavecontext"
)

const shutdownTimeout = 5 * time.Second

// ServeHttp serves handler on port in the background. Call the returned function to
// shut the server down.
func ServeHttp(port uint16, handler http.Handler) func() {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("http server listening on %d", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).Errorf("http server on %d failed", port)
		}
	}()
	return func() {
		ctx, cancel := wavecontext.WithTimeout(wavecontext.WithLogField(wavecontext.Background(), "port", port), shutdownTimeout)
		defer cancel()
		ctx.Log.Info("stopping http server")
		if err := srv.Shutdown(ctx); err != nil {
			ctx.Log.WithError(err).Warn("http server did not shut down cleanly")
		}
	}
}

// MetricsMux serves prometheus metrics on /metrics and checker on /health.
func MetricsMux(checker health.Checker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.SetupHttpMux(mux, checker)
	return mux
}
