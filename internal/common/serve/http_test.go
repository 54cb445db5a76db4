package serve

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/cta-wave/wave/internal/common/health"
)

func TestMetricsMux(t *testing.T) {
	var checkErr error
	mux := MetricsMux(health.CheckerFunc(func() error { return checkErr }))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	checkErr = errors.New("store unreachable")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "store unreachable", rec.Body.String())
}

func TestServeHttp_StopReturnsWithinShutdownTimeout(t *testing.T) {
	stop := ServeHttp(0, http.NewServeMux())

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
