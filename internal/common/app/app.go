package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cta-wave/wave/internal/common/wavecontext"
)

// CreateContextWithShutdown returns a context that is done once SIGINT or SIGTERM is received.
func CreateContextWithShutdown() *wavecontext.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-c:
			wavecontext.Background().Log.Infof("received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()
	return wavecontext.FromContext(ctx)
}
