package main

import (
	"os"

	"github.com/cta-wave/wave/cmd/wave/cmd"
	"github.com/cta-wave/wave/internal/common/logging"
)

func main() {
	logging.ConfigureLogging()
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
