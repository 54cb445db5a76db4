package logging

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

const logLevelEnvVar = "WAVE_LOG_LEVEL"

// ConfigureLogging sets up the standard logger for the long running server.
// The level defaults to info and may be overridden with WAVE_LOG_LEVEL.
func ConfigureLogging() {
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	log.SetOutput(os.Stdout)
	log.SetLevel(levelFromEnv())
}

// ConfigureCommandLineLogging sets up the standard logger for one-shot CLI commands.
func ConfigureCommandLineLogging() {
	log.SetFormatter(&CommandLineFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(levelFromEnv())
}

func levelFromEnv() log.Level {
	value, ok := os.LookupEnv(logLevelEnvVar)
	if !ok {
		return log.InfoLevel
	}
	level, err := log.ParseLevel(strings.TrimSpace(value))
	if err != nil {
		log.Warnf("unknown log level %q in %s, using info", value, logLevelEnvVar)
		return log.InfoLevel
	}
	return level
}
