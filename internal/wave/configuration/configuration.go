package configuration

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cta-wave/wave/internal/common/broker"
	"github.com/cta-wave/wave/internal/common/config"
	"github.com/cta-wave/wave/internal/wave/session"
)

const (
	MemDbDatabase    = "memdb"
	RedisDatabase    = "redis"
	SqliteDatabase   = "sqlite"
	PostgresDatabase = "postgres"
	BoltDatabase     = "bolt"
)

type WaveConfiguration struct {
	// Port serving /metrics and /health
	MetricsPort uint16 `validate:"required"`
	Broker      BrokerConfig
	Database    DatabaseConfig
	Sessions    SessionsConfig
	TestLoader  TestLoaderConfig
}

func (c WaveConfiguration) Validate() error {
	validate := validator.New()
	validate.RegisterStructValidation(databaseConfigValidation, DatabaseConfig{})
	return validate.Struct(c)
}

type BrokerConfig struct {
	// Maximum number of store operations running at once. 1 serialises every access to the store.
	MaxAccessJobs int64 `validate:"gte=1"`
	// Maximum number of concurrent reads.
	MaxGroupJobs int64 `validate:"gte=0"`
	// How long a store operation may wait for its turn. Zero waits indefinitely.
	AdmissionTimeout time.Duration `validate:"gte=0"`
}

func (c BrokerConfig) AsBrokerConfig(name string) broker.Config {
	return broker.Config{
		Name:             name,
		MaxJobs:          c.MaxAccessJobs,
		MaxGroupJobs:     c.MaxGroupJobs,
		AdmissionTimeout: c.AdmissionTimeout,
	}
}

type DatabaseConfig struct {
	Type     string `validate:"oneof=memdb redis sqlite postgres bolt"`
	Sqlite   SqliteConfig
	Postgres PostgresConfig
	Bolt     BoltConfig
	Redis    config.RedisConfig `validate:"-"`
}

type SqliteConfig struct {
	Path string
}

type PostgresConfig struct {
	// libpq connection parameters, e.g. host, port, user, dbname, sslmode
	Connection map[string]string
}

type BoltConfig struct {
	Path string
}

// databaseConfigValidation checks only the settings of the selected backend.
func databaseConfigValidation(sl validator.StructLevel) {
	c := sl.Current().Interface().(DatabaseConfig)
	switch c.Type {
	case SqliteDatabase:
		if c.Sqlite.Path == "" {
			sl.ReportError(c.Sqlite.Path, "Sqlite.Path", "Path", "required", "")
		}
	case PostgresDatabase:
		if len(c.Postgres.Connection) == 0 {
			sl.ReportError(c.Postgres.Connection, "Postgres.Connection", "Connection", "required", "")
		}
	case BoltDatabase:
		if c.Bolt.Path == "" {
			sl.ReportError(c.Bolt.Path, "Bolt.Path", "Path", "required", "")
		}
	case RedisDatabase:
		if err := validator.New().Struct(c.Redis); err != nil {
			sl.ReportError(c.Redis, "Redis", "Redis", "valid", "")
		}
	}
}

type SessionsConfig struct {
	// Timeouts given to sessions created without any.
	DefaultTimeouts DefaultTimeouts
	// Test types of sessions created without any.
	DefaultTypes []session.TestType `validate:"required,min=1"`
	// Include list of sessions created without one.
	DefaultInclude []string `validate:"required,min=1"`
	// Number of finished sessions kept in memory.
	ArchiveCacheSize int `validate:"gte=1"`
	// How often pending sessions past their expiration date are deleted.
	ExpirySweepInterval time.Duration `validate:"required"`
}

type DefaultTimeouts struct {
	Automatic time.Duration `validate:"required"`
	Manual    time.Duration `validate:"required"`
}

// AsMap returns the timeouts keyed the way sessions store them.
func (t DefaultTimeouts) AsMap() map[string]time.Duration {
	return map[string]time.Duration{
		session.AutomaticTimeoutKey: t.Automatic,
		session.ManualTimeoutKey:    t.Manual,
	}
}

type TestLoaderConfig struct {
	// File listing the available tests per api.
	ManifestPath string `validate:"required"`
}
