package wave

import (
	goredis "github.com/go-redis/redis"
	"github.com/pkg/errors"

	"github.com/cta-wave/wave/internal/common/wavecontext"
	"github.com/cta-wave/wave/internal/wave/configuration"
	"github.com/cta-wave/wave/internal/wave/database"
	"github.com/cta-wave/wave/internal/wave/database/bolt"
	"github.com/cta-wave/wave/internal/wave/database/memdb"
	"github.com/cta-wave/wave/internal/wave/database/redis"
	"github.com/cta-wave/wave/internal/wave/database/sqldb"
)

// OpenRepository connects to the backend selected by config.Type.
func OpenRepository(ctx *wavecontext.Context, config configuration.DatabaseConfig) (database.Repository, error) {
	ctx.Log.Infof("opening %s session store", config.Type)
	switch config.Type {
	case configuration.MemDbDatabase:
		return memdb.NewRepository()
	case configuration.RedisDatabase:
		return redis.NewRepository(goredis.NewUniversalClient(config.Redis.AsUniversalOptions())), nil
	case configuration.SqliteDatabase:
		return sqldb.OpenSqlite(ctx, config.Sqlite.Path)
	case configuration.PostgresDatabase:
		return sqldb.OpenPostgres(ctx, config.Postgres.Connection)
	case configuration.BoltDatabase:
		return bolt.Open(config.Bolt.Path)
	default:
		return nil, errors.Errorf("%s is not a supported database type", config.Type)
	}
}
