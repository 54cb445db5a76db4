package wave

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cta-wave/wave/internal/common/wavecontext"
	"github.com/cta-wave/wave/internal/wave/configuration"
	"github.com/cta-wave/wave/internal/wave/manager"
	"github.com/cta-wave/wave/internal/wave/session"
)

const manifest = `
dom:
  - /dom/events/click.html
  - /dom/events/tap-manual.html
css:
  - /css/grid/layout.html
`

func testConfig(t *testing.T, database configuration.DatabaseConfig) configuration.WaveConfiguration {
	path := filepath.Join(t.TempDir(), "tests.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))
	return configuration.WaveConfiguration{
		MetricsPort: 0,
		Broker:      configuration.BrokerConfig{MaxAccessJobs: 1, MaxGroupJobs: 5},
		Database:    database,
		Sessions: configuration.SessionsConfig{
			DefaultTimeouts:     configuration.DefaultTimeouts{Automatic: time.Minute, Manual: 5 * time.Minute},
			DefaultTypes:        []session.TestType{session.TestTypeAutomatic, session.TestTypeManual},
			DefaultInclude:      []string{"/"},
			ArchiveCacheSize:    8,
			ExpirySweepInterval: time.Minute,
		},
		TestLoader: configuration.TestLoaderConfig{ManifestPath: path},
	}
}

func TestStartUp(t *testing.T) {
	ctx := wavecontext.Background()
	a, err := StartUp(ctx, testConfig(t, configuration.DatabaseConfig{Type: configuration.MemDbDatabase}))
	require.NoError(t, err)
	defer a.Shutdown(ctx)
	assert.NoError(t, a.healthChecker.Check())

	sess, err := a.Manager.CreateSession(ctx, manager.SessionOptions{Types: []session.TestType{session.TestTypeAutomatic}})
	require.NoError(t, err)
	assert.Equal(t, 2, sess.PendingTests.Len())

	require.NoError(t, a.Manager.StartSession(ctx, sess.Token))
	test, err := a.Manager.NextTest(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "/css/grid/layout.html", test)
}

func TestStartUp_TwiceInOneProcess(t *testing.T) {
	ctx := wavecontext.Background()
	config := testConfig(t, configuration.DatabaseConfig{Type: configuration.MemDbDatabase})

	first, err := StartUp(ctx, config)
	require.NoError(t, err)
	first.Shutdown(ctx)

	second, err := StartUp(ctx, config)
	require.NoError(t, err)
	defer second.Shutdown(ctx)
	assert.NoError(t, second.healthChecker.Check())
}

func TestOpenRepository(t *testing.T) {
	ctx := wavecontext.Background()
	dir := t.TempDir()
	tests := map[string]configuration.DatabaseConfig{
		"memdb":  {Type: configuration.MemDbDatabase},
		"sqlite": {Type: configuration.SqliteDatabase, Sqlite: configuration.SqliteConfig{Path: filepath.Join(dir, "wave.db")}},
		"bolt":   {Type: configuration.BoltDatabase, Bolt: configuration.BoltConfig{Path: filepath.Join(dir, "wave.bolt")}},
	}
	for name, config := range tests {
		t.Run(name, func(t *testing.T) {
			repo, err := OpenRepository(ctx, config)
			require.NoError(t, err)
			assert.NoError(t, repo.Check())
			assert.NoError(t, repo.Close())
		})
	}

	_, err := OpenRepository(ctx, configuration.DatabaseConfig{Type: "mongo"})
	assert.Error(t, err)
}
