package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cta-wave/wave/internal/wave/database"
	"github.com/cta-wave/wave/internal/wave/database/databasetest"
)

func TestRepository(t *testing.T) {
	databasetest.RunRepositoryTests(t, func(t *testing.T) database.Repository {
		repo, err := Open(filepath.Join(t.TempDir(), "wave.bolt"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	})
}

func TestRepository_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wave.bolt")
	ctx := context.Background()

	repo, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, repo.StoreSession(ctx, databasetest.Record(databasetest.TokenB)))
	require.NoError(t, repo.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	record, err := reopened.GetSession(ctx, databasetest.TokenB)
	require.NoError(t, err)
	assert.Equal(t, databasetest.Record(databasetest.TokenB), record)
}

func TestRepository_CheckFailsWhenClosed(t *testing.T) {
	repo, err := Open(filepath.Join(t.TempDir(), "wave.bolt"))
	require.NoError(t, err)
	require.NoError(t, repo.Close())
	assert.Error(t, repo.Check())
}
