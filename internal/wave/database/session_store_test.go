package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cta-wave/wave/internal/common/broker"
	"github.com/cta-wave/wave/internal/wave/database"
	"github.com/cta-wave/wave/internal/wave/database/databasetest"
	"github.com/cta-wave/wave/internal/wave/database/memdb"
	"github.com/cta-wave/wave/internal/wave/session"
)

var now = time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T, config broker.Config) (*database.SessionStore, *memdb.Repository) {
	repo, err := memdb.NewRepository()
	require.NoError(t, err)
	b, err := broker.New(config)
	require.NoError(t, err)
	return database.NewSessionStore(repo, repo, b), repo
}

func defaultBrokerConfig() broker.Config {
	return broker.Config{Name: "test", MaxJobs: 1, MaxGroupJobs: 5}
}

func runningSession(token string) *session.Session {
	s := session.New(token)
	s.Types = []session.TestType{session.TestTypeAutomatic}
	s.SetPendingTests(session.TestList{"dom": {"/dom/a.html", "/dom/b.html"}})
	s.Start(now)
	s.DispatchTest("dom", "/dom/a.html")
	return s
}

func TestSessionStore_CreateAndRead(t *testing.T) {
	ctx := context.Background()
	store, repo := newStore(t, defaultBrokerConfig())
	sess := runningSession(databasetest.TokenA)
	require.NoError(t, store.Create(ctx, sess))

	record, err := repo.GetSession(ctx, databasetest.TokenA)
	require.NoError(t, err)
	assert.Nil(t, record.PendingTests)
	assert.Nil(t, record.RunningTests)

	lists, err := repo.GetTestLists(ctx, databasetest.TokenA)
	require.NoError(t, err)
	assert.Equal(t, session.TestList{"dom": {"/dom/b.html"}}, lists.PendingTests)
	assert.Equal(t, session.TestList{"dom": {"/dom/a.html"}}, lists.RunningTests)

	read, err := store.Read(ctx, databasetest.TokenA)
	require.NoError(t, err)
	assert.Equal(t, sess.PendingTests, read.PendingTests)
	assert.Equal(t, sess.RunningTests, read.RunningTests)
	assert.Equal(t, session.StatusRunning, read.Status)
	assert.True(t, now.Equal(*read.DateStarted))
}

func TestSessionStore_ReadMissing(t *testing.T) {
	store, _ := newStore(t, defaultBrokerConfig())
	read, err := store.Read(context.Background(), databasetest.TokenA)
	require.NoError(t, err)
	assert.Nil(t, read)
}

func TestSessionStore_UpdateTestListsLeavesMainRecord(t *testing.T) {
	ctx := context.Background()
	store, repo := newStore(t, defaultBrokerConfig())
	sess := runningSession(databasetest.TokenA)
	require.NoError(t, store.Create(ctx, sess))

	sess.CompleteTest("dom", "/dom/a.html")
	require.NoError(t, store.UpdateTestLists(ctx, sess))

	record, err := repo.GetSession(ctx, databasetest.TokenA)
	require.NoError(t, err)
	assert.Equal(t, 0, record.TestFilesCompletedCount["dom"])

	read, err := store.Read(ctx, databasetest.TokenA)
	require.NoError(t, err)
	assert.Equal(t, session.TestList{"dom": {"/dom/a.html"}}, read.CompletedTests)
	assert.True(t, read.RunningTests.IsEmpty())
}

func TestSessionStore_FinishedSessionUsesEmbeddedLists(t *testing.T) {
	ctx := context.Background()
	store, repo := newStore(t, defaultBrokerConfig())
	sess := runningSession(databasetest.TokenA)
	require.NoError(t, store.Create(ctx, sess))

	sess.CompleteTest("dom", "/dom/a.html")
	sess.CompleteTest("dom", "/dom/b.html")
	sess.Complete(now.Add(time.Hour))
	require.NoError(t, store.UpdateTestLists(ctx, sess))

	record, err := repo.GetSession(ctx, databasetest.TokenA)
	require.NoError(t, err)
	assert.Equal(t, session.TestList{"dom": {"/dom/a.html", "/dom/b.html"}}, record.CompletedTests)

	// The separate record is stale and must be ignored.
	stale, err := repo.GetTestLists(ctx, databasetest.TokenA)
	require.NoError(t, err)
	assert.Equal(t, session.TestList{"dom": {"/dom/a.html"}}, stale.RunningTests)

	read, err := store.Read(ctx, databasetest.TokenA)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, read.Status)
	assert.True(t, read.RunningTests.IsEmpty())
	assert.Equal(t, session.TestList{"dom": {"/dom/a.html", "/dom/b.html"}}, read.CompletedTests)
}

func TestSessionStore_ReadFilters(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t, defaultBrokerConfig())

	public := runningSession(databasetest.TokenA)
	public.IsPublic = true
	expiring := session.New(databasetest.TokenB)
	expiry := now.Add(time.Hour)
	expiring.ExpirationDate = &expiry
	plain := runningSession(databasetest.TokenC)
	for _, s := range []*session.Session{public, expiring, plain} {
		require.NoError(t, store.Create(ctx, s))
	}

	all, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	publicOnly, err := store.ReadPublic(ctx)
	require.NoError(t, err)
	require.Len(t, publicOnly, 1)
	assert.Equal(t, databasetest.TokenA, publicOnly[0].Token)
	assert.Equal(t, public.RunningTests, publicOnly[0].RunningTests)

	withExpiry, err := store.ReadExpiring(ctx)
	require.NoError(t, err)
	require.Len(t, withExpiry, 1)
	assert.Equal(t, databasetest.TokenB, withExpiry[0].Token)

	tokens, err := store.FindTokens(ctx, "a1b2c3d4")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{databasetest.TokenA, databasetest.TokenB}, tokens)
}

func TestSessionStore_DeleteRemovesTestLists(t *testing.T) {
	ctx := context.Background()
	store, repo := newStore(t, defaultBrokerConfig())
	require.NoError(t, store.Create(ctx, runningSession(databasetest.TokenA)))
	require.NoError(t, store.Delete(ctx, databasetest.TokenA))

	record, err := repo.GetSession(ctx, databasetest.TokenA)
	require.NoError(t, err)
	assert.Nil(t, record)
	lists, err := repo.GetTestLists(ctx, databasetest.TokenA)
	require.NoError(t, err)
	assert.Nil(t, lists)
}

func TestSessionStore_ReadsShareTheReadGroup(t *testing.T) {
	ctx := context.Background()
	repo, err := memdb.NewRepository()
	require.NoError(t, err)
	b, err := broker.New(broker.Config{Name: "test", MaxJobs: 2, MaxGroupJobs: 1})
	require.NoError(t, err)
	store := database.NewSessionStore(repo, repo, b)

	release := make(chan struct{})
	started := make(chan struct{})
	future := broker.Go(ctx, b, database.ReadGroup, func(ctx context.Context) (struct{}, error) {
		close(started)
		<-release
		return struct{}{}, nil
	})
	<-started

	// Writes are not limited by the read group.
	require.NoError(t, store.Create(ctx, runningSession(databasetest.TokenA)))

	readCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = store.Read(readCtx, databasetest.TokenA)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	_, err = future.Await(ctx)
	require.NoError(t, err)
	read, err := store.Read(ctx, databasetest.TokenA)
	require.NoError(t, err)
	assert.NotNil(t, read)
}

func TestSessionStore_StoreErrorIsReturned(t *testing.T) {
	repo, err := memdb.NewRepository()
	require.NoError(t, err)
	b, err := broker.New(defaultBrokerConfig())
	require.NoError(t, err)
	failure := errors.New("disk full")
	store := database.NewSessionStore(repo, failingTestLists{err: failure}, b)

	err = store.Create(context.Background(), runningSession(databasetest.TokenA))
	assert.ErrorIs(t, err, failure)
	assert.Contains(t, err.Error(), "[SessionStore.Update]")
}

type failingTestLists struct {
	err error
}

func (f failingTestLists) GetTestLists(context.Context, string) (*session.TestListsRecord, error) {
	return nil, f.err
}

func (f failingTestLists) StoreTestLists(context.Context, *session.TestListsRecord) error {
	return f.err
}

func (f failingTestLists) DeleteTestLists(context.Context, string) error {
	return f.err
}
