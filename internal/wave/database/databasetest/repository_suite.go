// Package databasetest holds the behaviour every storage backend must share, as a test
// suite each backend runs against itself.
package databasetest

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cta-wave/wave/internal/wave/database"
	"github.com/cta-wave/wave/internal/wave/session"
)

const (
	TokenA = "a1b2c3d4-0000-11ed-9b6a-0242ac120002"
	TokenB = "a1b2c3d4-1111-11ed-9b6a-0242ac120002"
	TokenC = "ffee0011-2222-11ed-9b6a-0242ac120002"
)

var created = time.Date(2023, 3, 1, 10, 0, 0, 0, time.UTC)

// Record returns a record of a pending session.
func Record(token string) *session.Record {
	s := session.New(token)
	s.Tests = session.TestFilter{Include: []string{"/"}}
	s.Types = []session.TestType{session.TestTypeAutomatic, session.TestTypeManual}
	s.Timeouts = map[string]time.Duration{session.AutomaticTimeoutKey: time.Minute}
	s.SetPendingTests(session.TestList{"dom": {"/dom/a.html", "/dom/b.html"}})
	return session.ToRecord(s)
}

// TestLists returns a test lists record with one running test.
func TestLists(token string) *session.TestListsRecord {
	return &session.TestListsRecord{
		Token:               token,
		PendingTests:        session.TestList{"dom": {"/dom/b.html"}},
		RunningTests:        session.TestList{"dom": {"/dom/a.html"}},
		CompletedTests:      session.TestList{},
		MalfunctioningTests: session.TestList{},
	}
}

// RunRepositoryTests checks a backend against the Repository contract. newRepository
// must return an empty repository each time it is called.
func RunRepositoryTests(t *testing.T, newRepository func(t *testing.T) database.Repository) {
	ctx := context.Background()

	t.Run("get missing session", func(t *testing.T) {
		repo := newRepository(t)
		record, err := repo.GetSession(ctx, TokenA)
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("store and get session", func(t *testing.T) {
		repo := newRepository(t)
		expected := Record(TokenA)
		require.NoError(t, repo.StoreSession(ctx, expected))

		record, err := repo.GetSession(ctx, TokenA)
		require.NoError(t, err)
		assert.Equal(t, expected, record)
	})

	t.Run("store replaces session", func(t *testing.T) {
		repo := newRepository(t)
		require.NoError(t, repo.StoreSession(ctx, Record(TokenA)))
		updated := Record(TokenA)
		updated.Status = session.StatusRunning
		updated.Labels = []string{"nightly"}
		require.NoError(t, repo.StoreSession(ctx, updated))

		record, err := repo.GetSession(ctx, TokenA)
		require.NoError(t, err)
		assert.Equal(t, updated, record)

		all, err := repo.GetSessions(ctx, database.SessionFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("get sessions with filters", func(t *testing.T) {
		repo := newRepository(t)
		public := Record(TokenA)
		public.IsPublic = true
		expiring := Record(TokenB)
		expiry := created.Add(time.Hour)
		expiring.ExpirationDate = &expiry
		plain := Record(TokenC)
		for _, r := range []*session.Record{public, expiring, plain} {
			require.NoError(t, repo.StoreSession(ctx, r))
		}

		all, err := repo.GetSessions(ctx, database.SessionFilter{})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{TokenA, TokenB, TokenC}, tokensOf(all))

		publicOnly, err := repo.GetSessions(ctx, database.SessionFilter{PublicOnly: true})
		require.NoError(t, err)
		assert.Equal(t, []string{TokenA}, tokensOf(publicOnly))

		withExpiration, err := repo.GetSessions(ctx, database.SessionFilter{WithExpirationOnly: true})
		require.NoError(t, err)
		require.Equal(t, []string{TokenB}, tokensOf(withExpiration))
		assert.True(t, expiry.Equal(*withExpiration[0].ExpirationDate))
	})

	t.Run("get sessions when empty", func(t *testing.T) {
		repo := newRepository(t)
		all, err := repo.GetSessions(ctx, database.SessionFilter{})
		require.NoError(t, err)
		assert.NotNil(t, all)
		assert.Empty(t, all)
	})

	t.Run("get tokens by prefix", func(t *testing.T) {
		repo := newRepository(t)
		for _, token := range []string{TokenA, TokenB, TokenC} {
			require.NoError(t, repo.StoreSession(ctx, Record(token)))
		}

		tokens, err := repo.GetTokens(ctx, "a1b2c3d4")
		require.NoError(t, err)
		sort.Strings(tokens)
		assert.Equal(t, []string{TokenA, TokenB}, tokens)

		tokens, err = repo.GetTokens(ctx, "a1b2c3d4-1")
		require.NoError(t, err)
		assert.Equal(t, []string{TokenB}, tokens)

		tokens, err = repo.GetTokens(ctx, "a1b2c3d4_%")
		require.NoError(t, err)
		assert.Empty(t, tokens)
	})

	t.Run("delete session", func(t *testing.T) {
		repo := newRepository(t)
		require.NoError(t, repo.StoreSession(ctx, Record(TokenA)))
		require.NoError(t, repo.StoreSession(ctx, Record(TokenB)))
		require.NoError(t, repo.DeleteSession(ctx, TokenA))
		require.NoError(t, repo.DeleteSession(ctx, TokenC))

		record, err := repo.GetSession(ctx, TokenA)
		require.NoError(t, err)
		assert.Nil(t, record)
		record, err = repo.GetSession(ctx, TokenB)
		require.NoError(t, err)
		assert.NotNil(t, record)
	})

	t.Run("test lists", func(t *testing.T) {
		repo := newRepository(t)
		lists, err := repo.GetTestLists(ctx, TokenA)
		require.NoError(t, err)
		assert.Nil(t, lists)

		expected := TestLists(TokenA)
		require.NoError(t, repo.StoreTestLists(ctx, expected))
		lists, err = repo.GetTestLists(ctx, TokenA)
		require.NoError(t, err)
		assert.Equal(t, expected, lists)

		expected.RunningTests = session.TestList{}
		expected.CompletedTests = session.TestList{"dom": {"/dom/a.html"}}
		require.NoError(t, repo.StoreTestLists(ctx, expected))
		lists, err = repo.GetTestLists(ctx, TokenA)
		require.NoError(t, err)
		assert.Equal(t, expected, lists)

		require.NoError(t, repo.DeleteTestLists(ctx, TokenA))
		lists, err = repo.GetTestLists(ctx, TokenA)
		require.NoError(t, err)
		assert.Nil(t, lists)
	})

	t.Run("check", func(t *testing.T) {
		assert.NoError(t, newRepository(t).Check())
	})
}

func tokensOf(records []*session.Record) []string {
	tokens := make([]string, 0, len(records))
	for _, r := range records {
		tokens = append(tokens, r.Token)
	}
	return tokens
}
