package database

import (
	"context"
	"strings"

	"github.com/cta-wave/wave/internal/wave/session"
)

// SessionFilter narrows a listing of session records. The zero value matches everything.
type SessionFilter struct {
	PublicOnly         bool
	WithExpirationOnly bool
}

func (f SessionFilter) Matches(r *session.Record) bool {
	if f.PublicOnly && !r.IsPublic {
		return false
	}
	if f.WithExpirationOnly && r.ExpirationDate == nil {
		return false
	}
	return true
}

// SessionRepository stores the main record of each session.
// Get methods return nil, nil when nothing is stored under the token.
type SessionRepository interface {
	GetSession(ctx context.Context, token string) (*session.Record, error)
	GetSessions(ctx context.Context, filter SessionFilter) ([]*session.Record, error)
	// GetTokens returns the tokens that start with prefix.
	GetTokens(ctx context.Context, prefix string) ([]string, error)
	// StoreSession inserts or replaces the record with the same token.
	StoreSession(ctx context.Context, record *session.Record) error
	DeleteSession(ctx context.Context, token string) error
}

// TestListRepository stores the test lists of unfinished sessions, one record per token.
type TestListRepository interface {
	GetTestLists(ctx context.Context, token string) (*session.TestListsRecord, error)
	StoreTestLists(ctx context.Context, record *session.TestListsRecord) error
	DeleteTestLists(ctx context.Context, token string) error
}

// Repository is implemented by each storage backend.
type Repository interface {
	SessionRepository
	TestListRepository
	// Check reports whether the backend is reachable.
	Check() error
	Close() error
}

// FilterTokens returns the tokens that start with prefix. Backends whose own prefix
// matching is approximate use it to finish the job.
func FilterTokens(tokens []string, prefix string) []string {
	matching := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if strings.HasPrefix(token, prefix) {
			matching = append(matching, token)
		}
	}
	return matching
}
