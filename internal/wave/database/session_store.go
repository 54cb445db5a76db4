package database

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cta-wave/wave/internal/common/broker"
	"github.com/cta-wave/wave/internal/wave/session"
)

// ReadGroup is the broker group of every read. Reads have their own ceiling on top of
// the broker's global one.
const ReadGroup = "read"

// SessionStore persists sessions through a broker so that concurrent requests never
// interleave their reads and writes.
//
// The test lists of an unfinished session change on every dispatch and result, and can
// hold thousands of ids, so they are kept in a record of their own and the main record
// stays small. Once the session finishes the lists are embedded into the main record
// and the separate record is no longer read.
type SessionStore struct {
	sessions SessionRepository
	tests    TestListRepository
	broker   *broker.Broker
}

func NewSessionStore(sessions SessionRepository, tests TestListRepository, broker *broker.Broker) *SessionStore {
	return &SessionStore{
		sessions: sessions,
		tests:    tests,
		broker:   broker,
	}
}

// Create stores a new session.
func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	return s.Update(ctx, sess)
}

// Update stores the whole session. The test lists go to their own record while the
// session is unfinished.
func (s *SessionStore) Update(ctx context.Context, sess *session.Session) error {
	record := session.ToRecord(sess)
	var lists *session.TestListsRecord
	if !sess.IsTerminal() {
		lists = session.ToTestListsRecord(sess)
	}
	return s.broker.Run(ctx, broker.NoGroup, func(ctx context.Context) error {
		if err := s.sessions.StoreSession(ctx, record); err != nil {
			return errors.WithMessagef(err, "[SessionStore.Update] error storing session %s", record.Token)
		}
		if lists == nil {
			return nil
		}
		if err := s.tests.StoreTestLists(ctx, lists); err != nil {
			return errors.WithMessagef(err, "[SessionStore.Update] error storing test lists of session %s", record.Token)
		}
		return nil
	})
}

// UpdateTestLists stores only the test lists of an unfinished session. Finished sessions
// are written with Update.
func (s *SessionStore) UpdateTestLists(ctx context.Context, sess *session.Session) error {
	if sess.IsTerminal() {
		return s.Update(ctx, sess)
	}
	lists := session.ToTestListsRecord(sess)
	return s.broker.Run(ctx, broker.NoGroup, func(ctx context.Context) error {
		if err := s.tests.StoreTestLists(ctx, lists); err != nil {
			return errors.WithMessagef(err, "[SessionStore.UpdateTestLists] error storing test lists of session %s", lists.Token)
		}
		return nil
	})
}

// Read returns the session stored under token, or nil if there is none.
func (s *SessionStore) Read(ctx context.Context, token string) (*session.Session, error) {
	return broker.Submit(ctx, s.broker, ReadGroup, func(ctx context.Context) (*session.Session, error) {
		record, err := s.sessions.GetSession(ctx, token)
		if err != nil {
			return nil, errors.WithMessagef(err, "[SessionStore.Read] error reading session %s", token)
		}
		if record == nil {
			return nil, nil
		}
		return s.assemble(ctx, record)
	})
}

// ReadAll returns every stored session.
func (s *SessionStore) ReadAll(ctx context.Context) ([]*session.Session, error) {
	return s.readMany(ctx, SessionFilter{})
}

// ReadPublic returns the sessions marked public.
func (s *SessionStore) ReadPublic(ctx context.Context) ([]*session.Session, error) {
	return s.readMany(ctx, SessionFilter{PublicOnly: true})
}

// ReadExpiring returns the sessions that have an expiration date.
func (s *SessionStore) ReadExpiring(ctx context.Context) ([]*session.Session, error) {
	return s.readMany(ctx, SessionFilter{WithExpirationOnly: true})
}

// FindTokens returns the tokens that start with fragment.
func (s *SessionStore) FindTokens(ctx context.Context, fragment string) ([]string, error) {
	return broker.Submit(ctx, s.broker, ReadGroup, func(ctx context.Context) ([]string, error) {
		tokens, err := s.sessions.GetTokens(ctx, fragment)
		if err != nil {
			return nil, errors.WithMessagef(err, "[SessionStore.FindTokens] error finding tokens starting with %s", fragment)
		}
		return tokens, nil
	})
}

// Delete removes the session and its test lists.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return s.broker.Run(ctx, broker.NoGroup, func(ctx context.Context) error {
		if err := s.tests.DeleteTestLists(ctx, token); err != nil {
			return errors.WithMessagef(err, "[SessionStore.Delete] error deleting test lists of session %s", token)
		}
		if err := s.sessions.DeleteSession(ctx, token); err != nil {
			return errors.WithMessagef(err, "[SessionStore.Delete] error deleting session %s", token)
		}
		return nil
	})
}

func (s *SessionStore) readMany(ctx context.Context, filter SessionFilter) ([]*session.Session, error) {
	return broker.Submit(ctx, s.broker, ReadGroup, func(ctx context.Context) ([]*session.Session, error) {
		records, err := s.sessions.GetSessions(ctx, filter)
		if err != nil {
			return nil, errors.WithMessage(err, "[SessionStore.readMany] error reading sessions")
		}
		sessions := make([]*session.Session, 0, len(records))
		for _, record := range records {
			sess, err := s.assemble(ctx, record)
			if err != nil {
				return nil, err
			}
			sessions = append(sessions, sess)
		}
		return sessions, nil
	})
}

func (s *SessionStore) assemble(ctx context.Context, record *session.Record) (*session.Session, error) {
	if record.Status.IsTerminal() {
		return session.FromRecord(record, nil), nil
	}
	lists, err := s.tests.GetTestLists(ctx, record.Token)
	if err != nil {
		return nil, errors.WithMessagef(err, "[SessionStore] error reading test lists of session %s", record.Token)
	}
	return session.FromRecord(record, lists), nil
}
