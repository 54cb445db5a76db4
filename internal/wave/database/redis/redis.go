package redis

import (
	"context"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"

	"github.com/cta-wave/wave/internal/wave/database"
	"github.com/cta-wave/wave/internal/wave/session"
)

const (
	sessionHashKey   = "Session"
	testListsHashKey = "SessionTests"
)

// Repository keeps each collection in one redis hash keyed by session token.
type Repository struct {
	db redis.UniversalClient
}

func NewRepository(db redis.UniversalClient) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetSession(_ context.Context, token string) (*session.Record, error) {
	raw, err := r.db.HGet(sessionHashKey, token).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "[RedisRepository.GetSession] error reading session %s from database", token)
	}
	return database.UnmarshalSession(raw)
}

func (r *Repository) GetSessions(_ context.Context, filter database.SessionFilter) ([]*session.Record, error) {
	result, err := r.db.HGetAll(sessionHashKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[RedisRepository.GetSessions] error reading sessions from database")
	}
	records := make([]*session.Record, 0, len(result))
	for _, raw := range result {
		record, err := database.UnmarshalSession([]byte(raw))
		if err != nil {
			return nil, err
		}
		if filter.Matches(record) {
			records = append(records, record)
		}
	}
	return records, nil
}

func (r *Repository) GetTokens(_ context.Context, prefix string) ([]string, error) {
	tokens, err := r.db.HKeys(sessionHashKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[RedisRepository.GetTokens] error reading tokens from database")
	}
	return database.FilterTokens(tokens, prefix), nil
}

func (r *Repository) StoreSession(_ context.Context, record *session.Record) error {
	raw, err := database.MarshalSession(record)
	if err != nil {
		return err
	}
	if err := r.db.HSet(sessionHashKey, record.Token, raw).Err(); err != nil {
		return errors.Wrapf(err, "[RedisRepository.StoreSession] error writing session %s to database", record.Token)
	}
	return nil
}

func (r *Repository) DeleteSession(_ context.Context, token string) error {
	if err := r.db.HDel(sessionHashKey, token).Err(); err != nil {
		return errors.Wrapf(err, "[RedisRepository.DeleteSession] error deleting session %s from database", token)
	}
	return nil
}

func (r *Repository) GetTestLists(_ context.Context, token string) (*session.TestListsRecord, error) {
	raw, err := r.db.HGet(testListsHashKey, token).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "[RedisRepository.GetTestLists] error reading test lists of session %s from database", token)
	}
	return database.UnmarshalTestLists(raw)
}

func (r *Repository) StoreTestLists(_ context.Context, record *session.TestListsRecord) error {
	raw, err := database.MarshalTestLists(record)
	if err != nil {
		return err
	}
	if err := r.db.HSet(testListsHashKey, record.Token, raw).Err(); err != nil {
		return errors.Wrapf(err, "[RedisRepository.StoreTestLists] error writing test lists of session %s to database", record.Token)
	}
	return nil
}

func (r *Repository) DeleteTestLists(_ context.Context, token string) error {
	if err := r.db.HDel(testListsHashKey, token).Err(); err != nil {
		return errors.Wrapf(err, "[RedisRepository.DeleteTestLists] error deleting test lists of session %s from database", token)
	}
	return nil
}

func (r *Repository) Check() error {
	return errors.Wrap(r.db.Ping().Err(), "[RedisRepository.Check] redis is unreachable")
}

func (r *Repository) Close() error {
	return r.db.Close()
}
