// Package bolt stores sessions in a single bbolt file, for deployments without a
// database server.
package bolt

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/cta-wave/wave/internal/wave/database"
	"github.com/cta-wave/wave/internal/wave/session"
)

var (
	sessionsBucket = []byte("sessions")
	testsBucket    = []byte("session_tests")
)

// Repository keeps one bucket per collection, keyed by session token.
type Repository struct {
	db *bbolt.DB
}

// Open opens, creating if needed, the bbolt file at path. bbolt locks the file, so
// only one process may have it open.
func Open(path string) (*Repository, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "error creating directory %s for bolt database", dir)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "error opening bolt database %s", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{sessionsBucket, testsBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "error creating bolt buckets")
	}
	return &Repository{db: db}, nil
}

func (r *Repository) GetSession(_ context.Context, token string) (*session.Record, error) {
	var record *session.Record
	err := r.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(sessionsBucket).Get([]byte(token))
		if raw == nil {
			return nil
		}
		var err error
		record, err = database.UnmarshalSession(raw)
		return err
	})
	return record, errors.WithMessagef(err, "[BoltRepository.GetSession] error reading session %s", token)
}

func (r *Repository) GetSessions(_ context.Context, filter database.SessionFilter) ([]*session.Record, error) {
	records := []*session.Record{}
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionsBucket).ForEach(func(_, raw []byte) error {
			record, err := database.UnmarshalSession(raw)
			if err != nil {
				return err
			}
			if filter.Matches(record) {
				records = append(records, record)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.WithMessage(err, "[BoltRepository.GetSessions] error reading sessions")
	}
	return records, nil
}

func (r *Repository) GetTokens(_ context.Context, prefix string) ([]string, error) {
	tokens := []string{}
	err := r.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(sessionsBucket).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			tokens = append(tokens, string(k))
		}
		return nil
	})
	return tokens, errors.WithMessagef(err, "[BoltRepository.GetTokens] error finding tokens starting with %s", prefix)
}

func (r *Repository) StoreSession(_ context.Context, record *session.Record) error {
	raw, err := database.MarshalSession(record)
	if err != nil {
		return err
	}
	err = r.put(sessionsBucket, record.Token, raw)
	return errors.WithMessagef(err, "[BoltRepository.StoreSession] error writing session %s", record.Token)
}

func (r *Repository) DeleteSession(_ context.Context, token string) error {
	err := r.delete(sessionsBucket, token)
	return errors.WithMessagef(err, "[BoltRepository.DeleteSession] error deleting session %s", token)
}

func (r *Repository) GetTestLists(_ context.Context, token string) (*session.TestListsRecord, error) {
	var record *session.TestListsRecord
	err := r.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(testsBucket).Get([]byte(token))
		if raw == nil {
			return nil
		}
		var err error
		record, err = database.UnmarshalTestLists(raw)
		return err
	})
	return record, errors.WithMessagef(err, "[BoltRepository.GetTestLists] error reading test lists of session %s", token)
}

func (r *Repository) StoreTestLists(_ context.Context, record *session.TestListsRecord) error {
	raw, err := database.MarshalTestLists(record)
	if err != nil {
		return err
	}
	err = r.put(testsBucket, record.Token, raw)
	return errors.WithMessagef(err, "[BoltRepository.StoreTestLists] error writing test lists of session %s", record.Token)
}

func (r *Repository) DeleteTestLists(_ context.Context, token string) error {
	err := r.delete(testsBucket, token)
	return errors.WithMessagef(err, "[BoltRepository.DeleteTestLists] error deleting test lists of session %s", token)
}

func (r *Repository) Check() error {
	return r.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(sessionsBucket) == nil || tx.Bucket(testsBucket) == nil {
			return errors.New("[BoltRepository.Check] buckets are missing")
		}
		return nil
	})
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) put(bucket []byte, token string, raw []byte) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		return errors.WithStack(tx.Bucket(bucket).Put([]byte(token), raw))
	})
}

func (r *Repository) delete(bucket []byte, token string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		return errors.WithStack(tx.Bucket(bucket).Delete([]byte(token)))
	})
}
