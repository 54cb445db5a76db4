// Package memdb keeps sessions in process memory, for tests and single-node setups
// that do not need sessions to survive a restart.
package memdb

import (
	"context"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/cta-wave/wave/internal/wave/database"
	"github.com/cta-wave/wave/internal/wave/session"
)

const (
	sessionsTable = "sessions"
	testsTable    = "tests"
	idIndex       = "id"     // lookup by token, and by token prefix through id_prefix
	publicIndex   = "public" // lookup of public sessions
)

type sessionRow struct {
	Token    string
	Public   bool
	Document []byte
}

type testListsRow struct {
	Token    string
	Document []byte
}

// Repository stores JSON documents in go-memdb tables. Rows are never modified in place.
type Repository struct {
	db *memdb.MemDB
}

func NewRepository() (*Repository, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Repository{db: db}, nil
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			sessionsTable: {
				Name: sessionsTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Token"},
					},
					publicIndex: {
						Name:    publicIndex,
						Unique:  false,
						Indexer: &memdb.BoolFieldIndex{Field: "Public"},
					},
				},
			},
			testsTable: {
				Name: testsTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Token"},
					},
				},
			},
		},
	}
}

func (r *Repository) GetSession(_ context.Context, token string) (*session.Record, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()
	obj, err := txn.First(sessionsTable, idIndex, token)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if obj == nil {
		return nil, nil
	}
	return database.UnmarshalSession(obj.(*sessionRow).Document)
}

func (r *Repository) GetSessions(_ context.Context, filter database.SessionFilter) ([]*session.Record, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()
	var it memdb.ResultIterator
	var err error
	if filter.PublicOnly {
		it, err = txn.Get(sessionsTable, publicIndex, true)
	} else {
		it, err = txn.Get(sessionsTable, idIndex)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	records := []*session.Record{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		record, err := database.UnmarshalSession(obj.(*sessionRow).Document)
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
	txn := r.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(sessionsTable, idIndex+"_prefix", prefix)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	tokens := []string{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		tokens = append(tokens, obj.(*sessionRow).Token)
	}
	return tokens, nil
}

func (r *Repository) StoreSession(_ context.Context, record *session.Record) error {
	document, err := database.MarshalSession(record)
	if err != nil {
		return err
	}
	return r.write(sessionsTable, &sessionRow{Token: record.Token, Public: record.IsPublic, Document: document})
}

func (r *Repository) DeleteSession(_ context.Context, token string) error {
	return r.delete(sessionsTable, token)
}

func (r *Repository) GetTestLists(_ context.Context, token string) (*session.TestListsRecord, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()
	obj, err := txn.First(testsTable, idIndex, token)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if obj == nil {
		return nil, nil
	}
	return database.UnmarshalTestLists(obj.(*testListsRow).Document)
}

func (r *Repository) StoreTestLists(_ context.Context, record *session.TestListsRecord) error {
	document, err := database.MarshalTestLists(record)
	if err != nil {
		return err
	}
	return r.write(testsTable, &testListsRow{Token: record.Token, Document: document})
}

func (r *Repository) DeleteTestLists(_ context.Context, token string) error {
	return r.delete(testsTable, token)
}

func (r *Repository) Check() error {
	return nil
}

func (r *Repository) Close() error {
	return nil
}

func (r *Repository) write(table string, row interface{}) error {
	txn := r.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(table, row); err != nil {
		return errors.WithStack(err)
	}
	txn.Commit()
	return nil
}

func (r *Repository) delete(table string, token string) error {
	txn := r.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(table, idIndex, token); err != nil {
		return errors.WithStack(err)
	}
	txn.Commit()
	return nil
}
