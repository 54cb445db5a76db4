// Package sqldb stores sessions in a relational database, either a local sqlite file or postgres.
package sqldb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/cta-wave/wave/internal/wave/database"
	"github.com/cta-wave/wave/internal/wave/session"
)

const (
	DialectSqlite   = "sqlite3"
	DialectPostgres = "postgres"

	sessionsTable = "sessions"
	testsTable    = "session_tests"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		is_public INTEGER NOT NULL,
		expiration_date BIGINT,
		document TEXT NOT NULL)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_is_public ON sessions (is_public)`,
	`CREATE TABLE IF NOT EXISTS session_tests (
		token TEXT PRIMARY KEY,
		document TEXT NOT NULL)`,
}

// Repository keeps the record of a session as a JSON document, next to the columns
// sessions are filtered by.
type Repository struct {
	db   *sql.DB
	goqu *goqu.Database
}

// OpenSqlite opens, creating if needed, the sqlite database at path.
func OpenSqlite(ctx context.Context, path string) (*Repository, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "error creating directory %s for sqlite database", dir)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening sqlite database %s", path)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "error enabling sqlite write-ahead log")
	}
	return NewRepository(ctx, db, DialectSqlite)
}

// OpenPostgres connects to postgres with libpq connection parameters, e.g. host, port, user.
func OpenPostgres(ctx context.Context, connection map[string]string) (*Repository, error) {
	db, err := sql.Open("postgres", CreateConnectionString(connection))
	if err != nil {
		return nil, errors.Wrap(err, "error opening postgres connection")
	}
	return NewRepository(ctx, db, DialectPostgres)
}

// NewRepository creates the tables if they do not exist yet.
func NewRepository(ctx context.Context, db *sql.DB, dialect string) (*Repository, error) {
	for _, statement := range schema {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "error creating session tables")
		}
	}
	return &Repository{
		db:   db,
		goqu: goqu.New(dialect, db),
	}, nil
}

// CreateConnectionString turns libpq connection parameters into a key='value' string.
func CreateConnectionString(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"='"+replacer.Replace(values[k])+"'")
	}
	return strings.Join(pairs, " ")
}

func (r *Repository) GetSession(ctx context.Context, token string) (*session.Record, error) {
	var document string
	found, err := r.goqu.From(sessionsTable).
		Select("document").
		Where(goqu.C("token").Eq(token)).
		ScanValContext(ctx, &document)
	if err != nil {
		return nil, errors.Wrapf(err, "[SqlRepository.GetSession] error reading session %s", token)
	}
	if !found {
		return nil, nil
	}
	return database.UnmarshalSession([]byte(document))
}

func (r *Repository) GetSessions(ctx context.Context, filter database.SessionFilter) ([]*session.Record, error) {
	ds := r.goqu.From(sessionsTable).Select("document").Order(goqu.C("token").Asc())
	if filter.PublicOnly {
		ds = ds.Where(goqu.C("is_public").Eq(1))
	}
	if filter.WithExpirationOnly {
		ds = ds.Where(goqu.C("expiration_date").IsNotNull())
	}
	var documents []string
	if err := ds.ScanValsContext(ctx, &documents); err != nil {
		return nil, errors.Wrap(err, "[SqlRepository.GetSessions] error reading sessions")
	}
	records := make([]*session.Record, 0, len(documents))
	for _, document := range documents {
		record, err := database.UnmarshalSession([]byte(document))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *Repository) GetTokens(ctx context.Context, prefix string) ([]string, error) {
	var tokens []string
	err := r.goqu.From(sessionsTable).
		Select("token").
		Where(goqu.C("token").Like(prefix + "%")).
		ScanValsContext(ctx, &tokens)
	if err != nil {
		return nil, errors.Wrapf(err, "[SqlRepository.GetTokens] error finding tokens starting with %s", prefix)
	}
	// LIKE treats % and _ in prefix as wildcards and ignores case in sqlite.
	return database.FilterTokens(tokens, prefix), nil
}

func (r *Repository) StoreSession(ctx context.Context, record *session.Record) error {
	document, err := database.MarshalSession(record)
	if err != nil {
		return err
	}
	var expiration interface{}
	if record.ExpirationDate != nil {
		expiration = record.ExpirationDate.UnixMilli()
	}
	isPublic := 0
	if record.IsPublic {
		isPublic = 1
	}
	row := goqu.Record{
		"token":           record.Token,
		"status":          string(record.Status),
		"is_public":       isPublic,
		"expiration_date": expiration,
		"document":        string(document),
	}
	err = r.replace(ctx, sessionsTable, record.Token, row)
	return errors.WithMessagef(err, "[SqlRepository.StoreSession] error writing session %s", record.Token)
}

func (r *Repository) DeleteSession(ctx context.Context, token string) error {
	err := r.delete(ctx, sessionsTable, token)
	return errors.WithMessagef(err, "[SqlRepository.DeleteSession] error deleting session %s", token)
}

func (r *Repository) GetTestLists(ctx context.Context, token string) (*session.TestListsRecord, error) {
	var document string
	found, err := r.goqu.From(testsTable).
		Select("document").
		Where(goqu.C("token").Eq(token)).
		ScanValContext(ctx, &document)
	if err != nil {
		return nil, errors.Wrapf(err, "[SqlRepository.GetTestLists] error reading test lists of session %s", token)
	}
	if !found {
		return nil, nil
	}
	return database.UnmarshalTestLists([]byte(document))
}

func (r *Repository) StoreTestLists(ctx context.Context, record *session.TestListsRecord) error {
	document, err := database.MarshalTestLists(record)
	if err != nil {
		return err
	}
	err = r.replace(ctx, testsTable, record.Token, goqu.Record{
		"token":    record.Token,
		"document": string(document),
	})
	return errors.WithMessagef(err, "[SqlRepository.StoreTestLists] error writing test lists of session %s", record.Token)
}

func (r *Repository) DeleteTestLists(ctx context.Context, token string) error {
	err := r.delete(ctx, testsTable, token)
	return errors.WithMessagef(err, "[SqlRepository.DeleteTestLists] error deleting test lists of session %s", token)
}

func (r *Repository) Check() error {
	return errors.Wrap(r.db.Ping(), "[SqlRepository.Check] database is unreachable")
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// replace deletes and inserts in one transaction, which both dialects support.
func (r *Repository) replace(ctx context.Context, table string, token string, row goqu.Record) error {
	return r.goqu.WithTx(func(tx *goqu.TxDatabase) error {
		if _, err := tx.Delete(table).Where(goqu.C("token").Eq(token)).Executor().ExecContext(ctx); err != nil {
			return errors.WithStack(err)
		}
		if _, err := tx.Insert(table).Rows(row).Executor().ExecContext(ctx); err != nil {
			return errors.WithStack(err)
		}
		return nil
	})
}

func (r *Repository) delete(ctx context.Context, table string, token string) error {
	_, err := r.goqu.Delete(table).Where(goqu.C("token").Eq(token)).Executor().ExecContext(ctx)
	return errors.WithStack(err)
}
