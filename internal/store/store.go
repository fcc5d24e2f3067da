// Package store persists running schemas between runs so that successive
// invocations keep accumulating evidence into the same schema.
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/mcncl/schemagen/internal/errors"
	"github.com/mcncl/schemagen/internal/logging"
	"github.com/mcncl/schemagen/internal/schema"
)

// DefaultCacheSize is the number of records kept in the read cache.
const DefaultCacheSize = 128

// ErrNotFound is returned when no schema is stored under a name.
var ErrNotFound = errors.ErrSchemaNotFound

// Record is one named running schema.
type Record struct {
	Name      string
	Schema    schema.Schema
	Documents int
	UpdatedAt time.Time
}

// Store keeps records in SQLite or Postgres, fronted by an LRU cache.
// It is safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect dialect
	cache   *lru.Cache[string, Record]

	schemaOnce sync.Once
	schemaErr  error
}

// Option configures a Store.
type Option func(*options)

type options struct {
	cacheSize int
}

// WithCacheSize sets the number of cached records. Zero or less selects
// DefaultCacheSize.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// Open connects to the database named by dsn. postgres:// and postgresql://
// URLs use pgx; anything else is a SQLite path, ":memory:" included.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	o := options{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cacheSize <= 0 {
		o.cacheSize = DefaultCacheSize
	}

	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.NewStoreError("store DSN is empty", nil)
	}
	d := dialectFor(dsn)

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, errors.NewStoreError("open database", err)
	}
	if d.singleConn {
		// Every new connection to :memory: is a fresh database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.NewStoreError("connect to database", err)
	}

	cache, err := lru.New[string, Record](o.cacheSize)
	if err != nil {
		_ = db.Close()
		return nil, errors.NewStoreError("create cache", err)
	}

	s := &Store{db: db, dialect: d, cache: cache}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logging.Logger().Debug("schema store opened", "driver", d.driver)
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schemas (
  name TEXT PRIMARY KEY,
  document TEXT NOT NULL,
  documents BIGINT NOT NULL DEFAULT 0,
  updated_at BIGINT NOT NULL
)`)
		if err != nil {
			s.schemaErr = errors.NewStoreError("create schemas table", err)
		}
	})
	return s.schemaErr
}

// Get returns the record stored under name, or ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) (Record, error) {
	name = strings.TrimSpace(name)
	if rec, ok := s.cache.Get(name); ok {
		return rec, nil
	}

	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT name, document, documents, updated_at FROM schemas WHERE name = ?`), name)
	rec, err := scanRecord(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Record{}, errors.NewStoreError(fmt.Sprintf("no schema named '%s'", name), ErrNotFound)
	}
	if err != nil {
		return Record{}, err
	}
	s.cache.Add(name, rec)
	return rec, nil
}

// Put inserts or replaces the record stored under rec.Name. A zero UpdatedAt
// is set to the current time.
func (s *Store) Put(ctx context.Context, rec Record) error {
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		return errors.NewStoreError("record name is empty", nil)
	}
	if rec.Schema == nil {
		return errors.NewStoreError(fmt.Sprintf("record '%s' has no schema", rec.Name), nil)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC().Truncate(time.Second)

	doc, err := schema.NewDocument(rec.Schema).MarshalJSON()
	if err != nil {
		return errors.NewStoreError(fmt.Sprintf("encode schema '%s'", rec.Name), err)
	}

	_, err = s.db.ExecContext(ctx, s.dialect.rebind(`
INSERT INTO schemas (name, document, documents, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (name)
DO UPDATE SET document = excluded.document,
  documents = excluded.documents,
  updated_at = excluded.updated_at`),
		rec.Name, string(doc), int64(rec.Documents), rec.UpdatedAt.Unix())
	if err != nil {
		s.cache.Remove(rec.Name)
		return errors.NewStoreError(fmt.Sprintf("write schema '%s'", rec.Name), err)
	}
	s.cache.Add(rec.Name, rec)
	return nil
}

// List returns every stored record ordered by name.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, document, documents, updated_at FROM schemas ORDER BY name`)
	if err != nil {
		return nil, errors.NewStoreError("list schemas", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("list schemas", err)
	}
	return records, nil
}

// Delete removes the record stored under name, or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	s.cache.Remove(name)

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM schemas WHERE name = ?`), name)
	if err != nil {
		return errors.NewStoreError(fmt.Sprintf("delete schema '%s'", name), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewStoreError(fmt.Sprintf("delete schema '%s'", name), err)
	}
	if n == 0 {
		return errors.NewStoreError(fmt.Sprintf("no schema named '%s'", name), ErrNotFound)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.cache.Purge()
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec       Record
		document  string
		documents int64
		updated   int64
	)
	if err := row.Scan(&rec.Name, &document, &documents, &updated); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, errors.NewStoreError("read schema row", err)
	}

	root, err := schema.ParseString(document)
	if err != nil {
		return Record{}, errors.NewStoreError(fmt.Sprintf("decode schema '%s'", rec.Name),
			fmt.Errorf("%w: %v", errors.ErrInvalidSchema, err))
	}
	rec.Schema = root
	rec.Documents = int(documents)
	rec.UpdatedAt = time.Unix(updated, 0).UTC()
	return rec, nil
}
