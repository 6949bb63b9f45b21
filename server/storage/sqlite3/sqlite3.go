// Package sqlite3 implements a Sqlite-based dataset storage backend.
package sqlite3

import (
	"context"
	"database/sql"
	stderrs "errors"
	"time"

	"github.com/bobg/sqlutil"
	_ "github.com/mattn/go-sqlite3" // register the sqlite3 type for sql.Open
	"github.com/pkg/errors"

	"github.com/bobg/zdc"
	"github.com/bobg/zdc/server/storage"
)

var _ storage.Store = &Store{}

// Store is a Sqlite-based implementation of dataset storage.
type Store struct {
	db *sql.DB
}

// Schema is the SQL that New executes.
// It creates the `datasets` table if it does not exist.
// (If it does exist, it must have the columns, constraints, and indexing described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS datasets (
  uuid TEXT PRIMARY KEY NOT NULL,
  owner TEXT NOT NULL,
  name TEXT NOT NULL,
  hash TEXT NOT NULL DEFAULT '',
  static INTEGER NOT NULL DEFAULT 0,
  complete INTEGER NOT NULL DEFAULT 0,
  replaces TEXT NOT NULL DEFAULT '',
  replaced_by TEXT NOT NULL DEFAULT '',
  created TEXT NOT NULL,
  modified TEXT NOT NULL,
  data BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS static_idx ON datasets (name, hash) WHERE static;
`

// New produces a new Store using `db` for storage.
// It expects to create the table `datasets`,
// or for that table already to exist with the correct schema.
// (See variable Schema.)
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	_, err := db.ExecContext(ctx, Schema)
	return &Store{db: db}, err
}

// Get gets the entry with the given identifier.
func (s *Store) Get(ctx context.Context, uuid string) (*storage.Entry, error) {
	const q = `
		SELECT owner, name, hash, static, complete, replaces, replaced_by, created, modified, data
		FROM datasets WHERE uuid = $1`

	var (
		e                 = storage.Entry{UUID: uuid}
		created, modified string
	)
	err := s.db.QueryRowContext(ctx, q, uuid).Scan(
		&e.Owner, &e.Name, &e.Hash, &e.Static, &e.Complete,
		&e.Replaces, &e.ReplacedBy, &created, &modified, &e.Data,
	)
	if stderrs.Is(err, sql.ErrNoRows) {
		return nil, zdc.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "querying dataset %s", uuid)
	}
	return &e, parseTimes(&e, created, modified)
}

// Put stores an entry, replacing any existing one under the same identifier.
func (s *Store) Put(ctx context.Context, e *storage.Entry) error {
	const q = `
		INSERT INTO datasets (uuid, owner, name, hash, static, complete, replaces, replaced_by, created, modified, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (uuid) DO UPDATE SET
			owner = excluded.owner, name = excluded.name, hash = excluded.hash,
			static = excluded.static, complete = excluded.complete,
			replaces = excluded.replaces, replaced_by = excluded.replaced_by,
			created = excluded.created, modified = excluded.modified, data = excluded.data`

	_, err := s.db.ExecContext(ctx, q,
		e.UUID, e.Owner, e.Name, e.Hash, e.Static, e.Complete, e.Replaces, e.ReplacedBy,
		e.Created.UTC().Format(time.RFC3339), e.Modified.UTC().Format(time.RFC3339), e.Data,
	)
	return errors.Wrapf(err, "storing dataset %s", e.UUID)
}

// FindStatic gets a static entry by container-type name and content hash.
func (s *Store) FindStatic(ctx context.Context, name, hash string) (*storage.Entry, error) {
	const q = `SELECT uuid FROM datasets WHERE static AND name = $1 AND hash = $2 LIMIT 1`

	var uuid string
	err := s.db.QueryRowContext(ctx, q, name, hash).Scan(&uuid)
	if stderrs.Is(err, sql.ErrNoRows) {
		return nil, zdc.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "querying static dataset %s %s", name, hash)
	}
	return s.Get(ctx, uuid)
}

// SetReplacedBy records that an entry has been superseded.
func (s *Store) SetReplacedBy(ctx context.Context, uuid, by string) error {
	const q = `UPDATE datasets SET replaced_by = $1 WHERE uuid = $2`

	res, err := s.db.ExecContext(ctx, q, by, uuid)
	if err != nil {
		return errors.Wrapf(err, "updating dataset %s", uuid)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if aff == 0 {
		return zdc.ErrNotFound
	}
	return nil
}

// List produces all stored identifiers, in lexicographic order.
func (s *Store) List(ctx context.Context, start string, f func(string) error) error {
	const q = `SELECT uuid FROM datasets WHERE uuid > $1 ORDER BY uuid`
	return sqlutil.ForQueryRows(ctx, s.db, q, start, func(uuid string) error {
		return f(uuid)
	})
}

func parseTimes(e *storage.Entry, created, modified string) error {
	var err error
	e.Created, err = time.Parse(time.RFC3339, created)
	if err != nil {
		return errors.Wrapf(err, "parsing time %s", created)
	}
	e.Modified, err = time.Parse(time.RFC3339, modified)
	return errors.Wrapf(err, "parsing time %s", modified)
}

func init() {
	storage.Register("sqlite3", func(ctx context.Context, conf map[string]interface{}) (storage.Store, error) {
		path, ok := conf["path"].(string)
		if !ok {
			return nil, errors.New(`missing "path" parameter`)
		}
		db, err := sql.Open("sqlite3", path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", path)
		}
		return New(ctx, db)
	})
}
