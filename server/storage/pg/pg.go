// Package pg implements a Postgresql-based dataset storage backend.
package pg

import (
	"context"
	"database/sql"
	stderrs "errors"

	"github.com/bobg/sqlutil"
	_ "github.com/lib/pq" // register the postgres type for sql.Open
	"github.com/pkg/errors"

	"github.com/bobg/zdc"
	"github.com/bobg/zdc/server/storage"
)

var _ storage.Store = &Store{}

// Store is a Postgresql-based implementation of dataset storage.
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
  static BOOLEAN NOT NULL DEFAULT FALSE,
  complete BOOLEAN NOT NULL DEFAULT FALSE,
  replaces TEXT NOT NULL DEFAULT '',
  replaced_by TEXT NOT NULL DEFAULT '',
  created TIMESTAMP WITH TIME ZONE NOT NULL,
  modified TIMESTAMP WITH TIME ZONE NOT NULL,
  data BYTEA NOT NULL
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

	e := storage.Entry{UUID: uuid}
	err := s.db.QueryRowContext(ctx, q, uuid).Scan(
		&e.Owner, &e.Name, &e.Hash, &e.Static, &e.Complete,
		&e.Replaces, &e.ReplacedBy, &e.Created, &e.Modified, &e.Data,
	)
	if stderrs.Is(err, sql.ErrNoRows) {
		return nil, zdc.ErrNotFound
	}
	return &e, errors.Wrapf(err, "querying dataset %s", uuid)
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
		e.Created.UTC(), e.Modified.UTC(), e.Data,
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

func init() {
	storage.Register("pg", func(ctx context.Context, conf map[string]interface{}) (storage.Store, error) {
		conn, ok := conf["conn"].(string)
		if !ok {
			return nil, errors.New(`missing "conn" parameter`)
		}
		db, err := sql.Open("postgres", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening postgres connection")
		}
		return New(ctx, db)
	})
}
