// Package sqlstore is the concrete "external storage engine" spec.md treats
// as a collaborator: a relational schema for the three tables of §6, backed
// by the pure-Go, CGO-free modernc.org/sqlite driver. pkg/store's
// operations all take a *Session, the "session handle" spec.md's operation
// signatures name.
package sqlstore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name        TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snippets (
	checksum   TEXT PRIMARY KEY,
	names      TEXT NOT NULL,
	code       TEXT NOT NULL,
	minhash    BLOB NOT NULL,
	tags       TEXT NOT NULL DEFAULT '[]',
	collection TEXT,
	seq        INTEGER NOT NULL,
	FOREIGN KEY (collection) REFERENCES collections(name)
);

CREATE INDEX IF NOT EXISTS idx_snippets_collection ON snippets(collection);
CREATE INDEX IF NOT EXISTS idx_snippets_seq ON snippets(seq);

CREATE TABLE IF NOT EXISTS snippet_versions (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	version_uuid     TEXT NOT NULL,
	snippet_checksum TEXT NOT NULL,
	code             TEXT NOT NULL,
	minhash          BLOB NOT NULL,
	created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_versions_checksum ON snippet_versions(snippet_checksum);
`

// Querier is the subset of *sql.DB / *sql.Tx that pkg/store's queries need.
// Every query runs through Session.Conn rather than Session.DB directly, so
// a caller that needs several store operations to commit or roll back
// together (the merge engine) can swap in a *sql.Tx without pkg/store
// knowing the difference.
type Querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Session wraps the connection pool to the snippet database. It is safe
// for concurrent use by multiple goroutines, matching §5's "two sessions
// are safe concurrent writers" requirement — SQLite serializes writers
// internally and every insert is deduplicated on the checksum primary key.
type Session struct {
	DB   *sql.DB
	Conn Querier // defaults to DB; WithTx swaps in a *sql.Tx
	url  string
}

// Open opens (creating if absent) the snippet database at url and ensures
// the schema exists.
func Open(url string) (*Session, error) {
	db, err := sql.Open("sqlite", url)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", url, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer at a time avoids SQLITE_BUSY under concurrent import
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: apply schema: %w", err)
	}
	return &Session{DB: db, Conn: db, url: url}, nil
}

// OpenReadOnly opens an existing database without creating it; used by the
// merge engine to open a source store without risking a stray creation of
// an empty database at a typo'd path.
func OpenReadOnly(url string) (*Session, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", url))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s read-only: %w", url, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: open %s read-only: %w", url, err)
	}
	return &Session{DB: db, Conn: db, url: url}, nil
}

func (s *Session) Close() error { return s.DB.Close() }

// URL returns the connection string this session was opened with.
func (s *Session) URL() string { return s.url }

// Begin starts a transaction on the underlying connection pool.
func (s *Session) Begin() (*sql.Tx, error) {
	return s.DB.Begin()
}

// WithTx returns a Session that runs every query through tx instead of
// directly against the pool, sharing the same DB/url. Used by the merge
// engine so a run's destination-side writes commit or roll back as one
// unit (spec §4.H: "single transaction on the destination").
func (s *Session) WithTx(tx *sql.Tx) *Session {
	return &Session{DB: s.DB, Conn: tx, url: s.url}
}
