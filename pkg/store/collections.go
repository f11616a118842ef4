package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/resembl/resembl/internal/errs"
)

// CollectionCreate creates a collection on demand (spec §4.E
// `collection_create`).
func (s *Store) CollectionCreate(name, description string) (*Collection, error) {
	createdAt := time.Now().UTC().Format(time.RFC3339)
	_, err := s.Session.Conn.Exec(
		"INSERT OR IGNORE INTO collections (name, description, created_at) VALUES (?, ?, ?)",
		name, description, createdAt,
	)
	if err != nil {
		return nil, errs.New(errs.IOFailure, "store.CollectionCreate", err)
	}
	return s.collectionByName(name)
}

func (s *Store) collectionByName(name string) (*Collection, error) {
	row := s.Session.Conn.QueryRow(
		"SELECT name, description, created_at FROM collections WHERE name = ?", name)
	var c Collection
	if err := row.Scan(&c.Name, &c.Description, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.New(errs.NotFound, "store.collectionByName", fmt.Errorf("no collection %q", name))
		}
		return nil, errs.New(errs.IOFailure, "store.collectionByName", err)
	}
	return &c, nil
}

// CollectionDelete removes the collection; member snippets are NOT
// deleted, only their collection reference is cleared (spec §4.E
// `collection_delete`, spec §3 Collection lifecycle).
func (s *Store) CollectionDelete(name string) error {
	if _, err := s.Session.Conn.Exec("UPDATE snippets SET collection = NULL WHERE collection = ?", name); err != nil {
		return errs.New(errs.IOFailure, "store.CollectionDelete", err)
	}
	if _, err := s.Session.Conn.Exec("DELETE FROM collections WHERE name = ?", name); err != nil {
		return errs.New(errs.IOFailure, "store.CollectionDelete", err)
	}
	return nil
}

// CollectionList returns every collection (spec §4.E `collection_list`).
func (s *Store) CollectionList() ([]*Collection, error) {
	rows, err := s.Session.Conn.Query("SELECT name, description, created_at FROM collections ORDER BY name")
	if err != nil {
		return nil, errs.New(errs.IOFailure, "store.CollectionList", err)
	}
	defer rows.Close()

	var out []*Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, errs.New(errs.IOFailure, "store.CollectionList", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.New(errs.IOFailure, "store.CollectionList", err)
	}
	return out, nil
}

// AssignCollection sets a snippet's collection field, creating the
// collection row on demand if it does not yet exist.
func (s *Store) AssignCollection(checksum, collection string) error {
	if _, err := s.CollectionCreate(collection, ""); err != nil {
		return err
	}
	if _, err := s.Session.Conn.Exec("UPDATE snippets SET collection = ? WHERE checksum = ?", collection, checksum); err != nil {
		return errs.New(errs.IOFailure, "store.AssignCollection", err)
	}
	return nil
}
