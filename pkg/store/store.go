// Package store implements the checksum-addressed snippet store (component
// E): deduplication, alias names, tag sets, collection membership, and
// version history, backed by internal/sqlstore.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/resembl/resembl/internal/errs"
	"github.com/resembl/resembl/internal/sqlstore"
	"github.com/resembl/resembl/pkg/fingerprint"
	"github.com/resembl/resembl/pkg/token"
)

// CacheInvalidator is the subset of the LSH cache's interface the store
// needs: a hook run after any mutation that changes the corpus digest. The
// concrete implementation lives in pkg/lshindex; the store only depends on
// this interface to avoid an import cycle (spec §3's "Ownership" note —
// the LSH index holds weak references only and is always rebuildable).
type CacheInvalidator interface {
	Invalidate() error
}

// Store is the Snippet Store's session handle (spec §4.E: "all take a
// session handle from the external storage engine").
type Store struct {
	Session *sqlstore.Session
	Rand    *rand.Rand // used only by stats() sampling; nil means time-seeded lazily

	invalidator CacheInvalidator
}

// New wraps an open sqlstore session.
func New(session *sqlstore.Session) *Store {
	return &Store{Session: session}
}

// SetCacheInvalidator wires the LSH cache invalidation hook. Optional: a
// Store with no invalidator simply skips cache invalidation, which is safe
// because the corpus-digest fallback in pkg/lshindex catches any staleness
// on the next load.
func (s *Store) SetCacheInvalidator(inv CacheInvalidator) {
	s.invalidator = inv
}

func (s *Store) invalidateCache() {
	if s.invalidator == nil {
		return
	}
	_ = s.invalidator.Invalidate() // best-effort, per spec §5 ordering guarantees
}

func (s *Store) rng() *rand.Rand {
	if s.Rand == nil {
		s.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s.Rand
}

func checksumOf(code string) (string, error) {
	normalized, err := token.Normalize(code)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:]), nil
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("store: encode json array: %w", err)
	}
	return string(data), nil
}

func decodeStrings(data string) ([]string, error) {
	var values []string
	if strings.TrimSpace(data) == "" {
		return []string{}, nil
	}
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("store: decode json array: %w", err)
	}
	return values, nil
}

// nextSeq returns the insertion-order sequence number for a new row.
func (s *Store) nextSeq() (int64, error) {
	var maxSeq sql.NullInt64
	row := s.Session.Conn.QueryRow("SELECT MAX(seq) FROM snippets")
	if err := row.Scan(&maxSeq); err != nil {
		return 0, fmt.Errorf("store: read max seq: %w", err)
	}
	return maxSeq.Int64 + 1, nil
}

// Add inserts a new snippet or, if one with the computed checksum already
// exists, appends name to its names (spec §4.E `add`). It never returns
// (nil, nil): a blank code string is reported as (nil, BlankInput error) so
// callers can distinguish "nothing to do" from an unexpected failure.
func (s *Store) Add(name, code string, ngramSize int) (*Snippet, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, errs.New(errs.BlankInput, "store.Add", fmt.Errorf("code is blank"))
	}

	checksum, err := checksumOf(code)
	if err != nil {
		return nil, errs.New(errs.IOFailure, "store.Add", err)
	}

	existing, err := s.Get(checksum)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if name != "" && !existing.HasName(name) {
			existing.Names = append(existing.Names, name)
			if err := s.writeNames(checksum, existing.Names); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}

	mh, err := fingerprint.Build(code, ngramSize, fingerprint.DefaultNumPermutations)
	if err != nil {
		return nil, errs.New(errs.IOFailure, "store.Add", err)
	}

	names := []string{}
	if name != "" {
		names = append(names, name)
	}

	snippet := &Snippet{
		Checksum: checksum,
		Names:    names,
		Code:     code,
		MinHash:  mh,
		Tags:     []string{},
	}

	if err := s.insert(snippet); err != nil {
		return nil, err
	}

	s.invalidateCache()
	return snippet, nil
}

func (s *Store) insert(snip *Snippet) error {
	namesJSON, err := encodeStrings(snip.Names)
	if err != nil {
		return errs.New(errs.IOFailure, "store.insert", err)
	}
	tagsJSON, err := encodeStrings(snip.Tags)
	if err != nil {
		return errs.New(errs.IOFailure, "store.insert", err)
	}
	seq, err := s.nextSeq()
	if err != nil {
		return errs.New(errs.IOFailure, "store.insert", err)
	}

	var collection sql.NullString
	if snip.Collection != "" {
		collection = sql.NullString{String: snip.Collection, Valid: true}
	}

	_, err = s.Session.Conn.Exec(
		`INSERT INTO snippets (checksum, names, code, minhash, tags, collection, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snip.Checksum, namesJSON, snip.Code, snip.MinHash.Marshal(), tagsJSON, collection, seq,
	)
	if err != nil {
		return errs.New(errs.IOFailure, "store.insert", err)
	}
	return nil
}

func (s *Store) writeNames(checksum string, names []string) error {
	namesJSON, err := encodeStrings(names)
	if err != nil {
		return errs.New(errs.IOFailure, "store.writeNames", err)
	}
	if _, err := s.Session.Conn.Exec("UPDATE snippets SET names = ? WHERE checksum = ?", namesJSON, checksum); err != nil {
		return errs.New(errs.IOFailure, "store.writeNames", err)
	}
	return nil
}

func (s *Store) writeTags(checksum string, tags []string) error {
	tagsJSON, err := encodeStrings(tags)
	if err != nil {
		return errs.New(errs.IOFailure, "store.writeTags", err)
	}
	if _, err := s.Session.Conn.Exec("UPDATE snippets SET tags = ? WHERE checksum = ?", tagsJSON, checksum); err != nil {
		return errs.New(errs.IOFailure, "store.writeTags", err)
	}
	return nil
}

func scanSnippet(rows interface {
	Scan(dest ...interface{}) error
}) (*Snippet, error) {
	var checksum, namesJSON, code, tagsJSON string
	var minhash []byte
	var collection sql.NullString

	if err := rows.Scan(&checksum, &namesJSON, &code, &minhash, &tagsJSON, &collection); err != nil {
		return nil, err
	}

	names, err := decodeStrings(namesJSON)
	if err != nil {
		return nil, err
	}
	tags, err := decodeStrings(tagsJSON)
	if err != nil {
		return nil, err
	}
	mh, err := fingerprint.Unmarshal(minhash)
	if err != nil {
		return nil, err
	}

	snip := &Snippet{
		Checksum: checksum,
		Names:    names,
		Code:     code,
		MinHash:  mh,
		Tags:     tags,
	}
	if collection.Valid {
		snip.Collection = collection.String
	}
	return snip, nil
}

// Get performs an exact-checksum lookup (spec §4.E `get`). Returns (nil,
// nil) when no such snippet exists — absence is not an error.
func (s *Store) Get(checksum string) (*Snippet, error) {
	row := s.Session.Conn.QueryRow(
		"SELECT checksum, names, code, minhash, tags, collection FROM snippets WHERE checksum = ?",
		checksum,
	)
	snip, err := scanSnippet(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.IOFailure, "store.Get", err)
	}
	return snip, nil
}

// ResolvePrefix resolves a checksum prefix to a full checksum, signaling
// NotFound or Ambiguous (spec §4.E `resolve_prefix`).
func (s *Store) ResolvePrefix(prefix string) (string, error) {
	rows, err := s.Session.Conn.Query("SELECT checksum FROM snippets WHERE checksum LIKE ? || '%'", prefix)
	if err != nil {
		return "", errs.New(errs.IOFailure, "store.ResolvePrefix", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var checksum string
		if err := rows.Scan(&checksum); err != nil {
			return "", errs.New(errs.IOFailure, "store.ResolvePrefix", err)
		}
		matches = append(matches, checksum)
	}
	if err := rows.Err(); err != nil {
		return "", errs.New(errs.IOFailure, "store.ResolvePrefix", err)
	}

	switch len(matches) {
	case 0:
		return "", errs.New(errs.NotFound, "store.ResolvePrefix", fmt.Errorf("no snippet matches prefix %q", prefix))
	case 1:
		return matches[0], nil
	default:
		return "", errs.New(errs.Ambiguous, "store.ResolvePrefix", fmt.Errorf("prefix %q matches %d snippets", prefix, len(matches)))
	}
}

// Delete removes the snippet with the given checksum (spec §4.E `delete`).
func (s *Store) Delete(checksum string) (bool, error) {
	res, err := s.Session.Conn.Exec("DELETE FROM snippets WHERE checksum = ?", checksum)
	if err != nil {
		return false, errs.New(errs.IOFailure, "store.Delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errs.New(errs.IOFailure, "store.Delete", err)
	}
	if n > 0 {
		s.invalidateCache()
	}
	return n > 0, nil
}

// List returns snippets in storage order. Range (0,0) means all; otherwise
// [start, end) half-open (spec §4.E `list`).
func (s *Store) List(start, end int) ([]*Snippet, error) {
	var rows *sql.Rows
	var err error
	if start == 0 && end == 0 {
		rows, err = s.Session.Conn.Query(
			"SELECT checksum, names, code, minhash, tags, collection FROM snippets ORDER BY seq")
	} else {
		limit := end - start
		if limit < 0 {
			limit = 0
		}
		rows, err = s.Session.Conn.Query(
			"SELECT checksum, names, code, minhash, tags, collection FROM snippets ORDER BY seq LIMIT ? OFFSET ?",
			limit, start)
	}
	if err != nil {
		return nil, errs.New(errs.IOFailure, "store.List", err)
	}
	defer rows.Close()

	var out []*Snippet
	for rows.Next() {
		snip, err := scanSnippet(rows)
		if err != nil {
			return nil, errs.New(errs.IOFailure, "store.List", err)
		}
		out = append(out, snip)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.New(errs.IOFailure, "store.List", err)
	}
	return out, nil
}

// SearchByName returns every snippet whose serialized names field contains
// pattern as a substring (spec §4.E `search_by_name`). Case-sensitive: the
// source is ambiguous on case (§9 Open Questions), so this adopts the
// source's literal substring match on the JSON-encoded names column.
func (s *Store) SearchByName(pattern string) ([]*Snippet, error) {
	rows, err := s.Session.Conn.Query(
		"SELECT checksum, names, code, minhash, tags, collection FROM snippets WHERE instr(names, ?) > 0 ORDER BY seq",
		pattern,
	)
	if err != nil {
		return nil, errs.New(errs.IOFailure, "store.SearchByName", err)
	}
	defer rows.Close()

	var out []*Snippet
	for rows.Next() {
		snip, err := scanSnippet(rows)
		if err != nil {
			return nil, errs.New(errs.IOFailure, "store.SearchByName", err)
		}
		out = append(out, snip)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.New(errs.IOFailure, "store.SearchByName", err)
	}
	return out, nil
}

// NameAdd appends name to the snippet's alias list, refusing duplicates
// (spec §4.E `name_add`).
func (s *Store) NameAdd(checksum, name string) error {
	snip, err := s.requireSnippet(checksum, "store.NameAdd")
	if err != nil {
		return err
	}
	if snip.HasName(name) {
		return errs.New(errs.Duplicate, "store.NameAdd", fmt.Errorf("name %q already present", name))
	}
	snip.Names = append(snip.Names, name)
	return s.writeNames(checksum, snip.Names)
}

// NameRemove removes name from the snippet's alias list, refusing to
// remove the last remaining name (spec §4.E `name_remove`).
func (s *Store) NameRemove(checksum, name string) error {
	snip, err := s.requireSnippet(checksum, "store.NameRemove")
	if err != nil {
		return err
	}
	if len(snip.Names) <= 1 && snip.HasName(name) {
		return errs.New(errs.LastNameProtected, "store.NameRemove", fmt.Errorf("cannot remove last name %q", name))
	}

	remaining := make([]string, 0, len(snip.Names))
	for _, n := range snip.Names {
		if n != name {
			remaining = append(remaining, n)
		}
	}
	return s.writeNames(checksum, remaining)
}

// TagAdd trims whitespace and adds tag, idempotently (spec §4.E `tag_add`).
func (s *Store) TagAdd(checksum, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return errs.New(errs.InvalidParameter, "store.TagAdd", fmt.Errorf("tag is blank"))
	}
	snip, err := s.requireSnippet(checksum, "store.TagAdd")
	if err != nil {
		return err
	}
	if snip.HasTag(tag) {
		return nil
	}
	snip.Tags = append(snip.Tags, tag)
	return s.writeTags(checksum, snip.Tags)
}

// TagRemove removes tag, idempotently — removing an absent tag succeeds
// (spec §4.E `tag_remove`).
func (s *Store) TagRemove(checksum, tag string) error {
	snip, err := s.requireSnippet(checksum, "store.TagRemove")
	if err != nil {
		return err
	}
	remaining := make([]string, 0, len(snip.Tags))
	for _, t := range snip.Tags {
		if t != tag {
			remaining = append(remaining, t)
		}
	}
	return s.writeTags(checksum, remaining)
}

func (s *Store) requireSnippet(checksum, op string) (*Snippet, error) {
	snip, err := s.Get(checksum)
	if err != nil {
		return nil, err
	}
	if snip == nil {
		return nil, errs.New(errs.NotFound, op, fmt.Errorf("no snippet with checksum %q", checksum))
	}
	return snip, nil
}

// Reindex recomputes every snippet's MinHash with the given n-gram size and
// invalidates the cache (spec §4.E `reindex`). Versions are written here:
// per the SnippetVersion write-timing decision (see DESIGN.md), a reindex
// is exactly the kind of bulk recompute the append-only history exists to
// capture.
func (s *Store) Reindex(ngramSize int) error {
	snippets, err := s.List(0, 0)
	if err != nil {
		return err
	}

	for _, snip := range snippets {
		mh, err := fingerprint.Build(snip.Code, ngramSize, fingerprint.DefaultNumPermutations)
		if err != nil {
			return errs.New(errs.IOFailure, "store.Reindex", err)
		}
		if _, err := s.Session.Conn.Exec(
			"UPDATE snippets SET minhash = ? WHERE checksum = ?", mh.Marshal(), snip.Checksum,
		); err != nil {
			return errs.New(errs.IOFailure, "store.Reindex", err)
		}
		if err := s.writeVersion(snip.Checksum, snip.Code, mh); err != nil {
			return err
		}
	}

	s.invalidateCache()
	return nil
}

func (s *Store) writeVersion(checksum, code string, mh *fingerprint.MinHash) error {
	id, err := uuid.NewRandom()
	if err != nil {
		return errs.New(errs.IOFailure, "store.writeVersion", err)
	}
	_, err = s.Session.Conn.Exec(
		`INSERT INTO snippet_versions (version_uuid, snippet_checksum, code, minhash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id.String(), checksum, code, mh.Marshal(), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return errs.New(errs.IOFailure, "store.writeVersion", err)
	}
	return nil
}

// Versions returns a snippet's history, newest first (spec §3
// SnippetVersion: "retrieved newest-first").
func (s *Store) Versions(checksum string) ([]*SnippetVersion, error) {
	rows, err := s.Session.Conn.Query(
		`SELECT id, version_uuid, snippet_checksum, code, minhash, created_at
		 FROM snippet_versions WHERE snippet_checksum = ? ORDER BY id DESC`,
		checksum,
	)
	if err != nil {
		return nil, errs.New(errs.IOFailure, "store.Versions", err)
	}
	defer rows.Close()

	var out []*SnippetVersion
	for rows.Next() {
		var v SnippetVersion
		var minhash []byte
		if err := rows.Scan(&v.ID, &v.VersionUUID, &v.SnippetChecksum, &v.Code, &minhash, &v.CreatedAt); err != nil {
			return nil, errs.New(errs.IOFailure, "store.Versions", err)
		}
		mh, err := fingerprint.Unmarshal(minhash)
		if err != nil {
			return nil, errs.New(errs.CorruptCache, "store.Versions", err)
		}
		v.MinHash = mh
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.New(errs.IOFailure, "store.Versions", err)
	}
	return out, nil
}

// Clean invalidates the cache and reclaims storage space (spec §4.E
// `clean`).
func (s *Store) Clean() error {
	s.invalidateCache()
	if _, err := s.Session.Conn.Exec("VACUUM"); err != nil {
		return errs.New(errs.IOFailure, "store.Clean", err)
	}
	return nil
}

// corpusDigest is the fallback cache-validity key (spec §4.F): "empty"
// when the store is empty, otherwise "<count>-<max checksum>".
func (s *Store) corpusDigest() (string, error) {
	var count int
	if err := s.Session.Conn.QueryRow("SELECT COUNT(*) FROM snippets").Scan(&count); err != nil {
		return "", fmt.Errorf("store: count snippets: %w", err)
	}
	if count == 0 {
		return "empty", nil
	}

	rows, err := s.Session.Conn.Query("SELECT checksum FROM snippets")
	if err != nil {
		return "", fmt.Errorf("store: read checksums: %w", err)
	}
	defer rows.Close()

	max := ""
	for rows.Next() {
		var checksum string
		if err := rows.Scan(&checksum); err != nil {
			return "", fmt.Errorf("store: scan checksum: %w", err)
		}
		if checksum > max {
			max = checksum
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("store: read checksums: %w", err)
	}
	return fmt.Sprintf("%d-%s", count, max), nil
}

// CorpusDigest exposes corpusDigest to pkg/lshindex without requiring it to
// reimplement the SQL.
func (s *Store) CorpusDigest() (string, error) {
	return s.corpusDigest()
}

// InsertVerbatim inserts a snippet exactly as given (names, code, minhash,
// tags, collection copied verbatim) without recomputing its checksum or
// fingerprint. Used by pkg/merge when the destination has no snippet for a
// source checksum yet (spec §4.H step 3, "insert").
func (s *Store) InsertVerbatim(snip *Snippet) error {
	if err := s.insert(snip); err != nil {
		return err
	}
	s.invalidateCache()
	return nil
}

// SetNames overwrites a snippet's names list (spec §4.H's "write back
// sorted" merge step).
func (s *Store) SetNames(checksum string, names []string) error {
	return s.writeNames(checksum, names)
}

// SetTags overwrites a snippet's tags list (spec §4.H's "write back
// sorted" merge step).
func (s *Store) SetTags(checksum string, tags []string) error {
	return s.writeTags(checksum, tags)
}

// InvalidateCacheAfterMerge runs the cache invalidation hook once after a
// merge transaction commits (spec §4.H step 4, "Commit and invalidate the
// LSH cache").
func (s *Store) InvalidateCacheAfterMerge() {
	s.invalidateCache()
}
