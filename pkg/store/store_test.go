package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resembl/resembl/internal/errs"
	"github.com/resembl/resembl/internal/sqlstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	session, err := sqlstore.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return New(session)
}

func TestAddBlankCodeReturnsBlankInput(t *testing.T) {
	s := newTestStore(t)
	snip, err := s.Add("x", "   ", 3)
	assert.Nil(t, snip)
	assert.True(t, errs.Is(err, errs.BlankInput))
}

func TestAddDeduplicatesByNormalizedChecksum(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Add("a", "MOV EAX, [ESP+4] ; load arg", 3)
	require.NoError(t, err)

	b, err := s.Add("b", "mov eax, [esp+4]", 3)
	require.NoError(t, err)

	assert.Equal(t, a.Checksum, b.Checksum)
	assert.Equal(t, []string{"a", "b"}, b.Names)

	all, err := s.List(0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetUnknownChecksumReturnsNil(t *testing.T) {
	s := newTestStore(t)
	snip, err := s.Get("deadbeef")
	require.NoError(t, err)
	assert.Nil(t, snip)
}

func TestResolvePrefixAmbiguousAndNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add("a", "nop", 3)
	require.NoError(t, err)
	_, err = s.Add("b", "hlt", 3)
	require.NoError(t, err)

	_, err = s.ResolvePrefix("zzzzzzzz")
	assert.True(t, errs.Is(err, errs.NotFound))

	// An empty prefix matches every checksum, so both snippets above match.
	_, err = s.ResolvePrefix("")
	assert.True(t, errs.Is(err, errs.Ambiguous))
}

func TestResolvePrefixUnique(t *testing.T) {
	s := newTestStore(t)
	snip, err := s.Add("a", "nop", 3)
	require.NoError(t, err)

	got, err := s.ResolvePrefix(snip.Checksum[:8])
	require.NoError(t, err)
	assert.Equal(t, snip.Checksum, got)
}

func TestDeleteRemovesSnippet(t *testing.T) {
	s := newTestStore(t)
	snip, err := s.Add("a", "nop", 3)
	require.NoError(t, err)

	ok, err := s.Delete(snip.Checksum)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Get(snip.Checksum)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListRangeIsHalfOpen(t *testing.T) {
	s := newTestStore(t)
	for _, code := range []string{"nop", "hlt", "ret", "cli"} {
		_, err := s.Add("n", code, 3)
		require.NoError(t, err)
	}
	page, err := s.List(1, 3)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestSearchByNameMatchesSubstring(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add("copy_loop", "lodsb\nstosb", 3)
	require.NoError(t, err)
	_, err = s.Add("other", "nop", 3)
	require.NoError(t, err)

	found, err := s.SearchByName("copy")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Contains(t, found[0].Names, "copy_loop")
}

func TestNameAddRefusesDuplicate(t *testing.T) {
	s := newTestStore(t)
	snip, err := s.Add("a", "nop", 3)
	require.NoError(t, err)

	err = s.NameAdd(snip.Checksum, "a")
	assert.True(t, errs.Is(err, errs.Duplicate))
}

func TestNameRemoveProtectsLastName(t *testing.T) {
	s := newTestStore(t)
	snip, err := s.Add("only", "nop", 3)
	require.NoError(t, err)

	err = s.NameRemove(snip.Checksum, "only")
	assert.True(t, errs.Is(err, errs.LastNameProtected))
}

func TestNameRemoveAllowsNonLast(t *testing.T) {
	s := newTestStore(t)
	snip, err := s.Add("first", "nop", 3)
	require.NoError(t, err)
	require.NoError(t, s.NameAdd(snip.Checksum, "second"))

	require.NoError(t, s.NameRemove(snip.Checksum, "first"))

	got, err := s.Get(snip.Checksum)
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, got.Names)
}

func TestTagAddBlankFails(t *testing.T) {
	s := newTestStore(t)
	snip, err := s.Add("a", "nop", 3)
	require.NoError(t, err)

	err = s.TagAdd(snip.Checksum, "   ")
	assert.True(t, errs.Is(err, errs.InvalidParameter))
}

func TestTagAddIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	snip, err := s.Add("a", "nop", 3)
	require.NoError(t, err)

	require.NoError(t, s.TagAdd(snip.Checksum, "crypto"))
	require.NoError(t, s.TagAdd(snip.Checksum, "crypto"))

	got, err := s.Get(snip.Checksum)
	require.NoError(t, err)
	assert.Equal(t, []string{"crypto"}, got.Tags)
}

func TestTagRemoveAbsentIsNoop(t *testing.T) {
	s := newTestStore(t)
	snip, err := s.Add("a", "nop", 3)
	require.NoError(t, err)

	require.NoError(t, s.TagRemove(snip.Checksum, "not-there"))
}

func TestCollectionDeleteClearsSnippetReference(t *testing.T) {
	s := newTestStore(t)
	snip, err := s.Add("a", "nop", 3)
	require.NoError(t, err)
	require.NoError(t, s.AssignCollection(snip.Checksum, "rootkits"))

	require.NoError(t, s.CollectionDelete("rootkits"))

	got, err := s.Get(snip.Checksum)
	require.NoError(t, err)
	assert.Empty(t, got.Collection)
}

func TestCompareReturnsNilForUnknownChecksum(t *testing.T) {
	s := newTestStore(t)
	snip, err := s.Add("a", "nop", 3)
	require.NoError(t, err)

	cmp, err := s.Compare(snip.Checksum, "deadbeef", 0.4)
	require.NoError(t, err)
	assert.Nil(t, cmp)
}

func TestCompareIdenticalSnippetHasJaccardOne(t *testing.T) {
	s := newTestStore(t)
	snip, err := s.Add("a", "mov eax, ebx\nadd eax, 1", 3)
	require.NoError(t, err)

	cmp, err := s.Compare(snip.Checksum, snip.Checksum, 0.4)
	require.NoError(t, err)
	require.NotNil(t, cmp)
	assert.Equal(t, 1.0, cmp.Jaccard)
	assert.Equal(t, 100.0, cmp.LevenshteinRatio)
	assert.Empty(t, cmp.DiffText)
}

func TestCompareDifferentSnippetsProducesUnifiedDiff(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Add("a", "mov eax, ebx\nadd eax, 1", 3)
	require.NoError(t, err)
	b, err := s.Add("b", "mov eax, ebx\nsub eax, 1", 3)
	require.NoError(t, err)

	cmp, err := s.Compare(a.Checksum, b.Checksum, 0.4)
	require.NoError(t, err)
	require.NotNil(t, cmp)
	assert.Contains(t, cmp.DiffText, "-add eax, 1")
	assert.Contains(t, cmp.DiffText, "+sub eax, 1")
}

func TestStatsOnEmptyStore(t *testing.T) {
	s := newTestStore(t)
	stats, err := s.Stats(0)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.SnippetCount)
}

func TestStatsCountsAndVocabulary(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add("a", "mov eax, ebx", 3)
	require.NoError(t, err)
	_, err = s.Add("b", "add ecx, edx", 3)
	require.NoError(t, err)

	stats, err := s.Stats(100)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SnippetCount)
	assert.Greater(t, stats.VocabularySize, 0)
}

func TestExportSkipsPathTraversalAttempt(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add("../../evil", "nop", 3)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, s.Export(dir))

	absDir, err := filepath.Abs(dir)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		full, err := filepath.Abs(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		rel, err := filepath.Rel(absDir, full)
		require.NoError(t, err)
		assert.NotEqual(t, "..", rel)
		assert.False(t, strings.HasPrefix(rel, ".."+string(os.PathSeparator)))
	}
}

func TestExportYaraRuleNaming(t *testing.T) {
	s := newTestStore(t)
	snip, err := s.Add("1bad-name!", "nop", 3)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rules.yar")
	require.NoError(t, s.ExportYara(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	expectedPrefix := "rule resembl_r_1bad_name__" + snip.Checksum[:8]
	assert.Contains(t, string(data), expectedPrefix)
}
