package query

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resembl/resembl/internal/sqlstore"
	"github.com/resembl/resembl/pkg/lshindex"
	"github.com/resembl/resembl/pkg/store"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	session, err := sqlstore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	s := store.New(session)
	cache, err := lshindex.NewCache(t.TempDir())
	require.NoError(t, err)

	return NewPipeline(s, cache)
}

func TestFindMatchesAddThenFindIdentical(t *testing.T) {
	p := newTestPipeline(t)

	snip, err := p.Store.Add("copy_loop", "lodsb\nstosb\ntest al, al\njnz copy_loop", 3)
	require.NoError(t, err)

	count, matches, err := p.FindMatches("lodsb\nstosb\ntest al, al\njnz done", 1, 0.5, true, 3, 0.4)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)
	require.Len(t, matches, 1)
	assert.Equal(t, snip.Checksum, matches[0].Snippet.Checksum)
	assert.Greater(t, matches[0].Hybrid, 50.0)
}

func TestFindMatchesEmptyStoreReturnsNoCandidates(t *testing.T) {
	p := newTestPipeline(t)

	count, matches, err := p.FindMatches("nop", 5, 0.5, true, 3, 0.4)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, matches)
}

func TestFindMatchesInvalidThresholdReturnsEmptyNotError(t *testing.T) {
	p := newTestPipeline(t)
	_, err := p.Store.Add("a", "nop", 3)
	require.NoError(t, err)

	count, matches, err := p.FindMatches("nop", 5, 0.999, true, 3, 0.4)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, matches)
}

func TestFindMatchesRebuildsAfterCacheInvalidatingInsert(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.Store.Add("a", "mov eax, ebx", 3)
	require.NoError(t, err)

	_, _, err = p.FindMatches("mov eax, ebx", 5, 0.5, true, 3, 0.4)
	require.NoError(t, err)

	_, err = p.Store.Add("b", "add ecx, edx", 3)
	require.NoError(t, err)

	count, matches, err := p.FindMatches("mov eax, ebx", 5, 0.5, true, 3, 0.4)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)
	assert.NotEmpty(t, matches)
}
