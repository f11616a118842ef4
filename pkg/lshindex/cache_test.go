package lshindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resembl/resembl/internal/sqlstore"
	"github.com/resembl/resembl/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	session, err := sqlstore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return store.New(session)
}

func TestCacheSaveThenLoadRoundTrips(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add("a", "mov eax, ebx", 3)
	require.NoError(t, err)

	idx, err := Build(s, 0.5, 128)
	require.NoError(t, err)

	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cache.Save(s, idx))

	loaded, err := cache.Load(s, 0.5, 128)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Len(t, loaded.Signatures(), 1)
}

func TestCacheLoadMissesOnDigestMismatch(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add("a", "mov eax, ebx", 3)
	require.NoError(t, err)

	idx, err := Build(s, 0.5, 128)
	require.NoError(t, err)

	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cache.Save(s, idx))

	_, err = s.Add("b", "add ecx, edx", 3)
	require.NoError(t, err)

	loaded, err := cache.Load(s, 0.5, 128)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestCacheLoadMissesWhenAbsent(t *testing.T) {
	s := newTestStore(t)
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	loaded, err := cache.Load(s, 0.5, 128)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestCacheInvalidateRemovesFiles(t *testing.T) {
	s := newTestStore(t)
	idx, err := Build(s, 0.5, 128)
	require.NoError(t, err)

	dir := t.TempDir()
	cache, err := NewCache(dir)
	require.NoError(t, err)
	require.NoError(t, cache.Save(s, idx))

	require.NoError(t, cache.Invalidate())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
