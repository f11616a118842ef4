package merge

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resembl/resembl/internal/sqlstore"
	"github.com/resembl/resembl/pkg/store"
)

func newTestStore(t *testing.T, name string) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	session, err := sqlstore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return store.New(session), path
}

func TestMergeAddsNewSnippet(t *testing.T) {
	dest, _ := newTestStore(t, "dest.db")
	src, srcPath := newTestStore(t, "src.db")

	snip, err := src.Add("foo", "nop", 3)
	require.NoError(t, err)

	result, err := Merge(dest, srcPath)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 1, result.TotalSource)

	got, err := dest.Get(snip.Checksum)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"foo"}, got.Names)
}

func TestMergeMergesNamesAndTagsIndependently(t *testing.T) {
	dest, _ := newTestStore(t, "dest.db")
	src, srcPath := newTestStore(t, "src.db")

	destSnip, err := dest.Add("foo", "nop", 3)
	require.NoError(t, err)
	srcSnip, err := src.Add("foo", "nop", 3)
	require.NoError(t, err)
	require.Equal(t, destSnip.Checksum, srcSnip.Checksum)
	require.NoError(t, src.TagAdd(srcSnip.Checksum, "crypto"))

	result, err := Merge(dest, srcPath)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 1, result.Updated)

	got, err := dest.Get(destSnip.Checksum)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, got.Names)
	assert.Equal(t, []string{"crypto"}, got.Tags)
}

func TestMergeTwiceIsNoOpSecondTime(t *testing.T) {
	dest, _ := newTestStore(t, "dest.db")
	src, srcPath := newTestStore(t, "src.db")

	_, err := src.Add("foo", "nop", 3)
	require.NoError(t, err)

	_, err = Merge(dest, srcPath)
	require.NoError(t, err)

	result, err := Merge(dest, srcPath)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 0, result.Updated)
}

func TestMergeAssignsCollectionOnlyWhenAbsent(t *testing.T) {
	dest, _ := newTestStore(t, "dest.db")
	src, srcPath := newTestStore(t, "src.db")

	destSnip, err := dest.Add("foo", "nop", 3)
	require.NoError(t, err)
	require.NoError(t, dest.AssignCollection(destSnip.Checksum, "kept"))

	srcSnip, err := src.Add("foo", "nop", 3)
	require.NoError(t, err)
	require.NoError(t, src.AssignCollection(srcSnip.Checksum, "incoming"))

	_, err = Merge(dest, srcPath)
	require.NoError(t, err)

	got, err := dest.Get(destSnip.Checksum)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Collection)
}

func TestMergeOpenFailureReturnsError(t *testing.T) {
	dest, _ := newTestStore(t, "dest.db")

	_, err := Merge(dest, filepath.Join(t.TempDir(), "does-not-exist.db"))
	assert.Error(t, err)
}

func TestMergeAssignsUniqueCorrelationIDPerRun(t *testing.T) {
	dest, _ := newTestStore(t, "dest.db")
	src, srcPath := newTestStore(t, "src.db")

	_, err := src.Add("foo", "nop", 3)
	require.NoError(t, err)

	first, err := Merge(dest, srcPath)
	require.NoError(t, err)
	require.NotEmpty(t, first.CorrelationID)

	second, err := Merge(dest, srcPath)
	require.NoError(t, err)
	require.NotEmpty(t, second.CorrelationID)

	assert.NotEqual(t, first.CorrelationID, second.CorrelationID)
}
