package lshindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resembl/resembl/internal/errs"
	"github.com/resembl/resembl/pkg/fingerprint"
)

func TestNewRejectsThresholdOutOfRange(t *testing.T) {
	_, err := New(0.99, 128)
	assert.True(t, errs.Is(err, errs.InvalidParameter))

	_, err = New(-0.1, 128)
	assert.True(t, errs.Is(err, errs.InvalidParameter))
}

func TestNewRejectsNonPositivePermutations(t *testing.T) {
	_, err := New(0.5, 0)
	assert.True(t, errs.Is(err, errs.InvalidParameter))
}

func TestNewAcceptsBoundaryValues(t *testing.T) {
	_, err := New(0.0, 128)
	require.NoError(t, err)
	_, err = New(0.98, 128)
	require.NoError(t, err)
}

func TestInsertIsIdempotent(t *testing.T) {
	idx, err := New(0.5, 128)
	require.NoError(t, err)

	mh, err := fingerprint.Build("mov eax, ebx", 3, 128)
	require.NoError(t, err)

	idx.Insert("checksum-a", mh)
	idx.Insert("checksum-a", mh)

	assert.Len(t, idx.Signatures(), 1)
}

func TestInsertBatchReturnsInsertedCount(t *testing.T) {
	idx, err := New(0.5, 128)
	require.NoError(t, err)

	a, err := fingerprint.Build("mov eax, ebx", 3, 128)
	require.NoError(t, err)
	b, err := fingerprint.Build("add ecx, edx", 3, 128)
	require.NoError(t, err)

	n := idx.InsertBatch(map[string]*fingerprint.MinHash{"a": a, "b": b})
	assert.Equal(t, 2, n)

	n = idx.InsertBatch(map[string]*fingerprint.MinHash{"a": a})
	assert.Equal(t, 0, n)
}

func TestQueryFindsIdenticalSignature(t *testing.T) {
	idx, err := New(0.1, 128)
	require.NoError(t, err)

	mh, err := fingerprint.Build("lodsb\nstosb\ntest al, al\njnz copy_loop", 3, 128)
	require.NoError(t, err)
	idx.Insert("loop-checksum", mh)

	candidates := idx.Query(mh)
	assert.Contains(t, candidates, "loop-checksum")
}

func TestQueryEmptyIndexReturnsEmpty(t *testing.T) {
	idx, err := New(0.5, 128)
	require.NoError(t, err)

	mh, err := fingerprint.Build("nop", 3, 128)
	require.NoError(t, err)

	assert.Empty(t, idx.Query(mh))
}

func TestMarshalRoundTripPreservesSignatures(t *testing.T) {
	idx, err := New(0.5, 128)
	require.NoError(t, err)

	mh, err := fingerprint.Build("mov eax, ebx", 3, 128)
	require.NoError(t, err)
	idx.Insert("checksum-a", mh)

	data := idx.Marshal()
	got, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Len(t, got.Signatures(), 1)
	assert.Contains(t, got.Query(mh), "checksum-a")
}
