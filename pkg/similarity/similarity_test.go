package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resembl/resembl/pkg/cfgx"
	"github.com/resembl/resembl/pkg/fingerprint"
)

func TestLevenshteinRatioIdenticalIsHundred(t *testing.T) {
	assert.Equal(t, 100.0, LevenshteinRatio("mov eax, ebx", "mov eax, ebx"))
}

func TestLevenshteinRatioBothEmptyIsHundred(t *testing.T) {
	assert.Equal(t, 100.0, LevenshteinRatio("", ""))
}

func TestLevenshteinRatioTotallyDifferentIsLow(t *testing.T) {
	r := LevenshteinRatio("abc", "xyz123")
	assert.Less(t, r, 50.0)
}

func TestLevenshteinRatioIsSymmetric(t *testing.T) {
	a := "mov eax, ebx\nadd eax, 1"
	b := "mov ecx, edx\nsub ecx, 2"
	assert.Equal(t, LevenshteinRatio(a, b), LevenshteinRatio(b, a))
}

func TestCFGSimilarityIdenticalGraphIsOne(t *testing.T) {
	g := cfgx.Extract("a:\n  jnz b\nb:\n  nop\nc:\n  nop")
	assert.Equal(t, 1.0, CFGSimilarity(g, g))
}

func TestCFGSimilarityBothEmptyIsOne(t *testing.T) {
	a := cfgx.Extract("")
	b := cfgx.Extract("")
	assert.Equal(t, 1.0, CFGSimilarity(a, b))
}

func TestCFGSimilarityOneEmptyIsZero(t *testing.T) {
	empty := cfgx.Extract("")
	nonEmpty := cfgx.Extract("a:\n  ret")
	assert.Equal(t, 0.0, CFGSimilarity(empty, nonEmpty))
	assert.Equal(t, 0.0, CFGSimilarity(nonEmpty, empty))
}

func TestCFGSimilarityIsSymmetric(t *testing.T) {
	a := cfgx.Extract("a:\n  jnz b\nb:\n  nop")
	b := cfgx.Extract("x:\n  jmp y\ny:\n  ret")
	assert.Equal(t, CFGSimilarity(a, b), CFGSimilarity(b, a))
}

func TestHybridWeightZeroIsPureLevenshtein(t *testing.T) {
	assert.Equal(t, 80.0, Hybrid(0.3, 80, 0))
}

func TestHybridWeightOneIsPureJaccard(t *testing.T) {
	assert.Equal(t, 70.0, Hybrid(0.7, 20, 1))
}

func TestHybridDefaultWeightBlends(t *testing.T) {
	got := Hybrid(1.0, 0.0, DefaultJaccardWeight)
	assert.InDelta(t, DefaultJaccardWeight*100, got, 0.0001)
}

func TestJaccardDelegatesToFingerprint(t *testing.T) {
	mh, err := fingerprint.Build("mov eax, ebx", 3, 128)
	require.NoError(t, err)
	assert.Equal(t, 1.0, Jaccard(mh, mh))
}
