package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShingleWeightRanges(t *testing.T) {
	cases := [][]string{
		{"MOV", "REG", "IMM"},
		{"MOV", "CPUID", "REG"},
		{"PUSH", "CALL", "FOO"},
	}
	for _, c := range cases {
		w := ShingleWeight(c)
		assert.Containsf(t, []int{1, 2, 3}, w, "weight for %v out of range", c)
	}
}

func TestShingleWeightRareDominates(t *testing.T) {
	assert.Equal(t, 3, ShingleWeight([]string{"MOV", "CPUID"}))
}

func TestShingleWeightAllCommonIsOne(t *testing.T) {
	assert.Equal(t, 1, ShingleWeight([]string{"MOV", "PUSH", "REG"}))
}

func TestShingleWeightMixedIsTwo(t *testing.T) {
	assert.Equal(t, 2, ShingleWeight([]string{"MOV", "FOOBAR"}))
}

func TestBuildShortInputUsesSingleElement(t *testing.T) {
	mh, err := Build("mov eax", 3, 128)
	require.NoError(t, err)
	assert.Len(t, mh.Values, 128)
}

func TestJaccardIdenticalIsOne(t *testing.T) {
	mh, err := Build("mov eax, ebx\nadd eax, 1", 3, 128)
	require.NoError(t, err)
	assert.Equal(t, 1.0, Jaccard(mh, mh))
}

func TestJaccardRareInstructionDominatesMatching(t *testing.T) {
	a, err := Build("cpuid\nmov eax, ebx\nadd eax, 1", 3, 128)
	require.NoError(t, err)
	b, err := Build("cpuid\nmov ecx, edx\nsub ecx, 2", 3, 128)
	require.NoError(t, err)
	c, err := Build("nop\nmov eax, ebx\nadd eax, 1", 3, 128)
	require.NoError(t, err)
	d, err := Build("nop\nmov ecx, edx\nsub ecx, 2", 3, 128)
	require.NoError(t, err)

	sharedRare := Jaccard(a, b)
	sharedCommonOnly := Jaccard(c, d)
	assert.Greater(t, sharedRare, sharedCommonOnly)
}

func TestMarshalRoundTrip(t *testing.T) {
	mh, err := Build("mov eax, ebx", 3, 128)
	require.NoError(t, err)
	data := mh.Marshal()
	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, mh.Values, got.Values)
}

func TestUnmarshalRejectsTruncated(t *testing.T) {
	_, err := Unmarshal([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestUnmarshalRejectsBadVersion(t *testing.T) {
	mh, err := Build("mov eax", 3, 16)
	require.NoError(t, err)
	data := mh.Marshal()
	data[0] = 0xFF
	_, err = Unmarshal(data)
	assert.Error(t, err)
}
