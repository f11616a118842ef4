// Package fingerprint builds weighted shingle sets into fixed-width MinHash
// signatures (component B). The rare/common instruction weighting boosts
// distinctive mnemonics and attenuates ubiquitous ones before they ever
// reach the permutation hashing, the same "salt the universal hash family"
// idea the teacher's RetrievalKernel applies with its (a*x+b) mod p linear
// hash functions (pkg/kernel/retrieval.go) — generalized here to a weighted
// multiset instead of a flat one.
package fingerprint

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/resembl/resembl/pkg/token"
)

const (
	// DefaultNumPermutations is N from spec §3/§4.B.
	DefaultNumPermutations = 128
	// DefaultNgramSize is the default shingle width (spec §4.B).
	DefaultNgramSize = 3
	// maxPermutations bounds the precomputed hash-function table; any
	// NumPermutations above this is clamped down to it.
	maxPermutations = 1024
	// fingerprintVersion is the leading byte of the serialized format,
	// bumped whenever the binary layout changes (Design Note "Opaque
	// serialized MinHash").
	fingerprintVersion byte = 1
	// permutationSeed is fixed so every MinHash built anywhere in the
	// process (and across processes reading the same cache) uses the same
	// permutation family — signatures from two separate Build calls are
	// only comparable if both used identical hash functions.
	permutationSeed = 0x5151C0DE
)

var permA, permB [maxPermutations]uint64

func init() {
	rng := rand.New(rand.NewSource(permutationSeed))
	for i := range permA {
		// Odd multiplier for better avalanche across the low bits.
		permA[i] = rng.Uint64() | 1
		permB[i] = rng.Uint64()
	}
}

// MinHash is a fixed-width signature: for shingle sets S1, S2 built the
// same way, P[sig1[i] == sig2[i]] approximates Jaccard(S1, S2).
type MinHash struct {
	Values []uint64
}

// NewMinHash allocates a signature of the given width, every slot
// initialized to the maximum value (spec §4.B step 3's "otherwise-empty
// signature").
func NewMinHash(numPermutations int) *MinHash {
	if numPermutations <= 0 {
		numPermutations = DefaultNumPermutations
	}
	if numPermutations > maxPermutations {
		numPermutations = maxPermutations
	}
	v := make([]uint64, numPermutations)
	for i := range v {
		v[i] = math.MaxUint64
	}
	return &MinHash{Values: v}
}

func (m *MinHash) update(h uint64) {
	for i := range m.Values {
		v := permA[i]*h + permB[i] // intentional uint64 wraparound: a cheap universal hash family
		if v < m.Values[i] {
			m.Values[i] = v
		}
	}
}

// insert adds one shingle to the signature weight times, each replica
// hashed independently (via a distinguishing suffix) so that it gets its
// own independent draw against every permutation — repeated insertion
// increases the shingle's odds of being the min for some band (spec §4.B
// step 6).
func (m *MinHash) insert(shingle []byte, weight int) {
	for r := 0; r < weight; r++ {
		h := fnv.New64a()
		h.Write(shingle)
		h.Write([]byte{'#'})
		h.Write([]byte(strconv.Itoa(r)))
		m.update(h.Sum64())
	}
}

// ShingleWeight computes w ∈ {1,2,3} for a shingle's token window per
// spec §4.B step 5. Tokens are expected already upper-cased (the output of
// token.Tokenize).
func ShingleWeight(tokens []string) int {
	rare := false
	allCommon := true
	for _, t := range tokens {
		if token.RareInstructions[t] {
			rare = true
		}
		if !token.CommonInstructions[t] {
			allCommon = false
		}
	}
	switch {
	case rare:
		return 3
	case allCommon:
		return 1
	default:
		return 2
	}
}

// Build tokenizes code (always normalized — fingerprinting is a fuzzy
// operation) and returns its MinHash signature.
func Build(code string, ngramSize, numPermutations int) (*MinHash, error) {
	tokens, err := token.Tokenize(code, true)
	if err != nil {
		return nil, err
	}
	return BuildFromTokens(tokens, ngramSize, numPermutations), nil
}

// BuildFromTokens builds a signature directly from an already-tokenized
// stream, for callers (like the query pipeline) that tokenize once and
// reuse the result.
func BuildFromTokens(tokens []string, ngramSize, numPermutations int) *MinHash {
	if ngramSize < 1 {
		ngramSize = DefaultNgramSize
	}
	mh := NewMinHash(numPermutations)

	if len(tokens) < ngramSize {
		mh.insert([]byte(strings.Join(tokens, " ")), 1)
		return mh
	}

	seen := make(map[string]bool, len(tokens)-ngramSize+1)
	for i := 0; i+ngramSize <= len(tokens); i++ {
		window := tokens[i : i+ngramSize]
		key := strings.Join(window, " ")
		if seen[key] {
			continue
		}
		seen[key] = true
		mh.insert([]byte(key), ShingleWeight(window))
	}
	return mh
}

// Jaccard estimates the Jaccard index of the two signatures' underlying
// weighted shingle multisets from the fraction of matching slots.
func Jaccard(a, b *MinHash) float64 {
	if len(a.Values) == 0 || len(a.Values) != len(b.Values) {
		return 0
	}
	matches := 0
	for i := range a.Values {
		if a.Values[i] == b.Values[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a.Values))
}

// Marshal serializes the signature to a stable binary layout: a version
// byte, a uint32 element count, then each element as big-endian uint64 —
// not a language-coupled object graph (Design Note "Opaque serialized
// MinHash").
func (m *MinHash) Marshal() []byte {
	buf := make([]byte, 1+4+8*len(m.Values))
	buf[0] = fingerprintVersion
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(m.Values)))
	for i, v := range m.Values {
		binary.BigEndian.PutUint64(buf[5+8*i:13+8*i], v)
	}
	return buf
}

// Unmarshal deserializes a signature written by Marshal. Callers MUST use
// this to read back anything Marshal wrote (spec §6).
func Unmarshal(data []byte) (*MinHash, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("fingerprint: truncated header (%d bytes)", len(data))
	}
	if data[0] != fingerprintVersion {
		return nil, fmt.Errorf("fingerprint: unsupported version %d", data[0])
	}
	count := binary.BigEndian.Uint32(data[1:5])
	want := 5 + 8*int(count)
	if len(data) != want {
		return nil, fmt.Errorf("fingerprint: expected %d bytes, got %d", want, len(data))
	}
	values := make([]uint64, count)
	for i := range values {
		values[i] = binary.BigEndian.Uint64(data[5+8*i : 13+8*i])
	}
	return &MinHash{Values: values}, nil
}
