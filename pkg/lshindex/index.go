// Package lshindex implements the LSH candidate index and its persistent
// cache (component F): a banded index over MinHash signatures, grounded on
// the band/row hashing scheme of the teacher's RetrievalKernel
// (pkg/kernel/retrieval.go), generalized from an embedding index to the
// spec's (checksum, MinHash) candidate-generation contract.
package lshindex

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/resembl/resembl/internal/errs"
	"github.com/resembl/resembl/pkg/fingerprint"
)

const queryCacheSize = 256

// Index is an LSH candidate index parameterized by (threshold,
// num_permutations), as spec §4.F requires.
type Index struct {
	Threshold       float64
	NumPermutations int
	NumBands        int
	NumRows         int

	buckets     map[string][]string
	signatures  map[string]*fingerprint.MinHash
	queryCache  *lru.Cache[string, []string]
}

// New builds an empty index for the given threshold and permutation count.
// A threshold outside [0, 0.99) or a non-positive permutation count
// surfaces InvalidParameter rather than panicking (spec §4.F).
func New(threshold float64, numPermutations int) (*Index, error) {
	if threshold < 0 || threshold >= 0.99 {
		return nil, errs.New(errs.InvalidParameter, "lshindex.New",
			fmt.Errorf("threshold %v out of range [0,0.99)", threshold))
	}
	if numPermutations <= 0 {
		return nil, errs.New(errs.InvalidParameter, "lshindex.New",
			fmt.Errorf("numPermutations must be positive, got %d", numPermutations))
	}

	numBands := bandsForThreshold(threshold, numPermutations)
	numRows := numPermutations / numBands
	if numRows == 0 {
		return nil, errs.New(errs.InvalidParameter, "lshindex.New",
			fmt.Errorf("threshold %v requires more bands than %d permutations can support", threshold, numPermutations))
	}

	cache, _ := lru.New[string, []string](queryCacheSize)

	return &Index{
		Threshold:       threshold,
		NumPermutations: numPermutations,
		NumBands:        numBands,
		NumRows:         numRows,
		buckets:         make(map[string][]string),
		signatures:      make(map[string]*fingerprint.MinHash),
		queryCache:      cache,
	}, nil
}

// bandsForThreshold picks a band count targeting the usual LSH S-curve
// inflection point (1/bands)^(1/rows) ≈ threshold, clamped to a sane range.
func bandsForThreshold(threshold float64, numPermutations int) int {
	best, bestDiff := 1, math.Inf(1)
	for bands := 1; bands <= numPermutations; bands++ {
		rows := numPermutations / bands
		inflection := math.Pow(1/float64(bands), 1/float64(rows))
		if diff := math.Abs(inflection - threshold); diff < bestDiff {
			best, bestDiff = bands, diff
		}
	}
	return best
}

// Insert adds a (checksum, minhash) pair. Idempotent: inserting an
// already-present checksum is a silent no-op, never a panic or an error.
// Insert returns nothing, so a caller cannot tell from the call whether the
// pair was added (InsertBatch counts additions by checking membership
// before each call).
func (idx *Index) Insert(checksum string, mh *fingerprint.MinHash) {
	if _, exists := idx.signatures[checksum]; exists {
		return
	}
	idx.signatures[checksum] = mh

	for _, key := range idx.bandKeys(mh) {
		idx.buckets[key] = append(idx.buckets[key], checksum)
	}
	idx.queryCache.Purge()
}

// InsertBatch inserts every snippet and returns the count actually added
// (spec §4.F `insert_batch`).
func (idx *Index) InsertBatch(snippets map[string]*fingerprint.MinHash) int {
	inserted := 0
	for checksum, mh := range snippets {
		if _, exists := idx.signatures[checksum]; exists {
			continue
		}
		idx.Insert(checksum, mh)
		inserted++
	}
	return inserted
}

// Query returns the candidate checksum set for mh (spec §4.F `query`).
// Results are memoized in an in-process LRU keyed by the signature's
// marshaled bytes, since repeated queries for the same fingerprint within
// a session are the common case in interactive use.
func (idx *Index) Query(mh *fingerprint.MinHash) []string {
	cacheKey := string(mh.Marshal())
	if cached, ok := idx.queryCache.Get(cacheKey); ok {
		return cached
	}

	seen := make(map[string]bool)
	for _, key := range idx.bandKeys(mh) {
		for _, checksum := range idx.buckets[key] {
			seen[checksum] = true
		}
	}

	candidates := make([]string, 0, len(seen))
	for checksum := range seen {
		candidates = append(candidates, checksum)
	}
	sort.Strings(candidates)

	idx.queryCache.Add(cacheKey, candidates)
	return candidates
}

func (idx *Index) bandKeys(mh *fingerprint.MinHash) []string {
	keys := make([]string, idx.NumBands)
	for b := 0; b < idx.NumBands; b++ {
		start := b * idx.NumRows
		end := start + idx.NumRows
		if end > len(mh.Values) {
			end = len(mh.Values)
		}
		keys[b] = fmt.Sprintf("%d:%x", b, hashBand(mh.Values[start:end]))
	}
	return keys
}

func hashBand(values []uint64) uint64 {
	h := fnv.New64a()
	buf := make([]byte, 8)
	for _, v := range values {
		binary.BigEndian.PutUint64(buf, v)
		h.Write(buf)
	}
	return h.Sum64()
}

// Signatures exposes the stored (checksum, minhash) pairs. The returned
// map is the index's own, not a copy.
func (idx *Index) Signatures() map[string]*fingerprint.MinHash {
	return idx.signatures
}
