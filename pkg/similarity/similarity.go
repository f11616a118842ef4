// Package similarity implements the hybrid re-ranker's kernels (component
// D): MinHash Jaccard, Levenshtein ratio, CFG structural similarity, and
// the convex blend of the first two.
package similarity

import (
	"github.com/resembl/resembl/pkg/cfgx"
	"github.com/resembl/resembl/pkg/fingerprint"
	"github.com/resembl/resembl/pkg/mathutil"
)

// DefaultJaccardWeight is w in the hybrid blend (spec §4.D).
const DefaultJaccardWeight = 0.4

// Jaccard delegates to fingerprint.Jaccard so callers working purely in
// terms of similarity kernels don't need to import the fingerprint package
// directly.
func Jaccard(a, b *fingerprint.MinHash) float64 {
	return fingerprint.Jaccard(a, b)
}

// LevenshteinRatio is a percentage similarity in [0,100] derived from the
// edit distance between the two ORIGINAL code strings (not normalized
// forms), per spec §4.D.
func LevenshteinRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 100
	}

	dist := levenshteinDistance(ra, rb)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	ratio := (1.0 - float64(dist)/float64(maxLen)) * 100
	if ratio < 0 {
		ratio = 0
	}
	return ratio
}

// levenshteinDistance is the classic O(len(a)*len(b)) dynamic-programming
// edit distance (insert/delete/substitute all cost 1). No ecosystem
// library in the retrieved pack implements this (see DESIGN.md); it is
// short and standard enough to hand-write rather than pull in a dependency
// for a single well-known algorithm.
func levenshteinDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = mathutil.Min(mathutil.Min(del, ins), sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// CFGSimilarity is the equal-weighted average of three sub-scores (spec
// §4.D): block-count ratio, edge-count ratio, and block-size histogram
// cosine similarity.
func CFGSimilarity(a, b *cfgx.Graph) float64 {
	if a.NumBlocks == 0 && b.NumBlocks == 0 {
		return 1.0
	}
	if a.NumBlocks == 0 || b.NumBlocks == 0 {
		return 0.0
	}

	blockRatio := ratio(a.NumBlocks, b.NumBlocks)
	edgeRatio := edgeCountRatio(a.NumEdges, b.NumEdges)
	histCos := histogramCosine(a.BlockSizes, b.BlockSizes)

	return (blockRatio + edgeRatio + histCos) / 3.0
}

func ratio(a, b int) float64 {
	if a == 0 && b == 0 {
		return 1.0
	}
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	return float64(lo) / float64(hi)
}

func edgeCountRatio(a, b int) float64 {
	if a == 0 && b == 0 {
		return 1.0
	}
	if a == 0 || b == 0 {
		return 0.0
	}
	return ratio(a, b)
}

func histogramCosine(sizesA, sizesB []int) float64 {
	maxSize := 0
	for _, s := range sizesA {
		if s > maxSize {
			maxSize = s
		}
	}
	for _, s := range sizesB {
		if s > maxSize {
			maxSize = s
		}
	}

	histA := make([]float64, maxSize+1)
	histB := make([]float64, maxSize+1)
	for _, s := range sizesA {
		histA[s]++
	}
	for _, s := range sizesB {
		histB[s]++
	}

	return mathutil.CosineSimilarity(histA, histB)
}

// Hybrid blends a MinHash Jaccard estimate and a Levenshtein ratio into a
// single [0,100] score (spec §4.D). jaccard is in [0,1]; levenshtein is
// already in [0,100].
func Hybrid(jaccard, levenshtein, weight float64) float64 {
	return weight*(jaccard*100) + (1-weight)*levenshtein
}
