// Package query orchestrates the end-to-end similarity search pipeline
// (component G): tokenize/fingerprint the query, fetch LSH candidates,
// fetch their snippets, and re-rank by the hybrid score.
package query

import (
	"fmt"
	"sort"

	"github.com/resembl/resembl/internal/errs"
	"github.com/resembl/resembl/pkg/fingerprint"
	"github.com/resembl/resembl/pkg/lshindex"
	"github.com/resembl/resembl/pkg/similarity"
	"github.com/resembl/resembl/pkg/store"
)

// Match pairs a candidate snippet with its hybrid score against the query.
type Match struct {
	Snippet *store.Snippet
	Hybrid  float64
}

// Pipeline bundles the collaborators find_matches needs: the snippet store
// and the LSH cache directory.
type Pipeline struct {
	Store *store.Store
	Cache *lshindex.Cache
}

// NewPipeline wires a store and a cache into a query pipeline, also
// registering the cache as the store's invalidation hook so inserts,
// deletes, and reindexes keep the on-disk index honest (spec §4.E/§4.F
// interplay).
func NewPipeline(s *store.Store, cache *lshindex.Cache) *Pipeline {
	s.SetCacheInvalidator(cache)
	return &Pipeline{Store: s, Cache: cache}
}

// FindMatches runs the six-step pipeline of spec §4.G.
//
// The `normalize` parameter mirrors the distilled spec's find_matches
// signature, but every corpus MinHash is built with normalize=true (see
// pkg/store.Add/Reindex) — a query fingerprint built any other way would
// never be comparable to a stored one, so this pipeline always builds the
// query signature with normalize=true regardless of the flag's value; the
// parameter is accepted for interface fidelity and documented here rather
// than silently dropped.
func (p *Pipeline) FindMatches(queryCode string, topN int, threshold float64, normalize bool, ngramSize int, jaccardWeight float64) (int, []Match, error) {
	idx, err := p.loadOrBuild(threshold, fingerprint.DefaultNumPermutations)
	if err != nil {
		if errs.Is(err, errs.InvalidParameter) {
			return 0, nil, nil
		}
		return 0, nil, err
	}

	queryMinHash, err := fingerprint.Build(queryCode, ngramSize, fingerprint.DefaultNumPermutations)
	if err != nil {
		return 0, nil, errs.New(errs.IOFailure, "query.FindMatches", err)
	}

	candidates := idx.Query(queryMinHash)
	if len(candidates) == 0 {
		return 0, nil, nil
	}

	matches := make([]Match, 0, len(candidates))
	for _, checksum := range candidates {
		snip, err := p.Store.Get(checksum)
		if err != nil {
			return 0, nil, err
		}
		if snip == nil {
			continue // vanished since candidate generation; skip per spec §4.G step 4
		}

		jaccard := fingerprint.Jaccard(queryMinHash, snip.MinHash)
		levenshtein := similarity.LevenshteinRatio(queryCode, snip.Code)
		hybrid := similarity.Hybrid(jaccard, levenshtein, jaccardWeight)

		matches = append(matches, Match{Snippet: snip, Hybrid: hybrid})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Hybrid > matches[j].Hybrid })

	if topN > 0 && len(matches) > topN {
		matches = matches[:topN]
	}
	return len(candidates), matches, nil
}

func (p *Pipeline) loadOrBuild(threshold float64, numPermutations int) (*lshindex.Index, error) {
	idx, err := p.Cache.Load(p.Store, threshold, numPermutations)
	if err != nil {
		return nil, err
	}
	if idx != nil {
		return idx, nil
	}

	idx, err = lshindex.Build(p.Store, threshold, numPermutations)
	if err != nil {
		return nil, err
	}
	if err := p.Cache.Save(p.Store, idx); err != nil {
		return nil, fmt.Errorf("query: save lsh cache: %w", err)
	}
	return idx, nil
}
