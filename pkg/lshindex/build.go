package lshindex

import (
	"github.com/resembl/resembl/internal/errs"
	"github.com/resembl/resembl/pkg/store"
)

// Build scans every snippet in s and inserts its (checksum, minhash) pair
// into a fresh index (spec §4.F `build`).
func Build(s *store.Store, threshold float64, numPermutations int) (*Index, error) {
	idx, err := New(threshold, numPermutations)
	if err != nil {
		return nil, err
	}

	snippets, err := s.List(0, 0)
	if err != nil {
		return nil, errs.New(errs.IOFailure, "lshindex.Build", err)
	}
	for _, snip := range snippets {
		idx.Insert(snip.Checksum, snip.MinHash)
	}
	return idx, nil
}
