package store

import (
	"github.com/pmezard/go-difflib/difflib"

	"github.com/resembl/resembl/internal/errs"
	"github.com/resembl/resembl/pkg/cfgx"
	"github.com/resembl/resembl/pkg/fingerprint"
	"github.com/resembl/resembl/pkg/similarity"
	"github.com/resembl/resembl/pkg/token"
)

// Compare assembles every similarity metric of spec §4.D for two stored
// snippets, plus the count of shared normalized-token types (spec §4.E
// `compare`). Returns (nil, nil) if either checksum is unknown.
func (s *Store) Compare(checksum1, checksum2 string, jaccardWeight float64) (*Comparison, error) {
	a, err := s.Get(checksum1)
	if err != nil {
		return nil, err
	}
	b, err := s.Get(checksum2)
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, nil
	}

	jaccard := fingerprint.Jaccard(a.MinHash, b.MinHash)
	levenshtein := similarity.LevenshteinRatio(a.Code, b.Code)
	hybrid := similarity.Hybrid(jaccard, levenshtein, jaccardWeight)

	cfgA := cfgx.Extract(a.Code)
	cfgB := cfgx.Extract(b.Code)
	cfgSim := similarity.CFGSimilarity(cfgA, cfgB)

	shared, err := sharedTokenTypes(a.Code, b.Code)
	if err != nil {
		return nil, errs.New(errs.IOFailure, "store.Compare", err)
	}

	diffText, err := unifiedDiff(checksum1, checksum2, a.Code, b.Code)
	if err != nil {
		return nil, errs.New(errs.IOFailure, "store.Compare", err)
	}

	return &Comparison{
		Jaccard:          jaccard,
		LevenshteinRatio: levenshtein,
		CFGSimilarity:    cfgSim,
		Hybrid:           hybrid,
		SharedTokenTypes: shared,
		DiffText:         diffText,
	}, nil
}

// unifiedDiff renders a plain-text unified diff of the two snippets' source
// lines, the data half of the original tool's `compare` command (its Rich
// colorized rendering is presentation and out of scope, per spec.md's
// "terminal UI" / "output formatting" non-goals).
func unifiedDiff(nameA, nameB, codeA, codeB string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(codeA),
		B:        difflib.SplitLines(codeB),
		FromFile: nameA,
		ToFile:   nameB,
		Context:  3,
	})
}

func sharedTokenTypes(codeA, codeB string) (int, error) {
	tokensA, err := token.Tokenize(codeA, true)
	if err != nil {
		return 0, err
	}
	tokensB, err := token.Tokenize(codeB, true)
	if err != nil {
		return 0, err
	}

	setA := make(map[string]bool, len(tokensA))
	for _, t := range tokensA {
		setA[t] = true
	}
	setB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		setB[t] = true
	}

	shared := 0
	for t := range setA {
		if setB[t] {
			shared++
		}
	}
	return shared, nil
}
