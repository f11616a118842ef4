package store

import (
	"github.com/resembl/resembl/internal/errs"
	"github.com/resembl/resembl/pkg/fingerprint"
	"github.com/resembl/resembl/pkg/token"
)

// DefaultSampleSize is the default sample size for stats()'s mean pairwise
// Jaccard estimate (spec §4.E `stats`).
const DefaultSampleSize = 100

// Stats computes corpus-wide summary statistics (spec §4.E `stats`).
func (s *Store) Stats(sampleSize int) (*Stats, error) {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	snippets, err := s.List(0, 0)
	if err != nil {
		return nil, err
	}

	st := &Stats{SnippetCount: len(snippets)}
	if len(snippets) == 0 {
		return st, nil
	}

	totalLen := 0
	vocab := make(map[string]bool)
	for _, snip := range snippets {
		totalLen += len(snip.Code)
		tokens, err := token.Tokenize(snip.Code, true)
		if err != nil {
			return nil, errs.New(errs.IOFailure, "store.Stats", err)
		}
		for _, t := range tokens {
			vocab[t] = true
		}
	}
	st.MeanCodeLength = float64(totalLen) / float64(len(snippets))
	st.VocabularySize = len(vocab)

	sample := s.sampleSnippets(snippets, sampleSize)
	st.SampleSize = len(sample)
	st.MeanPairwiseJaccard = meanPairwiseJaccard(sample)

	return st, nil
}

// sampleSnippets performs a uniform sample without replacement of size n
// (or the whole corpus when it has ≤ n elements), via a full Fisher-Yates
// shuffle of a copy of the slice, keeping its first n elements.
func (s *Store) sampleSnippets(snippets []*Snippet, n int) []*Snippet {
	if len(snippets) <= n {
		return snippets
	}

	shuffled := make([]*Snippet, len(snippets))
	copy(shuffled, snippets)

	rng := s.rng()
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:n]
}

func meanPairwiseJaccard(snippets []*Snippet) float64 {
	if len(snippets) < 2 {
		return 0
	}

	var sum float64
	var pairs int
	for i := 0; i < len(snippets); i++ {
		for j := i + 1; j < len(snippets); j++ {
			sum += fingerprint.Jaccard(snippets[i].MinHash, snippets[j].MinHash)
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}
