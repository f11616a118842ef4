package store

import "github.com/resembl/resembl/pkg/fingerprint"

// Snippet is the primary persisted entity (spec §3): a content-addressed
// assembly snippet with alias names, a tag set, and optional collection
// membership.
type Snippet struct {
	Checksum   string
	Names      []string
	Code       string
	MinHash    *fingerprint.MinHash
	Tags       []string
	Collection string // "" means no collection
}

// HasName reports whether name is already one of the snippet's aliases.
func (s *Snippet) HasName(name string) bool {
	for _, n := range s.Names {
		if n == name {
			return true
		}
	}
	return false
}

// HasTag reports whether tag is already present.
func (s *Snippet) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Collection is a named, optionally described group of snippets (spec §3).
type Collection struct {
	Name        string
	Description string
	CreatedAt   string
}

// SnippetVersion is an append-only history entry for a snippet (spec §3).
type SnippetVersion struct {
	ID              int64
	VersionUUID     string
	SnippetChecksum string
	Code            string
	MinHash         *fingerprint.MinHash
	CreatedAt       string
}

// Comparison bundles every similarity metric of spec §4.D for a pair of
// snippets, plus the count of shared normalized-token types.
type Comparison struct {
	Jaccard          float64
	LevenshteinRatio float64
	CFGSimilarity    float64
	Hybrid           float64
	SharedTokenTypes int
	DiffText         string // unified diff of the two snippets' source lines
}

// Stats summarizes the corpus for the store's stats() operation (spec §4.E).
type Stats struct {
	SnippetCount        int
	MeanCodeLength      float64
	VocabularySize      int
	MeanPairwiseJaccard float64
	SampleSize          int
}
