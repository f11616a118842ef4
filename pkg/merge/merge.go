// Package merge implements the cross-store merge engine (component H):
// reconcile a destination store with a source store by checksum, merging
// names/tags/collections without ever dropping existing data.
package merge

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/resembl/resembl/internal/errs"
	"github.com/resembl/resembl/internal/sqlstore"
	"github.com/resembl/resembl/pkg/store"
)

// Result is the outcome of a single merge run (spec §4.H `merge`).
type Result struct {
	Added         int
	Updated       int
	Skipped       int
	TotalSource   int
	Elapsed       time.Duration
	CorrelationID string
}

// Merge reconciles destination with every collection and snippet found in
// the store at sourcePath, per spec §4.H's algorithm. Every destination-side
// write runs inside a single transaction (spec §4.H: "single transaction on
// the destination... commit and invalidate the LSH cache"), so an error
// partway through leaves the destination exactly as it was before the run
// instead of half-merged.
func Merge(destination *store.Store, sourcePath string) (*Result, error) {
	start := time.Now()

	correlationID, err := uuid.NewRandom()
	if err != nil {
		return nil, errs.New(errs.IOFailure, "merge.Merge", fmt.Errorf("generate correlation id: %w", err))
	}
	result := &Result{CorrelationID: correlationID.String()}

	source, err := sqlstore.OpenReadOnly(sourcePath)
	if err != nil {
		return nil, errs.New(errs.IOFailure, "merge.Merge", fmt.Errorf("open source %s: %w", sourcePath, err))
	}
	defer source.Close()

	sourceStore := store.New(source)

	sourceSnippets, err := sourceStore.List(0, 0)
	if err != nil {
		return nil, err
	}
	result.TotalSource = len(sourceSnippets)

	tx, err := destination.Session.Begin()
	if err != nil {
		return nil, errs.New(errs.IOFailure, "merge.Merge", fmt.Errorf("[%s] begin transaction: %w", result.CorrelationID, err))
	}
	destTx := store.New(destination.Session.WithTx(tx))

	if err := mergeCollections(destTx, sourceStore); err != nil {
		tx.Rollback()
		return nil, err
	}

	for _, src := range sourceSnippets {
		changed, added, err := mergeSnippet(destTx, src)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		switch {
		case added:
			result.Added++
		case changed:
			result.Updated++
		default:
			result.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.New(errs.IOFailure, "merge.Merge", fmt.Errorf("[%s] commit transaction: %w", result.CorrelationID, err))
	}

	destination.InvalidateCacheAfterMerge()

	result.Elapsed = time.Since(start)
	return result, nil
}

func mergeCollections(destination, source *store.Store) error {
	collections, err := source.CollectionList()
	if err != nil {
		return err
	}
	for _, c := range collections {
		existing, err := destination.CollectionList()
		if err != nil {
			return err
		}
		if collectionExists(existing, c.Name) {
			continue
		}
		if _, err := destination.CollectionCreate(c.Name, c.Description); err != nil {
			return err
		}
	}
	return nil
}

func collectionExists(collections []*store.Collection, name string) bool {
	for _, c := range collections {
		if c.Name == name {
			return true
		}
	}
	return false
}

// mergeSnippet returns (changed, added, error). added implies changed.
func mergeSnippet(destination *store.Store, src *store.Snippet) (bool, bool, error) {
	dst, err := destination.Get(src.Checksum)
	if err != nil {
		return false, false, err
	}

	if dst == nil {
		if err := destination.InsertVerbatim(src); err != nil {
			return false, false, err
		}
		return true, true, nil
	}

	changed := false

	mergedNames, namesGrew := unionSorted(dst.Names, src.Names)
	if namesGrew {
		if err := destination.SetNames(dst.Checksum, mergedNames); err != nil {
			return false, false, err
		}
		changed = true
	}

	mergedTags, tagsGrew := unionSorted(dst.Tags, src.Tags)
	if tagsGrew {
		if err := destination.SetTags(dst.Checksum, mergedTags); err != nil {
			return false, false, err
		}
		changed = true
	}

	if dst.Collection == "" && src.Collection != "" {
		if err := destination.AssignCollection(dst.Checksum, src.Collection); err != nil {
			return false, false, err
		}
		changed = true
	}

	return changed, false, nil
}

func unionSorted(existing, incoming []string) ([]string, bool) {
	set := make(map[string]bool, len(existing)+len(incoming))
	for _, v := range existing {
		set[v] = true
	}
	grew := false
	for _, v := range incoming {
		if !set[v] {
			set[v] = true
			grew = true
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, grew
}
