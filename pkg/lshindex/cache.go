package lshindex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/klauspost/compress/zstd"

	"github.com/resembl/resembl/internal/errs"
	"github.com/resembl/resembl/pkg/store"
)

// Cache is the LSH index's persistent, cross-process cache (spec §4.F).
// It implements store.CacheInvalidator so a Store can invalidate it
// directly on mutation.
type Cache struct {
	Dir string
}

// NewCache returns a cache rooted at dir, creating it if absent.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.New(errs.IOFailure, "lshindex.NewCache", err)
	}
	return &Cache{Dir: dir}, nil
}

func (c *Cache) indexPath(threshold float64) string {
	return filepath.Join(c.Dir, fmt.Sprintf("lsh_%.2f.bin.zst", threshold))
}

func (c *Cache) digestPath() string {
	return filepath.Join(c.Dir, "db_checksum.txt")
}

func (c *Cache) lockPath() string {
	return filepath.Join(c.Dir, ".lock")
}

// Save atomically writes the serialized, zstd-compressed index and the
// current corpus digest to the cache directory (spec §4.F `save`).
func (c *Cache) Save(s *store.Store, idx *Index) error {
	lock := flock.New(c.lockPath())
	if err := lock.Lock(); err != nil {
		return errs.New(errs.IOFailure, "lshindex.Cache.Save", err)
	}
	defer lock.Unlock()

	compressed, err := compress(idx.Marshal())
	if err != nil {
		return errs.New(errs.IOFailure, "lshindex.Cache.Save", err)
	}
	if err := writeAtomic(c.indexPath(idx.Threshold), compressed); err != nil {
		return err
	}

	digest, err := s.CorpusDigest()
	if err != nil {
		return errs.New(errs.IOFailure, "lshindex.Cache.Save", err)
	}
	if err := writeAtomic(c.digestPath(), []byte(digest)); err != nil {
		return err
	}
	return nil
}

// Load returns (nil, nil) if either file is missing or the stored digest
// disagrees with the current corpus digest — cache corruption or staleness
// both surface as a rebuild signal, never a hard error (spec §4.F `load`,
// §7 error propagation policy).
func (c *Cache) Load(s *store.Store, threshold float64, numPermutations int) (*Index, error) {
	storedDigest, err := os.ReadFile(c.digestPath())
	if err != nil {
		return nil, nil
	}

	currentDigest, err := s.CorpusDigest()
	if err != nil {
		return nil, errs.New(errs.IOFailure, "lshindex.Cache.Load", err)
	}
	if string(storedDigest) != currentDigest {
		return nil, nil
	}

	compressed, err := os.ReadFile(c.indexPath(threshold))
	if err != nil {
		return nil, nil
	}

	raw, err := decompress(compressed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lshindex: warning: corrupt cache at %s, rebuilding: %v\n", c.indexPath(threshold), err)
		return nil, nil
	}

	idx, err := Unmarshal(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lshindex: warning: corrupt cache at %s, rebuilding: %v\n", c.indexPath(threshold), err)
		return nil, nil
	}
	return idx, nil
}

// Invalidate removes every file in the cache directory (spec §4.F
// `invalidate`). Errors are ignored per spec §5's "delete-and-ignore-errors"
// invalidation protocol.
func (c *Cache) Invalidate() error {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		_ = os.Remove(filepath.Join(c.Dir, e.Name()))
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errs.New(errs.IOFailure, "lshindex.writeAtomic", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.New(errs.IOFailure, "lshindex.writeAtomic", err)
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("lshindex: create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("lshindex: create zstd decoder: %w", err)
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
