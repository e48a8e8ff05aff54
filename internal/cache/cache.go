// Package cache keeps per-file results on disk so unchanged files are not
// classified again. A small in-memory LRU sits in front of the disk.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fortio.org/safecast"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/phobologic/codecounter/internal/model"
)

// Current schema version - increment when the entry format changes.
const schemaVersion uint16 = 1

const memEntries = 4096

// Cache is safe for concurrent use. A nil *Cache is a disabled cache.
type Cache struct {
	dir string
	mem *lru.Cache[string, model.FileResult]
}

type entry struct {
	Schema uint16
	Result model.FileResult
}

// Open returns a cache stored under dir, creating it as needed. An empty
// dir returns a nil cache.
func Open(dir string) (*Cache, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	mem, err := lru.New[string, model.FileResult](memEntries)
	if err != nil {
		return nil, err
	}
	return &Cache{dir: dir, mem: mem}, nil
}

// Key identifies one version of a file: its path, size and modification
// time, and the version of the tool that counted it.
func Key(path string, size int64, mtime time.Time, version string) (string, error) {
	usize, err := safecast.Conv[uint64](size)
	if err != nil {
		return "", fmt.Errorf("file size %d: %w", size, err)
	}

	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(binary.BigEndian.AppendUint64(nil, usize))
	h.Write(binary.BigEndian.AppendUint64(nil, uint64(mtime.UnixNano())))
	h.Write([]byte(version))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (c *Cache) pathFor(key string) string {
	return filepath.Join(c.dir, key[:2], key+".mp")
}

// Get returns the cached result for key. A missing or stale entry is a
// miss, not an error.
func (c *Cache) Get(key string) (*model.FileResult, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	if r, ok := c.mem.Get(key); ok {
		return &r, true, nil
	}

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var e entry
	if err := msgpack.NewDecoder(f).Decode(&e); err != nil {
		return nil, false, fmt.Errorf("decoding cache entry %s: %w", key, err)
	}
	if e.Schema != schemaVersion {
		return nil, false, nil
	}
	c.mem.Add(key, e.Result)
	return &e.Result, true, nil
}

// Put stores r under key. The entry file is replaced atomically.
func (c *Cache) Put(key string, r *model.FileResult) error {
	if c == nil {
		return nil
	}
	c.mem.Add(key, *r)

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if err := msgpack.NewEncoder(f).Encode(&entry{Schema: schemaVersion, Result: *r}); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
