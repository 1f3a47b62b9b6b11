package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// FileCache stores entries as JSON files under a directory, two levels
// deep by key hash.
type FileCache struct {
	dir string
}

// NewFileCache creates a file cache in dir, creating it if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

type cacheEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// Get retrieves a value. Corrupt and expired entries are removed and
// reported as misses.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)
	entry, err := readEntry(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if errors.Is(err, errCorrupt) || (err == nil && entry.expired(time.Now())) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry.Data, true, nil
}

var errCorrupt = errors.New("corrupt cache entry")

func readEntry(path string) (cacheEntry, error) {
	var entry cacheEntry
	data, err := os.ReadFile(path)
	if err != nil {
		return entry, err
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, errCorrupt
	}
	return entry, nil
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Set stores a value.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	entry := cacheEntry{Data: data}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	entryData, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, entryData, 0o644)
}

// Delete removes a value.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	err := os.Remove(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes every entry and the shard directories, returning the
// number of entries removed.
func (c *FileCache) Clear(ctx context.Context) (int, error) {
	count := 0
	err := c.walk(ctx, func(path string) {
		if os.Remove(path) == nil {
			count++
		}
	})
	c.removeEmptyShards()
	return count, err
}

// Prune removes expired and corrupt entries, returning how many went.
func (c *FileCache) Prune(ctx context.Context) (int, error) {
	now := time.Now()
	count := 0
	err := c.walk(ctx, func(path string) {
		entry, err := readEntry(path)
		if errors.Is(err, errCorrupt) || (err == nil && entry.expired(now)) {
			if os.Remove(path) == nil {
				count++
			}
		}
	})
	c.removeEmptyShards()
	return count, err
}

// Stats summarises the entries on disk.
type Stats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
	Expired int   `json:"expired"`
}

// Stats counts entries and their size. Corrupt entries count as expired.
func (c *FileCache) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	now := time.Now()
	err := c.walk(ctx, func(path string) {
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		s.Entries++
		s.Bytes += info.Size()
		if entry, err := readEntry(path); errors.Is(err, errCorrupt) || (err == nil && entry.expired(now)) {
			s.Expired++
		}
	})
	return s, err
}

// walk calls fn for every entry file, stopping when ctx ends.
func (c *FileCache) walk(ctx context.Context, fn func(path string)) error {
	shards, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		dir := filepath.Join(c.dir, shard.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(filepath.Join(dir, e.Name()))
		}
	}
	return nil
}

func (c *FileCache) removeEmptyShards() {
	shards, _ := os.ReadDir(c.dir)
	for _, shard := range shards {
		if shard.IsDir() {
			_ = os.Remove(filepath.Join(c.dir, shard.Name()))
		}
	}
}

// Close does nothing for file cache.
func (c *FileCache) Close() error {
	return nil
}

func (c *FileCache) path(key string) string {
	hash := Hash([]byte(key))
	return filepath.Join(c.dir, hash[:2], hash[2:]+".json")
}

var _ Cache = (*FileCache)(nil)
