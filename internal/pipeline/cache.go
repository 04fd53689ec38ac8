package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/facts"
)

const (
	renderCacheVersion     = 1
	factTablesCacheVersion = 1
)

// renderEntry remembers what produced an output file.
type renderEntry struct {
	Key    string `json:"key"`
	Format string `json:"format"`
}

type renderIndex struct {
	Version int                    `json:"version"`
	Entries map[string]renderEntry `json:"entries"`
}

// renderCache skips re-rendering an output whose graph text, format and
// renderer have not changed since the file was written.
type renderCache struct {
	dir   string
	mu    sync.Mutex
	index renderIndex
}

func newRenderCache(dir string) *renderCache {
	return &renderCache{
		dir:   dir,
		index: renderIndex{Version: renderCacheVersion, Entries: make(map[string]renderEntry)},
	}
}

func (c *renderCache) indexPath() string {
	return filepath.Join(c.dir, "renders.json")
}

func (c *renderCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read render cache: %w", err)
	}
	var idx renderIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("parse render cache: %w", err)
	}
	if idx.Version != renderCacheVersion {
		// Reset on version mismatch
		return nil
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]renderEntry)
	}
	c.index = idx
	return nil
}

func (c *renderCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeJSONAtomic(c.indexPath(), c.index)
}

// Fresh reports whether output exists and was rendered from key.
func (c *renderCache) Fresh(output, key string) bool {
	c.mu.Lock()
	entry, ok := c.index.Entries[output]
	c.mu.Unlock()
	if !ok || entry.Key != key {
		return false
	}
	_, err := os.Stat(output)
	return err == nil
}

func (c *renderCache) Put(output, format, key string) {
	c.mu.Lock()
	c.index.Entries[output] = renderEntry{Key: key, Format: format}
	c.mu.Unlock()
}

func renderKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type factTablesCache struct {
	Version int          `json:"version"`
	Tables  facts.Tables `json:"tables"`
}

func loadFactTablesCache(dir string) (facts.Tables, bool, error) {
	path := filepath.Join(dir, "fact_tables.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return facts.Tables{}, false, nil
		}
		return facts.Tables{}, false, fmt.Errorf("read fact tables cache: %w", err)
	}
	var cache factTablesCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return facts.Tables{}, false, fmt.Errorf("parse fact tables cache: %w", err)
	}
	if cache.Version != factTablesCacheVersion {
		return facts.Tables{}, false, nil
	}
	return cache.Tables, true, nil
}

func saveFactTablesCache(dir string, tables facts.Tables) error {
	cache := factTablesCache{
		Version: factTablesCacheVersion,
		Tables:  tables,
	}
	if err := writeJSONAtomic(filepath.Join(dir, "fact_tables.json"), cache); err != nil {
		return fmt.Errorf("write fact tables cache: %w", err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache json: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
