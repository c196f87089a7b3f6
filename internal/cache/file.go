package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const fileIndexVersion = 1

type fileIndex struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// File keeps every verdict in one JSON index written atomically on Persist
type File struct {
	dir   string
	mu    sync.Mutex
	index fileIndex
	dirty bool
}

// OpenFile loads the index under dir. A missing index or one written by
// another version starts empty.
func OpenFile(dir string) (*File, error) {
	c := &File{
		dir:   dir,
		index: fileIndex{Version: fileIndexVersion, Entries: make(map[string]Entry)},
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache mkdir: %w", err)
	}
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read cache index: %w", err)
	}
	var idx fileIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse cache index: %w", err)
	}
	if idx.Version != fileIndexVersion {
		return c, nil
	}
	if idx.Entries != nil {
		c.index = idx
	}
	return c, nil
}

func (c *File) indexPath() string {
	return filepath.Join(c.dir, "index.json")
}

func (c *File) Get(key uint64) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.index.Entries[keyString(key)]
	return e, ok, nil
}

func (c *File) Put(key uint64, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index.Entries[keyString(key)] = e
	c.dirty = true
	return nil
}

// Len is the number of cached verdicts
func (c *File) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index.Entries)
}

func (c *File) Persist() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := writeJSONAtomic(c.indexPath(), c.index); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

func (c *File) Close() error {
	return c.Persist()
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
