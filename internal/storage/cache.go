package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Cache stores downloaded objects under a root directory.
type Cache struct {
	root string // absolute path to cache directory
}

// NewCache creates the cache directory if needed.
func NewCache(root string) (*Cache, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir cache: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &Cache{root: abs}, nil
}

// Root returns the absolute cache directory.
func (c *Cache) Root() string {
	return c.root
}

// Path returns the cache file for a location: the SHA-256 of the location
// followed by the location's file extension, which the network and extract
// readers use to pick a format.
func (c *Cache) Path(location string) string {
	name := checksum([]byte(location))[:32]
	if u, err := parseLocation(location); err == nil {
		name += strings.ToLower(path.Ext(u.Path))
	}
	return filepath.Join(c.root, name)
}

// Has reports whether location is already cached.
func (c *Cache) Has(location string) bool {
	info, err := os.Stat(c.Path(location))
	return err == nil && info.Mode().IsRegular()
}

// Write atomically stores r as the cache entry for location: tmp file → fsync → rename.
func (c *Cache) Write(location string, r io.Reader) (string, int64, error) {
	dst := c.Path(location)

	tmp, err := os.CreateTemp(c.root, ".hfx-tmp-*")
	if err != nil {
		return "", 0, fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return "", 0, fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", 0, fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return "", 0, fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return dst, n, nil
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
