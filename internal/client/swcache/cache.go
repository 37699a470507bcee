// Package swcache is the client's versioned asset cache: one directory per
// deployed build version, fronting asset fetches from the server so the app
// keeps working offline and across deploys.
package swcache

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mzhdanov/bandtrack/internal/common"
)

const versionPrefix = "assets-"

// Entry is one cached response body with its content type.
type Entry struct {
	Body        []byte
	ContentType string
}

// Cache stores entries under <root>/assets-<version>/<escaped key>.
type Cache struct {
	root string
}

func NewCache(root string) (*Cache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	return &Cache{root: root}, nil
}

func (c *Cache) versionDir(version int64) string {
	return filepath.Join(c.root, versionPrefix+strconv.FormatInt(version, 10))
}

// NormalizeKey strips transient query parameters so a cache-busted request
// and its plain form share one entry.
func NormalizeKey(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

func entryName(key string) string {
	return url.PathEscape(NormalizeKey(key))
}

// Put writes the entry atomically: temp file then rename, so a concurrent
// reader never sees a torn body.
func (c *Cache) Put(version int64, key string, e Entry) error {
	dir := c.versionDir(version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create version cache: %w", err)
	}
	name := filepath.Join(dir, entryName(key))

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	if _, err := tmp.Write(e.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cache put: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache put: %w", err)
	}
	if err := os.Rename(tmp.Name(), name); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache put: %w", err)
	}
	if err := os.WriteFile(name+".ct", []byte(e.ContentType), 0o644); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Get reads an entry from one specific version's cache.
func (c *Cache) Get(version int64, key string) (*Entry, error) {
	name := filepath.Join(c.versionDir(version), entryName(key))
	body, err := os.ReadFile(name)
	if os.IsNotExist(err) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	ct, err := os.ReadFile(name + ".ct")
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return &Entry{Body: body, ContentType: string(ct)}, nil
}

// Lookup searches every retained version newest first. A fresh version's
// cache may be sparse while an older one still holds what a stale document
// needs.
func (c *Cache) Lookup(key string) (*Entry, int64, error) {
	versions, err := c.ListVersions()
	if err != nil {
		return nil, 0, err
	}
	for _, v := range versions {
		e, err := c.Get(v, key)
		if err == nil {
			return e, v, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, 0, err
		}
	}
	return nil, 0, common.ErrorNotFound
}

// ListVersions returns retained cache versions, newest first.
func (c *Cache) ListVersions() ([]int64, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("list cache versions: %w", err)
	}
	var versions []int64
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), versionPrefix) {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimPrefix(e.Name(), versionPrefix), 10, 64)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })
	return versions, nil
}

// Prune deletes the oldest version caches beyond keep.
func (c *Cache) Prune(keep int) error {
	versions, err := c.ListVersions()
	if err != nil {
		return err
	}
	for i := len(versions) - 1; i >= keep; i-- {
		if err := os.RemoveAll(c.versionDir(versions[i])); err != nil {
			return fmt.Errorf("prune cache version %d: %w", versions[i], err)
		}
	}
	return nil
}

// DeleteAll wipes every version cache. Used by the updater's hard reset.
func (c *Cache) DeleteAll() error {
	versions, err := c.ListVersions()
	if err != nil {
		return err
	}
	for _, v := range versions {
		if err := os.RemoveAll(c.versionDir(v)); err != nil {
			return fmt.Errorf("delete cache version %d: %w", v, err)
		}
	}
	return nil
}
