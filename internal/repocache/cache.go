package repocache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/derive-tools/derive-census/internal/domain"
)

// Config holds cache limits.
type Config struct {
	// Root is the directory clones live under.
	Root string

	// MaxRepositories caps the number of cached clones. Zero or negative
	// disables the count limit.
	MaxRepositories int

	// MaxSizeGB caps the total disk usage of the cache. Zero or negative
	// disables the size limit.
	MaxSizeGB float64
}

// Cache is a bounded on-disk store of shallow repository clones shared by
// every worker. Eviction is insertion-ordered: the oldest clone goes first
// when either limit is hit. Admission bookkeeping is serialized under one
// lock so the count and size limits hold globally, but the lock is not held
// across clone or disk-usage subprocesses: distinct repositories clone
// concurrently, while a per-key lock serializes work on the same repository.
type Cache struct {
	cfg Config
	git *GitClient

	mu       sync.Mutex
	order    []string // cache keys, oldest first
	paths    map[string]string
	inflight map[string]*keyLock
}

// keyLock serializes Ensure calls for one repository key. The ref count lets
// the entry be dropped once no caller holds or awaits it.
type keyLock struct {
	sync.Mutex
	refs int
}

// NewCache creates a cache rooted at cfg.Root, creating the directory if
// needed. Clones left by previous runs are adopted in modification-time
// order so they participate in eviction.
func NewCache(cfg Config, git *GitClient) (*Cache, error) {
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}

	c := &Cache{
		cfg:      cfg,
		git:      git,
		paths:    make(map[string]string),
		inflight: make(map[string]*keyLock),
	}
	if err := c.adoptExisting(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) adoptExisting() error {
	entries, err := os.ReadDir(c.cfg.Root)
	if err != nil {
		return fmt.Errorf("read cache root: %w", err)
	}

	type adopted struct {
		key     string
		modTime int64
	}
	var found []adopted
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, adopted{key: entry.Name(), modTime: info.ModTime().UnixNano()})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].modTime < found[j].modTime })

	for _, a := range found {
		c.order = append(c.order, a.key)
		c.paths[a.key] = filepath.Join(c.cfg.Root, a.key)
	}
	return nil
}

// Ensure returns the path of a valid local clone of the repository, cloning
// it if absent and re-cloning if the existing copy is corrupt. Limits are
// enforced before the clone so the new entry is never the eviction victim.
// The clone subprocess runs outside the global lock; only the per-key lock
// is held for its duration.
func (c *Cache) Ensure(ctx context.Context, repo domain.Repository) (string, error) {
	key := sanitizeKey(repo.FullName)
	path := filepath.Join(c.cfg.Root, key)

	kl := c.lockKey(key)
	defer c.unlockKey(key, kl)

	if c.isValidClone(ctx, path) {
		c.mu.Lock()
		c.touchLocked(key, path)
		c.mu.Unlock()
		slog.Debug("Cache hit", "repository", repo.FullName, "path", path)
		return path, nil
	}

	// A directory that fails validation is a broken or partial clone.
	if _, err := os.Stat(path); err == nil {
		slog.Warn("Removing invalid cached clone", "repository", repo.FullName, "path", path)
		c.mu.Lock()
		rerr := c.removeLocked(key, path)
		c.mu.Unlock()
		if rerr != nil {
			return "", fmt.Errorf("remove invalid clone %s: %w", key, rerr)
		}
	} else if c.tracked(key) {
		// Tracked but gone from disk: drop the stale mapping.
		c.mu.Lock()
		_ = c.removeLocked(key, path)
		c.mu.Unlock()
	}

	if err := c.enforceLimits(ctx); err != nil {
		return "", err
	}

	slog.Info("Cloning repository", "repository", repo.FullName)
	if err := c.git.Clone(ctx, repo.CloneURL, path); err != nil {
		// Drop any partial clone so the next attempt starts clean.
		_ = os.RemoveAll(path)
		return "", fmt.Errorf("clone %s: %w", repo.FullName, err)
	}

	c.mu.Lock()
	c.order = append(c.order, key)
	c.paths[key] = path
	c.mu.Unlock()
	return path, nil
}

// lockKey takes the per-key lock, creating it on first use.
func (c *Cache) lockKey(key string) *keyLock {
	c.mu.Lock()
	kl, ok := c.inflight[key]
	if !ok {
		kl = &keyLock{}
		c.inflight[key] = kl
	}
	kl.refs++
	c.mu.Unlock()

	kl.Lock()
	return kl
}

// unlockKey releases the per-key lock and drops it once unreferenced.
func (c *Cache) unlockKey(key string, kl *keyLock) {
	kl.Unlock()

	c.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(c.inflight, key)
	}
	c.mu.Unlock()
}

func (c *Cache) tracked(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.paths[key]
	return ok
}

// isValidClone reports whether path holds a working git clone: a .git
// directory that git itself can read.
func (c *Cache) isValidClone(ctx context.Context, path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	if err != nil || !info.IsDir() {
		return false
	}
	return c.git.StatusOK(ctx, path)
}

// touchLocked registers a clone found on disk (from a prior run or another
// worker) without changing the position of an already-tracked key. Caller
// holds c.mu.
func (c *Cache) touchLocked(key, path string) {
	if _, ok := c.paths[key]; ok {
		return
	}
	c.order = append(c.order, key)
	c.paths[key] = path
}

// enforceLimits evicts oldest entries until both the count and size limits
// leave room for one more clone. The disk-usage subprocess runs outside the
// global lock.
func (c *Cache) enforceLimits(ctx context.Context) error {
	c.mu.Lock()
	if c.cfg.MaxRepositories > 0 {
		for len(c.order) >= c.cfg.MaxRepositories {
			if err := c.evictOldestLocked(); err != nil {
				c.mu.Unlock()
				return err
			}
		}
	}
	c.mu.Unlock()

	if c.cfg.MaxSizeGB <= 0 {
		return nil
	}
	maxBytes := int64(c.cfg.MaxSizeGB * 1024 * 1024 * 1024)
	for {
		if c.Len() == 0 {
			return nil
		}

		size, err := c.git.DiskUsage(ctx, c.cfg.Root)
		if err != nil {
			return fmt.Errorf("measure cache size: %w", err)
		}
		if size <= maxBytes {
			return nil
		}

		slog.Info("Cache over size limit, evicting", "size_bytes", size, "max_bytes", maxBytes)
		c.mu.Lock()
		err = c.evictOldestLocked()
		c.mu.Unlock()
		if err != nil {
			return err
		}
	}
}

// evictOldestLocked removes the oldest entry. Caller holds c.mu.
func (c *Cache) evictOldestLocked() error {
	if len(c.order) == 0 {
		return nil
	}
	key := c.order[0]
	slog.Info("Evicting cached clone", "key", key)
	if err := c.removeLocked(key, c.paths[key]); err != nil {
		return fmt.Errorf("evict %s: %w", key, err)
	}
	return nil
}

// removeLocked deletes the directory and drops the mapping. Caller holds c.mu.
func (c *Cache) removeLocked(key, path string) error {
	if err := os.RemoveAll(path); err != nil {
		return err
	}
	delete(c.paths, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of tracked clones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Cleanup removes the entire cache directory. Safe to call on a cache that
// was never populated.
func (c *Cache) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(c.cfg.Root); err != nil {
		return fmt.Errorf("remove cache root: %w", err)
	}
	c.order = nil
	c.paths = make(map[string]string)
	return nil
}

// sanitizeKey turns a repository full name into a filesystem-safe directory
// name. Path separators become underscores.
func sanitizeKey(fullName string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_")
	return replacer.Replace(fullName)
}
