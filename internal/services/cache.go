package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/ride-or-mud/internal/store"
)

// BackingStore is the raw key/value layer under CacheStore.
type BackingStore interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Remove(key string) error
	Keys() ([]string, error)
}

type cacheEntry struct {
	Raw      json.RawMessage `json:"raw"`
	StoredAt time.Time       `json:"stored_at"`
}

// CacheStore keeps raw provider payloads for a bounded time so they can be
// re-parsed for another target date or used when a provider is down.
// Storage failures never reach the caller.
type CacheStore struct {
	backing BackingStore
	maxAge  time.Duration
	now     func() time.Time
	logger  *zap.Logger
	writeMu sync.Mutex

	hits          atomic.Int64
	misses        atomic.Int64
	writes        atomic.Int64
	writeFailures atomic.Int64
	pruned        atomic.Int64
}

type CacheStats struct {
	Entries       int    `json:"entries"`
	Hits          int64  `json:"hits"`
	Misses        int64  `json:"misses"`
	Writes        int64  `json:"writes"`
	WriteFailures int64  `json:"write_failures"`
	Pruned        int64  `json:"pruned"`
	MaxAge        string `json:"max_age"`
}

func NewCacheStore(backing BackingStore, maxAge time.Duration, logger *zap.Logger) *CacheStore {
	return &CacheStore{
		backing: backing,
		maxAge:  maxAge,
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock replaces the time source. Used by tests.
func (c *CacheStore) WithClock(now func() time.Time) *CacheStore {
	c.now = now
	return c
}

// Get returns the payload stored under key if it is no older than maxAge.
// Expired or unreadable entries are removed.
func (c *CacheStore) Get(key string) (json.RawMessage, bool) {
	entry, ok := c.load(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.Raw, true
}

type loadState int

const (
	entryLive loadState = iota
	entryMissing
	entryUnreadable
	entryDropped
)

func (c *CacheStore) load(key string) (cacheEntry, bool) {
	entry, state := c.loadState(key)
	return entry, state == entryLive
}

// loadState reads key and removes it when it is expired or corrupt.
func (c *CacheStore) loadState(key string) (cacheEntry, loadState) {
	data, err := c.backing.Get(key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return cacheEntry{}, entryMissing
		}
		c.logger.Warn("Cache read failed",
			zap.String("key", key),
			zap.Error(err))
		return cacheEntry{}, entryUnreadable
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || len(entry.Raw) == 0 {
		c.logger.Debug("Dropping corrupt cache entry", zap.String("key", key))
		return cacheEntry{}, c.removeIfUnchanged(key, data)
	}

	if c.now().Sub(entry.StoredAt) > c.maxAge {
		return cacheEntry{}, c.removeIfUnchanged(key, data)
	}

	return entry, entryLive
}

// removeIfUnchanged deletes key only if it still holds seen, so an entry
// written by a concurrent Put survives. Put holds the same lock.
func (c *CacheStore) removeIfUnchanged(key string, seen []byte) loadState {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	current, err := c.backing.Get(key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return entryMissing
		}
		return entryUnreadable
	}
	if !bytes.Equal(current, seen) {
		return entryMissing
	}
	if err := c.backing.Remove(key); err != nil {
		c.logger.Warn("Cache remove failed",
			zap.String("key", key),
			zap.Error(err))
		return entryUnreadable
	}
	return entryDropped
}

func (c *CacheStore) set(key string, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.backing.Set(key, data)
}

// Put overwrites key with raw stamped at the current time. A failed write
// prunes expired entries and retries once; a second failure is only logged.
func (c *CacheStore) Put(key string, raw json.RawMessage) {
	data, err := json.Marshal(cacheEntry{Raw: raw, StoredAt: c.now()})
	if err != nil {
		c.writeFailures.Add(1)
		c.logger.Warn("Cache entry not encodable",
			zap.String("key", key),
			zap.Error(err))
		return
	}

	err = c.set(key, data)
	if err == nil {
		c.writes.Add(1)
		return
	}
	c.logger.Debug("Cache write failed, pruning and retrying",
		zap.String("key", key),
		zap.Error(err))

	c.Prune()

	if err := c.set(key, data); err != nil {
		c.writeFailures.Add(1)
		c.logger.Warn("Cache write failed after prune",
			zap.String("key", key),
			zap.Error(err))
		return
	}
	c.writes.Add(1)
}

// Keys lists keys that currently hold a live entry.
func (c *CacheStore) Keys() []string {
	keys, err := c.backing.Keys()
	if err != nil {
		c.logger.Warn("Cache key listing failed", zap.Error(err))
		return nil
	}

	live := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := c.load(key); ok {
			live = append(live, key)
		}
	}
	return live
}

// Prune removes every expired or corrupt entry and reports how many went.
func (c *CacheStore) Prune() int {
	keys, err := c.backing.Keys()
	if err != nil {
		c.logger.Warn("Cache key listing failed", zap.Error(err))
		return 0
	}

	removed := 0
	for _, key := range keys {
		if _, state := c.loadState(key); state == entryDropped {
			removed++
		}
	}

	if removed > 0 {
		c.pruned.Add(int64(removed))
		c.logger.Debug("Cleaned expired cache items", zap.Int("count", removed))
	}
	return removed
}

func (c *CacheStore) Stats() CacheStats {
	return CacheStats{
		Entries:       len(c.Keys()),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Writes:        c.writes.Load(),
		WriteFailures: c.writeFailures.Load(),
		Pruned:        c.pruned.Load(),
		MaxAge:        c.maxAge.String(),
	}
}
