// Package thumbnail implements the two-tier thumbnail cache: a bounded
// in-memory tier in front of a persistent SQLite tier, with level-of-detail
// rendering for microscopy images.
package thumbnail

import (
	"context"
	"image"
	"log"
	"sync"
	"time"
)

const (
	// DefaultCapacity bounds the in-memory tier.
	DefaultCapacity = 100

	// DefaultTTL is how long a cached thumbnail stays valid in both tiers.
	DefaultTTL = 24 * time.Hour

	// sweepInterval is how often expired entries are purged.
	sweepInterval = time.Hour
)

// Store is the persistent tier. A nil Store, or one that starts failing,
// leaves the cache running memory-only.
type Store interface {
	Get(ctx context.Context, imageID string, lod LOD) ([]byte, bool, error)
	Put(ctx context.Context, imageID string, lod LOD, payload []byte, cachedAt, expiresAt time.Time) error
	DeleteImage(ctx context.Context, imageID string) error
	Clear(ctx context.Context) error
	SweepExpired(ctx context.Context) (int64, error)
}

// Stats is a snapshot of cache counters.
type Stats struct {
	MemoryHits   int64
	MemoryMisses int64
	StoreHits    int64
	StoreMisses  int64
	Entries      int
	Bytes        int64
}

type cacheKey struct {
	imageID string
	lod     LOD
}

type entry struct {
	payload  []byte
	cachedAt time.Time
}

// Cache is the two-tier thumbnail cache. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[cacheKey]entry
	bytes    int64
	stats    Stats
	capacity int
	ttl      time.Duration

	store Store

	stopOnce sync.Once
	stopCh   chan struct{}

	now func() time.Time
}

// NewCache creates a cache over the given persistent store. Pass zero for
// capacity or ttl to use the defaults; store may be nil for memory-only
// operation.
func NewCache(store Store, capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries:  make(map[cacheKey]entry),
		capacity: capacity,
		ttl:      ttl,
		store:    store,
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Get returns a cached thumbnail payload, consulting memory first and the
// persistent store second. A store hit is promoted into memory.
func (c *Cache) Get(ctx context.Context, imageID string, lod LOD) ([]byte, bool) {
	key := cacheKey{imageID, lod}
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if now.Sub(e.cachedAt) < c.ttl {
			c.stats.MemoryHits++
			c.mu.Unlock()
			return e.payload, true
		}
		c.removeLocked(key)
	}
	c.stats.MemoryMisses++
	c.mu.Unlock()

	if c.store == nil {
		return nil, false
	}

	payload, ok, err := c.store.Get(ctx, imageID, lod)
	if err != nil {
		// Persistent tier trouble degrades to memory-only behavior.
		log.Printf("Thumbnail: store get failed for %s/%s: %v", imageID, lod, err)
		return nil, false
	}

	c.mu.Lock()
	if ok {
		c.stats.StoreHits++
		c.insertLocked(key, entry{payload: payload, cachedAt: now})
	} else {
		c.stats.StoreMisses++
	}
	c.mu.Unlock()

	if !ok {
		return nil, false
	}
	return payload, true
}

// Put stores a thumbnail payload in both tiers.
func (c *Cache) Put(ctx context.Context, imageID string, lod LOD, payload []byte) {
	key := cacheKey{imageID, lod}
	now := c.now()

	c.mu.Lock()
	c.insertLocked(key, entry{payload: payload, cachedAt: now})
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Put(ctx, imageID, lod, payload, now, now.Add(c.ttl)); err != nil {
		log.Printf("Thumbnail: store put failed for %s/%s: %v", imageID, lod, err)
	}
}

// Thumbnail returns the cached payload for an image at the given detail
// level, rendering from source on a full miss. The rendered result is
// stored in both tiers.
func (c *Cache) Thumbnail(ctx context.Context, imageID string, lod LOD, source func() (image.Image, error)) ([]byte, error) {
	if payload, ok := c.Get(ctx, imageID, lod); ok {
		return payload, nil
	}

	src, err := source()
	if err != nil {
		return nil, err
	}
	payload, err := Render(src, lod)
	if err != nil {
		return nil, err
	}
	c.Put(ctx, imageID, lod, payload)
	return payload, nil
}

// Invalidate drops every detail level for an image from both tiers. Called
// when an image's segmentation or pixels change.
func (c *Cache) Invalidate(ctx context.Context, imageID string) {
	c.mu.Lock()
	for key := range c.entries {
		if key.imageID == imageID {
			c.removeLocked(key)
		}
	}
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.DeleteImage(ctx, imageID); err != nil {
		log.Printf("Thumbnail: store invalidate failed for %s: %v", imageID, err)
	}
}

// Clear empties both tiers.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.entries = make(map[cacheKey]entry)
	c.bytes = 0
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Clear(ctx); err != nil {
		log.Printf("Thumbnail: store clear failed: %v", err)
	}
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	s.Bytes = c.bytes
	return s
}

// StartSweeper runs the hourly expiry sweep until Stop is called or the
// context is cancelled.
func (c *Cache) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.sweep(ctx)
			}
		}
	}()
}

// Stop terminates the sweep goroutine.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Cache) sweep(ctx context.Context) {
	now := c.now()
	c.mu.Lock()
	for key, e := range c.entries {
		if now.Sub(e.cachedAt) >= c.ttl {
			c.removeLocked(key)
		}
	}
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if n, err := c.store.SweepExpired(ctx); err != nil {
		log.Printf("Thumbnail: expiry sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("Thumbnail: swept %d expired entries", n)
	}
}

// insertLocked writes an entry and evicts the oldest entries while the
// tier exceeds capacity. Caller holds mu.
func (c *Cache) insertLocked(key cacheKey, e entry) {
	if old, ok := c.entries[key]; ok {
		c.bytes -= int64(len(old.payload))
	}
	c.entries[key] = e
	c.bytes += int64(len(e.payload))

	for len(c.entries) > c.capacity {
		var oldest cacheKey
		var oldestAt time.Time
		first := true
		for k, v := range c.entries {
			if first || v.cachedAt.Before(oldestAt) {
				oldest = k
				oldestAt = v.cachedAt
				first = false
			}
		}
		c.removeLocked(oldest)
	}
}

func (c *Cache) removeLocked(key cacheKey) {
	if e, ok := c.entries[key]; ok {
		c.bytes -= int64(len(e.payload))
		delete(c.entries, key)
	}
}
