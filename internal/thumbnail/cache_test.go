package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a fake persistent tier.
type memStore struct {
	rows map[cacheKey]storedRow
	err  error
}

type storedRow struct {
	payload   []byte
	expiresAt time.Time
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[cacheKey]storedRow)}
}

func (m *memStore) Get(ctx context.Context, imageID string, lod LOD) ([]byte, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	row, ok := m.rows[cacheKey{imageID, lod}]
	if !ok {
		return nil, false, nil
	}
	return row.payload, true, nil
}

func (m *memStore) Put(ctx context.Context, imageID string, lod LOD, payload []byte, cachedAt, expiresAt time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.rows[cacheKey{imageID, lod}] = storedRow{payload: payload, expiresAt: expiresAt}
	return nil
}

func (m *memStore) DeleteImage(ctx context.Context, imageID string) error {
	if m.err != nil {
		return m.err
	}
	for key := range m.rows {
		if key.imageID == imageID {
			delete(m.rows, key)
		}
	}
	return nil
}

func (m *memStore) Clear(ctx context.Context) error {
	if m.err != nil {
		return m.err
	}
	m.rows = make(map[cacheKey]storedRow)
	return nil
}

func (m *memStore) SweepExpired(ctx context.Context) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return 0, nil
}

func TestCachePutGet(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := NewCache(store, 0, 0)

	c.Put(ctx, "img1", LODLow, []byte("payload"))

	got, ok := c.Get(ctx, "img1", LODLow)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.MemoryHits)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(len("payload")), stats.Bytes)

	// Both tiers hold the payload.
	_, ok, err := store.Get(ctx, "img1", LODLow)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCachePromotesStoreHit(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	warm := NewCache(store, 0, 0)
	warm.Put(ctx, "img1", LODMedium, []byte("persisted"))

	// A fresh cache over the same store misses memory, hits the store,
	// and promotes.
	cold := NewCache(store, 0, 0)
	got, ok := cold.Get(ctx, "img1", LODMedium)
	require.True(t, ok)
	assert.Equal(t, []byte("persisted"), got)

	stats := cold.Stats()
	assert.Equal(t, int64(1), stats.MemoryMisses)
	assert.Equal(t, int64(1), stats.StoreHits)
	assert.Equal(t, 1, stats.Entries)

	// Second read is served from memory.
	_, ok = cold.Get(ctx, "img1", LODMedium)
	require.True(t, ok)
	assert.Equal(t, int64(1), cold.Stats().MemoryHits)
}

func TestCacheEvictsOldestBeyondCapacity(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := NewCache(store, DefaultCapacity, 0)

	clock := time.Unix(0, 0)
	c.now = func() time.Time { return clock }

	// Fill to capacity, each entry one second apart so ages are distinct.
	for i := 0; i < DefaultCapacity; i++ {
		clock = clock.Add(time.Second)
		c.Put(ctx, fmt.Sprintf("img%03d", i), LODLow, []byte("x"))
	}
	assert.Equal(t, DefaultCapacity, c.Stats().Entries)

	// One more insert evicts exactly the oldest entry from memory.
	clock = clock.Add(time.Second)
	c.Put(ctx, "overflow", LODLow, []byte("x"))
	assert.Equal(t, DefaultCapacity, c.Stats().Entries)

	c.mu.Lock()
	_, inMemory := c.entries[cacheKey{"img000", LODLow}]
	_, newest := c.entries[cacheKey{"overflow", LODLow}]
	c.mu.Unlock()
	assert.False(t, inMemory)
	assert.True(t, newest)

	// The evicted entry survives in the persistent tier and is promoted
	// back on access.
	got, ok := c.Get(ctx, "img000", LODLow)
	require.True(t, ok)
	assert.Equal(t, []byte("x"), got)
	assert.Equal(t, int64(1), c.Stats().StoreHits)
}

func TestCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewCache(nil, 0, 0)

	clock := time.Unix(0, 0)
	c.now = func() time.Time { return clock }

	c.Put(ctx, "img1", LODLow, []byte("x"))

	clock = clock.Add(DefaultTTL - time.Second)
	_, ok := c.Get(ctx, "img1", LODLow)
	assert.True(t, ok)

	clock = clock.Add(2 * time.Second)
	_, ok = c.Get(ctx, "img1", LODLow)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestCacheInvalidateDropsBothTiers(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := NewCache(store, 0, 0)

	c.Put(ctx, "img1", LODLow, []byte("a"))
	c.Put(ctx, "img1", LODHigh, []byte("b"))
	c.Put(ctx, "img2", LODLow, []byte("c"))

	c.Invalidate(ctx, "img1")

	_, ok := c.Get(ctx, "img1", LODLow)
	assert.False(t, ok)
	_, ok = c.Get(ctx, "img1", LODHigh)
	assert.False(t, ok)
	_, ok = c.Get(ctx, "img2", LODLow)
	assert.True(t, ok)

	_, ok, err := store.Get(ctx, "img1", LODLow)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheDegradesWhenStoreFails(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.err = errors.New("disk full")
	c := NewCache(store, 0, 0)

	// Writes and reads keep working memory-only.
	c.Put(ctx, "img1", LODLow, []byte("x"))
	got, ok := c.Get(ctx, "img1", LODLow)
	require.True(t, ok)
	assert.Equal(t, []byte("x"), got)
}

func decodePNG(payload []byte) (image.Image, error) {
	return png.Decode(bytes.NewReader(payload))
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	return img
}

func TestRenderDownscalesToLongEdge(t *testing.T) {
	payload, err := Render(testImage(1024, 512), LODLow)
	require.NoError(t, err)

	img, err := decodePNG(payload)
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())
}

func TestRenderKeepsSmallImages(t *testing.T) {
	payload, err := Render(testImage(100, 60), LODHigh)
	require.NoError(t, err)

	img, err := decodePNG(payload)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 60, img.Bounds().Dy())
}

func TestThumbnailRendersOnceOnMiss(t *testing.T) {
	ctx := context.Background()
	c := NewCache(newMemStore(), 0, 0)

	var renders int
	source := func() (image.Image, error) {
		renders++
		return testImage(512, 512), nil
	}

	first, err := c.Thumbnail(ctx, "img1", LODMedium, source)
	require.NoError(t, err)
	require.Equal(t, 1, renders)

	second, err := c.Thumbnail(ctx, "img1", LODMedium, source)
	require.NoError(t, err)
	assert.Equal(t, 1, renders)
	assert.Equal(t, first, second)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	now := time.Now()
	require.NoError(t, store.Put(ctx, "img1", LODLow, []byte("payload"), now, now.Add(time.Hour)))

	got, ok, err := store.Get(ctx, "img1", LODLow)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)

	// Expired rows read as misses and are removed by the sweep.
	require.NoError(t, store.Put(ctx, "img2", LODLow, []byte("old"), now.Add(-2*time.Hour), now.Add(-time.Hour)))
	_, ok, err = store.Get(ctx, "img2", LODLow)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, store.DeleteImage(ctx, "img1"))
	_, ok, err = store.Get(ctx, "img1", LODLow)
	require.NoError(t, err)
	assert.False(t, ok)
}
