package projection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pairly/wallet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_SetAndGet(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	err := store.Set(ctx, "k1", []byte("hello"), 0)
	require.NoError(t, err)

	val, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), val)
}

func TestInMemoryStore_KeyNotFound(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_ = store.Set(ctx, "k1", []byte("data"), 0)
	_ = store.Delete(ctx, "k1")

	_, err := store.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestInMemoryStore_TTLExpiry(t *testing.T) {
	store := NewInMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Set(ctx, "k1", []byte("data"), time.Minute)
	_, err := store.Get(ctx, "k1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestInMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Set(ctx, "k", []byte("v"), time.Minute)
			_, _ = store.Get(ctx, "k")
			_ = store.Delete(ctx, "k")
		}()
	}
	wg.Wait()
}

func TestCatalogProjection_RoundTrip(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	items := []domain.GiftCatalogItem{
		{ID: uuid.New(), Slug: "red-rose", Name: "Red Rose", ImagePath: "/gifts/rose.png", PriceCoins: 30},
		{ID: uuid.New(), Slug: "teddy-bear", Name: "Teddy Bear", ImagePath: "/gifts/bear.png", PriceCoins: 120},
	}
	require.NoError(t, UpdateCatalog(ctx, store, items, time.Minute))

	got, err := GetCatalog(ctx, store)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "red-rose", got.Items[0].Slug)
	assert.Equal(t, int64(120), got.Items[1].PriceCoins)
	assert.NotEmpty(t, got.CachedAt)
}

func TestCatalogProjection_Invalidate(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_ = UpdateCatalog(ctx, store, []domain.GiftCatalogItem{{ID: uuid.New(), Slug: "rose"}}, time.Minute)
	_ = InvalidateCatalog(ctx, store)

	_, err := GetCatalog(ctx, store)
	assert.ErrorIs(t, err, ErrMiss)
}
