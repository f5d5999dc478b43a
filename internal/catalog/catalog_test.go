package catalog

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/projection"
	"github.com/pairly/wallet/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
gifts:
  - name: Red Rose
    price_coins: 30
  - slug: teddy
    name: Teddy Bear
    image: /gifts/bear.png
    price_coins: 120
    sort_order: 10
  - name: Old Postcard
    price_coins: 5
    active: false
`

func TestLoad(t *testing.T) {
	items, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "red-rose", items[0].Slug)
	assert.Equal(t, "/gifts/red-rose.png", items[0].ImagePath)
	assert.True(t, items[0].IsActive)
	assert.Equal(t, 0, items[0].SortOrder)

	assert.Equal(t, "teddy", items[1].Slug)
	assert.Equal(t, "/gifts/bear.png", items[1].ImagePath)
	assert.Equal(t, int64(120), items[1].PriceCoins)
	assert.Equal(t, 10, items[1].SortOrder)

	assert.False(t, items[2].IsActive)
	assert.Equal(t, 2, items[2].SortOrder)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", ``, "empty"},
		{"missing name", "gifts:\n  - price_coins: 5\n", "name is required"},
		{"zero price", "gifts:\n  - name: Rose\n", "price_coins must be positive"},
		{"bad slug", "gifts:\n  - name: Rose\n    slug: Not A Slug\n    price_coins: 5\n", "invalid slug"},
		{"duplicate slug", "gifts:\n  - name: Rose\n    price_coins: 5\n  - name: rose\n    price_coins: 6\n", "already used"},
		{"unknown field", "gifts:\n  - name: Rose\n    price: 5\n", "decode catalog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSeed_UpsertsAndInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	cache := projection.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	require.NoError(t, projection.UpdateCatalog(ctx, cache, []domain.GiftCatalogItem{{Slug: "stale"}}, time.Minute))

	items, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	require.NoError(t, Seed(ctx, store, store.Gifts(), cache, items, logger))

	active, err := store.Gifts().ListActive(ctx, store)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = projection.GetCatalog(ctx, cache)
	assert.ErrorIs(t, err, projection.ErrMiss)

	// Re-seeding with a new price updates in place.
	items[0].PriceCoins = 35
	require.NoError(t, Seed(ctx, store, store.Gifts(), nil, items[:1], logger))
	active, err = store.Gifts().ListActive(ctx, store)
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, g := range active {
		if g.Slug == "red-rose" {
			assert.Equal(t, int64(35), g.PriceCoins)
		}
	}
}
