package projection

import (
	"context"
	"time"

	"github.com/pairly/wallet/internal/domain"
)

const catalogKey = "projection:gifts:catalog"

// CatalogProjection is the cached list of active gifts.
type CatalogProjection struct {
	Items    []domain.GiftCatalogItem `json:"items"`
	CachedAt string                   `json:"cached_at"`
}

// UpdateCatalog caches the active gift catalog for ttl.
func UpdateCatalog(ctx context.Context, store Store, items []domain.GiftCatalogItem, ttl time.Duration) error {
	p := CatalogProjection{Items: items, CachedAt: time.Now().UTC().Format(time.RFC3339)}
	return SetJSON(ctx, store, catalogKey, p, ttl)
}

// GetCatalog retrieves the cached gift catalog.
func GetCatalog(ctx context.Context, store Store) (*CatalogProjection, error) {
	var p CatalogProjection
	if err := GetJSON(ctx, store, catalogKey, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// InvalidateCatalog drops the cached catalog, e.g. after a seed run.
func InvalidateCatalog(ctx context.Context, store Store) error {
	return store.Delete(ctx, catalogKey)
}
