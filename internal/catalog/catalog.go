// Package catalog loads the gift catalog from a YAML file and upserts it.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5"
	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/projection"
	"github.com/pairly/wallet/internal/repository"
	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of the catalog seed.
type File struct {
	Gifts []Entry `yaml:"gifts"`
}

// Entry is one gift in the seed file. Slug defaults to the slugified name,
// Active to true and SortOrder to the entry's position.
type Entry struct {
	Slug       string `yaml:"slug"`
	Name       string `yaml:"name"`
	Image      string `yaml:"image"`
	PriceCoins int64  `yaml:"price_coins"`
	Active     *bool  `yaml:"active"`
	SortOrder  *int   `yaml:"sort_order"`
}

// Load parses and validates a catalog document.
func Load(r io.Reader) ([]domain.GiftCatalogItem, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("catalog is empty")
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	items := make([]domain.GiftCatalogItem, 0, len(f.Gifts))
	seen := make(map[string]int, len(f.Gifts))
	for i, e := range f.Gifts {
		item, err := e.toItem(i)
		if err != nil {
			return nil, fmt.Errorf("gift #%d: %w", i+1, err)
		}
		if prev, dup := seen[item.Slug]; dup {
			return nil, fmt.Errorf("gift #%d: slug %q already used by gift #%d", i+1, item.Slug, prev+1)
		}
		seen[item.Slug] = i
		items = append(items, item)
	}
	return items, nil
}

// LoadFile reads a catalog from path.
func LoadFile(path string) ([]domain.GiftCatalogItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Load(bytes.NewReader(data))
}

func (e Entry) toItem(pos int) (domain.GiftCatalogItem, error) {
	if e.Name == "" {
		return domain.GiftCatalogItem{}, fmt.Errorf("name is required")
	}
	if e.PriceCoins <= 0 {
		return domain.GiftCatalogItem{}, fmt.Errorf("%s: price_coins must be positive", e.Name)
	}
	s := e.Slug
	if s == "" {
		s = slug.Make(e.Name)
	}
	if !slug.IsSlug(s) {
		return domain.GiftCatalogItem{}, fmt.Errorf("%s: invalid slug %q", e.Name, s)
	}
	image := e.Image
	if image == "" {
		image = "/gifts/" + s + ".png"
	}

	item := domain.GiftCatalogItem{
		Slug:       s,
		Name:       e.Name,
		ImagePath:  image,
		PriceCoins: e.PriceCoins,
		IsActive:   true,
		SortOrder:  pos,
	}
	if e.Active != nil {
		item.IsActive = *e.Active
	}
	if e.SortOrder != nil {
		item.SortOrder = *e.SortOrder
	}
	return item, nil
}

// Seed upserts items in one transaction and drops the cached catalog.
func Seed(ctx context.Context, pool repository.Pool, gifts repository.GiftRepository, cache projection.Store, items []domain.GiftCatalogItem, logger *slog.Logger) error {
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for i := range items {
			if err := gifts.UpsertCatalogItem(ctx, tx, &items[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	if cache != nil {
		if err := projection.InvalidateCatalog(ctx, cache); err != nil {
			logger.Warn("invalidate catalog cache", "error", err)
		}
	}
	logger.Info("gift catalog seeded", "count", len(items))
	return nil
}
