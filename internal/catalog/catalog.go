// Package catalog serves the product listing, search and detail reads.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Skotchmaster/gedebog_store/internal/backend"
	"github.com/Skotchmaster/gedebog_store/internal/logging"
	"github.com/Skotchmaster/gedebog_store/internal/models"
	"github.com/Skotchmaster/gedebog_store/internal/realtime"
	"github.com/Skotchmaster/gedebog_store/internal/util"
)

type Backend interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	SearchProducts(ctx context.Context, q string, offset, limit int) (int64, []models.Product, error)
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, from, size int) (int64, []models.Product, error)
}

type Subscriber interface {
	Subscribe(f realtime.Filter, cb func()) *realtime.Subscription
}

const invalidateTimeout = 5 * time.Second

type Page struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	Size     int              `json:"size"`
	Products []models.Product `json:"products"`
}

// Catalog reads products through an optional cache and an optional search
// index; both fall back to the backend.
type Catalog struct {
	backend  Backend
	cache    Cache
	searcher Searcher
	sfg      singleflight.Group
}

func New(b Backend, cache Cache, searcher Searcher) *Catalog {
	return &Catalog{backend: b, cache: cache, searcher: searcher}
}

// List returns every product ordered by id, filtered case-insensitively by
// name or flavor when q is set.
func (c *Catalog) List(ctx context.Context, q string) ([]models.Product, error) {
	all, err := c.all(ctx)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return all, nil
	}
	out := make([]models.Product, 0, len(all))
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Flavor), q) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Catalog) all(ctx context.Context) ([]models.Product, error) {
	log := logging.FromContext(ctx)
	v, err, _ := c.sfg.Do(cacheKey, func() (interface{}, error) {
		if c.cache != nil {
			products, err := c.cache.Get(ctx)
			if err == nil {
				return products, nil
			}
			if !errors.Is(err, ErrCacheMiss) {
				log.Warn("catalog_cache_get_failed", slog.Any("error", err))
			}
		}

		products, err := c.backend.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			if err := c.cache.Set(ctx, products); err != nil {
				log.Warn("catalog_cache_set_failed", slog.Any("error", err))
			}
		}
		return products, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products := v.([]models.Product)
	out := make([]models.Product, len(products))
	copy(out, products)
	return out, nil
}

// Search pages through products matching q, using the search index when
// one is configured and healthy.
func (c *Catalog) Search(ctx context.Context, q string, page, size int) (*Page, error) {
	from, limit := util.Calculate(page, size)
	if page < 1 {
		page = 1
	}
	res := &Page{Page: page, Size: limit}

	if c.searcher != nil {
		total, products, err := c.searcher.Search(ctx, q, from, limit)
		if err == nil {
			res.Total, res.Products = total, products
			return res, nil
		}
		logging.FromContext(ctx).Warn("search_index_failed", slog.String("reason", "fallback_to_db"), slog.Any("error", err))
	}

	total, products, err := c.backend.SearchProducts(ctx, q, from, limit)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	res.Total, res.Products = total, products
	return res, nil
}

func (c *Catalog) Get(ctx context.Context, id uint) (*models.Product, error) {
	return c.backend.GetProduct(ctx, id)
}

// Invalidate drops the cached listing after a product change.
func (c *Catalog) Invalidate(ctx context.Context) {
	c.sfg.Forget(cacheKey)
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx); err != nil {
		logging.FromContext(ctx).Warn("catalog_cache_delete_failed", slog.Any("error", err))
	}
}

// Watch drops the cached listing whenever any product row changes, stock
// decrements at checkout included. Close the returned subscription to stop.
func (c *Catalog) Watch(s Subscriber) *realtime.Subscription {
	return s.Subscribe(realtime.Filter{Table: backend.TableProducts, Event: realtime.EventAll}, func() {
		ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
		defer cancel()
		c.Invalidate(ctx)
	})
}
