package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/gedebog_store/internal/backend"
	"github.com/Skotchmaster/gedebog_store/internal/backend/backendtest"
	"github.com/Skotchmaster/gedebog_store/internal/cart"
	"github.com/Skotchmaster/gedebog_store/internal/checkout"
	"github.com/Skotchmaster/gedebog_store/internal/models"
)

type countingBackend struct {
	*backend.Client
	lists atomic.Int32
}

func (c *countingBackend) ListProducts(ctx context.Context) ([]models.Product, error) {
	c.lists.Add(1)
	return c.Client.ListProducts(ctx)
}

func TestList_FiltersByNameOrFlavor(t *testing.T) {
	c := backendtest.New(t)
	backendtest.Products(t, c)
	cat := New(c, nil, nil)
	ctx := context.Background()

	all, err := cat.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "Gedebog Original", all[0].Name)

	got, err := cat.List(ctx, "  KEJU ")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Keju", got[0].Flavor)

	got, err = cat.List(ctx, "durian")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestList_UsesCacheUntilInvalidated(t *testing.T) {
	c := backendtest.New(t)
	products := backendtest.Products(t, c)
	cache, _ := setupRedis(t)
	cb := &countingBackend{Client: c}
	cat := New(cb, cache, nil)
	ctx := context.Background()

	_, err := cat.List(ctx, "")
	require.NoError(t, err)
	_, err = cat.List(ctx, "balado")
	require.NoError(t, err)
	assert.Equal(t, int32(1), cb.lists.Load())

	price := int64(20000)
	_, err = c.UpdateProduct(ctx, products[0].ID, backend.ProductPatch{Price: &price})
	require.NoError(t, err)
	cat.Invalidate(ctx)

	all, err := cat.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), cb.lists.Load())
	assert.Equal(t, int64(20000), all[0].Price)
}

func TestWatch_CheckoutStockReachesCachedListing(t *testing.T) {
	c := backendtest.New(t)
	products := backendtest.Products(t, c)
	cache, mr := setupRedis(t)
	cat := New(c, cache, nil)
	watch := cat.Watch(c)
	defer watch.Close()
	ctx := context.Background()

	all, err := cat.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, int64(100), all[0].Stock)
	require.True(t, mr.Exists(cacheKey))

	m := cart.NewManager(c, cart.Fixed(uuid.New()), nil)
	require.NoError(t, m.Initialize(ctx))
	defer m.Close()
	require.NoError(t, m.AddToCart(ctx, products[0]))
	_, err = checkout.New(c, nil).PlaceOrder(ctx, m, checkout.Form{Name: "Budi", Phone: "0812", Address: "Jl. Mawar 1, Bandung"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		all, err := cat.List(ctx, "")
		return err == nil && all[0].Stock == 99
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatch_CloseStopsInvalidation(t *testing.T) {
	c := backendtest.New(t)
	products := backendtest.Products(t, c)
	cache, mr := setupRedis(t)
	cat := New(c, cache, nil)
	cat.Watch(c).Close()
	ctx := context.Background()

	_, err := cat.List(ctx, "")
	require.NoError(t, err)
	require.NoError(t, c.DecrementStock(ctx, products[0].ID, 1))

	time.Sleep(50 * time.Millisecond)
	assert.True(t, mr.Exists(cacheKey))
}

type stubSearcher struct {
	err   error
	calls int
}

func (s *stubSearcher) Search(_ context.Context, q string, from, size int) (int64, []models.Product, error) {
	s.calls++
	if s.err != nil {
		return 0, nil, s.err
	}
	return 1, []models.Product{{ID: 99, Name: "indexed " + q}}, nil
}

func TestSearch_PrefersIndex(t *testing.T) {
	c := backendtest.New(t)
	backendtest.Products(t, c)
	s := &stubSearcher{}

	page, err := New(c, nil, s).Search(context.Background(), "bbq", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, s.calls)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "indexed bbq", page.Products[0].Name)
}

func TestSearch_FallsBackToDatabase(t *testing.T) {
	c := backendtest.New(t)
	backendtest.Products(t, c)
	s := &stubSearcher{err: errors.New("connection refused")}

	page, err := New(c, nil, s).Search(context.Background(), "gedebog", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.Size)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Gedebog BBQ", page.Products[0].Name)
}

func TestGet(t *testing.T) {
	c := backendtest.New(t)
	products := backendtest.Products(t, c)
	cat := New(c, nil, nil)

	p, err := cat.Get(context.Background(), products[2].ID)
	require.NoError(t, err)
	assert.Equal(t, "Gedebog Keju", p.Name)

	_, err = cat.Get(context.Background(), 404)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}
