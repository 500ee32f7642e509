package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/gedebog_store/internal/backend"
	"github.com/Skotchmaster/gedebog_store/internal/backend/backendtest"
	"github.com/Skotchmaster/gedebog_store/internal/models"
)

func placeOrder(t *testing.T, c *backend.Client, session uuid.UUID, lines ...models.OrderItem) *models.Order {
	t.Helper()
	var total int64
	for _, l := range lines {
		total += l.PriceAtPurchase * l.Quantity
	}
	o := &models.Order{SessionID: session, TotalAmount: total, ShippingAddress: "Sari (0813), Jl. Melati 2"}
	require.NoError(t, c.PlaceOrder(context.Background(), o, lines))
	return o
}

func TestHistory_ListNewestFirstWithLines(t *testing.T) {
	c := backendtest.New(t)
	products := backendtest.Products(t, c)
	session := uuid.New()

	first := placeOrder(t, c, session, models.OrderItem{ProductID: products[0].ID, Quantity: 2, PriceAtPurchase: 15000})
	time.Sleep(5 * time.Millisecond)
	second := placeOrder(t, c, session,
		models.OrderItem{ProductID: products[1].ID, Quantity: 1, PriceAtPurchase: 16000},
		models.OrderItem{ProductID: products[2].ID, Quantity: 1, PriceAtPurchase: 17000},
	)
	placeOrder(t, c, uuid.New(), models.OrderItem{ProductID: products[3].ID, Quantity: 1, PriceAtPurchase: 16000})

	entries, err := NewHistory(c).List(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, first.ID, entries[1].ID)
	require.Len(t, entries[0].Items, 2)
	require.Len(t, entries[1].Items, 1)

	line := entries[1].Items[0]
	assert.Equal(t, "Gedebog Original", line.Name)
	assert.Equal(t, int64(15000), line.Price)
	assert.Equal(t, int64(30000), line.Subtotal)
}

func TestHistory_DeletedProductFallsBack(t *testing.T) {
	c := backendtest.New(t)
	products := backendtest.Products(t, c)
	session := uuid.New()
	o := placeOrder(t, c, session, models.OrderItem{ProductID: products[1].ID, Quantity: 3, PriceAtPurchase: 16000})

	require.NoError(t, c.DeleteProduct(context.Background(), products[1].ID))

	entry, err := NewHistory(c).Get(context.Background(), session, o.ID)
	require.NoError(t, err)
	require.Len(t, entry.Items, 1)
	assert.Equal(t, "Product 2", entry.Items[0].Name)
	assert.Equal(t, PlaceholderImage, entry.Items[0].ImageURL)
	assert.Equal(t, int64(48000), entry.TotalAmount)
}

func TestHistory_GetRejectsOtherSession(t *testing.T) {
	c := backendtest.New(t)
	products := backendtest.Products(t, c)
	o := placeOrder(t, c, uuid.New(), models.OrderItem{ProductID: products[0].ID, Quantity: 1, PriceAtPurchase: 15000})

	_, err := NewHistory(c).Get(context.Background(), uuid.New(), o.ID)
	assert.ErrorIs(t, err, ErrNotOwned)

	_, err = NewHistory(c).Get(context.Background(), uuid.New(), 999)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

type flakyItems struct {
	*backend.Client
	failFor uint
}

func (f flakyItems) ListOrderItems(ctx context.Context, orderID uint) ([]models.OrderItem, error) {
	if orderID == f.failFor {
		return nil, errors.New("timeout")
	}
	return f.Client.ListOrderItems(ctx, orderID)
}

func TestHistory_ItemFailureLeavesEmptyLines(t *testing.T) {
	c := backendtest.New(t)
	products := backendtest.Products(t, c)
	session := uuid.New()
	bad := placeOrder(t, c, session, models.OrderItem{ProductID: products[0].ID, Quantity: 1, PriceAtPurchase: 15000})
	good := placeOrder(t, c, session, models.OrderItem{ProductID: products[1].ID, Quantity: 1, PriceAtPurchase: 16000})

	entries, err := NewHistory(flakyItems{Client: c, failFor: bad.ID}).List(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		switch e.ID {
		case bad.ID:
			assert.Empty(t, e.Items)
		case good.ID:
			assert.Len(t, e.Items, 1)
		}
	}
}
