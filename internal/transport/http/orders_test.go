package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/gedebog_store/internal/models"
	"github.com/Skotchmaster/gedebog_store/internal/orders"
)

func (env *testEnv) placeOrder() models.Order {
	env.T.Helper()
	rec, _, c := env.doJSONRequest(http.MethodPost, "/api/v1/checkout", validCheckout())
	require.NoError(env.T, env.Checkout.PlaceOrder(c))
	require.Equal(env.T, http.StatusCreated, rec.Code)
	return decode[models.Order](env.T, rec)
}

func TestOrdersHTTP_ListAndGet(t *testing.T) {
	env := newTestEnv(t)
	env.addToCart(env.Products[1].ID)
	env.addToCart(env.Products[1].ID)
	placed := env.placeOrder()

	rec, _, c := env.doJSONRequest(http.MethodGet, "/api/v1/orders", nil)
	require.NoError(t, env.Orders.List(c))
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[[]orders.Entry](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, placed.ID, list[0].ID)
	require.Len(t, list[0].Items, 1)
	assert.Equal(t, "Gedebog Balado", list[0].Items[0].Name)
	assert.Equal(t, int64(2), list[0].Items[0].Quantity)

	rec, _, c = env.doJSONRequest(http.MethodGet, "/", nil)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(uint64(placed.ID), 10))
	require.NoError(t, env.Orders.Get(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(32000), decode[orders.Entry](t, rec).TotalAmount)
}

func TestOrdersHTTP_GetHidesOtherSessions(t *testing.T) {
	env := newTestEnv(t)
	env.addToCart(env.Products[0].ID)
	placed := env.placeOrder()

	_, _, c := env.doJSONRequest(http.MethodGet, "/", nil)
	c.Set(sessionKey, uuid.New())
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(uint64(placed.ID), 10))
	requireHTTPError(t, env.Orders.Get(c), http.StatusNotFound)

	_, _, c = env.doJSONRequest(http.MethodGet, "/", nil)
	c.SetParamNames("id")
	c.SetParamValues("9999")
	requireHTTPError(t, env.Orders.Get(c), http.StatusNotFound)

	_, _, c = env.doJSONRequest(http.MethodGet, "/", nil)
	c.SetParamNames("id")
	c.SetParamValues("first")
	requireHTTPError(t, env.Orders.Get(c), http.StatusBadRequest)

	other, err := env.Client.ListSessionOrders(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}
