package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/gedebog_store/internal/models"
)

func TestCheckoutHTTP_PlaceOrder(t *testing.T) {
	env := newTestEnv(t)
	env.addToCart(env.Products[0].ID)
	env.addToCart(env.Products[3].ID)

	rec, _, c := env.doJSONRequest(http.MethodPost, "/api/v1/checkout", validCheckout())
	require.NoError(t, env.Checkout.PlaceOrder(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	order := decode[models.Order](t, rec)
	assert.Equal(t, int64(31000), order.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentCOD, order.PaymentMethod)
	assert.Equal(t, "Budi (0812), Jl. Mawar 1, Bandung", order.ShippingAddress)
	assert.Equal(t, fmt.Sprintf("/api/v1/orders/%d", order.ID), rec.Header().Get("Location"))

	n, err := env.Client.CountCartItems(context.Background(), env.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Contains(t, env.Events.types(), "order_created")
}

func TestCheckoutHTTP_Errors(t *testing.T) {
	env := newTestEnv(t)

	_, _, c := env.doJSONRequest(http.MethodPost, "/api/v1/checkout", validCheckout())
	requireHTTPError(t, env.Checkout.PlaceOrder(c), http.StatusConflict)

	env.addToCart(env.Products[0].ID)

	form := validCheckout()
	form["address"] = "  "
	_, _, c = env.doJSONRequest(http.MethodPost, "/api/v1/checkout", form)
	requireHTTPError(t, env.Checkout.PlaceOrder(c), http.StatusBadRequest)

	form = validCheckout()
	form["payment_method"] = "crypto"
	_, _, c = env.doJSONRequest(http.MethodPost, "/api/v1/checkout", form)
	requireHTTPError(t, env.Checkout.PlaceOrder(c), http.StatusBadRequest)

	orders, err := env.Client.ListSessionOrders(context.Background(), env.SessionID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}
