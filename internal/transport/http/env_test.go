package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/gedebog_store/internal/admin"
	"github.com/Skotchmaster/gedebog_store/internal/backend"
	"github.com/Skotchmaster/gedebog_store/internal/backend/backendtest"
	"github.com/Skotchmaster/gedebog_store/internal/cart"
	"github.com/Skotchmaster/gedebog_store/internal/catalog"
	"github.com/Skotchmaster/gedebog_store/internal/checkout"
	"github.com/Skotchmaster/gedebog_store/internal/models"
	"github.com/Skotchmaster/gedebog_store/internal/orders"
	"github.com/Skotchmaster/gedebog_store/internal/session"
)

type recorder struct {
	mu     sync.Mutex
	events []map[string]any
}

func (r *recorder) PublishEvent(_ context.Context, _, _ string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event.(map[string]any))
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e["type"].(string))
	}
	return out
}

type testEnv struct {
	T         *testing.T
	E         *echo.Echo
	Client    *backend.Client
	Products  []models.Product
	Events    *recorder
	SessionID uuid.UUID

	Cart     *CartHTTP
	Checkout *CheckoutHTTP
	Orders   *OrdersHTTP
	Product  *ProductHTTP
	Admin    *AdminHTTP
	deps     *Deps
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, nil)
}

// newTestEnvWith lets a test wrap the cart backend to inject failures.
func newTestEnvWith(t *testing.T, wrap func(cart.Backend) cart.Backend) *testEnv {
	t.Helper()

	client := backendtest.New(t)
	products := backendtest.Products(t, client)

	s, err := client.CreateSession(context.Background())
	require.NoError(t, err)

	var cb cart.Backend = client
	if wrap != nil {
		cb = wrap(client)
	}
	carts := cart.NewRegistry(cb, time.Minute, nil)
	t.Cleanup(carts.Close)

	events := &recorder{}
	cat := catalog.New(client, nil, nil)

	d := &Deps{
		Backend:     client,
		Sessions:    session.CookieCodec{Secret: []byte("test-secret")},
		Carts:       carts,
		Catalog:     cat,
		Checkout:    checkout.New(client, events),
		History:     orders.NewHistory(client),
		Admin:       admin.New(client, cat, nil, events),
		Producer:    events,
		Media:       client.Objects.Handler(),
		MediaPrefix: "/media",
	}

	return &testEnv{
		T:         t,
		E:         echo.New(),
		Client:    client,
		Products:  products,
		Events:    events,
		SessionID: s.ID,
		Cart:      &CartHTTP{Carts: carts, Catalog: cat, Producer: events},
		Checkout:  &CheckoutHTTP{Carts: carts, Svc: d.Checkout},
		Orders:    &OrdersHTTP{History: d.History, Backend: client},
		Product:   &ProductHTTP{Catalog: cat},
		Admin:     &AdminHTTP{Svc: d.Admin},
		deps:      d,
	}
}

func (env *testEnv) doJSONRequest(method, target string, body any) (*httptest.ResponseRecorder, *http.Request, echo.Context) {
	env.T.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	c.Set(sessionKey, env.SessionID)
	return rec, req, c
}

func requireHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError, got %v", err)
	require.Equal(t, code, he.Code)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (env *testEnv) addToCart(productID uint) cart.Snapshot {
	env.T.Helper()
	rec, _, c := env.doJSONRequest(http.MethodPost, "/api/v1/cart", map[string]any{"product_id": productID})
	require.NoError(env.T, env.Cart.Add(c))
	require.Equal(env.T, http.StatusOK, rec.Code)
	return decode[cart.Snapshot](env.T, rec)
}

func validCheckout() map[string]string {
	return map[string]string{"name": "Budi", "phone": "0812", "address": "Jl. Mawar 1, Bandung"}
}
