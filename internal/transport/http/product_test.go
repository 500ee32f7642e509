package httpserver

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/gedebog_store/internal/catalog"
	"github.com/Skotchmaster/gedebog_store/internal/models"
)

func TestProductHTTP_List(t *testing.T) {
	env := newTestEnv(t)

	rec, _, c := env.doJSONRequest(http.MethodGet, "/api/v1/products", nil)
	require.NoError(t, env.Product.List(c))
	require.Len(t, decode[[]models.Product](t, rec), 4)

	rec, _, c = env.doJSONRequest(http.MethodGet, "/api/v1/products?q=balado", nil)
	require.NoError(t, env.Product.List(c))
	got := decode[[]models.Product](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "Gedebog Balado", got[0].Name)
}

func TestProductHTTP_Search(t *testing.T) {
	env := newTestEnv(t)

	rec, _, c := env.doJSONRequest(http.MethodGet, "/api/v1/products/search?q=gedebog&page=2&size=3", nil)
	require.NoError(t, env.Product.Search(c))
	require.Equal(t, http.StatusOK, rec.Code)

	page := decode[catalog.Page](t, rec)
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.Size)
	assert.Len(t, page.Products, 1)
}

func TestProductHTTP_Get(t *testing.T) {
	env := newTestEnv(t)

	rec, _, c := env.doJSONRequest(http.MethodGet, "/", nil)
	c.SetParamNames("id")
	c.SetParamValues("2")
	require.NoError(t, env.Product.Get(c))
	assert.Equal(t, int64(16000), decode[models.Product](t, rec).Price)

	_, _, c = env.doJSONRequest(http.MethodGet, "/", nil)
	c.SetParamNames("id")
	c.SetParamValues("42")
	requireHTTPError(t, env.Product.Get(c), http.StatusNotFound)

	_, _, c = env.doJSONRequest(http.MethodGet, "/", nil)
	c.SetParamNames("id")
	c.SetParamValues("-1")
	requireHTTPError(t, env.Product.Get(c), http.StatusBadRequest)
}
