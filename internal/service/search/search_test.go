package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/gedebog_store/internal/models"
)

type fakeES struct {
	mu       sync.Mutex
	requests []string
	bodies   []string
	status   int
	reply    string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.bodies = append(f.bodies, string(b))
	status, reply := f.status, f.reply
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply)
}

func newIndex(t *testing.T, f *fakeES) *Index {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return New(client, "products")
}

func TestNewWithoutClient(t *testing.T) {
	assert.Nil(t, New(nil, "products"))
}

func TestSearch(t *testing.T) {
	f := &fakeES{reply: `{"hits":{"total":{"value":2},"hits":[
		{"_source":{"id":2,"name":"Gedebog Balado","price":16000}},
		{"_source":{"id":4,"name":"Gedebog BBQ","price":16000}}]}}`}
	ix := newIndex(t, f)

	total, products, err := ix.Search(context.Background(), "pedas", 10, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, products, 2)
	assert.Equal(t, "Gedebog Balado", products[0].Name)
	assert.Equal(t, uint(4), products[1].ID)

	require.Len(t, f.requests, 1)
	assert.Contains(t, f.requests[0], "/products/_search")

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(f.bodies[0]), &body))
	assert.EqualValues(t, 10, body["from"])
	assert.EqualValues(t, 5, body["size"])
}

func TestSearch_ErrorStatus(t *testing.T) {
	ix := newIndex(t, &fakeES{status: http.StatusServiceUnavailable, reply: `{"error":"unavailable"}`})

	_, _, err := ix.Search(context.Background(), "keju", 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestPutAndRemove(t *testing.T) {
	f := &fakeES{reply: `{"result":"created"}`}
	ix := newIndex(t, f)
	ctx := context.Background()

	require.NoError(t, ix.Put(ctx, models.Product{ID: 7, Name: "Gedebog Keju", Price: 17000}))
	require.NoError(t, ix.Remove(ctx, 7))

	require.Len(t, f.requests, 2)
	assert.Equal(t, "PUT /products/_doc/7", f.requests[0])
	assert.Contains(t, f.bodies[0], `"name":"Gedebog Keju"`)
	assert.Equal(t, "DELETE /products/_doc/7", f.requests[1])
}

func TestRemove_MissingDocumentIsFine(t *testing.T) {
	ix := newIndex(t, &fakeES{status: http.StatusNotFound, reply: `{"result":"not_found"}`})
	assert.NoError(t, ix.Remove(context.Background(), 99))
}
