// Package backendtest builds a backend client over an in-memory sqlite
// database for tests.
package backendtest

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/gedebog_store/internal/backend"
	"github.com/Skotchmaster/gedebog_store/internal/db"
	"github.com/Skotchmaster/gedebog_store/internal/models"
	"github.com/Skotchmaster/gedebog_store/internal/realtime"
	"github.com/Skotchmaster/gedebog_store/internal/storage"
)

func New(t testing.TB) *backend.Client {
	t.Helper()

	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	hub := realtime.NewHub(nil)
	client := backend.New(gdb, hub, nil, storage.New(afero.NewMemMapFs(), "/media"))

	t.Cleanup(func() {
		hub.Close()
		_ = db.Close(gdb)
	})
	return client
}

// Products inserts the default catalog: Original 15000, Balado 16000,
// Keju 17000, BBQ 16000.
func Products(t testing.TB, c *backend.Client) []models.Product {
	t.Helper()

	products := backend.DefaultProducts()
	for i := range products {
		require.NoError(t, c.DB.Create(&products[i]).Error)
	}
	return products
}
