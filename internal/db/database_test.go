package db

import (
	"bytes"
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/gedebog_store/internal/models"
)

func TestOpen_SQLitePrefix(t *testing.T) {
	gdb, err := Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)
	defer Close(gdb)

	require.NoError(t, Migrate(gdb))
	for _, m := range models.All() {
		assert.True(t, gdb.Migrator().HasTable(m))
	}
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}

func TestGormLogger_SkipsRecordNotFound(t *testing.T) {
	var buf bytes.Buffer
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: newGormLogger(&buf)})
	require.NoError(t, err)
	defer Close(gdb)
	require.NoError(t, Migrate(gdb))

	var p models.Product
	err = gdb.First(&p, 404).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	err = gdb.Exec("SELECT * FROM no_such_table").Error
	require.Error(t, err)
	assert.Contains(t, buf.String(), "no_such_table")
}
