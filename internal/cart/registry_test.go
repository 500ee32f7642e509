package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/gedebog_store/internal/backend/backendtest"
)

func TestRegistry_GetReturnsSameManager(t *testing.T) {
	c := backendtest.New(t)
	r := NewRegistry(c, time.Minute, nil)
	defer r.Close()
	ctx := context.Background()
	session := uuid.New()

	m1, err := r.Get(ctx, session)
	require.NoError(t, err)
	m2, err := r.Get(ctx, session)
	require.NoError(t, err)
	assert.Same(t, m1, m2)
	assert.Equal(t, session, m1.SessionID())

	other, err := r.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.NotSame(t, m1, other)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_SweepClosesIdleManagers(t *testing.T) {
	c := backendtest.New(t)
	r := NewRegistry(c, time.Minute, nil)
	defer r.Close()

	now := time.Now()
	r.now = func() time.Time { return now }
	ctx := context.Background()

	idle, err := r.Get(ctx, uuid.New())
	require.NoError(t, err)
	streaming, err := r.Get(ctx, uuid.New())
	require.NoError(t, err)
	stop := streaming.OnChange(func(Snapshot) {})
	defer stop()

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, r.Sweep())
	assert.True(t, idle.Closed())
	assert.False(t, streaming.Closed())
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_CloseTearsDownAll(t *testing.T) {
	c := backendtest.New(t)
	r := NewRegistry(c, time.Minute, nil)
	ctx := context.Background()

	m, err := r.Get(ctx, uuid.New())
	require.NoError(t, err)
	require.Equal(t, 1, c.Hub.Len())

	r.Close()
	assert.True(t, m.Closed())
	assert.Equal(t, 0, c.Hub.Len())

	_, err = r.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrClosed)
}
