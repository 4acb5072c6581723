package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/cart"
)

func TestMemoryPutGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	fixed := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	snap, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, snap)

	items := []cart.Item{{ID: "a", Price: 1, Quantity: 2}}
	require.NoError(t, m.Put(ctx, "u1", items))
	items[0].Quantity = 50

	snap, err = m.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, fixed, snap.UpdatedAt)
}

func TestMemoryMalformed(t *testing.T) {
	m := NewMemory()
	m.MarkMalformed("u1")

	_, err := m.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, cart.ErrMalformedSnapshot)
}

func TestMemorySignInSyncFlow(t *testing.T) {
	ctx := context.Background()
	remote := NewMemory()
	require.NoError(t, remote.Put(ctx, "user1", []cart.Item{{ID: "B", Name: "Y", Price: 50, Quantity: 3}}))

	s := cart.NewStore(cart.Options{Remote: remote})
	s.Add(cart.Product{ID: "B", Name: "Y", Price: 50}, 1)
	s.SignIn(ctx, "user1")
	require.Equal(t, 200.0, s.Total())

	s.Sync(ctx)
	snap, err := remote.Get(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Items[0].Quantity)
	assert.Equal(t, cart.PhaseSynced, s.Phase())
}
