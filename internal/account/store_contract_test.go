package account

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-voice-storefront/internal/cart"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccount(uid string) *Account {
	return &Account{
		UID:       uid,
		Email:     uid + "@example.com",
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func shirt(qty int) cart.Item {
	return cart.Item{ProductID: 1, Name: "Plain Shirt", Color: "blue", Price: decimal.NewFromInt(25), Quantity: qty}
}

// runStoreContract checks the behaviour every Store implementation shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("get missing account", func(t *testing.T) {
		s := newStore(t)
		a, err := s.Get(ctx, "nobody")
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.Nil(t, a)
	})

	t.Run("create then get", func(t *testing.T) {
		s := newStore(t)
		a := newTestAccount("u-create")
		require.NoError(t, s.Create(ctx, a))
		assert.Equal(t, int64(1), a.Version)

		got, err := s.Get(ctx, "u-create")
		require.NoError(t, err)
		assert.Equal(t, "u-create@example.com", got.Email)
		assert.Empty(t, got.Cart)
		assert.Empty(t, got.Orders)
		assert.Equal(t, int64(1), got.Version)
		assert.True(t, a.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("create twice", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newTestAccount("u-dup")))
		assert.ErrorIs(t, s.Create(ctx, newTestAccount("u-dup")), ErrAccountExists)
	})

	t.Run("replace bumps version and persists cart", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newTestAccount("u-replace")))

		a, err := s.Get(ctx, "u-replace")
		require.NoError(t, err)
		a.Cart = []cart.Item{shirt(2)}
		require.NoError(t, s.Replace(ctx, a))
		assert.Equal(t, int64(2), a.Version)

		got, err := s.Get(ctx, "u-replace")
		require.NoError(t, err)
		require.Len(t, got.Cart, 1)
		assert.Equal(t, 2, got.Cart[0].Quantity)
		assert.True(t, decimal.NewFromInt(25).Equal(got.Cart[0].Price))
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("stale replace conflicts", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newTestAccount("u-stale")))

		first, err := s.Get(ctx, "u-stale")
		require.NoError(t, err)
		second, err := s.Get(ctx, "u-stale")
		require.NoError(t, err)

		first.Cart = []cart.Item{shirt(1)}
		require.NoError(t, s.Replace(ctx, first))

		second.Cart = []cart.Item{shirt(5)}
		assert.ErrorIs(t, s.Replace(ctx, second), ErrVersionConflict)

		got, err := s.Get(ctx, "u-stale")
		require.NoError(t, err)
		require.Len(t, got.Cart, 1)
		assert.Equal(t, 1, got.Cart[0].Quantity)
	})

	t.Run("replace missing account", func(t *testing.T) {
		s := newStore(t)
		a := newTestAccount("u-ghost")
		a.Version = 1
		assert.ErrorIs(t, s.Replace(ctx, a), ErrAccountNotFound)
	})
}
