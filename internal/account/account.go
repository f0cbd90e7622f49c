// Package account persists one document per user holding the live cart and
// the order history. Every write is conditional on the version that was read,
// so concurrent writers for the same user surface as ErrVersionConflict
// instead of silently overwriting each other.
package account

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-voice-storefront/internal/cart"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrVersionConflict   = errors.New("account was modified concurrently")
	ErrMalformedDocument = errors.New("malformed account document")
)

// Order is immutable once appended to an account.
type Order struct {
	ID        int64           `json:"id"`
	Items     []cart.Item     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

type Account struct {
	UID       string      `json:"uid"`
	Email     string      `json:"email"`
	CreatedAt time.Time   `json:"created_at"`
	Cart      []cart.Item `json:"cart"`
	Orders    []Order     `json:"orders"`

	// Version is the optimistic-concurrency token. Stores set it to 1 on
	// Create and bump it on every successful Replace.
	Version int64 `json:"-"`
}

// Store is implemented by MongoStore, PostgresStore, MemoryStore and the
// Redis-backed CachedStore decorator.
type Store interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, uid string) (*Account, error)
	// Replace writes a in full if the stored version still equals a.Version.
	Replace(ctx context.Context, a *Account) error
}

// FindOrder returns the index of the order with the given id, or -1.
func (a *Account) FindOrder(id int64) int {
	for i := range a.Orders {
		if a.Orders[i].ID == id {
			return i
		}
	}
	return -1
}

// NextOrderID derives an id from now that is strictly greater than every id
// already in the history, so ids stay unique even within one millisecond.
func (a *Account) NextOrderID(now time.Time) int64 {
	id := now.UnixMilli()
	for _, o := range a.Orders {
		if o.ID >= id {
			id = o.ID + 1
		}
	}
	return id
}
