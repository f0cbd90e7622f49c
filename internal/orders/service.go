// Package orders owns the cart and checkout flows of a user account: every
// action is a read-modify-write of the account document that lands as one
// conditional write.
package orders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ariefcatur/go-voice-storefront/internal/account"
	"github.com/ariefcatur/go-voice-storefront/internal/apperr"
	"github.com/ariefcatur/go-voice-storefront/internal/cart"
	"github.com/ariefcatur/go-voice-storefront/internal/catalog"
	"github.com/ariefcatur/go-voice-storefront/internal/logx"
	"github.com/shopspring/decimal"
)

type CartView struct {
	Items []cart.Item     `json:"items"`
	Total decimal.Decimal `json:"total"`
}

func viewOf(items []cart.Item) CartView {
	c := cart.FromItems(items)
	return CartView{Items: c.Snapshot(), Total: c.Total()}
}

type Service struct {
	Store   account.Store
	Catalog *catalog.Catalog
	Events  Publisher   // optional
	Idem    Idempotency // optional
	Name    string      // producer name stamped on events
	Log     *slog.Logger
	Now     func() time.Time
}

// CreateAccount writes an empty account for uid. Calling it again for the
// same uid returns the stored account with created=false.
func (s *Service) CreateAccount(ctx context.Context, uid, email string) (*account.Account, bool, error) {
	if uid == "" {
		return nil, false, errSignedOut
	}
	a := &account.Account{UID: uid, Email: email, CreatedAt: s.now()}
	err := s.Store.Create(ctx, a)
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, account.ErrAccountExists) {
		return nil, false, s.storeErr(ctx, "could not create account", err)
	}
	existing, err := s.Store.Get(ctx, uid)
	if err != nil {
		return nil, false, s.storeErr(ctx, "could not load account", err)
	}
	return existing, false, nil
}

func (s *Service) GetCart(ctx context.Context, uid string) (CartView, error) {
	a, err := s.load(ctx, uid)
	if err != nil {
		return CartView{}, err
	}
	return viewOf(a.Cart), nil
}

// AddItem adds one unit of the variant. added=false means the variant is out
// of stock and the cart was left as it was.
func (s *Service) AddItem(ctx context.Context, uid string, productID int64, color string) (view CartView, added bool, err error) {
	if uid == "" {
		return CartView{}, false, errSignedOut
	}
	if color == "" {
		return CartView{}, false, apperr.InvalidRequest("color is required")
	}
	p, err := s.Catalog.Get(productID)
	if err != nil {
		return CartView{}, false, apperr.InvalidRequest("unknown product")
	}
	a, err := s.update(ctx, uid, func(a *account.Account) (bool, error) {
		c := cart.FromItems(a.Cart)
		added = c.Add(p, color)
		a.Cart = c.Snapshot()
		return added, nil
	})
	if err != nil {
		return CartView{}, false, s.storeErr(ctx, "could not update cart", err)
	}
	return viewOf(a.Cart), added, nil
}

// ChangeQuantity applies delta to an entry; the result never drops below 1.
// A missing entry or a zero delta leaves the cart untouched.
func (s *Service) ChangeQuantity(ctx context.Context, uid string, productID int64, color string, delta int) (CartView, error) {
	if uid == "" {
		return CartView{}, errSignedOut
	}
	a, err := s.update(ctx, uid, func(a *account.Account) (bool, error) {
		if delta == 0 {
			return false, nil
		}
		c := cart.FromItems(a.Cart)
		before, ok := c.Find(productID, color)
		if !ok {
			return false, nil
		}
		c.ChangeQuantity(productID, color, delta)
		after, _ := c.Find(productID, color)
		a.Cart = c.Snapshot()
		return before.Quantity != after.Quantity, nil
	})
	if err != nil {
		return CartView{}, s.storeErr(ctx, "could not update cart", err)
	}
	return viewOf(a.Cart), nil
}

func (s *Service) RemoveItem(ctx context.Context, uid string, productID int64, color string) (CartView, error) {
	if uid == "" {
		return CartView{}, errSignedOut
	}
	a, err := s.update(ctx, uid, func(a *account.Account) (bool, error) {
		c := cart.FromItems(a.Cart)
		removed := c.Remove(productID, color)
		a.Cart = c.Snapshot()
		return removed, nil
	})
	if err != nil {
		return CartView{}, s.storeErr(ctx, "could not update cart", err)
	}
	return viewOf(a.Cart), nil
}

// Checkout freezes the cart into a new order and empties the cart in the
// same write. A non-empty idempotencyKey that already produced an order
// returns that order instead of placing another one.
func (s *Service) Checkout(ctx context.Context, uid, idempotencyKey string) (account.Order, error) {
	if uid == "" {
		return account.Order{}, errSignedOut
	}
	log := s.logger(ctx).With(logx.UserID, uid)

	if idempotencyKey != "" && s.Idem != nil {
		id, claimed, err := s.Idem.Claim(ctx, uid, idempotencyKey)
		switch {
		case err != nil:
			log.Warn("idempotency claim failed, continuing without it", logx.Err(err))
			idempotencyKey = ""
		case !claimed && id == 0:
			return account.Order{}, apperr.InvalidRequest("checkout already in progress")
		case !claimed:
			return s.existingOrder(ctx, uid, id)
		}
	}

	var placed account.Order
	_, err := s.update(ctx, uid, func(a *account.Account) (bool, error) {
		c := cart.FromItems(a.Cart)
		if c.IsEmpty() {
			return false, apperr.InvalidRequest("cart is empty")
		}
		now := s.now()
		placed = account.Order{
			ID:        a.NextOrderID(now),
			Items:     c.Snapshot(),
			Total:     c.Total(),
			CreatedAt: now,
		}
		a.Orders = append(a.Orders, placed)
		a.Cart = nil
		return true, nil
	})
	if idempotencyKey != "" && s.Idem != nil {
		s.settleKey(ctx, uid, idempotencyKey, placed.ID, err)
	}
	if err != nil {
		return account.Order{}, s.storeErr(ctx, "could not place order", err)
	}

	log.Info("order placed", logx.OrderID, placed.ID, slog.String("total", placed.Total.String()))
	s.publish(ctx, uid, newEnvelope(EventOrderPlaced, s.Name, logx.RequestID(ctx), placed.ID, placedPayload(uid, placed), s.now()))
	return placed, nil
}

func (s *Service) ListOrders(ctx context.Context, uid string) ([]account.Order, error) {
	a, err := s.load(ctx, uid)
	if err != nil {
		return nil, err
	}
	return a.Orders, nil
}

// CancelOrder drops the order from the history. An unknown id is not an
// error; cancelled reports whether anything was removed.
func (s *Service) CancelOrder(ctx context.Context, uid string, orderID int64) (cancelled bool, err error) {
	if uid == "" {
		return false, errSignedOut
	}
	var removed account.Order
	_, err = s.update(ctx, uid, func(a *account.Account) (bool, error) {
		i := a.FindOrder(orderID)
		if i < 0 {
			cancelled = false
			return false, nil
		}
		removed = a.Orders[i]
		a.Orders = append(a.Orders[:i], a.Orders[i+1:]...)
		cancelled = true
		return true, nil
	})
	if err != nil {
		return false, s.storeErr(ctx, "could not cancel order", err)
	}
	if cancelled {
		s.logger(ctx).Info("order cancelled", logx.UserID, uid, logx.OrderID, orderID)
		s.publish(ctx, uid, newEnvelope(EventOrderCancelled, s.Name, logx.RequestID(ctx), orderID, cancelledPayload(uid, removed), s.now()))
	}
	return cancelled, nil
}

var errSignedOut = apperr.NotAuthenticated("sign in required")

// load reads the account; a user without one yet sees an empty account.
func (s *Service) load(ctx context.Context, uid string) (*account.Account, error) {
	if uid == "" {
		return nil, errSignedOut
	}
	a, err := s.Store.Get(ctx, uid)
	if errors.Is(err, account.ErrAccountNotFound) {
		return &account.Account{UID: uid, Cart: []cart.Item{}, Orders: []account.Order{}}, nil
	}
	if err != nil {
		return nil, s.storeErr(ctx, "could not load account", err)
	}
	return a, nil
}

// update runs account.Update and creates the account on first use.
func (s *Service) update(ctx context.Context, uid string, fn func(*account.Account) (bool, error)) (*account.Account, error) {
	a, err := account.Update(ctx, s.Store, uid, fn)
	if !errors.Is(err, account.ErrAccountNotFound) {
		return a, err
	}
	err = s.Store.Create(ctx, &account.Account{UID: uid, CreatedAt: s.now()})
	if err != nil && !errors.Is(err, account.ErrAccountExists) {
		return nil, err
	}
	return account.Update(ctx, s.Store, uid, fn)
}

func (s *Service) existingOrder(ctx context.Context, uid string, id int64) (account.Order, error) {
	a, err := s.load(ctx, uid)
	if err != nil {
		return account.Order{}, err
	}
	i := a.FindOrder(id)
	if i < 0 {
		return account.Order{}, apperr.InvalidRequest("order for this idempotency key no longer exists")
	}
	return a.Orders[i], nil
}

func (s *Service) settleKey(ctx context.Context, uid, key string, orderID int64, checkoutErr error) {
	var err error
	if checkoutErr != nil {
		err = s.Idem.Release(ctx, uid, key)
	} else {
		err = s.Idem.Complete(ctx, uid, key, orderID)
	}
	if err != nil {
		s.logger(ctx).Warn("idempotency update failed", logx.UserID, uid, logx.Err(err))
	}
}

func (s *Service) publish(ctx context.Context, uid string, env Envelope) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, uid, env); err != nil {
		s.logger(ctx).Error("publish order event failed",
			logx.UserID, uid, logx.EventType, env.EventType, logx.EventID, env.EventID, logx.Err(err))
	}
}

// storeErr keeps classified errors and marks everything else as a backend failure.
func (s *Service) storeErr(ctx context.Context, msg string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	s.logger(ctx).Error(msg, logx.Err(err))
	if errors.Is(err, account.ErrVersionConflict) {
		return apperr.RemoteServiceFailure("account is busy, try again", err)
	}
	return apperr.RemoteServiceFailure(msg, err)
}

func (s *Service) now() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	// documents keep millisecond precision
	return now().UTC().Truncate(time.Millisecond)
}

func (s *Service) logger(ctx context.Context) *slog.Logger {
	l := s.Log
	if l == nil {
		l = slog.Default()
	}
	return logx.FromRequest(ctx, l)
}
