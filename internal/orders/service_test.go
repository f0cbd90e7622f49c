package orders

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-voice-storefront/internal/account"
	"github.com/ariefcatur/go-voice-storefront/internal/apperr"
	"github.com/ariefcatur/go-voice-storefront/internal/catalog"
	kafkax "github.com/ariefcatur/go-voice-storefront/internal/kafka"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedEvent struct {
	uid string
	env Envelope
}

type capturePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (c *capturePublisher) Publish(_ context.Context, uid string, env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, capturedEvent{uid: uid, env: env})
	return nil
}

func (c *capturePublisher) all() []capturedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capturedEvent(nil), c.events...)
}

const (
	shirtID = int64(1)
	jeansID = int64(2)
)

func newTestService(t *testing.T) (*Service, *capturePublisher) {
	t.Helper()
	pub := &capturePublisher{}
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &Service{
		Store:   account.NewMemoryStore(),
		Catalog: catalog.Default(),
		Events:  pub,
		Name:    "storefront-api",
		Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:     func() time.Time { return clock },
	}, pub
}

func TestAddItem_UnavailableVariantIsNoOp(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	view, added, err := s.AddItem(ctx, "u1", shirtID, "red")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Empty(t, view.Items)

	view, added, err = s.AddItem(ctx, "u1", shirtID, "green")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Empty(t, view.Items)
}

func TestAddItem_MergesSameVariant(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := s.AddItem(ctx, "u1", shirtID, "blue")
	require.NoError(t, err)
	view, added, err := s.AddItem(ctx, "u1", shirtID, "blue")
	require.NoError(t, err)
	assert.True(t, added)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(50).Equal(view.Total))
}

func TestAddItem_Validation(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := s.AddItem(ctx, "", shirtID, "blue")
	assert.True(t, apperr.Is(err, apperr.KindNotAuthenticated))

	_, _, err = s.AddItem(ctx, "u1", 99, "blue")
	assert.True(t, apperr.Is(err, apperr.KindInvalidRequest))

	_, _, err = s.AddItem(ctx, "u1", shirtID, "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidRequest))
}

func TestCartTotal(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := s.AddItem(ctx, "u1", shirtID, "blue")
	require.NoError(t, err)
	_, _, err = s.AddItem(ctx, "u1", jeansID, "black")
	require.NoError(t, err)

	view, err := s.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, view.Items, 2)
	assert.True(t, decimal.NewFromInt(70).Equal(view.Total), "got %s", view.Total)
}

func TestChangeQuantity_ClampsAtOne(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	_, _, err := s.AddItem(ctx, "u1", shirtID, "blue")
	require.NoError(t, err)

	view, err := s.ChangeQuantity(ctx, "u1", shirtID, "blue", 3)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Items[0].Quantity)

	view, err = s.ChangeQuantity(ctx, "u1", shirtID, "blue", -10)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Items[0].Quantity)

	view, err = s.ChangeQuantity(ctx, "u1", jeansID, "black", 1)
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
}

func TestRemoveThenAddResetsQuantity(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	_, _, err := s.AddItem(ctx, "u1", shirtID, "blue")
	require.NoError(t, err)
	_, err = s.ChangeQuantity(ctx, "u1", shirtID, "blue", 4)
	require.NoError(t, err)

	view, err := s.RemoveItem(ctx, "u1", shirtID, "blue")
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	view, _, err = s.AddItem(ctx, "u1", shirtID, "blue")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)

	// removing something absent is fine
	_, err = s.RemoveItem(ctx, "u1", jeansID, "black")
	require.NoError(t, err)
}

func TestCheckout_FreezesCartIntoOneOrder(t *testing.T) {
	s, pub := newTestService(t)
	ctx := context.Background()
	_, _, err := s.AddItem(ctx, "u1", shirtID, "blue")
	require.NoError(t, err)
	_, _, err = s.AddItem(ctx, "u1", jeansID, "black")
	require.NoError(t, err)
	before, err := s.GetCart(ctx, "u1")
	require.NoError(t, err)

	order, err := s.Checkout(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, before.Items, order.Items)
	assert.True(t, before.Total.Equal(order.Total))
	assert.Equal(t, s.now().UnixMilli(), order.ID)

	after, err := s.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, after.Items)
	assert.True(t, decimal.Zero.Equal(after.Total))

	orders, err := s.ListOrders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	events := pub.all()
	require.Len(t, events, 1)
	assert.Equal(t, "u1", events[0].uid)
	assert.Equal(t, EventOrderPlaced, events[0].env.EventType)
	p, err := kafkax.UnwrapPayload[OrderPlacedPayload](events[0].env.Payload)
	require.NoError(t, err)
	assert.Equal(t, order.ID, p.OrderID)
	assert.Equal(t, "70", p.Total)
	assert.Len(t, p.Items, 2)
}

func TestCheckout_OrderIDsStrictlyIncrease(t *testing.T) {
	s, _ := newTestService(t) // frozen clock
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		_, _, err := s.AddItem(ctx, "u1", shirtID, "blue")
		require.NoError(t, err)
		o, err := s.Checkout(ctx, "u1", "")
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}
	assert.Less(t, ids[0], ids[1])
	assert.Less(t, ids[1], ids[2])
}

func TestCheckout_EmptyCart(t *testing.T) {
	s, pub := newTestService(t)
	_, err := s.Checkout(context.Background(), "u1", "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidRequest))
	assert.Empty(t, pub.all())
}

func TestCheckout_RequiresUser(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.Checkout(context.Background(), "", "")
	assert.True(t, apperr.Is(err, apperr.KindNotAuthenticated))
}

// flakyStore makes the next n Replace calls lose the race.
type flakyStore struct {
	*account.MemoryStore
	mu        sync.Mutex
	conflicts int
}

func (f *flakyStore) Replace(ctx context.Context, a *account.Account) error {
	f.mu.Lock()
	if f.conflicts > 0 {
		f.conflicts--
		f.mu.Unlock()
		return account.ErrVersionConflict
	}
	f.mu.Unlock()
	return f.MemoryStore.Replace(ctx, a)
}

func TestCheckout_RetriesConflictsWithoutDuplicating(t *testing.T) {
	s, _ := newTestService(t)
	store := &flakyStore{MemoryStore: account.NewMemoryStore()}
	s.Store = store
	ctx := context.Background()
	_, _, err := s.AddItem(ctx, "u1", shirtID, "blue")
	require.NoError(t, err)

	store.conflicts = 2
	_, err = s.Checkout(ctx, "u1", "")
	require.NoError(t, err)

	orders, err := s.ListOrders(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCheckout_PersistentConflictIsRemoteFailure(t *testing.T) {
	s, _ := newTestService(t)
	store := &flakyStore{MemoryStore: account.NewMemoryStore()}
	s.Store = store
	ctx := context.Background()
	_, _, err := s.AddItem(ctx, "u1", shirtID, "blue")
	require.NoError(t, err)

	store.conflicts = 100
	_, err = s.Checkout(ctx, "u1", "")
	assert.True(t, apperr.Is(err, apperr.KindRemoteServiceFailure))
	assert.ErrorIs(t, err, account.ErrVersionConflict)

	view, err := s.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
}

func TestCancelOrder(t *testing.T) {
	s, pub := newTestService(t)
	ctx := context.Background()
	_, _, err := s.AddItem(ctx, "u1", shirtID, "blue")
	require.NoError(t, err)
	order, err := s.Checkout(ctx, "u1", "")
	require.NoError(t, err)

	cancelled, err := s.CancelOrder(ctx, "u1", order.ID+42)
	require.NoError(t, err)
	assert.False(t, cancelled)
	orders, err := s.ListOrders(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	cancelled, err = s.CancelOrder(ctx, "u1", order.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)
	orders, err = s.ListOrders(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, orders)

	events := pub.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventOrderCancelled, events[1].env.EventType)
	var p OrderCancelledPayload
	require.NoError(t, json.Unmarshal(events[1].env.Payload, &p))
	assert.Equal(t, order.ID, p.OrderID)
	assert.Equal(t, 1, p.ItemCount)
}

func TestCreateAccount_Idempotent(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	a, created, err := s.CreateAccount(ctx, "u1", "u1@example.com")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "u1@example.com", a.Email)

	_, _, err = s.AddItem(ctx, "u1", shirtID, "blue")
	require.NoError(t, err)

	a, created, err = s.CreateAccount(ctx, "u1", "other@example.com")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "u1@example.com", a.Email)
	assert.Len(t, a.Cart, 1)
}

func TestGetCart_MissingAccountIsEmpty(t *testing.T) {
	s, _ := newTestService(t)
	view, err := s.GetCart(context.Background(), "new-user")
	require.NoError(t, err)
	assert.NotNil(t, view.Items)
	assert.Empty(t, view.Items)
}

type memoryIdem struct {
	mu   sync.Mutex
	keys map[string]int64 // 0 = pending
}

func (m *memoryIdem) Claim(_ context.Context, uid, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.keys[uid+":"+key]; ok {
		return id, false, nil
	}
	m.keys[uid+":"+key] = 0
	return 0, true, nil
}

func (m *memoryIdem) Complete(_ context.Context, uid, key string, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[uid+":"+key] = orderID
	return nil
}

func (m *memoryIdem) Release(_ context.Context, uid, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, uid+":"+key)
	return nil
}

func TestCheckout_IdempotencyKeyReturnsSameOrder(t *testing.T) {
	s, pub := newTestService(t)
	s.Idem = &memoryIdem{keys: map[string]int64{}}
	ctx := context.Background()
	_, _, err := s.AddItem(ctx, "u1", shirtID, "blue")
	require.NoError(t, err)

	first, err := s.Checkout(ctx, "u1", "k1")
	require.NoError(t, err)
	second, err := s.Checkout(ctx, "u1", "k1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, pub.all(), 1)

	orders, err := s.ListOrders(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCheckout_FailedAttemptReleasesKey(t *testing.T) {
	s, _ := newTestService(t)
	idem := &memoryIdem{keys: map[string]int64{}}
	s.Idem = idem
	ctx := context.Background()

	_, err := s.Checkout(ctx, "u1", "k1")
	assert.True(t, apperr.Is(err, apperr.KindInvalidRequest))
	assert.Empty(t, idem.keys)

	_, _, err = s.AddItem(ctx, "u1", shirtID, "blue")
	require.NoError(t, err)
	_, err = s.Checkout(ctx, "u1", "k1")
	require.NoError(t, err)
}

func TestCheckout_KeyInFlight(t *testing.T) {
	s, _ := newTestService(t)
	s.Idem = &memoryIdem{keys: map[string]int64{"u1:k1": 0}}
	_, err := s.Checkout(context.Background(), "u1", "k1")
	assert.True(t, apperr.Is(err, apperr.KindInvalidRequest))
}
