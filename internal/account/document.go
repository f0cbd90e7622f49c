package account

import (
	"fmt"
	"time"

	"github.com/ariefcatur/go-voice-storefront/internal/cart"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// document is the persisted shape shared by every store and the cache.
// Money is kept as a decimal string so no backend rounds it.
type document struct {
	UID       string          `bson:"_id" json:"uid" validate:"required"`
	Email     string          `bson:"email" json:"email" validate:"omitempty,email"`
	CreatedAt time.Time       `bson:"createdAt" json:"createdAt"`
	Cart      []itemDocument  `bson:"cart" json:"cart" validate:"dive"`
	Orders    []orderDocument `bson:"orders" json:"orders" validate:"dive"`
	Version   int64           `bson:"version" json:"version" validate:"gte=0"`
}

type itemDocument struct {
	ProductID int64  `bson:"productId" json:"productId" validate:"gt=0"`
	Name      string `bson:"name" json:"name"`
	Color     string `bson:"color" json:"color" validate:"required"`
	Price     string `bson:"price" json:"price" validate:"required,numeric"`
	Quantity  int    `bson:"quantity" json:"quantity" validate:"gte=1"`
}

type orderDocument struct {
	ID        int64          `bson:"id" json:"id" validate:"gt=0"`
	Items     []itemDocument `bson:"items" json:"items" validate:"dive"`
	Total     string         `bson:"total" json:"total" validate:"required,numeric"`
	CreatedAt time.Time      `bson:"createdAt" json:"createdAt" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func toDocument(a *Account) document {
	d := document{
		UID:       a.UID,
		Email:     a.Email,
		CreatedAt: a.CreatedAt,
		Cart:      itemsToDocuments(a.Cart),
		Orders:    make([]orderDocument, 0, len(a.Orders)),
		Version:   a.Version,
	}
	for _, o := range a.Orders {
		d.Orders = append(d.Orders, orderDocument{
			ID:        o.ID,
			Items:     itemsToDocuments(o.Items),
			Total:     o.Total.String(),
			CreatedAt: o.CreatedAt,
		})
	}
	return d
}

func itemsToDocuments(items []cart.Item) []itemDocument {
	out := make([]itemDocument, 0, len(items))
	for _, it := range items {
		out = append(out, itemDocument{
			ProductID: it.ProductID,
			Name:      it.Name,
			Color:     it.Color,
			Price:     it.Price.String(),
			Quantity:  it.Quantity,
		})
	}
	return out
}

// toAccount validates d and converts it. Anything that would break a cart or
// order invariant is rejected with ErrMalformedDocument.
func (d document) toAccount() (*Account, error) {
	if err := validate.Struct(d); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, d.UID, err)
	}
	items, err := documentsToItems(d.Cart)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: cart: %v", ErrMalformedDocument, d.UID, err)
	}
	a := &Account{
		UID:       d.UID,
		Email:     d.Email,
		CreatedAt: d.CreatedAt,
		Cart:      items,
		Orders:    make([]Order, 0, len(d.Orders)),
		Version:   d.Version,
	}
	seen := make(map[int64]struct{}, len(d.Orders))
	for _, od := range d.Orders {
		if _, dup := seen[od.ID]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate order id %d", ErrMalformedDocument, d.UID, od.ID)
		}
		seen[od.ID] = struct{}{}
		oi, err := documentsToItems(od.Items)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: order %d: %v", ErrMalformedDocument, d.UID, od.ID, err)
		}
		total, err := decimal.NewFromString(od.Total)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: order %d total: %v", ErrMalformedDocument, d.UID, od.ID, err)
		}
		a.Orders = append(a.Orders, Order{ID: od.ID, Items: oi, Total: total, CreatedAt: od.CreatedAt})
	}
	return a, nil
}

func documentsToItems(ds []itemDocument) ([]cart.Item, error) {
	type key struct {
		id    int64
		color string
	}
	seen := make(map[key]struct{}, len(ds))
	out := make([]cart.Item, 0, len(ds))
	for _, d := range ds {
		k := key{d.ProductID, d.Color}
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("duplicate entry product=%d color=%s", d.ProductID, d.Color)
		}
		seen[k] = struct{}{}
		price, err := decimal.NewFromString(d.Price)
		if err != nil {
			return nil, fmt.Errorf("price %q: %v", d.Price, err)
		}
		out = append(out, cart.Item{
			ProductID: d.ProductID,
			Name:      d.Name,
			Color:     d.Color,
			Price:     price,
			Quantity:  d.Quantity,
		})
	}
	return out, nil
}
