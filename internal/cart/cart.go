// Package cart is the in-memory reducer over a user's line items.
//
// Entries are unique by (ProductID, Color) and never hold a quantity below 1;
// deletion is expressed by Remove, not by a zero quantity.
package cart

import (
	"math"

	"github.com/ariefcatur/go-voice-storefront/internal/catalog"
	"github.com/shopspring/decimal"
)

type Item struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Color     string          `json:"color"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func (it Item) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (it Item) matches(productID int64, color string) bool {
	return it.ProductID == productID && it.Color == color
}

type Cart struct {
	items []Item
}

// FromItems wraps persisted items. The slice is copied.
func FromItems(items []Item) *Cart {
	c := &Cart{items: make([]Item, len(items))}
	copy(c.items, items)
	return c
}

// Add puts one unit of the product's variant in the cart. It reports false and
// leaves the cart untouched when the variant is unavailable.
func (c *Cart) Add(p catalog.Product, color string) bool {
	if !p.Available(color) {
		return false
	}
	if i := c.index(p.ID, color); i >= 0 {
		c.items[i].Quantity++
		return true
	}
	c.items = append(c.items, Item{
		ProductID: p.ID,
		Name:      p.Name,
		Color:     color,
		Price:     p.Price,
		Quantity:  1,
	})
	return true
}

// ChangeQuantity applies delta, clamping the result to [1, math.MaxInt].
func (c *Cart) ChangeQuantity(productID int64, color string, delta int) bool {
	i := c.index(productID, color)
	if i < 0 {
		return false
	}
	q := c.items[i].Quantity
	if delta > 0 && q > math.MaxInt-delta {
		q = math.MaxInt
	} else {
		q += delta
	}
	if q < 1 {
		q = 1
	}
	c.items[i].Quantity = q
	return true
}

func (c *Cart) Remove(productID int64, color string) bool {
	i := c.index(productID, color)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

func (c *Cart) Clear() { c.items = nil }

// Total is recomputed on every call.
func (c *Cart) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// Snapshot returns a copy that later mutations cannot reach.
func (c *Cart) Snapshot() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Len() int      { return len(c.items) }
func (c *Cart) IsEmpty() bool { return len(c.items) == 0 }

func (c *Cart) Find(productID int64, color string) (Item, bool) {
	if i := c.index(productID, color); i >= 0 {
		return c.items[i], true
	}
	return Item{}, false
}

func (c *Cart) index(productID int64, color string) int {
	for i := range c.items {
		if c.items[i].matches(productID, color) {
			return i
		}
	}
	return -1
}
