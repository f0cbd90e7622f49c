package catalog

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Colors map[string]bool `json:"colors"` // variant -> in stock
}

// Available reports whether the variant exists and is in stock.
func (p Product) Available(color string) bool {
	return p.Colors[color]
}

// Catalog is read-only after construction.
type Catalog struct {
	byID map[int64]Product
}

func New(products ...Product) *Catalog {
	c := &Catalog{byID: make(map[int64]Product, len(products))}
	for _, p := range products {
		c.byID[p.ID] = p
	}
	return c
}

// Default is the storefront's sample product set.
func Default() *Catalog {
	return New(
		Product{
			ID:     1,
			Name:   "Plain Shirt",
			Price:  decimal.NewFromInt(25),
			Colors: map[string]bool{"red": false, "blue": true, "black": false},
		},
		Product{
			ID:     2,
			Name:   "Jeans",
			Price:  decimal.NewFromInt(45),
			Colors: map[string]bool{"red": false, "blue": false, "black": true},
		},
	)
}

func (c *Catalog) Get(id int64) (Product, error) {
	p, ok := c.byID[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

// List returns products ordered by id.
func (c *Catalog) List() []Product {
	out := make([]Product, 0, len(c.byID))
	for _, p := range c.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
