package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-voice-storefront/internal/account"
	"github.com/ariefcatur/go-voice-storefront/internal/apperr"
	"github.com/ariefcatur/go-voice-storefront/internal/catalog"
	"github.com/ariefcatur/go-voice-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
)

type StoreHandler struct {
	Orders  *orders.Service
	Catalog *catalog.Catalog
	Log     *slog.Logger
	Timeout time.Duration
}

type AddItemRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Color     string `json:"color" validate:"required"`
}

type ChangeQuantityRequest struct {
	Delta int `json:"delta" validate:"required"`
}

type CreateAccountRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

type AddItemResponse struct {
	Cart  orders.CartView `json:"cart"`
	Added bool            `json:"added"`
}

type AccountResponse struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Created   bool      `json:"created"`
}

type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

func (h *StoreHandler) Register(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Get("/api/products", h.listProducts)
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Post("/api/account", h.createAccount)
		r.Get("/api/cart", h.getCart)
		r.Post("/api/cart/items", h.addItem)
		r.Patch("/api/cart/items/{productID}/{color}", h.changeQuantity)
		r.Delete("/api/cart/items/{productID}/{color}", h.removeItem)
		r.Post("/api/checkout", h.checkout)
		r.Get("/api/orders", h.listOrders)
		r.Delete("/api/orders/{orderID}", h.cancelOrder)
	})
}

func (h *StoreHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Catalog.List())
}

func (h *StoreHandler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	a, created, err := h.Orders.CreateAccount(ctx, UserID(r.Context()), req.Email)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, AccountResponse{UID: a.UID, Email: a.Email, CreatedAt: a.CreatedAt, Created: created})
}

func (h *StoreHandler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	view, err := h.Orders.GetCart(ctx, UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *StoreHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	view, added, err := h.Orders.AddItem(ctx, UserID(r.Context()), req.ProductID, req.Color)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, AddItemResponse{Cart: view, Added: added})
}

func (h *StoreHandler) changeQuantity(w http.ResponseWriter, r *http.Request) {
	productID, err := pathInt(r, "productID")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var req ChangeQuantityRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	view, err := h.Orders.ChangeQuantity(ctx, UserID(r.Context()), productID, chi.URLParam(r, "color"), req.Delta)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *StoreHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	productID, err := pathInt(r, "productID")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	view, err := h.Orders.RemoveItem(ctx, UserID(r.Context()), productID, chi.URLParam(r, "color"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *StoreHandler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	order, err := h.Orders.Checkout(ctx, UserID(r.Context()), r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *StoreHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	list, err := h.Orders.ListOrders(ctx, UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if list == nil {
		list = []account.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *StoreHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathInt(r, "orderID")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	cancelled, err := h.Orders.CancelOrder(ctx, UserID(r.Context()), orderID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, CancelResponse{Cancelled: cancelled})
}

func (h *StoreHandler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	d := h.Timeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), d)
}

func pathInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, apperr.InvalidRequest("invalid " + name)
	}
	return v, nil
}
