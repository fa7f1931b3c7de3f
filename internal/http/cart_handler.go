package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/service"
)

type CartHandler struct {
	catalog  *catalog.Service
	timeout  time.Duration
	validate *validator.Validate
	log      *slog.Logger
}

func NewCartHandler(catalog *catalog.Service, timeout time.Duration, log *slog.Logger) *CartHandler {
	return &CartHandler{
		catalog:  catalog,
		timeout:  timeout,
		validate: validator.New(),
		log:      log,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Size      string `json:"size" validate:"max=16"`
	Quantity  int    `json:"quantity" validate:"min=1,max=99"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity" validate:"min=0,max=99"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	respondJSON(w, http.StatusOK, s.Cart().Snapshot())
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	product, err := h.catalog.Get(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		respondInternal(w, r, h.log, err)
		return
	}

	s := getSession(r.Context())
	snap, err := s.Cart().AddItem(ctx, product.LineItem(req.Size), req.Quantity)
	if err != nil {
		h.handleCartError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, snap)
}

// PUT /api/v1/cart/items/{product_id}?size=
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	// negative quantities remove the line like zero does
	req.Quantity = max(req.Quantity, 0)
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	s := getSession(r.Context())
	snap, err := s.Cart().SetQuantity(ctx, productID, r.URL.Query().Get("size"), req.Quantity)
	if err != nil {
		h.handleCartError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// DELETE /api/v1/cart/items/{product_id}?size=
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := getSession(r.Context())
	snap, err := s.Cart().RemoveItem(ctx, chi.URLParam(r, "product_id"), r.URL.Query().Get("size"))
	if err != nil {
		h.handleCartError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := getSession(r.Context())
	snap, err := s.Cart().Clear(ctx)
	if err != nil {
		h.handleCartError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

type CardDTO struct {
	Number string `json:"number" validate:"required,credit_card"`
	Expiry string `json:"expiry" validate:"required,len=5"`
	CVV    string `json:"cvv" validate:"required,numeric,min=3,max=4"`
}

type CheckoutRequestDTO struct {
	Billing domain.BillingAddress `json:"billing"`
	Card    CardDTO               `json:"card"`
}

type CheckoutResponseDTO struct {
	Order *domain.Order `json:"order"`
}

// POST /api/v1/cart/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := getSession(r.Context())
	if _, ok := requireUser(w, s); !ok {
		return
	}

	var req CheckoutRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}
	if !cardUnexpired(req.Card.Expiry, time.Now()) {
		respondError(w, http.StatusBadRequest, "card_expired", "card expiry must be a future MM/YY date")
		return
	}

	number := req.Card.Number
	order, err := s.Cart().Checkout(ctx, req.Billing, number[len(number)-4:])
	if err != nil {
		h.handleCartError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{Order: order})
}

// cardUnexpired accepts MM/YY expiries up to the end of the expiry month.
func cardUnexpired(expiry string, now time.Time) bool {
	t, err := time.Parse("01/06", expiry)
	if err != nil {
		return false
	}
	return now.Before(t.AddDate(0, 1, 0))
}

func (h *CartHandler) handleCartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidItem):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, service.ErrEmptyCart):
		respondError(w, http.StatusConflict, "cart_empty", err.Error())
	case errors.Is(err, service.ErrNotAuthenticated):
		respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, service.ErrRemoteUnavailable):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "cart store unavailable, try again later")
	default:
		respondInternal(w, r, h.log, err)
	}
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}
