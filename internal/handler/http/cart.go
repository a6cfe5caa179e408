package http

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/suivie/storefront/internal/cart"
	"github.com/suivie/storefront/internal/domain"
	"github.com/suivie/storefront/internal/service"
	"github.com/suivie/storefront/internal/shopify"
	apperrors "github.com/suivie/storefront/pkg/errors"
	"github.com/suivie/storefront/pkg/httputil"
	"github.com/suivie/storefront/pkg/validator"
)

// CartProvider returns the store of a browser profile. *cart.Registry
// satisfies it.
type CartProvider interface {
	Store(profile string) *cart.Store
}

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	carts    CartProvider
	checkout *service.CheckoutService
	logger   *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(carts CartProvider, checkout *service.CheckoutService, logger *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, checkout: checkout, logger: logger}
}

// --- Request DTOs ---

// AddItemRequest is the JSON body of POST /api/v1/cart/items. Quantity
// defaults to 1.
type AddItemRequest struct {
	MerchandiseID string          `json:"merchandiseId" validate:"required,max=255"`
	Title         string          `json:"title" validate:"required,max=500"`
	PriceAmount   decimal.Decimal `json:"priceAmount"`
	CurrencyCode  string          `json:"currencyCode" validate:"required,iso4217"`
	ImageURL      string          `json:"imageUrl" validate:"omitempty,url"`
	Handle        string          `json:"handle" validate:"omitempty,max=255"`
	Quantity      *int            `json:"quantity" validate:"omitempty,min=1,max=99"`
}

// UpdateQuantityRequest is the JSON body of PUT /api/v1/cart/items/{id}.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=99"`
}

// ShippingRequest is the JSON body of POST /api/v1/cart/shipping.
type ShippingRequest struct {
	PostalCode string `json:"postalCode" validate:"required,cep"`
}

// Normalize drops the dash and spaces customers type into a CEP.
func (r *ShippingRequest) Normalize() {
	r.PostalCode = shopify.NormalizePostalCode(r.PostalCode)
}

// --- Response DTOs ---

// CartResponse is the cart with its derived values.
type CartResponse struct {
	Items         []domain.CartLine     `json:"items"`
	Count         int                   `json:"count"`
	TotalAmount   decimal.Decimal       `json:"totalAmount"`
	CurrencyCode  string                `json:"currencyCode"`
	CheckoutLines []domain.CheckoutLine `json:"checkoutLines"`
}

// CheckoutResponse carries the external checkout URL.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}

// ShippingResponse lists the quoted delivery options.
type ShippingResponse struct {
	Options []shopify.ShippingOption `json:"options"`
}

func newCartResponse(s cart.Snapshot) CartResponse {
	return CartResponse{
		Items:         s.Items,
		Count:         s.Count,
		TotalAmount:   s.Total.Amount,
		CurrencyCode:  s.Total.CurrencyCode,
		CheckoutLines: s.CheckoutLines,
	}
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, r, h.store(r))
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	if req.PriceAmount.IsNegative() {
		httputil.WriteError(w, r, apperrors.InvalidInput("priceAmount must not be negative"), h.logger)
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	store := h.store(r)
	store.AddItem(r.Context(), domain.NewLine{
		MerchandiseID: req.MerchandiseID,
		Title:         req.Title,
		UnitPrice:     domain.Money{Amount: req.PriceAmount, CurrencyCode: req.CurrencyCode},
		ImageURL:      req.ImageURL,
		ProductHandle: req.Handle,
	}, quantity)

	h.writeCart(w, r, store)
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{merchandiseId}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.merchandiseID(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	store := h.store(r)
	if domain.Lines(store.Items(r.Context())).Find(id) < 0 {
		httputil.WriteError(w, r, apperrors.NotFound("cart line", id), h.logger)
		return
	}
	store.SetQuantity(r.Context(), id, req.Quantity)

	h.writeCart(w, r, store)
}

// RemoveItem handles DELETE /api/v1/cart/items/{merchandiseId}. Removing an
// id that is not in the cart succeeds.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.merchandiseID(w, r)
	if !ok {
		return
	}

	store := h.store(r)
	store.RemoveItem(r.Context(), id)
	h.writeCart(w, r, store)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	store := h.store(r)
	store.Clear(r.Context())
	h.writeCart(w, r, store)
}

// Checkout handles POST /api/v1/cart/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	checkoutURL, err := h.checkout.Checkout(r.Context(), h.store(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, CheckoutResponse{CheckoutURL: checkoutURL})
}

// QuoteShipping handles POST /api/v1/cart/shipping
func (h *CartHandler) QuoteShipping(w http.ResponseWriter, r *http.Request) {
	var req ShippingRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	options, err := h.checkout.QuoteShipping(r.Context(), h.store(r), req.PostalCode)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, ShippingResponse{Options: options})
}

// --- Helpers ---

func (h *CartHandler) store(r *http.Request) *cart.Store {
	return h.carts.Store(profileFromContext(r.Context()))
}

func (h *CartHandler) writeCart(w http.ResponseWriter, r *http.Request, store *cart.Store) {
	httputil.WriteData(w, http.StatusOK, newCartResponse(store.Snapshot(r.Context())))
}

// merchandiseID returns the unescaped {merchandiseId} path parameter.
// Shopify ids contain slashes and arrive path-escaped.
func (h *CartHandler) merchandiseID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := url.PathUnescape(chi.URLParam(r, "merchandiseId"))
	if err != nil || id == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid merchandiseId"), h.logger)
		return "", false
	}
	return id, true
}
