package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/cartstore/internal/domain"
	"github.com/utafrali/cartstore/internal/service"
	"github.com/utafrali/cartstore/pkg/httputil"
	"github.com/utafrali/cartstore/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// SessionResponse is returned when a session is opened.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// StartSession handles POST /api/v1/sessions
func (h *CartHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	sid := h.service.NewSession(r.Context())
	w.Header().Set("Location", "/api/v1/cart")
	httputil.WriteData(w, http.StatusCreated, SessionResponse{SessionID: sid})
}

// EndSession handles DELETE /api/v1/sessions
func (h *CartHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.EndSession(r.Context(), sessionIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.GetCart(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cart)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.Clear(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cart)
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req service.AddItemInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	cart, err := h.service.AddItem(r.Context(), sessionIDFromContext(r.Context()), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cart)
}

// SetQuantity handles PUT /api/v1/cart/items/{name}
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	name, err := httputil.PathParam(r, "name")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req service.SetQuantityInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	cart, err := h.service.SetQuantity(r.Context(), sessionIDFromContext(r.Context()), name, *req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cart)
}

// RemoveItem handles DELETE /api/v1/cart/items/{name}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.withEntry(w, r, h.service.RemoveItem)
}

// Increment handles POST /api/v1/cart/items/{name}/increment
func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	h.withEntry(w, r, h.service.Increment)
}

// Decrement handles POST /api/v1/cart/items/{name}/decrement
func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.withEntry(w, r, h.service.Decrement)
}

// EntryTotal handles GET /api/v1/cart/items/{name}/total
func (h *CartHandler) EntryTotal(w http.ResponseWriter, r *http.Request) {
	name, err := httputil.PathParam(r, "name")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	entry, err := h.service.EntryTotal(r.Context(), sessionIDFromContext(r.Context()), name)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, entry)
}

// Checkout handles POST /api/v1/cart/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Checkout(r.Context(), sessionIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// withEntry runs a command addressed by the {name} path parameter and writes
// the resulting cart.
func (h *CartHandler) withEntry(w http.ResponseWriter, r *http.Request, cmd func(context.Context, string, string) (domain.View, error)) {
	name, err := httputil.PathParam(r, "name")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	cart, err := cmd(r.Context(), sessionIDFromContext(r.Context()), name)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cart)
}
