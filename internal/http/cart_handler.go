package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/storefront/cart-service/internal/apperr"
	"github.com/storefront/cart-service/internal/domain"
	"github.com/storefront/cart-service/internal/service"
)

// CartAPI is the slice of the orchestrator the handlers consume.
type CartAPI interface {
	GetCart(ctx context.Context, token string) (*domain.Cart, error)
	GetCartForUser(ctx context.Context, token string, userID int64) (*domain.Cart, error)
	AddItem(ctx context.Context, token string, productID int64, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, token string, productID int64) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, token string, productID int64, quantity int) (*domain.Cart, error)
	ClearCart(ctx context.Context, token string) (bool, error)
	Summary(ctx context.Context, token string) (*service.Summary, error)
	ValidateForCheckout(ctx context.Context, token string) (*domain.Cart, error)
	RefreshCart(ctx context.Context, token string) (int, error)
	AllCarts(ctx context.Context, token string) ([]*domain.Cart, error)
}

type CartHandler struct {
	carts CartAPI
}

func NewCartHandler(carts CartAPI) *CartHandler {
	return &CartHandler{carts: carts}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *CartHandler) Routes(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Get("/all", h.AllCarts)
		r.Get("/summary", h.Summary)
		r.Get("/validate", h.Validate)
		r.Post("/refresh", h.Refresh)
		r.Post("/items", h.AddItem)
		r.Put("/items/{productID}", h.UpdateQuantity)
		r.Delete("/items/{productID}", h.RemoveItem)
		r.Get("/{userID}", h.GetCartByUser)
	})
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.GetCart(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) GetCartByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "user id must be a positive integer")
		return
	}

	cart, errGet := h.carts.GetCartForUser(r.Context(), tokenFromContext(r.Context()), userID)
	if errGet != nil {
		respondAppError(w, errGet)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart, err := h.carts.AddItem(r.Context(), tokenFromContext(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cart)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a positive integer")
		return
	}

	var req UpdateQuantityRequestDTO
	if errDecode := json.NewDecoder(r.Body).Decode(&req); errDecode != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart, errUpdate := h.carts.UpdateQuantity(r.Context(), tokenFromContext(r.Context()), productID, req.Quantity)
	if errUpdate != nil {
		respondAppError(w, errUpdate)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a positive integer")
		return
	}

	cart, errRemove := h.carts.RemoveItem(r.Context(), tokenFromContext(r.Context()), productID)
	if errRemove != nil {
		respondAppError(w, errRemove)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	existed, err := h.carts.ClearCart(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"cleared": existed})
}

func (h *CartHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.carts.Summary(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *CartHandler) Validate(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.ValidateForCheckout(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	remaining, err := h.carts.RefreshCart(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"items_remaining": remaining})
}

func (h *CartHandler) AllCarts(w http.ResponseWriter, r *http.Request) {
	carts, err := h.carts.AllCarts(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, carts)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func respondAppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)

	var status int
	switch kind {
	case apperr.Unauthenticated:
		status = http.StatusUnauthorized
	case apperr.AccessDenied:
		status = http.StatusForbidden
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.InvalidInput:
		status = http.StatusBadRequest
	case apperr.ProductInvalid:
		status = http.StatusUnprocessableEntity
	case apperr.DependencyUnavailable, apperr.StorageDegraded:
		status = http.StatusServiceUnavailable
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondError(w, status, kind.String(), err.Error())
}
