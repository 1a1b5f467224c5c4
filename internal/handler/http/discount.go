package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/oguzkaracar/coursecommerce/internal/repository"
	"github.com/oguzkaracar/coursecommerce/internal/service"
	"github.com/oguzkaracar/coursecommerce/pkg/httputil"
	"github.com/oguzkaracar/coursecommerce/pkg/pagination"
	"github.com/oguzkaracar/coursecommerce/pkg/validator"
)

// DiscountHandler handles HTTP requests for coupon endpoints.
type DiscountHandler struct {
	service *service.DiscountService
	logger  *slog.Logger
}

// NewDiscountHandler creates a new discount HTTP handler.
func NewDiscountHandler(svc *service.DiscountService, logger *slog.Logger) *DiscountHandler {
	return &DiscountHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ValidateDiscountRequest is the JSON request body for coupon validation.
type ValidateDiscountRequest struct {
	Code       string          `json:"code" validate:"required"`
	CartAmount decimal.Decimal `json:"cart_amount" validate:"required"`
	ProductID  string          `json:"product_id"`
}

// DiscountRequest is the JSON request body for creating or updating a
// discount.
type DiscountRequest struct {
	Code              string          `json:"code" validate:"required"`
	Type              string          `json:"type" validate:"required,oneof=percentage fixed product"`
	Value             decimal.Decimal `json:"value" validate:"required"`
	MinPurchaseAmount decimal.Decimal `json:"min_purchase_amount"`
	MaxDiscountAmount decimal.Decimal `json:"max_discount_amount"`
	MaxUses           int             `json:"max_uses" validate:"gte=0"`
	UserID            string          `json:"user_id"`
	ProductID         string          `json:"product_id"`
	ValidFrom         *time.Time      `json:"valid_from"`
	ValidUntil        *time.Time      `json:"valid_until"`
	IsActive          bool            `json:"is_active"`
}

// --- Handlers ---

// ValidateDiscount handles POST /api/v1/discounts/validate
func (h *DiscountHandler) ValidateDiscount(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req ValidateDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	if req.CartAmount.IsNegative() {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "cart_amount must not be negative"},
		})
		return
	}

	result, err := h.service.Validate(r.Context(), req.Code, req.CartAmount, req.ProductID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// CreateDiscount handles POST /api/v1/admin/discounts
func (h *DiscountHandler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDiscountRequest(w, r)
	if !ok {
		return
	}

	discount, err := h.service.Create(r.Context(), &service.CreateDiscountInput{
		Code:              req.Code,
		Type:              req.Type,
		Value:             req.Value,
		MinPurchaseAmount: req.MinPurchaseAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		MaxUses:           req.MaxUses,
		UserID:            req.UserID,
		ProductID:         req.ProductID,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
		IsActive:          req.IsActive,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: discount})
}

// UpdateDiscount handles PUT /api/v1/admin/discounts/{id}
func (h *DiscountHandler) UpdateDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	req, ok := h.decodeDiscountRequest(w, r)
	if !ok {
		return
	}

	discount, err := h.service.Update(r.Context(), id.String(), &service.UpdateDiscountInput{
		Code:              req.Code,
		Type:              req.Type,
		Value:             req.Value,
		MinPurchaseAmount: req.MinPurchaseAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		MaxUses:           req.MaxUses,
		UserID:            req.UserID,
		ProductID:         req.ProductID,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
		IsActive:          req.IsActive,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: discount})
}

// DeleteDiscount handles DELETE /api/v1/admin/discounts/{id}
func (h *DiscountHandler) DeleteDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetDiscount handles GET /api/v1/admin/discounts/{id}
func (h *DiscountHandler) GetDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	discount, err := h.service.Get(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: discount})
}

// ListDiscounts handles GET /api/v1/admin/discounts
func (h *DiscountHandler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	filter := repository.DiscountFilter{
		Page:    params.Page,
		PerPage: params.PerPage,
	}

	if v := r.URL.Query().Get("type"); v != "" {
		filter.Type = &v
	}
	if v := r.URL.Query().Get("is_active"); v != "" {
		active := v == "true"
		filter.IsActive = &active
	}

	discounts, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(discounts, total, filter.Page, filter.PerPage))
}

func (h *DiscountHandler) decodeDiscountRequest(w http.ResponseWriter, r *http.Request) (*DiscountRequest, bool) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req DiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return nil, false
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return nil, false
	}

	return &req, true
}
