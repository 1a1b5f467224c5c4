package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oguzkaracar/coursecommerce/internal/repository"
	"github.com/oguzkaracar/coursecommerce/internal/service"
	"github.com/oguzkaracar/coursecommerce/pkg/httputil"
	"github.com/oguzkaracar/coursecommerce/pkg/middleware"
	"github.com/oguzkaracar/coursecommerce/pkg/pagination"
	"github.com/oguzkaracar/coursecommerce/pkg/validator"
)

// OrderHandler handles HTTP requests for order and refund endpoints.
type OrderHandler struct {
	orders  *service.OrderService
	refunds *service.RefundService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(orders *service.OrderService, refunds *service.RefundService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders:  orders,
		refunds: refunds,
		logger:  logger,
	}
}

// --- Request DTOs ---

// PartialRefundItemRequest is one line of a partial refund request.
type PartialRefundItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
	Reason    string `json:"reason"`
}

// PartialRefundRequest is the JSON request body for a partial refund.
type PartialRefundRequest struct {
	Items []PartialRefundItemRequest `json:"items" validate:"required,min=1,dive"`
}

func actorFromContext(r *http.Request) service.Actor {
	return service.Actor{
		UserID: middleware.UserIDFromContext(r.Context()),
		Role:   middleware.RoleFromContext(r.Context()),
	}
}

// --- Handlers ---

// ListOrders handles GET /api/v1/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	filter := repository.OrderFilter{
		Page:    params.Page,
		PerPage: params.PerPage,
	}

	if v := r.URL.Query().Get("user_id"); v != "" {
		filter.UserID = &v
	}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = &v
	}

	orders, total, err := h.orders.ListOrders(r.Context(), actorFromContext(r), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(orders, total, filter.Page, filter.PerPage))
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), id.String(), actorFromContext(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// RefundOrder handles POST /api/v1/orders/{id}/refund
func (h *OrderHandler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	result, err := h.refunds.RequestFullRefund(r.Context(), id.String(), actorFromContext(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// PartialRefundOrder handles POST /api/v1/orders/{id}/refund/partial
func (h *OrderHandler) PartialRefundOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req PartialRefundRequest
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

	items := make([]service.PartialRefundItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.PartialRefundItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Reason:    item.Reason,
		}
	}

	result, err := h.refunds.RequestPartialRefund(r.Context(), id.String(), actorFromContext(r), items)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
