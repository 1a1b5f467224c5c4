package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oguzkaracar/coursecommerce/internal/service"
	"github.com/oguzkaracar/coursecommerce/pkg/httputil"
	"github.com/oguzkaracar/coursecommerce/pkg/middleware"
)

// EntitlementHandler handles HTTP requests for course access queries.
type EntitlementHandler struct {
	service *service.EntitlementService
	logger  *slog.Logger
}

// NewEntitlementHandler creates a new entitlement HTTP handler.
func NewEntitlementHandler(svc *service.EntitlementService, logger *slog.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		service: svc,
		logger:  logger,
	}
}

// ListEntitlements handles GET /api/v1/entitlements
func (h *EntitlementHandler) ListEntitlements(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	entitlements, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: entitlements})
}

// CheckEntitlement handles GET /api/v1/entitlements/{resourceID}
func (h *EntitlementHandler) CheckEntitlement(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	resourceID := chi.URLParam(r, "resourceID")

	has, err := h.service.Has(r.Context(), userID, resourceID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"resource_id": resourceID,
		"entitled":    has,
	}})
}
