package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oguzkaracar/coursecommerce/internal/service"
	"github.com/oguzkaracar/coursecommerce/pkg/health"
	"github.com/oguzkaracar/coursecommerce/pkg/httputil"
	"github.com/oguzkaracar/coursecommerce/pkg/middleware"
)

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	Orders       *service.OrderService
	Refunds      *service.RefundService
	Discounts    *service.DiscountService
	Entitlements *service.EntitlementService
	Health       *health.Handler
	Validate     middleware.TokenValidator
	CORS         middleware.CORSConfig
	Logger       *slog.Logger
}

// NewRouter creates a chi router with all routes registered. Coupon
// validation and health endpoints are public; everything else under
// /api/v1 requires a bearer token, and /api/v1/admin additionally requires
// the admin role.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORS(deps.CORS))
	r.Use(middleware.RequestLogging(deps.Logger))
	r.Use(middleware.PrometheusMetrics("coursecommerce"))
	r.Use(middleware.RequestLogger(deps.Logger))

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	orderHandler := NewOrderHandler(deps.Orders, deps.Refunds, deps.Logger)
	discountHandler := NewDiscountHandler(deps.Discounts, deps.Logger)
	entitlementHandler := NewEntitlementHandler(deps.Entitlements, deps.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Coupon validation is called from the storefront before login.
		r.Post("/discounts/validate", discountHandler.ValidateDiscount)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.Validate))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", orderHandler.ListOrders)
				r.Get("/{id}", orderHandler.GetOrder)
				r.Post("/{id}/refund", orderHandler.RefundOrder)
				r.Post("/{id}/refund/partial", orderHandler.PartialRefundOrder)
			})

			r.Route("/entitlements", func(r chi.Router) {
				r.Get("/", entitlementHandler.ListEntitlements)
				r.Get("/{resourceID}", entitlementHandler.CheckEntitlement)
			})

			r.Route("/admin/discounts", func(r chi.Router) {
				r.Use(middleware.RequireRole("admin"))

				r.Post("/", discountHandler.CreateDiscount)
				r.Get("/", discountHandler.ListDiscounts)
				r.Get("/{id}", discountHandler.GetDiscount)
				r.Put("/{id}", discountHandler.UpdateDiscount)
				r.Delete("/{id}", discountHandler.DeleteDiscount)
			})
		})
	})

	return r
}

// ContentTypeJSON rejects write requests whose body is not JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
