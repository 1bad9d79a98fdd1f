// Package httpapi exposes the storefront over a chi REST router under /api.
package httpapi

import (
	"net/http"
	"time"

	"storefront-be/internal/cart"
	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"
	"storefront-be/internal/middleware"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/product"
	"storefront-be/internal/user"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxBodyBytes          = 1 << 20
)

type Handler struct {
	users    user.Service
	products product.Service
	carts    cart.Service
	orders   order.Service
	payments payment.Service
	metrics  *metrics.Registry
	started  time.Time
}

type Deps struct {
	Users    user.Service
	Products product.Service
	Carts    cart.Service
	Orders   order.Service
	Payments payment.Service
	Metrics  *metrics.Registry
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		users:    d.Users,
		products: d.Products,
		carts:    d.Carts,
		orders:   d.Orders,
		payments: d.Payments,
		metrics:  d.Metrics,
		started:  time.Now(),
	}
}

type RouterConfig struct {
	Tokens         middleware.TokenParser
	ActiveUsers    middleware.ActiveChecker
	Limiter        *middleware.RateLimiter
	CORSOrigin     string
	RequestTimeout time.Duration
}

// Router builds the full route tree. Public routes are rate limited by device
// or ip; authenticated routes are limited per user after the token check.
func (h *Handler) Router(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	limit := func(next http.Handler) http.Handler { return next }
	if cfg.Limiter != nil {
		limit = cfg.Limiter.Middleware
	}
	requireAuth := middleware.AuthMiddleware(cfg.Tokens, cfg.ActiveUsers)

	r := chi.NewRouter()
	r.Use(logger.RequestIDMiddleware)
	r.Use(middleware.LoggingMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigin))
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "not_found", "Route not found")
	})

	r.Route("/api", func(r chi.Router) {
		r.With(limit).Get("/health", h.health)

		r.Route("/auth", func(r chi.Router) {
			r.With(limit).Post("/register", h.register)
			r.With(limit).Post("/login", h.login)
			r.With(limit).Post("/anonymous", h.anonymousLogin)
			r.With(limit).Post("/admin/login", h.adminLogin)
			r.With(requireAuth, limit).Get("/me", h.me)
		})

		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Get("/products", h.listProducts)
			r.Get("/products/collection/{slug}", h.listCollectionProducts)
			r.Get("/products/{id}", h.getProduct)
			r.Get("/collections", h.listCollections)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, limit)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.getCart)
				r.Post("/add", h.addToCart)
				r.Put("/update", h.updateCartItem)
				r.Delete("/remove/{productId}", h.removeFromCart)
				r.Delete("/clear", h.clearCart)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.placeOrder)
				r.Get("/", h.listOrders)
				r.Get("/{id}", h.getOrder)
				r.Put("/{id}/cancel", h.cancelOrder)
			})

			r.Route("/payment", func(r chi.Router) {
				r.Post("/simulate", h.simulatePayment)
				r.Get("/history", h.paymentHistory)
				r.Get("/{orderId}", h.getPayment)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.AdminOnly)
				r.Get("/orders", h.adminListOrders)
				r.Get("/orders/{id}", h.adminGetOrder)
				r.Put("/orders/{id}/status", h.adminUpdateOrderStatus)
				r.Get("/products", h.adminListProducts)
				r.Get("/products/{id}", h.adminGetProduct)
				r.Post("/products", h.adminCreateProduct)
				r.Put("/products/{id}", h.adminUpdateProduct)
				r.Delete("/products/{id}", h.adminDeleteProduct)
				r.Get("/collections", h.adminListCollections)
				r.Get("/collections/{id}", h.adminGetCollection)
				r.Post("/collections", h.adminCreateCollection)
				r.Put("/collections/{id}", h.adminUpdateCollection)
				r.Delete("/collections/{id}", h.adminDeleteCollection)
			})
		})
	})

	return r
}
