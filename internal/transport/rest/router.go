package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"

	"github.com/frahmantamala/smm-storefront/api"
	"github.com/frahmantamala/smm-storefront/internal/account"
	"github.com/frahmantamala/smm-storefront/internal/metrics"
	"github.com/frahmantamala/smm-storefront/internal/payment"
	"github.com/frahmantamala/smm-storefront/internal/transport"
	"github.com/frahmantamala/smm-storefront/internal/transport/middleware"
	"github.com/frahmantamala/smm-storefront/internal/transport/swagger"
)

// Handlers groups everything the router mounts. Nil handlers are skipped.
type Handlers struct {
	Payment       *payment.Handler
	Webhook       *payment.WebhookHandler
	Account       *account.Handler
	Authenticator *middleware.Authenticator
}

type RouterOptions struct {
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	MetricsPath    string
}

func RegisterAllRoutes(router *chi.Mux, db Pinger, handlers Handlers, opts RouterOptions, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)
	base := transport.NewBaseHandler(logger)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Apply global middleware
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Trace-ID"},
		ExposedHeaders: []string{"X-Trace-ID"},
		MaxAge:         300,
	}))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	if opts.Metrics != nil {
		router.Use(middleware.HTTPMetrics(opts.Metrics.HTTPLatency))
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, opts.Metrics.Handler())
	}

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.OpenAPISpec)
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Gateways call these without a user token.
		if handlers.Webhook != nil {
			r.Post("/payments/callback", handlers.Webhook.HandleCallback)
			r.Post("/payments/callback/{provider}", handlers.Webhook.HandleCallback)
		}

		auth := handlers.Authenticator
		if auth == nil {
			return
		}

		if handlers.Payment != nil {
			r.Group(func(gr chi.Router) {
				gr.Use(auth.Optional)
				gr.Post("/payments", handlers.Payment.CreatePayment)
				gr.Get("/payments/{order_id}", handlers.Payment.GetPayment)
				gr.Post("/payments/{order_id}/refresh", handlers.Payment.RefreshPayment)
			})
		}

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Required)

			if handlers.Account != nil {
				pr.Get("/accounts/me", handlers.Account.GetMe)
			}
			if handlers.Payment != nil {
				pr.With(middleware.RequirePermissions(base, middleware.PermissionAdmin, middleware.PermissionViewPaymentStats)).
					Get("/admin/payments/stats", handlers.Payment.GetStats)
			}
		})
	})
}
