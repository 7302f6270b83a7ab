package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/smm-storefront/api"
	"github.com/frahmantamala/smm-storefront/internal/account"
	"github.com/frahmantamala/smm-storefront/internal/metrics"
	"github.com/frahmantamala/smm-storefront/internal/payment"
	"github.com/frahmantamala/smm-storefront/internal/transport"
	"github.com/frahmantamala/smm-storefront/internal/transport/middleware"
	"github.com/frahmantamala/smm-storefront/internal/transport/openapi"
	"github.com/frahmantamala/smm-storefront/internal/transport/rest"
	"github.com/frahmantamala/smm-storefront/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server for payment creation, gateway callbacks and account balance`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func startHTTPServer() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.LoggerWrapper()

	var m *metrics.Metrics
	if config.Observability.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(registry)
	}

	deps, err := newApp(config, log, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	router, err := setupRoutes(deps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", config.Server.Port)
	log.Info("starting HTTP server", "address", addr, "providers", deps.Registry.IDs(), "default_provider", deps.Registry.Default())

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: config.Server.ReadHeaderTimeout,
		ReadTimeout:       config.Server.ReadTimeout,
		WriteTimeout:      config.Server.WriteTimeout,
		IdleTimeout:       config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
		deps.EventBus.Wait()
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed to start", "error", err)
			deps.Close()
			os.Exit(1)
		}
	}

	log.Info("server stopped")
}

func setupRoutes(deps *app) (*chi.Mux, error) {
	validator, err := openapi.NewValidator(api.OpenAPISpec)
	if err != nil {
		return nil, err
	}

	base := transport.NewBaseHandler(deps.Logger)
	verifier := middleware.NewTokenVerifier(deps.Config.Security.JWTSecret, deps.Config.Security.JWTIssuer)

	handlers := rest.Handlers{
		Payment:       payment.NewHandler(base, deps.Payments, validator, deps.Reports),
		Webhook:       payment.NewWebhookHandler(base, deps.Registry, deps.Reconciler, deps.Observer),
		Account:       account.NewHandler(base, deps.Accounts),
		Authenticator: middleware.NewAuthenticator(base, verifier),
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, deps.DB.DB, handlers, rest.RouterOptions{
		AllowedOrigins: deps.Config.Server.Origins(),
		Metrics:        deps.Metrics,
		MetricsPath:    deps.Config.Observability.Metrics.Path,
	}, deps.Logger)
	return router, nil
}
