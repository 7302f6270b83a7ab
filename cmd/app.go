package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/smm-storefront/internal"
	"github.com/frahmantamala/smm-storefront/internal/account"
	accountPostgres "github.com/frahmantamala/smm-storefront/internal/account/postgres"
	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/smm-storefront/internal/core/events"
	"github.com/frahmantamala/smm-storefront/internal/ledger"
	ledgerPostgres "github.com/frahmantamala/smm-storefront/internal/ledger/postgres"
	"github.com/frahmantamala/smm-storefront/internal/metrics"
	"github.com/frahmantamala/smm-storefront/internal/payment"
	"github.com/frahmantamala/smm-storefront/internal/paymentgateway"
)

// app is the wiring shared by the server and the reconcile command.
type app struct {
	Config     *internal.Config
	DB         *sqlx.DB
	Gorm       *gorm.DB
	Logger     *slog.Logger
	EventBus   *events.EventBus
	Metrics    *metrics.Metrics
	Observer   payment.Observer
	Registry   *payment.Registry
	Ledger     ledger.RepositoryAPI
	Reports    ledger.ReportAPI
	Reconciler *payment.Reconciler
	Payments   *payment.Service
	Accounts   *account.Service
}

func newApp(cfg *internal.Config, logger *slog.Logger, m *metrics.Metrics) (*app, error) {
	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	registry, err := newRegistry(cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	eventBus := events.NewEventBus(logger)
	var observer payment.Observer
	if m != nil {
		m.RegisterEventHandlers(eventBus)
		observer = m
	}

	ledgerRepo := ledgerPostgres.NewLedgerRepository(gormDB)
	reconciler := payment.NewReconciler(ledgerRepo, eventBus, logger)
	paymentService := payment.NewService(payment.Config{
		SuccessURL: cfg.Payment.SuccessURL,
		ErrorURL:   cfg.Payment.ErrorURL,
	}, registry, ledgerRepo, reconciler, observer, logger)

	return &app{
		Config:     cfg,
		DB:         db,
		Gorm:       gormDB,
		Logger:     logger,
		EventBus:   eventBus,
		Metrics:    m,
		Observer:   observer,
		Registry:   registry,
		Ledger:     ledgerRepo,
		Reports:    ledgerPostgres.NewReportRepository(db),
		Reconciler: reconciler,
		Payments:   paymentService,
		Accounts:   account.NewService(accountPostgres.NewAccountRepository(gormDB), logger),
	}, nil
}

func (a *app) Close() {
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("database close error", "error", err)
	}
}

// newRegistry builds the enabled gateway clients.
func newRegistry(cfg *internal.Config, logger *slog.Logger) (*payment.Registry, error) {
	pc := cfg.Payment
	var providers []paymentgateway.Provider

	if pc.Epoint.Enabled {
		converter, err := paymentgateway.NewCurrencyConverter(pc.Epoint.Currency, pc.ExchangeRates)
		if err != nil {
			return nil, fmt.Errorf("invalid exchange rates: %w", err)
		}
		providers = append(providers, paymentgateway.NewEpoint(paymentgateway.EpointConfig{
			APIURL:                 pc.Epoint.APIURL,
			PublicKey:              pc.Epoint.PublicKey,
			PrivateKey:             pc.Epoint.PrivateKey,
			Currency:               pc.Epoint.Currency,
			Language:               pc.Epoint.Language,
			CallbackURL:            callbackURL(pc.CallbackBaseURL, paymentgatewaytypes.ProviderEpoint),
			RequireSignedCallbacks: pc.Epoint.RequireSignedCallbacks,
			Timeout:                pc.RequestTimeout,
		}, converter, logger))
	}

	if pc.Payriff.Enabled {
		providers = append(providers, paymentgateway.NewPayriff(paymentgateway.PayriffConfig{
			APIURL:        pc.Payriff.APIURL,
			MerchantID:    pc.Payriff.MerchantID,
			SecretKey:     pc.Payriff.SecretKey,
			Language:      pc.Payriff.Language,
			CallbackURL:   callbackURL(pc.CallbackBaseURL, paymentgatewaytypes.ProviderPayriff),
			CallbackToken: pc.Payriff.CallbackToken,
			Timeout:       pc.RequestTimeout,
		}, logger))
	}

	registry, err := payment.NewRegistry(paymentgatewaytypes.ProviderID(pc.DefaultProvider), providers...)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider registry: %w", err)
	}
	return registry, nil
}

func callbackURL(base string, provider paymentgatewaytypes.ProviderID) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/api/v1/payments/callback/" + string(provider)
}

// initDB opens the pgx pool shared by sqlx and gorm.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
