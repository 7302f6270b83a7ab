package payment

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/frahmantamala/smm-storefront/internal"
	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/smm-storefront/internal/core/datamodel/transaction"
	"github.com/frahmantamala/smm-storefront/internal/ledger"
	"github.com/frahmantamala/smm-storefront/internal/paymentgateway"
)

// Observer receives outcome counts. *metrics.Metrics satisfies it.
type Observer interface {
	ObservePaymentCreated(provider, outcome string)
	ObserveCallback(provider, outcome string)
}

type noopObserver struct{}

func (noopObserver) ObservePaymentCreated(string, string) {}
func (noopObserver) ObserveCallback(string, string)       {}

type Config struct {
	SuccessURL string
	ErrorURL   string
}

type Service struct {
	config     Config
	registry   *Registry
	ledger     ledger.RepositoryAPI
	reconciler *Reconciler
	observer   Observer
	logger     *slog.Logger
}

func NewService(config Config, registry *Registry, ledgerRepo ledger.RepositoryAPI, reconciler *Reconciler, observer Observer, logger *slog.Logger) *Service {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Service{
		config:     config,
		registry:   registry,
		ledger:     ledgerRepo,
		reconciler: reconciler,
		observer:   observer,
		logger:     logger,
	}
}

// CreatePayment records the attempt before calling the gateway, so a
// callback can never arrive for an order we do not know about. A rejected or
// unreachable gateway leaves the record pending.
func (s *Service) CreatePayment(ctx context.Context, req *paymentgatewaytypes.PaymentRequest, providerID paymentgatewaytypes.ProviderID) (*paymentgatewaytypes.PaymentResponse, error) {
	if req.SuccessURL == "" {
		req.SuccessURL = s.config.SuccessURL
	}
	if req.ErrorURL == "" {
		req.ErrorURL = s.config.ErrorURL
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	provider, err := s.registry.Resolve(providerID)
	if err != nil {
		return nil, apperrors.NewConfigurationError("unknown payment provider", apperrors.ErrCodeUnknownProvider).WithCause(err)
	}
	logger := s.logger.With("order_id", req.OrderID, "provider", provider.ID())

	if _, err := s.ledger.RecordAttempt(ctx, req, provider.ID()); err != nil {
		if errors.Is(err, ledger.ErrDuplicateOrderID) {
			return nil, apperrors.NewConflictError("order id already used", apperrors.ErrCodeDuplicateOrder)
		}
		logger.Error("failed to record payment attempt", "error", err)
		return nil, apperrors.NewInternalError("failed to record payment", err)
	}

	resp, err := provider.CreatePayment(ctx, req)
	if err != nil {
		logger.Error("payment provider misconfigured", "error", err)
		if _, markErr := s.ledger.MarkFailed(ctx, req.OrderID, "", err.Error()); markErr != nil {
			logger.Error("failed to mark payment failed", "error", markErr)
		}
		if errors.Is(err, paymentgateway.ErrNoExchangeRate) {
			return nil, apperrors.NewConfigurationError("currency is not supported by this provider", apperrors.ErrCodeMissingExchangeRate).WithCause(err)
		}
		return nil, apperrors.NewInternalError("payment provider misconfigured", err)
	}

	if !resp.Success {
		switch resp.Failure {
		case paymentgatewaytypes.FailureTransport:
			logger.Error("payment gateway unreachable", "error", resp.Error)
		default:
			logger.Warn("payment rejected by gateway", "error", resp.Error)
		}
		s.observer.ObservePaymentCreated(string(provider.ID()), string(resp.Failure))
		return resp, nil
	}

	if err := s.ledger.AttachGatewayReference(ctx, req.OrderID, resp.TransactionID, resp.ChargedAmount, resp.ChargedCurrency); err != nil {
		// the payment exists at the gateway; its callback still carries the order id
		logger.Error("failed to store gateway reference", "transaction_id", resp.TransactionID, "error", err)
	}

	logger.Info("payment created", "transaction_id", resp.TransactionID)
	s.observer.ObservePaymentCreated(string(provider.ID()), "success")
	return resp, nil
}

func (s *Service) CheckStatus(ctx context.Context, transactionID string, providerID paymentgatewaytypes.ProviderID) (paymentgatewaytypes.PaymentStatus, error) {
	provider, err := s.registry.Resolve(providerID)
	if err != nil {
		return paymentgatewaytypes.PaymentStatusPending, apperrors.NewConfigurationError("unknown payment provider", apperrors.ErrCodeUnknownProvider).WithCause(err)
	}
	return provider.CheckStatus(ctx, transactionID)
}

func (s *Service) VerifyCallback(ctx context.Context, cb *paymentgatewaytypes.Callback, providerID paymentgatewaytypes.ProviderID) (bool, error) {
	provider, err := s.registry.Resolve(providerID)
	if err != nil {
		return false, apperrors.NewConfigurationError("unknown payment provider", apperrors.ErrCodeUnknownProvider).WithCause(err)
	}
	return provider.VerifyCallback(ctx, cb), nil
}

func (s *Service) GetPayment(ctx context.Context, orderID string) (*transaction.Record, error) {
	rec, err := s.ledger.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("payment not found", apperrors.ErrCodeTransactionNotFound)
		}
		return nil, apperrors.NewInternalError("failed to load payment", err)
	}
	return rec, nil
}

// PollStatus asks the gateway for the outcome of a pending order and settles
// it through the same path as webhooks. The returned record reflects any
// transition that happened.
func (s *Service) PollStatus(ctx context.Context, orderID string) (*transaction.Record, error) {
	rec, err := s.GetPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if rec.IsTerminal() || rec.TransactionID == nil || *rec.TransactionID == "" {
		return rec, nil
	}

	logger := s.logger.With("order_id", orderID, "provider", rec.Provider)

	provider, err := s.registry.Resolve(paymentgatewaytypes.ProviderID(rec.Provider))
	if err != nil {
		logger.Error("transaction references a provider that is not configured")
		return nil, apperrors.NewConfigurationError("unknown payment provider", apperrors.ErrCodeUnknownProvider).WithCause(err)
	}

	status, err := provider.CheckStatus(ctx, *rec.TransactionID)
	if err != nil {
		logger.Warn("status check failed, outcome unknown", "error", err)
		return nil, apperrors.NewExternalError("payment gateway is unavailable", apperrors.ErrCodePaymentFailed).WithCause(err)
	}

	result, err := s.reconciler.ApplyStatus(ctx, rec, status)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to settle payment", err)
	}
	logger.Info("status polled", "status", status, "result", result)

	if result == ResultApplied || result == ResultDuplicate {
		return s.GetPayment(ctx, orderID)
	}
	return rec, nil
}
