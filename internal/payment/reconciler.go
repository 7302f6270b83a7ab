package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/smm-storefront/internal/core/datamodel/transaction"
	"github.com/frahmantamala/smm-storefront/internal/core/events"
	"github.com/frahmantamala/smm-storefront/internal/ledger"
	"github.com/frahmantamala/smm-storefront/internal/paymentgateway"
	"github.com/shopspring/decimal"
)

// Decision is what a gateway notification asks us to do with an order.
type Decision string

const (
	DecisionApproved  Decision = "approved"
	DecisionDeclined  Decision = "declined"
	DecisionCancelled Decision = "cancelled"
	DecisionUnknown   Decision = "unknown"
)

// ClassifyCallbackStatus maps the status word of an inbound callback.
func ClassifyCallbackStatus(raw string) Decision {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved", "success", "paid", "completed":
		return DecisionApproved
	case "declined", "failed", "error":
		return DecisionDeclined
	case "cancelled", "canceled":
		return DecisionCancelled
	default:
		return DecisionUnknown
	}
}

func decisionFromStatus(status paymentgatewaytypes.PaymentStatus) Decision {
	switch status {
	case paymentgatewaytypes.PaymentStatusSuccess:
		return DecisionApproved
	case paymentgatewaytypes.PaymentStatusFailed:
		return DecisionDeclined
	case paymentgatewaytypes.PaymentStatusCancelled:
		return DecisionCancelled
	default:
		return DecisionUnknown
	}
}

// Result is the outcome of reconciling one notification.
type Result string

const (
	ResultApplied    Result = "applied"
	ResultDuplicate  Result = "duplicate"
	ResultIgnored    Result = "ignored"
	ResultUnverified Result = "unverified"
	ResultNotFound   Result = "not_found"
)

// Reconciler turns gateway notifications into ledger transitions. Webhooks
// and status polls both go through it so a payment is credited at most once
// whichever path sees the outcome first.
type Reconciler struct {
	ledger   ledger.RepositoryAPI
	eventBus *events.EventBus
	logger   *slog.Logger
}

func NewReconciler(ledgerRepo ledger.RepositoryAPI, eventBus *events.EventBus, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		ledger:   ledgerRepo,
		eventBus: eventBus,
		logger:   logger,
	}
}

// HandleCallback authenticates cb and applies it. An error is returned only
// for storage failures, which the gateway should retry.
func (r *Reconciler) HandleCallback(ctx context.Context, provider paymentgateway.Provider, cb *paymentgatewaytypes.Callback) (Result, error) {
	logger := r.logger.With("provider", provider.ID())

	if !provider.VerifyCallback(ctx, cb) {
		logger.Warn("callback failed verification", "order_id", cb.OrderID, "security_event", true)
		return ResultUnverified, nil
	}

	if decoder, ok := provider.(paymentgateway.CallbackDecoder); ok {
		if err := decoder.DecodeCallback(cb); err != nil {
			if errors.Is(err, paymentgateway.ErrCallbackMismatch) {
				logger.Warn("callback fields contradict signed data", "order_id", cb.OrderID, "security_event", true)
				return ResultUnverified, nil
			}
			logger.Warn("malformed callback payload", "error", err)
			return ResultIgnored, nil
		}
	}

	if cb.OrderID == "" {
		logger.Warn("callback without order id", "status", cb.Status)
		return ResultIgnored, nil
	}
	logger = logger.With("order_id", cb.OrderID)

	rec, err := r.ledger.GetByOrderID(ctx, cb.OrderID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			logger.Warn("callback for unknown order")
			return ResultNotFound, nil
		}
		return "", fmt.Errorf("failed to load transaction: %w", err)
	}

	if rec.Provider != string(provider.ID()) {
		logger.Warn("callback provider does not match transaction", "transaction_provider", rec.Provider, "security_event", true)
		return ResultUnverified, nil
	}

	decision := ClassifyCallbackStatus(cb.Status)
	if decision == DecisionUnknown {
		logger.Info("callback status not actionable", "status", cb.Status)
		return ResultIgnored, nil
	}

	r.checkAmount(logger, rec, cb.Amount)

	return r.apply(ctx, logger, rec, decision, cb.TransactionID, cb.Status)
}

// ApplyStatus settles rec from a polled gateway status. Non-terminal
// statuses are ignored.
func (r *Reconciler) ApplyStatus(ctx context.Context, rec *transaction.Record, status paymentgatewaytypes.PaymentStatus) (Result, error) {
	decision := decisionFromStatus(status)
	if decision == DecisionUnknown {
		return ResultIgnored, nil
	}

	txID := ""
	if rec.TransactionID != nil {
		txID = *rec.TransactionID
	}
	logger := r.logger.With("provider", rec.Provider, "order_id", rec.OrderID)
	return r.apply(ctx, logger, rec, decision, txID, string(status))
}

func (r *Reconciler) apply(ctx context.Context, logger *slog.Logger, rec *transaction.Record, decision Decision, transactionID, gatewayStatus string) (Result, error) {
	if rec.IsTerminal() {
		logger.Info("transaction already settled", "status", rec.Status, "decision", decision)
		return ResultDuplicate, nil
	}

	if decision == DecisionApproved {
		settlement, err := r.ledger.CompleteAndCredit(ctx, rec.OrderID, transactionID)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return ResultNotFound, nil
			}
			logger.Error("failed to settle transaction", "error", err)
			return "", fmt.Errorf("failed to complete transaction: %w", err)
		}
		if settlement.Result == ledger.TransitionSkipped {
			logger.Info("transition skipped, transaction settled concurrently", "status", settlement.Record.Status)
			return ResultDuplicate, nil
		}

		settled := settlement.Record
		if settlement.ProfileID == "" {
			logger.Warn("transaction completed without an account to credit", "amount", settled.Amount.StringFixed(2))
		} else {
			logger.Info("transaction completed and balance credited",
				"profile_id", settlement.ProfileID,
				"amount", settled.Amount.StringFixed(2),
				"currency", settled.Currency)
		}

		r.publish(ctx, events.NewPaymentCompletedEvent(settled.OrderID, settled.Provider, settled.Amount, settled.Currency,
			transactionID, settlement.ProfileID, settled.Credited))
		return ResultApplied, nil
	}

	reason := fmt.Sprintf("%s by gateway (status %q)", decision, gatewayStatus)
	result, err := r.ledger.MarkFailed(ctx, rec.OrderID, transactionID, reason)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ResultNotFound, nil
		}
		logger.Error("failed to mark transaction failed", "error", err)
		return "", fmt.Errorf("failed to mark transaction failed: %w", err)
	}
	if result == ledger.TransitionSkipped {
		logger.Info("transition skipped, transaction settled concurrently")
		return ResultDuplicate, nil
	}

	logger.Info("transaction failed", "decision", decision)
	r.publish(ctx, events.NewPaymentFailedEvent(rec.OrderID, rec.Provider, rec.Amount, rec.Currency, reason))
	return ResultApplied, nil
}

// checkAmount logs callbacks whose amount differs from what was charged. The
// ledger amount stays authoritative.
func (r *Reconciler) checkAmount(logger *slog.Logger, rec *transaction.Record, raw string) {
	if raw == "" {
		return
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		logger.Warn("callback amount is not a number", "amount", raw)
		return
	}
	expected := rec.Amount
	if rec.ChargedCurrency != "" && !rec.ChargedAmount.IsZero() {
		expected = rec.ChargedAmount
	}
	if !amount.Equal(expected) {
		logger.Warn("callback amount differs from transaction",
			"callback_amount", amount.StringFixed(2),
			"expected_amount", expected.StringFixed(2),
			"security_event", true)
	}
}

func (r *Reconciler) publish(ctx context.Context, event events.Event) {
	if r.eventBus == nil {
		return
	}
	if err := r.eventBus.Publish(context.WithoutCancel(ctx), event); err != nil {
		r.logger.Error("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
