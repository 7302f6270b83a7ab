package account

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/frahmantamala/smm-storefront/internal"
	"github.com/shopspring/decimal"
)

// Service is the only place balances change outside of payment settlement.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetAccount(ctx context.Context, userID string) (*Account, error) {
	profile, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.NewNotFoundError("account not found", apperrors.ErrCodeAccountNotFound)
		}
		s.logger.Error("failed to load account", "user_id", userID, "error", err)
		return nil, apperrors.NewInternalError("failed to load account", err)
	}
	return FromDataModel(profile), nil
}

func (s *Service) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	acc, err := s.GetAccount(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Balance, nil
}

// CreditBalance creates the profile on first credit. Order fulfilment calls
// it for refunds; payment settlement credits inside the ledger transaction.
func (s *Service) CreditBalance(ctx context.Context, userID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.NewValidationError("amount must be greater than 0", apperrors.ErrCodeInvalidAmount)
	}

	if err := s.repo.Credit(ctx, userID, amount); err != nil {
		s.logger.Error("failed to credit balance", "user_id", userID, "amount", amount.StringFixed(2), "error", err)
		return apperrors.NewInternalError("failed to credit balance", err)
	}

	s.logger.Info("balance credited", "user_id", userID, "amount", amount.StringFixed(2))
	return nil
}

// DebitBalance is what order placement charges against. It never lets a
// balance go negative; the check and the decrement are one statement.
func (s *Service) DebitBalance(ctx context.Context, userID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.NewValidationError("amount must be greater than 0", apperrors.ErrCodeInvalidAmount)
	}

	err := s.repo.Debit(ctx, userID, amount)
	switch {
	case err == nil:
		s.logger.Info("balance debited", "user_id", userID, "amount", amount.StringFixed(2))
		return nil
	case errors.Is(err, ErrInsufficientBalance):
		s.logger.Warn("debit rejected", "user_id", userID, "amount", amount.StringFixed(2))
		return apperrors.NewConflictError("insufficient balance", apperrors.ErrCodeInsufficientBalance).WithCause(err)
	case errors.Is(err, ErrNotFound):
		return apperrors.NewNotFoundError("account not found", apperrors.ErrCodeAccountNotFound)
	default:
		s.logger.Error("failed to debit balance", "user_id", userID, "error", err)
		return apperrors.NewInternalError("failed to debit balance", err)
	}
}
