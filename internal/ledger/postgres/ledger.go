package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	accountpostgres "github.com/frahmantamala/smm-storefront/internal/account/postgres"
	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/smm-storefront/internal/core/datamodel/transaction"
	"github.com/frahmantamala/smm-storefront/internal/ledger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) ledger.RepositoryAPI {
	return &LedgerRepository{
		db: db,
	}
}

func (r *LedgerRepository) RecordAttempt(ctx context.Context, req *paymentgatewaytypes.PaymentRequest, provider paymentgatewaytypes.ProviderID) (*transaction.Record, error) {
	rec := &transaction.Record{
		OrderID:       req.OrderID,
		Amount:        req.Amount.Round(2),
		Currency:      strings.ToUpper(req.Currency),
		Description:   req.Description,
		CustomerEmail: strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		CustomerName:  req.CustomerName,
		UserID:        req.UserID,
		Provider:      string(provider),
		Status:        transaction.StatusPending,
	}

	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ledger.ErrDuplicateOrderID, req.OrderID)
		}
		return nil, err
	}
	return rec, nil
}

func (r *LedgerRepository) GetByOrderID(ctx context.Context, orderID string) (*transaction.Record, error) {
	return getByOrderID(r.db.WithContext(ctx), orderID)
}

func (r *LedgerRepository) AttachGatewayReference(ctx context.Context, orderID, transactionID string, chargedAmount decimal.Decimal, chargedCurrency string) error {
	return r.db.WithContext(ctx).Model(&transaction.Record{}).
		Where("order_id = ? AND status = ?", orderID, transaction.StatusPending).
		Updates(map[string]interface{}{
			"transaction_id":   transactionID,
			"charged_amount":   chargedAmount.Round(2),
			"charged_currency": chargedCurrency,
		}).Error
}

// MarkCompleted settles without crediting, for orders paid straight through
// the gateway rather than as a balance top-up.
func (r *LedgerRepository) MarkCompleted(ctx context.Context, orderID, transactionID string) (ledger.TransitionResult, error) {
	return transition(r.db.WithContext(ctx), orderID, completedUpdates(transactionID))
}

func (r *LedgerRepository) MarkFailed(ctx context.Context, orderID, transactionID, reason string) (ledger.TransitionResult, error) {
	updates := map[string]interface{}{
		"status":       transaction.StatusFailed,
		"completed_at": time.Now(),
	}
	if transactionID != "" {
		updates["transaction_id"] = transactionID
	}
	if reason != "" {
		updates["failure_reason"] = reason
	}
	return transition(r.db.WithContext(ctx), orderID, updates)
}

// CompleteAndCredit moves the record to completed and credits its owner in a
// single database transaction. Concurrent deliveries for the same order race
// on the conditional update; only the one that applies it credits.
func (r *LedgerRepository) CompleteAndCredit(ctx context.Context, orderID, transactionID string) (*ledger.Settlement, error) {
	settlement := &ledger.Settlement{Result: ledger.TransitionSkipped}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result, err := transition(tx, orderID, completedUpdates(transactionID))
		if err != nil {
			return err
		}

		rec, err := getByOrderID(tx, orderID)
		if err != nil {
			return err
		}
		settlement.Record = rec
		settlement.Result = result

		if result != ledger.TransitionApplied {
			return nil
		}

		profileID, err := accountpostgres.ResolveProfileTx(tx, rec.UserID, rec.CustomerEmail, rec.CustomerName)
		if err != nil {
			return fmt.Errorf("failed to resolve account: %w", err)
		}
		if profileID == "" {
			return nil
		}

		if err := accountpostgres.CreditTx(tx, profileID, rec.Amount); err != nil {
			return fmt.Errorf("failed to credit account: %w", err)
		}

		if err := tx.Model(&transaction.Record{}).Where("id = ?", rec.ID).
			Updates(map[string]interface{}{"credited": true, "user_id": profileID}).Error; err != nil {
			return err
		}
		rec.Credited = true
		rec.UserID = &profileID
		settlement.ProfileID = profileID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

func (r *LedgerRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*transaction.Record, error) {
	var records []*transaction.Record
	query := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", transaction.StatusPending, olderThan).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

func getByOrderID(db *gorm.DB, orderID string) (*transaction.Record, error) {
	var rec transaction.Record
	err := db.Where("order_id = ?", orderID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ledger.ErrNotFound, orderID)
		}
		return nil, err
	}
	return &rec, nil
}

func completedUpdates(transactionID string) map[string]interface{} {
	updates := map[string]interface{}{
		"status":       transaction.StatusCompleted,
		"completed_at": time.Now(),
	}
	if transactionID != "" {
		updates["transaction_id"] = transactionID
	}
	return updates
}

// transition applies updates only while the record is pending. A missing
// record is reported as ErrNotFound rather than a skip.
func transition(db *gorm.DB, orderID string, updates map[string]interface{}) (ledger.TransitionResult, error) {
	res := db.Model(&transaction.Record{}).
		Where("order_id = ? AND status = ?", orderID, transaction.StatusPending).
		Updates(updates)
	if res.Error != nil {
		return ledger.TransitionSkipped, res.Error
	}
	if res.RowsAffected == 1 {
		return ledger.TransitionApplied, nil
	}

	var count int64
	if err := db.Model(&transaction.Record{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return ledger.TransitionSkipped, err
	}
	if count == 0 {
		return ledger.TransitionSkipped, fmt.Errorf("%w: %s", ledger.ErrNotFound, orderID)
	}
	return ledger.TransitionSkipped, nil
}
