package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Record is one payment attempt. OrderID is the join key used by callbacks.
type Record struct {
	ID              int64           `gorm:"primaryKey"`
	OrderID         string          `gorm:"column:order_id;not null;uniqueIndex"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency        string          `gorm:"column:currency;not null"`
	ChargedAmount   decimal.Decimal `gorm:"column:charged_amount;type:numeric(14,2)"`
	ChargedCurrency string          `gorm:"column:charged_currency"`
	Description     string          `gorm:"column:description"`
	CustomerEmail   string          `gorm:"column:customer_email"`
	CustomerName    string          `gorm:"column:customer_name"`
	UserID          *string         `gorm:"column:user_id;index"`
	Provider        string          `gorm:"column:provider;not null"`
	Status          string          `gorm:"column:status;not null;index"`
	TransactionID   *string         `gorm:"column:transaction_id"`
	Credited        bool            `gorm:"column:credited;not null"`
	FailureReason   *string         `gorm:"column:failure_reason"`
	CreatedAt       time.Time       `gorm:"column:created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at"`
	CompletedAt     *time.Time      `gorm:"column:completed_at"`
}

func (Record) TableName() string {
	return "payment_transactions"
}

func (r *Record) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}
