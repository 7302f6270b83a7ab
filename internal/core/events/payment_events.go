package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypePaymentCompleted = "payment.completed"
	EventTypePaymentFailed    = "payment.failed"
)

type PaymentCompletedEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	Provider      string          `json:"provider"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transaction_id"`
	ProfileID     string          `json:"profile_id"`
	Credited      bool            `json:"credited"`
}

func NewPaymentCompletedEvent(orderID, provider string, amount decimal.Decimal, currency, transactionID, profileID string, credited bool) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id":       orderID,
				"provider":       provider,
				"amount":         amount.StringFixed(2),
				"currency":       currency,
				"transaction_id": transactionID,
				"profile_id":     profileID,
				"credited":       credited,
			},
		},
		OrderID:       orderID,
		Provider:      provider,
		Amount:        amount,
		Currency:      currency,
		TransactionID: transactionID,
		ProfileID:     profileID,
		Credited:      credited,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	Provider      string          `json:"provider"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	FailureReason string          `json:"failure_reason"`
}

func NewPaymentFailedEvent(orderID, provider string, amount decimal.Decimal, currency, failureReason string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id":       orderID,
				"provider":       provider,
				"amount":         amount.StringFixed(2),
				"currency":       currency,
				"failure_reason": failureReason,
			},
		},
		OrderID:       orderID,
		Provider:      provider,
		Amount:        amount,
		Currency:      currency,
		FailureReason: failureReason,
	}
}
