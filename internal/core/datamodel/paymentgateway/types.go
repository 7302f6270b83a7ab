package paymentgateway

import (
	errors "github.com/frahmantamala/smm-storefront/internal"
	"github.com/frahmantamala/smm-storefront/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

var maxPaymentAmount = decimal.NewFromInt(1_000_000)

type ProviderID string

const (
	ProviderEpoint  ProviderID = "epoint"
	ProviderPayriff ProviderID = "payriff"
)

// PaymentStatus is the normalized outcome shared by every gateway.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

// FailureKind separates a gateway saying no from a gateway we could not reach.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureBusiness  FailureKind = "business"
	FailureTransport FailureKind = "transport"
)

type PaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	OrderID       string          `json:"order_id"`
	Description   string          `json:"description"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	UserID        *string         `json:"user_id,omitempty"`
	SuccessURL    string          `json:"success_url"`
	ErrorURL      string          `json:"error_url"`
}

func (r *PaymentRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("amount", r.Amount).Positive(errors.ErrCodeInvalidAmount).MaxDecimal(maxPaymentAmount, errors.ErrCodeInvalidAmount)
	validator.Field("currency", r.Currency).Required().CurrencyCode()
	validator.Field("order_id", r.OrderID).Required().MaxLength(64)
	validator.Field("description", r.Description).MaxLength(255)
	validator.Field("success_url", r.SuccessURL).Required().AbsoluteURL()
	validator.Field("error_url", r.ErrorURL).Required().AbsoluteURL()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type PaymentResponse struct {
	Success         bool            `json:"success"`
	PaymentURL      string          `json:"payment_url,omitempty"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	Error           string          `json:"error,omitempty"`
	Failure         FailureKind     `json:"-"`
	ChargedAmount   decimal.Decimal `json:"-"`
	ChargedCurrency string          `json:"-"`
}

func Rejected(message string) *PaymentResponse {
	return &PaymentResponse{Success: false, Error: message, Failure: FailureBusiness}
}

func Unreachable(message string) *PaymentResponse {
	return &PaymentResponse{Success: false, Error: message, Failure: FailureTransport}
}

// Callback is an inbound gateway notification as received on the webhook.
type Callback struct {
	Status        string
	OrderID       string
	Amount        string
	TransactionID string

	// Data and Signature are set by gateways that sign their callbacks.
	Data      string
	Signature string
	// Token is a shared secret echoed back by gateways that support one.
	Token string
}
