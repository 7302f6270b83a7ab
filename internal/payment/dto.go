package payment

import (
	"strings"
	"time"

	errors "github.com/frahmantamala/smm-storefront/internal"
	"github.com/frahmantamala/smm-storefront/internal/core/common/validation"
	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/smm-storefront/internal/core/datamodel/transaction"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const orderIDPrefix = "balance-"

// CreatePaymentRequest is the storefront's top-up request body.
type CreatePaymentRequest struct {
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Provider      string `json:"provider,omitempty"`
	OrderID       string `json:"order_id,omitempty"`
	Description   string `json:"description,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
	SuccessURL    string `json:"success_url,omitempty"`
	ErrorURL      string `json:"error_url,omitempty"`
}

func (r *CreatePaymentRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("amount", r.Amount).Required().Custom(func(value interface{}) *errors.AppError {
		if _, err := decimal.NewFromString(r.Amount); r.Amount != "" && err != nil {
			return errors.NewValidationFieldError("amount", "amount must be a decimal number", errors.ErrCodeInvalidAmount)
		}
		return nil
	})
	validator.Field("currency", r.Currency).Required()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// ToPaymentRequest builds the gateway-neutral request. An order id is
// generated when the client did not send one.
func (r *CreatePaymentRequest) ToPaymentRequest(userID string) *paymentgatewaytypes.PaymentRequest {
	amount, _ := decimal.NewFromString(r.Amount)

	orderID := r.OrderID
	if orderID == "" {
		orderID = orderIDPrefix + uuid.NewString()
	}

	description := r.Description
	if description == "" {
		description = "Balance top-up"
	}

	req := &paymentgatewaytypes.PaymentRequest{
		Amount:        amount,
		Currency:      strings.ToUpper(r.Currency),
		OrderID:       orderID,
		Description:   description,
		CustomerEmail: r.CustomerEmail,
		CustomerName:  r.CustomerName,
		SuccessURL:    r.SuccessURL,
		ErrorURL:      r.ErrorURL,
	}
	if userID != "" {
		req.UserID = &userID
	}
	return req
}

type CreatePaymentResponse struct {
	Success       bool   `json:"success"`
	OrderID       string `json:"order_id,omitempty"`
	PaymentURL    string `json:"payment_url,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

type PaymentStatusResponse struct {
	OrderID         string     `json:"order_id"`
	Provider        string     `json:"provider"`
	Status          string     `json:"status"`
	Amount          string     `json:"amount"`
	Currency        string     `json:"currency"`
	ChargedAmount   string     `json:"charged_amount,omitempty"`
	ChargedCurrency string     `json:"charged_currency,omitempty"`
	TransactionID   string     `json:"transaction_id,omitempty"`
	Credited        bool       `json:"credited"`
	FailureReason   string     `json:"failure_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

func ToStatusResponse(rec *transaction.Record) PaymentStatusResponse {
	resp := PaymentStatusResponse{
		OrderID:         rec.OrderID,
		Provider:        rec.Provider,
		Status:          rec.Status,
		Amount:          rec.Amount.StringFixed(2),
		Currency:        rec.Currency,
		ChargedCurrency: rec.ChargedCurrency,
		Credited:        rec.Credited,
		CreatedAt:       rec.CreatedAt,
		CompletedAt:     rec.CompletedAt,
	}
	if rec.ChargedCurrency != "" {
		resp.ChargedAmount = rec.ChargedAmount.StringFixed(2)
	}
	if rec.TransactionID != nil {
		resp.TransactionID = *rec.TransactionID
	}
	if rec.FailureReason != nil {
		resp.FailureReason = *rec.FailureReason
	}
	return resp
}
