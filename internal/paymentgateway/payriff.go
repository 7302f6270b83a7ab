package paymentgateway

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
	"github.com/spf13/cast"
)

const payriffSuccessCode = "00000"

type PayriffConfig struct {
	APIURL        string
	MerchantID    string
	SecretKey     string
	Language      string
	CallbackURL   string
	CallbackToken string
	Timeout       time.Duration
}

type Payriff struct {
	cfg    PayriffConfig
	token  string
	client *http.Client
	logger *slog.Logger
}

type payriffOrderRequest struct {
	Amount      json.Number       `json:"amount"`
	Language    string            `json:"language"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	CallbackURL string            `json:"callbackUrl"`
	CardSave    bool              `json:"cardSave"`
	Operation   string            `json:"operation"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type payriffResponse struct {
	Code    interface{} `json:"code"`
	Message string      `json:"message"`
	Payload struct {
		OrderID       interface{} `json:"orderId"`
		PaymentURL    string      `json:"paymentUrl"`
		TransactionID interface{} `json:"transactionId"`
		PaymentStatus string      `json:"paymentStatus"`
	} `json:"payload"`
}

func (r *payriffResponse) ok() bool {
	return cast.ToString(r.Code) == payriffSuccessCode
}

func NewPayriff(cfg PayriffConfig, logger *slog.Logger) *Payriff {
	if cfg.Language == "" {
		cfg.Language = "EN"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	return &Payriff{
		cfg:    cfg,
		token:  BearerToken(cfg.MerchantID, cfg.SecretKey),
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("provider", paymentgatewaytypes.ProviderPayriff),
	}
}

func (p *Payriff) ID() paymentgatewaytypes.ProviderID {
	return paymentgatewaytypes.ProviderPayriff
}

func (p *Payriff) CreatePayment(ctx context.Context, req *paymentgatewaytypes.PaymentRequest) (*paymentgatewaytypes.PaymentResponse, error) {
	metadata := map[string]string{
		"order_id":    req.OrderID,
		"success_url": req.SuccessURL,
		"error_url":   req.ErrorURL,
	}
	if req.UserID != nil {
		metadata["user_id"] = *req.UserID
	}
	if req.CustomerEmail != "" {
		metadata["customer_email"] = req.CustomerEmail
	}

	body, err := json.Marshal(payriffOrderRequest{
		Amount:      json.Number(req.Amount.StringFixed(2)),
		Language:    p.cfg.Language,
		Currency:    strings.ToUpper(req.Currency),
		Description: req.Description,
		CallbackURL: p.callbackURL(),
		Operation:   "PURCHASE",
		Metadata:    metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("payriff: failed to marshal payment request: %w", err)
	}

	p.logger.Info("initiating payment",
		"order_id", req.OrderID,
		"amount", req.Amount.StringFixed(2),
		"currency", req.Currency)

	var resp payriffResponse
	status, err := p.do(ctx, http.MethodPost, "/api/v3/orders", bytes.NewReader(body), &resp)
	if err == nil && status >= http.StatusInternalServerError {
		err = fmt.Errorf("gateway returned status %d", status)
	}
	if err != nil {
		p.logger.Error("payment request failed", "order_id", req.OrderID, "status_code", status, "error", err)
		return paymentgatewaytypes.Unreachable("payment gateway is unavailable, please try again later"), nil
	}

	if !resp.ok() || resp.Payload.PaymentURL == "" {
		message := resp.Message
		if message == "" {
			message = "payment was rejected by the gateway"
		}
		p.logger.Warn("payment rejected", "order_id", req.OrderID, "code", cast.ToString(resp.Code), "message", resp.Message)
		return paymentgatewaytypes.Rejected(message), nil
	}

	transactionID := cast.ToString(resp.Payload.TransactionID)
	if transactionID == "" {
		transactionID = cast.ToString(resp.Payload.OrderID)
	}
	p.logger.Info("payment created", "order_id", req.OrderID, "transaction_id", transactionID)

	return &paymentgatewaytypes.PaymentResponse{
		Success:         true,
		PaymentURL:      resp.Payload.PaymentURL,
		TransactionID:   transactionID,
		ChargedAmount:   req.Amount.Round(2),
		ChargedCurrency: strings.ToUpper(req.Currency),
	}, nil
}

func (p *Payriff) CheckStatus(ctx context.Context, transactionID string) (paymentgatewaytypes.PaymentStatus, error) {
	if transactionID == "" {
		return paymentgatewaytypes.PaymentStatusPending, errors.New("payriff: transaction id is required")
	}

	var resp payriffResponse
	status, err := p.do(ctx, http.MethodGet, "/api/v3/orders/"+url.PathEscape(transactionID), nil, &resp)
	if err != nil {
		return paymentgatewaytypes.PaymentStatusPending, fmt.Errorf("payriff: status check failed: %w", err)
	}
	if !resp.ok() || status >= http.StatusMultipleChoices {
		return paymentgatewaytypes.PaymentStatusPending, fmt.Errorf("payriff: status check returned code %s (status %d): %s",
			cast.ToString(resp.Code), status, resp.Message)
	}

	return NormalizeStatus(resp.Payload.PaymentStatus), nil
}

// VerifyCallback compares the shared callback token when one is configured.
func (p *Payriff) VerifyCallback(ctx context.Context, cb *paymentgatewaytypes.Callback) bool {
	if p.cfg.CallbackToken != "" {
		return subtle.ConstantTimeCompare([]byte(p.cfg.CallbackToken), []byte(cb.Token)) == 1
	}

	// TODO(security): configure payment.payriff.callback_token in every
	// environment and make it mandatory in config validation.
	p.logger.Warn("accepting callback without token check", "order_id", cb.OrderID, "security_event", true)
	return true
}

// callbackURL carries the shared token so the gateway echoes it back.
func (p *Payriff) callbackURL() string {
	if p.cfg.CallbackURL == "" || p.cfg.CallbackToken == "" {
		return p.cfg.CallbackURL
	}
	u, err := url.Parse(p.cfg.CallbackURL)
	if err != nil {
		return p.cfg.CallbackURL
	}
	q := u.Query()
	q.Set("token", p.cfg.CallbackToken)
	u.RawQuery = q.Encode()
	return u.String()
}

func (p *Payriff) do(ctx context.Context, method, path string, body *bytes.Reader, out interface{}) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	var httpReq *http.Request
	var err error
	if body != nil {
		httpReq, err = http.NewRequestWithContext(ctx, method, p.cfg.APIURL+path, body)
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, method, p.cfg.APIURL+path, nil)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.token)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	return doJSON(p.client, httpReq, out)
}
