package paymentgateway

import (
	"context"
	"encoding/base64"
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

type EpointConfig struct {
	APIURL                 string
	PublicKey              string
	PrivateKey             string
	Currency               string
	Language               string
	CallbackURL            string
	RequireSignedCallbacks bool
	Timeout                time.Duration
}

// Epoint settles every payment in a single fixed currency, so amounts are
// converted before the request is signed.
type Epoint struct {
	cfg       EpointConfig
	converter *CurrencyConverter
	client    *http.Client
	logger    *slog.Logger
}

type epointPayload struct {
	PublicKey          string `json:"public_key"`
	Amount             string `json:"amount"`
	Currency           string `json:"currency"`
	Description        string `json:"description"`
	OrderID            string `json:"order_id"`
	Language           string `json:"language"`
	SuccessRedirectURL string `json:"success_redirect_url"`
	ErrorRedirectURL   string `json:"error_redirect_url"`
	CallbackURL        string `json:"callback_url,omitempty"`
}

type epointStatusPayload struct {
	PublicKey   string `json:"public_key"`
	Transaction string `json:"transaction"`
}

type epointResponse struct {
	Status      string      `json:"status"`
	RedirectURL string      `json:"redirect_url"`
	Transaction interface{} `json:"transaction"`
	Message     string      `json:"message"`
}

// epointResult is the JSON carried in the data field of a signed callback.
type epointResult struct {
	OrderID     string      `json:"order_id"`
	Status      string      `json:"status"`
	Transaction interface{} `json:"transaction"`
	Amount      interface{} `json:"amount"`
	Message     string      `json:"message"`
}

func NewEpoint(cfg EpointConfig, converter *CurrencyConverter, logger *slog.Logger) *Epoint {
	if cfg.Currency == "" && converter != nil {
		cfg.Currency = converter.Settlement()
	}
	if cfg.Currency == "" {
		cfg.Currency = "AZN"
	}
	if cfg.Language == "" {
		cfg.Language = "az"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	return &Epoint{
		cfg:       cfg,
		converter: converter,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger.With("provider", paymentgatewaytypes.ProviderEpoint),
	}
}

func (e *Epoint) ID() paymentgatewaytypes.ProviderID {
	return paymentgatewaytypes.ProviderEpoint
}

func (e *Epoint) CreatePayment(ctx context.Context, req *paymentgatewaytypes.PaymentRequest) (*paymentgatewaytypes.PaymentResponse, error) {
	charged, err := e.converter.Convert(req.Amount, req.Currency, e.cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("epoint: %w", err)
	}

	description := req.Description
	if !strings.EqualFold(req.Currency, e.cfg.Currency) {
		description = strings.TrimSpace(fmt.Sprintf("%s (original: %s %s, charged: %s %s)",
			req.Description, req.Amount.StringFixed(2), strings.ToUpper(req.Currency),
			charged.StringFixed(2), e.cfg.Currency))
	}

	payload, err := json.Marshal(epointPayload{
		PublicKey:          e.cfg.PublicKey,
		Amount:             charged.StringFixed(2),
		Currency:           e.cfg.Currency,
		Description:        description,
		OrderID:            req.OrderID,
		Language:           e.cfg.Language,
		SuccessRedirectURL: req.SuccessURL,
		ErrorRedirectURL:   req.ErrorURL,
		CallbackURL:        e.cfg.CallbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("epoint: failed to marshal payment request: %w", err)
	}

	e.logger.Info("initiating payment",
		"order_id", req.OrderID,
		"amount", req.Amount.StringFixed(2),
		"currency", req.Currency,
		"charged_amount", charged.StringFixed(2),
		"charged_currency", e.cfg.Currency)

	var resp epointResponse
	status, err := e.post(ctx, "/api/1/request", payload, &resp)
	if err == nil && status >= http.StatusInternalServerError {
		err = fmt.Errorf("gateway returned status %d", status)
	}
	if err != nil {
		e.logger.Error("payment request failed", "order_id", req.OrderID, "status_code", status, "error", err)
		return paymentgatewaytypes.Unreachable("payment gateway is unavailable, please try again later"), nil
	}

	if !strings.EqualFold(resp.Status, "success") || resp.RedirectURL == "" {
		message := resp.Message
		if message == "" {
			message = "payment was rejected by the gateway"
		}
		e.logger.Warn("payment rejected", "order_id", req.OrderID, "gateway_status", resp.Status, "message", resp.Message)
		return paymentgatewaytypes.Rejected(message), nil
	}

	transactionID := cast.ToString(resp.Transaction)
	e.logger.Info("payment created", "order_id", req.OrderID, "transaction_id", transactionID)

	return &paymentgatewaytypes.PaymentResponse{
		Success:         true,
		PaymentURL:      resp.RedirectURL,
		TransactionID:   transactionID,
		ChargedAmount:   charged,
		ChargedCurrency: e.cfg.Currency,
	}, nil
}

func (e *Epoint) CheckStatus(ctx context.Context, transactionID string) (paymentgatewaytypes.PaymentStatus, error) {
	if transactionID == "" {
		return paymentgatewaytypes.PaymentStatusPending, errors.New("epoint: transaction id is required")
	}

	payload, err := json.Marshal(epointStatusPayload{PublicKey: e.cfg.PublicKey, Transaction: transactionID})
	if err != nil {
		return paymentgatewaytypes.PaymentStatusPending, fmt.Errorf("epoint: failed to marshal status request: %w", err)
	}

	var resp epointResponse
	code, err := e.post(ctx, "/api/1/get-status", payload, &resp)
	if err != nil {
		return paymentgatewaytypes.PaymentStatusPending, fmt.Errorf("epoint: status check failed: %w", err)
	}
	// An error page says nothing about the payment itself.
	if code < http.StatusOK || code >= http.StatusMultipleChoices {
		e.logger.Warn("status check rejected", "transaction_id", transactionID, "status_code", code, "message", resp.Message)
		return paymentgatewaytypes.PaymentStatusPending, fmt.Errorf("epoint: status check returned status %d", code)
	}

	status := NormalizeStatus(resp.Status)
	e.logger.Debug("status checked", "transaction_id", transactionID, "gateway_status", resp.Status, "status", status)
	return status, nil
}

// VerifyCallback accepts a signed callback only when its signature matches the
// data it carries.
func (e *Epoint) VerifyCallback(ctx context.Context, cb *paymentgatewaytypes.Callback) bool {
	if cb.Signature != "" {
		if cb.Data == "" {
			return false
		}
		return VerifySignature(e.cfg.PrivateKey, cb.Data, cb.Signature)
	}

	if e.cfg.RequireSignedCallbacks {
		return false
	}

	// TODO(security): unsigned callbacks are accepted until signed result
	// notifications are enabled on the merchant account; then set
	// require_signed_callbacks and drop this branch.
	e.logger.Warn("accepting unsigned callback", "order_id", cb.OrderID, "security_event", true)
	return true
}

// ErrCallbackMismatch is returned by DecodeCallback when a plain form field
// contradicts the signed data.
var ErrCallbackMismatch = errors.New("epoint: callback fields do not match signed data")

// DecodeCallback unpacks the base64 data field into the plain callback fields
// the reconciler reads. For a signed callback the data is the only source of
// truth; for an unsigned one it only fills fields the form left empty.
func (e *Epoint) DecodeCallback(cb *paymentgatewaytypes.Callback) error {
	if cb.Data == "" {
		return nil
	}

	raw, err := base64.StdEncoding.DecodeString(cb.Data)
	if err != nil {
		return fmt.Errorf("epoint: invalid callback data: %w", err)
	}

	var result epointResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("epoint: invalid callback payload: %w", err)
	}

	signed := map[*string]string{
		&cb.OrderID:       result.OrderID,
		&cb.Status:        result.Status,
		&cb.TransactionID: cast.ToString(result.Transaction),
		&cb.Amount:        cast.ToString(result.Amount),
	}

	if cb.Signature == "" {
		for field, value := range signed {
			if *field == "" {
				*field = value
			}
		}
		return nil
	}

	for _, field := range []*string{&cb.OrderID, &cb.Status, &cb.TransactionID} {
		if *field != "" && *field != signed[field] {
			return ErrCallbackMismatch
		}
	}
	for field, value := range signed {
		*field = value
	}
	return nil
}

func (e *Epoint) post(ctx context.Context, path string, payload []byte, out interface{}) (int, error) {
	data, signature := SignPayload(e.cfg.PrivateKey, payload)

	form := url.Values{}
	form.Set("data", data)
	form.Set("signature", signature)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.APIURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	return doJSON(e.client, httpReq, out)
}
