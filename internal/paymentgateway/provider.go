package paymentgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
)

// Provider is one payment gateway. CreatePayment reports business rejections
// and unreachable gateways through PaymentResponse.Failure; the error return
// is reserved for misconfiguration.
type Provider interface {
	ID() paymentgatewaytypes.ProviderID
	CreatePayment(ctx context.Context, req *paymentgatewaytypes.PaymentRequest) (*paymentgatewaytypes.PaymentResponse, error)
	CheckStatus(ctx context.Context, transactionID string) (paymentgatewaytypes.PaymentStatus, error)
	VerifyCallback(ctx context.Context, cb *paymentgatewaytypes.Callback) bool
}

// CallbackDecoder is implemented by gateways whose callbacks carry an encoded
// payload that has to be unpacked into the plain callback fields.
type CallbackDecoder interface {
	DecodeCallback(cb *paymentgatewaytypes.Callback) error
}

const maxResponseBody = 1 << 20

// doJSON sends req and decodes a JSON body into out. The status code is
// returned even when decoding fails so callers can tell an HTTP error page
// from a structured gateway rejection.
func doJSON(client *http.Client, req *http.Request, out interface{}) (int, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}
