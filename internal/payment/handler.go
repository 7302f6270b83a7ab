package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi"

	errors "github.com/frahmantamala/smm-storefront/internal"
	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/smm-storefront/internal/core/datamodel/transaction"
	"github.com/frahmantamala/smm-storefront/internal/ledger"
	"github.com/frahmantamala/smm-storefront/internal/transport"
)

const maxRequestBody = 64 << 10

type ServiceAPI interface {
	CreatePayment(ctx context.Context, req *paymentgatewaytypes.PaymentRequest, providerID paymentgatewaytypes.ProviderID) (*paymentgatewaytypes.PaymentResponse, error)
	GetPayment(ctx context.Context, orderID string) (*transaction.Record, error)
	PollStatus(ctx context.Context, orderID string) (*transaction.Record, error)
}

// SchemaValidator checks a request body against a named API schema.
type SchemaValidator interface {
	ValidateSchema(name string, body []byte) error
}

type Handler struct {
	*transport.BaseHandler
	Service   ServiceAPI
	Validator SchemaValidator
	Reports   ledger.ReportAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, validator SchemaValidator, reports ledger.ReportAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		Validator:   validator,
		Reports:     reports,
	}
}

// CreatePayment handles POST /api/v1/payments. Authentication is optional;
// anonymous callers check out as guests.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	if h.Validator != nil {
		if err := h.Validator.ValidateSchema("CreatePaymentRequest", body); err != nil {
			h.HandleError(w, err)
			return
		}
	}

	var req CreatePaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}
	if err := req.Validate(); err != nil {
		h.HandleError(w, err)
		return
	}

	paymentReq := req.ToPaymentRequest(errors.UserIDFromContext(r.Context()))
	resp, err := h.Service.CreatePayment(r.Context(), paymentReq, paymentgatewaytypes.ProviderID(req.Provider))
	if err != nil {
		h.HandleError(w, err)
		return
	}

	out := CreatePaymentResponse{
		Success:       resp.Success,
		OrderID:       paymentReq.OrderID,
		PaymentURL:    resp.PaymentURL,
		TransactionID: resp.TransactionID,
		Error:         resp.Error,
	}

	switch {
	case resp.Success:
		h.WriteJSON(w, http.StatusOK, out)
	case resp.Failure == paymentgatewaytypes.FailureTransport:
		h.WriteJSON(w, http.StatusBadGateway, out)
	default:
		h.WriteJSON(w, http.StatusPaymentRequired, out)
	}
}

// GetPayment handles GET /api/v1/payments/{order_id}.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.GetPayment(r.Context(), chi.URLParam(r, "order_id"))
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToStatusResponse(rec))
}

// RefreshPayment handles POST /api/v1/payments/{order_id}/refresh.
func (h *Handler) RefreshPayment(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.PollStatus(r.Context(), chi.URLParam(r, "order_id"))
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToStatusResponse(rec))
}

// GetStats handles GET /api/v1/admin/payments/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if errors.UserIDFromContext(r.Context()) == "" {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	stats, err := h.Reports.Stats(r.Context())
	if err != nil {
		h.HandleError(w, errors.NewInternalError("failed to load payment stats", err))
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}
