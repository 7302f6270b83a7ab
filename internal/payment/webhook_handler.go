package payment

import (
	"net/http"

	"github.com/go-chi/chi"

	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/smm-storefront/internal/transport"
)

const callbackTokenHeader = "X-Callback-Token"

// WebhookHandler answers gateway callbacks. Gateways retry on anything but
// 2xx, so only storage failures produce a 5xx.
type WebhookHandler struct {
	*transport.BaseHandler
	registry   *Registry
	reconciler *Reconciler
	observer   Observer
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, registry *Registry, reconciler *Reconciler, observer Observer) *WebhookHandler {
	if observer == nil {
		observer = noopObserver{}
	}
	return &WebhookHandler{
		BaseHandler: baseHandler,
		registry:    registry,
		reconciler:  reconciler,
		observer:    observer,
	}
}

// HandleCallback handles POST /api/v1/payments/callback and
// /api/v1/payments/callback/{provider}.
func (h *WebhookHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	providerID := paymentgatewaytypes.ProviderID(chi.URLParam(r, "provider"))
	provider, err := h.registry.Resolve(providerID)
	if err != nil {
		h.Logger.Warn("callback for unknown provider", "provider", providerID)
		h.WriteText(w, http.StatusNotFound, "unknown provider")
		return
	}
	id := string(provider.ID())

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		h.Logger.Warn("malformed callback body", "provider", id, "error", err)
		h.observer.ObserveCallback(id, string(ResultIgnored))
		h.WriteText(w, http.StatusOK, "ignored")
		return
	}

	cb := &paymentgatewaytypes.Callback{
		Status:        r.FormValue("status"),
		OrderID:       r.FormValue("order_id"),
		Amount:        r.FormValue("amount"),
		TransactionID: r.FormValue("transaction_id"),
		Data:          r.FormValue("data"),
		Signature:     r.FormValue("signature"),
		Token:         r.Header.Get(callbackTokenHeader),
	}
	if cb.Token == "" {
		cb.Token = r.URL.Query().Get("token")
	}

	h.Logger.Info("received payment callback",
		"provider", id,
		"order_id", cb.OrderID,
		"status", cb.Status,
		"transaction_id", cb.TransactionID)

	result, err := h.reconciler.HandleCallback(r.Context(), provider, cb)
	if err != nil {
		h.Logger.Error("failed to process payment callback", "provider", id, "order_id", cb.OrderID, "error", err)
		h.observer.ObserveCallback(id, "error")
		h.WriteText(w, http.StatusInternalServerError, "retry")
		return
	}
	h.observer.ObserveCallback(id, string(result))

	switch result {
	case ResultNotFound:
		h.WriteText(w, http.StatusNotFound, "order not found")
	case ResultApplied, ResultDuplicate:
		h.WriteText(w, http.StatusOK, "OK")
	default:
		h.WriteText(w, http.StatusOK, string(result))
	}
}
