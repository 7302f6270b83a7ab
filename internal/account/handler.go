package account

import (
	"context"
	"net/http"

	apperrors "github.com/frahmantamala/smm-storefront/internal"
	"github.com/frahmantamala/smm-storefront/internal/transport"
)

type ServiceAPI interface {
	GetAccount(ctx context.Context, userID string) (*Account, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := apperrors.UserIDFromContext(r.Context())
	if userID == "" {
		h.HandleError(w, apperrors.NewUnauthorizedError("authentication required", apperrors.ErrCodeInvalidToken))
		return
	}

	acc, err := h.Service.GetAccount(r.Context(), userID)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, acc.ToResponse())
}
