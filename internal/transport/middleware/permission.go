package middleware

import (
	"net/http"

	apperrors "github.com/frahmantamala/smm-storefront/internal"
	"github.com/frahmantamala/smm-storefront/internal/transport"
)

const (
	PermissionAdmin            = "admin"
	PermissionViewPaymentStats = "view_payment_stats"
)

// RequirePermissions allows the request when the caller holds any of the
// given permissions. It must run after Authenticator.Required.
func RequirePermissions(base *transport.BaseHandler, permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := apperrors.UserIDFromContext(r.Context())
			if userID == "" {
				base.HandleError(w, apperrors.NewUnauthorizedError("authentication required", apperrors.ErrCodeInvalidToken))
				return
			}

			granted := apperrors.PermissionsFromContext(r.Context())
			if !hasAnyPermission(granted, permissions) {
				base.Logger.Warn("access denied: insufficient permissions",
					"user_id", userID,
					"required_permissions", permissions,
					"user_permissions", granted)
				base.HandleError(w, apperrors.NewForbiddenError("insufficient permissions", apperrors.ErrCodeForbidden))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasAnyPermission(granted, required []string) bool {
	for _, want := range required {
		for _, have := range granted {
			if have == want {
				return true
			}
		}
	}
	return false
}
