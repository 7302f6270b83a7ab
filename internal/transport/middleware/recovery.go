package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	apperrors "github.com/frahmantamala/smm-storefront/internal"
	"github.com/frahmantamala/smm-storefront/internal/transport"
	pkglogger "github.com/frahmantamala/smm-storefront/pkg/logger"
)

// RecoveryMiddleware turns a panic into a 500 with the AppError body. The
// panic value is logged with the request-scoped logger, never returned to the
// client.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					pkglogger.From(r.Context()).Error("panic recovered",
						"error", err,
						"method", r.Method,
						"url", r.URL.String(),
						"stack", string(debug.Stack()))

					base.WriteJSON(w, http.StatusInternalServerError, apperrors.Response{
						Error: apperrors.NewInternalError("internal server error", nil),
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
