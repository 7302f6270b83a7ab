package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/frahmantamala/smm-storefront/internal"
	"github.com/frahmantamala/smm-storefront/internal/transport"
	"github.com/frahmantamala/smm-storefront/pkg/logger"
)

// Claims are the access token claims issued by the auth provider. The
// subject is the user id.
type Claims struct {
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Grants is the permission list with the role folded in, so "admin" can be
// required like any other permission.
func (c *Claims) Grants() []string {
	grants := append([]string(nil), c.Permissions...)
	if c.Role != "" {
		grants = append(grants, c.Role)
	}
	return grants
}

// TokenVerifier checks HS256 access tokens. It never issues them.
type TokenVerifier struct {
	secret []byte
	issuer string
}

func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// Authenticator puts the verified user id on the request context.
type Authenticator struct {
	*transport.BaseHandler
	verifier *TokenVerifier
}

func NewAuthenticator(baseHandler *transport.BaseHandler, verifier *TokenVerifier) *Authenticator {
	return &Authenticator{BaseHandler: baseHandler, verifier: verifier}
}

// Optional lets anonymous requests through. A token that is present must
// still be valid.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return a.handle(next, false)
}

// Required rejects requests without a valid token.
func (a *Authenticator) Required(next http.Handler) http.Handler {
	return a.handle(next, true)
}

func (a *Authenticator) handle(next http.Handler, required bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(a.ExtractTokenFromHeader(r))
		if token == "" {
			if required {
				a.HandleError(w, apperrors.NewUnauthorizedError("missing authorization token", apperrors.ErrCodeInvalidToken))
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.verifier.Verify(token)
		if err != nil {
			a.Logger.Warn("token validation failed", "error", err, "path", r.URL.Path, "security_event", true)
			a.HandleError(w, err)
			return
		}

		ctx := apperrors.ContextWithUserID(r.Context(), claims.Subject)
		ctx = apperrors.ContextWithPermissions(ctx, claims.Grants())
		ctx = logger.With(ctx, "user_id", claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
