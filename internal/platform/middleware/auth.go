package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"idregistry/pkg/domain"
	dErrors "idregistry/pkg/domain-errors"
	"idregistry/pkg/platform/httputil"
	"idregistry/pkg/requestcontext"
)

// JWTValidator defines the interface for validating bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims are the claims the registry needs from a validated token.
type JWTClaims struct {
	Principal domain.Principal
	JTI       string
}

// RequirePrincipal authenticates the bearer token and stores the caller
// principal in the request context.
func RequirePrincipal(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Invalid or expired token"))
				return
			}

			ctx = requestcontext.WithPrincipal(ctx, claims.Principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
