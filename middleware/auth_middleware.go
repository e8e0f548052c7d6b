package middleware

import (
	"context"
	"net/http"

	"github.com/upb/movie-auth-gateway/auth"
	"github.com/upb/movie-auth-gateway/utils"
	"go.uber.org/zap"
)

// unauthorizedMessage is the only body a rejected request gets, whatever the reason
const unauthorizedMessage = "Missing or invalid authorization"

// Authenticator resolves an Authorization header into an outcome
type Authenticator interface {
	Authenticate(ctx context.Context, authorizationHeader string) auth.Outcome
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	authenticator Authenticator
	logger        *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authenticator Authenticator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		logger:        logger,
	}
}

// RequireAuth admits a request only when its bearer token is accepted by the
// authority of its scheme. Every rejection is a 401 with the same body; the reason
// is logged.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		outcome := m.authenticator.Authenticate(ctx, r.Header.Get("Authorization"))
		if !outcome.Accepted {
			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("scheme", outcome.Scheme.String()),
				zap.String("reason", string(outcome.Reason)),
			}
			if outcome.Err != nil {
				fields = append(fields, zap.Error(outcome.Err))
			}
			if outcome.Reason == auth.ReasonAuthorityUnreachable {
				m.logger.Error("authentication failed", fields...)
			} else {
				m.logger.Warn("authentication failed", fields...)
			}

			_ = utils.WriteUnauthorized(w, unauthorizedMessage)
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("scheme", outcome.Scheme.String()),
			zap.String("sub", outcome.Identity.Subject))

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, outcome.Identity)))
	})
}
