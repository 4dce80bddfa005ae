package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/benvon/taskpulse/internal/models"
	"github.com/benvon/taskpulse/internal/request"
)

// TokenVerifier validates a bearer token and returns its claims
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.TokenClaims, error)
}

// UserResolver maps verified claims to a local user, creating it on first sight
type UserResolver interface {
	FindOrCreateFromClaims(ctx context.Context, claims *models.TokenClaims) (*models.User, error)
}

// UserFromContext extracts the user from the request context
func UserFromContext(r *http.Request) *models.User {
	return request.UserFromContext(r)
}

// Auth validates the bearer token and attaches the matching user to the request
func Auth(verifier TokenVerifier, users UserResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeErrorResponse(w, r, http.StatusUnauthorized, "Missing Authorization header")
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeErrorResponse(w, r, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			ctx := r.Context()
			claims, err := verifier.Verify(ctx, strings.TrimSpace(token))
			if err != nil {
				logger.Info("token_verification_failed",
					zap.Error(err),
					zap.String("request_id", request.RequestID(ctx)),
				)
				writeErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			user, err := users.FindOrCreateFromClaims(ctx, claims)
			if err != nil {
				logger.Error("failed_to_resolve_user",
					zap.Error(err),
					zap.String("request_id", request.RequestID(ctx)),
				)
				writeErrorResponse(w, r, http.StatusInternalServerError, "Failed to load user")
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithUser(ctx, user)))
		})
	}
}

// LocalUserSubject is the provider subject of the single user served when
// token verification is disabled
const LocalUserSubject = "local"

// LocalUser attaches one fixed local user to every request. It stands in for
// Auth when no identity provider is configured.
func LocalUser(users UserResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	claims := &models.TokenClaims{Subject: LocalUserSubject, Email: "local@taskpulse.invalid", Name: "Local User"}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			user, err := users.FindOrCreateFromClaims(ctx, claims)
			if err != nil {
				logger.Error("failed_to_resolve_local_user",
					zap.Error(err),
					zap.String("request_id", request.RequestID(ctx)),
				)
				writeErrorResponse(w, r, http.StatusInternalServerError, "Failed to load user")
				return
			}
			next.ServeHTTP(w, r.WithContext(request.WithUser(ctx, user)))
		})
	}
}
