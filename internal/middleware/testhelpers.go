package middleware

import (
	"context"

	"github.com/benvon/taskpulse/internal/models"
	"github.com/benvon/taskpulse/internal/request"
)

// SetUserInContext attaches user to ctx the way Auth does. Handler tests use it
// to skip token verification.
func SetUserInContext(ctx context.Context, user *models.User) context.Context {
	return request.WithUser(ctx, user)
}
