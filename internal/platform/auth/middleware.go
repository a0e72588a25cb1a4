package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medbook/medbook/internal/platform/apperr"
)

type contextKey string

const identityKey contextKey = "identity"

// JWTMiddleware requires a valid "Authorization: Bearer <token>" header and
// stores the resulting Identity on the request context.
func JWTMiddleware(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return apperr.NewUnauthorized("missing authorization header")
			}

			scheme, tokenStr, ok := strings.Cut(authHeader, " ")
			tokenStr = strings.TrimSpace(tokenStr)
			if !ok || !strings.EqualFold(scheme, "bearer") || tokenStr == "" {
				return apperr.NewUnauthorized("invalid authorization format")
			}

			id, err := verifier.Verify(tokenStr)
			if err != nil {
				return err
			}

			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			c.Set("user_id", id.UserID)
			return next(c)
		}
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// MustIdentity is used by handlers mounted behind JWTMiddleware.
func MustIdentity(c echo.Context) (Identity, error) {
	id, ok := IdentityFromContext(c.Request().Context())
	if !ok {
		return Identity{}, apperr.NewUnauthorized("authentication required")
	}
	return id, nil
}
