package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets hardening headers on every response. API responses
// carry personal data and are marked no-store; uploaded photos under
// uploadPrefix stay cacheable.
func SecurityHeaders(uploadPrefix string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

			if uploadPrefix == "" || !strings.HasPrefix(c.Request().URL.Path, uploadPrefix) {
				h.Set("Cache-Control", "no-store")
			}
			return next(c)
		}
	}
}
