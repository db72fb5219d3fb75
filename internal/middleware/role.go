package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/session-auth-api/internal/apperr"
)

// RequireRole lets the request through only when the principal stored by
// Authenticate holds at least one of roles.  It must run after Authenticate.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := Principal(c)
			if !ok {
				return apperr.Unauthenticated("authentication required")
			}
			if !p.HasAnyRole(roles...) {
				return apperr.Forbidden("insufficient role")
			}
			return next(c)
		}
	}
}
