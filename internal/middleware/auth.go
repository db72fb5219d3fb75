package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/session-auth-api/internal/fingerprint"
	"github.com/iliyamo/session-auth-api/internal/service"
	"github.com/iliyamo/session-auth-api/internal/token"
)

// principalKey is the echo context key holding the service.Principal of an
// authenticated request.
const principalKey = "principal"

// Authenticator resolves a raw bearer token into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string, fp fingerprint.Fingerprint) (service.Principal, error)
}

// Authenticate rejects requests without a token bound to a live session of
// the calling client.  The token is read from the Authorization cookie,
// falling back to an "Authorization: Bearer" header.  On success the
// principal is stored in the context, see Principal.
func Authenticate(authn Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			fp := fingerprint.FromRequest(c.Request(), c.RealIP())
			p, err := authn.Authenticate(c.Request().Context(), rawToken(c), fp)
			if err != nil {
				return err
			}
			SetPrincipal(c, p)
			return next(c)
		}
	}
}

// Principal returns the identity stored by Authenticate.
func Principal(c echo.Context) (service.Principal, bool) {
	p, ok := c.Get(principalKey).(service.Principal)
	return p, ok
}

// SetPrincipal attaches p to the request context.
func SetPrincipal(c echo.Context, p service.Principal) {
	c.Set(principalKey, p)
}

func rawToken(c echo.Context) string {
	if ck, err := c.Cookie(token.CookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
