package middleware

import "github.com/labstack/echo/v4"

// currentUserID returns the public id of the authenticated user, or "anon"
// on routes that run before or without Authenticate.
func currentUserID(c echo.Context) string {
	if p, ok := Principal(c); ok && p.User.PublicID != "" {
		return p.User.PublicID
	}
	return "anon"
}
