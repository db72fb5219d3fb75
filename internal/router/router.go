// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/session-auth-api/internal/handler"
	"github.com/iliyamo/session-auth-api/internal/middleware"
	"github.com/iliyamo/session-auth-api/internal/model"
)

// RegisterRoutes registers the unauthenticated health endpoints.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterAuth registers the auth flow under /v1/auth and the caller's
// account endpoints under /v1.  resendLimit guards the endpoint that sends
// email without requiring a session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, authn middleware.Authenticator, resendLimit echo.MiddlewareFunc) {
	requireUser := []echo.MiddlewareFunc{
		middleware.Authenticate(authn),
		middleware.RequireRole(model.DefaultRole, model.RoleAdmin),
	}

	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/verify-email", a.VerifyEmail)
	g.POST("/resend-verify-email", a.ResendVerifyEmail, resendLimit)
	g.POST("/logout", a.Logout, requireUser...)

	// Per-route middleware: a group-level one would also guard the group's
	// not-found handlers and turn unknown paths into 401s.
	me := e.Group("/v1")
	me.GET("/me", a.Me, requireUser...)
	me.GET("/sessions", a.Sessions, requireUser...)
}
