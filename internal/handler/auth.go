package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/session-auth-api/internal/apperr"
	"github.com/iliyamo/session-auth-api/internal/fingerprint"
	"github.com/iliyamo/session-auth-api/internal/middleware"
	"github.com/iliyamo/session-auth-api/internal/service"
	"github.com/iliyamo/session-auth-api/internal/token"
	"github.com/iliyamo/session-auth-api/internal/utils"
)

// AuthService is the orchestrator behind the auth endpoints.
type AuthService interface {
	Signup(ctx context.Context, in service.SignupInput) (service.SignupResult, error)
	Login(ctx context.Context, email, password string, fp fingerprint.Fingerprint) (service.LoginResult, error)
	Logout(ctx context.Context, userID uint64, sessionID string) error
	VerifyEmail(ctx context.Context, userPublicID, code string) (service.VerifyResult, error)
	ResendVerifyEmail(ctx context.Context, userPublicID string) error
	ListSessions(ctx context.Context, p service.Principal) ([]service.SessionView, error)
}

// AuthHandler serves /v1/auth and the caller's own account endpoints.
type AuthHandler struct {
	svc     AuthService
	timeout time.Duration
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	if svc == nil {
		panic("nil service passed to NewAuthHandler")
	}
	return &AuthHandler{svc: svc, timeout: 5 * time.Second}
}

// ----- DTOs -----

type registerReq struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func (r registerReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 255), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 0), validation.By(maxBytes(utils.MaxPasswordBytes))),
		validation.Field(&r.DisplayName, validation.Length(0, 100)),
	)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type verifyEmailReq struct {
	PublicID string `json:"public_id"`
	Code     string `json:"code"`
}

func (r verifyEmailReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PublicID, validation.Required),
		validation.Field(&r.Code, validation.Required, validation.Length(8, 8), is.Digit),
	)
}

type resendReq struct {
	PublicID string `json:"public_id"`
}

func (r resendReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PublicID, validation.Required),
	)
}

type loginResp struct {
	AccessToken string `json:"access_token"`
	Cookie      string `json:"cookie"`
	ExpiresIn   int64  `json:"expires_in"`
	SessionID   string `json:"session_id"`
}

type meResp struct {
	PublicID        string     `json:"public_id"`
	Email           string     `json:"email"`
	DisplayName     string     `json:"display_name"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	Roles           []string   `json:"roles"`
	SessionID       string     `json:"session_id"`
}

// Register creates an unverified account and mails the verification code.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	res, err := h.svc.Signup(ctx, service.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: strings.TrimSpace(req.DisplayName),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

// Login opens a session and returns its bearer token, both in the body and
// as the Authorization cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	fp := fingerprint.FromRequest(c.Request(), c.RealIP())
	res, err := h.svc.Login(ctx, req.Email, req.Password, fp)
	if err != nil {
		return err
	}
	c.Response().Header().Add(echo.HeaderSetCookie, res.Cookie)
	return c.JSON(http.StatusOK, loginResp{
		AccessToken: res.AccessToken,
		Cookie:      res.Cookie,
		ExpiresIn:   res.ExpiresIn,
		SessionID:   res.SessionID,
	})
}

// Logout ends the session the request was authenticated with and clears
// the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	p, ok := middleware.Principal(c)
	if !ok {
		return apperr.Unauthenticated("authentication required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.svc.Logout(ctx, p.User.ID, p.SessionID); err != nil {
		return err
	}
	c.Response().Header().Add(echo.HeaderSetCookie, token.CookieName+"=; HttpOnly; Max-Age=0")
	return c.NoContent(http.StatusNoContent)
}

// VerifyEmail consumes a verification code.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	res, err := h.svc.VerifyEmail(ctx, strings.TrimSpace(req.PublicID), req.Code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// ResendVerifyEmail mails a fresh verification code.
func (h *AuthHandler) ResendVerifyEmail(c echo.Context) error {
	var req resendReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.svc.ResendVerifyEmail(ctx, strings.TrimSpace(req.PublicID)); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "verification email sent"})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.Principal(c)
	if !ok {
		return apperr.Unauthenticated("authentication required")
	}
	return c.JSON(http.StatusOK, meResp{
		PublicID:        p.User.PublicID,
		Email:           p.User.Email,
		DisplayName:     p.User.DisplayName,
		EmailVerifiedAt: p.User.EmailVerifiedAt,
		Roles:           p.Roles,
		SessionID:       p.SessionID,
	})
}

// Sessions lists the caller's active sessions.
func (h *AuthHandler) Sessions(c echo.Context) error {
	p, ok := middleware.Principal(c)
	if !ok {
		return apperr.Unauthenticated("authentication required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	list, err := h.svc.ListSessions(ctx, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": list})
}
