package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/session-auth-api/internal/apperr"
	"github.com/iliyamo/session-auth-api/internal/fingerprint"
	"github.com/iliyamo/session-auth-api/internal/middleware"
	"github.com/iliyamo/session-auth-api/internal/model"
	"github.com/iliyamo/session-auth-api/internal/service"
)

type stubService struct {
	signupIn  service.SignupInput
	loginFP   fingerprint.Fingerprint
	logoutArg [2]any
	verifyArg [2]string
	resendArg string
	err       error
}

func (s *stubService) Signup(_ context.Context, in service.SignupInput) (service.SignupResult, error) {
	s.signupIn = in
	return service.SignupResult{PublicID: "u-1", Email: in.Email}, s.err
}

func (s *stubService) Login(_ context.Context, _, _ string, fp fingerprint.Fingerprint) (service.LoginResult, error) {
	s.loginFP = fp
	if s.err != nil {
		return service.LoginResult{}, s.err
	}
	return service.LoginResult{Cookie: "Authorization=tok; HttpOnly; Max-Age=60", AccessToken: "tok", ExpiresIn: 60, SessionID: "s-1"}, nil
}

func (s *stubService) Logout(_ context.Context, userID uint64, sessionID string) error {
	s.logoutArg = [2]any{userID, sessionID}
	return s.err
}

func (s *stubService) VerifyEmail(_ context.Context, id, code string) (service.VerifyResult, error) {
	s.verifyArg = [2]string{id, code}
	return service.VerifyResult{Email: "a@x.com"}, s.err
}

func (s *stubService) ResendVerifyEmail(_ context.Context, id string) error {
	s.resendArg = id
	return s.err
}

func (s *stubService) ListSessions(_ context.Context, p service.Principal) ([]service.SessionView, error) {
	return []service.SessionView{{PublicID: p.SessionID, Current: true}}, s.err
}

// serve runs h behind the JSON error handler, optionally as principal p.
func serve(t *testing.T, h echo.HandlerFunc, method, body string, p *service.Principal) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zap.NewNop().Sugar())
	var mws []echo.MiddlewareFunc
	if p != nil {
		mws = append(mws, func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				middleware.SetPrincipal(c, *p)
				return next(c)
			}
		})
	}
	e.Add(method, "/x", h, mws...)

	req := httptest.NewRequest(method, "/x", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("User-Agent", "curl/8.0")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRegister(t *testing.T) {
	svc := &stubService{}
	h := NewAuthHandler(svc)

	rec := serve(t, h.Register, http.MethodPost, `{"email":"a@x.com","password":"secret123","display_name":" Ann "}`, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Ann", svc.signupIn.DisplayName)
	assert.Equal(t, "u-1", decode(t, rec)["public_id"])
}

func TestRegister_ValidationDetails(t *testing.T) {
	h := NewAuthHandler(&stubService{})

	rec := serve(t, h.Register, http.MethodPost, `{"email":"nope","password":"short"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "bad_request", body["code"])
	details, _ := body["details"].([]any)
	require.Len(t, details, 2)
	assert.Contains(t, details[0], "email")
	assert.Contains(t, details[1], "password")
}

func TestRegister_PasswordLimitIsBytes(t *testing.T) {
	svc := &stubService{}
	h := NewAuthHandler(svc)

	// 40 runes, 80 bytes
	body := `{"email":"a@x.com","password":"` + strings.Repeat("é", 40) + `"}`
	rec := serve(t, h.Register, http.MethodPost, body, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at most 72 bytes")
	assert.Empty(t, svc.signupIn.Email, "service must not be called")

	rec = serve(t, h.Register, http.MethodPost, `{"email":"a@x.com","password":"`+strings.Repeat("é", 36)+`"}`, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRegister_ConflictMapsTo409(t *testing.T) {
	h := NewAuthHandler(&stubService{err: apperr.Conflict("email already registered")})
	rec := serve(t, h.Register, http.MethodPost, `{"email":"a@x.com","password":"secret123"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email already registered", decode(t, rec)["message"])
}

func TestLogin_SetsCookie(t *testing.T) {
	svc := &stubService{}
	h := NewAuthHandler(svc)

	rec := serve(t, h.Login, http.MethodPost, `{"email":"a@x.com","password":"secret123"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Authorization=tok; HttpOnly; Max-Age=60", rec.Header().Get(echo.HeaderSetCookie))
	body := decode(t, rec)
	assert.Equal(t, "tok", body["access_token"])
	assert.EqualValues(t, 60, body["expires_in"])
	assert.Equal(t, "curl/8.0", svc.loginFP.Raw)
}

func TestLogin_ErrorKinds(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{apperr.NotFound("user not found"), http.StatusNotFound},
		{apperr.Conflict("invalid credentials"), http.StatusConflict},
		{apperr.BadRequest("email not verified"), http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		h := NewAuthHandler(&stubService{err: tc.err})
		rec := serve(t, h.Login, http.MethodPost, `{"email":"a@x.com","password":"pw"}`, nil)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	h := NewAuthHandler(&stubService{err: apperr.Internal(errors.New("dial tcp 10.0.0.5:3306"))})
	rec := serve(t, h.Login, http.MethodPost, `{"email":"a@x.com","password":"pw"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestLogout(t *testing.T) {
	svc := &stubService{}
	h := NewAuthHandler(svc)
	p := service.Principal{User: model.User{ID: 7}, SessionID: "s-1"}

	rec := serve(t, h.Logout, http.MethodPost, "", &p)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, [2]any{uint64(7), "s-1"}, svc.logoutArg)
	assert.Contains(t, rec.Header().Get(echo.HeaderSetCookie), "Max-Age=0")

	rec = serve(t, h.Logout, http.MethodPost, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyEmail(t *testing.T) {
	svc := &stubService{}
	h := NewAuthHandler(svc)

	rec := serve(t, h.VerifyEmail, http.MethodPost, `{"public_id":"u-1","code":"12345678"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [2]string{"u-1", "12345678"}, svc.verifyArg)

	rec = serve(t, h.VerifyEmail, http.MethodPost, `{"public_id":"u-1","code":"12ab"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResendVerifyEmail(t *testing.T) {
	svc := &stubService{}
	h := NewAuthHandler(svc)

	rec := serve(t, h.ResendVerifyEmail, http.MethodPost, `{"public_id":"u-1"}`, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "u-1", svc.resendArg)

	rec = serve(t, h.ResendVerifyEmail, http.MethodPost, `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeAndSessions(t *testing.T) {
	h := NewAuthHandler(&stubService{})
	p := service.Principal{User: model.User{PublicID: "u-1", Email: "a@x.com"}, SessionID: "s-1", Roles: []string{"USER"}}

	rec := serve(t, h.Me, http.MethodGet, "", &p)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "a@x.com", body["email"])
	assert.Equal(t, []any{"USER"}, body["roles"])

	rec = serve(t, h.Sessions, http.MethodGet, "", &p)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"current":true`)
}

func TestErrorHandler_EchoErrors(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zap.NewNop().Sugar())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["code"])
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealthAndReady(t *testing.T) {
	rec := serve(t, Health, http.MethodGet, "", nil)
	assert.Equal(t, "ok", rec.Body.String())

	rec = serve(t, Ready(pinger{}), http.MethodGet, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = serve(t, Ready(pinger{err: errors.New("down")}), http.MethodGet, "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
