package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/session-auth-api/internal/apperr"
	"github.com/iliyamo/session-auth-api/internal/fingerprint"
	"github.com/iliyamo/session-auth-api/internal/mail"
	"github.com/iliyamo/session-auth-api/internal/model"
	"github.com/iliyamo/session-auth-api/internal/repository"
	"github.com/iliyamo/session-auth-api/internal/token"
	"github.com/iliyamo/session-auth-api/internal/utils"
)

// Deps are the collaborators of AuthService.
type Deps struct {
	Users    UserStore
	Roles    RoleStore
	Sessions SessionStore
	OTPs     OTPStore
	Tx       TxRunner
	Mailer   Mailer
	Tokens   TokenIssuer
	Cache    SessionCache // optional
}

// Options tune AuthService.
type Options struct {
	BcryptCost int
	OTPTTL     time.Duration
}

// AuthService coordinates signup, login, logout and email verification.
type AuthService struct {
	d      Deps
	opts   Options
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewAuthService(d Deps, opts Options, logger *zap.SugaredLogger) *AuthService {
	if d.Users == nil || d.Roles == nil || d.Sessions == nil || d.OTPs == nil || d.Tx == nil || d.Mailer == nil || d.Tokens == nil {
		panic("nil dependency passed to NewAuthService")
	}
	if d.Cache == nil {
		d.Cache = noCache{}
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 10 * time.Minute
	}
	return &AuthService{d: d, opts: opts, logger: logger, now: time.Now}
}

type SignupInput struct {
	Email       string
	Password    string
	DisplayName string
}

type SignupResult struct {
	PublicID string `json:"public_id"`
	Email    string `json:"email"`
}

// Signup creates an unverified account with the default role and emails it
// a verification code.  User, role edge and code are written in one
// transaction together with the mail dispatch; any failure undoes all of it.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (SignupResult, error) {
	email := repository.NormalizeEmail(in.Email)

	exists, err := s.d.Users.ExistsByEmail(ctx, email)
	if err != nil {
		return SignupResult{}, apperr.Internal(err)
	}
	if exists {
		return SignupResult{}, apperr.Conflict("email already registered")
	}

	hash, err := utils.HashPassword(in.Password, s.opts.BcryptCost)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrEmptyPassword):
			return SignupResult{}, apperr.BadRequest("password is required")
		case errors.Is(err, utils.ErrPasswordTooLong):
			return SignupResult{}, apperr.BadRequest("password must be at most 72 bytes")
		}
		return SignupResult{}, apperr.Internal(err)
	}
	role, err := s.d.Roles.GetByName(ctx, model.DefaultRole)
	if err != nil {
		return SignupResult{}, apperr.Internal(fmt.Errorf("load default role: %w", err))
	}

	u := model.User{
		PublicID:     uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  in.DisplayName,
	}
	err = s.d.Tx.InTx(ctx, func(tx *sql.Tx) error {
		if err := s.d.Users.CreateTx(ctx, tx, &u); err != nil {
			if errors.Is(err, repository.ErrEmailExists) {
				return apperr.Conflict("email already registered")
			}
			return apperr.Internal(fmt.Errorf("create user: %w", err))
		}
		if err := s.d.Roles.AssignTx(ctx, tx, u.ID, role.ID); err != nil {
			return apperr.Internal(fmt.Errorf("assign role: %w", err))
		}
		return s.sendVerificationTx(ctx, tx, u)
	})
	if err != nil {
		return SignupResult{}, err
	}

	s.logger.Infow("user signed up", "user", u.PublicID)
	return SignupResult{PublicID: u.PublicID, Email: u.Email}, nil
}

type LoginResult struct {
	Cookie      string
	AccessToken string
	ExpiresIn   int64
	SessionID   string
}

// Login checks credentials and opens a new ACTIVE session bound to the
// caller's fingerprint.  Existing sessions of the user are left alone.
func (s *AuthService) Login(ctx context.Context, email, password string, fp fingerprint.Fingerprint) (LoginResult, error) {
	u, err := s.d.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, apperr.NotFound("user not found")
		}
		return LoginResult{}, apperr.Internal(err)
	}
	// Unverified accounts are rejected before the password is compared.
	if !u.Verified() {
		return LoginResult{}, apperr.BadRequest("email not verified")
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return LoginResult{}, apperr.Conflict("invalid credentials")
	}

	sess := model.Session{
		PublicID:  uuid.NewString(),
		UserID:    u.ID,
		UserAgent: fp.Raw,
		IP:        fp.IP,
	}
	if err := s.d.Sessions.Create(ctx, &sess); err != nil {
		return LoginResult{}, apperr.Internal(fmt.Errorf("create session: %w", err))
	}
	tok, err := s.d.Tokens.Issue(u.PublicID, sess.PublicID)
	if err != nil {
		return LoginResult{}, apperr.Internal(err)
	}

	s.logger.Infow("user logged in", "user", u.PublicID, "session", sess.PublicID, "ip", fp.IP, "browser", fp.Browser)
	return LoginResult{
		Cookie:      token.Cookie(tok),
		AccessToken: tok.Value,
		ExpiresIn:   tok.ExpiresIn,
		SessionID:   sess.PublicID,
	}, nil
}

// Logout ends one session of the user.  A session that is already gone,
// not ACTIVE or owned by someone else is treated as logged out.
func (s *AuthService) Logout(ctx context.Context, userID uint64, sessionID string) error {
	u, err := s.d.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Conflict("user no longer exists")
		}
		return apperr.Internal(err)
	}

	sess, err := s.d.Sessions.GetActiveByPublicID(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && sess.UserID != u.ID) {
		return nil
	}
	if err != nil {
		return apperr.Internal(err)
	}

	// Revoke before the status update: on failure nothing has changed yet,
	// and the tombstone stops in-flight lookups from re-caching the session.
	if err := s.d.Cache.Revoke(ctx, sessionID); err != nil {
		return apperr.Internal(fmt.Errorf("invalidate cached session: %w", err))
	}
	if _, err := s.d.Sessions.SetStatus(ctx, sess.ID, model.SessionActive, model.SessionLogout); err != nil {
		return apperr.Internal(fmt.Errorf("logout session: %w", err))
	}

	s.logger.Infow("user logged out", "user", u.PublicID, "session", sessionID)
	return nil
}

type VerifyResult struct {
	Email string `json:"email"`
}

// VerifyEmail consumes an AVAILABLE verification code.  Codes past their
// expiry are marked EXPIRED and rejected.
func (s *AuthService) VerifyEmail(ctx context.Context, userPublicID, code string) (VerifyResult, error) {
	invalid := apperr.BadRequest("invalid or expired verification code")

	u, err := s.d.Users.GetByPublicID(ctx, userPublicID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return VerifyResult{}, apperr.BadRequest("unknown user")
		}
		return VerifyResult{}, apperr.Internal(err)
	}

	otp, err := s.d.OTPs.FindAvailable(ctx, u.ID, code, model.PurposeEmailVerification)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return VerifyResult{}, invalid
		}
		return VerifyResult{}, apperr.Internal(err)
	}

	now := s.now().UTC()
	if otp.ExpiredAt(now) {
		if _, err := s.d.OTPs.SetStatus(ctx, otp.ID, model.OTPAvailable, model.OTPExpired); err != nil {
			return VerifyResult{}, apperr.Internal(err)
		}
		return VerifyResult{}, invalid
	}

	used, err := s.d.OTPs.SetStatus(ctx, otp.ID, model.OTPAvailable, model.OTPUsed)
	if err != nil {
		return VerifyResult{}, apperr.Internal(err)
	}
	if !used {
		// consumed by a concurrent request
		return VerifyResult{}, invalid
	}

	if err := s.d.Users.MarkEmailVerified(ctx, u.ID, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return VerifyResult{}, apperr.BadRequest("email already verified")
		}
		return VerifyResult{}, apperr.Internal(err)
	}

	s.logger.Infow("email verified", "user", u.PublicID)
	return VerifyResult{Email: u.Email}, nil
}

// ResendVerifyEmail issues a fresh verification code for an unverified
// account.  Earlier codes stay AVAILABLE until used or expired.
func (s *AuthService) ResendVerifyEmail(ctx context.Context, userPublicID string) error {
	u, err := s.d.Users.GetByPublicID(ctx, userPublicID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.BadRequest("unknown user")
		}
		return apperr.Internal(err)
	}
	if u.Verified() {
		return apperr.BadRequest("email already verified")
	}

	if err := s.d.Tx.InTx(ctx, func(tx *sql.Tx) error {
		return s.sendVerificationTx(ctx, tx, u)
	}); err != nil {
		return err
	}
	s.logger.Infow("verification email resent", "user", u.PublicID)
	return nil
}

// SessionView is one entry of a user's session list.
type SessionView struct {
	PublicID  string    `json:"id"`
	UserAgent string    `json:"user_agent"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"created_at"`
	Current   bool      `json:"current"`
}

// ListSessions returns the caller's ACTIVE sessions, flagging the one the
// request was authenticated with.
func (s *AuthService) ListSessions(ctx context.Context, p Principal) ([]SessionView, error) {
	list, err := s.d.Sessions.ListActiveByUser(ctx, p.User.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]SessionView, 0, len(list))
	for _, sess := range list {
		out = append(out, SessionView{
			PublicID:  sess.PublicID,
			UserAgent: sess.UserAgent,
			IP:        sess.IP,
			CreatedAt: sess.CreatedAt,
			Current:   sess.PublicID == p.SessionID,
		})
	}
	return out, nil
}

// sendVerificationTx stores a new code in tx and publishes the email.  A
// publish failure fails the transaction so no undeliverable code is kept.
func (s *AuthService) sendVerificationTx(ctx context.Context, tx *sql.Tx, u model.User) error {
	code, err := utils.NewOTPCode()
	if err != nil {
		return apperr.Internal(fmt.Errorf("generate otp: %w", err))
	}
	otp := model.OTP{
		PublicID:  uuid.NewString(),
		UserID:    u.ID,
		Code:      code,
		Purpose:   model.PurposeEmailVerification,
		ExpiresAt: s.now().UTC().Add(s.opts.OTPTTL),
	}
	if err := s.d.OTPs.CreateTx(ctx, tx, &otp); err != nil {
		return apperr.Internal(fmt.Errorf("create otp: %w", err))
	}

	msg, err := mail.Verification(u.Email, u.DisplayName, code, s.opts.OTPTTL)
	if err != nil {
		return apperr.Internal(fmt.Errorf("render verification email: %w", err))
	}
	if err := s.d.Mailer.Send(ctx, msg); err != nil {
		return apperr.Internal(fmt.Errorf("dispatch verification email: %w", err))
	}
	return nil
}
