package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/session-auth-api/internal/model"
)

const userColumns = "id, public_id, email, password_hash, display_name, email_verified_at, created_at, updated_at"

// UserRepo is the credential store.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NormalizeEmail lower-cases and trims an address before it touches the store.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// ExistsByEmail is a fast-path check only; the unique index on email is what
// actually prevents duplicates.
func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE email=? LIMIT 1", NormalizeEmail(email)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateTx inserts u inside tx and populates its ID.  A duplicate email is
// reported as ErrEmailExists.
func (r *UserRepo) CreateTx(ctx context.Context, tx *sql.Tx, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (public_id, email, password_hash, display_name) VALUES (?,?,?,?)",
		u.PublicID, u.Email, u.PasswordHash, u.DisplayName)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
}

// GetByPublicID fetches a user by its public UUID.
func (r *UserRepo) GetByPublicID(ctx context.Context, publicID string) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE public_id=? LIMIT 1", publicID)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// MarkEmailVerified stamps email_verified_at.  The column is only written
// while NULL; a second call returns ErrConflict.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, userID uint64, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_verified_at=? WHERE id=? AND email_verified_at IS NULL",
		at.UTC(), userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (model.User, error) {
	var (
		u          model.User
		verifiedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.PublicID, &u.Email, &u.PasswordHash, &u.DisplayName,
		&verifiedAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time.UTC()
		u.EmailVerifiedAt = &t
	}
	return u, nil
}
