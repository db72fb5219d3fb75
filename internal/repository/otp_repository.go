package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/session-auth-api/internal/model"
)

// OTPRepo is the one-time code store.  It does not enforce a single
// AVAILABLE code per user; lookups always match on the code itself.
type OTPRepo struct{ DB *sql.DB }

func NewOTPRepo(db *sql.DB) *OTPRepo { return &OTPRepo{DB: db} }

// CreateTx inserts an AVAILABLE code inside tx.
func (r *OTPRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.OTP) error {
	o.Status = model.OTPAvailable
	res, err := tx.ExecContext(ctx,
		"INSERT INTO otps (public_id, user_id, code, purpose, status, expires_at) VALUES (?,?,?,?,?,?)",
		o.PublicID, o.UserID, o.Code, string(o.Purpose), string(o.Status), o.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

// FindAvailable returns the newest AVAILABLE code matching user, code and
// purpose.  Expiry is not checked here; callers decide what to do with an
// expired row.
func (r *OTPRepo) FindAvailable(ctx context.Context, userID uint64, code string, purpose model.OTPPurpose) (model.OTP, error) {
	var (
		o              model.OTP
		purposeS, stat string
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, public_id, user_id, code, purpose, status, expires_at, created_at
		 FROM otps
		 WHERE user_id=? AND code=? AND purpose=? AND status=?
		 ORDER BY id DESC LIMIT 1`,
		userID, code, string(purpose), string(model.OTPAvailable)).
		Scan(&o.ID, &o.PublicID, &o.UserID, &o.Code, &purposeS, &stat, &o.ExpiresAt, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.OTP{}, ErrNotFound
	}
	if err != nil {
		return model.OTP{}, err
	}
	o.Purpose = model.OTPPurpose(purposeS)
	o.Status = model.OTPStatus(stat)
	return o, nil
}

// SetStatus moves a code from one status to another; it reports false when
// the row was no longer in the from state.
func (r *OTPRepo) SetStatus(ctx context.Context, id uint64, from, to model.OTPStatus) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE otps SET status=? WHERE id=? AND status=?", string(to), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
