package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/session-auth-api/internal/model"
)

const sessionColumns = "id, public_id, user_id, user_agent, ip, status, created_at, updated_at"

// SessionRepo is the session store.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts s as an ACTIVE session and populates its ID.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	s.Status = model.SessionActive
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO sessions (public_id, user_id, user_agent, ip, status) VALUES (?,?,?,?,?)",
		s.PublicID, s.UserID, s.UserAgent, s.IP, string(s.Status))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetActiveByPublicID returns the session only while it is ACTIVE.
func (r *SessionRepo) GetActiveByPublicID(ctx context.Context, publicID string) (model.Session, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE public_id=? AND status=? LIMIT 1",
		publicID, string(model.SessionActive))
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	return s, err
}

// SetStatus moves a session from one status to another.  It reports false
// when the session was not in the from state, leaving it untouched.
func (r *SessionRepo) SetStatus(ctx context.Context, id uint64, from, to model.SessionStatus) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET status=? WHERE id=? AND status=?", string(to), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListActiveByUser returns the user's ACTIVE sessions, newest first.
func (r *SessionRepo) ListActiveByUser(ctx context.Context, userID uint64) ([]model.Session, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE user_id=? AND status=? ORDER BY created_at DESC, id DESC",
		userID, string(model.SessionActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (model.Session, error) {
	var (
		s      model.Session
		status string
	)
	if err := row.Scan(&s.ID, &s.PublicID, &s.UserID, &s.UserAgent, &s.IP, &status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return model.Session{}, err
	}
	s.Status = model.SessionStatus(status)
	return s, nil
}
