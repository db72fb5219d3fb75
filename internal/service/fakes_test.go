package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/session-auth-api/internal/mail"
	"github.com/iliyamo/session-auth-api/internal/model"
	"github.com/iliyamo/session-auth-api/internal/repository"
)

// memDB is an in-memory stand-in for the MySQL schema.  memTx snapshots it
// so rolled back transactions leave no trace, like the real store.
type memDB struct {
	mu        sync.Mutex
	nextID    uint64
	users     map[uint64]model.User
	roles     map[string]model.Role
	userRoles map[uint64][]uint64
	sessions  map[uint64]model.Session
	otps      map[uint64]model.OTP

	// raceOnCreate makes CreateTx report a duplicate even though
	// ExistsByEmail said the address was free.
	raceOnCreate bool
}

func newMemDB() *memDB {
	return &memDB{
		users: map[uint64]model.User{},
		roles: map[string]model.Role{
			model.DefaultRole: {ID: 1, PublicID: "role-user", Name: model.DefaultRole},
			model.RoleAdmin:   {ID: 2, PublicID: "role-admin", Name: model.RoleAdmin},
		},
		userRoles: map[uint64][]uint64{},
		sessions:  map[uint64]model.Session{},
		otps:      map[uint64]model.OTP{},
	}
}

func (m *memDB) id() uint64 { m.nextID++; return m.nextID }

type memSnapshot struct {
	nextID    uint64
	users     map[uint64]model.User
	userRoles map[uint64][]uint64
	sessions  map[uint64]model.Session
	otps      map[uint64]model.OTP
}

func (m *memDB) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := memSnapshot{
		nextID:    m.nextID,
		users:     map[uint64]model.User{},
		userRoles: map[uint64][]uint64{},
		sessions:  map[uint64]model.Session{},
		otps:      map[uint64]model.OTP{},
	}
	for k, v := range m.users {
		s.users[k] = v
	}
	for k, v := range m.userRoles {
		s.userRoles[k] = append([]uint64(nil), v...)
	}
	for k, v := range m.sessions {
		s.sessions[k] = v
	}
	for k, v := range m.otps {
		s.otps[k] = v
	}
	return s
}

func (m *memDB) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID, m.users, m.userRoles, m.sessions, m.otps = s.nextID, s.users, s.userRoles, s.sessions, s.otps
}

func (m *memDB) otpsFor(userID uint64) []model.OTP {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.OTP
	for _, o := range m.otps {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memTx struct {
	db        *memDB
	commits   int
	rollbacks int
}

func (t *memTx) InTx(_ context.Context, fn func(tx *sql.Tx) error) error {
	snap := t.db.snapshot()
	if err := fn(nil); err != nil {
		t.db.restore(snap)
		t.rollbacks++
		return err
	}
	t.commits++
	return nil
}

type memUsers struct{ db *memDB }

func (r memUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(context.Background(), email)
	return err == nil, nil
}

func (r memUsers) CreateTx(_ context.Context, _ *sql.Tx, u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.raceOnCreate {
		return repository.ErrEmailExists
	}
	for _, existing := range r.db.users {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	u.ID = r.db.id()
	u.CreatedAt = time.Now().UTC()
	r.db.users[u.ID] = *u
	return nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.db.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (r memUsers) GetByPublicID(_ context.Context, publicID string) (model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.PublicID == publicID {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (r memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (r memUsers) MarkEmailVerified(_ context.Context, userID uint64, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[userID]
	if !ok || u.EmailVerifiedAt != nil {
		return repository.ErrConflict
	}
	u.EmailVerifiedAt = &at
	r.db.users[userID] = u
	return nil
}

type memRoles struct{ db *memDB }

func (r memRoles) GetByName(_ context.Context, name string) (model.Role, error) {
	role, ok := r.db.roles[name]
	if !ok {
		return model.Role{}, repository.ErrNotFound
	}
	return role, nil
}

func (r memRoles) AssignTx(_ context.Context, _ *sql.Tx, userID, roleID uint64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.userRoles[userID] = append(r.db.userRoles[userID], roleID)
	return nil
}

func (r memRoles) NamesForUser(_ context.Context, userID uint64) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var names []string
	for _, id := range r.db.userRoles[userID] {
		for _, role := range r.db.roles {
			if role.ID == id {
				names = append(names, role.Name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

type memSessions struct{ db *memDB }

func (r memSessions) Create(_ context.Context, s *model.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s.ID = r.db.id()
	s.Status = model.SessionActive
	s.CreatedAt = time.Now().UTC()
	r.db.sessions[s.ID] = *s
	return nil
}

func (r memSessions) GetActiveByPublicID(_ context.Context, publicID string) (model.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, s := range r.db.sessions {
		if s.PublicID == publicID && s.Status == model.SessionActive {
			return s, nil
		}
	}
	return model.Session{}, repository.ErrNotFound
}

func (r memSessions) SetStatus(_ context.Context, id uint64, from, to model.SessionStatus) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.sessions[id]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	r.db.sessions[id] = s
	return true, nil
}

func (r memSessions) ListActiveByUser(_ context.Context, userID uint64) ([]model.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Session
	for _, s := range r.db.sessions {
		if s.UserID == userID && s.Status == model.SessionActive {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type memOTPs struct{ db *memDB }

func (r memOTPs) CreateTx(_ context.Context, _ *sql.Tx, o *model.OTP) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o.ID = r.db.id()
	o.Status = model.OTPAvailable
	r.db.otps[o.ID] = *o
	return nil
}

func (r memOTPs) FindAvailable(_ context.Context, userID uint64, code string, purpose model.OTPPurpose) (model.OTP, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var best model.OTP
	for _, o := range r.db.otps {
		if o.UserID == userID && o.Code == code && o.Purpose == purpose && o.Status == model.OTPAvailable && o.ID > best.ID {
			best = o
		}
	}
	if best.ID == 0 {
		return model.OTP{}, repository.ErrNotFound
	}
	return best, nil
}

func (r memOTPs) SetStatus(_ context.Context, id uint64, from, to model.OTPStatus) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.otps[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	r.db.otps[id] = o
	return true, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

// mapCache is a SessionCache backed by a map with the same write rules as
// the Redis cache: Set never overwrites, Revoke leaves a tombstone.
type mapCache struct {
	mu         sync.Mutex
	entries    map[string]model.Session
	tombstones map[string]bool
	hits       int
	revokeErr  error
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]model.Session{}, tombstones: map[string]bool{}}
}

func (c *mapCache) Get(_ context.Context, id string) (model.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[id]
	if ok {
		c.hits++
	}
	return s, ok
}

func (c *mapCache) Set(_ context.Context, s model.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[s.PublicID]; ok || c.tombstones[s.PublicID] {
		return nil
	}
	c.entries[s.PublicID] = s
	return nil
}

func (c *mapCache) Revoke(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revokeErr != nil {
		return c.revokeErr
	}
	delete(c.entries, id)
	c.tombstones[id] = true
	return nil
}

// hookSessions runs afterRead once, right after the first successful
// GetActiveByPublicID, to interleave another operation with a lookup.
type hookSessions struct {
	SessionStore
	afterRead func()
}

func (h *hookSessions) GetActiveByPublicID(ctx context.Context, publicID string) (model.Session, error) {
	s, err := h.SessionStore.GetActiveByPublicID(ctx, publicID)
	if err == nil && h.afterRead != nil {
		fn := h.afterRead
		h.afterRead = nil
		fn()
	}
	return s, err
}
