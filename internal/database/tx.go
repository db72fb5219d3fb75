package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Transactor runs a function inside a single database transaction.
type Transactor struct {
	db *sql.DB
}

func NewTransactor(db *sql.DB) *Transactor { return &Transactor{db: db} }

// InTx begins a transaction, passes it to fn and commits when fn returns nil.
// Any error from fn (or a panic) rolls the transaction back; the original
// error is returned unchanged so callers can still inspect its kind.
func (t *Transactor) InTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
