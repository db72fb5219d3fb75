// Package repository holds the database/sql stores for users, roles,
// sessions and one-time codes.  Stores return flat model records; nested
// response shapes are assembled by the service layer.
//
// The sentinel errors below let higher layers distinguish failure modes
// without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row (or no row in the
// required state, e.g. an ACTIVE session).
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when the unique email index rejects an insert.
var ErrEmailExists = errors.New("email already exists")

// ErrConflict is returned when a conditional update finds the row in a
// state other than the expected one.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
