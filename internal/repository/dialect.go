package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect captures the small SQL differences between the supported
// drivers. Both use '?' placeholders; only row locking and the
// duplicate-key error differ.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// lockClause returns the suffix appended to a SELECT that must hold the
// row until commit. SQLite has a single writer per database so the
// transaction itself is the lock.
func (d Dialect) lockClause() string {
	if d == SQLite {
		return ""
	}
	return " FOR UPDATE"
}

// isDuplicate reports whether err is a unique-constraint violation
// raised by the driver of d.
func (d Dialect) isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	switch d {
	case SQLite:
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	default:
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
	}
}
