// Package repository holds the MySQL data access layer.  Each repo wraps a
// *sql.DB; methods with a Tx suffix run inside a transaction owned by the
// caller.  Missing rows are reported as domain.ErrNotFound so services never
// see sql.ErrNoRows.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/skin-marketplace/internal/domain"
)

// ErrDuplicate is returned when an insert violates a unique key, for
// example two concurrent first logins with the same external id.
var ErrDuplicate = errors.New("duplicate key")

const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is MySQL error 1062.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// notFound converts sql.ErrNoRows into a wrapped domain.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullUint64Ptr(ni sql.NullInt64) *uint64 {
	if !ni.Valid {
		return nil
	}
	v := uint64(ni.Int64)
	return &v
}

func stringOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
