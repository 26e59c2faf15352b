package store

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/localnerve/portsmith/internal/types"
	mssql "github.com/microsoft/go-mssqldb"
	"gorm.io/gorm"
)

// Driver codes for unique key violations
const (
	mysqlDuplicateEntry    = 1062
	postgresUniqueViolated = "23505"
	mssqlUniqueConstraint  = 2627
	mssqlUniqueIndex       = 2601
)

// classify leaves domain errors untouched and wraps everything else as a storage failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, domain := range []error{
		types.ErrNotReserved,
		types.ErrAlreadyReserved,
		types.ErrRangeExhausted,
		types.ErrMalformedInput,
	} {
		if errors.Is(err, domain) {
			return err
		}
	}
	return &types.StorageError{Op: op, Err: err}
}

// isDuplicateKey reports whether err is a unique or primary key violation.
// GORM translates most dialects when TranslateError is on; the driver checks cover
// connections opened without it.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresUniqueViolated
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == mssqlUniqueConstraint || msErr.Number == mssqlUniqueIndex
	}

	// SQLite reports primary key violations as UNIQUE constraint failures
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
