package storage

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rl1809/allocation/internal/port"
)

const (
	mysqlDuplicateEntry = 1062
	mysqlDeadlock       = 1213

	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// MapError wraps a driver error for op. Errors that mean another writer got
// there first (duplicate key, deadlock, serialization failure) become
// port.ErrConflict so callers can retry.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, port.ErrConflict) {
		return err
	}
	if isConflict(err) {
		return fmt.Errorf("storage: %s: %w: %w", op, port.ErrConflict, err)
	}
	return fmt.Errorf("storage: %s: %w", op, err)
}

func isConflict(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry || myErr.Number == mysqlDeadlock
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
			return true
		}
	}
	return false
}

func conflict(table, key string) error {
	return fmt.Errorf("storage: %s %s: %w", table, key, port.ErrConflict)
}
