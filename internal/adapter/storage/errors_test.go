package storage

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/rl1809/allocation/internal/port"
)

func TestMapError(t *testing.T) {
	plain := errors.New("connection reset")

	tests := []struct {
		name         string
		err          error
		wantConflict bool
	}{
		{name: "mysql duplicate", err: &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, wantConflict: true},
		{name: "mysql deadlock", err: &mysql.MySQLError{Number: 1213}, wantConflict: true},
		{name: "mysql other", err: &mysql.MySQLError{Number: 1146}},
		{name: "postgres unique", err: &pgconn.PgError{Code: "23505"}, wantConflict: true},
		{name: "postgres serialization", err: &pgconn.PgError{Code: "40001"}, wantConflict: true},
		{name: "postgres deadlock", err: &pgconn.PgError{Code: "40P01"}, wantConflict: true},
		{name: "postgres other", err: &pgconn.PgError{Code: "42P01"}},
		{name: "plain", err: plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError("insert batch b1", tt.err)
			assert.ErrorIs(t, got, tt.err)
			assert.Equal(t, tt.wantConflict, errors.Is(got, port.ErrConflict))
			assert.Contains(t, got.Error(), "insert batch b1")
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.NoError(t, MapError("commit", nil))
}
