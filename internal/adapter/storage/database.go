package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to the database behind driver and verifies the connection.
// MySQL DSNs need parseTime=true so DATE and DATETIME columns scan into time.Time.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	db, err := sql.Open(dialect.driverName, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("open %s: %w", dialect.name, err)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, Dialect{}, fmt.Errorf("ping %s: %w", dialect.name, err)
	}
	return db, dialect, nil
}

// ApplySchema creates the tables if they do not exist yet.
func ApplySchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	for _, stmt := range dialect.schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
