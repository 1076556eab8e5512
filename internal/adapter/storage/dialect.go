package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported databases.
// Queries are written with '?' placeholders and rebound per dialect.
type Dialect struct {
	name          string
	driverName    string
	numbered      bool
	timestampType string
}

var (
	MySQL    = Dialect{name: "mysql", driverName: "mysql", timestampType: "DATETIME(6)"}
	Postgres = Dialect{name: "postgres", driverName: "pgx", numbered: true, timestampType: "TIMESTAMPTZ"}
)

func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("storage: unsupported driver %q", driver)
	}
}

func (d Dialect) Name() string { return d.name }

// Rebind rewrites '?' placeholders into the dialect's form.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

func (d Dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS products (
			sku            VARCHAR(255) NOT NULL PRIMARY KEY,
			version_number INTEGER      NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS batches (
			reference          VARCHAR(255) NOT NULL PRIMARY KEY,
			sku                VARCHAR(255) NOT NULL,
			purchased_quantity INTEGER      NOT NULL,
			eta                DATE         NULL,
			seq                INTEGER      NOT NULL DEFAULT 0,
			FOREIGN KEY (sku) REFERENCES products (sku)
		)`,
		`CREATE TABLE IF NOT EXISTS allocations (
			batch_reference VARCHAR(255) NOT NULL,
			order_id        VARCHAR(255) NOT NULL,
			sku             VARCHAR(255) NOT NULL,
			qty             INTEGER      NOT NULL,
			PRIMARY KEY (batch_reference, order_id, sku, qty),
			FOREIGN KEY (batch_reference) REFERENCES batches (reference)
		)`,
		`CREATE TABLE IF NOT EXISTS asset_books (
			symbol         VARCHAR(25) NOT NULL PRIMARY KEY,
			version_number INTEGER     NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS assets (
			symbol VARCHAR(25)  NOT NULL,
			source VARCHAR(100) NOT NULL,
			PRIMARY KEY (symbol, source),
			FOREIGN KEY (symbol) REFERENCES asset_books (symbol)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS trackers (
			id         VARCHAR(36)  NOT NULL PRIMARY KEY,
			symbol     VARCHAR(25)  NOT NULL,
			source     VARCHAR(100) NOT NULL,
			datetime_t VARCHAR(200) NOT NULL,
			position   INTEGER      NOT NULL,
			created_at %s NOT NULL,
			FOREIGN KEY (symbol, source) REFERENCES assets (symbol, source)
		)`, d.timestampType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS ai_models (
			id             VARCHAR(36)  NOT NULL PRIMARY KEY,
			symbol         VARCHAR(25)  NOT NULL,
			source         VARCHAR(100) NOT NULL,
			feature_counts INTEGER      NOT NULL,
			model_name     VARCHAR(500) NOT NULL,
			ai_type        VARCHAR(200) NOT NULL,
			hashtag        VARCHAR(100) NULL,
			accuracy_score DOUBLE PRECISION NOT NULL,
			created_at     %s NOT NULL
		)`, d.timestampType),
	}
}
