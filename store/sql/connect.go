package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// OpenDatabase opens a database handle and pairs it with the bun dialect for
// the driver. Postgres backs production deployments; sqlite backs tests and
// single-node setups.
func OpenDatabase(driver string, dsn string) (*sql.DB, schema.Dialect, error) {
	driver = strings.TrimSpace(strings.ToLower(driver))
	var dialect schema.Dialect
	switch driver {
	case "postgres", "postgresql", "pg":
		driver = "postgres"
		dialect = pgdialect.New()
	case "sqlite", "sqlite3":
		driver = "sqlite3"
		dialect = sqlitedialect.New()
	default:
		return nil, nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlstore: open %s database: %w", driver, err)
	}
	return db, dialect, nil
}
