package sqlstore

import (
	"testing"

	"github.com/uptrace/bun/dialect"
)

func TestOpenDatabaseSelectsDialect(t *testing.T) {
	cases := []struct {
		driver string
		want   dialect.Name
	}{
		{driver: "sqlite3", want: dialect.SQLite},
		{driver: "sqlite", want: dialect.SQLite},
		{driver: "postgres", want: dialect.PG},
		{driver: "PostgreSQL", want: dialect.PG},
	}
	for _, tc := range cases {
		db, d, err := OpenDatabase(tc.driver, ":memory:")
		if err != nil {
			t.Fatalf("OpenDatabase(%q) returned error: %v", tc.driver, err)
		}
		if d.Name() != tc.want {
			t.Fatalf("OpenDatabase(%q): expected dialect %v, got %v", tc.driver, tc.want, d.Name())
		}
		_ = db.Close()
	}
}

func TestOpenDatabaseRejectsUnknownDriver(t *testing.T) {
	if _, _, err := OpenDatabase("oracle", "dsn"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
