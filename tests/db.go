package testutil

import (
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/storage/database"
)

// PrepareDB returns a freshly migrated Postgres database configured from the environment (ENV=TEST).
// Tests calling it are skipped unless ACADEMY_INTEGRATION=1.
func PrepareDB(t *testing.T) *sqlx.DB {
	if os.Getenv("ACADEMY_INTEGRATION") != "1" {
		t.Skip("set ACADEMY_INTEGRATION=1 to run against Postgres")
	}

	conf := core.NewConfig()
	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.RunMigrations(db.DB, "reset"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err := database.Migrate(db.DB); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}
