package service

import (
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/firmenkern/recherche-api/internal/database/migrations"
	"github.com/firmenkern/recherche-api/internal/repository"
)

// setupServiceDB connects to TEST_DATABASE_URL for the ledger tests that
// need real transactions. Skipped when the variable is unset, same as the
// repository suite.
func setupServiceDB(t *testing.T) (*repository.Repositories, *sql.DB) {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres service tests")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("failed to ping test database: %v", err)
	}

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	for _, table := range []string{"fin_transaktion", "fin_konto", "api_usage", "par_partner"} {
		if _, err := db.Exec("TRUNCATE TABLE " + table + " CASCADE"); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return repository.NewRepositories(db), db
}

// insertPartnerRow inserts a bare partner and returns its id, satisfying
// the fin_konto foreign key.
func insertPartnerRow(t *testing.T, db *sql.DB, name string) string {
	t.Helper()
	id := uuid.NewString()
	query := `
		INSERT INTO par_partner (id, name, api_key_hash)
		VALUES ($1, $2, $3)
	`
	if _, err := db.Exec(query, id, name, "hash-"+id); err != nil {
		t.Fatalf("failed to insert test partner: %v", err)
	}
	return id
}
