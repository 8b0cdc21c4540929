package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/firmenkern/recherche-api/internal/database/migrations"
	"github.com/firmenkern/recherche-api/internal/models"
)

// setupTestDB connects to the database named by TEST_DATABASE_URL, runs
// migrations and truncates all tables. Tests are skipped when the
// variable is unset so the suite stays runnable without Postgres.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres repository tests")
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

	tables := []string{
		"api_usage", "fin_transaktion", "fin_konto", "rch_roh_ergebnis",
		"rch_auftrag", "com_unternehmen", "par_partner", "sys_einstellung",
		"geo_ort", "geo_kreis", "geo_plz", "google_kategorie",
	}
	for _, table := range tables {
		if _, err := db.Exec("TRUNCATE TABLE " + table + " CASCADE"); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// setupTestRepos creates all repositories using a test database.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db := setupTestDB(t)
	return NewRepositories(db)
}

// insertTestPartner inserts a partner with the default rate card and
// returns its id.
func insertTestPartner(t *testing.T, db *sql.DB, name string) string {
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

// insertTestOrder inserts an order in the given status and returns it.
func insertTestOrder(t *testing.T, repos *Repositories, partnerID string, status models.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:          uuid.NewString(),
		PartnerID:   partnerID,
		QualityTier: models.TierPremium,
		PLZ:         "10115",
		Freitext:    "friseur",
		Status:      models.OrderStatusDraft,
		MaxAttempts: 3,
		CreatedAt:   time.Now().UTC(),
	}
	if err := repos.Order.Create(context.Background(), order); err != nil {
		t.Fatalf("failed to insert test order: %v", err)
	}
	if status != models.OrderStatusDraft {
		db := repos.db
		if _, err := db.Exec(`UPDATE rch_auftrag SET status = $1, confirmed_at = now() WHERE id = $2`, status, order.ID); err != nil {
			t.Fatalf("failed to set test order status: %v", err)
		}
		order.Status = status
	}
	return order
}

// insertTestGeoOrt inserts a town reference row.
func insertTestGeoOrt(t *testing.T, db *sql.DB, id, name string, lat, lng float64, radiusM int) {
	t.Helper()
	query := `INSERT INTO geo_ort (id, name, lat, lng, radius_m) VALUES ($1, $2, $3, $4, $5)`
	if _, err := db.Exec(query, id, name, lat, lng, radiusM); err != nil {
		t.Fatalf("failed to insert test geo_ort: %v", err)
	}
}

// backdateOrderStart moves an order's started_at into the past.
func backdateOrderStart(t *testing.T, db *sql.DB, orderID string, age time.Duration) {
	t.Helper()
	query := `UPDATE rch_auftrag SET started_at = $1 WHERE id = $2`
	if _, err := db.Exec(query, time.Now().Add(-age), orderID); err != nil {
		t.Fatalf("failed to backdate order: %v", err)
	}
}

// mustCompany builds a company row for directory tests.
func mustCompany(t *testing.T, name string) *models.Company {
	t.Helper()
	now := time.Now().UTC()
	return &models.Company{
		ID:         uuid.NewString(),
		Firmierung: name,
		Land:       "DE",
		Metadaten:  models.Metadata{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
