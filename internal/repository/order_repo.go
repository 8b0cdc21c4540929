package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/firmenkern/recherche-api/internal/models"
)

// maxErrorMessageLen bounds the stored error message on failed orders.
const maxErrorMessageLen = 1000

// PostgresOrderRepository implements OrderRepository for Postgres.
type PostgresOrderRepository struct {
	db DBTX
}

// NewPostgresOrderRepository creates a new Postgres order repository.
func NewPostgresOrderRepository(db DBTX) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

const orderColumns = `id, partner_id, qualitaets_stufe, geo_ort_id, geo_kreis_id, plz,
	google_kategorie_gcid, branche_freitext, status, attempts, max_attempts,
	estimated_cost_cents, actual_cost_cents, raw_count, new_count, duplicate_count,
	updated_count, error_message, created_at, confirmed_at, started_at, completed_at`

func (r *PostgresOrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO rch_auftrag (id, partner_id, qualitaets_stufe, geo_ort_id, geo_kreis_id, plz,
			google_kategorie_gcid, branche_freitext, status, attempts, max_attempts,
			estimated_cost_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		order.ID,
		order.PartnerID,
		order.QualityTier,
		nullString(order.GeoOrtID),
		nullString(order.GeoKreisID),
		nullString(order.PLZ),
		nullString(order.CategoryGCID),
		nullString(order.Freitext),
		order.Status,
		order.Attempts,
		order.MaxAttempts,
		order.EstimatedCostCents,
		order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *PostgresOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM rch_auftrag WHERE id = $1`
	return r.scanOrder(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresOrderRepository) ListByPartner(ctx context.Context, partnerID string, status models.OrderStatus, limit, offset int) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM rch_auftrag WHERE partner_id = $1`
	args := []any{partnerID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	return r.collectOrders(rows)
}

func (r *PostgresOrderRepository) ListByStatus(ctx context.Context, status models.OrderStatus, limit, offset int) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM rch_auftrag`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	return r.collectOrders(rows)
}

func (r *PostgresOrderRepository) Confirm(ctx context.Context, id string) (*models.Order, error) {
	query := `
		UPDATE rch_auftrag
		SET status = $1, confirmed_at = now()
		WHERE id = $2 AND status = $3
		RETURNING ` + orderColumns
	order, err := r.scanOrder(r.db.QueryRowContext(ctx, query, models.OrderStatusConfirmed, id, models.OrderStatusDraft))
	if err != nil {
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}
	return order, nil
}

// LeaseNext claims the oldest CONFIRMED order in a single statement.
// SKIP LOCKED keeps concurrent workers from blocking on each other's
// candidate row; each worker either gets a distinct order or none.
func (r *PostgresOrderRepository) LeaseNext(ctx context.Context) (*models.Order, error) {
	query := `
		UPDATE rch_auftrag
		SET status = $1, attempts = attempts + 1, started_at = now()
		WHERE id = (
			SELECT id FROM rch_auftrag
			WHERE status = $2 AND attempts < max_attempts
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + orderColumns
	order, err := r.scanOrder(r.db.QueryRowContext(ctx, query, models.OrderStatusProcessing, models.OrderStatusConfirmed))
	if err != nil {
		return nil, fmt.Errorf("failed to lease order: %w", err)
	}
	return order, nil
}

func (r *PostgresOrderRepository) Complete(ctx context.Context, id string, rawCount, newCount, duplicateCount, updatedCount int, actualCostCents int64) error {
	query := `
		UPDATE rch_auftrag
		SET status = $1, raw_count = $2, new_count = $3, duplicate_count = $4,
			updated_count = $5, actual_cost_cents = $6, error_message = NULL, completed_at = now()
		WHERE id = $7 AND status = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		models.OrderStatusCompleted, rawCount, newCount, duplicateCount, updatedCount,
		actualCostCents, id, models.OrderStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to complete order: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("order %s is not in %s", id, models.OrderStatusProcessing)
	}
	return nil
}

func (r *PostgresOrderRepository) Fail(ctx context.Context, id, message string) error {
	query := `
		UPDATE rch_auftrag
		SET status = $1, error_message = $2, completed_at = now()
		WHERE id = $3 AND status = $4
	`
	_, err := r.db.ExecContext(ctx, query,
		models.OrderStatusFailed, truncateMessage(message), id, models.OrderStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to fail order: %w", err)
	}
	return nil
}

// SweepStale fails orders whose worker died mid-lease. Run at startup
// before the dispatch loop begins.
func (r *PostgresOrderRepository) SweepStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	query := `
		UPDATE rch_auftrag
		SET status = $1, error_message = $2, completed_at = now()
		WHERE status = $3 AND started_at < $4
	`
	result, err := r.db.ExecContext(ctx, query,
		models.OrderStatusFailed, "worker terminated unexpectedly",
		models.OrderStatusProcessing, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale orders: %w", err)
	}
	count, _ := result.RowsAffected()
	return count, nil
}

func (r *PostgresOrderRepository) scanOrder(row *sql.Row) (*models.Order, error) {
	var order models.Order
	var geoOrtID, geoKreisID, plz, gcid, freitext, errorMessage sql.NullString
	var confirmedAt, startedAt, completedAt sql.NullTime

	err := row.Scan(
		&order.ID, &order.PartnerID, &order.QualityTier, &geoOrtID, &geoKreisID, &plz,
		&gcid, &freitext, &order.Status, &order.Attempts, &order.MaxAttempts,
		&order.EstimatedCostCents, &order.ActualCostCents, &order.RawCount, &order.NewCount,
		&order.DuplicateCount, &order.UpdatedCount, &errorMessage,
		&order.CreatedAt, &confirmedAt, &startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	order.GeoOrtID = geoOrtID.String
	order.GeoKreisID = geoKreisID.String
	order.PLZ = plz.String
	order.CategoryGCID = gcid.String
	order.Freitext = freitext.String
	order.ErrorMessage = errorMessage.String
	order.ConfirmedAt = timePtr(confirmedAt)
	order.StartedAt = timePtr(startedAt)
	order.CompletedAt = timePtr(completedAt)

	return &order, nil
}

func (r *PostgresOrderRepository) collectOrders(rows *sql.Rows) ([]*models.Order, error) {
	var orders []*models.Order
	for rows.Next() {
		var order models.Order
		var geoOrtID, geoKreisID, plz, gcid, freitext, errorMessage sql.NullString
		var confirmedAt, startedAt, completedAt sql.NullTime

		err := rows.Scan(
			&order.ID, &order.PartnerID, &order.QualityTier, &geoOrtID, &geoKreisID, &plz,
			&gcid, &freitext, &order.Status, &order.Attempts, &order.MaxAttempts,
			&order.EstimatedCostCents, &order.ActualCostCents, &order.RawCount, &order.NewCount,
			&order.DuplicateCount, &order.UpdatedCount, &errorMessage,
			&order.CreatedAt, &confirmedAt, &startedAt, &completedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		order.GeoOrtID = geoOrtID.String
		order.GeoKreisID = geoKreisID.String
		order.PLZ = plz.String
		order.CategoryGCID = gcid.String
		order.Freitext = freitext.String
		order.ErrorMessage = errorMessage.String
		order.ConfirmedAt = timePtr(confirmedAt)
		order.StartedAt = timePtr(startedAt)
		order.CompletedAt = timePtr(completedAt)

		orders = append(orders, &order)
	}
	return orders, rows.Err()
}

// truncateMessage caps stored error messages without splitting a rune.
func truncateMessage(s string) string {
	runes := []rune(s)
	if len(runes) <= maxErrorMessageLen {
		return s
	}
	return string(runes[:maxErrorMessageLen])
}

// Helper functions
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// PostgresRawResultRepository implements RawResultRepository for Postgres.
type PostgresRawResultRepository struct {
	db DBTX
}

// NewPostgresRawResultRepository creates a new Postgres raw result repository.
func NewPostgresRawResultRepository(db DBTX) *PostgresRawResultRepository {
	return &PostgresRawResultRepository{db: db}
}

const rawResultColumns = `id, auftrag_id, quelle, external_id, name, strasse, plz, ort, land,
	telefon, email, website, kategorie, lat, lng, raw_payload, created_at`

// CreateBatch inserts all rows in one multi-values statement.
func (r *PostgresRawResultRepository) CreateBatch(ctx context.Context, results []*models.RawResult) error {
	if len(results) == 0 {
		return nil
	}

	const cols = 17
	placeholders := make([]string, 0, len(results))
	args := make([]any, 0, len(results)*cols)
	for i, res := range results {
		base := i * cols
		group := make([]string, cols)
		for j := range group {
			group[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(group, ", ")+")")

		var payload any
		if len(res.RawPayload) > 0 {
			payload = []byte(res.RawPayload)
		}
		args = append(args,
			res.ID, res.AuftragID, res.Quelle, nullString(res.ExternalID), res.Name,
			nullString(res.Strasse), nullString(res.PLZ), nullString(res.Ort), nullString(res.Land),
			nullString(res.Telefon), nullString(res.Email), nullString(res.Website),
			nullString(res.Kategorie), nullFloat(res.Lat), nullFloat(res.Lng),
			payload, res.CreatedAt,
		)
	}

	query := `INSERT INTO rch_roh_ergebnis (` + rawResultColumns + `) VALUES ` + strings.Join(placeholders, ", ")
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create raw results: %w", err)
	}
	return nil
}

// GetByAuftragID returns raw results in insertion order (ULIDs are
// lexicographically time-ordered).
func (r *PostgresRawResultRepository) GetByAuftragID(ctx context.Context, auftragID string) ([]*models.RawResult, error) {
	query := `SELECT ` + rawResultColumns + ` FROM rch_roh_ergebnis WHERE auftrag_id = $1 ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, auftragID)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw results: %w", err)
	}
	defer rows.Close()

	var results []*models.RawResult
	for rows.Next() {
		var res models.RawResult
		var externalID, strasse, plz, ort, land, telefon, email, website, kategorie sql.NullString
		var lat, lng sql.NullFloat64
		var payload []byte

		err := rows.Scan(
			&res.ID, &res.AuftragID, &res.Quelle, &externalID, &res.Name,
			&strasse, &plz, &ort, &land, &telefon, &email, &website, &kategorie,
			&lat, &lng, &payload, &res.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raw result: %w", err)
		}

		res.ExternalID = externalID.String
		res.Strasse = strasse.String
		res.PLZ = plz.String
		res.Ort = ort.String
		res.Land = land.String
		res.Telefon = telefon.String
		res.Email = email.String
		res.Website = website.String
		res.Kategorie = kategorie.String
		res.Lat = floatPtr(lat)
		res.Lng = floatPtr(lng)
		if len(payload) > 0 {
			res.RawPayload = payload
		}

		results = append(results, &res)
	}
	return results, rows.Err()
}
