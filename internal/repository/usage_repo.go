package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/firmenkern/recherche-api/internal/models"
)

// PostgresUsageRepository implements UsageRepository for Postgres.
// api_usage is append-only; rows feed audit and billing reconciliation.
type PostgresUsageRepository struct {
	db DBTX
}

// NewPostgresUsageRepository creates a new Postgres usage repository.
func NewPostgresUsageRepository(db DBTX) *PostgresUsageRepository {
	return &PostgresUsageRepository{db: db}
}

func (r *PostgresUsageRepository) Create(ctx context.Context, record *models.UsageRecord) error {
	query := `
		INSERT INTO api_usage (id, partner_id, endpoint, method, parameters, status_code,
			result_count, cost_cents, response_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	var params any
	if record.ParametersJSON != "" {
		params = []byte(record.ParametersJSON)
	}
	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.PartnerID, record.Endpoint, record.Method, params,
		record.StatusCode, record.ResultCount, record.CostCents, record.ResponseTimeMs,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create usage record: %w", err)
	}
	return nil
}

func (r *PostgresUsageRepository) SummaryByPartner(ctx context.Context, partnerID string, since time.Time) (*UsageSummary, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(cost_cents), 0)
		FROM api_usage WHERE partner_id = $1 AND created_at >= $2
	`
	var summary UsageSummary
	err := r.db.QueryRowContext(ctx, query, partnerID, since).Scan(&summary.Requests, &summary.TotalCostCents)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	return &summary, nil
}
