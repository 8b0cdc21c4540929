package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/firmenkern/recherche-api/internal/models"
)

// PostgresPartnerRepository implements PartnerRepository for Postgres.
type PostgresPartnerRepository struct {
	db DBTX
}

// NewPostgresPartnerRepository creates a new Postgres partner repository.
func NewPostgresPartnerRepository(db DBTX) *PostgresPartnerRepository {
	return &PostgresPartnerRepository{db: db}
}

const partnerColumns = `id, name, api_key_hash, base_fee_cents, per_result_standard_cents,
	per_result_premium_cents, per_result_komplett_cents, limit_per_minute, limit_per_hour,
	limit_per_day, suspended, created_at, updated_at`

func (r *PostgresPartnerRepository) GetByID(ctx context.Context, id string) (*models.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM par_partner WHERE id = $1`
	return r.scanPartner(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresPartnerRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*models.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM par_partner WHERE api_key_hash = $1`
	return r.scanPartner(r.db.QueryRowContext(ctx, query, hash))
}

// Upsert mirrors a platform partner event into par_partner.
func (r *PostgresPartnerRepository) Upsert(ctx context.Context, partner *models.Partner) error {
	query := `
		INSERT INTO par_partner (id, name, api_key_hash, base_fee_cents, per_result_standard_cents,
			per_result_premium_cents, per_result_komplett_cents, limit_per_minute, limit_per_hour,
			limit_per_day, suspended, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			api_key_hash = EXCLUDED.api_key_hash,
			base_fee_cents = EXCLUDED.base_fee_cents,
			per_result_standard_cents = EXCLUDED.per_result_standard_cents,
			per_result_premium_cents = EXCLUDED.per_result_premium_cents,
			per_result_komplett_cents = EXCLUDED.per_result_komplett_cents,
			limit_per_minute = EXCLUDED.limit_per_minute,
			limit_per_hour = EXCLUDED.limit_per_hour,
			limit_per_day = EXCLUDED.limit_per_day,
			suspended = EXCLUDED.suspended,
			updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, query,
		partner.ID, partner.Name, partner.APIKeyHash,
		partner.BaseFeeCents, partner.PerResultStandardCents,
		partner.PerResultPremiumCents, partner.PerResultKomplettCents,
		partner.LimitPerMinute, partner.LimitPerHour, partner.LimitPerDay,
		partner.Suspended,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert partner: %w", err)
	}
	return nil
}

func (r *PostgresPartnerRepository) SetSuspended(ctx context.Context, id string, suspended bool) error {
	query := `UPDATE par_partner SET suspended = $1, updated_at = now() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, suspended, id)
	if err != nil {
		return fmt.Errorf("failed to set partner suspension: %w", err)
	}
	return nil
}

func (r *PostgresPartnerRepository) scanPartner(row *sql.Row) (*models.Partner, error) {
	var partner models.Partner

	err := row.Scan(
		&partner.ID, &partner.Name, &partner.APIKeyHash,
		&partner.BaseFeeCents, &partner.PerResultStandardCents,
		&partner.PerResultPremiumCents, &partner.PerResultKomplettCents,
		&partner.LimitPerMinute, &partner.LimitPerHour, &partner.LimitPerDay,
		&partner.Suspended, &partner.CreatedAt, &partner.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan partner: %w", err)
	}

	return &partner, nil
}
