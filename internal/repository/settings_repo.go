package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/firmenkern/recherche-api/internal/models"
)

// PostgresSettingsRepository implements SettingsRepository for Postgres.
type PostgresSettingsRepository struct {
	db DBTX
}

// NewPostgresSettingsRepository creates a new Postgres settings repository.
func NewPostgresSettingsRepository(db DBTX) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{db: db}
}

func (r *PostgresSettingsRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	query := `SELECT key, value, verschluesselt, updated_at FROM sys_einstellung WHERE key = $1`
	var setting models.Setting
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&setting.Key, &setting.Value, &setting.Verschluesselt, &setting.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan setting: %w", err)
	}
	return &setting, nil
}

func (r *PostgresSettingsRepository) GetAll(ctx context.Context) ([]*models.Setting, error) {
	query := `SELECT key, value, verschluesselt, updated_at FROM sys_einstellung ORDER BY key`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	var settings []*models.Setting
	for rows.Next() {
		var setting models.Setting
		if err := rows.Scan(&setting.Key, &setting.Value, &setting.Verschluesselt, &setting.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings = append(settings, &setting)
	}
	return settings, rows.Err()
}

func (r *PostgresSettingsRepository) Upsert(ctx context.Context, setting *models.Setting) error {
	query := `
		INSERT INTO sys_einstellung (key, value, verschluesselt, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			verschluesselt = EXCLUDED.verschluesselt,
			updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, query, setting.Key, setting.Value, setting.Verschluesselt)
	if err != nil {
		return fmt.Errorf("failed to upsert setting: %w", err)
	}
	return nil
}
