package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/firmenkern/recherche-api/internal/models"
)

// PostgresGeoRepository implements GeoRepository for Postgres. The
// underlying tables are read-only reference data.
type PostgresGeoRepository struct {
	db DBTX
}

// NewPostgresGeoRepository creates a new Postgres geo repository.
func NewPostgresGeoRepository(db DBTX) *PostgresGeoRepository {
	return &PostgresGeoRepository{db: db}
}

func (r *PostgresGeoRepository) GetOrt(ctx context.Context, id string) (*models.GeoOrt, error) {
	query := `SELECT id, name, kreis_id, lat, lng, radius_m FROM geo_ort WHERE id = $1`
	var ort models.GeoOrt
	var kreisID sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ort.ID, &ort.Name, &kreisID, &ort.Lat, &ort.Lng, &ort.RadiusM,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ort: %w", err)
	}
	ort.KreisID = kreisID.String
	return &ort, nil
}

func (r *PostgresGeoRepository) GetKreis(ctx context.Context, id string) (*models.GeoKreis, error) {
	query := `SELECT id, name, lat, lng, radius_m FROM geo_kreis WHERE id = $1`
	var kreis models.GeoKreis
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&kreis.ID, &kreis.Name, &kreis.Lat, &kreis.Lng, &kreis.RadiusM,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan kreis: %w", err)
	}
	return &kreis, nil
}

func (r *PostgresGeoRepository) GetPLZ(ctx context.Context, plz string) (*models.GeoPLZ, error) {
	query := `SELECT plz, lat, lng FROM geo_plz WHERE plz = $1`
	var row models.GeoPLZ
	err := r.db.QueryRowContext(ctx, query, plz).Scan(&row.PLZ, &row.Lat, &row.Lng)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan plz: %w", err)
	}
	return &row, nil
}

func (r *PostgresGeoRepository) GetKategorie(ctx context.Context, gcid string) (*models.GoogleKategorie, error) {
	query := `SELECT gcid, name FROM google_kategorie WHERE gcid = $1`
	var kategorie models.GoogleKategorie
	err := r.db.QueryRowContext(ctx, query, gcid).Scan(&kategorie.GCID, &kategorie.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan kategorie: %w", err)
	}
	return &kategorie, nil
}
