package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/lib/pq"

	"github.com/firmenkern/recherche-api/internal/dedup"
	"github.com/firmenkern/recherche-api/internal/models"
)

// PostgresCompanyRepository implements CompanyRepository for Postgres.
type PostgresCompanyRepository struct {
	db DBTX
}

// NewPostgresCompanyRepository creates a new Postgres company repository.
func NewPostgresCompanyRepository(db DBTX) *PostgresCompanyRepository {
	return &PostgresCompanyRepository{db: db}
}

const companyColumns = `id, firmierung, strasse, plz, ort, land, website, telefon, email,
	lat, lng, website_norm, telefon_norm, metadaten, created_at, updated_at`

// FindByExternalID looks a company up by a provider's external id. The
// source is inlined as a quoted literal so the query matches the partial
// expression index for that provider.
func (r *PostgresCompanyRepository) FindByExternalID(ctx context.Context, source, externalID string) (*models.Company, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM com_unternehmen WHERE metadaten->%s->>'external_id' = $1`,
		companyColumns, pq.QuoteLiteral(source),
	)
	return r.scanCompany(r.db.QueryRowContext(ctx, query, externalID))
}

func (r *PostgresCompanyRepository) FindByWebsite(ctx context.Context, websiteNorm string) (*models.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM com_unternehmen WHERE website_norm = $1 ORDER BY created_at ASC LIMIT 1`
	return r.scanCompany(r.db.QueryRowContext(ctx, query, websiteNorm))
}

func (r *PostgresCompanyRepository) FindByPhone(ctx context.Context, telefonNorm string) (*models.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM com_unternehmen WHERE telefon_norm = $1 ORDER BY created_at ASC LIMIT 1`
	return r.scanCompany(r.db.QueryRowContext(ctx, query, telefonNorm))
}

// FindNearby returns companies inside a bounding box around the point.
// The box over-approximates the radius; callers apply the precise
// distance check.
func (r *PostgresCompanyRepository) FindNearby(ctx context.Context, lat, lng, radiusM float64) ([]*models.Company, error) {
	latDelta := radiusM / 111320.0
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lngDelta := radiusM / (111320.0 * cosLat)

	query := `SELECT ` + companyColumns + ` FROM com_unternehmen
		WHERE lat BETWEEN $1 AND $2 AND lng BETWEEN $3 AND $4`
	rows, err := r.db.QueryContext(ctx, query, lat-latDelta, lat+latDelta, lng-lngDelta, lng+lngDelta)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby companies: %w", err)
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		company, err := r.scanCompanyFromRows(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, company)
	}
	return companies, rows.Err()
}

// Insert writes a new company. A unique violation on an external-id
// index surfaces as dedup.ErrConflict so the engine can count the row
// as a duplicate.
func (r *PostgresCompanyRepository) Insert(ctx context.Context, company *models.Company) error {
	metadaten, err := json.Marshal(company.Metadaten)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO com_unternehmen (id, firmierung, strasse, plz, ort, land, website, telefon,
			email, lat, lng, website_norm, telefon_norm, metadaten, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = r.db.ExecContext(ctx, query,
		company.ID, company.Firmierung,
		nullString(company.Strasse), nullString(company.PLZ), nullString(company.Ort),
		nullString(company.Land), nullString(company.Website), nullString(company.Telefon),
		nullString(company.Email), nullFloat(company.Lat), nullFloat(company.Lng),
		nullString(company.WebsiteNorm), nullString(company.TelefonNorm),
		metadaten, company.CreatedAt, company.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return dedup.ErrConflict
		}
		return fmt.Errorf("failed to insert company: %w", err)
	}
	return nil
}

func (r *PostgresCompanyRepository) Update(ctx context.Context, company *models.Company) error {
	metadaten, err := json.Marshal(company.Metadaten)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		UPDATE com_unternehmen
		SET firmierung = $1, strasse = $2, plz = $3, ort = $4, land = $5, website = $6,
			telefon = $7, email = $8, lat = $9, lng = $10, website_norm = $11,
			telefon_norm = $12, metadaten = $13, updated_at = now()
		WHERE id = $14
	`
	_, err = r.db.ExecContext(ctx, query,
		company.Firmierung,
		nullString(company.Strasse), nullString(company.PLZ), nullString(company.Ort),
		nullString(company.Land), nullString(company.Website), nullString(company.Telefon),
		nullString(company.Email), nullFloat(company.Lat), nullFloat(company.Lng),
		nullString(company.WebsiteNorm), nullString(company.TelefonNorm),
		metadaten, company.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update company: %w", err)
	}
	return nil
}

func (r *PostgresCompanyRepository) scanCompany(row *sql.Row) (*models.Company, error) {
	var company models.Company
	var strasse, plz, ort, land, website, telefon, email, websiteNorm, telefonNorm sql.NullString
	var lat, lng sql.NullFloat64
	var metadaten []byte

	err := row.Scan(
		&company.ID, &company.Firmierung, &strasse, &plz, &ort, &land,
		&website, &telefon, &email, &lat, &lng, &websiteNorm, &telefonNorm,
		&metadaten, &company.CreatedAt, &company.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan company: %w", err)
	}

	company.Strasse = strasse.String
	company.PLZ = plz.String
	company.Ort = ort.String
	company.Land = land.String
	company.Website = website.String
	company.Telefon = telefon.String
	company.Email = email.String
	company.WebsiteNorm = websiteNorm.String
	company.TelefonNorm = telefonNorm.String
	company.Lat = floatPtr(lat)
	company.Lng = floatPtr(lng)
	if len(metadaten) > 0 {
		if err := json.Unmarshal(metadaten, &company.Metadaten); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &company, nil
}

func (r *PostgresCompanyRepository) scanCompanyFromRows(rows *sql.Rows) (*models.Company, error) {
	var company models.Company
	var strasse, plz, ort, land, website, telefon, email, websiteNorm, telefonNorm sql.NullString
	var lat, lng sql.NullFloat64
	var metadaten []byte

	err := rows.Scan(
		&company.ID, &company.Firmierung, &strasse, &plz, &ort, &land,
		&website, &telefon, &email, &lat, &lng, &websiteNorm, &telefonNorm,
		&metadaten, &company.CreatedAt, &company.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan company: %w", err)
	}

	company.Strasse = strasse.String
	company.PLZ = plz.String
	company.Ort = ort.String
	company.Land = land.String
	company.Website = website.String
	company.Telefon = telefon.String
	company.Email = email.String
	company.WebsiteNorm = websiteNorm.String
	company.TelefonNorm = telefonNorm.String
	company.Lat = floatPtr(lat)
	company.Lng = floatPtr(lng)
	if len(metadaten) > 0 {
		if err := json.Unmarshal(metadaten, &company.Metadaten); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &company, nil
}
