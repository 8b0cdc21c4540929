// Package repository defines repository interfaces for data access.
// Note: Partner identity and provisioning are handled by the surrounding
// platform; partner rows are mirrored here via platform webhooks.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/firmenkern/recherche-api/internal/models"
)

// DBTX is the subset of database handle methods repositories use.
// Both *sql.DB and *sql.Tx satisfy it, so repositories compose into a
// caller-owned transaction via Repositories.WithTx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OrderRepository defines methods for recherche order data access.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	ListByPartner(ctx context.Context, partnerID string, status models.OrderStatus, limit, offset int) ([]*models.Order, error)
	ListByStatus(ctx context.Context, status models.OrderStatus, limit, offset int) ([]*models.Order, error)
	// Confirm transitions ENTWURF to CONFIRMED and returns the updated
	// order, or nil when the order is missing or not in ENTWURF.
	Confirm(ctx context.Context, id string) (*models.Order, error)
	// LeaseNext claims the oldest CONFIRMED order with attempts left,
	// moving it to PROCESSING. Returns nil when nothing is leasable.
	// Safe under concurrent workers (FOR UPDATE SKIP LOCKED).
	LeaseNext(ctx context.Context) (*models.Order, error)
	// Complete marks a leased order COMPLETED with its counters and the
	// billed cost.
	Complete(ctx context.Context, id string, rawCount, newCount, duplicateCount, updatedCount int, actualCostCents int64) error
	// Fail marks a leased order FAILED. The message is truncated for
	// storage.
	Fail(ctx context.Context, id, message string) error
	// SweepStale fails orders stuck in PROCESSING longer than maxAge and
	// returns how many were swept.
	SweepStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

// RawResultRepository defines methods for raw provider result data access.
// Rows are immutable once written.
type RawResultRepository interface {
	CreateBatch(ctx context.Context, results []*models.RawResult) error
	GetByAuftragID(ctx context.Context, auftragID string) ([]*models.RawResult, error)
}

// CompanyRepository defines methods for the company directory. The lookup
// methods satisfy the dedup engine's directory contract; Insert reports
// dedup.ErrConflict on an external-id unique violation.
type CompanyRepository interface {
	FindByExternalID(ctx context.Context, source, externalID string) (*models.Company, error)
	FindByWebsite(ctx context.Context, websiteNorm string) (*models.Company, error)
	FindByPhone(ctx context.Context, telefonNorm string) (*models.Company, error)
	FindNearby(ctx context.Context, lat, lng, radiusM float64) ([]*models.Company, error)
	Insert(ctx context.Context, company *models.Company) error
	Update(ctx context.Context, company *models.Company) error
}

// PartnerRepository defines methods for partner data access.
type PartnerRepository interface {
	GetByID(ctx context.Context, id string) (*models.Partner, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.Partner, error)
	Upsert(ctx context.Context, partner *models.Partner) error
	SetSuspended(ctx context.Context, id string, suspended bool) error
}

// AccountRepository defines methods for prepaid credit accounts.
type AccountRepository interface {
	GetByPartnerID(ctx context.Context, partnerID string) (*models.BillingAccount, error)
	// EnsureAndLock creates the account row if missing and returns it
	// under a row lock. Must run on a transaction-bound repository.
	EnsureAndLock(ctx context.Context, partnerID string) (*models.BillingAccount, error)
	UpdateBalance(ctx context.Context, id string, balanceCents int64) error
	SetWarningSent(ctx context.Context, id string, at time.Time) error
	SetSuspended(ctx context.Context, id string, suspended bool, reason string) error
}

// TransactionRepository defines methods for the append-only credit ledger.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.CreditTransaction) error
	ListByKonto(ctx context.Context, kontoID string, limit, offset int) ([]*models.CreditTransaction, error)
	// GetByReference returns the first transaction recorded for a
	// reference, used for settlement idempotency.
	GetByReference(ctx context.Context, referenceType, referenceID string) (*models.CreditTransaction, error)
}

// SettingsRepository defines methods for admin settings.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	GetAll(ctx context.Context) ([]*models.Setting, error)
	Upsert(ctx context.Context, setting *models.Setting) error
}

// UsageRepository defines methods for API usage records.
type UsageRepository interface {
	Create(ctx context.Context, record *models.UsageRecord) error
	SummaryByPartner(ctx context.Context, partnerID string, since time.Time) (*UsageSummary, error)
}

// UsageSummary represents aggregated usage data for one partner.
type UsageSummary struct {
	Requests       int   `json:"requests"`
	TotalCostCents int64 `json:"total_cost_cents"`
}

// GeoRepository defines lookups over the geo/category reference tables.
// It satisfies the geo resolver's reference store contract.
type GeoRepository interface {
	GetOrt(ctx context.Context, id string) (*models.GeoOrt, error)
	GetKreis(ctx context.Context, id string) (*models.GeoKreis, error)
	GetPLZ(ctx context.Context, plz string) (*models.GeoPLZ, error)
	GetKategorie(ctx context.Context, gcid string) (*models.GoogleKategorie, error)
}

// Repositories holds all repository instances.
type Repositories struct {
	db *sql.DB

	Order       OrderRepository
	RawResult   RawResultRepository
	Company     CompanyRepository
	Partner     PartnerRepository
	Account     AccountRepository
	Transaction TransactionRepository
	Settings    SettingsRepository
	Usage       UsageRepository
	Geo         GeoRepository
}

// NewRepositories creates all repository instances on a connection pool.
func NewRepositories(db *sql.DB) *Repositories {
	r := newRepositories(db)
	r.db = db
	return r
}

func newRepositories(db DBTX) *Repositories {
	return &Repositories{
		Order:       NewPostgresOrderRepository(db),
		RawResult:   NewPostgresRawResultRepository(db),
		Company:     NewPostgresCompanyRepository(db),
		Partner:     NewPostgresPartnerRepository(db),
		Account:     NewPostgresAccountRepository(db),
		Transaction: NewPostgresTransactionRepository(db),
		Settings:    NewPostgresSettingsRepository(db),
		Usage:       NewPostgresUsageRepository(db),
		Geo:         NewPostgresGeoRepository(db),
	}
}

// WithTx returns a repository set whose statements run on tx. The caller
// owns commit and rollback.
func (r *Repositories) WithTx(tx *sql.Tx) *Repositories {
	return newRepositories(tx)
}

// BeginTx starts a transaction on the underlying pool.
func (r *Repositories) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, opts)
}
