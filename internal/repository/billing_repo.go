package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/firmenkern/recherche-api/internal/models"
)

// ========================================
// Account Repository
// ========================================

// PostgresAccountRepository implements AccountRepository for Postgres.
type PostgresAccountRepository struct {
	db DBTX
}

// NewPostgresAccountRepository creates a new Postgres account repository.
func NewPostgresAccountRepository(db DBTX) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

const accountColumns = `id, partner_id, balance_cents, warning_threshold_cents, credit_limit_cents,
	suspended, suspension_reason, warning_sent_at, created_at, updated_at`

func (r *PostgresAccountRepository) GetByPartnerID(ctx context.Context, partnerID string) (*models.BillingAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM fin_konto WHERE partner_id = $1`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, partnerID))
}

// EnsureAndLock creates the account on first use, then re-reads it under
// FOR UPDATE. ON CONFLICT DO NOTHING makes the create race-safe; the
// locked re-read always sees the winner's row.
func (r *PostgresAccountRepository) EnsureAndLock(ctx context.Context, partnerID string) (*models.BillingAccount, error) {
	insert := `INSERT INTO fin_konto (id, partner_id) VALUES ($1, $2) ON CONFLICT (partner_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, uuid.NewString(), partnerID); err != nil {
		return nil, fmt.Errorf("failed to ensure account: %w", err)
	}

	query := `SELECT ` + accountColumns + ` FROM fin_konto WHERE partner_id = $1 FOR UPDATE`
	account, err := r.scanAccount(r.db.QueryRowContext(ctx, query, partnerID))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("account for partner %s missing after ensure", partnerID)
	}
	return account, nil
}

func (r *PostgresAccountRepository) UpdateBalance(ctx context.Context, id string, balanceCents int64) error {
	query := `UPDATE fin_konto SET balance_cents = $1, updated_at = now() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, balanceCents, id)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) SetWarningSent(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE fin_konto SET warning_sent_at = $1, updated_at = now() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to set warning timestamp: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) SetSuspended(ctx context.Context, id string, suspended bool, reason string) error {
	query := `UPDATE fin_konto SET suspended = $1, suspension_reason = $2, updated_at = now() WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, suspended, nullString(reason), id)
	if err != nil {
		return fmt.Errorf("failed to set account suspension: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) scanAccount(row *sql.Row) (*models.BillingAccount, error) {
	var account models.BillingAccount
	var suspensionReason sql.NullString
	var warningSentAt sql.NullTime

	err := row.Scan(
		&account.ID, &account.PartnerID, &account.BalanceCents,
		&account.WarningThresholdCents, &account.CreditLimitCents,
		&account.Suspended, &suspensionReason, &warningSentAt,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	account.SuspensionReason = suspensionReason.String
	account.WarningSentAt = timePtr(warningSentAt)

	return &account, nil
}

// ========================================
// Transaction Repository
// ========================================

// PostgresTransactionRepository implements TransactionRepository for Postgres.
type PostgresTransactionRepository struct {
	db DBTX
}

// NewPostgresTransactionRepository creates a new Postgres transaction repository.
func NewPostgresTransactionRepository(db DBTX) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

const transactionColumns = `id, konto_id, type, amount_cents, balance_after_cents, description,
	reference_type, reference_id, actor, created_at`

func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *models.CreditTransaction) error {
	query := `
		INSERT INTO fin_transaktion (id, konto_id, type, amount_cents, balance_after_cents,
			description, reference_type, reference_id, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.KontoID, tx.Type, tx.AmountCents, tx.BalanceAfterCents,
		tx.Description, nullString(tx.ReferenceType), nullString(tx.ReferenceID),
		tx.Actor, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// ListByKonto returns newest first. Ordering by id is stable within a
// millisecond because ids are monotonic ULIDs.
func (r *PostgresTransactionRepository) ListByKonto(ctx context.Context, kontoID string, limit, offset int) ([]*models.CreditTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM fin_transaktion
		WHERE konto_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, kontoID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.CreditTransaction
	for rows.Next() {
		tx, err := r.scanTransactionFromRows(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *PostgresTransactionRepository) GetByReference(ctx context.Context, referenceType, referenceID string) (*models.CreditTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM fin_transaktion
		WHERE reference_type = $1 AND reference_id = $2 ORDER BY id ASC LIMIT 1`
	return r.scanTransaction(r.db.QueryRowContext(ctx, query, referenceType, referenceID))
}

func (r *PostgresTransactionRepository) scanTransaction(row *sql.Row) (*models.CreditTransaction, error) {
	var tx models.CreditTransaction
	var referenceType, referenceID sql.NullString

	err := row.Scan(
		&tx.ID, &tx.KontoID, &tx.Type, &tx.AmountCents, &tx.BalanceAfterCents,
		&tx.Description, &referenceType, &referenceID, &tx.Actor, &tx.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.ReferenceType = referenceType.String
	tx.ReferenceID = referenceID.String

	return &tx, nil
}

func (r *PostgresTransactionRepository) scanTransactionFromRows(rows *sql.Rows) (*models.CreditTransaction, error) {
	var tx models.CreditTransaction
	var referenceType, referenceID sql.NullString

	err := rows.Scan(
		&tx.ID, &tx.KontoID, &tx.Type, &tx.AmountCents, &tx.BalanceAfterCents,
		&tx.Description, &referenceType, &referenceID, &tx.Actor, &tx.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.ReferenceType = referenceType.String
	tx.ReferenceID = referenceID.String

	return &tx, nil
}
