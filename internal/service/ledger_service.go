package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/firmenkern/recherche-api/internal/billing"
	"github.com/firmenkern/recherche-api/internal/metrics"
	"github.com/firmenkern/recherche-api/internal/models"
	"github.com/firmenkern/recherche-api/internal/repository"
)

// warningInterval is the minimum gap between low-balance warnings for the
// same account.
const warningInterval = 24 * time.Hour

// defaultWarningThresholdCents matches the fin_konto column default; used
// when presenting a partner that has no ledger activity yet.
const defaultWarningThresholdCents = 1000

// LedgerService posts debits and credits against partner credit accounts.
// Every posting locks the account row and appends to fin_transaktion in
// the same transaction, so balance_cents always equals the signed sum of
// the account's transactions.
type LedgerService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(repos *repository.Repositories, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		repos:  repos,
		logger: logger,
	}
}

// Debit charges a partner account in its own serializable transaction.
// Fails with billing.ErrAccountSuspended on a suspended account and with
// billing.ErrInsufficientFunds when the debit would push the balance past
// the account's credit limit.
func (s *LedgerService) Debit(ctx context.Context, partnerID string, amountCents int64, ref models.Reference, actor, description string) (*models.CreditTransaction, error) {
	return s.post(ctx, partnerID, models.TxTypeDebit, amountCents, ref, actor, description)
}

// Credit adds funds to a partner account in its own serializable
// transaction. Credits are accepted on suspended accounts so partners can
// clear a negative balance.
func (s *LedgerService) Credit(ctx context.Context, partnerID string, amountCents int64, ref models.Reference, actor, description string) (*models.CreditTransaction, error) {
	return s.post(ctx, partnerID, models.TxTypeCredit, amountCents, ref, actor, description)
}

// DebitInTx posts a debit inside the caller's transaction. The entry only
// becomes visible when the caller commits; the order settlement uses this
// so the charge and the status change land atomically.
func (s *LedgerService) DebitInTx(ctx context.Context, tx *sql.Tx, partnerID string, amountCents int64, ref models.Reference, actor, description string) (*models.CreditTransaction, error) {
	return s.postInTx(ctx, tx, partnerID, models.TxTypeDebit, amountCents, ref, actor, description)
}

// post wraps postInTx in a dedicated serializable transaction.
func (s *LedgerService) post(ctx context.Context, partnerID string, txType models.TransactionType, amountCents int64, ref models.Reference, actor, description string) (*models.CreditTransaction, error) {
	tx, err := s.repos.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	entry, err := s.postInTx(ctx, tx, partnerID, txType, amountCents, ref, actor, description)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, nil
}

// postInTx locks the account row, applies the posting rules and appends
// the ledger entry. The row lock is held only for the remainder of the
// caller's transaction; no network calls happen under it.
func (s *LedgerService) postInTx(ctx context.Context, tx *sql.Tx, partnerID string, txType models.TransactionType, amountCents int64, ref models.Reference, actor, description string) (*models.CreditTransaction, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %d", amountCents)
	}

	repos := s.repos.WithTx(tx)

	account, err := repos.Account.EnsureAndLock(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	if txType == models.TxTypeDebit {
		if account.Suspended {
			return nil, fmt.Errorf("account %s: %w", account.ID, billing.ErrAccountSuspended)
		}
		if account.BalanceCents-amountCents < -account.CreditLimitCents {
			return nil, fmt.Errorf("account %s: %w (balance %d, debit %d, credit limit %d)",
				account.ID, billing.ErrInsufficientFunds, account.BalanceCents, amountCents, account.CreditLimitCents)
		}
	}

	now := time.Now().UTC()
	balanceAfter := account.BalanceCents + txType.SignedAmount(amountCents)

	entry := &models.CreditTransaction{
		ID:                ulid.Make().String(),
		KontoID:           account.ID,
		Type:              txType,
		AmountCents:       amountCents,
		BalanceAfterCents: balanceAfter,
		Description:       description,
		ReferenceType:     ref.Type,
		ReferenceID:       ref.ID,
		Actor:             actor,
		CreatedAt:         now,
	}

	if err := repos.Transaction.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	if err := repos.Account.UpdateBalance(ctx, account.ID, balanceAfter); err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	if txType == models.TxTypeDebit && needsWarning(account, balanceAfter, now) {
		if err := repos.Account.SetWarningSent(ctx, account.ID, now); err != nil {
			return nil, fmt.Errorf("failed to record balance warning: %w", err)
		}
		s.logger.Warn("account balance below warning threshold",
			"partner_id", partnerID,
			"balance_cents", balanceAfter,
			"threshold_cents", account.WarningThresholdCents,
		)
	}

	metrics.LedgerTransactions.WithLabelValues(string(txType)).Inc()

	s.logger.Info("ledger entry posted",
		"partner_id", partnerID,
		"type", txType,
		"amount_cents", amountCents,
		"balance_after_cents", balanceAfter,
		"reference", ref.Type+":"+ref.ID,
	)

	return entry, nil
}

// needsWarning reports whether a post-debit balance should trigger a
// low-balance warning. At most one warning per account per 24 hours.
func needsWarning(account *models.BillingAccount, balanceAfter int64, now time.Time) bool {
	if balanceAfter >= account.WarningThresholdCents {
		return false
	}
	if account.WarningSentAt != nil && now.Sub(*account.WarningSentAt) < warningInterval {
		return false
	}
	return true
}

// Statement returns the account view for a partner plus its most recent
// ledger entries. A partner without ledger activity gets an empty
// statement; the account row is not created by reads.
func (s *LedgerService) Statement(ctx context.Context, partnerID string, limit int) (*models.BillingAccount, []*models.CreditTransaction, error) {
	account, err := s.repos.Account.GetByPartnerID(ctx, partnerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return &models.BillingAccount{
			PartnerID:             partnerID,
			WarningThresholdCents: defaultWarningThresholdCents,
		}, nil, nil
	}

	if limit <= 0 {
		limit = 20
	}
	entries, err := s.repos.Transaction.ListByKonto(ctx, account.ID, limit, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return account, entries, nil
}
