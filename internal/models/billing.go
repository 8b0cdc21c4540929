// Package models defines the domain models for the application.
package models

import "time"

// ========================================
// Billing Account
// ========================================

// BillingAccount is a partner's prepaid credit account (fin_konto),
// 1:1 with Partner and created lazily on first debit or credit.
type BillingAccount struct {
	ID        string `json:"id"`
	PartnerID string `json:"partner_id"`

	BalanceCents          int64 `json:"balance_cents"`
	WarningThresholdCents int64 `json:"warning_threshold_cents"`
	CreditLimitCents      int64 `json:"credit_limit_cents"` // allowed overdraft; 0 = none

	Suspended        bool       `json:"suspended"`
	SuspensionReason string     `json:"suspension_reason,omitempty"`
	WarningSentAt    *time.Time `json:"warning_sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ========================================
// Credit Transactions
// ========================================

// TransactionType defines the type of credit transaction.
type TransactionType string

const (
	TxTypeDebit  TransactionType = "DEBIT"
	TxTypeCredit TransactionType = "CREDIT"
	TxTypeRefund TransactionType = "REFUND"
)

// SignedAmount returns the amount with the sign implied by the type.
func (t TransactionType) SignedAmount(amountCents int64) int64 {
	if t == TxTypeDebit {
		return -amountCents
	}
	return amountCents
}

// Reference ties a transaction to the entity that caused it.
type Reference struct {
	Type string `json:"type"` // e.g. "auftrag", "stripe_checkout", "manual"
	ID   string `json:"id"`
}

// CreditTransaction is one row of the append-only ledger
// (fin_transaktion). BalanceAfterCents always equals the running signed
// sum of the account's transactions.
type CreditTransaction struct {
	ID                string          `json:"id"`
	KontoID           string          `json:"konto_id"`
	Type              TransactionType `json:"type"`
	AmountCents       int64           `json:"amount_cents"` // always positive
	BalanceAfterCents int64           `json:"balance_after_cents"`
	Description       string          `json:"description"`
	ReferenceType     string          `json:"reference_type,omitempty"`
	ReferenceID       string          `json:"reference_id,omitempty"`
	Actor             string          `json:"actor"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ========================================
// Usage Records
// ========================================

// UsageRecord captures one partner-facing API call for audit and billing
// reconciliation (api_usage). Append-only.
type UsageRecord struct {
	ID             string    `json:"id"`
	PartnerID      string    `json:"partner_id"`
	Endpoint       string    `json:"endpoint"`
	Method         string    `json:"method"`
	ParametersJSON string    `json:"parameters_json,omitempty"`
	StatusCode     int       `json:"status_code"`
	ResultCount    int       `json:"result_count"`
	CostCents      int64     `json:"cost_cents"`
	ResponseTimeMs int       `json:"response_time_ms"`
	CreatedAt      time.Time `json:"created_at"`
}
