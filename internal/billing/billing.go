// Package billing implements the partner rate card and order cost
// calculation. Amounts are integer cents everywhere inside the service;
// euro values exist only at the HTTP boundary and are rejected unless
// they scale to whole cents.
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/firmenkern/recherche-api/internal/models"
)

// ErrFractionalCents is returned when a euro amount does not convert to a
// whole number of cents.
var ErrFractionalCents = errors.New("amount does not scale to whole cents")

// ErrInsufficientFunds is returned when a debit would push an account
// past its credit limit.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrAccountSuspended is returned when a debit hits a suspended account.
// Credits stay allowed so a negative balance can be cleared.
var ErrAccountSuspended = errors.New("account suspended")

// Default rate card in cents, applied when a partner has no overrides.
const (
	DefaultBaseFeeCents           int64 = 50
	DefaultPerResultStandardCents int64 = 5
	DefaultPerResultPremiumCents  int64 = 12
	DefaultPerResultKomplettCents int64 = 18
)

// RateCard is a partner's pricing: a fixed base fee per completed order
// plus a per-tier marginal price for each newly created company.
// Duplicates and updates are free.
type RateCard struct {
	BaseFeeCents           int64
	PerResultStandardCents int64
	PerResultPremiumCents  int64
	PerResultKomplettCents int64
}

// DefaultRateCard returns the platform default pricing.
func DefaultRateCard() RateCard {
	return RateCard{
		BaseFeeCents:           DefaultBaseFeeCents,
		PerResultStandardCents: DefaultPerResultStandardCents,
		PerResultPremiumCents:  DefaultPerResultPremiumCents,
		PerResultKomplettCents: DefaultPerResultKomplettCents,
	}
}

// CardFromPartner builds the effective rate card for a partner. A partner
// row always carries explicit values; zero is a valid price (free).
func CardFromPartner(p *models.Partner) RateCard {
	return RateCard{
		BaseFeeCents:           p.BaseFeeCents,
		PerResultStandardCents: p.PerResultStandardCents,
		PerResultPremiumCents:  p.PerResultPremiumCents,
		PerResultKomplettCents: p.PerResultKomplettCents,
	}
}

// PerResultCents returns the marginal price for the given tier.
func (c RateCard) PerResultCents(tier models.QualityTier) int64 {
	switch tier {
	case models.TierStandard:
		return c.PerResultStandardCents
	case models.TierPremium:
		return c.PerResultPremiumCents
	case models.TierKomplett:
		return c.PerResultKomplettCents
	}
	return 0
}

// CostCents computes the final order cost: base fee plus the marginal
// price for each newly created company.
func CostCents(card RateCard, tier models.QualityTier, newCount int) int64 {
	if newCount < 0 {
		newCount = 0
	}
	return card.BaseFeeCents + int64(newCount)*card.PerResultCents(tier)
}

// EstimateCents computes the pre-confirmation cost shown on a draft
// order: the worst case where every result up to the cap is new.
func EstimateCents(card RateCard, tier models.QualityTier, cap int) int64 {
	return CostCents(card, tier, cap)
}

// EuroToCents converts a euro amount to integer cents. Returns
// ErrFractionalCents when the value has sub-cent precision and an error
// for negative amounts.
func EuroToCents(eur decimal.Decimal) (int64, error) {
	if eur.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", eur)
	}
	cents := eur.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, fmt.Errorf("%w: %s EUR", ErrFractionalCents, eur)
	}
	return cents.IntPart(), nil
}

// CentsToEuro converts integer cents to a euro decimal for display.
func CentsToEuro(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}
