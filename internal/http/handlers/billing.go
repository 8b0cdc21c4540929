package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/firmenkern/recherche-api/internal/models"
	"github.com/firmenkern/recherche-api/internal/service"
)

// statementLimit is how many recent ledger entries the account view
// carries.
const statementLimit = 50

// BillingHandler handles the partner billing endpoints.
type BillingHandler struct {
	ledger *service.LedgerService
	topup  *service.TopupService
}

// NewBillingHandler creates a new billing handler.
func NewBillingHandler(ledger *service.LedgerService, topup *service.TopupService) *BillingHandler {
	return &BillingHandler{
		ledger: ledger,
		topup:  topup,
	}
}

// AccountResponse represents a billing account in API responses.
type AccountResponse struct {
	PartnerID             string `json:"partner_id"`
	BalanceCents          int64  `json:"balance_cents"`
	WarningThresholdCents int64  `json:"warning_threshold_cents"`
	CreditLimitCents      int64  `json:"credit_limit_cents"`
	Suspended             bool   `json:"suspended"`
	SuspensionReason      string `json:"suspension_reason,omitempty"`
}

// TransactionResponse represents a ledger entry in API responses.
type TransactionResponse struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	AmountCents       int64  `json:"amount_cents"`
	BalanceAfterCents int64  `json:"balance_after_cents"`
	Description       string `json:"description,omitempty"`
	ReferenceType     string `json:"reference_type,omitempty"`
	ReferenceID       string `json:"reference_id,omitempty"`
	Actor             string `json:"actor"`
	CreatedAt         string `json:"created_at"`
}

// GetAccountOutput represents the account statement response.
type GetAccountOutput struct {
	Body struct {
		Konto         AccountResponse       `json:"konto"`
		Transaktionen []TransactionResponse `json:"transaktionen"`
	}
}

// GetAccount returns the partner's credit account and its most recent
// ledger entries. Partners without ledger activity get an empty
// statement.
func (h *BillingHandler) GetAccount(ctx context.Context, input *struct{}) (*GetAccountOutput, error) {
	partner := getPartner(ctx)
	if partner == nil {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	account, entries, err := h.ledger.Statement(ctx, partner.ID, statementLimit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load account: " + err.Error())
	}

	out := &GetAccountOutput{}
	out.Body.Konto = accountResponse(account)
	out.Body.Transaktionen = make([]TransactionResponse, 0, len(entries))
	for _, e := range entries {
		out.Body.Transaktionen = append(out.Body.Transaktionen, TransactionResponse{
			ID:                e.ID,
			Type:              string(e.Type),
			AmountCents:       e.AmountCents,
			BalanceAfterCents: e.BalanceAfterCents,
			Description:       e.Description,
			ReferenceType:     e.ReferenceType,
			ReferenceID:       e.ReferenceID,
			Actor:             e.Actor,
			CreatedAt:         e.CreatedAt.Format(time.RFC3339),
		})
	}
	return out, nil
}

func accountResponse(a *models.BillingAccount) AccountResponse {
	return AccountResponse{
		PartnerID:             a.PartnerID,
		BalanceCents:          a.BalanceCents,
		WarningThresholdCents: a.WarningThresholdCents,
		CreditLimitCents:      a.CreditLimitCents,
		Suspended:             a.Suspended,
		SuspensionReason:      a.SuspensionReason,
	}
}

// CreateTopupInput represents a top-up request.
type CreateTopupInput struct {
	Body struct {
		AmountEUR string `json:"amount_eur" example:"50.00" doc:"Top-up amount in euros, minimum 1 EUR"`
	}
}

// CreateTopupOutput represents a top-up response. The caller completes
// the payment on the hosted Stripe checkout page.
type CreateTopupOutput struct {
	Body struct {
		CheckoutURL string `json:"checkout_url"`
	}
}

// CreateTopup opens a Stripe Checkout session for a credit top-up. The
// account is credited when the checkout.session.completed webhook
// arrives, not here.
func (h *BillingHandler) CreateTopup(ctx context.Context, input *CreateTopupInput) (*CreateTopupOutput, error) {
	partner := getPartner(ctx)
	if partner == nil {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	url, err := h.topup.CreateCheckout(ctx, partner, input.Body.AmountEUR)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		if errors.Is(err, service.ErrStripeNotConfigured) {
			return nil, huma.Error503ServiceUnavailable("top-ups are not available")
		}
		return nil, huma.Error500InternalServerError("failed to create checkout: " + err.Error())
	}

	out := &CreateTopupOutput{}
	out.Body.CheckoutURL = url
	return out, nil
}
