package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"

	"github.com/firmenkern/recherche-api/internal/billing"
	"github.com/firmenkern/recherche-api/internal/config"
	"github.com/firmenkern/recherche-api/internal/models"
	"github.com/firmenkern/recherche-api/internal/repository"
)

// referenceTypeStripeCheckout is the ledger reference type for settled
// checkout sessions; the partial unique index on fin_transaktion keys off
// it.
const referenceTypeStripeCheckout = "stripe_checkout"

// minTopupCents is the smallest accepted top-up (1 EUR).
const minTopupCents = 100

// ErrStripeNotConfigured indicates top-ups are unavailable because no
// Stripe secret key is set.
var ErrStripeNotConfigured = errors.New("stripe is not configured")

// TopupService creates Stripe Checkout sessions for credit top-ups and
// settles them when the checkout.session.completed webhook arrives.
type TopupService struct {
	cfg    *config.Config
	ledger *LedgerService
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewTopupService creates a new top-up service.
func NewTopupService(cfg *config.Config, ledger *LedgerService, repos *repository.Repositories, logger *slog.Logger) *TopupService {
	stripe.Key = cfg.StripeSecretKey

	return &TopupService{
		cfg:    cfg,
		ledger: ledger,
		repos:  repos,
		logger: logger,
	}
}

// CreateCheckout validates the euro amount and opens a Stripe Checkout
// session for it. Returns the hosted checkout URL.
func (s *TopupService) CreateCheckout(ctx context.Context, partner *models.Partner, amountEUR string) (string, error) {
	if s.cfg.StripeSecretKey == "" {
		return "", ErrStripeNotConfigured
	}

	d, err := decimal.NewFromString(strings.TrimSpace(amountEUR))
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a decimal amount", ErrInvalidInput, amountEUR)
	}
	cents, err := billing.EuroToCents(d)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if cents < minTopupCents {
		return "", fmt.Errorf("%w: minimum top-up is %s EUR", ErrInvalidInput, billing.CentsToEuro(minTopupCents))
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(string(stripe.CurrencyEUR)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Recherche credit top-up"),
				},
				UnitAmount: stripe.Int64(cents),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(s.cfg.TopupSuccessURL),
		CancelURL:  stripe.String(s.cfg.TopupCancelURL),
	}
	params.AddMetadata("partner_id", partner.ID)
	params.AddMetadata("amount_cents", strconv.FormatInt(cents, 10))

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.logger.Info("checkout session created",
		"partner_id", partner.ID,
		"session_id", sess.ID,
		"amount_cents", cents,
	)

	return sess.URL, nil
}

// SettleCheckout credits a partner account for a completed checkout
// session. Idempotent by session id: repeated webhook deliveries are
// no-ops, and the partial unique index on fin_transaktion turns a
// concurrent double settlement into a unique violation swallowed here.
func (s *TopupService) SettleCheckout(ctx context.Context, sessionID, partnerID string, amountCents int64) error {
	if sessionID == "" || partnerID == "" {
		return fmt.Errorf("%w: session id and partner id are required", ErrInvalidInput)
	}
	if amountCents <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidInput, amountCents)
	}

	existing, err := s.repos.Transaction.GetByReference(ctx, referenceTypeStripeCheckout, sessionID)
	if err != nil {
		return fmt.Errorf("failed to check for prior settlement: %w", err)
	}
	if existing != nil {
		s.logger.Info("checkout already settled", "session_id", sessionID)
		return nil
	}

	ref := models.Reference{Type: referenceTypeStripeCheckout, ID: sessionID}
	_, err = s.ledger.Credit(ctx, partnerID, amountCents, ref, "stripe",
		fmt.Sprintf("Top-up via Stripe checkout %s", sessionID))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			s.logger.Info("checkout settled concurrently", "session_id", sessionID)
			return nil
		}
		return fmt.Errorf("failed to credit top-up: %w", err)
	}

	s.logger.Info("top-up settled",
		"partner_id", partnerID,
		"session_id", sessionID,
		"amount_cents", amountCents,
	)

	return nil
}
