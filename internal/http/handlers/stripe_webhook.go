package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/firmenkern/recherche-api/internal/config"
	"github.com/firmenkern/recherche-api/internal/service"
)

// StripeWebhookHandler handles Stripe webhook events.
type StripeWebhookHandler struct {
	cfg    *config.Config
	topup  *service.TopupService
	logger *slog.Logger
}

// NewStripeWebhookHandler creates a new Stripe webhook handler.
func NewStripeWebhookHandler(cfg *config.Config, topup *service.TopupService, logger *slog.Logger) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		cfg:    cfg,
		topup:  topup,
		logger: logger,
	}
}

// HandleWebhook processes incoming Stripe webhooks.
// This is a raw HTTP handler since huma doesn't handle raw body verification well.
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodySize = 65536 // 64KB

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sigHeader, h.cfg.StripeWebhookSecret)
	if err != nil {
		h.logger.Error("failed to verify webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	// Settlement is idempotent by session id, so a 500 here lets Stripe
	// retry without risking a double credit.
	if err := h.handleEvent(r.Context(), event); err != nil {
		h.logger.Error("failed to handle webhook event", "type", event.Type, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleEvent routes events to appropriate handlers.
func (h *StripeWebhookHandler) handleEvent(ctx context.Context, event stripe.Event) error {
	h.logger.Info("received Stripe webhook", "type", event.Type, "id", event.ID)

	switch event.Type {
	case "checkout.session.completed":
		return h.handleCheckoutCompleted(ctx, event)

	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		return nil
	}
}

// handleCheckoutCompleted settles a completed top-up checkout.
func (h *StripeWebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	partnerID, ok := session.Metadata["partner_id"]
	if !ok || partnerID == "" {
		h.logger.Warn("checkout session missing partner_id", "session_id", session.ID)
		return nil // not one of ours
	}

	// AmountTotal is what was actually charged; the metadata copy only
	// covers sessions where Stripe omits it.
	amountCents := session.AmountTotal
	if amountCents <= 0 {
		if raw, ok := session.Metadata["amount_cents"]; ok {
			if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
				amountCents = parsed
			}
		}
	}
	if amountCents <= 0 {
		h.logger.Warn("checkout session has no amount", "session_id", session.ID)
		return nil
	}

	if err := h.topup.SettleCheckout(ctx, session.ID, partnerID, amountCents); err != nil {
		return fmt.Errorf("failed to settle checkout: %w", err)
	}

	h.logger.Info("settled top-up checkout",
		"partner_id", partnerID,
		"session_id", session.ID,
		"amount_cents", amountCents,
	)

	return nil
}
