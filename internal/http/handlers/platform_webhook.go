package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	svix "github.com/svix/svix-webhooks/go"

	"github.com/firmenkern/recherche-api/internal/config"
	"github.com/firmenkern/recherche-api/internal/service"
)

// PlatformWebhookHandler handles partner lifecycle events pushed by the
// platform backend.
type PlatformWebhookHandler struct {
	cfg      *config.Config
	partners *service.PartnerService
	logger   *slog.Logger
}

// NewPlatformWebhookHandler creates a new platform webhook handler.
func NewPlatformWebhookHandler(cfg *config.Config, partners *service.PartnerService, logger *slog.Logger) *PlatformWebhookHandler {
	return &PlatformWebhookHandler{
		cfg:      cfg,
		partners: partners,
		logger:   logger,
	}
}

// PlatformEvent represents a platform webhook event.
type PlatformEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// PlatformSuspensionEvent represents the payload of a partner.suspended
// event. A missing suspended field suspends the partner; an explicit
// false lifts the suspension.
type PlatformSuspensionEvent struct {
	ID        string `json:"id"`
	Suspended *bool  `json:"suspended"`
}

// HandleWebhook processes incoming platform webhooks.
func (h *PlatformWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodySize = 65536 // 64KB

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	// Verify webhook signature using Svix
	headers := http.Header{}
	headers.Set("svix-id", r.Header.Get("svix-id"))
	headers.Set("svix-timestamp", r.Header.Get("svix-timestamp"))
	headers.Set("svix-signature", r.Header.Get("svix-signature"))

	wh, err := svix.NewWebhook(h.cfg.PlatformWebhookSecret)
	if err != nil {
		h.logger.Error("failed to create webhook verifier", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := wh.Verify(payload, headers); err != nil {
		h.logger.Error("failed to verify webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var event PlatformEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("failed to parse webhook event", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := h.handleEvent(r.Context(), event); err != nil {
		// A malformed payload will not improve on redelivery; everything
		// else gets a 500 so the platform retries.
		if errors.Is(err, service.ErrInvalidInput) {
			h.logger.Warn("rejected webhook event", "type", event.Type, "error", err)
			w.WriteHeader(http.StatusOK)
			return
		}
		h.logger.Error("failed to handle webhook event", "type", event.Type, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleEvent routes events to appropriate handlers.
func (h *PlatformWebhookHandler) handleEvent(ctx context.Context, event PlatformEvent) error {
	h.logger.Info("received platform webhook", "type", event.Type)

	switch event.Type {
	case "partner.created", "partner.updated":
		return h.handlePartnerUpsert(ctx, event.Data)

	case "partner.suspended":
		return h.handlePartnerSuspended(ctx, event.Data)

	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		return nil
	}
}

// handlePartnerUpsert provisions or updates a partner record.
func (h *PlatformWebhookHandler) handlePartnerUpsert(ctx context.Context, data json.RawMessage) error {
	var evt service.PlatformPartnerEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return fmt.Errorf("%w: failed to parse partner event: %v", service.ErrInvalidInput, err)
	}

	partner, err := h.partners.UpsertFromPlatform(ctx, &evt)
	if err != nil {
		return err
	}

	h.logger.Info("partner provisioned from platform",
		"partner_id", partner.ID,
		"name", partner.Name,
	)

	return nil
}

// handlePartnerSuspended toggles a partner's suspension flag.
func (h *PlatformWebhookHandler) handlePartnerSuspended(ctx context.Context, data json.RawMessage) error {
	var evt PlatformSuspensionEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return fmt.Errorf("%w: failed to parse suspension event: %v", service.ErrInvalidInput, err)
	}
	if evt.ID == "" {
		return fmt.Errorf("%w: suspension event missing partner id", service.ErrInvalidInput)
	}

	suspended := true
	if evt.Suspended != nil {
		suspended = *evt.Suspended
	}

	if err := h.partners.SetSuspended(ctx, evt.ID, suspended); err != nil {
		return err
	}

	h.logger.Info("partner suspension updated",
		"partner_id", evt.ID,
		"suspended", suspended,
	)

	return nil
}
