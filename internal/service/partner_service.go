package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/firmenkern/recherche-api/internal/billing"
	"github.com/firmenkern/recherche-api/internal/models"
	"github.com/firmenkern/recherche-api/internal/repository"
)

// platformSuspensionReason marks account suspensions driven by the
// platform webhook, as opposed to manual ones.
const platformSuspensionReason = "platform suspension"

// PlatformPartnerEvent is the partner record carried by partner.created
// and partner.updated platform webhooks. Rate card amounts arrive as euro
// decimal strings; nil fields leave the stored value untouched.
type PlatformPartnerEvent struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`

	// Plaintext API key, present on create and rotation. Only its
	// SHA-256 digest is stored.
	APIKey string `json:"api_key,omitempty"`

	BaseFeeEUR           *string `json:"base_fee_eur,omitempty"`
	PerResultStandardEUR *string `json:"per_result_standard_eur,omitempty"`
	PerResultPremiumEUR  *string `json:"per_result_premium_eur,omitempty"`
	PerResultKomplettEUR *string `json:"per_result_komplett_eur,omitempty"`

	LimitPerMinute *int `json:"limit_per_minute,omitempty"`
	LimitPerHour   *int `json:"limit_per_hour,omitempty"`
	LimitPerDay    *int `json:"limit_per_day,omitempty"`
}

// PartnerService mirrors platform partner records into par_partner and
// resolves API keys for the partner surface. Partners are provisioned by
// the platform; this service never invents them.
type PartnerService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewPartnerService creates a new partner service.
func NewPartnerService(repos *repository.Repositories, logger *slog.Logger) *PartnerService {
	return &PartnerService{
		repos:  repos,
		logger: logger,
	}
}

// HashAPIKey returns the hex SHA-256 digest stored for partner API keys.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Authenticate resolves an API key to its partner. Returns (nil, nil) for
// unknown keys; suspended partners are returned with the flag set so the
// caller can reject them distinctly.
func (s *PartnerService) Authenticate(ctx context.Context, apiKey string) (*models.Partner, error) {
	if apiKey == "" {
		return nil, nil
	}
	partner, err := s.repos.Partner.GetByAPIKeyHash(ctx, HashAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}
	return partner, nil
}

// Get returns a partner by id, for the admin surface.
func (s *PartnerService) Get(ctx context.Context, id string) (*models.Partner, error) {
	partner, err := s.repos.Partner.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load partner: %w", err)
	}
	return partner, nil
}

// UpsertFromPlatform applies a partner.created or partner.updated event.
// New partners start from the default rate card; euro amounts are rejected
// unless they scale to whole cents.
func (s *PartnerService) UpsertFromPlatform(ctx context.Context, evt *PlatformPartnerEvent) (*models.Partner, error) {
	if evt.ID == "" {
		return nil, fmt.Errorf("%w: partner id is required", ErrInvalidInput)
	}

	existing, err := s.repos.Partner.GetByID(ctx, evt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load partner: %w", err)
	}

	now := time.Now().UTC()
	partner := existing
	if partner == nil {
		card := billing.DefaultRateCard()
		partner = &models.Partner{
			ID:                     evt.ID,
			BaseFeeCents:           card.BaseFeeCents,
			PerResultStandardCents: card.PerResultStandardCents,
			PerResultPremiumCents:  card.PerResultPremiumCents,
			PerResultKomplettCents: card.PerResultKomplettCents,
			CreatedAt:              now,
		}
	}

	if evt.Name != "" {
		partner.Name = evt.Name
	}
	if evt.APIKey != "" {
		partner.APIKeyHash = HashAPIKey(evt.APIKey)
	}

	if evt.BaseFeeEUR != nil {
		partner.BaseFeeCents, err = parseEuroCents("base_fee_eur", *evt.BaseFeeEUR)
		if err != nil {
			return nil, err
		}
	}
	if evt.PerResultStandardEUR != nil {
		partner.PerResultStandardCents, err = parseEuroCents("per_result_standard_eur", *evt.PerResultStandardEUR)
		if err != nil {
			return nil, err
		}
	}
	if evt.PerResultPremiumEUR != nil {
		partner.PerResultPremiumCents, err = parseEuroCents("per_result_premium_eur", *evt.PerResultPremiumEUR)
		if err != nil {
			return nil, err
		}
	}
	if evt.PerResultKomplettEUR != nil {
		partner.PerResultKomplettCents, err = parseEuroCents("per_result_komplett_eur", *evt.PerResultKomplettEUR)
		if err != nil {
			return nil, err
		}
	}

	if evt.LimitPerMinute != nil {
		partner.LimitPerMinute = *evt.LimitPerMinute
	}
	if evt.LimitPerHour != nil {
		partner.LimitPerHour = *evt.LimitPerHour
	}
	if evt.LimitPerDay != nil {
		partner.LimitPerDay = *evt.LimitPerDay
	}

	partner.UpdatedAt = now

	if err := s.repos.Partner.Upsert(ctx, partner); err != nil {
		return nil, fmt.Errorf("failed to upsert partner: %w", err)
	}

	s.logger.Info("partner upserted",
		"partner_id", partner.ID,
		"name", partner.Name,
		"key_rotated", evt.APIKey != "",
	)

	return partner, nil
}

// SetSuspended applies a partner.suspended event. Suspension also blocks
// debits on the billing account; lifting it restores both.
func (s *PartnerService) SetSuspended(ctx context.Context, partnerID string, suspended bool) error {
	if partnerID == "" {
		return fmt.Errorf("%w: partner id is required", ErrInvalidInput)
	}

	if err := s.repos.Partner.SetSuspended(ctx, partnerID, suspended); err != nil {
		return fmt.Errorf("failed to update partner suspension: %w", err)
	}

	account, err := s.repos.Account.GetByPartnerID(ctx, partnerID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if account != nil {
		reason := ""
		if suspended {
			reason = platformSuspensionReason
		}
		if err := s.repos.Account.SetSuspended(ctx, account.ID, suspended, reason); err != nil {
			return fmt.Errorf("failed to update account suspension: %w", err)
		}
	}

	s.logger.Info("partner suspension updated", "partner_id", partnerID, "suspended", suspended)
	return nil
}

// parseEuroCents converts a euro decimal string to integer cents.
func parseEuroCents(field, value string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a decimal amount", ErrInvalidInput, field, value)
	}
	cents, err := billing.EuroToCents(d)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidInput, field, err)
	}
	return cents, nil
}
