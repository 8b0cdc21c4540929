package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/firmenkern/recherche-api/internal/models"
	"github.com/firmenkern/recherche-api/internal/service"
)

// usageSummaryWindow is the lookback for the partner view's usage block.
const usageSummaryWindow = 30 * 24 * time.Hour

// AdminHandler handles the admin endpoints.
type AdminHandler struct {
	settings *service.SettingsService
	partners *service.PartnerService
	orders   *service.OrderService
	usage    *service.UsageService
	logger   *slog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(settings *service.SettingsService, partners *service.PartnerService, orders *service.OrderService, usage *service.UsageService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		settings: settings,
		partners: partners,
		orders:   orders,
		usage:    usage,
		logger:   logger,
	}
}

// SettingResponse represents a runtime setting in API responses.
// Encrypted values arrive redacted.
type SettingResponse struct {
	Key            string `json:"key"`
	Value          string `json:"value"`
	Verschluesselt bool   `json:"verschluesselt"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

// ListSettingsOutput represents the settings listing response.
type ListSettingsOutput struct {
	Body struct {
		Einstellungen []SettingResponse `json:"einstellungen"`
	}
}

// ListSettings returns all stored runtime settings.
func (h *AdminHandler) ListSettings(ctx context.Context, input *struct{}) (*ListSettingsOutput, error) {
	settings, err := h.settings.ListRedacted(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list settings: " + err.Error())
	}

	out := &ListSettingsOutput{}
	out.Body.Einstellungen = make([]SettingResponse, 0, len(settings))
	for _, s := range settings {
		out.Body.Einstellungen = append(out.Body.Einstellungen, settingResponse(s))
	}
	return out, nil
}

// PutSettingInput represents a setting update request.
type PutSettingInput struct {
	Key  string `path:"key" doc:"Setting key"`
	Body struct {
		Value string `json:"value" doc:"Setting value"`
	}
}

// PutSettingOutput represents a setting update response.
type PutSettingOutput struct {
	Body SettingResponse
}

// PutSetting stores a runtime setting. Provider credentials are encrypted
// at rest; the dispatcher picks up changes on its next poll without a
// restart.
func (h *AdminHandler) PutSetting(ctx context.Context, input *PutSettingInput) (*PutSettingOutput, error) {
	setting, err := h.settings.Set(ctx, input.Key, input.Body.Value)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to store setting: " + err.Error())
	}

	return &PutSettingOutput{Body: settingResponse(setting)}, nil
}

func settingResponse(s *models.Setting) SettingResponse {
	resp := SettingResponse{
		Key:            s.Key,
		Value:          s.Value,
		Verschluesselt: s.Verschluesselt,
	}
	if !s.UpdatedAt.IsZero() {
		resp.UpdatedAt = s.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}

// PartnerResponse represents a partner in admin API responses.
type PartnerResponse struct {
	ID                     string `json:"id"`
	Name                   string `json:"name"`
	BaseFeeCents           int64  `json:"base_fee_cents"`
	PerResultStandardCents int64  `json:"per_result_standard_cents"`
	PerResultPremiumCents  int64  `json:"per_result_premium_cents"`
	PerResultKomplettCents int64  `json:"per_result_komplett_cents"`
	LimitPerMinute         int    `json:"limit_per_minute"`
	LimitPerHour           int    `json:"limit_per_hour"`
	LimitPerDay            int    `json:"limit_per_day"`
	Suspended              bool   `json:"suspended"`
	CreatedAt              string `json:"created_at"`
}

// GetPartnerInput represents a partner lookup request.
type GetPartnerInput struct {
	ID string `path:"id" doc:"Partner id"`
}

// UsageSummaryResponse represents aggregated partner API usage.
type UsageSummaryResponse struct {
	Requests       int   `json:"requests"`
	TotalCostCents int64 `json:"total_cost_cents"`
}

// GetPartnerOutput represents a partner lookup response.
type GetPartnerOutput struct {
	Body struct {
		Partner       PartnerResponse       `json:"partner"`
		Nutzung30Tage *UsageSummaryResponse `json:"nutzung_30_tage,omitempty"`
	}
}

// GetPartner returns a partner's rate card, limits and recent API usage.
// The API key hash is never exposed.
func (h *AdminHandler) GetPartner(ctx context.Context, input *GetPartnerInput) (*GetPartnerOutput, error) {
	partner, err := h.partners.Get(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get partner: " + err.Error())
	}
	if partner == nil {
		return nil, huma.Error404NotFound("partner not found")
	}

	out := &GetPartnerOutput{}
	out.Body.Partner = PartnerResponse{
		ID:                     partner.ID,
		Name:                   partner.Name,
		BaseFeeCents:           partner.BaseFeeCents,
		PerResultStandardCents: partner.PerResultStandardCents,
		PerResultPremiumCents:  partner.PerResultPremiumCents,
		PerResultKomplettCents: partner.PerResultKomplettCents,
		LimitPerMinute:         partner.LimitPerMinute,
		LimitPerHour:           partner.LimitPerHour,
		LimitPerDay:            partner.LimitPerDay,
		Suspended:              partner.Suspended,
		CreatedAt:              partner.CreatedAt.Format(time.RFC3339),
	}

	// Usage trouble degrades the view, it never fails the lookup
	summary, err := h.usage.Summary(ctx, partner.ID, time.Now().Add(-usageSummaryWindow))
	if err != nil {
		h.logger.Warn("failed to summarize partner usage", "partner_id", partner.ID, "error", err)
	} else if summary != nil {
		out.Body.Nutzung30Tage = &UsageSummaryResponse{
			Requests:       summary.Requests,
			TotalCostCents: summary.TotalCostCents,
		}
	}

	return out, nil
}

// AdminListOrdersInput represents the cross-partner order listing request.
type AdminListOrdersInput struct {
	Status string `query:"status" doc:"Filter by status (ENTWURF, CONFIRMED, PROCESSING, COMPLETED, FAILED)"`
	Limit  int    `query:"limit" default:"50" maximum:"200" doc:"Number of orders to return"`
	Offset int    `query:"offset" default:"0" doc:"Offset for pagination"`
}

// AdminListOrdersOutput represents the cross-partner order listing response.
type AdminListOrdersOutput struct {
	Body struct {
		Auftraege []OrderResponse `json:"auftraege"`
	}
}

// ListOrders returns orders across all partners, newest first.
func (h *AdminHandler) ListOrders(ctx context.Context, input *AdminListOrdersInput) (*AdminListOrdersOutput, error) {
	orders, err := h.orders.AdminList(ctx, input.Status, input.Limit, input.Offset)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to list orders: " + err.Error())
	}

	out := &AdminListOrdersOutput{}
	out.Body.Auftraege = orderResponses(orders)
	return out, nil
}
