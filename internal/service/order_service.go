package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/firmenkern/recherche-api/internal/billing"
	"github.com/firmenkern/recherche-api/internal/models"
	"github.com/firmenkern/recherche-api/internal/repository"
)

// ErrOrderNotDraft indicates a confirmation attempt on an order that has
// already left the draft state.
var ErrOrderNotDraft = errors.New("order can only be confirmed from draft")

// maxOrderAttempts is how many leases an order gets before the dispatcher
// stops picking it up.
const maxOrderAttempts = 3

// maxPageSize caps list pagination.
const maxPageSize = 200

// OrderService handles the partner-facing order lifecycle up to the
// hand-off to the dispatcher: draft creation with a cost estimate, the
// draft→confirmed transition and scoped reads.
type OrderService struct {
	repos    *repository.Repositories
	settings *SettingsService
	logger   *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(repos *repository.Repositories, settings *SettingsService, logger *slog.Logger) *OrderService {
	return &OrderService{
		repos:    repos,
		settings: settings,
		logger:   logger,
	}
}

// CreateOrderInput carries the order parameters from the API.
type CreateOrderInput struct {
	GeoOrtID     string
	GeoKreisID   string
	PLZ          string
	CategoryGCID string
	Freitext     string
	QualityTier  string
}

// Create validates the input and stores a draft order with its worst-case
// cost estimate. Geo references are not resolved here; an unknown id
// surfaces when the order is dispatched.
func (s *OrderService) Create(ctx context.Context, partner *models.Partner, in CreateOrderInput) (*models.Order, error) {
	tier, ok := models.ParseQualityTier(in.QualityTier)
	if !ok {
		return nil, fmt.Errorf("%w: unknown qualitaets_stufe %q", ErrInvalidInput, in.QualityTier)
	}

	geoSignals := 0
	for _, v := range []string{in.GeoOrtID, in.GeoKreisID, in.PLZ} {
		if strings.TrimSpace(v) != "" {
			geoSignals++
		}
	}
	if geoSignals != 1 {
		return nil, fmt.Errorf("%w: exactly one of geo_ort_id, geo_kreis_id, plz is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.CategoryGCID) == "" && strings.TrimSpace(in.Freitext) == "" {
		return nil, fmt.Errorf("%w: google_kategorie_gcid or branche_freitext is required", ErrInvalidInput)
	}

	// Worst case every result up to the cap is a new company.
	resultCap := s.settings.MaxResultsCap(ctx)
	card := billing.CardFromPartner(partner)
	estimate := billing.EstimateCents(card, tier, resultCap)

	order := &models.Order{
		ID:                 uuid.NewString(),
		PartnerID:          partner.ID,
		QualityTier:        tier,
		GeoOrtID:           strings.TrimSpace(in.GeoOrtID),
		GeoKreisID:         strings.TrimSpace(in.GeoKreisID),
		PLZ:                strings.TrimSpace(in.PLZ),
		CategoryGCID:       strings.TrimSpace(in.CategoryGCID),
		Freitext:           strings.TrimSpace(in.Freitext),
		Status:             models.OrderStatusDraft,
		MaxAttempts:        maxOrderAttempts,
		EstimatedCostCents: estimate,
		CreatedAt:          time.Now().UTC(),
	}

	if err := s.repos.Order.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("order created",
		"order_id", order.ID,
		"partner_id", partner.ID,
		"tier", tier,
		"estimated_cost_cents", estimate,
	)

	return order, nil
}

// Confirm moves a draft order to CONFIRMED. Returns (nil, nil) when the
// order does not exist or belongs to another partner, and ErrOrderNotDraft
// when it exists but has already left the draft state.
func (s *OrderService) Confirm(ctx context.Context, partnerID, orderID string) (*models.Order, error) {
	order, err := s.repos.Order.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil || order.PartnerID != partnerID {
		return nil, nil
	}

	confirmed, err := s.repos.Order.Confirm(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}
	if confirmed == nil {
		return nil, fmt.Errorf("%w: status is %s", ErrOrderNotDraft, order.Status)
	}

	s.logger.Info("order confirmed", "order_id", orderID, "partner_id", partnerID)
	return confirmed, nil
}

// Get returns an order scoped to its partner; (nil, nil) when missing or
// foreign.
func (s *OrderService) Get(ctx context.Context, partnerID, orderID string) (*models.Order, error) {
	order, err := s.repos.Order.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil || order.PartnerID != partnerID {
		return nil, nil
	}
	return order, nil
}

// List returns a partner's orders, optionally filtered by status.
func (s *OrderService) List(ctx context.Context, partnerID, status string, limit, offset int) ([]*models.Order, error) {
	filter, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	limit = clampPageSize(limit)
	if offset < 0 {
		offset = 0
	}
	orders, err := s.repos.Order.ListByPartner(ctx, partnerID, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Results returns the raw provider results of a partner's order in
// insertion order; (nil, nil) when the order is missing or foreign.
func (s *OrderService) Results(ctx context.Context, partnerID, orderID string) (*models.Order, []*models.RawResult, error) {
	order, err := s.Get(ctx, partnerID, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, nil
	}

	raws, err := s.repos.RawResult.GetByAuftragID(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load raw results: %w", err)
	}
	return order, raws, nil
}

// AdminGet returns an order without partner scoping.
func (s *OrderService) AdminGet(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.repos.Order.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}

// AdminList returns orders across all partners, optionally filtered by
// status.
func (s *OrderService) AdminList(ctx context.Context, status string, limit, offset int) ([]*models.Order, error) {
	filter, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	limit = clampPageSize(limit)
	if offset < 0 {
		offset = 0
	}
	orders, err := s.repos.Order.ListByStatus(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// parseStatusFilter maps an optional status query to its enum value.
// Empty means no filter.
func parseStatusFilter(status string) (models.OrderStatus, error) {
	if strings.TrimSpace(status) == "" {
		return "", nil
	}
	parsed, ok := models.ParseOrderStatus(status)
	if !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return parsed, nil
}

func clampPageSize(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
