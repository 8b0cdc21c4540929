package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/firmenkern/recherche-api/internal/models"
	"github.com/firmenkern/recherche-api/internal/repository"
)

// UsageService records partner API calls (api_usage) for audit and
// billing reconciliation.
type UsageService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewUsageService creates a new usage service.
func NewUsageService(repos *repository.Repositories, logger *slog.Logger) *UsageService {
	return &UsageService{
		repos:  repos,
		logger: logger,
	}
}

// Record appends one usage row. ID and timestamp are filled when absent.
func (s *UsageService) Record(ctx context.Context, rec *models.UsageRecord) error {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := s.repos.Usage.Create(ctx, rec); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// Summary aggregates a partner's usage since the given time.
func (s *UsageService) Summary(ctx context.Context, partnerID string, since time.Time) (*repository.UsageSummary, error) {
	summary, err := s.repos.Usage.SummaryByPartner(ctx, partnerID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	return summary, nil
}
