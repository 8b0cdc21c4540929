package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/firmenkern/recherche-api/internal/models"
	"github.com/firmenkern/recherche-api/internal/repository"
)

func testPartner() *models.Partner {
	return &models.Partner{
		ID:                     "partner-1",
		Name:                   "Acme GmbH",
		BaseFeeCents:           50,
		PerResultStandardCents: 5,
		PerResultPremiumCents:  12,
		PerResultKomplettCents: 18,
	}
}

func newTestOrderService(orderRepo *mockOrderRepository, settingsRepo *mockSettingsRepository, rawRepo *mockRawResultRepository) *OrderService {
	repos := &repository.Repositories{
		Order:     orderRepo,
		Settings:  settingsRepo,
		RawResult: rawRepo,
	}
	logger := slog.Default()
	settings := NewSettingsService(repos, nil, logger)
	return NewOrderService(repos, settings, logger)
}

// ========================================
// Create Tests
// ========================================

func TestOrderService_Create(t *testing.T) {
	t.Run("creates draft order with worst-case estimate", func(t *testing.T) {
		orderRepo := newMockOrderRepository()
		svc := newTestOrderService(orderRepo, newMockSettingsRepository(), newMockRawResultRepository())

		order, err := svc.Create(context.Background(), testPartner(), CreateOrderInput{
			GeoOrtID:     "ort-123",
			CategoryGCID: "gcid:plumber",
			QualityTier:  "standard",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if order == nil {
			t.Fatal("expected order, got nil")
		}
		if order.Status != models.OrderStatusDraft {
			t.Errorf("Status = %q, want %q", order.Status, models.OrderStatusDraft)
		}
		if order.QualityTier != models.TierStandard {
			t.Errorf("QualityTier = %q, want %q", order.QualityTier, models.TierStandard)
		}
		if order.MaxAttempts != 3 {
			t.Errorf("MaxAttempts = %d, want 3", order.MaxAttempts)
		}
		// Base fee 50 plus 100 results at 5 cents.
		if order.EstimatedCostCents != 550 {
			t.Errorf("EstimatedCostCents = %d, want 550", order.EstimatedCostCents)
		}

		stored, _ := orderRepo.GetByID(context.Background(), order.ID)
		if stored == nil {
			t.Fatal("expected order in repo")
		}
		if stored.PartnerID != "partner-1" {
			t.Errorf("PartnerID = %q, want %q", stored.PartnerID, "partner-1")
		}
	})

	t.Run("estimate uses configured result cap and partner rates", func(t *testing.T) {
		orderRepo := newMockOrderRepository()
		settingsRepo := newMockSettingsRepository()
		settingsRepo.Upsert(context.Background(), &models.Setting{
			Key:   models.SettingBulkActionMax,
			Value: "25",
		})
		svc := newTestOrderService(orderRepo, settingsRepo, newMockRawResultRepository())

		partner := testPartner()
		partner.BaseFeeCents = 100
		partner.PerResultPremiumCents = 20

		order, err := svc.Create(context.Background(), partner, CreateOrderInput{
			PLZ:         "10115",
			Freitext:    "Sanitär",
			QualityTier: "PREMIUM",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		// Base fee 100 plus 25 results at 20 cents.
		if order.EstimatedCostCents != 600 {
			t.Errorf("EstimatedCostCents = %d, want 600", order.EstimatedCostCents)
		}
	})

	t.Run("trims whitespace from input fields", func(t *testing.T) {
		orderRepo := newMockOrderRepository()
		svc := newTestOrderService(orderRepo, newMockSettingsRepository(), newMockRawResultRepository())

		order, err := svc.Create(context.Background(), testPartner(), CreateOrderInput{
			GeoKreisID:  "  kreis-9  ",
			Freitext:    " Dachdecker ",
			QualityTier: "komplett",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if order.GeoKreisID != "kreis-9" {
			t.Errorf("GeoKreisID = %q, want %q", order.GeoKreisID, "kreis-9")
		}
		if order.Freitext != "Dachdecker" {
			t.Errorf("Freitext = %q, want %q", order.Freitext, "Dachdecker")
		}
	})

	t.Run("rejects unknown quality tier", func(t *testing.T) {
		svc := newTestOrderService(newMockOrderRepository(), newMockSettingsRepository(), newMockRawResultRepository())

		_, err := svc.Create(context.Background(), testPartner(), CreateOrderInput{
			GeoOrtID:     "ort-123",
			CategoryGCID: "gcid:plumber",
			QualityTier:  "deluxe",
		})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("rejects missing geo signal", func(t *testing.T) {
		svc := newTestOrderService(newMockOrderRepository(), newMockSettingsRepository(), newMockRawResultRepository())

		_, err := svc.Create(context.Background(), testPartner(), CreateOrderInput{
			CategoryGCID: "gcid:plumber",
			QualityTier:  "standard",
		})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("rejects multiple geo signals", func(t *testing.T) {
		svc := newTestOrderService(newMockOrderRepository(), newMockSettingsRepository(), newMockRawResultRepository())

		_, err := svc.Create(context.Background(), testPartner(), CreateOrderInput{
			GeoOrtID:     "ort-123",
			PLZ:          "10115",
			CategoryGCID: "gcid:plumber",
			QualityTier:  "standard",
		})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("rejects missing category and freitext", func(t *testing.T) {
		svc := newTestOrderService(newMockOrderRepository(), newMockSettingsRepository(), newMockRawResultRepository())

		_, err := svc.Create(context.Background(), testPartner(), CreateOrderInput{
			GeoOrtID:    "ort-123",
			QualityTier: "standard",
		})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

// ========================================
// Confirm Tests
// ========================================

func TestOrderService_Confirm(t *testing.T) {
	t.Run("confirms a draft order", func(t *testing.T) {
		orderRepo := newMockOrderRepository()
		svc := newTestOrderService(orderRepo, newMockSettingsRepository(), newMockRawResultRepository())

		order, err := svc.Create(context.Background(), testPartner(), CreateOrderInput{
			GeoOrtID:     "ort-123",
			CategoryGCID: "gcid:plumber",
			QualityTier:  "standard",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		confirmed, err := svc.Confirm(context.Background(), "partner-1", order.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if confirmed == nil {
			t.Fatal("expected confirmed order, got nil")
		}
		if confirmed.Status != models.OrderStatusConfirmed {
			t.Errorf("Status = %q, want %q", confirmed.Status, models.OrderStatusConfirmed)
		}
		if confirmed.ConfirmedAt == nil {
			t.Error("expected ConfirmedAt to be set")
		}
	})

	t.Run("returns nil for unknown order", func(t *testing.T) {
		svc := newTestOrderService(newMockOrderRepository(), newMockSettingsRepository(), newMockRawResultRepository())

		confirmed, err := svc.Confirm(context.Background(), "partner-1", "missing")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if confirmed != nil {
			t.Errorf("expected nil order, got %+v", confirmed)
		}
	})

	t.Run("returns nil for another partner's order", func(t *testing.T) {
		orderRepo := newMockOrderRepository()
		svc := newTestOrderService(orderRepo, newMockSettingsRepository(), newMockRawResultRepository())

		order, _ := svc.Create(context.Background(), testPartner(), CreateOrderInput{
			GeoOrtID:     "ort-123",
			CategoryGCID: "gcid:plumber",
			QualityTier:  "standard",
		})

		confirmed, err := svc.Confirm(context.Background(), "partner-2", order.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if confirmed != nil {
			t.Error("expected nil for foreign order")
		}
	})

	t.Run("rejects confirming twice", func(t *testing.T) {
		orderRepo := newMockOrderRepository()
		svc := newTestOrderService(orderRepo, newMockSettingsRepository(), newMockRawResultRepository())

		order, _ := svc.Create(context.Background(), testPartner(), CreateOrderInput{
			GeoOrtID:     "ort-123",
			CategoryGCID: "gcid:plumber",
			QualityTier:  "standard",
		})
		if _, err := svc.Confirm(context.Background(), "partner-1", order.ID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		_, err := svc.Confirm(context.Background(), "partner-1", order.ID)
		if !errors.Is(err, ErrOrderNotDraft) {
			t.Errorf("expected ErrOrderNotDraft, got %v", err)
		}
	})
}

// ========================================
// Get / List Tests
// ========================================

func TestOrderService_Get(t *testing.T) {
	orderRepo := newMockOrderRepository()
	svc := newTestOrderService(orderRepo, newMockSettingsRepository(), newMockRawResultRepository())

	order, err := svc.Create(context.Background(), testPartner(), CreateOrderInput{
		GeoOrtID:     "ort-123",
		CategoryGCID: "gcid:plumber",
		QualityTier:  "standard",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	t.Run("returns own order", func(t *testing.T) {
		got, err := svc.Get(context.Background(), "partner-1", order.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got == nil || got.ID != order.ID {
			t.Errorf("expected order %s, got %+v", order.ID, got)
		}
	})

	t.Run("hides foreign order", func(t *testing.T) {
		got, err := svc.Get(context.Background(), "partner-2", order.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != nil {
			t.Error("expected nil for foreign order")
		}
	})
}

func TestOrderService_List(t *testing.T) {
	orderRepo := newMockOrderRepository()
	svc := newTestOrderService(orderRepo, newMockSettingsRepository(), newMockRawResultRepository())

	base := time.Now().UTC()
	for i, status := range []models.OrderStatus{
		models.OrderStatusDraft,
		models.OrderStatusConfirmed,
		models.OrderStatusCompleted,
	} {
		orderRepo.Create(context.Background(), &models.Order{
			ID:        "order-" + string(rune('a'+i)),
			PartnerID: "partner-1",
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	orderRepo.Create(context.Background(), &models.Order{
		ID:        "order-other",
		PartnerID: "partner-2",
		Status:    models.OrderStatusDraft,
		CreatedAt: base,
	})

	t.Run("lists only own orders", func(t *testing.T) {
		orders, err := svc.List(context.Background(), "partner-1", "", 50, 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(orders) != 3 {
			t.Fatalf("expected 3 orders, got %d", len(orders))
		}
		for _, order := range orders {
			if order.PartnerID != "partner-1" {
				t.Errorf("unexpected partner %q in listing", order.PartnerID)
			}
		}
	})

	t.Run("filters by status case-insensitively", func(t *testing.T) {
		orders, err := svc.List(context.Background(), "partner-1", "entwurf", 50, 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(orders) != 1 {
			t.Fatalf("expected 1 order, got %d", len(orders))
		}
		if orders[0].Status != models.OrderStatusDraft {
			t.Errorf("Status = %q, want %q", orders[0].Status, models.OrderStatusDraft)
		}
	})

	t.Run("rejects unknown status filter", func(t *testing.T) {
		_, err := svc.List(context.Background(), "partner-1", "nonsense", 50, 0)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

// ========================================
// Results Tests
// ========================================

func TestOrderService_Results(t *testing.T) {
	orderRepo := newMockOrderRepository()
	rawRepo := newMockRawResultRepository()
	svc := newTestOrderService(orderRepo, newMockSettingsRepository(), rawRepo)

	order, err := svc.Create(context.Background(), testPartner(), CreateOrderInput{
		GeoOrtID:     "ort-123",
		CategoryGCID: "gcid:plumber",
		QualityTier:  "standard",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	rawRepo.CreateBatch(context.Background(), []*models.RawResult{
		{ID: "raw-1", AuftragID: order.ID, Quelle: "google_places", Name: "Müller Sanitär"},
		{ID: "raw-2", AuftragID: order.ID, Quelle: "dataforseo", Name: "Schmidt Haustechnik"},
	})

	t.Run("returns order with raw results", func(t *testing.T) {
		got, raws, err := svc.Results(context.Background(), "partner-1", order.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got == nil {
			t.Fatal("expected order, got nil")
		}
		if len(raws) != 2 {
			t.Fatalf("expected 2 raw results, got %d", len(raws))
		}
		if raws[0].Name != "Müller Sanitär" {
			t.Errorf("Name = %q, want %q", raws[0].Name, "Müller Sanitär")
		}
	})

	t.Run("hides foreign order results", func(t *testing.T) {
		got, raws, err := svc.Results(context.Background(), "partner-2", order.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != nil || raws != nil {
			t.Error("expected nil order and results for foreign order")
		}
	})
}
