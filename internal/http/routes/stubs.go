package routes

import (
	"context"

	"github.com/firmenkern/recherche-api/internal/http/handlers"
)

// StubHandlers returns a Handlers instance with stub implementations.
// All handlers return nil responses - these are only used for OpenAPI generation
// where Huma extracts type information from function signatures.
func StubHandlers() *Handlers {
	return &Handlers{
		Health:  stubHealth,
		Order:   &stubOrderHandlers{},
		Billing: &stubBillingHandlers{},
		Admin:   &stubAdminHandlers{},
	}
}

func stubHealth(_ context.Context, _ *struct{}) (*handlers.HealthOutput, error) {
	return nil, nil
}

// --- Order handlers stub ---

type stubOrderHandlers struct{}

func (s *stubOrderHandlers) CreateOrder(_ context.Context, _ *handlers.CreateOrderInput) (*handlers.CreateOrderOutput, error) {
	return nil, nil
}

func (s *stubOrderHandlers) ConfirmOrder(_ context.Context, _ *handlers.ConfirmOrderInput) (*handlers.ConfirmOrderOutput, error) {
	return nil, nil
}

func (s *stubOrderHandlers) ListOrders(_ context.Context, _ *handlers.ListOrdersInput) (*handlers.ListOrdersOutput, error) {
	return nil, nil
}

func (s *stubOrderHandlers) GetOrder(_ context.Context, _ *handlers.GetOrderInput) (*handlers.GetOrderOutput, error) {
	return nil, nil
}

func (s *stubOrderHandlers) GetOrderResults(_ context.Context, _ *handlers.GetOrderResultsInput) (*handlers.GetOrderResultsOutput, error) {
	return nil, nil
}

// --- Billing handlers stub ---

type stubBillingHandlers struct{}

func (s *stubBillingHandlers) GetAccount(_ context.Context, _ *struct{}) (*handlers.GetAccountOutput, error) {
	return nil, nil
}

func (s *stubBillingHandlers) CreateTopup(_ context.Context, _ *handlers.CreateTopupInput) (*handlers.CreateTopupOutput, error) {
	return nil, nil
}

// --- Admin handlers stub ---

type stubAdminHandlers struct{}

func (s *stubAdminHandlers) ListSettings(_ context.Context, _ *struct{}) (*handlers.ListSettingsOutput, error) {
	return nil, nil
}

func (s *stubAdminHandlers) PutSetting(_ context.Context, _ *handlers.PutSettingInput) (*handlers.PutSettingOutput, error) {
	return nil, nil
}

func (s *stubAdminHandlers) GetPartner(_ context.Context, _ *handlers.GetPartnerInput) (*handlers.GetPartnerOutput, error) {
	return nil, nil
}

func (s *stubAdminHandlers) ListOrders(_ context.Context, _ *handlers.AdminListOrdersInput) (*handlers.AdminListOrdersOutput, error) {
	return nil, nil
}
