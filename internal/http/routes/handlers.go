// Package routes provides shared route registration for the Recherche API.
// This allows both the main server and the OpenAPI generator to use
// the same route definitions, ensuring the spec is always in sync.
package routes

import (
	"context"

	"github.com/firmenkern/recherche-api/internal/http/handlers"
)

// OrderHandlers defines the interface for research order operations.
type OrderHandlers interface {
	CreateOrder(ctx context.Context, input *handlers.CreateOrderInput) (*handlers.CreateOrderOutput, error)
	ConfirmOrder(ctx context.Context, input *handlers.ConfirmOrderInput) (*handlers.ConfirmOrderOutput, error)
	ListOrders(ctx context.Context, input *handlers.ListOrdersInput) (*handlers.ListOrdersOutput, error)
	GetOrder(ctx context.Context, input *handlers.GetOrderInput) (*handlers.GetOrderOutput, error)
	GetOrderResults(ctx context.Context, input *handlers.GetOrderResultsInput) (*handlers.GetOrderResultsOutput, error)
}

// BillingHandlers defines the interface for billing operations.
type BillingHandlers interface {
	GetAccount(ctx context.Context, input *struct{}) (*handlers.GetAccountOutput, error)
	CreateTopup(ctx context.Context, input *handlers.CreateTopupInput) (*handlers.CreateTopupOutput, error)
}

// AdminHandlers defines the interface for admin operations.
// These endpoints are hidden from public OpenAPI documentation.
type AdminHandlers interface {
	ListSettings(ctx context.Context, input *struct{}) (*handlers.ListSettingsOutput, error)
	PutSetting(ctx context.Context, input *handlers.PutSettingInput) (*handlers.PutSettingOutput, error)
	GetPartner(ctx context.Context, input *handlers.GetPartnerInput) (*handlers.GetPartnerOutput, error)
	ListOrders(ctx context.Context, input *handlers.AdminListOrdersInput) (*handlers.AdminListOrdersOutput, error)
}

// Handlers aggregates all handler interfaces for route registration.
// For the main server, pass real handler implementations.
// For OpenAPI generation, pass stub implementations.
type Handlers struct {
	// Public endpoints
	Health func(ctx context.Context, input *struct{}) (*handlers.HealthOutput, error)

	// Partner and admin endpoint handlers
	Order   OrderHandlers
	Billing BillingHandlers
	Admin   AdminHandlers
}
