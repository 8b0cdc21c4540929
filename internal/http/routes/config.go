// Package routes provides shared route registration for the Recherche API.
// This allows both the main server and the OpenAPI generator to use
// the same route definitions, ensuring the spec is always in sync.
package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/firmenkern/recherche-api/internal/http/mw"
	"github.com/firmenkern/recherche-api/internal/version"
)

// NewHumaConfig creates the shared Huma configuration for the API.
// This includes API metadata, security schemes, and tag definitions.
func NewHumaConfig(baseURL string) huma.Config {
	cfg := huma.DefaultConfig("Recherche API", version.Get().Short())
	cfg.Info.Description = "Business-data enrichment API. Partners order company research by region and trade, confirm the quoted price, and collect deduplicated results."

	// Disable $schema field in responses - it conflicts with "schema" field in SDK code generators
	cfg.CreateHooks = nil

	if baseURL != "" {
		cfg.Servers = []*huma.Server{
			{URL: baseURL, Description: "API Server"},
		}
	}

	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		mw.SchemePartnerKey: {
			Type:        "apiKey",
			In:          "header",
			Name:        mw.HeaderAPIKey,
			Description: "Partner API key authentication. Include your key in the " + mw.HeaderAPIKey + " header.",
		},
		mw.SchemeAdminToken: {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "Admin JWT authentication. Include a token with the admin role in the Authorization header.",
		},
	}

	// Define OpenAPI tags with display names for documentation
	cfg.Tags = []*huma.Tag{
		{Name: "Auftraege", Description: "Research order intake, confirmation, and result retrieval", Extensions: map[string]any{"x-displayName": "Auftraege"}},
		{Name: "Billing", Description: "Credit account, transactions, and top-ups", Extensions: map[string]any{"x-displayName": "Billing"}},
		{Name: "Admin", Description: "Runtime settings and cross-partner views", Extensions: map[string]any{"x-displayName": "Admin"}},
		{Name: "Health", Description: "System health and status", Extensions: map[string]any{"x-displayName": "Health"}},
	}

	return cfg
}
