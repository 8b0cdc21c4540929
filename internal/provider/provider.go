// Package provider contains the search drivers for external business-data
// APIs and the registry that maps quality tiers to them.
package provider

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// requestTimeout bounds every provider HTTP call. A timeout counts as a
// provider failure for the order pipeline.
const requestTimeout = 30 * time.Second

// Driver names double as the source labels on raw results and company
// metadata blocks.
const (
	NameGooglePlaces = "google_places"
	NameDataForSEO   = "dataforseo"
)

// SearchInput describes one provider invocation for an order.
type SearchInput struct {
	Lat        float64
	Lng        float64
	RadiusM    int
	Query      string
	Category   string
	MaxResults int
}

// RawRecord is one provider hit normalized to the common shape. Fields
// outside the shape stay in RawPayload as provider JSON.
type RawRecord struct {
	ExternalID string
	Name       string
	Strasse    string
	PLZ        string
	Ort        string
	Land       string
	Telefon    string
	Email      string
	Website    string
	Kategorie  string
	Lat        *float64
	Lng        *float64
	RawPayload json.RawMessage
}

// Driver is a search backend for one external API.
//
// Search returns the records collected so far and the USD cost incurred
// even when it fails partway; callers keep partial results. Drivers do
// not retry.
type Driver interface {
	Name() string
	Configured() bool
	CostPerRequest() decimal.Decimal
	Search(ctx context.Context, in SearchInput) ([]RawRecord, decimal.Decimal, error)
}

// snippet trims an error body for log and error messages.
func snippet(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
