// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"context"
	"time"

	"github.com/firmenkern/recherche-api/internal/http/mw"
	"github.com/firmenkern/recherche-api/internal/models"
)

// getPartner extracts the authenticated partner from context.
func getPartner(ctx context.Context) *models.Partner {
	return mw.GetPartner(ctx)
}

// OrderResponse represents an order in API responses.
type OrderResponse struct {
	ID                  string `json:"id"`
	PartnerID           string `json:"partner_id"`
	QualitaetsStufe     string `json:"qualitaets_stufe"`
	GeoOrtID            string `json:"geo_ort_id,omitempty"`
	GeoKreisID          string `json:"geo_kreis_id,omitempty"`
	PLZ                 string `json:"plz,omitempty"`
	GoogleKategorieGCID string `json:"google_kategorie_gcid,omitempty"`
	BrancheFreitext     string `json:"branche_freitext,omitempty"`
	Status              string `json:"status"`
	Attempts            int    `json:"attempts"`
	MaxAttempts         int    `json:"max_attempts"`
	EstimatedCostCents  int64  `json:"estimated_cost_cents"`
	ActualCostCents     int64  `json:"actual_cost_cents"`
	RawCount            int    `json:"raw_count"`
	NewCount            int    `json:"new_count"`
	DuplicateCount      int    `json:"duplicate_count"`
	UpdatedCount        int    `json:"updated_count"`
	ErrorMessage        string `json:"error_message,omitempty"`
	CreatedAt           string `json:"created_at"`
	ConfirmedAt         string `json:"confirmed_at,omitempty"`
	StartedAt           string `json:"started_at,omitempty"`
	CompletedAt         string `json:"completed_at,omitempty"`
}

func orderResponse(o *models.Order) OrderResponse {
	resp := OrderResponse{
		ID:                  o.ID,
		PartnerID:           o.PartnerID,
		QualitaetsStufe:     string(o.QualityTier),
		GeoOrtID:            o.GeoOrtID,
		GeoKreisID:          o.GeoKreisID,
		PLZ:                 o.PLZ,
		GoogleKategorieGCID: o.CategoryGCID,
		BrancheFreitext:     o.Freitext,
		Status:              string(o.Status),
		Attempts:            o.Attempts,
		MaxAttempts:         o.MaxAttempts,
		EstimatedCostCents:  o.EstimatedCostCents,
		ActualCostCents:     o.ActualCostCents,
		RawCount:            o.RawCount,
		NewCount:            o.NewCount,
		DuplicateCount:      o.DuplicateCount,
		UpdatedCount:        o.UpdatedCount,
		ErrorMessage:        o.ErrorMessage,
		CreatedAt:           o.CreatedAt.Format(time.RFC3339),
	}
	if o.ConfirmedAt != nil {
		resp.ConfirmedAt = o.ConfirmedAt.Format(time.RFC3339)
	}
	if o.StartedAt != nil {
		resp.StartedAt = o.StartedAt.Format(time.RFC3339)
	}
	if o.CompletedAt != nil {
		resp.CompletedAt = o.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func orderResponses(orders []*models.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderResponse(o))
	}
	return out
}
