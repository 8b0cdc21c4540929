package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/firmenkern/recherche-api/internal/models"
	"github.com/firmenkern/recherche-api/internal/service"
)

// archiveURLExpiry is how long a presigned result archive link stays
// valid.
const archiveURLExpiry = 15 * time.Minute

// OrderHandler handles the partner order endpoints.
type OrderHandler struct {
	orders  *service.OrderService
	archive *service.ArchiveService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order handler. The archive service may be
// nil when result archiving is disabled.
func NewOrderHandler(orders *service.OrderService, archive *service.ArchiveService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders:  orders,
		archive: archive,
		logger:  logger,
	}
}

// CreateOrderInput represents an order creation request. Exactly one of
// geo_ort_id, geo_kreis_id and plz must be set, plus at least one of
// google_kategorie_gcid and branche_freitext.
type CreateOrderInput struct {
	Body struct {
		GeoOrtID            string `json:"geo_ort_id,omitempty" doc:"Town reference id"`
		GeoKreisID          string `json:"geo_kreis_id,omitempty" doc:"District reference id"`
		PLZ                 string `json:"plz,omitempty" doc:"Postcode"`
		GoogleKategorieGCID string `json:"google_kategorie_gcid,omitempty" example:"gcid:car_dealer" doc:"Google category id"`
		BrancheFreitext     string `json:"branche_freitext,omitempty" example:"autohaus" doc:"Free-text trade description"`
		QualitaetsStufe     string `json:"qualitaets_stufe" example:"standard" doc:"Quality tier: standard, premium or komplett"`
	}
}

// CreateOrderOutput represents order creation response.
type CreateOrderOutput struct {
	Body OrderResponse
}

// CreateOrder stores a draft order with its worst-case cost estimate.
// Nothing is dispatched or charged until the order is confirmed.
func (h *OrderHandler) CreateOrder(ctx context.Context, input *CreateOrderInput) (*CreateOrderOutput, error) {
	partner := getPartner(ctx)
	if partner == nil {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	order, err := h.orders.Create(ctx, partner, service.CreateOrderInput{
		GeoOrtID:     input.Body.GeoOrtID,
		GeoKreisID:   input.Body.GeoKreisID,
		PLZ:          input.Body.PLZ,
		CategoryGCID: input.Body.GoogleKategorieGCID,
		Freitext:     input.Body.BrancheFreitext,
		QualityTier:  input.Body.QualitaetsStufe,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to create order: " + err.Error())
	}

	return &CreateOrderOutput{Body: orderResponse(order)}, nil
}

// ConfirmOrderInput represents order confirmation request.
type ConfirmOrderInput struct {
	ID string `path:"id" doc:"Order id"`
}

// ConfirmOrderOutput represents order confirmation response.
type ConfirmOrderOutput struct {
	Body OrderResponse
}

// ConfirmOrder moves a draft order to CONFIRMED, releasing it to the
// dispatcher. Orders of other partners read as not found.
func (h *OrderHandler) ConfirmOrder(ctx context.Context, input *ConfirmOrderInput) (*ConfirmOrderOutput, error) {
	partner := getPartner(ctx)
	if partner == nil {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	order, err := h.orders.Confirm(ctx, partner.ID, input.ID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotDraft) {
			return nil, huma.Error409Conflict(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to confirm order: " + err.Error())
	}
	if order == nil {
		return nil, huma.Error404NotFound("auftrag not found")
	}

	return &ConfirmOrderOutput{Body: orderResponse(order)}, nil
}

// GetOrderInput represents get order request.
type GetOrderInput struct {
	ID string `path:"id" doc:"Order id"`
}

// GetOrderOutput represents get order response.
type GetOrderOutput struct {
	Body OrderResponse
}

// GetOrder returns a single order scoped to the calling partner.
func (h *OrderHandler) GetOrder(ctx context.Context, input *GetOrderInput) (*GetOrderOutput, error) {
	partner := getPartner(ctx)
	if partner == nil {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	order, err := h.orders.Get(ctx, partner.ID, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get order: " + err.Error())
	}
	if order == nil {
		return nil, huma.Error404NotFound("auftrag not found")
	}

	return &GetOrderOutput{Body: orderResponse(order)}, nil
}

// ListOrdersInput represents order listing request.
type ListOrdersInput struct {
	Status string `query:"status" doc:"Filter by status (ENTWURF, CONFIRMED, PROCESSING, COMPLETED, FAILED)"`
	Limit  int    `query:"limit" default:"50" maximum:"200" doc:"Number of orders to return"`
	Offset int    `query:"offset" default:"0" doc:"Offset for pagination"`
}

// ListOrdersOutput represents order listing response.
type ListOrdersOutput struct {
	Body struct {
		Auftraege []OrderResponse `json:"auftraege"`
	}
}

// ListOrders returns the calling partner's orders, newest first.
func (h *OrderHandler) ListOrders(ctx context.Context, input *ListOrdersInput) (*ListOrdersOutput, error) {
	partner := getPartner(ctx)
	if partner == nil {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	orders, err := h.orders.List(ctx, partner.ID, input.Status, input.Limit, input.Offset)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to list orders: " + err.Error())
	}

	out := &ListOrdersOutput{}
	out.Body.Auftraege = orderResponses(orders)
	return out, nil
}

// RawResultResponse represents a raw provider result in API responses.
type RawResultResponse struct {
	ID         string          `json:"id"`
	Quelle     string          `json:"quelle"`
	ExternalID string          `json:"external_id,omitempty"`
	Name       string          `json:"name"`
	Strasse    string          `json:"strasse,omitempty"`
	PLZ        string          `json:"plz,omitempty"`
	Ort        string          `json:"ort,omitempty"`
	Land       string          `json:"land,omitempty"`
	Telefon    string          `json:"telefon,omitempty"`
	Email      string          `json:"email,omitempty"`
	Website    string          `json:"website,omitempty"`
	Kategorie  string          `json:"kategorie,omitempty"`
	Lat        *float64        `json:"lat,omitempty"`
	Lng        *float64        `json:"lng,omitempty"`
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

// GetOrderResultsInput represents order results request.
type GetOrderResultsInput struct {
	ID string `path:"id" doc:"Order id"`
}

// GetOrderResultsOutput represents order results response. archive_url is
// a time-limited download link for the archived result set, present when
// archiving is enabled and the archive exists.
type GetOrderResultsOutput struct {
	Body struct {
		Auftrag    OrderResponse       `json:"auftrag"`
		Ergebnisse []RawResultResponse `json:"ergebnisse"`
		ArchiveURL string              `json:"archive_url,omitempty"`
	}
}

// GetOrderResults returns the raw provider rows of an order in insertion
// order.
func (h *OrderHandler) GetOrderResults(ctx context.Context, input *GetOrderResultsInput) (*GetOrderResultsOutput, error) {
	partner := getPartner(ctx)
	if partner == nil {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	order, raws, err := h.orders.Results(ctx, partner.ID, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get results: " + err.Error())
	}
	if order == nil {
		return nil, huma.Error404NotFound("auftrag not found")
	}

	out := &GetOrderResultsOutput{}
	out.Body.Auftrag = orderResponse(order)
	out.Body.Ergebnisse = make([]RawResultResponse, 0, len(raws))
	for _, r := range raws {
		out.Body.Ergebnisse = append(out.Body.Ergebnisse, RawResultResponse{
			ID:         r.ID,
			Quelle:     r.Quelle,
			ExternalID: r.ExternalID,
			Name:       r.Name,
			Strasse:    r.Strasse,
			PLZ:        r.PLZ,
			Ort:        r.Ort,
			Land:       r.Land,
			Telefon:    r.Telefon,
			Email:      r.Email,
			Website:    r.Website,
			Kategorie:  r.Kategorie,
			Lat:        r.Lat,
			Lng:        r.Lng,
			RawPayload: r.RawPayload,
			CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		})
	}

	if h.archive != nil && h.archive.IsEnabled() && order.Status == models.OrderStatusCompleted {
		out.Body.ArchiveURL = h.archiveURL(ctx, order.ID)
	}

	return out, nil
}

// archiveURL resolves the presigned archive link, empty when the archive
// is missing or S3 is unreachable. Archive trouble never fails the read.
func (h *OrderHandler) archiveURL(ctx context.Context, orderID string) string {
	exists, err := h.archive.Exists(ctx, orderID)
	if err != nil {
		h.logger.Warn("failed to check result archive", "order_id", orderID, "error", err)
		return ""
	}
	if !exists {
		return ""
	}

	url, err := h.archive.PresignedURL(ctx, orderID, archiveURLExpiry)
	if err != nil {
		h.logger.Warn("failed to presign archive url", "order_id", orderID, "error", err)
		return ""
	}
	return url
}
