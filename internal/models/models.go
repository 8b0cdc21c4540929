// Package models defines the domain models for the application.
// Partner identity and provisioning live in the surrounding platform; the
// PartnerID fields reference platform partner IDs.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// OrderStatus represents the lifecycle state of a recherche order.
type OrderStatus string

const (
	OrderStatusDraft      OrderStatus = "ENTWURF"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusFailed     OrderStatus = "FAILED"
)

// Terminal reports whether the status is an end state.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// ParseOrderStatus normalizes external status input (case-insensitive).
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case OrderStatusDraft:
		return OrderStatusDraft, true
	case OrderStatusConfirmed:
		return OrderStatusConfirmed, true
	case OrderStatusProcessing:
		return OrderStatusProcessing, true
	case OrderStatusCompleted:
		return OrderStatusCompleted, true
	case OrderStatusFailed:
		return OrderStatusFailed, true
	}
	return "", false
}

// QualityTier controls which provider drivers run and the per-result rate.
type QualityTier string

const (
	TierStandard QualityTier = "STANDARD"
	TierPremium  QualityTier = "PREMIUM"
	TierKomplett QualityTier = "KOMPLETT"
)

// ParseQualityTier normalizes external tier input (case-insensitive).
func ParseQualityTier(s string) (QualityTier, bool) {
	switch QualityTier(strings.ToUpper(strings.TrimSpace(s))) {
	case TierStandard:
		return TierStandard, true
	case TierPremium:
		return TierPremium, true
	case TierKomplett:
		return TierKomplett, true
	}
	return "", false
}

// Order represents one recherche job (rch_auftrag): a partner's unit of
// billing and scheduling.
type Order struct {
	ID           string      `json:"id"`
	PartnerID    string      `json:"partner_id"`
	QualityTier  QualityTier `json:"qualitaets_stufe"`
	GeoOrtID     string      `json:"geo_ort_id,omitempty"`
	GeoKreisID   string      `json:"geo_kreis_id,omitempty"`
	PLZ          string      `json:"plz,omitempty"`
	CategoryGCID string      `json:"google_kategorie_gcid,omitempty"`
	Freitext     string      `json:"branche_freitext,omitempty"`

	Status      OrderStatus `json:"status"`
	Attempts    int         `json:"attempts"`
	MaxAttempts int         `json:"max_attempts"`

	EstimatedCostCents int64 `json:"estimated_cost_cents"`
	ActualCostCents    int64 `json:"actual_cost_cents"`

	RawCount       int `json:"raw_count"`
	NewCount       int `json:"new_count"`
	DuplicateCount int `json:"duplicate_count"`
	UpdatedCount   int `json:"updated_count"`

	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RawResult is a provider row normalized to the common shape
// (rch_roh_ergebnis). Rows are immutable once persisted.
type RawResult struct {
	ID         string          `json:"id"`
	AuftragID  string          `json:"auftrag_id"`
	Quelle     string          `json:"quelle"` // provider name
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
	RawPayload json.RawMessage `json:"raw_payload,omitempty"` // fields outside the common shape
	CreatedAt  time.Time       `json:"created_at"`
}

// Metadata carries per-source blocks on a company:
// source name -> {external_id, source-specific fields}.
type Metadata map[string]map[string]any

// ExternalID returns the external id recorded for a source, if any.
func (m Metadata) ExternalID(source string) string {
	block, ok := m[source]
	if !ok {
		return ""
	}
	id, _ := block["external_id"].(string)
	return id
}

// SetBlock replaces the metadata block for a source.
func (m Metadata) SetBlock(source string, block map[string]any) {
	m[source] = block
}

// Company is the deduplicated canonical directory entity (com_unternehmen).
// Companies are never hard-deleted during recherche.
type Company struct {
	ID         string   `json:"id"`
	Firmierung string   `json:"firmierung"`
	Strasse    string   `json:"strasse,omitempty"`
	PLZ        string   `json:"plz,omitempty"`
	Ort        string   `json:"ort,omitempty"`
	Land       string   `json:"land,omitempty"`
	Website    string   `json:"website,omitempty"`
	Telefon    string   `json:"telefon,omitempty"`
	Email      string   `json:"email,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`

	// Normalized lookup columns maintained alongside website/telefon.
	WebsiteNorm string `json:"-"`
	TelefonNorm string `json:"-"`

	Metadaten Metadata  `json:"metadaten,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Partner mirrors the platform's partner record plus the recherche rate
// card and rate limits (par_partner). Mutated via platform webhooks.
type Partner struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	APIKeyHash string `json:"-"`

	// Rate card in integer cents. Euro values arrive on the wire and are
	// rejected unless they scale to whole cents.
	BaseFeeCents           int64 `json:"base_fee_cents"`
	PerResultStandardCents int64 `json:"per_result_standard_cents"`
	PerResultPremiumCents  int64 `json:"per_result_premium_cents"`
	PerResultKomplettCents int64 `json:"per_result_komplett_cents"`

	// Fixed-window rate limits; 0 = unlimited.
	LimitPerMinute int `json:"limit_per_minute"`
	LimitPerHour   int `json:"limit_per_hour"`
	LimitPerDay    int `json:"limit_per_day"`

	Suspended bool      `json:"suspended"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PerResultCents returns the marginal price for newly created companies
// under the given tier.
func (p *Partner) PerResultCents(tier QualityTier) int64 {
	switch tier {
	case TierStandard:
		return p.PerResultStandardCents
	case TierPremium:
		return p.PerResultPremiumCents
	case TierKomplett:
		return p.PerResultKomplettCents
	}
	return 0
}

// Setting is a key-value admin setting (sys_einstellung). Encrypted
// settings hold AES-256-GCM ciphertext in Value.
type Setting struct {
	Key            string    `json:"key"`
	Value          string    `json:"value"`
	Verschluesselt bool      `json:"verschluesselt"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Well-known setting keys.
const (
	SettingGooglePlacesAPIKey = "recherche.google_places_api_key"
	SettingDataForSEOLogin    = "recherche.dataforseo_login"
	SettingDataForSEOPassword = "recherche.dataforseo_password"
	SettingBulkActionMax      = "bulk_action_max_results"
)

// ========================================
// Geo / category reference data
// ========================================

// GeoOrt is a town reference row. Seeding is handled outside this service.
type GeoOrt struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	KreisID string  `json:"kreis_id,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	RadiusM int     `json:"radius_m"`
}

// GeoKreis is a district reference row.
type GeoKreis struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	RadiusM int     `json:"radius_m"`
}

// GeoPLZ is a postcode centroid reference row.
type GeoPLZ struct {
	PLZ string  `json:"plz"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GoogleKategorie maps a gcid to its display name, used as the free-text
// query when an order carries only a category.
type GoogleKategorie struct {
	GCID string `json:"gcid"`
	Name string `json:"name"`
}
