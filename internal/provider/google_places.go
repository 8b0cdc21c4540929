package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	googlePlacesBaseURL = "https://places.googleapis.com/v1"
	googleMaxPageSize   = 20
	googleMaxRadiusM    = 50000
)

// googleFieldMask projects the response down to the fields the common
// shape needs. Omitting the mask is an API error, and a wider mask bills
// a higher SKU.
const googleFieldMask = "places.id,places.displayName,places.formattedAddress," +
	"places.addressComponents,places.location,places.internationalPhoneNumber," +
	"places.websiteUri,places.primaryType,places.primaryTypeDisplayName,nextPageToken"

// googleCostPerRequest is the Text Search basic SKU price per request.
var googleCostPerRequest = decimal.RequireFromString("0.032")

// GooglePlacesDriver searches the Places API (New) text search with a
// location bias circle.
type GooglePlacesDriver struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGooglePlacesDriver creates the driver. An empty key leaves it
// unconfigured.
func NewGooglePlacesDriver(apiKey string) *GooglePlacesDriver {
	return &GooglePlacesDriver{
		apiKey:     apiKey,
		baseURL:    googlePlacesBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Name implements Driver.
func (d *GooglePlacesDriver) Name() string { return NameGooglePlaces }

// Configured implements Driver.
func (d *GooglePlacesDriver) Configured() bool { return d.apiKey != "" }

// CostPerRequest implements Driver.
func (d *GooglePlacesDriver) CostPerRequest() decimal.Decimal { return googleCostPerRequest }

type googleSearchRequest struct {
	TextQuery    string              `json:"textQuery"`
	PageSize     int                 `json:"pageSize,omitempty"`
	PageToken    string              `json:"pageToken,omitempty"`
	IncludedType string              `json:"includedType,omitempty"`
	LocationBias *googleLocationBias `json:"locationBias,omitempty"`
	LanguageCode string              `json:"languageCode,omitempty"`
}

type googleLocationBias struct {
	Circle googleCircle `json:"circle"`
}

type googleCircle struct {
	Center googleLatLng `json:"center"`
	Radius float64      `json:"radius"`
}

type googleLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type googleSearchResponse struct {
	Places        []json.RawMessage `json:"places"`
	NextPageToken string            `json:"nextPageToken"`
}

type googlePlace struct {
	ID                       string                   `json:"id"`
	DisplayName              googleLocalizedText      `json:"displayName"`
	FormattedAddress         string                   `json:"formattedAddress"`
	AddressComponents        []googleAddressComponent `json:"addressComponents"`
	Location                 *googleLatLng            `json:"location"`
	InternationalPhoneNumber string                   `json:"internationalPhoneNumber"`
	WebsiteURI               string                   `json:"websiteUri"`
	PrimaryType              string                   `json:"primaryType"`
	PrimaryTypeDisplayName   googleLocalizedText      `json:"primaryTypeDisplayName"`
}

type googleLocalizedText struct {
	Text string `json:"text"`
}

type googleAddressComponent struct {
	LongText  string   `json:"longText"`
	ShortText string   `json:"shortText"`
	Types     []string `json:"types"`
}

// Search implements Driver. Pages through text search results with the
// API's page token until the caller's cap, a missing token or a short
// page ends the loop.
func (d *GooglePlacesDriver) Search(ctx context.Context, in SearchInput) ([]RawRecord, decimal.Decimal, error) {
	cost := decimal.Zero
	var records []RawRecord

	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, cost, fmt.Errorf("google places: empty query")
	}

	radius := float64(in.RadiusM)
	if radius > googleMaxRadiusM {
		radius = googleMaxRadiusM
	}
	if radius <= 0 {
		radius = 1000
	}

	pageToken := ""
	for {
		pageSize := googleMaxPageSize
		if in.MaxResults > 0 {
			if remaining := in.MaxResults - len(records); remaining < pageSize {
				pageSize = remaining
			}
		}
		if pageSize <= 0 {
			break
		}

		reqBody := googleSearchRequest{
			TextQuery:    query,
			PageSize:     pageSize,
			PageToken:    pageToken,
			IncludedType: strings.TrimPrefix(in.Category, "gcid:"),
			LocationBias: &googleLocationBias{
				Circle: googleCircle{
					Center: googleLatLng{Latitude: in.Lat, Longitude: in.Lng},
					Radius: radius,
				},
			},
			LanguageCode: "de",
		}

		page, err := d.searchPage(ctx, reqBody, &cost)
		if err != nil {
			return records, cost, err
		}

		for _, raw := range page.Places {
			rec, ok := recordFromGooglePlace(raw)
			if !ok {
				continue
			}
			records = append(records, rec)
		}

		if in.MaxResults > 0 && len(records) >= in.MaxResults {
			records = records[:in.MaxResults]
			break
		}
		if page.NextPageToken == "" || len(page.Places) < pageSize {
			break
		}
		pageToken = page.NextPageToken
	}

	return records, cost, nil
}

func (d *GooglePlacesDriver) searchPage(ctx context.Context, body googleSearchRequest, cost *decimal.Decimal) (*googleSearchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/places:searchText", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", d.apiKey)
	req.Header.Set("X-Goog-FieldMask", googleFieldMask)

	// Billed per request issued, including failures.
	*cost = cost.Add(googleCostPerRequest)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google places status %d: %s", resp.StatusCode, snippet(respBody, 512))
	}

	var out googleSearchResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &out, nil
}

// recordFromGooglePlace maps one place to the common shape, keeping the
// untouched provider JSON as the raw payload. Places without a display
// name are dropped.
func recordFromGooglePlace(raw json.RawMessage) (RawRecord, bool) {
	var p googlePlace
	if err := json.Unmarshal(raw, &p); err != nil {
		return RawRecord{}, false
	}

	name := strings.TrimSpace(p.DisplayName.Text)
	if name == "" {
		return RawRecord{}, false
	}

	rec := RawRecord{
		ExternalID: p.ID,
		Name:       name,
		Telefon:    p.InternationalPhoneNumber,
		Website:    p.WebsiteURI,
		Kategorie:  p.PrimaryType,
		RawPayload: raw,
	}

	var streetNumber, route string
	for _, comp := range p.AddressComponents {
		for _, typ := range comp.Types {
			switch typ {
			case "street_number":
				streetNumber = comp.LongText
			case "route":
				route = comp.LongText
			case "postal_code":
				rec.PLZ = comp.LongText
			case "locality":
				rec.Ort = comp.LongText
			case "country":
				rec.Land = comp.ShortText
			}
		}
	}
	if route != "" {
		rec.Strasse = strings.TrimSpace(route + " " + streetNumber)
	}

	if p.Location != nil {
		lat, lng := p.Location.Latitude, p.Location.Longitude
		rec.Lat = &lat
		rec.Lng = &lng
	}

	return rec, true
}
