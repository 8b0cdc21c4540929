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

	"github.com/firmenkern/recherche-api/internal/models"
)

const (
	dataForSEOBaseURL     = "https://api.dataforseo.com"
	dataForSEOMaxPageSize = 100
	dataForSEOMaxResults  = 1000
	dataForSEOOKStatus    = 20000
)

// dataForSEOCostPerResult is the fallback price applied when a response
// omits its cost field.
var dataForSEOCostPerResult = decimal.RequireFromString("0.002")

// DataForSEODriver searches the business listings live endpoint with
// offset pagination.
type DataForSEODriver struct {
	login      string
	password   string
	baseURL    string
	httpClient *http.Client
}

// NewDataForSEODriver creates the driver. Missing credentials leave it
// unconfigured.
func NewDataForSEODriver(login, password string) *DataForSEODriver {
	return &DataForSEODriver{
		login:      login,
		password:   password,
		baseURL:    dataForSEOBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Name implements Driver.
func (d *DataForSEODriver) Name() string { return NameDataForSEO }

// Configured implements Driver.
func (d *DataForSEODriver) Configured() bool { return d.login != "" && d.password != "" }

// CostPerRequest implements Driver. The live endpoint bills per returned
// row; this is the nominal per-row price.
func (d *DataForSEODriver) CostPerRequest() decimal.Decimal { return dataForSEOCostPerResult }

type dataForSEOTask struct {
	Title              string   `json:"title,omitempty"`
	Categories         []string `json:"categories,omitempty"`
	LocationCoordinate string   `json:"location_coordinate"`
	Limit              int      `json:"limit"`
	Offset             int      `json:"offset,omitempty"`
}

type dataForSEOResponse struct {
	StatusCode    int                  `json:"status_code"`
	StatusMessage string               `json:"status_message"`
	Cost          float64              `json:"cost"`
	Tasks         []dataForSEOTaskItem `json:"tasks"`
}

type dataForSEOTaskItem struct {
	StatusCode    int                `json:"status_code"`
	StatusMessage string             `json:"status_message"`
	Result        []dataForSEOResult `json:"result"`
}

type dataForSEOResult struct {
	TotalCount models.FlexInt    `json:"total_count"`
	Count      models.FlexInt    `json:"count"`
	Items      []json.RawMessage `json:"items"`
}

type dataForSEOItem struct {
	Type        string             `json:"type"`
	Title       string             `json:"title"`
	Category    string             `json:"category"`
	PlaceID     string             `json:"place_id"`
	Phone       string             `json:"phone"`
	URL         string             `json:"url"`
	Domain      string             `json:"domain"`
	Latitude    *float64           `json:"latitude"`
	Longitude   *float64           `json:"longitude"`
	AddressInfo *dataForSEOAddress `json:"address_info"`
}

type dataForSEOAddress struct {
	Address     string `json:"address"`
	City        string `json:"city"`
	Zip         string `json:"zip"`
	Region      string `json:"region"`
	CountryCode string `json:"country_code"`
}

// Search implements Driver. Pages with a growing offset until the cap or
// a short page; the API reports the billed cost per call.
func (d *DataForSEODriver) Search(ctx context.Context, in SearchInput) ([]RawRecord, decimal.Decimal, error) {
	cost := decimal.Zero
	var records []RawRecord

	maxResults := in.MaxResults
	if maxResults <= 0 || maxResults > dataForSEOMaxResults {
		maxResults = dataForSEOMaxResults
	}

	var categories []string
	if in.Category != "" {
		categories = []string{in.Category}
	}

	// location_coordinate is "lat,lng,radius_km".
	radiusKm := float64(in.RadiusM) / 1000
	if radiusKm <= 0 {
		radiusKm = 1
	}
	coord := fmt.Sprintf("%.6f,%.6f,%g", in.Lat, in.Lng, radiusKm)

	offset := 0
	for {
		pageSize := dataForSEOMaxPageSize
		if remaining := maxResults - len(records); remaining < pageSize {
			pageSize = remaining
		}
		if pageSize <= 0 {
			break
		}

		task := dataForSEOTask{
			Title:              strings.TrimSpace(in.Query),
			Categories:         categories,
			LocationCoordinate: coord,
			Limit:              pageSize,
			Offset:             offset,
		}

		items, total, pageCost, err := d.searchPage(ctx, task)
		cost = cost.Add(pageCost)
		if err != nil {
			return records, cost, err
		}

		for _, raw := range items {
			rec, ok := recordFromDataForSEOItem(raw)
			if !ok {
				continue
			}
			records = append(records, rec)
		}

		offset += len(items)
		if len(items) < pageSize {
			break
		}
		if total > 0 && offset >= total {
			break
		}
	}

	return records, cost, nil
}

func (d *DataForSEODriver) searchPage(ctx context.Context, task dataForSEOTask) ([]json.RawMessage, int, decimal.Decimal, error) {
	payload, err := json.Marshal([]dataForSEOTask{task})
	if err != nil {
		return nil, 0, decimal.Zero, fmt.Errorf("marshal request: %w", err)
	}

	url := d.baseURL + "/v3/business_data/business_listings/search/live"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, decimal.Zero, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(d.login, d.password)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, 0, decimal.Zero, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, decimal.Zero, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, decimal.Zero, fmt.Errorf("dataforseo status %d: %s", resp.StatusCode, snippet(respBody, 512))
	}

	var out dataForSEOResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, 0, decimal.Zero, fmt.Errorf("parse response: %w", err)
	}
	if out.StatusCode != dataForSEOOKStatus {
		return nil, 0, decimal.Zero, fmt.Errorf("dataforseo api status %d: %s", out.StatusCode, out.StatusMessage)
	}

	var items []json.RawMessage
	total := 0
	for _, t := range out.Tasks {
		if t.StatusCode != dataForSEOOKStatus {
			return nil, 0, decimal.Zero, fmt.Errorf("dataforseo task status %d: %s", t.StatusCode, t.StatusMessage)
		}
		for _, r := range t.Result {
			items = append(items, r.Items...)
			if c := r.TotalCount.Int(); c > total {
				total = c
			}
		}
	}

	pageCost := decimal.NewFromFloat(out.Cost)
	if pageCost.IsZero() && len(items) > 0 {
		pageCost = dataForSEOCostPerResult.Mul(decimal.NewFromInt(int64(len(items))))
	}
	return items, total, pageCost, nil
}

// recordFromDataForSEOItem maps one listing to the common shape. Items
// without a title are dropped.
func recordFromDataForSEOItem(raw json.RawMessage) (RawRecord, bool) {
	var item dataForSEOItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return RawRecord{}, false
	}

	name := strings.TrimSpace(item.Title)
	if name == "" {
		return RawRecord{}, false
	}

	rec := RawRecord{
		ExternalID: item.PlaceID,
		Name:       name,
		Telefon:    item.Phone,
		Website:    item.URL,
		Kategorie:  item.Category,
		Lat:        item.Latitude,
		Lng:        item.Longitude,
		RawPayload: raw,
	}
	if item.AddressInfo != nil {
		rec.Strasse = item.AddressInfo.Address
		rec.PLZ = item.AddressInfo.Zip
		rec.Ort = item.AddressInfo.City
		rec.Land = strings.ToUpper(item.AddressInfo.CountryCode)
	}

	return rec, true
}
