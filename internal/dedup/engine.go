package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/firmenkern/recherche-api/internal/models"
)

const (
	// MaxMatchDistanceM is the geo-proximity radius for name matching.
	MaxMatchDistanceM = 150.0
	// MinNameRatio is the token-set similarity floor for geo matches.
	MinNameRatio = 0.85
)

// ErrConflict is returned by Directory.Insert when a concurrent writer
// already created a company carrying the same unique signal.
var ErrConflict = errors.New("company already exists")

// Directory is the slice of the company store the engine needs.
// Implementations run inside the caller's transaction.
type Directory interface {
	FindByExternalID(ctx context.Context, source, externalID string) (*models.Company, error)
	FindByWebsite(ctx context.Context, websiteNorm string) (*models.Company, error)
	FindByPhone(ctx context.Context, telefonNorm string) (*models.Company, error)
	FindNearby(ctx context.Context, lat, lng, radiusM float64) ([]*models.Company, error)
	Insert(ctx context.Context, c *models.Company) error
	Update(ctx context.Context, c *models.Company) error
}

// Counts is the ingestion outcome for one order run.
type Counts struct {
	New       int
	Duplicate int
	Updated   int
}

// Engine ingests the raw results of a single order. Matches are resolved
// in priority order: external id, website, phone, then geo-proximity with
// name similarity. Within a run, the first raw record to claim a company
// wins; later records matching the same company count as duplicates.
//
// Not safe for concurrent use; create one per order.
type Engine struct {
	dir    Directory
	logger *slog.Logger

	byExternal map[string]*models.Company
	byWebsite  map[string]*models.Company
	byPhone    map[string]*models.Company
	claimed    map[string]bool
	matched    []*models.Company
}

// NewEngine creates an engine for one order run.
func NewEngine(dir Directory, logger *slog.Logger) *Engine {
	return &Engine{
		dir:        dir,
		logger:     logger,
		byExternal: make(map[string]*models.Company),
		byWebsite:  make(map[string]*models.Company),
		byPhone:    make(map[string]*models.Company),
		claimed:    make(map[string]bool),
	}
}

// Run ingests raw results in provider-returned order and reports counts.
// Running it again over the same raw set produces no new companies.
func (e *Engine) Run(ctx context.Context, raws []*models.RawResult) (Counts, error) {
	var counts Counts
	for _, raw := range raws {
		if err := e.ingest(ctx, raw, &counts); err != nil {
			return counts, err
		}
	}
	return counts, nil
}

func (e *Engine) ingest(ctx context.Context, raw *models.RawResult, counts *Counts) error {
	website := NormalizeWebsite(raw.Website)
	phone := NormalizePhone(raw.Telefon, raw.Land)

	target, err := e.match(ctx, raw, website, phone)
	if err != nil {
		return err
	}
	if target == nil {
		return e.insert(ctx, raw, website, phone, counts)
	}
	return e.merge(ctx, target, raw, website, phone, counts)
}

// match walks the priority chain. At every level the in-run index is
// consulted before the directory so concurrent raws for the same company
// resolve to the run's first claim.
func (e *Engine) match(ctx context.Context, raw *models.RawResult, website, phone string) (*models.Company, error) {
	if raw.ExternalID != "" {
		if c, ok := e.byExternal[externalKey(raw.Quelle, raw.ExternalID)]; ok {
			return c, nil
		}
		c, err := e.dir.FindByExternalID(ctx, raw.Quelle, raw.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("find by external id: %w", err)
		}
		if c != nil {
			return c, nil
		}
	}

	if website != "" {
		if c, ok := e.byWebsite[website]; ok {
			return c, nil
		}
		c, err := e.dir.FindByWebsite(ctx, website)
		if err != nil {
			return nil, fmt.Errorf("find by website: %w", err)
		}
		if c != nil {
			return c, nil
		}
	}

	if phone != "" {
		if c, ok := e.byPhone[phone]; ok {
			return c, nil
		}
		c, err := e.dir.FindByPhone(ctx, phone)
		if err != nil {
			return nil, fmt.Errorf("find by phone: %w", err)
		}
		if c != nil {
			return c, nil
		}
	}

	if raw.Lat != nil && raw.Lng != nil && raw.Name != "" {
		name := NormalizeName(raw.Name)
		for _, c := range e.matched {
			if nameGeoMatch(c, *raw.Lat, *raw.Lng, name) {
				return c, nil
			}
		}
		cands, err := e.dir.FindNearby(ctx, *raw.Lat, *raw.Lng, MaxMatchDistanceM)
		if err != nil {
			return nil, fmt.Errorf("find nearby: %w", err)
		}
		for _, c := range cands {
			if nameGeoMatch(c, *raw.Lat, *raw.Lng, name) {
				return c, nil
			}
		}
	}

	return nil, nil
}

func nameGeoMatch(c *models.Company, lat, lng float64, normName string) bool {
	if c.Lat == nil || c.Lng == nil || normName == "" {
		return false
	}
	if HaversineM(lat, lng, *c.Lat, *c.Lng) > MaxMatchDistanceM {
		return false
	}
	return TokenSetRatio(normName, NormalizeName(c.Firmierung)) >= MinNameRatio
}

func (e *Engine) insert(ctx context.Context, raw *models.RawResult, website, phone string, counts *Counts) error {
	now := time.Now()
	c := &models.Company{
		ID:          uuid.NewString(),
		Firmierung:  raw.Name,
		Strasse:     raw.Strasse,
		PLZ:         raw.PLZ,
		Ort:         raw.Ort,
		Land:        raw.Land,
		Website:     raw.Website,
		Telefon:     raw.Telefon,
		Email:       raw.Email,
		Lat:         raw.Lat,
		Lng:         raw.Lng,
		WebsiteNorm: website,
		TelefonNorm: phone,
		Metadaten:   models.Metadata{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.Metadaten.SetBlock(raw.Quelle, metadataBlock(raw))

	if err := e.dir.Insert(ctx, c); err != nil {
		if errors.Is(err, ErrConflict) {
			// Another worker won the insert race; the record is a duplicate.
			e.logger.Debug("concurrent company insert",
				"source", raw.Quelle, "external_id", raw.ExternalID)
			counts.Duplicate++
			return nil
		}
		return fmt.Errorf("insert company: %w", err)
	}

	counts.New++
	e.remember(c, raw, website, phone)
	return nil
}

func (e *Engine) merge(ctx context.Context, c *models.Company, raw *models.RawResult, website, phone string, counts *Counts) error {
	if e.claimed[c.ID] {
		counts.Duplicate++
		return nil
	}

	changed := fillEmptyFields(c, raw, website, phone)
	if mergeMetadata(c, raw) {
		changed = true
	}

	if changed {
		c.UpdatedAt = time.Now()
		if err := e.dir.Update(ctx, c); err != nil {
			return fmt.Errorf("update company: %w", err)
		}
		counts.Updated++
	} else {
		counts.Duplicate++
	}

	e.remember(c, raw, website, phone)
	return nil
}

// fillEmptyFields applies the if_empty rule: canonical fields are only
// filled when currently empty, never overwritten.
func fillEmptyFields(c *models.Company, raw *models.RawResult, website, phone string) bool {
	changed := false

	set := func(dst *string, val string) {
		if *dst == "" && val != "" {
			*dst = val
			changed = true
		}
	}

	set(&c.Firmierung, raw.Name)
	set(&c.Strasse, raw.Strasse)
	set(&c.PLZ, raw.PLZ)
	set(&c.Ort, raw.Ort)
	set(&c.Land, raw.Land)
	set(&c.Email, raw.Email)

	if c.Website == "" && raw.Website != "" {
		c.Website = raw.Website
		c.WebsiteNorm = website
		changed = true
	}
	if c.Telefon == "" && raw.Telefon != "" {
		c.Telefon = raw.Telefon
		c.TelefonNorm = phone
		changed = true
	}
	if c.Lat == nil && c.Lng == nil && raw.Lat != nil && raw.Lng != nil {
		c.Lat = raw.Lat
		c.Lng = raw.Lng
		changed = true
	}

	return changed
}

// mergeMetadata folds the raw record into the company's per-source block,
// appending and overwriting fields. Reports whether the block changed.
func mergeMetadata(c *models.Company, raw *models.RawResult) bool {
	if c.Metadaten == nil {
		c.Metadaten = models.Metadata{}
	}

	old := c.Metadaten[raw.Quelle]
	merged := make(map[string]any, len(old)+4)
	for k, v := range old {
		merged[k] = v
	}
	for k, v := range metadataBlock(raw) {
		merged[k] = v
	}

	if len(merged) == 0 && old == nil {
		return false
	}
	if reflect.DeepEqual(old, merged) {
		return false
	}
	c.Metadaten.SetBlock(raw.Quelle, merged)
	return true
}

// metadataBlock builds the per-source block for a raw record: the
// provider payload's extra fields plus the identifying columns.
func metadataBlock(raw *models.RawResult) map[string]any {
	block := map[string]any{}
	if len(raw.RawPayload) > 0 {
		// Best effort; a payload that is not an object is skipped.
		_ = json.Unmarshal(raw.RawPayload, &block)
	}
	if raw.ExternalID != "" {
		block["external_id"] = raw.ExternalID
	}
	if raw.Kategorie != "" {
		block["kategorie"] = raw.Kategorie
	}
	return block
}

// remember indexes the company under every signal it now carries so
// later raws in this run resolve to it without a directory query.
func (e *Engine) remember(c *models.Company, raw *models.RawResult, website, phone string) {
	e.claimed[c.ID] = true
	e.matched = append(e.matched, c)

	if raw.ExternalID != "" {
		e.byExternal[externalKey(raw.Quelle, raw.ExternalID)] = c
	}
	for source := range c.Metadaten {
		if id := c.Metadaten.ExternalID(source); id != "" {
			e.byExternal[externalKey(source, id)] = c
		}
	}
	if website != "" {
		e.byWebsite[website] = c
	}
	if c.WebsiteNorm != "" {
		e.byWebsite[c.WebsiteNorm] = c
	}
	if phone != "" {
		e.byPhone[phone] = c
	}
	if c.TelefonNorm != "" {
		e.byPhone[c.TelefonNorm] = c
	}
}

func externalKey(source, id string) string {
	return source + "\x00" + id
}
