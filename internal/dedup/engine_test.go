package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/firmenkern/recherche-api/internal/models"
)

// fakeDirectory implements Directory over an in-memory slice.
type fakeDirectory struct {
	companies []*models.Company
	inserts   int
	updates   int
	insertErr error
	findErr   error
}

func (f *fakeDirectory) FindByExternalID(ctx context.Context, source, externalID string) (*models.Company, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, c := range f.companies {
		if c.Metadaten.ExternalID(source) == externalID {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) FindByWebsite(ctx context.Context, websiteNorm string) (*models.Company, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, c := range f.companies {
		if c.WebsiteNorm == websiteNorm {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) FindByPhone(ctx context.Context, telefonNorm string) (*models.Company, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, c := range f.companies {
		if c.TelefonNorm == telefonNorm {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) FindNearby(ctx context.Context, lat, lng, radiusM float64) ([]*models.Company, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []*models.Company
	for _, c := range f.companies {
		if c.Lat == nil || c.Lng == nil {
			continue
		}
		if HaversineM(lat, lng, *c.Lat, *c.Lng) <= radiusM {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeDirectory) Insert(ctx context.Context, c *models.Company) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserts++
	f.companies = append(f.companies, c)
	return nil
}

func (f *fakeDirectory) Update(ctx context.Context, c *models.Company) error {
	f.updates++
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func floatPtr(v float64) *float64 { return &v }

func TestEngine_InsertsNewCompanies(t *testing.T) {
	dir := &fakeDirectory{}
	engine := NewEngine(dir, testLogger())

	raws := []*models.RawResult{
		{Quelle: "google_places", ExternalID: "g-1", Name: "Autohaus Wagner", Website: "https://wagner.de"},
		{Quelle: "google_places", ExternalID: "g-2", Name: "Pizzeria Napoli", Telefon: "+49 30 111222"},
	}

	counts, err := engine.Run(context.Background(), raws)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if counts.New != 2 || counts.Duplicate != 0 || counts.Updated != 0 {
		t.Errorf("counts = %+v, want {New:2}", counts)
	}
	if dir.inserts != 2 {
		t.Errorf("inserts = %d, want 2", dir.inserts)
	}

	first := dir.companies[0]
	if first.Metadaten.ExternalID("google_places") != "g-1" {
		t.Errorf("metadata external id = %q, want g-1", first.Metadaten.ExternalID("google_places"))
	}
	if first.WebsiteNorm != "wagner.de" {
		t.Errorf("website norm = %q, want wagner.de", first.WebsiteNorm)
	}
}

func TestEngine_ExternalIDMatch(t *testing.T) {
	existing := &models.Company{
		ID:         "c-1",
		Firmierung: "Autohaus Wagner",
		Metadaten:  models.Metadata{"google_places": {"external_id": "g-1"}},
	}
	dir := &fakeDirectory{companies: []*models.Company{existing}}
	engine := NewEngine(dir, testLogger())

	raws := []*models.RawResult{
		{Quelle: "google_places", ExternalID: "g-1", Name: "Autohaus Wagner", Email: "info@wagner.de"},
	}

	counts, err := engine.Run(context.Background(), raws)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if counts.Updated != 1 || counts.New != 0 {
		t.Errorf("counts = %+v, want {Updated:1}", counts)
	}
	if existing.Email != "info@wagner.de" {
		t.Errorf("email not filled: %q", existing.Email)
	}
	if dir.updates != 1 {
		t.Errorf("updates = %d, want 1", dir.updates)
	}
}

func TestEngine_PureDuplicate(t *testing.T) {
	existing := &models.Company{
		ID:         "c-1",
		Firmierung: "Autohaus Wagner",
		Telefon:    "030 111222",
		Email:      "info@wagner.de",
		Metadaten:  models.Metadata{"google_places": {"external_id": "g-1"}},
	}
	dir := &fakeDirectory{companies: []*models.Company{existing}}
	engine := NewEngine(dir, testLogger())

	// Same external id, nothing new to learn.
	raws := []*models.RawResult{
		{Quelle: "google_places", ExternalID: "g-1", Name: "Autohaus Wagner"},
	}

	counts, err := engine.Run(context.Background(), raws)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if counts.Duplicate != 1 || counts.Updated != 0 || counts.New != 0 {
		t.Errorf("counts = %+v, want {Duplicate:1}", counts)
	}
	if dir.updates != 0 {
		t.Errorf("updates = %d, want 0", dir.updates)
	}
}

func TestEngine_WebsiteMatch(t *testing.T) {
	existing := &models.Company{
		ID:          "c-1",
		Firmierung:  "Autohaus Wagner",
		Website:     "https://wagner.de",
		WebsiteNorm: "wagner.de",
	}
	dir := &fakeDirectory{companies: []*models.Company{existing}}
	engine := NewEngine(dir, testLogger())

	// Different source, no known external id, website variant.
	raws := []*models.RawResult{
		{Quelle: "dataforseo", ExternalID: "d-9", Name: "Autohaus Wagner", Website: "http://www.wagner.de/"},
	}

	counts, err := engine.Run(context.Background(), raws)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// The new source block carries the external id, so this is an update.
	if counts.Updated != 1 || counts.New != 0 {
		t.Errorf("counts = %+v, want {Updated:1}", counts)
	}
	if existing.Metadaten.ExternalID("dataforseo") != "d-9" {
		t.Errorf("dataforseo block not recorded: %+v", existing.Metadaten)
	}
}

func TestEngine_PhoneMatch(t *testing.T) {
	existing := &models.Company{
		ID:          "c-1",
		Firmierung:  "Pizzeria Napoli",
		Telefon:     "030 111222",
		TelefonNorm: "030111222",
	}
	dir := &fakeDirectory{companies: []*models.Company{existing}}
	engine := NewEngine(dir, testLogger())

	raws := []*models.RawResult{
		{Quelle: "dataforseo", Name: "Pizzeria Napoli", Telefon: "+49 30 111222", Land: "DE"},
	}

	counts, err := engine.Run(context.Background(), raws)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if counts.New != 0 {
		t.Errorf("counts = %+v, want no new companies", counts)
	}
}

func TestEngine_GeoNameMatch(t *testing.T) {
	existing := &models.Company{
		ID:         "c-1",
		Firmierung: "Müller & Söhne GmbH",
		Lat:        floatPtr(52.5200),
		Lng:        floatPtr(13.4050),
	}
	dir := &fakeDirectory{companies: []*models.Company{existing}}
	engine := NewEngine(dir, testLogger())

	// About 110 m north of the existing pin, name folded differently.
	raws := []*models.RawResult{
		{Quelle: "dataforseo", Name: "Mueller Soehne", Lat: floatPtr(52.5210), Lng: floatPtr(13.4050)},
	}

	counts, err := engine.Run(context.Background(), raws)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if counts.New != 0 {
		t.Errorf("geo+name should match, counts = %+v", counts)
	}
}

func TestEngine_GeoNameTooFar(t *testing.T) {
	existing := &models.Company{
		ID:         "c-1",
		Firmierung: "Müller & Söhne GmbH",
		Lat:        floatPtr(52.5200),
		Lng:        floatPtr(13.4050),
	}
	dir := &fakeDirectory{companies: []*models.Company{existing}}
	engine := NewEngine(dir, testLogger())

	// Same name, roughly 550 m away.
	raws := []*models.RawResult{
		{Quelle: "dataforseo", Name: "Müller & Söhne GmbH", Lat: floatPtr(52.5250), Lng: floatPtr(13.4050)},
	}

	counts, err := engine.Run(context.Background(), raws)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if counts.New != 1 {
		t.Errorf("distant record must create a company, counts = %+v", counts)
	}
}

func TestEngine_FirstSeenWins(t *testing.T) {
	dir := &fakeDirectory{}
	engine := NewEngine(dir, testLogger())

	raws := []*models.RawResult{
		{Quelle: "google_places", ExternalID: "g-1", Name: "Autohaus Wagner"},
		{Quelle: "google_places", ExternalID: "g-1", Name: "Autohaus Wagner GmbH"},
	}

	counts, err := engine.Run(context.Background(), raws)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if counts.New != 1 || counts.Duplicate != 1 {
		t.Errorf("counts = %+v, want {New:1 Duplicate:1}", counts)
	}
	if dir.inserts != 1 {
		t.Errorf("inserts = %d, want 1", dir.inserts)
	}
}

func TestEngine_InRunIndexSpansSignals(t *testing.T) {
	dir := &fakeDirectory{}
	engine := NewEngine(dir, testLogger())

	// Second raw carries no external id but the same website as the first.
	raws := []*models.RawResult{
		{Quelle: "google_places", ExternalID: "g-1", Name: "Autohaus Wagner", Website: "https://wagner.de"},
		{Quelle: "dataforseo", Name: "Wagner Autohaus", Website: "www.wagner.de/"},
	}

	counts, err := engine.Run(context.Background(), raws)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if counts.New != 1 || counts.Duplicate != 1 {
		t.Errorf("counts = %+v, want {New:1 Duplicate:1}", counts)
	}
}

func TestEngine_InsertConflictCountsDuplicate(t *testing.T) {
	dir := &fakeDirectory{insertErr: ErrConflict}
	engine := NewEngine(dir, testLogger())

	raws := []*models.RawResult{
		{Quelle: "google_places", ExternalID: "g-1", Name: "Autohaus Wagner"},
	}

	counts, err := engine.Run(context.Background(), raws)
	if err != nil {
		t.Fatalf("conflict must not fail the run: %v", err)
	}
	if counts.Duplicate != 1 || counts.New != 0 {
		t.Errorf("counts = %+v, want {Duplicate:1}", counts)
	}
}

func TestEngine_IfEmptyNeverOverwrites(t *testing.T) {
	existing := &models.Company{
		ID:          "c-1",
		Firmierung:  "Autohaus Wagner",
		Telefon:     "030 999888",
		TelefonNorm: "030999888",
		Metadaten:   models.Metadata{"google_places": {"external_id": "g-1"}},
	}
	dir := &fakeDirectory{companies: []*models.Company{existing}}
	engine := NewEngine(dir, testLogger())

	raws := []*models.RawResult{
		{Quelle: "google_places", ExternalID: "g-1", Name: "Autohaus Wagner", Telefon: "030 111222"},
	}

	if _, err := engine.Run(context.Background(), raws); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if existing.Telefon != "030 999888" {
		t.Errorf("existing phone overwritten: %q", existing.Telefon)
	}
}

func TestEngine_RerunProducesNoNewCompanies(t *testing.T) {
	dir := &fakeDirectory{}

	payload, _ := json.Marshal(map[string]any{"rating": 4.5})
	raws := []*models.RawResult{
		{Quelle: "google_places", ExternalID: "g-1", Name: "Autohaus Wagner", Website: "https://wagner.de", RawPayload: payload},
		{Quelle: "dataforseo", ExternalID: "d-2", Name: "Pizzeria Napoli", Telefon: "+49 30 111222", Land: "DE"},
	}

	first, err := NewEngine(dir, testLogger()).Run(context.Background(), raws)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.New != 2 {
		t.Fatalf("first run counts = %+v, want {New:2}", first)
	}

	second, err := NewEngine(dir, testLogger()).Run(context.Background(), raws)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.New != 0 {
		t.Errorf("second run created companies: %+v", second)
	}
	if dir.inserts != 2 {
		t.Errorf("inserts = %d, want 2", dir.inserts)
	}
}

func TestEngine_DirectoryErrorPropagates(t *testing.T) {
	wantErr := errors.New("connection reset")
	dir := &fakeDirectory{findErr: wantErr}
	engine := NewEngine(dir, testLogger())

	raws := []*models.RawResult{
		{Quelle: "google_places", ExternalID: "g-1", Name: "Autohaus Wagner"},
	}

	if _, err := engine.Run(context.Background(), raws); !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped directory error, got %v", err)
	}
}
