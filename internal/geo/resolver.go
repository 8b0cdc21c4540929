// Package geo resolves an order's search area and query text from the
// reference tables. Lookups go through a TTL cache because reference
// data changes rarely and every leased order needs one.
package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/firmenkern/recherche-api/internal/models"
)

var (
	// ErrNoGeoSignal is returned when an order carries no resolvable
	// ort, kreis or postcode.
	ErrNoGeoSignal = errors.New("no resolvable geo signal")
	// ErrNoQuery is returned when neither free text nor a known category
	// yields a search query.
	ErrNoQuery = errors.New("no resolvable search query")
	// ErrNotFound is wrapped when a referenced row does not exist.
	ErrNotFound = errors.New("reference not found")
)

// DefaultPLZRadiusM is the search radius for postcode centroids, which
// carry no radius of their own.
const DefaultPLZRadiusM = 5000

// Reference lookups stay warm for a few minutes; expired entries are
// swept occasionally.
const (
	cacheTTL   = 15 * time.Minute
	cacheSweep = 30 * time.Minute
)

// ReferenceStore is the slice of the repository layer the resolver needs.
type ReferenceStore interface {
	GetOrt(ctx context.Context, id string) (*models.GeoOrt, error)
	GetKreis(ctx context.Context, id string) (*models.GeoKreis, error)
	GetPLZ(ctx context.Context, plz string) (*models.GeoPLZ, error)
	GetKategorie(ctx context.Context, gcid string) (*models.GoogleKategorie, error)
}

// Search is the resolved provider input for one order.
type Search struct {
	Lat      float64
	Lng      float64
	RadiusM  int
	Query    string
	Category string
}

// Resolver maps order parameters to coordinates and query text.
type Resolver struct {
	store ReferenceStore
	cache *cache.Cache
}

// NewResolver creates a resolver over the reference store.
func NewResolver(store ReferenceStore) *Resolver {
	return &Resolver{
		store: store,
		cache: cache.New(cacheTTL, cacheSweep),
	}
}

// Resolve picks the order's geo signal in priority order ort, kreis,
// postcode and the query text from free text, else the category name.
func (r *Resolver) Resolve(ctx context.Context, order *models.Order) (*Search, error) {
	out := &Search{Category: order.CategoryGCID}

	switch {
	case order.GeoOrtID != "":
		ort, err := r.ort(ctx, order.GeoOrtID)
		if err != nil {
			return nil, err
		}
		out.Lat, out.Lng, out.RadiusM = ort.Lat, ort.Lng, ort.RadiusM
	case order.GeoKreisID != "":
		kreis, err := r.kreis(ctx, order.GeoKreisID)
		if err != nil {
			return nil, err
		}
		out.Lat, out.Lng, out.RadiusM = kreis.Lat, kreis.Lng, kreis.RadiusM
	case order.PLZ != "":
		plz, err := r.plz(ctx, order.PLZ)
		if err != nil {
			return nil, err
		}
		out.Lat, out.Lng, out.RadiusM = plz.Lat, plz.Lng, DefaultPLZRadiusM
	default:
		return nil, ErrNoGeoSignal
	}

	if q := strings.TrimSpace(order.Freitext); q != "" {
		out.Query = q
		return out, nil
	}
	if order.CategoryGCID != "" {
		kat, err := r.kategorie(ctx, order.CategoryGCID)
		if err != nil {
			return nil, err
		}
		out.Query = kat.Name
		return out, nil
	}
	return nil, ErrNoQuery
}

func (r *Resolver) ort(ctx context.Context, id string) (*models.GeoOrt, error) {
	key := "ort:" + id
	if v, ok := r.cache.Get(key); ok {
		return v.(*models.GeoOrt), nil
	}
	ort, err := r.store.GetOrt(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get geo_ort: %w", err)
	}
	if ort == nil {
		return nil, fmt.Errorf("%w: geo_ort %q", ErrNotFound, id)
	}
	r.cache.Set(key, ort, cache.DefaultExpiration)
	return ort, nil
}

func (r *Resolver) kreis(ctx context.Context, id string) (*models.GeoKreis, error) {
	key := "kreis:" + id
	if v, ok := r.cache.Get(key); ok {
		return v.(*models.GeoKreis), nil
	}
	kreis, err := r.store.GetKreis(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get geo_kreis: %w", err)
	}
	if kreis == nil {
		return nil, fmt.Errorf("%w: geo_kreis %q", ErrNotFound, id)
	}
	r.cache.Set(key, kreis, cache.DefaultExpiration)
	return kreis, nil
}

func (r *Resolver) plz(ctx context.Context, plz string) (*models.GeoPLZ, error) {
	key := "plz:" + plz
	if v, ok := r.cache.Get(key); ok {
		return v.(*models.GeoPLZ), nil
	}
	row, err := r.store.GetPLZ(ctx, plz)
	if err != nil {
		return nil, fmt.Errorf("get geo_plz: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: geo_plz %q", ErrNotFound, plz)
	}
	r.cache.Set(key, row, cache.DefaultExpiration)
	return row, nil
}

func (r *Resolver) kategorie(ctx context.Context, gcid string) (*models.GoogleKategorie, error) {
	key := "kategorie:" + gcid
	if v, ok := r.cache.Get(key); ok {
		return v.(*models.GoogleKategorie), nil
	}
	kat, err := r.store.GetKategorie(ctx, gcid)
	if err != nil {
		return nil, fmt.Errorf("get google_kategorie: %w", err)
	}
	if kat == nil {
		return nil, fmt.Errorf("%w: google_kategorie %q", ErrNotFound, gcid)
	}
	r.cache.Set(key, kat, cache.DefaultExpiration)
	return kat, nil
}
