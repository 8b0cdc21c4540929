package provider

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/firmenkern/recherche-api/internal/models"
)

var (
	// ErrUnknownTier is returned for a tier outside the static table.
	ErrUnknownTier = errors.New("unknown quality tier")
	// ErrNoProvidersConfigured is returned when a tier resolves to an
	// empty set of usable drivers.
	ErrNoProvidersConfigured = errors.New("no providers configured for tier")
)

// tierTable maps each quality tier to its driver names in invocation
// order.
var tierTable = map[models.QualityTier][]string{
	models.TierStandard: {NameDataForSEO},
	models.TierPremium:  {NameGooglePlaces},
	models.TierKomplett: {NameGooglePlaces, NameDataForSEO},
}

// Registry holds the drivers available to one worker iteration. It is
// rebuilt from runtime settings before every order so credential changes
// take effect without a restart.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register adds a driver. Registration is idempotent by name; a later
// registration replaces an earlier one.
func (r *Registry) Register(d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[d.Name()] = d
}

// Get returns a driver by name.
func (r *Registry) Get(name string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[name]
	return d, ok
}

// Names returns all registered driver names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProvidersForTier resolves a tier to its usable drivers: registered and
// holding credentials, in the table's invocation order. Unregistered or
// unconfigured names are skipped; an empty result is an error.
func (r *Registry) ProvidersForTier(tier models.QualityTier) ([]Driver, error) {
	names, ok := tierTable[tier]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Driver
	for _, name := range names {
		d, ok := r.drivers[name]
		if !ok || !d.Configured() {
			continue
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoProvidersConfigured, tier)
	}
	return out, nil
}
