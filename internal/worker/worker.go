// Package worker runs the order dispatch loop: lease a confirmed order,
// collect provider results, ingest them into the company directory and
// settle the charge. Multiple processes share the queue safely; leasing
// uses FOR UPDATE SKIP LOCKED.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/firmenkern/recherche-api/internal/billing"
	"github.com/firmenkern/recherche-api/internal/dedup"
	"github.com/firmenkern/recherche-api/internal/geo"
	"github.com/firmenkern/recherche-api/internal/metrics"
	"github.com/firmenkern/recherche-api/internal/models"
	"github.com/firmenkern/recherche-api/internal/provider"
	"github.com/firmenkern/recherche-api/internal/repository"
	"github.com/firmenkern/recherche-api/internal/service"
)

// backoffFactor stretches the poll interval while no provider holds
// credentials, so an unconfigured deployment does not hammer settings.
const backoffFactor = 6

// errAllProvidersFailed marks an order whose every driver invocation
// failed. Partial failures complete the order with the surviving results.
var errAllProvidersFailed = errors.New("all providers failed")

// Dispatcher leases confirmed orders and runs the collection pipeline.
type Dispatcher struct {
	repos    *repository.Repositories
	settings *service.SettingsService
	ledger   *service.LedgerService
	archive  *service.ArchiveService
	resolver *geo.Resolver

	pollInterval time.Duration
	concurrency  int
	staleAfter   time.Duration

	stop   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

// Config holds dispatcher configuration.
type Config struct {
	PollInterval    time.Duration
	Concurrency     int
	StaleOrderAfter time.Duration
}

// New creates a dispatcher. The archive service may be nil.
func New(
	repos *repository.Repositories,
	settings *service.SettingsService,
	ledger *service.LedgerService,
	archive *service.ArchiveService,
	cfg Config,
	logger *slog.Logger,
) *Dispatcher {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}
	if cfg.StaleOrderAfter == 0 {
		cfg.StaleOrderAfter = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		repos:        repos,
		settings:     settings,
		ledger:       ledger,
		archive:      archive,
		resolver:     geo.NewResolver(repos.Geo),
		pollInterval: cfg.PollInterval,
		concurrency:  cfg.Concurrency,
		staleAfter:   cfg.StaleOrderAfter,
		stop:         make(chan struct{}),
		logger:       logger.With("component", "dispatcher", "instance", ulid.Make().String()),
	}
}

// Start sweeps orders a dead worker left in PROCESSING, then begins
// polling.
func (w *Dispatcher) Start(ctx context.Context) {
	if swept, err := w.repos.Order.SweepStale(ctx, w.staleAfter); err != nil {
		w.logger.Error("failed to sweep stale orders", "error", err)
	} else if swept > 0 {
		w.logger.Warn("swept stale orders", "count", swept, "older_than", w.staleAfter)
	}

	w.logger.Info("starting", "concurrency", w.concurrency, "poll_interval", w.pollInterval)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.runLoop(ctx, i)
	}
}

// Stop finishes in-flight orders and returns. No new lease is attempted
// once called.
func (w *Dispatcher) Stop() {
	w.logger.Info("stopping")
	close(w.stop)
	w.wg.Wait()
	w.logger.Info("stopped")
}

// RunOnce processes at most one order and reports whether one was
// leased. Used by the worker CLI's --once flag.
func (w *Dispatcher) RunOnce(ctx context.Context) (bool, error) {
	reg, err := w.buildRegistry(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to build provider registry: %w", err)
	}
	if reg == nil {
		w.logger.Warn("no provider credentials configured")
		return false, nil
	}

	order, err := w.repos.Order.LeaseNext(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to lease order: %w", err)
	}
	if order == nil {
		return false, nil
	}

	w.process(ctx, order, reg)
	return true, nil
}

func (w *Dispatcher) runLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var backoffUntil time.Time
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx, workerID, &backoffUntil)
		}
	}
}

// tick runs one poll iteration. The registry is rebuilt from settings
// every time so credential changes apply without a restart.
func (w *Dispatcher) tick(ctx context.Context, workerID int, backoffUntil *time.Time) {
	if time.Now().Before(*backoffUntil) {
		return
	}

	reg, err := w.buildRegistry(ctx)
	if err != nil {
		w.logger.Error("failed to build provider registry", "worker_id", workerID, "error", err)
		return
	}
	if reg == nil {
		*backoffUntil = time.Now().Add(backoffFactor * w.pollInterval)
		w.logger.Warn("no provider credentials configured, backing off",
			"worker_id", workerID,
			"retry_in", backoffFactor*w.pollInterval,
		)
		return
	}

	order, err := w.repos.Order.LeaseNext(ctx)
	if err != nil {
		w.logger.Error("failed to lease order", "worker_id", workerID, "error", err)
		return
	}
	if order == nil {
		return
	}

	w.process(ctx, order, reg)
}

// buildRegistry assembles drivers from the current settings. Returns nil
// when no driver holds credentials.
func (w *Dispatcher) buildRegistry(ctx context.Context) (*provider.Registry, error) {
	creds, err := w.settings.ProviderCredentials(ctx)
	if err != nil {
		return nil, err
	}

	google := provider.NewGooglePlacesDriver(creds.GooglePlacesAPIKey)
	dataforseo := provider.NewDataForSEODriver(creds.DataForSEOLogin, creds.DataForSEOPassword)
	if !google.Configured() && !dataforseo.Configured() {
		return nil, nil
	}

	reg := provider.NewRegistry()
	reg.Register(google)
	reg.Register(dataforseo)
	return reg, nil
}

// process runs the pipeline for one leased order and leaves it in a
// terminal status.
func (w *Dispatcher) process(ctx context.Context, order *models.Order, reg *provider.Registry) {
	start := time.Now()
	defer func() {
		metrics.OrderDuration.Observe(time.Since(start).Seconds())
	}()

	logger := w.logger.With(
		"order_id", order.ID,
		"partner_id", order.PartnerID,
		"attempt", order.Attempts,
	)
	logger.Info("processing order", "tier", order.QualityTier)

	raws, err := w.collect(ctx, order, reg, logger)
	if err != nil {
		w.fail(ctx, order, err, logger)
		return
	}

	// Raw results commit before settlement so they survive a failed
	// debit.
	if err := w.persistRaws(ctx, raws); err != nil {
		w.fail(ctx, order, fmt.Errorf("failed to persist raw results: %w", err), logger)
		return
	}

	counts, costCents, err := w.settle(ctx, order, raws)
	if err != nil {
		w.fail(ctx, order, err, logger)
		return
	}

	metrics.OrdersProcessed.WithLabelValues("completed").Inc()

	now := time.Now().UTC()
	order.Status = models.OrderStatusCompleted
	order.RawCount = len(raws)
	order.NewCount = counts.New
	order.DuplicateCount = counts.Duplicate
	order.UpdatedCount = counts.Updated
	order.ActualCostCents = costCents
	order.CompletedAt = &now

	if w.archive != nil {
		if err := w.archive.StoreOrderResults(ctx, order, raws); err != nil {
			logger.Warn("failed to archive order results", "error", err)
		}
	}

	logger.Info("order completed",
		"raw_count", order.RawCount,
		"new_count", counts.New,
		"duplicate_count", counts.Duplicate,
		"updated_count", counts.Updated,
		"actual_cost_cents", costCents,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// collect resolves the search area and invokes the tier's drivers in
// order. Driver failures are skipped and their partial results kept; only
// all drivers failing aborts the order.
func (w *Dispatcher) collect(ctx context.Context, order *models.Order, reg *provider.Registry, logger *slog.Logger) ([]*models.RawResult, error) {
	search, err := w.resolver.Resolve(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve search area: %w", err)
	}

	drivers, err := reg.ProvidersForTier(order.QualityTier)
	if err != nil {
		return nil, err
	}

	resultCap := w.settings.MaxResultsCap(ctx)
	in := provider.SearchInput{
		Lat:        search.Lat,
		Lng:        search.Lng,
		RadiusM:    search.RadiusM,
		Query:      search.Query,
		Category:   search.Category,
		MaxResults: resultCap,
	}

	var (
		raws      []*models.RawResult
		totalUSD  decimal.Decimal
		succeeded int
	)
	for _, d := range drivers {
		records, costUSD, err := d.Search(ctx, in)
		totalUSD = totalUSD.Add(costUSD)

		costF, _ := costUSD.Float64()
		metrics.ProviderCostUSD.WithLabelValues(d.Name()).Add(costF)
		metrics.RawResults.WithLabelValues(d.Name()).Add(float64(len(records)))

		if err != nil {
			metrics.ProviderRequests.WithLabelValues(d.Name(), "error").Inc()
			logger.Warn("provider search failed",
				"provider", d.Name(),
				"kept_results", len(records),
				"error", err,
			)
		} else {
			metrics.ProviderRequests.WithLabelValues(d.Name(), "ok").Inc()
			succeeded++
		}

		for _, rec := range records {
			raws = append(raws, rawResult(order, d.Name(), rec))
		}
	}

	if succeeded == 0 {
		return nil, fmt.Errorf("%w for tier %s", errAllProvidersFailed, order.QualityTier)
	}
	if len(raws) > resultCap {
		raws = raws[:resultCap]
	}

	logger.Info("providers invoked",
		"raw_count", len(raws),
		"provider_cost_usd", totalUSD.StringFixed(4),
	)
	return raws, nil
}

// persistRaws commits the raw rows in their own transaction.
func (w *Dispatcher) persistRaws(ctx context.Context, raws []*models.RawResult) error {
	if len(raws) == 0 {
		return nil
	}

	tx, err := w.repos.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := w.repos.WithTx(tx).RawResult.CreateBatch(ctx, raws); err != nil {
		return err
	}
	return tx.Commit()
}

// settle runs dedup, computes the cost and debits the partner, and marks
// the order completed, all in one transaction.
func (w *Dispatcher) settle(ctx context.Context, order *models.Order, raws []*models.RawResult) (dedup.Counts, int64, error) {
	partner, err := w.repos.Partner.GetByID(ctx, order.PartnerID)
	if err != nil {
		return dedup.Counts{}, 0, fmt.Errorf("failed to load partner: %w", err)
	}
	if partner == nil {
		return dedup.Counts{}, 0, fmt.Errorf("partner %s not found", order.PartnerID)
	}

	tx, err := w.repos.BeginTx(ctx, nil)
	if err != nil {
		return dedup.Counts{}, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	txRepos := w.repos.WithTx(tx)

	engine := dedup.NewEngine(txRepos.Company, w.logger)
	counts, err := engine.Run(ctx, raws)
	if err != nil {
		return counts, 0, fmt.Errorf("failed to ingest results: %w", err)
	}

	costCents := billing.CostCents(billing.CardFromPartner(partner), order.QualityTier, counts.New)
	if costCents > 0 {
		ref := models.Reference{Type: "auftrag", ID: order.ID}
		description := fmt.Sprintf("Recherche order %s", order.ID)
		if _, err := w.ledger.DebitInTx(ctx, tx, order.PartnerID, costCents, ref, "worker", description); err != nil {
			return counts, 0, err
		}
	}

	if err := txRepos.Order.Complete(ctx, order.ID, len(raws), counts.New, counts.Duplicate, counts.Updated, costCents); err != nil {
		return counts, 0, fmt.Errorf("failed to complete order: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return counts, 0, fmt.Errorf("failed to commit settlement: %w", err)
	}

	metrics.DedupOutcomes.WithLabelValues("new").Add(float64(counts.New))
	metrics.DedupOutcomes.WithLabelValues("duplicate").Add(float64(counts.Duplicate))
	metrics.DedupOutcomes.WithLabelValues("updated").Add(float64(counts.Updated))

	return counts, costCents, nil
}

// fail marks the order FAILED in a session separate from the rolled-back
// pipeline transaction.
func (w *Dispatcher) fail(ctx context.Context, order *models.Order, cause error, logger *slog.Logger) {
	kind := failureKind(cause)
	if err := w.repos.Order.Fail(ctx, order.ID, kind+": "+cause.Error()); err != nil {
		logger.Error("failed to mark order failed", "error", err)
	}

	metrics.OrdersProcessed.WithLabelValues("failed").Inc()
	logger.Error("order failed", "kind", kind, "error", cause)
}

// failureKind maps a pipeline error to the kind stored ahead of the
// detail text.
func failureKind(err error) string {
	switch {
	case errors.Is(err, billing.ErrInsufficientFunds):
		return "INSUFFICIENT_FUNDS"
	case errors.Is(err, billing.ErrAccountSuspended):
		return "ACCOUNT_SUSPENDED"
	case errors.Is(err, provider.ErrUnknownTier):
		return "UNKNOWN_TIER"
	case errors.Is(err, provider.ErrNoProvidersConfigured):
		return "PROVIDER_NOT_CONFIGURED"
	case errors.Is(err, errAllProvidersFailed):
		return "PROVIDER_HTTP_ERROR"
	case errors.Is(err, geo.ErrNoGeoSignal), errors.Is(err, geo.ErrNoQuery), errors.Is(err, geo.ErrNotFound):
		return "GEO_NOT_FOUND"
	default:
		return "TRANSIENT_DB_ERROR"
	}
}

// rawResult maps a provider record onto a stored row for the order.
func rawResult(order *models.Order, source string, rec provider.RawRecord) *models.RawResult {
	return &models.RawResult{
		ID:         ulid.Make().String(),
		AuftragID:  order.ID,
		Quelle:     source,
		ExternalID: rec.ExternalID,
		Name:       rec.Name,
		Strasse:    rec.Strasse,
		PLZ:        rec.PLZ,
		Ort:        rec.Ort,
		Land:       rec.Land,
		Telefon:    rec.Telefon,
		Email:      rec.Email,
		Website:    rec.Website,
		Kategorie:  rec.Kategorie,
		Lat:        rec.Lat,
		Lng:        rec.Lng,
		RawPayload: rec.RawPayload,
		CreatedAt:  time.Now().UTC(),
	}
}
