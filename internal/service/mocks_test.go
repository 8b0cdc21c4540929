package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/firmenkern/recherche-api/internal/models"
	"github.com/firmenkern/recherche-api/internal/repository"
)

// mockOrderRepository implements repository.OrderRepository for testing.
type mockOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{
		orders: make(map[string]*models.Order),
	}
}

func (m *mockOrderRepository) Create(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *order
	m.orders[order.ID] = &copied
	return nil
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if order, ok := m.orders[id]; ok {
		copied := *order
		return &copied, nil
	}
	return nil, nil
}

func (m *mockOrderRepository) ListByPartner(ctx context.Context, partnerID string, status models.OrderStatus, limit, offset int) ([]*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.Order
	for _, order := range m.orders {
		if order.PartnerID != partnerID {
			continue
		}
		if status != "" && order.Status != status {
			continue
		}
		copied := *order
		result = append(result, &copied)
	}
	sortOrders(result)
	return paginateOrders(result, limit, offset), nil
}

func (m *mockOrderRepository) ListByStatus(ctx context.Context, status models.OrderStatus, limit, offset int) ([]*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.Order
	for _, order := range m.orders {
		if status != "" && order.Status != status {
			continue
		}
		copied := *order
		result = append(result, &copied)
	}
	sortOrders(result)
	return paginateOrders(result, limit, offset), nil
}

func (m *mockOrderRepository) Confirm(ctx context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok || order.Status != models.OrderStatusDraft {
		return nil, nil
	}
	now := time.Now().UTC()
	order.Status = models.OrderStatusConfirmed
	order.ConfirmedAt = &now
	copied := *order
	return &copied, nil
}

func (m *mockOrderRepository) LeaseNext(ctx context.Context) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var candidates []*models.Order
	for _, order := range m.orders {
		if order.Status == models.OrderStatusConfirmed && order.Attempts < order.MaxAttempts {
			candidates = append(candidates, order)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sortOrders(candidates)
	order := candidates[0]
	now := time.Now().UTC()
	order.Status = models.OrderStatusProcessing
	order.Attempts++
	order.StartedAt = &now
	copied := *order
	return &copied, nil
}

func (m *mockOrderRepository) Complete(ctx context.Context, id string, rawCount, newCount, duplicateCount, updatedCount int, actualCostCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok || order.Status != models.OrderStatusProcessing {
		return nil
	}
	now := time.Now().UTC()
	order.Status = models.OrderStatusCompleted
	order.RawCount = rawCount
	order.NewCount = newCount
	order.DuplicateCount = duplicateCount
	order.UpdatedCount = updatedCount
	order.ActualCostCents = actualCostCents
	order.CompletedAt = &now
	return nil
}

func (m *mockOrderRepository) Fail(ctx context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok || order.Status != models.OrderStatusProcessing {
		return nil
	}
	now := time.Now().UTC()
	order.Status = models.OrderStatusFailed
	order.ErrorMessage = message
	order.CompletedAt = &now
	return nil
}

func (m *mockOrderRepository) SweepStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	var swept int64
	for _, order := range m.orders {
		if order.Status == models.OrderStatusProcessing && order.StartedAt != nil && order.StartedAt.Before(cutoff) {
			order.Status = models.OrderStatusFailed
			order.ErrorMessage = "worker terminated unexpectedly"
			swept++
		}
	}
	return swept, nil
}

func sortOrders(orders []*models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}

func paginateOrders(orders []*models.Order, limit, offset int) []*models.Order {
	if offset >= len(orders) {
		return []*models.Order{}
	}
	orders = orders[offset:]
	if limit > 0 && limit < len(orders) {
		orders = orders[:limit]
	}
	return orders
}

// mockPartnerRepository implements repository.PartnerRepository for testing.
type mockPartnerRepository struct {
	mu       sync.RWMutex
	partners map[string]*models.Partner
}

func newMockPartnerRepository() *mockPartnerRepository {
	return &mockPartnerRepository{
		partners: make(map[string]*models.Partner),
	}
}

func (m *mockPartnerRepository) GetByID(ctx context.Context, id string) (*models.Partner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if partner, ok := m.partners[id]; ok {
		copied := *partner
		return &copied, nil
	}
	return nil, nil
}

func (m *mockPartnerRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*models.Partner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, partner := range m.partners {
		if partner.APIKeyHash == hash {
			copied := *partner
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockPartnerRepository) Upsert(ctx context.Context, partner *models.Partner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *partner
	m.partners[partner.ID] = &copied
	return nil
}

func (m *mockPartnerRepository) SetSuspended(ctx context.Context, id string, suspended bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if partner, ok := m.partners[id]; ok {
		partner.Suspended = suspended
	}
	return nil
}

// mockAccountRepository implements repository.AccountRepository for testing.
type mockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*models.BillingAccount // keyed by account id
}

func newMockAccountRepository() *mockAccountRepository {
	return &mockAccountRepository{
		accounts: make(map[string]*models.BillingAccount),
	}
}

func (m *mockAccountRepository) put(account *models.BillingAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *account
	m.accounts[account.ID] = &copied
}

func (m *mockAccountRepository) GetByPartnerID(ctx context.Context, partnerID string) (*models.BillingAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, account := range m.accounts {
		if account.PartnerID == partnerID {
			copied := *account
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockAccountRepository) EnsureAndLock(ctx context.Context, partnerID string) (*models.BillingAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.accounts {
		if account.PartnerID == partnerID {
			copied := *account
			return &copied, nil
		}
	}
	account := &models.BillingAccount{
		ID:                    "konto-" + partnerID,
		PartnerID:             partnerID,
		WarningThresholdCents: 1000,
		CreatedAt:             time.Now().UTC(),
	}
	m.accounts[account.ID] = account
	copied := *account
	return &copied, nil
}

func (m *mockAccountRepository) UpdateBalance(ctx context.Context, id string, balanceCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[id]; ok {
		account.BalanceCents = balanceCents
	}
	return nil
}

func (m *mockAccountRepository) SetWarningSent(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[id]; ok {
		account.WarningSentAt = &at
	}
	return nil
}

func (m *mockAccountRepository) SetSuspended(ctx context.Context, id string, suspended bool, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[id]; ok {
		account.Suspended = suspended
		account.SuspensionReason = reason
	}
	return nil
}

// mockTransactionRepository implements repository.TransactionRepository
// for testing.
type mockTransactionRepository struct {
	mu      sync.RWMutex
	entries []*models.CreditTransaction
}

func newMockTransactionRepository() *mockTransactionRepository {
	return &mockTransactionRepository{}
}

func (m *mockTransactionRepository) Create(ctx context.Context, tx *models.CreditTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *tx
	m.entries = append(m.entries, &copied)
	return nil
}

func (m *mockTransactionRepository) ListByKonto(ctx context.Context, kontoID string, limit, offset int) ([]*models.CreditTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.CreditTransaction
	for i := len(m.entries) - 1; i >= 0; i-- { // newest first
		if m.entries[i].KontoID == kontoID {
			copied := *m.entries[i]
			result = append(result, &copied)
		}
	}
	if offset >= len(result) {
		return []*models.CreditTransaction{}, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockTransactionRepository) GetByReference(ctx context.Context, referenceType, referenceID string) (*models.CreditTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, entry := range m.entries {
		if entry.ReferenceType == referenceType && entry.ReferenceID == referenceID {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, nil
}

// mockSettingsRepository implements repository.SettingsRepository for
// testing.
type mockSettingsRepository struct {
	mu       sync.RWMutex
	settings map[string]*models.Setting
}

func newMockSettingsRepository() *mockSettingsRepository {
	return &mockSettingsRepository{
		settings: make(map[string]*models.Setting),
	}
}

func (m *mockSettingsRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if setting, ok := m.settings[key]; ok {
		copied := *setting
		return &copied, nil
	}
	return nil, nil
}

func (m *mockSettingsRepository) GetAll(ctx context.Context) ([]*models.Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.settings))
	for key := range m.settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	result := make([]*models.Setting, 0, len(keys))
	for _, key := range keys {
		copied := *m.settings[key]
		result = append(result, &copied)
	}
	return result, nil
}

func (m *mockSettingsRepository) Upsert(ctx context.Context, setting *models.Setting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *setting
	m.settings[setting.Key] = &copied
	return nil
}

// mockRawResultRepository implements repository.RawResultRepository for
// testing.
type mockRawResultRepository struct {
	mu      sync.RWMutex
	results map[string][]*models.RawResult // keyed by auftrag id
}

func newMockRawResultRepository() *mockRawResultRepository {
	return &mockRawResultRepository{
		results: make(map[string][]*models.RawResult),
	}
}

func (m *mockRawResultRepository) CreateBatch(ctx context.Context, results []*models.RawResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, raw := range results {
		copied := *raw
		m.results[raw.AuftragID] = append(m.results[raw.AuftragID], &copied)
	}
	return nil
}

func (m *mockRawResultRepository) GetByAuftragID(ctx context.Context, auftragID string) ([]*models.RawResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raws := m.results[auftragID]
	result := make([]*models.RawResult, 0, len(raws))
	for _, raw := range raws {
		copied := *raw
		result = append(result, &copied)
	}
	return result, nil
}

// mockUsageRepository implements repository.UsageRepository for testing.
type mockUsageRepository struct {
	mu      sync.RWMutex
	records []*models.UsageRecord
}

func newMockUsageRepository() *mockUsageRepository {
	return &mockUsageRepository{}
}

func (m *mockUsageRepository) Create(ctx context.Context, record *models.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *record
	m.records = append(m.records, &copied)
	return nil
}

func (m *mockUsageRepository) SummaryByPartner(ctx context.Context, partnerID string, since time.Time) (*repository.UsageSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary := &repository.UsageSummary{}
	for _, record := range m.records {
		if record.PartnerID != partnerID || record.CreatedAt.Before(since) {
			continue
		}
		summary.Requests++
		summary.TotalCostCents += record.CostCents
	}
	return summary, nil
}

// stringPtr returns a pointer to s, for optional event fields.
func stringPtr(s string) *string {
	return &s
}

func intPtr(n int) *int {
	return &n
}
