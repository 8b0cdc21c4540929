package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/firmenkern/recherche-api/internal/crypto"
	"github.com/firmenkern/recherche-api/internal/models"
	"github.com/firmenkern/recherche-api/internal/repository"
)

// DefaultMaxResults is the per-order result cap when
// bulk_action_max_results is unset.
const DefaultMaxResults = 100

// redactedValue replaces encrypted setting values in admin reads.
const redactedValue = "********"

// encryptedSettingKeys are stored as AES-256-GCM ciphertext.
var encryptedSettingKeys = map[string]bool{
	models.SettingGooglePlacesAPIKey: true,
	models.SettingDataForSEOLogin:    true,
	models.SettingDataForSEOPassword: true,
}

// knownSettingKeys is the full set the admin API accepts.
var knownSettingKeys = map[string]bool{
	models.SettingGooglePlacesAPIKey: true,
	models.SettingDataForSEOLogin:    true,
	models.SettingDataForSEOPassword: true,
	models.SettingBulkActionMax:      true,
}

// ProviderCredentials is the decrypted credential set used to build
// provider drivers. Empty fields mean the provider is unconfigured.
type ProviderCredentials struct {
	GooglePlacesAPIKey string
	DataForSEOLogin    string
	DataForSEOPassword string
}

// SettingsService manages runtime settings (sys_einstellung). Provider
// credentials are encrypted at rest and redacted on admin reads; the
// dispatcher re-reads them every iteration so changes apply without a
// restart.
type SettingsService struct {
	repos     *repository.Repositories
	encryptor *crypto.Encryptor
	logger    *slog.Logger
}

// NewSettingsService creates a new settings service. The encryptor may be
// nil, in which case encrypted settings can neither be stored nor read.
func NewSettingsService(repos *repository.Repositories, encryptor *crypto.Encryptor, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		repos:     repos,
		encryptor: encryptor,
		logger:    logger,
	}
}

// Set validates and stores a setting. Returns the stored setting with the
// value redacted when it is encrypted.
func (s *SettingsService) Set(ctx context.Context, key, value string) (*models.Setting, error) {
	if !knownSettingKeys[key] {
		return nil, fmt.Errorf("%w: unknown setting %q", ErrInvalidInput, key)
	}

	if key == models.SettingBulkActionMax {
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: %s must be a positive integer", ErrInvalidInput, key)
		}
	}

	encrypted := encryptedSettingKeys[key]
	stored := value
	if encrypted && value != "" {
		if s.encryptor == nil {
			return nil, fmt.Errorf("encryption key not configured; cannot store %s", key)
		}
		ciphertext, err := s.encryptor.Encrypt(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt setting: %w", err)
		}
		stored = ciphertext
	}

	setting := &models.Setting{
		Key:            key,
		Value:          stored,
		Verschluesselt: encrypted,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := s.repos.Settings.Upsert(ctx, setting); err != nil {
		return nil, fmt.Errorf("failed to store setting: %w", err)
	}

	s.logger.Info("setting updated", "key", key, "encrypted", encrypted)

	return redactSetting(setting), nil
}

// Get returns the decrypted value of a setting, empty when unset.
func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	setting, err := s.repos.Settings.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to load setting: %w", err)
	}
	if setting == nil {
		return "", nil
	}
	if setting.Verschluesselt && setting.Value != "" {
		if s.encryptor == nil {
			return "", fmt.Errorf("encryption key not configured; cannot read %s", key)
		}
		plaintext, err := s.encryptor.Decrypt(setting.Value)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt setting %s: %w", key, err)
		}
		return plaintext, nil
	}
	return setting.Value, nil
}

// ListRedacted returns all settings with encrypted values masked, for the
// admin surface.
func (s *SettingsService) ListRedacted(ctx context.Context) ([]*models.Setting, error) {
	settings, err := s.repos.Settings.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	out := make([]*models.Setting, 0, len(settings))
	for _, setting := range settings {
		out = append(out, redactSetting(setting))
	}
	return out, nil
}

// ProviderCredentials reads and decrypts the provider credential settings.
func (s *SettingsService) ProviderCredentials(ctx context.Context) (*ProviderCredentials, error) {
	google, err := s.Get(ctx, models.SettingGooglePlacesAPIKey)
	if err != nil {
		return nil, err
	}
	login, err := s.Get(ctx, models.SettingDataForSEOLogin)
	if err != nil {
		return nil, err
	}
	password, err := s.Get(ctx, models.SettingDataForSEOPassword)
	if err != nil {
		return nil, err
	}
	return &ProviderCredentials{
		GooglePlacesAPIKey: google,
		DataForSEOLogin:    login,
		DataForSEOPassword: password,
	}, nil
}

// MaxResultsCap returns the per-order result cap. Unset or unparseable
// values fall back to the default.
func (s *SettingsService) MaxResultsCap(ctx context.Context) int {
	value, err := s.Get(ctx, models.SettingBulkActionMax)
	if err != nil {
		s.logger.Warn("failed to read result cap, using default", "error", err)
		return DefaultMaxResults
	}
	if value == "" {
		return DefaultMaxResults
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		s.logger.Warn("invalid bulk_action_max_results value, using default", "value", value)
		return DefaultMaxResults
	}
	return n
}

// redactSetting returns a copy safe for API responses.
func redactSetting(setting *models.Setting) *models.Setting {
	out := *setting
	if out.Verschluesselt && out.Value != "" {
		out.Value = redactedValue
	}
	return &out
}
