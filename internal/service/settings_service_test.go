package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/firmenkern/recherche-api/internal/crypto"
	"github.com/firmenkern/recherche-api/internal/models"
	"github.com/firmenkern/recherche-api/internal/repository"
)

func newTestSettingsService(t *testing.T, settingsRepo *mockSettingsRepository) (*SettingsService, *crypto.Encryptor) {
	t.Helper()
	encryptor, err := crypto.NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	repos := &repository.Repositories{Settings: settingsRepo}
	return NewSettingsService(repos, encryptor, slog.Default()), encryptor
}

func TestSettingsService_Set(t *testing.T) {
	t.Run("encrypts credential settings and redacts the response", func(t *testing.T) {
		settingsRepo := newMockSettingsRepository()
		svc, encryptor := newTestSettingsService(t, settingsRepo)

		setting, err := svc.Set(context.Background(), models.SettingGooglePlacesAPIKey, "AIza-secret")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if setting.Value != "********" {
			t.Errorf("Value = %q, want redacted", setting.Value)
		}
		if !setting.Verschluesselt {
			t.Error("expected Verschluesselt to be true")
		}

		stored, _ := settingsRepo.Get(context.Background(), models.SettingGooglePlacesAPIKey)
		if stored == nil {
			t.Fatal("expected setting in repo")
		}
		if stored.Value == "AIza-secret" {
			t.Error("expected stored value to be ciphertext")
		}
		plaintext, err := encryptor.Decrypt(stored.Value)
		if err != nil {
			t.Fatalf("failed to decrypt stored value: %v", err)
		}
		if plaintext != "AIza-secret" {
			t.Errorf("decrypted = %q, want %q", plaintext, "AIza-secret")
		}
	})

	t.Run("stores the result cap in plain text", func(t *testing.T) {
		settingsRepo := newMockSettingsRepository()
		svc, _ := newTestSettingsService(t, settingsRepo)

		setting, err := svc.Set(context.Background(), models.SettingBulkActionMax, "250")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if setting.Value != "250" {
			t.Errorf("Value = %q, want %q", setting.Value, "250")
		}
		if setting.Verschluesselt {
			t.Error("expected Verschluesselt to be false")
		}
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		svc, _ := newTestSettingsService(t, newMockSettingsRepository())

		_, err := svc.Set(context.Background(), "recherche.unknown", "x")
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("rejects a non-positive result cap", func(t *testing.T) {
		svc, _ := newTestSettingsService(t, newMockSettingsRepository())

		for _, value := range []string{"0", "-5", "many"} {
			_, err := svc.Set(context.Background(), models.SettingBulkActionMax, value)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Set(%q): expected ErrInvalidInput, got %v", value, err)
			}
		}
	})

	t.Run("fails closed without an encryption key", func(t *testing.T) {
		repos := &repository.Repositories{Settings: newMockSettingsRepository()}
		svc := NewSettingsService(repos, nil, slog.Default())

		_, err := svc.Set(context.Background(), models.SettingDataForSEOLogin, "login")
		if err == nil {
			t.Fatal("expected error when no encryptor is configured")
		}
	})
}

func TestSettingsService_Get(t *testing.T) {
	t.Run("round-trips encrypted values", func(t *testing.T) {
		settingsRepo := newMockSettingsRepository()
		svc, _ := newTestSettingsService(t, settingsRepo)

		if _, err := svc.Set(context.Background(), models.SettingDataForSEOPassword, "hunter2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		value, err := svc.Get(context.Background(), models.SettingDataForSEOPassword)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if value != "hunter2" {
			t.Errorf("value = %q, want %q", value, "hunter2")
		}
	})

	t.Run("returns empty for unset keys", func(t *testing.T) {
		svc, _ := newTestSettingsService(t, newMockSettingsRepository())

		value, err := svc.Get(context.Background(), models.SettingGooglePlacesAPIKey)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if value != "" {
			t.Errorf("value = %q, want empty", value)
		}
	})
}

func TestSettingsService_ListRedacted(t *testing.T) {
	settingsRepo := newMockSettingsRepository()
	svc, _ := newTestSettingsService(t, settingsRepo)

	if _, err := svc.Set(context.Background(), models.SettingGooglePlacesAPIKey, "AIza-secret"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := svc.Set(context.Background(), models.SettingBulkActionMax, "80"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	settings, err := svc.ListRedacted(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(settings) != 2 {
		t.Fatalf("expected 2 settings, got %d", len(settings))
	}
	for _, setting := range settings {
		switch setting.Key {
		case models.SettingGooglePlacesAPIKey:
			if setting.Value != "********" {
				t.Errorf("credential Value = %q, want redacted", setting.Value)
			}
		case models.SettingBulkActionMax:
			if setting.Value != "80" {
				t.Errorf("cap Value = %q, want %q", setting.Value, "80")
			}
		default:
			t.Errorf("unexpected setting %q", setting.Key)
		}
	}
}

func TestSettingsService_ProviderCredentials(t *testing.T) {
	settingsRepo := newMockSettingsRepository()
	svc, _ := newTestSettingsService(t, settingsRepo)

	for key, value := range map[string]string{
		models.SettingGooglePlacesAPIKey: "AIza-secret",
		models.SettingDataForSEOLogin:    "login@example.com",
		models.SettingDataForSEOPassword: "hunter2",
	} {
		if _, err := svc.Set(context.Background(), key, value); err != nil {
			t.Fatalf("Set(%q): expected no error, got %v", key, err)
		}
	}

	creds, err := svc.ProviderCredentials(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if creds.GooglePlacesAPIKey != "AIza-secret" {
		t.Errorf("GooglePlacesAPIKey = %q, want %q", creds.GooglePlacesAPIKey, "AIza-secret")
	}
	if creds.DataForSEOLogin != "login@example.com" {
		t.Errorf("DataForSEOLogin = %q, want %q", creds.DataForSEOLogin, "login@example.com")
	}
	if creds.DataForSEOPassword != "hunter2" {
		t.Errorf("DataForSEOPassword = %q, want %q", creds.DataForSEOPassword, "hunter2")
	}
}

func TestSettingsService_MaxResultsCap(t *testing.T) {
	t.Run("defaults when unset", func(t *testing.T) {
		svc, _ := newTestSettingsService(t, newMockSettingsRepository())

		if got := svc.MaxResultsCap(context.Background()); got != DefaultMaxResults {
			t.Errorf("MaxResultsCap = %d, want %d", got, DefaultMaxResults)
		}
	})

	t.Run("uses the configured value", func(t *testing.T) {
		settingsRepo := newMockSettingsRepository()
		svc, _ := newTestSettingsService(t, settingsRepo)

		if _, err := svc.Set(context.Background(), models.SettingBulkActionMax, "40"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := svc.MaxResultsCap(context.Background()); got != 40 {
			t.Errorf("MaxResultsCap = %d, want 40", got)
		}
	})

	t.Run("falls back on an unparseable stored value", func(t *testing.T) {
		settingsRepo := newMockSettingsRepository()
		// Bypass Set validation to simulate a bad row.
		settingsRepo.Upsert(context.Background(), &models.Setting{
			Key:   models.SettingBulkActionMax,
			Value: "not-a-number",
		})
		svc, _ := newTestSettingsService(t, settingsRepo)

		if got := svc.MaxResultsCap(context.Background()); got != DefaultMaxResults {
			t.Errorf("MaxResultsCap = %d, want %d", got, DefaultMaxResults)
		}
	})
}
