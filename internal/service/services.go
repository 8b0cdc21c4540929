// Package service contains the business logic layer.
// Note: Partner provisioning, contracts, and authentication against the
// surrounding platform are handled there; partner records arrive via
// platform webhooks and the PartnerID fields reference platform ids.
package service

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/firmenkern/recherche-api/internal/config"
	"github.com/firmenkern/recherche-api/internal/crypto"
	"github.com/firmenkern/recherche-api/internal/repository"
)

// ErrInvalidInput indicates a request failed validation. Wrapped errors
// carry the field-level detail.
var ErrInvalidInput = errors.New("invalid input")

// Services holds all service instances.
type Services struct {
	Order    *OrderService
	Ledger   *LedgerService
	Settings *SettingsService
	Partner  *PartnerService
	Topup    *TopupService
	Usage    *UsageService
	Archive  *ArchiveService
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) (*Services, error) {
	// Create encryptor first - needed to store provider credentials
	var encryptor *crypto.Encryptor
	if len(cfg.EncryptionKey) > 0 {
		var err error
		encryptor, err = crypto.NewEncryptor(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
	} else {
		logger.Warn("no encryption key configured - provider credentials cannot be stored")
	}

	archiveSvc, err := NewArchiveService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive service: %w", err)
	}

	settingsSvc := NewSettingsService(repos, encryptor, logger)
	ledgerSvc := NewLedgerService(repos, logger)

	return &Services{
		Order:    NewOrderService(repos, settingsSvc, logger),
		Ledger:   ledgerSvc,
		Settings: settingsSvc,
		Partner:  NewPartnerService(repos, logger),
		Topup:    NewTopupService(cfg, ledgerSvc, repos, logger),
		Usage:    NewUsageService(repos, logger),
		Archive:  archiveSvc,
	}, nil
}
