// Package service contains the business logic layer.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/firmenkern/recherche-api/internal/config"
	"github.com/firmenkern/recherche-api/internal/models"
)

// ArchiveService exports completed order results to S3-compatible object
// storage (Tigris, MinIO, AWS). Disabled when no bucket is configured;
// all operations are then no-ops or errors as documented.
type ArchiveService struct {
	client  *s3.Client
	bucket  string
	enabled bool
	logger  *slog.Logger
}

// NewArchiveService creates a new archive service.
func NewArchiveService(cfg *appconfig.Config, logger *slog.Logger) (*ArchiveService, error) {
	if !cfg.StorageEnabled {
		logger.Info("archive service disabled - no bucket configured")
		return &ArchiveService{
			enabled: false,
			logger:  logger,
		}, nil
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.StorageRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Custom endpoint + path style for S3-compatible services.
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true
	})

	logger.Info("archive service initialized",
		"bucket", cfg.StorageBucket,
		"endpoint", cfg.StorageEndpoint,
	)

	return &ArchiveService{
		client:  client,
		bucket:  cfg.StorageBucket,
		enabled: true,
		logger:  logger,
	}, nil
}

// IsEnabled returns whether archiving is configured and available.
func (s *ArchiveService) IsEnabled() bool {
	return s.enabled
}

// OrderArchive is the stored JSON document for one completed order.
type OrderArchive struct {
	AuftragID       string              `json:"auftrag_id"`
	PartnerID       string              `json:"partner_id"`
	QualityTier     models.QualityTier  `json:"qualitaets_stufe"`
	Status          models.OrderStatus  `json:"status"`
	RawCount        int                 `json:"raw_count"`
	NewCount        int                 `json:"new_count"`
	DuplicateCount  int                 `json:"duplicate_count"`
	UpdatedCount    int                 `json:"updated_count"`
	ActualCostCents int64               `json:"actual_cost_cents"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
	Results         []*models.RawResult `json:"results"`
}

// archiveKey places order archives under a common prefix.
func archiveKey(orderID string) string {
	return fmt.Sprintf("auftraege/%s.json", orderID)
}

// StoreOrderResults writes the order's results as a single JSON object.
// Silently skips when archiving is disabled.
func (s *ArchiveService) StoreOrderResults(ctx context.Context, order *models.Order, raws []*models.RawResult) error {
	if !s.enabled {
		return nil
	}

	archive := &OrderArchive{
		AuftragID:       order.ID,
		PartnerID:       order.PartnerID,
		QualityTier:     order.QualityTier,
		Status:          order.Status,
		RawCount:        order.RawCount,
		NewCount:        order.NewCount,
		DuplicateCount:  order.DuplicateCount,
		UpdatedCount:    order.UpdatedCount,
		ActualCostCents: order.ActualCostCents,
		CompletedAt:     order.CompletedAt,
		Results:         raws,
	}

	data, err := json.Marshal(archive)
	if err != nil {
		return fmt.Errorf("failed to marshal order archive: %w", err)
	}

	key := archiveKey(order.ID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to store order archive: %w", err)
	}

	s.logger.Info("stored order archive",
		"order_id", order.ID,
		"key", key,
		"size_bytes", len(data),
	)

	return nil
}

// Exists checks whether an archive object is present for the order.
func (s *ArchiveService) Exists(ctx context.Context, orderID string) (bool, error) {
	if !s.enabled {
		return false, nil
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(archiveKey(orderID)),
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}

// PresignedURL returns a time-limited download URL for an order archive.
func (s *ArchiveService) PresignedURL(ctx context.Context, orderID string, expiry time.Duration) (string, error) {
	if !s.enabled {
		return "", fmt.Errorf("archiving is not enabled")
	}
	if expiry == 0 {
		expiry = 1 * time.Hour
	}

	presignClient := s3.NewPresignClient(s.client)
	presignedReq, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(archiveKey(orderID)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presignedReq.URL, nil
}
