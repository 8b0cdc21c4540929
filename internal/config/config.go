// Package config handles application configuration.
package config

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// Authentication
	JWTSecret     string
	EncryptionKey []byte // 32-byte key for AES-256-GCM encryption of stored credentials

	// Stripe (credit top-ups)
	StripeSecretKey     string
	StripeWebhookSecret string
	TopupSuccessURL     string
	TopupCancelURL      string

	// Platform webhooks (partner provisioning, svix-signed)
	PlatformWebhookSecret string

	// Redis (optional shared rate-limit store)
	RedisURL string

	// CORS
	CORSOrigins []string

	// HTTP throttling (per-IP, requests per minute; 0 disables)
	HTTPRateLimit int

	// Object Storage (S3-compatible) for result archives
	StorageEnabled   bool
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageRegion    string

	// Worker
	WorkerEnabled             bool          // Run the dispatch loop inside the API process
	WorkerPollInterval        time.Duration // How often to poll for confirmed orders (default 5s)
	WorkerConcurrency         int           // Number of concurrent dispatch goroutines (default 1)
	WorkerShutdownGracePeriod time.Duration // Max time to wait for in-flight orders during shutdown
	StaleOrderAfter           time.Duration // Orders stuck in PROCESSING longer than this are failed at startup
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/recherche?sslmode=disable"),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		PlatformWebhookSecret: getEnv("PLATFORM_WEBHOOK_SECRET", ""),

		RedisURL: getEnv("REDIS_URL", ""),

		CORSOrigins:   getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),
		HTTPRateLimit: getEnvInt("HTTP_RATE_LIMIT", 300),

		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),
	}

	// Enable storage if bucket is configured
	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	// Top-up redirect targets default to the frontend origin
	cfg.TopupSuccessURL = getEnv("TOPUP_SUCCESS_URL", cfg.BaseURL+"/billing?topup=success")
	cfg.TopupCancelURL = getEnv("TOPUP_CANCEL_URL", cfg.BaseURL+"/billing?topup=cancelled")

	// Worker configuration
	cfg.WorkerEnabled = getEnvBool("WORKER_ENABLED", true)
	cfg.WorkerPollInterval = getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second)
	cfg.WorkerConcurrency = getEnvInt("WORKER_CONCURRENCY", 1)
	cfg.WorkerShutdownGracePeriod = getEnvDuration("WORKER_SHUTDOWN_GRACE_PERIOD", 5*time.Minute)
	cfg.StaleOrderAfter = getEnvDuration("STALE_ORDER_AFTER", 30*time.Minute)

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// Set up encryption key for credential storage. ENCRYPTION_KEY takes a
	// base64-encoded 32-byte key; otherwise the key is derived from
	// ENCRYPTION_SECRET (or, as a last resort, the JWT secret).
	encKeyStr := getEnv("ENCRYPTION_KEY", "")
	if encKeyStr != "" {
		decoded, err := base64.StdEncoding.DecodeString(encKeyStr)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be a base64-encoded 32-byte key")
		}
		cfg.EncryptionKey = decoded
	} else {
		secret := getEnv("ENCRYPTION_SECRET", cfg.JWTSecret)
		cfg.EncryptionKey = deriveEncryptionKey(secret)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

// deriveEncryptionKey creates a 32-byte AES-256 key from a secret string using HKDF.
// HKDF (HMAC-based Key Derivation Function) is appropriate for deriving keys from
// high-entropy secrets. For low-entropy passwords, use Argon2 instead.
func deriveEncryptionKey(secret string) []byte {
	// Salt is fixed but unique to this application; info binds the key to
	// its purpose so the same secret can safely derive other keys later.
	salt := []byte("recherche-api-encryption-key-v1")
	info := []byte("aes-256-gcm-settings-encryption")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		// This should never happen with valid inputs
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
