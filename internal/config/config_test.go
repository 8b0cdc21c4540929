package config

import (
	"bytes"
	"os"
	"testing"
	"time"
)

// ========================================
// Helper Functions Tests
// ========================================

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_GET_ENV", "test_value")
	defer os.Unsetenv("TEST_GET_ENV")

	t.Run("existing env var", func(t *testing.T) {
		result := getEnv("TEST_GET_ENV", "default")
		if result != "test_value" {
			t.Errorf("getEnv() = %q, want %q", result, "test_value")
		}
	})

	t.Run("missing env var", func(t *testing.T) {
		result := getEnv("TEST_MISSING_VAR", "default_value")
		if result != "default_value" {
			t.Errorf("getEnv() = %q, want %q", result, "default_value")
		}
	})

	t.Run("empty env var", func(t *testing.T) {
		os.Setenv("TEST_EMPTY_VAR", "")
		defer os.Unsetenv("TEST_EMPTY_VAR")

		result := getEnv("TEST_EMPTY_VAR", "default")
		if result != "default" {
			t.Errorf("getEnv() = %q, want %q (empty should use default)", result, "default")
		}
	})
}

func TestGetEnvInt(t *testing.T) {
	t.Run("valid integer", func(t *testing.T) {
		os.Setenv("TEST_INT", "42")
		defer os.Unsetenv("TEST_INT")

		result := getEnvInt("TEST_INT", 0)
		if result != 42 {
			t.Errorf("getEnvInt() = %d, want 42", result)
		}
	})

	t.Run("invalid integer", func(t *testing.T) {
		os.Setenv("TEST_INT_INVALID", "not-a-number")
		defer os.Unsetenv("TEST_INT_INVALID")

		result := getEnvInt("TEST_INT_INVALID", 99)
		if result != 99 {
			t.Errorf("getEnvInt() = %d, want 99 (default)", result)
		}
	})

	t.Run("missing env var", func(t *testing.T) {
		result := getEnvInt("TEST_INT_MISSING", 100)
		if result != 100 {
			t.Errorf("getEnvInt() = %d, want 100 (default)", result)
		}
	})
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected bool
	}{
		{"true lowercase", "true", true},
		{"TRUE uppercase", "TRUE", true},
		{"1", "1", true},
		{"yes lowercase", "yes", true},
		{"false lowercase", "false", false},
		{"0", "0", false},
		{"random string", "maybe", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("TEST_BOOL", tt.value)
			defer os.Unsetenv("TEST_BOOL")

			result := getEnvBool("TEST_BOOL", false)
			if result != tt.expected {
				t.Errorf("getEnvBool(%q) = %v, want %v", tt.value, result, tt.expected)
			}
		})
	}

	t.Run("missing env var with default true", func(t *testing.T) {
		result := getEnvBool("TEST_BOOL_MISSING", true)
		if result != true {
			t.Error("should return default true")
		}
	})
}

func TestGetEnvDuration(t *testing.T) {
	t.Run("valid duration", func(t *testing.T) {
		os.Setenv("TEST_DUR", "30s")
		defer os.Unsetenv("TEST_DUR")

		result := getEnvDuration("TEST_DUR", time.Minute)
		if result != 30*time.Second {
			t.Errorf("getEnvDuration() = %v, want 30s", result)
		}
	})

	t.Run("invalid duration uses default", func(t *testing.T) {
		os.Setenv("TEST_DUR_INVALID", "soon")
		defer os.Unsetenv("TEST_DUR_INVALID")

		result := getEnvDuration("TEST_DUR_INVALID", 5*time.Second)
		if result != 5*time.Second {
			t.Errorf("getEnvDuration() = %v, want 5s (default)", result)
		}
	})
}

func TestGetEnvSlice(t *testing.T) {
	t.Run("comma separated values", func(t *testing.T) {
		os.Setenv("TEST_SLICE", "a,b,c")
		defer os.Unsetenv("TEST_SLICE")

		result := getEnvSlice("TEST_SLICE", []string{})
		if len(result) != 3 || result[0] != "a" || result[2] != "c" {
			t.Errorf("getEnvSlice() = %v, want [a b c]", result)
		}
	})

	t.Run("missing env var", func(t *testing.T) {
		defaultSlice := []string{"default1", "default2"}
		result := getEnvSlice("TEST_SLICE_MISSING", defaultSlice)
		if len(result) != 2 {
			t.Errorf("getEnvSlice() length = %d, want 2 (default)", len(result))
		}
	})
}

// ========================================
// Load Tests
// ========================================

func TestLoad_RequiresJWTSecret(t *testing.T) {
	os.Unsetenv("JWT_SECRET")

	if _, err := Load(); err == nil {
		t.Error("Load() should fail without JWT_SECRET")
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")
	defer os.Unsetenv("JWT_SECRET")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.WorkerPollInterval != 5*time.Second {
		t.Errorf("WorkerPollInterval = %v, want 5s", cfg.WorkerPollInterval)
	}
	if cfg.WorkerConcurrency != 1 {
		t.Errorf("WorkerConcurrency = %d, want 1", cfg.WorkerConcurrency)
	}
	if cfg.StaleOrderAfter != 30*time.Minute {
		t.Errorf("StaleOrderAfter = %v, want 30m", cfg.StaleOrderAfter)
	}
	if !cfg.WorkerEnabled {
		t.Error("WorkerEnabled should default to true")
	}
	if cfg.StorageEnabled {
		t.Error("StorageEnabled should be false without bucket + endpoint")
	}
	if len(cfg.EncryptionKey) != 32 {
		t.Errorf("EncryptionKey length = %d, want 32", len(cfg.EncryptionKey))
	}
}

func TestLoad_StorageEnabled(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("BUCKET_NAME", "archives")
	os.Setenv("AWS_ENDPOINT_URL_S3", "https://s3.example.test")
	defer func() {
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("BUCKET_NAME")
		os.Unsetenv("AWS_ENDPOINT_URL_S3")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.StorageEnabled {
		t.Error("StorageEnabled should be true when bucket and endpoint are set")
	}
	if cfg.StorageBucket != "archives" {
		t.Errorf("StorageBucket = %q, want %q", cfg.StorageBucket, "archives")
	}
}

func TestDeriveEncryptionKey(t *testing.T) {
	key1 := deriveEncryptionKey("secret-a")
	key2 := deriveEncryptionKey("secret-a")
	key3 := deriveEncryptionKey("secret-b")

	if len(key1) != 32 {
		t.Fatalf("key length = %d, want 32", len(key1))
	}
	if !bytes.Equal(key1, key2) {
		t.Error("same secret must derive the same key")
	}
	if bytes.Equal(key1, key3) {
		t.Error("different secrets must derive different keys")
	}
}

func TestLoad_MalformedEncryptionKey(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("ENCRYPTION_KEY", "not-base64-and-wrong-size")
	defer func() {
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("ENCRYPTION_KEY")
	}()

	if _, err := Load(); err == nil {
		t.Error("Load() should reject a malformed ENCRYPTION_KEY")
	}
}
