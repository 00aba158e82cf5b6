package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// setupTestEnv sets up environment variables for testing
func setupTestEnv(t *testing.T) func() {
	// Save original env vars
	origVars := map[string]string{
		"PORT":                            os.Getenv("PORT"),
		"REDIS_ENABLED":                   os.Getenv("REDIS_ENABLED"),
		"REDIS_ADDR":                      os.Getenv("REDIS_ADDR"),
		"GO_ENV":                          os.Getenv("GO_ENV"),
		"LOG_LEVEL":                       os.Getenv("LOG_LEVEL"),
		"STORAGE_BACKEND":                 os.Getenv("STORAGE_BACKEND"),
		"DISCONNECT_GRACE_PERIOD_SECONDS": os.Getenv("DISCONNECT_GRACE_PERIOD_SECONDS"),
		"MEDIA_MIN_WORKERS":               os.Getenv("MEDIA_MIN_WORKERS"),
		"MEDIA_MAX_WORKERS":               os.Getenv("MEDIA_MAX_WORKERS"),
		"ADMISSION_GATE_ENABLED":          os.Getenv("ADMISSION_GATE_ENABLED"),
		"AUTH0_DOMAIN":                    os.Getenv("AUTH0_DOMAIN"),
		"AUTH0_AUDIENCE":                  os.Getenv("AUTH0_AUDIENCE"),
	}

	// Clear all env vars
	for key := range origVars {
		os.Unsetenv(key)
	}

	// Return cleanup function
	return func() {
		for key, val := range origVars {
			if val != "" {
				os.Setenv(key, val)
			} else {
				os.Unsetenv(key)
			}
		}
	}
}

func TestValidateEnv_ValidConfiguration(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	// Set valid environment variables
	os.Setenv("PORT", "8080")
	os.Setenv("DISCONNECT_GRACE_PERIOD_SECONDS", "5")
	os.Setenv("REDIS_ENABLED", "false")

	cfg, err := ValidateEnv(os.Getenv)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.DisconnectGracePeriod != 5*time.Second {
		t.Errorf("Expected DISCONNECT_GRACE_PERIOD_SECONDS to be set correctly")
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected PORT to be '8080', got '%s'", cfg.Port)
	}
	if cfg.StorageBackend != "json" {
		t.Errorf("Expected STORAGE_BACKEND to default to 'json', got '%s'", cfg.StorageBackend)
	}
	if cfg.GoEnv != "production" {
		t.Errorf("Expected GO_ENV to default to 'production', got '%s'", cfg.GoEnv)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected LOG_LEVEL to default to 'info', got '%s'", cfg.LogLevel)
	}
}

func TestValidateEnv_MissingAdmissionSettings(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "8080")
	os.Setenv("ADMISSION_GATE_ENABLED", "true")

	_, err := ValidateEnv(os.Getenv)
	if err == nil {
		t.Fatal("Expected error for missing AUTH0_DOMAIN/AUTH0_AUDIENCE, got nil")
	}
	if !strings.Contains(err.Error(), "AUTH0_DOMAIN and AUTH0_AUDIENCE are required") {
		t.Errorf("Expected error message about AUTH0_DOMAIN/AUTH0_AUDIENCE, got: %v", err)
	}
}

func TestValidateEnv_InvalidGracePeriod(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "8080")
	os.Setenv("DISCONNECT_GRACE_PERIOD_SECONDS", "0")

	_, err := ValidateEnv(os.Getenv)
	if err == nil {
		t.Fatal("Expected error for zero DISCONNECT_GRACE_PERIOD_SECONDS, got nil")
	}
	if !strings.Contains(err.Error(), "DISCONNECT_GRACE_PERIOD_SECONDS must be a positive integer") {
		t.Errorf("Expected error message about DISCONNECT_GRACE_PERIOD_SECONDS, got: %v", err)
	}
}

func TestValidateEnv_MissingPortDefaults(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	cfg, err := ValidateEnv(os.Getenv)
	if err != nil {
		t.Fatalf("Expected no error for missing PORT, got: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected PORT to default to '8080', got '%s'", cfg.Port)
	}
}

func TestValidateEnv_InvalidPort(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "99999")

	_, err := ValidateEnv(os.Getenv)
	if err == nil {
		t.Fatal("Expected error for invalid PORT, got nil")
	}
	if !strings.Contains(err.Error(), "PORT must be a valid port number") {
		t.Errorf("Expected error message about invalid PORT, got: %v", err)
	}
}

func TestValidateEnv_InvalidRedisAddr(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "8080")
	os.Setenv("REDIS_ENABLED", "true")
	os.Setenv("REDIS_ADDR", "invalid-format")

	_, err := ValidateEnv(os.Getenv)
	if err == nil {
		t.Fatal("Expected error for invalid REDIS_ADDR, got nil")
	}
	if !strings.Contains(err.Error(), "REDIS_ADDR must be in format 'host:port'") {
		t.Errorf("Expected error message about REDIS_ADDR format, got: %v", err)
	}
}

func TestValidateEnv_MinWorkersExceedMax(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "8080")
	os.Setenv("MEDIA_MIN_WORKERS", "4")
	os.Setenv("MEDIA_MAX_WORKERS", "2")

	_, err := ValidateEnv(os.Getenv)
	if err == nil {
		t.Fatal("Expected error for MEDIA_MIN_WORKERS above MEDIA_MAX_WORKERS, got nil")
	}
	if !strings.Contains(err.Error(), "MEDIA_MIN_WORKERS (4) must not exceed MEDIA_MAX_WORKERS (2)") {
		t.Errorf("Expected error message about worker bounds, got: %v", err)
	}
}

func TestValidateEnv_OptionalDefaults(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "8080")

	cfg, err := ValidateEnv(os.Getenv)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.GoEnv != "production" {
		t.Errorf("Expected GO_ENV to default to 'production', got '%s'", cfg.GoEnv)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected LOG_LEVEL to default to 'info', got '%s'", cfg.LogLevel)
	}
}

func TestValidateEnv_RedisDefaultAddr(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "8080")
	os.Setenv("REDIS_ENABLED", "true")
	// Don't set REDIS_ADDR

	cfg, err := ValidateEnv(os.Getenv)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("Expected REDIS_ADDR to default to 'localhost:6379', got '%s'", cfg.RedisAddr)
	}
}

func TestRedactSecret(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		expected string
	}{
		{"Long secret", "this-is-a-very-long-secret-key", "this-is-***"},
		{"Short secret", "short", "***"},
		{"Exactly 8 chars", "12345678", "***"},
		{"9 chars", "123456789", "12345678***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := redactSecret(tt.secret)
			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestIsValidHostPort(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		expected bool
	}{
		{"Valid localhost", "localhost:8080", true},
		{"Valid IP", "127.0.0.1:3000", true},
		{"Valid hostname", "example.com:443", true},
		{"Missing port", "localhost", false},
		{"Missing host", ":8080", false},
		{"Invalid port", "localhost:99999", false},
		{"Non-numeric port", "localhost:abc", false},
		{"Multiple colons", "localhost:8080:9090", false},
		{"Empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isValidHostPort(tt.addr)
			if result != tt.expected {
				t.Errorf("isValidHostPort('%s') = %v, expected %v", tt.addr, result, tt.expected)
			}
		})
	}
}
