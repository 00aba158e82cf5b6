// Package config validates and loads process configuration from the environment.
package config

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spinlive/roomserver/internal/v1/logging"
)

// Config holds validated environment configuration for the room server.
type Config struct {
	Port string

	GoEnv    string
	LogLevel string

	AllowedOrigins string

	// Presence & Reconnection Controller (spec §4.2)
	DisconnectGracePeriod time.Duration

	// Media Engine Facade worker pool bounds (spec §4.3)
	MinWorkers int
	MaxWorkers int
	AnnouncedIP string

	// Storage collaborator selection (spec §6, §9)
	StorageBackend string // "json" | "redis"
	JSONStoreDir   string

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	// Optional admission gate (see internal/v1/auth)
	AdmissionEnabled bool
	Auth0Domain      string
	Auth0Audience    string

	RateLimitWsIP string
}

// ValidateEnv validates all required environment variables and returns a Config.
// Errors accumulate rather than short-circuit so an operator sees every problem at once.
func ValidateEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.Port = getEnvOrDefault(getenv, "PORT", "8080")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got %q)", cfg.Port))
	}

	cfg.GoEnv = getEnvOrDefault(getenv, "GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault(getenv, "LOG_LEVEL", "info")
	cfg.AllowedOrigins = getenv("ALLOWED_ORIGINS")

	graceSecondsStr := getEnvOrDefault(getenv, "DISCONNECT_GRACE_PERIOD_SECONDS", "7")
	graceSeconds, err := strconv.Atoi(graceSecondsStr)
	if err != nil || graceSeconds < 1 {
		errs = append(errs, fmt.Sprintf("DISCONNECT_GRACE_PERIOD_SECONDS must be a positive integer (got %q)", graceSecondsStr))
	} else {
		cfg.DisconnectGracePeriod = time.Duration(graceSeconds) * time.Second
	}

	maxWorkersDefault := runtime.NumCPU()
	maxWorkersStr := getEnvOrDefault(getenv, "MEDIA_MAX_WORKERS", strconv.Itoa(maxWorkersDefault))
	cfg.MaxWorkers, err = strconv.Atoi(maxWorkersStr)
	if err != nil || cfg.MaxWorkers < 1 {
		errs = append(errs, fmt.Sprintf("MEDIA_MAX_WORKERS must be a positive integer (got %q)", maxWorkersStr))
	}

	minWorkersDefault := 2
	if cfg.MaxWorkers > 0 && minWorkersDefault > cfg.MaxWorkers {
		minWorkersDefault = cfg.MaxWorkers
	}
	minWorkersStr := getEnvOrDefault(getenv, "MEDIA_MIN_WORKERS", strconv.Itoa(minWorkersDefault))
	cfg.MinWorkers, err = strconv.Atoi(minWorkersStr)
	if err != nil || cfg.MinWorkers < 1 {
		errs = append(errs, fmt.Sprintf("MEDIA_MIN_WORKERS must be a positive integer (got %q)", minWorkersStr))
	} else if cfg.MaxWorkers > 0 && cfg.MinWorkers > cfg.MaxWorkers {
		errs = append(errs, fmt.Sprintf("MEDIA_MIN_WORKERS (%d) must not exceed MEDIA_MAX_WORKERS (%d)", cfg.MinWorkers, cfg.MaxWorkers))
	}

	cfg.AnnouncedIP = getenv("MEDIA_ANNOUNCED_IP")

	cfg.StorageBackend = getEnvOrDefault(getenv, "STORAGE_BACKEND", "json")
	if cfg.StorageBackend != "json" && cfg.StorageBackend != "redis" {
		errs = append(errs, fmt.Sprintf("STORAGE_BACKEND must be \"json\" or \"redis\" (got %q)", cfg.StorageBackend))
	}
	cfg.JSONStoreDir = getEnvOrDefault(getenv, "JSON_STORE_DIR", "./data/rooms")

	cfg.RedisEnabled = getenv("REDIS_ENABLED") == "true" || cfg.StorageBackend == "redis"
	if cfg.RedisEnabled {
		cfg.RedisAddr = getEnvOrDefault(getenv, "REDIS_ADDR", "localhost:6379")
		if !isValidHostPort(cfg.RedisAddr) {
			errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got %q)", cfg.RedisAddr))
		}
		cfg.RedisPassword = getenv("REDIS_PASSWORD")
	}

	cfg.AdmissionEnabled = getenv("ADMISSION_GATE_ENABLED") == "true"
	if cfg.AdmissionEnabled {
		cfg.Auth0Domain = getenv("AUTH0_DOMAIN")
		cfg.Auth0Audience = getenv("AUTH0_AUDIENCE")
		if cfg.Auth0Domain == "" || cfg.Auth0Audience == "" {
			errs = append(errs, "AUTH0_DOMAIN and AUTH0_AUDIENCE are required when ADMISSION_GATE_ENABLED=true")
		}
	}

	cfg.RateLimitWsIP = getEnvOrDefault(getenv, "RATE_LIMIT_WS_IP", "100-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 || parts[0] == "" {
		return false
	}
	port, err := strconv.Atoi(parts[1])
	return err == nil && port >= 1 && port <= 65535
}

func logValidatedConfig(cfg *Config) {
	logging.Info(nil, "environment configuration validated",
		zap.String("port", cfg.Port),
		zap.String("go_env", cfg.GoEnv),
		zap.Duration("disconnect_grace_period", cfg.DisconnectGracePeriod),
		zap.Int("min_workers", cfg.MinWorkers),
		zap.Int("max_workers", cfg.MaxWorkers),
		zap.String("storage_backend", cfg.StorageBackend),
		zap.Bool("redis_enabled", cfg.RedisEnabled),
		zap.String("redis_password", redactSecret(cfg.RedisPassword)),
		zap.Bool("admission_gate_enabled", cfg.AdmissionEnabled),
	)
}

// redactSecret keeps the first 8 characters of a secret and masks the rest;
// secrets of 8 characters or fewer are masked entirely.
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}

func getEnvOrDefault(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}
