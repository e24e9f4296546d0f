package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	LogMode     string
	PostgresDSN string
	RedisAddr   string
	JWTSecret   string

	AppBaseURL     string
	EmailBaseURL   string
	EmailSender    string
	EmailAuthToken string
	EmailTimeout   time.Duration

	IdempotencyTTL      time.Duration
	WorkerIdleInterval  time.Duration
	WorkerErrorInterval time.Duration
	WorkerConcurrency   int

	RunMigrations bool
}

// Load reads the environment, seeded from a .env file when one exists.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ServiceName: envString("SERVICE_NAME", "letterbox"),
		HTTPPort:    envString("HTTP_PORT", "8080"),
		LogMode:     envString("LOG_MODE", "development"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		AppBaseURL:     envString("APP_BASE_URL", "http://localhost:8080"),
		EmailBaseURL:   os.Getenv("EMAIL_BASE_URL"),
		EmailSender:    os.Getenv("EMAIL_SENDER"),
		EmailAuthToken: os.Getenv("EMAIL_AUTH_TOKEN"),

		RunMigrations: envBool("RUN_MIGRATIONS", true),
	}

	var err error
	if cfg.EmailTimeout, err = envDuration("EMAIL_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = envDuration("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.WorkerIdleInterval, err = envDuration("WORKER_IDLE_INTERVAL", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.WorkerErrorInterval, err = envDuration("WORKER_ERROR_INTERVAL", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.WorkerConcurrency, err = envInt("WORKER_CONCURRENCY", 1); err != nil {
		return Config{}, err
	}
	if cfg.WorkerConcurrency < 1 {
		return Config{}, fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", cfg.WorkerConcurrency)
	}
	return cfg, nil
}

func envString(name string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}

func envInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}
