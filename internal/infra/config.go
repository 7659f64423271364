package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	StorageBaseURL string
	StoragePath    string

	MediaAPIKey   string
	MediaBaseURL  string
	VideoModel    string
	ImageModel    string
	ProviderRetry int

	LedgerCapacity int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string

	ReaperInterval time.Duration
	ReaperLease    time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StorageBaseURL:   os.Getenv("STORAGE_BASE_URL"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		MediaAPIKey:      os.Getenv("MEDIA_API_KEY"),
		MediaBaseURL:     getEnv("MEDIA_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		VideoModel:       getEnv("VIDEO_MODEL", "veo-3"),
		ImageModel:       getEnv("IMAGE_MODEL", "gemini-2.5-flash"),
		ProviderRetry:    getEnvInt("PROVIDER_MAX_RETRIES", 3),
		LedgerCapacity:   getEnvInt("USAGE_LEDGER_CAPACITY", 1000),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		AllowedOrigins:   splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		ReaperInterval:   time.Second * time.Duration(getEnvInt("REAPER_INTERVAL_SECONDS", 60)),
		ReaperLease:      time.Minute * time.Duration(getEnvInt("REAPER_LEASE_MINUTES", 15)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.StorageBaseURL == "" {
		cfg.StorageBaseURL = fmt.Sprintf("http://localhost:%s/static", cfg.Port)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
