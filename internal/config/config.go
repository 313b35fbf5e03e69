package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime settings for the bridge
type Config struct {
	Addr     string
	LogLevel string

	// Importer widget
	ClientID            string
	WebhookKey          string
	TemplateFile        string
	FallbackTemplateKey string
	SessionTimeout      time.Duration
	SessionRetention    time.Duration

	// Backend submission
	PageURL        *url.URL
	SubmitEndpoint string
	SubmitTimeout  time.Duration
	SubmitMaxTries int

	// Importer callbacks
	WebhookSecret string

	// Token minting
	TokenSecret string
	TokenTTL    time.Duration

	RedisURL string

	RateLimitPerHour int
	RateLimitBurst   int
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// A missing .env is fine; the environment still applies.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:                getEnv("ADDR", ":8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		ClientID:            os.Getenv("IMPORTER_CLIENT_ID"),
		WebhookKey:          os.Getenv("IMPORTER_WEBHOOK_KEY"),
		TemplateFile:        os.Getenv("TEMPLATE_FILE"),
		FallbackTemplateKey: os.Getenv("FALLBACK_TEMPLATE_KEY"),
		SessionTimeout:      getEnvAsDuration("SESSION_TIMEOUT", 15*time.Minute),
		SessionRetention:    getEnvAsDuration("SESSION_RETENTION", 10*time.Minute),
		SubmitEndpoint:      getEnv("SUBMIT_ENDPOINT", "load_raw_data"),
		SubmitTimeout:       getEnvAsDuration("SUBMIT_TIMEOUT", 30*time.Second),
		SubmitMaxTries:      getEnvAsInt("SUBMIT_MAX_TRIES", 3),
		WebhookSecret:       os.Getenv("WEBHOOK_SECRET"),
		TokenSecret:         os.Getenv("TOKEN_SECRET"),
		TokenTTL:            getEnvAsDuration("TOKEN_TTL", 15*time.Minute),
		RedisURL:            os.Getenv("REDIS_URL"),
		RateLimitPerHour:    getEnvAsInt("RATE_LIMIT_PER_HOUR", 100),
		RateLimitBurst:      getEnvAsInt("RATE_LIMIT_BURST", 10),
	}

	pageURL, err := url.Parse(getEnv("PAGE_URL", "http://localhost:8000/travel/hotels/raw_data"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAGE_URL: %w", err)
	}
	if !pageURL.IsAbs() {
		return nil, fmt.Errorf("PAGE_URL must be absolute, got %q", pageURL)
	}
	cfg.PageURL = pageURL

	if cfg.SubmitMaxTries < 1 {
		return nil, fmt.Errorf("SUBMIT_MAX_TRIES must be at least 1")
	}
	if cfg.SessionTimeout <= 0 {
		return nil, fmt.Errorf("SESSION_TIMEOUT must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
