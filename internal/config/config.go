package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Ollama / VLM
	OllamaHost  string
	OllamaModel string
	VLMTimeout  time.Duration

	// Data
	DataFile string // commodity CSV
	MediaDir string // snapshot images
	DataDir  string // sqlite database location

	// Market data scheduler (synthetic daily row for demo/dev)
	SchedulerEnabled  bool
	SchedulerInterval time.Duration

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// CSRF
	CSRFSecret string
	CSRFTTL    time.Duration

	// Observability
	OTLPEndpoint string

	// Panel (dashpanel CLI)
	ServerURL     string
	ProbeInterval time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		OllamaHost:  getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel: getEnv("OLLAMA_MODEL", "llava"),
		VLMTimeout:  getEnvDuration("VLM_TIMEOUT", 120*time.Second),

		DataFile: getEnv("DATA_FILE", "data/financial_data.csv"),
		MediaDir: getEnv("MEDIA_DIR", "media/snapshots"),
		DataDir:  getEnv("DATA_DIR", "data"),

		SchedulerEnabled:  getEnv("SCHEDULER_ENABLED", "true") == "true",
		SchedulerInterval: getEnvDuration("SCHEDULER_INTERVAL", time.Minute),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 200*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 2),

		CacheTTL: getEnvDuration("CACHE_TTL", time.Minute),

		CSRFSecret: getEnv("CSRF_SECRET", "dash-assistant-dev-secret-change-me"),
		CSRFTTL:    getEnvDuration("CSRF_TTL", time.Hour),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		ServerURL:     getEnv("DASH_SERVER_URL", "http://localhost:8080"),
		ProbeInterval: getEnvDuration("PROBE_INTERVAL", 30*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
