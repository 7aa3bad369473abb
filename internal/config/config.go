package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the trafficloud service.
type Config struct {
	// HTTP API
	HTTPPort string

	// Inference service
	InferenceEndpoint   string
	ConfidenceThreshold float64
	AllowMockDetections bool

	// Alerting
	CongestionThreshold float64

	// Point-in-time analysis store
	AnalysisStore string // "mongo" or "memory"
	MongoURI      string
	MongoDatabase string

	// Hourly history store
	HistoryStore  string // "redis" or "memory"
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Notifications
	NatsURL             string
	SubjectHighPriority string
	SubjectCongestion   string

	// Pipeline
	WorkerCount  int
	ItemTimeout  time.Duration
	RetryMax     int
	RetryBackoff time.Duration

	// Spool directory ingestion (dev front door)
	SpoolDir      string
	EnableWatcher bool
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	// Try multiple .env locations
	envPaths := []string{
		".env",
		"../.env",
		"/app/.env", // Docker
	}

	envLoaded := false
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			log.Printf("Loaded config from: %s", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		log.Printf("No .env file found, using environment variables")
	}

	config := &Config{
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		InferenceEndpoint:   os.Getenv("INFERENCE_ENDPOINT"),
		ConfidenceThreshold: parseFloatOrDefault("CONFIDENCE_THRESHOLD", 0.5),
		AllowMockDetections: getEnvOrDefault("DETECTOR_ALLOW_MOCK", "false") == "true",

		CongestionThreshold: parseFloatOrDefault("CONGESTION_THRESHOLD", 0.7),

		AnalysisStore: getEnvOrDefault("ANALYSIS_STORE", "mongo"),
		MongoURI:      getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnvOrDefault("MONGO_DATABASE", "trafficloud"),

		HistoryStore:  getEnvOrDefault("HISTORY_STORE", "redis"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseIntOrDefault("REDIS_DB", 0),

		NatsURL:             getEnvOrDefault("NATS_URL", "nats://localhost:4222"),
		SubjectHighPriority: getEnvOrDefault("SUBJECT_HIGH_PRIORITY", "alerts.high_priority"),
		SubjectCongestion:   getEnvOrDefault("SUBJECT_CONGESTION", "alerts.congestion"),

		WorkerCount:  parseIntOrDefault("WORKER_COUNT", 4),
		ItemTimeout:  parseDurationOrDefault("ITEM_TIMEOUT", 30*time.Second),
		RetryMax:     parseIntOrDefault("RETRY_MAX", 3),
		RetryBackoff: parseDurationOrDefault("RETRY_BACKOFF", time.Second),

		SpoolDir:      getEnvOrDefault("SPOOL_DIR", "./frames"),
		EnableWatcher: getEnvOrDefault("ENABLE_WATCHER", "false") == "true",
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that required configuration is present and in range.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT is required")
	}

	if c.InferenceEndpoint == "" && !c.AllowMockDetections {
		return fmt.Errorf("INFERENCE_ENDPOINT is required (or set DETECTOR_ALLOW_MOCK=true for development)")
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be between 0 and 1")
	}

	if c.CongestionThreshold < 0 || c.CongestionThreshold > 1 {
		return fmt.Errorf("CONGESTION_THRESHOLD must be between 0 and 1")
	}

	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}

	if c.RetryMax < 0 {
		return fmt.Errorf("RETRY_MAX must not be negative")
	}

	if c.ItemTimeout <= 0 {
		return fmt.Errorf("ITEM_TIMEOUT must be positive")
	}

	return nil
}

// Helper functions
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
