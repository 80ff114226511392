package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	ServerAddress string       `json:"serverAddress"`
	DatabasePath  string       `json:"databasePath"`
	DatabaseURL   string       `json:"databaseUrl"`
	PhotoStorage  PhotoStorage `json:"photoStorage"`
	Security      Security     `json:"security"`
	Exchange      Exchange     `json:"exchange"`
	Lifecycle     Lifecycle    `json:"lifecycle"`
	Telemetry     Telemetry    `json:"telemetry"`
	LogLevel      string       `json:"logLevel"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// PhotoStorage configuration
type PhotoStorage struct {
	BasePath       string   `json:"basePath"`
	MaxFileSizeMB  int64    `json:"maxFileSizeMB"`
	Variants       []string `json:"variants"`
	MapCellDegrees float64  `json:"mapCellDegrees"`
}

// Security configuration
type Security struct {
	APIKey       string `json:"apiKey"`
	APIKeyHeader   string `json:"apiKeyHeader"`
	AdminAPIKey    string `json:"adminApiKey"`
	AdminKeyHeader string `json:"adminKeyHeader"`
	IPHashSalt     string `json:"ipHashSalt"`
}

// Exchange configuration
type Exchange struct {
	MaxAttempts int `json:"maxAttempts"`
}

// Lifecycle configuration for the background expiry of photos
type Lifecycle struct {
	Enabled              bool `json:"enabled"`
	IntervalMinutes      int  `json:"intervalMinutes"`
	SoftDeleteAfterHours int  `json:"softDeleteAfterHours"`
	HardDeleteAfterHours int  `json:"hardDeleteAfterHours"`
	BatchSize            int  `json:"batchSize"`
}

// Interval returns the time between two scheduled runs
func (l Lifecycle) Interval() time.Duration {
	return time.Duration(l.IntervalMinutes) * time.Minute
}

// SoftDeleteAfter returns the age at which photos are soft deleted
func (l Lifecycle) SoftDeleteAfter() time.Duration {
	return time.Duration(l.SoftDeleteAfterHours) * time.Hour
}

// HardDeleteAfter returns how long soft-deleted photos are kept
func (l Lifecycle) HardDeleteAfter() time.Duration {
	return time.Duration(l.HardDeleteAfterHours) * time.Hour
}

// Telemetry configuration for the OTLP exporters
type Telemetry struct {
	Enabled        bool   `json:"enabled"`
	OTLPEndpoint   string `json:"otlpEndpoint"`
	ServiceName    string `json:"serviceName"`
	ServiceVersion string `json:"serviceVersion"`
	Environment    string `json:"environment"`
	// SampleRatio is the fraction of root traces kept, 0 to 1
	SampleRatio           float64 `json:"sampleRatio"`
	ExportIntervalSeconds int     `json:"exportIntervalSeconds"`
}

// ExportInterval returns how often metrics are pushed
func (t Telemetry) ExportInterval() time.Duration {
	return time.Duration(t.ExportIntervalSeconds) * time.Second
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":5000",
		DatabasePath:  "photoexchange.db",
		PhotoStorage: PhotoStorage{
			BasePath:       "./photos",
			MaxFileSizeMB:  20,
			MapCellDegrees: 1,
		},
		Security: Security{
			APIKey:         "CHANGE_THIS_TO_A_SECURE_API_KEY_AT_LEAST_32_CHARS",
			APIKeyHeader:   "X-API-Key",
			AdminKeyHeader: "X-Admin-Key",
			IPHashSalt:     "CHANGE_THIS_SALT",
		},
		Exchange: Exchange{
			MaxAttempts: 3,
		},
		Lifecycle: Lifecycle{
			Enabled:              true,
			IntervalMinutes:      60,
			SoftDeleteAfterHours: 24 * 30,
			HardDeleteAfterHours: 24 * 7,
			BatchSize:            500,
		},
		Telemetry: Telemetry{
			Enabled:               false,
			OTLPEndpoint:          "localhost:4317",
			ServiceName:           "photoexchange-server",
			ServiceVersion:        "dev",
			Environment:           "development",
			SampleRatio:           1,
			ExportIntervalSeconds: 30,
		},
		LogLevel: "info",
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from config file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	// Ensure photo storage directory exists
	if err := os.MkdirAll(cfg.PhotoStorage.BasePath, 0755); err != nil {
		return nil, err
	}

	// Make base path absolute
	absPath, err := filepath.Abs(cfg.PhotoStorage.BasePath)
	if err != nil {
		return nil, err
	}
	cfg.PhotoStorage.BasePath = absPath

	return cfg, nil
}

// applyEnv overrides cfg from environment variables
func applyEnv(cfg *Config) {
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if basePath := os.Getenv("PHOTO_STORAGE_PATH"); basePath != "" {
		cfg.PhotoStorage.BasePath = basePath
	}
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		cfg.Security.APIKey = apiKey
	}
	if adminKey := os.Getenv("ADMIN_API_KEY"); adminKey != "" {
		cfg.Security.AdminAPIKey = adminKey
	}
	if salt := os.Getenv("IP_HASH_SALT"); salt != "" {
		cfg.Security.IPHashSalt = salt
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	// Exchange configuration
	envPositiveInt("EXCHANGE_MAX_ATTEMPTS", &cfg.Exchange.MaxAttempts)

	// Lifecycle configuration
	envBool("LIFECYCLE_ENABLED", &cfg.Lifecycle.Enabled)
	envPositiveInt("LIFECYCLE_INTERVAL_MINUTES", &cfg.Lifecycle.IntervalMinutes)
	envPositiveInt("LIFECYCLE_SOFT_DELETE_AFTER_HOURS", &cfg.Lifecycle.SoftDeleteAfterHours)
	envPositiveInt("LIFECYCLE_HARD_DELETE_AFTER_HOURS", &cfg.Lifecycle.HardDeleteAfterHours)
	envPositiveInt("LIFECYCLE_BATCH_SIZE", &cfg.Lifecycle.BatchSize)

	// Telemetry configuration
	envBool("OTEL_ENABLED", &cfg.Telemetry.Enabled)
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Telemetry.OTLPEndpoint = endpoint
	}
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		cfg.Telemetry.ServiceName = name
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Telemetry.Environment = env
	}
	if v := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); v != "" {
		if ratio, err := strconv.ParseFloat(v, 64); err == nil && ratio >= 0 && ratio <= 1 {
			cfg.Telemetry.SampleRatio = ratio
		}
	}
	envPositiveInt("OTEL_METRIC_EXPORT_INTERVAL_SECONDS", &cfg.Telemetry.ExportIntervalSeconds)
}

func envBool(key string, dst *bool) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func envPositiveInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}
