package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/bazaar/pkg/observability"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Content       ContentConfig
	Cache         CacheConfig
	Gates         GatesConfig
	Federation    FederationConfig
	Audit         AuditConfig
	Signing       SigningConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds catalog database configuration.
type DatabaseConfig struct {
	// Driver is postgres or sqlite3.
	Driver string
	// URL is the postgres connection string, or the sqlite file path.
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// ContentConfig holds content snapshot store configuration.
type ContentConfig struct {
	// Type is filesystem or s3.
	Type string

	FilesystemRoot string

	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

// CacheConfig holds catalog read cache configuration.
type CacheConfig struct {
	Enabled       bool
	L1Size        int
	RedisURL      string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// GatesConfig holds security gate pipeline configuration.
type GatesConfig struct {
	// RulesPath points to the scanner rules YAML; empty uses embedded defaults.
	RulesPath   string
	Workers     int
	GateTimeout time.Duration
}

// FederationConfig holds sync engine configuration.
type FederationConfig struct {
	// CentralURL is the central registry base URL. Empty means this deployment
	// is the central registry and serves pushes in-process.
	CentralURL   string
	CentralToken string
	BatchLimit   int
	PromoteCron  string
	PullCron     string
	// PullLevel is the impact level used when pulling from central.
	PullLevel string
}

// AuditConfig holds audit trail configuration.
type AuditConfig struct {
	// Sink is db, file, or both.
	Sink        string
	FilePath    string
	MaxFileSize int64
}

// SigningConfig holds key material configuration.
type SigningConfig struct {
	// KeyringPath points to a YAML file mapping publisher names to hex-encoded
	// ed25519 public keys. Empty starts with an empty keyring.
	KeyringPath string
	// SealSeed is a hex-encoded ed25519 seed used to seal provenance chains.
	// Empty generates an ephemeral key at startup.
	SealSeed string
}

// ObservabilityConfig holds observability settings.
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("BAZAAR_HOST", "0.0.0.0"),
			Port:            getEnv("BAZAAR_PORT", "8080"),
			ReadTimeout:     getEnvDuration("BAZAAR_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("BAZAAR_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvDuration("BAZAAR_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("BAZAAR_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("BAZAAR_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("BAZAAR_DB_DRIVER", "postgres"),
			URL:          getEnv("BAZAAR_DB_URL", ""),
			MaxOpenConns: getEnvInt("BAZAAR_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("BAZAAR_DB_MAX_IDLE_CONNS", 5),
		},
		Content: ContentConfig{
			Type:           getEnv("BAZAAR_CONTENT_TYPE", "filesystem"),
			FilesystemRoot: getEnv("BAZAAR_CONTENT_ROOT", "/var/lib/bazaar/snapshots"),
			S3Endpoint:     getEnv("BAZAAR_S3_ENDPOINT", ""),
			S3Region:       getEnv("BAZAAR_S3_REGION", "us-east-1"),
			S3Bucket:       getEnv("BAZAAR_S3_BUCKET", ""),
			S3AccessKey:    getEnv("BAZAAR_S3_ACCESS_KEY", ""),
			S3SecretKey:    getEnv("BAZAAR_S3_SECRET_KEY", ""),
			S3UsePathStyle: getEnvBool("BAZAAR_S3_USE_PATH_STYLE", false),
		},
		Cache: CacheConfig{
			Enabled:       getEnvBool("BAZAAR_CACHE_ENABLED", true),
			L1Size:        getEnvInt("BAZAAR_L1_CACHE_SIZE", 1024),
			RedisURL:      getEnv("BAZAAR_REDIS_URL", ""),
			RedisPassword: getEnv("BAZAAR_REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("BAZAAR_REDIS_DB", 0),
			TTL:           getEnvDuration("BAZAAR_CACHE_TTL", 5*time.Minute),
		},
		Gates: GatesConfig{
			RulesPath:   getEnv("BAZAAR_GATE_RULES_PATH", ""),
			Workers:     getEnvInt("BAZAAR_GATE_WORKERS", 4),
			GateTimeout: getEnvDuration("BAZAAR_GATE_TIMEOUT", 2*time.Minute),
		},
		Federation: FederationConfig{
			CentralURL:   getEnv("BAZAAR_CENTRAL_URL", ""),
			CentralToken: getEnv("BAZAAR_CENTRAL_TOKEN", ""),
			BatchLimit:   getEnvInt("BAZAAR_SYNC_BATCH_LIMIT", 100),
			PromoteCron:  getEnv("BAZAAR_PROMOTE_CRON", "*/5 * * * *"),
			PullCron:     getEnv("BAZAAR_PULL_CRON", "*/15 * * * *"),
			PullLevel:    getEnv("BAZAAR_PULL_LEVEL", ""),
		},
		Audit: AuditConfig{
			Sink:        getEnv("BAZAAR_AUDIT_SINK", "db"),
			FilePath:    getEnv("BAZAAR_AUDIT_FILE", "/var/log/bazaar/audit"),
			MaxFileSize: getEnvInt64("BAZAAR_AUDIT_MAX_FILE_SIZE", 100<<20),
		},
		Signing: SigningConfig{
			KeyringPath: getEnv("BAZAAR_KEYRING_PATH", ""),
			SealSeed:    getEnv("BAZAAR_SEAL_SEED", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:           parseLogLevel(getEnv("BAZAAR_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("BAZAAR_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("BAZAAR_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("BAZAAR_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("BAZAAR_OTEL_SERVICE_NAME", "bazaar-registry"),
			OTelServiceVersion: getEnv("BAZAAR_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("BAZAAR_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	switch c.Content.Type {
	case "filesystem":
		if c.Content.FilesystemRoot == "" {
			return fmt.Errorf("filesystem root is required for filesystem content storage")
		}
	case "s3":
		if c.Content.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 content storage")
		}
	default:
		return fmt.Errorf("invalid content storage type: %s (must be filesystem or s3)", c.Content.Type)
	}

	switch c.Audit.Sink {
	case "db", "file", "both":
	default:
		return fmt.Errorf("invalid audit sink: %s (must be db, file, or both)", c.Audit.Sink)
	}
	if (c.Audit.Sink == "file" || c.Audit.Sink == "both") && c.Audit.FilePath == "" {
		return fmt.Errorf("audit file path is required for file audit sink")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string.
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
