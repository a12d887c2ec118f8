package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/SteelMorgan/log-forwarder/internal/retry"
)

// Outputs the forwarder can ship events to
const (
	OutputStdout     = "stdout"
	OutputClickHouse = "clickhouse"
	OutputCloudWatch = "cloudwatch"
)

// Config holds all configuration for the application
type Config struct {
	// Sources
	FilesConfigPath string // YAML document listing file groups
	Hostname        string // Reported in every event; resolved once at startup

	// Engine
	SpoolSize    int
	PollInterval time.Duration
	OffsetDBPath string

	// Output
	Output string

	// ClickHouse configuration
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDB       string
	ClickHouseTable    string
	ClickHouseUser     string
	ClickHousePassword string

	// CloudWatch configuration
	CloudWatchLogGroup  string
	CloudWatchLogStream string
	CloudWatchRegion    string

	// Delivery retries
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration

	// Observability
	MetricsPort      int
	LogLevel         string
	LogFile          string
	TracingEnabled   bool
	OTLPEndpoint     string
	OTLPProtocol     string
	TraceSampleRatio float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	hostname := getEnv("FORWARDER_HOSTNAME", "")
	if hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve host name: %w", err)
		}
		hostname = h
	}

	cfg := &Config{
		FilesConfigPath: getEnv("FORWARDER_CONFIG", "configs/forwarder.yaml"),
		Hostname:        hostname,

		SpoolSize:    getEnvInt("SPOOL_SIZE", 1024),
		PollInterval: time.Duration(getEnvInt("POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		OffsetDBPath: getEnv("OFFSET_DB_PATH", "forwarder.db"),

		Output: strings.ToLower(getEnv("OUTPUT", OutputStdout)),

		ClickHouseHost:     getEnv("CLICKHOUSE_HOST", "localhost"),
		ClickHousePort:     getEnvInt("CLICKHOUSE_PORT", 9000),
		ClickHouseDB:       getEnv("CLICKHOUSE_DB", "logs"),
		ClickHouseTable:    getEnv("CLICKHOUSE_TABLE", "forwarder_events"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", ""),
		CloudWatchLogStream: getEnv("CLOUDWATCH_LOG_STREAM", hostname),
		CloudWatchRegion:    getEnv("CLOUDWATCH_REGION", ""),

		RetryMaxAttempts:  getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay: time.Duration(getEnvInt("RETRY_INITIAL_DELAY_MS", 100)) * time.Millisecond,
		RetryMaxDelay:     time.Duration(getEnvInt("RETRY_MAX_DELAY_MS", 5000)) * time.Millisecond,

		MetricsPort:      getEnvInt("METRICS_PORT", 9102),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFile:          getEnv("LOG_FILE", ""),
		TracingEnabled:   getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:     getEnv("OTLP_ENDPOINT", ""),
		OTLPProtocol:     getEnv("OTLP_PROTOCOL", "grpc"),
		TraceSampleRatio: getEnvFloat("TRACE_SAMPLE_RATIO", 1.0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.FilesConfigPath == "" {
		return fmt.Errorf("FORWARDER_CONFIG is required")
	}
	if c.Hostname == "" {
		return fmt.Errorf("FORWARDER_HOSTNAME is required")
	}
	if c.SpoolSize < 1 {
		return fmt.Errorf("SPOOL_SIZE must be at least 1")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if c.OffsetDBPath == "" {
		return fmt.Errorf("OFFSET_DB_PATH is required")
	}

	switch c.Output {
	case OutputStdout:
	case OutputClickHouse:
		if c.ClickHouseHost == "" {
			return fmt.Errorf("CLICKHOUSE_HOST is required")
		}
		if c.ClickHousePort <= 0 || c.ClickHousePort > 65535 {
			return fmt.Errorf("CLICKHOUSE_PORT must be between 1 and 65535")
		}
		if c.ClickHouseDB == "" {
			return fmt.Errorf("CLICKHOUSE_DB is required")
		}
		if c.ClickHouseTable == "" {
			return fmt.Errorf("CLICKHOUSE_TABLE is required")
		}
	case OutputCloudWatch:
		if c.CloudWatchLogGroup == "" {
			return fmt.Errorf("CLOUDWATCH_LOG_GROUP is required")
		}
		if c.CloudWatchLogStream == "" {
			return fmt.Errorf("CLOUDWATCH_LOG_STREAM is required")
		}
	default:
		return fmt.Errorf("OUTPUT must be one of %s, %s, %s, got %q",
			OutputStdout, OutputClickHouse, OutputCloudWatch, c.Output)
	}

	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.RetryInitialDelay < 0 || c.RetryMaxDelay < c.RetryInitialDelay {
		return fmt.Errorf("RETRY_MAX_DELAY_MS must not be less than RETRY_INITIAL_DELAY_MS")
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("METRICS_PORT must be between 0 and 65535")
	}
	if c.TracingEnabled && c.OTLPProtocol != "grpc" && c.OTLPProtocol != "http" {
		return fmt.Errorf("OTLP_PROTOCOL must be grpc or http")
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATIO must be between 0 and 1")
	}

	return nil
}

// ClickHouseQualifiedTable returns the events table as db.table
func (c *Config) ClickHouseQualifiedTable() string {
	if strings.Contains(c.ClickHouseTable, ".") {
		return c.ClickHouseTable
	}
	return c.ClickHouseDB + "." + c.ClickHouseTable
}

// RetryConfig returns the delivery retry policy
func (c *Config) RetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = c.RetryMaxAttempts
	cfg.InitialDelay = c.RetryInitialDelay
	cfg.MaxDelay = c.RetryMaxDelay
	return cfg
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
