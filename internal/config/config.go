// Package config loads fieldmonitor settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration.
type Config struct {
	// HTTP server
	Addr            string
	ShutdownTimeout time.Duration

	// Storage
	StoreDriver string
	FSRoot      string
	SQLitePath  string
	PostgresDSN string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
	S3Prefix    string

	// Domain
	SeedFile    string
	DefaultRate float64

	// AMQP
	AMQPURL      string
	AMQPExchange string

	// Report generation
	ReportAPIKey string
	ReportModel  string

	// Logging
	LogLevel  string
	LogFormat string
}

// DefaultReportModel is the generative model used when none is configured.
const DefaultReportModel = "gemini-2.5-flash"

var validDrivers = []string{"memory", "fs", "sqlite", "postgres", "s3"}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	return &Config{
		Addr:            getEnv("FIELDMONITOR_ADDR", ":8080"),
		ShutdownTimeout: getEnvDuration("FIELDMONITOR_SHUTDOWN_TIMEOUT", 15*time.Second),

		StoreDriver: getEnv("FIELDMONITOR_STORE_DRIVER", "fs"),
		FSRoot:      getEnv("FIELDMONITOR_FS_ROOT", "./data"),
		SQLitePath:  getEnv("FIELDMONITOR_SQLITE_PATH", "./data/fieldmonitor.db"),
		PostgresDSN: getEnv("FIELDMONITOR_POSTGRES_DSN", ""),
		S3Bucket:    getEnv("FIELDMONITOR_S3_BUCKET", ""),
		S3Region:    getEnv("FIELDMONITOR_S3_REGION", "us-east-1"),
		S3Endpoint:  getEnv("FIELDMONITOR_S3_ENDPOINT", ""),
		S3PathStyle: getEnvBool("FIELDMONITOR_S3_PATH_STYLE", false),
		S3Prefix:    getEnv("FIELDMONITOR_S3_PREFIX", ""),

		SeedFile:    getEnv("FIELDMONITOR_SEED_FILE", ""),
		DefaultRate: getEnvFloat("FIELDMONITOR_DEFAULT_RATE", 0.022),

		AMQPURL:      getEnv("FIELDMONITOR_AMQP_URL", ""),
		AMQPExchange: getEnv("FIELDMONITOR_AMQP_EXCHANGE", "fieldmonitor"),

		ReportAPIKey: getEnv("FIELDMONITOR_REPORT_API_KEY", os.Getenv("API_KEY")),
		ReportModel:  getEnv("FIELDMONITOR_REPORT_MODEL", DefaultReportModel),

		LogLevel:  getEnv("FIELDMONITOR_LOG_LEVEL", "info"),
		LogFormat: getEnv("FIELDMONITOR_LOG_FORMAT", "text"),
	}
}

// Validate returns every configuration problem in a single error.
func (c *Config) Validate() error {
	var problems []string

	if c.Addr == "" {
		problems = append(problems, "listen address cannot be empty")
	}
	if c.ShutdownTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("invalid shutdown timeout %v: must be positive", c.ShutdownTimeout))
	}

	valid := false
	for _, d := range validDrivers {
		if c.StoreDriver == d {
			valid = true
			break
		}
	}
	if !valid {
		problems = append(problems, fmt.Sprintf("invalid store driver '%s': must be one of %v", c.StoreDriver, validDrivers))
	}
	switch c.StoreDriver {
	case "fs":
		if c.FSRoot == "" {
			problems = append(problems, "filesystem root cannot be empty when using fs driver")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			problems = append(problems, "SQLite database path cannot be empty when using sqlite driver")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			problems = append(problems, "FIELDMONITOR_POSTGRES_DSN is required when using postgres driver")
		}
	case "s3":
		if c.S3Bucket == "" {
			problems = append(problems, "FIELDMONITOR_S3_BUCKET is required when using s3 driver")
		}
	}

	if c.DefaultRate <= 0 {
		problems = append(problems, fmt.Sprintf("invalid default rate %v: must be positive", c.DefaultRate))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
