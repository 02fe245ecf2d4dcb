package infra

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"telemetry-service/app/src/infra/utils"
)

type Config struct {
	HTTPPort    string
	GRPCPort    string
	MetricsPort string

	DatabaseDSN             string
	DatabaseHost            string
	DatabasePort            string
	DatabaseUser            string
	DatabasePassword        string
	DatabaseName            string
	DatabaseBatchSize       int
	DatabaseBatchTimeoutMS  int
	DatabaseBatchBufferSize int

	FetchLatencyMillis int
	FetchValueBound    float64
	FetchFailureRate   float64
	MaxInFlight        int
	FailFast           bool
}

// LoadConfig builds the effective configuration from environment variables,
// optionally overlaid with a YAML file named by CONFIG_FILE.
func LoadConfig() (Config, error) {
	cfg := Config{
		HTTPPort:                getEnv("HTTP_PORT", "8080"),
		GRPCPort:                getEnv("GRPC_PORT", "50051"),
		MetricsPort:             getEnv("METRICS_PORT", "2112"),
		DatabaseDSN:             os.Getenv("DB_DSN"),
		DatabaseHost:            os.Getenv("DB_HOST"),
		DatabasePort:            os.Getenv("DB_PORT"),
		DatabaseUser:            os.Getenv("DB_USER"),
		DatabasePassword:        os.Getenv("DB_PASSWORD"),
		DatabaseName:            os.Getenv("DB_NAME"),
		DatabaseBatchSize:       getEnvInt("DB_BATCH_SIZE", 32),
		DatabaseBatchTimeoutMS:  getEnvInt("DB_BATCH_TIMEOUT_MS", 250),
		DatabaseBatchBufferSize: getEnvInt("DB_BATCH_BUFFER", 128),
		FetchLatencyMillis:      getEnvInt("FETCH_LATENCY_MS", 1000),
		FetchValueBound:         getEnvFloat("FETCH_VALUE_BOUND", 100),
		FetchFailureRate:        getEnvFloat("FETCH_FAILURE_RATE", 0),
		MaxInFlight:             getEnvInt("MAX_IN_FLIGHT", 0),
		FailFast:                getEnvBool("FAIL_FAST", true),
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyConfigFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// fileConfig mirrors Config for the YAML overlay. Pointer fields distinguish
// "absent" from zero values so the file only overrides what it names.
type fileConfig struct {
	HTTPPort    *string `yaml:"http_port"`
	GRPCPort    *string `yaml:"grpc_port"`
	MetricsPort *string `yaml:"metrics_port"`

	DatabaseDSN             *string `yaml:"db_dsn"`
	DatabaseHost            *string `yaml:"db_host"`
	DatabasePort            *string `yaml:"db_port"`
	DatabaseUser            *string `yaml:"db_user"`
	DatabasePassword        *string `yaml:"db_password"`
	DatabaseName            *string `yaml:"db_name"`
	DatabaseBatchSize       *int    `yaml:"db_batch_size"`
	DatabaseBatchTimeoutMS  *int    `yaml:"db_batch_timeout_ms"`
	DatabaseBatchBufferSize *int    `yaml:"db_batch_buffer"`

	FetchLatencyMillis *int     `yaml:"fetch_latency_ms"`
	FetchValueBound    *float64 `yaml:"fetch_value_bound"`
	FetchFailureRate   *float64 `yaml:"fetch_failure_rate"`
	MaxInFlight        *int     `yaml:"max_in_flight"`
	FailFast           *bool    `yaml:"fail_fast"`
}

func applyConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file %q: %w", path, err)
	}

	var overlay fileConfig
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("config file %q: parse: %w", path, err)
	}

	applyString(&cfg.HTTPPort, overlay.HTTPPort)
	applyString(&cfg.GRPCPort, overlay.GRPCPort)
	applyString(&cfg.MetricsPort, overlay.MetricsPort)
	applyString(&cfg.DatabaseDSN, overlay.DatabaseDSN)
	applyString(&cfg.DatabaseHost, overlay.DatabaseHost)
	applyString(&cfg.DatabasePort, overlay.DatabasePort)
	applyString(&cfg.DatabaseUser, overlay.DatabaseUser)
	applyString(&cfg.DatabasePassword, overlay.DatabasePassword)
	applyString(&cfg.DatabaseName, overlay.DatabaseName)
	applyInt(&cfg.DatabaseBatchSize, overlay.DatabaseBatchSize)
	applyInt(&cfg.DatabaseBatchTimeoutMS, overlay.DatabaseBatchTimeoutMS)
	applyInt(&cfg.DatabaseBatchBufferSize, overlay.DatabaseBatchBufferSize)
	applyInt(&cfg.FetchLatencyMillis, overlay.FetchLatencyMillis)
	applyFloat(&cfg.FetchValueBound, overlay.FetchValueBound)
	applyFloat(&cfg.FetchFailureRate, overlay.FetchFailureRate)
	applyInt(&cfg.MaxInFlight, overlay.MaxInFlight)
	applyBool(&cfg.FailFast, overlay.FailFast)

	return nil
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func applyInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func applyFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func applyBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func LogConfig(ctx context.Context, logger *Logger, cfg Config) {
	logger.Printf(ctx, "HTTP_PORT=%s", cfg.HTTPPort)
	logger.Printf(ctx, "GRPC_PORT=%s", cfg.GRPCPort)
	logger.Printf(ctx, "METRICS_PORT=%s", utils.EmptyFallback(cfg.MetricsPort, "(disabled)"))
	if cfg.DatabaseDSN != "" {
		logger.Printf(ctx, "DB_DSN set (length %d)", len(cfg.DatabaseDSN))
	} else {
		logger.Println(ctx, "DB_DSN not provided")
	}
	logger.Printf(ctx, "DB_HOST=%s", utils.EmptyFallback(cfg.DatabaseHost, "(not set)"))
	logger.Printf(ctx, "DB_PORT=%s", utils.EmptyFallback(cfg.DatabasePort, "(not set)"))
	logger.Printf(ctx, "DB_USER=%s", utils.EmptyFallback(cfg.DatabaseUser, "(not set)"))
	if cfg.DatabasePassword != "" {
		logger.Println(ctx, "DB_PASSWORD set (redacted)")
	} else {
		logger.Println(ctx, "DB_PASSWORD not provided")
	}
	logger.Printf(ctx, "DB_NAME=%s", utils.EmptyFallback(cfg.DatabaseName, "(not set)"))
	logger.Printf(ctx, "DB_BATCH_SIZE=%d", cfg.DatabaseBatchSize)
	logger.Printf(ctx, "DB_BATCH_TIMEOUT_MS=%d", cfg.DatabaseBatchTimeoutMS)
	logger.Printf(ctx, "DB_BATCH_BUFFER=%d", cfg.DatabaseBatchBufferSize)
	logger.Printf(ctx, "FETCH_LATENCY_MS=%d", cfg.FetchLatencyMillis)
	logger.Printf(ctx, "FETCH_VALUE_BOUND=%g", cfg.FetchValueBound)
	logger.Printf(ctx, "FETCH_FAILURE_RATE=%g", cfg.FetchFailureRate)
	logger.Printf(ctx, "MAX_IN_FLIGHT=%d", cfg.MaxInFlight)
	logger.Printf(ctx, "FAIL_FAST=%t", cfg.FailFast)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
