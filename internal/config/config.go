package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ServiceName    = "inventory-ledger"
	ServiceVersion = "0.1.0"
)

const (
	TracesPath    = "/v1/traces"
	LogsPath      = "/v1/logs"
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

type Config struct {
	HTTPAddr  string
	GRPCAddr  string
	MySQLDSN  string
	RedisAddr string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	OtelEndpoint   string
	OtelAuthHeader string
	LogLevel       string

	EventFetchTimeout  time.Duration
	SnapshotCacheTTL   time.Duration
	ReconcileWorkers   int
	ReductionAllowZero bool
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:       getEnv("GRPC_ADDR", ":50051"),
		MySQLDSN:       os.Getenv("MYSQL_DSN"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "inventory-events"),
		KafkaGroupID:   getEnv("KAFKA_GROUP_ID", ServiceName+"-invalidation"),
		OtelEndpoint:   os.Getenv("OTEL_ENDPOINT"),
		OtelAuthHeader: os.Getenv("OTEL_AUTH_HEADER"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	if cfg.MySQLDSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN environment variable is required")
	}

	var err error
	if cfg.EventFetchTimeout, err = getDuration("EVENT_FETCH_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SnapshotCacheTTL, err = getDuration("SNAPSHOT_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReconcileWorkers, err = getInt("RECONCILE_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.ReconcileWorkers < 1 {
		return nil, fmt.Errorf("RECONCILE_WORKERS must be at least 1, got %d", cfg.ReconcileWorkers)
	}
	if cfg.ReductionAllowZero, err = getBool("REDUCTION_ALLOW_ZERO", true); err != nil {
		return nil, err
	}

	return cfg, nil
}

// KafkaEnabled reports whether notifications should be published and consumed.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, v, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
