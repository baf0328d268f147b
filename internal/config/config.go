package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/sf-incident-analytics/internal/domain"
)

const defaultDataSFURL = "https://data.sfgov.org/resource/wg3w-h783.json"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	// Incident source. A non-empty IncidentsFile selects the local CSV
	// source; otherwise the DataSF API is paginated.
	IncidentsFile   string
	DataSFURL       string
	DataSFAppToken  string
	DataSFTimeout   time.Duration
	PageSize        int
	MaxTotalRecords int
	Scope           domain.Scope

	CacheTTL      time.Duration
	IngestTimeout time.Duration
	ViewCacheSize int

	// Optional publication of normalized snapshots.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
	BatchSize    int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	dataSFTimeout, err := parsePositiveDuration("DATASF_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}
	ingestTimeout, err := parsePositiveDuration("INGEST_TIMEOUT", "15m")
	if err != nil {
		return nil, err
	}

	pageSize, err := parsePositiveInt("PAGE_SIZE", 50000)
	if err != nil {
		return nil, err
	}
	maxTotal, err := parsePositiveInt("MAX_TOTAL_RECORDS", 500000)
	if err != nil {
		return nil, err
	}
	viewCacheSize, err := parsePositiveInt("VIEW_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	scope, err := parseScope()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		CORSOrigins:     splitList(sharedcfg.EnvOrDefault("CORS_ORIGINS", "*")),

		IncidentsFile:   os.Getenv("INCIDENTS_FILE"),
		DataSFURL:       sharedcfg.EnvOrDefault("DATASF_URL", defaultDataSFURL),
		DataSFAppToken:  os.Getenv("DATASF_APP_TOKEN"),
		DataSFTimeout:   dataSFTimeout,
		PageSize:        pageSize,
		MaxTotalRecords: maxTotal,
		Scope:           scope,

		CacheTTL:      cacheTTL,
		IngestTimeout: ingestTimeout,
		ViewCacheSize: viewCacheSize,

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "sf-incidents-normalized"),
		BatchSize:    batchSize,
	}

	if cfg.IncidentsFile == "" && cfg.DataSFURL == "" {
		return nil, errors.New("DATASF_URL is required when INCIDENTS_FILE is not set")
	}
	if cfg.PageSize > cfg.MaxTotalRecords {
		return nil, errors.New("PAGE_SIZE must not exceed MAX_TOTAL_RECORDS")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseScope() (domain.Scope, error) {
	scope := domain.DefaultScope()

	if s := os.Getenv("SCOPE_START"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return domain.Scope{}, fmt.Errorf("invalid SCOPE_START: %w", err)
		}
		scope.Start = t
	}
	if s := os.Getenv("SCOPE_END"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return domain.Scope{}, fmt.Errorf("invalid SCOPE_END: %w", err)
		}
		scope.End = t
	}
	if scope.End.Before(scope.Start) {
		return domain.Scope{}, errors.New("SCOPE_END is before SCOPE_START")
	}
	return scope, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
