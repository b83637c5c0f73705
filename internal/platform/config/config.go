package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "pdftrack/pkg/platform/strings"
)

// Log selects the slog handler.
type Log struct {
	Format string // json or text
	Level  string // debug, info, warn, error
}

// Tracker configures document issuance.
type Tracker struct {
	CollectorURL     string
	LogPath          string
	NotifyTimeout    time.Duration
	ProbeAddr        string
	OutputDir        string
	KeepIntermediate bool
	SigningKey       string
	Log              Log
}

// RedisConfig configures the shared go-redis client.
type RedisConfig struct {
	URL          string
	Key          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the event forwarder. No brokers disables it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Collector configures the collector service.
type Collector struct {
	Addr        string
	Store       string // file, memory, redis or postgres
	StorePath   string
	DatabaseURL string
	SigningKey  string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Log         Log
}

// Store backends.
const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// TrackerFromEnv builds a Tracker config from environment variables.
func TrackerFromEnv() (Tracker, error) {
	timeout, err := durationEnv("PDFTRACK_NOTIFY_TIMEOUT", 5*time.Second)
	if err != nil {
		return Tracker{}, err
	}
	keep, err := boolEnv("PDFTRACK_KEEP_INTERMEDIATE", false)
	if err != nil {
		return Tracker{}, err
	}

	collectorURL, ok := os.LookupEnv("PDFTRACK_COLLECTOR_URL")
	if !ok {
		collectorURL = "http://localhost:5000/track"
	}

	return Tracker{
		CollectorURL:     strings.TrimSpace(collectorURL),
		LogPath:          stringEnv("PDFTRACK_LOG_PATH", "tracking_log.txt"),
		NotifyTimeout:    timeout,
		ProbeAddr:        stringEnv("PDFTRACK_PROBE_ADDR", "8.8.8.8:80"),
		OutputDir:        stringEnv("PDFTRACK_OUTPUT_DIR", "."),
		KeepIntermediate: keep,
		SigningKey:       os.Getenv("PDFTRACK_SIGNING_KEY"),
		Log:              logFromEnv(),
	}, nil
}

// CollectorFromEnv builds a Collector config from environment variables.
func CollectorFromEnv() (Collector, error) {
	cfg := Collector{
		Addr:        stringEnv("COLLECTOR_ADDR", ":5000"),
		Store:       strings.ToLower(stringEnv("COLLECTOR_STORE", StoreFile)),
		StorePath:   stringEnv("COLLECTOR_STORE_PATH", "pdf_access_log.jsonl"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SigningKey:  os.Getenv("COLLECTOR_SIGNING_KEY"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			Key:          stringEnv("REDIS_KEY", "pdftrack:events"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: pstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   stringEnv("KAFKA_TOPIC", "pdf-tracking-events"),
		},
		Log: logFromEnv(),
	}

	switch cfg.Store {
	case StoreFile, StoreMemory:
	case StoreRedis:
		if cfg.Redis.URL == "" {
			return Collector{}, fmt.Errorf("COLLECTOR_STORE=redis requires REDIS_URL")
		}
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return Collector{}, fmt.Errorf("COLLECTOR_STORE=postgres requires DATABASE_URL")
		}
	default:
		return Collector{}, fmt.Errorf("unknown COLLECTOR_STORE %q", cfg.Store)
	}
	return cfg, nil
}

func logFromEnv() Log {
	return Log{
		Format: strings.ToLower(stringEnv("PDFTRACK_LOG_FORMAT", "json")),
		Level:  strings.ToLower(stringEnv("PDFTRACK_LOG_LEVEL", "info")),
	}
}

func stringEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
