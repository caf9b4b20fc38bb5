// Package config loads the gateway and consumer's environment-driven
// settings, falling back to an optional .env file the way the teacher's
// own entrypoint does.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDataDir         = "./data"
	defaultGatewayAddr     = ":8080"
	defaultMaxJobsPerTick  = 10
	minMaxJobsPerTick      = 1
	maxMaxJobsPerTick      = 50
	defaultConsumerTick    = 2 * time.Second
	defaultEnvironment     = "development"
	defaultConsumerTimeout = 30 * time.Second
)

// clampMaxJobsPerTick enforces spec.md §6's [1,50] bound on MAX_JOBS_PER_TICK.
func clampMaxJobsPerTick(v int) int {
	if v < minMaxJobsPerTick {
		return minMaxJobsPerTick
	}
	if v > maxMaxJobsPerTick {
		return maxMaxJobsPerTick
	}
	return v
}

// Gateway holds everything the gateway binary needs to boot.
type Gateway struct {
	DataDir        string
	Addr           string
	APIToken       string
	Environment    string
	MaxJobsPerTick int
}

// Consumer holds everything the consumer binary needs to boot.
type Consumer struct {
	GatewayURL     string
	APIToken       string
	TickInterval   time.Duration
	MaxJobsPerTick int
	RequestTimeout time.Duration
	Environment    string
}

// LoadGateway reads gateway configuration from the environment, loading a
// .env file first if one is present (errors loading it are non-fatal: a
// deployed gateway need not ship one).
func LoadGateway() Gateway {
	loadDotenv()

	cfg := Gateway{
		DataDir:        getenvDefault("QUEUE_DATA_DIR", defaultDataDir),
		Addr:           getenvDefault("GATEWAY_ADDR", defaultGatewayAddr),
		APIToken:       os.Getenv("INTERNAL_API_TOKEN"),
		Environment:    getenvDefault("ENVIRONMENT", defaultEnvironment),
		MaxJobsPerTick: clampMaxJobsPerTick(getenvIntDefault("MAX_JOBS_PER_TICK", defaultMaxJobsPerTick)),
	}

	slog.Debug("gateway configuration loaded",
		"data_dir", cfg.DataDir,
		"addr", cfg.Addr,
		"api_token_set", cfg.APIToken != "",
		"environment", cfg.Environment)

	return cfg
}

// LoadConsumer reads consumer configuration from the environment.
func LoadConsumer() Consumer {
	loadDotenv()

	cfg := Consumer{
		GatewayURL:     getenvDefault("GATEWAY_URL", "http://localhost:8080"),
		APIToken:       os.Getenv("INTERNAL_API_TOKEN"),
		TickInterval:   getenvDurationDefault("CONSUMER_TICK_INTERVAL", defaultConsumerTick),
		MaxJobsPerTick: clampMaxJobsPerTick(getenvIntDefault("MAX_JOBS_PER_TICK", defaultMaxJobsPerTick)),
		RequestTimeout: getenvDurationDefault("CONSUMER_REQUEST_TIMEOUT", defaultConsumerTimeout),
		Environment:    getenvDefault("ENVIRONMENT", defaultEnvironment),
	}

	slog.Debug("consumer configuration loaded",
		"gateway_url", cfg.GatewayURL,
		"api_token_set", cfg.APIToken != "",
		"tick_interval", cfg.TickInterval,
		"max_jobs_per_tick", cfg.MaxJobsPerTick,
		"environment", cfg.Environment)

	return cfg
}

func loadDotenv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	} else {
		slog.Debug("loaded .env file")
	}
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvIntDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Debug("invalid integer env var, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Debug("invalid duration env var, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}
