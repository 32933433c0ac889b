// Package config loads process configuration from the environment, with an
// optional .env file for local runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is everything the process needs at startup.
type Config struct {
	// Credentials. Required only when LiveTrading is set; the dry-run
	// path never signs anything.
	BinanceAPIKey    string
	BinanceAPISecret string

	LiveTrading bool
	Testnet     bool

	MaxNotional float64 // leg-1 sizing cap in quote currency

	Port         string
	DBPath       string
	TrianglePath string // optional YAML override of the default cycle

	StreamHost      string
	StreamPort      string
	ReadIdleTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in when present but never required.
//
// Credentials and the LIVE_TRADING toggle must always be present, dry-run
// included: the operator has to state which mode they mean rather than get
// one by default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BinanceAPIKey:    getEnv("BINANCE_API_KEY", ""),
		BinanceAPISecret: getEnv("BINANCE_API_SECRET", ""),
		Testnet:          getEnvBool("TESTNET", false),
		MaxNotional:      getEnvFloat("MAX_NOTIONAL", 100.0),
		Port:             getEnv("PORT", "8080"),
		DBPath:           getEnv("DB_PATH", "data/journal.db"),
		TrianglePath:     getEnv("TRIANGLE_CONFIG", ""),
		StreamHost:       getEnv("STREAM_HOST", "stream.binance.com"),
		StreamPort:       getEnv("STREAM_PORT", "9443"),
		ReadIdleTimeout:  getEnvDuration("READ_IDLE_TIMEOUT", 30*time.Second),
	}

	if cfg.BinanceAPIKey == "" || cfg.BinanceAPISecret == "" {
		return nil, fmt.Errorf("config: BINANCE_API_KEY and BINANCE_API_SECRET are required")
	}
	live, ok := os.LookupEnv("LIVE_TRADING")
	if !ok || live == "" {
		return nil, fmt.Errorf("config: LIVE_TRADING must be set explicitly (true or false)")
	}
	b, err := strconv.ParseBool(live)
	if err != nil {
		return nil, fmt.Errorf("config: LIVE_TRADING=%q is not a boolean: %w", live, err)
	}
	cfg.LiveTrading = b

	if cfg.MaxNotional <= 0 {
		return nil, fmt.Errorf("config: MAX_NOTIONAL must be positive, got %v", cfg.MaxNotional)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
