package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Provider API keys (from .env). CoinGecko and AlphaVantage require a
	// key; CoinDesk's public endpoint answers without one.
	CoinGeckoAPIKey    string
	AlphaVantageAPIKey string
	CoinDeskAPIKey     string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// HTTP API
	APIPort         int
	CORSAllowOrigin string

	// Ingestion
	FetchInterval     time.Duration
	BackfillStartYear int

	// Logging
	LogLevel string
	LogFile  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		CoinGeckoAPIKey:    envStr("COINGECKO_API_KEY", ""),
		AlphaVantageAPIKey: envStr("ALPHAVANTAGE_API_KEY", ""),
		CoinDeskAPIKey:     envStr("COINDESK_API_KEY", ""),

		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "bitcoin_tracker"),
		DBUser:     envStr("DB_USER", "postgres"),
		DBPassword: envStr("DB_PASSWORD", ""),

		APIPort:         envInt("API_PORT", 3001),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		FetchInterval:     time.Duration(envInt("FETCH_INTERVAL_MINUTES", 60)) * time.Minute,
		BackfillStartYear: envInt("BACKFILL_START_YEAR", 2020),

		LogLevel: envStr("LOG_LEVEL", "info"),
		LogFile:  envStr("LOG_FILE", ""),
	}

	return cfg, nil
}

// Validate reports hard errors only; a missing provider key is a warning
// because it just disables that source's scheduler entry.
func (c *Config) Validate() error {
	var errs []string

	if c.DBUser == "" {
		errs = append(errs, "DB_USER is required")
	}
	if c.FetchInterval <= 0 {
		errs = append(errs, "FETCH_INTERVAL_MINUTES must be positive")
	}
	if c.BackfillStartYear < 2009 {
		errs = append(errs, "BACKFILL_START_YEAR predates bitcoin")
	}

	if c.CoinGeckoAPIKey == "" {
		fmt.Println("[WARN] COINGECKO_API_KEY not set — coingecko source and backfill disabled")
	}
	if c.AlphaVantageAPIKey == "" {
		fmt.Println("[WARN] ALPHAVANTAGE_API_KEY not set — alphavantage source disabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== Bitcoin Price Tracker Configuration ===")
	fmt.Printf("Database: %s:%d/%s\n", c.DBHost, c.DBPort, c.DBName)
	fmt.Printf("API port: %d\n", c.APIPort)
	fmt.Printf("Fetch interval: %s\n", c.FetchInterval)
	fmt.Printf("Backfill start year: %d\n", c.BackfillStartYear)
	fmt.Printf("Sources: coingecko=%s alphavantage=%s coindesk=enabled\n",
		boolLabel(c.CoinGeckoAPIKey != "", "enabled", "disabled"),
		boolLabel(c.AlphaVantageAPIKey != "", "enabled", "disabled"))
	fmt.Println("===========================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
