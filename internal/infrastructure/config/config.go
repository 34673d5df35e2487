package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // market timezone must resolve on hosts without zoneinfo
)

const clockLayout = "15:04"

// ProviderLimit caps the request pressure put on one provider.
type ProviderLimit struct {
	MaxConcurrency int
	RatePerSec     float64
	Burst          int
}

type Config struct {
	DBDriver          string
	DBDSN             string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	FinnhubAPIKey    string
	TwelveDataAPIKey string
	PolygonAPIKey    string
	YFinanceBaseURL  string
	StockProvider    string
	ForexProvider    string
	ProviderLimits   map[string]ProviderLimit
	SymbolsFile      string

	PollInterval         time.Duration
	MarketLocation       *time.Location
	MarketOpen           time.Duration
	MarketClose          time.Duration
	MarketHoursGate      bool
	EquitiesPricePlaces  int32
	StoreMaxFailedCycles int

	RedisAddr       string
	RedisPassword   string
	HistoryCacheTTL time.Duration

	ServerPort        string
	ServerHost        string
	CORSAllowedOrigin string

	LogLevel  string
	LogFormat string
	LogFile   string
}

// providerEnvPrefix maps provider names to their environment variable prefix.
var providerEnvPrefix = map[string]string{
	"finnhub":    "FINNHUB",
	"twelvedata": "TWELVE_DATA",
	"yfinance":   "YFINANCE",
	"polygon":    "POLYGON",
}

func Load() (*Config, error) {
	cfg := &Config{
		DBDriver:          strings.ToLower(getEnvOrDefault("DB_DRIVER", "postgres")),
		DBDSN:             os.Getenv("DB_DSN"),
		FinnhubAPIKey:     os.Getenv("FINNHUB_API_KEY"),
		TwelveDataAPIKey:  os.Getenv("TWELVE_DATA_API_KEY"),
		PolygonAPIKey:     os.Getenv("POLYGON_API_KEY"),
		YFinanceBaseURL:   os.Getenv("YFINANCE_BASE_URL"),
		StockProvider:     strings.ToLower(getEnvOrDefault("STOCK_PROVIDER", "finnhub")),
		ForexProvider:     strings.ToLower(getEnvOrDefault("FOREX_PROVIDER", "twelvedata")),
		SymbolsFile:       os.Getenv("SYMBOLS_FILE"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		ServerPort:        getEnvOrDefault("SERVER_PORT", "8080"),
		ServerHost:        getEnvOrDefault("SERVER_HOST", "localhost"),
		CORSAllowedOrigin: getEnvOrDefault("CORS_ALLOWED_ORIGIN", "http://localhost:5173"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text")),
		LogFile:           os.Getenv("LOG_FILE"),
		ProviderLimits:    make(map[string]ProviderLimit, len(providerEnvPrefix)),
	}

	if err := cfg.loadStore(); err != nil {
		return nil, err
	}
	if err := cfg.loadProviders(); err != nil {
		return nil, err
	}
	if err := cfg.loadSchedule(); err != nil {
		return nil, err
	}

	var err error
	if cfg.HistoryCacheTTL, err = parseDuration("HISTORY_CACHE_TTL", "60s"); err != nil {
		return nil, err
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("unsupported LOG_FORMAT: %s (expected text or json)", cfg.LogFormat)
	}

	return cfg, nil
}

func (c *Config) loadStore() error {
	switch c.DBDriver {
	case "postgres", "oracle", "mysql":
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN environment variable is required for %s driver", c.DBDriver)
		}
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	var err error
	if c.DBMaxOpenConns, err = parseInt("DB_MAX_OPEN_CONNS", 10); err != nil {
		return err
	}
	if c.DBMaxIdleConns, err = parseInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return err
	}
	if c.DBConnMaxLifetime, err = parseDuration("DB_CONN_MAX_LIFETIME", "30m"); err != nil {
		return err
	}
	return nil
}

func (c *Config) loadProviders() error {
	switch c.StockProvider {
	case "finnhub":
		if c.FinnhubAPIKey == "" {
			return fmt.Errorf("FINNHUB_API_KEY environment variable is required for finnhub provider")
		}
	case "polygon":
		if c.PolygonAPIKey == "" {
			return fmt.Errorf("POLYGON_API_KEY environment variable is required for polygon provider")
		}
	default:
		return fmt.Errorf("unsupported STOCK_PROVIDER: %s", c.StockProvider)
	}

	switch c.ForexProvider {
	case "twelvedata":
		if c.TwelveDataAPIKey == "" {
			return fmt.Errorf("TWELVE_DATA_API_KEY environment variable is required for twelvedata provider")
		}
	case "yfinance":
	default:
		return fmt.Errorf("unsupported FOREX_PROVIDER: %s", c.ForexProvider)
	}

	for name, prefix := range providerEnvPrefix {
		limit, err := loadProviderLimit(prefix)
		if err != nil {
			return err
		}
		c.ProviderLimits[name] = limit
	}
	return nil
}

func loadProviderLimit(prefix string) (ProviderLimit, error) {
	var (
		l   ProviderLimit
		err error
	)
	if l.MaxConcurrency, err = parseInt(prefix+"_MAX_CONCURRENCY", 4); err != nil {
		return l, err
	}
	if l.MaxConcurrency < 1 {
		return l, fmt.Errorf("invalid %s_MAX_CONCURRENCY: must be at least 1", prefix)
	}
	if l.RatePerSec, err = parseFloat(prefix+"_RATE_PER_SEC", 0); err != nil {
		return l, err
	}
	if l.Burst, err = parseInt(prefix+"_RATE_BURST", 1); err != nil {
		return l, err
	}
	return l, nil
}

func (c *Config) loadSchedule() error {
	var err error
	if c.PollInterval, err = parseDuration("POLL_INTERVAL", "300s"); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("invalid POLL_INTERVAL: must be positive")
	}

	tz := getEnvOrDefault("MARKET_TIMEZONE", "America/New_York")
	if c.MarketLocation, err = time.LoadLocation(tz); err != nil {
		return fmt.Errorf("invalid MARKET_TIMEZONE: %w", err)
	}
	if c.MarketOpen, err = parseClock("MARKET_OPEN", "09:30"); err != nil {
		return err
	}
	if c.MarketClose, err = parseClock("MARKET_CLOSE", "16:00"); err != nil {
		return err
	}
	if c.MarketClose <= c.MarketOpen {
		return fmt.Errorf("MARKET_CLOSE must be after MARKET_OPEN")
	}
	if c.MarketHoursGate, err = parseBool("MARKET_HOURS_GATE", true); err != nil {
		return err
	}

	places, err := parseInt("PRICE_PRECISION_EQUITIES", 2)
	if err != nil {
		return err
	}
	if places < 0 || places > 8 {
		return fmt.Errorf("invalid PRICE_PRECISION_EQUITIES: %d (expected 0-8)", places)
	}
	c.EquitiesPricePlaces = int32(places)

	if c.StoreMaxFailedCycles, err = parseInt("STORE_MAX_FAILED_CYCLES", 5); err != nil {
		return err
	}
	if c.StoreMaxFailedCycles < 1 {
		return fmt.Errorf("invalid STORE_MAX_FAILED_CYCLES: must be at least 1")
	}
	return nil
}

// Limit returns the configured limit for provider, or the defaults.
func (c *Config) Limit(provider string) ProviderLimit {
	if l, ok := c.ProviderLimits[provider]; ok {
		return l
	}
	return ProviderLimit{MaxConcurrency: 4, Burst: 1}
}

// Address returns the host:port the HTTP server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.ServerHost, c.ServerPort)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnvOrDefault(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func parseBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// parseClock parses an HH:MM wall-clock value into an offset from midnight.
func parseClock(key, defaultValue string) (time.Duration, error) {
	t, err := time.Parse(clockLayout, getEnvOrDefault(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
