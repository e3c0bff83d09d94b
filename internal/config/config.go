package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort string

	// Database configuration
	DatabaseURL string
	DBMaxConns  int
	DBMinConns  int

	// Redis configuration (export queue + dashboard cache)
	RedisURL string

	// Security settings
	AdminSecret string
	AdminIPs    []string

	// Request limits
	MaxRequestSize int64

	// Worker settings
	WorkerConcurrency int

	// Views
	Timezone          string
	Location          *time.Location
	DashboardDays     int
	DashboardTop      int
	DashboardRecent   int
	DashboardCacheTTL time.Duration
	PageSize          int
	MaxFetchRows      int

	// Credential-minting and proxy-write functions
	FunctionsMintURL      string
	FunctionsProxyURL     string
	FunctionsAuthURL      string
	FunctionsClientID     string
	FunctionsClientSecret string
	FunctionsAPIKey       string
	FunctionsTimeout      time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Server
		ServerPort: getEnv("CONSOLE_SERVER_PORT", "8080"),

		// Database
		DatabaseURL: getEnv("CONSOLE_DATABASE_URL", ""),
		DBMaxConns:  getEnvInt("CONSOLE_DB_MAX_CONNS", 25),
		DBMinConns:  getEnvInt("CONSOLE_DB_MIN_CONNS", 5),

		// Redis
		RedisURL: getEnv("CONSOLE_REDIS_URL", ""),

		// Security
		AdminSecret:    getEnv("CONSOLE_ADMIN_SECRET", ""),
		MaxRequestSize: getEnvInt64("CONSOLE_MAX_REQUEST_SIZE", 1<<20), // 1MB

		// Worker
		WorkerConcurrency: getEnvInt("CONSOLE_WORKER_CONCURRENCY", 5),

		// Views
		Timezone:          getEnv("CONSOLE_TIMEZONE", "Local"),
		DashboardDays:     getEnvInt("CONSOLE_DASHBOARD_DAYS", 7),
		DashboardTop:      getEnvInt("CONSOLE_DASHBOARD_TOP", 5),
		DashboardRecent:   getEnvInt("CONSOLE_DASHBOARD_RECENT", 5),
		DashboardCacheTTL: getEnvDuration("CONSOLE_DASHBOARD_CACHE_TTL", 30*time.Second),
		PageSize:          getEnvInt("CONSOLE_PAGE_SIZE", 10),
		MaxFetchRows:      getEnvInt("CONSOLE_MAX_FETCH_ROWS", 5000),

		// Functions
		FunctionsMintURL:      getEnv("CONSOLE_FUNCTIONS_MINT_URL", ""),
		FunctionsProxyURL:     getEnv("CONSOLE_FUNCTIONS_PROXY_URL", ""),
		FunctionsAuthURL:      getEnv("CONSOLE_FUNCTIONS_AUTH_URL", ""),
		FunctionsClientID:     getEnv("CONSOLE_FUNCTIONS_CLIENT_ID", ""),
		FunctionsClientSecret: getEnv("CONSOLE_FUNCTIONS_CLIENT_SECRET", ""),
		FunctionsAPIKey:       getEnv("CONSOLE_FUNCTIONS_API_KEY", ""),
		FunctionsTimeout:      getEnvDuration("CONSOLE_FUNCTIONS_TIMEOUT", 15*time.Second),

		// Logging
		LogLevel:  getEnv("CONSOLE_LOG_LEVEL", "info"),
		LogFormat: getEnv("CONSOLE_LOG_FORMAT", "text"),
	}

	// Parse IP allowlist
	cfg.AdminIPs = splitList(getEnv("CONSOLE_ADMIN_IPS", ""))

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid CONSOLE_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	// Validation
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("CONSOLE_DATABASE_URL is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("CONSOLE_REDIS_URL is required")
	}
	if c.AdminSecret == "" {
		return fmt.Errorf("CONSOLE_ADMIN_SECRET is required")
	}
	if c.DashboardDays < 1 {
		return fmt.Errorf("CONSOLE_DASHBOARD_DAYS must be at least 1")
	}
	if c.DashboardTop < 1 {
		return fmt.Errorf("CONSOLE_DASHBOARD_TOP must be at least 1")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("CONSOLE_PAGE_SIZE must be at least 1")
	}
	if c.MaxFetchRows < 1 {
		return fmt.Errorf("CONSOLE_MAX_FETCH_ROWS must be at least 1")
	}

	return nil
}

// FunctionsConfigured reports whether at least one function endpoint is set.
// Application creation cannot mint credentials without one.
func (c *Config) FunctionsConfigured() bool {
	return c.FunctionsMintURL != "" || c.FunctionsProxyURL != ""
}

// LogSafeConfig logs configuration without secrets
func (c *Config) LogSafeConfig() {
	logrus.Infof("Configuration loaded:")
	logrus.Infof("  Server Port: %s", c.ServerPort)
	logrus.Infof("  Database URL: %s", maskConnectionString(c.DatabaseURL))
	logrus.Infof("  Redis URL: %s", maskConnectionString(c.RedisURL))
	logrus.Infof("  DB Pool: %d min, %d max", c.DBMinConns, c.DBMaxConns)
	logrus.Infof("  Worker Concurrency: %d", c.WorkerConcurrency)
	logrus.Infof("  Timezone: %s", c.Timezone)
	logrus.Infof("  Dashboard: %d days, top %d, recent %d, cache %s", c.DashboardDays, c.DashboardTop, c.DashboardRecent, c.DashboardCacheTTL)
	logrus.Infof("  Functions Mint URL: %s", valueOrUnset(c.FunctionsMintURL))
	logrus.Infof("  Functions Proxy URL: %s", valueOrUnset(c.FunctionsProxyURL))
	logrus.Infof("  Admin IP Allowlist: %v", c.AdminIPs)
	logrus.Infof("  Max Request Size: %d bytes", c.MaxRequestSize)
}

// ConfigureLogging applies level and formatter settings to the global logger.
func (c *Config) ConfigureLogging() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.Warnf("Unknown log level %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(c.LogFormat, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
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

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func valueOrUnset(v string) string {
	if v == "" {
		return "(unset)"
	}
	return v
}

func maskConnectionString(connStr string) string {
	if strings.Contains(connStr, "@") {
		parts := strings.Split(connStr, "@")
		if len(parts) == 2 {
			return "***@" + parts[1]
		}
	}
	return "***"
}
