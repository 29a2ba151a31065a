// Package config loads service configuration from flags, the environment and .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"library-circulation/library"
)

// Storage drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverMemory = "memory"
)

// Config holds the application configuration.
type Config struct {
	App         AppConfig
	Logger      LoggerConfig
	Storage     StorageConfig
	Server      ServerConfig
	Circulation CirculationConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json, text, or empty to pick by environment
}

// StorageConfig selects where the three documents live.
type StorageConfig struct {
	Driver  string
	DataDir string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	LoginRate    float64 // login attempts per second per client
	LoginBurst   int
	// TrustProxy takes client addresses from forwarding headers.
	TrustProxy bool
}

// CirculationConfig tunes the circulation rules.
type CirculationConfig struct {
	FineIncrement  int
	LoanPeriodDays int
}

// LoanPeriod is the loan period as a duration.
func (c CirculationConfig) LoanPeriod() time.Duration {
	return time.Duration(c.LoanPeriodDays) * 24 * time.Hour
}

// Overrides carries command-line flag values. Empty fields fall through to
// the environment.
type Overrides struct {
	EnvFile       string
	Env           string
	LogLevel      string
	LogFormat     string
	StorageDriver string
	DataDir       string
	Port          string
}

// Load builds configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(o Overrides) (*Config, error) {
	envFile := o.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(o.Env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(o.LogLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue(o.LogFormat, "LOG_FORMAT", ""),
		},
		Storage: StorageConfig{
			Driver:  getConfigValue(o.StorageDriver, "STORAGE_DRIVER", DriverJSON),
			DataDir: getConfigValue(o.DataDir, "DATA_DIR", "data"),
		},
		Server: ServerConfig{
			Port:        getConfigValue(o.Port, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue("", "CORS_ORIGINS", "*")),
		},
	}

	var err error
	if cfg.Server.ReadTimeout, err = getDurationConfigValue("SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = getDurationConfigValue("SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.LoginRate, err = getFloatConfigValue("LOGIN_RATE", 1); err != nil {
		return nil, err
	}
	if cfg.Server.LoginBurst, err = getIntConfigValue("LOGIN_BURST", 5); err != nil {
		return nil, err
	}
	if cfg.Server.TrustProxy, err = getBoolConfigValue("TRUST_PROXY", false); err != nil {
		return nil, err
	}
	if cfg.Circulation.FineIncrement, err = getIntConfigValue("FINE_INCREMENT", library.DefaultFine); err != nil {
		return nil, err
	}
	if cfg.Circulation.LoanPeriodDays, err = getIntConfigValue("LOAN_PERIOD_DAYS", 14); err != nil {
		return nil, err
	}

	if cfg.Storage.Driver != DriverMemory {
		if cfg.Storage.DataDir, err = expandPath(cfg.Storage.DataDir); err != nil {
			return nil, fmt.Errorf("invalid data dir: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", c.Logger.Level)
	}
	switch c.Logger.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log format: %q (must be json or text)", c.Logger.Format)
	}

	switch c.Storage.Driver {
	case DriverJSON, DriverSQLite, DriverBadger:
		if c.Storage.DataDir == "" {
			return errors.New("DATA_DIR is required for persistent storage")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid storage driver: %q (must be json, sqlite, badger, or memory)", c.Storage.Driver)
	}

	if c.Circulation.FineIncrement <= 0 {
		return fmt.Errorf("FINE_INCREMENT must be positive, got %d", c.Circulation.FineIncrement)
	}
	if c.Circulation.LoanPeriodDays <= 0 {
		return fmt.Errorf("LOAN_PERIOD_DAYS must be positive, got %d", c.Circulation.LoanPeriodDays)
	}
	if c.Server.LoginRate <= 0 || c.Server.LoginBurst <= 0 {
		return errors.New("LOGIN_RATE and LOGIN_BURST must be positive")
	}
	return nil
}

// OpenGateway opens the configured document store.
func (s StorageConfig) OpenGateway() (library.Gateway, error) {
	switch s.Driver {
	case DriverJSON:
		return library.NewFileGateway(s.DataDir)
	case DriverSQLite:
		return library.NewDatabase(filepath.Join(s.DataDir, "library.db"))
	case DriverBadger:
		return library.NewBadgerGateway(filepath.Join(s.DataDir, "badger"))
	case DriverMemory:
		return library.NewMemoryGateway(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", s.Driver)
	}
}

// ManagerOptions turns the circulation settings into service options.
func (c *Config) ManagerOptions() []library.Option {
	return []library.Option{
		library.WithFineIncrement(c.Circulation.FineIncrement),
		library.WithLoanPeriod(c.Circulation.LoanPeriod()),
	}
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

func getIntConfigValue(envKey string, defaultValue int) (int, error) {
	s := getConfigValue("", envKey, "")
	if s == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, s, err)
	}
	return n, nil
}

func getFloatConfigValue(envKey string, defaultValue float64) (float64, error) {
	s := getConfigValue("", envKey, "")
	if s == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, s, err)
	}
	return f, nil
}

func getBoolConfigValue(envKey string, defaultValue bool) (bool, error) {
	s := getConfigValue("", envKey, "")
	if s == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", envKey, s, err)
	}
	return b, nil
}

func getDurationConfigValue(envKey, defaultValue string) (time.Duration, error) {
	s := getConfigValue("", envKey, defaultValue)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, s, err)
	}
	return d, nil
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

// expandPath expands ~ and makes the path absolute.
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}
	return filepath.Clean(path), nil
}
