// Package config provides configuration management for the portfolio board.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "kis-board/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	KIS         KISConfig       `mapstructure:"kis"`
	Server      ServerConfig    `mapstructure:"server"`
	Store       StoreConfig     `mapstructure:"store"`
	Valuation   ValuationConfig `mapstructure:"valuation"`
	Log         LogConfig       `mapstructure:"log"`
	Credentials Credentials     `mapstructure:"-"` // Loaded separately
}

// KISConfig holds quote API settings.
type KISConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	RateLimit int           `mapstructure:"rate_limit"` // requests per second
	Timeout   time.Duration `mapstructure:"timeout"`

	// Consecutive upstream failures that open the circuit (0 disables)
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// ServerConfig holds HTTP/websocket server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DisplayHost     string        `mapstructure:"display_host"` // host name the page points its scripts at
	RefreshSchedule string        `mapstructure:"refresh_schedule"`
	PollInterval    time.Duration `mapstructure:"poll_interval"` // page refresh cadence
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// StoreConfig selects the portfolio backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // "json", "sqlite"
	Path    string `mapstructure:"path"`
}

// ValuationConfig tunes the valuation engine.
type ValuationConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	Timezone    string `mapstructure:"timezone"`
}

// LogConfig mirrors logging.LogConfig in file form.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// Credentials holds API credentials.
type Credentials struct {
	KIS KISCredentials `mapstructure:"kis"`
}

// KISCredentials holds the app key pair used for the client-credentials grant.
type KISCredentials struct {
	AppKey    string `mapstructure:"app_key"`
	AppSecret string `mapstructure:"app_secret"`
}

// Store backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/kis-board"
	}
	return filepath.Join(home, ".config", "kis-board")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
// Missing files are created from templates and defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env in the working directory, if any
	_ = godotenv.Load()

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("kis.base_url", "https://openapi.koreainvestment.com:9443")
	v.SetDefault("kis.rate_limit", 15)
	v.SetDefault("kis.timeout", "10s")
	v.SetDefault("kis.breaker_failures", 0)
	v.SetDefault("kis.breaker_cooldown", "30s")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.display_host", "localhost:8000")
	v.SetDefault("server.refresh_schedule", "@every 5s")
	v.SetDefault("server.poll_interval", "5s")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("store.backend", BackendJSON)
	v.SetDefault("store.path", "./items.json")

	v.SetDefault("valuation.concurrency", 1)
	v.SetDefault("valuation.timezone", "Asia/Seoul")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", false)
	v.SetDefault("log.file_path", filepath.Join(DefaultConfigDir(), "logs", "board.log"))
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplateCredentials(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("APP_KEY"); v != "" {
		cfg.Credentials.KIS.AppKey = v
	}
	if v := os.Getenv("APP_SECRET"); v != "" {
		cfg.Credentials.KIS.AppSecret = v
	}
	if v := os.Getenv("URL_BASE"); v != "" {
		cfg.KIS.BaseURL = v
	}
	if v := os.Getenv("BASE_HOST"); v != "" {
		cfg.Server.DisplayHost = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ITEMS_PATH"); v != "" {
		cfg.Store.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.KIS.BaseURL != "" {
		u, err := url.Parse(c.KIS.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: kis.base_url %q is not an absolute URL", apperrors.ErrConfigInvalid, c.KIS.BaseURL)
		}
	}
	if c.KIS.RateLimit < 0 {
		return fmt.Errorf("%w: kis.rate_limit must be non-negative", apperrors.ErrConfigInvalid)
	}
	if c.KIS.BreakerFailures < 0 {
		return fmt.Errorf("%w: kis.breaker_failures must be non-negative", apperrors.ErrConfigInvalid)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", apperrors.ErrConfigInvalid, c.Server.Port)
	}

	if c.Store.Backend != BackendJSON && c.Store.Backend != BackendSQLite {
		return fmt.Errorf("%w: invalid store backend: %s (must be 'json' or 'sqlite')", apperrors.ErrConfigInvalid, c.Store.Backend)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("%w: store.path is required", apperrors.ErrConfigInvalid)
	}

	if c.Valuation.Concurrency < 1 {
		return fmt.Errorf("%w: valuation.concurrency must be at least 1", apperrors.ErrConfigInvalid)
	}
	if _, err := time.LoadLocation(c.Valuation.Timezone); err != nil {
		return fmt.Errorf("%w: valuation.timezone: %v", apperrors.ErrConfigInvalid, err)
	}

	return nil
}

// HasCredentials reports whether an app key pair is configured.
func (c *Config) HasCredentials() bool {
	return c.Credentials.KIS.AppKey != "" && c.Credentials.KIS.AppSecret != ""
}

// ListenAddr returns the server listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
