package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Env                string        `mapstructure:"ENV"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	APIURL             string        `mapstructure:"API_URL"`
	APITimeout         time.Duration `mapstructure:"API_TIMEOUT"`
	GitHubAPIURL       string        `mapstructure:"GITHUB_API_URL"`
	GitHubToken        string        `mapstructure:"GITHUB_TOKEN"`
	GitHubRateLimitRPS float64       `mapstructure:"GITHUB_RATE_LIMIT_RPS"`
	GitHubCacheTTL     time.Duration `mapstructure:"GITHUB_CACHE_TTL"`
	StoragePath        string        `mapstructure:"STORAGE_PATH"`
	Timezone           string        `mapstructure:"TIMEZONE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_URL", "http://localhost:3333")
	v.SetDefault("API_TIMEOUT", "10s")
	v.SetDefault("GITHUB_API_URL", "https://api.github.com")
	v.SetDefault("GITHUB_RATE_LIMIT_RPS", 5)
	v.SetDefault("GITHUB_CACHE_TTL", "1m")
	v.SetDefault("STORAGE_PATH", defaultStoragePath())
	v.SetDefault("TIMEZONE", "Local")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("API_URL")
	v.BindEnv("API_TIMEOUT")
	v.BindEnv("GITHUB_API_URL")
	v.BindEnv("GITHUB_TOKEN")
	v.BindEnv("GITHUB_RATE_LIMIT_RPS")
	v.BindEnv("GITHUB_CACHE_TTL")
	v.BindEnv("STORAGE_PATH")
	v.BindEnv("TIMEZONE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".gobarber", "storage.json")
	}
	return filepath.Join(home, ".gobarber", "storage.json")
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Level returns the zerolog level named by LOG_LEVEL.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Location resolves TIMEZONE. Hour-of-day bucketing and calendar math use it.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Validate checks that the configuration can be used to reach both remote APIs.
func (c *Config) Validate() error {
	if err := validateBaseURL("API_URL", c.APIURL); err != nil {
		return err
	}
	if err := validateBaseURL("GITHUB_API_URL", c.GitHubAPIURL); err != nil {
		return err
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive, got %s", c.APITimeout)
	}
	if c.GitHubRateLimitRPS < 0 {
		return fmt.Errorf("GITHUB_RATE_LIMIT_RPS must not be negative, got %v", c.GitHubRateLimitRPS)
	}
	if c.GitHubCacheTTL < 0 {
		return fmt.Errorf("GITHUB_CACHE_TTL must not be negative, got %s", c.GitHubCacheTTL)
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("LOG_LEVEL is not a valid level: %w", err)
		}
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE %q is not a known zone: %w", c.Timezone, err)
	}
	if c.StoragePath == "" {
		return fmt.Errorf("STORAGE_PATH is required")
	}
	return nil
}

func validateBaseURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", key, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", key)
	}
	return nil
}
