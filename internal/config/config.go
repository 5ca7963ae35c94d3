package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	Log    LogConfig    `yaml:"log"`
	Site   SiteConfig   `yaml:"site"`
}

type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	RequestTimeout string `yaml:"request_timeout"`
}

// Timeout parses the request timeout, e.g. "30s".
func (c ServerConfig) Timeout() (time.Duration, error) {
	timeout, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid request timeout %q: %w", c.RequestTimeout, err)
	}
	return timeout, nil
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// SiteConfig carries site-wide display settings. Timezone is the IANA name
// used to bucket report entries into local days; storage stays UTC.
type SiteConfig struct {
	Timezone string `yaml:"timezone"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			RequestTimeout: "30s",
		},
		DB: DBConfig{
			Path: "timecard.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Site: SiteConfig{
			Timezone: "UTC",
		},
	}

	if path := os.Getenv("TIMECARD_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("TIMECARD_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("TIMECARD_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TIMECARD_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if timeoutStr := os.Getenv("TIMECARD_REQUEST_TIMEOUT"); timeoutStr != "" {
		cfg.Server.RequestTimeout = timeoutStr
	}
	if dbPath := os.Getenv("TIMECARD_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("TIMECARD_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if tz := os.Getenv("TIMECARD_SITE_TIMEZONE"); tz != "" {
		cfg.Site.Timezone = tz
	}

	return cfg, nil
}

// Location resolves the configured timezone.
func (c SiteConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid site timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
