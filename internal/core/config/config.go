package config

import (
	"time"

	"github.com/ImGenos/Dm-Placards/internal/infra/cache"
	"github.com/ImGenos/Dm-Placards/internal/infra/places"
)

// AppConfig represents the top-level configuration. Durations are kept as
// strings ("15s", "24h") because yaml.v2 has no native duration decoding.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Places  PlacesConfig  `yaml:"places"`
	Cache   CacheConfig   `yaml:"cache"`
	Network NetworkConfig `yaml:"network"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`

	// AllowedOrigins lists website origins permitted to call the
	// reviews endpoint cross-origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// PlacesConfig holds upstream Places API settings.
type PlacesConfig struct {
	APIKey   string `yaml:"api_key"`
	PlaceID  string `yaml:"place_id"`
	BaseURL  string `yaml:"base_url"`
	Language string `yaml:"language"`
	Timeout  string `yaml:"timeout"` // per-attempt, e.g. "15s"
}

// ClientConfig converts to the Places client configuration.
func (c PlacesConfig) ClientConfig() places.Config {
	return places.Config{
		APIKey:   c.APIKey,
		PlaceID:  c.PlaceID,
		BaseURL:  c.BaseURL,
		Language: c.Language,
		Timeout:  parseDuration(c.Timeout, places.DefaultTimeout),
	}
}

// CacheConfig selects and tunes the cache backend.
type CacheConfig struct {
	Backend    string            `yaml:"backend"` // memory, redis
	Redis      cache.RedisConfig `yaml:"redis"`
	TTL        string            `yaml:"ttl"` // e.g. "24h"
	MaxEntries int               `yaml:"max_entries"`
}

// TTLDuration returns the parsed entry TTL.
func (c CacheConfig) TTLDuration() time.Duration {
	return parseDuration(c.TTL, cache.DefaultTTL)
}

// NetworkConfig holds connectivity probe settings.
type NetworkConfig struct {
	ProbeURL     string `yaml:"probe_url"`
	ProbeTimeout string `yaml:"probe_timeout"` // e.g. "3s"
}

// ProbeTimeoutDuration returns the parsed probe timeout.
func (c NetworkConfig) ProbeTimeoutDuration() time.Duration {
	return parseDuration(c.ProbeTimeout, 0)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
