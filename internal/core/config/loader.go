package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/ImGenos/Dm-Placards/internal/infra/cache"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills unset fields. The API key and place ID fall back to
// the environment; their absence is not an error because the service
// degrades to fallback content without them.
func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Places.APIKey == "" {
		cfg.Places.APIKey = os.Getenv("GOOGLE_PLACES_API_KEY")
	}
	if cfg.Places.PlaceID == "" {
		cfg.Places.PlaceID = os.Getenv("GOOGLE_PLACE_ID")
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = cache.DefaultMaxEntries
	}
}
