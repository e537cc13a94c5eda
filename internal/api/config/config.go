package config

import (
	"time"

	"golang-stock-recommender/pkg/config"
)

// Cache holds response cache settings for the read API.
type Cache struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// Config holds the full configuration for the read API service.
type Config struct {
	App      config.App      `mapstructure:"app"`
	Logger   config.Logger   `mapstructure:"logger"`
	Database config.Database `mapstructure:"database"`
	API      config.API      `mapstructure:"api"`
	Cache    Cache           `mapstructure:"cache"`
}

// Load loads the API configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}

	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = time.Minute
	}
	if cfg.Cache.CleanupInterval <= 0 {
		cfg.Cache.CleanupInterval = 5 * time.Minute
	}

	return &cfg, nil
}
