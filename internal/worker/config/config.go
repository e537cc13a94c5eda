package config

import (
	"time"

	"golang-stock-recommender/pkg/config"
)

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	APIKey              string  `mapstructure:"api_key"`
	BaseURL             string  `mapstructure:"base_url"`
	Model               string  `mapstructure:"model"`
	Temperature         float64 `mapstructure:"temperature"`
	MaxOutputTokens     int     `mapstructure:"max_output_tokens"`
	MaxRequestPerMinute int     `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int     `mapstructure:"max_token_per_minute"`
}

// AI holds configuration for AI providers.
type AI struct {
	Provider string `mapstructure:"provider"`
}

// Universe holds the candidate selection options, including the scoring
// heuristics. The defaults mirror long-standing production values; they are
// configurable rather than derived.
type Universe struct {
	Size                int      `mapstructure:"size"`
	OversampleFactor    int      `mapstructure:"oversample_factor"`
	MinTradingValue     float64  `mapstructure:"min_trading_value"`
	ExcludeNameTokens   []string `mapstructure:"exclude_name_tokens"`
	TradingValueDivisor float64  `mapstructure:"trading_value_divisor"`
	Ret1DWeight         float64  `mapstructure:"ret_1d_weight"`
}

// DataProvider holds the external feature provider settings.
type DataProvider struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	FeaturesPath    string        `mapstructure:"features_path"`
	TokenPath       string        `mapstructure:"token_path"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	TokenCacheKey   string        `mapstructure:"token_cache_key"`
	TokenStaleAfter time.Duration `mapstructure:"token_stale_after"`
}

// Run holds per-run coordination settings.
type Run struct {
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
	CronSchedule string        `mapstructure:"cron_schedule"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Config holds the full configuration for the worker service.
type Config struct {
	App          config.App      `mapstructure:"app"`
	Logger       config.Logger   `mapstructure:"logger"`
	Database     config.Database `mapstructure:"database"`
	Redis        config.Redis    `mapstructure:"redis"`
	AI           AI              `mapstructure:"ai"`
	Gemini       Gemini          `mapstructure:"gemini"`
	Universe     Universe        `mapstructure:"universe"`
	DataProvider DataProvider    `mapstructure:"data_provider"`
	Run          Run             `mapstructure:"run"`
	Telegram     Telegram        `mapstructure:"telegram"`
}

// Load loads the worker configuration from the given path and applies
// defaults for optional values.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}

	if cfg.Gemini.BaseURL == "" {
		cfg.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-2.0-flash"
	}
	if cfg.Gemini.MaxOutputTokens <= 0 {
		cfg.Gemini.MaxOutputTokens = 8192
	}
	if cfg.Universe.Size <= 0 {
		cfg.Universe.Size = 200
	}
	if cfg.Universe.OversampleFactor < 1 {
		cfg.Universe.OversampleFactor = 3
	}
	if cfg.Universe.TradingValueDivisor <= 0 {
		cfg.Universe.TradingValueDivisor = 1e9
	}
	if cfg.Universe.Ret1DWeight == 0 {
		cfg.Universe.Ret1DWeight = 10
	}
	if len(cfg.Universe.ExcludeNameTokens) == 0 {
		cfg.Universe.ExcludeNameTokens = DefaultExcludeNameTokens()
	}
	if cfg.DataProvider.FeaturesPath == "" {
		cfg.DataProvider.FeaturesPath = "/v1/stock_features_daily"
	}
	if cfg.DataProvider.TokenPath == "" {
		cfg.DataProvider.TokenPath = "/oauth2/token"
	}
	if cfg.DataProvider.Timeout <= 0 {
		cfg.DataProvider.Timeout = 30 * time.Second
	}
	if cfg.DataProvider.MaxRetries <= 0 {
		cfg.DataProvider.MaxRetries = 3
	}
	if cfg.DataProvider.TokenCacheKey == "" {
		cfg.DataProvider.TokenCacheKey = "prod"
	}
	if cfg.DataProvider.TokenStaleAfter <= 0 {
		cfg.DataProvider.TokenStaleAfter = 5 * time.Minute
	}
	if cfg.Run.LockTTL <= 0 {
		cfg.Run.LockTTL = 30 * time.Minute
	}

	return &cfg, nil
}

// DefaultExcludeNameTokens lists naming tokens of funds, ETFs and other
// non-single-stock instruments excluded from the universe.
func DefaultExcludeNameTokens() []string {
	return []string{
		"ETF", "ETN", "KODEX", "TIGER", "ARIRANG", "KBSTAR", "HANARO",
		"PLUS", "SOL", "ACE", "레버리지", "인버스", "리츠", "스팩", "선물",
	}
}
