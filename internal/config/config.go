package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Places       PlacesConfig       `yaml:"places" mapstructure:"places"`
	CustomSearch CustomSearchConfig `yaml:"customsearch" mapstructure:"customsearch"`
	Crawl        CrawlConfig        `yaml:"crawl" mapstructure:"crawl"`
	Ranking      RankingConfig      `yaml:"ranking" mapstructure:"ranking"`
	Refresh      RefreshConfig      `yaml:"refresh" mapstructure:"refresh"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PlacesConfig holds Google Places API settings.
type PlacesConfig struct {
	Key              string  `yaml:"key" mapstructure:"key"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	GeocodingBaseURL string  `yaml:"geocoding_base_url" mapstructure:"geocoding_base_url"`
	RequestsPerSec   float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	PageTokenDelayMS int     `yaml:"page_token_delay_ms" mapstructure:"page_token_delay_ms"`
	PhotoMaxWidth    int     `yaml:"photo_max_width" mapstructure:"photo_max_width"`
}

// CustomSearchConfig holds Google Custom Search API settings.
type CustomSearchConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	EngineID       string  `yaml:"engine_id" mapstructure:"engine_id"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// CrawlConfig configures the acquisition crawler.
type CrawlConfig struct {
	MaxPages          int    `yaml:"max_pages" mapstructure:"max_pages"`
	MaxPhotos         int    `yaml:"max_photos" mapstructure:"max_photos"`
	TargetCountry     string `yaml:"target_country" mapstructure:"target_country"`
	CountyConcurrency int    `yaml:"county_concurrency" mapstructure:"county_concurrency"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RankingConfig configures the scoring phase.
type RankingConfig struct {
	EngagementFullClicks int `yaml:"engagement_full_clicks" mapstructure:"engagement_full_clicks"`
	WindowDays           int `yaml:"window_days" mapstructure:"window_days"`
}

// RefreshConfig configures the rating refresh job.
type RefreshConfig struct {
	Limit int `yaml:"limit" mapstructure:"limit"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DISPENSARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Keys and URLs default to empty so the DISPENSARY_* env
	// vars bind even without a config file.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("places.key", "")
	v.SetDefault("customsearch.key", "")
	v.SetDefault("customsearch.engine_id", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("places.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("places.geocoding_base_url", "https://maps.googleapis.com/maps/api/geocode")
	v.SetDefault("places.requests_per_sec", 1.0)
	v.SetDefault("places.page_token_delay_ms", 2000)
	v.SetDefault("places.photo_max_width", 400)
	v.SetDefault("customsearch.base_url", "https://www.googleapis.com/customsearch/v1")
	v.SetDefault("customsearch.requests_per_sec", 2.0)
	v.SetDefault("crawl.max_pages", 3)
	v.SetDefault("crawl.max_photos", 5)
	v.SetDefault("crawl.target_country", "United States")
	v.SetDefault("crawl.county_concurrency", 1)
	v.SetDefault("crawl.timeout_secs", 30)
	v.SetDefault("ranking.engagement_full_clicks", 10)
	v.SetDefault("ranking.window_days", 30)
	v.SetDefault("refresh.limit", 100)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
