package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Feed    FeedConfig    `yaml:"feed" mapstructure:"feed"`
	Mirror  MirrorConfig  `yaml:"mirror" mapstructure:"mirror"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Ingest  IngestConfig  `yaml:"ingest" mapstructure:"ingest"`
	Region  RegionConfig  `yaml:"region" mapstructure:"region"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistent geocode cache backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FeedConfig configures the upstream incident feed client.
type FeedConfig struct {
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	PageSize int    `yaml:"page_size" mapstructure:"page_size"`
	MaxPages int    `yaml:"max_pages" mapstructure:"max_pages"`
}

// MirrorConfig lists the HTML mirror fallback pages, tried in order.
type MirrorConfig struct {
	URLs []string `yaml:"urls" mapstructure:"urls"`
}

// GeocodeConfig configures the geocode resolver and its providers.
type GeocodeConfig struct {
	CacheTTLSecs     int    `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	MaxPerRun        int    `yaml:"max_per_run" mapstructure:"max_per_run"`
	Concurrency      int    `yaml:"concurrency" mapstructure:"concurrency"`
	NominatimDelayMS int    `yaml:"nominatim_delay_ms" mapstructure:"nominatim_delay_ms"`
	CensusBaseURL    string `yaml:"census_base_url" mapstructure:"census_base_url"`
	AppleToken       string `yaml:"apple_token" mapstructure:"apple_token"`
}

// CacheTTL returns the geocode cache TTL as a duration.
func (c GeocodeConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSecs) * time.Second
}

// NominatimDelay returns the Nominatim inter-request delay as a duration.
func (c GeocodeConfig) NominatimDelay() time.Duration {
	return time.Duration(c.NominatimDelayMS) * time.Millisecond
}

// IngestConfig configures the ingestion orchestrator.
type IngestConfig struct {
	ResponseTTLSecs int `yaml:"response_ttl_secs" mapstructure:"response_ttl_secs"`
}

// ResponseTTL returns the response cache TTL as a duration.
func (c IngestConfig) ResponseTTL() time.Duration {
	return time.Duration(c.ResponseTTLSecs) * time.Second
}

// RegionConfig pins the covered dispatch region. The feed publishes naive
// local timestamps, so the timezone here decides what instant they mean.
type RegionConfig struct {
	County   string `yaml:"county" mapstructure:"county"`
	State    string `yaml:"state" mapstructure:"state"`
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// Location resolves the region timezone.
func (c RegionConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: load timezone %q", c.Timezone)
	}
	return loc, nil
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the configuration required by the given command mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "ingest", "serve":
		if c.Feed.BaseURL == "" {
			problems = append(problems, "feed.base_url is required")
		}
		if len(c.Mirror.URLs) == 0 {
			problems = append(problems, "mirror.urls must list at least one mirror")
		}
		if c.Feed.PageSize < 1 {
			problems = append(problems, "feed.page_size must be > 0")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "geocode", "cache":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Geocode.Concurrency < 1 || c.Geocode.Concurrency > 10 {
		problems = append(problems, "geocode.concurrency must be between 1 and 10")
	}
	if c.Geocode.MaxPerRun < 1 {
		problems = append(problems, "geocode.max_per_run must be > 0")
	}
	if c.Geocode.NominatimDelayMS < 0 {
		problems = append(problems, "geocode.nominatim_delay_ms must be >= 0")
	}
	if _, err := c.Region.Location(); err != nil {
		problems = append(problems, "region.timezone is not a valid IANA zone")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "dispatch.db")
	v.SetDefault("feed.base_url", "https://publicaccess.co.monterey.ca.us")
	v.SetDefault("feed.page_size", 100)
	v.SetDefault("feed.max_pages", 10)
	v.SetDefault("mirror.urls", []string{
		"https://publicaccess.co.monterey.ca.us/incidents",
		"https://sheriff.co.monterey.ca.us/calls-for-service",
	})
	v.SetDefault("geocode.cache_ttl_secs", 259200)
	v.SetDefault("geocode.max_per_run", 40)
	v.SetDefault("geocode.concurrency", 3)
	v.SetDefault("geocode.nominatim_delay_ms", 800)
	v.SetDefault("geocode.census_base_url", "https://geocoding.geo.census.gov")
	v.SetDefault("ingest.response_ttl_secs", 60)
	v.SetDefault("region.county", "Monterey County")
	v.SetDefault("region.state", "CA")
	v.SetDefault("region.timezone", "America/Los_Angeles")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
