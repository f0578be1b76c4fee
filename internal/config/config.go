package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	ForecastURL     string
	GeocodingURL    string
	ForecastTimeout time.Duration
	SearchLanguage  string

	RequestTimeout time.Duration
	CacheTTL       time.Duration
	CacheBackend   string // "in_memory" or "memcached"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RefreshInterval time.Duration
	WarmFavorites   bool

	StatePath string

	GeolocationURL     string
	GeolocationTimeout time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	OpenMeteo struct {
		ForecastURL  string `yaml:"forecast_url"`
		GeocodingURL string `yaml:"geocoding_url"`
		Timeout      string `yaml:"timeout"`
		Language     string `yaml:"language"`
	} `yaml:"open_meteo"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Refresh struct {
		Interval      string `yaml:"interval"`
		WarmFavorites *bool  `yaml:"warm_favorites"`
	} `yaml:"refresh"`

	State struct {
		Path string `yaml:"path"`
	} `yaml:"state"`

	Geolocation struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"geolocation"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev). The
// upstream APIs are keyless, so a missing file is not an error; every field
// has a working default. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	var fc fileConfig
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.ForecastURL = fc.OpenMeteo.ForecastURL
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = "https://api.open-meteo.com/v1/forecast"
	}
	cfg.GeocodingURL = fc.OpenMeteo.GeocodingURL
	if cfg.GeocodingURL == "" {
		cfg.GeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	}
	cfg.ForecastTimeout = parseDuration(fc.OpenMeteo.Timeout, 10*time.Second)
	cfg.SearchLanguage = strings.TrimSpace(fc.OpenMeteo.Language)
	if cfg.SearchLanguage == "" {
		cfg.SearchLanguage = "es"
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 15*time.Minute)
	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RefreshInterval = parseDuration(fc.Refresh.Interval, 15*time.Minute)
	cfg.WarmFavorites = true
	if fc.Refresh.WarmFavorites != nil {
		cfg.WarmFavorites = *fc.Refresh.WarmFavorites
	}

	cfg.StatePath = fc.State.Path
	if cfg.StatePath == "" {
		cfg.StatePath = filepath.Join("data", "state.json")
	}

	cfg.GeolocationURL = fc.Geolocation.URL
	if cfg.GeolocationURL == "" {
		cfg.GeolocationURL = "https://ipapi.co/json/"
	}
	cfg.GeolocationTimeout = parseDuration(fc.Geolocation.Timeout, 5*time.Second)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal on empty
// string, parse error, or a non-positive result.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values. Ensures
// RequestTimeout leaves room for the upstream call and CacheBackend is a
// known value. Auto-adjusts RequestTimeout if needed.
func validate(cfg *Config) error {
	if cfg.RequestTimeout <= cfg.ForecastTimeout {
		cfg.RequestTimeout = cfg.ForecastTimeout + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	return nil
}
