package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer func() { _ = os.Chdir(origWd) }()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.ForecastURL != "https://api.open-meteo.com/v1/forecast" {
		t.Errorf("ForecastURL = %q", cfg.ForecastURL)
	}
	if cfg.GeocodingURL != "https://geocoding-api.open-meteo.com/v1/search" {
		t.Errorf("GeocodingURL = %q", cfg.GeocodingURL)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("CacheTTL = %v, want 15m", cfg.CacheTTL)
	}
	if cfg.RefreshInterval != 15*time.Minute {
		t.Errorf("RefreshInterval = %v, want 15m", cfg.RefreshInterval)
	}
	if cfg.CacheBackend != "in_memory" {
		t.Errorf("CacheBackend = %q, want in_memory", cfg.CacheBackend)
	}
	if cfg.SearchLanguage != "es" {
		t.Errorf("SearchLanguage = %q, want es", cfg.SearchLanguage)
	}
	if cfg.GeolocationTimeout != 5*time.Second {
		t.Errorf("GeolocationTimeout = %v, want 5s", cfg.GeolocationTimeout)
	}
	if cfg.StatePath != filepath.Join("data", "state.json") {
		t.Errorf("StatePath = %q", cfg.StatePath)
	}
	if !cfg.WarmFavorites {
		t.Error("WarmFavorites = false, want true by default")
	}
}

func TestLoad_FromFile(t *testing.T) {
	yamlContent := `
server:
  port: "9090"
open_meteo:
  forecast_url: "https://forecast.example.com"
  timeout: "3s"
  language: "en"
cache:
  backend: "memcached"
  ttl: "10m"
  memcached:
    addrs: "cache1:11211,cache2:11211"
    timeout: "250ms"
    max_idle_conns: 8
refresh:
  interval: "5m"
  warm_favorites: false
state:
  path: "/var/lib/weathernow/state.json"
reliability:
  rate_limit_rps: 20
  rate_limit_burst: 40
shutdown:
  timeout: "10s"
`
	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeEnvFile(t, dir, yamlContent)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer func() { _ = os.Chdir(origWd) }()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.ForecastURL != "https://forecast.example.com" {
		t.Errorf("ForecastURL = %q", cfg.ForecastURL)
	}
	if cfg.ForecastTimeout != 3*time.Second {
		t.Errorf("ForecastTimeout = %v, want 3s", cfg.ForecastTimeout)
	}
	if cfg.SearchLanguage != "en" {
		t.Errorf("SearchLanguage = %q, want en", cfg.SearchLanguage)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want memcached", cfg.CacheBackend)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v, want 10m", cfg.CacheTTL)
	}
	if cfg.MemcachedAddrs != "cache1:11211,cache2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
	if cfg.MemcachedMaxIdleConns != 8 {
		t.Errorf("MemcachedMaxIdleConns = %d, want 8", cfg.MemcachedMaxIdleConns)
	}
	if cfg.RefreshInterval != 5*time.Minute {
		t.Errorf("RefreshInterval = %v, want 5m", cfg.RefreshInterval)
	}
	if cfg.WarmFavorites {
		t.Error("WarmFavorites = true, want false from file")
	}
	if cfg.StatePath != "/var/lib/weathernow/state.json" {
		t.Errorf("StatePath = %q", cfg.StatePath)
	}
	if cfg.RateLimitRPS != 20 || cfg.RateLimitBurst != 40 {
		t.Errorf("rate limit = %d/%d, want 20/40", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	yamlContent := `
cache:
  ttl: "invalid"
refresh:
  interval: "-5m"
`
	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeEnvFile(t, dir, yamlContent)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer func() { _ = os.Chdir(origWd) }()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("CacheTTL = %v, want 15m default", cfg.CacheTTL)
	}
	if cfg.RefreshInterval != 15*time.Minute {
		t.Errorf("RefreshInterval = %v, want 15m default", cfg.RefreshInterval)
	}
}

func TestLoad_InvalidConfigYAML(t *testing.T) {
	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeEnvFile(t, dir, "not: valid: yaml: [[[")
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer func() { _ = os.Chdir(origWd) }()

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for invalid config YAML, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Errorf("Load() error = %v, want parse message", err)
	}
}

func TestLoad_InvalidCacheBackend(t *testing.T) {
	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeEnvFile(t, dir, "cache:\n  backend: \"redis\"\n")
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer func() { _ = os.Chdir(origWd) }()

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for unknown cache backend, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "cache.backend") {
		t.Errorf("Load() error = %v, want cache.backend message", err)
	}
}

func TestLoad_EnvOverridesBackend(t *testing.T) {
	savedBackend := os.Getenv("CACHE_BACKEND")
	os.Setenv("CACHE_BACKEND", "memcached")
	defer func() {
		if savedBackend == "" {
			os.Unsetenv("CACHE_BACKEND")
		} else {
			os.Setenv("CACHE_BACKEND", savedBackend)
		}
	}()

	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeEnvFile(t, dir, "cache:\n  backend: \"in_memory\"\n")
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer func() { _ = os.Chdir(origWd) }()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want env override memcached", cfg.CacheBackend)
	}
}

func TestLoad_RequestTimeoutAdjusted(t *testing.T) {
	yamlContent := `
open_meteo:
  timeout: "10s"
request:
  timeout: "2s"
`
	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeEnvFile(t, dir, yamlContent)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer func() { _ = os.Chdir(origWd) }()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout != 11*time.Second {
		t.Errorf("RequestTimeout = %v, want auto-adjusted 11s", cfg.RequestTimeout)
	}
}

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "dev.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}
