package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on images without zoneinfo

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig is the dashboard service configuration.
type AppConfig struct {
	// APIBaseURL is the forecast API serving /home and /download.
	APIBaseURL string `yaml:"api_base_url"`

	Port        string        `yaml:"port"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// RefreshInterval re-runs the last load periodically (0 = disabled).
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// Outbound limits for the forecast API.
	UpstreamRPS        float64 `yaml:"upstream_rps"`
	UpstreamBurst      int     `yaml:"upstream_burst"`
	UpstreamMaxRetries int     `yaml:"upstream_max_retries"`

	Cities      []string `yaml:"cities"`
	DefaultCity string   `yaml:"default_city"`

	MockDays int `yaml:"mock_days"`

	// Timezone used for hour and weekday extraction (IANA name).
	Timezone string         `yaml:"timezone"`
	Location *time.Location `yaml:"-"`

	NotificationHistory int `yaml:"notification_history"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *AppConfig {
	return &AppConfig{
		APIBaseURL:          "http://localhost:5000",
		Port:                "8080",
		HTTPTimeout:         10 * time.Second,
		UpstreamRPS:         5,
		UpstreamBurst:       5,
		Cities:              []string{"Najafgarh", "Dwarka", "Bahadurgarh", "Hauz Khas"},
		DefaultCity:         "Najafgarh",
		MockDays:            7,
		Timezone:            "UTC",
		NotificationHistory: 50,
	}
}

// Load reads configuration from an optional YAML file (CONFIG_FILE) and then
// the environment, which wins.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read CONFIG_FILE: %w", err)
		}
		if err := cfg.ApplyYAML(data); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyYAML overlays the fields present in data onto cfg. Durations use Go
// syntax ("10s", "15m").
func (cfg *AppConfig) ApplyYAML(data []byte) error {
	next := *cfg
	if err := yaml.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	*cfg = next
	return nil
}

func (cfg *AppConfig) applyEnv() error {
	cfg.APIBaseURL = getenvDefault("API_BASE_URL", cfg.APIBaseURL)
	cfg.Port = getenvDefault("PORT", cfg.Port)

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", cfg.RefreshInterval); err != nil {
		return err
	}

	if v := os.Getenv("UPSTREAM_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid UPSTREAM_RPS: %w", err)
		}
		cfg.UpstreamRPS = rps
	}
	cfg.UpstreamBurst = getenvInt("UPSTREAM_BURST", cfg.UpstreamBurst)
	cfg.UpstreamMaxRetries = getenvInt("UPSTREAM_MAX_RETRIES", cfg.UpstreamMaxRetries)

	if v := os.Getenv("DASHBOARD_CITIES"); v != "" {
		cfg.Cities = splitList(v)
	}
	cfg.DefaultCity = getenvDefault("DEFAULT_CITY", cfg.DefaultCity)
	cfg.MockDays = getenvInt("MOCK_DAYS", cfg.MockDays)
	cfg.Timezone = getenvDefault("TIMEZONE", cfg.Timezone)
	cfg.NotificationHistory = getenvInt("NOTIFICATION_HISTORY", cfg.NotificationHistory)
	return nil
}

// finish validates cfg and resolves derived fields.
func (cfg *AppConfig) finish() error {
	if cfg.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL must be set")
	}
	if len(cfg.Cities) == 0 {
		return fmt.Errorf("at least one city must be configured")
	}
	if cfg.DefaultCity == "" {
		cfg.DefaultCity = cfg.Cities[0]
	}
	if cfg.UpstreamMaxRetries < 0 {
		return fmt.Errorf("UPSTREAM_MAX_RETRIES must not be negative")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
