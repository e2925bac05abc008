// Package config handles configuration loading for the survey server.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server  ServerConfig `yaml:"server"`
	Surveys SurveyList   `yaml:"surveys"`
	Cache   CacheConfig  `yaml:"cache"`
	Render  RenderConfig `yaml:"render"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// SurveyConfig describes one survey store.
type SurveyConfig struct {
	ID      string `yaml:"id"`
	Path    string `yaml:"path"`
	Backend string `yaml:"backend"` // "zarr" (default) or "tiledb"
}

// SurveyList preserves the order surveys are listed in; the first one is the
// default survey.
type SurveyList []SurveyConfig

// CacheConfig contains caching settings.
type CacheConfig struct {
	ImageSizeMB     int `yaml:"image_size_mb"`
	ImageTTLMinutes int `yaml:"image_ttl_minutes"`
	QuerySize       int `yaml:"query_size"`
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	Scale           int     `yaml:"scale"`
	ClipPercentile  float64 `yaml:"clip_percentile"`
	DefaultColormap string  `yaml:"default_colormap"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	return &cfg, validate(&cfg)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Cache: CacheConfig{
			ImageSizeMB:     256,
			ImageTTLMinutes: 10,
			QuerySize:       1024,
		},
		Render: RenderConfig{
			Scale:           1,
			ClipPercentile:  99,
			DefaultColormap: "gray",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	for i := range cfg.Surveys {
		if cfg.Surveys[i].Backend == "" {
			cfg.Surveys[i].Backend = "zarr"
		}
	}
	if cfg.Cache.ImageSizeMB == 0 {
		cfg.Cache.ImageSizeMB = defaults.Cache.ImageSizeMB
	}
	if cfg.Cache.ImageTTLMinutes == 0 {
		cfg.Cache.ImageTTLMinutes = defaults.Cache.ImageTTLMinutes
	}
	if cfg.Cache.QuerySize == 0 {
		cfg.Cache.QuerySize = defaults.Cache.QuerySize
	}
	if cfg.Render.Scale == 0 {
		cfg.Render.Scale = defaults.Render.Scale
	}
	if cfg.Render.ClipPercentile == 0 {
		cfg.Render.ClipPercentile = defaults.Render.ClipPercentile
	}
	if cfg.Render.DefaultColormap == "" {
		cfg.Render.DefaultColormap = defaults.Render.DefaultColormap
	}
}

func validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Surveys))
	for _, s := range cfg.Surveys {
		if s.ID == "" {
			return fmt.Errorf("survey with path %q has no id", s.Path)
		}
		if s.Path == "" {
			return fmt.Errorf("survey %q has no path", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate survey id %q", s.ID)
		}
		seen[s.ID] = true
		switch s.Backend {
		case "zarr", "tiledb":
		default:
			return fmt.Errorf("survey %q has unknown backend %q", s.ID, s.Backend)
		}
	}
	return nil
}

// Default returns the default survey, which is the first one listed.
func (l SurveyList) Default() (SurveyConfig, bool) {
	if len(l) == 0 {
		return SurveyConfig{}, false
	}
	return l[0], true
}

// Get looks up a survey by id.
func (l SurveyList) Get(id string) (SurveyConfig, bool) {
	for _, s := range l {
		if s.ID == id {
			return s, true
		}
	}
	return SurveyConfig{}, false
}
