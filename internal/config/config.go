// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Acquire  AcquireConfig  `mapstructure:"acquire"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Category CategoryConfig `mapstructure:"category"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// HTTPConfig configures outbound HTTP behavior for discovery and downloads.
type HTTPConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// AcquireConfig governs the concurrent download stage. Workers is a
// politeness bound on the source server, not a throughput knob.
type AcquireConfig struct {
	Workers      int `mapstructure:"workers"`
	MaxDownloads int `mapstructure:"max_downloads"`
	QueueDepth   int `mapstructure:"queue_depth"`
}

// StorageConfig sets local directories for downloads and result artifacts.
type StorageConfig struct {
	DownloadsDir string `mapstructure:"downloads_dir"`
	ResultsDir   string `mapstructure:"results_dir"`
}

// CategoryConfig holds the fixed target page and filename prefix for the
// specialized political science source.
type CategoryConfig struct {
	PoliSciTargetURL string `mapstructure:"polisci_target_url"`
	PoliSciPrefix    string `mapstructure:"polisci_prefix"`
}

// LLMConfig selects and configures the primary metadata extractor.
type LLMConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	ServerURL string `mapstructure:"server_url"`
}

// CatalogConfig points at the external availability catalog API.
type CatalogConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SYLLABUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("http.user_agent", "syllabus-analyzer/1.0")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("acquire.workers", 3)
	v.SetDefault("acquire.max_downloads", 5)
	v.SetDefault("acquire.queue_depth", 64)
	v.SetDefault("storage.downloads_dir", "data/downloads")
	v.SetDefault("storage.results_dir", "data/results")
	v.SetDefault("category.polisci_target_url", "https://polisci.ufl.edu/dept-resources/syllabi/fall-2025/")
	v.SetDefault("category.polisci_prefix", "polisci_")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "o4-mini")
	v.SetDefault("catalog.timeout_seconds", 20)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Acquire.Workers <= 0 {
		return fmt.Errorf("acquire.workers must be > 0")
	}
	if c.Acquire.MaxDownloads <= 0 {
		return fmt.Errorf("acquire.max_downloads must be > 0")
	}
	if c.Storage.DownloadsDir == "" || c.Storage.ResultsDir == "" {
		return fmt.Errorf("storage directories must be set")
	}
	if c.Category.PoliSciTargetURL == "" {
		return fmt.Errorf("category.polisci_target_url must be set")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout config into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// CatalogTimeout converts the catalog timeout config into a duration.
func (c Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.TimeoutSeconds) * time.Second
}
