// Package config provides configuration types and defaults for weakcast.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/zjrosen/weakcast/internal/log"
	"github.com/zjrosen/weakcast/internal/tracing"
)

// Config holds all configuration options for weakcast.
type Config struct {
	Debug          bool           `mapstructure:"debug"`
	LogPath        string         `mapstructure:"log_path"`
	StrictElements bool           `mapstructure:"strict_elements"` // panic instead of logging when a value type is registered
	Stress         StressConfig   `mapstructure:"stress"`
	Hub            HubConfig      `mapstructure:"hub"`
	Watch          WatchConfig    `mapstructure:"watch"`
	Tracing        tracing.Config `mapstructure:"tracing"`
	Metrics        MetricsConfig  `mapstructure:"metrics"`
}

// StressConfig sizes the stress command.
type StressConfig struct {
	Observers int `mapstructure:"observers"`  // observers per topic
	Topics    int `mapstructure:"topics"`     // number of hub topics
	DropEvery int `mapstructure:"drop_every"` // release every k-th owner; 0 keeps all
}

// HubConfig controls topic expiry. It converts directly to multicast.HubConfig.
type HubConfig struct {
	IdleTTL         time.Duration `mapstructure:"idle_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// WatchConfig drives the watch view.
type WatchConfig struct {
	Observers int           `mapstructure:"observers"` // observers created at startup
	Tick      time.Duration `mapstructure:"tick"`      // automatic notify interval; 0 disables
}

// MetricsConfig controls Prometheus exposure.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // listen address for /metrics; empty disables
}

// Listener is told about every successfully reloaded configuration.
type Listener interface {
	ConfigChanged(cfg Config)
}

// DefaultTracesFilePath returns ~/.config/weakcast/traces/traces.jsonl, or ""
// when the home directory is unknown.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "weakcast", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tr := tracing.DefaultConfig()
	tr.FilePath = DefaultTracesFilePath()

	return Config{
		LogPath: "debug.log",
		Stress: StressConfig{
			Observers: 1000,
			Topics:    4,
			DropEvery: 3,
		},
		Hub: HubConfig{
			IdleTTL:         10 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Watch: WatchConfig{
			Observers: 5,
			Tick:      2 * time.Second,
		},
		Tracing: tr,
	}
}

// SetDefaults registers every default with v so partial files unmarshal
// onto a complete Config.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("debug", d.Debug)
	v.SetDefault("log_path", d.LogPath)
	v.SetDefault("strict_elements", d.StrictElements)
	v.SetDefault("stress.observers", d.Stress.Observers)
	v.SetDefault("stress.topics", d.Stress.Topics)
	v.SetDefault("stress.drop_every", d.Stress.DropEvery)
	v.SetDefault("hub.idle_ttl", d.Hub.IdleTTL)
	v.SetDefault("hub.cleanup_interval", d.Hub.CleanupInterval)
	v.SetDefault("watch.observers", d.Watch.Observers)
	v.SetDefault("watch.tick", d.Watch.Tick)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// Load reads configPath on top of the defaults and validates the result.
func Load(configPath string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config %s: %w", configPath, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

// Validate checks every section.
func Validate(cfg Config) error {
	if err := ValidateStress(cfg.Stress); err != nil {
		return err
	}
	if cfg.Hub.IdleTTL <= 0 {
		return fmt.Errorf("hub.idle_ttl must be positive, got %s", cfg.Hub.IdleTTL)
	}
	if cfg.Hub.CleanupInterval <= 0 {
		return fmt.Errorf("hub.cleanup_interval must be positive, got %s", cfg.Hub.CleanupInterval)
	}
	if cfg.Watch.Observers < 0 {
		return fmt.Errorf("watch.observers must not be negative, got %d", cfg.Watch.Observers)
	}
	if cfg.Watch.Tick < 0 {
		return fmt.Errorf("watch.tick must not be negative, got %s", cfg.Watch.Tick)
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateStress checks the stress section.
func ValidateStress(s StressConfig) error {
	if s.Observers < 0 {
		return fmt.Errorf("stress.observers must not be negative, got %d", s.Observers)
	}
	if s.Topics < 1 {
		return fmt.Errorf("stress.topics must be at least 1, got %d", s.Topics)
	}
	if s.DropEvery < 0 {
		return fmt.Errorf("stress.drop_every must not be negative, got %d", s.DropEvery)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Empty values fall back to defaults and are accepted.
func ValidateTracing(tr tracing.Config) error {
	if tr.SampleRate < 0.0 || tr.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tr.SampleRate)
	}

	switch tr.Exporter {
	case "", "none", "file", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tr.Exporter)
	}

	if !tr.Enabled {
		return nil
	}
	if tr.Exporter == "file" && tr.FilePath == "" {
		return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
	}
	if tr.Exporter == "otlp" && tr.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# weakcast configuration

# Write debug logs (same as --debug)
debug: false
log_path: debug.log

# Panic when a non-pointer value is registered as an observer instead of
# logging and ignoring it. Useful while developing observers.
strict_elements: false

# weakcast stress
stress:
  observers: 1000   # observers per topic
  topics: 4         # number of hub topics
  drop_every: 3     # release every k-th observer before notifying (0 keeps all)

# Topic registry used by stress
hub:
  idle_ttl: 10m          # topics untouched this long are closed
  cleanup_interval: 1m   # how often idle topics are swept

# weakcast watch
watch:
  observers: 5   # observers created at startup
  tick: 2s       # automatic notify interval (0s disables)

# Distributed tracing for notify passes
# tracing:
#   enabled: false                 # default: false
#   exporter: file                 # none, file, stdout, otlp (default: file)
#   file_path: ~/.config/weakcast/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # for the otlp exporter
#   sample_rate: 1.0               # 0.0-1.0 (default: 1.0)

# Prometheus endpoint for weakcast stress (empty disables)
# metrics:
#   addr: 127.0.0.1:9464
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
