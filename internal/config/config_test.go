package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.False(t, cfg.Debug)
	require.False(t, cfg.StrictElements)
	require.Equal(t, 1000, cfg.Stress.Observers)
	require.Equal(t, 4, cfg.Stress.Topics)
	require.Equal(t, 3, cfg.Stress.DropEvery)
	require.Equal(t, 10*time.Minute, cfg.Hub.IdleTTL)
	require.Equal(t, 5, cfg.Watch.Observers)
	require.Equal(t, 2*time.Second, cfg.Watch.Tick)
	require.False(t, cfg.Tracing.Enabled)
	require.Equal(t, "weakcast", cfg.Tracing.ServiceName)
	require.Empty(t, cfg.Metrics.Addr)
	require.NoError(t, Validate(cfg))
}

func TestDefaultConfigTemplate_MatchesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	cfg, err := Load(path)
	require.NoError(t, err)

	want := Defaults()
	require.Equal(t, want.Stress, cfg.Stress)
	require.Equal(t, want.Hub, cfg.Hub)
	require.Equal(t, want.Watch, cfg.Watch)
	require.Equal(t, want.Tracing, cfg.Tracing)
	require.Equal(t, want.LogPath, cfg.LogPath)
}

func TestWriteDefaultConfig_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".weakcast", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_PartialFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, `
strict_elements: true
stress:
  observers: 10
watch:
  tick: 500ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.StrictElements)
	require.Equal(t, 10, cfg.Stress.Observers)
	require.Equal(t, 4, cfg.Stress.Topics, "unset keys keep their default")
	require.Equal(t, 500*time.Millisecond, cfg.Watch.Tick)
	require.Equal(t, 5, cfg.Watch.Observers)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading config")
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, "stress:\n  topics: 0\n")

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "stress.topics must be at least 1")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative observers", func(c *Config) { c.Stress.Observers = -1 }, "stress.observers"},
		{"negative drop_every", func(c *Config) { c.Stress.DropEvery = -2 }, "stress.drop_every"},
		{"zero idle ttl", func(c *Config) { c.Hub.IdleTTL = 0 }, "hub.idle_ttl"},
		{"zero cleanup interval", func(c *Config) { c.Hub.CleanupInterval = 0 }, "hub.cleanup_interval"},
		{"negative watch observers", func(c *Config) { c.Watch.Observers = -1 }, "watch.observers"},
		{"negative tick", func(c *Config) { c.Watch.Tick = -time.Second }, "watch.tick"},
		{"sample rate", func(c *Config) { c.Tracing.SampleRate = 1.5 }, "tracing.sample_rate"},
		{"exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }, "tracing.exporter"},
		{"file path", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "file"
			c.Tracing.FilePath = ""
		}, "tracing.file_path"},
		{"otlp endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
			c.Tracing.OTLPEndpoint = ""
		}, "tracing.otlp_endpoint"},
		{"zero tick allowed", func(c *Config) { c.Watch.Tick = 0 }, ""},
		{"disabled tracing skips paths", func(c *Config) { c.Tracing.FilePath = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSetDefaults_GlobalViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	require.Equal(t, Defaults(), cfg)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
