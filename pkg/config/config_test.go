package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "release", cfg.GinMode)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.K8sTimeout)
	assert.True(t, cfg.ParallelQueries)
	assert.False(t, cfg.DegradeOnConfigError)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "0.0.0.0:8000", cfg.ListenAddr())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CLUSTER_METRICS_LOG_LEVEL", "debug")
	t.Setenv("CLUSTER_METRICS_K8S_TIMEOUT", "3s")
	t.Setenv("CLUSTER_METRICS_DEGRADE_ON_CONFIG_ERROR", "true")
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.K8sTimeout)
	assert.True(t, cfg.DegradeOnConfigError)
	assert.Equal(t, 9090, cfg.Port)
}

func TestLoadConfig_PrefixedPortWinsOverPlainPort(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("CLUSTER_METRICS_PORT", "7070")

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
}

func TestLoadConfig_PlainHostIgnored(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOST", "build-runner-42")
	t.Setenv("CLUSTER_METRICS_HOST", "")

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host)

	t.Setenv("CLUSTER_METRICS_HOST", "127.0.0.1")
	cfg, err = LoadConfig(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Host)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cm.yaml")
	content := []byte("port: 8181\nkube_context: staging\nallowed_origins:\n  - https://ops.example.com\nparallel_queries: false\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Port)
	assert.Equal(t, "staging", cfg.KubeContext)
	assert.Equal(t, []string{"https://ops.example.com"}, cfg.AllowedOrigins)
	assert.False(t, cfg.ParallelQueries)
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	_, err := LoadConfig(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestValidate(t *testing.T) {
	valid := func() AppConfig {
		return AppConfig{Port: 8000, LogFormat: "json", TracingSampleRate: 1}
	}

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"valid", func(*AppConfig) {}, ""},
		{"port zero", func(c *AppConfig) { c.Port = 0 }, "invalid port"},
		{"port too large", func(c *AppConfig) { c.Port = 70000 }, "invalid port"},
		{"bad log format", func(c *AppConfig) { c.LogFormat = "xml" }, "invalid log_format"},
		{"negative timeout", func(c *AppConfig) { c.K8sTimeout = -time.Second }, "invalid k8s_timeout"},
		{"negative rate", func(c *AppConfig) { c.K8sRateLimitPerSec = -1 }, "invalid k8s rate limit"},
		{"sample rate above one", func(c *AppConfig) { c.TracingSampleRate = 1.5 }, "invalid tracing_sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
