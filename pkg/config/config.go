package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when read from the environment,
// e.g. CLUSTER_METRICS_PORT.
const EnvPrefix = "CLUSTER_METRICS"

// AppConfig holds the application configuration.
type AppConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	GinMode  string `mapstructure:"gin_mode"`
	LogLevel string `mapstructure:"log_level"`
	// LogFormat is "json" or "console".
	LogFormat string `mapstructure:"log_format"`
	// LogFile enables rotated file output when set; stderr otherwise.
	LogFile string `mapstructure:"log_file"`

	KubeconfigPath string `mapstructure:"kubeconfig"` // empty = KUBECONFIG / ~/.kube/config
	KubeContext    string `mapstructure:"kube_context"`

	K8sTimeout         time.Duration `mapstructure:"k8s_timeout"`            // per outbound call; 0 = request context only
	K8sRateLimitPerSec float64       `mapstructure:"k8s_rate_limit_per_sec"` // 0 = no limit
	K8sRateLimitBurst  int           `mapstructure:"k8s_rate_limit_burst"`
	ParallelQueries    bool          `mapstructure:"parallel_queries"`

	// DegradeOnConfigError falls back to mock mode when credentials exist
	// but cannot be loaded, instead of refusing to start.
	DegradeOnConfigError bool `mapstructure:"degrade_on_config_error"`

	AllowedOrigins []string `mapstructure:"allowed_origins"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	MetricsEnabled    bool    `mapstructure:"metrics_enabled"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate"`
}

// ListenAddr returns host:port for the HTTP server.
func (c *AppConfig) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SetDefaults registers every known key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8000)
	v.SetDefault("gin_mode", "release") // "debug" for local development
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "")
	v.SetDefault("kubeconfig", "")
	v.SetDefault("kube_context", "")
	v.SetDefault("k8s_timeout", 10*time.Second)
	v.SetDefault("k8s_rate_limit_per_sec", 0)
	v.SetDefault("k8s_rate_limit_burst", 0)
	v.SetDefault("parallel_queries", true)
	v.SetDefault("degrade_on_config_error", false)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("read_timeout", 15*time.Second)
	v.SetDefault("write_timeout", 30*time.Second)
	v.SetDefault("idle_timeout", 60*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("tracing_endpoint", "")
	v.SetDefault("tracing_sample_rate", 1.0)
}

// LoadConfig loads configuration from defaults, an optional config file,
// environment variables and any flags already bound to v. An empty
// configFile searches the usual locations and tolerates a missing file.
func LoadConfig(v *viper.Viper, configFile string) (*AppConfig, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/cluster-metrics/")
		v.AddConfigPath("$HOME/.cluster-metrics")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	// Container platforms commonly inject a plain PORT. Plain HOST is left
	// alone since shells often export it as the machine hostname.
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *AppConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log_format %q: must be json or console", c.LogFormat)
	}
	for name, d := range map[string]time.Duration{
		"k8s_timeout":      c.K8sTimeout,
		"read_timeout":     c.ReadTimeout,
		"write_timeout":    c.WriteTimeout,
		"idle_timeout":     c.IdleTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("invalid %s %s: must not be negative", name, d)
		}
	}
	if c.K8sRateLimitPerSec < 0 || c.K8sRateLimitBurst < 0 {
		return fmt.Errorf("invalid k8s rate limit %.2f/s burst %d: must not be negative", c.K8sRateLimitPerSec, c.K8sRateLimitBurst)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("invalid tracing_sample_rate %.2f: must be within [0, 1]", c.TracingSampleRate)
	}
	return nil
}
