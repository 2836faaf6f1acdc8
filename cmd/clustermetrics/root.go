package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"cluster-metrics-api/pkg/config"
	"cluster-metrics-api/pkg/kube"
	"cluster-metrics-api/pkg/logging"
	"cluster-metrics-api/pkg/metrics"
	"cluster-metrics-api/pkg/observability"
)

// app carries state shared by the subcommands once PersistentPreRunE ran.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.AppConfig
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "clustermetrics",
		Short: "Serve Kubernetes cluster counts and node usage",
		Long: `clustermetrics - read-only cluster metrics API

Resolves credentials once at startup (in-cluster, then kubeconfig, then mock)
and serves:

  GET /                     node, pod, namespace and service counts
  GET /node-usage           per-node cpu/memory from metrics.k8s.io
  GET /node-usage/summary   usage against allocatable capacity
  GET /ui                   auto-refreshing dashboard
  GET /health               liveness

Environment Variables:
  CLUSTER_METRICS_<KEY>   Any config key, e.g. CLUSTER_METRICS_PORT=9000
  KUBECONFIG              Path to kubeconfig file (default: ~/.kube/config)
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: config.yaml in /etc/cluster-metrics, $HOME/.cluster-metrics or .)")
	flags.String("host", "0.0.0.0", "listen host")
	flags.Int("port", 8000, "listen port")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "json", "log format: json or console")
	flags.String("kubeconfig", "", "path to kubeconfig (default: $KUBECONFIG or ~/.kube/config)")
	flags.String("context", "", "kubeconfig context to use")
	flags.Bool("degrade-on-config-error", false, "serve mock data when credentials exist but cannot be loaded")
	bindFlags(a.v, flags, map[string]string{
		"host":                    "host",
		"port":                    "port",
		"log_level":               "log-level",
		"log_format":              "log-format",
		"kubeconfig":              "kubeconfig",
		"kube_context":            "context",
		"degrade_on_config_error": "degrade-on-config-error",
	})

	root.AddCommand(newServeCmd(a), newSnapshotCmd(a), newVersionCmd())
	return root
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func (a *app) init() error {
	cfg, err := config.LoadConfig(a.v, a.configFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

func (a *app) resolve() (*kube.Resolution, error) {
	return kube.Resolve(
		kube.DefaultSource{KubeconfigPath: a.cfg.KubeconfigPath, Context: a.cfg.KubeContext},
		kube.Options{
			UserAgent:      serviceName + "/" + Version,
			DegradeOnError: a.cfg.DegradeOnConfigError,
			Logger:         a.logger,
		},
	)
}

func (a *app) newService(res *kube.Resolution) *metrics.Service {
	opts := []metrics.Option{
		metrics.WithTimeout(a.cfg.K8sTimeout),
		metrics.WithRateLimit(a.cfg.K8sRateLimitPerSec, a.cfg.K8sRateLimitBurst),
		metrics.WithParallelQueries(a.cfg.ParallelQueries),
		metrics.WithLogger(a.logger),
	}
	if a.cfg.MetricsEnabled {
		opts = append(opts, metrics.WithRecorder(observability.QueryRecorder{}))
	}
	return metrics.NewService(res.KubeClient(), res.DynamicClient(), res.MetricsClient(), opts...)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "clustermetrics version %s (built %s)\n", Version, BuildDate)
		},
	}
}
