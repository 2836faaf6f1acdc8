// Package kube decides, once per process, how the service reaches the
// control plane and builds the client handles every request reads from.
package kube

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Mode is the operating mode chosen at startup.
type Mode string

const (
	// ModeKubernetes means in-cluster service account credentials resolved.
	ModeKubernetes Mode = "kubernetes"
	// ModeLocal means a local kubeconfig context resolved.
	ModeLocal Mode = "local"
	// ModeMock means no credentials resolved; no API handles exist.
	ModeMock Mode = "mock"
)

// Clients bundles the API handles built from one REST config.
type Clients struct {
	Kube    kubernetes.Interface
	Dynamic dynamic.Interface
	Metrics metricsclient.Interface
}

// ClientFactory builds Clients from a resolved REST config.
type ClientFactory func(*rest.Config) (*Clients, error)

// NewClients is the default ClientFactory.
func NewClients(cfg *rest.Config) (*Clients, error) {
	kc, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	dc, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	mc, err := metricsclient.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics client: %w", err)
	}
	return &Clients{Kube: kc, Dynamic: dc, Metrics: mc}, nil
}

// Resolution is the immutable outcome of Resolve. It is shared read-only
// by all request handlers.
type Resolution struct {
	Mode Mode
	// Host is the API server URL; empty in mock mode.
	Host    string
	clients *Clients
}

// NewResolution assembles a Resolution directly, mainly for tests.
// clients must be nil for ModeMock.
func NewResolution(mode Mode, host string, clients *Clients) *Resolution {
	return &Resolution{Mode: mode, Host: host, clients: clients}
}

// Live reports whether API handles are available.
func (r *Resolution) Live() bool {
	return r != nil && r.clients != nil
}

// KubeClient returns the core API handle, or nil in mock mode.
func (r *Resolution) KubeClient() kubernetes.Interface {
	if !r.Live() {
		return nil
	}
	return r.clients.Kube
}

// DynamicClient returns the dynamic handle, or nil in mock mode.
func (r *Resolution) DynamicClient() dynamic.Interface {
	if !r.Live() {
		return nil
	}
	return r.clients.Dynamic
}

// MetricsClient returns the typed metrics.k8s.io handle, or nil in mock mode.
func (r *Resolution) MetricsClient() metricsclient.Interface {
	if !r.Live() {
		return nil
	}
	return r.clients.Metrics
}

// ResolveError is a credential tier that exists but could not be used.
type ResolveError struct {
	Tier Mode
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s credentials: %v", e.Tier, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Options tunes Resolve.
type Options struct {
	UserAgent string
	// DegradeOnError turns a ResolveError into mock mode instead of failing.
	DegradeOnError bool
	// Factory defaults to NewClients.
	Factory ClientFactory
	Logger  *zap.Logger
}

// Resolve tries in-cluster credentials, then the local kubeconfig, then
// settles on mock mode. A lower tier is only consulted when the tier above
// reported its configuration as absent.
func Resolve(src ConfigSource, opts Options) (*Resolution, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := opts.Factory
	if factory == nil {
		factory = NewClients
	}

	tiers := []struct {
		mode Mode
		load func() (*rest.Config, error)
	}{
		{ModeKubernetes, src.InCluster},
		{ModeLocal, src.Kubeconfig},
	}

	for _, tier := range tiers {
		cfg, err := tier.load()
		if err != nil {
			if IsConfigAbsent(err) {
				logger.Debug("credentials not present", zap.String("tier", string(tier.mode)), zap.Error(err))
				continue
			}
			return degrade(&ResolveError{Tier: tier.mode, Err: err}, opts.DegradeOnError, logger)
		}

		instrument(cfg, opts.UserAgent)
		clients, err := factory(cfg)
		if err != nil {
			return degrade(&ResolveError{Tier: tier.mode, Err: err}, opts.DegradeOnError, logger)
		}

		logger.Info("resolved cluster credentials", zap.String("mode", string(tier.mode)), zap.String("host", cfg.Host))
		return &Resolution{Mode: tier.mode, Host: cfg.Host, clients: clients}, nil
	}

	logger.Info("no cluster credentials found, serving mock data", zap.String("mode", string(ModeMock)))
	return &Resolution{Mode: ModeMock}, nil
}

func degrade(err *ResolveError, allowed bool, logger *zap.Logger) (*Resolution, error) {
	if !allowed {
		return nil, err
	}
	logger.Error("credentials present but unusable, degrading to mock mode",
		zap.String("tier", string(err.Tier)), zap.Error(err.Err))
	return &Resolution{Mode: ModeMock}, nil
}

// instrument stamps the user agent and traces every outbound API call.
func instrument(cfg *rest.Config, userAgent string) {
	if userAgent != "" {
		cfg.UserAgent = userAgent
	}
	cfg.Wrap(func(rt http.RoundTripper) http.RoundTripper {
		return otelhttp.NewTransport(rt)
	})
}
