package metrics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

// QueryRecorder observes every outbound API call.
type QueryRecorder interface {
	ObserveQuery(query, outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveQuery(string, string, time.Duration) {}

// Service handles fetching and reducing cluster state from the control plane.
// A nil client means the corresponding data is unavailable (mock mode).
type Service struct {
	kubeClient    kubernetes.Interface
	dynamicClient dynamic.Interface
	metricsClient metricsclient.Interface

	timeout  time.Duration
	limiter  *rate.Limiter
	parallel bool
	now      func() time.Time
	logger   *zap.Logger
	recorder QueryRecorder
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds each outbound call. Zero leaves only the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithRateLimit installs a token bucket shared by all outbound calls.
// A non-positive rate disables limiting.
func WithRateLimit(perSec float64, burst int) Option {
	return func(s *Service) {
		if perSec <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithParallelQueries issues the cluster count queries concurrently.
func WithParallelQueries(enabled bool) Option {
	return func(s *Service) { s.parallel = enabled }
}

// WithClock replaces time.Now for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRecorder sets the query recorder.
func WithRecorder(r QueryRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// NewService creates a new metrics service.
func NewService(kc kubernetes.Interface, dc dynamic.Interface, mc metricsclient.Interface, opts ...Option) *Service {
	s := &Service{
		kubeClient:    kc,
		dynamicClient: dc,
		metricsClient: mc,
		parallel:      true,
		now:           time.Now,
		logger:        zap.NewNop(),
		recorder:      nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if mc == nil {
		s.logger.Info("metrics client is nil, node usage features will be unavailable")
	}
	return s
}

// call runs one outbound query under the limiter and per-call timeout,
// and wraps any error with the query name.
func (s *Service) call(ctx context.Context, query string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := func() error {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		return fn(ctx)
	}()

	outcome := "ok"
	if err != nil {
		outcome = string(Classify(err).Kind)
	}
	s.recorder.ObserveQuery(query, outcome, time.Since(start))
	if err != nil {
		s.logger.Debug("query failed", zap.String("query", query), zap.Duration("took", time.Since(start)), zap.Error(err))
		return fmt.Errorf("%s: %w", query, err)
	}
	return nil
}

type countQuery struct {
	name string
	dst  *int
	list func(ctx context.Context) (int, error)
}

// ClusterSnapshot counts nodes, pods, namespaces and services. Without a
// kube client it returns an all-zero snapshot and makes no call.
func (s *Service) ClusterSnapshot(ctx context.Context) (*ClusterSnapshot, error) {
	snap := &ClusterSnapshot{}
	if s.kubeClient == nil {
		snap.Timestamp = s.now().UTC()
		return snap, nil
	}

	core := s.kubeClient.CoreV1()
	queries := []countQuery{
		{"list nodes", &snap.Nodes, func(ctx context.Context) (int, error) {
			l, err := core.Nodes().List(ctx, metav1.ListOptions{})
			if err != nil {
				return 0, err
			}
			return len(l.Items), nil
		}},
		{"list pods", &snap.Pods, func(ctx context.Context) (int, error) {
			l, err := core.Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
			if err != nil {
				return 0, err
			}
			return len(l.Items), nil
		}},
		{"list namespaces", &snap.Namespaces, func(ctx context.Context) (int, error) {
			l, err := core.Namespaces().List(ctx, metav1.ListOptions{})
			if err != nil {
				return 0, err
			}
			return len(l.Items), nil
		}},
		{"list services", &snap.Services, func(ctx context.Context) (int, error) {
			l, err := core.Services(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
			if err != nil {
				return 0, err
			}
			return len(l.Items), nil
		}},
	}

	run := func(ctx context.Context, q countQuery) error {
		return s.call(ctx, q.name, func(ctx context.Context) error {
			n, err := q.list(ctx)
			if err != nil {
				return err
			}
			*q.dst = n
			return nil
		})
	}

	if s.parallel {
		g, gctx := errgroup.WithContext(ctx)
		for _, q := range queries {
			g.Go(func() error { return run(gctx, q) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for _, q := range queries {
			if err := run(ctx, q); err != nil {
				return nil, err
			}
		}
	}

	snap.Timestamp = s.now().UTC()
	return snap, nil
}

// UsageSummary joins node metrics with node allocatable capacity and
// computes per-node and cluster-wide utilization.
func (s *Service) UsageSummary(ctx context.Context) (*ClusterMetrics, error) {
	if s.metricsClient == nil || s.kubeClient == nil {
		return nil, ErrMetricsUnavailable
	}
	startTime := time.Now()

	var usage map[string]nodeResources
	err := s.call(ctx, "list node metrics", func(ctx context.Context) error {
		nodeMetricsList, err := s.metricsClient.MetricsV1beta1().NodeMetricses().List(ctx, metav1.ListOptions{})
		if err != nil {
			return err
		}
		usage = make(map[string]nodeResources, len(nodeMetricsList.Items))
		for _, nm := range nodeMetricsList.Items {
			usage[nm.Name] = nodeResources{nm.Usage["cpu"], nm.Usage["memory"]}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var nodeNames []string
	var allocatable []nodeResources
	err = s.call(ctx, "list nodes", func(ctx context.Context) error {
		nodes, err := s.kubeClient.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
		if err != nil {
			return err
		}
		for _, n := range nodes.Items {
			nodeNames = append(nodeNames, n.Name)
			allocatable = append(allocatable, nodeResources{n.Status.Allocatable["cpu"], n.Status.Allocatable["memory"]})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	detailedNodeMetrics := make([]NodeMetrics, 0, len(nodeNames))
	var totalCPUUsageMilliCores, totalCPUCapacityMilliCores int64
	var totalMemUsageBytes, totalMemCapacityBytes int64

	for i, name := range nodeNames {
		u, found := usage[name]
		if !found {
			s.logger.Warn("metrics not found for node", zap.String("node", name))
		}

		nodeCPUUsageMilli := u.cpu.MilliValue()
		nodeMemUsageBytes := u.mem.Value()
		allocatableCPUMilli := allocatable[i].cpu.MilliValue()
		allocatableMemBytes := allocatable[i].mem.Value()

		totalCPUUsageMilliCores += nodeCPUUsageMilli
		totalCPUCapacityMilliCores += allocatableCPUMilli
		totalMemUsageBytes += nodeMemUsageBytes
		totalMemCapacityBytes += allocatableMemBytes

		detailedNodeMetrics = append(detailedNodeMetrics, NodeMetrics{
			Name:                   name,
			CPUUsageMilliCores:     nodeCPUUsageMilli,
			MemoryUsageBytes:       nodeMemUsageBytes,
			CPUAvailableMilliCores: allocatableCPUMilli,
			MemoryAvailableBytes:   allocatableMemBytes,
			CPUUsagePercentage:     percent(nodeCPUUsageMilli, allocatableCPUMilli),
			MemUsagePercentage:     percent(nodeMemUsageBytes, allocatableMemBytes),
			MetricsMissing:         !found,
		})
	}

	s.logger.Debug("usage summary computed", zap.Int("nodes", len(nodeNames)), zap.Duration("took", time.Since(startTime)))
	return &ClusterMetrics{
		TotalCPUUsageMilliCores:    totalCPUUsageMilliCores,
		TotalCPUCapacityMilliCores: totalCPUCapacityMilliCores,
		TotalMemoryUsageBytes:      totalMemUsageBytes,
		TotalMemoryCapacityBytes:   totalMemCapacityBytes,
		AverageCPUUsagePercentage:  percent(totalCPUUsageMilliCores, totalCPUCapacityMilliCores),
		AverageMemUsagePercentage:  percent(totalMemUsageBytes, totalMemCapacityBytes),
		Nodes:                      detailedNodeMetrics,
		Timestamp:                  s.now().UTC(),
	}, nil
}

// nodeResources is a cpu/memory pair taken from usage or allocatable.
type nodeResources struct{ cpu, mem resource.Quantity }

func percent(used, capacity int64) float64 {
	if capacity <= 0 {
		return 0
	}
	return float64(used) * 100 / float64(capacity)
}
