package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cluster-metrics-api/pkg/kube"
	"cluster-metrics-api/pkg/metrics"
)

// Aggregator is the read side of metrics.Service used by the handlers.
type Aggregator interface {
	ClusterSnapshot(ctx context.Context) (*metrics.ClusterSnapshot, error)
	NodeUsage(ctx context.Context) (*metrics.NodeUsageReport, error)
	UsageSummary(ctx context.Context) (*metrics.ClusterMetrics, error)
}

// APIHandler holds dependencies for API handlers.
type APIHandler struct {
	resolution *kube.Resolution
	aggregator Aggregator
	now        func() time.Time
	logger     *zap.Logger
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(res *kube.Resolution, agg Aggregator, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		resolution: res,
		aggregator: agg,
		now:        time.Now,
		logger:     logger,
	}
}

func (h *APIHandler) mode() kube.Mode {
	if h.resolution == nil {
		return kube.ModeMock
	}
	return h.resolution.Mode
}

// ClusterHandler serves the cluster object counts. It always answers 200;
// failures are carried in the body.
func (h *APIHandler) ClusterHandler(c *gin.Context) {
	snap, err := h.aggregator.ClusterSnapshot(c.Request.Context())
	if err != nil {
		h.logger.Warn("cluster snapshot failed", zap.String("request_id", RequestIDFrom(c)), zap.Error(err))
	}
	c.JSON(http.StatusOK, BuildClusterResponse(h.mode(), snap, err, h.now()))
}

// NodeUsageHandler serves per-node usage quantities as reported by the metrics API.
func (h *APIHandler) NodeUsageHandler(c *gin.Context) {
	report, err := h.aggregator.NodeUsage(c.Request.Context())
	if err != nil {
		h.logger.Warn("node usage failed", zap.String("request_id", RequestIDFrom(c)), zap.Error(err))
	}
	c.JSON(http.StatusOK, BuildNodeUsageResponse(h.mode(), report, err, h.now()))
}

// UsageSummaryHandler serves usage joined with allocatable capacity.
func (h *APIHandler) UsageSummaryHandler(c *gin.Context) {
	summary, err := h.aggregator.UsageSummary(c.Request.Context())
	if err != nil {
		h.logger.Warn("usage summary failed", zap.String("request_id", RequestIDFrom(c)), zap.Error(err))
	}
	c.JSON(http.StatusOK, BuildUsageSummaryResponse(h.mode(), summary, err, h.now()))
}

// HealthHandler reports liveness only; it never reflects the connection mode.
func (h *APIHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DashboardHandler serves the embedded dashboard page.
func (h *APIHandler) DashboardHandler(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", dashboardHTML)
}
