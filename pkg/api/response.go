package api

import (
	"errors"
	"time"

	"cluster-metrics-api/pkg/kube"
	"cluster-metrics-api/pkg/metrics"
)

// TimestampLayout renders UTC instants with microsecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Error-mode sentinels replace the connection mode when a request fails.
const (
	ModeKubernetesError = "kubernetes-error"
	ModeUnexpectedError = "unexpected-error"
)

// ClusterResponse is the body of GET /.
// Error holds a metrics.APIStatus for control-plane faults and a string otherwise.
type ClusterResponse struct {
	Mode      string                   `json:"mode" yaml:"mode"`
	Cluster   *metrics.ClusterSnapshot `json:"cluster,omitempty" yaml:"cluster,omitempty"`
	Timestamp string                   `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Error     any                      `json:"error,omitempty" yaml:"error,omitempty"`
}

// NodeUsageResponse is the body of GET /node-usage. Items is never nil.
type NodeUsageResponse struct {
	Mode      string                   `json:"mode" yaml:"mode"`
	Items     []metrics.NodeUsageEntry `json:"items" yaml:"items"`
	Timestamp string                   `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Error     string                   `json:"error,omitempty" yaml:"error,omitempty"`
	Hint      string                   `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// UsageSummaryResponse is the body of GET /node-usage/summary.
type UsageSummaryResponse struct {
	Mode      string                  `json:"mode" yaml:"mode"`
	Summary   *metrics.ClusterMetrics `json:"summary,omitempty" yaml:"summary,omitempty"`
	Timestamp string                  `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Error     string                  `json:"error,omitempty" yaml:"error,omitempty"`
	Hint      string                  `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// BuildClusterResponse shapes the outcome of a cluster snapshot. A zero
// snapshot timestamp is replaced by now.
func BuildClusterResponse(mode kube.Mode, snap *metrics.ClusterSnapshot, err error, now time.Time) ClusterResponse {
	if err != nil {
		report := metrics.Classify(err)
		if report.Kind == metrics.KindControlPlane {
			return ClusterResponse{Mode: ModeKubernetesError, Error: *report.Status}
		}
		return ClusterResponse{Mode: ModeUnexpectedError, Error: report.Detail}
	}
	if snap == nil {
		snap = &metrics.ClusterSnapshot{}
	}
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = now
	}
	return ClusterResponse{Mode: string(mode), Cluster: snap, Timestamp: FormatTimestamp(ts)}
}

// BuildNodeUsageResponse shapes the outcome of a node usage listing.
func BuildNodeUsageResponse(mode kube.Mode, report *metrics.NodeUsageReport, err error, now time.Time) NodeUsageResponse {
	if err != nil {
		resp := NodeUsageResponse{Items: []metrics.NodeUsageEntry{}}
		resp.Mode, resp.Error, resp.Hint = usageFailure(mode, err)
		return resp
	}
	items := []metrics.NodeUsageEntry{}
	ts := now
	if report != nil {
		if report.Items != nil {
			items = report.Items
		}
		if !report.Timestamp.IsZero() {
			ts = report.Timestamp
		}
	}
	return NodeUsageResponse{Mode: string(mode), Items: items, Timestamp: FormatTimestamp(ts)}
}

// BuildUsageSummaryResponse shapes the outcome of a usage summary.
func BuildUsageSummaryResponse(mode kube.Mode, summary *metrics.ClusterMetrics, err error, now time.Time) UsageSummaryResponse {
	if err != nil {
		var resp UsageSummaryResponse
		resp.Mode, resp.Error, resp.Hint = usageFailure(mode, err)
		return resp
	}
	ts := now
	if summary != nil && !summary.Timestamp.IsZero() {
		ts = summary.Timestamp
	}
	return UsageSummaryResponse{Mode: string(mode), Summary: summary, Timestamp: FormatTimestamp(ts)}
}

// usageFailure returns the mode, message and hint for a failed metrics API
// read. Missing credentials keep the connection mode.
func usageFailure(mode kube.Mode, err error) (string, string, string) {
	if errors.Is(err, metrics.ErrMetricsUnavailable) {
		return string(mode), metrics.ErrMetricsUnavailable.Error(), ""
	}
	report := metrics.ClassifyUsage(err)
	if report.Kind == metrics.KindControlPlane {
		msg := "metrics API request failed"
		if report.Status != nil {
			msg += ": " + report.Status.Reason
		}
		if report.Detail != "" {
			msg += ": " + report.Detail
		}
		return ModeKubernetesError, msg, report.Hint
	}
	return ModeUnexpectedError, "failed to read node metrics: " + report.Detail, ""
}
