package metrics

import "time"

// ClusterSnapshot counts the core objects of a cluster at one instant.
// The four counts come from independent list calls and may be skewed
// relative to each other.
type ClusterSnapshot struct {
	Nodes      int       `json:"nodes" yaml:"nodes"`
	Pods       int       `json:"pods" yaml:"pods"`
	Namespaces int       `json:"namespaces" yaml:"namespaces"`
	Services   int       `json:"services" yaml:"services"`
	Timestamp  time.Time `json:"-" yaml:"-"`
}

// NodeUsageEntry is one node's usage as reported by the metrics API.
// CPU and Memory are the API's own quantity strings, e.g. "250m", "512Mi".
type NodeUsageEntry struct {
	Node   string `json:"node" yaml:"node"`
	CPU    string `json:"cpu" yaml:"cpu"`
	Memory string `json:"memory" yaml:"memory"`
}

// NodeUsageReport is the result of one node metrics listing.
type NodeUsageReport struct {
	Items     []NodeUsageEntry
	Timestamp time.Time
}

// NodeMetrics represents metrics for a single Kubernetes node.
type NodeMetrics struct {
	Name                   string  `json:"name" yaml:"name"`
	CPUUsageMilliCores     int64   `json:"cpu_usage_milli_cores" yaml:"cpu_usage_milli_cores"`         // Actual milliCores used
	MemoryUsageBytes       int64   `json:"memory_usage_bytes" yaml:"memory_usage_bytes"`               // Actual bytes used
	CPUAvailableMilliCores int64   `json:"cpu_available_milli_cores" yaml:"cpu_available_milli_cores"` // Total allocatable milliCores
	MemoryAvailableBytes   int64   `json:"memory_available_bytes" yaml:"memory_available_bytes"`       // Total allocatable bytes
	CPUUsagePercentage     float64 `json:"cpu_usage_percentage" yaml:"cpu_usage_percentage"`
	MemUsagePercentage     float64 `json:"mem_usage_percentage" yaml:"mem_usage_percentage"`
	MetricsMissing         bool    `json:"metrics_missing,omitempty" yaml:"metrics_missing,omitempty"`
}

// ClusterMetrics aggregates usage against allocatable capacity for the entire cluster.
type ClusterMetrics struct {
	TotalCPUUsageMilliCores    int64         `json:"total_cpu_usage_milli_cores" yaml:"total_cpu_usage_milli_cores"`
	TotalCPUCapacityMilliCores int64         `json:"total_cpu_capacity_milli_cores" yaml:"total_cpu_capacity_milli_cores"`
	TotalMemoryUsageBytes      int64         `json:"total_memory_usage_bytes" yaml:"total_memory_usage_bytes"`
	TotalMemoryCapacityBytes   int64         `json:"total_memory_capacity_bytes" yaml:"total_memory_capacity_bytes"`
	AverageCPUUsagePercentage  float64       `json:"average_cpu_usage_percentage" yaml:"average_cpu_usage_percentage"`
	AverageMemUsagePercentage  float64       `json:"average_mem_usage_percentage" yaml:"average_mem_usage_percentage"`
	Nodes                      []NodeMetrics `json:"nodes" yaml:"nodes"`
	Timestamp                  time.Time     `json:"-" yaml:"-"`
}
