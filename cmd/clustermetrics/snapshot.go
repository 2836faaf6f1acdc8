package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cluster-metrics-api/pkg/api"
)

type snapshotOutput struct {
	Cluster   api.ClusterResponse   `json:"cluster" yaml:"cluster"`
	NodeUsage api.NodeUsageResponse `json:"node_usage" yaml:"node_usage"`
}

func newSnapshotCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the cluster and node usage payloads once and exit",
		Example: `  clustermetrics snapshot
  clustermetrics snapshot --output yaml --context kind-dev`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != "json" && output != "yaml" {
				return fmt.Errorf("unsupported output %q: must be json or yaml", output)
			}
			res, err := a.resolve()
			if err != nil {
				return err
			}
			svc := a.newService(res)
			ctx := cmd.Context()

			snap, err := svc.ClusterSnapshot(ctx)
			out := snapshotOutput{Cluster: api.BuildClusterResponse(res.Mode, snap, err, time.Now())}
			report, err := svc.NodeUsage(ctx)
			out.NodeUsage = api.BuildNodeUsageResponse(res.Mode, report, err, time.Now())

			return writeSnapshot(cmd.OutOrStdout(), output, out)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	return cmd
}

func writeSnapshot(w io.Writer, format string, out snapshotOutput) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
