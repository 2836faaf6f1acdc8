package metrics

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// NodeMetricsGVR addresses node usage objects of the metrics aggregation API.
var NodeMetricsGVR = schema.GroupVersionResource{
	Group:    "metrics.k8s.io",
	Version:  "v1beta1",
	Resource: "nodes",
}

// NodeUsage lists node usage objects and passes their cpu and memory
// quantities through untouched.
func (s *Service) NodeUsage(ctx context.Context) (*NodeUsageReport, error) {
	if s.dynamicClient == nil {
		return nil, ErrMetricsUnavailable
	}

	var list *unstructured.UnstructuredList
	err := s.call(ctx, "list node metrics", func(ctx context.Context) error {
		var err error
		list, err = s.dynamicClient.Resource(NodeMetricsGVR).List(ctx, metav1.ListOptions{})
		return err
	})
	if err != nil {
		return nil, err
	}

	items := make([]NodeUsageEntry, 0, len(list.Items))
	for i := range list.Items {
		entry, err := projectNodeUsage(&list.Items[i])
		if err != nil {
			return nil, err
		}
		items = append(items, entry)
	}
	return &NodeUsageReport{Items: items, Timestamp: s.now().UTC()}, nil
}

func projectNodeUsage(item *unstructured.Unstructured) (NodeUsageEntry, error) {
	name := item.GetName()
	if name == "" {
		return NodeUsageEntry{}, fmt.Errorf("%w: missing metadata.name", ErrMalformedItem)
	}
	fields := [2]string{"cpu", "memory"}
	var values [2]string
	for i, field := range fields {
		v, found, err := unstructured.NestedString(item.Object, "usage", field)
		if err != nil {
			return NodeUsageEntry{}, fmt.Errorf("%w: node %s: %v", ErrMalformedItem, name, err)
		}
		if !found {
			return NodeUsageEntry{}, fmt.Errorf("%w: node %s: missing usage.%s", ErrMalformedItem, name, field)
		}
		values[i] = v
	}
	return NodeUsageEntry{Node: name, CPU: values[0], Memory: values[1]}, nil
}
