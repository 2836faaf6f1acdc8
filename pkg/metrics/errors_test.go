package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

func TestClassify(t *testing.T) {
	forbidden := apierrors.NewForbidden(schema.GroupResource{Resource: "pods"}, "", errors.New("RBAC: access denied"))

	tests := []struct {
		name       string
		err        error
		wantKind   ErrorKind
		wantStatus int32
		wantReason string
	}{
		{"forbidden", forbidden, KindControlPlane, 403, "Forbidden"},
		{"wrapped forbidden", fmt.Errorf("list pods: %w", forbidden), KindControlPlane, 403, "Forbidden"},
		{"not found", apierrors.NewNotFound(NodeMetricsGVR.GroupResource(), ""), KindControlPlane, 404, "NotFound"},
		{"server timeout", apierrors.NewTimeoutError("took too long", 1), KindControlPlane, 504, "Timeout"},
		{
			"reason unknown falls back to status text",
			&apierrors.StatusError{ErrStatus: metav1.Status{Status: metav1.StatusFailure, Code: 502}},
			KindControlPlane, 502, "Bad Gateway",
		},
		{"deadline", fmt.Errorf("list nodes: %w", context.DeadlineExceeded), KindUnexpected, 0, ""},
		{"network", errors.New("dial tcp 10.0.0.1:443: connect: connection refused"), KindUnexpected, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Classify(tt.err)
			require.NotNil(t, report)
			assert.Equal(t, tt.wantKind, report.Kind)

			if tt.wantKind == KindUnexpected {
				assert.Nil(t, report.Status)
				assert.Equal(t, tt.err.Error(), report.Detail)
				return
			}
			require.NotNil(t, report.Status)
			assert.Equal(t, tt.wantStatus, report.Status.Status)
			assert.Equal(t, tt.wantReason, report.Status.Reason)

			var body metav1.Status
			require.NoError(t, json.Unmarshal([]byte(report.Status.Body), &body))
			assert.Equal(t, tt.wantStatus, body.Code)
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Nil(t, ClassifyUsage(nil))
}

func TestClassifyUsage_Hint(t *testing.T) {
	report := ClassifyUsage(apierrors.NewNotFound(NodeMetricsGVR.GroupResource(), ""))
	assert.Equal(t, KindControlPlane, report.Kind)
	assert.Equal(t, MetricsServerHint, report.Hint)

	report = ClassifyUsage(errors.New("EOF"))
	assert.Equal(t, KindUnexpected, report.Kind)
	assert.Empty(t, report.Hint)
}

func TestErrorReport_Error(t *testing.T) {
	r := &ErrorReport{Kind: KindUnexpected, Detail: "boom"}
	assert.Equal(t, "unexpected-error: boom", r.Error())
}
