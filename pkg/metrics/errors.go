package metrics

import (
	"encoding/json"
	"errors"
	"net/http"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ErrorKind classifies a failed aggregation.
type ErrorKind string

const (
	// KindControlPlane is a fault reported by the API server itself.
	KindControlPlane ErrorKind = "control-plane-error"
	// KindUnexpected is anything else: network, decode, deadline.
	KindUnexpected ErrorKind = "unexpected-error"
)

// MetricsServerHint is attached to control-plane faults of the metrics API.
const MetricsServerHint = "The metrics API may not be installed. Install metrics-server: " +
	"kubectl apply -f https://github.com/kubernetes-sigs/metrics-server/releases/latest/download/components.yaml"

var (
	// ErrMetricsUnavailable is returned when no metrics handle exists.
	ErrMetricsUnavailable = errors.New("metrics API unavailable: no cluster credentials were resolved")
	// ErrMalformedItem is returned when a metrics item lacks name or usage fields.
	ErrMalformedItem = errors.New("malformed node metrics item")
)

// APIStatus is the control plane's own description of a failed call.
type APIStatus struct {
	Status int32  `json:"status" yaml:"status"`
	Reason string `json:"reason" yaml:"reason"`
	Body   string `json:"body" yaml:"body"`
}

// ErrorReport is a classified aggregation failure.
type ErrorReport struct {
	Kind   ErrorKind
	Detail string
	Hint   string
	// Status is set only for KindControlPlane.
	Status *APIStatus
}

func (r *ErrorReport) Error() string {
	return string(r.Kind) + ": " + r.Detail
}

// Classify maps err onto the error taxonomy. It returns nil for a nil error.
func Classify(err error) *ErrorReport {
	if err == nil {
		return nil
	}
	var apiStatus apierrors.APIStatus
	if !errors.As(err, &apiStatus) {
		return &ErrorReport{Kind: KindUnexpected, Detail: err.Error()}
	}

	st := apiStatus.Status()
	reason := string(st.Reason)
	if reason == "" || st.Reason == metav1.StatusReasonUnknown {
		if text := http.StatusText(int(st.Code)); text != "" {
			reason = text
		}
	}
	body, mErr := json.Marshal(st)
	if mErr != nil {
		body = []byte(st.Message)
	}
	return &ErrorReport{
		Kind:   KindControlPlane,
		Detail: st.Message,
		Status: &APIStatus{Status: st.Code, Reason: reason, Body: string(body)},
	}
}

// ClassifyUsage is Classify for metrics API calls; control-plane faults
// carry MetricsServerHint.
func ClassifyUsage(err error) *ErrorReport {
	report := Classify(err)
	if report != nil && report.Kind == KindControlPlane {
		report.Hint = MetricsServerHint
	}
	return report
}
