package kube

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ConfigSource loads REST configurations for the two credential tiers.
type ConfigSource interface {
	// InCluster loads the ambient service account credentials.
	InCluster() (*rest.Config, error)
	// Kubeconfig loads an operator's local kubeconfig context.
	Kubeconfig() (*rest.Config, error)
}

// ErrKubeconfigNotFound means an explicitly configured kubeconfig path does
// not exist. Unlike a missing default kubeconfig it is a fault, not absence.
var ErrKubeconfigNotFound = errors.New("configured kubeconfig not found")

// DefaultSource reads credentials the way client-go does.
type DefaultSource struct {
	// KubeconfigPath overrides KUBECONFIG and ~/.kube/config when set.
	KubeconfigPath string
	// Context overrides the kubeconfig's current-context when set.
	Context string
}

// InCluster implements ConfigSource.
func (s DefaultSource) InCluster() (*rest.Config, error) {
	return rest.InClusterConfig()
}

// Kubeconfig implements ConfigSource.
func (s DefaultSource) Kubeconfig() (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if s.KubeconfigPath != "" {
		if _, err := os.Stat(s.KubeconfigPath); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKubeconfigNotFound, s.KubeconfigPath)
		}
		rules.ExplicitPath = s.KubeconfigPath
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		rules,
		&clientcmd.ConfigOverrides{CurrentContext: s.Context},
	).ClientConfig()
}

// IsConfigAbsent reports whether err means "no credentials of this kind
// exist" rather than "credentials exist but are unusable".
func IsConfigAbsent(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, rest.ErrNotInCluster) ||
		errors.Is(err, fs.ErrNotExist) ||
		clientcmd.IsEmptyConfig(err)
}
