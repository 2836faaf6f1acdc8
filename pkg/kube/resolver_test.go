package kube

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/rest"
)

type fakeSource struct {
	inCluster  func() (*rest.Config, error)
	kubeconfig func() (*rest.Config, error)
	calls      []string
}

func (f *fakeSource) InCluster() (*rest.Config, error) {
	f.calls = append(f.calls, "in-cluster")
	return f.inCluster()
}

func (f *fakeSource) Kubeconfig() (*rest.Config, error) {
	f.calls = append(f.calls, "kubeconfig")
	return f.kubeconfig()
}

func found(host string) func() (*rest.Config, error) {
	return func() (*rest.Config, error) { return &rest.Config{Host: host}, nil }
}

func absent(err error) func() (*rest.Config, error) {
	return func() (*rest.Config, error) { return nil, err }
}

func fakeFactory(cfg *rest.Config) (*Clients, error) {
	return &Clients{Kube: fake.NewSimpleClientset()}, nil
}

func TestResolve_Priority(t *testing.T) {
	notInCluster := fmt.Errorf("load: %w", rest.ErrNotInCluster)
	noFile := &os.PathError{Op: "stat", Path: "/nope/config", Err: os.ErrNotExist}

	tests := []struct {
		name      string
		src       *fakeSource
		wantMode  Mode
		wantHost  string
		wantCalls []string
	}{
		{
			name:      "in-cluster wins and kubeconfig is never consulted",
			src:       &fakeSource{inCluster: found("https://10.0.0.1:443"), kubeconfig: found("https://local:6443")},
			wantMode:  ModeKubernetes,
			wantHost:  "https://10.0.0.1:443",
			wantCalls: []string{"in-cluster"},
		},
		{
			name:      "falls back to kubeconfig",
			src:       &fakeSource{inCluster: absent(notInCluster), kubeconfig: found("https://local:6443")},
			wantMode:  ModeLocal,
			wantHost:  "https://local:6443",
			wantCalls: []string{"in-cluster", "kubeconfig"},
		},
		{
			name:      "nothing resolves",
			src:       &fakeSource{inCluster: absent(notInCluster), kubeconfig: absent(noFile)},
			wantMode:  ModeMock,
			wantCalls: []string{"in-cluster", "kubeconfig"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(tt.src, Options{Factory: fakeFactory})
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, res.Mode)
			assert.Equal(t, tt.wantHost, res.Host)
			assert.Equal(t, tt.wantCalls, tt.src.calls)
			assert.Equal(t, tt.wantMode != ModeMock, res.Live())
		})
	}
}

func TestResolve_MockHasNoHandles(t *testing.T) {
	src := &fakeSource{inCluster: absent(rest.ErrNotInCluster), kubeconfig: absent(os.ErrNotExist)}

	res, err := Resolve(src, Options{Factory: fakeFactory})
	require.NoError(t, err)

	assert.Equal(t, ModeMock, res.Mode)
	assert.Nil(t, res.KubeClient())
	assert.Nil(t, res.DynamicClient())
	assert.Nil(t, res.MetricsClient())
}

func TestResolve_UnusableCredentials(t *testing.T) {
	malformed := errors.New("couldn't get version/kind; json parse error")

	t.Run("in-cluster fault stops the chain", func(t *testing.T) {
		src := &fakeSource{inCluster: absent(malformed), kubeconfig: found("https://local:6443")}

		res, err := Resolve(src, Options{Factory: fakeFactory})
		require.Error(t, err)
		assert.Nil(t, res)

		var rerr *ResolveError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, ModeKubernetes, rerr.Tier)
		assert.ErrorIs(t, err, malformed)
		assert.Equal(t, []string{"in-cluster"}, src.calls)
	})

	t.Run("kubeconfig fault", func(t *testing.T) {
		src := &fakeSource{inCluster: absent(rest.ErrNotInCluster), kubeconfig: absent(malformed)}

		_, err := Resolve(src, Options{Factory: fakeFactory})
		var rerr *ResolveError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, ModeLocal, rerr.Tier)
	})

	t.Run("degrade to mock when allowed", func(t *testing.T) {
		src := &fakeSource{inCluster: absent(rest.ErrNotInCluster), kubeconfig: absent(malformed)}

		res, err := Resolve(src, Options{Factory: fakeFactory, DegradeOnError: true})
		require.NoError(t, err)
		assert.Equal(t, ModeMock, res.Mode)
		assert.False(t, res.Live())
	})

	t.Run("client construction failure", func(t *testing.T) {
		src := &fakeSource{inCluster: found("https://10.0.0.1:443"), kubeconfig: found("https://local:6443")}
		boom := errors.New("bad tls config")
		factory := func(*rest.Config) (*Clients, error) { return nil, boom }

		_, err := Resolve(src, Options{Factory: factory})
		var rerr *ResolveError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, ModeKubernetes, rerr.Tier)
		assert.ErrorIs(t, err, boom)
	})
}

func TestResolve_StampsUserAgent(t *testing.T) {
	var seen *rest.Config
	factory := func(cfg *rest.Config) (*Clients, error) {
		seen = cfg
		return &Clients{}, nil
	}
	src := &fakeSource{inCluster: found("https://10.0.0.1:443")}

	_, err := Resolve(src, Options{Factory: factory, UserAgent: "cluster-metrics-api/test"})
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "cluster-metrics-api/test", seen.UserAgent)
	assert.NotNil(t, seen.WrapTransport)
}

const testKubeconfig = `apiVersion: v1
kind: Config
clusters:
- name: dev
  cluster:
    server: https://127.0.0.1:6443
contexts:
- name: dev
  context:
    cluster: dev
    user: dev
current-context: dev
users:
- name: dev
  user:
    token: not-a-secret
`

func TestDefaultSource(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(valid, []byte(testKubeconfig), 0o600))
	broken := filepath.Join(dir, "broken")
	require.NoError(t, os.WriteFile(broken, []byte("{{{ not yaml"), 0o600))

	t.Run("in-cluster outside a pod is absent", func(t *testing.T) {
		t.Setenv("KUBERNETES_SERVICE_HOST", "")
		t.Setenv("KUBERNETES_SERVICE_PORT", "")
		_, err := DefaultSource{}.InCluster()
		require.Error(t, err)
		assert.True(t, IsConfigAbsent(err))
	})

	t.Run("valid kubeconfig", func(t *testing.T) {
		cfg, err := DefaultSource{KubeconfigPath: valid}.Kubeconfig()
		require.NoError(t, err)
		assert.Equal(t, "https://127.0.0.1:6443", cfg.Host)
	})

	t.Run("missing default kubeconfig is absent", func(t *testing.T) {
		t.Setenv("KUBECONFIG", filepath.Join(dir, "missing"))
		_, err := DefaultSource{}.Kubeconfig()
		require.Error(t, err)
		assert.True(t, IsConfigAbsent(err))
	})

	t.Run("missing explicit kubeconfig is a fault", func(t *testing.T) {
		_, err := DefaultSource{KubeconfigPath: filepath.Join(dir, "missing")}.Kubeconfig()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrKubeconfigNotFound)
		assert.False(t, IsConfigAbsent(err))
	})

	t.Run("resolve with missing explicit kubeconfig fails", func(t *testing.T) {
		t.Setenv("KUBERNETES_SERVICE_HOST", "")
		t.Setenv("KUBERNETES_SERVICE_PORT", "")
		res, err := Resolve(DefaultSource{KubeconfigPath: filepath.Join(dir, "missing")}, Options{})
		assert.Nil(t, res)
		var resolveErr *ResolveError
		require.ErrorAs(t, err, &resolveErr)
		assert.Equal(t, ModeLocal, resolveErr.Tier)
		assert.ErrorIs(t, err, ErrKubeconfigNotFound)
	})

	t.Run("malformed kubeconfig is a fault", func(t *testing.T) {
		_, err := DefaultSource{KubeconfigPath: broken}.Kubeconfig()
		require.Error(t, err)
		assert.False(t, IsConfigAbsent(err))
	})

	t.Run("unknown context is a fault", func(t *testing.T) {
		_, err := DefaultSource{KubeconfigPath: valid, Context: "prod"}.Kubeconfig()
		require.Error(t, err)
		assert.False(t, IsConfigAbsent(err))
	})
}

func TestIsConfigAbsent(t *testing.T) {
	assert.False(t, IsConfigAbsent(nil))
	assert.True(t, IsConfigAbsent(rest.ErrNotInCluster))
	assert.True(t, IsConfigAbsent(fmt.Errorf("read token: %w", os.ErrNotExist)))
	assert.False(t, IsConfigAbsent(os.ErrPermission))
}
