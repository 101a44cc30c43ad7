package datadog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"statbatch/internal/metrics"
)

func TestNewBackendRequiresAddr(t *testing.T) {
	t.Parallel()

	_, err := NewBackend(Config{})
	require.Error(t, err)
}

func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	require.Nil(t, labelsToTags(nil))
	got := labelsToTags(metrics.Labels{"step": "open", "job": "nightly", "status": "success"})
	require.Equal(t, []string{"job:nightly", "status:success", "step:open"}, got)
}

func TestBackendUDP(t *testing.T) {
	t.Parallel()

	b, err := NewBackend(Config{Addr: "127.0.0.1:8125", Namespace: "statbatch.", GlobalTags: []string{"env:test"}})
	require.NoError(t, err)
	b.IncCounter(metrics.RowsTotal, 10, metrics.Labels{"kind": "assembled"})
	b.ObserveHistogram(metrics.StepDuration, 0.25, metrics.Labels{"step": "open"})
	require.NoError(t, b.Flush())
}

func TestZeroBackendIsNoop(t *testing.T) {
	t.Parallel()

	var b Backend
	b.IncCounter(metrics.RowsTotal, 1, nil)
	b.ObserveHistogram(metrics.StepDuration, 1, nil)
	require.NoError(t, b.Flush())
}
