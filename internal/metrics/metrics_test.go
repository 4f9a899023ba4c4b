package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.FilesProcessed.WithLabelValues("written").Inc()
	m.RowsWritten.WithLabelValues("US").Add(3)
	m.Runs.Inc()
	m.ObserveStage("decode", time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues("written")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RowsWritten.WithLabelValues("US")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration))
}

func TestNewRegistersOnInjectedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Runs.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["ytetl_runs_total"])

	// A second set of collectors on a fresh registry must not panic.
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}
