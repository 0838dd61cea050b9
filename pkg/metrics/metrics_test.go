package metrics_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/dispensa/pkg/metrics"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)

	rec.Snapshot("notes", 3)
	rec.Snapshot("notes", 2)
	rec.Write("notes", "create", nil)
	rec.Write("notes", "delete", errors.New("boom"))
	rec.Subscription("notes", 1)

	count, err := testutil.GatherAndCount(reg, "dispensa_snapshots_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] += m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, values["dispensa_snapshots_total"])
	assert.Equal(t, 2.0, values["dispensa_mirror_documents"])
	assert.Equal(t, 2.0, values["dispensa_writes_total"])
	assert.Equal(t, 1.0, values["dispensa_subscriptions_active"])
}

func TestPrometheusDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)
	_, err = metrics.NewPrometheus(reg)
	assert.Error(t, err)
}
