package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ims/internal/version"
)

func TestRegisterBuildInfo(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterBuildInfo(reg, version.Build{Version: "1.0.0", Commit: "old", Date: "d"})
	RegisterBuildInfo(reg, version.Build{Version: "1.1.0", Commit: "abc", Date: "d"})

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "ims_build_info", families[0].GetName())

	metrics := families[0].GetMetric()
	require.Len(t, metrics, 1, "re-registration replaces the previous labels")
	labels := map[string]string{}
	for _, pair := range metrics[0].GetLabel() {
		labels[pair.GetName()] = pair.GetValue()
	}
	assert.Equal(t, map[string]string{"version": "1.1.0", "commit": "abc", "date": "d"}, labels)
	assert.Equal(t, float64(1), metrics[0].GetGauge().GetValue())
}
