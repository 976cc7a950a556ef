package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/ims/internal/version"
)

// RegisterBuildInfo публикует ims_build_info{version,commit,date} = 1.
func RegisterBuildInfo(registerer prometheus.Registerer, build version.Build) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	info := registerGaugeVec(registerer, prometheus.GaugeOpts{
		Name: "ims_build_info",
		Help: "Build metadata of the running invoice service",
	}, []string{"version", "commit", "date"})
	info.Reset()
	info.WithLabelValues(build.Version, build.Commit, build.Date).Set(1)
}
