// Package metrics exposes pool statistics as Prometheus metrics. It
// provides package-level instruments for the maintenance loop and an
// Exporter that turns registry snapshots into per-pool gauges and
// counters on every scrape.
//
// # Basic Usage
//
//	reg := registry.New(nil)
//	prometheus.MustRegister(metrics.NewExporter(reg))
//	http.Handle("/metrics", promhttp.Handler())
//
// The Exporter holds no state of its own; every scrape reads fresh
// snapshots, so the cost of exporting scales with the number of pools,
// not with pool traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/poolkit/pkg/registry"
)

var (
	// MaintenancePassDuration tracks how long maintenance passes take.
	MaintenancePassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "poolkit_maintenance_pass_duration_seconds",
			Help: "Duration of maintenance passes in seconds",
			Buckets: []float64{
				1e-5, // 10μs
				1e-4, // 100μs
				1e-3, // 1ms
				1e-2, // 10ms
				1e-1, // 100ms
				1,    // 1s
			},
		},
	)

	// MaintenanceDestructions counts instances destroyed by maintenance
	// passes, across all pools.
	MaintenanceDestructions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poolkit_maintenance_destructions_total",
			Help: "Total instances destroyed by maintenance passes",
		},
	)
)

// StatsSource is the registry surface the exporter reads. Implemented by
// *registry.Registry.
type StatsSource interface {
	GlobalStatistics() registry.GlobalStats
}

// Exporter implements prometheus.Collector over a pool registry. Register
// it once per registry; the pool name is carried as a label.
type Exporter struct {
	src StatsSource

	totalDesc        *prometheus.Desc
	availableDesc    *prometheus.Desc
	activeDesc       *prometheus.Desc
	maxCapacityDesc  *prometheus.Desc
	getsDesc         *prometheus.Desc
	returnsDesc      *prometheus.Desc
	creationsDesc    *prometheus.Desc
	destructionsDesc *prometheus.Desc
	validationDesc   *prometheus.Desc
	hitRateDesc      *prometheus.Desc
	utilizationDesc  *prometheus.Desc
	getLatencyDesc   *prometheus.Desc
	poolsDesc        *prometheus.Desc
}

// NewExporter constructs an exporter over src.
func NewExporter(src StatsSource) *Exporter {
	labels := []string{"pool"}
	return &Exporter{
		src: src,
		totalDesc: prometheus.NewDesc("poolkit_pool_instances",
			"Total instances managed by the pool", labels, nil),
		availableDesc: prometheus.NewDesc("poolkit_pool_available_instances",
			"Idle instances ready to lease", labels, nil),
		activeDesc: prometheus.NewDesc("poolkit_pool_active_instances",
			"Instances currently leased out", labels, nil),
		maxCapacityDesc: prometheus.NewDesc("poolkit_pool_max_capacity",
			"Configured capacity bound", labels, nil),
		getsDesc: prometheus.NewDesc("poolkit_pool_gets_total",
			"Total lease acquisitions", labels, nil),
		returnsDesc: prometheus.NewDesc("poolkit_pool_returns_total",
			"Total lease returns", labels, nil),
		creationsDesc: prometheus.NewDesc("poolkit_pool_creations_total",
			"Total instances constructed", labels, nil),
		destructionsDesc: prometheus.NewDesc("poolkit_pool_destructions_total",
			"Total instances destroyed", labels, nil),
		validationDesc: prometheus.NewDesc("poolkit_pool_validation_errors_total",
			"Total validation failures", labels, nil),
		hitRateDesc: prometheus.NewDesc("poolkit_pool_hit_rate",
			"Fraction of gets served from the idle set", labels, nil),
		utilizationDesc: prometheus.NewDesc("poolkit_pool_utilization",
			"Fraction of managed instances currently leased", labels, nil),
		getLatencyDesc: prometheus.NewDesc("poolkit_pool_get_latency_seconds",
			"Exponentially weighted average get latency", labels, nil),
		poolsDesc: prometheus.NewDesc("poolkit_registered_pools",
			"Number of registered pools", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.totalDesc
	ch <- e.availableDesc
	ch <- e.activeDesc
	ch <- e.maxCapacityDesc
	ch <- e.getsDesc
	ch <- e.returnsDesc
	ch <- e.creationsDesc
	ch <- e.destructionsDesc
	ch <- e.validationDesc
	ch <- e.hitRateDesc
	ch <- e.utilizationDesc
	ch <- e.getLatencyDesc
	ch <- e.poolsDesc
}

// Collect implements prometheus.Collector. Each scrape reads a fresh
// aggregate snapshot.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	g := e.src.GlobalStatistics()

	ch <- prometheus.MustNewConstMetric(e.poolsDesc, prometheus.GaugeValue, float64(g.Pools))

	for name, s := range g.PerPool {
		ch <- prometheus.MustNewConstMetric(e.totalDesc, prometheus.GaugeValue, float64(s.Total), name)
		ch <- prometheus.MustNewConstMetric(e.availableDesc, prometheus.GaugeValue, float64(s.Available), name)
		ch <- prometheus.MustNewConstMetric(e.activeDesc, prometheus.GaugeValue, float64(s.Active), name)
		ch <- prometheus.MustNewConstMetric(e.maxCapacityDesc, prometheus.GaugeValue, float64(s.MaxCapacity), name)
		ch <- prometheus.MustNewConstMetric(e.getsDesc, prometheus.CounterValue, float64(s.Gets), name)
		ch <- prometheus.MustNewConstMetric(e.returnsDesc, prometheus.CounterValue, float64(s.Returns), name)
		ch <- prometheus.MustNewConstMetric(e.creationsDesc, prometheus.CounterValue, float64(s.Creations), name)
		ch <- prometheus.MustNewConstMetric(e.destructionsDesc, prometheus.CounterValue, float64(s.Destructions), name)
		ch <- prometheus.MustNewConstMetric(e.validationDesc, prometheus.CounterValue, float64(s.ValidationErrors), name)
		ch <- prometheus.MustNewConstMetric(e.hitRateDesc, prometheus.GaugeValue, s.HitRate, name)
		ch <- prometheus.MustNewConstMetric(e.utilizationDesc, prometheus.GaugeValue, s.Utilization, name)
		ch <- prometheus.MustNewConstMetric(e.getLatencyDesc, prometheus.GaugeValue, s.AvgGetLatency.Seconds(), name)
	}
}
