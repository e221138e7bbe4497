package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Run metrics
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thermosync_runs_total",
			Help: "Total number of runs by terminal status",
		},
		[]string{"status"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thermosync_run_duration_seconds",
			Help:    "Full run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RunSuccessRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "thermosync_run_success_ratio",
			Help: "Delivered over reachable ratio of the last run",
		},
	)

	// Discovery metrics
	DevicesSearched = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "thermosync_devices_searched",
			Help: "Size of the candidate identifier space in the last run",
		},
	)

	DevicesReachable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "thermosync_devices_reachable",
			Help: "Number of reachable devices found in the last run",
		},
	)

	DiscoveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thermosync_discovery_duration_seconds",
			Help:    "Discovery sweep duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Dispatch metrics
	PushOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thermosync_push_outcomes_total",
			Help: "Total number of device push outcomes by classification",
		},
		[]string{"outcome"},
	)

	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thermosync_dispatch_duration_seconds",
			Help:    "Dispatch phase duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Weather metrics
	WeatherFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thermosync_weather_fetches_total",
			Help: "Total number of weather fetches by result",
		},
		[]string{"result"},
	)

	WeatherTemperature = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "thermosync_weather_temperature_celsius",
			Help: "Temperature of the last fetched reading",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(RunSuccessRatio)
	prometheus.MustRegister(DevicesSearched)
	prometheus.MustRegister(DevicesReachable)
	prometheus.MustRegister(DiscoveryDuration)
	prometheus.MustRegister(PushOutcomesTotal)
	prometheus.MustRegister(DispatchDuration)
	prometheus.MustRegister(WeatherFetchesTotal)
	prometheus.MustRegister(WeatherTemperature)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
