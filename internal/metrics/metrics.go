package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "webhooks"

// Registry holds every metric the receiver exposes on /metrics.
var Registry = prometheus.NewRegistry()

// AppInfo is always 1; the build is described by its labels.
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// HealthStatus is 1 while the store answers and 0 otherwise.
var HealthStatus = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_status",
		Help:      "Overall health as last reported by /health (0=unhealthy, 1=healthy)",
	},
)

// HealthCheckStatus tracks individual dependency checks (0=fail, 1=pass).
var HealthCheckStatus = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_check_status",
		Help:      "Individual health check status (0=fail, 1=pass)",
	},
	[]string{"check"},
)

var initOnce sync.Once

// Init registers runtime collectors and records build information. Calling
// it more than once only updates AppInfo.
func Init(version, commit, buildDate string) {
	initOnce.Do(func() {
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}

// RecordHealth publishes the outcome of one health probe.
func RecordHealth(checks map[string]bool) {
	healthy := true
	for name, ok := range checks {
		HealthCheckStatus.WithLabelValues(name).Set(boolGauge(ok))
		healthy = healthy && ok
	}
	HealthStatus.Set(boolGauge(healthy))
}

func boolGauge(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
