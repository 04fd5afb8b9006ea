package redislocker

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	lockOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studio",
		Subsystem: "redislocker",
		Name:      "operations_total",
	}, []string{"op", "result"})
)

func countOp(op, result string) {
	lockOps.WithLabelValues(op, result).Inc()
}

// RegisterMetrics registers lock counters with registry, or the default registerer when nil.
func RegisterMetrics(registry prometheus.Registerer) {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	registerOnce.Do(func() {
		registry.MustRegister(lockOps)
	})
}
