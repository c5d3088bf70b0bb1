package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "termctl",
			Subsystem: "protocol",
			Name:      "requests_total",
			Help:      "Number of protocol requests handled, by method and outcome.",
		}, []string{"method", "outcome"},
	)
	toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "termctl",
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Number of tool invocations, by tool name and outcome.",
		}, []string{"tool", "outcome"},
	)
	spawnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "termctl",
			Subsystem: "registry",
			Name:      "spawn_duration_seconds",
			Help:      "Wall time of spawn_instance including the window discovery wait.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	instancesAdopted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "termctl",
			Subsystem: "registry",
			Name:      "adopted_total",
			Help:      "Number of instances discovered by reconciliation.",
		},
	)
	instancesRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "termctl",
			Subsystem: "registry",
			Name:      "removed_total",
			Help:      "Number of instances dropped because their pid disappeared.",
		},
	)
	trackedInstances = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "termctl",
			Subsystem: "registry",
			Name:      "tracked_instances",
			Help:      "Current number of tracked terminal instances.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		requestsTotal, toolCalls, spawnDuration,
		instancesAdopted, instancesRemoved, trackedInstances,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// MustRegisterDefault registers against the default prometheus registry.
func MustRegisterDefault() {
	_ = Register(prometheus.DefaultRegisterer)
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler { return promhttp.Handler() }

func ObserveRequest(method, outcome string) {
	requestsTotal.WithLabelValues(method, outcome).Inc()
}

func ObserveToolCall(tool, outcome string) {
	toolCalls.WithLabelValues(tool, outcome).Inc()
}

func ObserveSpawnSeconds(v float64) { spawnDuration.Observe(v) }

func AddAdopted(n int) { instancesAdopted.Add(float64(n)) }

func AddRemoved(n int) { instancesRemoved.Add(float64(n)) }

func SetTracked(n int) { trackedInstances.Set(float64(n)) }
