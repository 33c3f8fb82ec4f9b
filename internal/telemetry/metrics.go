// Package telemetry registers the Prometheus metrics for the conferences
// control plane and aggregates point-in-time snapshots for the metrics
// handler (C7).
//
// Naming convention: namespace_subsystem_name
//   - namespace: conferences (application-level grouping)
//   - subsystem: bus, store, handler, backend, circuit_breaker, agent (feature-level grouping)
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BusQueueLength tracks the length of a bus-side queue, labeled by
	// direction (in/out) and envelope kind (request/response/event).
	BusQueueLength = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "conferences",
		Subsystem: "bus",
		Name:      "queue_length",
		Help:      "Current length of a bus queue by direction and kind",
	}, []string{"direction", "kind"})

	// StorePoolSize tracks the configured size of the store connection pool.
	StorePoolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "conferences",
		Subsystem: "store",
		Name:      "pool_size",
		Help:      "Configured size of the store connection pool",
	})

	// StorePoolIdle tracks the number of idle store connections.
	StorePoolIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "conferences",
		Subsystem: "store",
		Name:      "pool_idle",
		Help:      "Number of idle connections in the store pool",
	})

	// HandlerDuration tracks per-method handler latency.
	HandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "conferences",
		Subsystem: "handler",
		Name:      "duration_seconds",
		Help:      "Handler invocation duration by method",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	// InFlightRequests tracks the number of requests currently being handled.
	InFlightRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "conferences",
		Subsystem: "handler",
		Name:      "in_flight_requests",
		Help:      "Number of requests currently being dispatched",
	})

	// BackendReserveLoad tracks reserve load per backend.
	BackendReserveLoad = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "conferences",
		Subsystem: "backend",
		Name:      "reserve_load",
		Help:      "Agents pre-committed to a backend",
	}, []string{"backend_id"})

	// BackendAgentLoad tracks actual agent load per backend.
	BackendAgentLoad = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "conferences",
		Subsystem: "backend",
		Name:      "agent_load",
		Help:      "Agents currently bound to a backend",
	}, []string{"backend_id"})

	// BackendsOnline tracks the number of online backends.
	BackendsOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "conferences",
		Subsystem: "backend",
		Name:      "online_count",
		Help:      "Number of online backends",
	})

	// BackendsCapacityTotal tracks total capacity summed across backends.
	BackendsCapacityTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "conferences",
		Subsystem: "backend",
		Name:      "capacity_total",
		Help:      "Total capacity summed across online backends",
	})

	// ConnectedAgents tracks the number of agents with ready presence.
	ConnectedAgents = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "conferences",
		Subsystem: "agent",
		Name:      "connected_count",
		Help:      "Number of agents with ready presence across all rooms",
	})

	// CircuitBreakerState tracks circuit breaker state per wrapped service.
	// 0: Closed (healthy), 1: Open (tripped), 2: Half-Open (recovering).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "conferences",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of a circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks requests rejected by an open breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conferences",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by a circuit breaker",
	}, []string{"service"})
)

// ObserveCircuitBreakerState maps a gobreaker state name to the conventional
// 0/1/2 gauge value and records it for the given wrapped service.
func ObserveCircuitBreakerState(service string, stateName string) {
	var v float64
	switch stateName {
	case "closed":
		v = 0
	case "open":
		v = 1
	case "half-open":
		v = 2
	}
	CircuitBreakerState.WithLabelValues(service).Set(v)
}
