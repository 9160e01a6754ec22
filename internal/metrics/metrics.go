package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// OrdersReceived counts orders entering the live loop
	OrdersReceived = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "orders_received_total", Help: "Orders received from the arrival feed."},
	)
	// Assignments counts real-time assignment outcomes by method
	Assignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "assignments_total", Help: "Real-time assignments by method."},
		[]string{"method"},
	)
	// Cycles counts optimization cycles by winning layer
	Cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimization_cycles_total", Help: "Optimization cycles by winner."},
		[]string{"winner"},
	)
	// FleetCost tracks the cost of the committed solution
	FleetCost = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "fleet_cost", Help: "Cost of the committed fleet solution."},
	)
	// PendingOrders tracks the size of the pending bank
	PendingOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "pending_orders", Help: "Orders waiting for assignment."},
	)
	// SolverRuntime tracks per-layer optimization runtimes in seconds
	SolverRuntime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "solver_runtime_seconds", Help: "Optimization runtime per layer.", Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}},
		[]string{"layer"},
	)
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(OrdersReceived)
		Registry.MustRegister(Assignments)
		Registry.MustRegister(Cycles)
		Registry.MustRegister(FleetCost)
		Registry.MustRegister(PendingOrders)
		Registry.MustRegister(SolverRuntime)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
