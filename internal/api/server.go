package api

import (
	"bufio"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetroute/internal/audit"
	"fleetroute/internal/buildinfo"
	"fleetroute/internal/history"
	"fleetroute/internal/metrics"
	"fleetroute/internal/model"
	"fleetroute/internal/orchestrator"
	"fleetroute/internal/state"
)

// Server exposes the fleet state, assignment history, and the audit
// event stream over HTTP.
type Server struct {
	Fleet  *state.Fleet
	Store  history.Store
	Broker audit.Broker
	Orch   *orchestrator.Orchestrator

	Times         model.Matrix
	Dist          model.Matrix
	FixedPerTruck float64
	VariablePerKm float64
}

// Handler builds the full route table with logging and metrics
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, buildinfo.Info())
	})

	mux.HandleFunc("/v1/fleet", s.FleetHandler)
	mux.HandleFunc("/v1/optimize", s.OptimizeHandler)
	mux.HandleFunc("/v1/history/assignments", s.AssignmentsHandler)
	mux.HandleFunc("/v1/history/cycles", s.CyclesHandler)

	mux.HandleFunc("/v1/events/stream", s.EventStreamHandler)
	mux.HandleFunc("/v1/events/ws", s.EventWSHandler)

	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return logMiddleware(mux)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)
		status := strconv.Itoa(rec.code)
		metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(dur.Seconds())
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps WebSocket upgrades working through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}
