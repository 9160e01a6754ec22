package api

import (
	"net/http"
	"strconv"
	"time"

	"fleetroute/internal/cost"
	"fleetroute/internal/model"
)

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if s.Store != nil {
		if _, err := s.Store.ListCycles(r.Context(), 1); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Store unavailable", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type routeView struct {
	Vehicle int           `json:"vehicle"`
	Orders  []model.Order `json:"orders"`
	Load    int           `json:"load"`
	Minutes float64       `json:"minutes"`
}

type fleetView struct {
	Generation uint64        `json:"generation"`
	Routes     []routeView   `json:"routes"`
	Pending    []model.Order `json:"pending"`
	Cost       float64       `json:"cost"`
	TrucksUsed int           `json:"trucksUsed"`
	DistanceKm float64       `json:"distanceKm"`
}

// FleetHandler returns the current committed solution and pending bank.
func (s *Server) FleetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "Method not allowed", "", r.URL.Path)
		return
	}
	snap := s.Fleet.Snapshot()
	total, trucks, dist := cost.FleetCost(snap.Routes, s.Dist, s.FixedPerTruck, s.VariablePerKm)

	views := make([]routeView, len(snap.Routes))
	for v, route := range snap.Routes {
		views[v] = routeView{
			Vehicle: v,
			Orders:  route,
			Load:    model.Load(route),
			Minutes: cost.RouteMinutes(route, s.Times),
		}
	}
	writeJSON(w, http.StatusOK, fleetView{
		Generation: snap.Generation,
		Routes:     views,
		Pending:    snap.Pending,
		Cost:       total,
		TrucksUsed: trucks,
		DistanceKm: dist,
	})
}

// OptimizeHandler triggers one optimization cycle immediately.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, http.StatusMethodNotAllowed, "Method not allowed", "", r.URL.Path)
		return
	}
	if s.Orch == nil {
		writeProblem(w, http.StatusServiceUnavailable, "Optimizer not running", "", r.URL.Path)
		return
	}
	start := time.Now()
	s.Orch.RunCycle(r.Context(), false)
	snap := s.Fleet.Snapshot()
	total, trucks, dist := cost.FleetCost(snap.Routes, s.Dist, s.FixedPerTruck, s.VariablePerKm)
	writeJSON(w, http.StatusOK, map[string]any{
		"tookMs":     time.Since(start).Milliseconds(),
		"cost":       total,
		"trucksUsed": trucks,
		"distanceKm": dist,
		"pending":    len(snap.Pending),
	})
}

func (s *Server) AssignmentsHandler(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeProblem(w, http.StatusServiceUnavailable, "History store not configured", "", r.URL.Path)
		return
	}
	items, err := s.Store.ListAssignments(r.Context(), queryLimit(r))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "History query failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) CyclesHandler(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeProblem(w, http.StatusServiceUnavailable, "History store not configured", "", r.URL.Path)
		return
	}
	items, err := s.Store.ListCycles(r.Context(), queryLimit(r))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "History query failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func queryLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 100
}
