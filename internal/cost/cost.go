package cost

import (
	"math"

	"fleetroute/internal/model"
)

// Pure cost functions. These are the single source of truth for
// "which solution is better"; they never mutate their inputs.

// Infeasible is returned when a route references a location the
// matrix does not cover. Callers treat the candidate as unusable; the
// out-of-range access itself is a data-integrity fault, never clamped.
var Infeasible = math.Inf(1)

// StopPath sums the matrix cost of visiting stops in order, starting
// and ending at the depot (index 0).
func StopPath(stops []int, m model.Matrix) float64 {
	if len(stops) == 0 {
		return 0
	}
	total := 0.0
	last := 0
	for _, s := range stops {
		if last >= len(m) || s < 0 || s >= len(m[last]) {
			return Infeasible
		}
		total += m[last][s]
		last = s
	}
	if last >= len(m) || len(m[last]) == 0 {
		return Infeasible
	}
	return total + m[last][0]
}

// RouteDistance is the depot-to-depot distance of a route over its
// de-duplicated stop sequence.
func RouteDistance(route []model.Order, dist model.Matrix) float64 {
	return StopPath(model.Stops(route), dist)
}

// RouteMinutes is the depot-to-depot travel time of a route in
// minutes. Time matrices are stored in seconds.
func RouteMinutes(route []model.Order, times model.Matrix) float64 {
	p := StopPath(model.Stops(route), times)
	if math.IsInf(p, 1) {
		return Infeasible
	}
	return p / 60.0
}

// FleetMinutes sums RouteMinutes across all vehicles.
func FleetMinutes(routes model.Routes, times model.Matrix) float64 {
	total := 0.0
	for _, route := range routes {
		total += RouteMinutes(route, times)
	}
	return total
}

// FleetCost prices a full solution: a fixed cost per non-empty route
// plus a per-km variable cost over all route distances. Routes with an
// infeasible distance count as trucks used but contribute no distance,
// matching the warn-and-continue behavior expected of a long-running
// search.
func FleetCost(routes model.Routes, dist model.Matrix, fixedPerTruck, variablePerKm float64) (total float64, trucksUsed int, totalDistance float64) {
	for _, route := range routes {
		if len(route) == 0 {
			continue
		}
		trucksUsed++
		d := RouteDistance(route, dist)
		if !math.IsInf(d, 1) {
			totalDistance += d
		}
	}
	total = fixedPerTruck*float64(trucksUsed) + variablePerKm*totalDistance
	return total, trucksUsed, totalDistance
}
