package assign

import (
	"fleetroute/internal/cost"
	"fleetroute/internal/model"
)

// Layer 1: immediate assignment of one incoming order. A greedy probe
// across every feasible vehicle and insertion position, then a bounded
// tabu-search refinement of the whole solution.

// Method labels the path that produced the returned solution. The
// caller feeds it into the assignment audit log.
type Method string

const (
	MethodBestInsertion Method = "best insertion"
	MethodNewVehicle    Method = "new vehicle"
	MethodTabuSearch    Method = "tabu search"
	MethodFailed        Method = "failed"
)

type Config struct {
	VehicleCapacity int
	MaxRouteMinutes float64
	TabuIterations  int
	TabuTenure      int

	// Minimum fleet-minutes gain before a tabu result replaces the
	// greedy one.
	ImprovementThreshold float64
}

// Assign places one order into a copy of routes. It returns the new
// route set, the method used, and whether placement succeeded. On
// failure the input routes are untouched and the order stays pending.
func Assign(order model.Order, routes model.Routes, times model.Matrix, cfg Config) (model.Routes, Method, bool) {
	greedy, method, ok := greedyInsert(order, routes, times, cfg)
	if !ok {
		return nil, MethodFailed, false
	}
	greedyCost := cost.FleetMinutes(greedy, times)

	refined, refinedCost := tabuSearch(greedy, times, cfg)
	if refined != nil && refinedCost < greedyCost-cfg.ImprovementThreshold {
		return refined, MethodTabuSearch, true
	}
	return greedy, method, true
}

func greedyInsert(order model.Order, routes model.Routes, times model.Matrix, cfg Config) (model.Routes, Method, bool) {
	return InsertBest(order, routes, times, cfg.VehicleCapacity, cfg.MaxRouteMinutes)
}

// InsertBest tries every position of every capacity-feasible vehicle
// and keeps the cheapest duration-feasible insertion; failing that, it
// opens the first empty vehicle. The ALNS repair operator reuses this
// as its insertion rule.
func InsertBest(order model.Order, routes model.Routes, times model.Matrix, capacity int, maxMinutes float64) (model.Routes, Method, bool) {
	bestIncrease := cost.Infeasible
	bestVehicle, bestPos := -1, -1

	for v, route := range routes {
		// Empty vehicles are not insertion targets; opening one is the
		// fallback below and carries its own method label.
		if len(route) == 0 {
			continue
		}
		if model.Load(route)+order.Demand > capacity {
			continue
		}
		original := cost.StopPath(model.Stops(route), times)
		for pos := 0; pos <= len(route); pos++ {
			candidate := insertAt(route, order, pos)
			path := cost.StopPath(model.Stops(candidate), times)
			if path/60.0 > maxMinutes {
				continue
			}
			if increase := path - original; increase < bestIncrease {
				bestIncrease = increase
				bestVehicle, bestPos = v, pos
			}
		}
	}

	if bestVehicle >= 0 {
		out := routes.Clone()
		out[bestVehicle] = insertAt(out[bestVehicle], order, bestPos)
		return out, MethodBestInsertion, true
	}

	// No insertion fits; open a currently-empty vehicle.
	solo := cost.StopPath([]int{order.Location}, times)
	if order.Demand <= capacity && solo/60.0 <= maxMinutes {
		for v, route := range routes {
			if len(route) == 0 {
				out := routes.Clone()
				out[v] = []model.Order{order}
				return out, MethodNewVehicle, true
			}
		}
	}
	return nil, MethodFailed, false
}

func insertAt(route []model.Order, order model.Order, pos int) []model.Order {
	out := make([]model.Order, 0, len(route)+1)
	out = append(out, route[:pos]...)
	out = append(out, order)
	out = append(out, route[pos:]...)
	return out
}
