package batch

import (
	"context"
	"fmt"

	"fleetroute/internal/model"
)

// Layer 2 boundary. The batch solver is an opaque capacitated-VRP
// engine; this package owns only the translation between Order objects
// and the solver's index space. In that space index 0 is the depot and
// every individually-tracked order is its own location, so aggregate
// demand at one physical address can spread across several vehicles.

type Request struct {
	// TimeMatrix[i][j] is directed travel time in seconds between
	// solver locations.
	TimeMatrix          [][]float64 `json:"timeMatrix"`
	Demands             []int       `json:"demands"`
	VehicleCapacities   []int       `json:"vehicleCapacities"`
	VehicleMaxDurations []int       `json:"vehicleMaxDurationsSec"`
	NumVehicles         int         `json:"numVehicles"`
}

type Response struct {
	// Routes[v] is the ordered solver-location route of vehicle v,
	// depot excluded.
	Routes [][]int `json:"routes"`
	// Unassigned lists solver locations the engine could not place.
	Unassigned []int `json:"unassigned"`
}

// Solver is the opaque Layer 2 engine.
type Solver interface {
	Solve(ctx context.Context, req Request) (Response, error)
}

// Plan runs the solver over the combined order pool of a snapshot and
// translates the result back into routes plus unassigned orders. A
// solver error or a malformed pool degrades to "everything unassigned
// for this call"; the orchestrator disqualifies such a candidate by
// cost.
func Plan(ctx context.Context, solver Solver, routes model.Routes, pending []model.Order, times model.Matrix, numVehicles, capacity int, maxRouteMinutes float64) (model.Routes, []model.Order, error) {
	pool := model.CloneOrders(pending)
	for _, route := range routes {
		pool = append(pool, route...)
	}
	if len(pool) == 0 {
		return model.NewRoutes(numVehicles), nil, nil
	}

	req, err := buildRequest(pool, times, numVehicles, capacity, maxRouteMinutes)
	if err != nil {
		return nil, model.CloneOrders(pool), err
	}
	resp, err := solver.Solve(ctx, req)
	if err != nil {
		return nil, model.CloneOrders(pool), err
	}
	planned, unassigned := parseResponse(resp, pool, numVehicles)
	return planned, unassigned, nil
}

// buildRequest maps order i of the pool to solver location i+1 and
// projects the master time matrix into that space. Orders referencing
// locations outside the matrix make the pool untranslatable.
func buildRequest(pool []model.Order, times model.Matrix, numVehicles, capacity int, maxRouteMinutes float64) (Request, error) {
	for _, o := range pool {
		if o.Location < 0 || o.Location >= len(times) {
			return Request{}, fmt.Errorf("order %s: location %d outside matrix of %d", o.ID, o.Location, len(times))
		}
	}

	n := len(pool) + 1
	tm := make([][]float64, n)
	for i := range tm {
		tm[i] = make([]float64, n)
		for j := range tm[i] {
			if i == j {
				continue
			}
			from, to := 0, 0
			if i > 0 {
				from = pool[i-1].Location
			}
			if j > 0 {
				to = pool[j-1].Location
			}
			tm[i][j] = times[from][to]
		}
	}

	demands := make([]int, n)
	for i, o := range pool {
		demands[i+1] = o.Demand
	}
	caps := make([]int, numVehicles)
	durs := make([]int, numVehicles)
	for v := 0; v < numVehicles; v++ {
		caps[v] = capacity
		durs[v] = int(maxRouteMinutes * 60)
	}
	return Request{TimeMatrix: tm, Demands: demands, VehicleCapacities: caps, VehicleMaxDurations: durs, NumVehicles: numVehicles}, nil
}

// parseResponse converts solver locations back to orders. Orders the
// solver neither routed nor reported are swept into the unassigned
// list, de-duplicated by ID.
func parseResponse(resp Response, pool []model.Order, numVehicles int) (model.Routes, []model.Order) {
	planned := model.NewRoutes(numVehicles)
	placed := make(map[int]bool, len(pool))

	for v, route := range resp.Routes {
		if v >= numVehicles {
			break
		}
		for _, loc := range route {
			if loc < 1 || loc > len(pool) {
				continue
			}
			planned[v] = append(planned[v], pool[loc-1])
			placed[loc] = true
		}
	}

	var unassigned []model.Order
	seen := map[string]bool{}
	keep := func(o model.Order) {
		if !seen[o.ID] {
			seen[o.ID] = true
			unassigned = append(unassigned, o)
		}
	}
	for _, loc := range resp.Unassigned {
		if loc >= 1 && loc <= len(pool) {
			keep(pool[loc-1])
			placed[loc] = true
		}
	}
	for i, o := range pool {
		if !placed[i+1] {
			keep(o)
		}
	}
	return planned, unassigned
}
