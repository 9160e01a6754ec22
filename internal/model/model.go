package model

// Core domain types for the dispatch simulation.

// Order is a single delivery demand tied to one location. Several
// orders may share a location; they stay independently trackable.
type Order struct {
	ID       string `json:"id"`
	Location int    `json:"locationIndex"`
	Demand   int    `json:"demand"`
}

// Matrix is a square travel matrix. matrix[i][j] is the directed
// travel cost from location i to j; index 0 is the depot.
type Matrix [][]float64

// Routes maps a dense vehicle index to that vehicle's ordered order
// list. The vehicle set is static per run, so a slice, not a map.
type Routes [][]Order

// NewRoutes returns an empty route list for every vehicle.
func NewRoutes(numVehicles int) Routes {
	r := make(Routes, numVehicles)
	for i := range r {
		r[i] = []Order{}
	}
	return r
}

// Clone deep-copies the route set. Snapshots handed to optimizers must
// never alias live state.
func (r Routes) Clone() Routes {
	out := make(Routes, len(r))
	for i := range r {
		out[i] = append([]Order(nil), r[i]...)
	}
	return out
}

// CloneOrders copies a pending list.
func CloneOrders(orders []Order) []Order {
	return append([]Order(nil), orders...)
}

// Stops returns the de-duplicated location indices of a route,
// preserving first-visit order. Repeat visits to an already-included
// stop are free, so cost is computed over this sequence.
func Stops(route []Order) []int {
	seen := make(map[int]bool, len(route))
	stops := make([]int, 0, len(route))
	for _, o := range route {
		if !seen[o.Location] {
			seen[o.Location] = true
			stops = append(stops, o.Location)
		}
	}
	return stops
}

// Load sums the demand carried on a route.
func Load(route []Order) int {
	total := 0
	for _, o := range route {
		total += o.Demand
	}
	return total
}

// AssignedIDs collects the IDs of every order placed on any route.
func (r Routes) AssignedIDs() map[string]bool {
	ids := map[string]bool{}
	for _, route := range r {
		for _, o := range route {
			ids[o.ID] = true
		}
	}
	return ids
}

// CountAssigned returns the number of orders placed on any route.
func (r Routes) CountAssigned() int {
	n := 0
	for _, route := range r {
		n += len(route)
	}
	return n
}
