package state

import (
	"sync"

	"fleetroute/internal/model"
)

// Fleet is the shared assignment state. A single mutex guards routes,
// the pending bank, and the generation counter; long computations work
// on a Snapshot and commit back through the generation guard.
type Fleet struct {
	mu         sync.Mutex
	routes     model.Routes
	pending    []model.Order
	generation uint64
}

// Snapshot is a deep copy of the fleet taken at one generation. Solvers
// may mutate it freely without holding the lock.
type Snapshot struct {
	Routes     model.Routes
	Pending    []model.Order
	Generation uint64
}

func NewFleet(numVehicles int) *Fleet {
	return &Fleet{routes: model.NewRoutes(numVehicles)}
}

func (f *Fleet) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{
		Routes:     f.routes.Clone(),
		Pending:    model.CloneOrders(f.pending),
		Generation: f.generation,
	}
}

// AddPending appends a newly arrived order to the pending bank.
func (f *Fleet) AddPending(o model.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, o)
}

// Pending returns a copy of the current pending bank.
func (f *Fleet) Pending() []model.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.CloneOrders(f.pending)
}

// CommitAssignment installs a Layer 1 result computed against the
// snapshot generation gen. If the fleet moved on since the snapshot the
// commit is dropped and the order stays pending; the caller retries on
// a later sweep. On success the order is removed from pending and the
// generation advances.
func (f *Fleet) CommitAssignment(gen uint64, orderID string, routes model.Routes) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		return false
	}
	f.routes = routes.Clone()
	f.pending = dropOrder(f.pending, orderID)
	f.generation++
	return true
}

// CommitPlan installs an optimizer result unconditionally and then
// reconciles: the committed routes are authoritative for membership,
// and every order the fleet knew about that is absent from them lands
// in pending exactly once. Orders that arrived while the optimizer ran
// are preserved this way rather than lost.
func (f *Fleet) CommitPlan(routes model.Routes, unassigned []model.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()

	known := model.CloneOrders(f.pending)
	for _, route := range f.routes {
		known = append(known, route...)
	}
	known = append(known, model.CloneOrders(unassigned)...)

	committed := routes.Clone()
	routed := committed.AssignedIDs()

	var pending []model.Order
	seen := map[string]bool{}
	for _, o := range known {
		if routed[o.ID] || seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		pending = append(pending, o)
	}

	f.routes = committed
	f.pending = pending
	f.generation++
}

func dropOrder(orders []model.Order, id string) []model.Order {
	out := orders[:0]
	for _, o := range orders {
		if o.ID != id {
			out = append(out, o)
		}
	}
	return out
}
