package alns

import (
	"math/rand"

	"fleetroute/internal/assign"
	"fleetroute/internal/model"
)

// Operator sets are slices so new destroy/repair heuristics slot in
// without touching the engine.

type destroyOp struct {
	name  string
	apply func(s *solution, in Input, p Params, rng *rand.Rand) []model.Order
}

type repairOp struct {
	name  string
	apply func(s *solution, bank []model.Order, in Input, rng *rand.Rand)
}

func destroyOperators() []destroyOp {
	return []destroyOp{{name: "random", apply: destroyRandom}}
}

func repairOperators() []repairOp {
	return []repairOp{{name: "greedy", apply: repairGreedy}}
}

// destroyRandom removes a random fraction of the assigned orders into
// the request bank. The fraction is drawn per iteration from the
// configured range; at least one order is removed whenever any is
// assigned.
func destroyRandom(s *solution, in Input, p Params, rng *rand.Rand) []model.Order {
	type slot struct{ vehicle, pos int }
	var slots []slot
	for v, route := range s.routes {
		for i := range route {
			slots = append(slots, slot{v, i})
		}
	}
	if len(slots) == 0 {
		return nil
	}

	frac := p.DestroyMinPct + rng.Float64()*(p.DestroyMaxPct-p.DestroyMinPct)
	k := int(frac * float64(len(slots)))
	if k < 1 {
		k = 1
	}
	if k > len(slots) {
		k = len(slots)
	}

	rng.Shuffle(len(slots), func(i, j int) { slots[i], slots[j] = slots[j], slots[i] })
	picked := slots[:k]

	removed := make(map[int]map[int]bool, len(picked))
	bank := make([]model.Order, 0, k)
	for _, sl := range picked {
		if removed[sl.vehicle] == nil {
			removed[sl.vehicle] = map[int]bool{}
		}
		removed[sl.vehicle][sl.pos] = true
		bank = append(bank, s.routes[sl.vehicle][sl.pos])
	}
	for v, route := range s.routes {
		if removed[v] == nil {
			continue
		}
		kept := route[:0:0]
		for i, o := range route {
			if !removed[v][i] {
				kept = append(kept, o)
			}
		}
		s.routes[v] = kept
	}
	return bank
}

// repairGreedy shuffles the bank and reinserts each order by the Layer
// 1 best-insertion rule; orders with no feasible slot stay unassigned.
func repairGreedy(s *solution, bank []model.Order, in Input, rng *rand.Rand) {
	rng.Shuffle(len(bank), func(i, j int) { bank[i], bank[j] = bank[j], bank[i] })
	repairSolution(s, bank, in, rng)
}

func repairSolution(s *solution, bank []model.Order, in Input, _ *rand.Rand) {
	for _, o := range bank {
		routes, _, ok := assign.InsertBest(o, s.routes, in.Times, in.VehicleCapacity, in.MaxRouteMinutes)
		if ok {
			s.routes = routes
		} else {
			s.unassigned = append(s.unassigned, o)
		}
	}
}
