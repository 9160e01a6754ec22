package alns

import (
	"math"
	"math/rand"

	"fleetroute/internal/cost"
	"fleetroute/internal/model"
)

// Layer 3: Adaptive Large Neighborhood Search. Destroy part of the
// solution into a request bank, repair it, adaptively favor operators
// that earned better scores, accept worse moves by simulated
// annealing, and return the best solution ever seen.

type Params struct {
	Iterations     int
	SegmentLength  int
	ReactionFactor float64

	TempStart float64
	TempEnd   float64
	Cooling   float64

	DestroyMinPct float64
	DestroyMaxPct float64

	ScoreNewBest       float64
	ScoreBetter        float64
	ScoreWorseAccepted float64

	// Multiplier on the fixed truck cost charged per unassigned
	// order, so the search strongly prefers full coverage.
	UnassignedPenalty float64
}

type Input struct {
	Routes  model.Routes
	Pending []model.Order

	Times model.Matrix
	Dist  model.Matrix

	NumVehicles       int
	VehicleCapacity   int
	MaxRouteMinutes   float64
	FixedCostPerTruck float64
	VariableCostPerKm float64
}

type Result struct {
	Routes     model.Routes
	Unassigned []model.Order
	Metrics    Metrics
}

type Metrics struct {
	Iterations       int
	Improvements     int
	AcceptedWorse    int
	InitialObjective float64
	BestObjective    float64
	DestroySelects   []int
	RepairSelects    []int
	Snapshots        []WeightSnapshot
}

type WeightSnapshot struct {
	Iteration int
	Destroy   []float64
	Repair    []float64
}

type solution struct {
	routes     model.Routes
	unassigned []model.Order
}

func (s solution) clone() solution {
	return solution{routes: s.routes.Clone(), unassigned: model.CloneOrders(s.unassigned)}
}

func objective(s solution, in Input, p Params) float64 {
	fleet, _, _ := cost.FleetCost(s.routes, in.Dist, in.FixedCostPerTruck, in.VariableCostPerKm)
	return fleet + float64(len(s.unassigned))*in.FixedCostPerTruck*p.UnassignedPenalty
}

// Run executes the search over a snapshot. The snapshot is never
// mutated; the caller owns committing the result.
func Run(in Input, p Params, rng *rand.Rand) Result {
	destroyOps := destroyOperators()
	repairOps := repairOperators()

	curr := initialSolution(in, rng)
	best := curr.clone()
	currObj := objective(curr, in, p)
	bestObj := currObj

	m := Metrics{
		InitialObjective: currObj,
		BestObjective:    bestObj,
		DestroySelects:   make([]int, len(destroyOps)),
		RepairSelects:    make([]int, len(repairOps)),
	}

	destroyW := equalWeights(len(destroyOps))
	repairW := equalWeights(len(repairOps))
	destroySeg := newSegment(len(destroyOps))
	repairSeg := newSegment(len(repairOps))

	temp := p.TempStart
	for iter := 0; iter < p.Iterations; iter++ {
		m.Iterations++

		if p.SegmentLength > 0 && iter > 0 && iter%p.SegmentLength == 0 {
			destroySeg.fold(destroyW, p.ReactionFactor)
			repairSeg.fold(repairW, p.ReactionFactor)
			m.Snapshots = append(m.Snapshots, WeightSnapshot{
				Iteration: iter,
				Destroy:   append([]float64(nil), destroyW...),
				Repair:    append([]float64(nil), repairW...),
			})
		}

		if curr.routes.CountAssigned() == 0 {
			temp = coolDown(temp, p)
			continue // nothing to destroy
		}

		di := selectOp(destroyW, rng)
		ri := selectOp(repairW, rng)
		m.DestroySelects[di]++
		m.RepairSelects[ri]++
		destroySeg.used(di)
		repairSeg.used(ri)

		cand := curr.clone()
		bank := destroyOps[di].apply(&cand, in, p, rng)
		if len(bank) == 0 {
			temp = coolDown(temp, p)
			continue // nothing to repair
		}
		repairOps[ri].apply(&cand, bank, in, rng)

		candObj := objective(cand, in, p)
		delta := candObj - currObj
		switch {
		case delta < 0:
			curr, currObj = cand, candObj
			if candObj < bestObj {
				best = cand.clone()
				bestObj = candObj
				m.Improvements++
				destroySeg.score(di, p.ScoreNewBest)
				repairSeg.score(ri, p.ScoreNewBest)
			} else {
				destroySeg.score(di, p.ScoreBetter)
				repairSeg.score(ri, p.ScoreBetter)
			}
		case temp > p.TempEnd && rng.Float64() < math.Exp(-delta/temp):
			curr, currObj = cand, candObj
			m.AcceptedWorse++
			destroySeg.score(di, p.ScoreWorseAccepted)
			repairSeg.score(ri, p.ScoreWorseAccepted)
		}
		temp = coolDown(temp, p)
	}

	m.BestObjective = bestObj
	return Result{Routes: best.routes, Unassigned: best.unassigned, Metrics: m}
}

func coolDown(temp float64, p Params) float64 {
	temp *= p.Cooling
	if temp < p.TempEnd {
		temp = p.TempEnd
	}
	return temp
}

// initialSolution rebuilds every order (routed and pending) into empty
// vehicles from scratch, unless that leaves more orders uncovered than
// repairing only the pending set into the existing routes.
func initialSolution(in Input, rng *rand.Rand) solution {
	pool := model.CloneOrders(in.Pending)
	for _, route := range in.Routes {
		pool = append(pool, route...)
	}

	scratch := solution{routes: model.NewRoutes(in.NumVehicles)}
	repairSolution(&scratch, pool, in, rng)

	incremental := solution{routes: in.Routes.Clone()}
	repairSolution(&incremental, model.CloneOrders(in.Pending), in, rng)

	if len(scratch.unassigned) > len(incremental.unassigned) {
		return incremental
	}
	return scratch
}

func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

// segment accumulates per-operator scores until the weights fold them
// in as an exponential moving average.
type segment struct {
	scores []float64
	uses   []int
}

func newSegment(n int) *segment {
	return &segment{scores: make([]float64, n), uses: make([]int, n)}
}

func (s *segment) used(i int)             { s.uses[i]++ }
func (s *segment) score(i int, v float64) { s.scores[i] += v }

func (s *segment) fold(weights []float64, reaction float64) {
	for i := range weights {
		if s.uses[i] == 0 {
			continue
		}
		avg := s.scores[i] / float64(s.uses[i])
		weights[i] = (1-reaction)*weights[i] + reaction*avg
		s.scores[i] = 0
		s.uses[i] = 0
	}
}
