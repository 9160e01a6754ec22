package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"fleetroute/internal/alns"
	"fleetroute/internal/batch"
	"fleetroute/internal/cost"
	"fleetroute/internal/model"
	"fleetroute/internal/state"
)

type scriptedSolver struct {
	resp batch.Response
	err  error
}

func (s *scriptedSolver) Solve(_ context.Context, _ batch.Request) (batch.Response, error) {
	return s.resp, s.err
}

func testMatrix(n int) model.Matrix {
	m := make(model.Matrix, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			if i != j {
				m[i][j] = 300
			}
		}
	}
	return m
}

func testConfig() Config {
	return Config{
		Interval:        50 * time.Millisecond,
		NumVehicles:     3,
		VehicleCapacity: 20,
		MaxRouteMinutes: 200,
		FixedPerTruck:   5000,
		VariablePerKm:   15,
		ALNS: alns.Params{
			Iterations:         120,
			SegmentLength:      30,
			ReactionFactor:     0.2,
			TempStart:          1000,
			TempEnd:            1,
			Cooling:            0.98,
			DestroyMinPct:      0.15,
			DestroyMaxPct:      0.4,
			ScoreNewBest:       33,
			ScoreBetter:        9,
			ScoreWorseAccepted: 13,
			UnassignedPenalty:  2,
		},
		Seed: 7,
	}
}

func TestPickPrefersCheaper(t *testing.T) {
	a := candidate{cost: 100}
	b := candidate{cost: 200}
	if winner, _ := pick(a, b); winner != WinnerALNS {
		t.Fatalf("winner = %s", winner)
	}
	if winner, _ := pick(candidate{cost: 300}, candidate{cost: 200}); winner != WinnerBatch {
		t.Fatalf("winner = %s", winner)
	}
}

func TestPickTieBreaksOnUnassigned(t *testing.T) {
	a := candidate{cost: 100, unassigned: []model.Order{{ID: "x"}}}
	b := candidate{cost: 100}
	if winner, _ := pick(a, b); winner != WinnerBatch {
		t.Fatal("tie should go to the candidate with fewer unassigned")
	}
	// Full tie goes to the local engine.
	if winner, _ := pick(candidate{cost: 100}, candidate{cost: 100}); winner != WinnerALNS {
		t.Fatal("full tie should go to alns")
	}
}

func TestPickComparesFleetCostNotCoverage(t *testing.T) {
	// The cheaper plan wins even when it strands more orders; the
	// stranded count only breaks exact ties.
	lean := candidate{cost: 5030, unassigned: []model.Order{{ID: "x"}, {ID: "y"}}}
	full := candidate{cost: 15090}
	winner, chosen := pick(full, lean)
	if winner != WinnerBatch {
		t.Fatalf("winner = %s, want batch at fleet cost 5030 vs 15090", winner)
	}
	if len(chosen.unassigned) != 2 {
		t.Fatalf("chosen = %+v, want the lean plan", chosen)
	}
}

func TestPlanCostIsRawFleetCost(t *testing.T) {
	o := New(testConfig(), state.NewFleet(2), testMatrix(3), testMatrix(3), nil, nil, nil)
	routes := model.NewRoutes(2)
	routes[0] = []model.Order{{ID: "a", Location: 1, Demand: 1}}
	want, _, _ := cost.FleetCost(routes, testMatrix(3), 5000, 15)
	if got := o.planCost(routes); got != want {
		t.Fatalf("planCost = %v, want %v with no unassigned term", got, want)
	}
}

func TestPickDisqualifiesFailures(t *testing.T) {
	bad := candidate{cost: math.Inf(1), err: errors.New("down")}
	good := candidate{cost: 500}
	if winner, _ := pick(bad, good); winner != WinnerBatch {
		t.Fatal("failed alns should lose to batch")
	}
	if winner, _ := pick(good, bad); winner != WinnerALNS {
		t.Fatal("failed batch should lose to alns")
	}
	if winner, _ := pick(bad, bad); winner != WinnerNone {
		t.Fatal("two failures should produce no winner")
	}
}

func TestRunCycleConsolidatesFragmentedFleet(t *testing.T) {
	fleet := state.NewFleet(3)
	// Three orders at the same location spread over three vehicles:
	// either layer should consolidate them onto one truck.
	for v := 0; v < 3; v++ {
		snap := fleet.Snapshot()
		routes := snap.Routes.Clone()
		routes[v] = append(routes[v], model.Order{ID: string(rune('a' + v)), Location: 1, Demand: 5})
		fleet.CommitPlan(routes, nil)
	}

	// Pool is built pending-first then routes in vehicle order, so
	// solver locations 1..3 map onto the three routed orders.
	solver := &scriptedSolver{resp: batch.Response{Routes: [][]int{{1, 2, 3}}}}
	cfg := testConfig()
	cfg.ALNS.Iterations = 0 // initial incremental solution only
	o := New(cfg, fleet, testMatrix(4), testMatrix(4), solver, nil, nil)

	o.RunCycle(context.Background(), false)

	after := fleet.Snapshot()
	if got := after.Routes.CountAssigned(); got != 3 {
		t.Fatalf("assigned = %d, want 3", got)
	}
	used := 0
	for _, r := range after.Routes {
		if len(r) > 0 {
			used++
		}
	}
	if used != 1 {
		t.Fatalf("trucks used = %d, want consolidated onto 1", used)
	}
	if len(after.Pending) != 0 {
		t.Fatalf("pending = %v", after.Pending)
	}
}

func TestRunCycleKeepsInfeasibleOrderPending(t *testing.T) {
	fleet := state.NewFleet(1)
	fleet.AddPending(model.Order{ID: "a", Location: 1, Demand: 50}) // over capacity everywhere

	// The batch layer is down; the local engine still produces a
	// (fully unassigned) candidate and the order survives the commit.
	solver := &scriptedSolver{err: errors.New("unreachable")}
	o := New(testConfig(), fleet, testMatrix(2), testMatrix(2), solver, nil, nil)

	o.RunCycle(context.Background(), false)
	after := fleet.Snapshot()

	if after.Routes.CountAssigned() != 0 {
		t.Fatalf("routes = %v, order cannot fit anywhere", after.Routes)
	}
	if len(after.Pending) != 1 || after.Pending[0].ID != "a" {
		t.Fatalf("pending = %v, want the order preserved", after.Pending)
	}
}

func TestRunCycleEmptyFleetSkips(t *testing.T) {
	fleet := state.NewFleet(2)
	o := New(testConfig(), fleet, testMatrix(2), testMatrix(2), nil, nil, nil)
	o.RunCycle(context.Background(), false)
	if fleet.Snapshot().Generation != 0 {
		t.Fatal("empty cycle must not commit")
	}
}

func TestRunCycleSerializesConcurrentCallers(t *testing.T) {
	// The ticker loop and the on-demand optimize endpoint can request a
	// cycle at the same time; both must go through without corrupting
	// the shared rng or the committed plan.
	fleet := state.NewFleet(3)
	for i := 0; i < 6; i++ {
		fleet.AddPending(model.Order{ID: fmt.Sprintf("o%d", i), Location: i + 1, Demand: 2})
	}
	o := New(testConfig(), fleet, testMatrix(8), testMatrix(8), nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.RunCycle(context.Background(), false)
		}()
	}
	wg.Wait()

	after := fleet.Snapshot()
	seen := make(map[string]int)
	for _, r := range after.Routes {
		for _, ord := range r {
			seen[ord.ID]++
		}
	}
	for _, ord := range after.Pending {
		seen[ord.ID]++
	}
	if len(seen) != 6 {
		t.Fatalf("orders tracked = %d, want 6", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("order %s appears %d times", id, n)
		}
	}
}

func TestStopRunsFinalCycleThenClosesDone(t *testing.T) {
	fleet := state.NewFleet(2)
	fleet.AddPending(model.Order{ID: "late", Location: 1, Demand: 5})

	cfg := testConfig()
	cfg.Interval = time.Hour // only the final cycle can fire
	o := New(cfg, fleet, testMatrix(2), testMatrix(2), nil, nil, nil)

	go o.Run(context.Background())
	o.Stop()

	select {
	case <-o.Done:
	case <-time.After(5 * time.Second):
		t.Fatal("Done did not close after Stop")
	}
	after := fleet.Snapshot()
	if after.Routes.CountAssigned() != 1 || len(after.Pending) != 0 {
		t.Fatalf("final cycle did not place the late order: routes=%v pending=%v", after.Routes, after.Pending)
	}
}
