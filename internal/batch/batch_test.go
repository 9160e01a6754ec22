package batch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleetroute/internal/model"
)

type fakeSolver struct {
	resp Response
	err  error
	last Request
}

func (f *fakeSolver) Solve(_ context.Context, req Request) (Response, error) {
	f.last = req
	return f.resp, f.err
}

func testMatrix() model.Matrix {
	m := make(model.Matrix, 5)
	for i := range m {
		m[i] = make([]float64, 5)
		for j := range m[i] {
			if i != j {
				m[i][j] = float64(60 * (1 + (i+j)%4))
			}
		}
	}
	return m
}

func TestBuildRequestIndexSpace(t *testing.T) {
	pool := []model.Order{
		{ID: "a", Location: 3, Demand: 4},
		{ID: "b", Location: 1, Demand: 2},
	}
	req, err := buildRequest(pool, testMatrix(), 2, 20, 200)
	if err != nil {
		t.Fatalf("buildRequest: %v", err)
	}

	if len(req.TimeMatrix) != 3 {
		t.Fatalf("matrix size = %d, want 3", len(req.TimeMatrix))
	}
	m := testMatrix()
	if req.TimeMatrix[0][1] != m[0][3] {
		t.Fatalf("depot->a = %v, want %v", req.TimeMatrix[0][1], m[0][3])
	}
	if req.TimeMatrix[1][2] != m[3][1] {
		t.Fatalf("a->b = %v, want %v", req.TimeMatrix[1][2], m[3][1])
	}
	if req.Demands[0] != 0 || req.Demands[1] != 4 || req.Demands[2] != 2 {
		t.Fatalf("demands = %v", req.Demands)
	}
	if len(req.VehicleCapacities) != 2 || req.VehicleCapacities[0] != 20 {
		t.Fatalf("capacities = %v", req.VehicleCapacities)
	}
	if req.VehicleMaxDurations[1] != 200*60 {
		t.Fatalf("max durations = %v", req.VehicleMaxDurations)
	}
}

func TestPlanTranslatesRoutesBack(t *testing.T) {
	routes := model.NewRoutes(2)
	routes[0] = []model.Order{{ID: "a", Location: 1, Demand: 5}}
	pending := []model.Order{{ID: "b", Location: 2, Demand: 5}}

	// Pool order is pending first, then routed: b=1, a=2.
	solver := &fakeSolver{resp: Response{Routes: [][]int{{2}, {1}}}}
	planned, unassigned, err := Plan(context.Background(), solver, routes, pending, testMatrix(), 2, 20, 200)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(unassigned) != 0 {
		t.Fatalf("unassigned = %v, want none", unassigned)
	}
	if len(planned[0]) != 1 || planned[0][0].ID != "a" {
		t.Fatalf("vehicle 0 = %v, want [a]", planned[0])
	}
	if len(planned[1]) != 1 || planned[1][0].ID != "b" {
		t.Fatalf("vehicle 1 = %v, want [b]", planned[1])
	}
}

func TestPlanSweepsMissingOrders(t *testing.T) {
	pending := []model.Order{
		{ID: "a", Location: 1, Demand: 5},
		{ID: "b", Location: 2, Demand: 5},
		{ID: "c", Location: 3, Demand: 5},
	}
	// Solver routes a, reports b unassigned, and forgets c entirely.
	solver := &fakeSolver{resp: Response{Routes: [][]int{{1}}, Unassigned: []int{2, 2}}}
	planned, unassigned, err := Plan(context.Background(), solver, model.NewRoutes(2), pending, testMatrix(), 2, 20, 200)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got := planned.CountAssigned(); got != 1 {
		t.Fatalf("assigned = %d, want 1", got)
	}
	if len(unassigned) != 2 {
		t.Fatalf("unassigned = %v, want b and c once each", unassigned)
	}
	ids := map[string]bool{}
	for _, o := range unassigned {
		ids[o.ID] = true
	}
	if !ids["b"] || !ids["c"] {
		t.Fatalf("unassigned ids = %v", ids)
	}
}

func TestPlanSolverErrorReturnsPool(t *testing.T) {
	routes := model.NewRoutes(1)
	routes[0] = []model.Order{{ID: "a", Location: 1, Demand: 5}}
	pending := []model.Order{{ID: "b", Location: 2, Demand: 5}}

	solver := &fakeSolver{err: errors.New("boom")}
	_, unassigned, err := Plan(context.Background(), solver, routes, pending, testMatrix(), 1, 20, 200)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(unassigned) != 2 {
		t.Fatalf("unassigned = %v, want full pool", unassigned)
	}
}

func TestPlanRejectsOutOfRangeLocation(t *testing.T) {
	// testMatrix covers locations 0..4; an order beyond that cannot be
	// translated and must degrade like a solver failure, not panic.
	pending := []model.Order{
		{ID: "a", Location: 1, Demand: 5},
		{ID: "bad", Location: 9, Demand: 5},
	}
	solver := &fakeSolver{}
	_, unassigned, err := Plan(context.Background(), solver, model.NewRoutes(2), pending, testMatrix(), 2, 20, 200)
	if err == nil {
		t.Fatal("expected error for untranslatable location")
	}
	if len(unassigned) != 2 {
		t.Fatalf("unassigned = %v, want full pool", unassigned)
	}
	if len(solver.last.TimeMatrix) != 0 {
		t.Fatal("solver must not be called with a bad pool")
	}
}

func TestPlanEmptyPool(t *testing.T) {
	solver := &fakeSolver{}
	planned, unassigned, err := Plan(context.Background(), solver, model.NewRoutes(3), nil, testMatrix(), 3, 20, 200)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(planned) != 3 || planned.CountAssigned() != 0 || len(unassigned) != 0 {
		t.Fatalf("planned=%v unassigned=%v", planned, unassigned)
	}
}

func TestHTTPSolverRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(Response{Routes: [][]int{{1}}, Unassigned: []int{2}})
	}))
	defer srv.Close()

	solver := NewHTTPSolver(srv.URL, 2*time.Second)
	resp, err := solver.Solve(context.Background(), Request{NumVehicles: 1})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(resp.Routes) != 1 || resp.Routes[0][0] != 1 || resp.Unassigned[0] != 2 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestHTTPSolverNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	solver := NewHTTPSolver(srv.URL, time.Second)
	if _, err := solver.Solve(context.Background(), Request{}); err == nil {
		t.Fatal("expected error on 503")
	}
}
