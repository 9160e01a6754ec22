package orchestrator

import (
	"context"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"fleetroute/internal/alns"
	"fleetroute/internal/audit"
	"fleetroute/internal/batch"
	"fleetroute/internal/cost"
	"fleetroute/internal/history"
	"fleetroute/internal/metrics"
	"fleetroute/internal/model"
	"fleetroute/internal/state"
)

// Winner labels recorded per cycle.
const (
	WinnerALNS  = "alns"
	WinnerBatch = "batch"
	WinnerNone  = "none"
)

type Config struct {
	Interval        time.Duration
	NumVehicles     int
	VehicleCapacity int
	MaxRouteMinutes float64
	FixedPerTruck   float64
	VariablePerKm   float64
	ALNS            alns.Params
	Seed            int64
}

// Orchestrator runs the periodic optimization loop: each cycle races
// the local ALNS engine against the external batch solver over the
// same fleet snapshot and commits whichever candidate is cheaper.
type Orchestrator struct {
	cfg    Config
	fleet  *state.Fleet
	times  model.Matrix
	dist   model.Matrix
	solver batch.Solver // nil disables the batch layer
	broker audit.Broker
	store  history.Store

	// cycleMu serializes cycles: the ticker loop and the on-demand
	// optimize endpoint share one rng and one commit path.
	cycleMu sync.Mutex
	rng     *rand.Rand

	stopOnce sync.Once
	stop     chan struct{}
	// Done closes after the final cycle has committed.
	Done chan struct{}
}

func New(cfg Config, fleet *state.Fleet, times, dist model.Matrix, solver batch.Solver, broker audit.Broker, store history.Store) *Orchestrator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Orchestrator{
		cfg:    cfg,
		fleet:  fleet,
		times:  times,
		dist:   dist,
		solver: solver,
		broker: broker,
		store:  store,
		rng:    rand.New(rand.NewSource(seed)),
		stop:   make(chan struct{}),
		Done:   make(chan struct{}),
	}
}

// Run drives cycles until Stop or context cancellation, then performs
// one final cycle so orders banked near the end still get a pass.
func (o *Orchestrator) Run(ctx context.Context) {
	defer close(o.Done)
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			o.RunCycle(ctx, false)
		case <-o.stop:
			o.RunCycle(ctx, true)
			return
		case <-ctx.Done():
			o.RunCycle(context.Background(), true)
			return
		}
	}
}

// Stop requests shutdown. The final cycle runs before Done closes.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stop) })
}

type candidate struct {
	routes     model.Routes
	unassigned []model.Order
	cost       float64
	runtime    time.Duration
	err        error
}

// RunCycle executes one optimization cycle against the current fleet
// snapshot. Exported for the final-cycle path and for tests.
func (o *Orchestrator) RunCycle(ctx context.Context, final bool) {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	snap := o.fleet.Snapshot()
	total := snap.Routes.CountAssigned() + len(snap.Pending)
	if total == 0 {
		o.publish(audit.TypeCycleSkipped, map[string]any{"reason": "no orders", "final": final})
		return
	}

	var alnsCand, batchCand candidate
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		alnsCand = o.runALNS(snap)
	}()
	if o.solver != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batchCand = o.runBatch(ctx, snap)
		}()
	} else {
		batchCand = candidate{cost: math.Inf(1)}
	}
	wg.Wait()

	metrics.SolverRuntime.WithLabelValues("alns").Observe(alnsCand.runtime.Seconds())
	if o.solver != nil {
		metrics.SolverRuntime.WithLabelValues("batch").Observe(batchCand.runtime.Seconds())
	}

	winner, chosen := pick(alnsCand, batchCand)
	if winner == WinnerNone {
		log.Printf("[orchestrator] cycle produced no usable candidate (alns err=%v batch err=%v)", alnsCand.err, batchCand.err)
		metrics.Cycles.WithLabelValues(WinnerNone).Inc()
		o.publish(audit.TypeCycleSkipped, map[string]any{"reason": "no candidate", "final": final})
		o.record(ctx, history.CycleRecord{Winner: WinnerNone, AlnsCost: alnsCand.cost, BatchCost: batchCand.cost,
			AlnsRuntimeMs: alnsCand.runtime.Milliseconds(), BatchRuntimeMs: batchCand.runtime.Milliseconds(), Final: final})
		return
	}

	o.fleet.CommitPlan(chosen.routes, chosen.unassigned)

	after := o.fleet.Snapshot()
	committed, _, _ := cost.FleetCost(after.Routes, o.dist, o.cfg.FixedPerTruck, o.cfg.VariablePerKm)
	metrics.Cycles.WithLabelValues(winner).Inc()
	metrics.FleetCost.Set(committed)
	metrics.PendingOrders.Set(float64(len(after.Pending)))
	log.Printf("[orchestrator] committed %s plan cost=%.1f unassigned=%d final=%v", winner, chosen.cost, len(chosen.unassigned), final)

	o.publish(audit.TypeCycleCommitted, map[string]any{
		"winner":     winner,
		"alnsCost":   alnsCand.cost,
		"batchCost":  batchCand.cost,
		"cost":       committed,
		"unassigned": len(chosen.unassigned),
		"final":      final,
	})
	o.record(ctx, history.CycleRecord{
		Winner:         winner,
		AlnsCost:       alnsCand.cost,
		BatchCost:      batchCand.cost,
		CommittedCost:  committed,
		Unassigned:     len(chosen.unassigned),
		AlnsRuntimeMs:  alnsCand.runtime.Milliseconds(),
		BatchRuntimeMs: batchCand.runtime.Milliseconds(),
		Final:          final,
	})
}

func (o *Orchestrator) runALNS(snap state.Snapshot) candidate {
	start := time.Now()
	res := alns.Run(alns.Input{
		Routes:            snap.Routes,
		Pending:           snap.Pending,
		Times:             o.times,
		Dist:              o.dist,
		NumVehicles:       o.cfg.NumVehicles,
		VehicleCapacity:   o.cfg.VehicleCapacity,
		MaxRouteMinutes:   o.cfg.MaxRouteMinutes,
		FixedCostPerTruck: o.cfg.FixedPerTruck,
		VariableCostPerKm: o.cfg.VariablePerKm,
	}, o.cfg.ALNS, o.rng)
	return candidate{
		routes:     res.Routes,
		unassigned: res.Unassigned,
		cost:       o.planCost(res.Routes),
		runtime:    time.Since(start),
	}
}

func (o *Orchestrator) runBatch(ctx context.Context, snap state.Snapshot) candidate {
	start := time.Now()
	routes, unassigned, err := batch.Plan(ctx, o.solver, snap.Routes, snap.Pending, o.times,
		o.cfg.NumVehicles, o.cfg.VehicleCapacity, o.cfg.MaxRouteMinutes)
	if err != nil {
		log.Printf("[orchestrator] batch solver failed: %v", err)
		return candidate{cost: math.Inf(1), runtime: time.Since(start), err: err}
	}
	return candidate{
		routes:     routes,
		unassigned: unassigned,
		cost:       o.planCost(routes),
		runtime:    time.Since(start),
	}
}

// planCost prices a candidate for the cross-layer comparison: raw
// fleet cost only. The unassigned count is the tie-break, never part
// of the price (the ALNS engine applies its penalty internally).
func (o *Orchestrator) planCost(routes model.Routes) float64 {
	c, _, _ := cost.FleetCost(routes, o.dist, o.cfg.FixedPerTruck, o.cfg.VariablePerKm)
	return c
}

// pick chooses the cheaper usable candidate; ties go to the one that
// strands fewer orders, and then to the ALNS result.
func pick(a, b candidate) (string, candidate) {
	aOK := a.err == nil && !math.IsInf(a.cost, 1)
	bOK := b.err == nil && !math.IsInf(b.cost, 1)
	switch {
	case !aOK && !bOK:
		return WinnerNone, candidate{}
	case aOK && !bOK:
		return WinnerALNS, a
	case bOK && !aOK:
		return WinnerBatch, b
	}
	if a.cost != b.cost {
		if a.cost < b.cost {
			return WinnerALNS, a
		}
		return WinnerBatch, b
	}
	if len(b.unassigned) < len(a.unassigned) {
		return WinnerBatch, b
	}
	return WinnerALNS, a
}

func (o *Orchestrator) publish(typ string, data map[string]any) {
	if o.broker == nil {
		return
	}
	evt := audit.Event{Type: typ, Data: data}
	o.broker.Publish(audit.TopicEvents, evt)
	o.broker.Publish(audit.TopicCycles, evt)
}

func (o *Orchestrator) record(ctx context.Context, rec history.CycleRecord) {
	if o.store == nil {
		return
	}
	if err := o.store.SaveCycle(ctx, rec); err != nil {
		log.Printf("[orchestrator] save cycle record: %v", err)
	}
}
