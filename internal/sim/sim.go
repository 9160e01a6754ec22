package sim

import (
	"context"
	"log"
	"time"

	"fleetroute/internal/assign"
	"fleetroute/internal/audit"
	"fleetroute/internal/cost"
	"fleetroute/internal/feed"
	"fleetroute/internal/history"
	"fleetroute/internal/metrics"
	"fleetroute/internal/model"
	"fleetroute/internal/state"
)

// Sim replays one day of order arrivals against the shared fleet,
// assigning in real time with the greedy+tabu layer while the
// orchestrator reoptimizes in the background.

type Config struct {
	StartMinute int
	EndMinute   int
	// TickEvery is wall time per simulated minute; zero replays the
	// day as fast as possible.
	TickEvery time.Duration
	Assign    assign.Config

	FixedPerTruck float64
	VariablePerKm float64
}

type Summary struct {
	Orders          int
	ByMethod        map[assign.Method]int
	Unassigned      int
	FinalCost       float64
	TrucksUsed      int
	DistanceKm      float64
	AvgRouteMinutes float64
}

type Sim struct {
	cfg      Config
	fleet    *state.Fleet
	times    model.Matrix
	dist     model.Matrix
	arrivals []feed.Arrival
	broker   audit.Broker
	store    history.Store

	rejected map[string]bool
	orders   int
	byMethod map[assign.Method]int
}

func New(cfg Config, fleet *state.Fleet, times, dist model.Matrix, arrivals []feed.Arrival, broker audit.Broker, store history.Store) *Sim {
	if cfg.EndMinute <= cfg.StartMinute {
		cfg.StartMinute, cfg.EndMinute = 0, 24*60
	}
	return &Sim{
		cfg:      cfg,
		fleet:    fleet,
		times:    times,
		dist:     dist,
		arrivals: arrivals,
		broker:   broker,
		store:    store,
		rejected: map[string]bool{},
		byMethod: map[assign.Method]int{},
	}
}

// Run steps through the simulated day minute by minute: release the
// arrivals due this minute into the pending bank, then sweep the bank
// with the real-time assignor. The end-of-day Summary comes from
// Summarize, after the caller has run the closing optimization cycle.
func (s *Sim) Run(ctx context.Context) error {
	var ticker *time.Ticker
	if s.cfg.TickEvery > 0 {
		ticker = time.NewTicker(s.cfg.TickEvery)
		defer ticker.Stop()
	}

	idx := 0
	for minute := s.cfg.StartMinute; minute < s.cfg.EndMinute; minute++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for idx < len(s.arrivals) && s.arrivals[idx].Minute <= minute {
			a := s.arrivals[idx]
			idx++
			s.fleet.AddPending(a.Order)
			s.orders++
			metrics.OrdersReceived.Inc()
			s.publish(audit.TypeOrderReceived, map[string]any{
				"orderId": a.Order.ID, "location": a.Order.Location, "demand": a.Order.Demand, "minute": minute,
			})
		}

		s.sweep(ctx, minute)

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// Summarize snapshots the fleet as it stands now. Call it after the
// orchestrator's final cycle so the numbers reflect the committed
// end-of-day plan, not the last incremental sweep.
func (s *Sim) Summarize() Summary {
	summary := Summary{Orders: s.orders, ByMethod: map[assign.Method]int{}}
	for m, n := range s.byMethod {
		summary.ByMethod[m] = n
	}

	snap := s.fleet.Snapshot()
	total, trucks, dist := cost.FleetCost(snap.Routes, s.dist, s.cfg.FixedPerTruck, s.cfg.VariablePerKm)
	summary.Unassigned = len(snap.Pending)
	summary.FinalCost = total
	summary.TrucksUsed = trucks
	summary.DistanceKm = dist
	if trucks > 0 {
		summary.AvgRouteMinutes = cost.FleetMinutes(snap.Routes, s.times) / float64(trucks)
	}
	metrics.FleetCost.Set(total)
	metrics.PendingOrders.Set(float64(len(snap.Pending)))
	return summary
}

// sweep tries to place every pending order against the current fleet.
// A stale commit means the orchestrator moved the fleet; the sweep
// stops and the next minute retries against the new state.
func (s *Sim) sweep(ctx context.Context, minute int) {
	snap := s.fleet.Snapshot()
	for _, o := range snap.Pending {
		routes, method, ok := assign.Assign(o, snap.Routes, s.times, s.cfg.Assign)
		if !ok {
			if !s.rejected[o.ID] {
				s.rejected[o.ID] = true
				log.Printf("[sim] minute %d: no feasible slot for order %s (demand %d)", minute, o.ID, o.Demand)
				s.publish(audit.TypeOrderRejected, map[string]any{"orderId": o.ID, "minute": minute})
			}
			continue
		}
		if !s.fleet.CommitAssignment(snap.Generation, o.ID, routes) {
			return
		}
		delete(s.rejected, o.ID)
		s.byMethod[method]++
		metrics.Assignments.WithLabelValues(string(method)).Inc()

		vehicle := vehicleOf(routes, o.ID)
		total, _, _ := cost.FleetCost(routes, s.dist, s.cfg.FixedPerTruck, s.cfg.VariablePerKm)
		metrics.FleetCost.Set(total)
		s.publish(audit.TypeOrderAssigned, map[string]any{
			"orderId": o.ID, "vehicle": vehicle, "method": string(method), "minute": minute, "cost": total,
		})
		if s.store != nil {
			err := s.store.SaveAssignment(ctx, history.AssignmentRecord{
				OrderID: o.ID, Vehicle: vehicle, Method: string(method), Cost: total,
			})
			if err != nil {
				log.Printf("[sim] save assignment: %v", err)
			}
		}
		snap = s.fleet.Snapshot()
	}
	metrics.PendingOrders.Set(float64(len(s.fleet.Pending())))
}

func (s *Sim) publish(typ string, data map[string]any) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(audit.TopicEvents, audit.Event{Type: typ, Data: data})
}

func vehicleOf(routes model.Routes, id string) int {
	for v, route := range routes {
		for _, o := range route {
			if o.ID == id {
				return v
			}
		}
	}
	return -1
}
