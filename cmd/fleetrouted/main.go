package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetroute/internal/alns"
	"fleetroute/internal/api"
	"fleetroute/internal/assign"
	"fleetroute/internal/audit"
	"fleetroute/internal/batch"
	"fleetroute/internal/buildinfo"
	"fleetroute/internal/config"
	"fleetroute/internal/feed"
	"fleetroute/internal/history"
	"fleetroute/internal/matrix"
	"fleetroute/internal/metrics"
	"fleetroute/internal/orchestrator"
	"fleetroute/internal/sim"
	"fleetroute/internal/state"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	log.Printf("fleetrouted %s", buildinfo.Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.MatrixFile == "" {
		log.Fatal("MATRIX_FILE (or matrixFile) is required")
	}
	data, err := matrix.LoadFile(cfg.MatrixFile)
	if err != nil {
		log.Fatalf("load matrix: %v", err)
	}
	log.Printf("loaded %d locations", len(data.Locations))

	var arrivals []feed.Arrival
	if cfg.ArrivalsFile != "" {
		arrivals, err = feed.LoadFile(cfg.ArrivalsFile, cfg.DayOfYear)
		if err != nil {
			log.Fatalf("load arrivals: %v", err)
		}
		log.Printf("loaded %d arrivals for day %d", len(arrivals), cfg.DayOfYear)
	}

	metrics.RegisterDefault()

	var store history.Store
	if cfg.DatabaseURL != "" {
		store, err = history.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("connect postgres: %v", err)
		}
	} else {
		store = history.NewMemory()
	}
	defer func() { _ = store.Close() }()

	var broker audit.Broker
	if cfg.RedisURL != "" {
		rb, err := audit.NewRedisBroker(cfg.RedisURL)
		if err != nil {
			log.Printf("redis broker unavailable, falling back to memory: %v", err)
			broker = audit.NewMemoryBroker()
		} else {
			broker = rb
		}
	} else {
		broker = audit.NewMemoryBroker()
	}

	var solver batch.Solver
	if cfg.Batch.SolverURL != "" {
		solver = batch.NewHTTPSolver(cfg.Batch.SolverURL, cfg.Batch.Timeout.Std())
	} else {
		log.Print("no SOLVER_URL configured, batch layer disabled")
	}

	fleet := state.NewFleet(cfg.Fleet.NumVehicles)

	orch := orchestrator.New(orchestrator.Config{
		Interval:        cfg.Batch.CycleEvery.Std(),
		NumVehicles:     cfg.Fleet.NumVehicles,
		VehicleCapacity: cfg.Fleet.VehicleCapacity,
		MaxRouteMinutes: cfg.Fleet.MaxRouteMinutes,
		FixedPerTruck:   cfg.Fleet.FixedCostPerTruck,
		VariablePerKm:   cfg.Fleet.VariableCostPerKm,
		ALNS:            alnsParams(cfg.ALNS),
		Seed:            cfg.Optimizer.Seed,
	}, fleet, data.TimeMatrix, data.DistanceMatrix, solver, broker, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go orch.Run(ctx)

	if len(arrivals) > 0 {
		live := sim.New(sim.Config{
			TickEvery: time.Second,
			Assign: assign.Config{
				VehicleCapacity:      cfg.Fleet.VehicleCapacity,
				MaxRouteMinutes:      cfg.Fleet.MaxRouteMinutes,
				TabuIterations:       cfg.Assign.TabuIterations,
				TabuTenure:           cfg.Assign.TabuTenure,
				ImprovementThreshold: cfg.Assign.ImprovementThreshold,
			},
			FixedPerTruck: cfg.Fleet.FixedCostPerTruck,
			VariablePerKm: cfg.Fleet.VariableCostPerKm,
		}, fleet, data.TimeMatrix, data.DistanceMatrix, arrivals, broker, store)
		go func() {
			if err := live.Run(ctx); err != nil {
				log.Printf("live loop stopped: %v", err)
				return
			}
			// The day ends with one last full optimization cycle; the
			// summary describes the plan that cycle commits.
			orch.Stop()
			select {
			case <-orch.Done:
			case <-ctx.Done():
				return
			}
			summary := live.Summarize()
			log.Printf("day complete: %d orders, %d unassigned, cost %.1f with %d trucks over %.1f km",
				summary.Orders, summary.Unassigned, summary.FinalCost, summary.TrucksUsed, summary.DistanceKm)
			for method, n := range summary.ByMethod {
				log.Printf("  %-14s %d", method, n)
			}
		}()
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: (&api.Server{
			Fleet:         fleet,
			Store:         store,
			Broker:        broker,
			Orch:          orch,
			Times:         data.TimeMatrix,
			Dist:          data.DistanceMatrix,
			FixedPerTruck: cfg.Fleet.FixedCostPerTruck,
			VariablePerKm: cfg.Fleet.VariableCostPerKm,
		}).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Print("shutting down")

	orch.Stop()
	select {
	case <-orch.Done:
	case <-time.After(2 * time.Minute):
		log.Print("final optimization cycle timed out")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

func alnsParams(c config.ALNS) alns.Params {
	return alns.Params{
		Iterations:         c.Iterations,
		SegmentLength:      c.SegmentLength,
		ReactionFactor:     c.ReactionFactor,
		TempStart:          c.TempStart,
		TempEnd:            c.TempEnd,
		Cooling:            c.Cooling,
		DestroyMinPct:      c.DestroyMinPct,
		DestroyMaxPct:      c.DestroyMaxPct,
		ScoreNewBest:       c.ScoreNewBest,
		ScoreBetter:        c.ScoreBetter,
		ScoreWorseAccepted: c.ScoreWorseAccepted,
		UnassignedPenalty:  c.UnassignedPenalty,
	}
}
