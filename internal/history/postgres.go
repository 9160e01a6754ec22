package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	p := &Postgres{db: db}
	if err := p.migrate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS assignments (
			id UUID PRIMARY KEY,
			order_id TEXT NOT NULL,
			vehicle INT NOT NULL,
			method TEXT NOT NULL,
			cost DOUBLE PRECISION NOT NULL,
			at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS optimization_cycles (
			id UUID PRIMARY KEY,
			winner TEXT NOT NULL,
			alns_cost DOUBLE PRECISION NOT NULL,
			batch_cost DOUBLE PRECISION NOT NULL,
			committed_cost DOUBLE PRECISION NOT NULL,
			unassigned INT NOT NULL,
			alns_runtime_ms BIGINT NOT NULL,
			batch_runtime_ms BIGINT NOT NULL,
			final BOOLEAN NOT NULL,
			at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) SaveAssignment(ctx context.Context, rec AssignmentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO assignments (id, order_id, vehicle, method, cost, at) VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.ID, rec.OrderID, rec.Vehicle, rec.Method, rec.Cost, rec.At)
	return err
}

func (p *Postgres) ListAssignments(ctx context.Context, limit int) ([]AssignmentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, order_id, vehicle, method, cost, at FROM assignments ORDER BY at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AssignmentRecord
	for rows.Next() {
		var rec AssignmentRecord
		if err := rows.Scan(&rec.ID, &rec.OrderID, &rec.Vehicle, &rec.Method, &rec.Cost, &rec.At); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveCycle(ctx context.Context, rec CycleRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO optimization_cycles (id, winner, alns_cost, batch_cost, committed_cost, unassigned, alns_runtime_ms, batch_runtime_ms, final, at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rec.ID, rec.Winner, rec.AlnsCost, rec.BatchCost, rec.CommittedCost, rec.Unassigned, rec.AlnsRuntimeMs, rec.BatchRuntimeMs, rec.Final, rec.At)
	return err
}

func (p *Postgres) ListCycles(ctx context.Context, limit int) ([]CycleRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, winner, alns_cost, batch_cost, committed_cost, unassigned, alns_runtime_ms, batch_runtime_ms, final, at
		 FROM optimization_cycles ORDER BY at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleRecord
	for rows.Next() {
		var rec CycleRecord
		if err := rows.Scan(&rec.ID, &rec.Winner, &rec.AlnsCost, &rec.BatchCost, &rec.CommittedCost,
			&rec.Unassigned, &rec.AlnsRuntimeMs, &rec.BatchRuntimeMs, &rec.Final, &rec.At); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error { return p.db.Close() }
