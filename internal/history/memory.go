package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu          sync.Mutex
	assignments []AssignmentRecord
	cycles      []CycleRecord
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) SaveAssignment(_ context.Context, rec AssignmentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	m.mu.Lock()
	m.assignments = append(m.assignments, rec)
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListAssignments(_ context.Context, limit int) ([]AssignmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lastN(m.assignments, limit), nil
}

func (m *Memory) SaveCycle(_ context.Context, rec CycleRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	m.mu.Lock()
	m.cycles = append(m.cycles, rec)
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListCycles(_ context.Context, limit int) ([]CycleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lastN(m.cycles, limit), nil
}

func (m *Memory) Close() error { return nil }

// lastN returns the most recent limit items, newest first.
func lastN[T any](items []T, limit int) []T {
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	out := make([]T, 0, limit)
	for i := len(items) - 1; i >= len(items)-limit; i-- {
		out = append(out, items[i])
	}
	return out
}
