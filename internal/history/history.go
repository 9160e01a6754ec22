package history

import (
	"context"
	"errors"
	"time"
)

// AssignmentRecord is one real-time assignment decision.
type AssignmentRecord struct {
	ID      string    `json:"id"`
	OrderID string    `json:"orderId"`
	Vehicle int       `json:"vehicle"`
	Method  string    `json:"method"`
	Cost    float64   `json:"cost"`
	At      time.Time `json:"at"`
}

// CycleRecord is one periodic optimization cycle: what each layer
// produced and which candidate was committed.
type CycleRecord struct {
	ID             string    `json:"id"`
	Winner         string    `json:"winner"`
	AlnsCost       float64   `json:"alnsCost"`
	BatchCost      float64   `json:"batchCost"`
	CommittedCost  float64   `json:"committedCost"`
	Unassigned     int       `json:"unassigned"`
	AlnsRuntimeMs  int64     `json:"alnsRuntimeMs"`
	BatchRuntimeMs int64     `json:"batchRuntimeMs"`
	Final          bool      `json:"final"`
	At             time.Time `json:"at"`
}

// Store is the persistence interface for assignment history.
type Store interface {
	SaveAssignment(ctx context.Context, rec AssignmentRecord) error
	ListAssignments(ctx context.Context, limit int) ([]AssignmentRecord, error)
	SaveCycle(ctx context.Context, rec CycleRecord) error
	ListCycles(ctx context.Context, limit int) ([]CycleRecord, error)
	Close() error
}

var ErrNotFound = errors.New("not found")
