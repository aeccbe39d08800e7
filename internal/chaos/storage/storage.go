// Package storage defines the durable history records for the chaos
// engine and the store contract its persistence backends satisfy.
package storage

import (
	"context"
	"time"
)

// EventRecord is one durable fired-event row.
type EventRecord struct {
	ID          int64
	EventID     string
	EventType   string
	Region      string
	Severity    string
	Score       float64
	ParentID    string
	Forced      bool
	TriggeredAt time.Time
	ExpiresAt   time.Time
}

// ScoreRecord is one durable chaos score sample for a region.
type ScoreRecord struct {
	ID          int64
	Region      string
	Score       float64
	Level       string
	GeneratedAt time.Time
}

// WarningRecord is one durable warning phase transition. Every created or
// escalated warning produces one row.
type WarningRecord struct {
	ID          int64
	WarningID   string
	Region      string
	EventType   string
	Phase       string
	Severity    float64
	TriggeredAt time.Time
	ExpiresAt   time.Time
}

// MitigationRecord is one durable applied mitigation factor.
type MitigationRecord struct {
	ID            int64
	FactorID      string
	Type          string
	Effectiveness float64
	SourceID      string
	AppliedAt     time.Time
	ExpiresAt     time.Time
}

// HistoryStore persists fired events, score samples, warning transitions,
// and applied mitigations. Implementations must tolerate a nil receiver so
// the engine can run without persistence.
type HistoryStore interface {
	RecordEvent(ctx context.Context, event EventRecord) error
	ListEvents(ctx context.Context, limit int) ([]EventRecord, error)
	RecordScore(ctx context.Context, score ScoreRecord) error
	ListScores(ctx context.Context, region string, limit int) ([]ScoreRecord, error)
	RecordWarning(ctx context.Context, warning WarningRecord) error
	ListWarnings(ctx context.Context, region string, limit int) ([]WarningRecord, error)
	RecordMitigation(ctx context.Context, mitigation MitigationRecord) error
	ListMitigations(ctx context.Context, limit int) ([]MitigationRecord, error)
}
