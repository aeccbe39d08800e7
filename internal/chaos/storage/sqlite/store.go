package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/tremor/internal/chaos/storage"
	"github.com/louisbranch/tremor/internal/chaos/storage/sqlite/migrations"
	sqlitemigrate "github.com/louisbranch/tremor/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed chaos history persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a chaos history SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordEvent persists one fired chaos event.
func (s *Store) RecordEvent(ctx context.Context, event storage.EventRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return nil
	}

	event.EventID = strings.TrimSpace(event.EventID)
	event.EventType = strings.TrimSpace(event.EventType)
	event.Region = strings.TrimSpace(event.Region)
	event.Severity = strings.TrimSpace(event.Severity)
	if event.EventID == "" {
		return fmt.Errorf("event id is required")
	}
	if event.EventType == "" {
		return fmt.Errorf("event type is required")
	}
	if event.Region == "" {
		return fmt.Errorf("region is required")
	}
	if event.TriggeredAt.IsZero() {
		event.TriggeredAt = time.Now().UTC()
	}
	if event.ExpiresAt.IsZero() {
		event.ExpiresAt = event.TriggeredAt
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO chaos_events (
	event_id,
	event_type,
	region,
	severity,
	score,
	parent_id,
	forced,
	triggered_at,
	expires_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		event.EventID,
		event.EventType,
		event.Region,
		event.Severity,
		event.Score,
		event.ParentID,
		boolToInt(event.Forced),
		event.TriggeredAt.UTC().UnixMilli(),
		event.ExpiresAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// ListEvents lists newest-first fired events.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]storage.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, nil
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	event_id,
	event_type,
	region,
	severity,
	score,
	parent_id,
	forced,
	triggered_at,
	expires_at
FROM chaos_events
ORDER BY triggered_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	records := make([]storage.EventRecord, 0, limit)
	for rows.Next() {
		var record storage.EventRecord
		var forced int
		var triggeredAt, expiresAt int64
		if err := rows.Scan(
			&record.ID,
			&record.EventID,
			&record.EventType,
			&record.Region,
			&record.Severity,
			&record.Score,
			&record.ParentID,
			&forced,
			&triggeredAt,
			&expiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		record.Forced = forced != 0
		record.TriggeredAt = time.UnixMilli(triggeredAt).UTC()
		record.ExpiresAt = time.UnixMilli(expiresAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

// RecordScore persists one chaos score sample.
func (s *Store) RecordScore(ctx context.Context, score storage.ScoreRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return nil
	}

	score.Region = strings.TrimSpace(score.Region)
	score.Level = strings.TrimSpace(score.Level)
	if score.Region == "" {
		return fmt.Errorf("region is required")
	}
	if score.GeneratedAt.IsZero() {
		score.GeneratedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO chaos_scores (
	region,
	score,
	level,
	generated_at
) VALUES (?, ?, ?, ?)
`,
		score.Region,
		score.Score,
		score.Level,
		score.GeneratedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	return nil
}

// ListScores lists newest-first score samples for a region.
func (s *Store) ListScores(ctx context.Context, region string, limit int) ([]storage.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, nil
	}
	region = strings.TrimSpace(region)
	if region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	region,
	score,
	level,
	generated_at
FROM chaos_scores
WHERE region = ?
ORDER BY generated_at DESC, id DESC
LIMIT ?
`, region, limit)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	records := make([]storage.ScoreRecord, 0, limit)
	for rows.Next() {
		var record storage.ScoreRecord
		var generatedAt int64
		if err := rows.Scan(
			&record.ID,
			&record.Region,
			&record.Score,
			&record.Level,
			&generatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		record.GeneratedAt = time.UnixMilli(generatedAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scores: %w", err)
	}
	return records, nil
}

// RecordWarning persists one warning phase transition.
func (s *Store) RecordWarning(ctx context.Context, warning storage.WarningRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return nil
	}

	warning.WarningID = strings.TrimSpace(warning.WarningID)
	warning.Region = strings.TrimSpace(warning.Region)
	warning.EventType = strings.TrimSpace(warning.EventType)
	warning.Phase = strings.TrimSpace(warning.Phase)
	if warning.WarningID == "" {
		return fmt.Errorf("warning id is required")
	}
	if warning.Region == "" {
		return fmt.Errorf("region is required")
	}
	if warning.Phase == "" {
		return fmt.Errorf("phase is required")
	}
	if warning.TriggeredAt.IsZero() {
		warning.TriggeredAt = time.Now().UTC()
	}
	if warning.ExpiresAt.IsZero() {
		warning.ExpiresAt = warning.TriggeredAt
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO chaos_warnings (
	warning_id,
	region,
	event_type,
	phase,
	severity,
	triggered_at,
	expires_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		warning.WarningID,
		warning.Region,
		warning.EventType,
		warning.Phase,
		warning.Severity,
		warning.TriggeredAt.UTC().UnixMilli(),
		warning.ExpiresAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record warning: %w", err)
	}
	return nil
}

// ListWarnings lists newest-first warning transitions for a region.
func (s *Store) ListWarnings(ctx context.Context, region string, limit int) ([]storage.WarningRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, nil
	}
	region = strings.TrimSpace(region)
	if region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	warning_id,
	region,
	event_type,
	phase,
	severity,
	triggered_at,
	expires_at
FROM chaos_warnings
WHERE region = ?
ORDER BY triggered_at DESC, id DESC
LIMIT ?
`, region, limit)
	if err != nil {
		return nil, fmt.Errorf("list warnings: %w", err)
	}
	defer rows.Close()

	records := make([]storage.WarningRecord, 0, limit)
	for rows.Next() {
		var record storage.WarningRecord
		var triggeredAt, expiresAt int64
		if err := rows.Scan(
			&record.ID,
			&record.WarningID,
			&record.Region,
			&record.EventType,
			&record.Phase,
			&record.Severity,
			&triggeredAt,
			&expiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan warning: %w", err)
		}
		record.TriggeredAt = time.UnixMilli(triggeredAt).UTC()
		record.ExpiresAt = time.UnixMilli(expiresAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate warnings: %w", err)
	}
	return records, nil
}

// RecordMitigation persists one applied mitigation factor.
func (s *Store) RecordMitigation(ctx context.Context, mitigation storage.MitigationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return nil
	}

	mitigation.FactorID = strings.TrimSpace(mitigation.FactorID)
	mitigation.Type = strings.TrimSpace(mitigation.Type)
	mitigation.SourceID = strings.TrimSpace(mitigation.SourceID)
	if mitigation.FactorID == "" {
		return fmt.Errorf("factor id is required")
	}
	if mitigation.Type == "" {
		return fmt.Errorf("mitigation type is required")
	}
	if mitigation.AppliedAt.IsZero() {
		mitigation.AppliedAt = time.Now().UTC()
	}
	if mitigation.ExpiresAt.IsZero() {
		mitigation.ExpiresAt = mitigation.AppliedAt
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO chaos_mitigations (
	factor_id,
	mitigation_type,
	effectiveness,
	source_id,
	applied_at,
	expires_at
) VALUES (?, ?, ?, ?, ?, ?)
`,
		mitigation.FactorID,
		mitigation.Type,
		mitigation.Effectiveness,
		mitigation.SourceID,
		mitigation.AppliedAt.UTC().UnixMilli(),
		mitigation.ExpiresAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record mitigation: %w", err)
	}
	return nil
}

// ListMitigations lists newest-first applied mitigations.
func (s *Store) ListMitigations(ctx context.Context, limit int) ([]storage.MitigationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, nil
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	factor_id,
	mitigation_type,
	effectiveness,
	source_id,
	applied_at,
	expires_at
FROM chaos_mitigations
ORDER BY applied_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list mitigations: %w", err)
	}
	defer rows.Close()

	records := make([]storage.MitigationRecord, 0, limit)
	for rows.Next() {
		var record storage.MitigationRecord
		var appliedAt, expiresAt int64
		if err := rows.Scan(
			&record.ID,
			&record.FactorID,
			&record.Type,
			&record.Effectiveness,
			&record.SourceID,
			&appliedAt,
			&expiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan mitigation: %w", err)
		}
		record.AppliedAt = time.UnixMilli(appliedAt).UTC()
		record.ExpiresAt = time.UnixMilli(expiresAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mitigations: %w", err)
	}
	return records, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

var _ storage.HistoryStore = (*Store)(nil)
