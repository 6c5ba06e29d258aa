package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/Cyberappy/Hayabusa-setup/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS detections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	rule_id TEXT NOT NULL,
	rule_title TEXT NOT NULL,
	level TEXT NOT NULL,
	record_id INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	channel TEXT,
	details TEXT,
	tags TEXT,
	group_key TEXT,
	agg_count INTEGER
);
CREATE INDEX IF NOT EXISTS idx_detections_rule ON detections(rule_id);
CREATE INDEX IF NOT EXISTS idx_detections_level ON detections(level);
`

// DetectionStore persists detections to a local SQLite database so analysts
// can pivot on past runs with plain SQL.
type DetectionStore struct {
	db    *sql.DB
	runID string
}

// OpenDetectionStore opens (creating if needed) the database at path and
// applies the schema. runID tags every row written by this run.
func OpenDetectionStore(ctx context.Context, path, runID string) (*DetectionStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open detection store %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply detection store schema: %w", err)
	}
	return &DetectionStore{db: db, runID: runID}, nil
}

// Write persists one batch of detections in a single transaction.
func (s *DetectionStore) Write(ctx context.Context, dets []core.Detection) error {
	if len(dets) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin detection store transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO detections
		(run_id, rule_id, rule_title, level, record_id, timestamp, channel, details, tags, group_key, agg_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare detection insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range dets {
		_, err := stmt.ExecContext(ctx,
			s.runID, d.RuleID, d.RuleTitle, d.Level.String(), d.RecordID,
			d.Timestamp.UTC().Format("2006-01-02 15:04:05.000"), d.Channel,
			d.Details, strings.Join(d.Tags, ","), d.GroupKey, d.Count)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit detections: %w", err)
	}
	return nil
}

// CountByLevel returns row counts per severity level for this run.
func (s *DetectionStore) CountByLevel(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT level, COUNT(*) FROM detections WHERE run_id = ? GROUP BY level`, s.runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detection counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("failed to scan detection count: %w", err)
		}
		out[level] = n
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *DetectionStore) Close() error {
	return s.db.Close()
}
