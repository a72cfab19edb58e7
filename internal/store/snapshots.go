package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harrison/rescuelens/internal/behavioral"
)

// modTimeKey is the stored form of a file modification time
func modTimeKey(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// Lookup returns the most recent snapshot stored for a file with exactly
// this size and modification time. It implements behavioral.SnapshotCache.
func (s *Store) Lookup(ctx context.Context, path string, size int64, modTime time.Time) (*behavioral.RunMetrics, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT metrics FROM run_snapshots
		WHERE file_path = ? AND file_size = ? AND mod_time_ns = ?
		ORDER BY id DESC LIMIT 1`,
		path, size, modTimeKey(modTime)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query snapshot: %w", err)
	}

	var run behavioral.RunMetrics
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, false, fmt.Errorf("decode snapshot for %s: %w", path, err)
	}
	return &run, true, nil
}

// GetSnapshots returns every run snapshot recorded by a sweep, in the order
// the runs were collected.
func (s *Store) GetSnapshots(ctx context.Context, sweepID string) ([]*behavioral.RunMetrics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metrics FROM run_snapshots WHERE sweep_id = ? ORDER BY id`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var runs []*behavioral.RunMetrics
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var run behavioral.RunMetrics
		if err := json.Unmarshal([]byte(data), &run); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

var _ behavioral.SnapshotCache = (*Store)(nil)
