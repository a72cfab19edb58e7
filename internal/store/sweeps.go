package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/rescuelens/internal/behavioral"
)

// SweepRecord is the stored summary of one analysis sweep
type SweepRecord struct {
	ID           string
	Root         string
	RootFound    bool
	OutputPath   string
	Format       string
	StartedAt    time.Time
	FinishedAt   time.Time
	FilesScanned int
	FilesCached  int
	FilesFailed  int
	BytesScanned int64
	TotalRuns    int
}

// Duration returns how long the sweep took
func (r *SweepRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ReportInfo names where a sweep's report was written
type ReportInfo struct {
	OutputPath string
	Format     string
}

// RecordSweep stores a finished sweep with its run snapshots, failures and
// aggregate rows in one transaction and returns the new sweep ID.
func (s *Store) RecordSweep(ctx context.Context, result *behavioral.SweepResult, rows []behavioral.AggregateRow, report ReportInfo) (string, error) {
	if result == nil {
		return "", fmt.Errorf("sweep result cannot be nil")
	}

	id := uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	_, err = tx.ExecContext(ctx, `INSERT INTO sweeps
		(id, root, root_found, started_at, finished_at, files_scanned, files_cached, files_failed, bytes_scanned, total_runs, output_path, format)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, result.Root, result.RootFound,
		formatTime(result.StartedAt), formatTime(result.FinishedAt),
		result.FilesScanned, result.FilesCached, result.FilesFailed, result.BytesScanned,
		result.TotalRuns(), report.OutputPath, report.Format)
	if err != nil {
		return "", fmt.Errorf("insert sweep: %w", err)
	}

	files := make(map[string]behavioral.RunFile, len(result.Files))
	for _, f := range result.Files {
		files[f.Path] = f
	}

	snapshotStmt, err := tx.PrepareContext(ctx, `INSERT INTO run_snapshots
		(sweep_id, file_path, file_size, mod_time_ns, complexity, agent_bucket, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer snapshotStmt.Close()

	failureStmt, err := tx.PrepareContext(ctx, `INSERT INTO run_failures (sweep_id, file_path, error) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare failure insert: %w", err)
	}
	defer failureStmt.Close()

	for _, cell := range result.Cells {
		for _, run := range cell.Runs {
			data, err := json.Marshal(run)
			if err != nil {
				return "", fmt.Errorf("marshal snapshot %s: %w", run.FilePath, err)
			}
			f := files[run.FilePath]
			if _, err := snapshotStmt.ExecContext(ctx, id, run.FilePath, f.Size, modTimeKey(f.ModTime),
				cell.Cell.Complexity, cell.Cell.AgentBucket, string(data)); err != nil {
				return "", fmt.Errorf("insert snapshot %s: %w", run.FilePath, err)
			}
		}
		for _, failure := range cell.Failures {
			if _, err := failureStmt.ExecContext(ctx, id, failure.FilePath, failure.Error); err != nil {
				return "", fmt.Errorf("insert failure %s: %w", failure.FilePath, err)
			}
		}
	}

	for i, row := range rows {
		data, err := json.Marshal(row.Metrics)
		if err != nil {
			return "", fmt.Errorf("marshal aggregate row: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO aggregate_rows
			(sweep_id, position, complexity, agent_count, num_runs, metrics)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, i, row.Complexity, row.AgentCount, row.NumRuns, string(data)); err != nil {
			return "", fmt.Errorf("insert aggregate row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit sweep: %w", err)
	}
	return id, nil
}

const sweepColumns = `id, root, root_found, output_path, format, started_at, finished_at,
	files_scanned, files_cached, files_failed, bytes_scanned, total_runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSweep(row rowScanner) (*SweepRecord, error) {
	var (
		r                 SweepRecord
		output, format    sql.NullString
		started, finished string
	)
	if err := row.Scan(&r.ID, &r.Root, &r.RootFound, &output, &format, &started, &finished,
		&r.FilesScanned, &r.FilesCached, &r.FilesFailed, &r.BytesScanned, &r.TotalRuns); err != nil {
		return nil, err
	}
	r.OutputPath = output.String
	r.Format = format.String

	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListSweeps returns recorded sweeps, newest first. A limit of 0 or less
// returns all of them.
func (s *Store) ListSweeps(ctx context.Context, limit int) ([]*SweepRecord, error) {
	query := `SELECT ` + sweepColumns + ` FROM sweeps ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sweeps: %w", err)
	}
	defer rows.Close()

	var sweeps []*SweepRecord
	for rows.Next() {
		r, err := scanSweep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sweep: %w", err)
		}
		sweeps = append(sweeps, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sweeps: %w", err)
	}
	return sweeps, nil
}

// GetSweep finds a sweep by its full ID or a unique ID prefix
func (s *Store) GetSweep(ctx context.Context, idOrPrefix string) (*SweepRecord, error) {
	if idOrPrefix == "" {
		return nil, fmt.Errorf("sweep ID cannot be empty")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sweepColumns+` FROM sweeps WHERE substr(id, 1, ?) = ? ORDER BY id LIMIT 2`,
		len(idOrPrefix), idOrPrefix)
	if err != nil {
		return nil, fmt.Errorf("query sweep: %w", err)
	}
	defer rows.Close()

	var matches []*SweepRecord
	for rows.Next() {
		r, err := scanSweep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sweep: %w", err)
		}
		matches = append(matches, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sweeps: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrSweepNotFound, idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("sweep ID prefix %q is ambiguous", idOrPrefix)
	}
}

// GetAggregates returns a sweep's aggregate rows in export order
func (s *Store) GetAggregates(ctx context.Context, sweepID string) ([]behavioral.AggregateRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT complexity, agent_count, num_runs, metrics
		FROM aggregate_rows WHERE sweep_id = ? ORDER BY position`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("query aggregate rows: %w", err)
	}
	defer rows.Close()

	var result []behavioral.AggregateRow
	for rows.Next() {
		var (
			row     behavioral.AggregateRow
			metrics string
		)
		if err := rows.Scan(&row.Complexity, &row.AgentCount, &row.NumRuns, &metrics); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		if err := json.Unmarshal([]byte(metrics), &row.Metrics); err != nil {
			return nil, fmt.Errorf("decode aggregate metrics: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate rows: %w", err)
	}
	return result, nil
}

// GetFailures returns the files of a sweep that produced no snapshot
func (s *Store) GetFailures(ctx context.Context, sweepID string) ([]behavioral.FileFailure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_path, error FROM run_failures WHERE sweep_id = ? ORDER BY id`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var failures []behavioral.FileFailure
	for rows.Next() {
		var f behavioral.FileFailure
		if err := rows.Scan(&f.FilePath, &f.Error); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}
