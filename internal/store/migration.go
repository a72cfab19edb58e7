package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrSchemaTooNew is returned when a database was migrated by a newer release
var ErrSchemaTooNew = errors.New("database schema is newer than this release supports")

// Migration represents a database schema migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of all database migrations
var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema with sweeps, run snapshots and aggregate rows",
		SQL: `
CREATE TABLE IF NOT EXISTS sweeps (
    id TEXT PRIMARY KEY,
    root TEXT NOT NULL,
    root_found BOOLEAN NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    files_scanned INTEGER DEFAULT 0,
    files_cached INTEGER DEFAULT 0,
    files_failed INTEGER DEFAULT 0,
    bytes_scanned INTEGER DEFAULT 0,
    total_runs INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sweeps_started_at ON sweeps(started_at DESC);

CREATE TABLE IF NOT EXISTS run_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sweep_id TEXT NOT NULL,
    file_path TEXT NOT NULL,
    file_size INTEGER NOT NULL,
    mod_time_ns INTEGER NOT NULL,
    complexity TEXT NOT NULL,
    agent_bucket TEXT NOT NULL,
    metrics TEXT NOT NULL,
    FOREIGN KEY (sweep_id) REFERENCES sweeps(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_run_snapshots_file ON run_snapshots(file_path, file_size, mod_time_ns);
CREATE INDEX IF NOT EXISTS idx_run_snapshots_sweep ON run_snapshots(sweep_id);

CREATE TABLE IF NOT EXISTS aggregate_rows (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sweep_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    complexity TEXT NOT NULL,
    agent_count TEXT NOT NULL,
    num_runs INTEGER NOT NULL,
    metrics TEXT NOT NULL,
    FOREIGN KEY (sweep_id) REFERENCES sweeps(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_aggregate_rows_sweep ON aggregate_rows(sweep_id, position);
`,
	},
	{
		Version:     2,
		Description: "Add run_failures for files that produced no snapshot",
		SQL: `
CREATE TABLE IF NOT EXISTS run_failures (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sweep_id TEXT NOT NULL,
    file_path TEXT NOT NULL,
    error TEXT NOT NULL,
    FOREIGN KEY (sweep_id) REFERENCES sweeps(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_run_failures_sweep ON run_failures(sweep_id);
`,
	},
	{
		Version:     3,
		Description: "Record report destination and format on sweeps",
	},
}

// ApplyMigrations applies all pending migrations in order inside one
// transaction, so concurrent openers of the same file serialize here.
func (s *Store) ApplyMigrations(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin exclusive transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	if err := ensureSchemaVersionTableTx(ctx, tx); err != nil {
		return fmt.Errorf("ensure schema_version table: %w", err)
	}

	applied, err := appliedVersionSetTx(ctx, tx)
	if err != nil {
		return fmt.Errorf("get applied versions: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}

		// Version 3 only adds columns, which SQLite cannot do idempotently in SQL
		if migration.Version == 3 {
			if err := applyMigration3Tx(ctx, tx); err != nil {
				return fmt.Errorf("apply migration %d (%s): %w", migration.Version, migration.Description, err)
			}
		}

		if migration.SQL != "" {
			if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
				return fmt.Errorf("apply migration %d (%s): %w", migration.Version, migration.Description, err)
			}
		}

		if err := recordMigrationTx(ctx, tx, migration.Version); err != nil {
			return fmt.Errorf("record migration %d: %w", migration.Version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

func applyMigration3Tx(ctx context.Context, tx *sql.Tx) error {
	columns := []struct {
		name string
		def  string
	}{
		{"output_path", "TEXT DEFAULT ''"},
		{"format", "TEXT DEFAULT ''"},
	}

	for _, col := range columns {
		if err := addColumnIfNotExistsTx(ctx, tx, "sweeps", col.name, col.def); err != nil {
			return fmt.Errorf("add column %s: %w", col.name, err)
		}
	}
	return nil
}

// addColumnIfNotExistsTx adds a column unless table_info already lists it
func addColumnIfNotExistsTx(ctx context.Context, tx *sql.Tx, table, column, definition string) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("read table info: %w", err)
	}

	exists := false
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &primaryKey); err != nil {
			rows.Close()
			return fmt.Errorf("scan table info: %w", err)
		}
		if name == column {
			exists = true
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if exists {
		return nil
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("alter table: %w", err)
	}
	return nil
}

func ensureSchemaVersionTableTx(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
)`)
	return err
}

func appliedVersionSetTx(ctx context.Context, tx *sql.Tx) (map[int]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func recordMigrationTx(ctx context.Context, tx *sql.Tx, version int) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
		version, formatTime(time.Now()))
	return err
}

// GetLatestVersion returns the highest applied migration version
func (s *Store) GetLatestVersion() (int, error) {
	var version int
	query := `SELECT COALESCE(MAX(version), 0) FROM schema_version`
	if err := s.db.QueryRow(query).Scan(&version); err != nil {
		return 0, fmt.Errorf("query latest version: %w", err)
	}
	return version, nil
}

// checkSchemaVersion refuses databases carrying migrations this release
// does not know about
func (s *Store) checkSchemaVersion() error {
	version, err := s.GetLatestVersion()
	if err != nil {
		return err
	}
	if latest := migrations[len(migrations)-1].Version; version > latest {
		return fmt.Errorf("%w: %s is at v%d, latest known is v%d", ErrSchemaTooNew, s.dbPath, version, latest)
	}
	return nil
}
