package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitewalk/internal/model"
)

// FileName is the name of the history database inside its directory.
const FileName = "sitewalk.db"

// storeTimeLayout is how timestamps are written. A fixed width keeps
// ORDER BY on the text column chronological.
const storeTimeLayout = "2006-01-02 15:04:05.000000"

// HistoryDB provides SQLite-based storage for past runs and their visits.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	// Foreign keys are per connection in SQLite, so they are set in the DSN.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	dsn += "&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per traversal
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		scope_prefix TEXT,
		max_depth INTEGER,
		max_pages INTEGER,
		authenticated INTEGER DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		timed_out INTEGER DEFAULT 0,
		error TEXT,
		pages INTEGER DEFAULT 0,
		successes INTEGER DEFAULT 0,
		failures INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Visit records of a run in visiting order
	CREATE TABLE IF NOT EXISTS visits (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		final_url TEXT,
		title TEXT,
		has_form INTEGER DEFAULT 0,
		clicked_button INTEGER DEFAULT 0,
		artifact_path TEXT,
		capture_error TEXT,
		content_hash TEXT,
		link_count INTEGER DEFAULT 0,
		error TEXT,
		visited_at TEXT,
		duration_ms INTEGER DEFAULT 0,
		PRIMARY KEY (run_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_visits_url ON visits(url);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores run and its records. Saving a run with an existing ID
// replaces the stored copy.
func (hdb *HistoryDB) SaveRun(ctx context.Context, run *model.Run) (err error) {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	query := `
	INSERT INTO runs (id, seed, scope_prefix, max_depth, max_pages, authenticated,
		started_at, finished_at, timed_out, error, pages, successes, failures)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		finished_at = excluded.finished_at,
		timed_out = excluded.timed_out,
		error = excluded.error,
		pages = excluded.pages,
		successes = excluded.successes,
		failures = excluded.failures
	`

	successes := run.Successes()
	_, err = tx.ExecContext(ctx, query,
		run.ID,
		run.Seed,
		run.ScopePrefix,
		run.MaxDepth,
		run.MaxPages,
		run.Authenticated,
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		run.TimedOut,
		run.Error,
		len(run.Records),
		successes,
		len(run.Records)-successes,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM visits WHERE run_id = ?", run.ID); err != nil {
		return fmt.Errorf("failed to clear visits: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO visits (run_id, position, url, depth, outcome, final_url, title, has_form,
		clicked_button, artifact_path, capture_error, content_hash, link_count, error,
		visited_at, duration_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare visit insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range run.Records {
		_, err = stmt.ExecContext(ctx,
			run.ID,
			i,
			rec.URL,
			rec.Depth,
			rec.Outcome.String(),
			rec.FinalURL,
			rec.Title,
			rec.HasForm,
			rec.ClickedButton,
			rec.ArtifactPath,
			rec.CaptureError,
			rec.ContentHash,
			rec.LinkCount,
			rec.Error,
			formatTimestamp(rec.VisitedAt),
			rec.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to save visit %s: %w", rec.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// RunMetadata contains summary information about a stored run.
// This is used for displaying history without loading the visits.
type RunMetadata struct {
	ID         string
	Seed       string
	StartedAt  time.Time
	FinishedAt time.Time
	Pages      int
	Successes  int
	Failures   int
	TimedOut   bool
	Error      string
}

// ListRuns returns stored runs, newest first. An empty seed lists all
// seeds. limit <= 0 means no limit.
func (hdb *HistoryDB) ListRuns(ctx context.Context, seed string, limit int) ([]RunMetadata, error) {
	query := `
	SELECT id, seed, started_at, finished_at, pages, successes, failures, timed_out, error
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0)

	if seed != "" {
		query += " AND seed = ?"
		args = append(args, seed)
	}
	query += " ORDER BY started_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var startedAt string
		var finishedAt, runErr sql.NullString

		err := rows.Scan(
			&meta.ID,
			&meta.Seed,
			&startedAt,
			&finishedAt,
			&meta.Pages,
			&meta.Successes,
			&meta.Failures,
			&meta.TimedOut,
			&runErr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		meta.StartedAt = parseTimestamp(startedAt)
		meta.FinishedAt = parseTimestamp(finishedAt.String)
		meta.Error = runErr.String
		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListSeeds returns every seed with at least one stored run.
func (hdb *HistoryDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := hdb.db.QueryContext(ctx, "SELECT DISTINCT seed FROM runs ORDER BY seed")
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}

	return seeds, rows.Err()
}

// GetRun retrieves a run and its records by ID.
// It returns nil without error when no such run exists.
func (hdb *HistoryDB) GetRun(ctx context.Context, id string) (*model.Run, error) {
	query := `
	SELECT id, seed, scope_prefix, max_depth, max_pages, authenticated,
		started_at, finished_at, timed_out, error
	FROM runs
	WHERE id = ?
	`

	var run model.Run
	var scope, finishedAt, runErr sql.NullString
	var startedAt string

	err := hdb.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Seed,
		&scope,
		&run.MaxDepth,
		&run.MaxPages,
		&run.Authenticated,
		&startedAt,
		&finishedAt,
		&run.TimedOut,
		&runErr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.ScopePrefix = scope.String
	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt.String)
	run.Error = runErr.String

	run.Records, err = hdb.getVisits(ctx, id)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// getVisits loads the records of a run in visiting order.
func (hdb *HistoryDB) getVisits(ctx context.Context, runID string) ([]*model.VisitRecord, error) {
	query := `
	SELECT url, depth, outcome, final_url, title, has_form, clicked_button, artifact_path,
		capture_error, content_hash, link_count, error, visited_at, duration_ms
	FROM visits
	WHERE run_id = ?
	ORDER BY position
	`

	rows, err := hdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get visits: %w", err)
	}
	defer rows.Close()

	records := make([]*model.VisitRecord, 0)
	for rows.Next() {
		var rec model.VisitRecord
		var outcome string
		var finalURL, title, artifactPath, captureErr, contentHash, visitErr, visitedAt sql.NullString
		var durationMs int64

		err := rows.Scan(
			&rec.URL,
			&rec.Depth,
			&outcome,
			&finalURL,
			&title,
			&rec.HasForm,
			&rec.ClickedButton,
			&artifactPath,
			&captureErr,
			&contentHash,
			&rec.LinkCount,
			&visitErr,
			&visitedAt,
			&durationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		if err := rec.Outcome.UnmarshalText([]byte(outcome)); err != nil {
			return nil, fmt.Errorf("failed to parse visit %s: %w", rec.URL, err)
		}

		rec.FinalURL = finalURL.String
		rec.Title = title.String
		rec.ArtifactPath = artifactPath.String
		rec.CaptureError = captureErr.String
		rec.ContentHash = contentHash.String
		rec.Error = visitErr.String
		rec.VisitedAt = parseTimestamp(visitedAt.String)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// LatestRuns returns up to n complete runs of seed, newest first.
func (hdb *HistoryDB) LatestRuns(ctx context.Context, seed string, n int) ([]*model.Run, error) {
	metas, err := hdb.ListRuns(ctx, seed, n)
	if err != nil {
		return nil, err
	}

	runs := make([]*model.Run, 0, len(metas))
	for _, meta := range metas {
		run, err := hdb.GetRun(ctx, meta.ID)
		if err != nil {
			return nil, err
		}
		if run != nil {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

// DeleteRun removes a run and its visits in one transaction. Deleting an
// unknown ID is not an error.
func (hdb *HistoryDB) DeleteRun(ctx context.Context, id string) (err error) {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM visits WHERE run_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete visits: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// formatTimestamp renders t in UTC for storage. The zero time is stored
// as an empty string.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(storeTimeLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",  // SQLite default datetime format, fraction accepted
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",  // ISO 8601 without timezone
	time.RFC3339,           // Full RFC3339 format
	time.RFC3339Nano,       // RFC3339 with nanoseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
