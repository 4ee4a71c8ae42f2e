// Package history persists queryable run/patch records to a sqlite
// database (WAL mode), independent of the rotating JSONL audit trail in
// internal/auditlog. Where auditlog is for tailing/grepping events as
// they happen, history is for answering questions like "how many hunks
// failed across all runs against this file last week".
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run is one invocation of the patch applier over one or more patches.
type Run struct {
	ID         string
	TargetDir  string
	DryRun     bool
	StartedAt  string
	FinishedAt string
}

// PatchRecord is one patch within a Run.
type PatchRecord struct {
	RunID       string
	FilePath    string
	Status      string // "applied", "partial", "failed"
	HunkCount   int
	FailedHunks int
	Error       string
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at dbPath.
func Open(dbPath string) (*Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("history db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create history db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		target_dir  TEXT NOT NULL DEFAULT '',
		dry_run     INTEGER NOT NULL DEFAULT 0,
		started_at  TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS patch_records (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		file_path    TEXT NOT NULL,
		status       TEXT NOT NULL,
		hunk_count   INTEGER NOT NULL DEFAULT 0,
		failed_hunks INTEGER NOT NULL DEFAULT 0,
		error        TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_patch_records_run ON patch_records(run_id);
	CREATE INDEX IF NOT EXISTS idx_patch_records_file ON patch_records(file_path);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun inserts a new run record and returns its generated ID.
func (s *Store) StartRun(targetDir string, dryRun bool) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, target_dir, dry_run, started_at) VALUES (?, ?, ?, ?)`,
		id, targetDir, boolToInt(dryRun), nowUTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun stamps a run's completion time.
func (s *Store) FinishRun(runID string) error {
	_, err := s.db.Exec(`UPDATE runs SET finished_at=? WHERE id=?`, nowUTC(), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordPatch appends one patch-apply outcome to a run.
func (s *Store) RecordPatch(rec PatchRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO patch_records (run_id, file_path, status, hunk_count, failed_hunks, error)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.FilePath, rec.Status, rec.HunkCount, rec.FailedHunks, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("insert patch record: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, target_dir, dry_run, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var dryRun int
		if err := rows.Scan(&r.ID, &r.TargetDir, &dryRun, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.DryRun = dryRun != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// PatchesForRun returns every patch record belonging to runID, in insertion order.
func (s *Store) PatchesForRun(runID string) ([]PatchRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, file_path, status, hunk_count, failed_hunks, error
		 FROM patch_records WHERE run_id=? ORDER BY id ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list patch records: %w", err)
	}
	defer rows.Close()

	var out []PatchRecord
	for rows.Next() {
		var rec PatchRecord
		if err := rows.Scan(&rec.RunID, &rec.FilePath, &rec.Status, &rec.HunkCount, &rec.FailedHunks, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan patch record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FailureRateForFile counts every recorded patch against filePath,
// across all runs: total is the number of records, failed the number
// whose status is not "applied" (i.e. "partial" or "failed").
func (s *Store) FailureRateForFile(filePath string) (total, failed int, err error) {
	row := s.db.QueryRow(
		`SELECT COUNT(*), SUM(CASE WHEN status != 'applied' THEN 1 ELSE 0 END)
		 FROM patch_records WHERE file_path=?`, filePath,
	)
	var sum sql.NullInt64
	if err := row.Scan(&total, &sum); err != nil {
		return 0, 0, fmt.Errorf("failure rate: %w", err)
	}
	return total, int(sum.Int64), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestampLayout is fixed-width (no trailing-zero trimming, unlike
// time.RFC3339Nano) so that stored timestamps sort chronologically as
// strings, which ListRuns' ORDER BY started_at relies on.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func nowUTC() string {
	return time.Now().UTC().Format(timestampLayout)
}
