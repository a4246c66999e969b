// Package history persists per-spec timing and outcome history in
// SQLite. The estimator blends recorded means into its heuristics and
// the flakiness query drives retry allowances.
//
// History is advisory: a missing or broken database never fails a run,
// estimation just falls back to pure heuristics.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"gauntlet/internal/estimate"
	"gauntlet/internal/logging"
	"gauntlet/internal/report"
	"gauntlet/internal/runner"
)

// Schema versions:
// v1: runs + spec_results tables
// v2: signature column on spec_results
const currentSchemaVersion = 2

// Store is the sqlite-backed timing store.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// FlakySpec describes a spec with an intermittent failure history.
type FlakySpec struct {
	Path        string
	Runs        int
	Failures    int
	FailureRate float64
}

// Open initializes the database at the given path, creating the
// schema when needed.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryHistory, "Open")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.HistoryDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.HistoryDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	logging.History("History store opened at %s", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`); err != nil {
		return err
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		version = 0
	} else if err != nil {
		return err
	}

	if version < 1 {
		if _, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS runs (
				id TEXT PRIMARY KEY,
				started_at DATETIME NOT NULL,
				finished_at DATETIME NOT NULL,
				total INTEGER NOT NULL,
				passed INTEGER NOT NULL,
				failed INTEGER NOT NULL,
				timed_out INTEGER NOT NULL,
				skipped INTEGER NOT NULL
			);
			CREATE TABLE IF NOT EXISTS spec_results (
				run_id TEXT NOT NULL,
				spec_path TEXT NOT NULL,
				status TEXT NOT NULL,
				duration_ms INTEGER NOT NULL,
				FOREIGN KEY (run_id) REFERENCES runs(id)
			);
			CREATE INDEX IF NOT EXISTS idx_spec_results_path ON spec_results(spec_path);
		`); err != nil {
			return err
		}
	}

	if version < 2 {
		// Older v1 databases lack the signature column.
		if !s.hasColumn("spec_results", "signature") {
			if _, err := s.db.Exec(`ALTER TABLE spec_results ADD COLUMN signature TEXT DEFAULT ''`); err != nil {
				return err
			}
		}
	}

	if version == 0 {
		_, err = s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, currentSchemaVersion)
	} else if version < currentSchemaVersion {
		_, err = s.db.Exec(`UPDATE schema_version SET version = ?`, currentSchemaVersion)
	}
	return err
}

func (s *Store) hasColumn(table, column string) bool {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

// RecordRun persists a finished run and its per-spec results.
func (s *Store) RecordRun(rep *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO runs
		(id, started_at, finished_at, total, passed, failed, timed_out, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.StartedAt, rep.FinishedAt,
		rep.Total, rep.Passed, rep.Failed, rep.TimedOut, rep.Skipped,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO spec_results
		(run_id, spec_path, status, duration_ms, signature)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range rep.Results {
		if res.Status == runner.StatusSkipped {
			// Skipped specs carry no timing signal.
			continue
		}
		if _, err := stmt.Exec(rep.RunID, res.SpecPath, string(res.Status),
			res.DurationMs, string(res.Signature)); err != nil {
			return fmt.Errorf("failed to insert result for %s: %w", res.SpecPath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.History("Recorded run %s (%d results)", rep.RunID, rep.Total)
	return nil
}

// SpecStats implements estimate.HistoryProvider.
func (s *Store) SpecStats(path string) (estimate.Stats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st estimate.Stats
	err := s.db.QueryRow(`SELECT
		COUNT(*),
		SUM(CASE WHEN status != 'pass' THEN 1 ELSE 0 END),
		AVG(duration_ms)
		FROM spec_results WHERE spec_path = ?`, path).
		Scan(&st.Runs, &nullableInt{&st.Failures}, &nullableFloat{&st.MeanMs})
	if err != nil || st.Runs == 0 {
		return estimate.Stats{}, false
	}
	return st, true
}

// FlakySpecs returns specs whose failure rate over at least minRuns
// recorded runs sits strictly between always-pass and always-fail.
func (s *Store) FlakySpecs(minRuns int) ([]FlakySpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if minRuns < 1 {
		minRuns = 3
	}

	rows, err := s.db.Query(`SELECT
		spec_path,
		COUNT(*) AS runs,
		SUM(CASE WHEN status != 'pass' THEN 1 ELSE 0 END) AS failures
		FROM spec_results
		GROUP BY spec_path
		HAVING runs >= ?
		ORDER BY spec_path`, minRuns)
	if err != nil {
		return nil, fmt.Errorf("flaky query failed: %w", err)
	}
	defer rows.Close()

	var flaky []FlakySpec
	for rows.Next() {
		var fs FlakySpec
		if err := rows.Scan(&fs.Path, &fs.Runs, &fs.Failures); err != nil {
			return nil, err
		}
		fs.FailureRate = float64(fs.Failures) / float64(fs.Runs)
		if fs.FailureRate >= 0.05 && fs.FailureRate < 0.95 {
			flaky = append(flaky, fs)
		}
	}
	return flaky, rows.Err()
}

// nullableInt scans a possibly-NULL aggregate into an int.
type nullableInt struct{ v *int }

func (n *nullableInt) Scan(src any) error {
	if src == nil {
		*n.v = 0
		return nil
	}
	switch x := src.(type) {
	case int64:
		*n.v = int(x)
	case float64:
		*n.v = int(x)
	}
	return nil
}

// nullableFloat scans a possibly-NULL aggregate into a float64.
type nullableFloat struct{ v *float64 }

func (n *nullableFloat) Scan(src any) error {
	if src == nil {
		*n.v = 0
		return nil
	}
	switch x := src.(type) {
	case int64:
		*n.v = float64(x)
	case float64:
		*n.v = x
	}
	return nil
}
