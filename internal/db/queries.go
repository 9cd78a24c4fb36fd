package db

import (
	"database/sql"
	"fmt"
)

// Run represents a row in the runs table.
type Run struct {
	RunID            string
	Project          string
	StartedAt        string
	FinishedAt       string
	State            string
	Iterations       int
	ReductionPercent float64
}

// KindStat summarizes dispatch outcomes for one issue kind.
type KindStat struct {
	Kind       string  `json:"kind"`
	Dispatched int     `json:"dispatched"`
	Fixed      int     `json:"fixed"`
	FixRate    float64 `json:"fix_rate"`
}

// CreateRun inserts a new run row.
func (d *DB) CreateRun(runID string, project string) error {
	_, err := d.conn.Exec(`INSERT INTO runs (run_id, project) VALUES (?, ?)`, runID, project)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records a run's terminal state.
func (d *DB) FinishRun(runID string, state string, iterations int, reductionPercent float64) error {
	_, err := d.conn.Exec(
		`UPDATE runs SET finished_at = datetime('now'), state = ?, iterations = ?, reduction_percent = ? WHERE run_id = ?`,
		state, iterations, reductionPercent, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// LogIteration inserts an iteration row.
func (d *DB) LogIteration(runID string, idx int, issueCount int, durationMs int) error {
	_, err := d.conn.Exec(
		`INSERT INTO iterations (run_id, idx, issue_count, duration_ms) VALUES (?, ?, ?, ?)`,
		runID, idx, issueCount, durationMs,
	)
	if err != nil {
		return fmt.Errorf("log iteration: %w", err)
	}
	return nil
}

// SetIterationDuration fills in the dispatch duration for an iteration
// logged earlier.
func (d *DB) SetIterationDuration(runID string, idx int, durationMs int) error {
	_, err := d.conn.Exec(
		`UPDATE iterations SET duration_ms = ? WHERE run_id = ? AND idx = ?`,
		durationMs, runID, idx,
	)
	if err != nil {
		return fmt.Errorf("set iteration duration: %w", err)
	}
	return nil
}

// LogDispatch inserts a dispatch outcome.
func (d *DB) LogDispatch(runID string, iteration int, fingerprint string, kind string, success bool) error {
	_, err := d.conn.Exec(
		`INSERT INTO dispatches (run_id, iteration, fingerprint, kind, success) VALUES (?, ?, ?, ?, ?)`,
		runID, iteration, fingerprint, kind, success,
	)
	if err != nil {
		return fmt.Errorf("log dispatch: %w", err)
	}
	return nil
}

// LogSelection inserts an agent-selection record.
func (d *DB) LogSelection(runID string, fingerprint string, agent string, confidence float64, tier int, fallback bool, cacheHit bool) error {
	_, err := d.conn.Exec(
		`INSERT INTO selections (run_id, fingerprint, agent, confidence, tier, fallback, cache_hit) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, fingerprint, agent, confidence, tier, fallback, cacheHit,
	)
	if err != nil {
		return fmt.Errorf("log selection: %w", err)
	}
	return nil
}

// LogCheckRun inserts a check-run record.
func (d *DB) LogCheckRun(runID string, iteration int, checkName string, passed bool, autoFixed bool, exitCode int, durationMs int) error {
	_, err := d.conn.Exec(
		`INSERT INTO check_runs (run_id, iteration, check_name, passed, auto_fixed, exit_code, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, iteration, checkName, passed, autoFixed, exitCode, durationMs,
	)
	if err != nil {
		return fmt.Errorf("log check run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (d *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(
		`SELECT run_id, COALESCE(project, ''), started_at, COALESCE(finished_at, ''), state, iterations, reduction_percent
		 FROM runs ORDER BY started_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.Project, &r.StartedAt, &r.FinishedAt, &r.State, &r.Iterations, &r.ReductionPercent); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run by ID.
func (d *DB) GetRun(runID string) (*Run, error) {
	row := d.conn.QueryRow(
		`SELECT run_id, COALESCE(project, ''), started_at, COALESCE(finished_at, ''), state, iterations, reduction_percent
		 FROM runs WHERE run_id = ?`, runID)
	var r Run
	if err := row.Scan(&r.RunID, &r.Project, &r.StartedAt, &r.FinishedAt, &r.State, &r.Iterations, &r.ReductionPercent); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %q not found", runID)
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

// IterationHistory returns a run's issue counts ordered by iteration index.
func (d *DB) IterationHistory(runID string) ([]int, error) {
	rows, err := d.conn.Query(`SELECT issue_count FROM iterations WHERE run_id = ? ORDER BY idx ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("iteration history: %w", err)
	}
	defer rows.Close()

	var counts []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// KindStats aggregates dispatch outcomes per kind. An empty runID
// aggregates across all runs.
func (d *DB) KindStats(runID string) ([]KindStat, error) {
	query := `SELECT kind, COUNT(*), SUM(CASE WHEN success THEN 1 ELSE 0 END)
	          FROM dispatches`
	args := []interface{}{}
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` GROUP BY kind ORDER BY kind`

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("kind stats: %w", err)
	}
	defer rows.Close()

	var stats []KindStat
	for rows.Next() {
		var s KindStat
		if err := rows.Scan(&s.Kind, &s.Dispatched, &s.Fixed); err != nil {
			return nil, fmt.Errorf("scan kind stat: %w", err)
		}
		if s.Dispatched > 0 {
			s.FixRate = float64(s.Fixed) / float64(s.Dispatched)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
