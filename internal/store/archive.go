// Package store is the SQLite archive for intelligence artifacts: explosion
// events, variety state snapshots, detected patterns, and completed
// adaptations. It is write-mostly; reads serve restarts and the status CLI.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"requisite/internal/adaptation"
	"requisite/internal/logging"
	"requisite/internal/pattern"
	"requisite/internal/variety"
)

// Archive persists intelligence artifacts to SQLite.
type Archive struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

var (
	_ variety.Sink    = (*Archive)(nil)
	_ adaptation.Sink = (*Archive)(nil)
)

// Open initializes the SQLite database at the given path.
func Open(path string) (*Archive, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a := &Archive{db: db, dbPath: path}
	if err := a.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// initialize creates the required tables.
func (a *Archive) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS explosion_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		occurred_at DATETIME NOT NULL,
		protocol TEXT,
		event_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_explosions_time ON explosion_events(occurred_at);

	CREATE TABLE IF NOT EXISTS variety_states (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		variety_level REAL NOT NULL,
		capacity REAL NOT NULL,
		absorption_rate REAL NOT NULL,
		state_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS patterns (
		id TEXT PRIMARY KEY,
		pattern_type TEXT NOT NULL,
		strength REAL NOT NULL,
		emergence_score REAL NOT NULL,
		source_family TEXT,
		pattern_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_patterns_type ON patterns(pattern_type);

	CREATE TABLE IF NOT EXISTS adaptations (
		id TEXT PRIMARY KEY,
		challenge_type TEXT NOT NULL,
		model_type TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		adaptation_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_adaptations_status ON adaptations(status);
	`
	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// RecordExplosion archives one explosion event. Satisfies variety.Sink;
// archival failures are logged, never propagated into the monitoring path.
func (a *Archive) RecordExplosion(ev variety.ExplosionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(ev)
	if err != nil {
		logging.StoreError("failed to marshal explosion event: %v", err)
		return
	}
	_, err = a.db.Exec(
		`INSERT INTO explosion_events (occurred_at, protocol, event_json) VALUES (?, ?, ?)`,
		ev.Timestamp.UTC().Format(time.RFC3339Nano), ev.ProtocolUsed, string(data),
	)
	if err != nil {
		logging.StoreError("failed to archive explosion event: %v", err)
	}
}

// RecordState archives a variety state snapshot. Satisfies variety.Sink.
func (a *Archive) RecordState(st variety.State) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(st)
	if err != nil {
		logging.StoreError("failed to marshal variety state: %v", err)
		return
	}
	_, err = a.db.Exec(
		`INSERT INTO variety_states (variety_level, capacity, absorption_rate, state_json) VALUES (?, ?, ?, ?)`,
		st.CurrentVarietyLevel, st.InternalVarietyCapacity, st.AbsorptionRate, string(data),
	)
	if err != nil {
		logging.StoreError("failed to archive variety state: %v", err)
	}
}

// LastState returns the most recently archived variety state, if any.
// The supervising layer uses it to restore capacity after a restart.
func (a *Archive) LastState() (variety.State, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var raw string
	err := a.db.QueryRow(
		`SELECT state_json FROM variety_states ORDER BY id DESC LIMIT 1`,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return variety.State{}, false, nil
	}
	if err != nil {
		return variety.State{}, false, fmt.Errorf("failed to load last state: %w", err)
	}

	var st variety.State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return variety.State{}, false, fmt.Errorf("failed to decode last state: %w", err)
	}
	return st, true, nil
}

// SavePattern archives a detected pattern. Re-archiving the same id is a
// no-op update.
func (a *Archive) SavePattern(p *pattern.Pattern) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal pattern: %w", err)
	}
	_, err = a.db.Exec(
		`INSERT INTO patterns (id, pattern_type, strength, emergence_score, source_family, pattern_json)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET strength = excluded.strength,
		                               emergence_score = excluded.emergence_score,
		                               pattern_json = excluded.pattern_json`,
		p.ID, string(p.PatternType), p.Strength, p.EmergenceScore, p.SourceFamily, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to archive pattern: %w", err)
	}
	return nil
}

// LoadPatterns returns the most recent archived patterns, newest first.
func (a *Archive) LoadPatterns(limit int) ([]*pattern.Pattern, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.Query(
		`SELECT pattern_json FROM patterns ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	var out []*pattern.Pattern
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan pattern row: %w", err)
		}
		var p pattern.Pattern
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			logging.StoreError("skipping undecodable pattern row: %v", err)
			continue
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// SaveAdaptation archives an adaptation record, in progress or completed.
func (a *Archive) SaveAdaptation(ad *adaptation.Adaptation) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(ad)
	if err != nil {
		return fmt.Errorf("failed to marshal adaptation: %w", err)
	}

	var completed any
	if ad.CompletedAt != nil {
		completed = ad.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err = a.db.Exec(
		`INSERT INTO adaptations (id, challenge_type, model_type, status, started_at, completed_at, adaptation_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status,
		                               completed_at = excluded.completed_at,
		                               adaptation_json = excluded.adaptation_json`,
		ad.ID, string(ad.Challenge.Type), string(ad.ModelType), string(ad.Status),
		ad.StartedAt.UTC().Format(time.RFC3339Nano), completed, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to archive adaptation: %w", err)
	}
	return nil
}

// RecordAdaptation archives an adaptation transition. Satisfies
// adaptation.Sink; archival failures are logged, never propagated into the
// engine's monitoring path.
func (a *Archive) RecordAdaptation(ad *adaptation.Adaptation) {
	if err := a.SaveAdaptation(ad); err != nil {
		logging.StoreError("failed to archive adaptation %s: %v", ad.ID, err)
	}
}

// CountByStatus returns adaptation counts keyed by status.
func (a *Archive) CountByStatus() (map[string]int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.Query(`SELECT status, COUNT(*) FROM adaptations GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count adaptations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

// ExplosionCount returns the total number of archived explosion events.
func (a *Archive) ExplosionCount() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var n int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM explosion_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count explosions: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
