// Package persistence provides the SQLite archive of runs and their
// per-cycle diagnostic records.
// See design doc Section 2.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/fieldmind/homeostat/internal/config"
	"github.com/fieldmind/homeostat/internal/telemetry"
)

// DB wraps a SQLite connection for run archival.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		config_json TEXT NOT NULL,
		cycles INTEGER NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL DEFAULT 'running'
	);

	CREATE TABLE IF NOT EXISTS cycles (
		run_id TEXT NOT NULL,
		cycle INTEGER NOT NULL,
		energy_var REAL NOT NULL,
		tegument_var REAL NOT NULL,
		integrity_var REAL NOT NULL,
		energy_def REAL NOT NULL,
		tegument_def REAL NOT NULL,
		integrity_def REAL NOT NULL,
		energy_cue REAL NOT NULL,
		tegument_cue REAL NOT NULL,
		integrity_cue REAL NOT NULL,
		energy_mot REAL NOT NULL,
		tegument_mot REAL NOT NULL,
		integrity_mot REAL NOT NULL,
		winner TEXT NOT NULL,
		cmd_left REAL NOT NULL,
		cmd_right REAL NOT NULL,
		damage INTEGER NOT NULL,
		PRIMARY KEY (run_id, cycle)
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_run ON cycles(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// InsertRun registers a new run with its configuration snapshot.
func (db *DB) InsertRun(runID string, cfg *config.Config) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = db.conn.Exec(
		"INSERT INTO runs (id, started_at, config_json) VALUES (?, ?, ?)",
		runID, time.Now().UTC().Format(time.RFC3339), string(cfgJSON),
	)
	return err
}

// SaveCycles appends a batch of cycle records for a run.
func (db *DB) SaveCycles(runID string, recs []telemetry.CycleRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO cycles
		(run_id, cycle,
		 energy_var, tegument_var, integrity_var,
		 energy_def, tegument_def, integrity_def,
		 energy_cue, tegument_cue, integrity_cue,
		 energy_mot, tegument_mot, integrity_mot,
		 winner, cmd_left, cmd_right, damage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range recs {
		damage := 0
		if r.Damage {
			damage = 1
		}
		_, err := stmt.Exec(
			runID, r.Cycle,
			r.EnergyVar, r.TegumentVar, r.IntegrityVar,
			r.EnergyDef, r.TegumentDef, r.IntegrityDef,
			r.EnergyCue, r.TegumentCue, r.IntegrityCue,
			r.EnergyMot, r.TegumentMot, r.IntegrityMot,
			r.Winner, r.Left, r.Right, damage,
		)
		if err != nil {
			return fmt.Errorf("insert cycle %d: %w", r.Cycle, err)
		}
	}
	return tx.Commit()
}

// FinishRun records the final cycle count and outcome for a run.
func (db *DB) FinishRun(runID string, cycles uint64, outcome string) error {
	_, err := db.conn.Exec(
		"UPDATE runs SET ended_at = ?, cycles = ?, outcome = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), cycles, outcome, runID,
	)
	return err
}

// RecentCycles returns the most recent N cycle records of a run,
// newest first.
func (db *DB) RecentCycles(runID string, limit int) ([]telemetry.CycleRecord, error) {
	var recs []telemetry.CycleRecord
	err := db.conn.Select(&recs, `SELECT
		cycle,
		energy_var, tegument_var, integrity_var,
		energy_def, tegument_def, integrity_def,
		energy_cue, tegument_cue, integrity_cue,
		energy_mot, tegument_mot, integrity_mot,
		winner, cmd_left, cmd_right, damage
		FROM cycles WHERE run_id = ? ORDER BY cycle DESC LIMIT ?`,
		runID, limit,
	)
	return recs, err
}

// Archiver buffers cycle records and flushes them to the database in
// batches, so the control loop never blocks on per-cycle writes.
type Archiver struct {
	db         *DB
	runID      string
	flushEvery int
	buf        []telemetry.CycleRecord
}

// NewArchiver creates a batching archiver for one run.
func NewArchiver(db *DB, runID string, flushEvery int) *Archiver {
	return &Archiver{db: db, runID: runID, flushEvery: flushEvery}
}

// Record buffers one cycle record, flushing when the batch is full.
func (a *Archiver) Record(rec telemetry.CycleRecord) error {
	a.buf = append(a.buf, rec)
	if len(a.buf) >= a.flushEvery {
		return a.Flush()
	}
	return nil
}

// Flush writes any buffered records.
func (a *Archiver) Flush() error {
	if len(a.buf) == 0 {
		return nil
	}
	if err := a.db.SaveCycles(a.runID, a.buf); err != nil {
		return err
	}
	slog.Debug("cycle batch archived", "run", a.runID, "records", len(a.buf))
	a.buf = a.buf[:0]
	return nil
}
