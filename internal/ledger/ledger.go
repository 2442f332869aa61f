// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger persists run history in a SQLite database: one row per
// pipeline run plus the accepted theorems and rewrite outcomes it produced.
// The ledger is bookkeeping only; the proof database itself is exported as
// Metamath source and never stored here.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/theorem-miner/pkg/types"
)

const dbFile = "miner.db"

// Ledger manages the run-history SQLite database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at dir/miner.db, creating the
// schema if it does not exist.
func Open(dir string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			database_file TEXT NOT NULL,
			proofs_scanned INTEGER NOT NULL,
			candidates_proposed INTEGER NOT NULL,
			candidates_verified INTEGER NOT NULL,
			candidates_deduplicated INTEGER NOT NULL,
			theorems_accepted INTEGER NOT NULL,
			rewrites_applied INTEGER NOT NULL,
			rewrites_discarded INTEGER NOT NULL,
			proofs_rewritten INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS theorems (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			label TEXT NOT NULL,
			source_proof TEXT NOT NULL,
			rank INTEGER NOT NULL,
			statement TEXT NOT NULL,
			hypotheses INTEGER NOT NULL,
			proof_steps INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_theorems_run_id ON theorems(run_id)`,
		`CREATE TABLE IF NOT EXISTS rewrites (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			proof TEXT NOT NULL,
			theorem TEXT NOT NULL,
			applied INTEGER NOT NULL,
			discarded INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rewrites_run_id ON rewrites(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun stores one run with its accepted theorems and rewrite outcomes
// in a single transaction and returns the run id.
func (l *Ledger) RecordRun(databaseFile string, started time.Time, rep types.RunReport, accepted []types.AcceptedTheorem, rewrites []types.RewriteOutcome) (int64, error) {
	tx, err := l.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO runs (
			started_at, database_file,
			proofs_scanned, candidates_proposed, candidates_verified,
			candidates_deduplicated, theorems_accepted,
			rewrites_applied, rewrites_discarded, proofs_rewritten
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		started.UTC().Format(time.RFC3339), databaseFile,
		rep.ProofsScanned, rep.CandidatesProposed, rep.CandidatesVerified,
		rep.CandidatesDeduplicated, rep.TheoremsAccepted,
		rep.RewritesApplied, rep.RewritesDiscarded, rep.ProofsRewritten)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	for _, t := range accepted {
		if _, err := tx.Exec(`INSERT INTO theorems (
				run_id, label, source_proof, rank, statement, hypotheses, proof_steps
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, t.Label, t.SourceProof, t.Rank, t.Statement, t.Hypotheses, t.ProofSteps); err != nil {
			return 0, fmt.Errorf("inserting theorem %s: %w", t.Label, err)
		}
	}
	for _, r := range rewrites {
		if _, err := tx.Exec(`INSERT INTO rewrites (run_id, proof, theorem, applied, discarded)
			VALUES (?, ?, ?, ?, ?)`,
			runID, r.Proof, r.Theorem, r.Applied, r.Discarded); err != nil {
			return 0, fmt.Errorf("inserting rewrite for %s: %w", r.Proof, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// RunSummary is one row of run history.
type RunSummary struct {
	ID           int64
	StartedAt    time.Time
	DatabaseFile string
	Report       types.RunReport
}

// Runs returns up to limit runs, newest first. limit <= 0 returns all.
func (l *Ledger) Runs(limit int) ([]RunSummary, error) {
	query := `SELECT id, started_at, database_file,
			proofs_scanned, candidates_proposed, candidates_verified,
			candidates_deduplicated, theorems_accepted,
			rewrites_applied, rewrites_discarded, proofs_rewritten
		FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var started string
		if err := rows.Scan(&s.ID, &started, &s.DatabaseFile,
			&s.Report.ProofsScanned, &s.Report.CandidatesProposed, &s.Report.CandidatesVerified,
			&s.Report.CandidatesDeduplicated, &s.Report.TheoremsAccepted,
			&s.Report.RewritesApplied, &s.Report.RewritesDiscarded, &s.Report.ProofsRewritten); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, started); err == nil {
			s.StartedAt = t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Theorems returns the accepted theorems recorded for a run.
func (l *Ledger) Theorems(runID int64) ([]types.AcceptedTheorem, error) {
	rows, err := l.db.Query(`SELECT label, source_proof, rank, statement, hypotheses, proof_steps
		FROM theorems WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying theorems: %w", err)
	}
	defer rows.Close()

	var out []types.AcceptedTheorem
	for rows.Next() {
		var t types.AcceptedTheorem
		if err := rows.Scan(&t.Label, &t.SourceProof, &t.Rank, &t.Statement, &t.Hypotheses, &t.ProofSteps); err != nil {
			return nil, fmt.Errorf("scanning theorem: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
