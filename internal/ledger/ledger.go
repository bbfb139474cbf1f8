// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger persists a durable per-run record of job outcomes to a
// SQLite database, so a batch run's results survive past the stdout/stderr
// stream the batch driver writes.
//
// This is a wired extension, not part of the distilled core specification:
// it gives mattn/go-sqlite3 a concrete home in a batch pipeline that
// otherwise touches no database, following the incremental-ingestion idiom
// of the teacher's internal/knowledge.Store.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meshintel/arxiv-refextract/pkg/types"
)

// Ledger records one row per processed job, keyed by canonical relpath.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at path, creating the schema
// if it does not already exist.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	_, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		relpath TEXT PRIMARY KEY,
		bibcode TEXT,
		out_path TEXT,
		error_kind TEXT,
		error_message TEXT,
		ref_count INTEGER,
		duration_ms INTEGER,
		finished_at TEXT NOT NULL
	)`)
	return err
}

// Outcome is one row this ledger records, independent of the orchestrator
// package to keep the ledger free of a dependency on it.
type Outcome struct {
	Relpath    string
	Bibcode    string
	OutPath    string
	ErrorKind  string
	ErrorMsg   string
	RefCount   int
	Duration   time.Duration
	FinishedAt time.Time
}

// Record upserts one job's outcome, replacing any prior row for the same
// relpath (a rerun of the same item overwrites its ledger entry).
func (l *Ledger) Record(ctx context.Context, o Outcome) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (relpath, bibcode, out_path, error_kind, error_message, ref_count, duration_ms, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(relpath) DO UPDATE SET
			bibcode=excluded.bibcode, out_path=excluded.out_path,
			error_kind=excluded.error_kind, error_message=excluded.error_message,
			ref_count=excluded.ref_count, duration_ms=excluded.duration_ms,
			finished_at=excluded.finished_at`,
		o.Relpath, o.Bibcode, o.OutPath, o.ErrorKind, o.ErrorMsg,
		o.RefCount, o.Duration.Milliseconds(), o.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording outcome for %s: %w", o.Relpath, err)
	}
	return nil
}

// RecordSuccess is a convenience wrapper for a job that produced output.
func (l *Ledger) RecordSuccess(ctx context.Context, relpath, bibcode, outPath string, refCount int, d time.Duration, finishedAt time.Time) error {
	return l.Record(ctx, Outcome{
		Relpath: relpath, Bibcode: bibcode, OutPath: outPath,
		RefCount: refCount, Duration: d, FinishedAt: finishedAt,
	})
}

// RecordFailure is a convenience wrapper for a job that ended in an
// *types.ItemError.
func (l *Ledger) RecordFailure(ctx context.Context, relpath string, itemErr *types.ItemError, d time.Duration, finishedAt time.Time) error {
	msg := ""
	if itemErr.Cause != nil {
		msg = itemErr.Cause.Error()
	}
	return l.Record(ctx, Outcome{
		Relpath: relpath, ErrorKind: string(itemErr.Kind), ErrorMsg: msg,
		Duration: d, FinishedAt: finishedAt,
	})
}

// Summary aggregates ledger contents across all recorded runs.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Stats returns aggregate counts from the ledger's full history, not just
// the current batch run.
func (l *Ledger) Stats(ctx context.Context) (Summary, error) {
	var s Summary
	row := l.db.QueryRowContext(ctx, `SELECT count(*), sum(CASE WHEN error_kind = '' OR error_kind IS NULL THEN 1 ELSE 0 END) FROM runs`)
	var succeeded sql.NullInt64
	if err := row.Scan(&s.Total, &succeeded); err != nil {
		return Summary{}, fmt.Errorf("querying ledger stats: %w", err)
	}
	s.Succeeded = int(succeeded.Int64)
	s.Failed = s.Total - s.Succeeded
	return s, nil
}

// LastRun reports the recorded outcome for relpath, if any.
func (l *Ledger) LastRun(ctx context.Context, relpath string) (Outcome, bool, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT relpath, bibcode, out_path, error_kind, error_message, ref_count, duration_ms, finished_at
		 FROM runs WHERE relpath = ?`, relpath)

	var o Outcome
	var durationMs int64
	var finishedAt string
	if err := row.Scan(&o.Relpath, &o.Bibcode, &o.OutPath, &o.ErrorKind, &o.ErrorMsg, &o.RefCount, &durationMs, &finishedAt); err != nil {
		if err == sql.ErrNoRows {
			return Outcome{}, false, nil
		}
		return Outcome{}, false, fmt.Errorf("querying last run for %s: %w", relpath, err)
	}
	o.Duration = time.Duration(durationMs) * time.Millisecond
	o.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
	return o, true, nil
}
