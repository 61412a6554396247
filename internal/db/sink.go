package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"travel-diaries/internal/export"
)

const runsTable = "matsim_runs"

// finishedLayout sorts lexically in time order.
const finishedLayout = "2006-01-02T15:04:05.000000000Z"

func columnType(d Dialect, t export.ColumnType) string {
	switch t {
	case export.ColumnInt:
		if d == Postgres {
			return "BIGINT"
		}
		return "INTEGER"
	case export.ColumnFloat:
		if d == Postgres {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case export.ColumnBool:
		if d == Postgres {
			return "BOOLEAN"
		}
		return "INTEGER"
	}
	return "TEXT"
}

func createTableSQL(d Dialect, t export.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n  run_id TEXT NOT NULL", t)
	for _, c := range export.Columns(t) {
		fmt.Fprintf(&b, ",\n  %s %s", c.Name, columnType(d, c.Type))
	}
	b.WriteString("\n)")
	return b.String()
}

func insertSQL(d Dialect, t export.Table) string {
	cols := export.Columns(t)
	names := make([]string, 0, len(cols)+1)
	params := make([]string, 0, len(cols)+1)
	names = append(names, "run_id")
	params = append(params, d.placeholder(1))
	for i, c := range cols {
		names = append(names, c.Name)
		params = append(params, d.placeholder(i+2))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t, strings.Join(names, ", "), strings.Join(params, ", "))
}

// Migrate creates the diary tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	stmts := make([]string, 0, len(export.Tables)+1)
	for _, t := range export.Tables {
		stmts = append(stmts, createTableSQL(d, t))
	}
	stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  run_id TEXT NOT NULL,
  appendage TEXT NOT NULL,
  finished_at TEXT NOT NULL,
  records %s NOT NULL
)`, runsTable, columnType(d, export.ColumnInt)))
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Sink writes diary records of one run into the database within a single transaction.
// Nothing is visible to readers until Close commits.
type Sink struct {
	db        *sql.DB
	dialect   Dialect
	runID     string
	appendage string

	tx      *sql.Tx
	stmts   map[export.Table]*sql.Stmt
	records int64
	done    bool
}

// NewSink starts the transaction of one run. The tables must exist; see Migrate.
func NewSink(ctx context.Context, db *sql.DB, d Dialect, runID, appendage string) (*Sink, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	s := &Sink{db: db, dialect: d, runID: runID, appendage: appendage, tx: tx, stmts: make(map[export.Table]*sql.Stmt)}
	for _, t := range export.Tables {
		stmt, err := tx.PrepareContext(ctx, insertSQL(d, t))
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("prepare %s: %w", t, err)
		}
		s.stmts[t] = stmt
	}
	return s, nil
}

func (s *Sink) write(ctx context.Context, r export.Record) error {
	if s.done {
		return errors.New("db sink closed")
	}
	args := append([]any{s.runID}, r.Values()...)
	if _, err := s.stmts[r.Table()].ExecContext(ctx, args...); err != nil {
		return fmt.Errorf("insert %s: %w", r.Table(), err)
	}
	s.records++
	return nil
}

func (s *Sink) WriteActivity(ctx context.Context, r *export.ActivityRecord) error {
	return s.write(ctx, r)
}

func (s *Sink) WriteJourney(ctx context.Context, r *export.JourneyRecord) error {
	return s.write(ctx, r)
}

func (s *Sink) WriteTrip(ctx context.Context, r *export.TripRecord) error { return s.write(ctx, r) }

func (s *Sink) WriteTransfer(ctx context.Context, r *export.TransferRecord) error {
	return s.write(ctx, r)
}

// Close records the run and commits.
func (s *Sink) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	for _, stmt := range s.stmts {
		stmt.Close()
	}
	q := fmt.Sprintf("INSERT INTO %s (run_id, appendage, finished_at, records) VALUES (%s, %s, %s, %s)",
		runsTable, s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3), s.dialect.placeholder(4))
	if _, err := s.tx.Exec(q, s.runID, s.appendage, time.Now().UTC().Format(finishedLayout), s.records); err != nil {
		_ = s.tx.Rollback()
		return fmt.Errorf("record run: %w", err)
	}
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	log.Info().Str("run", s.runID).Int64("records", s.records).Str("driver", string(s.dialect)).Msg("Committed diary tables")
	return nil
}

// Abort discards everything written so far.
func (s *Sink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.tx.Rollback()
}
