package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"travel-diaries/internal/export"
)

func TestSinkWritesTables(t *testing.T) {
	ctx := context.Background()
	db, err := Open(SQLite, SQLiteDSN(filepath.Join(t.TempDir(), "diaries.db")))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if err := Migrate(ctx, db, SQLite); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	sink, err := NewSink(ctx, db, SQLite, "run-1", "it.0")
	if err != nil {
		t.Fatalf("NewSink() error = %v", err)
	}
	act := &export.ActivityRecord{ActivityID: 1, PersonID: "p", Type: "home", X: 1.5, Y: 2.5}
	trip := &export.TripRecord{TripID: 3, JourneyID: 2, Mode: "car", Distance: 1234.5, NextTripID: 4, PersonID: "p"}
	if err := sink.WriteActivity(ctx, act); err != nil {
		t.Fatalf("WriteActivity() error = %v", err)
	}
	if err := sink.WriteTrip(ctx, trip); err != nil {
		t.Fatalf("WriteTrip() error = %v", err)
	}
	if err := sink.WriteJourney(ctx, &export.JourneyRecord{JourneyID: 2, PersonID: "p", Stuck: true}); err != nil {
		t.Fatalf("WriteJourney() error = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var (
		runID    string
		endTime  *int64
		distance float64
		prev     *int64
		next     *int64
		stuck    bool
	)
	if err := db.QueryRowContext(ctx, "SELECT run_id, end_time FROM matsim_activities WHERE activity_id = 1").Scan(&runID, &endTime); err != nil {
		t.Fatalf("query activity: %v", err)
	}
	if runID != "run-1" || endTime != nil {
		t.Fatalf("activity row run=%s end=%v", runID, endTime)
	}
	if err := db.QueryRowContext(ctx, "SELECT distance, previous_trip_id, next_trip_id FROM matsim_trips").Scan(&distance, &prev, &next); err != nil {
		t.Fatalf("query trip: %v", err)
	}
	if distance != 1234.5 || prev != nil || next == nil || *next != 4 {
		t.Fatalf("trip row distance=%v prev=%v next=%v", distance, prev, next)
	}
	if err := db.QueryRowContext(ctx, "SELECT stucked FROM matsim_journeys").Scan(&stuck); err != nil {
		t.Fatalf("query journey: %v", err)
	}
	if !stuck {
		t.Fatal("stuck flag not stored")
	}

	run, err := LatestRun(ctx, db, SQLite, "it")
	if err != nil {
		t.Fatalf("LatestRun() error = %v", err)
	}
	if run.ID != "run-1" || run.Records != 3 {
		t.Fatalf("run = %+v", run)
	}
	if _, err := LatestRun(ctx, db, SQLite, "missing"); err == nil {
		t.Fatal("expected no run")
	}
	if err := sink.WriteActivity(ctx, act); err == nil {
		t.Fatal("write after close should fail")
	}
}

func TestSinkAbort(t *testing.T) {
	ctx := context.Background()
	db, err := Open(SQLite, SQLiteDSN(filepath.Join(t.TempDir(), "diaries.db")))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := Migrate(ctx, db, SQLite); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	sink, err := NewSink(ctx, db, SQLite, "run-2", "")
	if err != nil {
		t.Fatal(err)
	}
	_ = sink.WriteActivity(ctx, &export.ActivityRecord{ActivityID: 1, PersonID: "p"})
	if err := sink.Abort(); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM matsim_activities").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("rows after abort = %d", n)
	}
}

func TestNewSinkNeedsMigratedTables(t *testing.T) {
	ctx := context.Background()
	db, err := Open(SQLite, SQLiteDSN(filepath.Join(t.TempDir(), "diaries.db")))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := NewSink(ctx, db, SQLite, "run-3", ""); err == nil {
		t.Fatal("NewSink() on an empty database should fail")
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("NewSink() created %d tables", n)
	}
}

func TestStatements(t *testing.T) {
	pg := insertSQL(Postgres, export.TableTransfers)
	if !strings.HasPrefix(pg, "INSERT INTO matsim_transfers (run_id, transfer_id,") || !strings.HasSuffix(pg, "$11)") {
		t.Fatalf("postgres insert = %s", pg)
	}
	lite := insertSQL(SQLite, export.TableTransfers)
	if strings.Count(lite, "?") != 11 {
		t.Fatalf("sqlite insert = %s", lite)
	}
	ddl := createTableSQL(Postgres, export.TableJourneys)
	if !strings.Contains(ddl, "stucked BOOLEAN") || !strings.Contains(ddl, "distance DOUBLE PRECISION") {
		t.Fatalf("ddl = %s", ddl)
	}
	if _, err := Open("mysql", ""); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestWithDBName(t *testing.T) {
	tests := []struct {
		dsn, name, want string
		wantErr         bool
	}{
		{"postgres://u:p@h:5432/postgres?sslmode=disable", "diaries", "postgres://u:p@h:5432/diaries?sslmode=disable", false},
		{"u@h:5432/x", "/y", "postgres://u@h:5432/y", false},
		{"postgres://h/x", "", "postgres://h/x", false},
		{"mysql://h/x", "y", "", true},
		{"", "y", "", true},
	}
	for _, tt := range tests {
		got, err := WithDBName(tt.dsn, tt.name)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("WithDBName(%q, %q) = %q, %v", tt.dsn, tt.name, got, err)
		}
	}
}
