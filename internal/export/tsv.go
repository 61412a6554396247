package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

var prefixAppendage = regexp.MustCompile(`^[a-zA-Z0-9]*_*$`)

// FileName returns the file a table is written to. Appendages made of letters and digits
// followed by underscores prefix the table name; anything else is appended.
func FileName(t Table, appendage string) string {
	if prefixAppendage.MatchString(appendage) {
		return appendage + string(t) + ".txt"
	}
	if appendage[0] != '_' && appendage[0] != '.' {
		appendage = "_" + appendage
	}
	return string(t) + appendage + ".txt"
}

// TSVSink buffers records and writes one tab separated file per table on Close.
type TSVSink struct {
	dir       string
	appendage string

	mu         sync.Mutex
	activities []*ActivityRecord
	journeys   []*JourneyRecord
	trips      []*TripRecord
	transfers  []*TransferRecord
}

func NewTSVSink(dir, appendage string) (*TSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output dir: %w", err)
	}
	return &TSVSink{dir: dir, appendage: appendage}, nil
}

// Path returns the file a table is written to.
func (s *TSVSink) Path(t Table) string {
	return filepath.Join(s.dir, FileName(t, s.appendage))
}

func (s *TSVSink) WriteActivity(_ context.Context, r *ActivityRecord) error {
	s.mu.Lock()
	s.activities = append(s.activities, r)
	s.mu.Unlock()
	return nil
}

func (s *TSVSink) WriteJourney(_ context.Context, r *JourneyRecord) error {
	s.mu.Lock()
	s.journeys = append(s.journeys, r)
	s.mu.Unlock()
	return nil
}

func (s *TSVSink) WriteTrip(_ context.Context, r *TripRecord) error {
	s.mu.Lock()
	s.trips = append(s.trips, r)
	s.mu.Unlock()
	return nil
}

func (s *TSVSink) WriteTransfer(_ context.Context, r *TransferRecord) error {
	s.mu.Lock()
	s.transfers = append(s.transfers, r)
	s.mu.Unlock()
	return nil
}

// Close writes the four tables in parallel.
func (s *TSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := pool.New().WithErrors()
	p.Go(func() error { return s.writeTable(TableActivities, s.activities, len(s.activities)) })
	p.Go(func() error { return s.writeTable(TableJourneys, s.journeys, len(s.journeys)) })
	p.Go(func() error { return s.writeTable(TableTrips, s.trips, len(s.trips)) })
	p.Go(func() error { return s.writeTable(TableTransfers, s.transfers, len(s.transfers)) })
	return p.Wait()
}

// Abort drops the buffered records without writing any file.
func (s *TSVSink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities, s.journeys, s.trips, s.transfers = nil, nil, nil, nil
	return nil
}

func (s *TSVSink) writeTable(t Table, records any, n int) error {
	path := s.Path(t)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := gocsv.MarshalCSV(records, gocsv.NewSafeCSVWriter(w)); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("records", n).Msg("Wrote table")
	return nil
}
