package export

import (
	"context"
	"errors"

	"github.com/sourcegraph/conc/pool"
)

// Sink receives diary records. Implementations may buffer; Close flushes.
type Sink interface {
	WriteActivity(ctx context.Context, r *ActivityRecord) error
	WriteJourney(ctx context.Context, r *JourneyRecord) error
	WriteTrip(ctx context.Context, r *TripRecord) error
	WriteTransfer(ctx context.Context, r *TransferRecord) error
	Close() error
}

// Aborter is implemented by sinks that can discard what they buffered.
type Aborter interface {
	Abort() error
}

// Abort discards the sink's output if it supports that and closes it otherwise.
func Abort(s Sink) error {
	if a, ok := s.(Aborter); ok {
		return a.Abort()
	}
	return s.Close()
}

// MultiSink writes every record to each of its sinks in order.
type MultiSink []Sink

func (m MultiSink) each(fn func(Sink) error) error {
	var errs []error
	for _, s := range m {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) WriteActivity(ctx context.Context, r *ActivityRecord) error {
	return m.each(func(s Sink) error { return s.WriteActivity(ctx, r) })
}

func (m MultiSink) WriteJourney(ctx context.Context, r *JourneyRecord) error {
	return m.each(func(s Sink) error { return s.WriteJourney(ctx, r) })
}

func (m MultiSink) WriteTrip(ctx context.Context, r *TripRecord) error {
	return m.each(func(s Sink) error { return s.WriteTrip(ctx, r) })
}

func (m MultiSink) WriteTransfer(ctx context.Context, r *TransferRecord) error {
	return m.each(func(s Sink) error { return s.WriteTransfer(ctx, r) })
}

// Close closes all sinks concurrently.
func (m MultiSink) Close() error {
	p := pool.New().WithErrors()
	for _, s := range m {
		p.Go(s.Close)
	}
	return p.Wait()
}

func (m MultiSink) Abort() error { return m.each(Abort) }

// MemorySink keeps records in memory, e.g. for inspection.
type MemorySink struct {
	Activities []*ActivityRecord
	Journeys   []*JourneyRecord
	Trips      []*TripRecord
	Transfers  []*TransferRecord
}

func (m *MemorySink) WriteActivity(_ context.Context, r *ActivityRecord) error {
	m.Activities = append(m.Activities, r)
	return nil
}

func (m *MemorySink) WriteJourney(_ context.Context, r *JourneyRecord) error {
	m.Journeys = append(m.Journeys, r)
	return nil
}

func (m *MemorySink) WriteTrip(_ context.Context, r *TripRecord) error {
	m.Trips = append(m.Trips, r)
	return nil
}

func (m *MemorySink) WriteTransfer(_ context.Context, r *TransferRecord) error {
	m.Transfers = append(m.Transfers, r)
	return nil
}

func (m *MemorySink) Close() error { return nil }
