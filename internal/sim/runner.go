// Package sim drives event sources through the diary engine and exports the result.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"travel-diaries/internal/diary"
	"travel-diaries/internal/events"
	"travel-diaries/internal/export"
	"travel-diaries/internal/metrics"
)

// SinkFactory opens the output of one iteration.
type SinkFactory func(ctx context.Context, runID, appendage string) (export.Sink, error)

type Options struct {
	// Appendage names the output tables; iterations add "it.<n>".
	Appendage     string
	Seed          uint64
	Zones         export.ZoneLocator
	ZoneAttribute string
}

// Summary describes one finished iteration.
type Summary struct {
	RunID       string
	Iteration   int
	Appendage   string
	Events      int64
	Ignored     int64
	Rejected    int64
	StuckEvents int64
	Chains      int
	Vehicles    int
	Diagnostics map[string]int64
	Export      export.Result
	Duration    time.Duration
}

type Runner struct {
	engine  *diary.Engine
	newSink SinkFactory
	opts    Options
	metrics *metrics.Collector
	runID   string

	iteration int
}

func NewRunner(engine *diary.Engine, newSink SinkFactory, opts Options, m *metrics.Collector) *Runner {
	return &Runner{
		engine:  engine,
		newSink: newSink,
		opts:    opts,
		metrics: m,
		runID:   uuid.NewString(),
	}
}

func (r *Runner) RunID() string { return r.runID }

func (r *Runner) Engine() *diary.Engine { return r.engine }

const progressEvery = 1_000_000

// Replay applies events until the source is exhausted (io.EOF) or signals the end of an
// iteration (events.ErrIterationEnd); either is returned as is. Event errors never stop a
// replay; they are recorded by the engine.
func (r *Runner) Replay(ctx context.Context, src events.Source) error {
	var n int64
	for {
		ev, err := src.Next(ctx)
		if err != nil {
			return err
		}
		_ = r.engine.Handle(ev)
		n++
		if n%progressEvery == 0 {
			log.Info().Int64("events", n).Float64("sim_time", ev.Time).Int("chains", len(r.engine.Chains())).Msg("Replaying events")
		}
	}
}

// Finish exports the current iteration under the given appendage and resets the engine.
func (r *Runner) Finish(ctx context.Context, appendage string) (Summary, error) {
	start := time.Now()
	st := r.engine.Stats()
	sum := Summary{
		RunID:       r.runID,
		Iteration:   r.iteration,
		Appendage:   appendage,
		Events:      st.Events,
		Ignored:     st.Ignored,
		Rejected:    st.Rejected,
		StuckEvents: st.StuckEvents,
		Chains:      len(r.engine.Chains()),
		Vehicles:    r.engine.Vehicles().Len(),
		Diagnostics: maps.Clone(st.Diagnostics),
	}

	sink, err := r.newSink(ctx, r.runID, appendage)
	if err != nil {
		return sum, fmt.Errorf("open output: %w", err)
	}
	exp := export.New(sink, export.Options{
		Seed:          r.opts.Seed + uint64(r.iteration),
		Zones:         r.opts.Zones,
		ZoneAttribute: r.opts.ZoneAttribute,
	})
	res, err := exp.Export(ctx, r.engine.Chains())
	sum.Export = res
	if err != nil {
		if aerr := export.Abort(sink); aerr != nil {
			log.Error().Err(aerr).Msg("Failed to discard output")
		}
		return sum, fmt.Errorf("export: %w", err)
	}
	if err := sink.Close(); err != nil {
		return sum, fmt.Errorf("close output: %w", err)
	}
	sum.Duration = time.Since(start)

	r.observe(sum)
	log.Info().
		Str("run", r.runID).
		Int("iteration", r.iteration).
		Str("appendage", appendage).
		Int64("events", sum.Events).
		Int64("ignored", sum.Ignored).
		Int64("rejected", sum.Rejected).
		Int("chains", sum.Chains).
		Int64("stuck", sum.StuckEvents).
		Int("export_failures", res.ExportFailures).
		Int("records", res.Records()).
		Dur("export_took", sum.Duration).
		Msg("Iteration finished")
	for reason, n := range sum.Diagnostics {
		log.Info().Str("reason", reason).Int64("count", n).Msg("Event diagnostics")
	}

	r.engine.Reset()
	r.iteration++
	return sum, nil
}

func (r *Runner) observe(s Summary) {
	if r.metrics == nil {
		return
	}
	r.metrics.Chains.Set(float64(s.Chains))
	r.metrics.Vehicles.Set(float64(s.Vehicles))
	r.metrics.ExportFailures.Add(float64(s.Export.ExportFailures))
	r.metrics.RecordsWritten.WithLabelValues(string(export.TableActivities)).Add(float64(s.Export.Activities))
	r.metrics.RecordsWritten.WithLabelValues(string(export.TableJourneys)).Add(float64(s.Export.Journeys))
	r.metrics.RecordsWritten.WithLabelValues(string(export.TableTrips)).Add(float64(s.Export.Trips))
	r.metrics.RecordsWritten.WithLabelValues(string(export.TableTransfers)).Add(float64(s.Export.Transfers))
	r.metrics.ExportDuration.Observe(s.Duration.Seconds())
	r.metrics.Iterations.Inc()
}

// IterationAppendage names the output of iteration n when a run has several.
func IterationAppendage(base string, n int) string {
	return fmt.Sprintf("%sit.%d", base, n)
}

// Run replays a source that may contain several iterations. Each iteration boundary
// exports and resets; the final iteration is exported when the source ends or ctx is
// cancelled.
func (r *Runner) Run(ctx context.Context, src events.Source) ([]Summary, error) {
	var out []Summary
	for {
		err := r.Replay(ctx, src)
		switch {
		case errors.Is(err, events.ErrIterationEnd):
			s, ferr := r.Finish(ctx, IterationAppendage(r.opts.Appendage, r.iteration))
			if ferr != nil {
				return out, ferr
			}
			out = append(out, s)
			continue
		case errors.Is(err, io.EOF):
		case errors.Is(err, context.Canceled):
			log.Info().Msg("Interrupted, exporting what was received")
			ctx = context.WithoutCancel(ctx)
		default:
			return out, err
		}

		appendage := r.opts.Appendage
		if r.iteration > 0 {
			appendage = IterationAppendage(r.opts.Appendage, r.iteration)
		}
		s, err := r.Finish(ctx, appendage)
		if err != nil {
			return out, err
		}
		return append(out, s), nil
	}
}
