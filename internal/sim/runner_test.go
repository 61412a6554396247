package sim

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"travel-diaries/internal/diary"
	"travel-diaries/internal/events"
	"travel-diaries/internal/export"
	"travel-diaries/internal/metrics"
	"travel-diaries/internal/network"
)

const testEvents = `<?xml version="1.0" encoding="utf-8"?>
<events version="1.0">
	<event time="0.0" type="actend" person="a" link="l1" actType="home"  />
	<event time="0.0" type="departure" person="a" link="l1" legMode="car"  />
	<event time="0.0" type="PersonEntersVehicle" person="a" vehicle="a"  />
	<event time="30.0" type="left link" link="l1" vehicle="a"  />
	<event time="30.0" type="entered link" link="l2" vehicle="a"  />
	<event time="40.0" type="vehicle leaves traffic" person="a" link="l2" vehicle="a" networkMode="car" relativePosition="1.0"  />
	<event time="40.0" type="PersonLeavesVehicle" person="a" vehicle="a"  />
	<event time="40.0" type="arrival" person="a" link="l2" legMode="car"  />
	<event time="40.0" type="actstart" person="a" link="l2" actType="work"  />
	<event time="50.0" type="actend" person="b" link="l1" actType="home"  />
	<event time="50.0" type="departure" person="b" link="l1" legMode="walk"  />
	<event time="99.0" type="stuckAndAbort" person="b" link="l1" legMode="walk"  />
</events>`

func testNetwork() *network.Network {
	n := network.NewNetwork()
	n.Links["l1"] = network.Link{ID: "l1", Length: 250}
	n.Links["l2"] = network.Link{ID: "l2", Length: 500}
	return n
}

type recordingSinks struct {
	appendages []string
	sinks      []*export.MemorySink
	fail       bool
}

func (r *recordingSinks) open(_ context.Context, _, appendage string) (export.Sink, error) {
	if r.fail {
		return nil, errors.New("no output")
	}
	s := &export.MemorySink{}
	r.appendages = append(r.appendages, appendage)
	r.sinks = append(r.sinks, s)
	return s, nil
}

// scriptSource yields events in order; an entry with a non-nil err is returned as an error.
type scriptSource []struct {
	ev  events.Event
	err error
}

func (s *scriptSource) Next(context.Context) (events.Event, error) {
	if len(*s) == 0 {
		return events.Event{}, io.EOF
	}
	next := (*s)[0]
	*s = (*s)[1:]
	return next.ev, next.err
}

func TestRunnerSingleFile(t *testing.T) {
	sinks := &recordingSinks{}
	m := metrics.NewCollector()
	engine := diary.New(testNetwork(), nil, diary.Options{Observer: m})
	r := NewRunner(engine, sinks.open, Options{Appendage: "base_", Seed: 3}, m)

	out, err := r.Run(context.Background(), events.NewXMLReader(strings.NewReader(testEvents)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out) != 1 || sinks.appendages[0] != "base_" {
		t.Fatalf("summaries=%d appendages=%v", len(out), sinks.appendages)
	}
	s := out[0]
	if s.Events != 11 || s.Ignored != 1 || s.StuckEvents != 1 || s.Chains != 2 {
		t.Fatalf("summary = %+v", s)
	}
	if s.Export.Journeys != 1 || s.Export.Activities != 3 || s.Export.ExportFailures != 0 {
		t.Fatalf("export = %+v", s.Export)
	}
	trips := sinks.sinks[0].Trips
	if len(trips) != 1 || trips[0].Distance != 250 {
		t.Fatalf("trips = %+v", trips)
	}
	if len(engine.Chains()) != 0 {
		t.Fatal("engine not reset after finish")
	}
	if r.RunID() == "" || s.RunID != r.RunID() {
		t.Fatal("run id missing")
	}
}

func TestRunnerIterations(t *testing.T) {
	home := events.Event{Time: 0, Type: events.ActivityEnd, Person: "a", ActType: "home", Link: "l1"}
	src := &scriptSource{{ev: home}, {err: events.ErrIterationEnd}, {ev: home}}
	sinks := &recordingSinks{}
	r := NewRunner(diary.New(testNetwork(), nil, diary.Options{}), sinks.open, Options{}, nil)
	out, err := r.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out) != 2 || sinks.appendages[0] != "it.0" || sinks.appendages[1] != "it.1" {
		t.Fatalf("appendages = %v", sinks.appendages)
	}
	for i, s := range sinks.sinks {
		if len(s.Activities) != 1 || s.Activities[0].ActivityID != 1 {
			t.Fatalf("iteration %d activities = %+v", i, s.Activities)
		}
	}
}

func TestRunnerExportsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sinks := &recordingSinks{}
	r := NewRunner(diary.New(testNetwork(), nil, diary.Options{}), sinks.open, Options{}, nil)
	out, err := r.Run(ctx, events.NewXMLReader(strings.NewReader(testEvents)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out) != 1 || out[0].Events != 0 {
		t.Fatalf("summaries = %+v", out)
	}
}

func TestRunnerSinkError(t *testing.T) {
	r := NewRunner(diary.New(testNetwork(), nil, diary.Options{}), (&recordingSinks{fail: true}).open, Options{}, nil)
	if _, err := r.Run(context.Background(), events.NewXMLReader(strings.NewReader(testEvents))); err == nil {
		t.Fatal("expected sink error")
	}
}

func TestIterationAppendage(t *testing.T) {
	if got := IterationAppendage("", 3); got != "it.3" {
		t.Fatalf("IterationAppendage() = %q", got)
	}
	if got := IterationAppendage("x_", 0); got != "x_it.0" {
		t.Fatalf("IterationAppendage() = %q", got)
	}
}
