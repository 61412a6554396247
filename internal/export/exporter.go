// Package export turns reconstructed travel diaries into table records.
package export

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog/log"

	"travel-diaries/internal/diary"
)

// ZoneLocator resolves the zone attribute of an activity location.
type ZoneLocator interface {
	Attribute(x, y float64, attr string) (string, bool)
}

type Options struct {
	// Seed of the sample selector generator; equal seeds give equal output.
	Seed          uint64
	Zones         ZoneLocator
	ZoneAttribute string
}

// Result counts what one export produced.
type Result struct {
	Activities     int
	Journeys       int
	Trips          int
	Transfers      int
	ExportFailures int
}

func (r Result) Records() int { return r.Activities + r.Journeys + r.Trips + r.Transfers }

type Exporter struct {
	sink Sink
	opts Options
	rng  *rand.Rand
}

func New(sink Sink, opts Options) *Exporter {
	return &Exporter{
		sink: sink,
		opts: opts,
		rng:  rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
}

// Export writes all chains in order. Malformed journeys are skipped and counted; only sink
// errors abort.
func (x *Exporter) Export(ctx context.Context, chains []*diary.Chain) (Result, error) {
	var res Result
	for _, c := range chains {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := x.ExportChain(ctx, c, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (x *Exporter) ExportChain(ctx context.Context, c *diary.Chain, res *Result) error {
	for _, act := range c.Activities {
		if err := x.sink.WriteActivity(ctx, x.activity(c, act)); err != nil {
			return fmt.Errorf("activity %d: %w", act.ID, err)
		}
		res.Activities++
	}
	for _, j := range c.Journeys {
		if j.From == nil || j.To == nil {
			res.ExportFailures++
			log.Debug().Str("person", c.Traveler).Int64("journey", j.ID).Msg("Skipping journey without from/to activity")
			continue
		}
		if err := x.sink.WriteJourney(ctx, x.journey(c, j)); err != nil {
			return fmt.Errorf("journey %d: %w", j.ID, err)
		}
		res.Journeys++

		reduced := !j.HasTransit()
		for i, t := range j.Trips {
			rec := x.trip(c, j, t, reduced)
			if i > 0 {
				rec.PreviousTripID = OptID(j.Trips[i-1].ID)
			}
			if i < len(j.Trips)-1 {
				rec.NextTripID = OptID(j.Trips[i+1].ID)
			}
			if err := x.sink.WriteTrip(ctx, rec); err != nil {
				return fmt.Errorf("trip %d: %w", t.ID, err)
			}
			res.Trips++
		}
		for _, xfer := range j.Transfers {
			if err := x.sink.WriteTransfer(ctx, x.transfer(c, j, xfer)); err != nil {
				return fmt.Errorf("transfer %d: %w", xfer.ID, err)
			}
			res.Transfers++
		}
	}
	return nil
}

func (x *Exporter) sample() Float { return Float(x.rng.Float64()) }

func (x *Exporter) activity(c *diary.Chain, a *diary.Activity) *ActivityRecord {
	rec := &ActivityRecord{
		ActivityID:     a.ID,
		PersonID:       c.Traveler,
		FacilityID:     a.Facility,
		Type:           a.Type,
		StartTime:      Seconds(a.StartTime),
		X:              Float(a.Coord.X),
		Y:              Float(a.Coord.Y),
		SampleSelector: x.sample(),
	}
	if a.HasEnd {
		rec.EndTime = someSeconds(a.EndTime)
	}
	if x.opts.Zones != nil {
		rec.Zone, _ = x.opts.Zones.Attribute(a.Coord.X, a.Coord.Y, x.opts.ZoneAttribute)
	}
	return rec
}

func (x *Exporter) journey(c *diary.Chain, j *diary.Journey) *JourneyRecord {
	s := j.Summary
	return &JourneyRecord{
		JourneyID:            j.ID,
		PersonID:             c.Traveler,
		StartTime:            Seconds(j.StartTime),
		EndTime:              Seconds(j.EndTime),
		Distance:             Meters(s.Distance),
		MainMode:             s.MainMode,
		MainModeMikrozensus:  s.SecondaryMode,
		FromAct:              j.From.ID,
		ToAct:                j.To.ID,
		InVehicleDistance:    Meters(s.InVehicleDistance),
		InVehicleTime:        Seconds(s.InVehicleTime),
		AccessWalkDistance:   Meters(s.AccessWalkDistance),
		AccessWalkTime:       Seconds(s.AccessWalkTime),
		AccessWaitTime:       Seconds(s.AccessWaitTime),
		FirstBoardingStop:    s.FirstBoardingStop,
		EgressWalkDistance:   Meters(s.EgressWalkDistance),
		EgressWalkTime:       Seconds(s.EgressWalkTime),
		LastAlightingStop:    s.LastAlightingStop,
		TransferWalkDistance: Meters(s.TransferWalkDistance),
		TransferWalkTime:     Seconds(s.TransferWalkTime),
		TransferWaitTime:     Seconds(s.TransferWaitTime),
		SampleSelector:       x.sample(),
		Stuck:                Flag(c.Stuck),
	}
}

// trip builds a trip record. Journeys without a transit boarding get the reduced form
// without line, route, stop and departure fields.
func (x *Exporter) trip(c *diary.Chain, j *diary.Journey, t *diary.Trip, reduced bool) *TripRecord {
	rec := &TripRecord{
		TripID:         t.ID,
		JourneyID:      j.ID,
		StartTime:      Seconds(t.StartTime),
		EndTime:        Seconds(t.EndTime),
		Distance:       Meters(t.Distance),
		Mode:           t.Mode,
		SampleSelector: x.sample(),
		FromX:          Float(t.Orig.X),
		FromY:          Float(t.Orig.Y),
		ToX:            Float(t.Dest.X),
		ToY:            Float(t.Dest.Y),
		PersonID:       c.Traveler,
	}
	if reduced {
		return rec
	}
	rec.Line = t.Line
	rec.Route = t.Route
	rec.BoardingStop = t.BoardingStop
	rec.AlightingStop = t.AlightingStop
	if t.HasDeparture() {
		rec.DepartureTime = someSeconds(t.PTDepartureTime)
		rec.DepartureDelay = someSeconds(t.DepartureDelay)
	}
	return rec
}

func (x *Exporter) transfer(c *diary.Chain, j *diary.Journey, t *diary.Transfer) *TransferRecord {
	return &TransferRecord{
		TransferID:     t.ID,
		JourneyID:      j.ID,
		StartTime:      Seconds(t.StartTime),
		EndTime:        Seconds(t.EndTime),
		FromTrip:       t.From.ID,
		ToTrip:         t.To.ID,
		WalkDistance:   Meters(t.WalkDistance),
		WalkTime:       Seconds(t.WalkTime),
		WaitTime:       Seconds(t.WaitTime),
		SampleSelector: x.sample(),
		PersonID:       c.Traveler,
	}
}
