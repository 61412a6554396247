package export

import (
	"context"
	"os"
	"strings"
	"testing"

	"travel-diaries/internal/diary"
	"travel-diaries/internal/events"
	"travel-diaries/internal/network"
)

func testNetwork() *network.Network {
	n := network.NewNetwork()
	n.Links["l1"] = network.Link{ID: "l1", Length: 1000, Coord: network.Coord{X: 10, Y: 20}}
	n.Links["l2"] = network.Link{ID: "l2", Length: 2000, Coord: network.Coord{X: 30, Y: 40}}
	return n
}

func replay(t *testing.T, evs ...events.Event) *diary.Engine {
	t.Helper()
	e := diary.New(testNetwork(), nil, diary.Options{})
	for _, ev := range evs {
		if err := e.Handle(ev); err != nil {
			t.Fatalf("Handle(%s) error = %v", ev, err)
		}
	}
	return e
}

func commute(p string) []events.Event {
	return []events.Event{
		{Time: 0, Type: events.ActivityEnd, Person: p, ActType: "home", Link: "l1", Facility: "f1"},
		{Time: 0, Type: events.Departure, Person: p, LegMode: "car", Link: "l1"},
		{Time: 0, Type: events.PersonEntersVehicle, Person: p, Vehicle: "c" + p},
		{Time: 100, Type: events.LinkLeave, Vehicle: "c" + p, Link: "l1"},
		{Time: 600, Type: events.Arrival, Person: p, Link: "l2"},
		{Time: 600, Type: events.ActivityStart, Person: p, ActType: "work", Link: "l2", Facility: "f2"},
	}
}

func transitRide(p string) []events.Event {
	return []events.Event{
		{Time: 0, Type: events.TransitDriverStarts, Driver: "drv", Vehicle: "bus1", TransitLine: "L", TransitRoute: "R"},
		{Time: 0, Type: events.ActivityEnd, Person: p, ActType: "home", Link: "l1"},
		{Time: 0, Type: events.Departure, Person: p, LegMode: "pt", Link: "l1"},
		{Time: 5, Type: events.VehicleArrivesAtStop, Vehicle: "bus1", Facility: "s1"},
		{Time: 10, Type: events.PersonEntersVehicle, Person: p, Vehicle: "bus1"},
		{Time: 12, Type: events.VehicleDepartsAtStop, Vehicle: "bus1", Facility: "s1", Delay: 2},
		{Time: 50, Type: events.LinkLeave, Vehicle: "bus1", Link: "l1"},
		{Time: 60, Type: events.VehicleArrivesAtStop, Vehicle: "bus1", Facility: "s2"},
		{Time: 61, Type: events.PersonLeavesVehicle, Person: p, Vehicle: "bus1"},
		{Time: 61, Type: events.Arrival, Person: p, Link: "l2"},
		{Time: 61, Type: events.ActivityStart, Person: p, ActType: "work", Link: "l2"},
	}
}

type fixedZones map[float64]string

func (z fixedZones) Attribute(x, _ float64, _ string) (string, bool) {
	v, ok := z[x]
	return v, ok
}

func TestExportCarJourney(t *testing.T) {
	e := replay(t, commute("a")...)
	sink := &MemorySink{}
	res, err := New(sink, Options{Seed: 7, Zones: fixedZones{10: "BE"}, ZoneAttribute: "kt"}).Export(context.Background(), e.Chains())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Activities != 2 || res.Journeys != 1 || res.Trips != 1 || res.Transfers != 0 || res.ExportFailures != 0 {
		t.Fatalf("result = %+v", res)
	}
	home, work := sink.Activities[0], sink.Activities[1]
	if home.Zone != "BE" || work.Zone != "" || home.FacilityID != "f1" {
		t.Fatalf("activities = %+v %+v", home, work)
	}
	if !home.EndTime.Valid || work.EndTime.Valid {
		t.Fatal("only the closed activity should carry an end time")
	}
	j := sink.Journeys[0]
	if j.FromAct != home.ActivityID || j.ToAct != work.ActivityID || j.MainMode != "car" || bool(j.Stuck) {
		t.Fatalf("journey = %+v", j)
	}
	trip := sink.Trips[0]
	if trip.Distance != 1000 || trip.Line != "" || trip.DepartureTime.Valid || trip.PreviousTripID != 0 || trip.NextTripID != 0 {
		t.Fatalf("trip = %+v", trip)
	}
	if trip.FromX != 10 || trip.ToY != 40 {
		t.Fatalf("trip coords = %+v", trip)
	}
}

func TestExportTransitTrip(t *testing.T) {
	e := replay(t, transitRide("p")...)
	sink := &MemorySink{}
	if _, err := New(sink, Options{}).Export(context.Background(), e.Chains()); err != nil {
		t.Fatal(err)
	}
	trip := sink.Trips[0]
	if trip.Line != "L" || trip.Route != "R" || trip.BoardingStop != "s1" || trip.AlightingStop != "s2" {
		t.Fatalf("trip = %+v", trip)
	}
	if trip.DepartureTime != someSeconds(12) || trip.DepartureDelay != someSeconds(2) {
		t.Fatalf("departure = %+v / %+v", trip.DepartureTime, trip.DepartureDelay)
	}
	j := sink.Journeys[0]
	if j.FirstBoardingStop != "s1" || j.LastAlightingStop != "s2" || j.AccessWaitTime != 10 || j.InVehicleTime != 51 {
		t.Fatalf("journey = %+v", j)
	}
}

// twoRides is walk, pt, transit walk, pt, walk within one journey.
func twoRides(p string) []events.Event {
	const interaction = diary.DefaultTransitActivityType
	hop := func(at float64, link string) []events.Event {
		return []events.Event{
			{Time: at, Type: events.ActivityStart, Person: p, ActType: interaction, Link: link},
			{Time: at, Type: events.ActivityEnd, Person: p, ActType: interaction, Link: link},
		}
	}
	evs := []events.Event{
		{Time: 0, Type: events.TransitDriverStarts, Driver: "d1", Vehicle: "V1", TransitLine: "L1", TransitRoute: "R1"},
		{Time: 0, Type: events.TransitDriverStarts, Driver: "d2", Vehicle: "V2", TransitLine: "L2", TransitRoute: "R2"},
		{Time: 0, Type: events.ActivityEnd, Person: p, ActType: "home", Link: "l1"},
		{Time: 0, Type: events.Departure, Person: p, LegMode: "walk", Link: "l1"},
		{Time: 60, Type: events.TeleportationArrival, Person: p, Distance: 100},
		{Time: 60, Type: events.Arrival, Person: p, Link: "l1"},
	}
	evs = append(evs, hop(60, "l1")...)
	evs = append(evs,
		events.Event{Time: 60, Type: events.Departure, Person: p, LegMode: "pt", Link: "l1"},
		events.Event{Time: 70, Type: events.VehicleArrivesAtStop, Vehicle: "V1", Facility: "S1"},
		events.Event{Time: 75, Type: events.PersonEntersVehicle, Person: p, Vehicle: "V1"},
		events.Event{Time: 80, Type: events.VehicleDepartsAtStop, Vehicle: "V1", Facility: "S1"},
		events.Event{Time: 100, Type: events.LinkLeave, Vehicle: "V1", Link: "l1"},
		events.Event{Time: 150, Type: events.VehicleArrivesAtStop, Vehicle: "V1", Facility: "S2"},
		events.Event{Time: 155, Type: events.PersonLeavesVehicle, Person: p, Vehicle: "V1"},
		events.Event{Time: 155, Type: events.Arrival, Person: p, Link: "l2"},
	)
	evs = append(evs, hop(155, "l2")...)
	evs = append(evs,
		events.Event{Time: 155, Type: events.Departure, Person: p, LegMode: diary.ModeTransitWalk, Link: "l2"},
		events.Event{Time: 215, Type: events.TeleportationArrival, Person: p, Distance: 200},
		events.Event{Time: 215, Type: events.Arrival, Person: p, Link: "l2"},
	)
	evs = append(evs, hop(215, "l2")...)
	evs = append(evs,
		events.Event{Time: 215, Type: events.Departure, Person: p, LegMode: "pt", Link: "l2"},
		events.Event{Time: 230, Type: events.VehicleArrivesAtStop, Vehicle: "V2", Facility: "S3"},
		events.Event{Time: 240, Type: events.PersonEntersVehicle, Person: p, Vehicle: "V2"},
		events.Event{Time: 245, Type: events.VehicleDepartsAtStop, Vehicle: "V2", Facility: "S3", Delay: 3},
		events.Event{Time: 300, Type: events.LinkLeave, Vehicle: "V2", Link: "l2"},
		events.Event{Time: 400, Type: events.VehicleArrivesAtStop, Vehicle: "V2", Facility: "S4"},
		events.Event{Time: 405, Type: events.PersonLeavesVehicle, Person: p, Vehicle: "V2"},
		events.Event{Time: 405, Type: events.Arrival, Person: p, Link: "l2"},
	)
	evs = append(evs, hop(405, "l2")...)
	return append(evs,
		events.Event{Time: 405, Type: events.Departure, Person: p, LegMode: "walk", Link: "l2"},
		events.Event{Time: 500, Type: events.TeleportationArrival, Person: p, Distance: 300},
		events.Event{Time: 500, Type: events.Arrival, Person: p, Link: "l1"},
		events.Event{Time: 500, Type: events.ActivityStart, Person: p, ActType: "work", Link: "l1"},
	)
}

func TestExportTransfers(t *testing.T) {
	e := replay(t, twoRides("w")...)
	sink := &MemorySink{}
	res, err := New(sink, Options{}).Export(context.Background(), e.Chains())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Journeys != 1 || res.Trips != 5 || res.Transfers != 1 {
		t.Fatalf("result = %+v", res)
	}

	for i, trip := range sink.Trips {
		wantPrev, wantNext := OptID(i), OptID(i+2)
		if i == len(sink.Trips)-1 {
			wantNext = 0
		}
		if trip.TripID != int64(i+1) || trip.PreviousTripID != wantPrev || trip.NextTripID != wantNext {
			t.Fatalf("trip %d: id=%d prev=%d next=%d", i, trip.TripID, trip.PreviousTripID, trip.NextTripID)
		}
	}
	first, second := sink.Trips[1], sink.Trips[3]
	if first.Line != "L1" || first.BoardingStop != "S1" || first.AlightingStop != "S2" || first.Distance != 1000 {
		t.Fatalf("first ride = %+v", first)
	}
	if second.Line != "L2" || second.BoardingStop != "S3" || second.AlightingStop != "S4" || second.DepartureDelay != someSeconds(3) {
		t.Fatalf("second ride = %+v", second)
	}

	x := sink.Transfers[0]
	if x.FromTrip != 2 || x.ToTrip != 4 || x.JourneyID != sink.Journeys[0].JourneyID {
		t.Fatalf("transfer links = %+v", x)
	}
	if x.StartTime != 155 || x.EndTime != 240 || x.WalkDistance != 200 || x.WalkTime != 60 || x.WaitTime != 25 {
		t.Fatalf("transfer = %+v", x)
	}

	j := sink.Journeys[0]
	parts := j.AccessWalkTime + j.AccessWaitTime + j.InVehicleTime + j.TransferWalkTime + j.TransferWaitTime + j.EgressWalkTime
	if parts != j.EndTime-j.StartTime {
		t.Fatalf("time parts %v, journey duration %v", parts, j.EndTime-j.StartTime)
	}
	if j.MainMode != diary.ModePT || j.FirstBoardingStop != "S1" || j.LastAlightingStop != "S4" {
		t.Fatalf("journey = %+v", j)
	}
}

func TestExportCountsBrokenJourneys(t *testing.T) {
	evs := commute("a")
	e := replay(t, evs[:len(evs)-1]...)
	sink := &MemorySink{}
	res, err := New(sink, Options{}).Export(context.Background(), e.Chains())
	if err != nil {
		t.Fatal(err)
	}
	if res.ExportFailures != 1 || res.Journeys != 0 || res.Trips != 0 || res.Activities != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestExportSampleSelectorIsSeeded(t *testing.T) {
	e := replay(t, commute("a")...)
	run := func(seed uint64) []Float {
		sink := &MemorySink{}
		if _, err := New(sink, Options{Seed: seed}).Export(context.Background(), e.Chains()); err != nil {
			t.Fatal(err)
		}
		return []Float{sink.Activities[0].SampleSelector, sink.Journeys[0].SampleSelector, sink.Trips[0].SampleSelector}
	}
	a, b, c := run(1), run(1), run(2)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed differs at %d", i)
		}
		if a[i] < 0 || a[i] >= 1 {
			t.Fatalf("selector out of range: %v", a[i])
		}
	}
	if a[0] == c[0] && a[1] == c[1] {
		t.Fatal("different seeds gave the same selectors")
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		appendage, want string
	}{
		{"", "matsim_trips.txt"},
		{"run1_", "run1_matsim_trips.txt"},
		{"abc", "abcmatsim_trips.txt"},
		{"it.3", "matsim_trips_it.3.txt"},
		{"_it.3", "matsim_trips_it.3.txt"},
		{".final", "matsim_trips.final.txt"},
	}
	for _, tt := range tests {
		if got := FileName(TableTrips, tt.appendage); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.appendage, got, tt.want)
		}
	}
}

func TestTSVSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewTSVSink(dir, "it.0")
	if err != nil {
		t.Fatalf("NewTSVSink() error = %v", err)
	}
	e := replay(t, transitRide("p")...)
	res, err := New(MultiSink{sink, &MemorySink{}}, Options{}).Export(context.Background(), e.Chains())
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if res.Records() != 4 {
		t.Fatalf("records = %d", res.Records())
	}

	b, err := os.ReadFile(sink.Path(TableTrips))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("trip file lines = %d", len(lines))
	}
	header := strings.Split(lines[0], "\t")
	if header[0] != "trip_id" || header[len(header)-1] != "next_trip_id" || len(header) != 19 {
		t.Fatalf("header = %v", header)
	}
	row := strings.Split(lines[1], "\t")
	if row[4] != "1000.000" || row[5] != "pt" || row[10] != "12" || row[11] != "2" || row[17] != "" {
		t.Fatalf("row = %q", row)
	}

	b, err = os.ReadFile(sink.Path(TableActivities))
	if err != nil {
		t.Fatal(err)
	}
	acts := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	last := strings.Split(acts[len(acts)-1], "\t")
	if last[3] != "work" || last[5] != "" || last[6] != "30.000000" {
		t.Fatalf("activity row = %q", last)
	}

	b, err = os.ReadFile(sink.Path(TableTransfers))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(b)); !strings.HasPrefix(got, "transfer_id\tjourney_id") || strings.Contains(got, "\n") {
		t.Fatalf("transfers file = %q", got)
	}
}
