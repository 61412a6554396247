package network

import (
	"strings"
	"testing"
)

const testNetwork = `<?xml version="1.0" encoding="UTF-8"?>
<network>
  <nodes>
    <node id="n1" x="0.0" y="0.0"/>
    <node id="n2" x="1000.0" y="0.0"/>
    <node id="n3" x="1000.0" y="2000.0"/>
  </nodes>
  <links capperiod="01:00:00">
    <link id="l1" from="n1" to="n2" length="1000.0" freespeed="13.9" capacity="1000" permlanes="1"/>
    <link id="l2" from="n2" to="n3" length="2000.0" freespeed="13.9" capacity="1000" permlanes="1"/>
    <link id="l3" from="n3" to="nx" length="5.5" freespeed="13.9" capacity="1000" permlanes="1"/>
  </links>
</network>`

const testSchedule = `<?xml version="1.0" encoding="UTF-8"?>
<transitSchedule>
  <transitStops>
    <stopFacility id="s1" x="10.0" y="20.0" linkRefId="l1"/>
    <stopFacility id="s2" x="1000.0" y="1500.0" linkRefId="l2"/>
  </transitStops>
  <transitLine id="L1">
    <transitRoute id="R1">
      <transportMode> bus </transportMode>
      <routeProfile/>
      <departures>
        <departure id="d1" departureTime="07:30:00" vehicleRefId="v1"/>
        <departure id="d2" departureTime="25:00:10" vehicleRefId="v2"/>
      </departures>
    </transitRoute>
  </transitLine>
</transitSchedule>`

func TestReadNetwork(t *testing.T) {
	n, err := ReadNetwork(strings.NewReader(testNetwork))
	if err != nil {
		t.Fatalf("ReadNetwork() error = %v", err)
	}
	if len(n.Nodes) != 3 || len(n.Links) != 3 {
		t.Fatalf("unexpected sizes nodes=%d links=%d", len(n.Nodes), len(n.Links))
	}
	c, ok := n.LinkCoord("l2")
	if !ok || c.X != 1000 || c.Y != 1000 {
		t.Fatalf("LinkCoord(l2) = %v, %v", c, ok)
	}
	if l, ok := n.LinkLength("l1"); !ok || l != 1000 {
		t.Fatalf("LinkLength(l1) = %v, %v", l, ok)
	}
	if c, ok := n.LinkCoord("l3"); !ok || c != (Coord{}) {
		t.Fatalf("link with unknown node should keep zero coord, got %v", c)
	}
	if _, ok := n.LinkCoord("missing"); ok {
		t.Fatal("expected missing link lookup to fail")
	}
}

func TestReadSchedule(t *testing.T) {
	s, err := ReadSchedule(strings.NewReader(testSchedule))
	if err != nil {
		t.Fatalf("ReadSchedule() error = %v", err)
	}
	mode, ok := s.RouteMode("L1", "R1")
	if !ok || mode != "bus" {
		t.Fatalf("RouteMode() = %q, %v", mode, ok)
	}
	if _, ok := s.RouteMode("L1", "nope"); ok {
		t.Fatal("expected unknown route lookup to fail")
	}
	vehicles := s.Vehicles()
	if len(vehicles) != 2 || vehicles[0].Vehicle != "v1" || vehicles[1].Line != "L1" || vehicles[1].Route != "R1" {
		t.Fatalf("unexpected vehicles %+v", vehicles)
	}
	if got := s.Lines["L1"].Routes["R1"].Departures[1].TimeSec; got != 90010 {
		t.Fatalf("departure time = %v, want 90010", got)
	}
	if c, ok := s.StopCoord("s2"); !ok || c.Y != 1500 {
		t.Fatalf("StopCoord(s2) = %v, %v", c, ok)
	}
}

func TestParseDaySeconds(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"00:00:01", 1},
		{"08:15", 8*3600 + 15*60},
		{"24:00:00", 86400},
		{"07:00:30.5", 7*3600 + 30},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := parseDaySeconds(tt.in); got != tt.want {
			t.Errorf("parseDaySeconds(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
