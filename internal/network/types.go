package network

import "math"

type Coord struct {
	X float64
	Y float64
}

// Distance is the euclidean distance in the projected coordinate system (meters).
func (c Coord) Distance(o Coord) float64 {
	return math.Hypot(o.X-c.X, o.Y-c.Y)
}

type Node struct {
	ID    string
	Coord Coord
}

type Link struct {
	ID     string
	From   string
	To     string
	Length float64 // meters
	Coord  Coord   // midpoint of the end nodes
}

type Network struct {
	Nodes map[string]Node
	Links map[string]Link
}

func NewNetwork() *Network {
	return &Network{Nodes: make(map[string]Node), Links: make(map[string]Link)}
}

// LinkCoord returns the coordinate events on the link are located at.
func (n *Network) LinkCoord(id string) (Coord, bool) {
	if n == nil {
		return Coord{}, false
	}
	l, ok := n.Links[id]
	return l.Coord, ok
}

func (n *Network) LinkLength(id string) (float64, bool) {
	if n == nil {
		return 0, false
	}
	l, ok := n.Links[id]
	return l.Length, ok
}

type StopFacility struct {
	ID    string
	Coord Coord
	Link  string
}

type Departure struct {
	ID      string
	TimeSec float64 // seconds since midnight, may exceed 24h
	Vehicle string
}

type TransitRoute struct {
	ID         string
	Mode       string
	Departures []Departure
}

type TransitLine struct {
	ID     string
	Routes map[string]*TransitRoute
}

type Schedule struct {
	Stops map[string]StopFacility
	Lines map[string]*TransitLine
}

func NewSchedule() *Schedule {
	return &Schedule{Stops: make(map[string]StopFacility), Lines: make(map[string]*TransitLine)}
}

// RouteMode returns the transport mode of a transit route.
func (s *Schedule) RouteMode(line, route string) (string, bool) {
	if s == nil {
		return "", false
	}
	l, ok := s.Lines[line]
	if !ok {
		return "", false
	}
	r, ok := l.Routes[route]
	if !ok || r.Mode == "" {
		return "", false
	}
	return r.Mode, true
}

func (s *Schedule) StopCoord(id string) (Coord, bool) {
	if s == nil {
		return Coord{}, false
	}
	st, ok := s.Stops[id]
	return st.Coord, ok
}

// VehicleAssignment is one scheduled departure's vehicle binding.
type VehicleAssignment struct {
	Vehicle string
	Line    string
	Route   string
}

// Vehicles enumerates the vehicles referenced by departures, ordered by line and route id.
func (s *Schedule) Vehicles() []VehicleAssignment {
	if s == nil {
		return nil
	}
	var out []VehicleAssignment
	for _, lineID := range sortedKeys(s.Lines) {
		line := s.Lines[lineID]
		for _, routeID := range sortedKeys(line.Routes) {
			for _, dep := range line.Routes[routeID].Departures {
				if dep.Vehicle == "" {
					continue
				}
				out = append(out, VehicleAssignment{Vehicle: dep.Vehicle, Line: lineID, Route: routeID})
			}
		}
	}
	return out
}
