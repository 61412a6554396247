package diary

import (
	"travel-diaries/internal/network"
)

type Coord = network.Coord

type Activity struct {
	ID        int64
	Type      string
	Facility  string
	Link      string
	Coord     Coord
	StartTime float64
	EndTime   float64
	HasEnd    bool
}

// Trip is one uninterrupted leg. StartTime is the boarding time for transit trips and the
// departure time otherwise; Departed always holds the departure time.
type Trip struct {
	ID        int64
	Mode      string
	Departed  float64
	StartTime float64
	EndTime   float64
	Distance  float64
	Orig      Coord
	Dest      Coord

	Transit       bool
	Vehicle       string
	Line          string
	Route         string
	BoardingStop  string
	AlightingStop string

	PTDepartureTime float64
	DepartureDelay  float64
	departureSet    bool
}

func (t *Trip) Duration() float64 {
	return max(0, t.EndTime-t.StartTime)
}

// Wait is the time spent between departing and boarding the transit vehicle.
func (t *Trip) Wait() float64 {
	if !t.Transit {
		return 0
	}
	return max(0, t.StartTime-t.Departed)
}

// HasDeparture reports whether a vehicle departure was stamped onto the trip.
func (t *Trip) HasDeparture() bool { return t.departureSet }

func (t *Trip) stampDeparture(time, delay float64) {
	if t.departureSet {
		return
	}
	t.PTDepartureTime = time
	t.DepartureDelay = delay
	t.departureSet = true
}

// Transfer is the walk/wait segment between two transit trips of one journey.
type Transfer struct {
	ID           int64
	From         *Trip
	To           *Trip
	StartTime    float64
	EndTime      float64
	WalkDistance float64
	WalkTime     float64
	WaitTime     float64
}

// Summary holds the aggregates derived when a journey closes.
type Summary struct {
	MainMode             string
	SecondaryMode        string
	Distance             float64
	InVehicleDistance    float64
	InVehicleTime        float64
	AccessWalkDistance   float64
	AccessWalkTime       float64
	AccessWaitTime       float64
	FirstBoardingStop    string
	EgressWalkDistance   float64
	EgressWalkTime       float64
	LastAlightingStop    string
	TransferWalkDistance float64
	TransferWalkTime     float64
	TransferWaitTime     float64
}

type Journey struct {
	ID        int64
	StartTime float64
	EndTime   float64
	Orig      Coord
	Dest      Coord
	From      *Activity
	To        *Activity
	Trips     []*Trip
	Transfers []*Transfer
	Summary   Summary
}

// Closed reports whether the traveler reached the next activity.
func (j *Journey) Closed() bool { return j.To != nil }

func (j *Journey) LastTrip() (*Trip, bool) {
	if len(j.Trips) == 0 {
		return nil, false
	}
	return j.Trips[len(j.Trips)-1], true
}

// HasTransit reports whether any trip boarded a transit vehicle.
func (j *Journey) HasTransit() bool {
	for _, t := range j.Trips {
		if t.Transit {
			return true
		}
	}
	return false
}

// Chain is the activity/journey history of one traveler.
type Chain struct {
	Traveler        string
	Activities      []*Activity
	Journeys        []*Journey
	InPT            bool
	Stuck           bool
	TraveledVehicle bool
	Diagnostics     []Diagnostic

	lastTime float64
	seen     bool
}

func newChain(traveler string) *Chain {
	return &Chain{Traveler: traveler}
}

func (c *Chain) LastActivity() (*Activity, bool) {
	if len(c.Activities) == 0 {
		return nil, false
	}
	return c.Activities[len(c.Activities)-1], true
}

func (c *Chain) LastJourney() (*Journey, bool) {
	if len(c.Journeys) == 0 {
		return nil, false
	}
	return c.Journeys[len(c.Journeys)-1], true
}

// OpenJourney returns the journey the traveler is currently on.
func (c *Chain) OpenJourney() (*Journey, bool) {
	j, ok := c.LastJourney()
	if !ok || j.Closed() {
		return nil, false
	}
	return j, true
}

// OpenTrip returns the last trip of the open journey.
func (c *Chain) OpenTrip() (*Trip, error) {
	j, ok := c.OpenJourney()
	if !ok {
		return nil, ErrNoOpenJourney
	}
	t, ok := j.LastTrip()
	if !ok {
		return nil, ErrNoOpenTrip
	}
	return t, nil
}

func (c *Chain) dropOpenJourney() bool {
	if _, ok := c.OpenJourney(); !ok {
		return false
	}
	c.Journeys = c.Journeys[:len(c.Journeys)-1]
	return true
}

const maxChainDiagnostics = 32

func (c *Chain) addDiagnostic(d Diagnostic) {
	if len(c.Diagnostics) < maxChainDiagnostics {
		c.Diagnostics = append(c.Diagnostics, d)
	}
}

// checkOrder rejects events earlier than the last event applied to the chain.
func (c *Chain) checkOrder(t float64) error {
	if c.seen && t < c.lastTime {
		return ErrOutOfOrder
	}
	return nil
}

func (c *Chain) touch(t float64) {
	c.lastTime = t
	c.seen = true
}
