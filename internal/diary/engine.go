package diary

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"travel-diaries/internal/events"
	"travel-diaries/internal/network"
)

// Network resolves link ids referenced by events.
type Network interface {
	LinkCoord(id string) (network.Coord, bool)
	LinkLength(id string) (float64, bool)
}

// Schedule resolves the transport mode of a transit route.
type Schedule interface {
	RouteMode(line, route string) (string, bool)
}

// Observer receives engine measurements. Implementations must be cheap; they run once per event.
type Observer interface {
	EventHandled(t events.Type, d time.Duration)
	DiagnosticRecorded(reason string)
	StuckEvent()
}

type Options struct {
	// TransitActivityType names the pseudo activity between transit legs.
	TransitActivityType string
	// Vehicles pre-populates the registry, e.g. from the transit schedule.
	Vehicles []network.VehicleAssignment
	Observer Observer
}

type Stats struct {
	Events      int64
	Ignored     int64
	Rejected    int64
	StuckEvents int64
	Diagnostics map[string]int64
}

const maxEngineDiagnostics = 1000

// Engine reconstructs travel diaries from a time-ordered event stream. It is not safe for
// concurrent use; events are applied one at a time in the order given.
type Engine struct {
	network  Network
	schedule Schedule
	opts     Options

	chains         *Store
	vehicles       *Registry
	transitDrivers map[string]struct{}
	drivers        map[string]string // non-transit vehicle -> driving traveler

	activityIDs int64
	journeyIDs  int64
	tripIDs     int64
	transferIDs int64

	stats       Stats
	diagnostics []Diagnostic
}

func New(net Network, schedule Schedule, opts Options) *Engine {
	if opts.TransitActivityType == "" {
		opts.TransitActivityType = DefaultTransitActivityType
	}
	e := &Engine{network: net, schedule: schedule, opts: opts, chains: NewStore(), vehicles: NewRegistry()}
	e.Reset()
	return e
}

// Reset clears all chains and vehicles at an iteration boundary.
func (e *Engine) Reset() {
	e.chains.Reset()
	e.vehicles.Reset()
	e.transitDrivers = make(map[string]struct{})
	e.drivers = make(map[string]string)
	e.activityIDs, e.journeyIDs, e.tripIDs, e.transferIDs = 0, 0, 0, 0
	e.stats = Stats{Diagnostics: make(map[string]int64)}
	e.diagnostics = nil

	conflicts := 0
	for _, a := range e.opts.Vehicles {
		if err := e.vehicles.Register(a.Vehicle, a.Line, a.Route); err != nil {
			conflicts++
		}
	}
	if conflicts > 0 {
		log.Warn().Int("conflicts", conflicts).Msg("Schedule assigns vehicles to several routes")
	}
}

func (e *Engine) Chains() []*Chain { return e.chains.All() }

func (e *Engine) Chain(traveler string) (*Chain, bool) { return e.chains.Get(traveler) }

func (e *Engine) Vehicles() *Registry { return e.vehicles }

// Diagnostics returns problems not attributable to a traveler chain (e.g. vehicle events).
func (e *Engine) Diagnostics() []Diagnostic { return e.diagnostics }

func (e *Engine) Stats() Stats { return e.stats }

func (e *Engine) IsTransitDriver(traveler string) bool {
	_, ok := e.transitDrivers[traveler]
	return ok
}

// Handle applies one event. A returned *EventError is informational: the engine stays
// consistent and later events are processed normally.
func (e *Engine) Handle(ev events.Event) error {
	start := time.Now()
	var err error
	switch ev.Type {
	case events.ActivityEnd:
		err = e.handleActivityEnd(ev)
	case events.ActivityStart:
		err = e.handleActivityStart(ev)
	case events.Departure:
		err = e.handleDeparture(ev)
	case events.Arrival:
		err = e.handleArrival(ev)
	case events.TransitDriverStarts:
		err = e.handleTransitDriverStarts(ev)
	case events.PersonEntersVehicle:
		err = e.handleEntersVehicle(ev)
	case events.PersonLeavesVehicle:
		err = e.handleLeavesVehicle(ev)
	case events.LinkEnter:
		err = e.handleLinkEnter(ev)
	case events.LinkLeave:
		err = e.handleLinkLeave(ev)
	case events.TeleportationArrival:
		err = e.handleTeleportation(ev)
	case events.VehicleDepartsAtStop:
		err = e.handleVehicleDeparts(ev)
	case events.VehicleArrivesAtStop:
		err = e.handleVehicleArrives(ev)
	case events.Stuck:
		err = e.handleStuck(ev)
	default:
		e.stats.Ignored++
		return nil
	}
	e.stats.Events++
	if e.opts.Observer != nil {
		e.opts.Observer.EventHandled(ev.Type, time.Since(start))
	}
	if err == nil {
		return nil
	}
	e.record(ev, err)
	return &EventError{Event: ev, Err: err}
}

func (e *Engine) record(ev events.Event, err error) {
	d := Diagnostic{Time: ev.Time, Event: ev.Type, Traveler: ev.Person, Vehicle: ev.Vehicle, Err: err}
	reason := d.Reason()
	e.stats.Diagnostics[reason]++
	if errors.Is(err, ErrOutOfOrder) {
		e.stats.Rejected++
	}
	if e.opts.Observer != nil {
		e.opts.Observer.DiagnosticRecorded(reason)
	}
	if c, ok := e.chains.Get(ev.Person); ok && ev.Person != "" {
		c.addDiagnostic(d)
	} else if len(e.diagnostics) < maxEngineDiagnostics {
		e.diagnostics = append(e.diagnostics, d)
	}
	log.Debug().Str("event", string(ev.Type)).Float64("time", ev.Time).
		Str("person", ev.Person).Str("vehicle", ev.Vehicle).Err(err).Msg("Event not fully applied")
}

// chainFor looks up the traveler's chain and checks event order.
func (e *Engine) chainFor(ev events.Event) (*Chain, error) {
	c, ok := e.chains.Get(ev.Person)
	if !ok {
		return nil, ErrUnknownTraveler
	}
	if err := c.checkOrder(ev.Time); err != nil {
		return nil, err
	}
	return c, nil
}

// coord resolves a link coordinate. A missing link leaves a zero coordinate and an error
// that does not stop the handler.
func (e *Engine) coord(link string) (Coord, error) {
	if e.network == nil {
		return Coord{}, nil
	}
	c, ok := e.network.LinkCoord(link)
	if !ok {
		return Coord{}, fmt.Errorf("%w: %q", ErrUnknownLink, link)
	}
	return c, nil
}

func (e *Engine) nextTransferID() int64 {
	e.transferIDs++
	return e.transferIDs
}

func (e *Engine) newActivity(ev events.Event, coord Coord) *Activity {
	e.activityIDs++
	return &Activity{ID: e.activityIDs, Type: ev.ActType, Facility: ev.Facility, Link: ev.Link, Coord: coord}
}

func (e *Engine) handleActivityEnd(ev events.Event) error {
	if e.IsTransitDriver(ev.Person) {
		return nil
	}
	transit := isTransitActivity(ev.ActType, e.opts.TransitActivityType)
	c, ok := e.chains.Get(ev.Person)
	if !ok {
		if transit {
			return fmt.Errorf("%w: %q ends before any activity", ErrProtocol, ev.ActType)
		}
		coord, linkErr := e.coord(ev.Link)
		c = e.chains.Create(ev.Person)
		act := e.newActivity(ev, coord)
		act.StartTime = 0
		act.EndTime = ev.Time
		act.HasEnd = true
		c.Activities = append(c.Activities, act)
		c.touch(ev.Time)
		return linkErr
	}
	if err := c.checkOrder(ev.Time); err != nil {
		return err
	}
	if c.InPT || transit {
		c.touch(ev.Time)
		return nil
	}
	act, ok := c.LastActivity()
	if !ok {
		return ErrNoActivity
	}
	if _, open := c.OpenJourney(); open {
		return fmt.Errorf("%w: %q ends while a journey is open", ErrProtocol, ev.ActType)
	}
	act.EndTime = ev.Time
	act.HasEnd = true
	c.touch(ev.Time)
	return nil
}

func (e *Engine) handleActivityStart(ev events.Event) error {
	if e.IsTransitDriver(ev.Person) {
		return nil
	}
	c, err := e.chainFor(ev)
	if err != nil {
		return err
	}
	if isTransitActivity(ev.ActType, e.opts.TransitActivityType) {
		c.InPT = true
		c.touch(ev.Time)
		return nil
	}
	j, ok := c.OpenJourney()
	if !ok {
		return fmt.Errorf("%w: %q starts without a journey", ErrNoOpenJourney, ev.ActType)
	}
	coord, linkErr := e.coord(ev.Link)
	act := e.newActivity(ev, coord)
	act.StartTime = ev.Time
	c.Activities = append(c.Activities, act)
	c.InPT = false

	j.Dest = coord
	j.EndTime = ev.Time
	j.To = act
	j.derive(e.nextTransferID)
	c.touch(ev.Time)
	return linkErr
}

func (e *Engine) handleDeparture(ev events.Event) error {
	if e.IsTransitDriver(ev.Person) {
		return nil
	}
	c, err := e.chainFor(ev)
	if err != nil {
		return err
	}
	coord, linkErr := e.coord(ev.Link)
	j, open := c.OpenJourney()
	switch {
	case c.InPT && !open:
		return ErrNoOpenJourney
	case !c.InPT && open:
		// The previous journey never reached an activity; keep its trips together.
		linkErr = fmt.Errorf("%w: departure while journey %d is open", ErrProtocol, j.ID)
	case !c.InPT:
		from, ok := c.LastActivity()
		if !ok {
			return ErrNoActivity
		}
		e.journeyIDs++
		j = &Journey{ID: e.journeyIDs, StartTime: ev.Time, Orig: coord, From: from}
		c.Journeys = append(c.Journeys, j)
	}
	e.tripIDs++
	j.Trips = append(j.Trips, &Trip{
		ID:        e.tripIDs,
		Mode:      ev.LegMode,
		Departed:  ev.Time,
		StartTime: ev.Time,
		Orig:      coord,
	})
	c.touch(ev.Time)
	return linkErr
}

func (e *Engine) handleArrival(ev events.Event) error {
	if e.IsTransitDriver(ev.Person) {
		return nil
	}
	c, err := e.chainFor(ev)
	if err != nil {
		return err
	}
	j, ok := c.OpenJourney()
	if !ok {
		return ErrNoOpenJourney
	}
	t, ok := j.LastTrip()
	if !ok {
		return ErrNoOpenTrip
	}
	coord, linkErr := e.coord(ev.Link)
	j.EndTime = ev.Time
	j.Dest = coord
	t.EndTime = ev.Time
	t.Dest = coord
	c.touch(ev.Time)
	return linkErr
}

func (e *Engine) handleTransitDriverStarts(ev events.Event) error {
	e.transitDrivers[ev.Driver] = struct{}{}
	return e.vehicles.Register(ev.Vehicle, ev.TransitLine, ev.TransitRoute)
}

func (e *Engine) handleEntersVehicle(ev events.Event) error {
	if e.IsTransitDriver(ev.Person) {
		return nil
	}
	v, transit := e.vehicles.Get(ev.Vehicle)
	if !transit {
		if _, driven := e.drivers[ev.Vehicle]; !driven {
			e.drivers[ev.Vehicle] = ev.Person
		}
		return nil
	}
	c, err := e.chainFor(ev)
	if err != nil {
		return err
	}
	t, err := c.OpenTrip()
	if err != nil {
		return err
	}
	if _, err := e.vehicles.Board(ev.Vehicle, ev.Person); err != nil {
		return err
	}
	t.Transit = true
	t.Vehicle = v.ID
	t.Line = v.Line
	t.Route = v.Route
	t.Mode = ModePT
	if mode, ok := e.routeMode(v.Line, v.Route); ok {
		t.Mode = mode
	}
	t.BoardingStop = v.LastStop
	t.StartTime = ev.Time
	c.touch(ev.Time)
	return nil
}

func (e *Engine) routeMode(line, route string) (string, bool) {
	if e.schedule == nil {
		return "", false
	}
	return e.schedule.RouteMode(line, route)
}

func (e *Engine) handleLeavesVehicle(ev events.Event) error {
	if e.IsTransitDriver(ev.Person) {
		return nil
	}
	v, transit := e.vehicles.Get(ev.Vehicle)
	if !transit {
		if e.drivers[ev.Vehicle] == ev.Person {
			delete(e.drivers, ev.Vehicle)
		}
		return nil
	}
	c, err := e.chainFor(ev)
	if err != nil {
		return err
	}
	t, err := c.OpenTrip()
	if err != nil {
		return err
	}
	dist, err := e.vehicles.Alight(ev.Vehicle, ev.Person)
	if err != nil {
		return err
	}
	t.Distance = dist
	t.AlightingStop = v.LastStop
	c.TraveledVehicle = true
	c.touch(ev.Time)
	return nil
}

// transitVehicle looks up a transit vehicle for a vehicle-side event and checks its order.
// ok is false for vehicles that are not transit vehicles.
func (e *Engine) transitVehicle(ev events.Event) (v *Vehicle, ok bool, err error) {
	v, ok = e.vehicles.Get(ev.Vehicle)
	if !ok {
		return nil, false, nil
	}
	return v, true, v.checkOrder(ev.Time)
}

func (e *Engine) handleLinkEnter(ev events.Event) error {
	v, transit, err := e.transitVehicle(ev)
	if !transit || err != nil {
		return err
	}
	if err := e.vehicles.MarkEnteredLink(ev.Vehicle, ev.Time); err != nil {
		return err
	}
	v.touch(ev.Time)
	return nil
}

func (e *Engine) handleLinkLeave(ev events.Event) error {
	length, ok := e.linkLength(ev.Link)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLink, ev.Link)
	}
	if v, transit, err := e.transitVehicle(ev); transit {
		if err != nil {
			return err
		}
		if err := e.vehicles.AdvanceOnLinkLeave(ev.Vehicle, length); err != nil {
			return err
		}
		v.touch(ev.Time)
		return nil
	}
	driver, ok := e.drivers[ev.Vehicle]
	if !ok {
		return ErrUnknownVehicle
	}
	ev.Person = driver
	c, err := e.chainFor(ev)
	if err != nil {
		return err
	}
	t, err := c.OpenTrip()
	if err != nil {
		return err
	}
	if length < 0 {
		return fmt.Errorf("%w: negative link length %f", ErrProtocol, length)
	}
	t.Distance += length
	c.touch(ev.Time)
	return nil
}

func (e *Engine) linkLength(link string) (float64, bool) {
	if e.network == nil {
		return 0, false
	}
	return e.network.LinkLength(link)
}

func (e *Engine) handleTeleportation(ev events.Event) error {
	if e.IsTransitDriver(ev.Person) {
		return nil
	}
	c, err := e.chainFor(ev)
	if err != nil {
		return err
	}
	t, err := c.OpenTrip()
	if err != nil {
		return err
	}
	if ev.Distance < 0 {
		return fmt.Errorf("%w: negative teleportation distance %f", ErrProtocol, ev.Distance)
	}
	t.Distance = ev.Distance
	c.TraveledVehicle = false
	c.touch(ev.Time)
	return nil
}

func (e *Engine) handleVehicleDeparts(ev events.Event) error {
	v, ok, err := e.transitVehicle(ev)
	if !ok {
		return ErrUnknownVehicle
	}
	if err != nil {
		return err
	}
	v.touch(ev.Time)
	var errs []error
	for _, traveler := range v.onboard {
		c, ok := e.chains.Get(traveler)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: passenger %s", ErrUnknownTraveler, traveler))
			continue
		}
		t, err := c.OpenTrip()
		if err != nil {
			errs = append(errs, fmt.Errorf("passenger %s: %w", traveler, err))
			continue
		}
		t.stampDeparture(ev.Time, ev.Delay)
	}
	return errors.Join(errs...)
}

func (e *Engine) handleVehicleArrives(ev events.Event) error {
	v, ok, err := e.transitVehicle(ev)
	if !ok {
		return ErrUnknownVehicle
	}
	if err != nil {
		return err
	}
	if err := e.vehicles.ArriveAt(ev.Vehicle, ev.Facility); err != nil {
		return err
	}
	v.touch(ev.Time)
	return nil
}

func (e *Engine) handleStuck(ev events.Event) error {
	if e.IsTransitDriver(ev.Person) {
		return nil
	}
	e.stats.StuckEvents++
	if e.opts.Observer != nil {
		e.opts.Observer.StuckEvent()
	}
	c, ok := e.chains.Get(ev.Person)
	if !ok {
		return ErrUnknownTraveler
	}
	c.Stuck = true
	c.InPT = false
	c.dropOpenJourney()
	e.vehicles.Evict(ev.Person)
	for vehicle, driver := range e.drivers {
		if driver == ev.Person {
			delete(e.drivers, vehicle)
		}
	}
	c.touch(max(c.lastTime, ev.Time))
	return nil
}
