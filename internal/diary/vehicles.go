package diary

import (
	"fmt"
	"slices"
)

// Vehicle is the transient state of one transit vehicle.
type Vehicle struct {
	ID            string
	Line          string
	Route         string
	Distance      float64 // cumulative, never decreases
	LastStop      string
	InLink        bool
	LinkEnterTime float64

	boardedAt map[string]float64 // traveler -> Distance at boarding
	onboard   []string           // boarding order

	lastTime float64
	seen     bool
}

func newVehicle(id, line, route string) *Vehicle {
	return &Vehicle{ID: id, Line: line, Route: route, boardedAt: make(map[string]float64)}
}

// Passengers returns the travelers onboard in boarding order.
func (v *Vehicle) Passengers() []string {
	return slices.Clone(v.onboard)
}

func (v *Vehicle) Onboard(traveler string) bool {
	_, ok := v.boardedAt[traveler]
	return ok
}

// checkOrder rejects vehicle events earlier than the last one applied to the vehicle.
func (v *Vehicle) checkOrder(t float64) error {
	if v.seen && t < v.lastTime {
		return fmt.Errorf("%w: vehicle %s at %.0f after %.0f", ErrOutOfOrder, v.ID, t, v.lastTime)
	}
	return nil
}

func (v *Vehicle) touch(t float64) {
	v.lastTime = t
	v.seen = true
}

func (v *Vehicle) remove(traveler string) {
	delete(v.boardedAt, traveler)
	if i := slices.Index(v.onboard, traveler); i >= 0 {
		v.onboard = slices.Delete(v.onboard, i, i+1)
	}
}

// Registry tracks transit vehicles by id.
type Registry struct {
	vehicles map[string]*Vehicle
}

func NewRegistry() *Registry {
	return &Registry{vehicles: make(map[string]*Vehicle)}
}

func (r *Registry) Len() int { return len(r.vehicles) }

func (r *Registry) Get(id string) (*Vehicle, bool) {
	v, ok := r.vehicles[id]
	return v, ok
}

// Register binds a vehicle to a line and route. Registering the same binding again is a
// no-op; a different binding rebinds the vehicle and reports ErrVehicleConflict. The
// cumulative distance and onboard passengers survive a rebind.
func (r *Registry) Register(id, line, route string) error {
	v, ok := r.vehicles[id]
	if !ok {
		r.vehicles[id] = newVehicle(id, line, route)
		return nil
	}
	if v.Line == line && v.Route == route {
		return nil
	}
	err := fmt.Errorf("%w: %s was %s/%s, now %s/%s", ErrVehicleConflict, id, v.Line, v.Route, line, route)
	v.Line, v.Route = line, route
	return err
}

// Board records the vehicle's current distance as the traveler's boarding offset.
func (r *Registry) Board(id, traveler string) (*Vehicle, error) {
	v, ok := r.vehicles[id]
	if !ok {
		return nil, ErrUnknownVehicle
	}
	if _, on := v.boardedAt[traveler]; !on {
		v.onboard = append(v.onboard, traveler)
	}
	v.boardedAt[traveler] = v.Distance
	return v, nil
}

// Alight removes the traveler and returns the distance ridden since boarding.
func (r *Registry) Alight(id, traveler string) (float64, error) {
	v, ok := r.vehicles[id]
	if !ok {
		return 0, ErrUnknownVehicle
	}
	at, on := v.boardedAt[traveler]
	if !on {
		return 0, fmt.Errorf("%w: %s on %s", ErrNotOnboard, traveler, id)
	}
	v.remove(traveler)
	return max(0, v.Distance-at), nil
}

// AdvanceOnLinkLeave adds the length of the link the vehicle just left.
func (r *Registry) AdvanceOnLinkLeave(id string, length float64) error {
	v, ok := r.vehicles[id]
	if !ok {
		return ErrUnknownVehicle
	}
	if length < 0 {
		return fmt.Errorf("%w: negative link length %f", ErrProtocol, length)
	}
	v.InLink = false
	v.Distance += length
	return nil
}

func (r *Registry) MarkEnteredLink(id string, t float64) error {
	v, ok := r.vehicles[id]
	if !ok {
		return ErrUnknownVehicle
	}
	v.InLink = true
	v.LinkEnterTime = t
	return nil
}

// ArriveAt records the stop the vehicle is serving.
func (r *Registry) ArriveAt(id, stop string) error {
	v, ok := r.vehicles[id]
	if !ok {
		return ErrUnknownVehicle
	}
	v.LastStop = stop
	return nil
}

// Evict removes a traveler from whichever vehicles carry them.
func (r *Registry) Evict(traveler string) {
	for _, v := range r.vehicles {
		if v.Onboard(traveler) {
			v.remove(traveler)
		}
	}
}

// Reset forgets all vehicles.
func (r *Registry) Reset() {
	clear(r.vehicles)
}
