package diary

import (
	"errors"
	"fmt"

	"travel-diaries/internal/events"
)

var (
	ErrUnknownTraveler = errors.New("unknown traveler")
	ErrUnknownVehicle  = errors.New("unknown vehicle")
	ErrUnknownLink     = errors.New("unknown link")
	ErrNoActivity      = errors.New("chain has no activity")
	ErrNoOpenJourney   = errors.New("no open journey")
	ErrNoOpenTrip      = errors.New("no open trip")
	ErrNotOnboard      = errors.New("traveler not onboard vehicle")
	ErrOutOfOrder      = errors.New("event earlier than previous event")
	ErrVehicleConflict = errors.New("vehicle registered with different line/route")
	ErrProtocol        = errors.New("protocol violation")
)

var reasons = []error{
	ErrUnknownTraveler, ErrUnknownVehicle, ErrUnknownLink, ErrNoActivity, ErrNoOpenJourney,
	ErrNoOpenTrip, ErrNotOnboard, ErrOutOfOrder, ErrVehicleConflict, ErrProtocol,
}

// Reason maps an error onto a short label for counters.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r) {
			return r.Error()
		}
	}
	return "other"
}

// EventError ties a handler error to the event that caused it.
type EventError struct {
	Event events.Event
	Err   error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("%s: %v", e.Event, e.Err)
}

func (e *EventError) Unwrap() error { return e.Err }

// Diagnostic is a recorded, non-fatal problem with one traveler's or vehicle's events.
type Diagnostic struct {
	Time     float64
	Event    events.Type
	Traveler string
	Vehicle  string
	Err      error
}

func (d Diagnostic) Reason() string { return Reason(d.Err) }
