package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Type string

const (
	ActivityEnd          Type = "actend"
	ActivityStart        Type = "actstart"
	Departure            Type = "departure"
	Arrival              Type = "arrival"
	TransitDriverStarts  Type = "TransitDriverStarts"
	PersonEntersVehicle  Type = "PersonEntersVehicle"
	PersonLeavesVehicle  Type = "PersonLeavesVehicle"
	LinkEnter            Type = "entered link"
	LinkLeave            Type = "left link"
	TeleportationArrival Type = "travelled"
	VehicleDepartsAtStop Type = "VehicleDepartsAtFacility"
	VehicleArrivesAtStop Type = "VehicleArrivesAtFacility"
	Stuck                Type = "stuckAndAbort"
)

// Event is one simulation event. Field names follow the MATSim attribute names so the
// same struct serves the XML events file and JSON messages.
type Event struct {
	Time         float64 `json:"time"`
	Type         Type    `json:"type"`
	Person       string  `json:"person,omitempty"`
	Link         string  `json:"link,omitempty"`
	Facility     string  `json:"facility,omitempty"`
	ActType      string  `json:"actType,omitempty"`
	LegMode      string  `json:"legMode,omitempty"`
	Vehicle      string  `json:"vehicle,omitempty"`
	Driver       string  `json:"driverId,omitempty"`
	TransitLine  string  `json:"transitLineId,omitempty"`
	TransitRoute string  `json:"transitRouteId,omitempty"`
	Departure    string  `json:"departureId,omitempty"`
	Distance     float64 `json:"distance,omitempty"`
	Delay        float64 `json:"delay,omitempty"`
}

func (e Event) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s@%.0f", e.Type, e.Time)
	if e.Person != "" {
		fmt.Fprintf(&b, " person=%s", e.Person)
	}
	if e.Vehicle != "" {
		fmt.Fprintf(&b, " vehicle=%s", e.Vehicle)
	}
	if e.Link != "" {
		fmt.Fprintf(&b, " link=%s", e.Link)
	}
	if e.Facility != "" {
		fmt.Fprintf(&b, " facility=%s", e.Facility)
	}
	return b.String()
}

// SetAttribute assigns a MATSim event attribute. Unknown attributes are ignored.
func (e *Event) SetAttribute(name, value string) error {
	switch name {
	case "time":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("time %q: %w", value, err)
		}
		e.Time = f
	case "type":
		e.Type = Type(value)
	case "person":
		e.Person = value
	case "link":
		e.Link = value
	case "facility":
		e.Facility = value
	case "actType":
		e.ActType = value
	case "legMode", "mode":
		if e.LegMode == "" || name == "legMode" {
			e.LegMode = value
		}
	case "vehicle", "vehicleId":
		e.Vehicle = value
	case "driverId":
		e.Driver = value
	case "transitLineId":
		e.TransitLine = value
	case "transitRouteId":
		e.TransitRoute = value
	case "departureId":
		e.Departure = value
	case "distance":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("distance %q: %w", value, err)
		}
		e.Distance = f
	case "delay":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("delay %q: %w", value, err)
		}
		e.Delay = f
	}
	return nil
}

// ErrIterationEnd is returned by a Source between iterations of the same run.
var ErrIterationEnd = errors.New("iteration end")

// Source delivers events in simulation order. Next returns io.EOF once the run is over.
type Source interface {
	Next(ctx context.Context) (Event, error)
}
