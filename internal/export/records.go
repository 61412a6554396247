package export

type Table string

const (
	TableActivities Table = "matsim_activities"
	TableJourneys   Table = "matsim_journeys"
	TableTrips      Table = "matsim_trips"
	TableTransfers  Table = "matsim_transfers"
)

var Tables = []Table{TableActivities, TableJourneys, TableTrips, TableTransfers}

// Record is one row of a diary table.
type Record interface {
	Table() Table
	Traveler() string
	// Values returns the row in Columns(Table()) order with absent fields as nil.
	Values() []any
}

type ActivityRecord struct {
	ActivityID     int64      `csv:"activity_id" json:"activity_id"`
	PersonID       string     `csv:"person_id" json:"person_id"`
	FacilityID     string     `csv:"facility_id" json:"facility_id"`
	Type           string     `csv:"type" json:"type"`
	StartTime      Seconds    `csv:"start_time" json:"start_time"`
	EndTime        OptSeconds `csv:"end_time" json:"end_time"`
	X              Float      `csv:"x" json:"x"`
	Y              Float      `csv:"y" json:"y"`
	SampleSelector Float      `csv:"sample_selector" json:"sample_selector"`
	Zone           string     `csv:"zone" json:"zone"`
}

func (r *ActivityRecord) Table() Table     { return TableActivities }
func (r *ActivityRecord) Traveler() string { return r.PersonID }

func (r *ActivityRecord) Values() []any {
	return []any{
		r.ActivityID, r.PersonID, r.FacilityID, r.Type, r.StartTime.Value(), r.EndTime.Value(),
		r.X.Value(), r.Y.Value(), r.SampleSelector.Value(), r.Zone,
	}
}

type JourneyRecord struct {
	JourneyID            int64   `csv:"journey_id" json:"journey_id"`
	PersonID             string  `csv:"person_id" json:"person_id"`
	StartTime            Seconds `csv:"start_time" json:"start_time"`
	EndTime              Seconds `csv:"end_time" json:"end_time"`
	Distance             Meters  `csv:"distance" json:"distance"`
	MainMode             string  `csv:"main_mode" json:"main_mode"`
	MainModeMikrozensus  string  `csv:"main_mode_mikrozensus" json:"main_mode_mikrozensus"`
	FromAct              int64   `csv:"from_act" json:"from_act"`
	ToAct                int64   `csv:"to_act" json:"to_act"`
	InVehicleDistance    Meters  `csv:"in_vehicle_distance" json:"in_vehicle_distance"`
	InVehicleTime        Seconds `csv:"in_vehicle_time" json:"in_vehicle_time"`
	AccessWalkDistance   Meters  `csv:"access_walk_distance" json:"access_walk_distance"`
	AccessWalkTime       Seconds `csv:"access_walk_time" json:"access_walk_time"`
	AccessWaitTime       Seconds `csv:"access_wait_time" json:"access_wait_time"`
	FirstBoardingStop    string  `csv:"first_boarding_stop" json:"first_boarding_stop"`
	EgressWalkDistance   Meters  `csv:"egress_walk_distance" json:"egress_walk_distance"`
	EgressWalkTime       Seconds `csv:"egress_walk_time" json:"egress_walk_time"`
	LastAlightingStop    string  `csv:"last_alighting_stop" json:"last_alighting_stop"`
	TransferWalkDistance Meters  `csv:"transfer_walk_distance" json:"transfer_walk_distance"`
	TransferWalkTime     Seconds `csv:"transfer_walk_time" json:"transfer_walk_time"`
	TransferWaitTime     Seconds `csv:"transfer_wait_time" json:"transfer_wait_time"`
	SampleSelector       Float   `csv:"sample_selector" json:"sample_selector"`
	Stuck                Flag    `csv:"stucked" json:"stucked"`
}

func (r *JourneyRecord) Table() Table     { return TableJourneys }
func (r *JourneyRecord) Traveler() string { return r.PersonID }

func (r *JourneyRecord) Values() []any {
	return []any{
		r.JourneyID, r.PersonID, r.StartTime.Value(), r.EndTime.Value(), r.Distance.Value(),
		r.MainMode, r.MainModeMikrozensus, r.FromAct, r.ToAct,
		r.InVehicleDistance.Value(), r.InVehicleTime.Value(),
		r.AccessWalkDistance.Value(), r.AccessWalkTime.Value(), r.AccessWaitTime.Value(),
		r.FirstBoardingStop, r.EgressWalkDistance.Value(), r.EgressWalkTime.Value(), r.LastAlightingStop,
		r.TransferWalkDistance.Value(), r.TransferWalkTime.Value(), r.TransferWaitTime.Value(),
		r.SampleSelector.Value(), r.Stuck.Value(),
	}
}

type TripRecord struct {
	TripID         int64      `csv:"trip_id" json:"trip_id"`
	JourneyID      int64      `csv:"journey_id" json:"journey_id"`
	StartTime      Seconds    `csv:"start_time" json:"start_time"`
	EndTime        Seconds    `csv:"end_time" json:"end_time"`
	Distance       Meters     `csv:"distance" json:"distance"`
	Mode           string     `csv:"mode" json:"mode"`
	Line           string     `csv:"line" json:"line"`
	Route          string     `csv:"route" json:"route"`
	BoardingStop   string     `csv:"boarding_stop" json:"boarding_stop"`
	AlightingStop  string     `csv:"alighting_stop" json:"alighting_stop"`
	DepartureTime  OptSeconds `csv:"departure_time" json:"departure_time"`
	DepartureDelay OptSeconds `csv:"departure_delay" json:"departure_delay"`
	SampleSelector Float      `csv:"sample_selector" json:"sample_selector"`
	FromX          Float      `csv:"from_x" json:"from_x"`
	FromY          Float      `csv:"from_y" json:"from_y"`
	ToX            Float      `csv:"to_x" json:"to_x"`
	ToY            Float      `csv:"to_y" json:"to_y"`
	PreviousTripID OptID      `csv:"previous_trip_id" json:"previous_trip_id"`
	NextTripID     OptID      `csv:"next_trip_id" json:"next_trip_id"`

	PersonID string `csv:"-" json:"person_id"`
}

func (r *TripRecord) Table() Table     { return TableTrips }
func (r *TripRecord) Traveler() string { return r.PersonID }

func (r *TripRecord) Values() []any {
	return []any{
		r.TripID, r.JourneyID, r.StartTime.Value(), r.EndTime.Value(), r.Distance.Value(),
		r.Mode, r.Line, r.Route, r.BoardingStop, r.AlightingStop,
		r.DepartureTime.Value(), r.DepartureDelay.Value(), r.SampleSelector.Value(),
		r.FromX.Value(), r.FromY.Value(), r.ToX.Value(), r.ToY.Value(),
		r.PreviousTripID.Value(), r.NextTripID.Value(),
	}
}

type TransferRecord struct {
	TransferID     int64   `csv:"transfer_id" json:"transfer_id"`
	JourneyID      int64   `csv:"journey_id" json:"journey_id"`
	StartTime      Seconds `csv:"start_time" json:"start_time"`
	EndTime        Seconds `csv:"end_time" json:"end_time"`
	FromTrip       int64   `csv:"from_trip" json:"from_trip"`
	ToTrip         int64   `csv:"to_trip" json:"to_trip"`
	WalkDistance   Meters  `csv:"walk_distance" json:"walk_distance"`
	WalkTime       Seconds `csv:"walk_time" json:"walk_time"`
	WaitTime       Seconds `csv:"wait_time" json:"wait_time"`
	SampleSelector Float   `csv:"sample_selector" json:"sample_selector"`

	PersonID string `csv:"-" json:"person_id"`
}

func (r *TransferRecord) Table() Table     { return TableTransfers }
func (r *TransferRecord) Traveler() string { return r.PersonID }

func (r *TransferRecord) Values() []any {
	return []any{
		r.TransferID, r.JourneyID, r.StartTime.Value(), r.EndTime.Value(), r.FromTrip, r.ToTrip,
		r.WalkDistance.Value(), r.WalkTime.Value(), r.WaitTime.Value(), r.SampleSelector.Value(),
	}
}

// ColumnType is the SQL affinity of a column.
type ColumnType int

const (
	ColumnInt ColumnType = iota
	ColumnFloat
	ColumnText
	ColumnBool
)

type Column struct {
	Name string
	Type ColumnType
}

func cols(pairs ...any) []Column {
	out := make([]Column, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Column{Name: pairs[i].(string), Type: pairs[i+1].(ColumnType)})
	}
	return out
}

var columns = map[Table][]Column{
	TableActivities: cols(
		"activity_id", ColumnInt, "person_id", ColumnText, "facility_id", ColumnText, "type", ColumnText,
		"start_time", ColumnInt, "end_time", ColumnInt, "x", ColumnFloat, "y", ColumnFloat,
		"sample_selector", ColumnFloat, "zone", ColumnText,
	),
	TableJourneys: cols(
		"journey_id", ColumnInt, "person_id", ColumnText, "start_time", ColumnInt, "end_time", ColumnInt,
		"distance", ColumnFloat, "main_mode", ColumnText, "main_mode_mikrozensus", ColumnText,
		"from_act", ColumnInt, "to_act", ColumnInt,
		"in_vehicle_distance", ColumnFloat, "in_vehicle_time", ColumnInt,
		"access_walk_distance", ColumnFloat, "access_walk_time", ColumnInt, "access_wait_time", ColumnInt,
		"first_boarding_stop", ColumnText, "egress_walk_distance", ColumnFloat, "egress_walk_time", ColumnInt,
		"last_alighting_stop", ColumnText,
		"transfer_walk_distance", ColumnFloat, "transfer_walk_time", ColumnInt, "transfer_wait_time", ColumnInt,
		"sample_selector", ColumnFloat, "stucked", ColumnBool,
	),
	TableTrips: cols(
		"trip_id", ColumnInt, "journey_id", ColumnInt, "start_time", ColumnInt, "end_time", ColumnInt,
		"distance", ColumnFloat, "mode", ColumnText, "line", ColumnText, "route", ColumnText,
		"boarding_stop", ColumnText, "alighting_stop", ColumnText,
		"departure_time", ColumnInt, "departure_delay", ColumnInt, "sample_selector", ColumnFloat,
		"from_x", ColumnFloat, "from_y", ColumnFloat, "to_x", ColumnFloat, "to_y", ColumnFloat,
		"previous_trip_id", ColumnInt, "next_trip_id", ColumnInt,
	),
	TableTransfers: cols(
		"transfer_id", ColumnInt, "journey_id", ColumnInt, "start_time", ColumnInt, "end_time", ColumnInt,
		"from_trip", ColumnInt, "to_trip", ColumnInt, "walk_distance", ColumnFloat, "walk_time", ColumnInt,
		"wait_time", ColumnInt, "sample_selector", ColumnFloat,
	),
}

// Columns returns the column layout of a table, in output order.
func Columns(t Table) []Column { return columns[t] }
