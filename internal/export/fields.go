package export

import (
	"encoding/json"
	"strconv"
)

// Column types carry the output formatting of the diary tables. Each implements
// gocsv's TypeMarshaller for the TSV files and json.Marshaler for published records.

// Seconds is a simulation time written as whole seconds.
type Seconds float64

func (s Seconds) MarshalCSV() (string, error) {
	return strconv.FormatInt(int64(s), 10), nil
}

func (s Seconds) MarshalJSON() ([]byte, error) { return json.Marshal(int64(s)) }

func (s Seconds) Value() any { return int64(s) }

// OptSeconds is a time that may be absent, such as the end of a final activity.
type OptSeconds struct {
	Seconds Seconds
	Valid   bool
}

func someSeconds(v float64) OptSeconds { return OptSeconds{Seconds: Seconds(v), Valid: true} }

func (s OptSeconds) MarshalCSV() (string, error) {
	if !s.Valid {
		return "", nil
	}
	return s.Seconds.MarshalCSV()
}

func (s OptSeconds) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return s.Seconds.MarshalJSON()
}

func (s OptSeconds) Value() any {
	if !s.Valid {
		return nil
	}
	return s.Seconds.Value()
}

// Meters is a distance with millimetre precision.
type Meters float64

func (m Meters) MarshalCSV() (string, error) {
	return strconv.FormatFloat(float64(m), 'f', 3, 64), nil
}

func (m Meters) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(m), 'f', 3, 64)), nil
}

func (m Meters) Value() any { return float64(m) }

// Float is written with six decimals (coordinates, sample selector).
type Float float64

func (f Float) MarshalCSV() (string, error) {
	return strconv.FormatFloat(float64(f), 'f', 6, 64), nil
}

func (f Float) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(f), 'f', 6, 64)), nil
}

func (f Float) Value() any { return float64(f) }

// OptID references another record; zero means no reference.
type OptID int64

func (id OptID) MarshalCSV() (string, error) {
	if id == 0 {
		return "", nil
	}
	return strconv.FormatInt(int64(id), 10), nil
}

func (id OptID) MarshalJSON() ([]byte, error) {
	if id == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(int64(id))
}

func (id OptID) Value() any {
	if id == 0 {
		return nil
	}
	return int64(id)
}

type Flag bool

func (f Flag) MarshalCSV() (string, error) { return strconv.FormatBool(bool(f)), nil }

func (f Flag) Value() any { return bool(f) }
