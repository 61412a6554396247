package network

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

func newDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	d.Strict = false
	return d
}

func attrs(se xml.StartElement) map[string]string {
	m := make(map[string]string, len(se.Attr))
	for _, a := range se.Attr {
		m[a.Name.Local] = a.Value
	}
	return m
}

// ReadNetwork decodes a MATSim network file. Link coordinates are the midpoints of
// their end nodes; links referencing unknown nodes keep a zero coordinate.
func ReadNetwork(r io.Reader) (*Network, error) {
	n := NewNetwork()
	var links []Link
	d := newDecoder(r)
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode network: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "node":
			a := attrs(se)
			x, err := parseFloat(a["x"])
			if err != nil {
				return nil, fmt.Errorf("node %q x: %w", a["id"], err)
			}
			y, err := parseFloat(a["y"])
			if err != nil {
				return nil, fmt.Errorf("node %q y: %w", a["id"], err)
			}
			n.Nodes[a["id"]] = Node{ID: a["id"], Coord: Coord{X: x, Y: y}}
		case "link":
			a := attrs(se)
			length, err := parseFloat(a["length"])
			if err != nil {
				return nil, fmt.Errorf("link %q length: %w", a["id"], err)
			}
			links = append(links, Link{ID: a["id"], From: a["from"], To: a["to"], Length: length})
		}
	}
	// links may precede nodes in hand-written files
	for _, l := range links {
		from, okFrom := n.Nodes[l.From]
		to, okTo := n.Nodes[l.To]
		if okFrom && okTo {
			l.Coord = Coord{X: (from.Coord.X + to.Coord.X) / 2, Y: (from.Coord.Y + to.Coord.Y) / 2}
		}
		n.Links[l.ID] = l
	}
	return n, nil
}

// ReadSchedule decodes a MATSim transit schedule file.
func ReadSchedule(r io.Reader) (*Schedule, error) {
	s := NewSchedule()
	d := newDecoder(r)
	var line *TransitLine
	var route *TransitRoute
	inMode := false
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode schedule: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			a := attrs(t)
			switch t.Name.Local {
			case "stopFacility":
				x, err := parseFloat(a["x"])
				if err != nil {
					return nil, fmt.Errorf("stop %q x: %w", a["id"], err)
				}
				y, err := parseFloat(a["y"])
				if err != nil {
					return nil, fmt.Errorf("stop %q y: %w", a["id"], err)
				}
				s.Stops[a["id"]] = StopFacility{ID: a["id"], Coord: Coord{X: x, Y: y}, Link: a["linkRefId"]}
			case "transitLine":
				line = &TransitLine{ID: a["id"], Routes: make(map[string]*TransitRoute)}
				s.Lines[line.ID] = line
			case "transitRoute":
				if line == nil {
					return nil, fmt.Errorf("transitRoute %q outside transitLine", a["id"])
				}
				route = &TransitRoute{ID: a["id"]}
				line.Routes[route.ID] = route
			case "transportMode":
				inMode = route != nil
			case "departure":
				if route == nil {
					return nil, fmt.Errorf("departure %q outside transitRoute", a["id"])
				}
				route.Departures = append(route.Departures, Departure{
					ID:      a["id"],
					TimeSec: float64(parseDaySeconds(a["departureTime"])),
					Vehicle: a["vehicleRefId"],
				})
			}
		case xml.CharData:
			if inMode {
				route.Mode += strings.TrimSpace(string(t))
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "transportMode":
				inMode = false
			case "transitRoute":
				route = nil
			case "transitLine":
				line = nil
			}
		}
	}
	return s, nil
}

func LoadNetwork(path string) (*Network, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadNetwork(f)
}

func LoadSchedule(path string) (*Schedule, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSchedule(f)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// parseDaySeconds parses HH:MM:SS possibly with hours >= 24.
func parseDaySeconds(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	sec := 0
	if len(parts) > 2 {
		sec, _ = strconv.Atoi(strings.SplitN(parts[2], ".", 2)[0])
	}
	total := h*3600 + m*60 + sec
	if total < 0 {
		total = 0
	}
	return total
}
