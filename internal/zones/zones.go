// Package zones maps coordinates onto analysis zones.
package zones

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/gocarina/gocsv"
	"github.com/golang/geo/r2"
	"github.com/rs/zerolog/log"

	"travel-diaries/internal/network"
)

var requiredColumns = []string{"zone_id", "minx", "miny", "maxx", "maxy"}

type Zone struct {
	ID         string
	Box        r2.Rect
	Attributes map[string]string
}

// Index finds the zone containing a point. Zones are tested in file order and the first
// hit wins. Results are memoized per point; Index is safe for concurrent use.
type Index struct {
	zones []*Zone

	mu    sync.Mutex
	cache map[r2.Point]*Zone
}

func NewIndex(zones []*Zone) *Index {
	return &Index{zones: zones, cache: make(map[r2.Point]*Zone)}
}

func (ix *Index) Len() int { return len(ix.zones) }

func (ix *Index) Find(x, y float64) (*Zone, bool) {
	p := r2.Point{X: x, Y: y}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if z, ok := ix.cache[p]; ok {
		return z, z != nil
	}
	var hit *Zone
	for _, z := range ix.zones {
		if z.Box.ContainsPoint(p) {
			hit = z
			break
		}
	}
	ix.cache[p] = hit
	return hit, hit != nil
}

// Attribute returns attr of the zone containing (x, y). "zone_id" selects the zone id.
func (ix *Index) Attribute(x, y float64, attr string) (string, bool) {
	z, ok := ix.Find(x, y)
	if !ok {
		return "", false
	}
	if attr == "" || attr == "zone_id" {
		return z.ID, true
	}
	v, ok := z.Attributes[attr]
	return v, ok
}

// Read parses a tab separated zones table:
// zone_id, minx, miny, maxx, maxy followed by any number of attribute columns.
func Read(r io.Reader) ([]*Zone, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	dec := gocsv.NewSimpleDecoderFromCSVReader(cr)

	header, err := dec.GetCSVRow()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("zones: empty file")
		}
		return nil, fmt.Errorf("zones header: %w", err)
	}
	for i, col := range requiredColumns {
		if i >= len(header) || header[i] != col {
			return nil, fmt.Errorf("zones: column %d must be %q", i+1, col)
		}
	}

	var out []*Zone
	for line := 2; ; line++ {
		rec, err := dec.GetCSVRow()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("zones line %d: %w", line, err)
		}
		if len(rec) < len(requiredColumns) {
			return nil, fmt.Errorf("zones line %d: %d fields", line, len(rec))
		}
		var bounds [4]float64
		for i := range bounds {
			f, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("zones line %d %s: %w", line, header[i+1], err)
			}
			bounds[i] = f
		}
		z := &Zone{
			ID:         rec[0],
			Box:        r2.RectFromPoints(r2.Point{X: bounds[0], Y: bounds[1]}, r2.Point{X: bounds[2], Y: bounds[3]}),
			Attributes: make(map[string]string, len(header)-len(requiredColumns)),
		}
		for i := len(requiredColumns); i < len(header) && i < len(rec); i++ {
			z.Attributes[header[i]] = rec[i]
		}
		out = append(out, z)
	}
	return out, nil
}

// Load reads a zones file (optionally gzip compressed) into an Index.
func Load(path string) (*Index, error) {
	f, err := network.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zs, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Info().Str("path", path).Int("zones", len(zs)).Msg("Loaded zones")
	return NewIndex(zs), nil
}
