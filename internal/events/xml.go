package events

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"

	"travel-diaries/internal/network"
)

// XMLReader streams <event> elements out of a MATSim events file.
type XMLReader struct {
	d      *xml.Decoder
	closer io.Closer
	count  int64
}

func NewXMLReader(r io.Reader) *XMLReader {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	return &XMLReader{d: d}
}

// Open opens an events file (optionally gzip compressed).
func Open(path string) (*XMLReader, error) {
	f, err := network.Open(path)
	if err != nil {
		return nil, err
	}
	r := NewXMLReader(f)
	r.closer = f
	log.Info().Str("path", path).Msg("Reading events")
	return r, nil
}

func (r *XMLReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Count is the number of events decoded so far.
func (r *XMLReader) Count() int64 { return r.count }

func (r *XMLReader) Next(ctx context.Context) (Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
		tok, err := r.d.Token()
		if err != nil {
			if err == io.EOF {
				return Event{}, io.EOF
			}
			return Event{}, fmt.Errorf("decode events: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "event" {
			continue
		}
		var ev Event
		for _, a := range se.Attr {
			if err := ev.SetAttribute(a.Name.Local, a.Value); err != nil {
				return Event{}, fmt.Errorf("event %d: %w", r.count+1, err)
			}
		}
		r.count++
		return ev, nil
	}
}
