package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"travel-diaries/internal/export"
)

// PublisherMetrics is implemented by the metrics collector.
type PublisherMetrics interface {
	ConnMetrics
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
}

// Publisher is an export.Sink that publishes every record as JSON to
// <prefix>.<table>.<traveler>.
type Publisher struct {
	nc          *nats.Conn
	prefix      string
	runID       string
	logSubjects bool
	metrics     PublisherMetrics
}

type envelope struct {
	RunID  string        `json:"run_id"`
	Table  export.Table  `json:"table"`
	Record export.Record `json:"record"`
}

func NewPublisher(url, prefix, runID string, logSubjects bool, m PublisherMetrics) (*Publisher, error) {
	nc, err := connect(url, "travel-diaries-publisher", m, 30*time.Second)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, prefix: prefix, runID: runID, logSubjects: logSubjects, metrics: m}, nil
}

// Subject returns the subject a record is published on.
func Subject(prefix string, r export.Record) string {
	return fmt.Sprintf("%s.%s.%s", prefix, subjectToken(string(r.Table())), subjectToken(r.Traveler()))
}

func (p *Publisher) publish(r export.Record) error {
	subject := Subject(p.prefix, r)
	b, err := json.Marshal(envelope{RunID: p.runID, Table: r.Table(), Record: r})
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Debug().Str("subject", subject).Msg("NATS publish")
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func (p *Publisher) WriteActivity(_ context.Context, r *export.ActivityRecord) error {
	return p.publish(r)
}

func (p *Publisher) WriteJourney(_ context.Context, r *export.JourneyRecord) error {
	return p.publish(r)
}

func (p *Publisher) WriteTrip(_ context.Context, r *export.TripRecord) error { return p.publish(r) }

func (p *Publisher) WriteTransfer(_ context.Context, r *export.TransferRecord) error {
	return p.publish(r)
}

// Close flushes pending messages and drains the connection.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	err := p.nc.FlushTimeout(10 * time.Second)
	if derr := p.nc.Drain(); err == nil {
		err = derr
	}
	return err
}
