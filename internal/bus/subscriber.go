package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"travel-diaries/internal/events"
)

const (
	controlEnd   = "end"
	controlReset = "reset"
)

// bufferedMessages bounds the messages waiting for Next. NATS drops messages for a full
// channel and reports them as slow consumer errors.
const bufferedMessages = 1 << 16

// Subscriber is an events.Source fed by NATS. Events arrive as JSON objects (or arrays of
// objects) on the events subject; <subject>.control carries "end" and "reset".
type Subscriber struct {
	nc      *nats.Conn
	subject string
	msgs    chan *nats.Msg
	subs    []*nats.Subscription

	pending []events.Event
	count   int64
	lossy   atomic.Bool
}

func NewSubscriber(url, subject string, m ConnMetrics) (*Subscriber, error) {
	s := &Subscriber{subject: subject, msgs: make(chan *nats.Msg, bufferedMessages)}
	nc, err := connect(url, "travel-diaries-listener", m, 30*time.Second, nats.ErrorHandler(s.asyncError))
	if err != nil {
		return nil, err
	}
	s.nc = nc
	// both subscriptions feed one channel so control messages stay in order with events
	for _, subj := range []string{subject, ControlSubject(subject)} {
		sub, err := nc.ChanSubscribe(subj, s.msgs)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("subscribe %s: %w", subj, err)
		}
		s.subs = append(s.subs, sub)
	}
	if err := nc.Flush(); err != nil {
		s.Close()
		return nil, err
	}
	log.Info().Str("subject", subject).Msg("Listening for events")
	return s, nil
}

func ControlSubject(subject string) string { return subject + ".control" }

// Count is the number of events received so far.
func (s *Subscriber) Count() int64 { return s.count }

// Lossy reports whether NATS discarded messages because Next fell behind. Diaries of a
// lossy run are incomplete.
func (s *Subscriber) Lossy() bool { return s.lossy.Load() }

// Dropped is the number of messages discarded so far.
func (s *Subscriber) Dropped() int {
	var n int
	for _, sub := range s.subs {
		if d, err := sub.Dropped(); err == nil {
			n += d
		}
	}
	return n
}

func (s *Subscriber) asyncError(_ *nats.Conn, sub *nats.Subscription, err error) {
	ev := log.Error().Err(err)
	if sub != nil {
		ev = ev.Str("subject", sub.Subject)
	}
	if errors.Is(err, nats.ErrSlowConsumer) {
		s.lossy.Store(true)
		ev.Msg("Event messages dropped, diaries will be incomplete")
		return
	}
	ev.Msg("NATS async error")
}

func (s *Subscriber) Next(ctx context.Context) (events.Event, error) {
	for len(s.pending) == 0 {
		select {
		case <-ctx.Done():
			return events.Event{}, ctx.Err()
		case msg := <-s.msgs:
			if msg.Subject != s.subject {
				if err := controlError(msg.Data); err != nil {
					return events.Event{}, err
				}
				continue
			}
			evs, err := decodeEvents(msg.Data)
			if err != nil {
				log.Warn().Err(err).Msg("Dropping undecodable event message")
				continue
			}
			s.pending = evs
		}
	}
	ev := s.pending[0]
	s.pending = s.pending[1:]
	s.count++
	return ev, nil
}

func controlError(body []byte) error {
	switch cmd := strings.ToLower(strings.TrimSpace(string(body))); cmd {
	case controlEnd:
		return io.EOF
	case controlReset:
		return events.ErrIterationEnd
	default:
		log.Warn().Str("command", cmd).Msg("Unknown control command")
		return nil
	}
}

func decodeEvents(data []byte) ([]events.Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty message")
	}
	if data[0] == '[' {
		var evs []events.Event
		if err := json.Unmarshal(data, &evs); err != nil {
			return nil, err
		}
		return evs, nil
	}
	var ev events.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return []events.Event{ev}, nil
}

func (s *Subscriber) Close() error {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.nc.Close()
	return nil
}
