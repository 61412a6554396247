// Package bus connects the diary pipeline to NATS.
package bus

import (
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// ConnMetrics is implemented by the metrics collector.
type ConnMetrics interface {
	NATSSetConnected(connected bool)
}

// connect dials NATS, retrying the initial connection with exponential backoff. extra
// options are applied last and may replace the default handlers.
func connect(url, name string, m ConnMetrics, maxWait time.Duration, extra ...nats.Option) (*nats.Conn, error) {
	setConnected := func(v bool) {
		if m != nil {
			m.NATSSetConnected(v)
		}
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			setConnected(false)
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			setConnected(true)
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			setConnected(false)
			log.Info().Msg("NATS connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			ev := log.Error().Err(err)
			if sub != nil {
				ev = ev.Str("subject", sub.Subject)
			}
			ev.Msg("NATS async error")
		}),
	}
	opts = append(opts, extra...)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxWait
	var nc *nats.Conn
	err := backoff.Retry(func() error {
		var err error
		nc, err = nats.Connect(url, opts...)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("NATS connect failed")
		}
		return err
	}, b)
	if err != nil {
		return nil, err
	}
	setConnected(true)
	return nc, nil
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
