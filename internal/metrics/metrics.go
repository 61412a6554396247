package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"travel-diaries/internal/events"
)

type Collector struct {
	reg *prometheus.Registry

	EventsHandled  *prometheus.CounterVec // type label
	Diagnostics    *prometheus.CounterVec // reason label
	StuckEvents    prometheus.Counter
	ExportFailures prometheus.Counter
	RecordsWritten *prometheus.CounterVec // table label
	Iterations     prometheus.Counter

	Chains   prometheus.Gauge
	Vehicles prometheus.Gauge

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	HandleDuration  prometheus.Histogram
	PublishDuration prometheus.Histogram
	ExportDuration  prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		EventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diaries_events_handled_total",
			Help: "Events applied to the diary engine.",
		}, []string{"type"}),
		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diaries_diagnostics_total",
			Help: "Events that could not be fully applied.",
		}, []string{"reason"}),
		StuckEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "diaries_stuck_events_total",
			Help: "Stuck events applied.",
		}),
		ExportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "diaries_export_failures_total",
			Help: "Journeys skipped at export because of malformed state.",
		}),
		RecordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diaries_records_written_total",
			Help: "Diary records handed to the sinks.",
		}, []string{"table"}),
		Iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "diaries_iterations_total",
			Help: "Completed iterations.",
		}),
		Chains: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "diaries_chains",
			Help: "Traveler chains in the current iteration.",
		}),
		Vehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "diaries_transit_vehicles",
			Help: "Transit vehicles in the registry.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "diaries_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "diaries_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "diaries_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		HandleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "diaries_handle_duration_seconds",
			Help:    "Time to apply one event.",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "diaries_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		ExportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "diaries_export_duration_seconds",
			Help:    "Duration of one diary export.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
	}

	reg.MustRegister(
		c.EventsHandled, c.Diagnostics, c.StuckEvents, c.ExportFailures, c.RecordsWritten, c.Iterations,
		c.Chains, c.Vehicles,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.HandleDuration, c.PublishDuration, c.ExportDuration,
	)
	return c
}

// EventHandled, DiagnosticRecorded and StuckEvent make the collector a diary.Observer.
func (c *Collector) EventHandled(t events.Type, d time.Duration) {
	c.EventsHandled.WithLabelValues(string(t)).Inc()
	c.HandleDuration.Observe(d.Seconds())
}

func (c *Collector) DiagnosticRecorded(reason string) { c.Diagnostics.WithLabelValues(reason).Inc() }

func (c *Collector) StuckEvent() { c.StuckEvents.Inc() }

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()
	log.Info().Str("addr", addr).Msg("Metrics listening")
	return srv
}
