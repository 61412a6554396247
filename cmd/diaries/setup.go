package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"travel-diaries/internal/bus"
	"travel-diaries/internal/config"
	"travel-diaries/internal/db"
	"travel-diaries/internal/diary"
	"travel-diaries/internal/export"
	"travel-diaries/internal/metrics"
	"travel-diaries/internal/network"
	"travel-diaries/internal/sim"
	"travel-diaries/internal/zones"
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		os.Setenv("CONFIG_FILE", path)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.IsSet("network") {
		cfg.NetworkFile = c.String("network")
	}
	if c.IsSet("schedule") {
		cfg.ScheduleFile = c.String("schedule")
	}
	if c.IsSet("zones") {
		cfg.ZonesFile = c.String("zones")
	}
	if c.IsSet("zone-attribute") {
		cfg.ZoneAttribute = c.String("zone-attribute")
	}
	if c.IsSet("output") {
		cfg.OutputDir = c.String("output")
	}
	if c.IsSet("appendage") {
		cfg.OutputAppendage = c.String("appendage")
	}
	if c.IsSet("db") {
		cfg.OutputDBDriver = c.String("db")
	}
	if c.IsSet("seed") {
		cfg.SampleSeed = c.Uint64("seed")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log.Logger = log.Logger.Level(lvl)
	}
	return cfg, nil
}

func outputDSN(cfg *config.Config) (db.Dialect, string, error) {
	d := db.Dialect(cfg.OutputDBDriver)
	if d == db.SQLite {
		return d, db.SQLiteDSN(cfg.SQLitePath), nil
	}
	dsn := cfg.DatabaseURL
	if cfg.OutputDBName != "" {
		var err error
		if dsn, err = db.WithDBName(dsn, cfg.OutputDBName); err != nil {
			return d, "", fmt.Errorf("compose DSN: %w", err)
		}
	}
	return d, dsn, nil
}

// env holds what every command needs: configuration, the loaded scenario and outputs.
type env struct {
	cfg     *config.Config
	metrics *metrics.Collector
	engine  *diary.Engine
	zones   *zones.Index

	dialect db.Dialect
	db      *sql.DB
	srv     *http.Server
}

func setup(ctx context.Context, c *cli.Context) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, metrics: metrics.NewCollector()}
	if cfg.MetricsAddr != "" {
		e.srv = e.metrics.Serve(cfg.MetricsAddr)
	}

	start := time.Now()
	net, err := network.LoadNetwork(cfg.NetworkFile)
	if err != nil {
		e.close()
		return nil, err
	}
	log.Info().Int("links", len(net.Links)).Int("nodes", len(net.Nodes)).Dur("took", time.Since(start)).Msg("Network loaded")

	opts := diary.Options{TransitActivityType: cfg.TransitActivityType, Observer: e.metrics}
	var schedule diary.Schedule
	if cfg.ScheduleFile != "" {
		sched, err := network.LoadSchedule(cfg.ScheduleFile)
		if err != nil {
			e.close()
			return nil, err
		}
		schedule = sched
		opts.Vehicles = sched.Vehicles()
		log.Info().Int("lines", len(sched.Lines)).Int("vehicles", len(opts.Vehicles)).Msg("Transit schedule loaded")
	}
	if cfg.ZonesFile != "" {
		if e.zones, err = zones.Load(cfg.ZonesFile); err != nil {
			e.close()
			return nil, err
		}
		log.Info().Int("zones", e.zones.Len()).Str("attribute", cfg.ZoneAttribute).Msg("Zones loaded")
	}
	e.engine = diary.New(net, schedule, opts)

	if cfg.OutputDBDriver != "" {
		d, dsn, err := outputDSN(cfg)
		if err != nil {
			e.close()
			return nil, err
		}
		if e.db, err = db.Connect(ctx, d, dsn, 30*time.Second); err != nil {
			e.close()
			return nil, err
		}
		if err := db.Migrate(ctx, e.db, d); err != nil {
			e.close()
			return nil, err
		}
		e.dialect = d
	}
	return e, nil
}

func (e *env) runner() *sim.Runner {
	opts := sim.Options{
		Appendage:     e.cfg.OutputAppendage,
		Seed:          e.cfg.SampleSeed,
		ZoneAttribute: e.cfg.ZoneAttribute,
	}
	if e.zones != nil {
		opts.Zones = e.zones
	}
	return sim.NewRunner(e.engine, e.openSink, opts, e.metrics)
}

// openSink combines the outputs of one iteration: tables on disk, plus the database and
// NATS when configured.
func (e *env) openSink(ctx context.Context, runID, appendage string) (export.Sink, error) {
	tsv, err := export.NewTSVSink(e.cfg.OutputDir, appendage)
	if err != nil {
		return nil, err
	}
	sinks := export.MultiSink{tsv}
	if e.db != nil {
		s, err := db.NewSink(ctx, e.db, e.dialect, runID, appendage)
		if err != nil {
			return nil, errors.Join(err, sinks.Abort())
		}
		sinks = append(sinks, s)
	}
	if e.cfg.NATSRecordsPrefix != "" {
		p, err := bus.NewPublisher(e.cfg.NATSURL, e.cfg.NATSRecordsPrefix, runID, e.cfg.LogNATSSubjects, e.metrics)
		if err != nil {
			return nil, errors.Join(err, sinks.Abort())
		}
		sinks = append(sinks, p)
	}
	return sinks, nil
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
	}
	if e.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = e.srv.Shutdown(shutdownCtx)
	}
}
