package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"travel-diaries/internal/bus"
	"travel-diaries/internal/db"
	"travel-diaries/internal/events"
	"travel-diaries/internal/sim"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	app := &cli.App{
		Name:  "diaries",
		Usage: "Reconstructs travel diaries from MATSim events",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML configuration file", EnvVars: []string{"CONFIG_FILE"}},
			&cli.StringFlag{Name: "network", Usage: "network file (.xml or .xml.gz)"},
			&cli.StringFlag{Name: "schedule", Usage: "transit schedule file"},
			&cli.StringFlag{Name: "zones", Usage: "zones file (tab separated)"},
			&cli.StringFlag{Name: "zone-attribute", Usage: "zone attribute written to activities"},
			&cli.StringFlag{Name: "output", Usage: "output directory"},
			&cli.StringFlag{Name: "appendage", Usage: "text added to output table names"},
			&cli.StringFlag{Name: "db", Usage: "also write to a database (pgx or sqlite)"},
			&cli.Uint64Flag{Name: "seed", Usage: "sample selector seed"},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "replay events files; several files are exported as iterations",
				ArgsUsage: "EVENTS_FILE...",
				Action:    runCommand,
			},
			{
				Name:   "listen",
				Usage:  "replay events received over NATS",
				Action: listenCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Usage: "events subject"},
				},
			},
			{
				Name:      "inspect",
				Usage:     "replay events and print one traveler's chain",
				ArgsUsage: "EVENTS_FILE",
				Action:    inspectCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "person", Usage: "traveler id", Required: true},
				},
			},
			{
				Name:   "runs",
				Usage:  "show the latest run written to the output database",
				Action: runsCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
}

func runCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	e, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer e.close()

	files := c.Args().Slice()
	if len(files) == 0 && e.cfg.EventsFile != "" {
		files = []string{e.cfg.EventsFile}
	}
	if len(files) == 0 {
		return errors.New("no events file given")
	}

	r := e.runner()
	for i, path := range files {
		src, err := events.Open(path)
		if err != nil {
			return err
		}
		log.Info().Str("file", path).Msg("Replaying events file")
		err = r.Replay(ctx, src)
		src.Close()
		log.Info().Str("file", path).Int64("events", src.Count()).Msg("Events file replayed")

		interrupted := errors.Is(err, context.Canceled)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, events.ErrIterationEnd) && !interrupted {
			return fmt.Errorf("%s: %w", path, err)
		}
		appendage := e.cfg.OutputAppendage
		if len(files) > 1 {
			appendage = sim.IterationAppendage(appendage, i)
		}
		if _, err := r.Finish(context.WithoutCancel(ctx), appendage); err != nil {
			return err
		}
		if interrupted {
			log.Info().Msg("Interrupted")
			return nil
		}
	}
	return nil
}

func listenCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	e, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer e.close()

	subject := e.cfg.NATSEventsSubject
	if c.IsSet("subject") {
		subject = c.String("subject")
	}
	sub, err := bus.NewSubscriber(e.cfg.NATSURL, subject, e.metrics)
	if err != nil {
		return err
	}
	defer sub.Close()
	log.Info().Str("subject", subject).Str("control", bus.ControlSubject(subject)).Msg("Listening for events")

	summaries, err := e.runner().Run(ctx, sub)
	log.Info().Int("iterations", len(summaries)).Int64("received", sub.Count()).Msg("Listener stopped")
	if sub.Lossy() {
		log.Error().Int("dropped", sub.Dropped()).Msg("Events were dropped while listening; exported diaries are incomplete")
	}
	return err
}

func inspectCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	e, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer e.close()

	path := c.Args().First()
	if path == "" {
		path = e.cfg.EventsFile
	}
	src, err := events.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	if err := e.runner().Replay(ctx, src); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, events.ErrIterationEnd) {
		return err
	}

	person := c.String("person")
	chain, ok := e.engine.Chain(person)
	if !ok {
		if e.engine.IsTransitDriver(person) {
			return fmt.Errorf("%s is a transit driver", person)
		}
		return fmt.Errorf("no chain for %s", person)
	}
	for _, j := range chain.Journeys {
		log.Info().Int64("journey", j.ID).Int("trips", len(j.Trips)).Str("main_mode", j.Summary.MainMode).Msg("Journey")
	}
	pretty.Println(chain)
	return nil
}

func runsCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.OutputDBDriver == "" {
		return errors.New("no output database configured")
	}
	d, dsn, err := outputDSN(cfg)
	if err != nil {
		return err
	}
	sqlDB, err := db.Open(d, dsn)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	run, err := db.LatestRun(c.Context, sqlDB, d, cfg.OutputAppendage)
	if err != nil {
		return err
	}
	pretty.Println(run)
	return nil
}
