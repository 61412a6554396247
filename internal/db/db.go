package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Open opens a database for one of the supported dialects without connecting.
func Open(d Dialect, dsn string) (*sql.DB, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open(string(d), dsn)
	if err != nil {
		return nil, err
	}
	switch d {
	case Postgres:
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	case SQLite:
		// one writer; the output is written in a single transaction anyway
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Connect opens the database and pings it with exponential backoff until maxWait elapses.
func Connect(ctx context.Context, d Dialect, dsn string, maxWait time.Duration) (*sql.DB, error) {
	db, err := Open(d, dsn)
	if err != nil {
		return nil, err
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxWait
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		err := Ping(ctx, db)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Str("driver", string(d)).Msg("Database not reachable")
		}
		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", d, err)
	}
	return db, nil
}
