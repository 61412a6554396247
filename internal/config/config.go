package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	EventsFile    string `yaml:"events_file"`
	NetworkFile   string `yaml:"network_file" validate:"required"`
	ScheduleFile  string `yaml:"schedule_file"`
	ZonesFile     string `yaml:"zones_file"`
	ZoneAttribute string `yaml:"zone_attribute" validate:"required_with=ZonesFile"`

	OutputDir       string `yaml:"output_dir" validate:"required"`
	OutputAppendage string `yaml:"output_appendage"`

	OutputDBDriver string `yaml:"output_db_driver" validate:"omitempty,oneof=pgx sqlite"`
	DatabaseURL    string `yaml:"database_url" validate:"required_if=OutputDBDriver pgx"`
	OutputDBName   string `yaml:"output_db_name"`
	SQLitePath     string `yaml:"sqlite_path" validate:"required_if=OutputDBDriver sqlite"`

	NATSURL           string `yaml:"nats_url" validate:"required"`
	NATSEventsSubject string `yaml:"nats_events_subject" validate:"required"`
	NATSRecordsPrefix string `yaml:"nats_records_prefix"`
	LogNATSSubjects   bool   `yaml:"log_nats_subjects"`

	MetricsAddr         string `yaml:"metrics_addr"`
	SampleSeed          uint64 `yaml:"sample_seed"`
	TransitActivityType string `yaml:"transit_activity_type" validate:"required"`
	LogLevel            string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

func defaults() *Config {
	return &Config{
		OutputDir:           ".",
		SQLitePath:          "diaries.db",
		NATSURL:             "nats://127.0.0.1:4222",
		NATSEventsSubject:   "matsim.events",
		SampleSeed:          1,
		TransitActivityType: "pt interaction",
		LogLevel:            "info",
	}
}

// Load builds the configuration from defaults, the optional YAML file named by CONFIG_FILE
// and the environment (including .env), in increasing precedence. Call Validate once
// command line overrides have been applied.
func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read CONFIG_FILE: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.EventsFile = getenvDefault("EVENTS_FILE", cfg.EventsFile)
	cfg.NetworkFile = getenvDefault("NETWORK_FILE", cfg.NetworkFile)
	cfg.ScheduleFile = getenvDefault("SCHEDULE_FILE", cfg.ScheduleFile)
	cfg.ZonesFile = getenvDefault("ZONES_FILE", cfg.ZonesFile)
	cfg.ZoneAttribute = getenvDefault("ZONE_ATTRIBUTE", cfg.ZoneAttribute)
	cfg.OutputDir = getenvDefault("OUTPUT_DIR", cfg.OutputDir)
	cfg.OutputAppendage = getenvDefault("OUTPUT_APPENDAGE", cfg.OutputAppendage)
	cfg.OutputDBDriver = strings.ToLower(getenvDefault("OUTPUT_DB_DRIVER", cfg.OutputDBDriver))
	cfg.OutputDBName = getenvDefault("OUTPUT_DB_NAME", cfg.OutputDBName)
	cfg.SQLitePath = getenvDefault("SQLITE_PATH", cfg.SQLitePath)
	cfg.NATSURL = getenvDefault("NATS_URL", cfg.NATSURL)
	cfg.NATSEventsSubject = getenvDefault("NATS_EVENTS_SUBJECT", cfg.NATSEventsSubject)
	cfg.NATSRecordsPrefix = getenvDefault("NATS_RECORDS_PREFIX", cfg.NATSRecordsPrefix)
	cfg.MetricsAddr = getenvDefault("METRICS_ADDR", cfg.MetricsAddr)
	cfg.TransitActivityType = getenvDefault("TRANSIT_ACTIVITY_TYPE", cfg.TransitActivityType)
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", cfg.LogLevel))

	// Debug logging for NATS publish subjects
	if v := os.Getenv("LOG_NATS_SUBJECTS"); v != "" {
		cfg.LogNATSSubjects = parseBool(v)
	}

	if v := os.Getenv("SAMPLE_SEED"); v != "" {
		seed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SAMPLE_SEED: %q", v)
		}
		cfg.SampleSeed = seed
	}

	// Postgres output DSN: prefer DATABASE_URL / PG_DSN, else build from PG* vars
	cfg.DatabaseURL = firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN"), cfg.DatabaseURL)
	if cfg.DatabaseURL == "" && cfg.OutputDBDriver == "pgx" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := getenvDefault("PGDATABASE", "postgres")
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
