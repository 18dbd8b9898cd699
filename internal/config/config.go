// Package config loads questcore settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store kinds.
const (
	StoreSQLite    = "sqlite"
	StoreFirestore = "firestore"
)

// Log formats.
const (
	LogText = "text"
	LogJSON = "json"
)

// Config holds process settings. CLI flags override these values.
type Config struct {
	DBPath              string `env:"QUESTCORE_DB" envDefault:"questcore.db"`
	Store               string `env:"QUESTCORE_STORE" envDefault:"sqlite"`
	FirebaseProject     string `env:"QUESTCORE_FIREBASE_PROJECT"`
	FirebaseCredentials string `env:"QUESTCORE_FIREBASE_CREDENTIALS"`
	CatalogDir          string `env:"QUESTCORE_CATALOG_DIR"`
	Timezone            string `env:"QUESTCORE_TIMEZONE" envDefault:"UTC"`
	LogFormat           string `env:"QUESTCORE_LOG_FORMAT" envDefault:"text"`
	MetricsFile         string `env:"QUESTCORE_METRICS_FILE"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads .env files (default ".env"; missing files are ignored), then
// parses and validates the environment. Variables already set in the
// process win over .env entries.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated values and cross-field requirements.
func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("QUESTCORE_DB is required for the sqlite store"))
		}
	case StoreFirestore:
		if c.FirebaseProject == "" {
			errs = append(errs, errors.New("QUESTCORE_FIREBASE_PROJECT is required for the firestore store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (want sqlite or firestore)", c.Store))
	}

	switch c.LogFormat {
	case LogText, LogJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the configured time zone used for streaks and
// time-of-day flags.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
