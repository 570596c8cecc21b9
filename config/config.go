// Package config loads application settings from a .env file and environment variables.
// Environment variables always take precedence over .env file values.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/padraicbc/stationsync/race"
)

// Database drivers accepted in DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// Config holds all application configuration.
type Config struct {
	// Station this process runs as: "base" or a checkpoint number.
	Station race.Station

	// DBDriver selects the store: postgres on the base station, sqlite on
	// field devices, mysql where that is what the venue runs.
	DBDriver string

	// PostgreSQL – either set DatabaseURL directly, or the individual fields.
	DatabaseURL string
	DBUser      string
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
	DBSSLMode   string

	SQLitePath string
	MySQLDSN   string

	// Server
	Debug      bool
	Port       string
	TLSDomains []string
}

// Load reads configuration from a .env file (if present) and then from
// environment variables. Environment variables always win.
func Load() *Config {
	cfg, err := FromViper(newViper())
	if err != nil {
		log.Fatal("config: ", err)
	}
	return cfg
}

// FromViper reads and validates a Config from v, applying defaults.
func FromViper(v *viper.Viper) (*Config, error) {
	// Defaults
	v.SetDefault("STATION", "base")
	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DB_USER", "stationsync")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "stationsync")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "stationsync.db")
	v.SetDefault("PORT", ":9000")
	v.SetDefault("DEBUG", false)

	st, err := race.ParseStation(v.GetString("STATION"))
	if err != nil {
		return nil, fmt.Errorf("STATION: %w", err)
	}

	cfg := &Config{
		Station:     st,
		DBDriver:    strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DatabaseURL: v.GetString("DATABASE_URL"),
		DBUser:      v.GetString("DB_USER"),
		DBPass:      v.GetString("DB_PASS"),
		DBHost:      v.GetString("DB_HOST"),
		DBPort:      v.GetString("DB_PORT"),
		DBName:      v.GetString("DB_NAME"),
		DBSSLMode:   v.GetString("DB_SSLMODE"),
		SQLitePath:  v.GetString("SQLITE_PATH"),
		MySQLDSN:    v.GetString("MYSQL_DSN"),
		Debug:       v.GetBool("DEBUG"),
		Port:        v.GetString("PORT"),
		TLSDomains:  splitTrimmed(v.GetString("TLS_DOMAINS")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected store has what it needs to connect.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" && c.DBPass == "" {
			return errors.New("DATABASE_URL or DB_PASS must be set")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH must be set")
		}
	case DriverMySQL:
		if c.MySQLDSN == "" {
			return errors.New("MYSQL_DSN required, e.g.: user:pass@tcp(host:3306)/stationsync")
		}
	default:
		return fmt.Errorf("DB_DRIVER %q is not one of postgres, sqlite, mysql", c.DBDriver)
	}
	if !c.Debug && len(c.TLSDomains) == 0 {
		return errors.New("TLS_DOMAINS must be set outside debug mode")
	}
	return nil
}

// DSN returns the connection string of the selected driver.
func (c *Config) DSN() string {
	switch c.DBDriver {
	case DriverSQLite:
		return c.SQLitePath
	case DriverMySQL:
		return c.MySQLDSN
	default:
		return c.PostgresDSN()
	}
}

// PostgresDSN returns the full PostgreSQL connection string.
// DATABASE_URL takes precedence over individual fields.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser,
		c.DBPass,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func newViper() *viper.Viper {
	// Silently load .env – OK if the file doesn't exist (production uses real env vars).
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using environment variables only")
	}

	v := viper.New()
	v.AutomaticEnv()
	return v
}

func splitTrimmed(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
