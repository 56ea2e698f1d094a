// Package config provides functionality for managing configuration options
// for the application using command-line flags, environment variables,
// an optional .env file and an optional YAML/JSON config file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string `yaml:"addr"`

	// DatabaseDriver selects the store: "sqlite3" or "postgres".
	DatabaseDriver string `yaml:"database_driver"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `yaml:"database_dsn"`

	// SessionKey signs and encrypts the session cookie.
	// A random key is generated per process when empty.
	SessionKey string `yaml:"session_key"`

	// IdleTimeout is how long a session may stay inactive before it expires.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// SessionSweepInterval enables the background removal of idle sessions
	// when greater than zero.
	SessionSweepInterval time.Duration `yaml:"session_sweep_interval"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`

	// LogLevel is the minimum zap level.
	LogLevel string `yaml:"log_level"`

	// Config is the path to the config file.
	Config string `yaml:"-"`

	// EnvFile is the path to an optional dotenv file.
	EnvFile string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Options {
	return &Options{
		Addr:           "localhost:8080",
		DatabaseDriver: "sqlite3",
		DatabaseDSN:    "box_catalog.db?_foreign_keys=on&_busy_timeout=5000",
		IdleTimeout:    time.Hour,
		LogLevel:       "info",
		Config:         "config.yaml",
		EnvFile:        ".env",
	}
}

// Parse builds the configuration from, in increasing priority: defaults,
// the config file, the dotenv file, environment variables and flags.
func Parse(args []string) (*Options, error) {
	options := Default()

	var flagged Options
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&flagged.Addr, "a", options.Addr, "run on ip:port server")
	fs.StringVar(&flagged.DatabaseDriver, "driver", options.DatabaseDriver, "database driver (sqlite3|postgres)")
	fs.StringVar(&flagged.DatabaseDSN, "d", options.DatabaseDSN, "db address")
	fs.StringVar(&flagged.Config, "config", options.Config, "path to config file")
	fs.StringVar(&flagged.Config, "c", options.Config, "path to config file (shorthand)")
	fs.StringVar(&flagged.EnvFile, "env", options.EnvFile, "path to dotenv file")
	fs.DurationVar(&flagged.IdleTimeout, "idle", options.IdleTimeout, "session idle timeout")
	fs.StringVar(&flagged.LogLevel, "log", options.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	options.Config = flagged.Config
	if configPath := os.Getenv("CONFIG"); configPath != "" && !set["c"] && !set["config"] {
		options.Config = configPath
	}
	if err := loadFile(options.Config, options); err != nil {
		return nil, err
	}

	options.EnvFile = flagged.EnvFile
	if _, err := os.Stat(options.EnvFile); err == nil {
		if err := godotenv.Load(options.EnvFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	if err := applyEnv(options); err != nil {
		return nil, err
	}

	if set["a"] {
		options.Addr = flagged.Addr
	}
	if set["driver"] {
		options.DatabaseDriver = flagged.DatabaseDriver
	}
	if set["d"] {
		options.DatabaseDSN = flagged.DatabaseDSN
	}
	if set["idle"] {
		options.IdleTimeout = flagged.IdleTimeout
	}
	if set["log"] {
		options.LogLevel = flagged.LogLevel
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}
	return options, nil
}

// Validate reports configuration values the server cannot run with.
func (o *Options) Validate() error {
	switch o.DatabaseDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", o.DatabaseDriver)
	}
	if o.DatabaseDSN == "" {
		return errors.New("database dsn is required")
	}
	if o.IdleTimeout <= 0 {
		return errors.New("idle timeout must be positive")
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		return errors.New("tls_cert and tls_key must be set together")
	}
	return nil
}

// TLSEnabled reports whether the server should serve HTTPS.
func (o *Options) TLSEnabled() bool {
	return o.TLSCert != "" && o.TLSKey != ""
}

func loadFile(path string, options *Options) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}
	// JSON documents are valid YAML, so config.json works as well.
	if err := yaml.Unmarshal(data, options); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	return nil
}

func applyEnv(options *Options) error {
	if v := os.Getenv("SERVER_ADDRESS"); v != "" {
		options.Addr = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		options.DatabaseDriver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		options.DatabaseDSN = v
	}
	if v := os.Getenv("SESSION_KEY"); v != "" {
		options.SessionKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		options.LogLevel = v
	}
	if v := os.Getenv("TLS_CERT"); v != "" {
		options.TLSCert = v
	}
	if v := os.Getenv("TLS_KEY"); v != "" {
		options.TLSKey = v
	}
	if v := os.Getenv("IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("IDLE_TIMEOUT: %w", err)
		}
		options.IdleTimeout = d
	}
	if v := os.Getenv("SESSION_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SESSION_SWEEP_INTERVAL: %w", err)
		}
		options.SessionSweepInterval = d
	}
	return nil
}
