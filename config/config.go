/*
Package config loads server configuration.

SOURCES (highest priority first):
  1. Command-line flags (--port, --db, --log-level, --seed)
  2. Environment variables with COMMISSION_ prefix (COMMISSION_DATABASE_PATH)
  3. Config file (config.yaml / config.toml in . or /etc/commission-engine,
     or the path given by --config)
  4. Built-in defaults

EXAMPLES:
  ./server --db=":memory:" --seed=ana-march
  COMMISSION_LOG_FORMAT=json ./server
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Metrics  MetricsConfig
	Payouts  PayoutsConfig
	Seed     SeedConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port int
}

// DatabaseConfig holds the SQLite location. ":memory:" keeps everything in RAM.
type DatabaseConfig struct {
	Path string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	CORSAllowOrigins []string
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// PayoutsConfig controls the background payout-due scheduler.
type PayoutsConfig struct {
	SchedulerEnabled bool
	CheckInterval    time.Duration
}

// SeedConfig names a demo scenario to load at start-up (empty = none).
type SeedConfig struct {
	Scenario string
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// IsProduction reports whether the app runs with env=production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// NewFlagSet declares the command-line flags understood by Load.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "Path to a config file (yaml or toml)")
	fs.Int("port", 8080, "HTTP server port")
	fs.String("db", "commission.db", "SQLite database path (\":memory:\" for in-memory)")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("seed", "", "Demo scenario to load at start-up")
	return fs
}

// Load reads configuration from defaults, file, environment and flags.
// fs may be nil when no flags are used (tests).
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if fs != nil {
		for key, flag := range map[string]string{
			"app.port":      "port",
			"database.path": "db",
			"log.level":     "log-level",
			"seed.scenario": "seed",
		} {
			if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}

	var configFile string
	if fs != nil {
		configFile, _ = fs.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/commission-engine")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, defaults and env vars apply.
	}

	v.SetEnvPrefix("COMMISSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetInt("app.port"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Path:    v.GetString("metrics.path"),
		},
		Payouts: PayoutsConfig{
			SchedulerEnabled: v.GetBool("payouts.scheduler_enabled"),
			CheckInterval:    v.GetDuration("payouts.check_interval"),
		},
		Seed: SeedConfig{
			Scenario: v.GetString("seed.scenario"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at start-up.
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid app.port %d", c.App.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log.format %q (use json or console)", c.Log.Format)
	}
	if c.Payouts.SchedulerEnabled && c.Payouts.CheckInterval <= 0 {
		return fmt.Errorf("payouts.check_interval must be positive, got %s", c.Payouts.CheckInterval)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "commission-engine")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)

	v.SetDefault("database.path", "commission.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("http.cors_allow_origins", []string{"http://localhost:5173", "http://localhost:8080"})

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("payouts.scheduler_enabled", true)
	v.SetDefault("payouts.check_interval", time.Hour)

	v.SetDefault("seed.scenario", "")
}
