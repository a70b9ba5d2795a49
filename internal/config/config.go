// Package config provides Viper-based configuration loading for the world
// server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/hearth/internal/game/tick"
	"github.com/cory-johannsen/hearth/internal/game/world"
	"github.com/cory-johannsen/hearth/internal/planner"
	"github.com/cory-johannsen/hearth/internal/ratelimit"
	"github.com/cory-johannsen/hearth/internal/transport"
)

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// Name identifies this world in logs and persistence.
	Name string `mapstructure:"name"`
	// PlannerMode is the initial planner mode: "offline" or "advanced".
	// A persisted snapshot's mode takes precedence on load.
	PlannerMode string `mapstructure:"planner_mode"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// WorldConfig holds world content and persistence settings.
type WorldConfig struct {
	// ContentDir is the directory of YAML world definition files.
	ContentDir string `mapstructure:"content_dir"`
	// SaveInterval is the minimum spacing between scheduled snapshot writes.
	SaveInterval time.Duration `mapstructure:"save_interval"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Nats      transport.Config `mapstructure:"nats"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Tick      tick.Config      `mapstructure:"tick"`
	Planner   planner.Config   `mapstructure:"planner"`
	RateLimit ratelimit.Config `mapstructure:"ratelimit"`
	World     WorldConfig      `mapstructure:"world"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if c.Server.Name == "" {
		errs = append(errs, "server.name must not be empty")
	}
	if !world.PlannerMode(c.Server.PlannerMode).Valid() {
		errs = append(errs, fmt.Sprintf("server.planner_mode must be one of [offline, advanced], got %q", c.Server.PlannerMode))
	}
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateTick(c.Tick); err != nil {
		errs = append(errs, err.Error())
	}
	if c.World.ContentDir == "" {
		errs = append(errs, "world.content_dir must not be empty")
	}
	if c.World.SaveInterval < 0 {
		errs = append(errs, "world.save_interval must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateTick(t tick.Config) error {
	var errs []string
	if t.Interval < 0 {
		errs = append(errs, "tick.interval must not be negative")
	}
	if t.MaxActionsPerNPC < 0 {
		errs = append(errs, "tick.max_actions_per_npc must not be negative")
	}
	for name, rate := range map[string]float64{
		"tick.hunger_decay":        t.HungerDecay,
		"tick.thirst_decay":        t.ThirstDecay,
		"tick.socialization_decay": t.SocializationDecay,
		"tick.sleep_decay":         t.SleepDecay,
		"tick.sleep_regen":         t.SleepRegen,
	} {
		if rate < 0 {
			errs = append(errs, fmt.Sprintf("%s must not be negative", name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with HEARTH_ prefix
	v.SetEnvPrefix("HEARTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "hearth")
	v.SetDefault("server.planner_mode", "offline")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "hearth")
	v.SetDefault("database.password", "hearth")
	v.SetDefault("database.name", "hearth")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("nats.host", "127.0.0.1")
	v.SetDefault("nats.port", 4222)
	v.SetDefault("nats.startup_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tick.interval", "1s")
	v.SetDefault("tick.max_actions_per_npc", 3)
	v.SetDefault("tick.hunger_decay", 0.05)
	v.SetDefault("tick.thirst_decay", 0.08)
	v.SetDefault("tick.socialization_decay", 0.03)
	v.SetDefault("tick.sleep_decay", 0.02)
	v.SetDefault("tick.sleep_regen", 10)

	v.SetDefault("planner.model", planner.DefaultModel)
	v.SetDefault("planner.timeout", "10s")
	v.SetDefault("planner.max_response_bytes", planner.DefaultMaxBytes)

	v.SetDefault("ratelimit.planner.per_second", 1.0/3.0)
	v.SetDefault("ratelimit.planner.burst", 3)
	v.SetDefault("ratelimit.admin.per_second", 1)
	v.SetDefault("ratelimit.admin.burst", 5)

	v.SetDefault("world.content_dir", "content/world")
	v.SetDefault("world.save_interval", "30s")
}
