// Package config provides Viper-based configuration loading for the
// simulation server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

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
	// Enabled switches durable persistence on. When false the server runs
	// with in-memory state only.
	Enabled bool `mapstructure:"enabled"`
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

// WebSocketConfig holds the websocket listener settings.
type WebSocketConfig struct {
	// Host is the bind address for the websocket listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the websocket listener.
	Port int `mapstructure:"port"`
	// Path is the HTTP path clients connect to.
	Path string `mapstructure:"path"`
	// WriteTimeout is the per-message write deadline.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PingInterval is how often keepalive pings are sent.
	PingInterval time.Duration `mapstructure:"ping_interval"`
	// SendBuffer is the per-connection outbound channel capacity.
	SendBuffer int `mapstructure:"send_buffer"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (w WebSocketConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// File, when set, sends output to a size-rotated log file instead of
	// stdout.
	File string `mapstructure:"file"`
	// MaxSizeMB is the rotation threshold for File output.
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is how many rotated files to keep.
	MaxBackups int `mapstructure:"max_backups"`
}

// SimConfig holds the simulation tuning constants.
type SimConfig struct {
	// EncounterTick is the fixed combat tick period.
	EncounterTick time.Duration `mapstructure:"encounter_tick"`
	// DamageVariance is the ± spread applied to every damage roll.
	DamageVariance float64 `mapstructure:"damage_variance"`
	// MinDamage is the post-armor damage floor.
	MinDamage int `mapstructure:"min_damage"`
	// XPPerLevel is the base experience per defeated-agent level.
	XPPerLevel int `mapstructure:"xp_per_level"`
	// LevelThreshold is the per-level experience requirement multiplier.
	LevelThreshold int `mapstructure:"level_threshold"`
	// FleeChance is the flee success probability.
	FleeChance float64 `mapstructure:"flee_chance"`
	// RecoveryRoom is where defeated players wake up. Empty means the world
	// start room.
	RecoveryRoom string `mapstructure:"recovery_room"`
	// RecoveryFraction is the share of max health restored on defeat.
	RecoveryFraction float64 `mapstructure:"recovery_fraction"`
	// BehaviorTick is the agent behavior pass period.
	BehaviorTick time.Duration `mapstructure:"behavior_tick"`
	// WanderChance is the per-tick wander probability.
	WanderChance float64 `mapstructure:"wander_chance"`
	// PatrolAdvanceChance is the per-tick patrol advance probability.
	PatrolAdvanceChance float64 `mapstructure:"patrol_advance_chance"`
	// RespawnDelay is the default agent respawn delay.
	RespawnDelay time.Duration `mapstructure:"respawn_delay"`
	// MechanicTick is the boss mechanic evaluation period.
	MechanicTick time.Duration `mapstructure:"mechanic_tick"`
	// InviteSweepInterval is how often expired party invites are swept.
	InviteSweepInterval time.Duration `mapstructure:"invite_sweep_interval"`
}

// ContentConfig holds the content directory paths.
type ContentConfig struct {
	// ZonesDir holds the zone YAML files.
	ZonesDir string `mapstructure:"zones_dir"`
	// TemplatesDir holds the agent template YAML files.
	TemplatesDir string `mapstructure:"templates_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Sim       SimConfig       `mapstructure:"sim"`
	Content   ContentConfig   `mapstructure:"content"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateWebSocket(c.WebSocket); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSim(c.Sim); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateContent(c.Content); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	if !d.Enabled {
		return nil
	}
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

func validateWebSocket(w WebSocketConfig) error {
	var errs []string
	if w.Port < 1 || w.Port > 65535 {
		errs = append(errs, fmt.Sprintf("websocket.port must be 1-65535, got %d", w.Port))
	}
	if !strings.HasPrefix(w.Path, "/") {
		errs = append(errs, fmt.Sprintf("websocket.path must start with /, got %q", w.Path))
	}
	if w.WriteTimeout < 0 {
		errs = append(errs, "websocket.write_timeout must not be negative")
	}
	if w.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("websocket.send_buffer must be >= 1, got %d", w.SendBuffer))
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
	if l.File != "" && l.MaxSizeMB < 1 {
		return fmt.Errorf("logging.max_size_mb must be >= 1 when logging.file is set, got %d", l.MaxSizeMB)
	}
	return nil
}

func validateSim(s SimConfig) error {
	var errs []string
	if s.EncounterTick <= 0 {
		errs = append(errs, "sim.encounter_tick must be positive")
	}
	if s.DamageVariance < 0 || s.DamageVariance >= 1 {
		errs = append(errs, fmt.Sprintf("sim.damage_variance must be in [0, 1), got %f", s.DamageVariance))
	}
	if s.MinDamage < 0 {
		errs = append(errs, fmt.Sprintf("sim.min_damage must be >= 0, got %d", s.MinDamage))
	}
	if s.XPPerLevel < 1 {
		errs = append(errs, fmt.Sprintf("sim.xp_per_level must be >= 1, got %d", s.XPPerLevel))
	}
	if s.LevelThreshold < 1 {
		errs = append(errs, fmt.Sprintf("sim.level_threshold must be >= 1, got %d", s.LevelThreshold))
	}
	if s.FleeChance < 0 || s.FleeChance > 1 {
		errs = append(errs, fmt.Sprintf("sim.flee_chance must be in [0, 1], got %f", s.FleeChance))
	}
	if s.RecoveryFraction <= 0 || s.RecoveryFraction > 1 {
		errs = append(errs, fmt.Sprintf("sim.recovery_fraction must be in (0, 1], got %f", s.RecoveryFraction))
	}
	if s.BehaviorTick <= 0 {
		errs = append(errs, "sim.behavior_tick must be positive")
	}
	if s.WanderChance < 0 || s.WanderChance > 1 {
		errs = append(errs, fmt.Sprintf("sim.wander_chance must be in [0, 1], got %f", s.WanderChance))
	}
	if s.PatrolAdvanceChance < 0 || s.PatrolAdvanceChance > 1 {
		errs = append(errs, fmt.Sprintf("sim.patrol_advance_chance must be in [0, 1], got %f", s.PatrolAdvanceChance))
	}
	if s.RespawnDelay <= 0 {
		errs = append(errs, "sim.respawn_delay must be positive")
	}
	if s.MechanicTick <= 0 {
		errs = append(errs, "sim.mechanic_tick must be positive")
	}
	if s.InviteSweepInterval <= 0 {
		errs = append(errs, "sim.invite_sweep_interval must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateContent(c ContentConfig) error {
	var errs []string
	if c.ZonesDir == "" {
		errs = append(errs, "content.zones_dir must not be empty")
	}
	if c.TemplatesDir == "" {
		errs = append(errs, "content.templates_dir must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with MUD_ prefix
	v.SetEnvPrefix("MUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
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

// Defaults returns a Config populated with every default value. Useful for
// hosts that run without a config file.
func Defaults() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Unmarshalling pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "mud")
	v.SetDefault("database.password", "mud")
	v.SetDefault("database.name", "mud")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("websocket.host", "0.0.0.0")
	v.SetDefault("websocket.port", 4000)
	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.send_buffer", 64)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)

	v.SetDefault("sim.encounter_tick", "3s")
	v.SetDefault("sim.damage_variance", 0.2)
	v.SetDefault("sim.min_damage", 1)
	v.SetDefault("sim.xp_per_level", 10)
	v.SetDefault("sim.level_threshold", 100)
	v.SetDefault("sim.flee_chance", 0.5)
	v.SetDefault("sim.recovery_room", "")
	v.SetDefault("sim.recovery_fraction", 0.5)
	v.SetDefault("sim.behavior_tick", "10s")
	v.SetDefault("sim.wander_chance", 0.35)
	v.SetDefault("sim.patrol_advance_chance", 0.5)
	v.SetDefault("sim.respawn_delay", "5s")
	v.SetDefault("sim.mechanic_tick", "2s")
	v.SetDefault("sim.invite_sweep_interval", "60s")

	v.SetDefault("content.zones_dir", "content/zones")
	v.SetDefault("content.templates_dir", "content/agents")
}
