package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. SKYRTS_ENGINE_ADDR.
const EnvPrefix = "SKYRTS"

// Config holds all actor configuration
type Config struct {
	// Simulator endpoint: ws://host:port/path or a gRPC target
	EngineAddr string `mapstructure:"engine_addr"`
	Scenario   string `mapstructure:"scenario"`

	// Actor settings
	ActorID string `mapstructure:"actor_id"`

	// Policy settings
	Policy      string `mapstructure:"policy"`
	Seed        int64  `mapstructure:"seed"`
	MaxCommands int    `mapstructure:"max_commands"`
	Quadrant    int    `mapstructure:"quadrant"`

	// State encoding: raw channel feeding the faction one-hot block
	FactionChannel int `mapstructure:"faction_channel"`

	// Episode management
	MaxEpisodes    int           `mapstructure:"max_episodes"`
	MaxSteps       int           `mapstructure:"max_steps"`
	EpisodeTimeout time.Duration `mapstructure:"episode_timeout"`

	// Output
	RecordDir  string `mapstructure:"record_dir"`
	StatusAddr string `mapstructure:"status_addr"`

	// Episode history: PostgreSQL DSN, in memory when empty
	StoreDSN string `mapstructure:"store_dsn"`
	History  int    `mapstructure:"history"`

	// Episode events, disabled when NatsURL is empty
	NatsURL     string `mapstructure:"nats_url"`
	NatsSubject string `mapstructure:"nats_subject"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		EngineAddr:     "ws://localhost:6112",
		Scenario:       "tower_example",
		ActorID:        "actor-1",
		Policy:         "tower",
		MaxCommands:    1,
		FactionChannel: 2,
		MaxEpisodes:    -1, // unlimited
		MaxSteps:       500,
		EpisodeTimeout: 5 * time.Minute,
		StatusAddr:     ":8090",
		History:        1000,
		NatsSubject:    "skyrts.episodes",
		LogLevel:       "info",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.EngineAddr == "" {
		return fmt.Errorf("engine_addr is required")
	}
	if c.Scenario == "" {
		return fmt.Errorf("scenario is required")
	}
	if c.Policy != "random" && c.Policy != "tower" {
		return fmt.Errorf("policy must be random or tower, got %q", c.Policy)
	}
	if c.Quadrant < 0 || c.Quadrant > 4 {
		return fmt.Errorf("quadrant must be in [0, 4]")
	}
	if c.FactionChannel < 2 {
		return fmt.Errorf("faction_channel must be 2 (shared with unit type) or a later channel")
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative")
	}
	if c.EpisodeTimeout <= 0 {
		return fmt.Errorf("episode_timeout must be positive")
	}
	if c.History < 0 {
		return fmt.Errorf("history must not be negative")
	}
	if c.NatsURL != "" && c.NatsSubject == "" {
		return fmt.Errorf("nats_subject is required when nats_url is set")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error")
	}
	return nil
}

// Load overlays the optional config file, SKYRTS_* environment variables
// and command line flags onto cfg. Flags are bound under their
// underscore names so they share keys with the file and environment.
func Load(v *viper.Viper, flags *pflag.FlagSet, configFile string, cfg *Config) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return bindErr
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}
