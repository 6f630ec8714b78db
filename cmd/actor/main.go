package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cartridge/skyrts/internal/actor"
	"github.com/cartridge/skyrts/internal/config"
	"github.com/cartridge/skyrts/internal/env"
	"github.com/cartridge/skyrts/internal/events"
	statusHTTP "github.com/cartridge/skyrts/internal/http"
	"github.com/cartridge/skyrts/internal/policy"
	"github.com/cartridge/skyrts/internal/recording"
	"github.com/cartridge/skyrts/internal/storage"
)

var (
	cfg        *config.Config
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "skyrts-actor",
	Short: "SkyRTS RL actor",
	Long: `Actor that plays SkyRTS scenarios against a running simulator.

Each step the raw unit grid is encoded into a 6-channel tensor, a policy
picks unit commands and the commands are sent back as a protobuf
ActionList. Transitions can be recorded to zstd files for replay.`,
	SilenceUsage: true,
	RunE:         runActor,
}

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Summarize a recorded episode file",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	cfg = config.Default()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (yaml, json or toml)")

	// Simulator settings
	rootCmd.Flags().StringVar(&cfg.EngineAddr, "engine-addr", cfg.EngineAddr, "Simulator address (ws:// URL or gRPC target)")
	rootCmd.Flags().StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "Scenario to load on reset")

	// Actor settings
	rootCmd.Flags().StringVar(&cfg.ActorID, "actor-id", cfg.ActorID, "Unique actor identifier")

	// Policy settings
	rootCmd.Flags().StringVar(&cfg.Policy, "policy", cfg.Policy, "Policy to run (random, tower)")
	rootCmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "Policy RNG seed (0 seeds from the clock)")
	rootCmd.Flags().IntVar(&cfg.MaxCommands, "max-commands", cfg.MaxCommands, "Random policy: commands per step")
	rootCmd.Flags().IntVar(&cfg.Quadrant, "quadrant", cfg.Quadrant, "Tower policy: quadrant to attack (0 for random)")

	// Encoding
	rootCmd.Flags().IntVar(&cfg.FactionChannel, "faction-channel", cfg.FactionChannel, "Raw channel feeding the faction one-hot block")

	// Episode settings
	rootCmd.Flags().IntVar(&cfg.MaxEpisodes, "max-episodes", cfg.MaxEpisodes, "Maximum episodes to run (-1 for unlimited)")
	rootCmd.Flags().IntVar(&cfg.MaxSteps, "max-steps", cfg.MaxSteps, "Maximum steps per episode (0 for unlimited)")
	rootCmd.Flags().DurationVar(&cfg.EpisodeTimeout, "episode-timeout", cfg.EpisodeTimeout, "Timeout per episode")

	// Output
	rootCmd.Flags().StringVar(&cfg.RecordDir, "record-dir", cfg.RecordDir, "Directory for episode recordings (empty disables)")
	rootCmd.Flags().StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "HTTP status listen address (empty disables)")

	// Episode history and events
	rootCmd.Flags().StringVar(&cfg.StoreDSN, "store-dsn", cfg.StoreDSN, "PostgreSQL DSN for episode history (empty keeps it in memory)")
	rootCmd.Flags().IntVar(&cfg.History, "history", cfg.History, "Episodes kept by the in-memory history (0 for unlimited)")
	rootCmd.Flags().StringVar(&cfg.NatsURL, "nats-url", cfg.NatsURL, "NATS server for episode events (empty disables)")
	rootCmd.Flags().StringVar(&cfg.NatsSubject, "nats-subject", cfg.NatsSubject, "NATS subject for episode events")

	// Logging
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(replayCmd)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

func runActor(cmd *cobra.Command, args []string) error {
	if err := config.Load(viper.New(), cmd.Flags(), configFile, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info().
		Str("actor_id", cfg.ActorID).
		Str("scenario", cfg.Scenario).
		Str("engine_addr", cfg.EngineAddr).
		Str("policy", cfg.Policy).
		Msg("starting actor")

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := policy.New(cfg.Policy, policy.Options{
		Seed:        cfg.Seed,
		MaxCommands: cfg.MaxCommands,
		Quadrant:    cfg.Quadrant,
	})
	if err != nil {
		return err
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, 30*time.Second)
	environment, err := env.Dial(dialCtx, cfg.EngineAddr, cfg.Scenario, logger)
	cancelDial()
	if err != nil {
		return err
	}

	var store storage.Store = storage.NewMemoryStore(cfg.History)
	if cfg.StoreDSN != "" {
		pg, err := storage.OpenPostgres(ctx, cfg.StoreDSN)
		if err != nil {
			_ = environment.Close()
			return err
		}
		store = pg
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NatsURL != "" {
		np, err := events.NewNATSPublisher(cfg.NatsURL, cfg.NatsSubject, logger)
		if err != nil {
			_ = store.Close()
			_ = environment.Close()
			return err
		}
		logger.Info().Str("subject", cfg.NatsSubject).Msg("publishing episode events")
		publisher = np
	}

	var rec recording.Recorder
	if cfg.RecordDir != "" {
		name := fmt.Sprintf("%s-%s.rec.zst", cfg.ActorID, time.Now().UTC().Format("20060102T150405"))
		fr, err := recording.NewFileRecorder(filepath.Join(cfg.RecordDir, name))
		if err != nil {
			publisher.Close()
			_ = store.Close()
			_ = environment.Close()
			return fmt.Errorf("failed to open recording: %w", err)
		}
		logger.Info().Str("path", fr.Path()).Msg("recording episodes")
		rec = fr
	}

	actorInstance := actor.New(cfg, environment, p, rec, logger,
		actor.WithStore(store), actor.WithPublisher(publisher))
	defer func() {
		if err := actorInstance.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close actor")
		}
	}()

	if cfg.StatusAddr != "" {
		srv := &http.Server{
			Addr:              cfg.StatusAddr,
			Handler:           statusHTTP.NewServer(actorInstance, actorInstance.Episodes(), logger).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			logger.Info().Str("addr", cfg.StatusAddr).Msg("status server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("status server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("graceful shutdown failed")
			}
			<-done
		}()
	}

	err = actorInstance.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info().Msg("shutdown signal received")
		err = nil
	}
	if err != nil {
		return fmt.Errorf("actor failed: %w", err)
	}

	stats := actorInstance.Stats()
	logger.Info().
		Int("episodes", stats.Episodes).
		Int("failed_episodes", stats.FailedEpisodes).
		Uint64("steps", stats.Steps).
		Msg("actor stopped gracefully")
	return nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	logger := newLogger(cfg.LogLevel)

	frames, err := recording.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read recording: %w", err)
	}
	episodes, err := recording.Summarize(frames)
	if err != nil {
		return fmt.Errorf("failed to summarize recording: %w", err)
	}

	var total float64
	for _, ep := range episodes {
		total += ep.Reward
		logger.Info().
			Str("episode_id", ep.ID).
			Uint32("steps", ep.Steps).
			Int("commands", ep.Commands).
			Float64("reward", ep.Reward).
			Bool("terminal", ep.Terminal).
			Dur("duration", ep.Duration).
			Msg("episode")
	}
	logger.Info().
		Str("file", args[0]).
		Int("frames", len(frames)).
		Int("episodes", len(episodes)).
		Float64("total_reward", total).
		Msg("replay summary")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
