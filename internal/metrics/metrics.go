package metrics

import (
	"time"

	"github.com/rs/zerolog"
)

// Metrics collector for actor operations
type Collector struct {
	logger zerolog.Logger
}

func NewCollector(logger zerolog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

// Track finished episodes
func (c *Collector) EpisodeCompleted(episodeID string, steps uint32, reward float64, terminal bool, duration time.Duration) {
	c.logger.Info().
		Str("metric", "episode_completed").
		Str("episode_id", episodeID).
		Uint32("steps", steps).
		Float64("reward", reward).
		Bool("terminal", terminal).
		Dur("duration", duration).
		Msg("Episode metric")
}

// Track per-step encoding
func (c *Collector) StepEncoded(episodeID string, step uint32, units, records, bytes int, latency time.Duration) {
	c.logger.Debug().
		Str("metric", "step_encoded").
		Str("episode_id", episodeID).
		Uint32("step", step).
		Int("units", units).
		Int("records", records).
		Int("bytes", bytes).
		Dur("latency", latency).
		Msg("Step metric")
}

// Track one-hot columns that could not be represented
func (c *Collector) OneHotOverflow(episodeID string, step uint32, types, factions int) {
	c.logger.Debug().
		Str("metric", "one_hot_overflow").
		Str("episode_id", episodeID).
		Uint32("step", step).
		Int("type_overflow", types).
		Int("faction_overflow", factions).
		Msg("Overflow metric")
}

// Track encode failures by stage (state, policy, action, wire)
func (c *Collector) EncodeFailure(episodeID string, step uint32, stage string, err error) {
	c.logger.Warn().
		Str("metric", "encode_failure").
		Str("episode_id", episodeID).
		Uint32("step", step).
		Str("stage", stage).
		Err(err).
		Msg("Encode failure")
}
