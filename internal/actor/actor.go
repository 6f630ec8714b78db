package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cartridge/skyrts/internal/action"
	"github.com/cartridge/skyrts/internal/config"
	"github.com/cartridge/skyrts/internal/env"
	"github.com/cartridge/skyrts/internal/events"
	"github.com/cartridge/skyrts/internal/metrics"
	"github.com/cartridge/skyrts/internal/policy"
	"github.com/cartridge/skyrts/internal/protocol"
	"github.com/cartridge/skyrts/internal/recording"
	"github.com/cartridge/skyrts/internal/state"
	"github.com/cartridge/skyrts/internal/storage"
)

// DefaultHistory is how many episodes the default in-memory store keeps.
const DefaultHistory = 1000

const reportTimeout = 5 * time.Second

// Stats is a point-in-time copy of the actor's counters.
type Stats struct {
	ActorID        string    `json:"actor_id"`
	Scenario       string    `json:"scenario"`
	Episodes       int       `json:"episodes"`
	FailedEpisodes int       `json:"failed_episodes"`
	Steps          uint64    `json:"steps"`
	LastEpisodeID  string    `json:"last_episode_id,omitempty"`
	LastReward     float64   `json:"last_reward"`
	VisibleUnits   int       `json:"visible_units"`
	StartedAt      time.Time `json:"started_at"`
	LastStepAt     time.Time `json:"last_step_at,omitempty"`
}

// EpisodeResult summarizes one finished episode.
type EpisodeResult struct {
	ID        string
	Steps     uint32
	Reward    float64
	Terminal  bool // false when cut off by MaxSteps
	StartedAt time.Time
}

// Actor represents a single game-playing agent
type Actor struct {
	cfg    *config.Config
	logger zerolog.Logger

	env      env.Environment
	encoder  *state.Encoder
	policy   policy.Policy
	recorder recording.Recorder
	metrics  *metrics.Collector

	store     storage.Store
	publisher events.Publisher

	mu    sync.RWMutex
	stats Stats
}

// Option configures optional actor collaborators.
type Option func(*Actor)

// WithStore saves every episode outcome to store.
func WithStore(store storage.Store) Option {
	return func(a *Actor) { a.store = store }
}

// WithPublisher publishes every episode outcome to p.
func WithPublisher(p events.Publisher) Option {
	return func(a *Actor) { a.publisher = p }
}

// New creates an actor driving environment with p. rec may be nil.
func New(cfg *config.Config, environment env.Environment, p policy.Policy, rec recording.Recorder, logger zerolog.Logger, opts ...Option) *Actor {
	if rec == nil {
		rec = recording.EmptyRecorder{}
	}
	logger = logger.With().Str("actor_id", cfg.ActorID).Logger()

	var encOpts []state.Option
	if cfg.FactionChannel != state.ChannelType {
		encOpts = append(encOpts, state.WithFactionChannel(cfg.FactionChannel))
	}

	a := &Actor{
		cfg:       cfg,
		logger:    logger,
		env:       environment,
		encoder:   state.NewEncoder(logger, encOpts...),
		policy:    p,
		recorder:  rec,
		metrics:   metrics.NewCollector(logger),
		store:     storage.NewMemoryStore(DefaultHistory),
		publisher: events.NoopPublisher{},
		stats: Stats{
			ActorID:   cfg.ActorID,
			Scenario:  cfg.Scenario,
			StartedAt: time.Now().UTC(),
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Episodes returns the store holding finished episodes.
func (a *Actor) Episodes() storage.Store {
	return a.store
}

// Stats returns a copy of the current counters.
func (a *Actor) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

// Close flushes the recorder, closes the environment and releases the
// episode store and publisher.
func (a *Actor) Close() error {
	a.publisher.Close()
	return errors.Join(a.recorder.Close(), a.env.Close(), a.store.Close())
}

// Run starts the actor main loop
func (a *Actor) Run(ctx context.Context) error {
	a.logger.Info().Str("scenario", a.cfg.Scenario).Msg("actor starting main loop")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("context cancelled, stopping actor")
			return ctx.Err()
		default:
		}

		// Check episode limit, failed episodes included
		if stats := a.Stats(); a.cfg.MaxEpisodes > 0 && stats.Episodes+stats.FailedEpisodes >= a.cfg.MaxEpisodes {
			a.logger.Info().Int("max_episodes", a.cfg.MaxEpisodes).Msg("reached maximum episodes, stopping")
			return nil
		}

		result, err := a.RunEpisode(ctx)
		a.report(ctx, result, err)
		if ctx.Err() != nil {
			if err != nil {
				a.mu.Lock()
				a.stats.FailedEpisodes++
				a.mu.Unlock()
			}
			a.logger.Info().Str("episode_id", result.ID).Msg("context cancelled, stopping actor")
			return ctx.Err()
		}
		if err != nil {
			a.mu.Lock()
			a.stats.FailedEpisodes++
			a.mu.Unlock()
			a.logger.Error().Err(err).Str("episode_id", result.ID).Msg("episode failed")
			// A broken session cannot run the next episode either
			if errors.Is(err, env.ErrClosed) {
				return err
			}
			// Continue with next episode rather than stopping
			continue
		}

		a.mu.Lock()
		a.stats.Episodes++
		episodes := a.stats.Episodes
		a.mu.Unlock()
		if episodes%10 == 0 {
			a.logger.Info().Int("episodes", episodes).Msg("episode checkpoint")
		}
	}
}

// RunEpisode plays one episode: reset, then encode state, select commands,
// encode actions and step until the simulator reports a terminal state.
func (a *Actor) RunEpisode(ctx context.Context) (EpisodeResult, error) {
	episodeCtx, cancel := context.WithTimeout(ctx, a.cfg.EpisodeTimeout)
	defer cancel()

	result := EpisodeResult{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	logger := a.logger.With().Str("episode_id", result.ID).Logger()

	current, err := a.env.Reset(episodeCtx)
	if err != nil {
		return result, fmt.Errorf("failed to reset scenario %s: %w", a.cfg.Scenario, err)
	}
	if err := a.record(result.ID, 0, current, nil); err != nil {
		return result, err
	}

	for !current.Terminal {
		if a.cfg.MaxSteps > 0 && int(result.Steps) >= a.cfg.MaxSteps {
			logger.Debug().Int("max_steps", a.cfg.MaxSteps).Msg("episode truncated")
			break
		}
		if err := episodeCtx.Err(); err != nil {
			return result, fmt.Errorf("episode interrupted at step %d: %w", result.Steps, err)
		}

		stepStart := time.Now()
		payload, units, records, err := a.decide(result.ID, result.Steps, current)
		if err != nil {
			return result, err
		}

		next, err := a.env.Step(episodeCtx, payload)
		if err != nil {
			return result, fmt.Errorf("failed to step environment: %w", err)
		}
		result.Steps++
		result.Reward += next.Reward
		a.metrics.StepEncoded(result.ID, result.Steps, units, records, len(payload), time.Since(stepStart))

		if err := a.record(result.ID, result.Steps, next, payload); err != nil {
			return result, err
		}

		a.mu.Lock()
		a.stats.Steps++
		a.stats.VisibleUnits = units
		a.stats.LastStepAt = time.Now().UTC()
		a.mu.Unlock()

		current = next
	}
	result.Terminal = current.Terminal

	a.mu.Lock()
	a.stats.LastEpisodeID = result.ID
	a.stats.LastReward = result.Reward
	a.mu.Unlock()

	a.metrics.EpisodeCompleted(result.ID, result.Steps, result.Reward, result.Terminal, time.Since(result.StartedAt))
	return result, nil
}

// report saves and publishes the outcome of an episode, interrupted ones
// included. Failures here are logged and never stop the actor.
func (a *Actor) report(ctx context.Context, result EpisodeResult, episodeErr error) {
	// an interrupted episode is still reported after ctx is cancelled
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	ended := time.Now().UTC()
	ep := storage.Episode{
		ID:        result.ID,
		ActorID:   a.cfg.ActorID,
		Scenario:  a.cfg.Scenario,
		Steps:     result.Steps,
		Reward:    result.Reward,
		Terminal:  result.Terminal,
		StartedAt: result.StartedAt,
		EndedAt:   ended,
	}
	if episodeErr != nil {
		ep.Error = episodeErr.Error()
	}
	if err := a.store.SaveEpisode(ctx, ep); err != nil {
		a.logger.Warn().Err(err).Str("episode_id", ep.ID).Msg("failed to save episode")
	}

	event := events.EpisodeEvent{
		EpisodeID: ep.ID,
		ActorID:   ep.ActorID,
		Scenario:  ep.Scenario,
		Steps:     ep.Steps,
		Reward:    ep.Reward,
		Terminal:  ep.Terminal,
		Error:     ep.Error,
		Duration:  ended.Sub(result.StartedAt),
	}
	if err := a.publisher.PublishEpisode(ctx, event); err != nil {
		a.logger.Warn().Err(err).Str("episode_id", ep.ID).Msg("failed to publish episode")
	}
}

// decide turns one simulator state into the serialized ActionList to send.
func (a *Actor) decide(episodeID string, step uint32, current *protocol.State) ([]byte, int, int, error) {
	snap, err := a.encoder.Encode(current.Observation)
	if err != nil {
		a.metrics.EncodeFailure(episodeID, step, "state", err)
		return nil, 0, 0, fmt.Errorf("step %d: %w", step, err)
	}
	if types, factions := snap.Tensor.Overflow(); types > 0 || factions > 0 {
		a.metrics.OneHotOverflow(episodeID, step, types, factions)
	}
	units := len(snap.Index.Visible())

	cmds, err := a.policy.SelectCommands(snap)
	if errors.Is(err, policy.ErrNoUnits) {
		// nothing to command; the simulator still needs a step
		cmds, err = nil, nil
	}
	if err != nil {
		a.metrics.EncodeFailure(episodeID, step, "policy", err)
		return nil, 0, 0, fmt.Errorf("step %d: failed to select commands: %w", step, err)
	}

	msg, err := action.Encode(cmds)
	if err != nil {
		a.metrics.EncodeFailure(episodeID, step, "action", err)
		return nil, 0, 0, fmt.Errorf("step %d: %w", step, err)
	}

	payload, err := protocol.MarshalActionList(msg)
	if err != nil {
		a.metrics.EncodeFailure(episodeID, step, "wire", err)
		return nil, 0, 0, fmt.Errorf("step %d: %w", step, err)
	}
	return payload, units, msg.Len(), nil
}

func (a *Actor) record(episodeID string, step uint32, s *protocol.State, actionList []byte) error {
	err := a.recorder.Record(&protocol.Frame{
		EpisodeID: episodeID,
		Step:      step,
		State:     protocol.MarshalState(s),
		Action:    actionList,
		Reward:    s.Reward,
		Terminal:  s.Terminal,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to record step %d: %w", step, err)
	}
	return nil
}
