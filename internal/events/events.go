// Package events fans episode outcomes out to downstream consumers.
package events

import (
	"context"
	"time"
)

// Publisher is implemented by downstream fan-out mechanisms.
type Publisher interface {
	PublishEpisode(ctx context.Context, event EpisodeEvent) error
	Close()
}

// EpisodeEvent is emitted once per finished or failed episode.
type EpisodeEvent struct {
	EpisodeID string        `json:"episode_id"`
	ActorID   string        `json:"actor_id"`
	Scenario  string        `json:"scenario"`
	Steps     uint32        `json:"steps"`
	Reward    float64       `json:"reward"`
	Terminal  bool          `json:"terminal"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// Outcome classifies the event for routing.
func (e EpisodeEvent) Outcome() string {
	switch {
	case e.Error != "":
		return "failed"
	case !e.Terminal:
		return "truncated"
	default:
		return "completed"
	}
}

// NoopPublisher drops events; useful for tests.
type NoopPublisher struct{}

// PublishEpisode satisfies Publisher.
func (NoopPublisher) PublishEpisode(context.Context, EpisodeEvent) error { return nil }

// Close satisfies Publisher.
func (NoopPublisher) Close() {}
