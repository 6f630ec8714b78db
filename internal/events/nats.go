package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSPublisher implements Publisher using NATS
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSPublisher creates a new NATS-backed publisher
func NewNATSPublisher(natsURL, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(natsURL, nats.Name("skyrts-actor"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", natsURL, err)
	}

	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}, nil
}

// Close drains and closes the NATS connection
func (n *NATSPublisher) Close() {
	if n.conn == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
}

// Subjects returns the main subject followed by the outcome routing key,
// e.g. skyrts.episodes and skyrts.episodes.failed.
func Subjects(base string, event EpisodeEvent) []string {
	return []string{base, base + "." + event.Outcome()}
}

// PublishEpisode publishes the event on the main subject and its outcome key.
func (n *NATSPublisher) PublishEpisode(ctx context.Context, event EpisodeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	subjects := Subjects(n.subject, event)
	// the main subject must succeed, routing keys are best effort
	if err := n.conn.Publish(subjects[0], data); err != nil {
		n.logger.Error().Err(err).Str("subject", subjects[0]).Msg("failed to publish episode event")
		return err
	}
	for _, subject := range subjects[1:] {
		if err := n.conn.Publish(subject, data); err != nil {
			n.logger.Error().Err(err).Str("routing_key", subject).Msg("failed to publish to routing key")
		}
	}

	n.logger.Debug().
		Str("episode_id", event.EpisodeID).
		Str("outcome", event.Outcome()).
		Str("subject", n.subject).
		Msg("published episode event")

	return nil
}
