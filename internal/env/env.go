// Package env connects the actor to a running SkyRTS simulator.
package env

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cartridge/skyrts/internal/protocol"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("environment closed")

// Environment is one simulator session.
type Environment interface {
	// Reset loads the session's scenario and returns the first state.
	Reset(ctx context.Context) (*protocol.State, error)

	// Step sends a serialized ActionList and returns the resulting state.
	Step(ctx context.Context, actionList []byte) (*protocol.State, error)

	Close() error
}

// Dial connects to the simulator at addr. ws:// and wss:// addresses use
// the WebSocket transport; anything else is treated as a gRPC target.
func Dial(ctx context.Context, addr, scenario string, logger zerolog.Logger) (Environment, error) {
	logger = logger.With().Str("component", "env").Str("addr", addr).Logger()
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return DialWebSocket(ctx, addr, scenario, logger)
	}
	return DialGRPC(ctx, addr, scenario, logger)
}
