// Package policy provides command selection strategies for the actor
package policy

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/cartridge/skyrts/internal/action"
	"github.com/cartridge/skyrts/internal/state"
)

// ErrNoUnits is returned when a snapshot has no unit to command.
var ErrNoUnits = errors.New("no visible units")

// CellSize is the map distance covered by one observation cell.
const CellSize = 5.0

// Policy interface for command selection
type Policy interface {
	// SelectCommands chooses the orders for one decision step from a
	// read-only snapshot of the encoded state
	SelectCommands(snap state.Snapshot) ([]action.Command, error)
}

// Options configures New.
type Options struct {
	Seed        int64 // 0 seeds from the clock
	MaxCommands int   // random policy: orders per step
	Quadrant    int   // tower policy: 0 picks at random
}

// New creates the named policy ("random" or "tower").
func New(name string, opts Options) (Policy, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	switch name {
	case "random":
		return NewRandom(rng, opts.MaxCommands), nil
	case "tower":
		return NewTower(rng, opts.Quadrant)
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}

// cellPosition maps a tensor cell onto map coordinates.
func cellPosition(row, col int) action.Position {
	return action.Position{X: float64(row) * CellSize, Y: float64(col) * CellSize}
}
