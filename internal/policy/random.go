package policy

import (
	"math/rand"

	"github.com/cartridge/skyrts/internal/action"
	"github.com/cartridge/skyrts/internal/state"
)

// RandomPolicy orders random visible units to move or attack at random
type RandomPolicy struct {
	rng         *rand.Rand
	maxCommands int
}

// NewRandom creates a random policy issuing up to maxCommands orders per step
func NewRandom(rng *rand.Rand, maxCommands int) *RandomPolicy {
	if maxCommands <= 0 {
		maxCommands = 1
	}
	return &RandomPolicy{rng: rng, maxCommands: maxCommands}
}

// SelectCommands implements Policy interface
func (p *RandomPolicy) SelectCommands(snap state.Snapshot) ([]action.Command, error) {
	units := snap.Index.Visible()
	if len(units) == 0 {
		return nil, ErrNoUnits
	}

	n := 1 + p.rng.Intn(p.maxCommands)
	cmds := make([]action.Command, 0, n)
	for i := 0; i < n; i++ {
		unit := units[p.rng.Intn(len(units))]

		// Attacking needs a second unit on the map
		if len(units) > 1 && p.rng.Intn(2) == 0 {
			cmds = append(cmds, action.Attack(unit, p.randomTarget(units, unit)))
			continue
		}
		cmds = append(cmds, action.Move(unit, p.randomPosition(snap.Tensor)))
	}
	return cmds, nil
}

// randomTarget picks a visible unit other than self
func (p *RandomPolicy) randomTarget(units []int64, self int64) int64 {
	for {
		target := units[p.rng.Intn(len(units))]
		if target != self {
			return target
		}
	}
}

// randomPosition picks the corner of a random cell inside the observed grid
func (p *RandomPolicy) randomPosition(t *state.Tensor) action.Position {
	if t == nil || t.Height == 0 || t.Width == 0 {
		return action.Position{}
	}
	return cellPosition(p.rng.Intn(t.Height), p.rng.Intn(t.Width))
}
