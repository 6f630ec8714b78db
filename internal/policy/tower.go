package policy

import (
	"fmt"
	"math/rand"

	"github.com/cartridge/skyrts/internal/action"
	"github.com/cartridge/skyrts/internal/state"
)

// Quadrants in the tower scenario, one tower each.
const Quadrants = 4

// TowerPolicy plays the tower scenario: the lowest-id unit attacks the tower
// in one quadrant. Towers are the remaining visible units in id order.
type TowerPolicy struct {
	rng      *rand.Rand
	quadrant int
}

// NewTower creates a tower policy. quadrant 0 picks a quadrant per step.
func NewTower(rng *rand.Rand, quadrant int) (*TowerPolicy, error) {
	if quadrant < 0 || quadrant > Quadrants {
		return nil, fmt.Errorf("quadrant must be in [0, %d], got %d", Quadrants, quadrant)
	}
	return &TowerPolicy{rng: rng, quadrant: quadrant}, nil
}

// AttackQuadrant builds the order sending the attacker at the given quadrant's tower.
func AttackQuadrant(index state.UnitIndex, quadrant int) (action.Command, error) {
	units := index.Visible()
	if len(units) == 0 {
		return action.Command{}, ErrNoUnits
	}
	towers := units[1:]
	if quadrant < 1 || quadrant > len(towers) {
		return action.Command{}, fmt.Errorf("quadrant %d has no tower (%d visible)", quadrant, len(towers))
	}
	return action.Attack(units[0], towers[quadrant-1]), nil
}

// SelectCommands implements Policy interface
func (p *TowerPolicy) SelectCommands(snap state.Snapshot) ([]action.Command, error) {
	quadrant := p.quadrant
	if quadrant == 0 {
		towers := len(snap.Index.Visible()) - 1
		if towers < 1 {
			return nil, ErrNoUnits
		}
		quadrant = 1 + p.rng.Intn(min(towers, Quadrants))
	}
	cmd, err := AttackQuadrant(snap.Index, quadrant)
	if err != nil {
		return nil, err
	}
	return []action.Command{cmd}, nil
}
