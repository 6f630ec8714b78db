package state

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"
)

// Normalized tensor layout.
const (
	// HPScale divides raw hit points. The result is not clamped.
	HPScale = 500.0

	Channels       = 6
	TypeOffset     = 1
	TypeColumns    = 3
	FactionOffset  = 4
	FactionColumns = 2
)

// Tensor is the normalized (Height, Width, 6) feature grid, row-major with
// the channel index fastest.
type Tensor struct {
	Height int
	Width  int
	Data   []float64

	// Distinct values seen in the unit-type and faction sources this step,
	// first (sentinel) value included.
	TypeCardinality    int
	FactionCardinality int
}

// At returns the value at (row, col, ch).
func (t *Tensor) At(row, col, ch int) float64 {
	return t.Data[(row*t.Width+col)*Channels+ch]
}

// Overflow reports how many distinct non-sentinel values had no one-hot
// column in the unit-type and faction blocks.
func (t *Tensor) Overflow() (types, factions int) {
	return max(0, t.TypeCardinality-1-TypeColumns), max(0, t.FactionCardinality-1-FactionColumns)
}

// Snapshot is the read-only view of one step handed to policies.
type Snapshot struct {
	Tensor *Tensor
	Index  UnitIndex
}

type options struct {
	factionChannel int
}

// Option configures Encode.
type Option func(*options)

// WithFactionChannel selects the raw channel used for the faction one-hot
// block. The default is ChannelType, which makes the faction block a
// narrower copy of the unit-type block; existing agents are trained on that
// layout.
func WithFactionChannel(ch int) Option {
	return func(o *options) {
		o.factionChannel = ch
	}
}

// Encode normalizes a raw observation. It returns the feature tensor and the
// sorted unique unit ids found in channel 0.
func Encode(obs Observation, opts ...Option) (*Tensor, UnitIndex, error) {
	o := options{factionChannel: ChannelType}
	for _, opt := range opts {
		opt(&o)
	}

	if err := obs.validateShape(); err != nil {
		return nil, nil, err
	}
	if o.factionChannel < 0 || o.factionChannel >= obs.Channels {
		return nil, nil, fmt.Errorf("%w: faction channel %d out of range for %d channels",
			ErrInvalidObservation, o.factionChannel, obs.Channels)
	}

	ids, err := obs.integerChannel(ChannelUnitID)
	if err != nil {
		return nil, nil, err
	}
	index := UnitIndex(sortedUnique(ids))

	types, err := obs.integerChannel(ChannelType)
	if err != nil {
		return nil, nil, err
	}
	factions := types
	if o.factionChannel != ChannelType {
		if factions, err = obs.integerChannel(o.factionChannel); err != nil {
			return nil, nil, err
		}
	}

	cells := obs.Cells()
	t := &Tensor{
		Height: obs.Height,
		Width:  obs.Width,
		Data:   make([]float64, cells*Channels),
	}
	for i := 0; i < cells; i++ {
		t.Data[i*Channels] = obs.Data[i*obs.Channels+ChannelHP] / HPScale
	}

	t.TypeCardinality = oneHot(t, types, TypeOffset, TypeColumns)
	t.FactionCardinality = oneHot(t, factions, FactionOffset, FactionColumns)

	return t, index, nil
}

// oneHot writes a width-column block at offset. A cell gets column rank-1
// where rank is its value's position in the sorted unique set; rank 0 and
// ranks past the block stay zero. Returns the number of distinct values.
func oneHot(t *Tensor, src []int64, offset, width int) int {
	uniq := sortedUnique(src)
	for i, v := range src {
		rank, _ := slices.BinarySearch(uniq, v)
		col := rank - 1
		if col < 0 || col >= width {
			continue
		}
		t.Data[i*Channels+offset+col] = 1
	}
	return len(uniq)
}

// Encoder wraps Encode with logging for the actor loop. It is not safe for
// concurrent use.
type Encoder struct {
	logger zerolog.Logger
	opts   []Option

	// cardinality pairs already reported, so a fixed scenario warns once
	warned map[[2]int]struct{}
}

// NewEncoder creates an Encoder that applies opts on every call.
func NewEncoder(logger zerolog.Logger, opts ...Option) *Encoder {
	return &Encoder{logger: logger, opts: opts, warned: make(map[[2]int]struct{})}
}

// Encode encodes obs and warns when one-hot columns overflowed.
func (e *Encoder) Encode(obs Observation) (Snapshot, error) {
	t, index, err := Encode(obs, e.opts...)
	if err != nil {
		return Snapshot{}, err
	}
	types, factions := t.Overflow()
	if types == 0 && factions == 0 {
		return Snapshot{Tensor: t, Index: index}, nil
	}
	key := [2]int{t.TypeCardinality, t.FactionCardinality}
	if _, seen := e.warned[key]; !seen {
		e.warned[key] = struct{}{}
		e.logger.Warn().
			Int("type_cardinality", t.TypeCardinality).
			Int("faction_cardinality", t.FactionCardinality).
			Int("type_overflow", types).
			Int("faction_overflow", factions).
			Msg("one-hot overflow, values without a column left unencoded")
	}
	return Snapshot{Tensor: t, Index: index}, nil
}
