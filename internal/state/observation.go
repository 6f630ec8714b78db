// Package state turns raw simulator observations into the normalized
// feature tensor consumed by policies.
package state

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Raw observation channel layout as produced by the simulator.
const (
	ChannelUnitID  = 0
	ChannelHP      = 1
	ChannelType    = 2
	ChannelFaction = 3

	minChannels = 3
)

// ErrInvalidObservation is returned when a raw observation cannot be encoded.
var ErrInvalidObservation = errors.New("invalid observation")

// Observation is a raw (Height, Width, Channels) grid stored row-major,
// channel fastest, exactly as the simulator ships its feature vector.
type Observation struct {
	Height   int
	Width    int
	Channels int
	Data     []float64
}

// NewObservation wraps a flat feature vector with its shape.
func NewObservation(height, width, channels int, data []float64) (Observation, error) {
	obs := Observation{Height: height, Width: width, Channels: channels, Data: data}
	if err := obs.validateShape(); err != nil {
		return Observation{}, err
	}
	return obs, nil
}

// At returns the raw value stored at (row, col, ch).
func (o Observation) At(row, col, ch int) float64 {
	return o.Data[(row*o.Width+col)*o.Channels+ch]
}

// Cells returns the number of spatial cells in the grid.
func (o Observation) Cells() int {
	return o.Height * o.Width
}

func (o Observation) validateShape() error {
	if o.Height < 0 || o.Width < 0 {
		return fmt.Errorf("%w: negative shape (%d, %d)", ErrInvalidObservation, o.Height, o.Width)
	}
	if o.Channels < minChannels {
		return fmt.Errorf("%w: need at least %d channels, got %d", ErrInvalidObservation, minChannels, o.Channels)
	}
	// the value count must fit in an int before it can be compared
	if o.Width != 0 && o.Height > math.MaxInt/o.Width {
		return fmt.Errorf("%w: shape (%d, %d) overflows", ErrInvalidObservation, o.Height, o.Width)
	}
	if cells := o.Height * o.Width; cells != 0 && o.Channels > math.MaxInt/cells {
		return fmt.Errorf("%w: shape (%d, %d, %d) overflows", ErrInvalidObservation, o.Height, o.Width, o.Channels)
	}
	if want := o.Height * o.Width * o.Channels; len(o.Data) != want {
		return fmt.Errorf("%w: shape (%d, %d, %d) needs %d values, got %d",
			ErrInvalidObservation, o.Height, o.Width, o.Channels, want, len(o.Data))
	}
	return nil
}

// integerChannel extracts channel ch as integers. Every value must be a
// finite, non-negative whole number below 2^63.
func (o Observation) integerChannel(ch int) ([]int64, error) {
	out := make([]int64, o.Cells())
	for i := range out {
		v := o.Data[i*o.Channels+ch]
		if math.IsInf(v, 0) || v < 0 || v >= 1<<63 || v != math.Trunc(v) {
			return nil, fmt.Errorf("%w: channel %d at (%d, %d) holds %v, want a non-negative integer",
				ErrInvalidObservation, ch, i/max(o.Width, 1), i%max(o.Width, 1), v)
		}
		out[i] = int64(v)
	}
	return out, nil
}

// UnitIndex is the sorted, duplicate-free set of unit ids visible in a step.
// When any cell is empty the first entry is the 0 sentinel.
type UnitIndex []int64

func sortedUnique(values []int64) []int64 {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}

// Len returns the number of entries, sentinel included.
func (u UnitIndex) Len() int { return len(u) }

// At returns the i-th id in ascending order.
func (u UnitIndex) At(i int) int64 { return u[i] }

// Contains reports whether id was observed this step.
func (u UnitIndex) Contains(id int64) bool {
	_, ok := slices.BinarySearch(u, id)
	return ok
}

// Rank returns the position of id in the index, or -1.
func (u UnitIndex) Rank(id int64) int {
	i, ok := slices.BinarySearch(u, id)
	if !ok {
		return -1
	}
	return i
}

// Visible returns a copy of the ids of units actually on the map, skipping
// the empty-cell sentinel.
func (u UnitIndex) Visible() []int64 {
	if len(u) > 0 && u[0] == 0 {
		return slices.Clone(u[1:])
	}
	return slices.Clone(u)
}
