// Package action converts symbolic unit commands into the ordered action
// records sent to the simulator.
package action

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownActionVerb is returned for commands whose verb is not MOVE or ATTACK.
	ErrUnknownActionVerb = errors.New("unknown action verb")

	// ErrInvalidCommand is returned for commands whose unit or target id is not 1-based.
	ErrInvalidCommand = errors.New("invalid command")
)

// Verb is the closed set of unit orders.
type Verb int

const (
	VerbMove Verb = iota + 1
	VerbAttack
)

func (v Verb) String() string {
	switch v {
	case VerbMove:
		return "move"
	case VerbAttack:
		return "attack"
	default:
		return fmt.Sprintf("verb(%d)", int(v))
	}
}

// ParseVerb maps the agent-facing verb names onto Verb.
func ParseVerb(s string) (Verb, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "move":
		return VerbMove, nil
	case "attack":
		return VerbAttack, nil
	default:
		return 0, &UnknownVerbError{Index: -1, Verb: s}
	}
}

// UnknownVerbError carries the offending verb and, when raised while
// encoding a list, the position of the command in that list.
type UnknownVerbError struct {
	Index int
	Verb  string
}

func (e *UnknownVerbError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %q", ErrUnknownActionVerb, e.Verb)
	}
	return fmt.Sprintf("%s: %q in command %d", ErrUnknownActionVerb, e.Verb, e.Index)
}

func (e *UnknownVerbError) Unwrap() error { return ErrUnknownActionVerb }

// Position is a point on the simulator map.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Command is one symbolic order. Unit and target ids are 1-based, as they
// appear in the observation's unit-id channel.
type Command struct {
	UnitID   int64
	Verb     Verb
	Position Position // MOVE
	TargetID int64    // ATTACK
}

// Move orders unit to pos.
func Move(unit int64, pos Position) Command {
	return Command{UnitID: unit, Verb: VerbMove, Position: pos}
}

// Attack orders unit to attack target.
func Attack(unit, target int64) Command {
	return Command{UnitID: unit, Verb: VerbAttack, TargetID: target}
}

// List accumulates commands for one decision step.
type List struct {
	commands []Command
}

// MoveUnit appends an order by verb name. target must be a Position for
// "move" and a unit id (int or int64) for "attack".
func (l *List) MoveUnit(unit int64, verb string, target any) error {
	v, err := ParseVerb(verb)
	if err != nil {
		var uv *UnknownVerbError
		if errors.As(err, &uv) {
			uv.Index = len(l.commands)
		}
		return err
	}
	switch v {
	case VerbMove:
		pos, ok := target.(Position)
		if !ok {
			return fmt.Errorf("%w: move target must be a position, got %T", ErrInvalidCommand, target)
		}
		l.commands = append(l.commands, Move(unit, pos))
	case VerbAttack:
		var id int64
		switch t := target.(type) {
		case int64:
			id = t
		case int:
			id = int64(t)
		default:
			return fmt.Errorf("%w: attack target must be a unit id, got %T", ErrInvalidCommand, target)
		}
		l.commands = append(l.commands, Attack(unit, id))
	}
	return nil
}

// Add appends already-built commands.
func (l *List) Add(cmds ...Command) {
	l.commands = append(l.commands, cmds...)
}

// Commands returns the queued commands in insertion order.
func (l *List) Commands() []Command {
	return append([]Command(nil), l.commands...)
}

// Len returns the number of queued commands.
func (l *List) Len() int { return len(l.commands) }

// Encode encodes the queued commands.
func (l *List) Encode() (*Message, error) {
	return Encode(l.commands)
}
