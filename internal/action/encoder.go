package action

import "fmt"

// Payload is the variant part of a Record: MoveTo or AttackTarget.
type Payload interface {
	isPayload()
}

// MoveTo sends the unit to a map position.
type MoveTo struct {
	Position Position
}

// AttackTarget orders an attack on the unit with the given 0-based index.
type AttackTarget struct {
	TargetIndex uint64
}

func (MoveTo) isPayload()       {}
func (AttackTarget) isPayload() {}

// Record is one wire-ready unit action. UnitIndex is 0-based.
type Record struct {
	UnitIndex uint64
	Payload   Payload
}

// Message is the ordered list of records for one decision step.
type Message struct {
	Records []Record
}

// Len returns the number of records.
func (m *Message) Len() int { return len(m.Records) }

// Encode converts commands into records, in order. Ids are shifted from
// 1-based to 0-based. On error no partial message is returned.
func Encode(cmds []Command) (*Message, error) {
	msg := &Message{Records: make([]Record, 0, len(cmds))}
	for i, cmd := range cmds {
		rec, err := encodeCommand(cmd)
		if err != nil {
			if uv, ok := err.(*UnknownVerbError); ok {
				uv.Index = i
				return nil, uv
			}
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		msg.Records = append(msg.Records, rec)
	}
	return msg, nil
}

func encodeCommand(cmd Command) (Record, error) {
	// an unknown verb is reported ahead of any id problem
	if cmd.Verb != VerbMove && cmd.Verb != VerbAttack {
		return Record{}, &UnknownVerbError{Verb: cmd.Verb.String()}
	}
	if cmd.UnitID < 1 {
		return Record{}, fmt.Errorf("%w: unit id %d, ids start at 1", ErrInvalidCommand, cmd.UnitID)
	}
	rec := Record{UnitIndex: uint64(cmd.UnitID - 1)}

	if cmd.Verb == VerbMove {
		rec.Payload = MoveTo{Position: cmd.Position}
		return rec, nil
	}
	if cmd.TargetID < 1 {
		return Record{}, fmt.Errorf("%w: attack target %d, ids start at 1", ErrInvalidCommand, cmd.TargetID)
	}
	rec.Payload = AttackTarget{TargetIndex: uint64(cmd.TargetID - 1)}
	return rec, nil
}
