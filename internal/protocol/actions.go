package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cartridge/skyrts/internal/action"
)

const (
	fieldActionListActions protowire.Number = 1

	fieldUnitActionUnitID protowire.Number = 1
	fieldUnitActionMoveTo protowire.Number = 2
	fieldUnitActionAttack protowire.Number = 3

	fieldMoveToPos protowire.Number = 1

	fieldPosX protowire.Number = 1
	fieldPosY protowire.Number = 2

	fieldAttackTargetID protowire.Number = 1
)

// MarshalActionList serializes msg as an ActionList.
func MarshalActionList(msg *action.Message) ([]byte, error) {
	var out []byte
	for i, rec := range msg.Records {
		ua, err := marshalUnitAction(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = appendMessage(out, fieldActionListActions, ua)
	}
	return out, nil
}

func marshalUnitAction(rec action.Record) ([]byte, error) {
	b := appendUint(nil, fieldUnitActionUnitID, rec.UnitIndex)
	switch p := rec.Payload.(type) {
	case action.MoveTo:
		var pos []byte
		pos = appendDouble(pos, fieldPosX, p.Position.X)
		pos = appendDouble(pos, fieldPosY, p.Position.Y)
		b = appendMessage(b, fieldUnitActionMoveTo, appendMessage(nil, fieldMoveToPos, pos))
	case action.AttackTarget:
		b = appendMessage(b, fieldUnitActionAttack, appendUint(nil, fieldAttackTargetID, p.TargetIndex))
	default:
		return nil, fmt.Errorf("unsupported payload %T", rec.Payload)
	}
	return b, nil
}

// UnmarshalActionList decodes an ActionList.
func UnmarshalActionList(b []byte) (*action.Message, error) {
	msg := &action.Message{}
	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldActionListActions {
			return 0, nil
		}
		v, n, err := consumeBytes(num, typ, b)
		if err != nil {
			return 0, err
		}
		rec, err := unmarshalUnitAction(v)
		if err != nil {
			return 0, fmt.Errorf("action %d: %w", len(msg.Records), err)
		}
		msg.Records = append(msg.Records, rec)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func unmarshalUnitAction(b []byte) (action.Record, error) {
	var rec action.Record
	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldUnitActionUnitID:
			v, n, err := consumeVarint(num, typ, b)
			rec.UnitIndex = v
			return n, err
		case fieldUnitActionMoveTo:
			v, n, err := consumeBytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			pos, err := unmarshalMoveTo(v)
			if err != nil {
				return 0, err
			}
			rec.Payload = action.MoveTo{Position: pos}
			return n, nil
		case fieldUnitActionAttack:
			v, n, err := consumeBytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			var target uint64
			err = forEachField(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				if num != fieldAttackTargetID {
					return 0, nil
				}
				t, n, err := consumeVarint(num, typ, b)
				target = t
				return n, err
			})
			if err != nil {
				return 0, err
			}
			rec.Payload = action.AttackTarget{TargetIndex: target}
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return action.Record{}, err
	}
	if rec.Payload == nil {
		return action.Record{}, malformed("unit action for unit %d has no payload", rec.UnitIndex)
	}
	return rec, nil
}

func unmarshalMoveTo(b []byte) (action.Position, error) {
	var pos action.Position
	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldMoveToPos {
			return 0, nil
		}
		v, n, err := consumeBytes(num, typ, b)
		if err != nil {
			return 0, err
		}
		return n, forEachField(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case fieldPosX:
				x, n, err := consumeDouble(num, typ, b)
				pos.X = x
				return n, err
			case fieldPosY:
				y, n, err := consumeDouble(num, typ, b)
				pos.Y = y
				return n, err
			}
			return 0, nil
		})
	})
	return pos, err
}
