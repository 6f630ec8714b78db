// Package protocol implements the simulator's binary message schema on top
// of the protobuf wire format.
//
//	message ActionList { repeated UnitAction actions = 1; }
//	message UnitAction {
//	  uint64 unit_id = 1;
//	  oneof action { MoveTo move_to = 2; AttackUnit attack = 3; }
//	}
//	message MoveTo     { Pos pos = 1; }
//	message Pos        { double x = 1; double y = 2; }
//	message AttackUnit { uint64 target_id = 1; }
//
//	message EnvRequest { oneof kind { string reset_scenario = 1; bytes action = 2; } }
//	message EnvState {
//	  repeated double features = 1;
//	  repeated uint32 shape = 2;
//	  map<string, double> typed_reward = 3;
//	  double reward = 4;
//	  bool terminal = 5;
//	}
package protocol

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned when bytes do not decode as the expected message.
var ErrMalformed = errors.New("malformed message")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// fieldFunc handles one field and returns the number of value bytes it
// consumed. Returning 0 means the field is unknown and should be skipped.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func forEachField(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed("tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return malformed("field %d: %v", num, protowire.ParseError(m))
			}
		}
		b = b[m:]
	}
	return nil
}

func expectType(num protowire.Number, got, want protowire.Type) error {
	if got != want {
		return malformed("field %d has wire type %d, want %d", num, got, want)
	}
	return nil
}

func consumeVarint(num protowire.Number, typ protowire.Type, b []byte) (uint64, int, error) {
	if err := expectType(num, typ, protowire.VarintType); err != nil {
		return 0, 0, err
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, malformed("field %d: %v", num, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeBytes(num protowire.Number, typ protowire.Type, b []byte) ([]byte, int, error) {
	if err := expectType(num, typ, protowire.BytesType); err != nil {
		return nil, 0, err
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, malformed("field %d: %v", num, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeDouble(num protowire.Number, typ protowire.Type, b []byte) (float64, int, error) {
	if err := expectType(num, typ, protowire.Fixed64Type); err != nil {
		return 0, 0, err
	}
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, 0, malformed("field %d: %v", num, protowire.ParseError(n))
	}
	return math.Float64frombits(v), n, nil
}

// proto3 scalar helpers: zero values are not written.

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	bits := math.Float64bits(v)
	if bits == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, bits)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

// appendMessage writes an embedded message; it is written even when empty
// so oneof and message presence survive.
func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
