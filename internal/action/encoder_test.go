package action

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_ShiftsIDs(t *testing.T) {
	msg, err := Encode([]Command{
		Move(1, Position{X: 3, Y: 4}),
		Attack(7, 2),
	})
	require.NoError(t, err)
	require.Equal(t, 2, msg.Len())

	assert.Equal(t, Record{UnitIndex: 0, Payload: MoveTo{Position: Position{X: 3, Y: 4}}}, msg.Records[0])
	assert.Equal(t, Record{UnitIndex: 6, Payload: AttackTarget{TargetIndex: 1}}, msg.Records[1])
}

func TestEncode_PreservesOrder(t *testing.T) {
	cmds := []Command{
		Attack(9, 1),
		Move(2, Position{X: 1}),
		Attack(9, 1),
		Move(1, Position{Y: 1}),
	}

	msg, err := Encode(cmds)
	require.NoError(t, err)
	require.Len(t, msg.Records, len(cmds))

	want := []uint64{8, 1, 8, 0}
	for i, rec := range msg.Records {
		assert.Equal(t, want[i], rec.UnitIndex, "record %d", i)
	}
	// duplicates are kept as-is
	assert.Equal(t, msg.Records[0], msg.Records[2])
}

func TestEncode_Empty(t *testing.T) {
	msg, err := Encode(nil)
	require.NoError(t, err)
	assert.Zero(t, msg.Len())
}

func TestEncode_UnknownVerb(t *testing.T) {
	msg, err := Encode([]Command{
		Move(1, Position{}),
		{UnitID: 2, Verb: Verb(42)},
	})
	require.Error(t, err)
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, ErrUnknownActionVerb)

	var uv *UnknownVerbError
	require.True(t, errors.As(err, &uv))
	assert.Equal(t, 1, uv.Index)
	assert.Equal(t, "verb(42)", uv.Verb)
}

func TestEncode_InvalidIDs(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{name: "zero unit", cmd: Move(0, Position{})},
		{name: "negative unit", cmd: Attack(-3, 1)},
		{name: "zero target", cmd: Attack(1, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Encode([]Command{tt.cmd})
			assert.ErrorIs(t, err, ErrInvalidCommand)
			assert.Nil(t, msg)
		})
	}
}

func TestEncode_UnknownVerbBeatsInvalidID(t *testing.T) {
	msg, err := Encode([]Command{{UnitID: 0, Verb: Verb(7)}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownActionVerb)
	assert.NotErrorIs(t, err, ErrInvalidCommand)
	assert.Nil(t, msg)
}

func TestParseVerb(t *testing.T) {
	v, err := ParseVerb("move")
	require.NoError(t, err)
	assert.Equal(t, VerbMove, v)

	v, err = ParseVerb("ATTACK")
	require.NoError(t, err)
	assert.Equal(t, VerbAttack, v)

	_, err = ParseVerb("teleport")
	assert.ErrorIs(t, err, ErrUnknownActionVerb)
	assert.Contains(t, err.Error(), "teleport")
}

func TestList_MoveUnit(t *testing.T) {
	var list List
	require.NoError(t, list.MoveUnit(1, "move", Position{X: 3, Y: 4}))
	require.NoError(t, list.MoveUnit(7, "attack", 2))
	require.NoError(t, list.MoveUnit(3, "attack", int64(5)))
	assert.Equal(t, 3, list.Len())

	msg, err := list.Encode()
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{UnitIndex: 0, Payload: MoveTo{Position: Position{X: 3, Y: 4}}},
		{UnitIndex: 6, Payload: AttackTarget{TargetIndex: 1}},
		{UnitIndex: 2, Payload: AttackTarget{TargetIndex: 4}},
	}, msg.Records)
}

func TestList_MoveUnitRejects(t *testing.T) {
	var list List
	require.NoError(t, list.MoveUnit(1, "move", Position{}))

	err := list.MoveUnit(1, "teleport", Position{})
	assert.ErrorIs(t, err, ErrUnknownActionVerb)
	var uv *UnknownVerbError
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, 1, uv.Index)

	assert.ErrorIs(t, list.MoveUnit(1, "move", 5), ErrInvalidCommand)
	assert.ErrorIs(t, list.MoveUnit(1, "attack", Position{}), ErrInvalidCommand)

	// rejected commands are not queued
	assert.Equal(t, 1, list.Len())
}

func TestList_CommandsIsACopy(t *testing.T) {
	var list List
	list.Add(Attack(1, 2))
	cmds := list.Commands()
	cmds[0].UnitID = 99
	assert.Equal(t, int64(1), list.Commands()[0].UnitID)
}
