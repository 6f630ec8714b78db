package protocol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/cartridge/skyrts/internal/action"
	"github.com/cartridge/skyrts/internal/state"
)

func TestMarshalActionList_AttackBytes(t *testing.T) {
	msg, err := action.Encode([]action.Command{action.Attack(7, 2)})
	require.NoError(t, err)

	b, err := MarshalActionList(msg)
	require.NoError(t, err)

	// actions{unit_id: 6, attack{target_id: 1}}
	assert.Equal(t, []byte{0x0a, 0x06, 0x08, 0x06, 0x1a, 0x02, 0x08, 0x01}, b)
}

func TestMarshalActionList_ZeroIndexesOmitted(t *testing.T) {
	msg, err := action.Encode([]action.Command{action.Attack(1, 1)})
	require.NoError(t, err)

	b, err := MarshalActionList(msg)
	require.NoError(t, err)

	// proto3 drops the zero scalars but keeps the empty attack message
	assert.Equal(t, []byte{0x0a, 0x02, 0x1a, 0x00}, b)

	decoded, err := UnmarshalActionList(b)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestMarshalActionList_MatchesReferenceRuntime(t *testing.T) {
	fd := referenceSchema(t)
	listDesc := fd.Messages().ByName("ActionList")

	msg, err := action.Encode([]action.Command{
		action.Move(1, action.Position{X: 3, Y: 4}),
		action.Attack(7, 2),
		action.Move(3, action.Position{X: -1.5}),
	})
	require.NoError(t, err)

	ours, err := MarshalActionList(msg)
	require.NoError(t, err)

	ref := dynamicpb.NewMessage(listDesc)
	require.NoError(t, proto.Unmarshal(ours, ref))

	actions := ref.Get(listDesc.Fields().ByName("actions")).List()
	require.Equal(t, 3, actions.Len())

	uaDesc := fd.Messages().ByName("UnitAction")
	unitID := uaDesc.Fields().ByName("unit_id")
	moveTo := uaDesc.Fields().ByName("move_to")
	attack := uaDesc.Fields().ByName("attack")

	first := actions.Get(0).Message()
	assert.Equal(t, uint64(0), first.Get(unitID).Uint())
	require.True(t, first.Has(moveTo))
	pos := first.Get(moveTo).Message().Get(fd.Messages().ByName("MoveTo").Fields().ByName("pos")).Message()
	posFields := fd.Messages().ByName("Pos").Fields()
	assert.Equal(t, 3.0, pos.Get(posFields.ByName("x")).Float())
	assert.Equal(t, 4.0, pos.Get(posFields.ByName("y")).Float())

	second := actions.Get(1).Message()
	assert.Equal(t, uint64(6), second.Get(unitID).Uint())
	require.True(t, second.Has(attack))
	targetID := fd.Messages().ByName("AttackUnit").Fields().ByName("target_id")
	assert.Equal(t, uint64(1), second.Get(attack).Message().Get(targetID).Uint())

	// the reference runtime writes the same bytes back
	refBytes, err := proto.MarshalOptions{Deterministic: true}.Marshal(ref)
	require.NoError(t, err)
	assert.Equal(t, ours, refBytes)
}

func TestUnmarshalActionList_RoundTripPreservesOrder(t *testing.T) {
	msg, err := action.Encode([]action.Command{
		action.Attack(4, 9),
		action.Move(2, action.Position{X: 10, Y: 20}),
		action.Attack(4, 9),
	})
	require.NoError(t, err)

	b, err := MarshalActionList(msg)
	require.NoError(t, err)
	decoded, err := UnmarshalActionList(b)
	require.NoError(t, err)
	assert.Equal(t, msg.Records, decoded.Records)
}

func TestUnmarshalActionList_Malformed(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
	}{
		{name: "truncated length", b: []byte{0x0a, 0x05, 0x08}},
		{name: "no payload", b: []byte{0x0a, 0x02, 0x08, 0x01}},
		{name: "wrong wire type", b: []byte{0x08, 0x01}},
		{name: "bad tag", b: []byte{0x80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalActionList(tt.b)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestUnmarshalActionList_SkipsUnknownFields(t *testing.T) {
	b := protowire.AppendTag(nil, 15, protowire.VarintType)
	b = protowire.AppendVarint(b, 99)
	b = append(b, 0x0a, 0x06, 0x08, 0x06, 0x1a, 0x02, 0x08, 0x01)

	msg, err := UnmarshalActionList(b)
	require.NoError(t, err)
	assert.Equal(t, []action.Record{{UnitIndex: 6, Payload: action.AttackTarget{TargetIndex: 1}}}, msg.Records)
}

func TestMarshalActionList_RejectsMissingPayload(t *testing.T) {
	_, err := MarshalActionList(&action.Message{Records: []action.Record{{UnitIndex: 1}}})
	assert.Error(t, err)
}

func TestRequest_RoundTrip(t *testing.T) {
	reset := ResetRequest("tower_example")
	b, err := MarshalRequest(reset)
	require.NoError(t, err)
	got, err := UnmarshalRequest(b)
	require.NoError(t, err)
	assert.Equal(t, reset, got)

	// an empty scenario name still selects the reset branch
	b, err = MarshalRequest(ResetRequest(""))
	require.NoError(t, err)
	got, err = UnmarshalRequest(b)
	require.NoError(t, err)
	assert.Equal(t, RequestReset, got.Kind)

	step := StepRequest([]byte{0x0a, 0x02, 0x1a, 0x00})
	b, err = MarshalRequest(step)
	require.NoError(t, err)
	got, err = UnmarshalRequest(b)
	require.NoError(t, err)
	assert.Equal(t, step, got)

	_, err = MarshalRequest(Request{})
	assert.Error(t, err)
	_, err = UnmarshalRequest(nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func sampleState(t *testing.T) *State {
	t.Helper()
	obs, err := state.NewObservation(1, 2, 4, []float64{3, 250, 1, 1, 0, 0, 0, 0})
	require.NoError(t, err)
	return &State{
		Observation: obs,
		TypedReward: map[string]float64{"tower": 10, "damage": -2.5},
		Reward:      7.5,
		Terminal:    true,
	}
}

func TestState_RoundTrip(t *testing.T) {
	s := sampleState(t)
	decoded, err := UnmarshalState(MarshalState(s))
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestState_MatchesReferenceRuntime(t *testing.T) {
	fd := referenceSchema(t)
	desc := fd.Messages().ByName("EnvState")
	s := sampleState(t)
	ours := MarshalState(s)

	ref := dynamicpb.NewMessage(desc)
	require.NoError(t, proto.Unmarshal(ours, ref))

	fields := desc.Fields()
	features := ref.Get(fields.ByName("features")).List()
	require.Equal(t, len(s.Observation.Data), features.Len())
	assert.Equal(t, 250.0, features.Get(1).Float())
	shape := ref.Get(fields.ByName("shape")).List()
	require.Equal(t, 3, shape.Len())
	assert.Equal(t, uint64(4), shape.Get(2).Uint())
	rewards := ref.Get(fields.ByName("typed_reward")).Map()
	assert.Equal(t, -2.5, rewards.Get(protoreflect.ValueOfString("damage").MapKey()).Float())
	assert.Equal(t, 7.5, ref.Get(fields.ByName("reward")).Float())
	assert.True(t, ref.Get(fields.ByName("terminal")).Bool())

	refBytes, err := proto.MarshalOptions{Deterministic: true}.Marshal(ref)
	require.NoError(t, err)
	assert.Equal(t, ours, refBytes)
}

func TestUnmarshalState_AcceptsUnpackedRepeated(t *testing.T) {
	var b []byte
	for _, v := range []float64{1, 100, 2} {
		b = protowire.AppendTag(b, fieldStateFeatures, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	for _, d := range []uint64{1, 1, 3} {
		b = protowire.AppendTag(b, fieldStateShape, protowire.VarintType)
		b = protowire.AppendVarint(b, d)
	}

	s, err := UnmarshalState(b)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 100, 2}, s.Observation.Data)
	assert.Equal(t, 3, s.Observation.Channels)
	assert.False(t, s.Terminal)
}

func TestUnmarshalState_Invalid(t *testing.T) {
	_, err := UnmarshalState(nil)
	assert.ErrorIs(t, err, ErrMalformed, "missing shape")

	// shape says 1x1x3 but only two features are present
	s := &State{Observation: state.Observation{Height: 1, Width: 1, Channels: 3, Data: []float64{1, 2}}}
	_, err = UnmarshalState(MarshalState(s))
	assert.ErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, err, state.ErrInvalidObservation)

	b := appendMessage(nil, fieldStateFeatures, []byte{1, 2, 3})
	_, err = UnmarshalState(b)
	assert.ErrorIs(t, err, ErrMalformed)

	// 2^31 x 2^31 x 4 wraps to zero values in an int
	huge := &State{Observation: state.Observation{Height: 1 << 31, Width: 1 << 31, Channels: 4}}
	assert.NotPanics(t, func() {
		_, err = UnmarshalState(MarshalState(huge))
	})
	assert.ErrorIs(t, err, state.ErrInvalidObservation)
}
