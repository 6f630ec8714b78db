package protocol

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Recording frame schema:
//
//	message Frame {
//	  string episode_id = 1;
//	  uint32 step = 2;
//	  bytes state = 3;      // EnvState
//	  bytes action = 4;     // ActionList that produced state, empty after reset
//	  double reward = 5;
//	  bool terminal = 6;
//	  int64 unix_nano = 7;
//	}
const (
	fieldFrameEpisodeID protowire.Number = 1
	fieldFrameStep      protowire.Number = 2
	fieldFrameState     protowire.Number = 3
	fieldFrameAction    protowire.Number = 4
	fieldFrameReward    protowire.Number = 5
	fieldFrameTerminal  protowire.Number = 6
	fieldFrameUnixNano  protowire.Number = 7
)

// Frame is one recorded environment transition.
type Frame struct {
	EpisodeID string
	Step      uint32
	State     []byte
	Action    []byte
	Reward    float64
	Terminal  bool
	Timestamp time.Time
}

// MarshalFrame serializes f.
func MarshalFrame(f *Frame) []byte {
	var b []byte
	if f.EpisodeID != "" {
		b = protowire.AppendTag(b, fieldFrameEpisodeID, protowire.BytesType)
		b = protowire.AppendString(b, f.EpisodeID)
	}
	b = appendUint(b, fieldFrameStep, uint64(f.Step))
	if len(f.State) > 0 {
		b = appendMessage(b, fieldFrameState, f.State)
	}
	if len(f.Action) > 0 {
		b = appendMessage(b, fieldFrameAction, f.Action)
	}
	b = appendDouble(b, fieldFrameReward, f.Reward)
	b = appendBool(b, fieldFrameTerminal, f.Terminal)
	if !f.Timestamp.IsZero() {
		b = appendUint(b, fieldFrameUnixNano, uint64(f.Timestamp.UnixNano()))
	}
	return b
}

// UnmarshalFrame decodes a Frame.
func UnmarshalFrame(b []byte) (*Frame, error) {
	f := &Frame{}
	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldFrameEpisodeID:
			v, n, err := consumeBytes(num, typ, b)
			f.EpisodeID = string(v)
			return n, err
		case fieldFrameStep:
			v, n, err := consumeVarint(num, typ, b)
			f.Step = uint32(v)
			return n, err
		case fieldFrameState:
			v, n, err := consumeBytes(num, typ, b)
			f.State = append([]byte(nil), v...)
			return n, err
		case fieldFrameAction:
			v, n, err := consumeBytes(num, typ, b)
			f.Action = append([]byte(nil), v...)
			return n, err
		case fieldFrameReward:
			v, n, err := consumeDouble(num, typ, b)
			f.Reward = v
			return n, err
		case fieldFrameTerminal:
			v, n, err := consumeVarint(num, typ, b)
			f.Terminal = protowire.DecodeBool(v)
			return n, err
		case fieldFrameUnixNano:
			v, n, err := consumeVarint(num, typ, b)
			f.Timestamp = time.Unix(0, int64(v))
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}
