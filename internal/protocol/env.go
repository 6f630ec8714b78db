package protocol

import (
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cartridge/skyrts/internal/state"
)

const (
	fieldRequestResetScenario protowire.Number = 1
	fieldRequestAction        protowire.Number = 2

	fieldStateFeatures    protowire.Number = 1
	fieldStateShape       protowire.Number = 2
	fieldStateTypedReward protowire.Number = 3
	fieldStateReward      protowire.Number = 4
	fieldStateTerminal    protowire.Number = 5

	fieldMapKey   protowire.Number = 1
	fieldMapValue protowire.Number = 2
)

// RequestKind selects the EnvRequest oneof.
type RequestKind int

const (
	RequestReset RequestKind = iota + 1
	RequestStep
)

func (k RequestKind) String() string {
	switch k {
	case RequestReset:
		return "reset"
	case RequestStep:
		return "step"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Request is a message from the actor to the simulator.
type Request struct {
	Kind     RequestKind
	Scenario string // RequestReset
	Action   []byte // RequestStep, a serialized ActionList
}

// ResetRequest asks the simulator to load scenario and start an episode.
func ResetRequest(scenario string) Request {
	return Request{Kind: RequestReset, Scenario: scenario}
}

// StepRequest carries one serialized ActionList.
func StepRequest(actionList []byte) Request {
	return Request{Kind: RequestStep, Action: actionList}
}

// State is the simulator's reply: the raw observation plus reward signals.
type State struct {
	Observation state.Observation
	TypedReward map[string]float64
	Reward      float64
	Terminal    bool
}

// MarshalRequest serializes req as an EnvRequest.
func MarshalRequest(req Request) ([]byte, error) {
	switch req.Kind {
	case RequestReset:
		b := protowire.AppendTag(nil, fieldRequestResetScenario, protowire.BytesType)
		return protowire.AppendString(b, req.Scenario), nil
	case RequestStep:
		return appendMessage(nil, fieldRequestAction, req.Action), nil
	default:
		return nil, fmt.Errorf("unsupported request kind %s", req.Kind)
	}
}

// UnmarshalRequest decodes an EnvRequest.
func UnmarshalRequest(b []byte) (Request, error) {
	var req Request
	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldRequestResetScenario:
			v, n, err := consumeBytes(num, typ, b)
			req = Request{Kind: RequestReset, Scenario: string(v)}
			return n, err
		case fieldRequestAction:
			v, n, err := consumeBytes(num, typ, b)
			req = Request{Kind: RequestStep, Action: append([]byte{}, v...)}
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return Request{}, err
	}
	if req.Kind == 0 {
		return Request{}, malformed("request has no kind")
	}
	return req, nil
}

// MarshalState serializes s as an EnvState. Typed rewards are written in key
// order so equal states produce equal bytes.
func MarshalState(s *State) []byte {
	obs := s.Observation

	var b []byte
	if len(obs.Data) > 0 {
		packed := make([]byte, 0, 8*len(obs.Data))
		for _, v := range obs.Data {
			packed = protowire.AppendFixed64(packed, math.Float64bits(v))
		}
		b = appendMessage(b, fieldStateFeatures, packed)
	}

	var shape []byte
	for _, d := range []int{obs.Height, obs.Width, obs.Channels} {
		shape = protowire.AppendVarint(shape, uint64(uint32(d)))
	}
	b = appendMessage(b, fieldStateShape, shape)

	keys := make([]string, 0, len(s.TypedReward))
	for k := range s.TypedReward {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entry := protowire.AppendTag(nil, fieldMapKey, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = appendDouble(entry, fieldMapValue, s.TypedReward[k])
		b = appendMessage(b, fieldStateTypedReward, entry)
	}

	b = appendDouble(b, fieldStateReward, s.Reward)
	b = appendBool(b, fieldStateTerminal, s.Terminal)
	return b
}

// UnmarshalState decodes an EnvState and validates the observation shape.
func UnmarshalState(b []byte) (*State, error) {
	var (
		features []float64
		shape    []int
	)
	s := &State{}
	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldStateFeatures:
			if typ == protowire.Fixed64Type {
				v, n, err := consumeDouble(num, typ, b)
				features = append(features, v)
				return n, err
			}
			v, n, err := consumeBytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			if len(v)%8 != 0 {
				return 0, malformed("packed features length %d is not a multiple of 8", len(v))
			}
			for len(v) > 0 {
				bits, m := protowire.ConsumeFixed64(v)
				features = append(features, math.Float64frombits(bits))
				v = v[m:]
			}
			return n, nil
		case fieldStateShape:
			if typ == protowire.VarintType {
				v, n, err := consumeVarint(num, typ, b)
				shape = append(shape, int(uint32(v)))
				return n, err
			}
			v, n, err := consumeBytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			for len(v) > 0 {
				d, m := protowire.ConsumeVarint(v)
				if m < 0 {
					return 0, malformed("shape: %v", protowire.ParseError(m))
				}
				shape = append(shape, int(uint32(d)))
				v = v[m:]
			}
			return n, nil
		case fieldStateTypedReward:
			v, n, err := consumeBytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			var (
				key   string
				value float64
			)
			err = forEachField(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch num {
				case fieldMapKey:
					k, n, err := consumeBytes(num, typ, b)
					key = string(k)
					return n, err
				case fieldMapValue:
					x, n, err := consumeDouble(num, typ, b)
					value = x
					return n, err
				}
				return 0, nil
			})
			if err != nil {
				return 0, err
			}
			if s.TypedReward == nil {
				s.TypedReward = make(map[string]float64)
			}
			s.TypedReward[key] = value
			return n, nil
		case fieldStateReward:
			v, n, err := consumeDouble(num, typ, b)
			s.Reward = v
			return n, err
		case fieldStateTerminal:
			v, n, err := consumeVarint(num, typ, b)
			s.Terminal = protowire.DecodeBool(v)
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}

	if len(shape) != 3 {
		return nil, malformed("state shape has %d dimensions, want 3", len(shape))
	}
	obs, err := state.NewObservation(shape[0], shape[1], shape[2], features)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	s.Observation = obs
	return s, nil
}
