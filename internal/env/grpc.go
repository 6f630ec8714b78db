package env

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cartridge/skyrts/internal/protocol"
)

// Simulator service methods. Requests and replies are EnvRequest and EnvState.
const (
	ResetMethod = "/skyrts.v1.Environment/Reset"
	StepMethod  = "/skyrts.v1.Environment/Step"
)

// RawCodec passes already-serialized protobuf bytes through gRPC unchanged.
// It registers under the "proto" name so peers with generated stubs see a
// normal protobuf call.
type RawCodec struct{}

// Marshal accepts []byte or *[]byte.
func (RawCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case []byte:
		return m, nil
	case *[]byte:
		return *m, nil
	default:
		return nil, fmt.Errorf("raw codec cannot marshal %T", v)
	}
}

// Unmarshal copies data into a *[]byte.
func (RawCodec) Unmarshal(data []byte, v any) error {
	p, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("raw codec cannot unmarshal into %T", v)
	}
	*p = append((*p)[:0], data...)
	return nil
}

func (RawCodec) Name() string { return "proto" }

// GRPCEnv talks to the simulator over unary gRPC calls.
type GRPCEnv struct {
	scenario string
	logger   zerolog.Logger
	conn     *grpc.ClientConn

	mu     sync.Mutex
	closed bool
}

// DialGRPC connects to a simulator gRPC endpoint.
func DialGRPC(ctx context.Context, addr, scenario string, logger zerolog.Logger, opts ...grpc.DialOption) (*GRPCEnv, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(RawCodec{})),
	}, opts...)

	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to simulator at %s: %w", addr, err)
	}
	logger.Info().Str("scenario", scenario).Msg("grpc session opened")
	return &GRPCEnv{scenario: scenario, logger: logger, conn: conn}, nil
}

// Reset implements Environment.
func (e *GRPCEnv) Reset(ctx context.Context) (*protocol.State, error) {
	return e.invoke(ctx, ResetMethod, protocol.ResetRequest(e.scenario))
}

// Step implements Environment.
func (e *GRPCEnv) Step(ctx context.Context, actionList []byte) (*protocol.State, error) {
	return e.invoke(ctx, StepMethod, protocol.StepRequest(actionList))
}

func (e *GRPCEnv) invoke(ctx context.Context, method string, req protocol.Request) (*protocol.State, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	payload, err := protocol.MarshalRequest(req)
	if err != nil {
		return nil, err
	}
	var reply []byte
	if err := e.conn.Invoke(ctx, method, payload, &reply); err != nil {
		return nil, fmt.Errorf("%s failed: %w", method, err)
	}
	return protocol.UnmarshalState(reply)
}

// Close releases the client connection.
func (e *GRPCEnv) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.conn.Close()
}
