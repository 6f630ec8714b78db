package env

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cartridge/skyrts/internal/protocol"
)

// WebSocketEnv exchanges one binary EnvRequest frame and one binary EnvState
// frame per call. Close may be called while a call is in flight and
// unblocks it.
type WebSocketEnv struct {
	scenario string
	logger   zerolog.Logger
	conn     *websocket.Conn

	mu        sync.Mutex // serializes round trips
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// DialWebSocket opens a WebSocket session with the simulator.
func DialWebSocket(ctx context.Context, addr, scenario string, logger zerolog.Logger) (*WebSocketEnv, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to simulator at %s: %w", addr, err)
	}
	logger.Info().Str("scenario", scenario).Msg("websocket session opened")
	return &WebSocketEnv{scenario: scenario, logger: logger, conn: conn}, nil
}

// Reset implements Environment.
func (e *WebSocketEnv) Reset(ctx context.Context) (*protocol.State, error) {
	return e.roundTrip(ctx, protocol.ResetRequest(e.scenario))
}

// Step implements Environment.
func (e *WebSocketEnv) Step(ctx context.Context, actionList []byte) (*protocol.State, error) {
	return e.roundTrip(ctx, protocol.StepRequest(actionList))
}

func (e *WebSocketEnv) roundTrip(ctx context.Context, req protocol.Request) (*protocol.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return nil, ErrClosed
	}

	payload, err := protocol.MarshalRequest(req)
	if err != nil {
		return nil, err
	}

	deadline, _ := ctx.Deadline()
	if err := e.conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := e.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	// unblock a pending read when ctx is cancelled without a deadline
	stop := context.AfterFunc(ctx, func() {
		_ = e.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := e.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		if e.closed.Load() {
			return nil, fmt.Errorf("%s request: %w", req.Kind, ErrClosed)
		}
		return nil, fmt.Errorf("failed to send %s request: %w", req.Kind, err)
	}

	for {
		mt, data, err := e.conn.ReadMessage()
		if err != nil {
			if e.closed.Load() {
				return nil, fmt.Errorf("%s request: %w", req.Kind, ErrClosed)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%s request: %w", req.Kind, ctxErr)
			}
			return nil, fmt.Errorf("failed to read %s reply: %w", req.Kind, err)
		}
		if mt != websocket.BinaryMessage {
			e.logger.Debug().Int("message_type", mt).Msg("ignoring non-binary frame")
			continue
		}
		return protocol.UnmarshalState(data)
	}
}

// Close sends a close frame and releases the connection. It does not wait
// for an in-flight call.
func (e *WebSocketEnv) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = e.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		e.closeErr = e.conn.Close()
	})
	return e.closeErr
}
