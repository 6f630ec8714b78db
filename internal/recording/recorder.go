// Package recording persists episode transitions for later replay.
package recording

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cartridge/skyrts/internal/protocol"
)

// Recorder receives every transition the actor observes.
type Recorder interface {
	Record(frame *protocol.Frame) error
	Close() error
}

// EmptyRecorder discards frames.
type EmptyRecorder struct{}

func (EmptyRecorder) Record(*protocol.Frame) error { return nil }
func (EmptyRecorder) Close() error                 { return nil }

// FileRecorder writes length-delimited frames to a zstd-compressed file.
type FileRecorder struct {
	mu   sync.Mutex
	path string
	f    *os.File
	enc  *zstd.Encoder
	w    *bufio.Writer
}

// NewFileRecorder creates path (and its directory) and starts a recording.
func NewFileRecorder(path string) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &FileRecorder{
		path: path,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

// Path returns the file being written.
func (r *FileRecorder) Path() string { return r.path }

// Record appends one frame.
func (r *FileRecorder) Record(frame *protocol.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return errors.New("recorder closed")
	}
	_, err := r.w.Write(protowire.AppendBytes(nil, protocol.MarshalFrame(frame)))
	return err
}

// Close flushes buffered frames and closes the file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	err := r.w.Flush()
	if cerr := r.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	r.w, r.enc, r.f = nil, nil, nil
	return err
}

// ReadFile loads every frame of a recording.
func ReadFile(path string) ([]*protocol.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", path, err)
	}

	var frames []*protocol.Frame
	for len(data) > 0 {
		b, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return frames, fmt.Errorf("%w: frame %d: %v", protocol.ErrMalformed, len(frames), protowire.ParseError(n))
		}
		frame, err := protocol.UnmarshalFrame(b)
		if err != nil {
			return frames, fmt.Errorf("frame %d: %w", len(frames), err)
		}
		frames = append(frames, frame)
		data = data[n:]
	}
	return frames, nil
}
