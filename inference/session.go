// Package inference provides ONNX Runtime integration for nnsplit models.
package inference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrSessionClosed is returned by Run after Close.
var ErrSessionClosed = errors.New("inference: session is closed")

// libraryPathEnv overrides where the onnxruntime shared library is loaded from.
const libraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

var (
	ortEnvOnce sync.Once
	ortEnvErr  error
)

// initORT initializes ONNX Runtime environment once.
func initORT() error {
	ortEnvOnce.Do(func() {
		if path := os.Getenv(libraryPathEnv); path != "" {
			ort.SetSharedLibraryPath(path)
		}
		ortEnvErr = ort.InitializeEnvironment()
	})
	return ortEnvErr
}

// Session wraps an ONNX Runtime session for an nnsplit model. A Session runs
// one batch at a time.
type Session struct {
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex
	closed  bool
}

// NewSession creates a new ONNX session from an in-memory model.
func NewSession(model *Model) (*Session, error) {
	if len(model.Inputs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 input, graph has %v", ErrInvalidModel, model.Inputs)
	}

	if err := initORT(); err != nil {
		return nil, fmt.Errorf("initializing ONNX runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating session options: %w", err)
	}
	defer func() { _ = options.Destroy() }() // Cleanup error doesn't affect success

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(
		model.Data,
		model.Inputs,
		model.Outputs[:1],
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &Session{session: session}, nil
}

// Run feeds a (batch, length) byte matrix to the model and returns the raw
// output values with their shape.
func (s *Session) Run(ctx context.Context, input []uint8, batch, length int) ([]float32, []int64, error) {
	// Check context before expensive operation
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}

	if len(input) != batch*length {
		return nil, nil, fmt.Errorf("input has %d bytes, want %d x %d", len(input), batch, length)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, ErrSessionClosed
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(int64(batch), int64(length)), input)
	if err != nil {
		return nil, nil, fmt.Errorf("creating input tensor: %w", err)
	}
	defer func() { _ = inputTensor.Destroy() }()

	// nil entries are allocated by Run
	outputs := []ort.Value{nil}

	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, nil, fmt.Errorf("running inference: %w", err)
	}
	if outputs[0] == nil {
		return nil, nil, fmt.Errorf("no output produced")
	}
	defer func() { _ = outputs[0].Destroy() }()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}

	shape := append([]int64(nil), tensor.GetShape()...)
	data := append([]float32(nil), tensor.GetData()...)
	return data, shape, nil
}

// Close releases ONNX resources.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}
