package inference

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"
)

// runFunc runs one (batch, length) input matrix and returns raw logits with
// their shape.
type runFunc func(ctx context.Context, input []uint8, batch, length int) ([]float32, []int64, error)

// Backend predicts per-position level probabilities for byte windows. Windows
// are cut into sub-batches that run concurrently on a session pool; results
// come back in input order.
type Backend struct {
	pool     *Pool
	run      runFunc
	parallel int
	logger   *slog.Logger
}

// NewBackend creates a backend with a pool of poolSize sessions over model.
func NewBackend(model *Model, poolSize int, logger *slog.Logger) (*Backend, error) {
	pool, err := NewPool(model, poolSize)
	if err != nil {
		return nil, err
	}

	b := newBackend(nil, pool.Size(), logger)
	b.pool = pool
	b.run = func(ctx context.Context, input []uint8, batch, length int) ([]float32, []int64, error) {
		session, err := pool.Acquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		defer pool.Release(session)
		return session.Run(ctx, input, batch, length)
	}
	return b, nil
}

func newBackend(run runFunc, parallel int, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		run:      run,
		parallel: max(parallel, 1),
		logger:   logger,
	}
}

// Predict returns, for every window, row-major [position][level]
// probabilities with the sigmoid applied. All windows must have equal length.
func (b *Backend) Predict(ctx context.Context, windows [][]byte, batchSize int) ([][]float32, error) {
	if len(windows) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = len(windows)
	}

	length := len(windows[0])
	for i, w := range windows {
		if len(w) != length {
			return nil, fmt.Errorf("window %d has length %d, want %d", i, len(w), length)
		}
	}

	out := make([][]float32, len(windows))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallel)

	for start := 0; start < len(windows); start += batchSize {
		end := min(start+batchSize, len(windows))
		g.Go(func() error {
			return b.predictBatch(ctx, windows[start:end], out[start:end], length)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Backend) predictBatch(ctx context.Context, windows [][]byte, out [][]float32, length int) error {
	input := make([]uint8, 0, len(windows)*length)
	for _, w := range windows {
		input = append(input, w...)
	}

	b.logger.Debug("running inference batch", "windows", len(windows), "length", length)

	data, shape, err := b.run(ctx, input, len(windows), length)
	if err != nil {
		return err
	}
	if len(shape) != 3 || shape[0] != int64(len(windows)) || shape[1] != int64(length) {
		return fmt.Errorf("unexpected output shape %v for %d windows of length %d", shape, len(windows), length)
	}

	per := int(shape[1] * shape[2])
	if len(data) != len(windows)*per {
		return fmt.Errorf("output has %d values, shape %v", len(data), shape)
	}

	for i, v := range data {
		data[i] = sigmoid(v)
	}
	for i := range out {
		out[i] = data[i*per : (i+1)*per : (i+1)*per]
	}
	return nil
}

// Close releases the session pool.
func (b *Backend) Close() error {
	if b.pool == nil {
		return nil
	}
	return b.pool.Close()
}

func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(float64(-x))))
}
