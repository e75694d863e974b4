package nnsplit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jamesainslie/go-nnsplit/inference"
	"github.com/jamesainslie/go-nnsplit/resource"
)

const (
	// metadataKey is the ONNX metadata property holding the level names.
	metadataKey = "split_sequence"

	// modelFile is the file Load fetches for a named model.
	modelFile = "model.onnx"
)

// Predictor labels byte windows with per-position level probabilities.
// Predict receives equally long windows and must return, in the same order,
// one row-major [position][level] slice per window with values in [0, 1].
// batchSize bounds how many windows are evaluated together.
type Predictor interface {
	Predict(ctx context.Context, windows [][]byte, batchSize int) ([][]float32, error)
}

// Splitter splits texts into Split trees. It is safe for concurrent use.
type Splitter struct {
	predictor Predictor
	sequence  SplitSequence
	opts      Options
	logger    *slog.Logger
}

// New creates a Splitter from an ONNX model file.
func New(modelPath string, opts ...Option) (*Splitter, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(modelPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
		}
		return nil, fmt.Errorf("reading model file: %w", err)
	}

	return fromModelData(data, cfg)
}

// Load creates a Splitter from a registered model name, using the cached copy
// when present and downloading it otherwise.
func Load(ctx context.Context, name string, opts ...Option) (*Splitter, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	registry := cfg.registry
	if registry == nil {
		registry = resource.DefaultRegistry()
	}
	loader, err := resource.NewLoader(registry, cfg.cacheDir, cfg.httpClient, cfg.logger)
	if err != nil {
		return nil, err
	}

	data, path, err := loader.Get(ctx, name, modelFile)
	if err != nil {
		return nil, err
	}
	cfg.logger.Debug("loaded model", "name", name, "path", path, "bytes", len(data))

	return fromModelData(data, cfg)
}

// NewWithPredictor creates a Splitter over any Predictor, for example a
// different runtime or a test double.
func NewWithPredictor(p Predictor, seq SplitSequence, opts ...Option) (*Splitter, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	if seq.Len() == 0 {
		return nil, fmt.Errorf("%w: split sequence has no levels", ErrMalformedMetadata)
	}
	return &Splitter{
		predictor: p,
		sequence:  seq,
		opts:      cfg.split,
		logger:    cfg.logger,
	}, nil
}

func newConfig(opts []Option) (config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.split.Validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func fromModelData(data []byte, cfg config) (*Splitter, error) {
	model, err := inference.ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMetadata, err)
	}

	raw, ok := model.Metadata[metadataKey]
	if !ok {
		return nil, fmt.Errorf("%w: model has no %q metadata", ErrMalformedMetadata, metadataKey)
	}
	seq, err := ParseSplitSequence(raw)
	if err != nil {
		return nil, err
	}
	if ch := model.Channels(); ch != 0 && ch != seq.Len() {
		return nil, fmt.Errorf("%w: model outputs %d channels, split_sequence has %d levels",
			ErrMalformedMetadata, ch, seq.Len())
	}

	backend, err := inference.NewBackend(model, cfg.poolSize, cfg.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelFailure, err)
	}

	cfg.logger.Debug("created splitter", "levels", seq.Names(), "pool", cfg.poolSize)

	return &Splitter{
		predictor: backend,
		sequence:  seq,
		opts:      cfg.split,
		logger:    cfg.logger,
	}, nil
}

// Split returns one tree per text. The leaves of each tree concatenate to the
// text exactly. Either all trees are returned or an error.
func (s *Splitter) Split(ctx context.Context, texts []string) ([]Split, error) {
	curves, err := s.Probabilities(ctx, texts)
	if err != nil {
		return nil, err
	}

	splits := make([]Split, len(texts))
	for i, text := range texts {
		splits[i] = s.sequence.Build(text, curves[i], s.opts.Threshold)
	}
	return splits, nil
}

// Probabilities returns the averaged model output for each text, one value per
// byte per level (hidden levels included).
func (s *Splitter) Probabilities(ctx context.Context, texts []string) ([]Curve, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := EncodeWindows(texts, s.opts)
	s.logger.Debug("encoded windows",
		"texts", len(texts),
		"windows", len(batch.Windows),
		"window_length", batch.WindowLength)

	preds, err := s.predictor.Predict(ctx, batch.Inputs, s.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelFailure, err)
	}

	return Reconstruct(batch, preds, s.sequence.Len())
}

// Levels returns the names of the visible levels in hierarchy order.
func (s *Splitter) Levels() []string {
	return s.sequence.Names()
}

// Sequence returns the model's full level sequence.
func (s *Splitter) Sequence() SplitSequence {
	return s.sequence
}

// Options returns the options the Splitter was created with.
func (s *Splitter) Options() Options {
	return s.opts
}

// Close releases the predictor if it holds resources.
func (s *Splitter) Close() error {
	if c, ok := s.predictor.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
