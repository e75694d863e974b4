package nnsplit

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/jamesainslie/go-nnsplit/resource"
)

// Options controls windowing and boundary detection. The zero value is not
// usable; start from DefaultOptions.
type Options struct {
	// Threshold is the probability above which a position is a boundary.
	Threshold float32 `toml:"threshold"`
	// Stride is the advance between consecutive window starts.
	Stride int `toml:"stride"`
	// MaxLength is the number of text bytes in one window.
	MaxLength int `toml:"max_length"`
	// Padding is the number of zero bytes added on both sides of a text.
	Padding int `toml:"padding"`
	// BatchSize is the number of windows per backend call.
	BatchSize int `toml:"batch_size"`
	// LengthDivisor rounds window lengths up to a multiple of itself.
	LengthDivisor int `toml:"length_divisor"`
}

// DefaultOptions returns the options the published models were tuned for.
func DefaultOptions() Options {
	return Options{
		Threshold:     0.8,
		Stride:        90,
		MaxLength:     100,
		Padding:       5,
		BatchSize:     256,
		LengthDivisor: 2,
	}
}

// Validate reports whether o can be used for splitting.
func (o Options) Validate() error {
	switch {
	case !(o.Threshold > 0 && o.Threshold < 1):
		return fmt.Errorf("%w: threshold %v not in (0, 1)", ErrInvalidOptions, o.Threshold)
	case o.MaxLength <= 0:
		return fmt.Errorf("%w: max_length must be positive, got %d", ErrInvalidOptions, o.MaxLength)
	case o.Stride <= 0 || o.Stride > o.MaxLength:
		return fmt.Errorf("%w: stride must be in [1, max_length], got %d", ErrInvalidOptions, o.Stride)
	case o.Padding < 0:
		return fmt.Errorf("%w: padding must not be negative, got %d", ErrInvalidOptions, o.Padding)
	case o.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidOptions, o.BatchSize)
	case o.LengthDivisor <= 0:
		return fmt.Errorf("%w: length_divisor must be positive, got %d", ErrInvalidOptions, o.LengthDivisor)
	}
	return nil
}

// Option configures a Splitter.
type Option func(*config)

type config struct {
	split      Options
	poolSize   int
	logger     *slog.Logger
	cacheDir   string
	registry   *resource.Registry
	httpClient *http.Client
}

func defaultConfig() config {
	return config{
		split:    DefaultOptions(),
		poolSize: runtime.NumCPU(),
		logger:   slog.Default(),
	}
}

// WithOptions replaces all split options at once.
func WithOptions(o Options) Option {
	return func(c *config) {
		c.split = o
	}
}

// WithThreshold sets the boundary detection threshold (default: 0.8).
func WithThreshold(t float32) Option {
	return func(c *config) {
		c.split.Threshold = t
	}
}

// WithStride sets the window stride (default: 90).
func WithStride(n int) Option {
	return func(c *config) {
		c.split.Stride = n
	}
}

// WithMaxLength sets the window length in bytes (default: 100).
func WithMaxLength(n int) Option {
	return func(c *config) {
		c.split.MaxLength = n
	}
}

// WithPadding sets the zero padding on both sides of each text (default: 5).
func WithPadding(n int) Option {
	return func(c *config) {
		c.split.Padding = n
	}
}

// WithBatchSize sets how many windows go to the model at once (default: 256).
func WithBatchSize(n int) Option {
	return func(c *config) {
		c.split.BatchSize = n
	}
}

// WithLengthDivisor sets the window length rounding (default: 2).
func WithLengthDivisor(n int) Option {
	return func(c *config) {
		c.split.LengthDivisor = n
	}
}

// WithPoolSize sets the ONNX session pool size (default: runtime.NumCPU()).
func WithPoolSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCacheDir sets where Load stores downloaded models
// (default: the user cache directory).
func WithCacheDir(dir string) Option {
	return func(c *config) {
		c.cacheDir = dir
	}
}

// WithRegistry sets the model registry used by Load
// (default: resource.DefaultRegistry()).
func WithRegistry(r *resource.Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithHTTPClient sets the client Load downloads with (default: http.DefaultClient).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}
