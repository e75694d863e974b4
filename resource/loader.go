package resource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Sentinel errors for the ways fetching a model can fail.
var (
	// ErrResourceNotFound indicates the model name is not registered or the
	// server has no such file.
	ErrResourceNotFound = errors.New("resource: not found")

	// ErrTransferFailure indicates a network error while downloading.
	ErrTransferFailure = errors.New("resource: transfer failed")

	// ErrCacheIO indicates the cache directory could not be written.
	ErrCacheIO = errors.New("resource: cache i/o failed")
)

// cacheSuffix is appended to cached file names; entries are zstd compressed.
const cacheSuffix = ".zst"

// Loader fetches model files and keeps them in a cache directory laid out as
// <dir>/<model>/<file>.zst.
type Loader struct {
	registry *Registry
	dir      string
	client   *http.Client
	logger   *slog.Logger
}

// NewLoader returns a loader over registry caching into dir. An empty dir
// selects DefaultCacheDir; nil client and logger select the defaults.
func NewLoader(registry *Registry, dir string, client *http.Client, logger *slog.Logger) (*Loader, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if dir == "" {
		d, err := DefaultCacheDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{registry: registry, dir: dir, client: client, logger: logger}, nil
}

// DefaultCacheDir returns the nnsplit directory under the user cache dir.
func DefaultCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%w: locating user cache dir: %w", ErrCacheIO, err)
	}
	return filepath.Join(base, "nnsplit"), nil
}

// Dir returns the cache directory.
func (l *Loader) Dir() string {
	return l.dir
}

// CachePath returns where file of model is cached.
func (l *Loader) CachePath(model, file string) string {
	return filepath.Join(l.dir, model, file+cacheSuffix)
}

// Get returns the bytes of file for model, reading the cache when possible
// and downloading (then caching) otherwise. It also returns the cache path.
func (l *Loader) Get(ctx context.Context, model, file string) ([]byte, string, error) {
	path := l.CachePath(model, file)

	data, err := readCompressed(path)
	if err == nil {
		l.logger.Debug("model cache hit", "model", model, "file", file, "path", path)
		return data, path, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("discarding unreadable cache entry", "path", path, "error", err)
	}

	src, err := l.registry.URL(model, file)
	if err != nil {
		return nil, "", err
	}

	l.logger.Info("downloading model file", "model", model, "file", file, "url", src)
	data, err = l.download(ctx, src)
	if err != nil {
		return nil, "", fmt.Errorf("model %q file %q: %w", model, file, err)
	}

	if err := writeCompressed(path, data); err != nil {
		return nil, "", err
	}
	return data, path, nil
}

func (l *Loader) download(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransferFailure, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransferFailure, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, src)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %s: %s", ErrTransferFailure, src, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrTransferFailure, err)
	}
	return data, nil
}

func readCompressed(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer decoder.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, decoder); err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return buf.Bytes(), nil
}

// writeCompressed writes data to a temp file next to path and renames it into
// place, so readers never see a partial entry.
func writeCompressed(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create cache dir: %w", ErrCacheIO, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrCacheIO, err)
	}
	defer os.Remove(tmp.Name())

	encoder, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("%w: create zstd encoder: %w", ErrCacheIO, err)
	}
	if _, err := encoder.Write(data); err != nil {
		encoder.Close()
		tmp.Close()
		return fmt.Errorf("%w: compress: %w", ErrCacheIO, err)
	}
	if err := encoder.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: finalize compression: %w", ErrCacheIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %w", ErrCacheIO, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheIO, err)
	}
	return nil
}
