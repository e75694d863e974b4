// Package resource resolves nnsplit model names to files, downloading and
// caching them on first use.
package resource

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"net/url"
	"slices"
	"strings"
)

// defaultModels lists the models published with nnsplit, as name,url lines.
const defaultModels = `de,https://raw.githubusercontent.com/bminixhofer/nnsplit/main/models/de/
en,https://raw.githubusercontent.com/bminixhofer/nnsplit/main/models/en/
fr,https://raw.githubusercontent.com/bminixhofer/nnsplit/main/models/fr/
no,https://raw.githubusercontent.com/bminixhofer/nnsplit/main/models/no/
sv,https://raw.githubusercontent.com/bminixhofer/nnsplit/main/models/sv/
tr,https://raw.githubusercontent.com/bminixhofer/nnsplit/main/models/tr/
zh,https://raw.githubusercontent.com/bminixhofer/nnsplit/main/models/zh/
`

// Registry maps model names to the base URL their files live under. A
// Registry is not modified by the Loader and may be shared.
type Registry struct {
	models map[string]*url.URL
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*url.URL)}
}

// DefaultRegistry returns a registry of the published nnsplit models.
func DefaultRegistry() *Registry {
	r, err := ParseRegistry(strings.NewReader(defaultModels))
	if err != nil {
		panic(err)
	}
	return r
}

// ParseRegistry reads name,url lines. Blank lines and lines starting with #
// are skipped.
func ParseRegistry(rd io.Reader) (*Registry, error) {
	r := NewRegistry()
	scanner := bufio.NewScanner(rd)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		name, base, ok := strings.Cut(text, ",")
		if !ok {
			return nil, fmt.Errorf("registry line %d: expected name,url", line)
		}
		if err := r.Add(strings.TrimSpace(name), strings.TrimSpace(base)); err != nil {
			return nil, fmt.Errorf("registry line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan registry: %w", err)
	}
	return r, nil
}

// Add registers or replaces a model. A trailing slash is added to base so
// file names resolve below it.
func (r *Registry) Add(name, base string) error {
	if name == "" {
		return fmt.Errorf("empty model name")
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("model %q: %w", name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("model %q: url %q is not absolute", name, base)
	}
	r.models[name] = u
	return nil
}

// Merge returns a new registry holding r's models overridden by other's.
func (r *Registry) Merge(other *Registry) *Registry {
	out := NewRegistry()
	maps.Copy(out.models, r.models)
	if other != nil {
		maps.Copy(out.models, other.models)
	}
	return out
}

// URL returns where file of the named model is fetched from.
func (r *Registry) URL(name, file string) (string, error) {
	base, ok := r.models[name]
	if !ok {
		return "", fmt.Errorf("%w: model %q", ErrResourceNotFound, name)
	}
	ref, err := url.Parse(file)
	if err != nil {
		return "", fmt.Errorf("%w: model %q file %q: %w", ErrResourceNotFound, name, file, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Names returns the registered model names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.models))
}
