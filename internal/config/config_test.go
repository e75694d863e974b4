package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/go-nnsplit"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model != "en" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.Split != nnsplit.DefaultOptions() {
		t.Errorf("Split = %+v, want defaults", cfg.Split)
	}
	if cfg.Bench.Tolerance != 3 {
		t.Errorf("Bench.Tolerance = %d", cfg.Bench.Tolerance)
	}
}

func TestLoad_NoConfig(t *testing.T) {
	// Point XDG to an empty dir so no config file is found
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Split != nnsplit.DefaultOptions() {
		t.Errorf("Split = %+v, want defaults", cfg.Split)
	}
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_XDGConfig(t *testing.T) {
	xdg := t.TempDir()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("HOME", home)

	writeConfig(t, filepath.Join(xdg, "nnsplit", "config.toml"), `model = "de"
model_path = "~/models/de.onnx"
pool_size = 4

[split]
threshold = 0.5
stride = 50

[bench]
corpus = "~/corpus"

[models]
custom = "https://models.example/custom"
`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Model != "de" {
		t.Errorf("Model = %q, want de", cfg.Model)
	}
	if cfg.ModelPath != filepath.Join(home, "models", "de.onnx") {
		t.Errorf("ModelPath = %q, want expanded path", cfg.ModelPath)
	}
	if cfg.PoolSize != 4 {
		t.Errorf("PoolSize = %d, want 4", cfg.PoolSize)
	}
	if cfg.Split.Threshold != 0.5 || cfg.Split.Stride != 50 {
		t.Errorf("Split = %+v", cfg.Split)
	}
	// Unset keys keep their defaults
	if cfg.Split.MaxLength != 100 || cfg.Split.Padding != 5 {
		t.Errorf("Split defaults lost: %+v", cfg.Split)
	}
	if strings.HasPrefix(cfg.Bench.Corpus, "~/") {
		t.Errorf("Bench.Corpus not expanded: %q", cfg.Bench.Corpus)
	}
	if cfg.Bench.Tolerance != 3 {
		t.Errorf("Bench.Tolerance = %d, want default 3", cfg.Bench.Tolerance)
	}
}

func TestLoad_HomeFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", home)

	writeConfig(t, filepath.Join(home, ".config", "nnsplit", "config.toml"), `model = "fr"`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "fr" {
		t.Errorf("Model = %q, want fr", cfg.Model)
	}
}

func TestLoad_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	writeConfig(t, path, `cache_dir = "/tmp/nnsplit-cache"`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheDir != "/tmp/nnsplit-cache" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"bad toml", "model = ", nil},
		{"bad threshold", "[split]\nthreshold = 1.5\n", nnsplit.ErrInvalidOptions},
		{"stride above max_length", "[split]\nstride = 200\n", nnsplit.ErrInvalidOptions},
		{"no model", "model = \"\"\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			writeConfig(t, path, tt.content)

			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_Registry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Models = map[string]string{
		"custom": "https://models.example/custom",
		"en":     "https://mirror.example/en",
	}

	r, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}

	if u, _ := r.URL("custom", "model.onnx"); u != "https://models.example/custom/model.onnx" {
		t.Errorf("URL(custom) = %q", u)
	}
	if u, _ := r.URL("en", "model.onnx"); u != "https://mirror.example/en/model.onnx" {
		t.Errorf("URL(en) = %q, want override", u)
	}
	if _, err := r.URL("de", "model.onnx"); err != nil {
		t.Errorf("default model de missing: %v", err)
	}

	cfg.Models = map[string]string{"bad": "not a url"}
	if _, err := cfg.Registry(); err == nil {
		t.Error("expected error for relative url")
	}
}
