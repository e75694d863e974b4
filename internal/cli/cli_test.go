package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jamesainslie/go-nnsplit"
)

// punctPredictor marks '.' and the space after it on level 0 and every space
// on level 1.
type punctPredictor struct{}

func (punctPredictor) Predict(_ context.Context, windows [][]byte, _ int) ([][]float32, error) {
	out := make([][]float32, len(windows))
	for i, w := range windows {
		row := make([]float32, len(w)*2)
		for j, c := range w {
			if c == '.' || (c == ' ' && j > 0 && w[j-1] == '.') {
				row[j*2] = 1
			}
			if c == ' ' {
				row[j*2+1] = 1
			}
		}
		out[i] = row
	}
	return out, nil
}

// isolate points config lookup at empty directories.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func fakeApp() *app {
	a := &app{}
	a.open = func(context.Context) (*nnsplit.Splitter, error) {
		seq := nnsplit.NewSplitSequence("Sentence", "_Whitespace", "Token")
		return nnsplit.NewWithPredictor(threeLevels{}, seq, nnsplit.WithOptions(a.cfg.Split))
	}
	return a
}

// threeLevels adds an empty hidden level between the two punctPredictor levels.
type threeLevels struct{}

func (threeLevels) Predict(ctx context.Context, windows [][]byte, n int) ([][]float32, error) {
	two, err := punctPredictor{}.Predict(ctx, windows, n)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(two))
	for i, row := range two {
		three := make([]float32, len(row)/2*3)
		for j := 0; j < len(row)/2; j++ {
			three[j*3] = row[j*2]
			three[j*3+2] = row[j*2+1]
		}
		out[i] = three
	}
	return out, nil
}

func run(t *testing.T, a *app, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSplit_Level(t *testing.T) {
	isolate(t)

	out, err := run(t, fakeApp(), "", "split", "--level", "0", "Hello world. How are you.", "One. Two.")
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}

	want := "\"Hello world. \"\n\"How are you.\"\n\"One. \"\n\"Two.\"\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestSplit_Stdin(t *testing.T) {
	isolate(t)

	out, err := run(t, fakeApp(), "One. Two.", "split", "-l", "1")
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	want := "\"One. \"\n\"Two.\"\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestSplit_File(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte("A b. C d."), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, fakeApp(), "", "split", "--file", path, "--level", "1")
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	want := "\"A \"\n\"b. \"\n\"C \"\n\"d.\"\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestSplit_JSON(t *testing.T) {
	isolate(t)

	out, err := run(t, fakeApp(), "", "split", "--json", "Hi there. Bye.")
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}

	var splits []nnsplit.Split
	if err := json.Unmarshal([]byte(out), &splits); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(splits) != 1 {
		t.Fatalf("got %d splits, want 1", len(splits))
	}
	if got := splits[0].Flatten(0); !reflect.DeepEqual(got, []string{"Hi there. ", "Bye."}) {
		t.Errorf("sentences = %q", got)
	}
	if got := splits[0].Flatten(1); !reflect.DeepEqual(got, []string{"Hi ", "there. ", "Bye."}) {
		t.Errorf("tokens = %q", got)
	}
}

func TestSplit_Tree(t *testing.T) {
	isolate(t)

	out, err := run(t, fakeApp(), "", "split", "Hi there. Bye.")
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}

	for _, want := range []string{"Sentence › Token", `"Hi there. "`, `"there. "`, `"Bye."`} {
		if !strings.Contains(out, want) {
			t.Errorf("tree output missing %q:\n%s", want, out)
		}
	}
}

func TestSplit_Errors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
	}{
		{"file and args", []string{"split", "--file", "x.txt", "text"}},
		{"level out of range", []string{"split", "--level", "2", "text"}},
		{"json and level", []string{"split", "--json", "--level", "0", "text"}},
		{"no input", []string{"split"}},
		{"invalid threshold", []string{"--threshold", "1.5", "split", "text"}},
		{"stride above max length", []string{"--stride", "200", "split", "text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, fakeApp(), "", tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSplit_InvalidThreshold(t *testing.T) {
	isolate(t)

	_, err := run(t, fakeApp(), "", "--threshold", "0", "split", "text")
	if !errors.Is(err, nnsplit.ErrInvalidOptions) {
		t.Errorf("expected ErrInvalidOptions, got %v", err)
	}
}

func TestLevels(t *testing.T) {
	isolate(t)

	out, err := run(t, fakeApp(), "", "levels")
	if err != nil {
		t.Fatalf("levels failed: %v", err)
	}
	if out != "Sentence\nToken\n" {
		t.Errorf("output = %q", out)
	}

	out, err = run(t, fakeApp(), "", "levels", "--all")
	if err != nil {
		t.Fatalf("levels --all failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "_Whitespace") || !strings.Contains(lines[1], "hidden") {
		t.Errorf("output = %q", out)
	}
}

func TestConfigPrecedence(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := "model = \"de\"\n\n[split]\nthreshold = 0.5\nstride = 40\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	a := fakeApp()
	if _, err := run(t, a, "", "--config", path, "--threshold", "0.6", "levels"); err != nil {
		t.Fatalf("levels failed: %v", err)
	}

	if a.cfg.Model != "de" {
		t.Errorf("Model = %q, want de from config", a.cfg.Model)
	}
	if a.cfg.Split.Threshold != 0.6 {
		t.Errorf("Threshold = %v, want 0.6 from flag", a.cfg.Split.Threshold)
	}
	if a.cfg.Split.Stride != 40 {
		t.Errorf("Stride = %d, want 40 from config", a.cfg.Split.Stride)
	}
	if a.cfg.Split.MaxLength != 100 {
		t.Errorf("MaxLength = %d, want default 100", a.cfg.Split.MaxLength)
	}
}

func TestModelFlagClearsConfiguredPath(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("model_path = \"/models/custom.onnx\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := fakeApp()
	if _, err := run(t, a, "", "--config", path, "--model", "fr", "levels"); err != nil {
		t.Fatalf("levels failed: %v", err)
	}
	if a.cfg.Model != "fr" || a.cfg.ModelPath != "" {
		t.Errorf("Model = %q, ModelPath = %q; want fr and empty", a.cfg.Model, a.cfg.ModelPath)
	}
}

func TestFetch(t *testing.T) {
	isolate(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/xx/model.onnx" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("model bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[models]\nxx = \"" + srv.URL + "/xx\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cacheDir := filepath.Join(dir, "cache")

	out, err := run(t, fakeApp(), "", "--config", path, "--cache-dir", cacheDir, "fetch", "xx")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	want := filepath.Join(cacheDir, "xx", "model.onnx.zst")
	if strings.TrimSpace(out) != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("cache entry missing: %v", err)
	}

	out, err = run(t, fakeApp(), "", "--config", path, "fetch", "--list")
	if err != nil {
		t.Fatalf("fetch --list failed: %v", err)
	}
	if !strings.Contains(out, "xx") || !strings.Contains(out, "en") {
		t.Errorf("list output = %q", out)
	}

	if _, err := run(t, fakeApp(), "", "--config", path, "--cache-dir", cacheDir, "fetch", "unknown"); err == nil {
		t.Error("expected error for unknown model")
	}
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := "# Source: local\n# Title: Test\n\nHello world. How are you. I am fine."
	if err := os.WriteFile(filepath.Join(dir, "doc.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestBench(t *testing.T) {
	isolate(t)

	out, err := run(t, fakeApp(), "", "bench", "--corpus", writeCorpus(t))
	if err != nil {
		t.Fatalf("bench failed: %v", err)
	}
	for _, want := range []string{"Loaded 1 documents", "Precision: 1.00", "Recall: 1.00", "TP: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBench_Sweep(t *testing.T) {
	isolate(t)

	out, err := run(t, fakeApp(), "", "bench", "--corpus", writeCorpus(t),
		"--sweep", "--sweep-min", "0.5", "--sweep-max", "0.9", "--sweep-step", "0.2")
	if err != nil {
		t.Fatalf("bench --sweep failed: %v", err)
	}
	for _, want := range []string{"Threshold Sweep Results", "0.500", "0.700", "Optimal:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, fakeApp(), "", "bench", "--corpus", writeCorpus(t),
		"--sweep", "--sweep-min", "0.9", "--sweep-max", "0.5"); err == nil {
		t.Error("expected error for empty sweep range")
	}
}

func TestBench_MissingCorpus(t *testing.T) {
	isolate(t)

	if _, err := run(t, fakeApp(), "", "bench", "--corpus", filepath.Join(t.TempDir(), "none")); err == nil {
		t.Error("expected error for missing corpus")
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, fakeApp(), "", "--version")
	if err != nil {
		t.Fatalf("--version failed: %v", err)
	}
	if !strings.HasPrefix(out, "nnsplit dev") {
		t.Errorf("output = %q", out)
	}
}

func TestRenderTree(t *testing.T) {
	s := nnsplit.Node("Hi. Yo.", []nnsplit.Split{
		nnsplit.Node("Hi. ", []nnsplit.Split{nnsplit.Text("Hi. ")}),
		nnsplit.Node("Yo.", []nnsplit.Split{nnsplit.Text("Yo.")}),
	})

	out := renderTree(s, []string{"Sentence", "Token"}).String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "Sentence › Token") {
		t.Errorf("root line = %q", lines[0])
	}
	if !strings.Contains(lines[1], `"Hi. "`) || !strings.Contains(lines[4], `"Yo."`) {
		t.Errorf("unexpected tree:\n%s", out)
	}

	leaf := renderTree(nnsplit.Text("plain"), nil).String()
	if !strings.Contains(leaf, "Text") || !strings.Contains(leaf, `"plain"`) {
		t.Errorf("leaf tree = %q", leaf)
	}
}

func TestBenchPrepare(t *testing.T) {
	isolate(t)

	dir := t.TempDir()
	raw := filepath.Join(dir, "kafka_raw.txt")
	content := "Title: Die Verwandlung\nAuthor: Franz Kafka\n\n" +
		"*** START OF THE PROJECT GUTENBERG EBOOK X ***\n" +
		"Eins zwei.\nDrei.\n" +
		"*** END OF THE PROJECT GUTENBERG EBOOK X ***\n"
	if err := os.WriteFile(raw, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "corpus")

	out, err := run(t, fakeApp(), "", "bench", "prepare", "--out", outDir, raw)
	if err != nil {
		t.Fatalf("bench prepare failed: %v", err)
	}
	want := filepath.Join(outDir, "kafka.txt")
	if strings.TrimSpace(out) != want {
		t.Errorf("output = %q, want %q", out, want)
	}

	out, err = run(t, fakeApp(), "", "bench", "--corpus", outDir)
	if err != nil {
		t.Fatalf("bench on prepared corpus failed: %v", err)
	}
	if !strings.Contains(out, "Loaded 1 documents") {
		t.Errorf("output = %q", out)
	}
}
