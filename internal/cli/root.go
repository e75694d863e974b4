// Package cli implements the nnsplit command.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/go-nnsplit"
	"github.com/jamesainslie/go-nnsplit/internal/config"
)

// app holds the state shared by all subcommands: raw flag values, the
// resolved configuration and the way a Splitter is opened.
type app struct {
	configPath string
	model      string
	modelPath  string
	cacheDir   string
	poolSize   int
	verbose    bool
	split      nnsplit.Options

	cfg    config.Config
	logger *slog.Logger
	open   func(ctx context.Context) (*nnsplit.Splitter, error)
}

// Execute runs the nnsplit command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// NewRootCommand returns the nnsplit command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "nnsplit",
		Short: "Split text into sentences, tokens and finer units",
		Long: `nnsplit splits text into a hierarchy of units (for example sentences, then
tokens) using a byte-level neural model. Models are ONNX files carrying their
level names; published models are fetched by name and cached locally.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.Version = Version
	root.SetVersionTemplate(fmt.Sprintf("nnsplit %s\n", versionString()))

	defaults := nnsplit.DefaultOptions()
	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/nnsplit/config.toml)")
	f.StringVarP(&a.model, "model", "m", "", "registered model name, e.g. en or de")
	f.StringVar(&a.modelPath, "model-path", "", "path to an ONNX model file")
	f.StringVar(&a.cacheDir, "cache-dir", "", "model cache directory")
	f.IntVar(&a.poolSize, "pool-size", 0, "number of inference sessions (default GOMAXPROCS)")
	f.Float32Var(&a.split.Threshold, "threshold", defaults.Threshold, "boundary probability threshold")
	f.IntVar(&a.split.Stride, "stride", defaults.Stride, "advance between window starts")
	f.IntVar(&a.split.MaxLength, "max-length", defaults.MaxLength, "bytes per window")
	f.IntVar(&a.split.Padding, "padding", defaults.Padding, "zero bytes added around each text")
	f.IntVar(&a.split.BatchSize, "batch-size", defaults.BatchSize, "windows per inference call")
	f.IntVar(&a.split.LengthDivisor, "length-divisor", defaults.LengthDivisor, "window length multiple")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newSplitCommand(a),
		newLevelsCommand(a),
		newFetchCommand(a),
		newBenchCommand(a),
	)
	return root
}

// setup resolves configuration: defaults, then the config file, then flags
// the user set explicitly.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model = a.model
		if !flags.Changed("model-path") {
			cfg.ModelPath = ""
		}
	}
	if flags.Changed("model-path") {
		cfg.ModelPath = a.modelPath
	}
	if flags.Changed("cache-dir") {
		cfg.CacheDir = a.cacheDir
	}
	if flags.Changed("pool-size") {
		cfg.PoolSize = a.poolSize
	}

	overrides := []struct {
		name  string
		apply func()
	}{
		{"threshold", func() { cfg.Split.Threshold = a.split.Threshold }},
		{"stride", func() { cfg.Split.Stride = a.split.Stride }},
		{"max-length", func() { cfg.Split.MaxLength = a.split.MaxLength }},
		{"padding", func() { cfg.Split.Padding = a.split.Padding }},
		{"batch-size", func() { cfg.Split.BatchSize = a.split.BatchSize }},
		{"length-divisor", func() { cfg.Split.LengthDivisor = a.split.LengthDivisor }},
	}
	for _, o := range overrides {
		if flags.Changed(o.name) {
			o.apply()
		}
	}
	if err := cfg.Split.Validate(); err != nil {
		return err
	}

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	a.cfg = cfg
	if a.open == nil {
		a.open = a.openSplitter
	}
	return nil
}

func (a *app) openSplitter(ctx context.Context) (*nnsplit.Splitter, error) {
	opts := []nnsplit.Option{
		nnsplit.WithOptions(a.cfg.Split),
		nnsplit.WithPoolSize(a.cfg.PoolSize),
		nnsplit.WithLogger(a.logger),
	}
	if a.cfg.ModelPath != "" {
		a.logger.Debug("opening model file", "path", a.cfg.ModelPath)
		return nnsplit.New(a.cfg.ModelPath, opts...)
	}

	registry, err := a.cfg.Registry()
	if err != nil {
		return nil, err
	}
	opts = append(opts, nnsplit.WithRegistry(registry), nnsplit.WithCacheDir(a.cfg.CacheDir))
	return nnsplit.Load(ctx, a.cfg.Model, opts...)
}
