package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/go-nnsplit/internal/bench"
)

type benchFlags struct {
	corpus    string
	tolerance int
	wp, wr    float64
	sweep     bool
	sweepMin  float32
	sweepMax  float32
	sweepStep float32
}

func newBenchCommand(a *app) *cobra.Command {
	var f benchFlags

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Score top-level boundaries against a reference corpus",
		Long: `Split every .txt file in the corpus directory and compare the top-level
boundaries with reference sentence boundaries. Files start with "# Source:",
"# Title:" and "# Author:" header lines.

With --sweep the model runs once and every threshold in the range is scored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.Bench
			flags := cmd.Flags()
			if flags.Changed("corpus") {
				cfg.Corpus = f.corpus
			}
			if flags.Changed("tolerance") {
				cfg.Tolerance = f.tolerance
			}
			if flags.Changed("wp") {
				cfg.PrecisionWeight = f.wp
			}
			if flags.Changed("wr") {
				cfg.RecallWeight = f.wr
			}
			eval := bench.Config{
				Tolerance:       cfg.Tolerance,
				PrecisionWeight: cfg.PrecisionWeight,
				RecallWeight:    cfg.RecallWeight,
			}

			docs, err := bench.LoadCorpus(cfg.Corpus)
			if err != nil {
				return fmt.Errorf("loading corpus: %w", err)
			}

			sp, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = sp.Close() }()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loaded %d documents from %s\n\n", len(docs), cfg.Corpus)

			if !f.sweep {
				m, err := bench.EvaluateCorpus(cmd.Context(), sp, docs, eval)
				if err != nil {
					return err
				}
				printMetrics(out, a.cfg.Split.Threshold, m)
				return nil
			}

			thresholds := bench.SweepThresholds(f.sweepMin, f.sweepMax, f.sweepStep)
			if len(thresholds) == 0 {
				return fmt.Errorf("empty sweep range [%v, %v) step %v", f.sweepMin, f.sweepMax, f.sweepStep)
			}
			results, err := bench.Sweep(cmd.Context(), sp, docs, eval, thresholds)
			if err != nil {
				return err
			}
			printSweep(out, thresholds, results, eval)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.corpus, "corpus", "", "directory of corpus .txt files (default from config)")
	fl.IntVar(&f.tolerance, "tolerance", 3, "byte tolerance for boundary matching")
	fl.Float64Var(&f.wp, "wp", 1.0, "precision weight")
	fl.Float64Var(&f.wr, "wr", 1.0, "recall weight")
	fl.BoolVar(&f.sweep, "sweep", false, "run a threshold sweep")
	fl.Float32Var(&f.sweepMin, "sweep-min", 0.5, "sweep minimum threshold")
	fl.Float32Var(&f.sweepMax, "sweep-max", 1.0, "sweep maximum threshold (exclusive)")
	fl.Float32Var(&f.sweepStep, "sweep-step", 0.05, "sweep step size")

	cmd.AddCommand(newPrepareCommand())
	return cmd
}

func newPrepareCommand() *cobra.Command {
	var (
		outDir string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "prepare RAW...",
		Short: "Turn raw Project Gutenberg downloads into corpus files",
		Long: `Strip the Project Gutenberg preamble and license from each raw download, join
paragraphs onto single lines and write <name>.txt with Source, Title and Author
headers into the output directory. A "_raw" suffix is dropped from the name.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			for _, path := range args {
				dst, err := prepareBook(path, outDir, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), dst)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "testdata/corpus", "output directory")
	cmd.Flags().IntVar(&limit, "limit", 50000, "approximate maximum body size in bytes (0 = no limit)")
	return cmd
}

func prepareBook(path, outDir string, limit int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	raw := string(data)
	body := bench.ExtractGutenberg(raw, limit)
	if body == "" {
		return "", fmt.Errorf("%s: no book text found", path)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.TrimSuffix(name, "_raw")
	dst := filepath.Join(outDir, name+".txt")

	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if err := bench.WriteDocument(f, bench.GutenbergHeader(raw), body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("writing %s: %w", dst, err)
	}
	return dst, f.Close()
}

func printMetrics(w io.Writer, threshold float32, m bench.Metrics) {
	fmt.Fprintf(w, "%s %.3f\n", titleStyle.Render("Threshold:"), threshold)
	fmt.Fprintf(w, "Precision: %.2f  Recall: %.2f  F1: %.2f  Weighted: %.2f\n",
		m.Precision, m.Recall, m.F1, m.WeightedScore)
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("(TP: %d, FP: %d, FN: %d)",
		m.TruePositives, m.FalsePositives, m.FalseNegatives)))
}

func printSweep(w io.Writer, thresholds []float32, results []bench.SweepResult, cfg bench.Config) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Threshold Sweep Results (wp=%.1f, wr=%.1f)",
		cfg.PrecisionWeight, cfg.RecallWeight)))
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "%-8s %-8s %-8s %-8s %-8s\n", "Thresh", "Prec", "Rec", "F1", "Weighted")

	// Print sorted by threshold for readability
	for _, t := range thresholds {
		for _, r := range results {
			if r.Threshold == t {
				fmt.Fprintf(w, "%-8.3f %-8.2f %-8.2f %-8.2f %-8.2f\n",
					r.Threshold, r.Metrics.Precision, r.Metrics.Recall, r.Metrics.F1, r.Metrics.WeightedScore)
				break
			}
		}
	}

	fmt.Fprintln(w, strings.Repeat("-", 50))
	if len(results) > 0 {
		best := results[0]
		fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("Optimal: %.3f (Weighted: %.2f)",
			best.Threshold, best.Metrics.WeightedScore)))
	}
}
