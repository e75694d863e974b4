package bench

import (
	"context"
	"sort"

	"github.com/jamesainslie/go-nnsplit"
)

// SweepResult holds metrics for one threshold value.
type SweepResult struct {
	Threshold float32
	Metrics   Metrics
}

// SweepThresholds generates threshold values from min to max with given step.
func SweepThresholds(min, max, step float32) []float32 {
	var thresholds []float32
	if step <= 0 {
		return nil
	}
	for t := min; t < max; t += step {
		thresholds = append(thresholds, t)
	}
	return thresholds
}

// Prober exposes the averaged model output; *nnsplit.Splitter implements it.
type Prober interface {
	Probabilities(ctx context.Context, texts []string) ([]nnsplit.Curve, error)
	Sequence() nnsplit.SplitSequence
}

// Sweep evaluates multiple thresholds and returns results sorted by weighted
// score. The model runs once; each threshold only rebuilds the trees.
func Sweep(ctx context.Context, p Prober, docs []*Document, cfg Config, thresholds []float32) ([]SweepResult, error) {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}

	curves, err := p.Probabilities(ctx, texts)
	if err != nil {
		return nil, err
	}

	seq := p.Sequence()
	results := make([]SweepResult, 0, len(thresholds))
	for _, threshold := range thresholds {
		ms := make([]Metrics, len(docs))
		for i, doc := range docs {
			split := seq.Build(doc.Text, curves[i], threshold)
			ms[i] = Evaluate(Boundaries(split), doc.Boundaries(), cfg)
		}
		results = append(results, SweepResult{
			Threshold: threshold,
			Metrics:   Sum(ms, cfg),
		})
	}

	// Sort by weighted score descending
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Metrics.WeightedScore > results[j].Metrics.WeightedScore
	})

	return results, nil
}
