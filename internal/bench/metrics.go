package bench

import (
	"context"

	"github.com/jamesainslie/go-nnsplit"
)

// Config holds evaluation parameters.
type Config struct {
	Tolerance       int // byte match tolerance
	PrecisionWeight float64
	RecallWeight    float64
}

// DefaultConfig returns default evaluation configuration.
func DefaultConfig() Config {
	return Config{
		Tolerance:       3,
		PrecisionWeight: 1.0,
		RecallWeight:    1.0,
	}
}

// Metrics holds evaluation results.
type Metrics struct {
	TruePositives  int
	FalsePositives int
	FalseNegatives int
	Precision      float64
	Recall         float64
	F1             float64
	WeightedScore  float64
}

// Score derives the ratios from raw counts.
func Score(tp, fp, fn int, cfg Config) Metrics {
	m := Metrics{
		TruePositives:  tp,
		FalsePositives: fp,
		FalseNegatives: fn,
	}

	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}

	wp := cfg.PrecisionWeight
	wr := cfg.RecallWeight
	if wp+wr > 0 {
		m.WeightedScore = (wp*m.Precision + wr*m.Recall) / (wp + wr)
	}

	return m
}

// Sum adds the counts of ms and scores the totals.
func Sum(ms []Metrics, cfg Config) Metrics {
	var tp, fp, fn int
	for _, m := range ms {
		tp += m.TruePositives
		fp += m.FalsePositives
		fn += m.FalseNegatives
	}
	return Score(tp, fp, fn, cfg)
}

// Evaluate compares predicted boundaries against ground truth.
// Uses greedy left-to-right matching within tolerance.
func Evaluate(predicted, truth []int, cfg Config) Metrics {
	matched := make([]bool, len(truth))
	tp := 0

	for _, p := range predicted {
		for i, t := range truth {
			if matched[i] {
				continue
			}
			diff := p - t
			if diff < 0 {
				diff = -diff
			}
			if diff <= cfg.Tolerance {
				matched[i] = true
				tp++
				break
			}
		}
	}

	return Score(tp, len(predicted)-tp, len(truth)-tp, cfg)
}

// Boundaries returns the byte offsets where the top-level parts of s meet.
func Boundaries(s nnsplit.Split) []int {
	if s.IsLeaf() || len(s.Parts) < 2 {
		return nil
	}
	out := make([]int, 0, len(s.Parts)-1)
	pos := 0
	for _, p := range s.Parts[:len(s.Parts)-1] {
		pos += len(p.Text)
		out = append(out, pos)
	}
	return out
}

// Segmenter splits texts into trees; *nnsplit.Splitter implements it.
type Segmenter interface {
	Split(ctx context.Context, texts []string) ([]nnsplit.Split, error)
}

// EvaluateDocument splits doc and scores its top-level boundaries.
func EvaluateDocument(ctx context.Context, seg Segmenter, doc *Document, cfg Config) (Metrics, error) {
	splits, err := seg.Split(ctx, []string{doc.Text})
	if err != nil {
		return Metrics{}, err
	}
	return Evaluate(Boundaries(splits[0]), doc.Boundaries(), cfg), nil
}

// EvaluateCorpus scores every document and returns the summed metrics.
func EvaluateCorpus(ctx context.Context, seg Segmenter, docs []*Document, cfg Config) (Metrics, error) {
	ms := make([]Metrics, 0, len(docs))
	for _, doc := range docs {
		m, err := EvaluateDocument(ctx, seg, doc, cfg)
		if err != nil {
			return Metrics{}, err
		}
		ms = append(ms, m)
	}
	return Sum(ms, cfg), nil
}
