package nnsplit

import (
	"context"
	"sync"

	"google.golang.org/protobuf/encoding/protowire"
)

// rule reports whether position j of window w is a boundary for one level.
type rule func(w []byte, j int) bool

// rulePredictor labels every window position with 1 where a level's rule
// holds and 0 elsewhere. It only sees window bytes, like a real model.
type rulePredictor struct {
	rules []rule
	err   error

	mu         sync.Mutex
	calls      int
	batchSizes []int
}

func (p *rulePredictor) Predict(ctx context.Context, windows [][]byte, batchSize int) ([][]float32, error) {
	p.mu.Lock()
	p.calls++
	p.batchSizes = append(p.batchSizes, batchSize)
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.err != nil {
		return nil, p.err
	}

	levels := len(p.rules)
	out := make([][]float32, len(windows))
	for i, w := range windows {
		row := make([]float32, len(w)*levels)
		for j := range w {
			for l, r := range p.rules {
				if r(w, j) {
					row[j*levels+l] = 1
				}
			}
		}
		out[i] = row
	}
	return out, nil
}

func isByte(c byte) rule {
	return func(w []byte, j int) bool { return w[j] == c }
}

func never(_ []byte, _ int) bool { return false }

// curveWith returns a curve over text where the listed positions of each
// level are 1 and everything else is 0.
func curveWith(text string, levels int, marks map[int][]int) Curve {
	values := make([]float32, len(text)*levels)
	for level, positions := range marks {
		for _, pos := range positions {
			values[pos*levels+level] = 1
		}
	}
	return NewCurve(values, levels)
}

// onnxModel serializes a minimal ModelProto with one input, one output of
// shape [batch, length, channels] and the given metadata.
func onnxModel(metadata map[string]string, channels int64) []byte {
	dim := func(value int64) []byte {
		var d []byte
		if value > 0 {
			d = protowire.AppendTag(d, 1, protowire.VarintType)
			d = protowire.AppendVarint(d, uint64(value))
		} else {
			d = protowire.AppendTag(d, 2, protowire.BytesType)
			d = protowire.AppendString(d, "dyn")
		}
		return d
	}
	valueInfo := func(name string, dims ...int64) []byte {
		var shape []byte
		for _, v := range dims {
			shape = protowire.AppendTag(shape, 1, protowire.BytesType)
			shape = protowire.AppendBytes(shape, dim(v))
		}
		var tensor []byte
		tensor = protowire.AppendTag(tensor, 1, protowire.VarintType)
		tensor = protowire.AppendVarint(tensor, 1)
		tensor = protowire.AppendTag(tensor, 2, protowire.BytesType)
		tensor = protowire.AppendBytes(tensor, shape)
		var typ []byte
		typ = protowire.AppendTag(typ, 1, protowire.BytesType)
		typ = protowire.AppendBytes(typ, tensor)
		var vi []byte
		vi = protowire.AppendTag(vi, 1, protowire.BytesType)
		vi = protowire.AppendString(vi, name)
		vi = protowire.AppendTag(vi, 2, protowire.BytesType)
		vi = protowire.AppendBytes(vi, typ)
		return vi
	}

	var graph []byte
	graph = protowire.AppendTag(graph, 11, protowire.BytesType)
	graph = protowire.AppendBytes(graph, valueInfo("input", 0, 0))
	graph = protowire.AppendTag(graph, 12, protowire.BytesType)
	graph = protowire.AppendBytes(graph, valueInfo("output", 0, 0, channels))

	var model []byte
	model = protowire.AppendTag(model, 1, protowire.VarintType)
	model = protowire.AppendVarint(model, 7)
	model = protowire.AppendTag(model, 7, protowire.BytesType)
	model = protowire.AppendBytes(model, graph)
	for k, v := range metadata {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = protowire.AppendTag(entry, 2, protowire.BytesType)
		entry = protowire.AppendString(entry, v)
		model = protowire.AppendTag(model, 14, protowire.BytesType)
		model = protowire.AppendBytes(model, entry)
	}
	return model
}
