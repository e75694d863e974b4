package nnsplit

import (
	"fmt"
	"unicode/utf8"
)

// span is a half-open byte range [start, end) of the text being split.
type span struct {
	start, end int
}

// Build carves text into a Split tree using curve, which must hold one row of
// s.Len() probabilities per byte of text. Each visible level adds one depth;
// hidden levels only add boundaries to the visible level they refine.
func (s SplitSequence) Build(text string, curve Curve, threshold float32) Split {
	if curve.Len() != len(text) {
		panic(fmt.Sprintf("nnsplit: curve covers %d bytes, text has %d", curve.Len(), len(text)))
	}
	if curve.Levels() != s.Len() && len(text) > 0 {
		panic(fmt.Sprintf("nnsplit: curve has %d levels, sequence has %d", curve.Levels(), s.Len()))
	}

	b := builder{
		text:      text,
		curve:     curve,
		threshold: threshold,
		groups:    s.groups(),
	}
	return b.node(span{0, len(text)}, 0)
}

type builder struct {
	text      string
	curve     Curve
	threshold float32
	groups    []group
}

func (b *builder) node(sp span, depth int) Split {
	text := b.text[sp.start:sp.end]
	if depth == len(b.groups) {
		return Text(text)
	}

	g := b.groups[depth]
	spans := spansAt(sp, b.boundaries(sp, g.level))
	for _, h := range g.hidden {
		spans = refineSpans(spans, b.boundaries(sp, h))
	}

	parts := make([]Split, len(spans))
	for i, child := range spans {
		parts[i] = b.node(child, depth+1)
	}
	return Node(text, parts)
}

// boundaries returns the cut positions of level inside sp. A run of
// consecutive above-threshold bytes yields one cut after its last byte, moved
// forward to the next rune start. Cuts are strictly inside sp and ascending.
func (b *builder) boundaries(sp span, level int) []int {
	var cuts []int
	for i := sp.start; i < sp.end; i++ {
		if b.curve.At(i, level) <= b.threshold {
			continue
		}
		if i+1 < sp.end && b.curve.At(i+1, level) > b.threshold {
			continue
		}
		cut := i + 1
		for cut < sp.end && !utf8.RuneStart(b.text[cut]) {
			cut++
		}
		if cut >= sp.end {
			break
		}
		if len(cuts) == 0 || cuts[len(cuts)-1] < cut {
			cuts = append(cuts, cut)
		}
	}
	return cuts
}

// spansAt partitions sp at the given ascending cuts. The result always has at
// least one span.
func spansAt(sp span, cuts []int) []span {
	out := make([]span, 0, len(cuts)+1)
	prev := sp.start
	for _, c := range cuts {
		out = append(out, span{prev, c})
		prev = c
	}
	return append(out, span{prev, sp.end})
}

// refineSpans splits spans at every hidden-level cut that falls strictly inside
// one of them. Cuts that coincide with existing span edges change nothing, so
// a hidden level can move where trailing bytes attach but never drops bytes or
// produces empty spans.
func refineSpans(spans []span, cuts []int) []span {
	if len(cuts) == 0 {
		return spans
	}
	out := make([]span, 0, len(spans)+len(cuts))
	c := 0
	for _, sp := range spans {
		for c < len(cuts) && cuts[c] <= sp.start {
			c++
		}
		prev := sp.start
		for c < len(cuts) && cuts[c] < sp.end {
			out = append(out, span{prev, cuts[c]})
			prev = cuts[c]
			c++
		}
		out = append(out, span{prev, sp.end})
	}
	return out
}
