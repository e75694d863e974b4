package nnsplit

import (
	"encoding/json"
	"strings"
)

// Kind distinguishes leaves from internal nodes of a Split tree.
type Kind uint8

const (
	// KindText is a leaf holding a text fragment.
	KindText Kind = iota
	// KindNode is a span with ordered child splits.
	KindNode
)

// Split is one node of a segmentation tree. A KindNode split's parts
// concatenate to exactly its Text; a KindText split has no parts.
type Split struct {
	Kind  Kind
	Text  string
	Parts []Split
}

// Text returns a leaf split.
func Text(text string) Split {
	return Split{Kind: KindText, Text: text}
}

// Node returns an internal split. It panics if parts is empty, since every
// node covers its text with at least one child.
func Node(text string, parts []Split) Split {
	if len(parts) == 0 {
		panic("nnsplit: node without parts")
	}
	return Split{Kind: KindNode, Text: text, Parts: parts}
}

// IsLeaf reports whether s is a text fragment.
func (s Split) IsLeaf() bool {
	return s.Kind == KindText
}

// Depth returns the number of node layers above the deepest leaf.
func (s Split) Depth() int {
	if s.Kind == KindText {
		return 0
	}
	d := 0
	for _, p := range s.Parts {
		d = max(d, p.Depth())
	}
	return d + 1
}

// Flatten returns the texts of all units at the given depth below s, where 0
// is the immediate parts. Leaves reached before that depth are returned as is.
func (s Split) Flatten(level int) []string {
	if s.Kind == KindText {
		return []string{s.Text}
	}
	var out []string
	for _, p := range s.Parts {
		if level == 0 {
			out = append(out, p.Text)
			continue
		}
		out = append(out, p.Flatten(level-1)...)
	}
	return out
}

// Leaves returns every leaf text in order.
func (s Split) Leaves() []string {
	var out []string
	s.Walk(func(n Split, _ int) bool {
		if n.Kind == KindText {
			out = append(out, n.Text)
		}
		return true
	})
	return out
}

// Walk visits s and its descendants depth-first in order. depth is 0 for s.
// Returning false from fn skips the children of that split.
func (s Split) Walk(fn func(s Split, depth int) bool) {
	s.walk(fn, 0)
}

func (s Split) walk(fn func(Split, int) bool, depth int) {
	if !fn(s, depth) || s.Kind == KindText {
		return
	}
	for _, p := range s.Parts {
		p.walk(fn, depth+1)
	}
}

// String returns the concatenation of all leaves.
func (s Split) String() string {
	if s.Kind == KindText {
		return s.Text
	}
	var sb strings.Builder
	for _, leaf := range s.Leaves() {
		sb.WriteString(leaf)
	}
	return sb.String()
}

// MarshalJSON encodes leaves as strings and nodes as {"text", "parts"}.
func (s Split) MarshalJSON() ([]byte, error) {
	if s.Kind == KindText {
		return json.Marshal(s.Text)
	}
	return json.Marshal(struct {
		Text  string  `json:"text"`
		Parts []Split `json:"parts"`
	}{s.Text, s.Parts})
}

// UnmarshalJSON decodes the format written by MarshalJSON.
func (s *Split) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = Text(text)
		return nil
	}
	var node struct {
		Text  string  `json:"text"`
		Parts []Split `json:"parts"`
	}
	if err := json.Unmarshal(data, &node); err != nil {
		return err
	}
	*s = Split{Kind: KindNode, Text: node.Text, Parts: node.Parts}
	return nil
}
