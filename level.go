package nnsplit

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// hiddenPrefix marks levels that move boundaries without adding tree depth.
const hiddenPrefix = "_"

// Level is one layer of the segmentation hierarchy.
type Level struct {
	Name string
}

// Hidden reports whether the level is excluded from the output tree.
func (l Level) Hidden() bool {
	return strings.HasPrefix(l.Name, hiddenPrefix)
}

// SplitSequence is the ordered list of levels a model predicts. The index of a
// level is also its channel in the model output.
type SplitSequence struct {
	levels []Level
}

// NewSplitSequence builds a sequence from level names in model channel order.
func NewSplitSequence(names ...string) SplitSequence {
	return SplitSequence{levels: lo.Map(names, func(name string, _ int) Level {
		return Level{Name: name}
	})}
}

// ParseSplitSequence decodes the split_sequence model metadata. Both a plain
// JSON list of names and an object with a "levels" list are accepted.
func ParseSplitSequence(data string) (SplitSequence, error) {
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		var wrapped struct {
			Levels []string `json:"levels"`
		}
		if err2 := json.Unmarshal([]byte(data), &wrapped); err2 != nil {
			return SplitSequence{}, fmt.Errorf("%w: split_sequence: %w", ErrMalformedMetadata, err)
		}
		names = wrapped.Levels
	}
	if len(names) == 0 {
		return SplitSequence{}, fmt.Errorf("%w: split_sequence has no levels", ErrMalformedMetadata)
	}
	for i, name := range names {
		if name == "" {
			return SplitSequence{}, fmt.Errorf("%w: split_sequence level %d is empty", ErrMalformedMetadata, i)
		}
	}
	return NewSplitSequence(names...), nil
}

// Len returns the number of levels, hidden ones included.
func (s SplitSequence) Len() int {
	return len(s.levels)
}

// Level returns the level at channel i.
func (s SplitSequence) Level(i int) Level {
	return s.levels[i]
}

// All returns a copy of every level in channel order.
func (s SplitSequence) All() []Level {
	return append([]Level(nil), s.levels...)
}

// Visible returns the levels that produce tree depth, in hierarchy order.
func (s SplitSequence) Visible() []Level {
	return lo.Filter(s.levels, func(l Level, _ int) bool {
		return !l.Hidden()
	})
}

// Names returns the visible level names in hierarchy order.
func (s SplitSequence) Names() []string {
	return lo.Map(s.Visible(), func(l Level, _ int) string {
		return l.Name
	})
}

// Index returns the channel of the level with the given name, or -1.
func (s SplitSequence) Index(name string) int {
	_, i, ok := lo.FindIndexOf(s.levels, func(l Level) bool {
		return l.Name == name
	})
	if !ok {
		return -1
	}
	return i
}

// group is a visible level together with the hidden levels that refine it.
type group struct {
	level  int
	hidden []int
}

// groups attaches every hidden level to the nearest preceding visible level.
// Hidden levels before the first visible level attach to that level.
func (s SplitSequence) groups() []group {
	var out []group
	var pending []int
	for i, l := range s.levels {
		if l.Hidden() {
			if len(out) == 0 {
				pending = append(pending, i)
			} else {
				last := &out[len(out)-1]
				last.hidden = append(last.hidden, i)
			}
			continue
		}
		out = append(out, group{level: i, hidden: pending})
		pending = nil
	}
	return out
}
