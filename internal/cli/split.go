package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/go-nnsplit"
)

func newSplitCommand(a *app) *cobra.Command {
	var (
		file   string
		level  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "split [TEXT...]",
		Short: "Split texts and print the resulting trees",
		Long: `Split each argument as a separate text. With --file the file contents are a
single text; with neither, standard input is read.

By default every text is printed as a tree. --level N prints the units at
depth N (0 is the top level) one per line, and --json prints the trees as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := readTexts(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}

			sp, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = sp.Close() }()

			levels := sp.Levels()
			if level >= len(levels) && len(levels) > 0 {
				return fmt.Errorf("--level %d out of range: model has %d levels (%s)",
					level, len(levels), strings.Join(levels, ", "))
			}

			splits, err := sp.Split(cmd.Context(), texts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				return writeJSON(out, splits)
			case level >= 0:
				return writeLevel(out, splits, level)
			}
			for _, s := range splits {
				if _, err := fmt.Fprintln(out, renderTree(s, levels)); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the text from a file")
	cmd.Flags().IntVarP(&level, "level", "l", -1, "print the units at this depth, one per line")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the trees as JSON")
	cmd.MarkFlagsMutuallyExclusive("json", "level")
	return cmd
}

func readTexts(stdin io.Reader, file string, args []string) ([]string, error) {
	switch {
	case file != "" && len(args) > 0:
		return nil, errors.New("pass either --file or TEXT arguments, not both")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		return []string{string(data)}, nil
	case len(args) > 0:
		return args, nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("no text provided")
	}
	return []string{string(data)}, nil
}

func writeJSON(w io.Writer, splits []nnsplit.Split) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(splits)
}

func writeLevel(w io.Writer, splits []nnsplit.Split, level int) error {
	for _, s := range splits {
		for _, unit := range s.Flatten(level) {
			if _, err := fmt.Fprintf(w, "%q\n", unit); err != nil {
				return err
			}
		}
	}
	return nil
}

// renderTree draws s with one item per unit. The root names the levels from
// the top down.
func renderTree(s nnsplit.Split, levels []string) *tree.Tree {
	label := "Text"
	if len(levels) > 0 {
		label = strings.Join(levels, " › ")
	}
	t := tree.Root(titleStyle.Render(label)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(dimStyle)

	if s.IsLeaf() {
		return t.Child(depthStyle(0).Render(strconv.Quote(s.Text)))
	}
	addParts(t, s, 0)
	return t
}

func addParts(t *tree.Tree, s nnsplit.Split, depth int) {
	for _, p := range s.Parts {
		label := depthStyle(depth).Render(strconv.Quote(p.Text))
		if p.IsLeaf() {
			t.Child(label)
			continue
		}
		sub := tree.Root(label).
			Enumerator(tree.RoundedEnumerator).
			EnumeratorStyle(dimStyle)
		addParts(sub, p, depth+1)
		t.Child(sub)
	}
}
