package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLevelsCommand(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "levels",
		Short: "List the levels the model splits into",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sp, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = sp.Close() }()

			out := cmd.OutOrStdout()
			if !all {
				for _, name := range sp.Levels() {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			for _, l := range sp.Sequence().All() {
				if l.Hidden() {
					fmt.Fprintln(out, l.Name, dimStyle.Render("(hidden)"))
					continue
				}
				fmt.Fprintln(out, l.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include hidden levels")
	return cmd
}
