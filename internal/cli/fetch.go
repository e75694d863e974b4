package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/go-nnsplit/resource"
)

func newFetchCommand(a *app) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "fetch [NAME...]",
		Short: "Download models into the cache",
		Long: `Download the named models into the cache and print where each is stored.
Already cached models are not downloaded again. --list prints the known names.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := a.cfg.Registry()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if list {
				for _, name := range registry.Names() {
					u, _ := registry.URL(name, "")
					fmt.Fprintf(out, "%s\t%s\n", name, dimStyle.Render(u))
				}
				return nil
			}

			names := args
			if len(names) == 0 {
				names = []string{a.cfg.Model}
			}

			loader, err := resource.NewLoader(registry, a.cfg.CacheDir, nil, a.logger)
			if err != nil {
				return err
			}
			for _, name := range names {
				_, path, err := loader.Get(cmd.Context(), name, "model.onnx")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list registered model names")
	return cmd
}
