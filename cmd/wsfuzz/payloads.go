package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPayloadsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payloads",
		Short: "List the available payload sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := a.catalog()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, name := range catalog.Names() {
				items, _ := catalog.Get(name)
				fmt.Fprintf(w, "%s%s\n", styleKey.Render(name), styleMuted.Render(fmt.Sprintf("%d payloads", len(items))))
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show NAME",
		Short: "Print one payload set, one payload per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := a.catalog()
			if err != nil {
				return err
			}
			items, err := catalog.Lookup(args[0])
			if err != nil {
				return err
			}
			for _, it := range items {
				fmt.Fprintln(cmd.OutOrStdout(), it)
			}
			return nil
		},
	})
	return cmd
}
