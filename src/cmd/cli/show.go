package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"screen-capture-extractor/src/runtimeinit"
	"screen-capture-extractor/src/view"
)

func newShowCmd(root *cliOptions, e *env) *cobra.Command {
	var tail int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print an overview and the newest rows of the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := root.bootstrap(cmd.Context(), e, runtimeinit.Options{})
			if err != nil {
				return err
			}
			defer rt.Close()

			t, err := rt.Store.Load()
			if err != nil {
				return err
			}
			if err := view.Summarize(t).Write(e.stdout); err != nil {
				return err
			}
			if tail > 0 && len(t.Rows) > tail {
				t.Rows = t.Rows[len(t.Rows)-tail:]
			}
			if _, err := fmt.Fprintln(e.stdout); err != nil {
				return err
			}
			return view.Render(e.stdout, t, 0)
		},
	}
	cmd.Flags().IntVar(&tail, "tail", 10, "Number of newest rows to print (0 for all)")
	return cmd
}
