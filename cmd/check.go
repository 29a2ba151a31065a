package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"library-circulation/library"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that book copy counts agree with the open loans",
		Long: `Reads the books and loans documents and reports every book whose available
copies are out of range or do not match its open loans, and every loan that
points at a missing book. Exits non-zero when anything is found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			violations, err := mgr.CheckConsistency(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(violations) == 0 {
				fmt.Fprintln(out, "Library data is consistent.")
				return nil
			}
			for _, v := range violations {
				fmt.Fprintln(out, v.String())
			}
			return library.ErrInconsistent.WithMessagef("%d problem(s) found", len(violations))
		},
	}
}
