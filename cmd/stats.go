package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how many books are issued and overdue",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.openSeeded(cmd)
			if err != nil {
				return err
			}
			defer mgr.Close()

			stats, err := mgr.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Books issued:  %d\n", stats.Issued)
			fmt.Fprintf(out, "Books overdue: %d\n", stats.Overdue)
			return nil
		},
	}
}
