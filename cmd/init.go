package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Seed the users, books and loans documents that do not exist yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			seeded, err := mgr.Seed(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(seeded) == 0 {
				fmt.Fprintln(out, "Nothing to seed; all documents already exist.")
				return nil
			}
			for _, c := range seeded {
				fmt.Fprintf(out, "Seeded %s\n", c)
			}
			return nil
		},
	}
}
