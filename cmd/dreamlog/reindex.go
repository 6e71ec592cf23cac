package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the dreamsign index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			journal, closeJournal, err := openJournal(cmd.Context())
			if err != nil {
				return err
			}
			defer closeJournal()

			if err := journal.Reindex(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Dreamsign index rebuilt")
			return nil
		},
	}
}
