package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSuggestCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "Complete a dreamsign from the ones already recorded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") {
				limit = settings.SuggestLimit
			}

			journal, closeJournal, err := openJournal(cmd.Context())
			if err != nil {
				return err
			}
			defer closeJournal()

			suggestions, err := journal.Suggest(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			for _, sign := range suggestions {
				fmt.Fprintln(cmd.OutOrStdout(), sign)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of suggestions")

	return cmd
}
