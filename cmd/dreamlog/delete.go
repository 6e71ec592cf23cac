package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a dream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			journal, closeJournal, err := openJournal(ctx)
			if err != nil {
				return err
			}
			defer closeJournal()

			id, err := journal.ResolveID(ctx, args[0])
			if err != nil {
				return err
			}
			dream, err := journal.Show(ctx, id)
			if err != nil {
				return err
			}

			// Confirmation prompt
			if !force {
				reader := bufio.NewReader(cmd.InOrStdin())
				fmt.Fprintf(cmd.ErrOrStderr(), "Delete dream '%s' from %s? (y/N) ", dream.Title, dream.Date)
				answer, err := reader.ReadString('\n')
				if err != nil {
					return err
				}

				answer = strings.TrimSpace(strings.ToLower(answer))
				if answer != "y" {
					fmt.Fprintln(cmd.OutOrStdout(), "Deletion cancelled")
					return nil
				}
			}

			if err := journal.Forget(ctx, dream.ID, dream.Rev); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted dream '%s'\n", dream.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")

	return cmd
}
