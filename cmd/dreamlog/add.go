package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dreamlog/dreamlog/internal/services"
	"github.com/dreamlog/dreamlog/internal/usecase"
)

func newAddCmd() *cobra.Command {
	var (
		date        string
		title       string
		description string
		signs       string
		filePath    string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a dream",
		Long:  "Record a dream. The description is read from --file or stdin when --description is not given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(title) == "" {
				return &services.Error{Op: "record", Kind: services.ErrValidation, Err: usecase.ErrIncomplete}
			}
			if strings.TrimSpace(description) == "" {
				content, err := readContent(cmd, filePath)
				if err != nil {
					return err
				}
				description = content
			}

			journal, closeJournal, err := openJournal(cmd.Context())
			if err != nil {
				return err
			}
			defer closeJournal()

			dream, err := journal.Record(cmd.Context(), usecase.RecordInput{
				Date:        date,
				Title:       title,
				Description: description,
				Dreamsigns:  usecase.ParseDreamsigns(signs),
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), dream.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Date of the dream as YYYY-MM-DD (default: today)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Title of the dream")
	cmd.Flags().StringVarP(&description, "description", "d", "", "What happened in the dream")
	cmd.Flags().StringVarP(&signs, "signs", "s", "", "Comma separated dreamsigns")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Read the description from a file instead of stdin")

	return cmd
}

func readContent(cmd *cobra.Command, filePath string) (string, error) {
	if filePath != "" {
		//nolint:gosec // G304: the user names the file
		bytes, err := os.ReadFile(filePath)
		if err != nil {
			return "", err
		}
		return string(bytes), nil
	}

	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) != 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "Describe the dream (Ctrl-D when done):")
	}

	bytes, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
