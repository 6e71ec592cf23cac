package main

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dreamlog/dreamlog/internal/services"
	"github.com/dreamlog/dreamlog/internal/usecase"
)

// editableDream is the document opened in $EDITOR.
type editableDream struct {
	Date        string   `yaml:"date"`
	Title       string   `yaml:"title"`
	Dreamsigns  []string `yaml:"dreamsigns"`
	Description string   `yaml:"description"`
}

func newEditCmd() *cobra.Command {
	var (
		date        string
		title       string
		description string
		signs       string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a dream with flags or $EDITOR",
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

			input := usecase.ReviseInput{ID: id}
			flags := cmd.Flags()
			if flags.Changed("date") {
				input.Date = &date
			}
			if flags.Changed("title") {
				input.Title = &title
			}
			if flags.Changed("description") {
				input.Description = &description
			}
			if flags.Changed("signs") {
				parsed := usecase.ParseDreamsigns(signs)
				input.Dreamsigns = &parsed
			}

			if input.Date == nil && input.Title == nil && input.Description == nil && input.Dreamsigns == nil {
				current, err := journal.Show(ctx, id)
				if err != nil {
					return err
				}
				edited, changed, err := editInEditor(current)
				if err != nil {
					return err
				}
				if !changed {
					fmt.Fprintln(cmd.OutOrStdout(), "No changes made")
					return nil
				}
				input = usecase.ReviseInput{
					ID:          id,
					Rev:         current.Rev,
					Date:        &edited.Date,
					Title:       &edited.Title,
					Description: &edited.Description,
					Dreamsigns:  &edited.Dreamsigns,
				}
			}

			if _, err := journal.Revise(ctx, input); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Dream updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "New date as YYYY-MM-DD")
	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringVarP(&signs, "signs", "s", "", "New comma separated dreamsigns")

	return cmd
}

// editInEditor opens dream as YAML in the user's editor and returns the edited
// fields. changed is false when the file was saved untouched.
func editInEditor(dream *services.Dream) (editableDream, bool, error) {
	current, err := marshalEditable(dream)
	if err != nil {
		return editableDream{}, false, err
	}

	tempDir, err := os.MkdirTemp("", "dreamlog-edit-")
	if err != nil {
		return editableDream{}, false, err
	}
	defer os.RemoveAll(tempDir)

	tempFile := filepath.Join(tempDir, "dream.yaml")
	if err := os.WriteFile(tempFile, current, 0o600); err != nil {
		return editableDream{}, false, err
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		editor = "vi"
	}

	//nolint:gosec // G204: the editor comes from the user's environment
	editorCmd := exec.Command(editor, tempFile)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return editableDream{}, false, fmt.Errorf("editor exited with error: %w", err)
	}

	//nolint:gosec // G304: the file was created above
	editedContent, err := os.ReadFile(tempFile)
	if err != nil {
		return editableDream{}, false, err
	}

	if sha256.Sum256(current) == sha256.Sum256(editedContent) {
		return editableDream{}, false, nil
	}

	edited, err := unmarshalEditable(editedContent)
	if err != nil {
		return editableDream{}, false, err
	}
	return edited, true, nil
}

func marshalEditable(dream *services.Dream) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(editableDream{
		Date:        dream.Date,
		Title:       dream.Title,
		Dreamsigns:  dream.Dreamsigns,
		Description: dream.Description,
	}); err != nil {
		return nil, fmt.Errorf("failed to render dream: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to render dream: %w", err)
	}
	return buf.Bytes(), nil
}

func unmarshalEditable(content []byte) (editableDream, error) {
	var edited editableDream
	if err := yaml.Unmarshal(content, &edited); err != nil {
		return editableDream{}, fmt.Errorf("failed to parse edited dream: %w", err)
	}
	if edited.Dreamsigns == nil {
		edited.Dreamsigns = []string{}
	}
	return edited, nil
}
