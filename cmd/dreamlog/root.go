package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dreamlog/dreamlog/internal/config"
	"github.com/dreamlog/dreamlog/internal/database"
	"github.com/dreamlog/dreamlog/internal/logging"
	"github.com/dreamlog/dreamlog/internal/usecase"
)

var (
	dbPath   string
	settings = config.DefaultSettings()
	logger   *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:          "dreamlog",
	Short:        "dreamlog - a dream journal",
	Long:         "dreamlog records dreams and their dreamsigns, and shows which dreamsigns keep coming back.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load("")
		if err != nil {
			return err
		}
		settings = loaded

		// stderr carries only the error cobra prints. mcp keeps logging there
		// since stdout is its protocol channel.
		logPath := settings.LogFile
		if logPath == "" && cmd.Name() != "mcp" {
			logPath = config.GetLogPath()
		}

		_ = logger.Close()
		logger, err = logging.New(logging.Options{
			Writer: cmd.ErrOrStderr(),
			Path:   logPath,
			Level:  settings.LogLevel,
		})
		return err
	},
	PersistentPostRunE: func(*cobra.Command, []string) error {
		return logger.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the journal database (default: data directory)")

	rootCmd.AddCommand(newAddCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newEditCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newSignsCmd())
	rootCmd.AddCommand(newSuggestCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newReindexCmd())
	rootCmd.AddCommand(newMCPCmd())
}

func baseLogger() zerolog.Logger {
	if logger == nil {
		return zerolog.Nop()
	}
	return logger.Logger
}

// openJournal opens the journal database. The returned function closes it.
func openJournal(ctx context.Context) (*usecase.Journal, func(), error) {
	dbCtx, err := database.CreateDatabase(dbPath)
	if err != nil {
		return nil, nil, err
	}

	journal, err := usecase.NewJournal(ctx, dbCtx, baseLogger())
	if err != nil {
		_ = database.CloseDatabase(dbCtx)
		return nil, nil, err
	}

	return journal, func() {
		_ = database.CloseDatabase(dbCtx)
	}, nil
}
