package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dkalashnik/telegram-session-log/pkg/config"
	"github.com/dkalashnik/telegram-session-log/pkg/storage"
)

var version = "dev"

type rootOptions struct {
	configPath        string
	questionnairePath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sessionlog",
		Short: "Session debrief bot for Telegram",
		Long: `sessionlog interviews players after each session over Telegram, stores the
answers in a JSON file and reports cumulative results and mistake statistics.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err == nil {
				log.Printf("Loaded environment from .env")
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "sessionlog.yaml", "Settings file (optional)")
	cmd.PersistentFlags().StringVar(&opts.questionnairePath, "questionnaire", "", "Questionnaire YAML file (overrides settings)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newImportLegacyCommand(opts))

	return cmd
}

func execute() error {
	return newRootCommand().Execute()
}

// app holds what every subcommand needs: settings, questionnaire and the record store.
type app struct {
	settings      *config.Settings
	questionnaire *config.Questionnaire
	store         *storage.FileStore
}

func loadApp(opts *rootOptions) (*app, error) {
	settings, err := config.LoadSettings(opts.configPath)
	if err != nil {
		return nil, err
	}

	questionnairePath := settings.Questionnaire
	if opts.questionnairePath != "" {
		questionnairePath = opts.questionnairePath
	}
	q, err := config.LoadQuestionnaire(questionnairePath)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewFileStore(settings.Storage.DataFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	return &app{settings: settings, questionnaire: q, store: store}, nil
}
