package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"surveychat/internal/app"
	"surveychat/internal/config"
	"surveychat/internal/logging"
	"surveychat/internal/service"
)

//go:embed surveys.yaml
var defaultSurveys []byte

func main() {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo surveys into the configured store",
		Long: `Load demo surveys for the configured author account.

Surveys whose title the author already has are skipped, so seeding twice is
harmless. Without --file the built-in demo set is used.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data := defaultSurveys
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				data = b
			}
			return run(cmd.Context(), data)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with surveys to load")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, data []byte) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Store == config.StoreMemory {
		return errors.New("seeding the in-memory store has no effect; set STORE=mongo")
	}
	logger, err := logging.New(cfg.LogLevel, "console")
	if err != nil {
		return err
	}
	defer logger.Sync()

	surveys, err := parseSeed(data)
	if err != nil {
		return err
	}

	stores, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close(context.Background())

	authorID := service.AuthorID(cfg.Auth.Username)
	existing, err := stores.SurveyRepo.ListByAuthor(ctx, authorID)
	if err != nil {
		return fmt.Errorf("list surveys: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, sv := range existing {
		have[sv.Title] = true
	}

	created := 0
	for _, s := range surveys {
		survey := s.survey(authorID)
		if have[survey.Title] {
			logger.Info("survey exists, skipping", zap.String("title", survey.Title))
			continue
		}
		id, err := stores.SurveyRepo.Create(ctx, survey)
		if err != nil {
			return fmt.Errorf("insert survey %q: %w", survey.Title, err)
		}
		created++
		logger.Info("survey created",
			zap.String("survey_id", id),
			zap.String("title", survey.Title),
			zap.String("status", string(survey.Status)),
			zap.Int("questions", len(survey.Questions)))
	}

	fmt.Printf("Seeded %d of %d surveys for author '%s'\n", created, len(surveys), authorID)
	return nil
}
