package cli

import (
	"fmt"
	"os"

	"evaluation-service/internal/domain"
	pgstore "evaluation-service/internal/infra/postgres"
	redisinfra "evaluation-service/internal/infra/redis"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewSeedCmd loads a quiz definition file (YAML or JSON) into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Validate and upsert a quiz definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			quiz, err := readQuizFile(file)
			if err != nil {
				return err
			}

			b, err := openBackends(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer b.close()
			if err := b.requirePostgres(); err != nil {
				return err
			}

			if err := pgstore.NewQuizLoader(b.pool).SaveQuiz(ctx, quiz); err != nil {
				return err
			}
			if b.redis != nil {
				// The cache is rebuilt by the next session start.
				_ = redisinfra.NewQuizRepository(b.redis, nil, 0).Invalidate(ctx, quiz.ID)
			}
			log.Info().Str("quiz_id", quiz.ID).Int("questions", len(quiz.Questions)).Msg("quiz seeded")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "quiz definition file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readQuizFile(path string) (domain.Quiz, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Quiz{}, err
	}
	var quiz domain.Quiz
	if err := yaml.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if quiz.ID == "" {
		return domain.Quiz{}, fmt.Errorf("%w: %s has no id", domain.ErrInvalidQuiz, path)
	}
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}
