package cli

import (
	"os"

	"evaluation-service/internal/export"
	pgstore "evaluation-service/internal/infra/postgres"
	"github.com/spf13/cobra"
)

// NewExportCmd writes the result records of one quiz to an XLSX workbook.
func NewExportCmd(configPath *string) *cobra.Command {
	var quizID, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export quiz results to XLSX",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadConfig(*configPath)
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

			quiz, err := pgstore.NewQuizLoader(b.pool).LoadQuiz(ctx, quizID)
			if err != nil {
				return err
			}
			results, err := pgstore.NewResultStore(b.db).ListResults(ctx, quizID)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := export.WriteResults(f, quiz, results); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			log.Info().Str("quiz_id", quizID).Int("rows", len(results)).Str("file", out).Msg("results exported")
			return nil
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", "", "quiz id")
	cmd.Flags().StringVar(&out, "out", "results.xlsx", "output file")
	_ = cmd.MarkFlagRequired("quiz")
	return cmd
}
