package cli

import (
	"fmt"

	"evaluation-service/internal/app"
	pgstore "evaluation-service/internal/infra/postgres"
	redisinfra "evaluation-service/internal/infra/redis"
	"github.com/spf13/cobra"
)

// NewReconcileCmd drains queued result records into Postgres.
func NewReconcileCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Persist result records queued after store failures",
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
			if b.redis == nil {
				return fmt.Errorf("redis addr not configured")
			}

			reconciler := app.NewReconciler(pgstore.NewResultStore(b.db), redisinfra.NewResultQueue(b.redis), log)
			saved, err := reconciler.Drain(ctx)
			log.Info().Int("saved", saved).Msg("reconciliation finished")
			return err
		},
	}
}
