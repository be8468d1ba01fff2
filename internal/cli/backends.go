package cli

import (
	"context"
	"fmt"

	"evaluation-service/internal/config"
	pgstore "evaluation-service/internal/infra/postgres"
	"evaluation-service/internal/logger"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
)

// backends holds the optional external connections named in the config.
type backends struct {
	redis *redis.Client
	pool  *pgxpool.Pool
	db    *bun.DB
}

func loadConfig(path string) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, zerolog.Nop(), fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, logger.Setup(cfg.Log.Level, cfg.Log.Format), nil
}

func openBackends(ctx context.Context, cfg config.Config, log zerolog.Logger) (*backends, error) {
	b := &backends{}
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
		b.db = pgstore.OpenDB(cfg.Postgres.URL)
		log.Info().Msg("connected to postgres")
	}
	return b, nil
}

func (b *backends) requirePostgres() error {
	if b.pool == nil || b.db == nil {
		return fmt.Errorf("postgres url not configured")
	}
	return nil
}

func (b *backends) close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}
