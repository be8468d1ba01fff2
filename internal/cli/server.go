package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"evaluation-service/internal/app"
	"evaluation-service/internal/config"
	"evaluation-service/internal/domain"
	"evaluation-service/internal/infra/memory"
	pgstore "evaluation-service/internal/infra/postgres"
	redisinfra "evaluation-service/internal/infra/redis"
	transport "evaluation-service/internal/transport/http"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the evaluation server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	wired := buildService(cfg, b, log)

	runCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	if wired.reconciler != nil {
		interval := config.TTLDuration(cfg.Evaluation.ReconcileInterval, time.Minute)
		go runReconciler(runCtx, wired.reconciler, interval, log)
	}

	wsHandler := transport.NewWSHandler(wired.service, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting evaluation service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// wiring is the service graph the start command serves.
type wiring struct {
	service *app.EvaluationService
	// reconciler is nil when results are not written to Postgres.
	reconciler *app.Reconciler
	outcomes   app.OutcomePublisher
}

// buildService picks Redis and Postgres backed adapters when configured and in-memory ones otherwise.
func buildService(cfg config.Config, b *backends, log zerolog.Logger) wiring {
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if b.pool != nil {
		loader = pgstore.NewQuizLoader(b.pool)
	}

	var quizRepo app.QuizRepository
	var sessions app.SessionRepository
	var pending app.PendingQueue
	var outcomes app.OutcomePublisher
	if b.redis != nil {
		quizRepo = redisinfra.NewQuizRepository(b.redis, loader, quizTTL)
		sessions = redisinfra.NewSessionStore(b.redis, redisTTL)
		pending = redisinfra.NewResultQueue(b.redis)
		outcomes = redisinfra.NewOutcomePublisher(b.redis)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		sessions = memory.NewSessionStore()
		pending = memory.NewResultQueue()
		outcomes = memory.NewOutcomeLog()
	}

	var store app.ResultStore = memory.NewResultStore()
	if b.db != nil {
		store = pgstore.NewResultStore(b.db)
	}
	recorder := app.NewResultRecorder(store, pending, log)

	// The in-memory store never fails, so only a Postgres store can leave records queued.
	var reconciler *app.Reconciler
	if b.db != nil {
		reconciler = app.NewReconciler(store, pending, log)
	}

	opts := []app.Option{app.WithLogger(log)}
	if d := config.TTLDuration(cfg.Evaluation.PersistTimeout, 0); d > 0 {
		opts = append(opts, app.WithPersistTimeout(d))
	}
	return wiring{
		service:    app.NewEvaluationService(sessions, quizRepo, recorder, outcomes, opts...),
		reconciler: reconciler,
		outcomes:   outcomes,
	}
}

func runReconciler(ctx context.Context, r *app.Reconciler, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saved, err := r.Drain(ctx)
			if err != nil {
				log.Warn().Err(err).Int("saved", saved).Msg("reconcile pass stopped")
				continue
			}
			if saved > 0 {
				log.Info().Int("saved", saved).Msg("reconcile pass finished")
			}
		}
	}
}

// sampleQuizzes is served when no Postgres URL is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"extintores-basico": {
			ID:               "extintores-basico",
			CourseID:         "seguridad-incendios",
			Title:            "Uso de extintores",
			TimeLimitMinutes: 10,
			Questions: []domain.Question{
				{
					Text: "Which extinguisher class is meant for flammable liquids?",
					Options: []domain.Option{
						{Text: "Class A"},
						{Text: "Class B", IsCorrect: true},
						{Text: "Class C"},
						{Text: "Class D"},
					},
				},
				{
					Text: "What does the P in PASS stand for?",
					Options: []domain.Option{
						{Text: "Pull the pin", IsCorrect: true},
						{Text: "Point at the flames"},
						{Text: "Press the lever"},
					},
				},
				{
					Text: "Water may be used on an electrical fire.",
					Options: []domain.Option{
						{Text: "True"},
						{Text: "False", IsCorrect: true},
					},
				},
			},
		},
	}
}
