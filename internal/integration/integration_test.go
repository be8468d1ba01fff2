package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"evaluation-service/internal/app"
	"evaluation-service/internal/domain"
	pgstore "evaluation-service/internal/infra/postgres"
	pgmigrations "evaluation-service/internal/infra/postgres/migrations"
	infraredis "evaluation-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

func TestEvaluationEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := pgstore.OpenDB(pgURL)
	defer db.Close()
	runMigrations(t, ctx, db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgstore.NewQuizLoader(pool)
	if err := loader.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	sub := redisClient.Subscribe(ctx, infraredis.OutcomesChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	results := pgstore.NewResultStore(db)
	recorder := app.NewResultRecorder(results, infraredis.NewResultQueue(redisClient), zerolog.Nop())
	service := app.NewEvaluationService(
		infraredis.NewSessionStore(redisClient, 5*time.Minute),
		infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute),
		recorder,
		infraredis.NewOutcomePublisher(redisClient),
	)

	st, err := service.Start(ctx, "extintores-basico", "PIN-42")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	sessionID := st.SessionID
	if _, err := service.SubmitIdentity(ctx, sessionID, domain.Respondent{
		FullName:    "Ana Torres",
		NationalID:  "12345678",
		JobTitle:    "Operaria",
		CompanyName: "Planta Norte",
	}); err != nil {
		t.Fatalf("identity: %v", err)
	}
	if _, err := service.SelectAnswer(ctx, sessionID, 1); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	if _, err := service.Next(ctx, sessionID); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := service.SelectAnswer(ctx, sessionID, 0); err != nil {
		t.Fatalf("answer q2: %v", err)
	}
	st, err = service.Submit(ctx, sessionID, false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if st.LastResult == nil || st.LastResult.Score != domain.MaxScore || st.Warning != "" {
		t.Fatalf("expected stored perfect score, got %+v", st)
	}
	if _, err := service.Accept(ctx, sessionID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	stored, err := results.ListResults(ctx, "extintores-basico")
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(stored) != 1 || stored[0].Respondent.NationalID != "12345678" || !stored[0].Passed {
		t.Fatalf("unexpected stored results: %+v", stored)
	}

	msgCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(msgCtx)
	if err != nil {
		t.Fatalf("receive outcome: %v", err)
	}
	var outcome domain.Outcome
	if err := json.Unmarshal([]byte(msg.Payload), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.FinalScore != domain.MaxScore || !outcome.Passed || outcome.AttemptsUsed != 1 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "eval", "POSTGRES_PASSWORD": "evalpass", "POSTGRES_DB": "evaldb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://eval:evalpass@%s:%s/evaldb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	return fmt.Sprintf("redis://%s:%s", host, port.Port()), func() {
		_ = container.Terminate(ctx)
	}
}

func runMigrations(t *testing.T, ctx context.Context, db *bun.DB) {
	t.Helper()
	// postgres may accept TCP before it accepts logins
	var err error
	for i := 0; i < 20; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(250 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("ping pg: %v", err)
	}

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:               "extintores-basico",
		CourseID:         "seguridad-incendios",
		Title:            "Uso de extintores",
		TimeLimitMinutes: 5,
		Questions: []domain.Question{
			{
				Text: "Which extinguisher class is meant for flammable liquids?",
				Options: []domain.Option{
					{Text: "Class A"},
					{Text: "Class B", IsCorrect: true},
					{Text: "Class C"},
				},
			},
			{
				Text: "What does the P in PASS stand for?",
				Options: []domain.Option{
					{Text: "Pull the pin", IsCorrect: true},
					{Text: "Point at the flames"},
				},
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
