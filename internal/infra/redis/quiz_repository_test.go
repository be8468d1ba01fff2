package redis

import (
	"context"
	"testing"
	"time"

	"evaluation-service/internal/domain"
	"evaluation-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{
			"extintores-basico": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(client, loader, time.Minute)

	quiz, err := repo.GetQuiz(context.Background(), "extintores-basico")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quiz:extintores-basico:definition") {
		t.Fatalf("expected definition cached in redis")
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetQuiz(context.Background(), "extintores-basico")
	if err != nil {
		t.Fatalf("get cached quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached.Title != quiz.Title || len(cached.Questions) != 2 || cached.Questions[1].CorrectIndex() != 0 {
		t.Fatalf("cached definition differs: %+v", cached)
	}

	if err := repo.Invalidate(context.Background(), "extintores-basico"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = repo.GetQuiz(context.Background(), "extintores-basico")
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	memory.QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:               "extintores-basico",
		CourseID:         "curso-1",
		Title:            "Uso de extintores",
		TimeLimitMinutes: 10,
		Questions: []domain.Question{
			{
				Text: "Which extinguisher class covers electrical fires?",
				Options: []domain.Option{
					{Text: "Class A"},
					{Text: "Class C", IsCorrect: true},
				},
			},
			{
				Text: "What does PASS start with?",
				Options: []domain.Option{
					{Text: "Pull the pin", IsCorrect: true},
					{Text: "Press the handle"},
				},
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
