package redis

import (
	"context"
	"testing"
	"time"

	"evaluation-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestResultQueueRoundTripsInOrder(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	q := NewResultQueue(newClient(mr))
	submitted := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

	first := domain.ResultRecord{ID: "r1", QuizID: "extintores-basico", Score: 8, Answers: map[int]int{0: 1, 3: 0}, SubmittedAt: submitted}
	second := domain.ResultRecord{ID: "r2", QuizID: "extintores-basico", Score: 16}
	if err := q.Push(ctx, first); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := q.Push(ctx, second); err != nil {
		t.Fatalf("push: %v", err)
	}
	if n, _ := q.Len(ctx); n != 2 {
		t.Fatalf("expected 2 pending, got %d", n)
	}

	got, ok, err := q.Pop(ctx)
	if err != nil || !ok {
		t.Fatalf("pop: ok=%v err=%v", ok, err)
	}
	if got.ID != "r1" || got.Answers[3] != 0 || got.Answers[0] != 1 || !got.SubmittedAt.Equal(submitted) {
		t.Fatalf("unexpected record %+v", got)
	}
	got, _, _ = q.Pop(ctx)
	if got.ID != "r2" {
		t.Fatalf("expected r2, got %s", got.ID)
	}
	if _, ok, err := q.Pop(ctx); ok || err != nil {
		t.Fatalf("expected empty queue, ok=%v err=%v", ok, err)
	}
}
