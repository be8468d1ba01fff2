package memory

import (
	"context"
	"testing"
	"time"

	"evaluation-service/internal/domain"
)

func TestResultStoreIsIdempotentAndOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	second := domain.ResultRecord{ID: "r2", QuizID: "q", Score: 16, AttemptNumber: 2, SubmittedAt: base.Add(time.Minute)}
	first := domain.ResultRecord{ID: "r1", QuizID: "q", Score: 10, AttemptNumber: 1, SubmittedAt: base}
	other := domain.ResultRecord{ID: "r3", QuizID: "other", SubmittedAt: base}

	for _, r := range []domain.ResultRecord{second, first, other} {
		if err := store.SaveResult(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	changed := first
	changed.Score = 20
	_ = store.SaveResult(ctx, changed)

	got, err := store.ListResults(ctx, "q")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "r1" || got[1].ID != "r2" {
		t.Fatalf("unexpected results %+v", got)
	}
	if got[0].Score != 10 {
		t.Fatalf("expected first write to win, got score %d", got[0].Score)
	}
}

func TestResultQueueFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewResultQueue()
	_ = q.Push(ctx, domain.ResultRecord{ID: "a"})
	_ = q.Push(ctx, domain.ResultRecord{ID: "b"})

	r, ok, err := q.Pop(ctx)
	if err != nil || !ok || r.ID != "a" {
		t.Fatalf("expected a, got %+v ok=%v err=%v", r, ok, err)
	}
	r, ok, _ = q.Pop(ctx)
	if !ok || r.ID != "b" {
		t.Fatalf("expected b, got %+v", r)
	}
	if _, ok, _ := q.Pop(ctx); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestOutcomeLogKeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	log := NewOutcomeLogWithLimit(2)
	for _, id := range []string{"s-1", "s-2", "s-3"} {
		if err := log.PublishOutcome(ctx, domain.Outcome{SessionID: id}); err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
	}
	got := log.Outcomes()
	if len(got) != 2 || got[0].SessionID != "s-2" || got[1].SessionID != "s-3" {
		t.Fatalf("expected the two latest outcomes, got %+v", got)
	}
}
