package postgres

import (
	"testing"
	"time"

	"evaluation-service/internal/domain"
)

func TestResultRowMapping(t *testing.T) {
	record := domain.ResultRecord{
		ID:         "r1",
		SessionID:  "s1",
		QuizID:     "extintores-basico",
		CourseID:   "curso-1",
		CompanyPIN: "4821",
		Respondent: domain.Respondent{
			FullName:    "Ana Torres",
			NationalID:  "12345678",
			JobTitle:    "Supervisor",
			CompanyName: "Andes SAC",
		},
		Score:           14,
		Passed:          true,
		CorrectCount:    7,
		QuestionCount:   10,
		Answers:         map[int]int{0: 1, 4: 2},
		AttemptNumber:   1,
		TimeUsedSeconds: 321,
		SubmittedAt:     time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
	}

	got := fromRow(toRow(record))
	if got.Respondent != record.Respondent || got.Score != 14 || !got.Passed || got.CompanyPIN != "4821" {
		t.Fatalf("mapping lost fields: %+v", got)
	}
	if len(got.Answers) != 2 || got.Answers[4] != 2 {
		t.Fatalf("answers lost: %+v", got.Answers)
	}

	if row := toRow(domain.ResultRecord{ID: "r2"}); row.Answers == nil {
		t.Fatalf("expected empty answers map for jsonb column")
	}
}
