package export

import (
	"bytes"
	"testing"
	"time"

	"evaluation-service/internal/domain"
	"github.com/xuri/excelize/v2"
)

func TestWriteResults(t *testing.T) {
	quiz := domain.Quiz{ID: "extintores-basico", Title: "Uso de extintores"}
	results := []domain.ResultRecord{
		{
			ID:            "r1",
			Respondent:    domain.Respondent{FullName: "Ana Torres", NationalID: "12345678", JobTitle: "Supervisor", CompanyName: "Andes SAC"},
			CompanyPIN:    "4821",
			AttemptNumber: 1,
			Score:         10,
			CorrectCount:  5,
			QuestionCount: 10,
			SubmittedAt:   time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
		},
		{
			ID:            "r2",
			Respondent:    domain.Respondent{FullName: "Ana Torres", NationalID: "12345678", JobTitle: "Supervisor", CompanyName: "Andes SAC"},
			AttemptNumber: 2,
			Score:         16,
			Passed:        true,
			Forced:        true,
			SubmittedAt:   time.Date(2026, 10, 19, 9, 20, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	if err := WriteResults(&buf, quiz, results); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected title, header and 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Uso de extintores" || rows[1][1] != "Full Name" {
		t.Fatalf("unexpected heading rows %v", rows[:2])
	}
	if rows[2][1] != "Ana Torres" || rows[2][7] != "10" || rows[2][8] != "no" {
		t.Fatalf("unexpected first row %v", rows[2])
	}
	if rows[3][7] != "16" || rows[3][8] != "yes" || rows[3][12] != "yes" {
		t.Fatalf("unexpected second row %v", rows[3])
	}
}
