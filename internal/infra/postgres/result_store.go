package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"evaluation-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type resultRow struct {
	bun.BaseModel `bun:"table:evaluation_results"`

	ID              string      `bun:"id,pk"`
	SessionID       string      `bun:"session_id"`
	QuizID          string      `bun:"quiz_id"`
	CourseID        string      `bun:"course_id"`
	CompanyPIN      string      `bun:"company_pin"`
	FullName        string      `bun:"full_name"`
	NationalID      string      `bun:"national_id"`
	JobTitle        string      `bun:"job_title"`
	CompanyName     string      `bun:"company_name"`
	Score           int         `bun:"score"`
	Passed          bool        `bun:"passed"`
	CorrectCount    int         `bun:"correct_count"`
	QuestionCount   int         `bun:"question_count"`
	Answers         map[int]int `bun:"answers,type:jsonb"`
	AttemptNumber   int         `bun:"attempt_number"`
	TimeUsedSeconds int         `bun:"time_used_seconds"`
	Forced          bool        `bun:"forced"`
	SubmittedAt     time.Time   `bun:"submitted_at"`
}

// ResultStore persists result records with bun.
type ResultStore struct {
	db *bun.DB
}

func NewResultStore(db *bun.DB) *ResultStore {
	return &ResultStore{db: db}
}

// OpenDB opens a bun handle on the Postgres DSN.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// SaveResult inserts the record; a record already stored under the same ID is left untouched.
func (s *ResultStore) SaveResult(ctx context.Context, record domain.ResultRecord) error {
	row := toRow(record)
	if _, err := s.db.NewInsert().Model(&row).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("insert result %s: %w", record.ID, err)
	}
	return nil
}

// ListResults returns every record of a quiz ordered by submission time.
func (s *ResultStore) ListResults(ctx context.Context, quizID string) ([]domain.ResultRecord, error) {
	var rows []resultRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("quiz_id = ?", quizID).
		Order("submitted_at ASC", "attempt_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results for %s: %w", quizID, err)
	}
	out := make([]domain.ResultRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

func toRow(r domain.ResultRecord) resultRow {
	answers := r.Answers
	if answers == nil {
		answers = map[int]int{}
	}
	return resultRow{
		ID:              r.ID,
		SessionID:       r.SessionID,
		QuizID:          r.QuizID,
		CourseID:        r.CourseID,
		CompanyPIN:      r.CompanyPIN,
		FullName:        r.Respondent.FullName,
		NationalID:      r.Respondent.NationalID,
		JobTitle:        r.Respondent.JobTitle,
		CompanyName:     r.Respondent.CompanyName,
		Score:           r.Score,
		Passed:          r.Passed,
		CorrectCount:    r.CorrectCount,
		QuestionCount:   r.QuestionCount,
		Answers:         answers,
		AttemptNumber:   r.AttemptNumber,
		TimeUsedSeconds: r.TimeUsedSeconds,
		Forced:          r.Forced,
		SubmittedAt:     r.SubmittedAt,
	}
}

func fromRow(row resultRow) domain.ResultRecord {
	return domain.ResultRecord{
		ID:         row.ID,
		SessionID:  row.SessionID,
		QuizID:     row.QuizID,
		CourseID:   row.CourseID,
		CompanyPIN: row.CompanyPIN,
		Respondent: domain.Respondent{
			FullName:    row.FullName,
			NationalID:  row.NationalID,
			JobTitle:    row.JobTitle,
			CompanyName: row.CompanyName,
		},
		Score:           row.Score,
		Passed:          row.Passed,
		CorrectCount:    row.CorrectCount,
		QuestionCount:   row.QuestionCount,
		Answers:         row.Answers,
		AttemptNumber:   row.AttemptNumber,
		TimeUsedSeconds: row.TimeUsedSeconds,
		Forced:          row.Forced,
		SubmittedAt:     row.SubmittedAt,
	}
}
