package memory

import (
	"context"
	"sort"
	"sync"

	"evaluation-service/internal/domain"
)

// ResultStore keeps result records in memory; saving an existing ID is a no-op.
type ResultStore struct {
	mu      sync.RWMutex
	records map[string]domain.ResultRecord
}

func NewResultStore() *ResultStore {
	return &ResultStore{records: make(map[string]domain.ResultRecord)}
}

func (s *ResultStore) SaveResult(_ context.Context, record domain.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; !ok {
		s.records[record.ID] = record
	}
	return nil
}

// ListResults returns the records of a quiz ordered by submission time.
func (s *ResultStore) ListResults(_ context.Context, quizID string) ([]domain.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ResultRecord, 0)
	for _, r := range s.records {
		if r.QuizID == quizID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].AttemptNumber < out[j].AttemptNumber
	})
	return out, nil
}

// ResultQueue is an in-process FIFO of records awaiting reconciliation.
type ResultQueue struct {
	mu    sync.Mutex
	items []domain.ResultRecord
}

func NewResultQueue() *ResultQueue {
	return &ResultQueue{}
}

func (q *ResultQueue) Push(_ context.Context, record domain.ResultRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, record)
	return nil
}

func (q *ResultQueue) Pop(_ context.Context) (domain.ResultRecord, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return domain.ResultRecord{}, false, nil
	}
	record := q.items[0]
	q.items = q.items[1:]
	return record, true, nil
}

func (q *ResultQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// OutcomeLog is the outcome signal of a deployment without Redis. It keeps the most
// recent outcomes, up to limit, for operators and tests.
type OutcomeLog struct {
	mu       sync.Mutex
	limit    int
	outcomes []domain.Outcome
}

// DefaultOutcomeLogLimit bounds the log built by NewOutcomeLog.
const DefaultOutcomeLogLimit = 1000

func NewOutcomeLog() *OutcomeLog {
	return NewOutcomeLogWithLimit(DefaultOutcomeLogLimit)
}

// NewOutcomeLogWithLimit keeps at most limit outcomes; limit <= 0 keeps all of them.
func NewOutcomeLogWithLimit(limit int) *OutcomeLog {
	return &OutcomeLog{limit: limit}
}

func (l *OutcomeLog) PublishOutcome(_ context.Context, outcome domain.Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, outcome)
	if l.limit > 0 && len(l.outcomes) > l.limit {
		l.outcomes = append([]domain.Outcome(nil), l.outcomes[len(l.outcomes)-l.limit:]...)
	}
	return nil
}

func (l *OutcomeLog) Outcomes() []domain.Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Outcome(nil), l.outcomes...)
}
