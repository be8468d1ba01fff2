package app

import (
	"context"
	"fmt"
	"time"

	"evaluation-service/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Add(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuizRepository loads quiz definitions (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// OutcomePublisher hands final outcomes to certificate issuance.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, outcome domain.Outcome) error
}

// EvaluationService contains the evaluation use cases, keyed by session ID.
type EvaluationService struct {
	sessions       SessionRepository
	quizzes        QuizRepository
	results        ResultWriter
	outcomes       OutcomePublisher
	validator      *IdentityValidator
	log            zerolog.Logger
	now            func() time.Time
	newTicker      TickerFunc
	persistTimeout time.Duration
}

// Option customises an EvaluationService.
type Option func(*EvaluationService)

func WithLogger(log zerolog.Logger) Option {
	return func(s *EvaluationService) { s.log = log }
}

// WithClock is used by tests for deterministic timestamps and ticks.
func WithClock(now func() time.Time, newTicker TickerFunc) Option {
	return func(s *EvaluationService) {
		s.now = now
		s.newTicker = newTicker
	}
}

func WithPersistTimeout(d time.Duration) Option {
	return func(s *EvaluationService) { s.persistTimeout = d }
}

func NewEvaluationService(sessions SessionRepository, quizzes QuizRepository, results ResultWriter, outcomes OutcomePublisher, opts ...Option) *EvaluationService {
	s := &EvaluationService{
		sessions:  sessions,
		quizzes:   quizzes,
		results:   results,
		outcomes:  outcomes,
		validator: NewIdentityValidator(),
		log:       zerolog.Nop(),
		now:       time.Now,
		newTicker: NewSystemTicker,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "evaluation_service").Logger()
	return s
}

// Start opens a session for quizID. Missing or unscorable quizzes are configuration
// errors and no session is created.
func (s *EvaluationService) Start(ctx context.Context, quizID, companyPIN string) (domain.SessionState, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("load quiz %s: %w", quizID, err)
	}
	session, err := NewSession(uuid.NewString(), quiz, companyPIN, SessionOptions{
		Now:            s.now,
		NewTicker:      s.newTicker,
		Results:        s.results,
		Validator:      s.validator,
		Logger:         s.log,
		PersistTimeout: s.persistTimeout,
		OnTimeout:      s.onTimeout,
	})
	if err != nil {
		s.log.Error().Err(err).Str("quiz_id", quizID).Msg("quiz cannot start a session")
		return domain.SessionState{}, err
	}
	s.sessions.Add(session)
	return session.State(), nil
}

func (s *EvaluationService) State(_ context.Context, sessionID string) (domain.SessionState, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}
	return session.State(), nil
}

func (s *EvaluationService) SubmitIdentity(_ context.Context, sessionID string, respondent domain.Respondent) (domain.SessionState, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}
	return session.SubmitIdentity(respondent)
}

func (s *EvaluationService) SelectAnswer(_ context.Context, sessionID string, option int) (domain.SessionState, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}
	return session.SelectAnswer(option)
}

func (s *EvaluationService) Goto(_ context.Context, sessionID string, index int) (domain.SessionState, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}
	return session.Goto(index)
}

func (s *EvaluationService) Next(_ context.Context, sessionID string) (domain.SessionState, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}
	return session.Next()
}

func (s *EvaluationService) Prev(_ context.Context, sessionID string) (domain.SessionState, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}
	return session.Prev()
}

func (s *EvaluationService) Submit(ctx context.Context, sessionID string, confirmed bool) (domain.SessionState, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}
	return session.Submit(ctx, confirmed)
}

func (s *EvaluationService) Review(_ context.Context, sessionID string) (domain.Review, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.Review{}, err
	}
	return session.Review()
}

func (s *EvaluationService) CloseReview(_ context.Context, sessionID string) (domain.SessionState, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}
	return session.CloseReview()
}

// Retry starts the next attempt, or ends the session when no retry is allowed.
func (s *EvaluationService) Retry(ctx context.Context, sessionID string) (domain.SessionState, *domain.Outcome, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.SessionState{}, nil, err
	}
	st, outcome, err := session.Retry()
	if err != nil {
		return st, nil, err
	}
	if outcome != nil {
		s.end(ctx, session, outcome)
	}
	return st, outcome, nil
}

func (s *EvaluationService) Accept(ctx context.Context, sessionID string) (domain.Outcome, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.Outcome{}, err
	}
	outcome, err := session.Accept()
	if err != nil {
		return domain.Outcome{}, err
	}
	s.end(ctx, session, &outcome)
	return outcome, nil
}

func (s *EvaluationService) Abandon(ctx context.Context, sessionID string, confirmed bool) (*domain.Outcome, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	outcome, err := session.Abandon(confirmed)
	if err != nil {
		return nil, err
	}
	s.end(ctx, session, outcome)
	return outcome, nil
}

// Subscribe returns a channel that receives state snapshots for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *EvaluationService) Subscribe(_ context.Context, sessionID string) (<-chan domain.SessionState, func(), error) {
	session, err := s.get(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session.Subscribe()
}

// Detach is called when a respondent's connection goes away. A running attempt keeps
// its clock so a timeout is still recorded; any other session with no listener left ends.
func (s *EvaluationService) Detach(ctx context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok || session.SubscriberCount() > 0 {
		return
	}
	st := session.State()
	switch {
	case st.Closed:
		s.sessions.Delete(sessionID)
	case st.Phase == domain.PhaseInProgress:
		s.log.Info().Str("session_id", sessionID).Int("remaining_seconds", st.RemainingSeconds).Msg("respondent detached from running attempt")
	default:
		outcome, err := session.Abandon(true)
		if err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("detach")
		}
		s.end(ctx, session, outcome)
	}
}

func (s *EvaluationService) onTimeout(session *Session) {
	if session.SubscriberCount() > 0 {
		return
	}
	s.Detach(context.Background(), session.ID())
}

func (s *EvaluationService) end(ctx context.Context, session *Session, outcome *domain.Outcome) {
	s.sessions.Delete(session.ID())
	if outcome == nil {
		return
	}
	s.log.Info().
		Str("session_id", outcome.SessionID).
		Int("final_score", outcome.FinalScore).
		Bool("passed", outcome.Passed).
		Int("attempts_used", outcome.AttemptsUsed).
		Msg("evaluation closed")
	if s.outcomes == nil {
		return
	}
	if err := s.outcomes.PublishOutcome(ctx, *outcome); err != nil {
		s.log.Error().Err(err).Interface("outcome", outcome).Msg("publish outcome failed")
	}
}

func (s *EvaluationService) get(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}
