package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"evaluation-service/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ResultWriter persists one result record per finished attempt.
type ResultWriter interface {
	SaveResult(ctx context.Context, record domain.ResultRecord) error
}

// SessionOptions wires the collaborators of a Session. Zero values get defaults
// except Results, which is required.
type SessionOptions struct {
	Now            func() time.Time
	NewTicker      TickerFunc
	Results        ResultWriter
	Validator      *IdentityValidator
	Logger         zerolog.Logger
	PersistTimeout time.Duration
	// OnTimeout runs after a forced submission has been persisted.
	OnTimeout func(*Session)
}

// Session drives one respondent through one quiz: identity capture, the timed
// attempt, scoring, review and retry.
type Session struct {
	id             string
	quiz           domain.Quiz
	companyPIN     string
	now            func() time.Time
	newTicker      TickerFunc
	results        ResultWriter
	validator      *IdentityValidator
	log            zerolog.Logger
	persistTimeout time.Duration
	onTimeout      func(*Session)

	mu                sync.Mutex
	phase             domain.Phase
	respondent        *domain.Respondent
	answers           map[int]int
	remaining         int
	attemptsRemaining int
	current           int
	records           []domain.ResultRecord
	warning           string
	closed            bool
	timer             *attemptTimer
	generation        uint64
	subscribers       map[chan domain.SessionState]struct{}
}

// NewSession creates a session in the CapturingIdentity phase. A quiz that cannot be
// scored is a configuration error and no session is created.
func NewSession(id string, quiz domain.Quiz, companyPIN string, opts SessionOptions) (*Session, error) {
	if err := quiz.Validate(); err != nil {
		return nil, err
	}
	if opts.Results == nil {
		return nil, errors.New("session: result writer is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewSystemTicker
	}
	if opts.Validator == nil {
		opts.Validator = NewIdentityValidator()
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 5 * time.Second
	}
	return &Session{
		id:                id,
		quiz:              quiz,
		companyPIN:        companyPIN,
		now:               opts.Now,
		newTicker:         opts.NewTicker,
		results:           opts.Results,
		validator:         opts.Validator,
		log:               opts.Logger.With().Str("session_id", id).Str("quiz_id", quiz.ID).Logger(),
		persistTimeout:    opts.PersistTimeout,
		onTimeout:         opts.OnTimeout,
		phase:             domain.PhaseCapturingIdentity,
		answers:           make(map[int]int),
		attemptsRemaining: domain.MaxAttempts,
		subscribers:       make(map[chan domain.SessionState]struct{}),
	}, nil
}

func (s *Session) ID() string { return s.id }

// State returns the current snapshot.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SubmitIdentity validates the respondent and starts the first attempt.
func (s *Session) SubmitIdentity(r domain.Respondent) (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requirePhaseLocked(domain.PhaseCapturingIdentity); err != nil {
		return s.snapshotLocked(), err
	}
	r = Normalize(r)
	if err := s.validator.Validate(r); err != nil {
		return s.snapshotLocked(), err
	}
	s.respondent = &r
	s.beginAttemptLocked()
	s.log.Info().Str("national_id", r.NationalID).Msg("evaluation started")
	return s.broadcastLocked(), nil
}

// SelectAnswer records option as the answer to the current question, replacing any earlier one.
func (s *Session) SelectAnswer(option int) (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requirePhaseLocked(domain.PhaseInProgress); err != nil {
		return s.snapshotLocked(), err
	}
	question := s.quiz.Questions[s.current]
	if option < 0 || option >= len(question.Options) {
		return s.snapshotLocked(), fmt.Errorf("%w: %d", domain.ErrOptionOutOfRange, option)
	}
	s.answers[s.current] = option
	return s.broadcastLocked(), nil
}

// Goto jumps to an absolute question index.
func (s *Session) Goto(index int) (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requirePhaseLocked(domain.PhaseInProgress); err != nil {
		return s.snapshotLocked(), err
	}
	if index < 0 || index >= len(s.quiz.Questions) {
		return s.snapshotLocked(), fmt.Errorf("%w: %d", domain.ErrQuestionOutOfRange, index)
	}
	s.current = index
	return s.broadcastLocked(), nil
}

// Next moves forward one question; it is a no-op on the last question.
func (s *Session) Next() (domain.SessionState, error) {
	return s.step(1)
}

// Prev moves back one question; it is a no-op on the first question.
func (s *Session) Prev() (domain.SessionState, error) {
	return s.step(-1)
}

func (s *Session) step(delta int) (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requirePhaseLocked(domain.PhaseInProgress); err != nil {
		return s.snapshotLocked(), err
	}
	next := s.current + delta
	if next < 0 || next >= len(s.quiz.Questions) {
		return s.snapshotLocked(), nil
	}
	s.current = next
	return s.broadcastLocked(), nil
}

// Submit finishes the running attempt. With unanswered questions the respondent must
// confirm; otherwise a *domain.ConfirmationError is returned and the attempt keeps running.
func (s *Session) Submit(ctx context.Context, confirmed bool) (domain.SessionState, error) {
	s.mu.Lock()
	if err := s.requirePhaseLocked(domain.PhaseInProgress); err != nil {
		st := s.snapshotLocked()
		s.mu.Unlock()
		return st, err
	}
	if unanswered := len(s.quiz.Questions) - len(s.answers); unanswered > 0 && !confirmed {
		st := s.snapshotLocked()
		s.mu.Unlock()
		return st, &domain.ConfirmationError{Action: "submit", Unanswered: unanswered}
	}
	record := s.finishLocked(false)
	s.broadcastLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()
	s.persist(ctx, record)
	return s.State(), nil
}

// Review opens the answer sheet of the last attempt.
func (s *Session) Review() (domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requirePhaseLocked(domain.PhaseFinished); err != nil {
		return domain.Review{}, err
	}
	s.phase = domain.PhaseReviewing
	last := s.records[len(s.records)-1]

	items := make([]domain.ReviewItem, 0, len(s.quiz.Questions))
	for i, question := range s.quiz.Questions {
		item := domain.ReviewItem{
			Index:   i,
			Text:    question.Text,
			Options: optionTexts(question),
			Correct: question.CorrectIndex(),
		}
		if selected, ok := last.Answers[i]; ok {
			sel := selected
			item.Selected = &sel
			item.IsRight = sel == item.Correct
		}
		items = append(items, item)
	}
	s.broadcastLocked()
	return domain.Review{SessionID: s.id, Score: last.Score, Items: items}, nil
}

// CloseReview returns to the result screen without rescoring.
func (s *Session) CloseReview() (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requirePhaseLocked(domain.PhaseReviewing); err != nil {
		return s.snapshotLocked(), err
	}
	s.phase = domain.PhaseFinished
	return s.broadcastLocked(), nil
}

// Retry starts a fresh attempt when the last score failed and attempts remain.
// Otherwise the session ends and its outcome is returned.
func (s *Session) Retry() (domain.SessionState, *domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requirePhaseLocked(domain.PhaseFinished); err != nil {
		return s.snapshotLocked(), nil, err
	}
	if !s.retryAllowedLocked() {
		outcome, _ := s.closeLocked()
		return s.snapshotLocked(), &outcome, nil
	}
	s.attemptsRemaining--
	s.beginAttemptLocked()
	s.log.Info().Int("attempts_remaining", s.attemptsRemaining).Msg("evaluation retried")
	return s.broadcastLocked(), nil, nil
}

// Accept ends the session with the last attempt as final.
func (s *Session) Accept() (domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requirePhaseLocked(domain.PhaseFinished, domain.PhaseReviewing); err != nil {
		return domain.Outcome{}, err
	}
	outcome, _ := s.closeLocked()
	return outcome, nil
}

// Abandon leaves the session. A running attempt is discarded without a record and
// needs confirmation. The outcome is reported when at least one attempt was recorded.
func (s *Session) Abandon(confirmed bool) (*domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, domain.ErrSessionClosed
	}
	if s.phase == domain.PhaseInProgress && !confirmed {
		return nil, &domain.ConfirmationError{Action: "abandon"}
	}
	if s.phase == domain.PhaseInProgress {
		s.log.Info().Int("answered", len(s.answers)).Msg("running attempt abandoned")
	}
	outcome, ok := s.closeLocked()
	if !ok {
		return nil, nil
	}
	return &outcome, nil
}

// Subscribe returns a channel of state snapshots. The channel is closed when the
// session ends or cancel is called.
func (s *Session) Subscribe() (<-chan domain.SessionState, func(), error) {
	ch := make(chan domain.SessionState, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, domain.ErrSessionClosed
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

// SubscriberCount reports how many listeners are attached.
func (s *Session) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

func (s *Session) requirePhaseLocked(allowed ...domain.Phase) error {
	if s.closed {
		return domain.ErrSessionClosed
	}
	for _, p := range allowed {
		if s.phase == p {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidPhase, s.phase)
}

func (s *Session) beginAttemptLocked() {
	s.answers = make(map[int]int)
	s.remaining = s.quiz.TimeLimitSeconds()
	s.current = 0
	s.warning = ""
	s.phase = domain.PhaseInProgress
	s.startTimerLocked()
}

// finishLocked stops the clock before anything else so no later tick can touch the
// attempt, then scores it.
func (s *Session) finishLocked(forced bool) domain.ResultRecord {
	s.stopTimerLocked()

	score, correct := Score(s.quiz, s.answers)
	answers := make(map[int]int, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	record := domain.ResultRecord{
		ID:              uuid.NewString(),
		SessionID:       s.id,
		QuizID:          s.quiz.ID,
		CourseID:        s.quiz.CourseID,
		CompanyPIN:      s.companyPIN,
		Respondent:      *s.respondent,
		Score:           score,
		Passed:          Passed(score),
		CorrectCount:    correct,
		QuestionCount:   len(s.quiz.Questions),
		Answers:         answers,
		AttemptNumber:   domain.MaxAttempts - s.attemptsRemaining + 1,
		TimeUsedSeconds: s.quiz.TimeLimitSeconds() - s.remaining,
		Forced:          forced,
		SubmittedAt:     s.now(),
	}
	s.records = append(s.records, record)
	s.phase = domain.PhaseFinished
	s.log.Info().
		Int("score", score).
		Bool("passed", record.Passed).
		Int("attempt", record.AttemptNumber).
		Bool("forced", forced).
		Msg("attempt finished")
	return record
}

func (s *Session) persist(ctx context.Context, record domain.ResultRecord) {
	err := s.results.SaveResult(ctx, record)
	if err == nil {
		return
	}
	warning := "your result could not be saved: " + err.Error()
	if errors.Is(err, domain.ErrResultQueued) {
		warning = "your result could not be saved right now and has been queued for reconciliation"
	}
	s.log.Error().Err(err).Interface("record", record).Msg("result record not persisted")

	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.records); n > 0 && s.records[n-1].ID == record.ID {
		s.warning = warning
		s.broadcastLocked()
	}
}

func (s *Session) retryAllowedLocked() bool {
	if len(s.records) == 0 {
		return false
	}
	last := s.records[len(s.records)-1]
	return last.Score < domain.PassingScore && s.attemptsRemaining > 1
}

func (s *Session) choicesLocked() []domain.Choice {
	if s.closed || s.phase != domain.PhaseFinished {
		return nil
	}
	choices := []domain.Choice{domain.ChoiceAccept, domain.ChoiceReview}
	if s.retryAllowedLocked() {
		choices = append(choices, domain.ChoiceRetry)
	}
	return choices
}

// closeLocked ends the session. ok is false when no attempt was ever recorded.
func (s *Session) closeLocked() (outcome domain.Outcome, ok bool) {
	s.stopTimerLocked()
	s.closed = true

	final := s.snapshotLocked()
	for ch := range s.subscribers {
		sendLatest(ch, final)
		delete(s.subscribers, ch)
		close(ch)
	}

	if len(s.records) == 0 {
		return domain.Outcome{}, false
	}
	last := s.records[len(s.records)-1]
	return domain.Outcome{
		SessionID:    s.id,
		QuizID:       s.quiz.ID,
		CourseID:     s.quiz.CourseID,
		CompanyPIN:   s.companyPIN,
		Respondent:   last.Respondent,
		FinalScore:   last.Score,
		Passed:       last.Passed,
		AttemptsUsed: len(s.records),
	}, true
}

func (s *Session) startTimerLocked() {
	s.stopTimerLocked()
	s.generation++
	gen := s.generation
	ticker := s.newTicker(time.Second)
	t := &attemptTimer{stop: make(chan struct{})}
	s.timer = t

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C():
				s.tick(gen)
			}
		}
	}()
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.cancel()
		s.timer = nil
	}
}

// tick advances the clock of attempt gen by one second and forces the submission
// when it runs out.
func (s *Session) tick(gen uint64) {
	s.mu.Lock()
	if s.closed || s.phase != domain.PhaseInProgress || gen != s.generation {
		s.mu.Unlock()
		return
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining > 0 {
		s.broadcastLocked()
		s.mu.Unlock()
		return
	}
	record := s.finishLocked(true)
	s.broadcastLocked()
	onTimeout := s.onTimeout
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()
	s.persist(ctx, record)
	if onTimeout != nil {
		onTimeout(s)
	}
}

func (s *Session) broadcastLocked() domain.SessionState {
	st := s.snapshotLocked()
	for ch := range s.subscribers {
		sendLatest(ch, st)
	}
	return st
}

// sendLatest drops the oldest pending snapshot when a slow listener's buffer is full.
func sendLatest(ch chan domain.SessionState, st domain.SessionState) {
	select {
	case ch <- st:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

func (s *Session) snapshotLocked() domain.SessionState {
	answers := make(map[int]int, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	st := domain.SessionState{
		SessionID:         s.id,
		QuizID:            s.quiz.ID,
		Title:             s.quiz.Title,
		Phase:             s.phase,
		Guarded:           !s.closed && s.phase == domain.PhaseInProgress,
		QuestionCount:     len(s.quiz.Questions),
		Answers:           answers,
		RemainingSeconds:  s.remaining,
		AttemptsRemaining: s.attemptsRemaining,
		Choices:           s.choicesLocked(),
		Warning:           s.warning,
		Closed:            s.closed,
		UpdatedAt:         s.now(),
	}
	if s.respondent != nil {
		r := *s.respondent
		st.Respondent = &r
		st.Unanswered = len(s.quiz.Questions) - len(s.answers)
	}
	if s.phase == domain.PhaseInProgress {
		question := s.quiz.Questions[s.current]
		st.CurrentQuestion = &domain.QuestionView{
			Index:   s.current,
			Number:  s.current + 1,
			Text:    question.Text,
			Options: optionTexts(question),
		}
	}
	if n := len(s.records); n > 0 && s.phase != domain.PhaseInProgress {
		last := s.records[n-1]
		st.LastResult = &last
	}
	return st
}

func optionTexts(q domain.Question) []string {
	texts := make([]string, len(q.Options))
	for i, opt := range q.Options {
		texts[i] = opt.Text
	}
	return texts
}
