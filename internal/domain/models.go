package domain

import "time"

const (
	// MaxScore is the top of the 0..20 grading scale.
	MaxScore = 20
	// PassingScore is the minimum score that passes an evaluation.
	PassingScore = 14
	// MaxAttempts is the attempt budget of one session.
	MaxAttempts = 2
)

// Option represents a possible answer for a question.
type Option struct {
	Text      string `json:"text" yaml:"text"`
	IsCorrect bool   `json:"isCorrect" yaml:"isCorrect"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	Text    string   `json:"text" yaml:"text"`
	Options []Option `json:"options" yaml:"options"`
}

// Quiz is the read-only definition a session is driven by.
// Question order defines navigation order and display numbering.
type Quiz struct {
	ID               string     `json:"id" yaml:"id"`
	CourseID         string     `json:"courseId" yaml:"courseId"`
	Title            string     `json:"title" yaml:"title"`
	TimeLimitMinutes int        `json:"timeLimitMinutes" yaml:"timeLimitMinutes"`
	Questions        []Question `json:"questions" yaml:"questions"`
}

// TimeLimitSeconds is the full clock budget of one attempt.
func (q Quiz) TimeLimitSeconds() int {
	return q.TimeLimitMinutes * 60
}

// Respondent identifies the worker taking the evaluation.
type Respondent struct {
	FullName    string `json:"fullName" validate:"required"`
	NationalID  string `json:"nationalId" validate:"required,nationalid"`
	JobTitle    string `json:"jobTitle" validate:"required"`
	CompanyName string `json:"companyName" validate:"required"`
}

// Phase is the state of an evaluation session.
type Phase string

const (
	PhaseCapturingIdentity Phase = "capturing_identity"
	PhaseInProgress        Phase = "in_progress"
	PhaseReviewing         Phase = "reviewing"
	PhaseFinished          Phase = "finished"
)

// Choice is an action offered to the respondent once an attempt is finished.
type Choice string

const (
	ChoiceAccept Choice = "accept"
	ChoiceReview Choice = "review"
	ChoiceRetry  Choice = "retry"
)

// ResultRecord is written once per finalized attempt and never changes afterwards.
type ResultRecord struct {
	ID              string      `json:"id"`
	SessionID       string      `json:"sessionId"`
	QuizID          string      `json:"quizId"`
	CourseID        string      `json:"courseId"`
	CompanyPIN      string      `json:"companyPin,omitempty"`
	Respondent      Respondent  `json:"respondent"`
	Score           int         `json:"score"`
	Passed          bool        `json:"passed"`
	CorrectCount    int         `json:"correctCount"`
	QuestionCount   int         `json:"questionCount"`
	Answers         map[int]int `json:"answers"`
	AttemptNumber   int         `json:"attemptNumber"`
	TimeUsedSeconds int         `json:"timeUsedSeconds"`
	Forced          bool        `json:"forced"`
	SubmittedAt     time.Time   `json:"submittedAt"`
}

// Outcome is the final signal handed to certificate issuance.
type Outcome struct {
	SessionID    string     `json:"sessionId"`
	QuizID       string     `json:"quizId"`
	CourseID     string     `json:"courseId"`
	CompanyPIN   string     `json:"companyPin,omitempty"`
	Respondent   Respondent `json:"respondent"`
	FinalScore   int        `json:"finalScore"`
	Passed       bool       `json:"passed"`
	AttemptsUsed int        `json:"attemptsUsed"`
}

// QuestionView is a question as shown while answering; correctness is hidden.
type QuestionView struct {
	Index   int      `json:"index"`
	Number  int      `json:"number"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// SessionState is a snapshot of a session pushed to the respondent.
type SessionState struct {
	SessionID         string        `json:"sessionId"`
	QuizID            string        `json:"quizId"`
	Title             string        `json:"title"`
	Phase             Phase         `json:"phase"`
	Guarded           bool          `json:"guarded"`
	Respondent        *Respondent   `json:"respondent,omitempty"`
	QuestionCount     int           `json:"questionCount"`
	CurrentQuestion   *QuestionView `json:"currentQuestion,omitempty"`
	Answers           map[int]int   `json:"answers"`
	Unanswered        int           `json:"unanswered"`
	RemainingSeconds  int           `json:"remainingSeconds"`
	AttemptsRemaining int           `json:"attemptsRemaining"`
	LastResult        *ResultRecord `json:"lastResult,omitempty"`
	Choices           []Choice      `json:"choices,omitempty"`
	Warning           string        `json:"warning,omitempty"`
	Closed            bool          `json:"closed"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// ReviewItem replays one question with the respondent's selection and the key.
type ReviewItem struct {
	Index    int      `json:"index"`
	Text     string   `json:"text"`
	Options  []string `json:"options"`
	Selected *int     `json:"selected,omitempty"`
	Correct  int      `json:"correct"`
	IsRight  bool     `json:"isRight"`
}

// Review is the read-only answer sheet of the last finished attempt.
type Review struct {
	SessionID string       `json:"sessionId"`
	Score     int          `json:"score"`
	Items     []ReviewItem `json:"items"`
}
