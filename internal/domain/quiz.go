package domain

import "fmt"

// Validate rejects definitions that cannot be scored: no questions, a non-positive
// time limit, or a question without exactly one correct option.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: quiz %q has no questions", ErrInvalidQuiz, q.ID)
	}
	if q.TimeLimitMinutes <= 0 {
		return fmt.Errorf("%w: quiz %q has time limit %d", ErrInvalidQuiz, q.ID, q.TimeLimitMinutes)
	}
	for i, question := range q.Questions {
		correct := 0
		for _, opt := range question.Options {
			if opt.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("%w: quiz %q question %d has %d correct options", ErrInvalidQuiz, q.ID, i+1, correct)
		}
	}
	return nil
}

// CorrectIndex returns the position of the correct option, or -1 if none is flagged.
func (q Question) CorrectIndex() int {
	for i, opt := range q.Options {
		if opt.IsCorrect {
			return i
		}
	}
	return -1
}
