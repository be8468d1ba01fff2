package app

import "evaluation-service/internal/domain"

// Score grades answers against the quiz key on the 0..20 scale.
// Unanswered questions count as incorrect and stay in the denominator.
func Score(quiz domain.Quiz, answers map[int]int) (score, correct int) {
	total := len(quiz.Questions)
	if total == 0 {
		return 0, 0
	}
	for i, question := range quiz.Questions {
		selected, ok := answers[i]
		if !ok {
			continue
		}
		if key := question.CorrectIndex(); key >= 0 && selected == key {
			correct++
		}
	}
	// round(correct/total*20) with halves rounded up, in integers.
	score = (2*correct*domain.MaxScore + total) / (2 * total)
	return score, correct
}

// Passed reports whether a score meets the passing threshold.
func Passed(score int) bool {
	return score >= domain.PassingScore
}
