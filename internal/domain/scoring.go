package domain

import "math"

// Score grades submitted answers against a quiz. It is pure: the same quiz
// and answers always produce the same result, and nothing is mutated.
// Unanswered questions count as incorrect. XPGained is the quiz reward when
// passed, zero otherwise.
func Score(quiz Quiz, answers map[string]int) QuizResult {
	total := len(quiz.Questions)
	correct := 0
	reviews := make([]AnswerReview, 0, total)

	for _, question := range quiz.Questions {
		answer, answered := answers[question.ID]
		isCorrect := answered && answer == question.CorrectIndex
		if isCorrect {
			correct++
		}
		review := AnswerReview{
			QuestionID:    question.ID,
			Answered:      answered,
			CorrectAnswer: question.CorrectIndex,
			IsCorrect:     isCorrect,
			Explanation:   question.Explanation,
		}
		if answered {
			review.YourAnswer = answer
		} else {
			review.YourAnswer = -1
		}
		reviews = append(reviews, review)
	}

	scorePct := 0
	if total > 0 {
		scorePct = int(math.Round(float64(correct) / float64(total) * 100))
	}
	passed := scorePct >= quiz.PassingScore

	xp := 0
	if passed {
		xp = quiz.XPReward
	}

	return QuizResult{
		CorrectCount:   correct,
		TotalQuestions: total,
		ScorePct:       scorePct,
		Passed:         passed,
		XPGained:       xp,
		Reviews:        reviews,
	}
}

// ValidateAnswer checks that a question exists on the quiz and the option
// index is in range.
func ValidateAnswer(quiz Quiz, questionID string, option int) error {
	for i := range quiz.Questions {
		if quiz.Questions[i].ID == questionID {
			if option < 0 || option >= len(quiz.Questions[i].Options) {
				return ErrInvalidOption
			}
			return nil
		}
	}
	return ErrQuestionNotFound
}
