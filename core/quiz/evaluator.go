package quiz

import (
	"time"

	"github.com/google/uuid"

	"github.com/newstandard/academy/core"
)

// evaluate scores answers against the answer key. It fails on partial submissions
// (or answers to questions outside the quiz) and on options not belonging to their question.
// The returned attempt has no AttemptNumber yet.
func evaluate(qz Quiz, key AnswerKey, userID string, answers map[string]string) (Attempt, []Response, error) {
	total := len(key.Questions)
	if total == 0 || len(answers) != total {
		return Attempt{}, nil, ErrIncompleteSubmission
	}

	att := Attempt{
		ID:             uuid.New().String(),
		UserID:         userID,
		QuizID:         qz.ID,
		TotalQuestions: total,
		CreatedAt:      time.Now().UTC(),
	}
	responses := make([]Response, 0, total)
	for _, q := range key.Questions {
		selected, ok := answers[q.QuestionID]
		if !ok {
			return Attempt{}, nil, ErrIncompleteSubmission
		}
		isCorrect, ok := q.Options[selected]
		if !ok {
			return Attempt{}, nil, ErrInvalidOption
		}
		if isCorrect {
			att.CorrectCount++
		}
		responses = append(responses, Response{
			AttemptID:        att.ID,
			QuestionID:       q.QuestionID,
			SelectedOptionID: selected,
			IsCorrect:        isCorrect,
		})
	}

	att.Score = core.Percent(att.CorrectCount, total)
	att.Passed = att.Score >= qz.PassingScore
	return att, responses, nil
}
