package quiz

import (
	"context"

	"github.com/pkg/errors"

	"github.com/newstandard/academy/core"
)

// statusOf derives the (user, quiz) state from the attempts still on record.
// A reset deletes the failed attempts, so at most MaxAttempts-1 failures can be seen here.
func statusOf(quizID string, attempts []Attempt) Status {
	st := Status{
		QuizID:       quizID,
		State:        StateNotAttempted,
		AttemptCount: len(attempts),
	}
	for _, att := range attempts {
		if att.Score > st.BestScore {
			st.BestScore = att.Score
		}
		if att.Passed {
			st.Passed = true
		}
	}

	switch {
	case st.Passed:
		st.State = StatePassed
	case len(attempts) > 0:
		st.State = StateAttempt1Failed
	}
	st.AttemptsRemaining = attemptsRemaining(st.Passed, len(attempts))
	return st
}

func attemptsRemaining(passed bool, attemptCount int) int {
	if passed {
		return 0
	}
	if n := MaxAttempts - attemptCount; n > 0 {
		return n
	}
	return 0
}

// shouldReset reports whether a failed attempt with the given number exhausts the retries.
func shouldReset(att Attempt) bool {
	return !att.Passed && att.AttemptNumber >= MaxAttempts
}

// resetProgress removes the learner's completions for every lesson the quiz covers,
// then removes their attempts (and responses) on the quiz.
func (svc *service) resetProgress(ctx context.Context, qz Quiz, userID string, tx core.DBExecutor) error {
	lessonIDs, err := svc.progress.LessonIDsInScope(ctx, qz.Scope(), tx)
	if err != nil {
		return persistenceErr(err, "listing lessons in quiz scope")
	}
	if len(lessonIDs) > 0 {
		if err := svc.progress.DeleteLessonProgress(ctx, userID, lessonIDs, tx); err != nil {
			return persistenceErr(err, "deleting lesson progress")
		}
	}
	if err := svc.repo.DeleteAttempts(ctx, userID, qz.ID, tx); err != nil {
		return persistenceErr(err, "deleting attempts")
	}
	return nil
}

func persistenceErr(err error, msg string) error {
	return &PersistenceError{Err: errors.Wrap(err, msg)}
}
