package quiz

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/certificate"
)

var (
	// errors
	ErrQuizNotFound         = errors.New("quiz not found")
	ErrIncompleteSubmission = errors.New("every question of the quiz must be answered exactly once")
	ErrInvalidOption        = errors.New("unknown option ids")
	ErrAlreadyPassed        = errors.New("quiz already passed")
	ErrInvalidScope         = errors.New("a quiz must target exactly one of: a lesson, a module or the course final exam")
	ErrInvalidPassingScore  = errors.New("passing score must be between 0 and 100")

	errNoCorrectOption = errors.New("every question needs at least one correct option")
)

// Events published after grading.
const (
	EventAttemptGraded = "quiz.attempt_graded"
	EventProgressReset = "quiz.progress_reset"
)

// PersistenceError wraps a store failure during grading. Nothing was committed; the submission may be retried.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return "persisting attempt: " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

type (
	Repository interface {
		CreateQuiz(ctx context.Context, qz Quiz, questions []QuestionRecord) error
		GetQuiz(ctx context.Context, id string, exec ...core.DBExecutor) (Quiz, error)
		QueryQuizzes(ctx context.Context, courseID string) ([]Quiz, error)
		DeleteQuiz(ctx context.Context, id string) error
		// GetQuestions returns the display data of a quiz, ordered by question then option order.
		GetQuestions(ctx context.Context, quizID string) ([]QuestionView, error)
		GetAnswerKey(ctx context.Context, quizID string, exec ...core.DBExecutor) (AnswerKey, error)

		// LockAttempts serializes submissions of a user on a quiz until the transaction ends.
		LockAttempts(ctx context.Context, userID, quizID string, exec ...core.DBExecutor) error
		QueryAttempts(ctx context.Context, userID, quizID string, exec ...core.DBExecutor) ([]Attempt, error)
		CreateAttempt(ctx context.Context, att Attempt, responses []Response, exec ...core.DBExecutor) error
		DeleteAttempts(ctx context.Context, userID, quizID string, exec ...core.DBExecutor) error
	}

	// ProgressStore is the lesson completion store the reset policy clears.
	ProgressStore interface {
		LessonIDsInScope(ctx context.Context, scope Scope, exec ...core.DBExecutor) ([]string, error)
		DeleteLessonProgress(ctx context.Context, userID string, lessonIDs []string, exec ...core.DBExecutor) error
	}

	Observer interface {
		AttemptGraded(qz Quiz, res Result)
	}

	Service interface {
		Create(ctx context.Context, nq NewQuiz) (QuizView, error)
		Delete(ctx context.Context, id string) error
		Get(ctx context.Context, id string) (Quiz, error)
		GetForDisplay(ctx context.Context, id string) (QuizView, error)
		QueryByCourse(ctx context.Context, courseID string) ([]Quiz, error)
		Submit(ctx context.Context, quizID, userID string, answers map[string]string) (Result, error)
		Status(ctx context.Context, quizID, userID string) (Status, error)
		Attempts(ctx context.Context, quizID, userID string) ([]Attempt, error)
	}

	service struct {
		repo      Repository
		progress  ProgressStore
		tx        core.Transactor
		issuer    certificate.Issuer
		publisher core.EventPublisher
		observer  Observer
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	progress ProgressStore,
	tx core.Transactor,
	issuer certificate.Issuer,
	publisher core.EventPublisher,
	observer Observer,
	logger core.Logger,
) Service {
	return &service{
		repo:      repo,
		progress:  progress,
		tx:        tx,
		issuer:    issuer,
		publisher: publisher,
		observer:  observer,
		logger:    logger,
	}
}

func (svc *service) Create(ctx context.Context, nq NewQuiz) (QuizView, error) {
	qz, err := NewQuizRecord(nq.quiz())
	if err != nil {
		return QuizView{}, core.NewValidationError(err)
	}
	now := time.Now().UTC()
	qz.ID = uuid.New().String()
	qz.CreatedAt = now
	qz.UpdatedAt = now

	view := QuizView{Quiz: qz, Questions: make([]QuestionView, 0, len(nq.Questions))}
	records := make([]QuestionRecord, 0, len(nq.Questions))
	for i, nqs := range nq.Questions {
		rec := QuestionRecord{ID: uuid.New().String(), Text: nqs.Text, OrderIndex: i}
		qv := QuestionView{ID: rec.ID, Text: rec.Text, OrderIndex: i}
		for j, no := range nqs.Options {
			opt := OptionRecord{ID: uuid.New().String(), Text: no.Text, OrderIndex: j, IsCorrect: no.IsCorrect}
			rec.Options = append(rec.Options, opt)
			qv.Options = append(qv.Options, OptionView{ID: opt.ID, Text: opt.Text, OrderIndex: j})
		}
		records = append(records, rec)
		view.Questions = append(view.Questions, qv)
	}

	if err := svc.repo.CreateQuiz(ctx, qz, records); err != nil {
		return QuizView{}, errors.Wrap(err, "creating quiz")
	}
	return view, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteQuiz(ctx, id)
}

func (svc *service) Get(ctx context.Context, id string) (Quiz, error) {
	return svc.repo.GetQuiz(ctx, id)
}

func (svc *service) GetForDisplay(ctx context.Context, id string) (QuizView, error) {
	qz, err := svc.repo.GetQuiz(ctx, id)
	if err != nil {
		return QuizView{}, err
	}
	questions, err := svc.repo.GetQuestions(ctx, id)
	if err != nil {
		return QuizView{}, errors.Wrap(err, "loading questions")
	}
	return QuizView{Quiz: qz, Questions: questions}, nil
}

func (svc *service) QueryByCourse(ctx context.Context, courseID string) ([]Quiz, error) {
	return svc.repo.QueryQuizzes(ctx, courseID)
}

// Submit grades a learner's answers and applies the retry policy, all in one transaction
// holding the (user, quiz) lock. A passed final exam then issues the course certificate.
func (svc *service) Submit(ctx context.Context, quizID, userID string, answers map[string]string) (Result, error) {
	var (
		qz  Quiz
		res Result
	)
	err := svc.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBExecutor) error {
		var err error
		qz, err = svc.repo.GetQuiz(ctx, quizID, tx)
		if err != nil {
			if errors.Cause(err) == ErrQuizNotFound {
				return ErrQuizNotFound
			}
			return persistenceErr(err, "loading quiz")
		}

		if err := svc.repo.LockAttempts(ctx, userID, quizID, tx); err != nil {
			return persistenceErr(err, "locking attempts")
		}
		attempts, err := svc.repo.QueryAttempts(ctx, userID, quizID, tx)
		if err != nil {
			return persistenceErr(err, "loading attempts")
		}
		if statusOf(quizID, attempts).Passed {
			return ErrAlreadyPassed
		}

		key, err := svc.repo.GetAnswerKey(ctx, quizID, tx)
		if err != nil {
			return persistenceErr(err, "loading answer key")
		}
		att, responses, err := evaluate(qz, key, userID, answers)
		if err != nil {
			return err
		}
		att.AttemptNumber = len(attempts) + 1

		if err := svc.repo.CreateAttempt(ctx, att, responses, tx); err != nil {
			return persistenceErr(err, "inserting attempt")
		}

		res = Result{
			Score:             att.Score,
			Passed:            att.Passed,
			CorrectCount:      att.CorrectCount,
			TotalQuestions:    att.TotalQuestions,
			PassingScore:      qz.PassingScore,
			AttemptCount:      att.AttemptNumber,
			AttemptID:         att.ID,
			AttemptsRemaining: attemptsRemaining(att.Passed, att.AttemptNumber),
		}
		if shouldReset(att) {
			if err := svc.resetProgress(ctx, qz, userID, tx); err != nil {
				return err
			}
			res.ProgressReset = true
			res.AttemptsRemaining = MaxAttempts
		}
		return nil
	})
	if err != nil {
		if isSubmitError(err) {
			return Result{}, err
		}
		return Result{}, persistenceErr(err, "committing attempt")
	}

	if res.Passed && qz.IsFinalExam {
		if cert, err := svc.issuer.Issue(ctx, userID, qz.CourseID); err != nil {
			svc.logger.Error("issuing certificate", errors.Wrapf(err, "user %s, quiz %s", userID, qz.ID))
		} else {
			res.CertificateNumber = cert.Number
		}
	}
	svc.afterSubmit(ctx, qz, userID, res)
	return res, nil
}

func (svc *service) afterSubmit(ctx context.Context, qz Quiz, userID string, res Result) {
	if svc.observer != nil {
		svc.observer.AttemptGraded(qz, res)
	}

	payload := map[string]interface{}{
		"userId":    userID,
		"quizId":    qz.ID,
		"courseId":  qz.CourseID,
		"attemptId": res.AttemptID,
		"score":     res.Score,
		"passed":    res.Passed,
	}
	if err := svc.publisher.Publish(ctx, EventAttemptGraded, payload); err != nil {
		svc.logger.Error("publishing attempt event", errors.Wrap(err, "publishing "+EventAttemptGraded))
	}
	if res.ProgressReset {
		if err := svc.publisher.Publish(ctx, EventProgressReset, payload); err != nil {
			svc.logger.Error("publishing reset event", errors.Wrap(err, "publishing "+EventProgressReset))
		}
	}
}

func isSubmitError(err error) bool {
	var perr *PersistenceError
	if errors.As(err, &perr) {
		return true
	}
	switch errors.Cause(err) {
	case ErrQuizNotFound, ErrIncompleteSubmission, ErrInvalidOption, ErrAlreadyPassed:
		return true
	}
	return false
}

func (svc *service) Status(ctx context.Context, quizID, userID string) (Status, error) {
	if _, err := svc.repo.GetQuiz(ctx, quizID); err != nil {
		return Status{}, err
	}
	attempts, err := svc.repo.QueryAttempts(ctx, userID, quizID)
	if err != nil {
		return Status{}, errors.Wrap(err, "loading attempts")
	}
	return statusOf(quizID, attempts), nil
}

func (svc *service) Attempts(ctx context.Context, quizID, userID string) ([]Attempt, error) {
	if _, err := svc.repo.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	return svc.repo.QueryAttempts(ctx, userID, quizID)
}
