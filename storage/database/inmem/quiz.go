package inmemdb

import (
	"context"
	"sort"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/quiz"
)

type quizRepository struct {
	db *DB
}

var _ quiz.Repository = (*quizRepository)(nil)

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{db: db}
}

func (repo *quizRepository) CreateQuiz(ctx context.Context, qz quiz.Quiz, questions []quiz.QuestionRecord) error {
	defer repo.db.lock(ctx)()

	repo.db.t.quizzes[qz.ID] = qz
	repo.db.t.questions[qz.ID] = append([]quiz.QuestionRecord{}, questions...)
	return nil
}

func (repo *quizRepository) GetQuiz(_ context.Context, id string, _ ...core.DBExecutor) (quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if qz, ok := repo.db.t.quizzes[id]; ok {
		return qz, nil
	}
	return quiz.Quiz{}, quiz.ErrQuizNotFound
}

func (repo *quizRepository) QueryQuizzes(_ context.Context, courseID string) ([]quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	quizzes := make([]quiz.Quiz, 0)
	for _, qz := range repo.db.t.quizzes {
		if qz.CourseID == courseID {
			quizzes = append(quizzes, qz)
		}
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].CreatedAt.Before(quizzes[j].CreatedAt) })
	return quizzes, nil
}

func (repo *quizRepository) DeleteQuiz(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.quizzes[id]; !ok {
		return quiz.ErrQuizNotFound
	}
	repo.db.t.deleteQuiz(id)
	return nil
}

func (repo *quizRepository) sortedQuestions(quizID string) []quiz.QuestionRecord {
	questions := append([]quiz.QuestionRecord{}, repo.db.t.questions[quizID]...)
	sort.SliceStable(questions, func(i, j int) bool { return questions[i].OrderIndex < questions[j].OrderIndex })
	return questions
}

func (repo *quizRepository) GetQuestions(_ context.Context, quizID string) ([]quiz.QuestionView, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	views := make([]quiz.QuestionView, 0)
	for _, qs := range repo.sortedQuestions(quizID) {
		qv := quiz.QuestionView{ID: qs.ID, Text: qs.Text, OrderIndex: qs.OrderIndex}
		opts := append([]quiz.OptionRecord{}, qs.Options...)
		sort.SliceStable(opts, func(i, j int) bool { return opts[i].OrderIndex < opts[j].OrderIndex })
		for _, o := range opts {
			qv.Options = append(qv.Options, quiz.OptionView{ID: o.ID, Text: o.Text, OrderIndex: o.OrderIndex})
		}
		views = append(views, qv)
	}
	return views, nil
}

func (repo *quizRepository) GetAnswerKey(_ context.Context, quizID string, _ ...core.DBExecutor) (quiz.AnswerKey, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	key := quiz.AnswerKey{QuizID: quizID}
	for _, qs := range repo.sortedQuestions(quizID) {
		kq := quiz.KeyQuestion{QuestionID: qs.ID, Options: make(map[string]bool, len(qs.Options))}
		for _, o := range qs.Options {
			kq.Options[o.ID] = o.IsCorrect
		}
		key.Questions = append(key.Questions, kq)
	}
	return key, nil
}

// LockAttempts is a no-op: the transactor already runs one transaction at a time.
func (repo *quizRepository) LockAttempts(context.Context, string, string, ...core.DBExecutor) error {
	return nil
}

func (repo *quizRepository) QueryAttempts(_ context.Context, userID, quizID string, _ ...core.DBExecutor) ([]quiz.Attempt, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	attempts := make([]quiz.Attempt, 0)
	for _, att := range repo.db.t.attempts {
		if att.UserID == userID && att.QuizID == quizID {
			attempts = append(attempts, att)
		}
	}
	sort.Slice(attempts, func(i, j int) bool {
		if attempts[i].AttemptNumber != attempts[j].AttemptNumber {
			return attempts[i].AttemptNumber < attempts[j].AttemptNumber
		}
		return attempts[i].CreatedAt.Before(attempts[j].CreatedAt)
	})
	return attempts, nil
}

func (repo *quizRepository) CreateAttempt(ctx context.Context, att quiz.Attempt, responses []quiz.Response, _ ...core.DBExecutor) error {
	defer repo.db.lock(ctx)()

	repo.db.t.attempts[att.ID] = att
	repo.db.t.responses[att.ID] = append([]quiz.Response{}, responses...)
	return nil
}

func (repo *quizRepository) DeleteAttempts(ctx context.Context, userID, quizID string, _ ...core.DBExecutor) error {
	defer repo.db.lock(ctx)()

	for id, att := range repo.db.t.attempts {
		if att.UserID == userID && att.QuizID == quizID {
			delete(repo.db.t.attempts, id)
			delete(repo.db.t.responses, id)
		}
	}
	return nil
}
