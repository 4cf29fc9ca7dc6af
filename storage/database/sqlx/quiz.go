package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/quiz"
)

const quizColumns = "id, course_id, title, description, passing_score, lesson_id, module_id, is_final_exam, created_at, updated_at"

type quizRow struct {
	ID           string      `db:"id"`
	CourseID     string      `db:"course_id"`
	Title        string      `db:"title"`
	Description  string      `db:"description"`
	PassingScore int         `db:"passing_score"`
	LessonID     null.String `db:"lesson_id"`
	ModuleID     null.String `db:"module_id"`
	IsFinalExam  bool        `db:"is_final_exam"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func (r quizRow) toQuiz() quiz.Quiz {
	return quiz.Quiz{
		ID:           r.ID,
		CourseID:     r.CourseID,
		Title:        r.Title,
		Description:  r.Description,
		PassingScore: r.PassingScore,
		LessonID:     r.LessonID.String,
		ModuleID:     r.ModuleID.String,
		IsFinalExam:  r.IsFinalExam,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type attemptRow struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	QuizID         string    `db:"quiz_id"`
	Score          int       `db:"score"`
	Passed         bool      `db:"passed"`
	CorrectCount   int       `db:"correct_count"`
	TotalQuestions int       `db:"total_questions"`
	AttemptNumber  int       `db:"attempt_number"`
	CreatedAt      time.Time `db:"created_at"`
}

type quizRepository struct {
	db *sqlx.DB
}

var _ quiz.Repository = (*quizRepository)(nil)

func NewQuizRepository(db *sqlx.DB) quiz.Repository {
	return &quizRepository{db: db}
}

func (repo *quizRepository) CreateQuiz(ctx context.Context, qz quiz.Quiz, questions []quiz.QuestionRecord) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	q := "INSERT INTO quizzes (" + quizColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)"
	_, err = tx.ExecContext(ctx, q, qz.ID, qz.CourseID, qz.Title, qz.Description, qz.PassingScore,
		nullID(qz.LessonID), nullID(qz.ModuleID), qz.IsFinalExam, qz.CreatedAt, qz.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "inserting quiz")
	}

	for _, qs := range questions {
		q := "INSERT INTO quiz_questions (id, quiz_id, text, order_index) VALUES ($1, $2, $3, $4)"
		if _, err := tx.ExecContext(ctx, q, qs.ID, qz.ID, qs.Text, qs.OrderIndex); err != nil {
			return errors.Wrap(err, "inserting question")
		}
		for _, opt := range qs.Options {
			q := "INSERT INTO quiz_answer_options (id, question_id, text, order_index, is_correct) VALUES ($1, $2, $3, $4, $5)"
			if _, err := tx.ExecContext(ctx, q, opt.ID, qs.ID, opt.Text, opt.OrderIndex, opt.IsCorrect); err != nil {
				return errors.Wrap(err, "inserting option")
			}
		}
	}
	return errors.Wrap(tx.Commit(), "committing quiz")
}

func (repo *quizRepository) GetQuiz(ctx context.Context, id string, exec ...core.DBExecutor) (quiz.Quiz, error) {
	if !isUUID(id) {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	var row quizRow
	err := sqlx.GetContext(ctx, extOf(repo.db, exec), &row, "SELECT "+quizColumns+" FROM quizzes WHERE id = $1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return quiz.Quiz{}, quiz.ErrQuizNotFound
		}
		return quiz.Quiz{}, errors.Wrap(err, "selecting quiz")
	}
	return row.toQuiz(), nil
}

func (repo *quizRepository) QueryQuizzes(ctx context.Context, courseID string) ([]quiz.Quiz, error) {
	var rows []quizRow
	q := "SELECT " + quizColumns + " FROM quizzes WHERE course_id = $1 ORDER BY created_at"
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting quizzes")
	}
	quizzes := make([]quiz.Quiz, 0, len(rows))
	for _, r := range rows {
		quizzes = append(quizzes, r.toQuiz())
	}
	return quizzes, nil
}

func (repo *quizRepository) DeleteQuiz(ctx context.Context, id string) error {
	if !isUUID(id) {
		return quiz.ErrQuizNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM quizzes WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return expectRow(res, quiz.ErrQuizNotFound)
}

// GetQuestions never selects is_correct.
func (repo *quizRepository) GetQuestions(ctx context.Context, quizID string) ([]quiz.QuestionView, error) {
	q := `SELECT qq.id, qq.text, qq.order_index, o.id, o.text, o.order_index
		FROM quiz_questions qq
		JOIN quiz_answer_options o ON o.question_id = qq.id
		WHERE qq.quiz_id = $1
		ORDER BY qq.order_index, qq.id, o.order_index, o.id`
	rows, err := repo.db.QueryxContext(ctx, q, quizID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting questions")
	}
	defer func() { _ = rows.Close() }()

	questions := make([]quiz.QuestionView, 0)
	for rows.Next() {
		var (
			qv  quiz.QuestionView
			opt quiz.OptionView
		)
		if err := rows.Scan(&qv.ID, &qv.Text, &qv.OrderIndex, &opt.ID, &opt.Text, &opt.OrderIndex); err != nil {
			return nil, errors.Wrap(err, "scanning question")
		}
		if n := len(questions); n == 0 || questions[n-1].ID != qv.ID {
			questions = append(questions, qv)
		}
		last := &questions[len(questions)-1]
		last.Options = append(last.Options, opt)
	}
	return questions, errors.Wrap(rows.Err(), "iterating questions")
}

func (repo *quizRepository) GetAnswerKey(ctx context.Context, quizID string, exec ...core.DBExecutor) (quiz.AnswerKey, error) {
	q := `SELECT qq.id, o.id, o.is_correct
		FROM quiz_questions qq
		LEFT JOIN quiz_answer_options o ON o.question_id = qq.id
		WHERE qq.quiz_id = $1
		ORDER BY qq.order_index, qq.id`
	rows, err := extOf(repo.db, exec).QueryxContext(ctx, q, quizID)
	if err != nil {
		return quiz.AnswerKey{}, errors.Wrap(err, "selecting answer key")
	}
	defer func() { _ = rows.Close() }()

	key := quiz.AnswerKey{QuizID: quizID}
	for rows.Next() {
		var (
			questionID string
			optionID   null.String
			isCorrect  null.Bool
		)
		if err := rows.Scan(&questionID, &optionID, &isCorrect); err != nil {
			return quiz.AnswerKey{}, errors.Wrap(err, "scanning answer key")
		}
		if n := len(key.Questions); n == 0 || key.Questions[n-1].QuestionID != questionID {
			key.Questions = append(key.Questions, quiz.KeyQuestion{QuestionID: questionID, Options: map[string]bool{}})
		}
		if optionID.Valid {
			key.Questions[len(key.Questions)-1].Options[optionID.String] = isCorrect.Bool
		}
	}
	return key, errors.Wrap(rows.Err(), "iterating answer key")
}

// LockAttempts takes a transaction scoped advisory lock; it is released on commit or rollback.
func (repo *quizRepository) LockAttempts(ctx context.Context, userID, quizID string, exec ...core.DBExecutor) error {
	_, err := extOf(repo.db, exec).ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))", userID, quizID)
	return errors.Wrap(err, "locking attempts")
}

func (repo *quizRepository) QueryAttempts(ctx context.Context, userID, quizID string, exec ...core.DBExecutor) ([]quiz.Attempt, error) {
	if !isUUID(quizID) {
		return []quiz.Attempt{}, nil
	}
	var rows []attemptRow
	q := "SELECT * FROM quiz_attempts WHERE user_id = $1 AND quiz_id = $2 ORDER BY attempt_number, created_at"
	if err := sqlx.SelectContext(ctx, extOf(repo.db, exec), &rows, q, userID, quizID); err != nil {
		return nil, errors.Wrap(err, "selecting attempts")
	}
	attempts := make([]quiz.Attempt, 0, len(rows))
	for _, r := range rows {
		attempts = append(attempts, quiz.Attempt{
			ID:             r.ID,
			UserID:         r.UserID,
			QuizID:         r.QuizID,
			Score:          r.Score,
			Passed:         r.Passed,
			CorrectCount:   r.CorrectCount,
			TotalQuestions: r.TotalQuestions,
			AttemptNumber:  r.AttemptNumber,
			CreatedAt:      r.CreatedAt.UTC(),
		})
	}
	return attempts, nil
}

func (repo *quizRepository) CreateAttempt(ctx context.Context, att quiz.Attempt, responses []quiz.Response, exec ...core.DBExecutor) error {
	ext := extOf(repo.db, exec)
	q := `INSERT INTO quiz_attempts (id, user_id, quiz_id, score, passed, correct_count, total_questions, attempt_number, created_at)
		VALUES (:id, :user_id, :quiz_id, :score, :passed, :correct_count, :total_questions, :attempt_number, :created_at)`
	row := attemptRow{
		ID:             att.ID,
		UserID:         att.UserID,
		QuizID:         att.QuizID,
		Score:          att.Score,
		Passed:         att.Passed,
		CorrectCount:   att.CorrectCount,
		TotalQuestions: att.TotalQuestions,
		AttemptNumber:  att.AttemptNumber,
		CreatedAt:      att.CreatedAt,
	}
	if _, err := sqlx.NamedExecContext(ctx, ext, q, row); err != nil {
		return errors.Wrap(err, "inserting attempt")
	}

	for _, resp := range responses {
		q := "INSERT INTO quiz_responses (attempt_id, question_id, selected_option_id, is_correct) VALUES ($1, $2, $3, $4)"
		if _, err := ext.ExecContext(ctx, q, att.ID, resp.QuestionID, resp.SelectedOptionID, resp.IsCorrect); err != nil {
			return errors.Wrap(err, "inserting response")
		}
	}
	return nil
}

// DeleteAttempts relies on ON DELETE CASCADE for the responses.
func (repo *quizRepository) DeleteAttempts(ctx context.Context, userID, quizID string, exec ...core.DBExecutor) error {
	_, err := extOf(repo.db, exec).ExecContext(ctx, "DELETE FROM quiz_attempts WHERE user_id = $1 AND quiz_id = $2", userID, quizID)
	return errors.Wrap(err, "deleting attempts")
}
