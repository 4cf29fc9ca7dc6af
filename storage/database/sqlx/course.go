package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/course"
	"github.com/newstandard/academy/core/quiz"
)

type courseRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	ThumbnailURL string    `db:"thumbnail_url"`
	IsPublished  bool      `db:"is_published"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r courseRow) toCourse() course.Course {
	return course.Course{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		ThumbnailURL: r.ThumbnailURL,
		IsPublished:  r.IsPublished,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type quizRefRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	LessonID    null.String `db:"lesson_id"`
	ModuleID    null.String `db:"module_id"`
	IsFinalExam bool        `db:"is_final_exam"`
}

// courseRepository also serves as the progress store of the quiz reset policy.
type courseRepository struct {
	db *sqlx.DB
}

var (
	_ course.Repository  = (*courseRepository)(nil)
	_ quiz.ProgressStore = (*courseRepository)(nil)
)

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) error {
	q := `INSERT INTO courses (id, title, description, thumbnail_url, is_published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.ExecContext(ctx, q, c.ID, c.Title, c.Description, c.ThumbnailURL, c.IsPublished, c.CreatedAt, c.UpdatedAt)
	return errors.Wrap(err, "inserting course")
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) error {
	q := `UPDATE courses SET title = $2, description = $3, thumbnail_url = $4, is_published = $5, updated_at = $6
		WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q, c.ID, c.Title, c.Description, c.ThumbnailURL, c.IsPublished, c.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return expectRow(res, course.ErrNotFound)
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	if !isUUID(id) {
		return course.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return expectRow(res, course.ErrNotFound)
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	if !isUUID(id) {
		return course.Course{}, course.ErrNotFound
	}
	var row courseRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM courses WHERE id = $1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "selecting course")
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, publishedOnly bool) ([]course.Course, error) {
	q := "SELECT * FROM courses"
	if publishedOnly {
		q += " WHERE is_published"
	}
	q += " ORDER BY created_at, title"

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.toCourse())
	}
	return courses, nil
}

func (repo *courseRepository) CreateModule(ctx context.Context, m course.Module) error {
	q := "INSERT INTO course_modules (id, course_id, title, order_index) VALUES ($1, $2, $3, $4)"
	_, err := repo.db.ExecContext(ctx, q, m.ID, m.CourseID, m.Title, m.OrderIndex)
	return errors.Wrap(err, "inserting module")
}

func (repo *courseRepository) GetModule(ctx context.Context, id string) (course.Module, error) {
	if !isUUID(id) {
		return course.Module{}, course.ErrModuleNotFound
	}
	var m course.Module
	q := "SELECT id, course_id, title, order_index FROM course_modules WHERE id = $1"
	if err := repo.db.QueryRowxContext(ctx, q, id).Scan(&m.ID, &m.CourseID, &m.Title, &m.OrderIndex); err != nil {
		if err == sql.ErrNoRows {
			return course.Module{}, course.ErrModuleNotFound
		}
		return course.Module{}, errors.Wrap(err, "selecting module")
	}
	return m, nil
}

func (repo *courseRepository) DeleteModule(ctx context.Context, id string) error {
	if !isUUID(id) {
		return course.ErrModuleNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM course_modules WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return expectRow(res, course.ErrModuleNotFound)
}

func (repo *courseRepository) QueryModules(ctx context.Context, courseID string) ([]course.Module, error) {
	rows, err := repo.db.QueryxContext(ctx,
		"SELECT id, course_id, title, order_index FROM course_modules WHERE course_id = $1 ORDER BY order_index, title",
		courseID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting modules")
	}
	defer func() { _ = rows.Close() }()

	modules := make([]course.Module, 0)
	for rows.Next() {
		var m course.Module
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Title, &m.OrderIndex); err != nil {
			return nil, errors.Wrap(err, "scanning module")
		}
		modules = append(modules, m)
	}
	return modules, errors.Wrap(rows.Err(), "iterating modules")
}

const lessonColumns = "id, module_id, course_id, title, video_url, duration_seconds, order_index"

func scanLessons(rows *sqlx.Rows) ([]course.Lesson, error) {
	defer func() { _ = rows.Close() }()
	lessons := make([]course.Lesson, 0)
	for rows.Next() {
		var l course.Lesson
		if err := rows.Scan(&l.ID, &l.ModuleID, &l.CourseID, &l.Title, &l.VideoURL, &l.DurationSeconds, &l.OrderIndex); err != nil {
			return nil, errors.Wrap(err, "scanning lesson")
		}
		lessons = append(lessons, l)
	}
	return lessons, errors.Wrap(rows.Err(), "iterating lessons")
}

func (repo *courseRepository) CreateLesson(ctx context.Context, l course.Lesson) error {
	q := "INSERT INTO lessons (" + lessonColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7)"
	_, err := repo.db.ExecContext(ctx, q, l.ID, l.ModuleID, l.CourseID, l.Title, l.VideoURL, l.DurationSeconds, l.OrderIndex)
	return errors.Wrap(err, "inserting lesson")
}

func (repo *courseRepository) GetLesson(ctx context.Context, id string) (course.Lesson, error) {
	if !isUUID(id) {
		return course.Lesson{}, course.ErrLessonNotFound
	}
	rows, err := repo.db.QueryxContext(ctx, "SELECT "+lessonColumns+" FROM lessons WHERE id = $1", id)
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "selecting lesson")
	}
	lessons, err := scanLessons(rows)
	if err != nil {
		return course.Lesson{}, err
	}
	if len(lessons) == 0 {
		return course.Lesson{}, course.ErrLessonNotFound
	}
	return lessons[0], nil
}

func (repo *courseRepository) DeleteLesson(ctx context.Context, id string) error {
	if !isUUID(id) {
		return course.ErrLessonNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM lessons WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return expectRow(res, course.ErrLessonNotFound)
}

func (repo *courseRepository) QueryLessons(ctx context.Context, courseID string) ([]course.Lesson, error) {
	q := "SELECT l.id, l.module_id, l.course_id, l.title, l.video_url, l.duration_seconds, l.order_index " +
		"FROM lessons l JOIN course_modules m ON m.id = l.module_id"
	var args []interface{}
	if courseID != "" {
		q += " WHERE l.course_id = $1"
		args = append(args, courseID)
	}
	q += " ORDER BY l.course_id, m.order_index, l.order_index"

	rows, err := repo.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "selecting lessons")
	}
	return scanLessons(rows)
}

func (repo *courseRepository) QueryQuizRefs(ctx context.Context, courseID string) ([]course.QuizRef, error) {
	var rows []quizRefRow
	q := "SELECT id, title, lesson_id, module_id, is_final_exam FROM quizzes WHERE course_id = $1 ORDER BY created_at"
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting quizzes")
	}
	refs := make([]course.QuizRef, 0, len(rows))
	for _, r := range rows {
		refs = append(refs, course.QuizRef{
			ID:          r.ID,
			Title:       r.Title,
			LessonID:    r.LessonID.String,
			ModuleID:    r.ModuleID.String,
			IsFinalExam: r.IsFinalExam,
		})
	}
	return refs, nil
}

func (repo *courseRepository) GetAccess(ctx context.Context, courseID string) ([]string, error) {
	types := make([]string, 0)
	q := "SELECT user_type FROM course_access WHERE course_id = $1 ORDER BY user_type"
	if err := repo.db.SelectContext(ctx, &types, q, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting course access")
	}
	return types, nil
}

func (repo *courseRepository) SetAccess(ctx context.Context, courseID string, userTypes []string) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM course_access WHERE course_id = $1", courseID); err != nil {
		return errors.Wrap(err, "clearing course access")
	}
	for _, t := range userTypes {
		if _, err := tx.ExecContext(ctx, "INSERT INTO course_access (course_id, user_type) VALUES ($1, $2)", courseID, t); err != nil {
			return errors.Wrap(err, "inserting course access")
		}
	}
	return errors.Wrap(tx.Commit(), "committing course access")
}

func (repo *courseRepository) CompletedLessonIDs(ctx context.Context, userID, courseID string) ([]string, error) {
	q := "SELECT p.lesson_id FROM user_progress p"
	args := []interface{}{userID}
	if courseID != "" {
		q += " JOIN lessons l ON l.id = p.lesson_id WHERE p.user_id = $1 AND p.completed AND l.course_id = $2"
		args = append(args, courseID)
	} else {
		q += " WHERE p.user_id = $1 AND p.completed"
	}

	ids := make([]string, 0)
	if err := repo.db.SelectContext(ctx, &ids, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting progress")
	}
	return ids, nil
}

func (repo *courseRepository) MarkLessonComplete(ctx context.Context, p course.Progress) error {
	q := `INSERT INTO user_progress (user_id, lesson_id, completed, completed_at) VALUES ($1, $2, true, $3)
		ON CONFLICT (user_id, lesson_id) DO UPDATE SET completed = true`
	_, err := repo.db.ExecContext(ctx, q, p.UserID, p.LessonID, p.CompletedAt)
	return errors.Wrap(err, "upserting progress")
}

func (repo *courseRepository) LessonIDsInScope(ctx context.Context, scope quiz.Scope, exec ...core.DBExecutor) ([]string, error) {
	var q string
	switch scope.Kind {
	case quiz.ScopeLesson:
		q = "SELECT id FROM lessons WHERE id = $1"
	case quiz.ScopeModule:
		q = "SELECT id FROM lessons WHERE module_id = $1"
	default:
		q = "SELECT id FROM lessons WHERE course_id = $1"
	}
	ids := make([]string, 0)
	if err := sqlx.SelectContext(ctx, extOf(repo.db, exec), &ids, q, scope.ID); err != nil {
		return nil, errors.Wrap(err, "selecting lessons in scope")
	}
	return ids, nil
}

func (repo *courseRepository) DeleteLessonProgress(ctx context.Context, userID string, lessonIDs []string, exec ...core.DBExecutor) error {
	q := "DELETE FROM user_progress WHERE user_id = $1 AND lesson_id = ANY($2)"
	_, err := extOf(repo.db, exec).ExecContext(ctx, q, userID, pq.StringArray(lessonIDs))
	return errors.Wrap(err, "deleting progress")
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
