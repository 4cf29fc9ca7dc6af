package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/newstandard/academy/core/dashboard"
	"github.com/newstandard/academy/core/user"
)

type dashboardRepository struct {
	db *sqlx.DB
}

var _ dashboard.Repository = (*dashboardRepository)(nil)

func NewDashboardRepository(db *sqlx.DB) dashboard.Repository {
	return &dashboardRepository{db: db}
}

func (repo *dashboardRepository) Stats(ctx context.Context) (dashboard.Stats, error) {
	q := `SELECT
		(SELECT COUNT(*) FROM users) AS total_users,
		(SELECT COUNT(*) FROM users WHERE is_active) AS active_users,
		(SELECT COUNT(*) FROM courses) AS total_courses,
		(SELECT COUNT(*) FROM courses WHERE is_published) AS published_courses,
		(SELECT COUNT(*) FROM certificates) AS total_certificates,
		(SELECT COUNT(*) FROM quiz_attempts) AS total_attempts,
		(SELECT COUNT(*) FROM quiz_attempts WHERE passed) AS passed_attempts`
	var s struct {
		TotalUsers        int `db:"total_users"`
		ActiveUsers       int `db:"active_users"`
		TotalCourses      int `db:"total_courses"`
		PublishedCourses  int `db:"published_courses"`
		TotalCertificates int `db:"total_certificates"`
		TotalAttempts     int `db:"total_attempts"`
		PassedAttempts    int `db:"passed_attempts"`
	}
	if err := repo.db.GetContext(ctx, &s, q); err != nil {
		return dashboard.Stats{}, errors.Wrap(err, "selecting stats")
	}
	return dashboard.Stats(s), nil
}

func (repo *dashboardRepository) LearnerRows(ctx context.Context, userIDs []string) ([]dashboard.LearnerRow, error) {
	q := `SELECT u.id, u.name, u.email,
			(SELECT COUNT(*) FROM user_progress p
				JOIN lessons l ON l.id = p.lesson_id
				JOIN courses c ON c.id = l.course_id
				WHERE p.user_id = u.id AND c.is_published) AS completed_lessons,
			(SELECT COUNT(*) FROM certificates ce WHERE ce.user_id = u.id) AS certificates
		FROM users u
		WHERE NOT (u.roles && $1)`
	args := []interface{}{pq.StringArray(user.AdminRoles)}
	if userIDs != nil {
		q += " AND u.id = ANY($2::uuid[])"
		args = append(args, pq.StringArray(userIDs))
	}

	rows, err := repo.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "selecting learner rows")
	}
	defer func() { _ = rows.Close() }()

	out := make([]dashboard.LearnerRow, 0)
	for rows.Next() {
		var r dashboard.LearnerRow
		if err := rows.Scan(&r.UserID, &r.Name, &r.Email, &r.CompletedLessons, &r.Certificates); err != nil {
			return nil, errors.Wrap(err, "scanning learner row")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterating learner rows")
}

func (repo *dashboardRepository) CountLessons(ctx context.Context) (int, error) {
	q := "SELECT COUNT(*) FROM lessons l JOIN courses c ON c.id = l.course_id WHERE c.is_published"
	var n int
	if err := repo.db.GetContext(ctx, &n, q); err != nil {
		return 0, errors.Wrap(err, "counting lessons")
	}
	return n, nil
}
