package inmemdb

import (
	"context"

	"github.com/newstandard/academy/core/dashboard"
)

type dashboardRepository struct {
	db *DB
}

var _ dashboard.Repository = (*dashboardRepository)(nil)

func NewDashboardRepository(db *DB) dashboard.Repository {
	return &dashboardRepository{db: db}
}

func (repo *dashboardRepository) Stats(context.Context) (dashboard.Stats, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	t := repo.db.t
	s := dashboard.Stats{
		TotalUsers:        len(t.users),
		TotalCourses:      len(t.courses),
		TotalCertificates: len(t.certificates),
		TotalAttempts:     len(t.attempts),
	}
	for _, u := range t.users {
		if u.IsActive {
			s.ActiveUsers++
		}
	}
	for _, c := range t.courses {
		if c.IsPublished {
			s.PublishedCourses++
		}
	}
	for _, att := range t.attempts {
		if att.Passed {
			s.PassedAttempts++
		}
	}
	return s, nil
}

func (repo *dashboardRepository) publishedLesson(lessonID string) bool {
	l, ok := repo.db.t.lessons[lessonID]
	return ok && repo.db.t.courses[l.CourseID].IsPublished
}

func (repo *dashboardRepository) LearnerRows(_ context.Context, userIDs []string) ([]dashboard.LearnerRow, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	t := repo.db.t
	rows := make([]dashboard.LearnerRow, 0)
	for _, u := range t.users {
		if u.IsAdmin() || (userIDs != nil && !contains(userIDs, u.ID)) {
			continue
		}
		row := dashboard.LearnerRow{UserID: u.ID, Name: u.Name, Email: u.Email}
		for k, p := range t.progress {
			if k.userID == u.ID && p.Completed && repo.publishedLesson(k.lessonID) {
				row.CompletedLessons++
			}
		}
		for _, cert := range t.certificates {
			if cert.UserID == u.ID {
				row.Certificates++
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (repo *dashboardRepository) CountLessons(context.Context) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for id := range repo.db.t.lessons {
		if repo.publishedLesson(id) {
			n++
		}
	}
	return n, nil
}
