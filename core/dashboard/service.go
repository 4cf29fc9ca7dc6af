package dashboard

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/group"
)

type (
	Stats struct {
		TotalUsers        int `json:"total_users"`
		ActiveUsers       int `json:"active_users"`
		TotalCourses      int `json:"total_courses"`
		PublishedCourses  int `json:"published_courses"`
		TotalCertificates int `json:"total_certificates"`
		TotalAttempts     int `json:"total_attempts"`
		PassedAttempts    int `json:"passed_attempts"`
	}

	// LearnerRow is one leaderboard line.
	LearnerRow struct {
		UserID           string `json:"user_id"`
		Name             string `json:"name"`
		Email            string `json:"email"`
		CompletedLessons int    `json:"completed_lessons"`
		TotalLessons     int    `json:"total_lessons"`
		Progress         int    `json:"progress"` // percentage
		Certificates     int    `json:"certificates"`
	}

	GroupBoard struct {
		Group   group.Group  `json:"group"`
		Members []LearnerRow `json:"members"`
	}

	Repository interface {
		Stats(ctx context.Context) (Stats, error)
		// LearnerRows returns the non-admin users with their completed lessons (of published courses) and certificates.
		// userIDs restricts the result when not nil.
		LearnerRows(ctx context.Context, userIDs []string) ([]LearnerRow, error)
		// CountLessons counts the lessons of published courses.
		CountLessons(ctx context.Context) (int, error)
	}

	Service interface {
		AdminStats(ctx context.Context) (Stats, error)
		Leaderboard(ctx context.Context) ([]LearnerRow, error)
		LeaderBoard(ctx context.Context, leaderID string) (GroupBoard, error)
	}

	service struct {
		repo   Repository
		groups group.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, groups group.Service) Service {
	return &service{repo: repo, groups: groups}
}

func (svc *service) AdminStats(ctx context.Context) (Stats, error) {
	return svc.repo.Stats(ctx)
}

func (svc *service) Leaderboard(ctx context.Context) ([]LearnerRow, error) {
	return svc.rows(ctx, nil)
}

// LeaderBoard is the leaderboard restricted to the members of the group led by leaderID.
func (svc *service) LeaderBoard(ctx context.Context, leaderID string) (GroupBoard, error) {
	g, err := svc.groups.LedBy(ctx, leaderID)
	if err != nil {
		return GroupBoard{}, err
	}
	members, err := svc.groups.Members(ctx, g.ID)
	if err != nil {
		return GroupBoard{}, errors.Wrap(err, "querying group members")
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	rows := []LearnerRow{}
	if len(ids) > 0 {
		if rows, err = svc.rows(ctx, ids); err != nil {
			return GroupBoard{}, err
		}
	}
	return GroupBoard{Group: g, Members: rows}, nil
}

func (svc *service) rows(ctx context.Context, userIDs []string) ([]LearnerRow, error) {
	total, err := svc.repo.CountLessons(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "counting lessons")
	}
	rows, err := svc.repo.LearnerRows(ctx, userIDs)
	if err != nil {
		return nil, errors.Wrap(err, "querying learner rows")
	}
	for i := range rows {
		rows[i].TotalLessons = total
		rows[i].Progress = core.Percent(rows[i].CompletedLessons, total)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Progress != rows[j].Progress {
			return rows[i].Progress > rows[j].Progress
		}
		if rows[i].Certificates != rows[j].Certificates {
			return rows[i].Certificates > rows[j].Certificates
		}
		return rows[i].Name < rows[j].Name
	})
	return rows, nil
}
