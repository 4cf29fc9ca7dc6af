package dashboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newstandard/academy/core/certificate"
	"github.com/newstandard/academy/core/dashboard"
	"github.com/newstandard/academy/core/group"
	"github.com/newstandard/academy/core/user"
	"github.com/newstandard/academy/services/email"
	"github.com/newstandard/academy/storage/database/inmem"
	"github.com/newstandard/academy/tests"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	conf := testutil.NewConfig()
	db := inmemdb.Open()
	users := inmemdb.NewUserRepository(db)
	courses := inmemdb.NewCourseRepository(db)
	certs := inmemdb.NewCertificateRepository(db)
	groups := group.NewService(inmemdb.NewGroupRepository(db), user.NewService(users, emailsvc.NewConsoleServiceMock(conf), conf))
	svc := dashboard.NewService(inmemdb.NewDashboardRepository(db), groups)

	testutil.CreateUser(t, users, "Admin", "admin@test.cd", "", testutil.UserOpts{Roles: []string{user.RoleAdmin}})
	leader := testutil.CreateUser(t, users, "Lead", "lead@test.cd", "", testutil.UserOpts{Roles: []string{user.RoleLeader}})
	amy := testutil.CreateUser(t, users, "Amy", "amy@test.cd", "")
	bob := testutil.CreateUser(t, users, "Bob", "bob@test.cd", "")
	cid := testutil.CreateUser(t, users, "Cid", "cid@test.cd", "", testutil.UserOpts{Inactive: true})

	pub := testutil.CreateCourse(t, courses, "Published", true)
	m := testutil.CreateModule(t, courses, pub.ID, "M", 0)
	l1 := testutil.CreateLesson(t, courses, m, "L1", 0)
	l2 := testutil.CreateLesson(t, courses, m, "L2", 1)
	draft := testutil.CreateCourse(t, courses, "Draft", false)
	dl := testutil.CreateLesson(t, courses, testutil.CreateModule(t, courses, draft.ID, "DM", 0), "DL", 0)

	testutil.CompleteLesson(t, courses, amy.ID, l1.ID)
	testutil.CompleteLesson(t, courses, bob.ID, l1.ID)
	testutil.CompleteLesson(t, courses, bob.ID, l2.ID)
	testutil.CompleteLesson(t, courses, amy.ID, dl.ID) // drafts don't count
	testutil.CompleteLesson(t, courses, cid.ID, l1.ID)
	_, err := certs.Create(ctx, certificate.Certificate{ID: "1", UserID: amy.ID, CourseID: pub.ID, Number: "CERT-1", IssuedAt: time.Now().UTC()})
	require.NoError(t, err)

	t.Run("stats", func(t *testing.T) {
		stats, err := svc.AdminStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, stats.TotalUsers)
		assert.Equal(t, 4, stats.ActiveUsers)
		assert.Equal(t, 2, stats.TotalCourses)
		assert.Equal(t, 1, stats.PublishedCourses)
		assert.Equal(t, 1, stats.TotalCertificates)
	})

	t.Run("leaderboard", func(t *testing.T) {
		rows, err := svc.Leaderboard(ctx)
		require.NoError(t, err)

		names := make([]string, 0, len(rows))
		for _, r := range rows {
			names = append(names, r.Name)
		}
		// progress desc, then certificates desc, then name
		assert.Equal(t, []string{"Bob", "Amy", "Cid", "Lead"}, names)
		assert.Equal(t, 100, rows[0].Progress)
		assert.Equal(t, 2, rows[0].TotalLessons)
		assert.Equal(t, 50, rows[1].Progress)
		assert.Equal(t, 1, rows[1].CompletedLessons)
		assert.Equal(t, 1, rows[1].Certificates)
		assert.Equal(t, 0, rows[3].Progress)
	})

	t.Run("leader board", func(t *testing.T) {
		_, err := svc.LeaderBoard(ctx, leader.ID)
		assert.Equal(t, group.ErrNotFound, err)

		g, err := groups.Create(ctx, group.NewGroup{Name: "Team", LeaderID: leader.ID})
		require.NoError(t, err)

		board, err := svc.LeaderBoard(ctx, leader.ID)
		require.NoError(t, err)
		assert.Equal(t, g.ID, board.Group.ID)
		assert.Empty(t, board.Members)

		require.NoError(t, groups.SetMembers(ctx, g.ID, []string{amy.ID, cid.ID}))
		board, err = svc.LeaderBoard(ctx, leader.ID)
		require.NoError(t, err)
		require.Len(t, board.Members, 2)
		assert.Equal(t, amy.ID, board.Members[0].UserID)
		assert.Equal(t, cid.ID, board.Members[1].UserID)
	})
}
