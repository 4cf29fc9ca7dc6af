package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newstandard/academy/core/dashboard"
	"github.com/newstandard/academy/core/group"
	"github.com/newstandard/academy/core/user"
	"github.com/newstandard/academy/tests"
)

func Test_dashboardApi(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", testutil.UserOpts{Roles: []string{user.RoleAdmin}})
	leader := testutil.CreateUser(t, usrRepo, "Lead", "lead@test.cd", "", testutil.UserOpts{Roles: []string{user.RoleLeader}})
	amy := testutil.CreateUser(t, usrRepo, "Amy", "amy@test.cd", "")
	bob := testutil.CreateUser(t, usrRepo, "Bob", "bob@test.cd", "")

	c := testutil.CreateCourse(t, courseRepo, "Onboarding", true)
	m := testutil.CreateModule(t, courseRepo, c.ID, "M", 0)
	l := testutil.CreateLesson(t, courseRepo, m, "L", 0)
	testutil.CreateLesson(t, courseRepo, m, "L2", 1)
	testutil.CompleteLesson(t, courseRepo, bob.ID, l.ID)

	runHttpTests(t, app, []httpTest{
		{name: "stats admin only", path: "/v1/admin/stats", token: getToken(t, leader), wantCode: http.StatusForbidden},
		{name: "leader dashboard forbidden to learners", path: "/v1/leader/dashboard", token: getToken(t, amy), wantCode: http.StatusForbidden},
		{name: "leader without group", path: "/v1/leader/dashboard", token: getToken(t, leader), wantCode: http.StatusNotFound},
	})

	grp, err := groupSvc.Create(ctx, group.NewGroup{Name: "Team", LeaderID: leader.ID})
	require.NoError(t, err)
	require.NoError(t, groupSvc.SetMembers(ctx, grp.ID, []string{amy.ID, bob.ID}))

	rec := do(app, http.MethodGet, "/v1/leader/dashboard", getToken(t, leader))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var board dashboard.GroupBoard
	unmarshal(t, rec, &board)
	assert.Equal(t, grp.ID, board.Group.ID)
	require.Len(t, board.Members, 2)
	assert.Equal(t, "Bob", board.Members[0].Name)
	assert.Equal(t, 50, board.Members[0].Progress)

	rec = do(app, http.MethodGet, "/v1/admin/leaderboard", getToken(t, admin))
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []dashboard.LearnerRow
	unmarshal(t, rec, &rows)
	assert.Len(t, rows, 3) // admins are left out

	rec = do(app, http.MethodGet, "/v1/admin/stats", getToken(t, admin))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats dashboard.Stats
	unmarshal(t, rec, &stats)
	assert.Equal(t, 4, stats.TotalUsers)
	assert.Equal(t, 1, stats.PublishedCourses)
}
