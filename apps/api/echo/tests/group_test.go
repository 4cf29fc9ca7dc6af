package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newstandard/academy/core/group"
	"github.com/newstandard/academy/core/user"
	"github.com/newstandard/academy/tests"
)

func Test_groupApi(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", testutil.UserOpts{Roles: []string{user.RoleAdmin}})
	leader := testutil.CreateUser(t, usrRepo, "Lead", "lead@test.cd", "", testutil.UserOpts{Roles: []string{user.RoleLeader}})
	amy := testutil.CreateUser(t, usrRepo, "Amy", "amy@test.cd", "")
	bob := testutil.CreateUser(t, usrRepo, "Bob", "bob@test.cd", "")
	adminToken := getToken(t, admin)

	runHttpTests(t, app, []httpTest{
		{name: "admin only", path: "/v1/groups", token: getToken(t, leader), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "name required", method: http.MethodPost, path: "/v1/groups", token: adminToken, body: []byte(`{"name":""}`), wantCode: http.StatusBadRequest},
		{
			name: "learners cannot lead", method: http.MethodPost, path: "/v1/groups", token: adminToken,
			body: marchallObj(t, group.NewGroup{Name: "Team", LeaderID: amy.ID}), wantCode: http.StatusBadRequest,
		},
		{name: "none yet", path: "/v1/groups", token: adminToken, wantData: []byte(`[]`)},
	})

	rec := do(app, http.MethodPost, "/v1/groups", adminToken, marchallObj(t, group.NewGroup{Name: "Team", LeaderID: leader.ID}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var grp group.Group
	unmarshal(t, rec, &grp)
	assert.Equal(t, leader.ID, grp.LeaderID)
	path := "/v1/groups/" + grp.ID

	runHttpTests(t, app, []httpTest{
		{
			name: "unknown member", method: http.MethodPut, path: path + "/members", token: adminToken,
			body: marchallObj(t, group.MembersRequest{UserIDs: []string{amy.ID, "nope"}}), wantCode: http.StatusBadRequest,
		},
		{name: "no members yet", path: path + "/members", token: adminToken, wantData: []byte(`[]`)},
		{name: "rename", method: http.MethodPut, path: path, token: adminToken, body: []byte(`{"name":"Sales"}`)},
		{name: "unknown group", path: "/v1/groups/nope", token: adminToken, wantCode: http.StatusNotFound},
	})

	rec = do(app, http.MethodPut, path+"/members", adminToken, marchallObj(t, group.MembersRequest{UserIDs: []string{amy.ID, bob.ID}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var members []group.Member
	unmarshal(t, rec, &members)
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{"Amy", "Bob"}, names)

	rec = do(app, http.MethodGet, path, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	unmarshal(t, rec, &grp)
	assert.Equal(t, "Sales", grp.Name)
	assert.Equal(t, leader.ID, grp.LeaderID)

	runHttpTests(t, app, []httpTest{
		{name: "delete", method: http.MethodDelete, path: path, token: adminToken, wantCode: http.StatusNoContent},
		{name: "gone", path: path, token: adminToken, wantCode: http.StatusNotFound},
	})
}
