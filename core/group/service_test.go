package group_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/group"
	"github.com/newstandard/academy/core/user"
	"github.com/newstandard/academy/services/email"
	"github.com/newstandard/academy/storage/database/inmem"
	"github.com/newstandard/academy/tests"
)

func setup(t *testing.T) (group.Service, user.Repository) {
	conf := testutil.NewConfig()
	db := inmemdb.Open()
	users := inmemdb.NewUserRepository(db)
	userSvc := user.NewService(users, emailsvc.NewConsoleServiceMock(conf), conf)
	return group.NewService(inmemdb.NewGroupRepository(db), userSvc), users
}

func fieldErr(t *testing.T, err error, field string) string {
	t.Helper()
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "error = %v", err)
	return verr.FieldMap()[field]
}

func TestService_leader(t *testing.T) {
	svc, users := setup(t)
	ctx := context.Background()

	leader := testutil.CreateUser(t, users, "Lead", "lead@test.cd", "", testutil.UserOpts{Roles: []string{user.RoleLeader}})
	admin := testutil.CreateUser(t, users, "Admin", "admin@test.cd", "", testutil.UserOpts{Roles: []string{user.RoleAdmin}})
	learner := testutil.CreateUser(t, users, "Learner", "learner@test.cd", "")

	tests := []struct {
		name     string
		leaderID string
		wantErr  bool
	}{
		{name: "no leader", leaderID: ""},
		{name: "leader", leaderID: leader.ID},
		{name: "admin", leaderID: admin.ID},
		{name: "learner", leaderID: learner.ID, wantErr: true},
		{name: "unknown", leaderID: "nope", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := svc.Create(ctx, group.NewGroup{Name: tt.name, LeaderID: tt.leaderID})
			if tt.wantErr {
				assert.NotEmpty(t, fieldErr(t, err, "leader_id"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.leaderID, g.LeaderID)
		})
	}

	g, err := svc.LedBy(ctx, leader.ID)
	require.NoError(t, err)
	assert.Equal(t, "leader", g.Name)
	_, err = svc.LedBy(ctx, learner.ID)
	assert.Equal(t, group.ErrNotFound, err)

	// handing the group over
	g, err = svc.Update(ctx, g.ID, group.UpdateGroup{Name: "Team", LeaderID: &admin.ID})
	require.NoError(t, err)
	assert.Equal(t, "Team", g.Name)
	assert.Equal(t, admin.ID, g.LeaderID)
	_, err = svc.Update(ctx, g.ID, group.UpdateGroup{LeaderID: &learner.ID})
	assert.NotEmpty(t, fieldErr(t, err, "leader_id"))

	groups, err := svc.Query(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 3)
}

func TestService_members(t *testing.T) {
	svc, users := setup(t)
	ctx := context.Background()

	bob := testutil.CreateUser(t, users, "Bob", "bob@test.cd", "")
	amy := testutil.CreateUser(t, users, "Amy", "amy@test.cd", "")

	sales, err := svc.Create(ctx, group.NewGroup{Name: "Sales"})
	require.NoError(t, err)
	ops, err := svc.Create(ctx, group.NewGroup{Name: "Ops"})
	require.NoError(t, err)

	err = svc.SetMembers(ctx, sales.ID, []string{bob.ID, "ghost"})
	assert.Contains(t, fieldErr(t, err, "user_ids"), "ghost")
	assert.Equal(t, group.ErrNotFound, svc.SetMembers(ctx, "nope", nil))

	require.NoError(t, svc.SetMembers(ctx, sales.ID, []string{bob.ID, amy.ID, bob.ID}))
	require.NoError(t, svc.SetMembers(ctx, ops.ID, []string{bob.ID}))

	members, err := svc.Members(ctx, sales.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Amy", members[0].Name)
	assert.Equal(t, "Bob", members[1].Name)

	ids, err := svc.GroupIDsOf(ctx, bob.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{sales.ID, ops.ID}, ids)

	// replacing the member list
	require.NoError(t, svc.SetMembers(ctx, sales.ID, []string{amy.ID}))
	ids, err = svc.GroupIDsOf(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{ops.ID}, ids)

	require.NoError(t, svc.Delete(ctx, ops.ID))
	ids, err = svc.GroupIDsOf(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	_, err = svc.Members(ctx, ops.ID)
	assert.Equal(t, group.ErrNotFound, err)
}
