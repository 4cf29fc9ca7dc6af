package inmemdb

import (
	"context"
	"sort"

	"github.com/newstandard/academy/core/group"
)

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil)

func NewGroupRepository(db *DB) group.Repository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) CreateGroup(ctx context.Context, g group.Group) error {
	defer repo.db.lock(ctx)()
	repo.db.t.groups[g.ID] = g
	return nil
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, g group.Group) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.groups[g.ID]; !ok {
		return group.ErrNotFound
	}
	repo.db.t.groups[g.ID] = g
	return nil
}

func (repo *groupRepository) DeleteGroup(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.groups[id]; !ok {
		return group.ErrNotFound
	}
	delete(repo.db.t.groups, id)
	delete(repo.db.t.members, id)
	for sid, ids := range repo.db.t.sectionAccess {
		repo.db.t.sectionAccess[sid] = without(ids, id)
	}
	return nil
}

func (repo *groupRepository) GetGroup(_ context.Context, id string) (group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if g, ok := repo.db.t.groups[id]; ok {
		return g, nil
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) sorted(keep func(group.Group) bool) []group.Group {
	groups := make([]group.Group, 0)
	for _, g := range repo.db.t.groups {
		if keep(g) {
			groups = append(groups, g)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}

func (repo *groupRepository) QueryGroups(context.Context) ([]group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.sorted(func(group.Group) bool { return true }), nil
}

func (repo *groupRepository) GetGroupLedBy(_ context.Context, leaderID string) (group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	led := repo.sorted(func(g group.Group) bool { return leaderID != "" && g.LeaderID == leaderID })
	if len(led) == 0 {
		return group.Group{}, group.ErrNotFound
	}
	sort.SliceStable(led, func(i, j int) bool { return led[i].CreatedAt.Before(led[j].CreatedAt) })
	return led[0], nil
}

func (repo *groupRepository) SetMembers(ctx context.Context, groupID string, userIDs []string) error {
	defer repo.db.lock(ctx)()

	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if !contains(ids, id) {
			ids = append(ids, id)
		}
	}
	repo.db.t.members[groupID] = ids
	return nil
}

func (repo *groupRepository) QueryMembers(_ context.Context, groupID string) ([]group.Member, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	members := make([]group.Member, 0)
	for _, id := range repo.db.t.members[groupID] {
		if usr, ok := repo.db.t.users[id]; ok {
			members = append(members, group.Member{UserID: usr.ID, Name: usr.Name, Email: usr.Email})
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}

func (repo *groupRepository) GroupIDsOfUser(_ context.Context, userID string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]string, 0)
	for gid, members := range repo.db.t.members {
		if contains(members, userID) {
			ids = append(ids, gid)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
