package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/newstandard/academy/core/group"
)

const groupColumns = "id, name, leader_id, created_at, updated_at"

type groupRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	LeaderID  null.String `db:"leader_id"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func newGroupRow(g group.Group) groupRow {
	return groupRow{
		ID:        g.ID,
		Name:      g.Name,
		LeaderID:  nullID(g.LeaderID),
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

func (r groupRow) toGroup() group.Group {
	return group.Group{
		ID:        r.ID,
		Name:      r.Name,
		LeaderID:  r.LeaderID.String,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type groupRepository struct {
	db *sqlx.DB
}

var _ group.Repository = (*groupRepository)(nil)

func NewGroupRepository(db *sqlx.DB) group.Repository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) CreateGroup(ctx context.Context, g group.Group) error {
	q := "INSERT INTO groups (" + groupColumns + ") VALUES (:id, :name, :leader_id, :created_at, :updated_at)"
	_, err := repo.db.NamedExecContext(ctx, q, newGroupRow(g))
	return errors.Wrap(err, "inserting group")
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, g group.Group) error {
	q := "UPDATE groups SET name = :name, leader_id = :leader_id, updated_at = :updated_at WHERE id = :id"
	res, err := repo.db.NamedExecContext(ctx, q, newGroupRow(g))
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	return expectRow(res, group.ErrNotFound)
}

func (repo *groupRepository) DeleteGroup(ctx context.Context, id string) error {
	if !isUUID(id) {
		return group.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM groups WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return expectRow(res, group.ErrNotFound)
}

func (repo *groupRepository) getGroup(ctx context.Context, where string, arg string) (group.Group, error) {
	var row groupRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+groupColumns+" FROM groups WHERE "+where+" LIMIT 1", arg); err != nil {
		if err == sql.ErrNoRows {
			return group.Group{}, group.ErrNotFound
		}
		return group.Group{}, errors.Wrap(err, "selecting group")
	}
	return row.toGroup(), nil
}

func (repo *groupRepository) GetGroup(ctx context.Context, id string) (group.Group, error) {
	if !isUUID(id) {
		return group.Group{}, group.ErrNotFound
	}
	return repo.getGroup(ctx, "id = $1", id)
}

func (repo *groupRepository) GetGroupLedBy(ctx context.Context, leaderID string) (group.Group, error) {
	if !isUUID(leaderID) {
		return group.Group{}, group.ErrNotFound
	}
	return repo.getGroup(ctx, "leader_id = $1 ORDER BY created_at", leaderID)
}

func (repo *groupRepository) QueryGroups(ctx context.Context) ([]group.Group, error) {
	var rows []groupRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+groupColumns+" FROM groups ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "selecting groups")
	}
	groups := make([]group.Group, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, r.toGroup())
	}
	return groups, nil
}

// SetMembers replaces the whole member list of the group.
func (repo *groupRepository) SetMembers(ctx context.Context, groupID string, userIDs []string) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM group_members WHERE group_id = $1", groupID); err != nil {
		return errors.Wrap(err, "clearing members")
	}
	if len(userIDs) > 0 {
		q := `INSERT INTO group_members (group_id, user_id)
			SELECT $1, unnest($2::uuid[])
			ON CONFLICT DO NOTHING`
		if _, err := tx.ExecContext(ctx, q, groupID, pq.StringArray(userIDs)); err != nil {
			return errors.Wrap(err, "inserting members")
		}
	}
	return errors.Wrap(tx.Commit(), "committing members")
}

func (repo *groupRepository) QueryMembers(ctx context.Context, groupID string) ([]group.Member, error) {
	q := `SELECT u.id, u.name, u.email
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY u.name`
	rows, err := repo.db.QueryxContext(ctx, q, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting members")
	}
	defer func() { _ = rows.Close() }()

	members := make([]group.Member, 0)
	for rows.Next() {
		var m group.Member
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email); err != nil {
			return nil, errors.Wrap(err, "scanning member")
		}
		members = append(members, m)
	}
	return members, errors.Wrap(rows.Err(), "iterating members")
}

func (repo *groupRepository) GroupIDsOfUser(ctx context.Context, userID string) ([]string, error) {
	ids := make([]string, 0)
	if !isUUID(userID) {
		return ids, nil
	}
	if err := repo.db.SelectContext(ctx, &ids, "SELECT group_id FROM group_members WHERE user_id = $1", userID); err != nil {
		return nil, errors.Wrap(err, "selecting group ids")
	}
	return ids, nil
}
