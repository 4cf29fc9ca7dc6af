package group

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/user"
)

var (
	// errors
	ErrNotFound      = errors.New("group not found")
	errNotLeader     = "user is not a leader"
	errUnknownMember = "unknown user"
)

type (
	Repository interface {
		CreateGroup(ctx context.Context, g Group) error
		UpdateGroup(ctx context.Context, g Group) error
		DeleteGroup(ctx context.Context, id string) error
		GetGroup(ctx context.Context, id string) (Group, error)
		QueryGroups(ctx context.Context) ([]Group, error)
		// GetGroupLedBy returns the group whose leader is leaderID.
		GetGroupLedBy(ctx context.Context, leaderID string) (Group, error)
		SetMembers(ctx context.Context, groupID string, userIDs []string) error
		QueryMembers(ctx context.Context, groupID string) ([]Member, error)
		GroupIDsOfUser(ctx context.Context, userID string) ([]string, error)
	}

	Service interface {
		Create(ctx context.Context, ng NewGroup) (Group, error)
		Update(ctx context.Context, id string, ug UpdateGroup) (Group, error)
		Delete(ctx context.Context, id string) error
		Get(ctx context.Context, id string) (Group, error)
		Query(ctx context.Context) ([]Group, error)
		LedBy(ctx context.Context, leaderID string) (Group, error)
		SetMembers(ctx context.Context, groupID string, userIDs []string) error
		Members(ctx context.Context, groupID string) ([]Member, error)
		GroupIDsOf(ctx context.Context, userID string) ([]string, error)
	}

	service struct {
		repo    Repository
		userSvc user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, userSvc user.Service) Service {
	return &service{repo: repo, userSvc: userSvc}
}

func (svc *service) checkLeader(ctx context.Context, leaderID string) error {
	if leaderID == "" {
		return nil
	}
	usr, err := svc.userSvc.GetByID(ctx, leaderID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewFieldError("leader_id", errUnknownMember)
		}
		return errors.Wrap(err, "finding leader")
	}
	if !usr.IsLeader() && !usr.IsAdmin() {
		return core.NewFieldError("leader_id", errNotLeader)
	}
	return nil
}

func (svc *service) Create(ctx context.Context, ng NewGroup) (Group, error) {
	if err := svc.checkLeader(ctx, ng.LeaderID); err != nil {
		return Group{}, err
	}
	now := time.Now().UTC()
	g := Group{
		ID:        uuid.New().String(),
		Name:      ng.Name,
		LeaderID:  ng.LeaderID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := svc.repo.CreateGroup(ctx, g); err != nil {
		return Group{}, errors.Wrap(err, "creating group")
	}
	return g, nil
}

func (svc *service) Update(ctx context.Context, id string, ug UpdateGroup) (Group, error) {
	g, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	g.Name = ug.Name
	if ug.LeaderID != nil {
		if err := svc.checkLeader(ctx, *ug.LeaderID); err != nil {
			return Group{}, err
		}
		g.LeaderID = *ug.LeaderID
	}
	g.UpdatedAt = time.Now().UTC()
	if err := svc.repo.UpdateGroup(ctx, g); err != nil {
		return Group{}, errors.Wrap(err, "updating group")
	}
	return g, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteGroup(ctx, id)
}

func (svc *service) Get(ctx context.Context, id string) (Group, error) {
	return svc.repo.GetGroup(ctx, id)
}

func (svc *service) Query(ctx context.Context) ([]Group, error) {
	return svc.repo.QueryGroups(ctx)
}

func (svc *service) LedBy(ctx context.Context, leaderID string) (Group, error) {
	return svc.repo.GetGroupLedBy(ctx, leaderID)
}

func (svc *service) SetMembers(ctx context.Context, groupID string, userIDs []string) error {
	if _, err := svc.repo.GetGroup(ctx, groupID); err != nil {
		return err
	}
	for _, id := range userIDs {
		if _, err := svc.userSvc.GetByID(ctx, id); err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return core.NewFieldError("user_ids", errUnknownMember+": "+id)
			}
			return errors.Wrap(err, "finding member")
		}
	}
	return svc.repo.SetMembers(ctx, groupID, userIDs)
}

func (svc *service) Members(ctx context.Context, groupID string) ([]Member, error) {
	if _, err := svc.repo.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMembers(ctx, groupID)
}

func (svc *service) GroupIDsOf(ctx context.Context, userID string) ([]string, error) {
	return svc.repo.GroupIDsOfUser(ctx, userID)
}
