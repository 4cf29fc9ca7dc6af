package inmemdb

import (
	"context"
	"sort"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/activity"
)

type activityRepository struct {
	db *DB
}

var _ activity.Repository = (*activityRepository)(nil)

func NewActivityRepository(db *DB) activity.Repository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) CreateLog(ctx context.Context, l activity.Log) error {
	defer repo.db.lock(ctx)()
	repo.db.t.logs = append(repo.db.t.logs, l)
	return nil
}

func (repo *activityRepository) QueryLogs(_ context.Context, filter activity.QueryFilter, orderings ...core.DBOrdering) ([]activity.Log, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	logs := make([]activity.Log, 0)
	for _, l := range repo.db.t.logs {
		switch {
		case filter.UserID != "" && l.UserID != filter.UserID,
			filter.Action != "" && l.Action != filter.Action,
			filter.TableName != "" && l.TableName != filter.TableName,
			!filter.From.IsZero() && l.CreatedAt.Before(filter.From),
			!filter.To.IsZero() && l.CreatedAt.After(filter.To):
			continue
		}
		l.UserName = repo.db.t.users[l.UserID].Name
		logs = append(logs, l)
	}

	ascending := len(orderings) > 0 && orderings[0].Field == "created_at" && orderings[0].Ascending
	sort.SliceStable(logs, func(i, j int) bool {
		if ascending {
			return logs[i].CreatedAt.Before(logs[j].CreatedAt)
		}
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})
	if filter.Limit > 0 && len(logs) > filter.Limit {
		logs = logs[:filter.Limit]
	}
	return logs, nil
}
