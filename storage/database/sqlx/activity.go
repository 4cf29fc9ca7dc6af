package sqlxrepos

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/activity"
)

var logOrderings = map[string]string{
	"created_at": "l.created_at",
	"action":     "l.action",
	"table_name": "l.table_name",
}

type logRow struct {
	ID          string      `db:"id"`
	UserID      null.String `db:"user_id"`
	UserName    null.String `db:"user_name"`
	Action      string      `db:"action"`
	TableName   string      `db:"table_name"`
	RecordID    null.String `db:"record_id"`
	Description string      `db:"description"`
	OldData     null.JSON   `db:"old_data"`
	NewData     null.JSON   `db:"new_data"`
	CreatedAt   time.Time   `db:"created_at"`
}

type activityRepository struct {
	db *sqlx.DB
}

var _ activity.Repository = (*activityRepository)(nil)

func NewActivityRepository(db *sqlx.DB) activity.Repository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) CreateLog(ctx context.Context, l activity.Log) error {
	q := `INSERT INTO activity_logs (id, user_id, action, table_name, record_id, description, old_data, new_data, created_at)
		VALUES (:id, :user_id, :action, :table_name, :record_id, :description, :old_data, :new_data, :created_at)`
	row := logRow{
		ID:          l.ID,
		UserID:      nullID(l.UserID),
		Action:      l.Action,
		TableName:   l.TableName,
		RecordID:    nullID(l.RecordID),
		Description: l.Description,
		OldData:     l.OldData,
		NewData:     l.NewData,
		CreatedAt:   l.CreatedAt,
	}
	_, err := repo.db.NamedExecContext(ctx, q, row)
	return errors.Wrap(err, "inserting activity log")
}

func (repo *activityRepository) QueryLogs(ctx context.Context, filter activity.QueryFilter, orderings ...core.DBOrdering) ([]activity.Log, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.UserID != "" {
		if !isUUID(filter.UserID) {
			return []activity.Log{}, nil
		}
		conds = append(conds, "l.user_id = "+arg(filter.UserID))
	}
	if filter.Action != "" {
		conds = append(conds, "l.action = "+arg(filter.Action))
	}
	if filter.TableName != "" {
		conds = append(conds, "l.table_name = "+arg(filter.TableName))
	}
	if !filter.From.IsZero() {
		conds = append(conds, "l.created_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "l.created_at <= "+arg(filter.To))
	}

	q := `SELECT l.id, l.user_id, u.name AS user_name, l.action, l.table_name, l.record_id, l.description,
			l.old_data, l.new_data, l.created_at
		FROM activity_logs l
		LEFT JOIN users u ON u.id = l.user_id`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderBy(orderings, logOrderings, "l.created_at DESC")
	if filter.Limit > 0 {
		q += " LIMIT " + arg(filter.Limit)
	}

	var rows []logRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting activity logs")
	}
	logs := make([]activity.Log, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, activity.Log{
			ID:          r.ID,
			UserID:      r.UserID.String,
			UserName:    r.UserName.String,
			Action:      r.Action,
			TableName:   r.TableName,
			RecordID:    r.RecordID.String,
			Description: r.Description,
			OldData:     r.OldData,
			NewData:     r.NewData,
			CreatedAt:   r.CreatedAt.UTC(),
		})
	}
	return logs, nil
}
