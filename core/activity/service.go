package activity

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/newstandard/academy/core"
)

const defaultLimit = 100

type (
	Repository interface {
		CreateLog(ctx context.Context, l Log) error
		// QueryLogs returns the newest logs first unless orderings say otherwise.
		QueryLogs(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Log, error)
	}

	// Recorder is the write side used by the rest of the app.
	Recorder interface {
		Record(ctx context.Context, e Entry)
	}

	Service interface {
		Recorder
		Query(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Log, error)
	}

	service struct {
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, logger core.Logger) Service {
	return &service{repo: repo, logger: logger}
}

// Record saves an activity log. Failures are logged, never returned.
func (svc *service) Record(ctx context.Context, e Entry) {
	l := Log{
		ID:          uuid.New().String(),
		UserID:      e.UserID,
		Action:      e.Action,
		TableName:   e.TableName,
		RecordID:    e.RecordID,
		Description: e.Description,
		CreatedAt:   time.Now().UTC(),
	}
	var err error
	if l.OldData, err = toJSON(e.OldData); err != nil {
		svc.logger.Error("marshalling activity data", errors.Wrap(err, "old_data"))
	}
	if l.NewData, err = toJSON(e.NewData); err != nil {
		svc.logger.Error("marshalling activity data", errors.Wrap(err, "new_data"))
	}
	if err := svc.repo.CreateLog(ctx, l); err != nil {
		svc.logger.Error("recording activity", errors.Wrapf(err, "%s %s %s", l.Action, l.TableName, l.RecordID))
	}
}

func toJSON(v interface{}) (null.JSON, error) {
	var j null.JSON
	if v == nil {
		return j, nil
	}
	err := j.Marshal(v)
	return j, err
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Log, error) {
	if filter.Limit == 0 {
		filter.Limit = defaultLimit
	}
	return svc.repo.QueryLogs(ctx, filter, orderings...)
}

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	qf.Action = strings.ToUpper(core.CleanString(qf.Action))
	qf.TableName = core.CleanString(qf.TableName, true /* lower */)
	qf.UserID = core.CleanString(qf.UserID)
	return validate.Struct(qf)
}
