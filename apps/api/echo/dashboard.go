package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/newstandard/academy/core/activity"
	"github.com/newstandard/academy/core/dashboard"
	"github.com/newstandard/academy/core/user"
)

type dashboardApi struct {
	svc         dashboard.Service
	activitySvc activity.Service
	userSvc     user.Service
	validate    *validator.Validate
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := dashboardApi{
		svc:         deps.DashboardSvc,
		activitySvc: deps.ActivitySvc,
		userSvc:     deps.UserSvc,
		validate:    deps.Validate,
	}

	ag := g.Group("/admin", jwt, adminMiddleware(api.userSvc))
	ag.GET("/stats", api.stats)
	ag.GET("/leaderboard", api.leaderboard)
	ag.GET("/logs", api.logs)

	g.GET("/leader/dashboard", api.groupBoard, jwt, leaderMiddleware(api.userSvc))
}

func (api *dashboardApi) stats(ctx echo.Context) error {
	stats, err := api.svc.AdminStats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *dashboardApi) leaderboard(ctx echo.Context) error {
	rows, err := api.svc.Leaderboard(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing leaderboard")
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *dashboardApi) logs(ctx echo.Context) error {
	var filter activity.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []activity.Log{})
	}
	if err := filter.Validate(api.validate); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	ordering.allowOrderings("created_at", "action", "table_name")

	logs, err := api.activitySvc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying activity logs")
	}
	return ctx.JSON(http.StatusOK, logs)
}

// groupBoard shows the leaderboard of the group the caller leads.
func (api *dashboardApi) groupBoard(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	board, err := api.svc.LeaderBoard(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "computing group board")
	}
	return ctx.JSON(http.StatusOK, board)
}
