package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/newstandard/academy/core/activity"
	"github.com/newstandard/academy/core/course"
	"github.com/newstandard/academy/core/user"
)

type courseApi struct {
	svc      course.Service
	userSvc  user.Service
	recorder activity.Recorder
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := courseApi{
		svc:      deps.CourseSvc,
		userSvc:  deps.UserSvc,
		recorder: deps.ActivitySvc,
		validate: deps.Validate,
	}
	manager := contentManagerMiddleware(api.userSvc)

	cg := g.Group("/courses", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, manager)
	cg.GET("/:id", api.outline)
	cg.PUT("/:id", api.update, manager)
	cg.DELETE("/:id", api.destroy, manager)
	cg.GET("/:id/access", api.getAccess, adminMiddleware(api.userSvc))
	cg.PUT("/:id/access", api.setAccess, adminMiddleware(api.userSvc))

	mg := g.Group("/modules", jwt, manager)
	mg.POST("", api.createModule)
	mg.DELETE("/:id", api.destroyModule)

	lg := g.Group("/lessons", jwt)
	lg.POST("", api.createLesson, manager)
	lg.DELETE("/:id", api.destroyLesson, manager)
	lg.POST("/:id/complete", api.completeLesson)
}

func (api *courseApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	courses, err := api.svc.ListForUser(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) outline(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reqCtx := ctx.Request().Context()
	out, err := api.svc.Outline(reqCtx, usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building course outline")
	}

	api.recorder.Record(reqCtx, activity.Entry{
		UserID:      usr.ID,
		Action:      activity.ActionView,
		TableName:   activity.TableCourses,
		RecordID:    out.ID,
		Description: "viewed course " + out.Title,
	})
	return ctx.JSON(http.StatusOK, out)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	reqCtx := ctx.Request().Context()
	c, err := api.svc.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}

	api.recorder.Record(reqCtx, activity.Entry{
		UserID:      usr.ID,
		Action:      activity.ActionInsert,
		TableName:   activity.TableCourses,
		RecordID:    c.ID,
		Description: "created course " + c.Title,
		NewData:     c,
	})
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) update(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	orig, err := api.svc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}

	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(orig, api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	c, err := api.svc.Update(reqCtx, orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}

	api.recorder.Record(reqCtx, activity.Entry{
		UserID:      usr.ID,
		Action:      activity.ActionUpdate,
		TableName:   activity.TableCourses,
		RecordID:    c.ID,
		Description: "updated course " + c.Title,
		OldData:     orig,
		NewData:     c,
	})
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	orig, err := api.svc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.Delete(reqCtx, orig.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}

	api.recorder.Record(reqCtx, activity.Entry{
		UserID:      usr.ID,
		Action:      activity.ActionDelete,
		TableName:   activity.TableCourses,
		RecordID:    orig.ID,
		Description: "deleted course " + orig.Title,
		OldData:     orig,
	})
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) getAccess(ctx echo.Context) error {
	types, err := api.svc.GetAccess(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course access")
	}
	return ctx.JSON(http.StatusOK, course.AccessRequest{UserTypes: types})
}

func (api *courseApi) setAccess(ctx echo.Context) error {
	var data course.AccessRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AccessRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	if err := api.svc.SetAccess(reqCtx, ctx.Param("id"), data.UserTypes); err != nil {
		return errors.Wrap(err, "setting course access")
	}
	types, err := api.svc.GetAccess(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course access")
	}
	return ctx.JSON(http.StatusOK, course.AccessRequest{UserTypes: types})
}

func (api *courseApi) createModule(ctx echo.Context) error {
	var data course.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.CreateModule(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *courseApi) destroyModule(ctx echo.Context) error {
	if err := api.svc.DeleteModule(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) createLesson(ctx echo.Context) error {
	var data course.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.CreateLesson(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *courseApi) destroyLesson(ctx echo.Context) error {
	if err := api.svc.DeleteLesson(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) completeLesson(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.CompleteLesson(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, res)
}
