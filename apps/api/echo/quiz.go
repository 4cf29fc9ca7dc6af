package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/newstandard/academy/core/course"
	"github.com/newstandard/academy/core/quiz"
	"github.com/newstandard/academy/core/user"
)

type quizApi struct {
	svc       quiz.Service
	courseSvc course.Service
	userSvc   user.Service
	validate  *validator.Validate
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := quizApi{
		svc:       deps.QuizSvc,
		courseSvc: deps.CourseSvc,
		userSvc:   deps.UserSvc,
		validate:  deps.Validate,
	}
	manager := contentManagerMiddleware(api.userSvc)

	qg := g.Group("/quizzes", jwt)
	qg.GET("", api.query)
	qg.POST("", api.create, manager)
	qg.POST("/grade", api.grade)
	qg.GET("/:id", api.retrieve)
	qg.DELETE("/:id", api.destroy, manager)
	qg.GET("/:id/status", api.status)
	qg.GET("/:id/attempts", api.attempts)
}

// accessibleQuiz returns the quiz when its course is visible to usr. Hidden quizzes are reported as not found.
func (api *quizApi) accessibleQuiz(ctx echo.Context, usr user.User, id string) (quiz.Quiz, error) {
	reqCtx := ctx.Request().Context()
	qz, err := api.svc.Get(reqCtx, id)
	if err != nil {
		return quiz.Quiz{}, err
	}
	if _, err := api.courseSvc.CheckAccess(reqCtx, usr, qz.CourseID); err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return quiz.Quiz{}, quiz.ErrQuizNotFound
		}
		return quiz.Quiz{}, errors.Wrap(err, "checking course access")
	}
	return qz, nil
}

func (api *quizApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reqCtx := ctx.Request().Context()
	courseID := ctx.QueryParam("course_id")
	if _, err := api.courseSvc.CheckAccess(reqCtx, usr, courseID); err != nil {
		return errors.Wrap(err, "checking course access")
	}

	quizzes, err := api.svc.QueryByCourse(reqCtx, courseID)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *quizApi) create(ctx echo.Context) error {
	var data quiz.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	qv, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, qv)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	qz, err := api.accessibleQuiz(ctx, usr, ctx.Param("id"))
	if err != nil {
		return err
	}

	qv, err := api.svc.GetForDisplay(ctx.Request().Context(), qz.ID)
	if err != nil {
		return errors.Wrap(err, "getting quiz")
	}
	return ctx.JSON(http.StatusOK, qv)
}

func (api *quizApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *quizApi) grade(ctx echo.Context) error {
	var data quiz.Submission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	qz, err := api.accessibleQuiz(ctx, usr, data.QuizID)
	if err != nil {
		return err
	}

	res, err := api.svc.Submit(ctx.Request().Context(), qz.ID, usr.ID, data.Answers)
	if err != nil {
		return errors.Wrap(err, "grading quiz")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *quizApi) status(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	qz, err := api.accessibleQuiz(ctx, usr, ctx.Param("id"))
	if err != nil {
		return err
	}

	st, err := api.svc.Status(ctx.Request().Context(), qz.ID, usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting quiz status")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *quizApi) attempts(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	qz, err := api.accessibleQuiz(ctx, usr, ctx.Param("id"))
	if err != nil {
		return err
	}

	attempts, err := api.svc.Attempts(ctx.Request().Context(), qz.ID, usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	return ctx.JSON(http.StatusOK, attempts)
}
