package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core/class"
	"github.com/quransn/academy/core/quiz"
)

type quizApi struct {
	svc     *quiz.Service
	classes *class.Service
}

func registerQuizAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := quizApi{svc: deps.QuizSvc, classes: deps.ClassSvc}

	qg := g.Group("/quizzes", authed...)
	qg.GET("", api.query)
	qg.POST("", api.create, adminMiddleware())

	dg := qg.Group("/:id", ctxQuizMiddleware(api.svc, api.classes))
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.POST("/attempts", api.submit, studentMiddleware())

	ag := g.Group("/attempts", authed...)
	ag.GET("", api.queryAttempts)
	ag.GET("/:id", api.retrieveAttempt)
	ag.POST("/:id/review", api.review, adminMiddleware())
}

// Handlers

func (api *quizApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter quiz.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []quiz.Quiz{})
	}
	if filter.ClassID != "" {
		if err = checkClassMember(ctx, api.classes, usr, filter.ClassID); err != nil {
			return err
		}
	}
	classIDs, err := memberClassIDs(ctx, api.classes, usr)
	if err != nil {
		return err
	}

	quizzes, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	visible := make([]quiz.Quiz, 0, len(quizzes))
	for _, qz := range quizzes {
		switch {
		case classIDs == nil:
			visible = append(visible, qz)
		case containsString(classIDs, qz.ClassID):
			visible = append(visible, qz.WithoutKeys())
		}
	}
	return ctx.JSON(http.StatusOK, visible)
}

func (api *quizApi) create(ctx echo.Context) error {
	var data quiz.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	qz, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, qz)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	qz := ctx.Get("object").(quiz.Quiz)
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !usr.IsAdmin() {
		qz = qz.WithoutKeys()
	}
	return ctx.JSON(http.StatusOK, qz)
}

func (api *quizApi) destroy(ctx echo.Context) error {
	qz := ctx.Get("object").(quiz.Quiz)
	if err := api.svc.Delete(ctx.Request().Context(), qz.ID); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *quizApi) submit(ctx echo.Context) error {
	qz := ctx.Get("object").(quiz.Quiz)
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data quiz.Submission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}

	att, err := api.svc.Submit(ctx.Request().Context(), qz.ID, usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}
	return ctx.JSON(http.StatusCreated, att)
}

func (api *quizApi) queryAttempts(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter quiz.AttemptFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []quiz.Attempt{})
	}
	filter.Status = quiz.AttemptStatus(ctx.QueryParam("status"))
	if !usr.IsAdmin() {
		filter.UserID = usr.ID
	}

	atts, err := api.svc.Attempts(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	if atts == nil {
		atts = []quiz.Attempt{}
	}
	return ctx.JSON(http.StatusOK, atts)
}

func (api *quizApi) retrieveAttempt(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	att, err := api.svc.GetAttemptByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding attempt by ID")
	}
	if !usr.IsAdmin() && att.UserID != usr.ID {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *quizApi) review(ctx echo.Context) error {
	var data quiz.Review
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Review")
	}
	att, err := api.svc.Review(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reviewing attempt")
	}
	return ctx.JSON(http.StatusOK, att)
}

// ctxQuizMiddleware sets the quiz addressed by `:id` as the context "object".
// Students only reach the quizzes of their classes.
func ctxQuizMiddleware(svc *quiz.Service, classes *class.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			qz, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding quiz by ID")
			}
			if err = checkClassMember(ctx, classes, usr, qz.ClassID); err != nil {
				return err
			}
			ctx.Set("object", qz)
			return next(ctx)
		}
	}
}
