package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/services/chat"
	"github.com/quransn/academy/services/scheduler"
)

const dateLayout = "2006-01-02"

var (
	errInvalidDate  = errors.New("date must be formatted as YYYY-MM-DD")
	errInvalidSurah = errors.New("surah must be a number")
)

type toolsApi struct {
	prayer PrayerTimes
	quran  QuranReader
	chat   Assistant
	jobs   JobMonitor
}

func registerToolsAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := toolsApi{prayer: deps.Prayer, quran: deps.Quran, chat: deps.Chat, jobs: deps.Jobs}

	// un-authed endpoints
	g.GET("/prayer-times", api.prayerTimes)
	g.GET("/quran/editions", api.quranEditions)
	g.GET("/quran/surahs/:number", api.surah)

	ag := g.Group("", authed...)
	ag.POST("/chat", api.chatReply)

	if api.jobs != nil {
		jg := ag.Group("/jobs", adminMiddleware())
		jg.GET("", api.jobStatus)
		jg.POST("/:name/run", api.runJob)
	}
}

type (
	ChatRequest struct {
		History []chat.Message `json:"history"`
		Message string         `json:"message"`
	}

	ChatResponse struct {
		Reply chat.Message `json:"reply"`
	}
)

// Handlers

func (api *toolsApi) prayerTimes(ctx echo.Context) error {
	date := core.NowFunc()
	if raw := ctx.QueryParam("date"); raw != "" {
		var err error
		if date, err = time.Parse(dateLayout, raw); err != nil {
			return core.NewValidationError(errInvalidDate, core.FieldError{Field: "date", Error: errInvalidDate.Error()})
		}
	}
	return ctx.JSON(http.StatusOK, api.prayer.Timings(ctx.Request().Context(), date))
}

func (api *toolsApi) quranEditions(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.quran.Editions())
}

func (api *toolsApi) surah(ctx echo.Context) error {
	number, err := strconv.Atoi(ctx.Param("number"))
	if err != nil {
		return core.NewValidationError(errInvalidSurah, core.FieldError{Field: "number", Error: errInvalidSurah.Error()})
	}
	surah, err := api.quran.Surah(ctx.Request().Context(), number, ctx.QueryParam("edition"))
	if err != nil {
		return errors.Wrap(err, "reading surah")
	}
	return ctx.JSON(http.StatusOK, surah)
}

func (api *toolsApi) chatReply(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data ChatRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChatRequest")
	}
	reply, err := api.chat.Reply(ctx.Request().Context(), usr, data.History, data.Message)
	if err != nil {
		return errors.Wrap(err, "replying to chat message")
	}
	return ctx.JSON(http.StatusOK, ChatResponse{Reply: reply})
}

func (api *toolsApi) jobStatus(ctx echo.Context) error {
	runs, err := api.jobs.Status(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "reading job status")
	}
	if runs == nil {
		runs = []scheduler.JobRun{}
	}
	return ctx.JSON(http.StatusOK, runs)
}

func (api *toolsApi) runJob(ctx echo.Context) error {
	run, err := api.jobs.RunNow(ctx.Param("name"))
	if err != nil {
		return errors.Wrap(err, "running job")
	}
	return ctx.JSON(http.StatusOK, run)
}
