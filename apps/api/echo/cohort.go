package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/cohort"
)

type cohortApi struct {
	svc      *cohort.Service
	validate *validator.Validate
}

func registerCohortAPI(g *echo.Group, auth echo.MiddlewareFunc, deps *ServerDeps) {
	api := cohortApi{
		svc:      deps.CohortSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/cohorts", auth, adminMiddleware())
	cg.POST("", api.create)
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.GET("/:id/sessions", api.querySessions)

	sg := g.Group("/sessions", auth, adminMiddleware())
	sg.PUT("/:id/attendance", api.markAttendance)
	sg.GET("/:id/attendance", api.queryAttendance)
}

// Handlers

func (api *cohortApi) create(ctx echo.Context) error {
	var data cohort.NewCohort
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCohort")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(data)
	if err != nil {
		return errors.Wrap(err, "creating cohort")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *cohortApi) query(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	cohorts, err := api.svc.QueryAll(ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying cohorts")
	}
	if cohorts == nil {
		cohorts = []cohort.Cohort{}
	}
	return ctx.JSON(http.StatusOK, cohorts)
}

func (api *cohortApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return api.trapErr(err, "finding cohort by ID")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *cohortApi) querySessions(ctx echo.Context) error {
	sessions, err := api.svc.Sessions(ctx.Param("id"))
	if err != nil {
		return api.trapErr(err, "querying class sessions")
	}
	if sessions == nil {
		sessions = []cohort.ClassSession{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *cohortApi) markAttendance(ctx echo.Context) error {
	var data cohort.MarkAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkAttendance")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	att, err := api.svc.Mark(ctx.Param("id"), data)
	if err != nil {
		return api.trapErr(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *cohortApi) queryAttendance(ctx echo.Context) error {
	records, err := api.svc.SessionAttendance(ctx.Param("id"))
	if err != nil {
		return api.trapErr(err, "querying attendance")
	}
	if records == nil {
		records = []cohort.Attendance{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *cohortApi) trapErr(err error, msg string) error {
	switch errors.Cause(err) {
	case cohort.ErrNotFound, cohort.ErrSessionNotFound:
		return errHttpNotFound
	case cohort.ErrNotAStudent:
		return core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: cohort.ErrNotAStudent.Error()})
	}
	return errors.Wrap(err, msg)
}
