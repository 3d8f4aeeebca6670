package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/cohort"
	"github.com/darasahq/darasa/core/session"
	"github.com/darasahq/darasa/core/user"
)

// studentApi is the student portal: its own keeper, its own cookie, and a
// surface limited to the student's own data.
type studentApi struct {
	usrSvc    *user.Service
	cohortSvc *cohort.Service
	keeper    *session.Keeper
	validate  *validator.Validate
}

func registerStudentAPI(g *echo.Group, auth echo.MiddlewareFunc, keeper *session.Keeper, deps *ServerDeps) {
	api := studentApi{
		usrSvc:    deps.UserSvc,
		cohortSvc: deps.CohortSvc,
		keeper:    keeper,
		validate:  deps.Validate,
	}

	sg := g.Group("/student")

	sg.POST("/login", api.login)
	sg.POST("/logout", api.logout)

	ag := sg.Group("", auth)
	ag.GET("/me", api.me)
	ag.GET("/attendance", api.attendance)
}

// Handlers

func (api *studentApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := authenticate(data.Username, data.Password, api.usrSvc)
	if err != nil {
		return err
	}
	if !usr.IsStudent() {
		return errHttpForbidden
	}
	if err = issueSession(ctx, api.keeper, usr); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *studentApi) logout(ctx echo.Context) error {
	ctx.SetCookie(api.keeper.ExpiredCookie())
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

// attendance returns the logged-in student's own records and sats balance.
func (api *studentApi) attendance(ctx echo.Context) error {
	p, err := getContextPayload(ctx)
	if err != nil {
		return err
	}
	report, err := api.cohortSvc.StudentAttendance(p.SubjectID)
	if err != nil {
		return errors.Wrap(err, "querying student attendance")
	}
	if report.Records == nil {
		report.Records = []cohort.Attendance{}
	}
	return ctx.JSON(http.StatusOK, report)
}
