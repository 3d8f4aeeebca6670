package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/application"
)

type applicationApi struct {
	svc      *application.Service
	validate *validator.Validate
}

func registerApplicationAPI(g *echo.Group, auth echo.MiddlewareFunc, deps *ServerDeps) {
	api := applicationApi{
		svc:      deps.AppSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/applications")

	// the public enrollment endpoint
	ag.POST("", api.submit)

	// admin review
	rg := ag.Group("", auth, adminMiddleware())
	rg.GET("", api.query)
	rg.GET("/:id", api.retrieve)
	rg.POST("/:id/approve", api.approve)
	rg.POST("/:id/reject", api.reject)
}

// Handlers

func (api *applicationApi) submit(ctx echo.Context) error {
	var data application.NewApplication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewApplication")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	app, err := api.svc.Submit(data)
	if err != nil {
		return errors.Wrap(err, "submitting application")
	}
	return ctx.JSON(http.StatusCreated, app)
}

func (api *applicationApi) query(ctx echo.Context) error {
	filter := new(application.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []application.Application{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	apps, err := api.svc.Filter(*filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	if apps == nil {
		apps = []application.Application{}
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *applicationApi) retrieve(ctx echo.Context) error {
	app, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return api.trapErr(err, "finding application by ID")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) approve(ctx echo.Context) error {
	app, err := api.svc.Approve(ctx.Param("id"))
	if err != nil {
		return api.trapErr(err, "approving application")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) reject(ctx echo.Context) error {
	app, err := api.svc.Reject(ctx.Param("id"))
	if err != nil {
		return api.trapErr(err, "rejecting application")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) trapErr(err error, msg string) error {
	switch errors.Cause(err) {
	case application.ErrNotFound:
		return errHttpNotFound
	case application.ErrAlreadyDecided:
		return core.NewValidationError(application.ErrAlreadyDecided)
	}
	return errors.Wrap(err, msg)
}
