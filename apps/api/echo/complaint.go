package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mmust/marktrack/core/complaint"
)

type NotifiedResponse struct {
	Reminders int `json:"reminders"`
}

type complaintApi struct {
	svc      *complaint.Service
	validate *validator.Validate
}

func registerComplaintAPI(g *echo.Group, jwt, lecturer echo.MiddlewareFunc, deps *Deps) {
	api := complaintApi{
		svc:      deps.ComplaintSvc,
		validate: deps.Validate,
	}

	// POST /complaints belongs to students: no group here, a group would catch it
	g.GET("/complaints", api.query, jwt, lecturer)
	g.GET("/complaints/:code", api.retrieve, jwt, lecturer)
	g.POST("/complaints/:code/response", api.respond, jwt, lecturer)

	rg := g.Group("/responses")
	rg.GET("", api.departmentResponses, jwt, lecturer, codMiddleware)
	rg.GET("/students", api.studentResponses, jwt, lecturer)
	rg.DELETE("/:id", api.deleteResponse, jwt, lecturer)

	og := g.Group("/overdue", jwt, lecturer, codMiddleware)
	og.GET("/units", api.overdueUnits)
	og.GET("/students", api.overdueStudents)
	og.POST("/notify", api.notifyOverdue)
}

// Handlers

func (api *complaintApi) query(ctx echo.Context) error {
	_, sc, err := getContextLecturer(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.QueryForScope(ctx.Request().Context(), sc)
	if err != nil {
		return errors.Wrap(err, "querying complaints")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *complaintApi) retrieve(ctx echo.Context) error {
	_, sc, err := getContextLecturer(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.GetInScope(ctx.Request().Context(), sc, ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "getting complaint")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *complaintApi) respond(ctx echo.Context) error {
	l, sc, err := getContextLecturer(ctx)
	if err != nil {
		return err
	}

	var data complaint.NewResponse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResponse")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.Respond(ctx.Request().Context(), l, sc, ctx.Param("code"), data)
	if err != nil {
		return errors.Wrap(err, "responding to complaint")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *complaintApi) departmentResponses(ctx echo.Context) error {
	l, _, err := getContextLecturer(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.ResponsesByDepartment(ctx.Request().Context(), l.DepCode)
	if err != nil {
		return errors.Wrap(err, "querying responses")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *complaintApi) studentResponses(ctx echo.Context) error {
	l, _, err := getContextLecturer(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.ResponsesForDepartmentStudents(ctx.Request().Context(), l.DepCode)
	if err != nil {
		return errors.Wrap(err, "querying responses")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *complaintApi) deleteResponse(ctx echo.Context) error {
	l, _, err := getContextLecturer(ctx)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	if err = api.svc.DeleteResponse(ctx.Request().Context(), l, id); err != nil {
		return errors.Wrap(err, "deleting response")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *complaintApi) overdueUnits(ctx echo.Context) error {
	l, _, err := getContextLecturer(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.OverdueForDepartmentUnits(ctx.Request().Context(), l.DepCode)
	if err != nil {
		return errors.Wrap(err, "querying overdue complaints")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *complaintApi) overdueStudents(ctx echo.Context) error {
	l, _, err := getContextLecturer(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.OverdueForDepartmentStudents(ctx.Request().Context(), l.DepCode)
	if err != nil {
		return errors.Wrap(err, "querying overdue complaints")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *complaintApi) notifyOverdue(ctx echo.Context) error {
	l, _, err := getContextLecturer(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.NotifyOverdue(ctx.Request().Context(), l.DepCode)
	if err != nil {
		return errors.Wrap(err, "notifying overdue complaints")
	}
	return ctx.JSON(http.StatusOK, NotifiedResponse{Reminders: n})
}
