package echoapi

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/ingest"
	"github.com/mmust/marktrack/core/marks"
)

const uploadField = "file"

type marksApi struct {
	svc     *marks.Service
	engine  *ingest.Engine
	maxSize int64
}

func registerMarksAPI(g *echo.Group, jwt, lecturer echo.MiddlewareFunc, conf *core.Config, deps *Deps) {
	api := marksApi{
		svc:     deps.MarksSvc,
		engine:  deps.Ingest,
		maxSize: conf.Upload.MaxSize,
	}

	ng := g.Group("/nominal-rolls", jwt, lecturer)
	ng.GET("", api.queryNominalRolls)
	ng.POST("/upload", api.uploadNominalRoll)

	rg := g.Group("/results", jwt, lecturer)
	rg.GET("", api.queryResults)
	rg.POST("", api.createResult)
	rg.POST("/upload", api.uploadResults)

	g.GET("/uploads/:id", api.report, jwt, lecturer)
}

// Handlers

func (api *marksApi) bindQuery(ctx echo.Context) (marks.QueryFilter, []core.DBOrdering, error) {
	var filter marks.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return filter, nil, errors.Wrap(err, "binding to QueryFilter")
	}
	var ord Ordering
	ord.Bind(ctx)
	return filter, ord.Orderings, nil
}

func (api *marksApi) queryNominalRolls(ctx echo.Context) error {
	_, sc, err := getContextLecturer(ctx)
	if err != nil {
		return err
	}
	filter, ordering, err := api.bindQuery(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.QueryNominalRolls(ctx.Request().Context(), sc, filter, ordering)
	if err != nil {
		return errors.Wrap(err, "querying nominal rolls")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *marksApi) queryResults(ctx echo.Context) error {
	_, sc, err := getContextLecturer(ctx)
	if err != nil {
		return err
	}
	filter, ordering, err := api.bindQuery(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.QueryResults(ctx.Request().Context(), sc, filter, ordering)
	if err != nil {
		return errors.Wrap(err, "querying results")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *marksApi) createResult(ctx echo.Context) error {
	_, sc, err := getContextLecturer(ctx)
	if err != nil {
		return err
	}
	var data marks.NewResult
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResult")
	}
	res, err := api.svc.CreateResult(ctx.Request().Context(), sc, data)
	if err != nil {
		return errors.Wrap(err, "creating result")
	}
	return ctx.JSON(http.StatusCreated, res)
}

type loadFunc func(ctx context.Context, lecNo, filename string, r io.Reader) (ingest.Report, error)

func (api *marksApi) upload(ctx echo.Context, load loadFunc) error {
	l, _, err := getContextLecturer(ctx)
	if err != nil {
		return err
	}

	fh, err := ctx.FormFile(uploadField)
	if err != nil {
		return errFileRequired
	}
	if api.maxSize > 0 && fh.Size > api.maxSize {
		return errFileTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	report, err := load(ctx.Request().Context(), l.LecNo, fh.Filename, f)
	if err != nil {
		return errors.Wrap(err, "loading upload")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *marksApi) uploadNominalRoll(ctx echo.Context) error {
	return api.upload(ctx, api.engine.LoadNominalRoll)
}

func (api *marksApi) uploadResults(ctx echo.Context) error {
	return api.upload(ctx, api.engine.LoadResults)
}

func (api *marksApi) report(ctx echo.Context) error {
	l, _, err := getContextLecturer(ctx)
	if err != nil {
		return err
	}
	report, err := api.engine.Report(ctx.Request().Context(), l.LecNo, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting upload report")
	}
	return ctx.JSON(http.StatusOK, report)
}
