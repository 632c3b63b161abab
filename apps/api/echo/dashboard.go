package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mmust/marktrack/core/dashboard"
)

func registerDashboardAPI(g *echo.Group, jwt, lecturer echo.MiddlewareFunc, deps *Deps) {
	g.GET("/dashboard", dashboardHandler(deps.DashboardSvc), jwt, lecturer)
}

func dashboardHandler(svc *dashboard.Service) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		l, sc, err := getContextLecturer(ctx)
		if err != nil {
			return err
		}
		summary, err := svc.ForLecturer(ctx.Request().Context(), l, sc)
		if err != nil {
			return errors.Wrap(err, "building dashboard")
		}
		return ctx.JSON(http.StatusOK, summary)
	}
}
