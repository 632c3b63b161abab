package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/complaint"
	"github.com/mmust/marktrack/core/school"
)

type (
	IdentifyRequest struct {
		RegNo string `json:"reg_no" validate:"required"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}
)

type studentApi struct {
	conf       *core.Config
	schools    *school.Service
	complaints *complaint.Service
	validate   *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt, student echo.MiddlewareFunc, conf *core.Config, deps *Deps) {
	api := studentApi{
		conf:       conf,
		schools:    deps.SchoolSvc,
		complaints: deps.ComplaintSvc,
		validate:   deps.Validate,
	}

	sg := g.Group("/students")
	sg.POST("/identify", api.identify)

	me := sg.Group("/me", jwt, student)
	me.GET("", api.me)
	me.GET("/complaints", api.listComplaints)
	me.GET("/responses", api.listResponses)

	g.POST("/complaints", api.postComplaint, jwt, student)
}

// identify exchanges a registration number for a short-lived student token.
func (api *studentApi) identify(ctx echo.Context) error {
	var data IdentifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IdentifyRequest")
	}
	data.RegNo = core.CleanString(data.RegNo)
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	st, err := api.schools.GetStudent(ctx.Request().Context(), data.RegNo)
	if err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return errUnknownStudent
		}
		return errors.Wrap(err, "getting student")
	}
	token, err := GenerateToken(api.conf, NewStudentClaims(api.conf, st))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *studentApi) me(ctx echo.Context) error {
	st, err := getContextStudent(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) postComplaint(ctx echo.Context) error {
	st, err := getContextStudent(ctx)
	if err != nil {
		return err
	}

	var data complaint.NewComplaint
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComplaint")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.complaints.Post(ctx.Request().Context(), st, data)
	if err != nil {
		return errors.Wrap(err, "posting complaint")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *studentApi) listComplaints(ctx echo.Context) error {
	st, err := getContextStudent(ctx)
	if err != nil {
		return err
	}
	res, err := api.complaints.QueryForStudent(ctx.Request().Context(), st.RegNo)
	if err != nil {
		return errors.Wrap(err, "querying complaints")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *studentApi) listResponses(ctx echo.Context) error {
	st, err := getContextStudent(ctx)
	if err != nil {
		return err
	}
	res, err := api.complaints.ResponsesForStudent(ctx.Request().Context(), st.RegNo)
	if err != nil {
		return errors.Wrap(err, "querying responses")
	}
	return ctx.JSON(http.StatusOK, res)
}
