package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/complaint"
	"github.com/mmust/marktrack/core/ingest"
	"github.com/mmust/marktrack/core/marks"
	"github.com/mmust/marktrack/core/school"
)

var (
	errUnauthorized   = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden  = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound   = echo.NewHTTPError(http.StatusNotFound, "not found")
	errFileRequired   = core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	errFileTooLarge   = core.NewValidationError(nil, core.FieldError{Field: "file", Error: "file is too large"})
	errUnknownStudent = core.NewValidationError(nil, core.FieldError{Field: "reg_no", Error: "unknown registration number"})
)

// domainHTTPError translates domain errors into HTTP errors. It returns nil for any other error.
func domainHTTPError(err error) *echo.HTTPError {
	cause := errors.Cause(err)
	switch cause {
	case complaint.ErrNotFound, complaint.ErrResponseNotFound, ingest.ErrReportNotFound, school.ErrNotFound:
		return echo.NewHTTPError(http.StatusNotFound, cause.Error())
	case complaint.ErrOutOfScope, marks.ErrOutOfScope:
		return echo.NewHTTPError(http.StatusForbidden, cause.Error())
	case complaint.ErrComplaintExists, complaint.ErrResponseExists, complaint.ErrNoAcademicYear,
		ingest.ErrInvalidFormat, marks.ErrResultExists, marks.ErrNominalRollExists, school.ErrAssignmentExists:
		return echo.NewHTTPError(http.StatusBadRequest, cause.Error())
	case complaint.ErrCodeSpaceExhausted:
		return echo.NewHTTPError(http.StatusServiceUnavailable, cause.Error())
	}
	if mcErr, ok := cause.(*ingest.MissingColumnsError); ok {
		return echo.NewHTTPError(http.StatusBadRequest, mcErr.Error())
	}
	return nil
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		origErr := errors.Cause(err)
		if hErr := domainHTTPError(err); hErr != nil {
			origErr = hErr
		}

		switch origErr := origErr.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var identity core.Identity
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				identity = claims.identity()
			}
			logger.Error(msg, errors.Wrap(err, msg), identity)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
