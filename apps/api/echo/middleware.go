package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mmust/marktrack/core/school"
	"github.com/mmust/marktrack/core/scope"
)

// lecturerMiddleware loads the lecturer of the token and resolves their scope for the request.
func lecturerMiddleware(schools *school.Service, scopes *scope.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if !claims.IsLecturer() {
				return errHttpForbidden
			}

			reqCtx := ctx.Request().Context()
			l, err := schools.GetLecturer(reqCtx, claims.LecNo)
			if err != nil {
				if errors.Cause(err) == school.ErrNotFound {
					return errUnauthorized
				}
				return errors.Wrap(err, "getting lecturer")
			}
			sc, err := scopes.Resolve(reqCtx, l.LecNo)
			if err != nil {
				return errors.Wrap(err, "resolving scope")
			}

			ctx.Set(lecturerContextKey, l)
			ctx.Set(scopeContextKey, sc)
			return next(ctx)
		}
	}
}

// codMiddleware must run after lecturerMiddleware.
func codMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		l, _, err := getContextLecturer(ctx)
		if err != nil {
			return err
		}
		if !l.IsCOD() {
			return errHttpForbidden
		}
		return next(ctx)
	}
}

func studentMiddleware(schools *school.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if !claims.IsStudent() {
				return errHttpForbidden
			}

			s, err := schools.GetStudent(ctx.Request().Context(), claims.RegNo)
			if err != nil {
				if errors.Cause(err) == school.ErrNotFound {
					return errUnauthorized
				}
				return errors.Wrap(err, "getting student")
			}
			ctx.Set(studentContextKey, s)
			return next(ctx)
		}
	}
}
