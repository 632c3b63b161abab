package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/school"
	"github.com/mmust/marktrack/core/scope"
)

const (
	tokenContextKey    = "userToken"
	lecturerContextKey = "lecturer"
	scopeContextKey    = "scope"
	studentContextKey  = "student"
)

// Claims represents the authorization claims transmitted via a JWT.
// Lecturer tokens carry LecNo and Role, student tokens carry RegNo.
type Claims struct {
	jwt.StandardClaims
	LecNo string `json:"lec_no,omitempty"`
	Role  string `json:"role,omitempty"`
	RegNo string `json:"reg_no,omitempty"`
}

func (c Claims) IsLecturer() bool { return c.LecNo != "" }
func (c Claims) IsStudent() bool  { return c.RegNo != "" }

func (c Claims) identity() core.Identity {
	if c.IsLecturer() {
		return core.Identity{ID: c.LecNo}
	}
	return core.Identity{ID: c.RegNo}
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

func newStandardClaims(conf *core.Config, subject string, ttl time.Duration) jwt.StandardClaims {
	now := time.Now()
	return jwt.StandardClaims{
		Issuer:    conf.AppName,
		Subject:   subject,
		ExpiresAt: now.Add(ttl).Unix(),
		IssuedAt:  now.Unix(),
	}
}

func NewLecturerClaims(conf *core.Config, l school.Lecturer) *Claims {
	return &Claims{
		StandardClaims: newStandardClaims(conf, l.LecNo, conf.Server.JWTExpirationDelta),
		LecNo:          l.LecNo,
		Role:           l.Role,
	}
}

// NewStudentClaims issues short-lived claims: students only identify themselves by registration number.
func NewStudentClaims(conf *core.Config, s school.Student) *Claims {
	return &Claims{
		StandardClaims: newStandardClaims(conf, s.RegNo, conf.Server.StudentTokenExpirationDelta),
		RegNo:          s.RegNo,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	jwtConf := newJWTConfig(conf)
	token := jwt.NewWithClaims(jwt.GetSigningMethod(jwtConf.SigningMethod), claims)

	ss, err := token.SignedString(jwtConf.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextLecturer(ctx echo.Context) (school.Lecturer, scope.Scope, error) {
	l, ok := ctx.Get(lecturerContextKey).(school.Lecturer)
	if !ok {
		return school.Lecturer{}, scope.Scope{}, errUnauthorized
	}
	sc, _ := ctx.Get(scopeContextKey).(scope.Scope)
	return l, sc, nil
}

func getContextStudent(ctx echo.Context) (school.Student, error) {
	if s, ok := ctx.Get(studentContextKey).(school.Student); ok {
		return s, nil
	}
	return school.Student{}, errUnauthorized
}
