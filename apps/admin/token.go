package main

import (
	"context"

	echoapi "github.com/mmust/marktrack/apps/api/echo"
	"github.com/mmust/marktrack/core"
)

// token prints a signed API token for a lecturer or a student.
func (cli *commandLine) token(ctx context.Context, lecNo, regNo string) error {
	var claims *echoapi.Claims
	if lecNo != "" {
		l, err := cli.schools.GetLecturer(ctx, core.CleanString(lecNo, false))
		if err != nil {
			return err
		}
		claims = echoapi.NewLecturerClaims(cli.conf, l)
	} else {
		s, err := cli.schools.GetStudent(ctx, core.CleanString(regNo, false))
		if err != nil {
			return err
		}
		claims = echoapi.NewStudentClaims(cli.conf, s)
	}

	token, err := echoapi.GenerateToken(cli.conf, claims)
	if err != nil {
		return err
	}
	cli.printf("%s\n", token)
	return nil
}
