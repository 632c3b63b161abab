package main

import (
	"context"

	"github.com/mmust/marktrack/core/school"
)

func (cli *commandLine) assign(ctx context.Context, na school.NewAssignment) error {
	as, err := cli.schoolSvc.Assign(ctx, na)
	if err != nil {
		return err
	}
	cli.printf("assigned %s to %s for %s (%s), id %d\n", as.UnitCode, as.LecNo, na.AcademicYear, as.CourseCode, as.ID)
	return nil
}
