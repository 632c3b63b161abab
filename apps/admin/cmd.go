package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/complaint"
	"github.com/mmust/marktrack/core/ingest"
	"github.com/mmust/marktrack/core/school"
)

var (
	openFileFunc = func(name string) (io.ReadCloser, error) { return os.Open(name) } // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf         *core.Config
	db           *sqlx.DB
	schools      school.Repository
	schoolSvc    *school.Service
	engine       *ingest.Engine
	complaintSvc *complaint.Service
	out          io.Writer
}

func (cli *commandLine) printf(format string, a ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, a...)
}

func (cli *commandLine) printUsage() {
	cli.printf("Usage:\n")
	cli.printf("  migrate COMMAND [ARGS...]                                 - run a goose command (up, down, status, redo, version...)\n")
	cli.printf("  token -lecturer LEC_NO | -student REG_NO                  - print an API token\n")
	cli.printf("  assign -lecturer LEC_NO -unit CODE -year YEAR -course CODE - assign a unit to a lecturer\n")
	cli.printf("  loadroll -lecturer LEC_NO -file PATH                      - load a nominal roll (csv, xls, xlsx)\n")
	cli.printf("  loadresults -lecturer LEC_NO -file PATH                   - load results (csv, xls, xlsx)\n")
	cli.printf("  notifyoverdue -department CODE                            - email lecturers about overdue complaints\n")
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	tokenCmd := cli.flagSet("token")
	tokenLecturer := tokenCmd.String("lecturer", "", "The lecturer's number.")
	tokenStudent := tokenCmd.String("student", "", "The student's registration number.")

	assignCmd := cli.flagSet("assign")
	assignLecturer := assignCmd.String("lecturer", "", "The lecturer's number.")
	assignUnit := assignCmd.String("unit", "", "The unit code.")
	assignYear := assignCmd.String("year", "", "The academic year, e.g. 2023/2024.")
	assignCourse := assignCmd.String("course", "", "The course code.")

	loadRollCmd := cli.flagSet("loadroll")
	loadRollLecturer := loadRollCmd.String("lecturer", "", "The uploading lecturer's number.")
	loadRollFile := loadRollCmd.String("file", "", "Path to the nominal roll file.")

	loadResultsCmd := cli.flagSet("loadresults")
	loadResultsLecturer := loadResultsCmd.String("lecturer", "", "The uploading lecturer's number.")
	loadResultsFile := loadResultsCmd.String("file", "", "Path to the results file.")

	notifyCmd := cli.flagSet("notifyoverdue")
	notifyDepartment := notifyCmd.String("department", "", "The department code.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if (*tokenLecturer == "") == (*tokenStudent == "") {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(ctx, *tokenLecturer, *tokenStudent)
	case "assign":
		if err := assignCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		na := school.NewAssignment{
			UnitCode:     *assignUnit,
			LecNo:        *assignLecturer,
			AcademicYear: *assignYear,
			CourseCode:   *assignCourse,
		}
		if na.UnitCode == "" || na.LecNo == "" || na.AcademicYear == "" || na.CourseCode == "" {
			assignCmd.Usage()
			return errHelp
		}
		return cli.assign(ctx, na)
	case "loadroll":
		if err := loadRollCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *loadRollLecturer == "" || *loadRollFile == "" {
			loadRollCmd.Usage()
			return errHelp
		}
		return cli.load(ctx, ingest.KindNominalRoll, *loadRollLecturer, *loadRollFile)
	case "loadresults":
		if err := loadResultsCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *loadResultsLecturer == "" || *loadResultsFile == "" {
			loadResultsCmd.Usage()
			return errHelp
		}
		return cli.load(ctx, ingest.KindResult, *loadResultsLecturer, *loadResultsFile)
	case "notifyoverdue":
		if err := notifyCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *notifyDepartment == "" {
			notifyCmd.Usage()
			return errHelp
		}
		return cli.notifyOverdue(ctx, *notifyDepartment)
	default:
		cli.printUsage()
		return errHelp
	}
}
