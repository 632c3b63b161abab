package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/complaint"
	"github.com/mmust/marktrack/core/ingest"
	"github.com/mmust/marktrack/core/school"
	"github.com/mmust/marktrack/core/scope"
	emailsvc "github.com/mmust/marktrack/services/email"
	logsvc "github.com/mmust/marktrack/services/logger"
	reportsvc "github.com/mmust/marktrack/services/reports"
	"github.com/mmust/marktrack/storage/database"
	sqlxrepos "github.com/mmust/marktrack/storage/database/sqlx"
)

var logger core.Logger

func main() {
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	rollbar := logsvc.NewRollbarLogger(stdLogger, conf)
	rollbar.Enable(!conf.Debug)
	logger = rollbar

	// set up DB
	db, err := database.Open(context.Background(), conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()

	// set up services
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	complaint.InitValidators(validate, translator)

	schools := sqlxrepos.NewSchoolRepository(db)
	scopes := scope.NewResolver(schools)
	mailSvc := emailsvc.NewConsoleService(conf, logger, log.New(os.Stdout, "EMAIL : ", log.LstdFlags))
	if !conf.Debug {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	// start CLI
	cli := commandLine{
		conf:      conf,
		db:        db,
		schools:   schools,
		schoolSvc: school.NewService(schools, validate),
		engine: ingest.NewEngine(
			sqlxrepos.NewMarksRepository(db), schools, scopes,
			reportsvc.NewMemoryStore(conf.Upload.ReportTTL), logger, nil,
		),
		complaintSvc: complaint.NewService(sqlxrepos.NewComplaintRepository(db), schools, mailSvc, conf, logger, nil),
		out:          os.Stdout,
	}
	err = cli.run(os.Args)
	if w, ok := mailSvc.(interface{ Wait() }); ok {
		w.Wait()
	}
	if err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
