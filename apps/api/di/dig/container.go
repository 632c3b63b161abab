package dig_container

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/mmust/marktrack/apps/api/echo"
	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/complaint"
	"github.com/mmust/marktrack/core/dashboard"
	"github.com/mmust/marktrack/core/ingest"
	"github.com/mmust/marktrack/core/marks"
	"github.com/mmust/marktrack/core/school"
	"github.com/mmust/marktrack/core/scope"
	emailsvc "github.com/mmust/marktrack/services/email"
	logsvc "github.com/mmust/marktrack/services/logger"
	metricsvc "github.com/mmust/marktrack/services/metrics"
	reportsvc "github.com/mmust/marktrack/services/reports"
	"github.com/mmust/marktrack/storage/database"
	inmemdb "github.com/mmust/marktrack/storage/database/inmem"
	sqlxrepos "github.com/mmust/marktrack/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage holds the repositories of the configured database engine.
type Storage struct {
	dig.Out
	Schools    school.Repository
	Marks      marks.Repository
	Complaints complaint.Repository
	DB         io.Closer `name:"db"`
}

type DBParam struct {
	dig.In
	DB io.Closer `name:"db"`
}

type ServerDepsParam struct {
	dig.In
	Validate     *validator.Validate
	Translator   ut.Translator
	SchoolSvc    *school.Service
	Scopes       *scope.Resolver
	MarksSvc     *marks.Service
	Ingest       *ingest.Engine
	ComplaintSvc *complaint.Service
	DashboardSvc *dashboard.Service
	Metrics      *metricsvc.Prometheus
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Database.Engine == database.EngineMemory {
		loggerParam.Logger.Warn("using the in-memory database: data will not survive a restart")
		db := inmemdb.NewDB()
		return Storage{
			Schools:    inmemdb.NewSchoolRepository(db),
			Marks:      inmemdb.NewMarksRepository(db),
			Complaints: inmemdb.NewComplaintRepository(db),
			DB:         nopCloser{},
		}
	}

	ctx := context.Background()
	setUp := func() (io.Closer, Storage, error) {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, Storage{}, err
		}
		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, Storage{}, err
		}
		if err = database.Migrate(db, "up"); err != nil {
			_ = db.Close()
			return nil, Storage{}, err
		}
		return db, Storage{
			Schools:    sqlxrepos.NewSchoolRepository(db),
			Marks:      sqlxrepos.NewMarksRepository(db),
			Complaints: sqlxrepos.NewComplaintRepository(db),
		}, nil
	}

	db, storage, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	storage.DB = db
	return storage
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger, log.New(os.Stdout, "EMAIL : ", log.LstdFlags))
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newReportStore(conf *core.Config, logger core.Logger) ingest.ReportStore {
	if conf.Redis.Address == "" {
		return reportsvc.NewMemoryStore(conf.Upload.ReportTTL)
	}
	client, err := reportsvc.NewRedisClient(context.Background(), conf.Redis)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	return reportsvc.NewRedisStore(client, conf.Upload.ReportTTL)
}

func newValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	complaint.InitValidators(validate, translator)
	return validate, translator
}

func newMetrics(p *metricsvc.Prometheus) core.Metrics {
	return p
}

func newScopeResolver(schools school.Repository) *scope.Resolver {
	return scope.NewResolver(schools)
}

func newMarksService(repo marks.Repository, schools school.Repository, validate *validator.Validate) *marks.Service {
	return marks.NewService(repo, schools, validate)
}

func newIngestEngine(
	repo marks.Repository,
	schools school.Repository,
	scopes *scope.Resolver,
	reports ingest.ReportStore,
	logger core.Logger,
	metrics core.Metrics,
) *ingest.Engine {
	return ingest.NewEngine(repo, schools, scopes, reports, logger, metrics)
}

func newComplaintService(
	repo complaint.Repository,
	schools school.Repository,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
	metrics core.Metrics,
) *complaint.Service {
	return complaint.NewService(repo, schools, mailSvc, conf, logger, metrics)
}

func newDashboardService(schools *school.Service, complaints *complaint.Service) *dashboard.Service {
	return dashboard.NewService(schools, complaints)
}

func newServerDeps(p ServerDepsParam) *echoapi.Deps {
	return &echoapi.Deps{
		Validate:     p.Validate,
		Translator:   p.Translator,
		SchoolSvc:    p.SchoolSvc,
		Scopes:       p.Scopes,
		MarksSvc:     p.MarksSvc,
		Ingest:       p.Ingest,
		ComplaintSvc: p.ComplaintSvc,
		DashboardSvc: p.DashboardSvc,
		Metrics:      p.Metrics.Handler(),
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(newReportStore))
	must(c.Provide(newValidator))
	must(c.Provide(metricsvc.NewPrometheus))
	must(c.Provide(newMetrics))
	must(c.Provide(school.NewService))
	must(c.Provide(newScopeResolver))
	must(c.Provide(newMarksService))
	must(c.Provide(newIngestEngine))
	must(c.Provide(newComplaintService))
	must(c.Provide(newDashboardService))
	must(c.Provide(newServerDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
