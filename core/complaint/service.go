package complaint

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/school"
	"github.com/mmust/marktrack/core/scope"
)

var (
	ErrNotFound         = errors.New("complaint not found")
	ErrResponseNotFound = errors.New("response not found")
	ErrComplaintExists  = errors.New("A complaint for this unit and student already exists.")
	ErrResponseExists   = errors.New("A response already exists for this unit and student.")
	ErrOutOfScope       = errors.New("you are not assigned to this unit and student")
	ErrNoAcademicYear   = errors.New("this complaint has no academic year and cannot be answered")
)

// transition events
const (
	EventPosted          = "posted"
	EventResolved        = "resolved"
	EventResponseDeleted = "response_deleted"
)

type (
	Repository interface {
		// WithTx runs fn against a transaction-bound Repository; it commits when fn returns nil.
		WithTx(ctx context.Context, fn func(tx Repository) error) error

		ComplaintCodeExists(ctx context.Context, code string) (bool, error)
		ComplaintExists(ctx context.Context, regNo, unitCode string) (bool, error)
		// CreateComplaint returns ErrComplaintExists or ErrCodeTaken on unique violations.
		CreateComplaint(ctx context.Context, c Complaint) (Complaint, error)
		GetComplaint(ctx context.Context, code string) (Complaint, error)
		// QueryComplaints returns the oldest complaints first.
		QueryComplaints(ctx context.Context, filter ComplaintFilter) ([]Complaint, error)
		// DeleteComplaint returns ErrNotFound when nothing was deleted.
		DeleteComplaint(ctx context.Context, code string) error

		ResponseCodeExists(ctx context.Context, code string) (bool, error)
		ResponseExists(ctx context.Context, regNo, unitCode string) (bool, error)
		// CreateResponse returns ErrResponseExists or ErrCodeTaken on unique violations.
		CreateResponse(ctx context.Context, r Response) (Response, error)
		GetResponse(ctx context.Context, id int) (Response, error)
		// QueryResponses returns the newest responses first.
		QueryResponses(ctx context.Context, filter ResponseFilter) ([]Response, error)
		DeleteResponse(ctx context.Context, id int) error
		// ArchiveResponse moves the current response of the pair, if any, to the response history.
		ArchiveResponse(ctx context.Context, regNo, unitCode string, at time.Time) error
	}

	SchoolRepository interface {
		GetUnit(ctx context.Context, code string) (school.Unit, error)
		GetCourse(ctx context.Context, code string) (school.Course, error)
		GetStudent(ctx context.Context, regNo string) (school.Student, error)
		GetAcademicYearByName(ctx context.Context, name string) (school.AcademicYear, error)
		QueryStudents(ctx context.Context, filter school.StudentFilter) ([]school.Student, error)
		QueryLecturers(ctx context.Context, filter school.LecturerFilter) ([]school.Lecturer, error)
		QueryAssignments(ctx context.Context, filter school.AssignmentFilter) ([]school.Assignment, error)
	}

	Service struct {
		repo    Repository
		schools SchoolRepository
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
		metrics core.Metrics
	}
)

func NewService(
	repo Repository,
	schools SchoolRepository,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
	metrics core.Metrics,
) *Service {
	if metrics == nil {
		metrics = core.NopMetrics
	}
	return &Service{
		repo:    repo,
		schools: schools,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
		metrics: metrics,
	}
}

func (svc *Service) overdueAfter() time.Duration {
	if svc.conf == nil || svc.conf.Complaint.OverdueAfter <= 0 {
		return 24 * time.Hour
	}
	return svc.conf.Complaint.OverdueAfter
}

// withCodeRetry reruns fn when the generated code collided at insert time.
func withCodeRetry(fn func() error) error {
	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		if err := fn(); errors.Cause(err) != ErrCodeTaken {
			return err
		}
	}
	return ErrCodeSpaceExhausted
}

func fieldNotFound(field string, err error) error {
	if errors.Cause(err) == school.ErrNotFound {
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return errors.Wrap(err, "resolving "+field)
}

// Post files a complaint for the student. `nc` must have been validated.
func (svc *Service) Post(ctx context.Context, student school.Student, nc NewComplaint) (Complaint, error) {
	unit, err := svc.schools.GetUnit(ctx, nc.UnitCode)
	if err != nil {
		return Complaint{}, fieldNotFound("unit_code", err)
	}
	year, err := svc.schools.GetAcademicYearByName(ctx, nc.AcademicYear)
	if err != nil {
		return Complaint{}, fieldNotFound("academic_year", err)
	}
	examDate, err := time.Parse(core.DateLayout, nc.ExamDate)
	if err != nil {
		return Complaint{}, core.NewValidationError(err, core.FieldError{Field: "exam_date", Error: "must be a date formatted as YYYY-MM-DD"})
	}

	exists, err := svc.repo.ComplaintExists(ctx, student.RegNo, unit.Code)
	if err != nil {
		return Complaint{}, errors.Wrap(err, "checking complaint")
	}
	if exists {
		return Complaint{}, ErrComplaintExists
	}

	c := Complaint{
		UnitCode:    unit.Code,
		RegNo:       student.RegNo,
		MissingMark: nc.MissingMark,
		YearID:      null.IntFrom(year.ID),
		ExamDate:    examDate,
		Description: nc.Description,
		CreatedAt:   core.NowFunc(),
	}
	var created Complaint
	err = withCodeRetry(func() error {
		return svc.repo.WithTx(ctx, func(tx Repository) error {
			code, err := generateCode(ctx, tx.ComplaintCodeExists)
			if err != nil {
				return err
			}
			c.Code = code

			// a re-filed complaint supersedes the previous answer
			if err = tx.ArchiveResponse(ctx, c.RegNo, c.UnitCode, c.CreatedAt); err != nil {
				return errors.Wrap(err, "archiving previous response")
			}
			created, err = tx.CreateComplaint(ctx, c)
			return err
		})
	})

	switch cause := errors.Cause(err); cause {
	case nil:
		svc.metrics.IncTransition(EventPosted)
		return created, nil
	case ErrComplaintExists, ErrCodeSpaceExhausted:
		return Complaint{}, cause
	default:
		return Complaint{}, errors.Wrap(err, "creating complaint")
	}
}

// Respond answers a complaint: the response is stored and the complaint deleted atomically.
func (svc *Service) Respond(ctx context.Context, lecturer school.Lecturer, sc scope.Scope, code string, nr NewResponse) (Response, error) {
	c, err := svc.repo.GetComplaint(ctx, code)
	if err != nil {
		return Response{}, err
	}
	if !c.YearID.Valid {
		return Response{}, ErrNoAcademicYear
	}
	if !sc.Covers(c.UnitCode, c.YearID.Int, c.RegNo) {
		return Response{}, ErrOutOfScope
	}

	exists, err := svc.repo.ResponseExists(ctx, c.RegNo, c.UnitCode)
	if err != nil {
		return Response{}, errors.Wrap(err, "checking response")
	}
	if exists {
		return Response{}, ErrResponseExists
	}

	nr.Clean()
	var created Response
	err = withCodeRetry(func() error {
		return svc.repo.WithTx(ctx, func(tx Repository) error {
			rCode, err := generateCode(ctx, tx.ResponseCodeExists)
			if err != nil {
				return err
			}
			if err = ValidateResponseMarks(nr.Outcome, nr.Cat, nr.Exam); err != nil {
				return err
			}
			created, err = tx.CreateResponse(ctx, Response{
				Code:      rCode,
				LecNo:     lecturer.LecNo,
				Outcome:   nr.Outcome,
				RegNo:     c.RegNo,
				UnitCode:  c.UnitCode,
				YearID:    c.YearID.Int,
				Cat:       nr.Cat,
				Exam:      nr.Exam,
				CreatedAt: core.NowFunc(),
			})
			if err != nil {
				return err
			}
			return tx.DeleteComplaint(ctx, c.Code)
		})
	})

	if err == nil {
		svc.metrics.IncTransition(EventResolved)
		return created, nil
	}
	switch cause := errors.Cause(err); cause {
	case ErrResponseExists, ErrNotFound, ErrCodeSpaceExhausted:
		return Response{}, cause
	}
	if core.IsValidationError(err) {
		return Response{}, err
	}
	return Response{}, errors.Wrap(err, "creating response")
}

func (svc *Service) Get(ctx context.Context, code string) (Complaint, error) {
	return svc.repo.GetComplaint(ctx, core.CleanString(code))
}

// GetInScope returns the complaint only when the lecturer's scope covers it.
func (svc *Service) GetInScope(ctx context.Context, sc scope.Scope, code string) (Complaint, error) {
	c, err := svc.Get(ctx, code)
	if err != nil {
		return Complaint{}, err
	}
	if !c.YearID.Valid || !sc.Covers(c.UnitCode, c.YearID.Int, c.RegNo) {
		return Complaint{}, ErrNotFound
	}
	return c, nil
}

// QueryForScope lists the open complaints the lecturer may answer.
func (svc *Service) QueryForScope(ctx context.Context, sc scope.Scope) ([]Complaint, error) {
	if sc.IsEmpty() {
		return []Complaint{}, nil
	}
	complaints, err := svc.repo.QueryComplaints(ctx, ComplaintFilter{
		RegNos:    sc.RegNos(),
		UnitCodes: sc.UnitCodes(),
		YearIDs:   sc.YearIDs(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying complaints")
	}

	res := make([]Complaint, 0, len(complaints))
	for _, c := range complaints {
		if c.YearID.Valid && sc.Covers(c.UnitCode, c.YearID.Int, c.RegNo) {
			res = append(res, c)
		}
	}
	return res, nil
}

// QueryForStudent lists the student's open complaints.
func (svc *Service) QueryForStudent(ctx context.Context, regNo string) ([]Complaint, error) {
	complaints, err := svc.repo.QueryComplaints(ctx, ComplaintFilter{RegNos: []string{regNo}})
	return complaints, errors.Wrap(err, "querying complaints")
}

// ResponsesForStudent lists the answers the student received.
func (svc *Service) ResponsesForStudent(ctx context.Context, regNo string) ([]Response, error) {
	responses, err := svc.repo.QueryResponses(ctx, ResponseFilter{RegNos: []string{regNo}})
	return responses, errors.Wrap(err, "querying responses")
}

// ResponsesByDepartment lists the responses given by lecturers of the department.
func (svc *Service) ResponsesByDepartment(ctx context.Context, depCode string) ([]Response, error) {
	lecturers, err := svc.schools.QueryLecturers(ctx, school.LecturerFilter{DepCode: depCode})
	if err != nil {
		return nil, errors.Wrap(err, "querying lecturers")
	}
	lecNos := make([]string, 0, len(lecturers))
	for _, l := range lecturers {
		lecNos = append(lecNos, l.LecNo)
	}
	responses, err := svc.repo.QueryResponses(ctx, ResponseFilter{LecNos: lecNos})
	return responses, errors.Wrap(err, "querying responses")
}

// ResponsesForDepartmentStudents lists the responses given to students whose course belongs to the department.
func (svc *Service) ResponsesForDepartmentStudents(ctx context.Context, depCode string) ([]Response, error) {
	regNos, err := svc.departmentRegNos(ctx, depCode)
	if err != nil {
		return nil, err
	}
	responses, err := svc.repo.QueryResponses(ctx, ResponseFilter{RegNos: regNos})
	return responses, errors.Wrap(err, "querying responses")
}

// DeleteResponse removes a response given to a student of the lecturer's department.
func (svc *Service) DeleteResponse(ctx context.Context, lecturer school.Lecturer, id int) error {
	r, err := svc.repo.GetResponse(ctx, id)
	if err != nil {
		return err
	}
	st, err := svc.schools.GetStudent(ctx, r.RegNo)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	course, err := svc.schools.GetCourse(ctx, st.CourseCode)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	if course.DepCode != lecturer.DepCode {
		return ErrOutOfScope
	}

	if err = svc.repo.DeleteResponse(ctx, id); err != nil {
		return err
	}
	svc.metrics.IncTransition(EventResponseDeleted)
	return nil
}

func (svc *Service) departmentRegNos(ctx context.Context, depCode string) ([]string, error) {
	students, err := svc.schools.QueryStudents(ctx, school.StudentFilter{DepCode: depCode})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	regNos := make([]string, 0, len(students))
	for _, st := range students {
		regNos = append(regNos, st.RegNo)
	}
	return regNos, nil
}
