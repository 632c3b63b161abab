package school

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/mmust/marktrack/core"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAssignmentExists = errors.New("this lecturer is already assigned to this unit, course and academic year")
	ErrAlreadyExists    = errors.New("already exists")
)

type (
	Repository interface {
		GetSchool(ctx context.Context, code string) (School, error)
		GetDepartment(ctx context.Context, code string) (Department, error)
		GetCourse(ctx context.Context, code string) (Course, error)
		GetUnit(ctx context.Context, code string) (Unit, error)
		GetStudent(ctx context.Context, regNo string) (Student, error)
		GetLecturer(ctx context.Context, lecNo string) (Lecturer, error)
		GetAcademicYear(ctx context.Context, id int) (AcademicYear, error)
		GetAcademicYearByName(ctx context.Context, name string) (AcademicYear, error)

		QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
		QueryLecturers(ctx context.Context, filter LecturerFilter) ([]Lecturer, error)
		QueryAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
		QueryCourses(ctx context.Context, depCode string) ([]Course, error)
		QueryAcademicYears(ctx context.Context) ([]AcademicYear, error)
		AssignmentExists(ctx context.Context, as Assignment) (bool, error)

		CreateSchool(ctx context.Context, s School) (School, error)
		CreateDepartment(ctx context.Context, d Department) (Department, error)
		CreateCourse(ctx context.Context, c Course) (Course, error)
		CreateStudent(ctx context.Context, s Student) (Student, error)
		CreateLecturer(ctx context.Context, l Lecturer) (Lecturer, error)
		CreateUnit(ctx context.Context, u Unit) (Unit, error)
		CreateAcademicYear(ctx context.Context, y AcademicYear) (AcademicYear, error)
		CreateAssignment(ctx context.Context, as Assignment) (Assignment, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) GetStudent(ctx context.Context, regNo string) (Student, error) {
	return svc.repo.GetStudent(ctx, core.CleanString(regNo))
}

func (svc *Service) GetLecturer(ctx context.Context, lecNo string) (Lecturer, error) {
	return svc.repo.GetLecturer(ctx, core.CleanString(lecNo))
}

func (svc *Service) GetDepartment(ctx context.Context, code string) (Department, error) {
	return svc.repo.GetDepartment(ctx, core.CleanString(code))
}

func (svc *Service) GetAcademicYearByName(ctx context.Context, name string) (AcademicYear, error) {
	return svc.repo.GetAcademicYearByName(ctx, core.CleanString(name))
}

func (svc *Service) QueryAcademicYears(ctx context.Context) ([]AcademicYear, error) {
	return svc.repo.QueryAcademicYears(ctx)
}

func (svc *Service) DepartmentLecturers(ctx context.Context, depCode string) ([]Lecturer, error) {
	return svc.repo.QueryLecturers(ctx, LecturerFilter{DepCode: depCode})
}

func (svc *Service) DepartmentStudents(ctx context.Context, depCode string) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, StudentFilter{DepCode: depCode})
}

func (svc *Service) DepartmentCourses(ctx context.Context, depCode string) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, depCode)
}

func (svc *Service) LecturerAssignments(ctx context.Context, lecNo string) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, AssignmentFilter{LecNos: []string{lecNo}})
}

// Assign records that a lecturer teaches a unit to a course in an academic year.
func (svc *Service) Assign(ctx context.Context, na NewAssignment) (Assignment, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Assignment{}, err
	}

	notFound := func(field string, err error) error {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
		}
		return errors.Wrap(err, "resolving "+field)
	}
	if _, err := svc.repo.GetUnit(ctx, na.UnitCode); err != nil {
		return Assignment{}, notFound("unit_code", err)
	}
	if _, err := svc.repo.GetLecturer(ctx, na.LecNo); err != nil {
		return Assignment{}, notFound("lec_no", err)
	}
	if _, err := svc.repo.GetCourse(ctx, na.CourseCode); err != nil {
		return Assignment{}, notFound("course_code", err)
	}
	year, err := svc.repo.GetAcademicYearByName(ctx, na.AcademicYear)
	if err != nil {
		return Assignment{}, notFound("academic_year", err)
	}

	as := Assignment{
		UnitCode:   na.UnitCode,
		LecNo:      na.LecNo,
		YearID:     year.ID,
		CourseCode: na.CourseCode,
	}
	exists, err := svc.repo.AssignmentExists(ctx, as)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "checking assignment")
	}
	if exists {
		return Assignment{}, core.NewValidationError(ErrAssignmentExists)
	}

	as, err = svc.repo.CreateAssignment(ctx, as)
	if errors.Cause(err) == ErrAssignmentExists {
		return Assignment{}, core.NewValidationError(ErrAssignmentExists)
	}
	return as, errors.Wrap(err, "creating assignment")
}
