package marks

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/school"
	"github.com/mmust/marktrack/core/scope"
)

var (
	ErrNominalRollExists = errors.New("nominal roll entry already exists")
	ErrResultExists      = errors.New("result already exists")
	ErrOutOfScope        = errors.New("you are not assigned to this unit for this academic year")
)

// OrderingFields are the sortable fields of nominal rolls and results.
var OrderingFields = core.OrderingFields{
	"reg_no":        "reg_no",
	"unit_code":     "unit_code",
	"academic_year": "year_id",
	"date":          "date",
	"cat":           "cat",
	"exam":          "exam",
}

var defaultOrdering = core.DBOrdering{Field: "reg_no", Ascending: true}

type (
	Repository interface {
		NominalRollExists(ctx context.Context, key Key) (bool, error)
		CreateNominalRoll(ctx context.Context, nr NominalRoll) (NominalRoll, error)
		QueryNominalRolls(ctx context.Context, filter RepoFilter, ordering []core.DBOrdering) ([]NominalRoll, error)

		ResultExists(ctx context.Context, key Key) (bool, error)
		CreateResult(ctx context.Context, r Result) (Result, error)
		QueryResults(ctx context.Context, filter RepoFilter, ordering []core.DBOrdering) ([]Result, error)
	}

	SchoolRepository interface {
		GetUnit(ctx context.Context, code string) (school.Unit, error)
		GetStudent(ctx context.Context, regNo string) (school.Student, error)
		GetAcademicYearByName(ctx context.Context, name string) (school.AcademicYear, error)
	}

	Service struct {
		repo     Repository
		schools  SchoolRepository
		validate *validator.Validate
	}
)

func NewService(repo Repository, schools SchoolRepository, validate *validator.Validate) *Service {
	return &Service{repo: repo, schools: schools, validate: validate}
}

// repoFilter restricts listings to the lecturer's units. An unknown academic year matches nothing.
func (svc *Service) repoFilter(ctx context.Context, sc scope.Scope, filter QueryFilter) (RepoFilter, bool, error) {
	filter.Clean()
	rf := RepoFilter{
		UnitCodes: sc.UnitCodes(),
		UnitCode:  filter.UnitCode,
		RegNo:     filter.RegNo,
	}
	if filter.AcademicYear != "" {
		year, err := svc.schools.GetAcademicYearByName(ctx, filter.AcademicYear)
		if err != nil {
			if errors.Cause(err) == school.ErrNotFound {
				return rf, false, nil
			}
			return rf, false, errors.Wrap(err, "resolving academic year")
		}
		rf.YearID = year.ID
	}
	return rf, true, nil
}

// QueryNominalRolls lists the nominal roll entries of the lecturer's units.
func (svc *Service) QueryNominalRolls(ctx context.Context, sc scope.Scope, filter QueryFilter, ordering []core.DBOrdering) ([]NominalRoll, error) {
	rf, ok, err := svc.repoFilter(ctx, sc, filter)
	if err != nil || !ok {
		return []NominalRoll{}, err
	}
	rolls, err := svc.repo.QueryNominalRolls(ctx, rf, OrderingFields.Resolve(ordering, defaultOrdering))
	return rolls, errors.Wrap(err, "querying nominal rolls")
}

// QueryResults lists the results of the lecturer's units.
func (svc *Service) QueryResults(ctx context.Context, sc scope.Scope, filter QueryFilter, ordering []core.DBOrdering) ([]Result, error) {
	rf, ok, err := svc.repoFilter(ctx, sc, filter)
	if err != nil || !ok {
		return []Result{}, err
	}
	results, err := svc.repo.QueryResults(ctx, rf, OrderingFields.Resolve(ordering, defaultOrdering))
	return results, errors.Wrap(err, "querying results")
}

// CreateResult records a single result. Mark bounds are the ones bulk ingestion applies.
func (svc *Service) CreateResult(ctx context.Context, sc scope.Scope, nr NewResult) (Result, error) {
	if err := nr.Validate(svc.validate); err != nil {
		return Result{}, err
	}

	notFound := func(field string, err error) error {
		if errors.Cause(err) == school.ErrNotFound {
			return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
		}
		return errors.Wrap(err, "resolving "+field)
	}
	if _, err := svc.schools.GetUnit(ctx, nr.UnitCode); err != nil {
		return Result{}, notFound("unit_code", err)
	}
	if _, err := svc.schools.GetStudent(ctx, nr.RegNo); err != nil {
		return Result{}, notFound("reg_no", err)
	}
	year, err := svc.schools.GetAcademicYearByName(ctx, nr.AcademicYear)
	if err != nil {
		return Result{}, notFound("academic_year", err)
	}
	if !sc.Allows(nr.UnitCode, year.ID) {
		return Result{}, ErrOutOfScope
	}

	res := Result{UnitCode: nr.UnitCode, RegNo: nr.RegNo, YearID: year.ID, Cat: nr.Cat, Exam: nr.Exam}
	exists, err := svc.repo.ResultExists(ctx, res.Key())
	if err != nil {
		return Result{}, errors.Wrap(err, "checking result")
	}
	if exists {
		return Result{}, core.NewValidationError(ErrResultExists)
	}

	res, err = svc.repo.CreateResult(ctx, res)
	if errors.Cause(err) == ErrResultExists {
		return Result{}, core.NewValidationError(ErrResultExists)
	}
	return res, errors.Wrap(err, "creating result")
}
