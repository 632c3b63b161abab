// Package ingest loads nominal rolls and results from uploaded spreadsheets, one committed row at a time.
package ingest

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/marks"
	"github.com/mmust/marktrack/core/school"
	"github.com/mmust/marktrack/core/scope"
)

type Engine struct {
	repo    marks.Repository
	schools marks.SchoolRepository
	scopes  *scope.Resolver
	reports ReportStore
	logger  core.Logger
	metrics core.Metrics
}

func NewEngine(
	repo marks.Repository,
	schools marks.SchoolRepository,
	scopes *scope.Resolver,
	reports ReportStore,
	logger core.Logger,
	metrics core.Metrics,
) *Engine {
	if metrics == nil {
		metrics = core.NopMetrics
	}
	return &Engine{
		repo:    repo,
		schools: schools,
		scopes:  scopes,
		reports: reports,
		logger:  logger,
		metrics: metrics,
	}
}

// LoadNominalRoll ingests a nominal roll upload on behalf of the lecturer.
func (e *Engine) LoadNominalRoll(ctx context.Context, lecNo, filename string, r io.Reader) (Report, error) {
	return e.load(ctx, KindNominalRoll, lecNo, filename, r)
}

// LoadResults ingests a results upload on behalf of the lecturer.
func (e *Engine) LoadResults(ctx context.Context, lecNo, filename string, r io.Reader) (Report, error) {
	return e.load(ctx, KindResult, lecNo, filename, r)
}

// Report fetches a stored upload report owned by the lecturer.
func (e *Engine) Report(ctx context.Context, lecNo, id string) (Report, error) {
	if e.reports == nil {
		return Report{}, ErrReportNotFound
	}
	report, err := e.reports.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if report.LecNo != lecNo {
		return Report{}, ErrReportNotFound
	}
	return report, nil
}

func (e *Engine) load(ctx context.Context, kind Kind, lecNo, filename string, r io.Reader) (Report, error) {
	table, err := ReadTable(filename, r)
	if err != nil {
		return Report{}, err
	}
	if err = table.Require(kind.Columns()...); err != nil {
		return Report{}, err
	}

	sc, err := e.scopes.Resolve(ctx, lecNo)
	if err != nil {
		return Report{}, errors.Wrap(err, "resolving scope")
	}

	report := newReport(kind, lecNo, filename, core.NowFunc())
	lk := newLookup(e.schools)
	for _, row := range table.Rows {
		if err = ctx.Err(); err != nil {
			return report, errors.Wrapf(err, "loading row %d", row.Num)
		}
		out := e.loadRow(ctx, kind, sc, lk, parseRow(row))
		report.add(out)
		e.metrics.IncRow(string(kind), string(out.Status))
	}
	report.finish()

	if e.reports != nil {
		if err = e.reports.Save(ctx, report); err != nil {
			e.logger.Error(fmt.Sprintf("saving upload report: %v", err), err)
		}
	}
	e.logger.Info(
		fmt.Sprintf("%s upload %q by %s: %d inserted, %d duplicates, %d errors",
			kind, filename, lecNo, report.Inserted, report.Duplicates, report.Errors),
	)
	return report, nil
}

type (
	// markCell is a mark as read from the file: null when blank, invalid when not an integer.
	markCell struct {
		raw   string
		value null.Int
		valid bool
	}

	// parsedRow is a table row converted to typed fields ahead of any domain check.
	parsedRow struct {
		num      int
		unitCode string
		regNo    string
		year     string
		cat      markCell
		exam     markCell
	}
)

func parseRow(row Row) parsedRow {
	return parsedRow{
		num:      row.Num,
		unitCode: row.Get("unit_code"),
		regNo:    row.Get("reg_no"),
		year:     row.Get("academic_year"),
		cat:      parseMark(row.Get("cat")),
		exam:     parseMark(row.Get("exam")),
	}
}

// parseMark accepts integers and integral decimals such as "15.0" (spreadsheet numbers).
func parseMark(raw string) markCell {
	mc := markCell{raw: raw}
	if raw == "" {
		mc.valid = true
		return mc
	}
	if v, err := strconv.Atoi(raw); err == nil {
		mc.value, mc.valid = null.IntFrom(v), true
		return mc
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		mc.value, mc.valid = null.IntFrom(int(f)), true
	}
	return mc
}

func (e *Engine) loadRow(ctx context.Context, kind Kind, sc scope.Scope, lk *lookup, pr parsedRow) Outcome {
	fail := func(reason Reason, format string, args ...interface{}) Outcome {
		return Outcome{
			Row:     pr.num,
			Status:  StatusError,
			Reason:  reason,
			Message: fmt.Sprintf("Row %d: ", pr.num) + fmt.Sprintf(format, args...),
		}
	}
	internal := func(err error) Outcome {
		e.logger.Error(fmt.Sprintf("%s row %d: %v", kind, pr.num, err), err)
		return fail(ReasonInternal, "Unexpected error while saving entry for student '%s'.", pr.regNo)
	}

	// resolve referenced entities
	found, err := lk.unit(ctx, pr.unitCode)
	if err != nil {
		return internal(err)
	}
	if !found {
		return fail(ReasonUnitNotFound, "Unit '%s' not found.", pr.unitCode)
	}
	if found, err = lk.student(ctx, pr.regNo); err != nil {
		return internal(err)
	} else if !found {
		return fail(ReasonStudentNotFound, "Student '%s' not found.", pr.regNo)
	}
	year, found, err := lk.year(ctx, pr.year)
	if err != nil {
		return internal(err)
	}
	if !found {
		return fail(ReasonYearNotFound, "Academic year '%s' not found.", pr.year)
	}

	if !sc.Allows(pr.unitCode, year.ID) {
		return fail(ReasonOutOfScope, "You are not assigned to unit '%s' for %s.", pr.unitCode, year.Name)
	}

	key := marks.Key{UnitCode: pr.unitCode, RegNo: pr.regNo, YearID: year.ID}
	duplicate := Outcome{
		Row:    pr.num,
		Status: StatusWarning,
		Reason: ReasonDuplicate,
		Message: fmt.Sprintf("Row %d: Entry for student '%s' in unit '%s' (%s) already exists.",
			pr.num, pr.regNo, pr.unitCode, year.Name),
	}

	var exists bool
	if kind == KindResult {
		exists, err = e.repo.ResultExists(ctx, key)
	} else {
		exists, err = e.repo.NominalRollExists(ctx, key)
	}
	if err != nil {
		return internal(err)
	}
	if exists {
		return duplicate
	}

	if kind == KindResult {
		if !pr.cat.valid || (pr.cat.value.Valid && marks.ValidateCat(pr.cat.value.Int) != nil) {
			return fail(ReasonInvalidCat, "Invalid CAT mark (%s) for student '%s'. Should be between 0-%d.",
				pr.cat.raw, pr.regNo, marks.MaxCat)
		}
		if !pr.exam.valid || (pr.exam.value.Valid && marks.ValidateExam(pr.exam.value.Int) != nil) {
			return fail(ReasonInvalidExam, "Invalid exam mark (%s) for student '%s'. Should be between 0-%d.",
				pr.exam.raw, pr.regNo, marks.MaxExam)
		}
		_, err = e.repo.CreateResult(ctx, marks.Result{
			UnitCode: key.UnitCode,
			RegNo:    key.RegNo,
			YearID:   key.YearID,
			Cat:      pr.cat.value,
			Exam:     pr.exam.value,
		})
	} else {
		_, err = e.repo.CreateNominalRoll(ctx, marks.NominalRoll{
			UnitCode: key.UnitCode,
			RegNo:    key.RegNo,
			YearID:   key.YearID,
			Date:     core.NowFunc(),
		})
	}

	switch errors.Cause(err) {
	case nil:
		return Outcome{Row: pr.num, Status: StatusSuccess}
	case marks.ErrNominalRollExists, marks.ErrResultExists:
		// lost a race against a concurrent upload
		return duplicate
	default:
		return internal(err)
	}
}

// lookup memoizes referenced entities for the duration of one upload.
type lookup struct {
	schools  marks.SchoolRepository
	units    map[string]bool
	students map[string]bool
	years    map[string]*school.AcademicYear
}

func newLookup(schools marks.SchoolRepository) *lookup {
	return &lookup{
		schools:  schools,
		units:    make(map[string]bool),
		students: make(map[string]bool),
		years:    make(map[string]*school.AcademicYear),
	}
}

func (lk *lookup) unit(ctx context.Context, code string) (bool, error) {
	if found, ok := lk.units[code]; ok {
		return found, nil
	}
	found, err := exists(lk.schools.GetUnit(ctx, code))
	if err != nil {
		return false, errors.Wrap(err, "getting unit")
	}
	lk.units[code] = found
	return found, nil
}

func (lk *lookup) student(ctx context.Context, regNo string) (bool, error) {
	if found, ok := lk.students[regNo]; ok {
		return found, nil
	}
	found, err := exists(lk.schools.GetStudent(ctx, regNo))
	if err != nil {
		return false, errors.Wrap(err, "getting student")
	}
	lk.students[regNo] = found
	return found, nil
}

func (lk *lookup) year(ctx context.Context, name string) (school.AcademicYear, bool, error) {
	if y, ok := lk.years[name]; ok {
		if y == nil {
			return school.AcademicYear{}, false, nil
		}
		return *y, true, nil
	}
	y, err := lk.schools.GetAcademicYearByName(ctx, name)
	if err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			lk.years[name] = nil
			return school.AcademicYear{}, false, nil
		}
		return school.AcademicYear{}, false, errors.Wrap(err, "getting academic year")
	}
	lk.years[name] = &y
	return y, true, nil
}

func exists(_ interface{}, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Cause(err) == school.ErrNotFound {
		return false, nil
	}
	return false, err
}
