package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mmust/marktrack/core/school"
)

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := repo.db.GetContext(ctx, dest, query, args...)
	return trapNoRowsErr(err, school.ErrNotFound)
}

func (repo *schoolRepository) GetSchool(ctx context.Context, code string) (s school.School, err error) {
	err = repo.get(ctx, &s, `SELECT school_code, school_name FROM school WHERE school_code = $1`, code)
	return s, err
}

func (repo *schoolRepository) GetDepartment(ctx context.Context, code string) (d school.Department, err error) {
	err = repo.get(ctx, &d, `SELECT dep_code, dep_name, school_code FROM department WHERE dep_code = $1`, code)
	return d, err
}

func (repo *schoolRepository) GetCourse(ctx context.Context, code string) (c school.Course, err error) {
	err = repo.get(ctx, &c, `SELECT course_code, course_name, dep_code FROM course WHERE course_code = $1`, code)
	return c, err
}

func (repo *schoolRepository) GetUnit(ctx context.Context, code string) (u school.Unit, err error) {
	err = repo.get(ctx, &u, `SELECT unit_code, unit_name, dep_code FROM unit WHERE unit_code = $1`, code)
	return u, err
}

const studentColumns = `s.reg_no, s.username, s.first_name, s.last_name, s.email_address, s.phone_number, s.course_code`

func (repo *schoolRepository) GetStudent(ctx context.Context, regNo string) (s school.Student, err error) {
	err = repo.get(ctx, &s, `SELECT `+studentColumns+` FROM student s WHERE s.reg_no = $1`, regNo)
	return s, err
}

const lecturerColumns = `lec_no, username, email_address, first_name, last_name, phone_number, role, dep_code`

func (repo *schoolRepository) GetLecturer(ctx context.Context, lecNo string) (l school.Lecturer, err error) {
	err = repo.get(ctx, &l, `SELECT `+lecturerColumns+` FROM lecturer WHERE lec_no = $1`, lecNo)
	return l, err
}

func (repo *schoolRepository) GetAcademicYear(ctx context.Context, id int) (y school.AcademicYear, err error) {
	err = repo.get(ctx, &y, `SELECT year_id, academic_year FROM academic_year WHERE year_id = $1`, id)
	return y, err
}

func (repo *schoolRepository) GetAcademicYearByName(ctx context.Context, name string) (y school.AcademicYear, err error) {
	err = repo.get(ctx, &y, `SELECT year_id, academic_year FROM academic_year WHERE academic_year = $1`, name)
	return y, err
}

func (repo *schoolRepository) QueryStudents(ctx context.Context, filter school.StudentFilter) ([]school.Student, error) {
	res := make([]school.Student, 0)
	w := new(where)
	w.inStrings("s.reg_no", filter.RegNos)
	w.inStrings("s.course_code", filter.CourseCodes)
	if filter.DepCode != "" {
		w.add("c.dep_code = ?", filter.DepCode)
	}
	if w.none {
		return res, nil
	}
	err := selectWhere(ctx, repo.db, &res,
		`SELECT `+studentColumns+` FROM student s JOIN course c ON c.course_code = s.course_code`, w, "ORDER BY s.reg_no")
	return res, errors.Wrap(err, "selecting students")
}

func (repo *schoolRepository) QueryLecturers(ctx context.Context, filter school.LecturerFilter) ([]school.Lecturer, error) {
	res := make([]school.Lecturer, 0)
	w := new(where)
	w.inStrings("lec_no", filter.LecNos)
	if filter.DepCode != "" {
		w.add("dep_code = ?", filter.DepCode)
	}
	if w.none {
		return res, nil
	}
	err := selectWhere(ctx, repo.db, &res, `SELECT `+lecturerColumns+` FROM lecturer`, w, "ORDER BY lec_no")
	return res, errors.Wrap(err, "selecting lecturers")
}

func (repo *schoolRepository) QueryAssignments(ctx context.Context, filter school.AssignmentFilter) ([]school.Assignment, error) {
	res := make([]school.Assignment, 0)
	w := new(where)
	w.inStrings("lec_no", filter.LecNos)
	w.inStrings("unit_code", filter.UnitCodes)
	w.inInts("year_id", filter.YearIDs)
	w.inStrings("course_code", filter.CourseCodes)
	if w.none {
		return res, nil
	}
	err := selectWhere(ctx, repo.db, &res,
		`SELECT id, unit_code, lec_no, year_id, course_code FROM lecturer_unit`, w, "ORDER BY id")
	return res, errors.Wrap(err, "selecting assignments")
}

func (repo *schoolRepository) QueryCourses(ctx context.Context, depCode string) ([]school.Course, error) {
	res := make([]school.Course, 0)
	w := new(where)
	if depCode != "" {
		w.add("dep_code = ?", depCode)
	}
	err := selectWhere(ctx, repo.db, &res, `SELECT course_code, course_name, dep_code FROM course`, w, "ORDER BY course_code")
	return res, errors.Wrap(err, "selecting courses")
}

func (repo *schoolRepository) QueryAcademicYears(ctx context.Context) ([]school.AcademicYear, error) {
	res := make([]school.AcademicYear, 0)
	err := repo.db.SelectContext(ctx, &res, `SELECT year_id, academic_year FROM academic_year ORDER BY academic_year`)
	return res, errors.Wrap(err, "selecting academic years")
}

func (repo *schoolRepository) AssignmentExists(ctx context.Context, as school.Assignment) (exists bool, err error) {
	err = repo.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM lecturer_unit
			WHERE unit_code = $1 AND lec_no = $2 AND year_id = $3 AND course_code = $4
		)`, as.UnitCode, as.LecNo, as.YearID, as.CourseCode)
	return exists, errors.Wrap(err, "checking assignment")
}

// insert runs a named INSERT; any unique violation is reported as `conflict`.
func (repo *schoolRepository) insert(ctx context.Context, query string, arg interface{}, conflict error) error {
	_, err := repo.db.NamedExecContext(ctx, query, arg)
	if _, ok := uniqueConstraint(err); ok {
		return conflict
	}
	return err
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, s school.School) (school.School, error) {
	return s, repo.insert(ctx,
		`INSERT INTO school (school_code, school_name) VALUES (:school_code, :school_name)`,
		s, school.ErrAlreadyExists)
}

func (repo *schoolRepository) CreateDepartment(ctx context.Context, d school.Department) (school.Department, error) {
	return d, repo.insert(ctx,
		`INSERT INTO department (dep_code, dep_name, school_code) VALUES (:dep_code, :dep_name, :school_code)`,
		d, school.ErrAlreadyExists)
}

func (repo *schoolRepository) CreateCourse(ctx context.Context, c school.Course) (school.Course, error) {
	return c, repo.insert(ctx,
		`INSERT INTO course (course_code, course_name, dep_code) VALUES (:course_code, :course_name, :dep_code)`,
		c, school.ErrAlreadyExists)
}

func (repo *schoolRepository) CreateStudent(ctx context.Context, s school.Student) (school.Student, error) {
	return s, repo.insert(ctx, `
		INSERT INTO student (reg_no, username, first_name, last_name, email_address, phone_number, course_code)
		VALUES (:reg_no, :username, :first_name, :last_name, :email_address, :phone_number, :course_code)`,
		s, school.ErrAlreadyExists)
}

func (repo *schoolRepository) CreateLecturer(ctx context.Context, l school.Lecturer) (school.Lecturer, error) {
	return l, repo.insert(ctx, `
		INSERT INTO lecturer (lec_no, username, email_address, first_name, last_name, phone_number, role, dep_code)
		VALUES (:lec_no, :username, :email_address, :first_name, :last_name, :phone_number, :role, :dep_code)`,
		l, school.ErrAlreadyExists)
}

func (repo *schoolRepository) CreateUnit(ctx context.Context, u school.Unit) (school.Unit, error) {
	return u, repo.insert(ctx,
		`INSERT INTO unit (unit_code, unit_name, dep_code) VALUES (:unit_code, :unit_name, :dep_code)`,
		u, school.ErrAlreadyExists)
}

func (repo *schoolRepository) CreateAcademicYear(ctx context.Context, y school.AcademicYear) (school.AcademicYear, error) {
	err := repo.db.GetContext(ctx, &y.ID,
		`INSERT INTO academic_year (academic_year) VALUES ($1) RETURNING year_id`, y.Name)
	if _, ok := uniqueConstraint(err); ok {
		return y, school.ErrAlreadyExists
	}
	return y, errors.Wrap(err, "inserting academic year")
}

func (repo *schoolRepository) CreateAssignment(ctx context.Context, as school.Assignment) (school.Assignment, error) {
	err := repo.db.GetContext(ctx, &as.ID, `
		INSERT INTO lecturer_unit (unit_code, lec_no, year_id, course_code)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		as.UnitCode, as.LecNo, as.YearID, as.CourseCode)
	if constraint, ok := uniqueConstraint(err); ok && constraint == "unique_lecturer_unit" {
		return as, school.ErrAssignmentExists
	}
	return as, errors.Wrap(err, "inserting assignment")
}
