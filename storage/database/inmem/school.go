package inmemdb

import (
	"context"
	"sort"

	"github.com/mmust/marktrack/core/school"
)

type schoolRepository struct {
	session
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{session{db: db}}
}

func (repo *schoolRepository) GetSchool(_ context.Context, code string) (s school.School, err error) {
	err = repo.read(func(st *state) error {
		var ok bool
		if s, ok = st.schools[code]; !ok {
			return school.ErrNotFound
		}
		return nil
	})
	return s, err
}

func (repo *schoolRepository) GetDepartment(_ context.Context, code string) (d school.Department, err error) {
	err = repo.read(func(st *state) error {
		var ok bool
		if d, ok = st.departments[code]; !ok {
			return school.ErrNotFound
		}
		return nil
	})
	return d, err
}

func (repo *schoolRepository) GetCourse(_ context.Context, code string) (c school.Course, err error) {
	err = repo.read(func(st *state) error {
		var ok bool
		if c, ok = st.courses[code]; !ok {
			return school.ErrNotFound
		}
		return nil
	})
	return c, err
}

func (repo *schoolRepository) GetUnit(_ context.Context, code string) (u school.Unit, err error) {
	err = repo.read(func(st *state) error {
		var ok bool
		if u, ok = st.units[code]; !ok {
			return school.ErrNotFound
		}
		return nil
	})
	return u, err
}

func (repo *schoolRepository) GetStudent(_ context.Context, regNo string) (s school.Student, err error) {
	err = repo.read(func(st *state) error {
		var ok bool
		if s, ok = st.students[regNo]; !ok {
			return school.ErrNotFound
		}
		return nil
	})
	return s, err
}

func (repo *schoolRepository) GetLecturer(_ context.Context, lecNo string) (l school.Lecturer, err error) {
	err = repo.read(func(st *state) error {
		var ok bool
		if l, ok = st.lecturers[lecNo]; !ok {
			return school.ErrNotFound
		}
		return nil
	})
	return l, err
}

func (repo *schoolRepository) GetAcademicYear(_ context.Context, id int) (y school.AcademicYear, err error) {
	err = repo.read(func(st *state) error {
		var ok bool
		if y, ok = st.years[id]; !ok {
			return school.ErrNotFound
		}
		return nil
	})
	return y, err
}

func (repo *schoolRepository) GetAcademicYearByName(_ context.Context, name string) (y school.AcademicYear, err error) {
	err = repo.read(func(st *state) error {
		for _, year := range st.years {
			if year.Name == name {
				y = year
				return nil
			}
		}
		return school.ErrNotFound
	})
	return y, err
}

func (repo *schoolRepository) QueryStudents(_ context.Context, filter school.StudentFilter) ([]school.Student, error) {
	res := make([]school.Student, 0)
	err := repo.read(func(st *state) error {
		for _, s := range st.students {
			if !containsStr(filter.RegNos, s.RegNo) || !containsStr(filter.CourseCodes, s.CourseCode) {
				continue
			}
			if filter.DepCode != "" && st.courses[s.CourseCode].DepCode != filter.DepCode {
				continue
			}
			res = append(res, s)
		}
		return nil
	})
	sort.Slice(res, func(i, j int) bool { return res[i].RegNo < res[j].RegNo })
	return res, err
}

func (repo *schoolRepository) QueryLecturers(_ context.Context, filter school.LecturerFilter) ([]school.Lecturer, error) {
	res := make([]school.Lecturer, 0)
	err := repo.read(func(st *state) error {
		for _, l := range st.lecturers {
			if !containsStr(filter.LecNos, l.LecNo) {
				continue
			}
			if filter.DepCode != "" && l.DepCode != filter.DepCode {
				continue
			}
			res = append(res, l)
		}
		return nil
	})
	sort.Slice(res, func(i, j int) bool { return res[i].LecNo < res[j].LecNo })
	return res, err
}

func (repo *schoolRepository) QueryAssignments(_ context.Context, filter school.AssignmentFilter) ([]school.Assignment, error) {
	res := make([]school.Assignment, 0)
	err := repo.read(func(st *state) error {
		for _, as := range st.assignments {
			if containsStr(filter.LecNos, as.LecNo) &&
				containsStr(filter.UnitCodes, as.UnitCode) &&
				containsInt(filter.YearIDs, as.YearID) &&
				containsStr(filter.CourseCodes, as.CourseCode) {
				res = append(res, as)
			}
		}
		return nil
	})
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, err
}

func (repo *schoolRepository) QueryCourses(_ context.Context, depCode string) ([]school.Course, error) {
	res := make([]school.Course, 0)
	err := repo.read(func(st *state) error {
		for _, c := range st.courses {
			if depCode == "" || c.DepCode == depCode {
				res = append(res, c)
			}
		}
		return nil
	})
	sort.Slice(res, func(i, j int) bool { return res[i].Code < res[j].Code })
	return res, err
}

func (repo *schoolRepository) QueryAcademicYears(_ context.Context) ([]school.AcademicYear, error) {
	res := make([]school.AcademicYear, 0)
	err := repo.read(func(st *state) error {
		for _, y := range st.years {
			res = append(res, y)
		}
		return nil
	})
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, err
}

func (repo *schoolRepository) AssignmentExists(_ context.Context, as school.Assignment) (exists bool, err error) {
	err = repo.read(func(st *state) error {
		exists = findAssignment(st, as)
		return nil
	})
	return exists, err
}

func findAssignment(st *state, as school.Assignment) bool {
	for _, other := range st.assignments {
		if other.UnitCode == as.UnitCode && other.LecNo == as.LecNo &&
			other.YearID == as.YearID && other.CourseCode == as.CourseCode {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) CreateSchool(_ context.Context, s school.School) (school.School, error) {
	return s, repo.write(func(st *state) error {
		if _, ok := st.schools[s.Code]; ok {
			return school.ErrAlreadyExists
		}
		st.schools[s.Code] = s
		return nil
	})
}

func (repo *schoolRepository) CreateDepartment(_ context.Context, d school.Department) (school.Department, error) {
	return d, repo.write(func(st *state) error {
		if _, ok := st.departments[d.Code]; ok {
			return school.ErrAlreadyExists
		}
		st.departments[d.Code] = d
		return nil
	})
}

func (repo *schoolRepository) CreateCourse(_ context.Context, c school.Course) (school.Course, error) {
	return c, repo.write(func(st *state) error {
		if _, ok := st.courses[c.Code]; ok {
			return school.ErrAlreadyExists
		}
		st.courses[c.Code] = c
		return nil
	})
}

func (repo *schoolRepository) CreateStudent(_ context.Context, s school.Student) (school.Student, error) {
	return s, repo.write(func(st *state) error {
		if _, ok := st.students[s.RegNo]; ok {
			return school.ErrAlreadyExists
		}
		st.students[s.RegNo] = s
		return nil
	})
}

func (repo *schoolRepository) CreateLecturer(_ context.Context, l school.Lecturer) (school.Lecturer, error) {
	return l, repo.write(func(st *state) error {
		if _, ok := st.lecturers[l.LecNo]; ok {
			return school.ErrAlreadyExists
		}
		st.lecturers[l.LecNo] = l
		return nil
	})
}

func (repo *schoolRepository) CreateUnit(_ context.Context, u school.Unit) (school.Unit, error) {
	return u, repo.write(func(st *state) error {
		if _, ok := st.units[u.Code]; ok {
			return school.ErrAlreadyExists
		}
		st.units[u.Code] = u
		return nil
	})
}

func (repo *schoolRepository) CreateAcademicYear(_ context.Context, y school.AcademicYear) (school.AcademicYear, error) {
	err := repo.write(func(st *state) error {
		for _, other := range st.years {
			if other.Name == y.Name {
				return school.ErrAlreadyExists
			}
		}
		y.ID = st.nextID("academic_year")
		st.years[y.ID] = y
		return nil
	})
	return y, err
}

func (repo *schoolRepository) CreateAssignment(_ context.Context, as school.Assignment) (school.Assignment, error) {
	err := repo.write(func(st *state) error {
		if findAssignment(st, as) {
			return school.ErrAssignmentExists
		}
		as.ID = st.nextID("lecturer_unit")
		st.assignments[as.ID] = as
		return nil
	})
	return as, err
}
