package school

import (
	"net/mail"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mmust/marktrack/core"
)

// Lecturer roles
const (
	RoleMember      = "Member"
	RoleExamOfficer = "Exam Officer"
	RoleCOD         = "COD"
)

var Roles = []string{RoleMember, RoleExamOfficer, RoleCOD}

type (
	School struct {
		Code string `json:"school_code" db:"school_code"`
		Name string `json:"school_name" db:"school_name"`
	}

	Department struct {
		Code       string `json:"dep_code" db:"dep_code"`
		Name       string `json:"dep_name" db:"dep_name"`
		SchoolCode string `json:"school_code" db:"school_code"`
	}

	Course struct {
		Code    string `json:"course_code" db:"course_code"`
		Name    string `json:"course_name" db:"course_name"`
		DepCode string `json:"dep_code" db:"dep_code"`
	}

	Student struct {
		RegNo      string `json:"reg_no" db:"reg_no"`
		Username   string `json:"username" db:"username"`
		FirstName  string `json:"first_name" db:"first_name"`
		LastName   string `json:"last_name" db:"last_name"`
		Email      string `json:"email_address" db:"email_address"`
		Phone      string `json:"phone_number" db:"phone_number"`
		CourseCode string `json:"course_code" db:"course_code"`
	}

	Lecturer struct {
		LecNo     string `json:"lec_no" db:"lec_no"`
		Username  string `json:"username" db:"username"`
		Email     string `json:"email_address" db:"email_address"`
		FirstName string `json:"first_name" db:"first_name"`
		LastName  string `json:"last_name" db:"last_name"`
		Phone     string `json:"phone_number" db:"phone_number"`
		Role      string `json:"role" db:"role"`
		DepCode   string `json:"dep_code" db:"dep_code"`
	}

	Unit struct {
		Code    string `json:"unit_code" db:"unit_code"`
		Name    string `json:"unit_name" db:"unit_name"`
		DepCode string `json:"dep_code" db:"dep_code"`
	}

	AcademicYear struct {
		ID   int    `json:"year_id" db:"year_id"`
		Name string `json:"academic_year" db:"academic_year"`
	}

	// Assignment is a lecturer teaching a unit to a course during an academic year.
	Assignment struct {
		ID         int    `json:"id" db:"id"`
		UnitCode   string `json:"unit_code" db:"unit_code"`
		LecNo      string `json:"lec_no" db:"lec_no"`
		YearID     int    `json:"year_id" db:"year_id"`
		CourseCode string `json:"course_code" db:"course_code"`
	}

	NewAssignment struct {
		UnitCode     string `json:"unit_code" validate:"required,alphanum_"`
		LecNo        string `json:"lec_no" validate:"required"`
		AcademicYear string `json:"academic_year" validate:"required"`
		CourseCode   string `json:"course_code" validate:"required"`
	}

	// Filters: a nil slice does not restrict, an empty non-nil slice matches nothing.

	StudentFilter struct {
		RegNos      []string
		CourseCodes []string
		DepCode     string
	}

	LecturerFilter struct {
		LecNos  []string
		DepCode string
	}

	AssignmentFilter struct {
		LecNos      []string
		UnitCodes   []string
		YearIDs     []int
		CourseCodes []string
	}
)

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

func (l Lecturer) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

func (l Lecturer) IsCOD() bool {
	return l.Role == RoleCOD
}

func (l Lecturer) MailAddress() mail.Address {
	return mail.Address{Name: l.FullName(), Address: l.Email}
}

func (l Lecturer) Identity() core.Identity {
	return core.Identity{ID: l.LecNo, Username: l.Username, Email: l.Email}
}

func (s Student) Identity() core.Identity {
	return core.Identity{ID: s.RegNo, Username: s.Username, Email: s.Email}
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.UnitCode = core.CleanString(na.UnitCode)
	na.LecNo = core.CleanString(na.LecNo)
	na.AcademicYear = core.CleanString(na.AcademicYear)
	na.CourseCode = core.CleanString(na.CourseCode)
	return validate.Struct(na)
}
