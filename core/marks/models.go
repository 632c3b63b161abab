package marks

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/mmust/marktrack/core"
)

// mark bounds
const (
	MaxCat  = 30
	MaxExam = 70
)

type (
	// Key identifies a student's enrollment in a unit for an academic year.
	Key struct {
		UnitCode string
		RegNo    string
		YearID   int
	}

	NominalRoll struct {
		ID       int       `json:"id" db:"id"`
		UnitCode string    `json:"unit_code" db:"unit_code"`
		RegNo    string    `json:"reg_no" db:"reg_no"`
		YearID   int       `json:"year_id" db:"year_id"`
		Date     time.Time `json:"date" db:"date"`
	}

	Result struct {
		ID       int      `json:"id" db:"id"`
		UnitCode string   `json:"unit_code" db:"unit_code"`
		RegNo    string   `json:"reg_no" db:"reg_no"`
		YearID   int      `json:"year_id" db:"year_id"`
		Cat      null.Int `json:"cat" db:"cat"`
		Exam     null.Int `json:"exam" db:"exam"`
	}

	// NewResult is a single result entered directly (outside of bulk ingestion).
	NewResult struct {
		UnitCode     string   `json:"unit_code" validate:"required"`
		RegNo        string   `json:"reg_no" validate:"required"`
		AcademicYear string   `json:"academic_year" validate:"required"`
		Cat          null.Int `json:"cat"`
		Exam         null.Int `json:"exam"`
	}

	// QueryFilter narrows scoped listings. Zero values do not filter.
	QueryFilter struct {
		AcademicYear string `query:"academic_year"`
		UnitCode     string `query:"unit_code"`
		RegNo        string `query:"reg_no"`
	}

	// RepoFilter is what repositories receive once the scope has been applied.
	RepoFilter struct {
		UnitCodes []string // nil: no restriction, empty: nothing
		UnitCode  string
		RegNo     string
		YearID    int
	}
)

func (nr NominalRoll) Key() Key {
	return Key{UnitCode: nr.UnitCode, RegNo: nr.RegNo, YearID: nr.YearID}
}
func (r Result) Key() Key { return Key{UnitCode: r.UnitCode, RegNo: r.RegNo, YearID: r.YearID} }

// Total is the sum of the recorded marks; a missing mark counts as zero.
func (r Result) Total() int {
	return r.Cat.Int + r.Exam.Int
}

// ValidateCat checks the CAT mark bounds.
func ValidateCat(v int) error {
	if v < 0 || v > MaxCat {
		return fmt.Errorf("should be between 0-%d", MaxCat)
	}
	return nil
}

// ValidateExam checks the exam mark bounds.
func ValidateExam(v int) error {
	if v < 0 || v > MaxExam {
		return fmt.Errorf("should be between 0-%d", MaxExam)
	}
	return nil
}

// ValidateMarks checks both marks; a null mark is valid.
func ValidateMarks(cat, exam null.Int) error {
	var flds []core.FieldError
	if cat.Valid {
		if err := ValidateCat(cat.Int); err != nil {
			flds = append(flds, core.FieldError{Field: "cat", Error: err.Error()})
		}
	}
	if exam.Valid {
		if err := ValidateExam(exam.Int); err != nil {
			flds = append(flds, core.FieldError{Field: "exam", Error: err.Error()})
		}
	}
	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func (nr *NewResult) Validate(validate *validator.Validate) error {
	nr.UnitCode = core.CleanString(nr.UnitCode)
	nr.RegNo = core.CleanString(nr.RegNo)
	nr.AcademicYear = core.CleanString(nr.AcademicYear)
	if err := validate.Struct(nr); err != nil {
		return err
	}
	return ValidateMarks(nr.Cat, nr.Exam)
}

func (f *QueryFilter) Clean() {
	f.AcademicYear = core.CleanString(f.AcademicYear)
	f.UnitCode = core.CleanString(f.UnitCode)
	f.RegNo = core.CleanString(f.RegNo)
}
