package complaint

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/marks"
)

// missing marks
const (
	MissingCat  = "CAT"
	MissingExam = "EXAM"
	MissingAll  = "ALL"
)

// response outcomes
const (
	OutcomeNoResult     = "No Result"
	OutcomeNoCatMark    = "No CAT Mark"
	OutcomeNoExamMark   = "No Exam Mark"
	OutcomeResultLoaded = "Result Loaded"
)

// NoMark is recorded in place of a mark the lecturer could not find.
const NoMark = "-"

var (
	MissingMarks = []string{MissingCat, MissingExam, MissingAll}
	Outcomes     = []string{OutcomeNoResult, OutcomeNoCatMark, OutcomeNoExamMark, OutcomeResultLoaded}
)

type (
	// Complaint is an open claim by a student that a mark is missing.
	Complaint struct {
		Code        string    `json:"complaint_code" db:"complaint_code"`
		UnitCode    string    `json:"unit_code" db:"unit_code"`
		RegNo       string    `json:"reg_no" db:"reg_no"`
		MissingMark string    `json:"missing_mark" db:"missing_mark"`
		YearID      null.Int  `json:"year_id" db:"year_id"`
		ExamDate    time.Time `json:"exam_date" db:"exam_date"`
		Description string    `json:"description" db:"description"`
		CreatedAt   time.Time `json:"created_at" db:"created_at"`
	}

	// Response is the lecturer's resolution of a complaint.
	Response struct {
		ID        int       `json:"response_id" db:"response_id"`
		Code      string    `json:"response_code" db:"response_code"`
		LecNo     string    `json:"responder" db:"responder"`
		Outcome   string    `json:"response" db:"response"`
		RegNo     string    `json:"reg_no" db:"reg_no"`
		UnitCode  string    `json:"unit_code" db:"unit_code"`
		YearID    int       `json:"year_id" db:"year_id"`
		Cat       string    `json:"cat" db:"cat"`
		Exam      string    `json:"exam" db:"exam"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
	}

	NewComplaint struct {
		UnitCode     string `json:"unit_code" validate:"required"`
		AcademicYear string `json:"academic_year" validate:"required"`
		MissingMark  string `json:"missing_mark" validate:"required,missingmark"`
		ExamDate     string `json:"exam_date" validate:"required,date"`
		Description  string `json:"description" validate:"required,max=2000"`
	}

	NewResponse struct {
		Outcome string `json:"response" validate:"required,outcome"`
		Cat     string `json:"cat" validate:"max=3"`
		Exam    string `json:"exam" validate:"max=3"`
	}

	// ComplaintFilter: a nil slice does not restrict, an empty non-nil slice matches nothing.
	ComplaintFilter struct {
		RegNos        []string
		UnitCodes     []string
		YearIDs       []int
		CreatedBefore time.Time
	}

	// ResponseFilter: a nil slice does not restrict, an empty non-nil slice matches nothing.
	ResponseFilter struct {
		LecNos []string
		RegNos []string
	}
)

// IsOverdue tells whether the complaint has waited longer than `after` at `now`.
func (c Complaint) IsOverdue(now time.Time, after time.Duration) bool {
	return now.Sub(c.CreatedAt) > after
}

func (nc *NewComplaint) Validate(validate *validator.Validate) error {
	nc.UnitCode = core.CleanString(nc.UnitCode)
	nc.AcademicYear = core.CleanString(nc.AcademicYear)
	nc.MissingMark = core.CleanString(nc.MissingMark)
	nc.ExamDate = core.CleanString(nc.ExamDate)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

func (nr *NewResponse) Clean() {
	nr.Outcome = core.CleanString(nr.Outcome)
	nr.Cat = core.CleanString(nr.Cat)
	nr.Exam = core.CleanString(nr.Exam)
	if nr.Cat == "" {
		nr.Cat = NoMark
	}
	if nr.Exam == "" {
		nr.Exam = NoMark
	}
}

func (nr *NewResponse) Validate(validate *validator.Validate) error {
	nr.Clean()
	if err := validate.Struct(nr); err != nil {
		return err
	}
	return ValidateResponseMarks(nr.Outcome, nr.Cat, nr.Exam)
}

// ValidateResponseMarks enforces the marks a response may carry given its outcome.
func ValidateResponseMarks(outcome, cat, exam string) error {
	var flds []core.FieldError
	addErr := func(field, msg string) { flds = append(flds, core.FieldError{Field: field, Error: msg}) }

	switch outcome {
	case OutcomeNoResult:
		if cat != NoMark {
			addErr("cat", "CAT mark must be '-' when there is no result")
		}
		if exam != NoMark {
			addErr("exam", "exam mark must be '-' when there is no result")
		}
	case OutcomeNoCatMark:
		if cat != NoMark {
			addErr("cat", "CAT mark must be '-' when there is no CAT mark")
		}
	case OutcomeNoExamMark:
		if exam != NoMark {
			addErr("exam", "exam mark must be '-' when there is no exam mark")
		}
	case OutcomeResultLoaded:
	default:
		addErr("response", "invalid response")
	}

	if !validMark(cat, marks.ValidateCat) {
		addErr("cat", "CAT mark should be '-' or a number between 0-30")
	}
	if !validMark(exam, marks.ValidateExam) {
		addErr("exam", "exam mark should be '-' or a number between 0-70")
	}

	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func validMark(v string, check func(int) error) bool {
	if v == NoMark {
		return true
	}
	if v == "" {
		return false
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return false
		}
	}
	n, err := strconv.Atoi(v)
	return err == nil && check(n) == nil
}
