package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrReportNotFound = errors.New("upload report not found")

type (
	Kind   string
	Status string
	Reason string
)

const (
	KindNominalRoll Kind = "nominal_roll"
	KindResult      Kind = "result"

	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"

	ReasonUnitNotFound    Reason = "unit_not_found"
	ReasonStudentNotFound Reason = "student_not_found"
	ReasonYearNotFound    Reason = "academic_year_not_found"
	ReasonOutOfScope      Reason = "out_of_scope"
	ReasonDuplicate       Reason = "duplicate"
	ReasonInvalidCat      Reason = "invalid_cat"
	ReasonInvalidExam     Reason = "invalid_exam"
	ReasonInternal        Reason = "internal"
)

var (
	nominalRollColumns = []string{"unit_code", "reg_no", "academic_year"}
	resultColumns      = []string{"unit_code", "reg_no", "academic_year", "cat", "exam"}
)

// Columns lists the header columns an upload of this kind must carry.
func (k Kind) Columns() []string {
	if k == KindResult {
		return resultColumns
	}
	return nominalRollColumns
}

func (k Kind) successMessage() string {
	if k == KindResult {
		return "Results loaded successfully."
	}
	return "Nominal roll loaded successfully."
}

type (
	// Outcome is what happened to one data row.
	Outcome struct {
		Row     int    `json:"row"`
		Status  Status `json:"status"`
		Reason  Reason `json:"reason,omitempty"`
		Message string `json:"message,omitempty"`
	}

	// Report summarizes an upload. It is the only trace of rows that were not inserted.
	Report struct {
		ID         string    `json:"id"`
		Kind       Kind      `json:"kind"`
		Filename   string    `json:"filename"`
		LecNo      string    `json:"lec_no"`
		CreatedAt  time.Time `json:"created_at"`
		Inserted   int       `json:"inserted"`
		Duplicates int       `json:"duplicates"`
		Errors     int       `json:"errors"`
		Message    string    `json:"message,omitempty"`
		Outcomes   []Outcome `json:"outcomes"`
	}

	ReportStore interface {
		Save(ctx context.Context, report Report) error
		// Get returns ErrReportNotFound for unknown or expired ids.
		Get(ctx context.Context, id string) (Report, error)
	}
)

func newReport(kind Kind, lecNo, filename string, now time.Time) Report {
	return Report{
		ID:        uuid.New().String(),
		Kind:      kind,
		Filename:  filename,
		LecNo:     lecNo,
		CreatedAt: now,
		Outcomes:  []Outcome{},
	}
}

func (r *Report) add(out Outcome) {
	switch out.Status {
	case StatusSuccess:
		r.Inserted++
	case StatusWarning:
		r.Duplicates++
	case StatusError:
		r.Errors++
	}
	r.Outcomes = append(r.Outcomes, out)
}

func (r *Report) finish() {
	if r.Errors == 0 {
		r.Message = r.Kind.successMessage()
	}
}

// Succeeded reports whether no row failed. Duplicate warnings are not failures.
func (r Report) Succeeded() bool {
	return r.Errors == 0
}

// Messages returns the messages of the rows with the given status.
func (r Report) Messages(status Status) []string {
	var msgs []string
	for _, out := range r.Outcomes {
		if out.Status == status {
			msgs = append(msgs, out.Message)
		}
	}
	return msgs
}
