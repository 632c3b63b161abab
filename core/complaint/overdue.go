package complaint

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	texttmpl "text/template"
	"time"

	"github.com/pkg/errors"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/school"
	"github.com/mmust/marktrack/core/scope"
)

// Overdue is a complaint left unanswered past the deadline, with who should answer it.
type Overdue struct {
	Complaint
	Student   school.Student    `json:"student"`
	Lecturers []school.Lecturer `json:"lecturers"`
}

var reminderTmpl = texttmpl.Must(texttmpl.New("overdue_reminder").Parse(
	`Dear {{.Lecturer.FullName}},

The following complaints have been waiting for a response for more than {{.After}}:
{{range .Complaints}}
  - {{.Code}}: unit {{.UnitCode}}, student {{.RegNo}} ({{.Student.FullName}}), missing {{.MissingMark}}, filed {{.CreatedAt.Format "2006-01-02 15:04"}}
{{- end}}

Please respond to them as soon as possible.
`))

// OverdueForDepartmentUnits lists overdue complaints on the units taught by the department's lecturers.
func (svc *Service) OverdueForDepartmentUnits(ctx context.Context, depCode string) ([]Overdue, error) {
	lecturers, err := svc.schools.QueryLecturers(ctx, school.LecturerFilter{DepCode: depCode})
	if err != nil {
		return nil, errors.Wrap(err, "querying lecturers")
	}
	lecNos := make([]string, 0, len(lecturers))
	for _, l := range lecturers {
		lecNos = append(lecNos, l.LecNo)
	}
	assignments, err := svc.schools.QueryAssignments(ctx, school.AssignmentFilter{LecNos: lecNos})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	taught := scope.New("", assignments)

	complaints, err := svc.repo.QueryComplaints(ctx, ComplaintFilter{
		UnitCodes:     taught.UnitCodes(),
		YearIDs:       taught.YearIDs(),
		CreatedBefore: core.NowFunc().Add(-svc.overdueAfter()),
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying complaints")
	}

	res := make([]Complaint, 0, len(complaints))
	for _, c := range complaints {
		if c.YearID.Valid && taught.Allows(c.UnitCode, c.YearID.Int) {
			res = append(res, c)
		}
	}
	return svc.withLecturers(ctx, res)
}

// OverdueForDepartmentStudents lists overdue complaints of students whose course belongs to the department.
func (svc *Service) OverdueForDepartmentStudents(ctx context.Context, depCode string) ([]Overdue, error) {
	regNos, err := svc.departmentRegNos(ctx, depCode)
	if err != nil {
		return nil, err
	}
	complaints, err := svc.repo.QueryComplaints(ctx, ComplaintFilter{
		RegNos:        regNos,
		CreatedBefore: core.NowFunc().Add(-svc.overdueAfter()),
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying complaints")
	}
	return svc.withLecturers(ctx, complaints)
}

// withLecturers attaches the lecturers assigned to each complaint's unit, year and student course.
func (svc *Service) withLecturers(ctx context.Context, complaints []Complaint) ([]Overdue, error) {
	res := make([]Overdue, 0, len(complaints))
	if len(complaints) == 0 {
		return res, nil
	}

	regNos := core.NewStringSet()
	units := core.NewStringSet()
	years := make(map[int]struct{})
	for _, c := range complaints {
		regNos.Add(c.RegNo)
		units.Add(c.UnitCode)
		if c.YearID.Valid {
			years[c.YearID.Int] = struct{}{}
		}
	}

	students, err := svc.schools.QueryStudents(ctx, school.StudentFilter{RegNos: regNos.Slice()})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	studentsByRegNo := make(map[string]school.Student, len(students))
	courses := core.NewStringSet()
	for _, st := range students {
		studentsByRegNo[st.RegNo] = st
		courses.Add(st.CourseCode)
	}

	yearIDs := make([]int, 0, len(years))
	for id := range years {
		yearIDs = append(yearIDs, id)
	}
	assignments, err := svc.schools.QueryAssignments(ctx, school.AssignmentFilter{
		UnitCodes:   units.Slice(),
		YearIDs:     yearIDs,
		CourseCodes: courses.Slice(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}

	lecNos := core.NewStringSet()
	for _, as := range assignments {
		lecNos.Add(as.LecNo)
	}
	lecturers, err := svc.schools.QueryLecturers(ctx, school.LecturerFilter{LecNos: lecNos.Slice()})
	if err != nil {
		return nil, errors.Wrap(err, "querying lecturers")
	}
	lecturersByNo := make(map[string]school.Lecturer, len(lecturers))
	for _, l := range lecturers {
		lecturersByNo[l.LecNo] = l
	}

	for _, c := range complaints {
		od := Overdue{Complaint: c, Student: studentsByRegNo[c.RegNo], Lecturers: []school.Lecturer{}}
		seen := core.NewStringSet()
		for _, as := range assignments {
			if !c.YearID.Valid || as.UnitCode != c.UnitCode || as.YearID != c.YearID.Int ||
				as.CourseCode != od.Student.CourseCode || seen.Has(as.LecNo) {
				continue
			}
			if l, ok := lecturersByNo[as.LecNo]; ok {
				od.Lecturers = append(od.Lecturers, l)
				seen.Add(as.LecNo)
			}
		}
		res = append(res, od)
	}
	return res, nil
}

// NotifyOverdue e-mails every responsible lecturer the list of their overdue complaints
// concerning the department. It returns the number of reminders sent.
func (svc *Service) NotifyOverdue(ctx context.Context, depCode string) (int, error) {
	byUnits, err := svc.OverdueForDepartmentUnits(ctx, depCode)
	if err != nil {
		return 0, errors.Wrap(err, "querying overdue complaints by unit")
	}
	byStudents, err := svc.OverdueForDepartmentStudents(ctx, depCode)
	if err != nil {
		return 0, errors.Wrap(err, "querying overdue complaints by student")
	}

	type reminder struct {
		lecturer   school.Lecturer
		complaints []Overdue
	}
	reminders := make(map[string]*reminder)
	seen := core.NewStringSet()
	for _, od := range append(byUnits, byStudents...) {
		if seen.Has(od.Code) {
			continue
		}
		seen.Add(od.Code)
		for _, l := range od.Lecturers {
			rem, ok := reminders[l.LecNo]
			if !ok {
				rem = &reminder{lecturer: l}
				reminders[l.LecNo] = rem
			}
			rem.complaints = append(rem.complaints, od)
		}
	}

	lecNos := make([]string, 0, len(reminders))
	for lecNo := range reminders {
		lecNos = append(lecNos, lecNo)
	}
	sort.Strings(lecNos)

	messages := make([]*core.EmailMessage, 0, len(reminders))
	for _, lecNo := range lecNos {
		rem := reminders[lecNo]
		if rem.lecturer.Email == "" {
			svc.logger.Warn(fmt.Sprintf("lecturer %s has no email address: skipping overdue reminder", lecNo))
			continue
		}
		messages = append(messages, &core.EmailMessage{
			To:       []mail.Address{rem.lecturer.MailAddress()},
			Subject:  fmt.Sprintf("%d overdue complaint(s) awaiting your response", len(rem.complaints)),
			Template: reminderTmpl,
			TemplateData: struct {
				Lecturer   school.Lecturer
				After      time.Duration
				Complaints []Overdue
			}{rem.lecturer, svc.overdueAfter(), rem.complaints},
		})
	}

	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
	svc.logger.Info(fmt.Sprintf("sent %d overdue reminder(s) for department %s", len(messages), depCode))
	return len(messages), nil
}
