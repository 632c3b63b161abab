package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/complaint"
	"github.com/mmust/marktrack/core/school"
	inmemdb "github.com/mmust/marktrack/storage/database/inmem"
)

// World is a small seeded school:
//
//	SCI / CS: course BSC-CS (students S001, S002), course BSC-IT (student S003)
//	SCI / MA: course BSC-MA (student S004)
//	lecturers: L001 (CS, Member), L002 (CS, COD), L003 (MA, Member), L004 (CS, Member, no assignments)
//	units: CS201, CS305 (CS), MA101 (MA)
//	years: 2022/2023, 2023/2024
//	assignments: L001 CS201 2023/2024 BSC-CS, L001 CS305 2023/2024 BSC-IT, L003 MA101 2023/2024 BSC-MA
type World struct {
	DB      *inmemdb.DB
	Schools school.Repository

	Year2223 school.AcademicYear
	Year2324 school.AcademicYear

	Member     school.Lecturer
	COD        school.Lecturer
	Other      school.Lecturer
	Unassigned school.Lecturer

	Student1 school.Student
	Student2 school.Student
	Student3 school.Student
	Student4 school.Student
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seeding failed: %v", err)
	}
}

func NewWorld(t *testing.T) *World {
	t.Helper()
	ctx := context.Background()
	db := inmemdb.NewDB()
	repo := inmemdb.NewSchoolRepository(db)
	w := &World{DB: db, Schools: repo}

	_, err := repo.CreateSchool(ctx, school.School{Code: "SCI", Name: "School of Computing and Informatics"})
	must(t, err)
	_, err = repo.CreateDepartment(ctx, school.Department{Code: "CS", Name: "Computer Science", SchoolCode: "SCI"})
	must(t, err)
	_, err = repo.CreateDepartment(ctx, school.Department{Code: "MA", Name: "Mathematics", SchoolCode: "SCI"})
	must(t, err)
	for _, c := range []school.Course{
		{Code: "BSC-CS", Name: "BSc Computer Science", DepCode: "CS"},
		{Code: "BSC-IT", Name: "BSc Information Technology", DepCode: "CS"},
		{Code: "BSC-MA", Name: "BSc Mathematics", DepCode: "MA"},
	} {
		_, err = repo.CreateCourse(ctx, c)
		must(t, err)
	}
	for _, u := range []school.Unit{
		{Code: "CS201", Name: "Data Structures", DepCode: "CS"},
		{Code: "CS305", Name: "Operating Systems", DepCode: "CS"},
		{Code: "MA101", Name: "Calculus I", DepCode: "MA"},
	} {
		_, err = repo.CreateUnit(ctx, u)
		must(t, err)
	}

	w.Year2223, err = repo.CreateAcademicYear(ctx, school.AcademicYear{Name: "2022/2023"})
	must(t, err)
	w.Year2324, err = repo.CreateAcademicYear(ctx, school.AcademicYear{Name: "2023/2024"})
	must(t, err)

	w.Member = CreateLecturer(t, repo, "L001", "CS", school.RoleMember)
	w.COD = CreateLecturer(t, repo, "L002", "CS", school.RoleCOD)
	w.Other = CreateLecturer(t, repo, "L003", "MA", school.RoleMember)
	w.Unassigned = CreateLecturer(t, repo, "L004", "CS", school.RoleMember)

	w.Student1 = CreateStudent(t, repo, "S001", "BSC-CS")
	w.Student2 = CreateStudent(t, repo, "S002", "BSC-CS")
	w.Student3 = CreateStudent(t, repo, "S003", "BSC-IT")
	w.Student4 = CreateStudent(t, repo, "S004", "BSC-MA")

	for _, as := range []school.Assignment{
		{UnitCode: "CS201", LecNo: "L001", YearID: w.Year2324.ID, CourseCode: "BSC-CS"},
		{UnitCode: "CS305", LecNo: "L001", YearID: w.Year2324.ID, CourseCode: "BSC-IT"},
		{UnitCode: "MA101", LecNo: "L003", YearID: w.Year2324.ID, CourseCode: "BSC-MA"},
	} {
		_, err = repo.CreateAssignment(ctx, as)
		must(t, err)
	}
	return w
}

func CreateLecturer(t *testing.T, repo school.Repository, lecNo, depCode, role string) school.Lecturer {
	t.Helper()
	l, err := repo.CreateLecturer(context.Background(), school.Lecturer{
		LecNo:     lecNo,
		Username:  "lec" + lecNo,
		Email:     lecNo + "@uni.test",
		FirstName: "Lecturer",
		LastName:  lecNo,
		Role:      role,
		DepCode:   depCode,
	})
	must(t, err)
	return l
}

func CreateStudent(t *testing.T, repo school.Repository, regNo, courseCode string) school.Student {
	t.Helper()
	s, err := repo.CreateStudent(context.Background(), school.Student{
		RegNo:      regNo,
		Username:   "std" + regNo,
		FirstName:  "Student",
		LastName:   regNo,
		Email:      regNo + "@students.uni.test",
		CourseCode: courseCode,
	})
	must(t, err)
	return s
}

// CreateComplaint stores a complaint directly, bypassing the service checks.
func CreateComplaint(t *testing.T, repo complaint.Repository, code, regNo, unitCode string, yearID int, createdAt time.Time) complaint.Complaint {
	t.Helper()
	c := complaint.Complaint{
		Code:        code,
		UnitCode:    unitCode,
		RegNo:       regNo,
		MissingMark: complaint.MissingCat,
		ExamDate:    createdAt.AddDate(0, 0, -7),
		Description: "my CAT mark is missing",
		CreatedAt:   createdAt,
	}
	if yearID > 0 {
		c.YearID.SetValid(yearID)
	}
	c, err := repo.CreateComplaint(context.Background(), c)
	must(t, err)
	return c
}

// NewValidator returns a validator with every custom tag registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	complaint.InitValidators(validate, translator)
	return validate, translator
}

// NopLogger discards everything.
type NopLogger struct{}

var _ core.Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

// MailBox is an EmailService keeping the messages in memory.
type MailBox struct {
	mu       sync.Mutex
	Messages []core.EmailMessage
}

func (mb *MailBox) SendMessages(messages ...*core.EmailMessage) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for _, msg := range messages {
		if err := msg.Render(); err == nil {
			mb.Messages = append(mb.Messages, *msg)
		}
	}
}

// Metrics counts events in memory.
type Metrics struct {
	mu          sync.Mutex
	Rows        map[string]int
	Transitions map[string]int
}

func NewMetrics() *Metrics {
	return &Metrics{Rows: make(map[string]int), Transitions: make(map[string]int)}
}

func (m *Metrics) IncRow(kind, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rows[kind+":"+status]++
}

func (m *Metrics) IncTransition(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transitions[event]++
}
