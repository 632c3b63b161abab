// Package dashboard gathers the counters shown to lecturers on their home page.
package dashboard

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mmust/marktrack/core/complaint"
	"github.com/mmust/marktrack/core/school"
	"github.com/mmust/marktrack/core/scope"
)

type (
	Summary struct {
		Role              string              `json:"role"`
		Department        school.Department   `json:"department"`
		TotalStudents     int                 `json:"total_students"`
		TotalLecturers    int                 `json:"total_lecturers"`
		TotalUnits        int                 `json:"total_units"`
		RelatedComplaints int                 `json:"related_complaints"`
		Assignments       []school.Assignment `json:"assignments"`
		Courses           []school.Course     `json:"courses"`
	}

	SchoolService interface {
		GetDepartment(ctx context.Context, code string) (school.Department, error)
		DepartmentStudents(ctx context.Context, depCode string) ([]school.Student, error)
		DepartmentLecturers(ctx context.Context, depCode string) ([]school.Lecturer, error)
		DepartmentCourses(ctx context.Context, depCode string) ([]school.Course, error)
	}

	ComplaintService interface {
		QueryForScope(ctx context.Context, sc scope.Scope) ([]complaint.Complaint, error)
	}

	Service struct {
		schools    SchoolService
		complaints ComplaintService
	}
)

func NewService(schools SchoolService, complaints ComplaintService) *Service {
	return &Service{schools: schools, complaints: complaints}
}

// ForLecturer builds the dashboard of a lecturer. Every role sees the same counters.
func (svc *Service) ForLecturer(ctx context.Context, lecturer school.Lecturer, sc scope.Scope) (Summary, error) {
	dep, err := svc.schools.GetDepartment(ctx, lecturer.DepCode)
	if err != nil {
		return Summary{}, errors.Wrap(err, "getting department")
	}
	students, err := svc.schools.DepartmentStudents(ctx, dep.Code)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying students")
	}
	lecturers, err := svc.schools.DepartmentLecturers(ctx, dep.Code)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying lecturers")
	}
	courses, err := svc.schools.DepartmentCourses(ctx, dep.Code)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying courses")
	}
	complaints, err := svc.complaints.QueryForScope(ctx, sc)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying complaints")
	}

	assignments := sc.Assignments
	if assignments == nil {
		assignments = []school.Assignment{}
	}
	return Summary{
		Role:              lecturer.Role,
		Department:        dep,
		TotalStudents:     len(students),
		TotalLecturers:    len(lecturers),
		TotalUnits:        len(assignments),
		RelatedComplaints: len(complaints),
		Assignments:       assignments,
		Courses:           courses,
	}, nil
}
