// Package scope computes which unit/year pairs and which students a lecturer may act upon.
package scope

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/school"
)

type (
	// Pair is a unit taught during an academic year.
	Pair struct {
		UnitCode string
		YearID   int
	}

	// Scope is derived from a lecturer's assignments. It is never persisted.
	Scope struct {
		LecNo       string
		Assignments []school.Assignment

		pairs   map[Pair]struct{}
		years   map[int]struct{}
		units   core.StringSet
		courses core.StringSet
		regNos  core.StringSet
	}

	Source interface {
		QueryAssignments(ctx context.Context, filter school.AssignmentFilter) ([]school.Assignment, error)
		QueryStudents(ctx context.Context, filter school.StudentFilter) ([]school.Student, error)
	}

	Resolver struct {
		src Source
	}
)

func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// Resolve computes the lecturer's scope from their current assignments.
// A lecturer without assignments gets an empty scope, not an error.
func (r *Resolver) Resolve(ctx context.Context, lecNo string) (Scope, error) {
	assignments, err := r.src.QueryAssignments(ctx, school.AssignmentFilter{LecNos: []string{lecNo}})
	if err != nil {
		return Scope{}, errors.Wrap(err, "querying assignments")
	}

	sc := New(lecNo, assignments)
	if len(sc.courses) == 0 {
		return sc, nil
	}

	students, err := r.src.QueryStudents(ctx, school.StudentFilter{CourseCodes: sc.courses.Slice()})
	if err != nil {
		return Scope{}, errors.Wrap(err, "querying students")
	}
	for _, st := range students {
		sc.regNos.Add(st.RegNo)
	}
	return sc, nil
}

// New builds a scope out of assignments. Student membership is left empty.
func New(lecNo string, assignments []school.Assignment) Scope {
	sc := Scope{
		LecNo:       lecNo,
		Assignments: assignments,
		pairs:       make(map[Pair]struct{}, len(assignments)),
		years:       make(map[int]struct{}),
		units:       core.NewStringSet(),
		courses:     core.NewStringSet(),
		regNos:      core.NewStringSet(),
	}
	for _, as := range assignments {
		sc.pairs[Pair{UnitCode: as.UnitCode, YearID: as.YearID}] = struct{}{}
		sc.years[as.YearID] = struct{}{}
		sc.units.Add(as.UnitCode)
		sc.courses.Add(as.CourseCode)
	}
	return sc
}

func (sc Scope) IsEmpty() bool {
	return len(sc.pairs) == 0
}

// Allows tells whether the (unit, year) pair belongs to one of the lecturer's assignments.
func (sc Scope) Allows(unitCode string, yearID int) bool {
	_, ok := sc.pairs[Pair{UnitCode: unitCode, YearID: yearID}]
	return ok
}

// HasStudent tells whether the student belongs to one of the assigned courses.
func (sc Scope) HasStudent(regNo string) bool {
	return sc.regNos.Has(regNo)
}

// Covers combines Allows and HasStudent.
func (sc Scope) Covers(unitCode string, yearID int, regNo string) bool {
	return sc.Allows(unitCode, yearID) && sc.HasStudent(regNo)
}

func (sc Scope) Pairs() []Pair {
	pairs := make([]Pair, 0, len(sc.pairs))
	for p := range sc.pairs {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].UnitCode == pairs[j].UnitCode {
			return pairs[i].YearID < pairs[j].YearID
		}
		return pairs[i].UnitCode < pairs[j].UnitCode
	})
	return pairs
}

func (sc Scope) UnitCodes() []string {
	return sortedStrings(sc.units)
}

func (sc Scope) CourseCodes() []string {
	return sortedStrings(sc.courses)
}

func (sc Scope) RegNos() []string {
	return sortedStrings(sc.regNos)
}

func (sc Scope) YearIDs() []int {
	ids := make([]int, 0, len(sc.years))
	for id := range sc.years {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func sortedStrings(set core.StringSet) []string {
	items := set.Slice()
	sort.Strings(items)
	return items
}
