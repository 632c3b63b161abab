package scope

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmust/marktrack/core/school"
)

type fakeSource struct {
	assignments []school.Assignment
	students    []school.Student
	err         error
}

func (f fakeSource) QueryAssignments(_ context.Context, filter school.AssignmentFilter) ([]school.Assignment, error) {
	if f.err != nil {
		return nil, f.err
	}
	var res []school.Assignment
	for _, as := range f.assignments {
		for _, lecNo := range filter.LecNos {
			if as.LecNo == lecNo {
				res = append(res, as)
			}
		}
	}
	return res, nil
}

func (f fakeSource) QueryStudents(_ context.Context, filter school.StudentFilter) ([]school.Student, error) {
	var res []school.Student
	for _, st := range f.students {
		for _, code := range filter.CourseCodes {
			if st.CourseCode == code {
				res = append(res, st)
			}
		}
	}
	return res, nil
}

func TestResolver_Resolve(t *testing.T) {
	src := fakeSource{
		assignments: []school.Assignment{
			{ID: 1, UnitCode: "CS201", LecNo: "L1", YearID: 1, CourseCode: "BSC-CS"},
			{ID: 2, UnitCode: "CS305", LecNo: "L1", YearID: 2, CourseCode: "BSC-IT"},
			{ID: 3, UnitCode: "MA101", LecNo: "L2", YearID: 1, CourseCode: "BSC-MA"},
		},
		students: []school.Student{
			{RegNo: "S1", CourseCode: "BSC-CS"},
			{RegNo: "S2", CourseCode: "BSC-IT"},
			{RegNo: "S3", CourseCode: "BSC-MA"},
		},
	}
	sc, err := NewResolver(src).Resolve(context.Background(), "L1")
	require.NoError(t, err)

	assert.False(t, sc.IsEmpty())
	assert.Equal(t, []string{"CS201", "CS305"}, sc.UnitCodes())
	assert.Equal(t, []int{1, 2}, sc.YearIDs())
	assert.Equal(t, []string{"BSC-CS", "BSC-IT"}, sc.CourseCodes())
	assert.Equal(t, []string{"S1", "S2"}, sc.RegNos())
	assert.Equal(t, []Pair{{"CS201", 1}, {"CS305", 2}}, sc.Pairs())

	tests := []struct {
		name   string
		unit   string
		year   int
		regNo  string
		allows bool
		covers bool
	}{
		{name: "assigned pair and student", unit: "CS201", year: 1, regNo: "S1", allows: true, covers: true},
		{name: "assigned pair, student of other assigned course", unit: "CS201", year: 1, regNo: "S2", allows: true, covers: true},
		{name: "unit assigned in another year", unit: "CS201", year: 2, regNo: "S1"},
		{name: "unit not assigned", unit: "MA101", year: 1, regNo: "S1"},
		{name: "student outside courses", unit: "CS201", year: 1, regNo: "S3", allows: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allows, sc.Allows(tt.unit, tt.year))
			assert.Equal(t, tt.covers, sc.Covers(tt.unit, tt.year, tt.regNo))
		})
	}
}

func TestResolver_Resolve_noAssignments(t *testing.T) {
	sc, err := NewResolver(fakeSource{}).Resolve(context.Background(), "L9")
	require.NoError(t, err)

	assert.True(t, sc.IsEmpty())
	assert.False(t, sc.Allows("CS201", 1))
	assert.False(t, sc.HasStudent("S1"))
	assert.Empty(t, sc.UnitCodes())
	assert.Empty(t, sc.RegNos())
}

func TestResolver_Resolve_error(t *testing.T) {
	_, err := NewResolver(fakeSource{err: errors.New("boom")}).Resolve(context.Background(), "L1")
	assert.EqualError(t, err, "querying assignments: boom")
}

func TestScope_zeroValue(t *testing.T) {
	var sc Scope
	assert.True(t, sc.IsEmpty())
	assert.False(t, sc.Covers("CS201", 1, "S1"))
}
