package sqlxrepos

import (
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmust/marktrack/core"
)

func Test_where_build(t *testing.T) {
	const base = "SELECT reg_no FROM complaint"

	tests := []struct {
		name     string
		where    func(w *where)
		suffix   string
		wantNone bool
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:    "no filter",
			where:   func(w *where) {},
			suffix:  "ORDER BY reg_no",
			wantSQL: "SELECT reg_no FROM complaint ORDER BY reg_no",
		},
		{
			name: "nil slices do not restrict",
			where: func(w *where) {
				w.inStrings("reg_no", nil)
				w.inInts("year_id", nil)
			},
			wantSQL: "SELECT reg_no FROM complaint ",
		},
		{
			name: "empty slice matches nothing",
			where: func(w *where) {
				w.inStrings("reg_no", []string{"S001"})
				w.inInts("year_id", []int{})
			},
			wantNone: true,
			wantSQL:  "SELECT reg_no FROM complaint WHERE reg_no IN ($1) ",
			wantArgs: []interface{}{"S001"},
		},
		{
			name: "slices are expanded",
			where: func(w *where) {
				w.inStrings("unit_code", []string{"CS201", "CS305"})
				w.inInts("year_id", []int{1, 2, 3})
				w.add("created_at < ?", "2024-01-01")
			},
			suffix:   "ORDER BY created_at ASC",
			wantSQL:  "SELECT reg_no FROM complaint WHERE unit_code IN ($1, $2) AND year_id IN ($3, $4, $5) AND created_at < $6 ORDER BY created_at ASC",
			wantArgs: []interface{}{"CS201", "CS305", 1, 2, 3, "2024-01-01"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := new(where)
			tt.where(w)
			assert.Equal(t, tt.wantNone, w.none)

			query, args, err := w.build(base, tt.suffix)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sqlx.Rebind(sqlx.DOLLAR, query))
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func Test_orderBy(t *testing.T) {
	assert.Equal(t, "ORDER BY id ASC", orderBy(nil, "id ASC"))
	assert.Equal(t, "ORDER BY cat DESC, reg_no ASC, id ASC", orderBy([]core.DBOrdering{
		{Field: "cat", Ascending: false},
		{Field: "reg_no", Ascending: true},
	}, "id ASC"))
}

func Test_uniqueConstraint(t *testing.T) {
	constraint, ok := uniqueConstraint(errors.Wrap(&pq.Error{Code: "23505", Constraint: "unique_result"}, "inserting result"))
	assert.True(t, ok)
	assert.Equal(t, "unique_result", constraint)

	_, ok = uniqueConstraint(&pq.Error{Code: "23503", Constraint: "result_reg_no_fkey"})
	assert.False(t, ok, "foreign key violation")

	_, ok = uniqueConstraint(errors.New("connection reset"))
	assert.False(t, ok)
}

func Test_trapNoRowsErr(t *testing.T) {
	notFound := errors.New("not found")
	assert.Equal(t, notFound, trapNoRowsErr(errors.Wrap(sql.ErrNoRows, "selecting"), notFound))
	assert.Nil(t, trapNoRowsErr(nil, notFound))

	other := errors.New("boom")
	assert.Equal(t, other, trapNoRowsErr(other, notFound))
}
