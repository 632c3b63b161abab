package inmemdb

import (
	"context"
	"sort"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/marks"
)

type marksRepository struct {
	session
}

var _ marks.Repository = (*marksRepository)(nil) // interface compliance check

func NewMarksRepository(db *DB) *marksRepository {
	return &marksRepository{session{db: db}}
}

func (repo *marksRepository) NominalRollExists(_ context.Context, key marks.Key) (exists bool, err error) {
	err = repo.read(func(st *state) error {
		exists = findNominalRoll(st, key)
		return nil
	})
	return exists, err
}

func findNominalRoll(st *state, key marks.Key) bool {
	for _, nr := range st.nominalRolls {
		if nr.Key() == key {
			return true
		}
	}
	return false
}

func (repo *marksRepository) CreateNominalRoll(_ context.Context, nr marks.NominalRoll) (marks.NominalRoll, error) {
	err := repo.write(func(st *state) error {
		if findNominalRoll(st, nr.Key()) {
			return marks.ErrNominalRollExists
		}
		nr.ID = st.nextID("nominal_roll")
		st.nominalRolls[nr.ID] = nr
		return nil
	})
	return nr, err
}

func (repo *marksRepository) QueryNominalRolls(_ context.Context, filter marks.RepoFilter, ordering []core.DBOrdering) ([]marks.NominalRoll, error) {
	res := make([]marks.NominalRoll, 0)
	err := repo.read(func(st *state) error {
		for _, nr := range st.nominalRolls {
			if matchMarks(filter, nr.UnitCode, nr.RegNo, nr.YearID) {
				res = append(res, nr)
			}
		}
		return nil
	})
	sort.SliceStable(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	sort.SliceStable(res, func(i, j int) bool {
		return less(ordering, func(col string) int {
			a, b := res[i], res[j]
			switch col {
			case "reg_no":
				return cmpStr(a.RegNo, b.RegNo)
			case "unit_code":
				return cmpStr(a.UnitCode, b.UnitCode)
			case "year_id":
				return cmpInt(a.YearID, b.YearID)
			case "date":
				return cmpInt(int(a.Date.Unix()), int(b.Date.Unix()))
			}
			return 0
		})
	})
	return res, err
}

func (repo *marksRepository) ResultExists(_ context.Context, key marks.Key) (exists bool, err error) {
	err = repo.read(func(st *state) error {
		exists = findResult(st, key)
		return nil
	})
	return exists, err
}

func findResult(st *state, key marks.Key) bool {
	for _, r := range st.results {
		if r.Key() == key {
			return true
		}
	}
	return false
}

func (repo *marksRepository) CreateResult(_ context.Context, r marks.Result) (marks.Result, error) {
	err := repo.write(func(st *state) error {
		if findResult(st, r.Key()) {
			return marks.ErrResultExists
		}
		r.ID = st.nextID("result")
		st.results[r.ID] = r
		return nil
	})
	return r, err
}

func (repo *marksRepository) QueryResults(_ context.Context, filter marks.RepoFilter, ordering []core.DBOrdering) ([]marks.Result, error) {
	res := make([]marks.Result, 0)
	err := repo.read(func(st *state) error {
		for _, r := range st.results {
			if matchMarks(filter, r.UnitCode, r.RegNo, r.YearID) {
				res = append(res, r)
			}
		}
		return nil
	})
	sort.SliceStable(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	sort.SliceStable(res, func(i, j int) bool {
		return less(ordering, func(col string) int {
			a, b := res[i], res[j]
			switch col {
			case "reg_no":
				return cmpStr(a.RegNo, b.RegNo)
			case "unit_code":
				return cmpStr(a.UnitCode, b.UnitCode)
			case "year_id":
				return cmpInt(a.YearID, b.YearID)
			case "cat":
				return cmpInt(a.Cat.Int, b.Cat.Int)
			case "exam":
				return cmpInt(a.Exam.Int, b.Exam.Int)
			}
			return 0
		})
	})
	return res, err
}

func matchMarks(filter marks.RepoFilter, unitCode, regNo string, yearID int) bool {
	if !containsStr(filter.UnitCodes, unitCode) {
		return false
	}
	if filter.UnitCode != "" && filter.UnitCode != unitCode {
		return false
	}
	if filter.RegNo != "" && filter.RegNo != regNo {
		return false
	}
	return filter.YearID == 0 || filter.YearID == yearID
}

// less applies the orderings in turn; cmp compares the two rows on a column.
func less(ordering []core.DBOrdering, cmp func(col string) int) bool {
	for _, ord := range ordering {
		c := cmp(ord.Field)
		if c == 0 {
			continue
		}
		if ord.Ascending {
			return c < 0
		}
		return c > 0
	}
	return false
}

func cmpStr(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
