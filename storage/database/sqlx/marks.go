package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/marks"
)

type marksRepository struct {
	db *sqlx.DB
}

var _ marks.Repository = (*marksRepository)(nil) // interface compliance check

func NewMarksRepository(db *sqlx.DB) *marksRepository {
	return &marksRepository{db: db}
}

func (repo *marksRepository) exists(ctx context.Context, table string, key marks.Key) (exists bool, err error) {
	err = repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE unit_code = $1 AND reg_no = $2 AND year_id = $3)`,
		key.UnitCode, key.RegNo, key.YearID)
	return exists, errors.Wrapf(err, "checking %s", table)
}

func (repo *marksRepository) NominalRollExists(ctx context.Context, key marks.Key) (bool, error) {
	return repo.exists(ctx, "nominal_roll", key)
}

func (repo *marksRepository) CreateNominalRoll(ctx context.Context, nr marks.NominalRoll) (marks.NominalRoll, error) {
	err := repo.db.GetContext(ctx, &nr.ID,
		`INSERT INTO nominal_roll (unit_code, reg_no, year_id, date) VALUES ($1, $2, $3, $4) RETURNING id`,
		nr.UnitCode, nr.RegNo, nr.YearID, nr.Date)
	if constraint, ok := uniqueConstraint(err); ok && constraint == "unique_nominal_roll" {
		return nr, marks.ErrNominalRollExists
	}
	return nr, errors.Wrap(err, "inserting nominal roll")
}

func marksWhere(filter marks.RepoFilter) *where {
	w := new(where)
	w.inStrings("unit_code", filter.UnitCodes)
	if filter.UnitCode != "" {
		w.add("unit_code = ?", filter.UnitCode)
	}
	if filter.RegNo != "" {
		w.add("reg_no = ?", filter.RegNo)
	}
	if filter.YearID != 0 {
		w.add("year_id = ?", filter.YearID)
	}
	return w
}

// QueryNominalRolls expects `ordering` on whitelisted columns (see marks.OrderingFields).
func (repo *marksRepository) QueryNominalRolls(ctx context.Context, filter marks.RepoFilter, ordering []core.DBOrdering) ([]marks.NominalRoll, error) {
	res := make([]marks.NominalRoll, 0)
	w := marksWhere(filter)
	if w.none {
		return res, nil
	}
	err := selectWhere(ctx, repo.db, &res,
		`SELECT id, unit_code, reg_no, year_id, date FROM nominal_roll`, w, orderBy(ordering, "id ASC"))
	return res, errors.Wrap(err, "selecting nominal rolls")
}

func (repo *marksRepository) ResultExists(ctx context.Context, key marks.Key) (bool, error) {
	return repo.exists(ctx, "result", key)
}

func (repo *marksRepository) CreateResult(ctx context.Context, r marks.Result) (marks.Result, error) {
	err := repo.db.GetContext(ctx, &r.ID,
		`INSERT INTO result (unit_code, reg_no, year_id, cat, exam) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		r.UnitCode, r.RegNo, r.YearID, r.Cat, r.Exam)
	if constraint, ok := uniqueConstraint(err); ok && constraint == "unique_result" {
		return r, marks.ErrResultExists
	}
	return r, errors.Wrap(err, "inserting result")
}

// QueryResults expects `ordering` on whitelisted columns (see marks.OrderingFields).
func (repo *marksRepository) QueryResults(ctx context.Context, filter marks.RepoFilter, ordering []core.DBOrdering) ([]marks.Result, error) {
	res := make([]marks.Result, 0)
	w := marksWhere(filter)
	if w.none {
		return res, nil
	}
	err := selectWhere(ctx, repo.db, &res,
		`SELECT id, unit_code, reg_no, year_id, cat, exam FROM result`, w, orderBy(ordering, "id ASC"))
	return res, errors.Wrap(err, "selecting results")
}
