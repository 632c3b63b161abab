package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mmust/marktrack/core/complaint"
)

const (
	complaintColumns = `complaint_code, unit_code, reg_no, missing_mark, year_id, exam_date, description, created_at`
	responseColumns  = `response_id, response_code, responder, response, reg_no, unit_code, year_id, cat, exam, created_at`
)

type complaintRepository struct {
	db   *sqlx.DB
	exec sqlx.ExtContext // db, or the ongoing transaction
	inTx bool
}

var _ complaint.Repository = (*complaintRepository)(nil) // interface compliance check

func NewComplaintRepository(db *sqlx.DB) *complaintRepository {
	return &complaintRepository{db: db, exec: db}
}

func (repo *complaintRepository) WithTx(ctx context.Context, fn func(tx complaint.Repository) error) (err error) {
	if repo.inTx {
		return fn(repo)
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = errors.Wrap(tx.Commit(), "committing transaction")
	}()

	return fn(&complaintRepository{db: repo.db, exec: tx, inTx: true})
}

func (repo *complaintRepository) exists(ctx context.Context, query string, args ...interface{}) (exists bool, err error) {
	err = sqlx.GetContext(ctx, repo.exec, &exists, query, args...)
	return exists, err
}

func (repo *complaintRepository) ComplaintCodeExists(ctx context.Context, code string) (bool, error) {
	exists, err := repo.exists(ctx, `SELECT EXISTS (SELECT 1 FROM complaint WHERE complaint_code = $1)`, code)
	return exists, errors.Wrap(err, "checking complaint code")
}

func (repo *complaintRepository) ComplaintExists(ctx context.Context, regNo, unitCode string) (bool, error) {
	exists, err := repo.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM complaint WHERE reg_no = $1 AND unit_code = $2)`, regNo, unitCode)
	return exists, errors.Wrap(err, "checking complaint")
}

func (repo *complaintRepository) CreateComplaint(ctx context.Context, c complaint.Complaint) (complaint.Complaint, error) {
	_, err := sqlx.NamedExecContext(ctx, repo.exec, `
		INSERT INTO complaint (`+complaintColumns+`)
		VALUES (:complaint_code, :unit_code, :reg_no, :missing_mark, :year_id, :exam_date, :description, :created_at)`, c)
	if constraint, ok := uniqueConstraint(err); ok {
		switch constraint {
		case "complaint_pkey":
			return c, complaint.ErrCodeTaken
		case "unique_complaint_per_unit_student":
			return c, complaint.ErrComplaintExists
		}
	}
	return c, errors.Wrap(err, "inserting complaint")
}

func (repo *complaintRepository) GetComplaint(ctx context.Context, code string) (c complaint.Complaint, err error) {
	err = sqlx.GetContext(ctx, repo.exec, &c, `SELECT `+complaintColumns+` FROM complaint WHERE complaint_code = $1`, code)
	return c, trapNoRowsErr(err, complaint.ErrNotFound)
}

func (repo *complaintRepository) QueryComplaints(ctx context.Context, filter complaint.ComplaintFilter) ([]complaint.Complaint, error) {
	res := make([]complaint.Complaint, 0)
	w := new(where)
	w.inStrings("reg_no", filter.RegNos)
	w.inStrings("unit_code", filter.UnitCodes)
	w.inInts("year_id", filter.YearIDs)
	if !filter.CreatedBefore.IsZero() {
		w.add("created_at < ?", filter.CreatedBefore)
	}
	if w.none {
		return res, nil
	}
	err := selectWhere(ctx, repo.exec, &res,
		`SELECT `+complaintColumns+` FROM complaint`, w, "ORDER BY created_at ASC, complaint_code ASC")
	return res, errors.Wrap(err, "selecting complaints")
}

func (repo *complaintRepository) DeleteComplaint(ctx context.Context, code string) error {
	res, err := repo.exec.ExecContext(ctx, `DELETE FROM complaint WHERE complaint_code = $1`, code)
	if err != nil {
		return errors.Wrap(err, "deleting complaint")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "deleting complaint")
	} else if n == 0 {
		return complaint.ErrNotFound
	}
	return nil
}

func (repo *complaintRepository) ResponseCodeExists(ctx context.Context, code string) (bool, error) {
	exists, err := repo.exists(ctx, `SELECT EXISTS (SELECT 1 FROM response WHERE response_code = $1)`, code)
	return exists, errors.Wrap(err, "checking response code")
}

func (repo *complaintRepository) ResponseExists(ctx context.Context, regNo, unitCode string) (bool, error) {
	exists, err := repo.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM response WHERE reg_no = $1 AND unit_code = $2)`, regNo, unitCode)
	return exists, errors.Wrap(err, "checking response")
}

func (repo *complaintRepository) CreateResponse(ctx context.Context, r complaint.Response) (complaint.Response, error) {
	query, args, err := sqlx.Named(`
		INSERT INTO response (response_code, responder, response, reg_no, unit_code, year_id, cat, exam, created_at)
		VALUES (:response_code, :responder, :response, :reg_no, :unit_code, :year_id, :cat, :exam, :created_at)
		RETURNING response_id`, r)
	if err != nil {
		return r, errors.Wrap(err, "building query")
	}
	err = sqlx.GetContext(ctx, repo.exec, &r.ID, repo.exec.Rebind(query), args...)
	if constraint, ok := uniqueConstraint(err); ok {
		switch constraint {
		case "response_code_key":
			return r, complaint.ErrCodeTaken
		case "unique_response_per_student_unit":
			return r, complaint.ErrResponseExists
		}
	}
	return r, errors.Wrap(err, "inserting response")
}

func (repo *complaintRepository) GetResponse(ctx context.Context, id int) (r complaint.Response, err error) {
	err = sqlx.GetContext(ctx, repo.exec, &r, `SELECT `+responseColumns+` FROM response WHERE response_id = $1`, id)
	return r, trapNoRowsErr(err, complaint.ErrResponseNotFound)
}

func (repo *complaintRepository) QueryResponses(ctx context.Context, filter complaint.ResponseFilter) ([]complaint.Response, error) {
	res := make([]complaint.Response, 0)
	w := new(where)
	w.inStrings("responder", filter.LecNos)
	w.inStrings("reg_no", filter.RegNos)
	if w.none {
		return res, nil
	}
	err := selectWhere(ctx, repo.exec, &res,
		`SELECT `+responseColumns+` FROM response`, w, "ORDER BY created_at DESC, response_id DESC")
	return res, errors.Wrap(err, "selecting responses")
}

func (repo *complaintRepository) DeleteResponse(ctx context.Context, id int) error {
	res, err := repo.exec.ExecContext(ctx, `DELETE FROM response WHERE response_id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting response")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "deleting response")
	} else if n == 0 {
		return complaint.ErrResponseNotFound
	}
	return nil
}

func (repo *complaintRepository) ArchiveResponse(ctx context.Context, regNo, unitCode string, at time.Time) error {
	_, err := repo.exec.ExecContext(ctx, `
		WITH archived AS (
			DELETE FROM response WHERE reg_no = $1 AND unit_code = $2
			RETURNING `+responseColumns+`
		)
		INSERT INTO response_history (`+responseColumns+`, archived_at)
		SELECT `+responseColumns+`, $3 FROM archived`,
		regNo, unitCode, at)
	return errors.Wrap(err, "archiving response")
}
