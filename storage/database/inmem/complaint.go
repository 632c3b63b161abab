package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/mmust/marktrack/core/complaint"
)

type complaintRepository struct {
	session
}

var _ complaint.Repository = (*complaintRepository)(nil) // interface compliance check

func NewComplaintRepository(db *DB) *complaintRepository {
	return &complaintRepository{session{db: db}}
}

func (repo *complaintRepository) WithTx(ctx context.Context, fn func(tx complaint.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return repo.withTx(func(tx session) error {
		return fn(&complaintRepository{tx})
	})
}

func (repo *complaintRepository) ComplaintCodeExists(_ context.Context, code string) (exists bool, err error) {
	err = repo.read(func(st *state) error {
		_, exists = st.complaints[code]
		return nil
	})
	return exists, err
}

func findComplaint(st *state, regNo, unitCode string) bool {
	for _, c := range st.complaints {
		if c.RegNo == regNo && c.UnitCode == unitCode {
			return true
		}
	}
	return false
}

func (repo *complaintRepository) ComplaintExists(_ context.Context, regNo, unitCode string) (exists bool, err error) {
	err = repo.read(func(st *state) error {
		exists = findComplaint(st, regNo, unitCode)
		return nil
	})
	return exists, err
}

func (repo *complaintRepository) CreateComplaint(_ context.Context, c complaint.Complaint) (complaint.Complaint, error) {
	return c, repo.write(func(st *state) error {
		if _, ok := st.complaints[c.Code]; ok {
			return complaint.ErrCodeTaken
		}
		if findComplaint(st, c.RegNo, c.UnitCode) {
			return complaint.ErrComplaintExists
		}
		st.complaints[c.Code] = c
		return nil
	})
}

func (repo *complaintRepository) GetComplaint(_ context.Context, code string) (c complaint.Complaint, err error) {
	err = repo.read(func(st *state) error {
		var ok bool
		if c, ok = st.complaints[code]; !ok {
			return complaint.ErrNotFound
		}
		return nil
	})
	return c, err
}

func (repo *complaintRepository) QueryComplaints(_ context.Context, filter complaint.ComplaintFilter) ([]complaint.Complaint, error) {
	res := make([]complaint.Complaint, 0)
	err := repo.read(func(st *state) error {
		for _, c := range st.complaints {
			if !containsStr(filter.RegNos, c.RegNo) || !containsStr(filter.UnitCodes, c.UnitCode) {
				continue
			}
			if filter.YearIDs != nil && (!c.YearID.Valid || !containsInt(filter.YearIDs, c.YearID.Int)) {
				continue
			}
			if !filter.CreatedBefore.IsZero() && !c.CreatedAt.Before(filter.CreatedBefore) {
				continue
			}
			res = append(res, c)
		}
		return nil
	})
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].Code < res[j].Code
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, err
}

func (repo *complaintRepository) DeleteComplaint(_ context.Context, code string) error {
	return repo.write(func(st *state) error {
		if _, ok := st.complaints[code]; !ok {
			return complaint.ErrNotFound
		}
		delete(st.complaints, code)
		return nil
	})
}

func (repo *complaintRepository) ResponseCodeExists(_ context.Context, code string) (exists bool, err error) {
	err = repo.read(func(st *state) error {
		for _, r := range st.responses {
			if r.Code == code {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func findResponse(st *state, regNo, unitCode string) (complaint.Response, bool) {
	for _, r := range st.responses {
		if r.RegNo == regNo && r.UnitCode == unitCode {
			return r, true
		}
	}
	return complaint.Response{}, false
}

func (repo *complaintRepository) ResponseExists(_ context.Context, regNo, unitCode string) (exists bool, err error) {
	err = repo.read(func(st *state) error {
		_, exists = findResponse(st, regNo, unitCode)
		return nil
	})
	return exists, err
}

func (repo *complaintRepository) CreateResponse(_ context.Context, r complaint.Response) (complaint.Response, error) {
	err := repo.write(func(st *state) error {
		for _, other := range st.responses {
			if other.Code == r.Code {
				return complaint.ErrCodeTaken
			}
		}
		if _, ok := findResponse(st, r.RegNo, r.UnitCode); ok {
			return complaint.ErrResponseExists
		}
		r.ID = st.nextID("response")
		st.responses[r.ID] = r
		return nil
	})
	return r, err
}

func (repo *complaintRepository) GetResponse(_ context.Context, id int) (r complaint.Response, err error) {
	err = repo.read(func(st *state) error {
		var ok bool
		if r, ok = st.responses[id]; !ok {
			return complaint.ErrResponseNotFound
		}
		return nil
	})
	return r, err
}

func (repo *complaintRepository) QueryResponses(_ context.Context, filter complaint.ResponseFilter) ([]complaint.Response, error) {
	res := make([]complaint.Response, 0)
	err := repo.read(func(st *state) error {
		for _, r := range st.responses {
			if containsStr(filter.LecNos, r.LecNo) && containsStr(filter.RegNos, r.RegNo) {
				res = append(res, r)
			}
		}
		return nil
	})
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, err
}

func (repo *complaintRepository) DeleteResponse(_ context.Context, id int) error {
	return repo.write(func(st *state) error {
		if _, ok := st.responses[id]; !ok {
			return complaint.ErrResponseNotFound
		}
		delete(st.responses, id)
		return nil
	})
}

func (repo *complaintRepository) ArchiveResponse(_ context.Context, regNo, unitCode string, at time.Time) error {
	return repo.write(func(st *state) error {
		r, ok := findResponse(st, regNo, unitCode)
		if !ok {
			return nil
		}
		st.history = append(st.history, archivedResponse{Response: r, ArchivedAt: at})
		delete(st.responses, r.ID)
		return nil
	})
}

// ArchivedResponses returns the superseded responses of a student, oldest first.
func (repo *complaintRepository) ArchivedResponses(regNo string) []complaint.Response {
	var res []complaint.Response
	_ = repo.read(func(st *state) error {
		for _, ar := range st.history {
			if ar.RegNo == regNo {
				res = append(res, ar.Response)
			}
		}
		return nil
	})
	return res
}
