package inmemdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/mmust/marktrack/core/complaint"
)

func newComplaint(code, regNo, unitCode string) complaint.Complaint {
	return complaint.Complaint{
		Code:        code,
		UnitCode:    unitCode,
		RegNo:       regNo,
		MissingMark: complaint.MissingAll,
		YearID:      null.IntFrom(1),
		CreatedAt:   time.Now(),
	}
}

func TestComplaintRepository_WithTx(t *testing.T) {
	ctx := context.Background()
	repo := NewComplaintRepository(NewDB())

	errBoom := errors.New("boom")
	err := repo.WithTx(ctx, func(tx complaint.Repository) error {
		if _, err := tx.CreateComplaint(ctx, newComplaint("AAA111", "S001", "CS201")); err != nil {
			return err
		}
		exists, err := tx.ComplaintCodeExists(ctx, "AAA111")
		require.NoError(t, err)
		assert.True(t, exists, "writes are visible inside the transaction")
		return errBoom
	})
	assert.Equal(t, errBoom, err)

	exists, err := repo.ComplaintCodeExists(ctx, "AAA111")
	require.NoError(t, err)
	assert.False(t, exists, "rolled back")

	err = repo.WithTx(ctx, func(tx complaint.Repository) error {
		_, err := tx.CreateComplaint(ctx, newComplaint("AAA111", "S001", "CS201"))
		return err
	})
	require.NoError(t, err)
	exists, err = repo.ComplaintCodeExists(ctx, "AAA111")
	require.NoError(t, err)
	assert.True(t, exists, "committed")
}

func TestComplaintRepository_Constraints(t *testing.T) {
	ctx := context.Background()
	repo := NewComplaintRepository(NewDB())

	_, err := repo.CreateComplaint(ctx, newComplaint("AAA111", "S001", "CS201"))
	require.NoError(t, err)
	_, err = repo.CreateComplaint(ctx, newComplaint("AAA111", "S002", "CS201"))
	assert.Equal(t, complaint.ErrCodeTaken, err)
	_, err = repo.CreateComplaint(ctx, newComplaint("BBB222", "S001", "CS201"))
	assert.Equal(t, complaint.ErrComplaintExists, err)

	r := complaint.Response{Code: "CCC333", RegNo: "S001", UnitCode: "CS201", Outcome: complaint.OutcomeNoResult}
	_, err = repo.CreateResponse(ctx, r)
	require.NoError(t, err)
	_, err = repo.CreateResponse(ctx, r)
	assert.Equal(t, complaint.ErrCodeTaken, err)
	r.Code = "DDD444"
	_, err = repo.CreateResponse(ctx, r)
	assert.Equal(t, complaint.ErrResponseExists, err)

	assert.Equal(t, complaint.ErrNotFound, repo.DeleteComplaint(ctx, "ZZZ999"))
	assert.Equal(t, complaint.ErrResponseNotFound, repo.DeleteResponse(ctx, 42))
}

func TestComplaintRepository_ConcurrentPosts(t *testing.T) {
	ctx := context.Background()
	repo := NewComplaintRepository(NewDB())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	codes := []string{"AAA001", "AAA002", "AAA003", "AAA004", "AAA005", "AAA006", "AAA007", "AAA008"}
	for _, code := range codes {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			err := repo.WithTx(ctx, func(tx complaint.Repository) error {
				_, err := tx.CreateComplaint(ctx, newComplaint(code, "S001", "CS201"))
				return err
			})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(code)
	}
	wg.Wait()

	assert.Equal(t, 1, created, "at most one open complaint per student and unit")
	complaints, err := repo.QueryComplaints(ctx, complaint.ComplaintFilter{})
	require.NoError(t, err)
	assert.Len(t, complaints, 1)
}

func TestFilters_NilVersusEmpty(t *testing.T) {
	ctx := context.Background()
	repo := NewComplaintRepository(NewDB())
	_, err := repo.CreateComplaint(ctx, newComplaint("AAA111", "S001", "CS201"))
	require.NoError(t, err)

	all, err := repo.QueryComplaints(ctx, complaint.ComplaintFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	none, err := repo.QueryComplaints(ctx, complaint.ComplaintFilter{RegNos: []string{}})
	require.NoError(t, err)
	assert.Empty(t, none)
}
