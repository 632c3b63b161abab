package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/complaint"
	"github.com/mmust/marktrack/tests"
)

// seedComplaints files:
//
//	C1: S001 CS201 2023/2024 (L001)
//	C2: S004 MA101 2023/2024 (L003)
//	C3: S003 CS305 2023/2024 (L001), the oldest
//	C4: S002 CS201 without academic year
func seedComplaints(t *testing.T, app *testApp, now time.Time) (c1, c2, c3, c4 complaint.Complaint) {
	c1 = testutil.CreateComplaint(t, app.complaintRepo, "C0000001", "S001", "CS201", app.Year2324.ID, now.Add(-time.Hour))
	c2 = testutil.CreateComplaint(t, app.complaintRepo, "C0000002", "S004", "MA101", app.Year2324.ID, now.Add(-2*time.Hour))
	c3 = testutil.CreateComplaint(t, app.complaintRepo, "C0000003", "S003", "CS305", app.Year2324.ID, now.Add(-48*time.Hour))
	c4 = testutil.CreateComplaint(t, app.complaintRepo, "C0000004", "S002", "CS201", 0, now.Add(-30*time.Minute))
	return
}

func Test_complaintApi_query(t *testing.T) {
	app := setup(t)
	c1, c2, c3, _ := seedComplaints(t, app, core.NowFunc())

	tests := []httpTest{
		{name: "Auth required", path: "/v1/complaints", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Lecturer required", path: "/v1/complaints", token: app.studentToken(t, app.Student1),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "in scope, oldest first", path: "/v1/complaints", token: app.lecturerToken(t, app.Member),
			wantCode: http.StatusOK, wantData: marchallList(t, c3, c1),
		},
		{
			name: "other department", path: "/v1/complaints", token: app.lecturerToken(t, app.Other),
			wantCode: http.StatusOK, wantData: marchallList(t, c2),
		},
		{
			name: "no assignments", path: "/v1/complaints", token: app.lecturerToken(t, app.Unassigned),
			wantCode: http.StatusOK, wantData: marchallList(t),
		},
		{
			name: "retrieve", path: "/v1/complaints/" + c1.Code, token: app.lecturerToken(t, app.Member),
			wantCode: http.StatusOK, wantData: marchallObj(t, c1),
		},
		{
			name: "retrieve out of scope", path: "/v1/complaints/" + c2.Code, token: app.lecturerToken(t, app.Member),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: complaint.ErrNotFound.Error()}),
		},
		{
			name: "retrieve unknown", path: "/v1/complaints/ZZZZZZZZ", token: app.lecturerToken(t, app.Member),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: complaint.ErrNotFound.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}
}

func Test_complaintApi_respond(t *testing.T) {
	app := setup(t)
	c1, c2, _, c4 := seedComplaints(t, app, core.NowFunc())
	token := app.lecturerToken(t, app.Member)
	path := func(code string) string { return "/v1/complaints/" + code + "/response" }

	loaded := []byte(`{"response": "Result Loaded", "cat": "21", "exam": "48"}`)
	tests := []httpTest{
		{name: "Auth required", method: http.MethodPost, path: path(c1.Code), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "invalid outcome", method: http.MethodPost, path: path(c1.Code), token: token, body: []byte(`{"response": "Lost"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"response": "response must be one of 'No Result', 'No CAT Mark', 'No Exam Mark' or 'Result Loaded'",
			}),
		},
		{
			name: "marks inconsistent with outcome", method: http.MethodPost, path: path(c1.Code), token: token,
			body:     []byte(`{"response": "No Result", "cat": "12"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"cat": "CAT mark must be '-' when there is no result"}),
		},
		{
			name: "mark out of range", method: http.MethodPost, path: path(c1.Code), token: token,
			body:     []byte(`{"response": "Result Loaded", "cat": "31", "exam": "-"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"cat": "CAT mark should be '-' or a number between 0-30"}),
		},
		{
			name: "out of scope", method: http.MethodPost, path: path(c2.Code), token: token, body: loaded,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: complaint.ErrOutOfScope.Error()}),
		},
		{
			name: "no academic year", method: http.MethodPost, path: path(c4.Code), token: token, body: loaded,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: complaint.ErrNoAcademicYear.Error()}),
		},
		{
			name: "unknown complaint", method: http.MethodPost, path: path("ZZZZZZZZ"), token: token, body: loaded,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: complaint.ErrNotFound.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	t.Run("success", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path(c1.Code), token, loaded)
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp complaint.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "L001", resp.LecNo)
		assert.Equal(t, complaint.OutcomeResultLoaded, resp.Outcome)
		assert.Equal(t, "21", resp.Cat)
		assert.Equal(t, "48", resp.Exam)
		assert.True(t, complaint.IsValidCode(resp.Code))

		// the complaint is gone, the student sees the answer
		_, err := app.complaintRepo.GetComplaint(context.Background(), c1.Code)
		assert.Equal(t, complaint.ErrNotFound, err)
		stored, err := app.complaintRepo.GetResponse(context.Background(), resp.ID)
		require.NoError(t, err)
		app.run(t, httpTest{
			path: "/v1/students/me/responses", token: app.studentToken(t, app.Student1),
			wantCode: http.StatusOK, wantData: marchallList(t, stored),
		})

		// answered once
		app.run(t, httpTest{
			method: http.MethodPost, path: path(c1.Code), token: token, body: loaded,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: complaint.ErrNotFound.Error()}),
		})
	})
}

func Test_complaintApi_responses(t *testing.T) {
	app := setup(t)
	ctx := context.Background()
	now := core.NowFunc()

	r1, err := app.complaintRepo.CreateResponse(ctx, complaint.Response{
		Code: "R0000001", LecNo: "L001", Outcome: complaint.OutcomeNoResult, RegNo: "S001", UnitCode: "CS201",
		YearID: app.Year2324.ID, Cat: complaint.NoMark, Exam: complaint.NoMark, CreatedAt: now.Add(-time.Hour),
	})
	require.NoError(t, err)
	r2, err := app.complaintRepo.CreateResponse(ctx, complaint.Response{
		Code: "R0000002", LecNo: "L003", Outcome: complaint.OutcomeResultLoaded, RegNo: "S004", UnitCode: "MA101",
		YearID: app.Year2324.ID, Cat: "10", Exam: "40", CreatedAt: now,
	})
	require.NoError(t, err)

	tests := []httpTest{
		{
			name: "COD required", path: "/v1/responses", token: app.lecturerToken(t, app.Member),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "given by the department", path: "/v1/responses", token: app.lecturerToken(t, app.COD),
			wantCode: http.StatusOK, wantData: marchallList(t, r1),
		},
		{
			name: "given to the department students", path: "/v1/responses/students", token: app.lecturerToken(t, app.Member),
			wantCode: http.StatusOK, wantData: marchallList(t, r1),
		},
		{
			name: "given to other students", path: "/v1/responses/students", token: app.lecturerToken(t, app.Other),
			wantCode: http.StatusOK, wantData: marchallList(t, r2),
		},
		{
			name: "delete other department", method: http.MethodDelete, path: fmt.Sprintf("/v1/responses/%d", r2.ID),
			token: app.lecturerToken(t, app.Member), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: complaint.ErrOutOfScope.Error()}),
		},
		{
			name: "delete invalid id", method: http.MethodDelete, path: "/v1/responses/abc",
			token: app.lecturerToken(t, app.Member), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "delete unknown", method: http.MethodDelete, path: "/v1/responses/999",
			token: app.lecturerToken(t, app.Member), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: complaint.ErrResponseNotFound.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, fmt.Sprintf("/v1/responses/%d", r1.ID), app.lecturerToken(t, app.Member))
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		_, err := app.complaintRepo.GetResponse(ctx, r1.ID)
		assert.Equal(t, complaint.ErrResponseNotFound, err)
	})
}

func Test_complaintApi_overdue(t *testing.T) {
	app := setup(t)
	_, _, c3, _ := seedComplaints(t, app, core.NowFunc())
	cod := app.lecturerToken(t, app.COD)

	t.Run("COD required", func(t *testing.T) {
		app.run(t, httpTest{
			path: "/v1/overdue/units", token: app.lecturerToken(t, app.Member),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		})
	})

	for _, path := range []string{"/v1/overdue/units", "/v1/overdue/students"} {
		t.Run(path, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, path, cod)
			app.server.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var overdue []complaint.Overdue
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overdue))
			require.Len(t, overdue, 1)
			assert.Equal(t, c3.Code, overdue[0].Code)
			assert.Equal(t, "S003", overdue[0].Student.RegNo)
			require.Len(t, overdue[0].Lecturers, 1)
			assert.Equal(t, "L001", overdue[0].Lecturers[0].LecNo)
		})
	}

	t.Run("notify", func(t *testing.T) {
		app.run(t, httpTest{
			method: http.MethodPost, path: "/v1/overdue/notify", token: cod,
			wantCode: http.StatusOK, wantData: []byte(`{"reminders": 1}`),
		})
		require.Len(t, app.mailBox.Messages, 1)
		assert.Equal(t, "L001@uni.test", app.mailBox.Messages[0].To[0].Address)
	})
}
