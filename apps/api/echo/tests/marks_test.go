package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/mmust/marktrack/core/ingest"
	"github.com/mmust/marktrack/core/marks"
)

func Test_marksApi_upload(t *testing.T) {
	app := setup(t)
	token := app.lecturerToken(t, app.Member)

	roll := strings.Join([]string{
		"unit_code,reg_no,academic_year",
		"CS201,S001,2023/2024",
		"MA101,S004,2023/2024",
	}, "\n")

	t.Run("Auth required", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/nominal-rolls/upload", "", "roll.csv", []byte(roll))
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("file required", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/nominal-rolls/upload", token, "", nil)
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"file": "this field is required"}),
		}, rec)
	})

	t.Run("invalid format", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/nominal-rolls/upload", token, "roll.txt", []byte(roll))
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: ingest.ErrInvalidFormat.Error()}),
		}, rec)
	})

	t.Run("missing columns", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/results/upload", token, "results.csv", []byte(roll))
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "cat")
	})

	t.Run("too large", func(t *testing.T) {
		big := make([]byte, app.conf.Upload.MaxSize+1)
		req, rec := newUploadRequest(t, "/v1/nominal-rolls/upload", token, "roll.csv", big)
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"file": "file is too large"}),
		}, rec)
	})

	var report ingest.Report
	t.Run("per-row outcomes", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/nominal-rolls/upload", token, "roll.csv", []byte(roll))
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, ingest.KindNominalRoll, report.Kind)
		assert.Equal(t, 1, report.Inserted)
		assert.Equal(t, 1, report.Errors)
		require.Len(t, report.Outcomes, 2)
		assert.Equal(t, ingest.StatusSuccess, report.Outcomes[0].Status)
		assert.Equal(t, ingest.ReasonOutOfScope, report.Outcomes[1].Reason)

		exists, err := app.marksRepo.NominalRollExists(context.Background(), marks.Key{UnitCode: "CS201", RegNo: "S001", YearID: app.Year2324.ID})
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("report", func(t *testing.T) {
		app.run(t, httpTest{path: "/v1/uploads/" + report.ID, token: token, wantCode: http.StatusOK, wantData: marchallObj(t, report)})
		app.run(t, httpTest{
			path: "/v1/uploads/" + report.ID, token: app.lecturerToken(t, app.Other),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: ingest.ErrReportNotFound.Error()}),
		})
	})
}

func Test_marksApi_results(t *testing.T) {
	app := setup(t)
	ctx := context.Background()
	token := app.lecturerToken(t, app.Member)

	var seeded []marks.Result
	for _, r := range []marks.Result{
		{UnitCode: "CS201", RegNo: "S002", YearID: app.Year2324.ID, Cat: null.IntFrom(10), Exam: null.IntFrom(40)},
		{UnitCode: "CS305", RegNo: "S003", YearID: app.Year2324.ID, Cat: null.IntFrom(25)},
		{UnitCode: "MA101", RegNo: "S004", YearID: app.Year2324.ID, Cat: null.IntFrom(25)},
	} {
		res, err := app.marksRepo.CreateResult(ctx, r)
		require.NoError(t, err)
		seeded = append(seeded, res)
	}
	s002, s003 := seeded[0], seeded[1]

	tests := []httpTest{
		{name: "Auth required", path: "/v1/results", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "own units", path: "/v1/results", token: token, wantCode: http.StatusOK, wantData: marchallList(t, s002, s003)},
		{name: "by unit", path: "/v1/results?unit_code=CS305", token: token, wantCode: http.StatusOK, wantData: marchallList(t, s003)},
		{name: "ordering", path: "/v1/results?ordering=-cat", token: token, wantCode: http.StatusOK, wantData: marchallList(t, s003, s002)},
		{name: "unknown year", path: "/v1/results?academic_year=1999/2000", token: token, wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "no nominal rolls", path: "/v1/nominal-rolls", token: token, wantCode: http.StatusOK, wantData: marchallList(t)},
		{
			name: "create out of range", method: http.MethodPost, path: "/v1/results", token: token,
			body:     []byte(`{"unit_code": "CS201", "reg_no": "S001", "academic_year": "2023/2024", "cat": 31}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"cat": "should be between 0-30"}),
		},
		{
			name: "create out of scope", method: http.MethodPost, path: "/v1/results", token: token,
			body:     []byte(`{"unit_code": "MA101", "reg_no": "S004", "academic_year": "2023/2024", "cat": 12}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: marks.ErrOutOfScope.Error()}),
		},
		{
			name: "create duplicate", method: http.MethodPost, path: "/v1/results", token: token,
			body:     []byte(`{"unit_code": "CS201", "reg_no": "S002", "academic_year": "2023/2024", "cat": 12}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: marks.ErrResultExists.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/results", token,
			[]byte(`{"unit_code": "CS201", "reg_no": "S001", "academic_year": "2023/2024", "cat": 20, "exam": null}`))
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var res marks.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, null.IntFrom(20), res.Cat)
		assert.False(t, res.Exam.Valid)
	})
}

func Test_dashboard(t *testing.T) {
	app := setup(t)

	t.Run("Lecturer required", func(t *testing.T) {
		app.run(t, httpTest{
			path: "/v1/dashboard", token: app.studentToken(t, app.Student1),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		})
	})

	req, rec := newAuthRequest(http.MethodGet, "/v1/dashboard", app.lecturerToken(t, app.Member))
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary struct {
		Role           string `json:"role"`
		TotalStudents  int    `json:"total_students"`
		TotalLecturers int    `json:"total_lecturers"`
		TotalUnits     int    `json:"total_units"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "Member", summary.Role)
	assert.Equal(t, 3, summary.TotalStudents)
	assert.Equal(t, 3, summary.TotalLecturers)
	assert.Equal(t, 2, summary.TotalUnits)
}

func Test_server_misc(t *testing.T) {
	app := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to MarkTrack API!", rec.Body.String())

	req, rec = newRequest(http.MethodGet, "/metrics")
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	t.Run("invalid token", func(t *testing.T) {
		app.run(t, httpTest{
			path: "/v1/complaints", token: "not.a.jwt",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		})
	})

	t.Run("unknown lecturer", func(t *testing.T) {
		app.World.Member.LecNo = "L999"
		app.run(t, httpTest{
			path: "/v1/complaints", token: app.lecturerToken(t, app.World.Member),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		})
	})
}
