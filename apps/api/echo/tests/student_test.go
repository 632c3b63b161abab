package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/mmust/marktrack/apps/api/echo"
	"github.com/mmust/marktrack/core/complaint"
)

func Test_studentApi_identify(t *testing.T) {
	app := setup(t)

	required := "this field is required"
	tests := []httpTest{
		{
			name: "no reg_no", method: http.MethodPost, path: "/v1/students/identify", body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"reg_no": required}),
		},
		{
			name: "unknown reg_no", method: http.MethodPost, path: "/v1/students/identify", body: []byte(`{"reg_no": "S999"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"reg_no": "unknown registration number"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	t.Run("known reg_no", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/students/identify", []byte(`{"reg_no": " S001 "}`))
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp TokenResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		token, err := jwt.ParseWithClaims(resp.Token, new(Claims), func(*jwt.Token) (interface{}, error) {
			return []byte(app.conf.SecretKey), nil
		})
		require.NoError(t, err)
		claims := token.Claims.(*Claims)
		assert.Equal(t, "S001", claims.RegNo)
		assert.Empty(t, claims.LecNo)

		// the token opens the student area
		app.run(t, httpTest{path: "/v1/students/me", token: resp.Token, wantCode: http.StatusOK, wantData: marchallObj(t, app.Student1)})
	})
}

func Test_studentApi_postComplaint(t *testing.T) {
	app := setup(t)
	token := app.studentToken(t, app.Student1)

	body := func(unitCode, year string) []byte {
		return marchallObj(t, complaint.NewComplaint{
			UnitCode:     unitCode,
			AcademicYear: year,
			MissingMark:  complaint.MissingCat,
			ExamDate:     "2024-02-10",
			Description:  "my CAT mark is missing",
		})
	}
	required := "this field is required"

	tests := []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/complaints", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Student required", method: http.MethodPost, path: "/v1/complaints", body: body("CS201", "2023/2024"),
			token: app.lecturerToken(t, app.Member), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "empty body", method: http.MethodPost, path: "/v1/complaints", token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"unit_code":     required,
				"academic_year": required,
				"missing_mark":  required,
				"exam_date":     required,
				"description":   required,
			}),
		},
		{
			name: "invalid missing mark", method: http.MethodPost, path: "/v1/complaints", token: token,
			body:     []byte(`{"unit_code":"CS201","academic_year":"2023/2024","missing_mark":"QUIZ","exam_date":"2024-02-10","description":"x"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"missing_mark": "missing_mark must be one of CAT, EXAM or ALL"}),
		},
		{
			name: "unknown unit", method: http.MethodPost, path: "/v1/complaints", body: body("XX999", "2023/2024"), token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"unit_code": "not found"}),
		},
		{
			name: "unknown year", method: http.MethodPost, path: "/v1/complaints", body: body("CS201", "1999/2000"), token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"academic_year": "not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	t.Run("success", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/complaints", token, body("CS201", "2023/2024"))
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created complaint.Complaint
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.True(t, complaint.IsValidCode(created.Code))
		assert.Equal(t, "S001", created.RegNo)
		assert.Equal(t, app.Year2324.ID, created.YearID.Int)

		stored, err := app.complaintRepo.GetComplaint(req.Context(), created.Code)
		require.NoError(t, err)
		app.run(t, httpTest{path: "/v1/students/me/complaints", token: token, wantCode: http.StatusOK, wantData: marchallList(t, stored)})
	})

	t.Run("duplicate", func(t *testing.T) {
		app.run(t, httpTest{
			method: http.MethodPost, path: "/v1/complaints", body: body("CS201", "2023/2024"), token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: complaint.ErrComplaintExists.Error()}),
		})
	})
}

func Test_studentApi_lists(t *testing.T) {
	app := setup(t)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/students/me/complaints", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "no complaints", path: "/v1/students/me/complaints", token: app.studentToken(t, app.Student2),
			wantCode: http.StatusOK, wantData: marchallList(t),
		},
		{
			name: "no responses", path: "/v1/students/me/responses", token: app.studentToken(t, app.Student2),
			wantCode: http.StatusOK, wantData: marchallList(t),
		},
		{
			name: "lecturer token", path: "/v1/students/me/responses", token: app.lecturerToken(t, app.Member),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}
}
