package tests

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	. "github.com/mmust/marktrack/apps/api/echo"
	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/complaint"
	"github.com/mmust/marktrack/core/dashboard"
	"github.com/mmust/marktrack/core/ingest"
	"github.com/mmust/marktrack/core/marks"
	"github.com/mmust/marktrack/core/school"
	"github.com/mmust/marktrack/core/scope"
	"github.com/mmust/marktrack/services/metrics"
	"github.com/mmust/marktrack/services/reports"
	inmemdb "github.com/mmust/marktrack/storage/database/inmem"
	"github.com/mmust/marktrack/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*testutil.World
	conf          *core.Config
	server        *Server
	complaintRepo complaint.Repository
	marksRepo     marks.Repository
	mailBox       *testutil.MailBox
}

func setup(t *testing.T) *testApp {
	w := testutil.NewWorld(t)
	conf := core.NewTestConfig()
	validate, translator := testutil.NewValidator()

	complaintRepo := inmemdb.NewComplaintRepository(w.DB)
	marksRepo := inmemdb.NewMarksRepository(w.DB)
	mailBox := new(testutil.MailBox)
	prom := metricsvc.NewPrometheus()

	schoolSvc := school.NewService(w.Schools, validate)
	scopes := scope.NewResolver(w.Schools)
	complaintSvc := complaint.NewService(complaintRepo, w.Schools, mailBox, conf, testutil.NopLogger{}, prom)

	server := NewServer(conf, testutil.NopLogger{}, &Deps{
		Validate:     validate,
		Translator:   translator,
		SchoolSvc:    schoolSvc,
		Scopes:       scopes,
		MarksSvc:     marks.NewService(marksRepo, w.Schools, validate),
		Ingest:       ingest.NewEngine(marksRepo, w.Schools, scopes, reportsvc.NewMemoryStore(time.Hour), testutil.NopLogger{}, prom),
		ComplaintSvc: complaintSvc,
		DashboardSvc: dashboard.NewService(schoolSvc, complaintSvc),
		Metrics:      prom.Handler(),
	})
	t.Cleanup(func() { _ = server.Close() })

	return &testApp{
		World:         w,
		conf:          conf,
		server:        server,
		complaintRepo: complaintRepo,
		marksRepo:     marksRepo,
		mailBox:       mailBox,
	}
}

func (app *testApp) lecturerToken(t *testing.T, l school.Lecturer) string {
	token, err := GenerateToken(app.conf, NewLecturerClaims(app.conf, l))
	if err != nil {
		t.Fatalf("lecturerToken(): %v", err)
	}
	return token
}

func (app *testApp) studentToken(t *testing.T, s school.Student) string {
	token, err := GenerateToken(app.conf, NewStudentClaims(app.conf, s))
	if err != nil {
		t.Fatalf("studentToken(): %v", err)
	}
	return token
}

// run serves tt and checks the response code and body.
func (app *testApp) run(t *testing.T, tt httpTest) {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	app.server.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest builds a multipart request carrying `content` as the `file` field.
func newUploadRequest(t *testing.T, path, token, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile(): %v", err)
		}
		if _, err = part.Write(content); err != nil {
			t.Fatalf("part.Write(): %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("multipart.Close(): %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
