package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/labreports/internal/common"
	processor "github.com/joseph-ayodele/labreports/internal/pipeline"
)

func newTestHandler(proc *stubProcessor, reports *memReports) http.Handler {
	return NewHTTPHandler(HTTPConfig{
		Processor:      proc,
		Reports:        reports,
		Exporter:       stubExporter{},
		MaxUploadBytes: 1 << 10,
		Logger:         quietLogger(),
	})
}

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) processor.Envelope {
	t.Helper()
	var env processor.Envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rr.Body.String())
	}
	return env
}

func TestRoot(t *testing.T) {
	h := newTestHandler(newStubProcessor(), newMemReports())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"message":"Backend is working!"}` {
		t.Errorf("body = %s", got)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestUpload(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		content     string
		wantStatus  int
		wantSuccess bool
		wantError   string
		wantRecords int
	}{
		{name: "pdf", filename: "panel.pdf", content: "Glucose: 110 mg/dL\nWBC 5000 cells/mcL", wantStatus: 200, wantSuccess: true, wantRecords: 2},
		{name: "no matches", filename: "scan.PNG", content: "nothing useful", wantStatus: 200, wantSuccess: true},
		{name: "unsupported", filename: "notes.docx", content: "Glucose: 1 mg/dL", wantStatus: 200, wantError: "Unsupported file type."},
		{name: "too large", filename: "big.pdf", content: strings.Repeat("x", 3<<10), wantStatus: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(newStubProcessor(), newMemReports())
			body, ct := multipartBody(t, "file", tt.filename, []byte(tt.content))
			req := httptest.NewRequest(http.MethodPost, "/upload", body)
			req.Header.Set("Content-Type", ct)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			env := decodeEnvelope(t, rr)
			if env.Success != tt.wantSuccess {
				t.Errorf("success = %v", env.Success)
			}
			if tt.wantError != "" && env.Error != tt.wantError {
				t.Errorf("error = %q, want %q", env.Error, tt.wantError)
			}
			if tt.wantSuccess && (env.Data == nil || len(env.Data) != tt.wantRecords) {
				t.Errorf("data = %#v, want %d records", env.Data, tt.wantRecords)
			}
		})
	}
}

func TestUpload_MissingFile(t *testing.T) {
	h := newTestHandler(newStubProcessor(), newMemReports())
	body, ct := multipartBody(t, "document", "a.pdf", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Success || env.Error == "" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestUpload_StorageFailure(t *testing.T) {
	proc := newStubProcessor()
	proc.err = common.NewAppError("DB_ERROR", "start report", common.ErrDatabase)
	h := newTestHandler(proc, newMemReports())
	body, ct := multipartBody(t, "file", "a.pdf", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestExtract(t *testing.T) {
	h := newTestHandler(newStubProcessor(), newMemReports())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader("Creatinine: 1.5 mg/dL")))
	env := decodeEnvelope(t, rr)
	if !env.Success || len(env.Data) != 1 {
		t.Fatalf("envelope = %+v", env)
	}
	if r := env.Data[0]; r.Range != "0.6 - 1.3 mg/dL" || r.Status != "Needs Attention" {
		t.Errorf("record = %+v", r)
	}

	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(`{"text":"HDL: 50 mg/dL"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if env := decodeEnvelope(t, rr); !env.Success || len(env.Data) != 1 || env.Data[0].Status != "Normal" {
		t.Errorf("json envelope = %+v", env)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader("")))
	if env := decodeEnvelope(t, rr); env.Success || env.Error != "No text extracted from file." {
		t.Errorf("empty envelope = %+v", env)
	}
}

func TestReports(t *testing.T) {
	rep := sampleReport()
	h := newTestHandler(newStubProcessor(), newMemReports(rep))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/"+rep.ID.String(), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var view reportView
	if err := json.NewDecoder(rr.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.ID != rep.ID.String() || len(view.Records) != 2 || view.Summary == nil || view.Summary.NeedsAttention != 1 {
		t.Errorf("view = %+v", view)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports", nil))
	var list struct {
		Reports []reportView `json:"reports"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Reports) != 1 || list.Reports[0].Records != nil || list.Reports[0].OCRText != "" {
		t.Errorf("list = %+v", list)
	}

	for path, want := range map[string]int{
		"/reports/" + uuid.NewString(): http.StatusNotFound,
		"/reports/not-a-uuid":          http.StatusBadRequest,
		"/reports?limit=0":             http.StatusBadRequest,
	} {
		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != want {
			t.Errorf("GET %s = %d, want %d", path, rr.Code, want)
		}
	}
}

func TestExportXLSX(t *testing.T) {
	rep := sampleReport()
	h := newTestHandler(newStubProcessor(), newMemReports(rep))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/"+rep.ID.String()+"/export.xlsx", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "PK-report" {
		t.Fatalf("status = %d body = %q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("content type = %s", ct)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports.xlsx", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "PK-list" {
		t.Errorf("list export status = %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(newStubProcessor(), newMemReports())
	req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow origin = %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "content-type" {
		t.Errorf("allow headers = %q", got)
	}
}
