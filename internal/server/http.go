package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/labreports/internal/common"
	processor "github.com/joseph-ayodele/labreports/internal/pipeline"
)

// Exporter renders reports as spreadsheets.
type Exporter interface {
	ExportReportXLSX(ctx context.Context, id uuid.UUID) ([]byte, error)
	ExportReportsXLSX(ctx context.Context, limit int) ([]byte, error)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HTTPConfig wires the HTTP surface.
type HTTPConfig struct {
	Processor      DocumentProcessor
	Reports        ReportReader
	Exporter       Exporter
	Ping           func(context.Context) error // optional readiness check
	MaxUploadBytes int64
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

type httpAPI struct {
	HTTPConfig
}

// NewHTTPHandler returns the JSON API:
//
//	GET  /                          liveness message
//	GET  /healthz                   readiness (database ping)
//	POST /upload                    multipart "file" -> envelope
//	POST /extract                   raw text body -> envelope
//	GET  /reports                   recent reports (?limit=)
//	GET  /reports.xlsx              recent reports as a workbook
//	GET  /reports/{id}              one report with records
//	GET  /reports/{id}/export.xlsx  one report as a workbook
func NewHTTPHandler(cfg HTTPConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	api := &httpAPI{HTTPConfig: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", api.root)
	mux.HandleFunc("GET /healthz", api.healthz)
	mux.HandleFunc("POST /upload", api.upload)
	mux.HandleFunc("POST /extract", api.extract)
	mux.HandleFunc("GET /reports", api.listReports)
	mux.HandleFunc("GET /reports.xlsx", api.exportReports)
	mux.HandleFunc("GET /reports/{id}", api.getReport)
	mux.HandleFunc("GET /reports/{id}/export.xlsx", api.exportReport)

	var h http.Handler = mux
	if cfg.RequestTimeout > 0 {
		h = withTimeout(h, cfg.RequestTimeout)
	}
	h = withRequestLog(h, cfg.Logger)
	return withCORS(h)
}

func (a *httpAPI) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Backend is working!"})
}

func (a *httpAPI) healthz(w http.ResponseWriter, r *http.Request) {
	if a.Ping != nil {
		if err := a.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *httpAPI) upload(w http.ResponseWriter, r *http.Request) {
	logger := common.LoggerFromContext(r.Context(), a.Logger)
	// multipart framing adds a little on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeEnvelope(w, http.StatusRequestEntityTooLarge, processor.Envelope{Error: fmt.Sprintf("File exceeds %d bytes.", a.MaxUploadBytes)})
			return
		}
		writeEnvelope(w, http.StatusBadRequest, processor.Envelope{Error: "Expected a multipart form with a file field."})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, processor.Envelope{Error: "Missing file field."})
		return
	}
	defer file.Close()
	if hdr.Size > a.MaxUploadBytes {
		writeEnvelope(w, http.StatusRequestEntityTooLarge, processor.Envelope{Error: fmt.Sprintf("File exceeds %d bytes.", a.MaxUploadBytes)})
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		logger.Error("http.upload.read_failed", "filename", hdr.Filename, "error", err)
		writeEnvelope(w, http.StatusBadRequest, processor.Envelope{Error: err.Error()})
		return
	}

	logger.Info("http.upload.received", "filename", hdr.Filename, "bytes", len(content))
	res, err := a.Processor.ProcessDocument(r.Context(), hdr.Filename, content)
	a.respond(w, r, res, err)
}

func (a *httpAPI) extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeEnvelope(w, http.StatusRequestEntityTooLarge, processor.Envelope{Error: fmt.Sprintf("Body exceeds %d bytes.", a.MaxUploadBytes)})
		return
	}
	text := string(body)
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			writeEnvelope(w, http.StatusBadRequest, processor.Envelope{Error: "Body must be {\"text\": \"...\"}."})
			return
		}
		text = req.Text
	}
	res, err := a.Processor.ProcessText(r.Context(), "http", text)
	a.respond(w, r, res, err)
}

// respond writes a pipeline outcome. Processing failures are reported in the
// envelope with 200 like successes; storage failures are a 500.
func (a *httpAPI) respond(w http.ResponseWriter, r *http.Request, res processor.Result, err error) {
	env := processor.NewEnvelope(res, err)
	if err != nil && errors.Is(err, common.ErrDatabase) {
		common.LoggerFromContext(r.Context(), a.Logger).Error("http.process.storage_failed", "error", err)
		writeEnvelope(w, http.StatusInternalServerError, env)
		return
	}
	writeEnvelope(w, http.StatusOK, env)
}

func (a *httpAPI) listReports(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	reps, err := a.Reports.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]reportView, 0, len(reps))
	for _, rep := range reps {
		views = append(views, toView(rep, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": views})
}

func (a *httpAPI) getReport(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	rep, err := a.Reports.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(rep, true))
}

func (a *httpAPI) exportReport(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	b, err := a.Exporter.ExportReportXLSX(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeXLSX(w, fmt.Sprintf("report-%s.xlsx", id), b)
}

func (a *httpAPI) exportReports(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	b, err := a.Exporter.ExportReportsXLSX(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeXLSX(w, "reports.xlsx", b)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := common.ParseID("report_id", r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return uuid.Nil, false
	}
	return id, true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return DefaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 500 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
		return 0, false
	}
	return n, true
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput):
		code = http.StatusBadRequest
	}
	writeJSON(w, code, map[string]string{"error": common.UserMessage(err)})
}

func writeEnvelope(w http.ResponseWriter, code int, env processor.Envelope) {
	writeJSON(w, code, env)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeXLSX(w http.ResponseWriter, name string, b []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// withCORS allows any origin, method and header.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		if origin := r.Header.Get("Origin"); origin != "" {
			// credentials cannot be combined with a literal "*"
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		} else {
			h.Set("Access-Control-Allow-Origin", "*")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
				h.Set("Access-Control-Allow-Headers", req)
			}
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withRequestLog tags the request with an ID and logs it when done.
func withRequestLog(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		if id := strings.TrimSpace(r.Header.Get("X-Request-ID")); id != "" {
			ctx = common.WithRequestID(ctx, id)
		}
		ctx, reqID := common.EnsureRequestID(ctx)
		reqLogger := logger.With("request_id", reqID)
		ctx = common.WithLogger(ctx, reqLogger)
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		reqLogger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func withTimeout(next http.Handler, d time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
