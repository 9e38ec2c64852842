package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"budgetrecon/internal/classification"
	"budgetrecon/internal/core"
	"budgetrecon/internal/files"
	"budgetrecon/internal/log"
	"budgetrecon/internal/report"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady runs every configured dependency check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any, len(s.checks)+1)
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
	}
	gauge := func(name, help string, v float64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %.0f\n\n", name, help, name, name, v)
	}

	w.WriteHeader(http.StatusOK)
	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter("http_requests_failed_total", "Total number of HTTP requests answered with 5xx", traceMetrics.FailedRequests)
	counter("reports_total", "Total number of generated reports", atomic.LoadInt64(&s.appMetrics.reports))
	counter("report_failures_total", "Total number of failed report generations", atomic.LoadInt64(&s.appMetrics.reportFailures))
	counter("uploads_total", "Total number of registered workbooks", atomic.LoadInt64(&s.appMetrics.uploads))
	counter("classification_updates_total", "Total number of saved classification batches", atomic.LoadInt64(&s.appMetrics.classificationUpdates))
	counter("rate_limit_hits_total", "Total rate limit hits", rateLimitMetrics.TotalHits)
	counter("suspicious_requests_total", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", float64(rateLimitMetrics.ClientCount))
	gauge("uptime_seconds", "Application uptime in seconds", time.Since(s.appMetrics.uptime).Seconds())
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	list, err := s.files.List(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if t := r.URL.Query().Get("type"); t != "" {
		want, err := core.ParseFileType(t)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		filtered := list[:0:0]
		for _, f := range list {
			if f.Type == want {
				filtered = append(filtered, f)
			}
		}
		list = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": list})
}

// handleCreateFile registers a workbook: a multipart body uploads bytes, a
// JSON body links an existing location such as sheets://id/tab.
func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		s.handleUpload(w, r)
		return
	}

	var req linkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	ft, err := core.ParseFileType(req.Type)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	f, err := s.files.Link(r.Context(), req.Name, ft, actorOf(r, req.Uploader), req.Location)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.uploads, 1)
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	ft, err := core.ParseFileType(r.FormValue("type"))
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "missing file field")
		return
	}
	defer part.Close()
	if header.Size > s.maxUpload {
		writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", s.maxUpload))
		return
	}
	data, err := io.ReadAll(part)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "read file: "+err.Error())
		return
	}

	f, err := s.files.Upload(r.Context(), files.UploadRequest{
		Name:     sanitizeInput(header.Filename),
		Type:     ft,
		Uploader: actorOf(r, r.FormValue("uploader")),
		Data:     data,
	})
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.uploads, 1)
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req report.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.BudgetFile) == "" || strings.TrimSpace(req.ExpenseFile) == "" {
		writeError(w, r, http.StatusUnprocessableEntity, "budget_file and expense_file are required")
		return
	}

	rep, err := s.reports.Generate(r.Context(), req)
	if err != nil {
		atomic.AddInt64(&s.appMetrics.reportFailures, 1)
		s.fail(w, r, log.OpReport, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.reports, 1)
	rows := 0
	if rep.Result != nil {
		rows = len(rep.Result.Subcategories)
	}
	s.events.LogReportGenerated(r.Context(), req.BudgetFile, req.ExpenseFile, string(rep.Filter), rows, len(rep.Warnings), rep.Duration)
	writeJSON(w, http.StatusOK, newReportResponse(rep))
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	get := s.rates.Rates
	if isTrue(r.URL.Query().Get("refresh")) {
		get = s.rates.Refresh
	}
	snap, err := get(r.Context())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot":  snap,
		"providers": s.rates.Providers(),
	})
}

func (s *Server) handleGetClassifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fileKey := strings.TrimSpace(q.Get("file"))
	if fileKey == "" {
		writeError(w, r, http.StatusUnprocessableEntity, "file is required")
		return
	}
	view, err := s.classifications.Get(r.Context(), fileKey, q.Get("sheet"))
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateClassifications(w http.ResponseWriter, r *http.Request) {
	var req classificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.File) == "" || len(req.Updates) == 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "file and at least one update are required")
		return
	}

	view, err := s.classifications.Update(r.Context(), req.File, req.Sheet, actorOf(r, req.Actor), req.Updates)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.classificationUpdates, 1)
	s.events.LogClassificationSaved(r.Context(), req.File, actorOf(r, req.Actor), len(req.Updates))
	writeJSON(w, http.StatusOK, view)
}

// fail maps a service error onto a status code and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, errorType := statusFor(err)
	if status >= 500 {
		s.events.LogError(r.Context(), "Request failed", err, errorType, op,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, "", ""))
	}
	writeError(w, r, status, err.Error())
}

func statusFor(err error) (int, string) {
	var parseErr *core.ParseError
	switch {
	case errors.Is(err, core.ErrFileNotFound):
		return http.StatusNotFound, log.ErrorTypeNotFound
	case errors.Is(err, core.ErrDuplicateFile):
		return http.StatusConflict, log.ErrorTypeConflict
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity, log.ErrorTypeValidation
	case errors.Is(err, report.ErrWrongFileType),
		errors.Is(err, core.ErrInvalidClassification),
		errors.Is(err, core.ErrUnknownStatus),
		errors.Is(err, classification.ErrInvalidUpdate),
		errors.Is(err, files.ErrUnsupportedLocation):
		return http.StatusUnprocessableEntity, log.ErrorTypeValidation
	case isNotBudget(err):
		return http.StatusUnprocessableEntity, log.ErrorTypeValidation
	case errors.Is(err, core.ErrRatesUnavailable):
		return http.StatusServiceUnavailable, log.ErrorTypeNetwork
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, log.ErrorTypeTimeout
	default:
		return http.StatusInternalServerError, log.ErrorTypeInternal
	}
}
