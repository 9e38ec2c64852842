package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budgetrecon/internal/classification"
	"budgetrecon/internal/core"
	"budgetrecon/internal/files"
	"budgetrecon/internal/fx"
	"budgetrecon/internal/log"
	"budgetrecon/internal/middleware/ratelimit"
	"budgetrecon/internal/middleware/security"
	"budgetrecon/internal/middleware/trace"
	"budgetrecon/internal/report"
	"budgetrecon/internal/services"
)

// DefaultMaxUploadBytes caps one uploaded workbook.
const DefaultMaxUploadBytes = 20 << 20

// Collaborators of the API.
type (
	FileService interface {
		Upload(ctx context.Context, req files.UploadRequest) (core.UploadedFile, error)
		Link(ctx context.Context, name string, t core.FileType, uploader, location string) (core.UploadedFile, error)
		List(ctx context.Context) ([]core.UploadedFile, error)
	}

	ReportService interface {
		Generate(ctx context.Context, req report.Request) (*report.Report, error)
	}

	RateService interface {
		Rates(ctx context.Context) (fx.Snapshot, error)
		Refresh(ctx context.Context) (fx.Snapshot, error)
		Providers() []string
	}

	ClassificationService interface {
		Get(ctx context.Context, fileKey, sheet string) (*services.ClassificationView, error)
		Update(ctx context.Context, fileKey, sheet, actor string, updates []classification.Update) (*services.ClassificationView, error)
	}
)

// ReadyCheck is one dependency probed by /readyz.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options configures the server. Zero values take defaults.
type Options struct {
	Addr              string
	MaxUploadBytes    int64
	RequestsPerMinute int
	ReadyChecks       []ReadyCheck
}

type appMetrics struct {
	uptime                time.Time
	reports               int64
	reportFailures        int64
	uploads               int64
	classificationUpdates int64
}

type Server struct {
	http.Server

	files           FileService
	reports         ReportService
	rates           RateService
	classifications ClassificationService
	checks          []ReadyCheck
	maxUpload       int64

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	logger           *log.Logger
	events           *log.StructuredLogger
	appMetrics       appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(o Options, fs FileService, rs ReportService, rates RateService, cs ClassificationService) *Server {
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = DefaultMaxUploadBytes
	}
	limits := ratelimit.DefaultConfig()
	if o.RequestsPerMinute > 0 {
		limits.RequestsPerMinute = o.RequestsPerMinute
	}

	s := &Server{
		Server: http.Server{
			Addr:              o.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      2 * time.Minute,
			IdleTimeout:       2 * time.Minute,
			MaxHeaderBytes:    1 << 16,
		},
		files:            fs,
		reports:          rs,
		rates:            rates,
		classifications:  cs,
		checks:           o.ReadyChecks,
		maxUpload:        o.MaxUploadBytes,
		rateLimiter:      ratelimit.NewLimiter(limits),
		securityDetector: security.NewDetector(),
		logger:           log.Default().WithComponent(log.ComponentHTTP),
		appMetrics:       appMetrics{uptime: time.Now()},
	}
	s.events = log.NewStructuredLogger(s.logger)
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/files", s.handleListFiles)
	mux.HandleFunc("POST /api/files", s.handleCreateFile)
	mux.HandleFunc("POST /api/reports", s.handleReport)
	mux.HandleFunc("GET /api/rates", s.handleRates)
	mux.HandleFunc("GET /api/classifications", s.handleGetClassifications)
	mux.HandleFunc("PUT /api/classifications", s.handleUpdateClassifications)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var h http.Handler = mux
	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)(h)
	h = s.securityDetector.Middleware(h)
	h = headers.Middleware(h)
	h = s.traceMiddleware.Middleware(h)
	h = log.Middleware(s.logger)(h)
	s.Handler = h

	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
