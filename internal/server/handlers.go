package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"smartscan/internal/handlers"
	"smartscan/internal/metrics"
	"smartscan/internal/ratelimit"
)

// HandlerWrappers groups the HTTP handlers served by the API
type HandlerWrappers struct {
	scanHandler   *handlers.ScanHandler
	healthHandler *handlers.HealthHandler
	adminHandler  *handlers.AdminHandler
}

// NewHandlerWrappers creates new handler wrappers. admin may be nil, in which case the
// janitor endpoints are not mounted.
func NewHandlerWrappers(scans *handlers.ScanHandler, health *handlers.HealthHandler, admin *handlers.AdminHandler) *HandlerWrappers {
	return &HandlerWrappers{
		scanHandler:   scans,
		healthHandler: health,
		adminHandler:  admin,
	}
}

// RegisterChiRoutes registers all routes with a chi router. scanLimit guards the routes
// that run OCR or the extraction core.
func (hw *HandlerWrappers) RegisterChiRoutes(r chi.Router, scanLimit Middleware) {
	if scanLimit == nil {
		scanLimit = func(next http.Handler) http.Handler { return next }
	}

	r.Get("/", hw.healthHandler.Root)
	r.Get("/health", hw.healthHandler.HealthCheck)

	// Unprefixed paths kept for scanners already in the field
	r.With(scanLimit).Post("/scan", hw.scanHandler.UploadScan)
	r.Get("/scans", hw.scanHandler.ListScans)
	r.Get("/scans/{id}", hw.scanHandler.GetScan)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", hw.healthHandler.HealthCheck)

		r.Group(func(r chi.Router) {
			r.Use(scanLimit)
			r.Post("/scan", hw.scanHandler.UploadScan)
			r.Post("/scan/text", hw.scanHandler.ScanText)
			r.Post("/validate", hw.scanHandler.Validate)
		})

		r.Get("/scans", hw.scanHandler.ListScans)
		r.Get("/scans/{id}", hw.scanHandler.GetScan)
		r.Get("/stats", hw.scanHandler.GetStats)

		if hw.adminHandler != nil {
			r.Route("/admin/janitor", func(r chi.Router) {
				r.Get("/status", hw.adminHandler.GetJanitorStatus)
				r.Post("/pause", hw.adminHandler.PauseJanitor)
				r.Post("/resume", hw.adminHandler.ResumeJanitor)
				r.Post("/run", hw.adminHandler.RunJanitor)
			})
		}
	})
}

// RouterOptions carries the optional pieces of the HTTP stack
type RouterOptions struct {
	// Limiter enables per-client rate limiting on scan routes when set
	Limiter *ratelimit.ClientLimiter
	// TrustProxy keys the limiter on X-Forwarded-For / X-Real-IP instead of the peer
	// address. Only enable it behind a reverse proxy that overwrites those headers.
	TrustProxy bool
	// Metrics mounts /metrics when set
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// NewRouter builds the chi router with the full middleware chain
func NewRouter(hw *HandlerWrappers, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(
		RequestIDMiddleware,
		LoggingMiddleware(logger),
		RecoveryMiddleware(logger),
		CORSMiddleware,
		ContentTypeMiddleware,
		SecurityMiddleware,
	)

	var scanLimit Middleware
	if opts.Limiter != nil {
		scanLimit = RateLimitMiddleware(opts.Limiter, opts.TrustProxy, logger)
	}
	hw.RegisterChiRoutes(r, scanLimit)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Not Found"}` + "\n"))
	})

	return r
}
