package main

import (
	"log/slog"
	"net/http"
	"os"

	"smartscan/internal/cache"
	"smartscan/internal/config"
	"smartscan/internal/database"
	"smartscan/internal/handlers"
	"smartscan/internal/metrics"
	"smartscan/internal/ocr/tesseract"
	"smartscan/internal/ratelimit"
	"smartscan/internal/server"
	"smartscan/internal/workers"
)

func main() {
	// Load configuration; SMARTSCAN_ENV_FILE overrides the default .env
	cfg, err := config.LoadServerConfigWithEnvFile(os.Getenv("SMARTSCAN_ENV_FILE"))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Error("Failed to create upload directory", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}

	// Initialize database
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("Database initialized", "path", cfg.DBPath)

	cacheManager := cache.NewManager(db.ScanCache, cfg.DisableCache, cfg.CacheTTL, logger)
	defer cacheManager.Close()

	logger.Info("Result cache configured", "enabled", cacheManager.IsEnabled(), "ttl", cacheManager.GetTTL())

	engine := tesseract.NewEngine(cfg.OCROptions())
	logger.Info("OCR engine ready",
		"engine", engine.Name(),
		"version", engine.Version(),
		"languages", cfg.OCRLanguages)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	limiter := ratelimit.NewClientLimiter(cfg)

	janitor := workers.NewUploadJanitor(cfg, cacheManager, limiter, logger)
	janitor.Start()

	hw := server.NewHandlerWrappers(
		handlers.NewScanHandler(db, engine, cacheManager, m, cfg, logger),
		handlers.NewHealthHandler(db),
		handlers.NewAdminHandler(janitor, logger),
	)

	srv := &http.Server{
		Addr: cfg.Address(),
		Handler: server.NewRouter(hw, server.RouterOptions{
			Limiter:    limiter,
			TrustProxy: cfg.TrustProxy,
			Metrics:    m,
			Logger:     logger,
		}),

		// Timeouts
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  2 * cfg.ReadTimeout,
	}

	// Handle server startup and graceful shutdown
	if err := server.HandleSignals(srv, cfg.ShutdownTimeout, logger, janitor.Stop); err != nil {
		logger.Error("Server error", "error", err)
		janitor.Stop()
		os.Exit(1)
	}
}
