package handlers

import (
	"log/slog"
	"net/http"

	"smartscan/internal/workers"
)

// Janitor is the part of the upload janitor exposed to operators
type Janitor interface {
	IsRunning() bool
	IsPaused() bool
	Pause()
	Resume()
	RunOnce() (workers.JanitorReport, error)
}

// AdminHandler handles administrative operations
type AdminHandler struct {
	janitor Janitor
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(janitor Janitor, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		janitor: janitor,
		logger:  logger,
	}
}

// JanitorStatusResponse represents the status of the upload janitor
type JanitorStatusResponse struct {
	Running bool `json:"running"`
	Paused  bool `json:"paused"`
}

// JanitorRunResponse is returned after a manual cleanup pass
type JanitorRunResponse struct {
	Success bool                  `json:"success"`
	Report  workers.JanitorReport `json:"report"`
	Error   string                `json:"error,omitempty"`
}

// GetJanitorStatus handles GET /api/admin/janitor/status
func (h *AdminHandler) GetJanitorStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, JanitorStatusResponse{
		Running: h.janitor.IsRunning(),
		Paused:  h.janitor.IsPaused(),
	})
}

// PauseJanitor handles POST /api/admin/janitor/pause
func (h *AdminHandler) PauseJanitor(w http.ResponseWriter, r *http.Request) {
	h.janitor.Pause()

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "paused",
		"message": "Upload janitor has been paused",
	})
}

// ResumeJanitor handles POST /api/admin/janitor/resume
func (h *AdminHandler) ResumeJanitor(w http.ResponseWriter, r *http.Request) {
	h.janitor.Resume()

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "resumed",
		"message": "Upload janitor has been resumed",
	})
}

// RunJanitor handles POST /api/admin/janitor/run
func (h *AdminHandler) RunJanitor(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Starting cleanup pass via API")

	report, err := h.janitor.RunOnce()
	if err != nil {
		h.logger.Error("Manual cleanup pass failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, JanitorRunResponse{
			Success: false,
			Report:  report,
			Error:   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, JanitorRunResponse{Success: true, Report: report})
}
