package handlers

import (
	"net/http"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/scheduler"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/service"
)

// JobLister reports the scheduled background jobs.
type JobLister interface {
	Jobs() []scheduler.JobInfo
}

// SystemHandler handles system-related HTTP requests
type SystemHandler struct {
	systemService *service.SystemService
	jobs          JobLister
}

// NewSystemHandler creates a new SystemHandler. jobs may be nil when the scheduler is disabled.
func NewSystemHandler(systemService *service.SystemService, jobs JobLister) *SystemHandler {
	return &SystemHandler{
		systemService: systemService,
		jobs:          jobs,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}

// Health checks the health of the system and database connectivity
//
// Endpoint: GET /api/system/health
// Response: 200 OK with HealthResponse
// Error: 503 Service Unavailable if the database cannot be reached
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.systemService.CheckHealth(); err != nil {
		response.RespondJSON(w, r, http.StatusServiceUnavailable, HealthResponse{
			Status:   "unhealthy",
			Database: "disconnected",
			Error:    err.Error(),
		})
		return
	}

	response.RespondJSON(w, r, http.StatusOK, HealthResponse{
		Status:   "healthy",
		Database: "connected",
	})
}

// Version handles GET requests to retrieve version information and feature availability.
//
// Endpoint: GET /api/system/version
// Response: 200 OK with model.VersionInfo
// Error: 500 Internal Server Error if version check fails
func (h *SystemHandler) Version(w http.ResponseWriter, r *http.Request) {
	version, err := h.systemService.CheckVersion(r.Context())
	if err != nil {
		response.RespondError(w, r, http.StatusInternalServerError, "failed to get version information", err.Error())
		return
	}

	response.RespondJSON(w, r, http.StatusOK, version)
}

// StatusResponse reports the price pipeline and scheduler state.
type StatusResponse struct {
	service.SystemStatus
	Jobs []scheduler.JobInfo `json:"jobs"`
}

// Status reports source health, the memory tier size and the scheduled jobs.
//
// Endpoint: GET /api/system/status
// Response: 200 OK with StatusResponse
func (h *SystemHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		SystemStatus: h.systemService.Status(),
		Jobs:         []scheduler.JobInfo{},
	}
	if h.jobs != nil {
		resp.Jobs = h.jobs.Jobs()
	}
	response.RespondJSON(w, r, http.StatusOK, resp)
}
