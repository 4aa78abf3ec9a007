package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/service"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/validation"
)

// BatchHandler triggers reconcile runs and reports their job records.
type BatchHandler struct {
	reconciler        *service.BatchReconciler
	cleanupService    *service.CleanupService
	defaultStaleHours int
}

// NewBatchHandler creates a new BatchHandler. defaultStaleHours applies when a
// reconcile request does not name a threshold.
func NewBatchHandler(reconciler *service.BatchReconciler, cleanupService *service.CleanupService, defaultStaleHours int) *BatchHandler {
	return &BatchHandler{
		reconciler:        reconciler,
		cleanupService:    cleanupService,
		defaultStaleHours: defaultStaleHours,
	}
}

// Reconcile runs a reconciliation synchronously and returns its job record.
// A job that finished with per-ticker failures is still a 200; only a job whose
// bookkeeping failed is reported as 500.
//
// Endpoint: POST /api/batch/reconcile
// Request Body: ReconcileRequest (all fields optional)
// Response: 200 OK with model.BatchJobRecord
// Error: 400 Bad Request if validation fails
func (h *BatchHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.ReconcileRequest](r)
	if err != nil {
		response.RespondError(w, r, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateReconcile(req); err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	var job model.BatchJobRecord
	switch {
	case req.CatchUp:
		job, err = h.reconciler.RunCatchUp(r.Context())
	default:
		hours := req.HoursStale
		if hours == 0 {
			hours = h.defaultStaleHours
		}
		scope := service.AllUsersScope()
		if req.Scope == request.ScopeSingleUser {
			scope = service.SingleUserScope(req.UserID)
		}
		job, err = h.reconciler.ReconcileStaleTickers(r.Context(), hours, scope)
	}
	if err != nil {
		respondServiceError(w, r, err, "reconcile failed")
		return
	}

	response.RespondJSON(w, r, http.StatusOK, job)
}

// Jobs lists the most recent job records.
//
// Endpoint: GET /api/batch/jobs?limit=20
// Response: 200 OK with array of model.BatchJobRecord
// Error: 400 Bad Request if limit is out of range
func (h *BatchHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	limit, err := request.ParseJobLimit(r.URL.Query().Get("limit"))
	if err != nil {
		response.RespondError(w, r, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}

	jobs, err := h.reconciler.GetBatchJobStatus(r.Context(), limit)
	if err != nil {
		respondServiceError(w, r, err, apperrors.ErrFailedToRetrieveJobs.Error())
		return
	}

	response.RespondJSON(w, r, http.StatusOK, jobs)
}

// Job returns one job record with its per-ticker details.
//
// Endpoint: GET /api/batch/jobs/{jobID}
// Response: 200 OK with model.BatchJobRecord
// Error: 400 Bad Request if the job ID is not a UUID (validated by middleware)
// Error: 404 Not Found if the job does not exist
func (h *BatchHandler) Job(w http.ResponseWriter, r *http.Request) {
	job, err := h.reconciler.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondServiceError(w, r, err, apperrors.ErrFailedToRetrieveJobs.Error())
		return
	}

	response.RespondJSON(w, r, http.StatusOK, job)
}

// Cleanup prunes old job records and price history.
//
// Endpoint: POST /api/batch/cleanup
// Response: 200 OK with service.CleanupResult
func (h *BatchHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	res, err := h.cleanupService.Cleanup(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "cleanup failed")
		return
	}

	response.RespondJSON(w, r, http.StatusOK, res)
}
