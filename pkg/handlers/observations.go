package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/jsonutil"
	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/services"
)

// CreateObservationRequest for POST /api/observations
type CreateObservationRequest struct {
	JobTitleID  jsonutil.FlexibleID `json:"job_title_id"`
	City        string              `json:"city"`
	Income      string              `json:"income"`
	Investment  string              `json:"investment"`
	Description string              `json:"description"`
}

// ObservationHandler records observations and serves per-job aggregates.
type ObservationHandler struct {
	observations services.ObservationService
	logger       *zap.Logger
}

// NewObservationHandler creates a new observation handler.
func NewObservationHandler(observations services.ObservationService, logger *zap.Logger) *ObservationHandler {
	return &ObservationHandler{observations: observations, logger: logger}
}

// RegisterRoutes registers the observation handler's routes on the given mux.
func (h *ObservationHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/observations", scope(h.Create))
	mux.HandleFunc("GET /api/job-titles/{id}/summary", scope(h.Summary))
	mux.HandleFunc("GET /api/job-titles/{id}/observations", scope(h.List))
}

// Create handles POST /api/observations
func (h *ObservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateObservationRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	obs, err := h.observations.Ingest(r.Context(), models.ObservationInput{
		JobTitleID:  int64(req.JobTitleID),
		City:        req.City,
		Income:      req.Income,
		Investment:  req.Investment,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, err, "create_observation_failed", h.logger)
		return
	}

	writeData(w, http.StatusCreated, obs, h.logger)
}

// Summary handles GET /api/job-titles/{id}/summary
func (h *ObservationHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseJobTitleID(w, r, h.logger)
	if !ok {
		return
	}

	summary, err := h.observations.Summary(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "summary_failed", h.logger)
		return
	}

	writeData(w, http.StatusOK, summary, h.logger)
}

// List handles GET /api/job-titles/{id}/observations?limit=&offset=
func (h *ObservationHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseJobTitleID(w, r, h.logger)
	if !ok {
		return
	}

	page, err := h.observations.List(r.Context(), id, queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		writeServiceError(w, err, "list_observations_failed", h.logger)
		return
	}

	writeData(w, http.StatusOK, page, h.logger)
}
