package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/jsonutil"
	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/services"
	"github.com/daramad/daramad-engine/pkg/textnorm"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// RefRequest is an explicit job reference in a request body. job_title_id
// may be sent as a number or a numeric string.
type RefRequest struct {
	JobTitleID jsonutil.FlexibleID `json:"job_title_id"`
	GroupKey   string              `json:"group_key"`
}

func (r *RefRequest) toModel() *models.EntityRef {
	if r == nil {
		return nil
	}
	ref := &models.EntityRef{JobTitleID: r.JobTitleID.Ptr(), GroupKey: r.GroupKey}
	if ref.IsEmpty() {
		return nil
	}
	return ref
}

// ResolveRequest for POST /api/resolve and POST /api/intent.
// Message is decoded loosely; anything but a string counts as empty.
type ResolveRequest struct {
	Message any                         `json:"message"`
	Ref     *RefRequest                 `json:"ref,omitempty"`
	Context *models.ConversationContext `json:"context,omitempty"`
	Hint    string                      `json:"hint,omitempty"`
	Strict  bool                        `json:"strict,omitempty"`
}

func (r *ResolveRequest) toService() services.ResolveRequest {
	return services.ResolveRequest{
		Message: textnorm.NormalizeAny(r.Message),
		Ref:     r.Ref.toModel(),
		Context: r.Context,
		Hint:    r.Hint,
		Strict:  r.Strict,
	}
}

// IntentResponse for POST /api/intent
type IntentResponse struct {
	Intent     models.Intent         `json:"intent"`
	Resolution *models.ResolvedQuery `json:"resolution"`
}

// ============================================================================
// Handler
// ============================================================================

// ResolveHandler exposes job resolution and intent classification.
type ResolveHandler struct {
	resolver   services.Resolver
	classifier *services.IntentClassifier
	logger     *zap.Logger
}

// NewResolveHandler creates a new resolve handler.
func NewResolveHandler(
	resolver services.Resolver,
	classifier *services.IntentClassifier,
	logger *zap.Logger,
) *ResolveHandler {
	return &ResolveHandler{
		resolver:   resolver,
		classifier: classifier,
		logger:     logger,
	}
}

// RegisterRoutes registers the resolve handler's routes on the given mux.
func (h *ResolveHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/resolve", scope(h.Resolve))
	mux.HandleFunc("POST /api/intent", scope(h.Intent))
}

// Resolve handles POST /api/resolve
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	result, err := h.resolver.Resolve(r.Context(), req.toService())
	if err != nil {
		writeServiceError(w, err, "resolve_failed", h.logger)
		return
	}

	writeData(w, http.StatusOK, result, h.logger)
}

// Intent handles POST /api/intent
func (h *ResolveHandler) Intent(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	sreq := req.toService()
	result, err := h.resolver.Resolve(r.Context(), sreq)
	if err != nil {
		writeServiceError(w, err, "resolve_failed", h.logger)
		return
	}

	writeData(w, http.StatusOK, IntentResponse{
		Intent:     h.classifier.Classify(sreq.Message, result),
		Resolution: result,
	}, h.logger)
}
