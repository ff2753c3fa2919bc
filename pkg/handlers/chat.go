package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/services"
	"github.com/daramad/daramad-engine/pkg/textnorm"
)

// AskRequest for POST /api/ask
type AskRequest struct {
	ResolveRequest
	Category string `json:"category,omitempty"`
	Tier     string `json:"tier,omitempty"`
}

// CacheFeedbackRequest for POST /api/cache/feedback
type CacheFeedbackRequest struct {
	CacheKey string `json:"cache_key"`
	Positive bool   `json:"positive"`
}

// CacheFeedbackResponse for POST /api/cache/feedback
type CacheFeedbackResponse struct {
	Applied bool `json:"applied"`
}

// CacheInvalidateResponse for POST /api/cache/invalidate
type CacheInvalidateResponse struct {
	Version int64 `json:"version"`
}

// ChatHandler answers chat turns and manages the response cache.
type ChatHandler struct {
	chat            services.ChatService
	cache           *services.ResponseCache
	allowInvalidate bool
	logger          *zap.Logger
}

// NewChatHandler creates a new chat handler. cache may be nil, in which case
// the cache endpoints report 503. The unauthenticated invalidate endpoint is
// only registered when allowInvalidate is set.
func NewChatHandler(chat services.ChatService, cache *services.ResponseCache, allowInvalidate bool, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, cache: cache, allowInvalidate: allowInvalidate, logger: logger}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/ask", scope(h.Ask))
	mux.HandleFunc("POST /api/cache/feedback", h.Feedback)
	if h.allowInvalidate {
		mux.HandleFunc("POST /api/cache/invalidate", h.Invalidate)
	}
}

// Ask handles POST /api/ask
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	resp, err := h.chat.Ask(r.Context(), services.AskRequest{
		Message:  textnorm.NormalizeAny(req.Message),
		Category: strings.TrimSpace(req.Category),
		Tier:     models.ModelTier(req.Tier),
		Context:  req.Context,
		Ref:      req.Ref.toModel(),
		Hint:     req.Hint,
		Strict:   req.Strict,
		ClientIP: r.RemoteAddr,
	})
	if err != nil {
		writeServiceError(w, err, "ask_failed", h.logger)
		return
	}

	writeData(w, http.StatusOK, resp, h.logger)
}

// Feedback handles POST /api/cache/feedback
func (h *ChatHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	if !h.cacheEnabled(w) {
		return
	}
	var req CacheFeedbackRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	if req.CacheKey == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "cache_key is required", h.logger)
		return
	}

	applied, err := h.cache.Feedback(r.Context(), req.CacheKey, req.Positive)
	if err != nil {
		writeServiceError(w, err, "cache_feedback_failed", h.logger)
		return
	}
	if !applied {
		writeError(w, http.StatusNotFound, "cache_entry_not_found", "Cache entry not found or expired", h.logger)
		return
	}

	writeData(w, http.StatusOK, CacheFeedbackResponse{Applied: true}, h.logger)
}

// Invalidate handles POST /api/cache/invalidate
func (h *ChatHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	if !h.cacheEnabled(w) {
		return
	}

	version, err := h.cache.Invalidate(r.Context())
	if err != nil {
		writeServiceError(w, err, "cache_invalidate_failed", h.logger)
		return
	}

	h.logger.Info("Response cache invalidated via API",
		zap.Int64("version", version),
		zap.String("remote_addr", r.RemoteAddr))
	writeData(w, http.StatusOK, CacheInvalidateResponse{Version: version}, h.logger)
}

func (h *ChatHandler) cacheEnabled(w http.ResponseWriter) bool {
	if h.cache != nil {
		return true
	}
	writeError(w, http.StatusServiceUnavailable, "cache_disabled", "Response cache is not configured", h.logger)
	return false
}
