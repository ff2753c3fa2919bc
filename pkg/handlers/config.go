package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/config"
	"github.com/daramad/daramad-engine/pkg/models"
)

// ConfigResponse contains public configuration for chat clients.
type ConfigResponse struct {
	Version     string                    `json:"version"`
	Environment string                    `json:"environment"`
	BaseURL     string                    `json:"base_url"`
	Tiers       map[models.ModelTier]bool `json:"tiers"`
	Resolver    ResolverSettings          `json:"resolver"`
	CacheTTL    map[models.ModelTier]int  `json:"cache_ttl_seconds"`
}

// ResolverSettings exposes the thresholds clients need to render candidates.
type ResolverSettings struct {
	AcceptThreshold float64 `json:"accept_threshold"`
	MaxCandidates   int     `json:"max_candidates"`
}

// ConfigHandler handles configuration requests.
type ConfigHandler struct {
	config *config.Config
	logger *zap.Logger
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(cfg *config.Config, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
		logger: logger,
	}
}

// RegisterRoutes registers the config handler's routes on the given mux.
func (h *ConfigHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/config", h.Get)
}

// Get returns public configuration.
// GET /api/config
// No secrets are exposed; a tier is reported available when its phrasing
// model has a key.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	llm := &h.config.LLM
	cache := h.config.Cache

	response := ConfigResponse{
		Version:     h.config.Version,
		Environment: h.config.Env,
		BaseURL:     h.config.BaseURL,
		Tiers: map[models.ModelTier]bool{
			models.TierFast:     llm.OpenAIConfigured(),
			models.TierStandard: llm.OpenAIConfigured(),
			models.TierPremium:  llm.AnthropicConfigured(),
		},
		Resolver: ResolverSettings{
			AcceptThreshold: h.config.Resolver.AcceptThreshold,
			MaxCandidates:   h.config.Resolver.MaxCandidates,
		},
		CacheTTL: map[models.ModelTier]int{
			models.TierFast:     int(cache.TTLFast.Seconds()),
			models.TierStandard: int(cache.TTLStandard.Seconds()),
			models.TierPremium:  int(cache.TTLPremium.Seconds()),
		},
	}

	w.Header().Set("Cache-Control", "public, max-age=300") // Cache for 5 minutes

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode config response", zap.Error(err))
		return
	}

	h.logger.Debug("Config request served", zap.String("remote_addr", r.RemoteAddr))
}
