package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/money"
	"github.com/daramad/daramad-engine/pkg/services"
	"github.com/daramad/daramad-engine/pkg/stats"
	"github.com/daramad/daramad-engine/pkg/textnorm"
)

const maxOutlierValues = 10_000

// ParseMoneyRequest for POST /api/money/parse
type ParseMoneyRequest struct {
	Text    any    `json:"text"`
	Profile string `json:"profile"`
}

// OutliersRequest for POST /api/outliers
type OutliersRequest struct {
	Values []float64 `json:"values"`
}

// OutliersResponse for POST /api/outliers
type OutliersResponse struct {
	stats.OutlierResult
	Count    int     `json:"count"`
	Excluded int     `json:"excluded"`
	Central  float64 `json:"central"`
}

// MoneyHandler exposes the monetary parser and outlier detection.
type MoneyHandler struct {
	parser services.MoneyParser
	opts   money.Options
	logger *zap.Logger
}

// NewMoneyHandler creates a new money handler. opts carries the configured
// thresholds; the profile comes from each request.
func NewMoneyHandler(parser services.MoneyParser, opts money.Options, logger *zap.Logger) *MoneyHandler {
	return &MoneyHandler{parser: parser, opts: opts, logger: logger}
}

// RegisterRoutes registers the money handler's routes on the given mux.
func (h *MoneyHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/money/parse", h.Parse)
	mux.HandleFunc("POST /api/outliers", h.Outliers)
}

// Parse handles POST /api/money/parse
func (h *MoneyHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req ParseMoneyRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	opts := h.opts
	opts.Profile = money.Profile(req.Profile)
	if req.Profile == "" {
		opts.Profile = money.ProfileIncome
	}
	if !opts.Profile.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid_profile", "profile must be income or investment", h.logger)
		return
	}

	writeData(w, http.StatusOK, h.parser.Parse(textnorm.NormalizeAny(req.Text), opts), h.logger)
}

// Outliers handles POST /api/outliers
func (h *MoneyHandler) Outliers(w http.ResponseWriter, r *http.Request) {
	var req OutliersRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	if len(req.Values) > maxOutlierValues {
		writeError(w, http.StatusBadRequest, "too_many_values", "at most 10000 values are accepted", h.logger)
		return
	}

	sum := stats.Summarize(req.Values)
	writeData(w, http.StatusOK, OutliersResponse{
		OutlierResult: sum.Result,
		Count:         sum.Count,
		Excluded:      sum.Excluded,
		Central:       sum.Central,
	}, h.logger)
}
