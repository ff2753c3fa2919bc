package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/textnorm"
)

// ParseJobTitleID extracts and validates the job title ID from the request path.
// Persian and Arabic-Indic digits are accepted. Returns the ID and true on
// success, or 0 and false on error (after writing an error response).
// Expects path parameter: id
func ParseJobTitleID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	raw := strings.Map(textnorm.ToASCIIDigit, strings.TrimSpace(r.PathValue("id")))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_job_title_id", "Invalid job title ID", logger)
		return 0, false
	}
	return id, true
}

// queryInt reads a non-negative integer query parameter. Missing or malformed
// values yield def.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(strings.Map(textnorm.ToASCIIDigit, raw))
	if err != nil || v < 0 {
		return def
	}
	return v
}
