package models

import (
	"encoding/json"
	"time"
)

// ModelTier selects the answer phrasing model and the cache TTL.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierStandard ModelTier = "standard"
	TierPremium  ModelTier = "premium"
)

// String returns the string representation of a ModelTier.
func (t ModelTier) String() string {
	return string(t)
}

// IsValid returns true if the tier is known.
func (t ModelTier) IsValid() bool {
	switch t {
	case TierFast, TierStandard, TierPremium:
		return true
	default:
		return false
	}
}

// ResponseSource records where an answer came from. It decides whether a
// cached answer may be served and is shown to clients as a hint.
type ResponseSource string

const (
	// SourceInternalData is an answer composed from stored observations
	// without a language model. Cached entries of this kind are rejected
	// once a paid model key is configured.
	SourceInternalData ResponseSource = "internal_data"

	// SourceModel is an answer phrased by a language model. Cacheable.
	SourceModel ResponseSource = "model"

	// SourceClarification lists candidate jobs for the user to choose from.
	// Cacheable.
	SourceClarification ResponseSource = "clarification"

	// SourceFallback is returned when no data is available. Never stored.
	SourceFallback ResponseSource = "fallback"

	// SourceCache marks an answer served from the response cache. Display
	// hint only; never stored.
	SourceCache ResponseSource = "cache"
)

// String returns the string representation of a ResponseSource.
func (s ResponseSource) String() string {
	return string(s)
}

// Cacheable reports whether answers of this source may be written to the cache.
func (s ResponseSource) Cacheable() bool {
	switch s {
	case SourceInternalData, SourceModel, SourceClarification:
		return true
	default:
		return false
	}
}

// ResponsePayload is the cached body of an answer.
type ResponsePayload struct {
	Text   string          `json:"text"`
	Source ResponseSource  `json:"source"`
	Intent Intent          `json:"intent"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// CacheEntry is a stored answer. Key embeds NamespaceVersion, so entries
// written under an older version are unreachable after a bump.
type CacheEntry struct {
	Key              string          `json:"key"`
	Payload          ResponsePayload `json:"payload"`
	CreatedAt        time.Time       `json:"created_at"`
	TTL              time.Duration   `json:"ttl"`
	Tier             ModelTier       `json:"tier"`
	NamespaceVersion int64           `json:"namespace_version"`
}
