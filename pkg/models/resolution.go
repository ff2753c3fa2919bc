package models

// ResolutionCandidate is one job group proposed for a query. Rows sharing a
// group key are merged into a single candidate before ranking.
type ResolutionCandidate struct {
	Label          string     `json:"label"`
	JobTitleID     int64      `json:"job_title_id"` // representative (primary) row
	GroupKey       string     `json:"group_key"`
	Slug           string     `json:"slug,omitempty"`
	Score          float64    `json:"score"` // relative ranking value, not a probability
	MatchLen       int        `json:"match_len"`
	GroupJobs      int        `json:"group_jobs"`
	GroupTotalJobs int        `json:"group_total_jobs"`
	JobTitleIDs    []int64    `json:"job_title_ids"`
	Stage          MatchStage `json:"stage,omitempty"`

	JobsCount  *int     `json:"jobs_count,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// ResolvedEntity identifies the job a query was resolved to.
type ResolvedEntity struct {
	JobTitleID  int64   `json:"job_title_id"`
	GroupKey    string  `json:"group_key"`
	Label       string  `json:"label"`
	Slug        string  `json:"slug,omitempty"`
	JobTitleIDs []int64 `json:"job_title_ids"`
}

// ResolutionStrategy names the resolver strategy that produced a result.
type ResolutionStrategy string

// Resolver strategies in priority order.
const (
	StrategyExplicitRef       ResolutionStrategy = "explicit_ref"
	StrategyExplicitText      ResolutionStrategy = "explicit_text"
	StrategyContextFollowup   ResolutionStrategy = "context_followup"
	StrategyManualHint        ResolutionStrategy = "manual_hint"
	StrategyAmbiguousExplicit ResolutionStrategy = "ambiguous_explicit"
	StrategyRememberedContext ResolutionStrategy = "remembered_context"
)

// ResolvedQuery is the outcome of resolving a message. Exactly one of three
// shapes is populated: a match, an ambiguous candidate list, or nothing.
type ResolvedQuery struct {
	Matched    *ResolvedEntity       `json:"matched,omitempty"`
	Confidence float64               `json:"confidence,omitempty"`
	Ambiguous  bool                  `json:"ambiguous"`
	Candidates []ResolutionCandidate `json:"candidates,omitempty"`

	// NoConfidentMatch is set when a clarification follow-up matched none of
	// the pending candidates. Callers must say so instead of guessing.
	NoConfidentMatch bool               `json:"no_confident_match,omitempty"`
	Strategy         ResolutionStrategy `json:"strategy,omitempty"`
	Stage            MatchStage         `json:"stage,omitempty"`
}

// IsResolved reports whether a single entity was matched.
func (q *ResolvedQuery) IsResolved() bool {
	return q != nil && q.Matched != nil && !q.Ambiguous
}

// IsEmpty reports whether the result carries no job context at all.
func (q *ResolvedQuery) IsEmpty() bool {
	return q == nil || (q.Matched == nil && len(q.Candidates) == 0)
}

// NeedsClarification reports whether the caller must ask the user to choose.
func (q *ResolvedQuery) NeedsClarification() bool {
	return q != nil && (q.Ambiguous || q.NoConfidentMatch)
}

// ConversationContext is the resolver state carried between turns by the caller.
type ConversationContext struct {
	LastResolved      *ResolvedEntity       `json:"last_resolved,omitempty"`
	PendingCandidates []ResolutionCandidate `json:"pending_candidates,omitempty"`
}
