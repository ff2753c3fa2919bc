// Package models contains domain types for daramad-engine.
package models

import "time"

// JobTitle is a canonical job-title row. Rows sharing a GroupKey are
// spelling or wording variants of the same job. Exactly one row per group
// should be primary; nothing enforces it, so readers re-derive the
// representative.
// Stored in job_titles table.
type JobTitle struct {
	ID         int64     `json:"id"`
	GroupKey   *string   `json:"group_key,omitempty"`
	Label      string    `json:"label"`
	BaseLabel  string    `json:"base_label,omitempty"`
	Slug       string    `json:"slug,omitempty"`
	IsPrimary  bool      `json:"is_primary"`
	IsVisible  bool      `json:"is_visible"`
	CategoryID *int64    `json:"category_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DisplayLabel returns the preferred display form, falling back to Label.
func (j *JobTitle) DisplayLabel() string {
	if j.BaseLabel != "" {
		return j.BaseLabel
	}
	return j.Label
}

// Group returns the group key or the empty string for ungrouped rows.
func (j *JobTitle) Group() string {
	if j.GroupKey == nil {
		return ""
	}
	return *j.GroupKey
}

// MatchStage is one pass of the staged catalog search.
type MatchStage string

// Catalog search stages, tried in this order.
const (
	StageExact    MatchStage = "exact"    // phrase equals label, base label, slug or normalized label
	StagePrefix   MatchStage = "prefix"   // label starts with phrase
	StageContains MatchStage = "contains" // label contains phrase
)

// MatchStages lists the stages in search order.
var MatchStages = []MatchStage{StageExact, StagePrefix, StageContains}

// String returns the string representation of a MatchStage.
func (s MatchStage) String() string {
	return string(s)
}

// IsValid returns true if the stage is one of the known search stages.
func (s MatchStage) IsValid() bool {
	switch s {
	case StageExact, StagePrefix, StageContains:
		return true
	default:
		return false
	}
}

// JobTitleMatch is a catalog row returned for a lookup phrase, together with
// the observation counts used for ranking.
type JobTitleMatch struct {
	JobTitle       JobTitle
	MatchedPhrase  string
	JobsCount      int // observations linked to this row
	GroupTotalJobs int // observations linked to any row of the group
}

// EntityRef is an already-known job reference, e.g. a menu selection.
// JobTitleID takes precedence over GroupKey.
type EntityRef struct {
	JobTitleID *int64 `json:"job_title_id,omitempty"`
	GroupKey   string `json:"group_key,omitempty"`
}

// IsEmpty reports whether the reference names nothing.
func (r *EntityRef) IsEmpty() bool {
	return r == nil || (r.JobTitleID == nil && r.GroupKey == "")
}
