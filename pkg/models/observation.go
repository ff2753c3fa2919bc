package models

import (
	"time"

	"github.com/google/uuid"
)

// Observation is one user-submitted record about a job: what they earn, what
// it took to start and where. Raw text is kept next to the parsed values so
// records can be re-parsed when the parser improves.
// Stored in job_observations table.
type Observation struct {
	ID            uuid.UUID     `json:"id"`
	JobTitleID    int64         `json:"job_title_id"`
	City          string        `json:"city,omitempty"`
	IncomeRaw     string        `json:"income_raw,omitempty"`
	Income        MonetaryValue `json:"income"`
	InvestmentRaw string        `json:"investment_raw,omitempty"`
	Investment    MonetaryValue `json:"investment"`
	Description   string        `json:"description,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ObservationInput is the raw submission accepted by ingestion.
type ObservationInput struct {
	JobTitleID  int64  `json:"job_title_id"`
	City        string `json:"city"`
	Income      string `json:"income"`
	Investment  string `json:"investment"`
	Description string `json:"description"`
}

// ObservationPage is one page of observations for a job group.
type ObservationPage struct {
	Items   []*Observation `json:"items"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"has_more"`
}

// FieldSummary aggregates one monetary field after outlier exclusion.
type FieldSummary struct {
	Count    int       `json:"count"`    // usable values before exclusion
	Excluded int       `json:"excluded"` // outliers removed
	Central  int64     `json:"central"`
	Min      int64     `json:"min"`
	Max      int64     `json:"max"`
	Method   string    `json:"method"` // outlier method; iqr means Central is the median
	Outliers []float64 `json:"outliers,omitempty"`
}

// CityCount is the number of observations recorded for a city.
type CityCount struct {
	City  string `json:"city"`
	Count int    `json:"count"`
}

// JobSummary aggregates every observation of a job group.
type JobSummary struct {
	JobTitleID   int64        `json:"job_title_id"`
	Label        string       `json:"label"`
	GroupKey     string       `json:"group_key,omitempty"`
	Observations int          `json:"observations"`
	Income       FieldSummary `json:"income"`
	Investment   FieldSummary `json:"investment"`
	Cities       []CityCount  `json:"cities,omitempty"`
}

// IncomeRanking is one entry of the highest-paying jobs list.
type IncomeRanking struct {
	JobTitleID   int64  `json:"job_title_id"`
	Label        string `json:"label"`
	GroupKey     string `json:"group_key"`
	MedianIncome int64  `json:"median_income"`
	Count        int    `json:"count"`
}
