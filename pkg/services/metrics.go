package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/daramad/daramad-engine/pkg/models"
)

var (
	// resolutionsTotal counts resolver outcomes.
	// Labels: outcome (matched, ambiguous, no_confident_match, none), strategy, stage
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "daramad",
		Subsystem: "resolver",
		Name:      "resolutions_total",
		Help:      "Resolver outcomes by strategy and match stage",
	}, []string{"outcome", "strategy", "stage"})

	// catalogLookupsTotal counts catalog probes and memo hits.
	// Labels: stage, result (memo_hit, query)
	catalogLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "daramad",
		Subsystem: "resolver",
		Name:      "catalog_lookups_total",
		Help:      "Catalog lookups by stage, split into memo hits and queries",
	}, []string{"stage", "result"})

	// moneyParsesTotal counts monetary parse outcomes.
	// Labels: profile (income, investment), status
	moneyParsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "daramad",
		Subsystem: "money",
		Name:      "parses_total",
		Help:      "Monetary parse results by profile and status",
	}, []string{"profile", "status"})

	// outlierDetectionsTotal counts outlier detection runs.
	// Labels: method (none, iqr, zscore), flagged (true, false)
	outlierDetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "daramad",
		Subsystem: "stats",
		Name:      "outlier_detections_total",
		Help:      "Outlier detection runs by method and whether anything was flagged",
	}, []string{"method", "flagged"})

	// intentsTotal counts classified intents.
	// Labels: intent
	intentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "daramad",
		Subsystem: "intent",
		Name:      "classified_total",
		Help:      "Classified message intents",
	}, []string{"intent"})

	// cacheEventsTotal counts response cache events.
	// Labels: event (hit, miss, rejected, store, error, feedback_extend, feedback_delete, invalidate)
	cacheEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "daramad",
		Subsystem: "cache",
		Name:      "events_total",
		Help:      "Response cache events",
	}, []string{"event"})
)

func recordResolution(q *models.ResolvedQuery) {
	outcome := "none"
	switch {
	case q.NoConfidentMatch:
		outcome = "no_confident_match"
	case q.Ambiguous:
		outcome = "ambiguous"
	case q.Matched != nil:
		outcome = "matched"
	}
	resolutionsTotal.WithLabelValues(outcome, string(q.Strategy), string(q.Stage)).Inc()
}

func recordMoneyParse(profile string, status models.MoneyStatus) {
	moneyParsesTotal.WithLabelValues(profile, string(status)).Inc()
}

func recordOutlierDetection(method string, flagged bool) {
	f := "false"
	if flagged {
		f = "true"
	}
	outlierDetectionsTotal.WithLabelValues(method, f).Inc()
}

func recordCacheEvent(event string) {
	cacheEventsTotal.WithLabelValues(event).Inc()
}
