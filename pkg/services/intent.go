package services

import (
	"github.com/daramad/daramad-engine/pkg/lexicon"
	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/textnorm"
)

// IntentClassifier routes a message to one intent of the closed set.
// It is a pure function of the message and the resolution.
type IntentClassifier struct {
	lex *lexicon.Lexicon
}

// NewIntentClassifier creates a classifier over the lexicon keyword sets.
func NewIntentClassifier(lex *lexicon.Lexicon) *IntentClassifier {
	return &IntentClassifier{lex: lex}
}

// Classify returns the intent of message given its resolution, which may be
// nil. The first matching rule wins; a global high-income question outranks
// any resolved job.
func (c *IntentClassifier) Classify(message string, resolution *models.ResolvedQuery) models.Intent {
	intent := c.classify(textnorm.NormalizeQuery(message), resolution)
	intentsTotal.WithLabelValues(string(intent)).Inc()
	return intent
}

func (c *IntentClassifier) classify(normalized string, resolution *models.ResolvedQuery) models.Intent {
	switch {
	case c.lex.MatchesHighIncome(normalized):
		return models.IntentGeneralHighIncome
	case resolution.NeedsClarification():
		return models.IntentClarification
	}

	resolved := resolution.IsResolved()
	switch {
	case resolved && c.lex.HasIncomeKeyword(normalized):
		return models.IntentJobIncome
	case !resolved:
		return models.IntentGeneralExploratory
	case c.lex.HasExplorationKeyword(normalized) || c.lex.HasInvestmentKeyword(normalized):
		return models.IntentGeneralExploratory
	default:
		return models.IntentUnknown
	}
}
