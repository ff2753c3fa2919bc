// Package llm rewrites composed answers into natural Persian with a hosted
// language model. Phrasers only rephrase facts they are given; every number
// in an answer comes from stored observations.
package llm

import (
	"context"
)

// PhraseRequest is one answer to rephrase.
type PhraseRequest struct {
	Question string // the user's message
	Draft    string // plain data line composed from observations
	Intent   string
}

// Phraser turns a drafted answer into a conversational reply.
// Use this interface for dependency injection to enable mocking in tests.
type Phraser interface {
	// Phrase returns the rephrased answer.
	Phrase(ctx context.Context, req PhraseRequest) (string, error)

	// Model returns the configured model name.
	Model() string
}

// Ensure both providers implement Phraser at compile time.
var (
	_ Phraser = (*OpenAIPhraser)(nil)
	_ Phraser = (*AnthropicPhraser)(nil)
)

const systemMessage = `You answer questions about jobs, income and startup costs in Iran.
Rewrite the draft answer as a short, friendly reply in Persian.
Keep every number, unit and job name from the draft exactly as written.
Never add numbers, estimates or jobs that are not in the draft.
If the draft says the data is unknown, say so plainly.`

func buildPrompt(req PhraseRequest) string {
	return "Question: " + req.Question + "\nIntent: " + req.Intent + "\nDraft answer:\n" + req.Draft
}
