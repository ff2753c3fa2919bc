package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/apperrors"
	"github.com/daramad/daramad-engine/pkg/audit"
	"github.com/daramad/daramad-engine/pkg/llm"
	"github.com/daramad/daramad-engine/pkg/logging"
	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/textnorm"
)

const topIncomeListSize = 5

// AskRequest is one user turn.
type AskRequest struct {
	Message  string
	Category string
	Tier     models.ModelTier
	Context  *models.ConversationContext
	Ref      *models.EntityRef
	Hint     string
	Strict   bool
	ClientIP string
}

// AskResponse is the answer to one turn. Context is the state the caller
// sends back with the next turn.
type AskResponse struct {
	Text       string                      `json:"text"`
	Source     models.ResponseSource       `json:"source"`
	Intent     models.Intent               `json:"intent"`
	Resolution *models.ResolvedQuery       `json:"resolution"`
	Data       json.RawMessage             `json:"data,omitempty"`
	CacheKey   string                      `json:"cache_key,omitempty"`
	Context    *models.ConversationContext `json:"context,omitempty"`
}

// answerData is the structured part of an answer.
type answerData struct {
	Summary    *models.JobSummary           `json:"summary,omitempty"`
	Rankings   []models.IncomeRanking       `json:"rankings,omitempty"`
	Candidates []models.ResolutionCandidate `json:"candidates,omitempty"`
}

// ChatService answers free-text questions about jobs from stored observations.
type ChatService interface {
	Ask(ctx context.Context, req AskRequest) (*AskResponse, error)
}

type chatService struct {
	resolver     Resolver
	classifier   *IntentClassifier
	observations ObservationService
	cache        *ResponseCache
	phrasers     map[models.ModelTier]llm.Phraser
	auditor      *audit.SecurityAuditor
	logger       *zap.Logger
}

// NewChatService creates a ChatService. cache may be nil to disable caching;
// tiers without a phraser are answered with the unphrased draft.
func NewChatService(
	resolver Resolver,
	classifier *IntentClassifier,
	observations ObservationService,
	cache *ResponseCache,
	phrasers map[models.ModelTier]llm.Phraser,
	auditor *audit.SecurityAuditor,
	logger *zap.Logger,
) ChatService {
	return &chatService{
		resolver:     resolver,
		classifier:   classifier,
		observations: observations,
		cache:        cache,
		phrasers:     phrasers,
		auditor:      auditor,
		logger:       logger.Named("chat-service"),
	}
}

var _ ChatService = (*chatService)(nil)

func (s *chatService) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	if strings.TrimSpace(req.Message) == "" && req.Ref.IsEmpty() {
		return nil, fmt.Errorf("%w: message is required", apperrors.ErrInvalidInput)
	}
	if !req.Tier.IsValid() {
		req.Tier = models.TierFast
	}

	if s.auditor != nil {
		s.auditor.ScreenMessage(ctx, "ask", "message", req.Message, req.ClientIP)
	}

	resolution, err := s.resolver.Resolve(ctx, ResolveRequest{
		Message: req.Message,
		Ref:     req.Ref,
		Context: req.Context,
		Hint:    req.Hint,
		Strict:  req.Strict,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve message: %w", err)
	}
	intent := s.classifier.Classify(req.Message, resolution)
	nextContext := followupContext(req.Context, resolution)

	var label string
	if resolution.IsResolved() {
		label = resolution.Matched.Label
	}
	parts := KeyParts{
		Message:       req.Message,
		Category:      req.Category,
		Tier:          req.Tier,
		ResolvedLabel: label,
		Intent:        intent,
	}

	// Clarifications built from the client's pending candidates are not a
	// function of the key, so they bypass the cache in both directions.
	useCache := s.cache != nil && !dependsOnContext(resolution)

	var key string
	var version int64
	if useCache {
		key, version, err = s.cache.Key(ctx, parts)
		if err != nil {
			s.logger.Warn("Response cache unavailable", zap.Error(err))
		} else if entry, hit, err := s.cache.Get(ctx, key, textnorm.NormalizeQuery(req.Message)); err != nil {
			s.logger.Warn("Response cache read failed", zap.String("key", key), zap.Error(err))
		} else if hit {
			return &AskResponse{
				Text:       entry.Payload.Text,
				Source:     models.SourceCache,
				Intent:     intent,
				Resolution: resolution,
				Data:       entry.Payload.Data,
				CacheKey:   key,
				Context:    nextContext,
			}, nil
		}
	}

	payload, err := s.compose(ctx, req, intent, resolution)
	if err != nil {
		return nil, err
	}

	if payload.Source == models.SourceInternalData {
		payload = s.phrase(ctx, req, payload)
	}

	if useCache && key != "" && payload.Source.Cacheable() {
		if err := s.cache.Store(ctx, key, version, req.Tier, payload); err != nil {
			s.logger.Warn("Failed to cache answer", zap.String("key", key), zap.Error(err))
		}
	}

	resp := &AskResponse{
		Text:       payload.Text,
		Source:     payload.Source,
		Intent:     intent,
		Resolution: resolution,
		Data:       payload.Data,
		Context:    nextContext,
	}
	if payload.Source.Cacheable() {
		resp.CacheKey = key
	}
	return resp, nil
}

// compose builds the answer for an intent from stored observations.
func (s *chatService) compose(ctx context.Context, req AskRequest, intent models.Intent, resolution *models.ResolvedQuery) (models.ResponsePayload, error) {
	switch {
	case intent == models.IntentGeneralHighIncome:
		rankings, err := s.observations.TopByIncome(ctx, topIncomeListSize)
		if err != nil {
			return models.ResponsePayload{}, fmt.Errorf("failed to rank jobs by income: %w", err)
		}
		if len(rankings) == 0 {
			return fallback(intent, "هنوز داده کافی برای مقایسه درآمد مشاغل ثبت نشده است."), nil
		}
		return withData(models.ResponsePayload{
			Text:   rankingText(rankings),
			Source: models.SourceInternalData,
			Intent: intent,
		}, answerData{Rankings: rankings}), nil

	case intent == models.IntentClarification:
		return withData(models.ResponsePayload{
			Text:   clarificationText(resolution),
			Source: models.SourceClarification,
			Intent: intent,
		}, answerData{Candidates: resolution.Candidates}), nil

	case resolution.IsResolved():
		summary, err := s.observations.Summary(ctx, resolution.Matched.JobTitleID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return fallback(intent, "اطلاعاتی برای این شغل پیدا نشد."), nil
		}
		if err != nil {
			return models.ResponsePayload{}, fmt.Errorf("failed to summarize job: %w", err)
		}
		if summary.Observations == 0 {
			return fallback(intent, fmt.Sprintf("هنوز تجربه‌ای برای «%s» ثبت نشده است.", resolution.Matched.Label)), nil
		}
		return withData(models.ResponsePayload{
			Text:   summaryText(summary),
			Source: models.SourceInternalData,
			Intent: intent,
		}, answerData{Summary: summary}), nil
	}

	s.logger.Debug("No job context for message",
		zap.String("message", logging.SanitizeMessage(req.Message)),
		zap.String("intent", string(intent)))
	return fallback(intent, "نام شغل مورد نظر را بنویسید تا اطلاعات درآمد و سرمایه آن را بگوییم."), nil
}

// phrase rewrites an internal-data answer with the tier's model. On failure
// the draft is returned unchanged.
func (s *chatService) phrase(ctx context.Context, req AskRequest, payload models.ResponsePayload) models.ResponsePayload {
	phraser, ok := s.phrasers[req.Tier]
	if !ok || phraser == nil {
		return payload
	}

	text, err := phraser.Phrase(ctx, llm.PhraseRequest{
		Question: req.Message,
		Draft:    payload.Text,
		Intent:   string(payload.Intent),
	})
	if err != nil {
		classified := llm.ClassifyError(err)
		s.logger.Warn("Phrasing failed, serving draft",
			zap.String("tier", string(req.Tier)),
			zap.String("model", phraser.Model()),
			zap.String("error_type", string(classified.Type)),
			zap.Bool("retryable", classified.Retryable),
			zap.String("error", logging.SanitizeError(err)))
		return payload
	}
	if strings.TrimSpace(text) == "" {
		return payload
	}

	payload.Text = text
	payload.Source = models.SourceModel
	return payload
}

// dependsOnContext reports whether the answer lists candidates that came from
// the conversation rather than from the message.
func dependsOnContext(q *models.ResolvedQuery) bool {
	return q.NoConfidentMatch || (q.Strategy == models.StrategyContextFollowup && q.NeedsClarification())
}

// followupContext derives the conversation state for the next turn.
func followupContext(prev *models.ConversationContext, q *models.ResolvedQuery) *models.ConversationContext {
	next := &models.ConversationContext{}
	if prev != nil {
		next.LastResolved = prev.LastResolved
	}
	switch {
	case q.IsResolved():
		next.LastResolved = q.Matched
	case q.NeedsClarification():
		next.PendingCandidates = q.Candidates
	}
	return next
}

func fallback(intent models.Intent, text string) models.ResponsePayload {
	return models.ResponsePayload{Text: text, Source: models.SourceFallback, Intent: intent}
}

func withData(p models.ResponsePayload, data answerData) models.ResponsePayload {
	raw, err := json.Marshal(data)
	if err == nil {
		p.Data = raw
	}
	return p
}

func clarificationText(q *models.ResolvedQuery) string {
	labels := make([]string, 0, len(q.Candidates))
	for _, c := range q.Candidates {
		labels = append(labels, c.Label)
	}
	if q.NoConfidentMatch {
		return "پیام شما با هیچ‌کدام از این گزینه‌ها مطابقت نداشت: " + strings.Join(labels, "، ") + ". لطفا یکی را انتخاب کنید."
	}
	return "منظورتان کدام شغل است؟ " + strings.Join(labels, "، ")
}

func rankingText(rankings []models.IncomeRanking) string {
	var b strings.Builder
	b.WriteString("پردرآمدترین مشاغل بر اساس تجربه‌های ثبت‌شده:")
	for i, r := range rankings {
		fmt.Fprintf(&b, "\n%d. %s: میانه درآمد ماهانه %s تومان (%d تجربه)",
			i+1, r.Label, formatToman(r.MedianIncome), r.Count)
	}
	return b.String()
}

func summaryText(s *models.JobSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d تجربه ثبت‌شده)", s.Label, s.Observations)
	writeField(&b, "درآمد ماهانه", s.Income)
	writeField(&b, "سرمایه اولیه", s.Investment)
	if len(s.Cities) > 0 {
		cities := make([]string, 0, min(len(s.Cities), 3))
		for _, c := range s.Cities[:min(len(s.Cities), 3)] {
			cities = append(cities, c.City)
		}
		b.WriteString("\nشهرها: " + strings.Join(cities, "، "))
	}
	return b.String()
}

func writeField(b *strings.Builder, name string, f models.FieldSummary) {
	if f.Count-f.Excluded <= 0 {
		fmt.Fprintf(b, "\n%s: نامشخص", name)
		return
	}
	kind := "میانگین"
	if f.Method == "iqr" {
		kind = "میانه"
	}
	fmt.Fprintf(b, "\n%s: %s %s تومان (بین %s تا %s، از %d پاسخ)",
		name, kind, formatToman(f.Central), formatToman(f.Min), formatToman(f.Max), f.Count)
}

// formatToman renders an amount with thousands separators.
func formatToman(v int64) string {
	s := strconv.FormatInt(v, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
