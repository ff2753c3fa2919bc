package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/logging"
	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/repositories"
	"github.com/daramad/daramad-engine/pkg/textnorm"
)

// ResolveRequest is the input of one resolution.
type ResolveRequest struct {
	Message string
	Ref     *models.EntityRef
	Context *models.ConversationContext
	Hint    string
	// Strict demotes a decisive match below the accept threshold to an
	// ambiguous result.
	Strict bool
}

// ResolverOptions tunes candidate selection.
type ResolverOptions struct {
	AcceptThreshold float64
	MaxCandidates   int
	DominanceRatio  float64
}

// DefaultResolverOptions returns the default resolver tuning.
func DefaultResolverOptions() ResolverOptions {
	return ResolverOptions{AcceptThreshold: 0.55, MaxCandidates: 3, DominanceRatio: 2.0}
}

func (o ResolverOptions) withDefaults() ResolverOptions {
	d := DefaultResolverOptions()
	if o.AcceptThreshold <= 0 {
		o.AcceptThreshold = d.AcceptThreshold
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = d.MaxCandidates
	}
	if o.DominanceRatio <= 0 {
		o.DominanceRatio = d.DominanceRatio
	}
	return o
}

// Resolver maps free text or an explicit reference to a job group.
type Resolver interface {
	// Resolve runs the resolution strategies in priority order. The result is
	// never nil; an empty result means the message carries no job context.
	Resolve(ctx context.Context, req ResolveRequest) (*models.ResolvedQuery, error)
	// ResolveRef looks up an explicit reference without fuzzy matching.
	ResolveRef(ctx context.Context, ref *models.EntityRef) (*models.ResolvedQuery, error)
	// ResolveText runs the staged catalog match and the dominance test only.
	ResolveText(ctx context.Context, message string, strict bool) (*models.ResolvedQuery, error)
}

// Tokenizer is the part of textnorm.Tokenizer the resolver depends on.
type Tokenizer interface {
	Tokens(text string) []string
	LookupPhrases(message string) []string
}

type resolver struct {
	repo      repositories.JobTitleRepository
	matcher   *EntityMatcher
	tokenizer Tokenizer
	memo      *LookupMemo
	opts      ResolverOptions
	logger    *zap.Logger
}

// NewResolver creates a Resolver. memo may be nil to disable memoization.
func NewResolver(
	repo repositories.JobTitleRepository,
	tokenizer Tokenizer,
	memo *LookupMemo,
	opts ResolverOptions,
	logger *zap.Logger,
) Resolver {
	return &resolver{
		repo:      repo,
		matcher:   NewEntityMatcher(repo, logger),
		tokenizer: tokenizer,
		memo:      memo,
		opts:      opts.withDefaults(),
		logger:    logger.Named("resolver"),
	}
}

var _ Resolver = (*resolver)(nil)

// strategy returns nil when it does not apply, letting the next one run.
type strategy struct {
	name models.ResolutionStrategy
	run  func(ctx context.Context, st *resolveState) (*models.ResolvedQuery, error)
}

// resolveState carries one request through the strategies. The text match
// is computed at most once.
type resolveState struct {
	req       ResolveRequest
	textDone  bool
	text      *MatchResult
	decisive  bool
	textError error
}

func (r *resolver) strategies() []strategy {
	return []strategy{
		{models.StrategyExplicitRef, r.explicitRef},
		{models.StrategyExplicitText, r.explicitText},
		{models.StrategyContextFollowup, r.contextFollowup},
		{models.StrategyManualHint, r.manualHint},
		{models.StrategyAmbiguousExplicit, r.ambiguousExplicit},
		{models.StrategyRememberedContext, r.rememberedContext},
	}
}

func (r *resolver) Resolve(ctx context.Context, req ResolveRequest) (*models.ResolvedQuery, error) {
	st := &resolveState{req: req}
	for _, s := range r.strategies() {
		result, err := s.run(ctx, st)
		if err != nil {
			r.logger.Error("Resolution strategy failed",
				zap.String("strategy", string(s.name)),
				zap.String("message", logging.SanitizeMessage(req.Message)),
				zap.Error(err))
			return nil, err
		}
		if result == nil {
			continue
		}
		result.Strategy = s.name
		r.logger.Debug("Resolved query",
			zap.String("strategy", string(s.name)),
			zap.String("stage", string(result.Stage)),
			zap.Bool("ambiguous", result.Ambiguous),
			zap.Bool("no_confident_match", result.NoConfidentMatch),
			zap.Int("candidates", len(result.Candidates)))
		recordResolution(result)
		return result, nil
	}

	empty := &models.ResolvedQuery{}
	recordResolution(empty)
	return empty, nil
}

func (r *resolver) ResolveText(ctx context.Context, message string, strict bool) (*models.ResolvedQuery, error) {
	st := &resolveState{req: ResolveRequest{Message: message, Strict: strict}}
	if err := r.matchText(ctx, st); err != nil {
		return nil, err
	}
	if st.text == nil {
		return &models.ResolvedQuery{}, nil
	}
	if st.decisive {
		return r.resolvedFrom(ctx, st.text.Candidates[0], st.text.Stage)
	}
	return r.ambiguousFrom(st.text), nil
}

// matchText runs the catalog match for the request message once.
func (r *resolver) matchText(ctx context.Context, st *resolveState) error {
	if st.textDone {
		return st.textError
	}
	st.textDone = true

	phrases := r.tokenizer.LookupPhrases(st.req.Message)
	result, err := r.matcher.Match(ctx, phrases, r.memo)
	if err != nil {
		st.textError = err
		return err
	}
	if result == nil || len(result.Candidates) == 0 {
		return nil
	}
	st.text = result
	st.decisive = r.isDecisive(result.Candidates)
	if st.decisive && st.req.Strict && confidenceOf(result.Candidates[0]) < r.opts.AcceptThreshold {
		st.decisive = false
	}
	return nil
}

// isDecisive reports whether the top candidate clearly beats the runner-up.
func (r *resolver) isDecisive(candidates []models.ResolutionCandidate) bool {
	if len(candidates) == 1 {
		return true
	}
	top, second := candidates[0], candidates[1]
	if top.MatchLen != second.MatchLen {
		return top.MatchLen > second.MatchLen
	}
	return top.GroupJobs > 0 && float64(top.GroupJobs) >= r.opts.DominanceRatio*float64(second.GroupJobs)
}

func (r *resolver) explicitRef(ctx context.Context, st *resolveState) (*models.ResolvedQuery, error) {
	if st.req.Ref.IsEmpty() {
		return nil, nil
	}
	return r.ResolveRef(ctx, st.req.Ref)
}

func (r *resolver) explicitText(ctx context.Context, st *resolveState) (*models.ResolvedQuery, error) {
	if err := r.matchText(ctx, st); err != nil {
		return nil, err
	}
	if st.text == nil || !st.decisive {
		return nil, nil
	}
	return r.resolvedFrom(ctx, st.text.Candidates[0], st.text.Stage)
}

// contextFollowup narrows a pending clarification with the new message. When
// nothing overlaps it reports no confident match instead of guessing, unless
// the message itself names other jobs.
func (r *resolver) contextFollowup(ctx context.Context, st *resolveState) (*models.ResolvedQuery, error) {
	if st.req.Context == nil || len(st.req.Context.PendingCandidates) == 0 {
		return nil, nil
	}
	pending, err := r.verifyPending(ctx, st.req.Context.PendingCandidates)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	closest := FilterClosest(r.tokenizer, st.req.Message, pending, r.opts.AcceptThreshold, r.opts.MaxCandidates)
	switch {
	case len(closest) == 1 || (len(closest) > 1 && closest[0].Similarity >= 1.0 && closest[1].Similarity < 1.0):
		return r.resolvedFrom(ctx, closest[0].Candidate, closest[0].Candidate.Stage)
	case len(closest) > 1:
		candidates := make([]models.ResolutionCandidate, len(closest))
		for i, c := range closest {
			candidates[i] = c.Candidate
		}
		return &models.ResolvedQuery{Ambiguous: true, Candidates: candidates}, nil
	}

	if err := r.matchText(ctx, st); err != nil {
		return nil, err
	}
	if st.text != nil {
		return nil, nil
	}
	return &models.ResolvedQuery{
		NoConfidentMatch: true,
		Candidates:       truncateCandidates(pending, r.opts.MaxCandidates),
	}, nil
}

func (r *resolver) manualHint(ctx context.Context, st *resolveState) (*models.ResolvedQuery, error) {
	hint := textnorm.NormalizeQuery(st.req.Hint)
	if hint == "" {
		return nil, nil
	}
	result, err := r.matcher.MatchStages(ctx, []string{hint}, []models.MatchStage{models.StageExact}, r.memo)
	if err != nil {
		return nil, err
	}
	if result == nil || !r.isDecisive(result.Candidates) {
		return nil, nil
	}
	return r.resolvedFrom(ctx, result.Candidates[0], result.Stage)
}

func (r *resolver) ambiguousExplicit(ctx context.Context, st *resolveState) (*models.ResolvedQuery, error) {
	if err := r.matchText(ctx, st); err != nil {
		return nil, err
	}
	if st.text == nil || st.decisive {
		return nil, nil
	}
	return r.ambiguousFrom(st.text), nil
}

// rememberedContext reuses the last resolved job when the message names none.
func (r *resolver) rememberedContext(ctx context.Context, st *resolveState) (*models.ResolvedQuery, error) {
	if st.req.Context == nil || st.req.Context.LastResolved == nil {
		return nil, nil
	}
	if err := r.matchText(ctx, st); err != nil {
		return nil, err
	}
	if st.text != nil {
		return nil, nil
	}
	id := st.req.Context.LastResolved.JobTitleID
	q, err := r.ResolveRef(ctx, &models.EntityRef{JobTitleID: &id})
	if err != nil {
		return nil, err
	}
	if !q.IsResolved() {
		return nil, nil
	}
	q.Stage = ""
	return q, nil
}

// verifyPending re-reads client-held candidates from the catalog. Hidden and
// unknown rows are dropped; ids and labels are taken from the catalog.
func (r *resolver) verifyPending(ctx context.Context, pending []models.ResolutionCandidate) ([]models.ResolutionCandidate, error) {
	out := make([]models.ResolutionCandidate, 0, len(pending))
	for _, c := range pending {
		id := c.JobTitleID
		q, err := r.ResolveRef(ctx, &models.EntityRef{JobTitleID: &id})
		if err != nil {
			return nil, err
		}
		if !q.IsResolved() {
			r.logger.Debug("Dropping pending candidate not in catalog", zap.Int64("job_title_id", id))
			continue
		}
		m := q.Matched
		c.JobTitleID = m.JobTitleID
		c.GroupKey = m.GroupKey
		c.Label = m.Label
		c.Slug = m.Slug
		c.JobTitleIDs = m.JobTitleIDs
		out = append(out, c)
	}
	return out, nil
}

func (r *resolver) ambiguousFrom(m *MatchResult) *models.ResolvedQuery {
	return &models.ResolvedQuery{
		Ambiguous:  true,
		Candidates: truncateCandidates(m.Candidates, r.opts.MaxCandidates),
		Stage:      m.Stage,
	}
}

// resolvedFrom expands a candidate to every id of its group.
func (r *resolver) resolvedFrom(ctx context.Context, c models.ResolutionCandidate, stage models.MatchStage) (*models.ResolvedQuery, error) {
	ids, err := r.repo.GroupIDs(ctx, c.GroupKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load group ids: %w", err)
	}
	if len(ids) == 0 {
		ids = c.JobTitleIDs
	}
	return &models.ResolvedQuery{
		Matched: &models.ResolvedEntity{
			JobTitleID:  c.JobTitleID,
			GroupKey:    c.GroupKey,
			Label:       c.Label,
			Slug:        c.Slug,
			JobTitleIDs: ids,
		},
		Confidence: confidenceOf(c),
		Stage:      stage,
	}, nil
}

func (r *resolver) ResolveRef(ctx context.Context, ref *models.EntityRef) (*models.ResolvedQuery, error) {
	if ref.IsEmpty() {
		return &models.ResolvedQuery{}, nil
	}

	var entity *models.JobTitle
	if ref.JobTitleID != nil {
		jt, err := r.repo.GetByID(ctx, *ref.JobTitleID)
		if err != nil {
			return nil, fmt.Errorf("failed to get job title: %w", err)
		}
		entity = jt
	} else {
		rows, err := r.repo.FindByGroupKey(ctx, ref.GroupKey)
		if err != nil {
			return nil, fmt.Errorf("failed to find job group: %w", err)
		}
		entity = groupRepresentative(rows)
	}
	if entity == nil || !entity.IsVisible {
		return &models.ResolvedQuery{}, nil
	}

	ids := []int64{entity.ID}
	if key := entity.Group(); key != "" {
		groupIDs, err := r.repo.GroupIDs(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to load group ids: %w", err)
		}
		if len(groupIDs) > 0 {
			ids = groupIDs
		}
	}

	return &models.ResolvedQuery{
		Matched: &models.ResolvedEntity{
			JobTitleID:  entity.ID,
			GroupKey:    entity.Group(),
			Label:       entity.DisplayLabel(),
			Slug:        entity.Slug,
			JobTitleIDs: ids,
		},
		Confidence: 1.0,
		Stage:      models.StageExact,
	}, nil
}

// groupRepresentative picks the single visible primary row, else the visible
// row with the smallest id.
func groupRepresentative(rows []*models.JobTitle) *models.JobTitle {
	var primary, lowest *models.JobTitle
	primaries := 0
	for _, jt := range rows {
		if jt == nil || !jt.IsVisible {
			continue
		}
		if jt.IsPrimary {
			primaries++
			primary = jt
		}
		if lowest == nil || jt.ID < lowest.ID {
			lowest = jt
		}
	}
	if primaries == 1 {
		return primary
	}
	return lowest
}

// ClosestCandidate is a pending candidate scored against a follow-up message.
type ClosestCandidate struct {
	Candidate  models.ResolutionCandidate
	Similarity float64
}

// FilterClosest keeps candidates sharing at least one token with query whose
// similarity reaches threshold, best first by similarity then observation
// count. Similarity is the larger of the character overlap ratio and the
// share of the query covered by the label, both over stemmed tokens. An empty result means nothing matched; callers must not fall back
// to an arbitrary candidate.
func FilterClosest(tok Tokenizer, query string, candidates []models.ResolutionCandidate, threshold float64, maxResults int) []ClosestCandidate {
	queryTokens := tok.Tokens(query)
	if len(queryTokens) == 0 {
		return nil
	}
	querySet := make(map[string]struct{}, len(queryTokens))
	for _, t := range queryTokens {
		querySet[t] = struct{}{}
	}
	queryJoined := strings.Join(queryTokens, " ")

	var out []ClosestCandidate
	for _, c := range candidates {
		labelTokens := tok.Tokens(c.Label)
		if !sharesToken(querySet, labelTokens) {
			continue
		}
		labelJoined := strings.Join(labelTokens, " ")
		sim := max(textnorm.SimilarityRatio(queryJoined, labelJoined), textnorm.CoverageRatio(queryJoined, labelJoined))
		if sim < threshold {
			continue
		}
		out = append(out, ClosestCandidate{Candidate: c, Similarity: sim})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return jobsOf(out[i].Candidate) > jobsOf(out[j].Candidate)
	})
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

func sharesToken(set map[string]struct{}, tokens []string) bool {
	for _, t := range tokens {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

func jobsOf(c models.ResolutionCandidate) int {
	if c.JobsCount != nil {
		return max(*c.JobsCount, c.GroupJobs)
	}
	return c.GroupJobs
}

func confidenceOf(c models.ResolutionCandidate) float64 {
	if c.Confidence == nil {
		return 0
	}
	return *c.Confidence
}

func truncateCandidates(c []models.ResolutionCandidate, n int) []models.ResolutionCandidate {
	if n > 0 && len(c) > n {
		c = c[:n]
	}
	out := make([]models.ResolutionCandidate, len(c))
	copy(out, c)
	return out
}
