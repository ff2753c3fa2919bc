package services

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/repositories"
	"github.com/daramad/daramad-engine/pkg/textnorm"
)

// MatchResult is the ranked output of one EntityMatcher run.
type MatchResult struct {
	Stage      models.MatchStage
	Candidates []models.ResolutionCandidate
}

// EntityMatcher searches the job-title catalog for lookup phrases in staged
// passes and ranks the matching groups.
type EntityMatcher struct {
	repo   repositories.JobTitleRepository
	logger *zap.Logger
}

// NewEntityMatcher creates an EntityMatcher over the given catalog.
func NewEntityMatcher(repo repositories.JobTitleRepository, logger *zap.Logger) *EntityMatcher {
	return &EntityMatcher{repo: repo, logger: logger.Named("entity-matcher")}
}

// Match runs the exact, prefix and contains stages in order over all phrases
// and stops at the first stage that returns any row. A nil result means no
// stage matched.
func (m *EntityMatcher) Match(ctx context.Context, phrases []string, memo *LookupMemo) (*MatchResult, error) {
	if len(phrases) == 0 {
		return nil, nil
	}
	return m.MatchStages(ctx, phrases, models.MatchStages, memo)
}

// MatchStages is Match restricted to the given stages.
func (m *EntityMatcher) MatchStages(ctx context.Context, phrases []string, stages []models.MatchStage, memo *LookupMemo) (*MatchResult, error) {
	for _, stage := range stages {
		rows, err := memo.Lookup(ctx, stage, phrases, m.repo.FindByPhrases)
		if err != nil {
			return nil, fmt.Errorf("failed to search catalog: %w", err)
		}
		if len(rows) == 0 {
			continue
		}

		candidates := GroupMatches(rows, stage)
		if len(candidates) == 0 {
			continue
		}
		m.logger.Debug("Catalog match",
			zap.String("stage", string(stage)),
			zap.Int("rows", len(rows)),
			zap.Int("groups", len(candidates)),
		)
		return &MatchResult{Stage: stage, Candidates: candidates}, nil
	}
	return nil, nil
}

type groupAcc struct {
	rows      []models.JobTitleMatch
	matchLen  int
	jobs      int
	totalJobs int
}

// GroupMatches merges rows sharing a group key into one candidate each and
// ranks them best first by (match length, group jobs, group total jobs),
// then label. Hidden rows and rows without a group are ignored.
func GroupMatches(rows []models.JobTitleMatch, stage models.MatchStage) []models.ResolutionCandidate {
	groups := make(map[string]*groupAcc)
	var order []string
	for _, row := range rows {
		key := row.JobTitle.Group()
		if key == "" || !row.JobTitle.IsVisible {
			continue
		}
		acc, ok := groups[key]
		if !ok {
			acc = &groupAcc{}
			groups[key] = acc
			order = append(order, key)
		}
		acc.rows = append(acc.rows, row)
		acc.matchLen = max(acc.matchLen, utf8.RuneCountInString(row.MatchedPhrase))
		acc.jobs += row.JobsCount
		acc.totalJobs = max(acc.totalJobs, row.GroupTotalJobs)
	}

	candidates := make([]models.ResolutionCandidate, 0, len(order))
	sumJobs := 0
	for _, key := range order {
		sumJobs += groups[key].jobs
	}

	for _, key := range order {
		acc := groups[key]
		rep := representative(acc.rows)

		ids := make([]int64, 0, len(acc.rows))
		for _, r := range acc.rows {
			ids = append(ids, r.JobTitle.ID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		jobsCount := rep.JobsCount
		confidence := matchConfidence(stage, acc, sumJobs, len(order))
		candidates = append(candidates, models.ResolutionCandidate{
			Label:          rep.JobTitle.DisplayLabel(),
			JobTitleID:     rep.JobTitle.ID,
			GroupKey:       key,
			Slug:           rep.JobTitle.Slug,
			Score:          float64(acc.matchLen) + float64(acc.jobs)/float64(acc.jobs+1),
			MatchLen:       acc.matchLen,
			GroupJobs:      acc.jobs,
			GroupTotalJobs: acc.totalJobs,
			JobTitleIDs:    ids,
			Stage:          stage,
			JobsCount:      &jobsCount,
			Confidence:     &confidence,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.MatchLen != b.MatchLen {
			return a.MatchLen > b.MatchLen
		}
		if a.GroupJobs != b.GroupJobs {
			return a.GroupJobs > b.GroupJobs
		}
		if a.GroupTotalJobs != b.GroupTotalJobs {
			return a.GroupTotalJobs > b.GroupTotalJobs
		}
		return a.Label < b.Label
	})
	return candidates
}

// representative picks the group's primary row. With no primary, or more
// than one, the row with the longest match wins, then the smallest id.
func representative(rows []models.JobTitleMatch) models.JobTitleMatch {
	var primaries []models.JobTitleMatch
	for _, r := range rows {
		if r.JobTitle.IsPrimary {
			primaries = append(primaries, r)
		}
	}
	if len(primaries) == 1 {
		return primaries[0]
	}

	pool := rows
	if len(primaries) > 1 {
		pool = primaries
	}
	best := pool[0]
	for _, r := range pool[1:] {
		rl, bl := utf8.RuneCountInString(r.MatchedPhrase), utf8.RuneCountInString(best.MatchedPhrase)
		if rl > bl || (rl == bl && r.JobTitle.ID < best.JobTitle.ID) {
			best = r
		}
	}
	return best
}

// matchConfidence is 1 for exact matches. Otherwise it blends how much of
// the matched label the phrase covers with the group's share of
// observations among all matched groups.
func matchConfidence(stage models.MatchStage, acc *groupAcc, sumJobs, groupCount int) float64 {
	if stage == models.StageExact {
		return 1.0
	}

	coverage := 0.0
	for _, r := range acc.rows {
		labelLen := shortestLabelLen(r.JobTitle)
		if labelLen == 0 {
			continue
		}
		c := float64(utf8.RuneCountInString(r.MatchedPhrase)) / float64(labelLen)
		coverage = max(coverage, min(c, 1.0))
	}

	popularity := 1.0 / float64(groupCount)
	if sumJobs > 0 {
		popularity = float64(acc.jobs) / float64(sumJobs)
	}
	return 0.75*coverage + 0.25*popularity
}

func shortestLabelLen(jt models.JobTitle) int {
	n := utf8.RuneCountInString(textnorm.NormalizeQuery(jt.Label))
	if b := utf8.RuneCountInString(textnorm.NormalizeQuery(jt.BaseLabel)); b > 0 && (n == 0 || b < n) {
		n = b
	}
	return n
}
