package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/lexicon"
	"github.com/daramad/daramad-engine/pkg/models"
)

func newTestResolver(repo *mockJobTitleRepo, opts ResolverOptions) Resolver {
	return NewResolver(repo, lexicon.Default().Tokenizer(), nil, opts, zap.NewNop())
}

func int64Ptr(v int64) *int64 { return &v }

func welderCandidates() []models.ResolutionCandidate {
	return []models.ResolutionCandidate{
		{Label: "جوشکار ساختمانی", GroupKey: "construction-welder", JobTitleID: 50, JobTitleIDs: []int64{50}, MatchLen: 6, Stage: models.StagePrefix},
		{Label: "جوشکار صنعتی", GroupKey: "industrial-welder", JobTitleID: 51, JobTitleIDs: []int64{51}, MatchLen: 6, Stage: models.StagePrefix},
	}
}

func TestResolver_ExplicitTextExact(t *testing.T) {
	r := newTestResolver(newTestCatalog(), ResolverOptions{})

	got, err := r.Resolve(context.Background(), ResolveRequest{Message: "برنامه نویس"})
	require.NoError(t, err)

	require.True(t, got.IsResolved())
	assert.Equal(t, models.StrategyExplicitText, got.Strategy)
	assert.Equal(t, models.StageExact, got.Stage)
	assert.Equal(t, "developer", got.Matched.GroupKey)
	assert.Equal(t, []int64{3}, got.Matched.JobTitleIDs)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestResolver_ShortQueryResolvesByContains(t *testing.T) {
	r := newTestResolver(newTestCatalog(), ResolverOptions{})

	got, err := r.Resolve(context.Background(), ResolveRequest{Message: "پرستار بگو"})
	require.NoError(t, err)

	require.True(t, got.IsResolved())
	assert.False(t, got.Ambiguous)
	assert.Equal(t, models.StageContains, got.Stage)
	assert.Equal(t, int64(1), got.Matched.JobTitleID)
	assert.Equal(t, "کارشناس پرستاری", got.Matched.Label)
	assert.Equal(t, []int64{1, 2}, got.Matched.JobTitleIDs)
	assert.InDelta(t, 0.55, got.Confidence, 1e-9)
}

func TestResolver_DominantGroupWins(t *testing.T) {
	r := newTestResolver(newTestCatalog(), ResolverOptions{})

	// developer (10 jobs) and web-developer (3 jobs) tie on match length.
	got, err := r.Resolve(context.Background(), ResolveRequest{Message: "برنامه"})
	require.NoError(t, err)

	require.True(t, got.IsResolved())
	assert.Equal(t, "developer", got.Matched.GroupKey)
	assert.Equal(t, models.StagePrefix, got.Stage)
}

func TestResolver_TieIsAmbiguous(t *testing.T) {
	r := newTestResolver(newTestCatalog(), ResolverOptions{})

	got, err := r.Resolve(context.Background(), ResolveRequest{Message: "راننده"})
	require.NoError(t, err)

	assert.True(t, got.Ambiguous)
	assert.Nil(t, got.Matched)
	assert.Equal(t, models.StrategyAmbiguousExplicit, got.Strategy)
	require.Len(t, got.Candidates, 2)
	groups := []string{got.Candidates[0].GroupKey, got.Candidates[1].GroupKey}
	assert.ElementsMatch(t, []string{"taxi", "truck"}, groups)
	assert.True(t, got.NeedsClarification())
}

func TestResolver_AmbiguousCappedAtMaxCandidates(t *testing.T) {
	repo := newMockJobTitleRepo()
	for i, label := range []string{"تعمیرکار یخچال", "تعمیرکار موبایل", "تعمیرکار لپ تاپ", "تعمیرکار کولر"} {
		repo.add(int64(i+1), label, label, true, 1)
	}
	r := newTestResolver(repo, ResolverOptions{MaxCandidates: 3})

	got, err := r.Resolve(context.Background(), ResolveRequest{Message: "تعمیرکار"})
	require.NoError(t, err)

	assert.True(t, got.Ambiguous)
	assert.Len(t, got.Candidates, 3)
}

func TestResolver_StrictModeDemotesWeakMatch(t *testing.T) {
	repo := newTestCatalog()

	loose := newTestResolver(repo, ResolverOptions{AcceptThreshold: 0.6})
	got, err := loose.Resolve(context.Background(), ResolveRequest{Message: "پرستار بگو"})
	require.NoError(t, err)
	assert.True(t, got.IsResolved())

	strict := newTestResolver(repo, ResolverOptions{AcceptThreshold: 0.6})
	got, err = strict.Resolve(context.Background(), ResolveRequest{Message: "پرستار بگو", Strict: true})
	require.NoError(t, err)
	assert.True(t, got.Ambiguous)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, "nurse", got.Candidates[0].GroupKey)
}

func TestResolver_ContextFollowup(t *testing.T) {
	r := newTestResolver(newTestCatalog(), ResolverOptions{})

	t.Run("narrows to one candidate", func(t *testing.T) {
		// The catalog alone is ambiguous: two industrial jobs contain the word.
		got, err := r.Resolve(context.Background(), ResolveRequest{
			Message: "صنعتی",
			Context: &models.ConversationContext{PendingCandidates: welderCandidates()},
		})
		require.NoError(t, err)
		require.True(t, got.IsResolved())
		assert.Equal(t, models.StrategyContextFollowup, got.Strategy)
		assert.Equal(t, "industrial-welder", got.Matched.GroupKey)
		assert.Equal(t, []int64{51}, got.Matched.JobTitleIDs)
	})

	t.Run("stays ambiguous on a tie", func(t *testing.T) {
		got, err := r.Resolve(context.Background(), ResolveRequest{
			Message: "جوشکار",
			Context: &models.ConversationContext{PendingCandidates: welderCandidates()},
		})
		require.NoError(t, err)
		assert.True(t, got.Ambiguous)
		assert.Equal(t, models.StrategyContextFollowup, got.Strategy)
		assert.Len(t, got.Candidates, 2)
	})

	t.Run("no overlap reports no confident match", func(t *testing.T) {
		pending := welderCandidates()
		got, err := r.Resolve(context.Background(), ResolveRequest{
			Message: "اولی",
			Context: &models.ConversationContext{PendingCandidates: pending},
		})
		require.NoError(t, err)
		assert.True(t, got.NoConfidentMatch)
		assert.False(t, got.Ambiguous)
		assert.Nil(t, got.Matched)
		assert.Equal(t, pending, got.Candidates)
		assert.True(t, got.NeedsClarification())
	})

	t.Run("explicit text outranks stale candidates", func(t *testing.T) {
		got, err := r.Resolve(context.Background(), ResolveRequest{
			Message: "راننده",
			Context: &models.ConversationContext{PendingCandidates: welderCandidates()},
		})
		require.NoError(t, err)
		assert.True(t, got.Ambiguous)
		assert.Equal(t, models.StrategyAmbiguousExplicit, got.Strategy)
		require.Len(t, got.Candidates, 2)
		assert.ElementsMatch(t, []string{"taxi", "truck"}, []string{got.Candidates[0].GroupKey, got.Candidates[1].GroupKey})
	})
}

func TestResolver_ContextIsReadFromCatalog(t *testing.T) {
	r := newTestResolver(newTestCatalog(), ResolverOptions{})
	ctx := context.Background()

	t.Run("hidden and unknown candidates are dropped", func(t *testing.T) {
		got, err := r.Resolve(ctx, ResolveRequest{
			Message: "آرایشگر",
			Context: &models.ConversationContext{PendingCandidates: []models.ResolutionCandidate{
				{Label: "آرایشگر", GroupKey: "barber", JobTitleID: 7, JobTitleIDs: []int64{7}},
				{Label: "فضانورد", GroupKey: "astronaut", JobTitleID: 999, JobTitleIDs: []int64{999}},
			}},
		})
		require.NoError(t, err)
		assert.True(t, got.IsEmpty())
		assert.False(t, got.NeedsClarification())
	})

	t.Run("labels and ids come from the catalog", func(t *testing.T) {
		got, err := r.Resolve(ctx, ResolveRequest{
			Message: "خلبان",
			Context: &models.ConversationContext{PendingCandidates: []models.ResolutionCandidate{
				{Label: "خلبان", GroupKey: "pilot", JobTitleID: 5, JobTitleIDs: []int64{5, 6}},
			}},
		})
		require.NoError(t, err)
		require.True(t, got.NoConfidentMatch)
		require.Len(t, got.Candidates, 1)
		assert.Equal(t, "راننده تاکسی", got.Candidates[0].Label)
		assert.Equal(t, "taxi", got.Candidates[0].GroupKey)
		assert.Equal(t, []int64{5}, got.Candidates[0].JobTitleIDs)
	})

	t.Run("forged remembered job is ignored", func(t *testing.T) {
		got, err := r.Resolve(ctx, ResolveRequest{
			Message: "سرمایه چقدر",
			Context: &models.ConversationContext{LastResolved: &models.ResolvedEntity{
				JobTitleID: 7, GroupKey: "barber", Label: "آرایشگر", JobTitleIDs: []int64{7},
			}},
		})
		require.NoError(t, err)
		assert.True(t, got.IsEmpty())
	})

	t.Run("remembered label is replaced by the catalog label", func(t *testing.T) {
		got, err := r.Resolve(ctx, ResolveRequest{
			Message: "سرمایه چقدر",
			Context: &models.ConversationContext{LastResolved: &models.ResolvedEntity{
				JobTitleID: 3, GroupKey: "developer", Label: "مدیرعامل", JobTitleIDs: []int64{1, 2, 3},
			}},
		})
		require.NoError(t, err)
		require.True(t, got.IsResolved())
		assert.Equal(t, "برنامه نویس", got.Matched.Label)
		assert.Equal(t, []int64{3}, got.Matched.JobTitleIDs)
	})
}

func TestResolver_ManualHint(t *testing.T) {
	r := newTestResolver(newTestCatalog(), ResolverOptions{})

	got, err := r.Resolve(context.Background(), ResolveRequest{Message: "راننده", Hint: "راننده تاکسی"})
	require.NoError(t, err)

	require.True(t, got.IsResolved())
	assert.Equal(t, models.StrategyManualHint, got.Strategy)
	assert.Equal(t, "taxi", got.Matched.GroupKey)
}

func TestResolver_RememberedContext(t *testing.T) {
	r := newTestResolver(newTestCatalog(), ResolverOptions{})
	last := &models.ResolvedEntity{JobTitleID: 1, GroupKey: "nurse", Label: "کارشناس پرستاری", JobTitleIDs: []int64{1, 2}}

	t.Run("reused when the message names no job", func(t *testing.T) {
		got, err := r.Resolve(context.Background(), ResolveRequest{
			Message: "سرمایه چقدر",
			Context: &models.ConversationContext{LastResolved: last},
		})
		require.NoError(t, err)
		require.True(t, got.IsResolved())
		assert.Equal(t, models.StrategyRememberedContext, got.Strategy)
		assert.Equal(t, "nurse", got.Matched.GroupKey)
		assert.Equal(t, 1.0, got.Confidence)
	})

	t.Run("ignored when the message names a job", func(t *testing.T) {
		got, err := r.Resolve(context.Background(), ResolveRequest{
			Message: "برنامه نویس",
			Context: &models.ConversationContext{LastResolved: last},
		})
		require.NoError(t, err)
		assert.Equal(t, "developer", got.Matched.GroupKey)
		assert.Equal(t, models.StrategyExplicitText, got.Strategy)
	})
}

func TestResolver_ExplicitRef(t *testing.T) {
	r := newTestResolver(newTestCatalog(), ResolverOptions{})
	ctx := context.Background()

	t.Run("by id keeps the clicked row", func(t *testing.T) {
		got, err := r.Resolve(ctx, ResolveRequest{Message: "راننده", Ref: &models.EntityRef{JobTitleID: int64Ptr(2)}})
		require.NoError(t, err)
		require.True(t, got.IsResolved())
		assert.Equal(t, models.StrategyExplicitRef, got.Strategy)
		assert.Equal(t, int64(2), got.Matched.JobTitleID)
		assert.Equal(t, []int64{1, 2}, got.Matched.JobTitleIDs)
	})

	t.Run("by group picks the primary", func(t *testing.T) {
		got, err := r.ResolveRef(ctx, &models.EntityRef{GroupKey: "nurse"})
		require.NoError(t, err)
		require.True(t, got.IsResolved())
		assert.Equal(t, int64(1), got.Matched.JobTitleID)
	})

	t.Run("ungrouped row", func(t *testing.T) {
		got, err := r.ResolveRef(ctx, &models.EntityRef{JobTitleID: int64Ptr(8)})
		require.NoError(t, err)
		require.True(t, got.IsResolved())
		assert.Equal(t, []int64{8}, got.Matched.JobTitleIDs)
		assert.Empty(t, got.Matched.GroupKey)
	})

	for name, ref := range map[string]*models.EntityRef{
		"hidden id":     {JobTitleID: int64Ptr(7)},
		"unknown id":    {JobTitleID: int64Ptr(999)},
		"unknown group": {GroupKey: "astronaut"},
		"hidden group":  {GroupKey: "barber"},
	} {
		t.Run(name+" resolves to nothing", func(t *testing.T) {
			got, err := r.Resolve(ctx, ResolveRequest{Ref: ref})
			require.NoError(t, err)
			assert.True(t, got.IsEmpty())
			assert.Equal(t, models.StrategyExplicitRef, got.Strategy)
		})
	}
}

func TestResolver_EmptyMessage(t *testing.T) {
	r := newTestResolver(newTestCatalog(), ResolverOptions{})

	for _, msg := range []string{"", "   ", "؟!", "لطفا بگو"} {
		got, err := r.Resolve(context.Background(), ResolveRequest{Message: msg})
		require.NoError(t, err)
		assert.True(t, got.IsEmpty(), "message %q", msg)
		assert.False(t, got.Ambiguous)
	}
}

func TestResolver_ResolveText(t *testing.T) {
	r := newTestResolver(newTestCatalog(), ResolverOptions{})

	got, err := r.ResolveText(context.Background(), "راننده تاکسی", false)
	require.NoError(t, err)
	require.True(t, got.IsResolved())
	assert.Equal(t, "taxi", got.Matched.GroupKey)

	got, err = r.ResolveText(context.Background(), "فضانورد", false)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestResolver_CatalogError(t *testing.T) {
	repo := newTestCatalog()
	repo.findErr = errors.New("connection reset")
	r := newTestResolver(repo, ResolverOptions{})

	_, err := r.Resolve(context.Background(), ResolveRequest{Message: "پرستار"})
	require.Error(t, err)
}

func TestResolver_UsesMemo(t *testing.T) {
	repo := newTestCatalog()
	memo := NewLookupMemo(16, time.Minute)
	r := NewResolver(repo, lexicon.Default().Tokenizer(), memo, ResolverOptions{}, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), ResolveRequest{Message: "پرستار بگو"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.findCalls[models.StageContains])
}

func TestFilterClosest(t *testing.T) {
	tok := lexicon.Default().Tokenizer()
	candidates := []models.ResolutionCandidate{
		{Label: "راننده تاکسی", GroupKey: "taxi", GroupJobs: 2},
		{Label: "راننده کامیون", GroupKey: "truck", GroupJobs: 8},
	}

	t.Run("never guesses without a shared token", func(t *testing.T) {
		assert.Empty(t, FilterClosest(tok, "فضانورد", candidates, 0.55, 3))
		assert.Empty(t, FilterClosest(tok, "", candidates, 0.55, 3))
		// Character overlap alone is not enough.
		assert.Empty(t, FilterClosest(tok, "رانندگی", candidates, 0.0, 3))
	})

	t.Run("single shared token", func(t *testing.T) {
		got := FilterClosest(tok, "تاکسی", candidates, 0.55, 3)
		require.Len(t, got, 1)
		assert.Equal(t, "taxi", got[0].Candidate.GroupKey)
		assert.Equal(t, 1.0, got[0].Similarity)
	})

	t.Run("ties sorted by observation count", func(t *testing.T) {
		got := FilterClosest(tok, "راننده", candidates, 0.55, 3)
		require.Len(t, got, 2)
		assert.Equal(t, "truck", got[0].Candidate.GroupKey)
	})

	t.Run("respects max", func(t *testing.T) {
		assert.Len(t, FilterClosest(tok, "راننده", candidates, 0.55, 1), 1)
	})
}
