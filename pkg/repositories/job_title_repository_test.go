//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/testhelpers"
)

// catalogTestContext holds test dependencies for catalog repository tests.
// Each test uses its own group keys so tests can share the container.
type catalogTestContext struct {
	t        *testing.T
	ctx      context.Context
	repo     JobTitleRepository
	obsRepo  ObservationRepository
	groupKey string
}

func setupCatalogTest(t *testing.T) *catalogTestContext {
	engineDB := testhelpers.GetEngineDB(t)
	tc := &catalogTestContext{
		t:        t,
		ctx:      engineDB.Scoped(t),
		repo:     NewJobTitleRepository(),
		obsRepo:  NewObservationRepository(),
		groupKey: "test-" + uuid.NewString(),
	}
	t.Cleanup(func() {
		_, _ = engineDB.DB.Pool.Exec(context.Background(), "DELETE FROM job_titles WHERE group_key LIKE $1", tc.groupKey+"%")
	})
	return tc
}

func (tc *catalogTestContext) createJobTitle(groupSuffix, label string, primary, visible bool) *models.JobTitle {
	tc.t.Helper()
	group := tc.groupKey + groupSuffix
	jt := &models.JobTitle{
		GroupKey:  &group,
		Label:     label,
		Slug:      uuid.NewString(),
		IsPrimary: primary,
		IsVisible: visible,
	}
	require.NoError(tc.t, tc.repo.Create(tc.ctx, jt))
	return jt
}

func (tc *catalogTestContext) addObservation(jobTitleID int64, income int64) {
	tc.t.Helper()
	obs := &models.Observation{
		JobTitleID: jobTitleID,
		Income:     models.MonetaryValue{Status: models.MoneyOK, Value: income, Min: income, Max: income},
		Investment: models.MonetaryValue{Status: models.MoneyUnknown},
	}
	require.NoError(tc.t, tc.obsRepo.Create(tc.ctx, obs))
}

// onlyGroup filters matches to the rows created by this test.
func (tc *catalogTestContext) onlyGroup(matches []models.JobTitleMatch) []models.JobTitleMatch {
	var out []models.JobTitleMatch
	for _, m := range matches {
		if len(m.JobTitle.Group()) >= len(tc.groupKey) && m.JobTitle.Group()[:len(tc.groupKey)] == tc.groupKey {
			out = append(out, m)
		}
	}
	return out
}

func TestJobTitleRepository_CreateAndGetByID(t *testing.T) {
	tc := setupCatalogTest(t)

	jt := tc.createJobTitle("", "كارشناس پرستاري", true, true)
	assert.NotZero(t, jt.ID)
	assert.False(t, jt.CreatedAt.IsZero())

	got, err := tc.repo.GetByID(tc.ctx, jt.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, jt.Label, got.Label)
	assert.Equal(t, tc.groupKey, got.Group())
	assert.True(t, got.IsPrimary)

	missing, err := tc.repo.GetByID(tc.ctx, -1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestJobTitleRepository_FindByPhrases_Stages(t *testing.T) {
	tc := setupCatalogTest(t)

	// Arabic kaf and yeh are stored normalized and still match Persian phrases.
	nurse := tc.createJobTitle("-nurse", "كارشناس پرستاري", true, true)
	tc.createJobTitle("-hidden", "پرستار مخفی", true, false)

	exact, err := tc.repo.FindByPhrases(tc.ctx, models.StageExact, []string{"کارشناس پرستاری"})
	require.NoError(t, err)
	exact = tc.onlyGroup(exact)
	require.Len(t, exact, 1)
	assert.Equal(t, nurse.ID, exact[0].JobTitle.ID)

	prefix, err := tc.repo.FindByPhrases(tc.ctx, models.StagePrefix, []string{"کارشناس"})
	require.NoError(t, err)
	assert.Len(t, tc.onlyGroup(prefix), 1)

	contains, err := tc.repo.FindByPhrases(tc.ctx, models.StageContains, []string{"پرستار"})
	require.NoError(t, err)
	contains = tc.onlyGroup(contains)
	require.Len(t, contains, 1, "hidden rows are never matched")
	assert.Equal(t, "پرستار", contains[0].MatchedPhrase)
}

func TestJobTitleRepository_FindByPhrases_LongestPhraseAndCounts(t *testing.T) {
	tc := setupCatalogTest(t)

	primary := tc.createJobTitle("", "تعمیرکار موبایل", true, true)
	variant := tc.createJobTitle("", "تعمیر موبایل", false, true)
	hidden := tc.createJobTitle("", "تعمیرات گوشی", false, false)
	tc.addObservation(primary.ID, 10_000_000)
	tc.addObservation(primary.ID, 12_000_000)
	tc.addObservation(variant.ID, 9_000_000)
	tc.addObservation(hidden.ID, 8_000_000)

	matches, err := tc.repo.FindByPhrases(tc.ctx, models.StageContains, []string{"موبایل", "تعمیرکار موبایل"})
	require.NoError(t, err)
	matches = tc.onlyGroup(matches)
	require.Len(t, matches, 2)

	byID := map[int64]models.JobTitleMatch{}
	for _, m := range matches {
		byID[m.JobTitle.ID] = m
	}
	assert.Equal(t, "تعمیرکار موبایل", byID[primary.ID].MatchedPhrase)
	assert.Equal(t, 2, byID[primary.ID].JobsCount)
	assert.Equal(t, 4, byID[primary.ID].GroupTotalJobs, "group total includes hidden variants")
	assert.Equal(t, "موبایل", byID[variant.ID].MatchedPhrase)
	assert.Equal(t, 1, byID[variant.ID].JobsCount)
}

func TestJobTitleRepository_FindByPhrases_Empty(t *testing.T) {
	tc := setupCatalogTest(t)

	matches, err := tc.repo.FindByPhrases(tc.ctx, models.StageExact, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = tc.repo.FindByPhrases(tc.ctx, models.MatchStage("fuzzy"), []string{"x"})
	assert.Error(t, err)
}

func TestJobTitleRepository_GroupQueries(t *testing.T) {
	tc := setupCatalogTest(t)

	a := tc.createJobTitle("", "راننده تاکسی", false, true)
	b := tc.createJobTitle("", "تاکسی ران", true, true)
	c := tc.createJobTitle("", "راننده تاکسی قدیمی", false, false)

	rows, err := tc.repo.FindByGroupKey(tc.ctx, tc.groupKey)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, b.ID, rows[0].ID, "primary first")
	assert.Equal(t, a.ID, rows[1].ID)

	ids, err := tc.repo.GroupIDs(tc.ctx, tc.groupKey)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, b.ID, c.ID}, ids)
}
