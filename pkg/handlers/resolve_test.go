package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/lexicon"
	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/services"
)

func newResolveMux(resolver *mockResolver) *http.ServeMux {
	mux := http.NewServeMux()
	h := NewResolveHandler(resolver, services.NewIntentClassifier(lexicon.Default()), zap.NewNop())
	h.RegisterRoutes(mux, noScope)
	return mux
}

func nurseResolution() *models.ResolvedQuery {
	return &models.ResolvedQuery{
		Matched: &models.ResolvedEntity{
			JobTitleID:  1,
			GroupKey:    "nurse",
			Label:       "کارشناس پرستاری",
			JobTitleIDs: []int64{1, 2},
		},
		Confidence: 0.55,
		Strategy:   models.StrategyExplicitText,
		Stage:      models.StageContains,
	}
}

func TestResolveHandler_Resolve(t *testing.T) {
	resolver := &mockResolver{result: nurseResolution()}
	mux := newResolveMux(resolver)

	rec := doJSON(t, mux, http.MethodPost, "/api/resolve", map[string]any{
		"message": "  پرستار‌بگو ",
		"strict":  true,
		"hint":    "پرستار",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.ResolvedQuery
	decodeData(t, rec, &got)
	assert.Equal(t, "nurse", got.Matched.GroupKey)
	assert.Equal(t, []int64{1, 2}, got.Matched.JobTitleIDs)
	assert.Equal(t, models.StrategyExplicitText, got.Strategy)

	assert.Equal(t, "پرستار بگو", resolver.lastReq.Message)
	assert.True(t, resolver.lastReq.Strict)
	assert.Equal(t, "پرستار", resolver.lastReq.Hint)
	assert.Nil(t, resolver.lastReq.Ref)
}

func TestResolveHandler_Resolve_LenientFields(t *testing.T) {
	resolver := &mockResolver{}
	mux := newResolveMux(resolver)

	rec := doJSON(t, mux, http.MethodPost, "/api/resolve",
		`{"message": {"$gt": ""}, "ref": {"job_title_id": "۱۲"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, resolver.lastReq.Message)
	require.NotNil(t, resolver.lastReq.Ref)
	require.NotNil(t, resolver.lastReq.Ref.JobTitleID)
	assert.Equal(t, int64(12), *resolver.lastReq.Ref.JobTitleID)
}

func TestResolveHandler_Resolve_EmptyRefIsDropped(t *testing.T) {
	resolver := &mockResolver{}
	mux := newResolveMux(resolver)

	rec := doJSON(t, mux, http.MethodPost, "/api/resolve", `{"message": "x", "ref": {"job_title_id": null}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, resolver.lastReq.Ref)
}

func TestResolveHandler_Resolve_PassesContext(t *testing.T) {
	resolver := &mockResolver{}
	mux := newResolveMux(resolver)

	rec := doJSON(t, mux, http.MethodPost, "/api/resolve", map[string]any{
		"message": "تاکسی",
		"context": models.ConversationContext{
			PendingCandidates: []models.ResolutionCandidate{{Label: "راننده تاکسی", GroupKey: "taxi"}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resolver.lastReq.Context)
	assert.Equal(t, "taxi", resolver.lastReq.Context.PendingCandidates[0].GroupKey)
}

func TestResolveHandler_Resolve_Errors(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		mux := newResolveMux(&mockResolver{})
		rec := doJSON(t, mux, http.MethodPost, "/api/resolve", `{"message":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_request", decodeError(t, rec)["error"])
	})

	t.Run("invalid ref id", func(t *testing.T) {
		mux := newResolveMux(&mockResolver{})
		rec := doJSON(t, mux, http.MethodPost, "/api/resolve", `{"ref": {"job_title_id": "abc"}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("resolver failure", func(t *testing.T) {
		mux := newResolveMux(&mockResolver{err: errors.New("connection reset")})
		rec := doJSON(t, mux, http.MethodPost, "/api/resolve", map[string]any{"message": "پرستار"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "resolve_failed", body["error"])
		assert.NotContains(t, body["message"], "connection reset")
	})

	t.Run("wrong method", func(t *testing.T) {
		mux := newResolveMux(&mockResolver{})
		rec := doJSON(t, mux, http.MethodGet, "/api/resolve", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestResolveHandler_Intent(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		resolution *models.ResolvedQuery
		want       models.Intent
	}{
		{"job income", "درآمد پرستار", nurseResolution(), models.IntentJobIncome},
		{"high income", "پردرآمدترین شغل ها", nil, models.IntentGeneralHighIncome},
		{"exploratory", "سلام", nil, models.IntentGeneralExploratory},
		{
			"clarification",
			"درآمد راننده",
			&models.ResolvedQuery{Ambiguous: true, Candidates: []models.ResolutionCandidate{{GroupKey: "taxi"}, {GroupKey: "truck"}}},
			models.IntentClarification,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newResolveMux(&mockResolver{result: tt.resolution})

			rec := doJSON(t, mux, http.MethodPost, "/api/intent", map[string]any{"message": tt.message})
			require.Equal(t, http.StatusOK, rec.Code)

			var got IntentResponse
			decodeData(t, rec, &got)
			assert.Equal(t, tt.want, got.Intent)
			require.NotNil(t, got.Resolution)
		})
	}
}
