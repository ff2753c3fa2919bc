package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/services"
)

// noScope stands in for the database scope middleware.
func noScope(next http.HandlerFunc) http.HandlerFunc { return next }

// mockResolver records the last request and returns a fixed result.
type mockResolver struct {
	result  *models.ResolvedQuery
	err     error
	lastReq services.ResolveRequest
}

func (m *mockResolver) Resolve(_ context.Context, req services.ResolveRequest) (*models.ResolvedQuery, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &models.ResolvedQuery{}, nil
	}
	return m.result, nil
}

func (m *mockResolver) ResolveRef(ctx context.Context, ref *models.EntityRef) (*models.ResolvedQuery, error) {
	return m.Resolve(ctx, services.ResolveRequest{Ref: ref})
}

func (m *mockResolver) ResolveText(ctx context.Context, message string, strict bool) (*models.ResolvedQuery, error) {
	return m.Resolve(ctx, services.ResolveRequest{Message: message, Strict: strict})
}

// mockChatService records the last request.
type mockChatService struct {
	resp    *services.AskResponse
	err     error
	lastReq services.AskRequest
}

func (m *mockChatService) Ask(_ context.Context, req services.AskRequest) (*services.AskResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

// mockObservationService returns canned values.
type mockObservationService struct {
	observation *models.Observation
	summary     *models.JobSummary
	page        *models.ObservationPage
	rankings    []models.IncomeRanking
	err         error

	lastInput             models.ObservationInput
	lastID                int64
	lastLimit, lastOffset int
}

func (m *mockObservationService) Ingest(_ context.Context, input models.ObservationInput) (*models.Observation, error) {
	m.lastInput = input
	return m.observation, m.err
}

func (m *mockObservationService) Summary(_ context.Context, id int64) (*models.JobSummary, error) {
	m.lastID = id
	return m.summary, m.err
}

func (m *mockObservationService) List(_ context.Context, id int64, limit, offset int) (*models.ObservationPage, error) {
	m.lastID, m.lastLimit, m.lastOffset = id, limit, offset
	return m.page, m.err
}

func (m *mockObservationService) TopByIncome(context.Context, int) ([]models.IncomeRanking, error) {
	return m.rankings, m.err
}

// doJSON sends body as JSON through mux and returns the recorder.
func doJSON(t *testing.T, mux http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// decodeData decodes the data field of a success envelope into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}
