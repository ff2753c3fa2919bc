package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/lexicon"
	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/money"
	"github.com/daramad/daramad-engine/pkg/services"
)

// mockResolver implements services.Resolver for testing.
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

// mockObservationService implements services.ObservationService for testing.
type mockObservationService struct {
	summary   *models.JobSummary
	rankings  []models.IncomeRanking
	err       error
	lastID    int64
	lastLimit int
}

func (m *mockObservationService) Ingest(context.Context, models.ObservationInput) (*models.Observation, error) {
	return nil, m.err
}

func (m *mockObservationService) Summary(_ context.Context, id int64) (*models.JobSummary, error) {
	m.lastID = id
	return m.summary, m.err
}

func (m *mockObservationService) List(context.Context, int64, int, int) (*models.ObservationPage, error) {
	return nil, m.err
}

func (m *mockObservationService) TopByIncome(_ context.Context, limit int) ([]models.IncomeRanking, error) {
	m.lastLimit = limit
	return m.rankings, m.err
}

// mockScoper counts scope acquisitions.
type mockScoper struct {
	err      error
	acquired int
	released int
}

func (m *mockScoper) WithScope(ctx context.Context) (context.Context, func(), error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	m.acquired++
	return ctx, func() { m.released++ }, nil
}

func newTestDeps(resolver *mockResolver, observations *mockObservationService) *ToolDeps {
	return &ToolDeps{
		Resolver:     resolver,
		Classifier:   services.NewIntentClassifier(lexicon.Default()),
		Parser:       money.NewParser(lexicon.Default()),
		Observations: observations,
		Logger:       zap.NewNop(),
	}
}

func newTestServer(deps *ToolDeps) *server.MCPServer {
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterAll(s, deps, "test-version")
	return s
}

// toolResponse is the decoded JSON-RPC reply to a tools/call request.
type toolResponse struct {
	Text     string
	IsError  bool
	RPCError *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
}

// callTool sends a tools/call request through the server's message handler.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) toolResponse {
	t.Helper()

	request, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	resultBytes, err := json.Marshal(s.HandleMessage(context.Background(), request))
	require.NoError(t, err)

	var response struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))

	out := toolResponse{IsError: response.Result.IsError, RPCError: response.Error}
	if len(response.Result.Content) > 0 {
		out.Text = response.Result.Content[0].Text
	}
	return out
}

// decodeText unmarshals a tool's text result into dst.
func decodeText(t *testing.T, resp toolResponse, dst any) {
	t.Helper()
	require.Nil(t, resp.RPCError)
	require.NoError(t, json.Unmarshal([]byte(resp.Text), dst))
}
