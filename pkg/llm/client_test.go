package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const openAIReply = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"model": "gpt-4o-mini",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "  درآمد پرستار حدود ۲۰ میلیون تومان است.  "}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 40, "completion_tokens": 12, "total_tokens": 52}
}`

func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *OpenAIPhraser {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewOpenAIPhraser(&Config{Endpoint: server.URL, Model: "gpt-4o-mini", APIKey: "sk-test"}, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestNewOpenAIPhraser_Validation(t *testing.T) {
	_, err := NewOpenAIPhraser(&Config{APIKey: "k"}, zap.NewNop())
	assert.ErrorContains(t, err, "model is required")

	_, err = NewOpenAIPhraser(&Config{Model: "m"}, zap.NewNop())
	assert.ErrorContains(t, err, "api key is required")
}

func TestOpenAIPhraser_Phrase(t *testing.T) {
	var body map[string]any
	p := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(openAIReply))
	})

	got, err := p.Phrase(context.Background(), PhraseRequest{
		Question: "درآمد پرستار",
		Draft:    "کارشناس پرستاری: میانه درآمد 20000000 تومان",
		Intent:   "job_income",
	})
	require.NoError(t, err)
	assert.Equal(t, "درآمد پرستار حدود ۲۰ میلیون تومان است.", got)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	user := messages[1].(map[string]any)
	assert.Contains(t, user["content"], "20000000")
	assert.Contains(t, user["content"], "Intent: job_income")
}

func TestOpenAIPhraser_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	p := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": {"message": "busy", "type": "server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(openAIReply))
	})

	got, err := p.Phrase(context.Background(), PhraseRequest{Draft: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, CircuitClosed, p.breaker.State())
}

func TestOpenAIPhraser_AuthErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	p := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`))
	})

	_, err := p.Phrase(context.Background(), PhraseRequest{Draft: "x"})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeAuth, GetErrorType(err))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, p.breaker.ConsecutiveFailures())
}

func TestOpenAIPhraser_OpenCircuitSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	p := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	for i := 0; i < DefaultCircuitBreakerConfig().Threshold; i++ {
		p.breaker.RecordFailure()
	}

	_, err := p.Phrase(context.Background(), PhraseRequest{Draft: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider unavailable")
	assert.Equal(t, int32(0), calls.Load())
}

func TestAnthropicPhraser_Phrase(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"))
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "میانه درآمد ۲۰ میلیون تومان است."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 30, "output_tokens": 10}
		}`))
	}))
	defer server.Close()

	p, err := NewAnthropicPhraser(&Config{Endpoint: server.URL, Model: "claude-3-5-haiku-latest", APIKey: "sk-ant-test"}, zap.NewNop())
	require.NoError(t, err)

	got, err := p.Phrase(context.Background(), PhraseRequest{Question: "q", Draft: "d", Intent: "job_income"})
	require.NoError(t, err)
	assert.Equal(t, "میانه درآمد ۲۰ میلیون تومان است.", got)
	assert.Equal(t, "claude-3-5-haiku-latest", body["model"])
	assert.Equal(t, float64(defaultAnthropicMaxTokens), body["max_tokens"])
	assert.Contains(t, body["system"], "Never add numbers")
}

func TestAnthropicPhraser_AuthError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
	}))
	defer server.Close()

	p, err := NewAnthropicPhraser(&Config{Endpoint: server.URL, Model: "m", APIKey: "bad"}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.Phrase(context.Background(), PhraseRequest{Draft: "d"})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeAuth, GetErrorType(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestMockPhraser(t *testing.T) {
	m := NewMockPhraser()

	got, err := m.Phrase(context.Background(), PhraseRequest{Draft: "draft"})
	require.NoError(t, err)
	assert.Equal(t, "draft", got)
	assert.Equal(t, "mock-model", m.Model())
	assert.Len(t, m.Requests(), 1)
}
