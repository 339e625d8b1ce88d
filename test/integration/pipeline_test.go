package integration

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/sleepstars/chatgate/internal/config"
	"github.com/sleepstars/chatgate/internal/logger"
	"github.com/sleepstars/chatgate/internal/models"
	"github.com/sleepstars/chatgate/internal/server"
)

var apiKey = "sk-proj-" + strings.Repeat("Ab3_-", 9)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Models.Resolver = "static"
	cfg.Models.Mapping = map[string]string{"gpt-4": "cohere.command-r-plus"}
	cfg.Backend.MockContent = "Hi there"
	return cfg
}

func startGateway(t *testing.T, cfg *config.Config) (*httptest.Server, *test.Hook) {
	t.Helper()
	require.NoError(t, cfg.Validate())

	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)

	srv, err := server.Build(cfg, logger.FromLogrus(base))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, hook
}

func postChat(t *testing.T, ts *httptest.Server, key, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/chat/completions", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("OpenAI-Organization", "org-integration")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return body
}

func TestGateway_NonStreaming(t *testing.T) {
	ts, _ := startGateway(t, testConfig())

	resp := postChat(t, ts, apiKey, `{"model":"gpt-4","messages":[{"role":"user","content":"Hello!"}]}`)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var completion models.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(body, &completion))
	assert.Regexp(t, `^chatcmpl-`, completion.ID)
	assert.Equal(t, "gpt-4", completion.Model)
	require.Len(t, completion.Choices, 1)
	assert.Equal(t, "Hi there", completion.Choices[0].Message.Content)
	assert.Equal(t, models.FinishReasonStop, completion.Choices[0].FinishReason)
	assert.Equal(t, completion.Usage.PromptTokens+completion.Usage.CompletionTokens, completion.Usage.TotalTokens)
}

func TestGateway_NullSystemMessageDropped(t *testing.T) {
	ts, hook := startGateway(t, testConfig())

	resp := postChat(t, ts, apiKey, `{"model":"gpt-4","messages":[{"role":"system","content":null},{"role":"user","content":"Hello!"}]}`)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "Hi there", gjson.GetBytes(body, "choices.0.message.content").String())

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Data["component"] == "translator" {
			warned = true
		}
	}
	assert.True(t, warned, "dropped message is reported")
}

func TestGateway_Errors(t *testing.T) {
	ts, _ := startGateway(t, testConfig())

	t.Run("missing model", func(t *testing.T) {
		resp := postChat(t, ts, apiKey, `{"messages":[{"role":"user","content":"Hello!"}]}`)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, gjson.GetBytes(body, "error.message").String(), "model")
		assert.Equal(t, "model", gjson.GetBytes(body, "error.param").String())
	})

	t.Run("invalid key", func(t *testing.T) {
		resp := postChat(t, ts, "invalid-key", `{"model":"gpt-4","messages":[{"role":"user","content":"Hello!"}]}`)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "invalid API key format", gjson.GetBytes(body, "error.message").String())
	})

	t.Run("unknown model", func(t *testing.T) {
		resp := postChat(t, ts, apiKey, `{"model":"unknown-model","messages":[{"role":"user","content":"Hello!"}]}`)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "model_not_found", gjson.GetBytes(body, "error.code").String())
		assert.Contains(t, gjson.GetBytes(body, "error.message").String(), "unknown-model")
	})
}

func readSSE(t *testing.T, resp *http.Response) []string {
	t.Helper()
	var events []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			require.True(t, strings.HasPrefix(line, "data: "), line)
			events = append(events, strings.TrimPrefix(line, "data: "))
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

func assertHiThereStream(t *testing.T, events []string) {
	t.Helper()
	require.Len(t, events, 5)

	assert.JSONEq(t, `{"role":"assistant","content":""}`, gjson.Get(events[0], "choices.0.delta").Raw)
	assert.Equal(t, "Hi", gjson.Get(events[1], "choices.0.delta.content").String())
	assert.Equal(t, " there", gjson.Get(events[2], "choices.0.delta.content").String())
	assert.JSONEq(t, `{}`, gjson.Get(events[3], "choices.0.delta").Raw)
	assert.Equal(t, "stop", gjson.Get(events[3], "choices.0.finish_reason").String())
	assert.Equal(t, "[DONE]", events[4])

	id := gjson.Get(events[0], "id").String()
	for _, ev := range events[:4] {
		assert.Equal(t, id, gjson.Get(ev, "id").String())
		assert.Equal(t, "chat.completion.chunk", gjson.Get(ev, "object").String())
		assert.Equal(t, "gpt-4", gjson.Get(ev, "model").String())
	}
	for _, ev := range events[:3] {
		assert.Equal(t, gjson.Null, gjson.Get(ev, "choices.0.finish_reason").Type)
	}
}

func TestGateway_Streaming(t *testing.T) {
	ts, _ := startGateway(t, testConfig())

	resp := postChat(t, ts, apiKey, `{"model":"gpt-4","stream":true,"messages":[{"role":"user","content":"Hello!"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	assertHiThereStream(t, readSSE(t, resp))
}

func TestGateway_StreamingWithUsage(t *testing.T) {
	ts, _ := startGateway(t, testConfig())

	resp := postChat(t, ts, apiKey, `{"model":"gpt-4","stream":true,"stream_options":{"include_usage":true},"messages":[{"role":"user","content":"Hello!"}]}`)
	events := readSSE(t, resp)
	require.Len(t, events, 6)

	usage := events[4]
	assert.Equal(t, int64(0), gjson.Get(usage, "choices.#").Int())
	assert.Equal(t, int64(15), gjson.Get(usage, "usage.total_tokens").Int())
	assert.Equal(t, "[DONE]", events[5])
}

// TestGateway_GenericBackend runs the gateway against an HTTP backend speaking
// the generic wire format, with streaming simulated from a blocking call.
func TestGateway_GenericBackend(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "cohere.command-r-plus", gjson.GetBytes(body, "modelId").String())
		assert.Equal(t, "USER", gjson.GetBytes(body, "messages.0.role").String())
		assert.False(t, gjson.GetBytes(body, "isStream").Bool())
		assert.False(t, gjson.GetBytes(body, "temperature").Exists())

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"modelId":"cohere.command-r-plus","candidates":[{"index":0,"text":"Hi there","finishReason":"COMPLETE"}],"usage":{"promptTokens":9,"completionTokens":2,"totalTokens":11}}`))
	}))
	defer backend.Close()

	cfg := testConfig()
	cfg.Backend.Type = "http"
	cfg.Backend.APIBase = backend.URL
	cfg.Backend.SimulateStream = true
	cfg.Backend.DisabledParams = []string{"temperature"}
	ts, hook := startGateway(t, cfg)

	resp := postChat(t, ts, apiKey, `{"model":"gpt-4","temperature":0.2,"stream":true,"messages":[{"role":"user","content":"Hello!"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assertHiThereStream(t, readSSE(t, resp))

	resp = postChat(t, ts, apiKey, `{"model":"gpt-4","messages":[{"role":"user","content":"Hello!"}]}`)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, int64(11), gjson.GetBytes(body, "usage.total_tokens").Int())

	var components []string
	for _, entry := range hook.AllEntries() {
		if c, ok := entry.Data["component"].(string); ok {
			components = append(components, c)
		}
	}
	assert.Contains(t, components, "translator")
	assert.Contains(t, components, "pipeline")
}

func TestGateway_BackendDown(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "secret upstream detail", http.StatusInternalServerError)
	}))
	defer backend.Close()

	cfg := testConfig()
	cfg.Backend.Type = "http"
	cfg.Backend.APIBase = backend.URL
	ts, hook := startGateway(t, cfg)

	resp := postChat(t, ts, apiKey, `{"model":"gpt-4","messages":[{"role":"user","content":"Hello!"}]}`)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "api_error", gjson.GetBytes(body, "error.type").String())
	assert.NotContains(t, string(body), "secret upstream detail")

	var logged bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			logged = true
		}
	}
	assert.True(t, logged, "backend failure detail is logged")
}
