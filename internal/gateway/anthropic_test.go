package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	overtureerrors "github.com/overture-dev/overture/internal/errors"
)

const testKeyEnvVar = "OVERTURE_TEST_API_KEY"

func testBackendRequest() BackendRequest {
	return BackendRequest{
		Prompt:          "write a plan",
		ModelID:         testModel,
		MaxOutputTokens: 1024,
		Temperature:     0.5,
	}
}

func TestAnthropicBackend_Generate(t *testing.T) {
	t.Setenv(testKeyEnvVar, "sk-ant-test-key")

	var gotReq messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, messagesPath, r.URL.Path)
		assert.Equal(t, "sk-ant-test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "1. first"},
				{"type": "tool_use", "text": "ignored"},
				{"type": "text", "text": "\n2. second"}
			],
			"usage": {"input_tokens": 12, "output_tokens": 30}
		}`))
	}))
	defer srv.Close()

	backend := NewAnthropicBackend(srv.URL, testKeyEnvVar, zerolog.Nop())
	result, err := backend.Generate(context.Background(), testBackendRequest())
	require.NoError(t, err)

	// Only text blocks contribute to the output.
	assert.Equal(t, "1. first\n2. second", result.Text)
	assert.Equal(t, 12, result.Usage.InputTokens)
	assert.Equal(t, 30, result.Usage.OutputTokens)

	assert.Equal(t, testModel, gotReq.Model)
	assert.Equal(t, 1024, gotReq.MaxTokens)
	assert.False(t, gotReq.Stream)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
	assert.Equal(t, "write a plan", gotReq.Messages[0].Content)
}

func TestAnthropicBackend_Generate_APIError(t *testing.T) {
	t.Setenv(testKeyEnvVar, "sk-ant-test-key")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"type": "rate_limit_error", "message": "overloaded"}}`))
	}))
	defer srv.Close()

	backend := NewAnthropicBackend(srv.URL, testKeyEnvVar, zerolog.Nop())
	_, err := backend.Generate(context.Background(), testBackendRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate_limit_error")
	assert.Contains(t, err.Error(), "overloaded")
}

func TestAnthropicBackend_Generate_MissingAPIKey(t *testing.T) {
	t.Setenv(testKeyEnvVar, "")

	backend := NewAnthropicBackend("http://127.0.0.1:0", testKeyEnvVar, zerolog.Nop())
	_, err := backend.Generate(context.Background(), testBackendRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), testKeyEnvVar)
}

func TestAnthropicBackend_GenerateStream(t *testing.T) {
	t.Setenv(testKeyEnvVar, "sk-ant-test-key")

	feed := "" +
		"event: message_start\n" +
		`data: {"type": "message_start", "message": {"usage": {"input_tokens": 9}}}` + "\n\n" +
		`data: {"type": "content_block_start", "index": 0}` + "\n\n" +
		`data: {"type": "content_block_delta", "delta": {"type": "text_delta", "text": "1. step one\n"}}` + "\n\n" +
		`data: {"type": "content_block_delta", "delta": {"type": "text_delta", "text": "2. step two"}}` + "\n\n" +
		`data: {"type": "message_delta", "usage": {"output_tokens": 17}}` + "\n\n" +
		`data: {"type": "message_stop"}` + "\n\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		var req messagesRequest
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	backend := NewAnthropicBackend(srv.URL, testKeyEnvVar, zerolog.Nop())
	deltas, err := backend.GenerateStream(context.Background(), testBackendRequest())
	require.NoError(t, err)

	var got []BackendDelta
	for delta := range deltas {
		got = append(got, delta)
	}

	require.Len(t, got, 3)
	assert.Equal(t, "1. step one\n", got[0].Text)
	assert.Equal(t, "2. step two", got[1].Text)

	// Usage is folded from message_start and message_delta, delivered once
	// at message_stop.
	require.NotNil(t, got[2].Usage)
	assert.Equal(t, 9, got[2].Usage.InputTokens)
	assert.Equal(t, 17, got[2].Usage.OutputTokens)
}

func TestAnthropicBackend_GenerateStream_ErrorEvent(t *testing.T) {
	t.Setenv(testKeyEnvVar, "sk-ant-test-key")

	feed := "" +
		`data: {"type": "content_block_delta", "delta": {"type": "text_delta", "text": "partial"}}` + "\n\n" +
		`data: {"type": "error", "error": {"type": "overloaded_error", "message": "try later"}}` + "\n\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	backend := NewAnthropicBackend(srv.URL, testKeyEnvVar, zerolog.Nop())
	deltas, err := backend.GenerateStream(context.Background(), testBackendRequest())
	require.NoError(t, err)

	var got []BackendDelta
	for delta := range deltas {
		got = append(got, delta)
	}

	require.Len(t, got, 2)
	assert.Equal(t, "partial", got[0].Text)
	require.Error(t, got[1].Err)
	assert.Contains(t, got[1].Err.Error(), "overloaded_error")
}

func TestAnthropicBackend_GenerateStream_TruncatedFeed(t *testing.T) {
	t.Setenv(testKeyEnvVar, "sk-ant-test-key")

	// The server closes the connection without message_stop.
	feed := `data: {"type": "content_block_delta", "delta": {"type": "text_delta", "text": "partial"}}` + "\n\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	backend := NewAnthropicBackend(srv.URL, testKeyEnvVar, zerolog.Nop())
	deltas, err := backend.GenerateStream(context.Background(), testBackendRequest())
	require.NoError(t, err)

	var got []BackendDelta
	for delta := range deltas {
		got = append(got, delta)
	}

	require.Len(t, got, 2)
	assert.Equal(t, "partial", got[0].Text)
	require.ErrorIs(t, got[1].Err, overtureerrors.ErrStreamClosed)
}

func TestAnthropicBackend_GenerateStream_HTTPError(t *testing.T) {
	t.Setenv(testKeyEnvVar, "sk-ant-test-key")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
	}))
	defer srv.Close()

	backend := NewAnthropicBackend(srv.URL, testKeyEnvVar, zerolog.Nop())
	_, err := backend.GenerateStream(context.Background(), testBackendRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication_error")
}

func TestAnthropicBackend_SkipsMalformedEvents(t *testing.T) {
	t.Setenv(testKeyEnvVar, "sk-ant-test-key")

	feed := "" +
		"data: {not json\n\n" +
		": keepalive comment\n\n" +
		`data: {"type": "content_block_delta", "delta": {"type": "text_delta", "text": "survived"}}` + "\n\n" +
		`data: {"type": "message_stop"}` + "\n\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	backend := NewAnthropicBackend(srv.URL, testKeyEnvVar, zerolog.Nop())
	deltas, err := backend.GenerateStream(context.Background(), testBackendRequest())
	require.NoError(t, err)

	var got []BackendDelta
	for delta := range deltas {
		got = append(got, delta)
	}

	require.Len(t, got, 2)
	assert.Equal(t, "survived", got[0].Text)
	assert.NotNil(t, got[1].Usage)
}
