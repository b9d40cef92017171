package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/overture-dev/overture/internal/domain"
	overtureerrors "github.com/overture-dev/overture/internal/errors"
)

const (
	anthropicVersion  = "2023-06-01"
	messagesPath      = "/v1/messages"
	maxErrorBodyBytes = 4 * 1024
)

// AnthropicBackend implements Backend against the Anthropic Messages API.
// Non-streaming calls use a plain JSON POST; streaming calls parse the SSE
// event feed line by line.
type AnthropicBackend struct {
	baseURL      string
	apiKeyEnvVar string
	client       *http.Client
	logger       zerolog.Logger
}

// NewAnthropicBackend creates a backend for the given endpoint. The API key
// is resolved from apiKeyEnvVar at call time, never stored.
func NewAnthropicBackend(baseURL, apiKeyEnvVar string, logger zerolog.Logger) *AnthropicBackend {
	return &AnthropicBackend{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		apiKeyEnvVar: apiKeyEnvVar,
		client: &http.Client{
			// Per-call deadlines come from the request context; this is a
			// backstop against a wedged transport.
			Timeout: 15 * time.Minute,
		},
		logger: logger.With().Str("component", "anthropic").Logger(),
	}
}

// messagesRequest is the Messages API request body.
type messagesRequest struct {
	Model       string           `json:"model"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
	Stream      bool             `json:"stream,omitempty"`
	Messages    []messagePayload `json:"messages"`
}

type messagePayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the non-streaming Messages API response body.
type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Usage   usagePayload   `json:"usage"`
	Error   *apiError      `json:"error"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usagePayload struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// streamEvent is the union of SSE event payloads the backend cares about.
// Unknown event types are skipped so new API events do not break streaming.
type streamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage usagePayload `json:"usage"`
	} `json:"message"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage *usagePayload `json:"usage"`
	Error *apiError     `json:"error"`
}

// Generate performs a blocking completion call.
func (b *AnthropicBackend) Generate(ctx context.Context, req BackendRequest) (*domain.GenerationResult, error) {
	resp, err := b.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, b.statusError(resp)
	}

	var body messagesResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if body.Error != nil {
		return nil, fmt.Errorf("api error %s: %s", body.Error.Type, body.Error.Message)
	}

	var text strings.Builder
	for _, block := range body.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &domain.GenerationResult{
		Text: text.String(),
		Usage: domain.Usage{
			InputTokens:  body.Usage.InputTokens,
			OutputTokens: body.Usage.OutputTokens,
		},
	}, nil
}

// GenerateStream performs a streaming completion call. The returned channel
// carries text deltas in arrival order, then a usage delta, and is closed when
// the server finishes. Errors arrive as a final delta with Err set.
func (b *AnthropicBackend) GenerateStream(ctx context.Context, req BackendRequest) (<-chan BackendDelta, error) {
	resp, err := b.post(ctx, req, true)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		err = b.statusError(resp)
		_ = resp.Body.Close()
		return nil, err
	}

	out := make(chan BackendDelta)
	go func() {
		defer close(out)
		defer func() { _ = resp.Body.Close() }()
		b.consumeSSE(ctx, resp.Body, out)
	}()
	return out, nil
}

// consumeSSE reads the event stream and translates it into BackendDelta
// values. input_tokens arrive on message_start, output_tokens on
// message_delta; both are folded into a single usage delta at message_stop.
func (b *AnthropicBackend) consumeSSE(ctx context.Context, body io.Reader, out chan<- BackendDelta) {
	emit := func(delta BackendDelta) bool {
		select {
		case out <- delta:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var usage domain.Usage
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			b.logger.Debug().Err(err).Msg("skipping malformed stream event")
			continue
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				usage.InputTokens = event.Message.Usage.InputTokens
			}
		case "content_block_delta":
			if event.Delta != nil && event.Delta.Text != "" {
				if !emit(BackendDelta{Text: event.Delta.Text}) {
					return
				}
			}
		case "message_delta":
			if event.Usage != nil {
				usage.OutputTokens = event.Usage.OutputTokens
			}
		case "message_stop":
			emit(BackendDelta{Usage: &usage})
			return
		case "error":
			msg := "stream error"
			if event.Error != nil {
				msg = fmt.Sprintf("api error %s: %s", event.Error.Type, event.Error.Message)
			}
			emit(BackendDelta{Err: fmt.Errorf("%s", msg)})
			return
		}
	}

	if err := scanner.Err(); err != nil {
		emit(BackendDelta{Err: fmt.Errorf("read stream: %w", err)})
		return
	}
	// Server closed the connection without message_stop; surface partial
	// usage so the caller can decide whether the stream completed.
	emit(BackendDelta{Err: overtureerrors.ErrStreamClosed})
}

// post sends a Messages API request and returns the raw response.
func (b *AnthropicBackend) post(ctx context.Context, req BackendRequest, stream bool) (*http.Response, error) {
	apiKey := os.Getenv(b.apiKeyEnvVar)
	if apiKey == "" {
		return nil, fmt.Errorf("api key environment variable %s is not set", b.apiKeyEnvVar)
	}

	body, err := json.Marshal(messagesRequest{
		Model:       req.ModelID,
		MaxTokens:   req.MaxOutputTokens,
		Temperature: req.Temperature,
		Stream:      stream,
		Messages: []messagePayload{
			{Role: "user", Content: req.Prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post messages: %w", err)
	}
	return resp, nil
}

// Compile-time check that AnthropicBackend implements Backend.
var _ Backend = (*AnthropicBackend)(nil)

// statusError folds a non-200 response into an error, preserving the API's
// error message when the body carries one.
func (b *AnthropicBackend) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var body messagesResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != nil {
		return fmt.Errorf("status %d: %s: %s", resp.StatusCode, body.Error.Type, body.Error.Message)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
