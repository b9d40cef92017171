package domain

import "github.com/overture-dev/overture/internal/constants"

// GenerationRequest describes one call to the model gateway.
type GenerationRequest struct {
	// Prompt is the exact prompt text. The gateway caches on this text
	// byte-for-byte, so callers must construct it deterministically.
	Prompt string `json:"prompt"`

	// UseCase selects the token/temperature policy. Mandatory.
	UseCase constants.UseCase `json:"use_case"`

	// ModelID optionally overrides the deployment default. It is honored
	// only if present in the known-model registry.
	ModelID string `json:"model_id,omitempty"`

	// UserID attributes token consumption in the usage ledger. Optional;
	// without it no ledger entry is recorded.
	UserID string `json:"user_id,omitempty"`

	// TaskID links ledger entries back to the task. Optional.
	TaskID string `json:"task_id,omitempty"`
}

// Usage is a model token consumption record.
type Usage struct {
	// InputTokens is the prompt token count reported by the backend.
	InputTokens int `json:"input_tokens"`

	// OutputTokens is the completion token count reported by the backend.
	OutputTokens int `json:"output_tokens"`
}

// TotalTokens returns input plus output tokens.
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// IsZero reports whether the usage record is empty.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0
}

// GenerationResult is the outcome of a non-streaming gateway call.
type GenerationResult struct {
	// Text is the generated output.
	Text string `json:"text"`

	// Usage is the backend-reported token consumption. Zero when the result
	// was served from cache.
	Usage Usage `json:"usage"`

	// FromCache reports whether the result was served from the cache.
	FromCache bool `json:"from_cache,omitempty"`
}

// StreamChunkKind discriminates streaming chunk variants. Consumers tell
// fragments and the final usage apart by kind, never by content sniffing.
type StreamChunkKind string

// Stream chunk kinds.
const (
	// ChunkText carries an incremental text fragment.
	ChunkText StreamChunkKind = "text"

	// ChunkUsage carries the final usage summary. It is always the last
	// chunk of a successfully completed stream.
	ChunkUsage StreamChunkKind = "usage"

	// ChunkError carries a mid-stream failure. Fragments already yielded
	// are not retracted; the caller owns deciding whether they are usable.
	ChunkError StreamChunkKind = "error"
)

// StreamChunk is one element of a streaming gateway call.
type StreamChunk struct {
	// Kind discriminates the variant.
	Kind StreamChunkKind `json:"kind"`

	// Text is set when Kind == ChunkText.
	Text string `json:"text,omitempty"`

	// Usage is set when Kind == ChunkUsage.
	Usage *Usage `json:"usage,omitempty"`

	// Err is set when Kind == ChunkError.
	Err error `json:"-"`
}
