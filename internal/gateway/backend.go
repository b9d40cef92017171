package gateway

import (
	"context"

	"github.com/overture-dev/overture/internal/domain"
)

// BackendRequest is the resolved request handed to the generative backend:
// policy already applied, model already validated.
type BackendRequest struct {
	// Prompt is the exact prompt text.
	Prompt string

	// ModelID is the resolved, registered model id.
	ModelID string

	// MaxOutputTokens caps the completion length.
	MaxOutputTokens int

	// Temperature is the sampling temperature.
	Temperature float64
}

// BackendDelta is one increment of a streaming backend response. Exactly
// one of Text, Usage, or Err is meaningful; Usage marks clean completion
// and is always last on a successful stream.
type BackendDelta struct {
	// Text is an incremental output fragment.
	Text string

	// Usage is the final consumption record, non-nil only on the last
	// delta of a successful stream.
	Usage *domain.Usage

	// Err reports a mid-stream failure; the channel closes after it.
	Err error
}

// Backend is the generative-text transport contract. Any backend offering
// single-shot generation and a fragment-then-usage stream is substitutable.
type Backend interface {
	// Generate performs a single-shot completion.
	Generate(ctx context.Context, req BackendRequest) (*domain.GenerationResult, error)

	// GenerateStream starts a streaming completion. The returned channel
	// yields text deltas as they arrive, then a final usage delta, then
	// closes. On mid-stream failure it yields an error delta and closes.
	GenerateStream(ctx context.Context, req BackendRequest) (<-chan BackendDelta, error)
}
