package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/overture-dev/overture/internal/cache"
	"github.com/overture-dev/overture/internal/config"
	"github.com/overture-dev/overture/internal/ctxutil"
	"github.com/overture-dev/overture/internal/domain"
	overtureerrors "github.com/overture-dev/overture/internal/errors"
	"github.com/overture-dev/overture/internal/usage"
)

// Gateway wraps the generative backend behind the use-case policy table,
// the known-model registry, response memoization, and usage accounting.
type Gateway struct {
	backend  Backend
	cache    cache.Store
	ledger   usage.Ledger
	policies policyTable
	models   modelRegistry
	timeout  time.Duration
	cacheTTL time.Duration
	group    singleflight.Group
	logger   zerolog.Logger
}

// New creates a Gateway. The policy table and model registry are built
// once from cfg and never change afterward.
func New(backend Backend, cacheStore cache.Store, ledger usage.Ledger, cfg config.GatewayConfig, cacheTTL time.Duration, logger zerolog.Logger) *Gateway {
	return &Gateway{
		backend:  backend,
		cache:    cacheStore,
		ledger:   ledger,
		policies: newPolicyTable(cfg),
		models:   newModelRegistry(cfg),
		timeout:  cfg.Timeout,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "gateway").Logger(),
	}
}

// Call performs a single-shot generation. Identical (use case, model,
// prompt) triples are idempotent and return byte-identical text from the
// second call onward until TTL expiry. A cached entry with blank text is
// treated as corrupt and evicted rather than returned.
func (g *Gateway) Call(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	policy, modelID, err := g.admit(req)
	if err != nil {
		return nil, err
	}

	key := cache.GenerationKey(req.UseCase, modelID, req.Prompt)
	if text, ok := g.fromCache(ctx, key); ok {
		g.logger.Debug().Str("use_case", req.UseCase.String()).Msg("generation cache hit")
		return &domain.GenerationResult{Text: text, FromCache: true}, nil
	}

	// Collapse concurrent identical misses into a single backend call.
	shared, err, _ := g.group.Do(key, func() (any, error) {
		return g.callLive(ctx, req, policy, modelID, key)
	})
	if err != nil {
		return nil, err
	}
	return shared.(*domain.GenerationResult), nil
}

// callLive dispatches to the backend and memoizes the result before
// returning it, so the next identical prompt is a hit.
func (g *Gateway) callLive(ctx context.Context, req domain.GenerationRequest, policy Policy, modelID, key string) (*domain.GenerationResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.backend.Generate(callCtx, BackendRequest{
		Prompt:          req.Prompt,
		ModelID:         modelID,
		MaxOutputTokens: policy.MaxOutputTokens,
		Temperature:     policy.Temperature,
	})
	if err != nil {
		// Any transport or backend failure is wrapped opaquely.
		return nil, fmt.Errorf("%w: %w", overtureerrors.ErrGenerationFailed, err)
	}

	g.record(ctx, req, modelID, result.Usage)

	if err := g.cache.Set(ctx, key, []byte(result.Text), g.cacheTTL); err != nil {
		g.logger.Warn().Err(err).Msg("generation cache write failed")
	}
	return result, nil
}

// Stream performs a streaming generation. The returned channel yields text
// fragments as they arrive and ends with one usage chunk, distinguishable
// by kind. The streaming path never consults or populates the cache: cache
// correctness for partial or interrupted streams is not attempted.
// Fragments already yielded before a mid-stream failure are not retracted.
func (g *Gateway) Stream(ctx context.Context, req domain.GenerationRequest) (<-chan domain.StreamChunk, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	policy, modelID, err := g.admit(req)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithTimeout(ctx, g.timeout)

	deltas, err := g.backend.GenerateStream(streamCtx, BackendRequest{
		Prompt:          req.Prompt,
		ModelID:         modelID,
		MaxOutputTokens: policy.MaxOutputTokens,
		Temperature:     policy.Temperature,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", overtureerrors.ErrGenerationFailed, err)
	}

	out := make(chan domain.StreamChunk)
	go func() {
		defer cancel()
		defer close(out)

		// emit delivers a chunk unless the caller has gone away.
		emit := func(chunk domain.StreamChunk) bool {
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		completed := false
		for delta := range deltas {
			switch {
			case delta.Err != nil:
				emit(domain.StreamChunk{
					Kind: domain.ChunkError,
					Err:  fmt.Errorf("%w: %w", overtureerrors.ErrGenerationFailed, delta.Err),
				})
				return
			case delta.Usage != nil:
				g.record(ctx, req, modelID, *delta.Usage)
				if !emit(domain.StreamChunk{Kind: domain.ChunkUsage, Usage: delta.Usage}) {
					return
				}
				completed = true
			default:
				if !emit(domain.StreamChunk{Kind: domain.ChunkText, Text: delta.Text}) {
					return
				}
			}
		}
		if !completed {
			emit(domain.StreamChunk{
				Kind: domain.ChunkError,
				Err:  fmt.Errorf("%w: %w", overtureerrors.ErrGenerationFailed, overtureerrors.ErrStreamClosed),
			})
		}
	}()
	return out, nil
}

// admit runs the mandatory pre-dispatch checks shared by Call and Stream:
// policy lookup, model resolution, and the client-side input-size guard.
// All failures surface before any network traffic.
func (g *Gateway) admit(req domain.GenerationRequest) (Policy, string, error) {
	policy, err := g.policies.lookup(req.UseCase)
	if err != nil {
		return Policy{}, "", err
	}

	modelID, err := g.models.resolve(req.ModelID)
	if err != nil {
		return Policy{}, "", err
	}

	if estimated := estimateTokens(req.Prompt); estimated > policy.MaxInputTokens {
		return Policy{}, "", fmt.Errorf("%w: estimated %d tokens, limit %d for %s",
			overtureerrors.ErrPromptTooLarge, estimated, policy.MaxInputTokens, req.UseCase)
	}
	return policy, modelID, nil
}

// fromCache returns the cached text for key. Blank cached text is corrupt:
// it is evicted and reported as a miss, never served.
func (g *Gateway) fromCache(ctx context.Context, key string) (string, bool) {
	data, found, err := g.cache.Get(ctx, key)
	if err != nil {
		g.logger.Warn().Err(err).Msg("generation cache read failed")
		return "", false
	}
	if !found {
		return "", false
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		g.logger.Warn().Msg("evicting blank generation cache entry")
		if delErr := g.cache.Delete(ctx, key); delErr != nil {
			g.logger.Warn().Err(delErr).Msg("failed to evict blank generation cache entry")
		}
		return "", false
	}
	return text, true
}

// record appends a usage-ledger entry when both a user identity and a
// non-empty usage record are available. Ledger failures never fail the
// calling operation.
func (g *Gateway) record(ctx context.Context, req domain.GenerationRequest, modelID string, used domain.Usage) {
	if req.UserID == "" || used.IsZero() {
		return
	}
	entry := usage.Entry{
		UserID:       req.UserID,
		TaskID:       req.TaskID,
		UseCase:      req.UseCase,
		ModelID:      modelID,
		InputTokens:  used.InputTokens,
		OutputTokens: used.OutputTokens,
		TotalTokens:  used.TotalTokens(),
	}
	if err := g.ledger.Record(ctx, entry); err != nil {
		g.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("usage ledger record failed")
	}
}
