package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overture-dev/overture/internal/cache"
	"github.com/overture-dev/overture/internal/config"
	"github.com/overture-dev/overture/internal/constants"
	"github.com/overture-dev/overture/internal/domain"
	overtureerrors "github.com/overture-dev/overture/internal/errors"
	"github.com/overture-dev/overture/internal/usage"
)

const (
	testModel    = "claude-sonnet-4"
	altTestModel = "claude-opus-4"
)

// fakeBackend scripts the transport layer. Generate replays result/err and
// counts calls; GenerateStream replays deltas in order.
type fakeBackend struct {
	mu     sync.Mutex
	result *domain.GenerationResult
	err    error
	deltas []BackendDelta
	calls  int
}

func (b *fakeBackend) Generate(_ context.Context, _ BackendRequest) (*domain.GenerationResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	return b.result, nil
}

func (b *fakeBackend) GenerateStream(_ context.Context, _ BackendRequest) (<-chan BackendDelta, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	out := make(chan BackendDelta, len(b.deltas))
	for _, d := range b.deltas {
		out <- d
	}
	close(out)
	return out, nil
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []usage.Entry
}

func (l *fakeLedger) Record(_ context.Context, entry usage.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *fakeLedger) recorded() []usage.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]usage.Entry(nil), l.entries...)
}

func testGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		BaseURL:      "https://api.anthropic.com",
		APIKeyEnvVar: "ANTHROPIC_API_KEY",
		DefaultModel: testModel,
		Models:       []string{testModel, altTestModel},
		Timeout:      time.Minute,
		Policies: map[string]config.PolicyConfig{
			constants.UseCasePlanGeneration.String(): {
				MaxInputTokens:  100,
				MaxOutputTokens: 4096,
				Temperature:     0.7,
			},
			constants.UseCaseCodeGeneration.String(): {
				MaxInputTokens:  200,
				MaxOutputTokens: 8192,
				Temperature:     0.2,
			},
		},
	}
}

type gatewayFixture struct {
	gateway *Gateway
	backend *fakeBackend
	cache   *cache.RedisStore
	ledger  *fakeLedger
}

func newGatewayFixture(t *testing.T, backend *fakeBackend) *gatewayFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	pool := &redis.Pool{
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", mr.Addr())
		},
	}
	store := cache.NewRedisStoreWithPool(pool)

	ledger := &fakeLedger{}
	gw := New(backend, store, ledger, testGatewayConfig(), time.Hour, zerolog.Nop())
	return &gatewayFixture{gateway: gw, backend: backend, cache: store, ledger: ledger}
}

func planRequest(prompt string) domain.GenerationRequest {
	return domain.GenerationRequest{
		Prompt:  prompt,
		UseCase: constants.UseCasePlanGeneration,
		UserID:  "user-1",
		TaskID:  "task-1",
	}
}

func TestGateway_Call_CachesIdenticalRequests(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{result: &domain.GenerationResult{
		Text:  "1. clone the repo\n2. run the tests",
		Usage: domain.Usage{InputTokens: 12, OutputTokens: 30},
	}}
	fx := newGatewayFixture(t, backend)
	ctx := context.Background()

	first, err := fx.gateway.Call(ctx, planRequest("generate a plan"))
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, backend.result.Text, first.Text)

	second, err := fx.gateway.Call(ctx, planRequest("generate a plan"))
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Text, second.Text)

	// Only the miss reached the backend.
	assert.Equal(t, 1, backend.callCount())
}

func TestGateway_Call_DifferentPromptMisses(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{result: &domain.GenerationResult{Text: "output"}}
	fx := newGatewayFixture(t, backend)
	ctx := context.Background()

	_, err := fx.gateway.Call(ctx, planRequest("prompt one"))
	require.NoError(t, err)
	_, err = fx.gateway.Call(ctx, planRequest("prompt two"))
	require.NoError(t, err)

	assert.Equal(t, 2, backend.callCount())
}

func TestGateway_Call_EvictsBlankCacheEntry(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{result: &domain.GenerationResult{Text: "fresh output"}}
	fx := newGatewayFixture(t, backend)
	ctx := context.Background()

	// Pre-poison the cache with a whitespace-only entry at the exact key
	// the gateway will compute.
	key := cache.GenerationKey(constants.UseCasePlanGeneration, testModel, "poisoned")
	require.NoError(t, fx.cache.Set(ctx, key, []byte("   \n"), time.Hour))

	result, err := fx.gateway.Call(ctx, planRequest("poisoned"))
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, "fresh output", result.Text)
	assert.Equal(t, 1, backend.callCount())

	// The poisoned entry was replaced, not served.
	data, found, err := fx.cache.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "fresh output", string(data))
}

func TestGateway_Call_PromptTooLarge(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{result: &domain.GenerationResult{Text: "unreachable"}}
	fx := newGatewayFixture(t, backend)

	// Policy allows 100 tokens; 4 chars per token means 401 chars exceed it.
	oversized := strings.Repeat("x", 401)
	_, err := fx.gateway.Call(context.Background(), planRequest(oversized))
	require.ErrorIs(t, err, overtureerrors.ErrPromptTooLarge)

	// Rejected before any network traffic.
	assert.Zero(t, backend.callCount())
}

func TestGateway_Call_PromptAtLimit(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{result: &domain.GenerationResult{Text: "ok"}}
	fx := newGatewayFixture(t, backend)

	// Exactly 400 chars estimates to exactly 100 tokens, which passes.
	_, err := fx.gateway.Call(context.Background(), planRequest(strings.Repeat("x", 400)))
	require.NoError(t, err)
	assert.Equal(t, 1, backend.callCount())
}

func TestGateway_Call_UnknownUseCase(t *testing.T) {
	t.Parallel()

	fx := newGatewayFixture(t, &fakeBackend{})

	_, err := fx.gateway.Call(context.Background(), domain.GenerationRequest{
		Prompt:  "prompt",
		UseCase: constants.UseCase("unconfigured"),
	})
	require.ErrorIs(t, err, overtureerrors.ErrUnknownUseCase)
	assert.Zero(t, fx.backend.callCount())
}

func TestGateway_Call_ModelResolution(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{result: &domain.GenerationResult{Text: "ok"}}
	fx := newGatewayFixture(t, backend)
	ctx := context.Background()

	// An unknown model id is rejected, not silently defaulted.
	req := planRequest("prompt")
	req.ModelID = "gpt-nonexistent"
	_, err := fx.gateway.Call(ctx, req)
	require.ErrorIs(t, err, overtureerrors.ErrInvalidModel)
	assert.Zero(t, backend.callCount())

	// A registered override is honored.
	req.ModelID = altTestModel
	_, err = fx.gateway.Call(ctx, req)
	require.NoError(t, err)

	// An empty id selects the default.
	req.ModelID = ""
	req.Prompt = "another prompt"
	_, err = fx.gateway.Call(ctx, req)
	require.NoError(t, err)
}

func TestGateway_Call_BackendFailure(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{err: errors.New("upstream 529")}
	fx := newGatewayFixture(t, backend)

	_, err := fx.gateway.Call(context.Background(), planRequest("prompt"))
	require.ErrorIs(t, err, overtureerrors.ErrGenerationFailed)

	// A failed call must not leave a cache entry behind.
	key := cache.GenerationKey(constants.UseCasePlanGeneration, testModel, "prompt")
	_, found, cacheErr := fx.cache.Get(context.Background(), key)
	require.NoError(t, cacheErr)
	assert.False(t, found)
}

func TestGateway_Call_RecordsUsage(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{result: &domain.GenerationResult{
		Text:  "output",
		Usage: domain.Usage{InputTokens: 10, OutputTokens: 25},
	}}
	fx := newGatewayFixture(t, backend)
	ctx := context.Background()

	_, err := fx.gateway.Call(ctx, planRequest("prompt"))
	require.NoError(t, err)

	entries := fx.ledger.recorded()
	require.Len(t, entries, 1)
	assert.Equal(t, "user-1", entries[0].UserID)
	assert.Equal(t, "task-1", entries[0].TaskID)
	assert.Equal(t, constants.UseCasePlanGeneration, entries[0].UseCase)
	assert.Equal(t, testModel, entries[0].ModelID)
	assert.Equal(t, 10, entries[0].InputTokens)
	assert.Equal(t, 25, entries[0].OutputTokens)
	assert.Equal(t, 35, entries[0].TotalTokens)

	// A cache hit consumes no tokens and records nothing.
	_, err = fx.gateway.Call(ctx, planRequest("prompt"))
	require.NoError(t, err)
	assert.Len(t, fx.ledger.recorded(), 1)
}

func TestGateway_Call_CanceledContext(t *testing.T) {
	t.Parallel()

	fx := newGatewayFixture(t, &fakeBackend{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.gateway.Call(ctx, planRequest("prompt"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestGateway_Stream_FragmentsThenUsage(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{deltas: []BackendDelta{
		{Text: "1. first step\n"},
		{Text: "2. second step\n"},
		{Usage: &domain.Usage{InputTokens: 8, OutputTokens: 16}},
	}}
	fx := newGatewayFixture(t, backend)

	chunks, err := fx.gateway.Stream(context.Background(), planRequest("prompt"))
	require.NoError(t, err)

	var got []domain.StreamChunk
	for chunk := range chunks {
		got = append(got, chunk)
	}

	require.Len(t, got, 3)
	assert.Equal(t, domain.ChunkText, got[0].Kind)
	assert.Equal(t, "1. first step\n", got[0].Text)
	assert.Equal(t, domain.ChunkText, got[1].Kind)
	assert.Equal(t, "2. second step\n", got[1].Text)

	// The usage chunk is last and distinguishable by kind.
	assert.Equal(t, domain.ChunkUsage, got[2].Kind)
	require.NotNil(t, got[2].Usage)
	assert.Equal(t, 8, got[2].Usage.InputTokens)

	entries := fx.ledger.recorded()
	require.Len(t, entries, 1)
	assert.Equal(t, 24, entries[0].TotalTokens)
}

func TestGateway_Stream_MidStreamError(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{deltas: []BackendDelta{
		{Text: "partial "},
		{Err: errors.New("connection reset")},
	}}
	fx := newGatewayFixture(t, backend)

	chunks, err := fx.gateway.Stream(context.Background(), planRequest("prompt"))
	require.NoError(t, err)

	var got []domain.StreamChunk
	for chunk := range chunks {
		got = append(got, chunk)
	}

	// The fragment already emitted stands; the stream ends with an error
	// chunk and no usage chunk.
	require.Len(t, got, 2)
	assert.Equal(t, domain.ChunkText, got[0].Kind)
	assert.Equal(t, domain.ChunkError, got[1].Kind)
	require.ErrorIs(t, got[1].Err, overtureerrors.ErrGenerationFailed)

	assert.Empty(t, fx.ledger.recorded())
}

func TestGateway_Stream_ClosedWithoutUsage(t *testing.T) {
	t.Parallel()

	// A stream that closes without a usage delta did not complete cleanly.
	backend := &fakeBackend{deltas: []BackendDelta{{Text: "partial"}}}
	fx := newGatewayFixture(t, backend)

	chunks, err := fx.gateway.Stream(context.Background(), planRequest("prompt"))
	require.NoError(t, err)

	var got []domain.StreamChunk
	for chunk := range chunks {
		got = append(got, chunk)
	}

	require.Len(t, got, 2)
	assert.Equal(t, domain.ChunkError, got[1].Kind)
	require.ErrorIs(t, got[1].Err, overtureerrors.ErrStreamClosed)
}

func TestGateway_Stream_NeverTouchesCache(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{deltas: []BackendDelta{
		{Text: "streamed output"},
		{Usage: &domain.Usage{InputTokens: 1, OutputTokens: 2}},
	}}
	fx := newGatewayFixture(t, backend)
	ctx := context.Background()

	chunks, err := fx.gateway.Stream(ctx, planRequest("prompt"))
	require.NoError(t, err)
	for range chunks {
	}

	// Streaming does not memoize; the same prompt still goes live.
	key := cache.GenerationKey(constants.UseCasePlanGeneration, testModel, "prompt")
	_, found, err := fx.cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGateway_Stream_AdmissionChecks(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	fx := newGatewayFixture(t, backend)
	ctx := context.Background()

	_, err := fx.gateway.Stream(ctx, domain.GenerationRequest{
		Prompt:  "prompt",
		UseCase: constants.UseCase("unconfigured"),
	})
	require.ErrorIs(t, err, overtureerrors.ErrUnknownUseCase)

	_, err = fx.gateway.Stream(ctx, planRequest(strings.Repeat("x", 401)))
	require.ErrorIs(t, err, overtureerrors.ErrPromptTooLarge)

	assert.Zero(t, backend.callCount())
}

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prompt string
		want   int
	}{
		{name: "empty", prompt: "", want: 0},
		{name: "rounds up", prompt: "abc", want: 1},
		{name: "exact multiple", prompt: "abcd", want: 1},
		{name: "one over", prompt: "abcde", want: 2},
		{name: "longer", prompt: strings.Repeat("x", 401), want: 101},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, estimateTokens(tt.prompt))
		})
	}
}
