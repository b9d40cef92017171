package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/overture-dev/overture/internal/cache"
	"github.com/overture-dev/overture/internal/clock"
	"github.com/overture-dev/overture/internal/config"
	"github.com/overture-dev/overture/internal/gateway"
	"github.com/overture-dev/overture/internal/quota"
	"github.com/overture-dev/overture/internal/sandbox"
	"github.com/overture-dev/overture/internal/task"
	"github.com/overture-dev/overture/internal/usage"
)

// runtime bundles the wired components a command needs. Construction is
// per-invocation; the CLI is short-lived and holds no state between runs.
type runtime struct {
	cfg    *config.Config
	store  cache.Store
	engine *task.Engine
	guard  *quota.Guard
}

// close releases the runtime's external connections.
func (r *runtime) close() {
	if r.store != nil {
		_ = r.store.Close()
	}
}

// newRuntime loads configuration and wires the full engine stack.
func newRuntime(ctx context.Context, logger zerolog.Logger) (*runtime, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	home, err := cfg.ResolveHome()
	if err != nil {
		return nil, err
	}

	cacheStore := cache.NewRedisStore(cfg.Redis)

	taskStore, err := task.NewFileStore(home)
	if err != nil {
		_ = cacheStore.Close()
		return nil, err
	}

	ledger, err := usage.NewFileLedger(home)
	if err != nil {
		_ = cacheStore.Close()
		return nil, err
	}

	clk := clock.RealClock{}

	analyzer := sandbox.NewAnalyzer(
		sandbox.NewDockerProvider(cfg.Sandbox.Image),
		cacheStore,
		cfg.Sandbox,
		cfg.Cache.AnalysisTTL,
		logger,
	)

	backend := gateway.NewAnthropicBackend(cfg.Gateway.BaseURL, cfg.Gateway.APIKeyEnvVar, logger)
	gw := gateway.New(backend, cacheStore, ledger, cfg.Gateway, cfg.Cache.GenerationTTL, logger)

	guard := quota.NewGuard(cacheStore, cfg.Quota, clk, logger)
	executor := task.NewModelExecutor(gw, clk, logger)
	engine := task.NewEngine(taskStore, analyzer, gw, executor, guard, clk, logger)

	return &runtime{
		cfg:    cfg,
		store:  cacheStore,
		engine: engine,
		guard:  guard,
	}, nil
}
