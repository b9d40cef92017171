package sandbox

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/overture-dev/overture/internal/cache"
	"github.com/overture-dev/overture/internal/config"
	"github.com/overture-dev/overture/internal/constants"
	"github.com/overture-dev/overture/internal/ctxutil"
	"github.com/overture-dev/overture/internal/domain"
	overtureerrors "github.com/overture-dev/overture/internal/errors"
)

// analyzeScript is the analysis logic. It is written into the sandbox as a
// file and executed there, never on the host, so arbitrary repository
// content never runs with host privileges.
//
//go:embed analyze.py
var analyzeScript []byte

// Analyzer produces structured repository summaries inside ephemeral
// sandboxes, memoized in the cache store by normalized repository URL.
type Analyzer struct {
	provider Provider
	cache    cache.Store
	cfg      config.SandboxConfig
	ttl      time.Duration
	group    singleflight.Group
	logger   zerolog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(provider Provider, cacheStore cache.Store, cfg config.SandboxConfig, ttl time.Duration, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		provider: provider,
		cache:    cacheStore,
		cfg:      cfg,
		ttl:      ttl,
		logger:   logger.With().Str("component", "analyzer").Logger(),
	}
}

// Analyze returns the structured summary for repoURL, serving from cache
// when possible. On a miss it provisions a sandbox scoped to taskID, clones
// the repository inside it, runs the embedded analysis script there, and
// stores the result before returning. Clone failure, script failure, and
// empty output all fail with ErrAnalysisFailed; there is no retry inside
// the analyzer.
func (a *Analyzer) Analyze(ctx context.Context, repoURL, taskID string) (*domain.RepoSummary, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(repoURL) == "" {
		return nil, fmt.Errorf("failed to analyze: repository URL %w", overtureerrors.ErrEmptyValue)
	}
	if taskID == "" {
		return nil, fmt.Errorf("failed to analyze: task ID %w", overtureerrors.ErrEmptyValue)
	}

	normalized := NormalizeRepoURL(repoURL)
	key := cache.AnalysisKey(normalized)

	if summary := a.fromCache(ctx, key); summary != nil {
		a.logger.Debug().Str("repo_url", normalized).Msg("analysis cache hit")
		return summary, nil
	}

	// Collapse concurrent misses for the same repository into one sandbox
	// run; every waiter gets the shared result.
	result, err, _ := a.group.Do(key, func() (any, error) {
		return a.runSandboxed(ctx, normalized, taskID, key)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.RepoSummary), nil
}

// runSandboxed performs one full sandboxed analysis and caches the result.
func (a *Analyzer) runSandboxed(ctx context.Context, repoURL, taskID, key string) (*domain.RepoSummary, error) {
	runCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	// Sandbox name derives from the task id, so concurrent analyses of
	// different tasks never collide.
	name := constants.SandboxNamePrefix + taskID

	if err := a.provider.Provision(runCtx, name); err != nil {
		return nil, fmt.Errorf("%w: %w", overtureerrors.ErrAnalysisFailed, err)
	}
	// Teardown must run on success, failure, and timeout alike. It uses a
	// fresh background context because runCtx may already be dead.
	defer func() {
		teardownCtx, teardownCancel := context.WithTimeout(context.Background(), constants.SandboxTeardownTimeout)
		defer teardownCancel()
		if err := a.provider.Teardown(teardownCtx, name); err != nil {
			a.logger.Warn().Err(err).Str("sandbox", name).Msg("sandbox teardown failed")
		}
	}()

	start := time.Now()
	summary, err := a.analyzeIn(runCtx, name, repoURL)
	if err != nil {
		return nil, err
	}
	a.logger.Info().
		Str("repo_url", repoURL).
		Dur("duration", time.Since(start)).
		Int("total_files", summary.Counts.TotalFiles).
		Msg("repository analysis completed")

	a.toCache(ctx, key, summary)
	return summary, nil
}

// analyzeIn runs the clone and the analysis script inside an already
// provisioned sandbox.
func (a *Analyzer) analyzeIn(ctx context.Context, name, repoURL string) (*domain.RepoSummary, error) {
	if _, err := a.provider.Exec(ctx, name, []string{"apk", "add", "--no-cache", "--quiet", "git"}); err != nil {
		return nil, fmt.Errorf("%w: install tooling: %w", overtureerrors.ErrAnalysisFailed, err)
	}

	cloneArgs := []string{"git", "clone", "--depth", "1", "--quiet", repoURL, constants.SandboxRepoPath}
	if _, err := a.provider.Exec(ctx, name, cloneArgs); err != nil {
		return nil, fmt.Errorf("%w: clone: %w", overtureerrors.ErrAnalysisFailed, err)
	}

	scriptPath, cleanup, err := a.stageScript()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", overtureerrors.ErrAnalysisFailed, err)
	}
	defer cleanup()

	if err := a.provider.CopyIn(ctx, name, scriptPath, constants.SandboxScriptPath); err != nil {
		return nil, fmt.Errorf("%w: %w", overtureerrors.ErrAnalysisFailed, err)
	}

	out, err := a.provider.Exec(ctx, name, []string{
		"python3", constants.SandboxScriptPath,
		constants.SandboxRepoPath,
		strconv.Itoa(a.cfg.MaxDepth),
		strconv.Itoa(a.cfg.MaxFileKB),
		strconv.Itoa(a.cfg.SnippetLines),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: script: %w", overtureerrors.ErrAnalysisFailed, err)
	}

	// Empty or whitespace-only output is a hard failure, never a silent
	// "no summary".
	if strings.TrimSpace(string(out)) == "" {
		return nil, fmt.Errorf("%w: %w", overtureerrors.ErrAnalysisFailed, overtureerrors.ErrEmptySummary)
	}

	var summary domain.RepoSummary
	if err := json.Unmarshal(out, &summary); err != nil {
		return nil, fmt.Errorf("%w: malformed script output: %w", overtureerrors.ErrAnalysisFailed, err)
	}
	return &summary, nil
}

// stageScript writes the embedded analysis script to a host temp file so
// the provider can copy it into the sandbox. The returned cleanup removes
// the temp file.
func (a *Analyzer) stageScript() (string, func(), error) {
	dir, err := os.MkdirTemp("", "overture-analyze-")
	if err != nil {
		return "", nil, overtureerrors.Wrap(err, "failed to stage analysis script")
	}
	path := filepath.Join(dir, "analyze.py")
	if err := os.WriteFile(path, analyzeScript, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, overtureerrors.Wrap(err, "failed to stage analysis script")
	}
	return path, func() { _ = os.RemoveAll(dir) }, nil
}

// fromCache returns the cached summary for key, or nil on miss. Read
// failures and corrupt entries degrade to a miss; corrupt entries are
// evicted.
func (a *Analyzer) fromCache(ctx context.Context, key string) *domain.RepoSummary {
	data, found, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.Warn().Err(err).Msg("analysis cache read failed")
		return nil
	}
	if !found {
		return nil
	}

	var summary domain.RepoSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		a.logger.Warn().Err(err).Msg("evicting corrupt analysis cache entry")
		if delErr := a.cache.Delete(ctx, key); delErr != nil {
			a.logger.Warn().Err(delErr).Msg("failed to evict corrupt analysis cache entry")
		}
		return nil
	}
	return &summary
}

// toCache stores the summary. Write failures are fire-and-forget: the
// cache is an optimization, never a dependency.
func (a *Analyzer) toCache(ctx context.Context, key string, summary *domain.RepoSummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to marshal analysis for cache")
		return
	}
	if err := a.cache.Set(ctx, key, data, a.ttl); err != nil {
		a.logger.Warn().Err(err).Msg("analysis cache write failed")
	}
}
