package config

import (
	"fmt"

	"github.com/overture-dev/overture/internal/constants"
	"github.com/overture-dev/overture/internal/errors"
)

// Validate checks a Config for values that would break components at runtime.
// It returns the first problem found, wrapped with enough context to render
// a specific message.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if cfg.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr is required", errors.ErrConfigInvalid)
	}

	if cfg.Cache.AnalysisTTL <= 0 {
		return fmt.Errorf("%w: cache.analysis_ttl must be positive", errors.ErrConfigInvalid)
	}
	if cfg.Cache.GenerationTTL <= 0 {
		return fmt.Errorf("%w: cache.generation_ttl must be positive", errors.ErrConfigInvalid)
	}

	if cfg.Sandbox.Image == "" {
		return fmt.Errorf("%w: sandbox.image is required", errors.ErrConfigInvalid)
	}
	if cfg.Sandbox.Timeout <= 0 {
		return fmt.Errorf("%w: sandbox.timeout must be positive", errors.ErrConfigInvalid)
	}
	if cfg.Sandbox.MaxDepth < 1 {
		return fmt.Errorf("%w: sandbox.max_depth must be at least 1", errors.ErrConfigInvalid)
	}
	if cfg.Sandbox.MaxFileKB < 1 {
		return fmt.Errorf("%w: sandbox.max_file_kb must be at least 1", errors.ErrConfigInvalid)
	}

	if cfg.Gateway.DefaultModel == "" {
		return fmt.Errorf("%w: gateway.default_model is required", errors.ErrConfigInvalid)
	}
	if !containsModel(cfg.Gateway.Models, cfg.Gateway.DefaultModel) {
		return fmt.Errorf("%w: gateway.default_model %q is not in gateway.models",
			errors.ErrConfigInvalid, cfg.Gateway.DefaultModel)
	}

	// Every use case the engine relies on must have a policy; policy lookup
	// is mandatory at call time and must not discover gaps in production.
	required := []constants.UseCase{
		constants.UseCaseRepoUnderstanding,
		constants.UseCasePlanGeneration,
		constants.UseCasePRReview,
		constants.UseCaseCodeGeneration,
	}
	for _, useCase := range required {
		policy, ok := cfg.Gateway.Policies[useCase.String()]
		if !ok {
			return fmt.Errorf("%w: gateway.policies.%s is missing", errors.ErrConfigInvalid, useCase)
		}
		if policy.MaxInputTokens <= 0 {
			return fmt.Errorf("%w: gateway.policies.%s.max_input_tokens must be positive",
				errors.ErrConfigInvalid, useCase)
		}
		if policy.MaxOutputTokens <= 0 {
			return fmt.Errorf("%w: gateway.policies.%s.max_output_tokens must be positive",
				errors.ErrConfigInvalid, useCase)
		}
		if policy.Temperature < 0 || policy.Temperature > 1 {
			return fmt.Errorf("%w: gateway.policies.%s.temperature must be within [0, 1]",
				errors.ErrConfigInvalid, useCase)
		}
	}

	for tier, limit := range cfg.Quota.Limits {
		if limit < 1 {
			return fmt.Errorf("%w: quota.limits.%s must be at least 1", errors.ErrConfigInvalid, tier)
		}
	}

	return nil
}

// containsModel reports whether models contains id.
func containsModel(models []string, id string) bool {
	for _, m := range models {
		if m == id {
			return true
		}
	}
	return false
}
