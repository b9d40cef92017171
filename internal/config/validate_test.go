package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overture-dev/overture/internal/constants"
	"github.com/overture-dev/overture/internal/errors"
)

func TestValidate_DefaultsPass(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate(DefaultConfig()))
}

func TestValidate_NilConfig(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Validate(nil), errors.ErrConfigNil)
}

func TestValidate_RejectsBrokenConfigs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "missing redis addr",
			mutate:  func(c *Config) { c.Redis.Addr = "" },
			wantMsg: "redis.addr",
		},
		{
			name:    "zero analysis ttl",
			mutate:  func(c *Config) { c.Cache.AnalysisTTL = 0 },
			wantMsg: "cache.analysis_ttl",
		},
		{
			name:    "negative generation ttl",
			mutate:  func(c *Config) { c.Cache.GenerationTTL = -1 },
			wantMsg: "cache.generation_ttl",
		},
		{
			name:    "missing sandbox image",
			mutate:  func(c *Config) { c.Sandbox.Image = "" },
			wantMsg: "sandbox.image",
		},
		{
			name:    "zero sandbox timeout",
			mutate:  func(c *Config) { c.Sandbox.Timeout = 0 },
			wantMsg: "sandbox.timeout",
		},
		{
			name:    "zero max depth",
			mutate:  func(c *Config) { c.Sandbox.MaxDepth = 0 },
			wantMsg: "sandbox.max_depth",
		},
		{
			name:    "zero max file size",
			mutate:  func(c *Config) { c.Sandbox.MaxFileKB = 0 },
			wantMsg: "sandbox.max_file_kb",
		},
		{
			name:    "missing default model",
			mutate:  func(c *Config) { c.Gateway.DefaultModel = "" },
			wantMsg: "gateway.default_model",
		},
		{
			name:    "default model not registered",
			mutate:  func(c *Config) { c.Gateway.DefaultModel = "gpt-nonexistent" },
			wantMsg: "is not in gateway.models",
		},
		{
			name: "missing required policy",
			mutate: func(c *Config) {
				delete(c.Gateway.Policies, constants.UseCasePlanGeneration.String())
			},
			wantMsg: "gateway.policies.plan-generation is missing",
		},
		{
			name: "zero policy input ceiling",
			mutate: func(c *Config) {
				p := c.Gateway.Policies[constants.UseCasePRReview.String()]
				p.MaxInputTokens = 0
				c.Gateway.Policies[constants.UseCasePRReview.String()] = p
			},
			wantMsg: "max_input_tokens",
		},
		{
			name: "zero policy output ceiling",
			mutate: func(c *Config) {
				p := c.Gateway.Policies[constants.UseCaseCodeGeneration.String()]
				p.MaxOutputTokens = 0
				c.Gateway.Policies[constants.UseCaseCodeGeneration.String()] = p
			},
			wantMsg: "max_output_tokens",
		},
		{
			name: "temperature above range",
			mutate: func(c *Config) {
				p := c.Gateway.Policies[constants.UseCaseRepoUnderstanding.String()]
				p.Temperature = 1.5
				c.Gateway.Policies[constants.UseCaseRepoUnderstanding.String()] = p
			},
			wantMsg: "temperature",
		},
		{
			name: "negative temperature",
			mutate: func(c *Config) {
				p := c.Gateway.Policies[constants.UseCaseRepoUnderstanding.String()]
				p.Temperature = -0.1
				c.Gateway.Policies[constants.UseCaseRepoUnderstanding.String()] = p
			},
			wantMsg: "temperature",
		},
		{
			name:    "zero quota limit",
			mutate:  func(c *Config) { c.Quota.Limits[constants.TierFree.String()] = 0 },
			wantMsg: "quota.limits.free",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.ErrorIs(t, err, errors.ErrConfigInvalid)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestQuotaConfig_LimitForTier(t *testing.T) {
	t.Parallel()

	cfg := QuotaConfig{Limits: map[string]int{
		constants.TierFree.String(): 3,
		constants.TierPro.String():  50,
	}}

	assert.Equal(t, 3, cfg.LimitForTier(constants.TierFree))
	assert.Equal(t, 50, cfg.LimitForTier(constants.TierPro))

	// Unknown tiers fall back to the free-tier default rather than zero.
	assert.Equal(t, constants.DefaultFreeTierDailyLimit, cfg.LimitForTier(constants.Tier("enterprise")))
	assert.Equal(t, constants.DefaultFreeTierDailyLimit, QuotaConfig{}.LimitForTier(constants.TierTeam))
}
