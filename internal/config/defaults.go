package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/overture-dev/overture/internal/constants"
)

// DefaultConfig returns a new Config with sensible default values.
// These defaults are the base layer that config files, environment
// variables, and CLI flags override.
func DefaultConfig() *Config {
	return &Config{
		// Home: empty means resolve ~/.overture at use time.
		Home: "",
		Redis: RedisConfig{
			Addr:        "127.0.0.1:6379",
			DB:          0,
			MaxIdle:     10,
			IdleTimeout: 240 * time.Second,
		},
		Cache: CacheConfig{
			AnalysisTTL:   constants.DefaultAnalysisCacheTTL,
			GenerationTTL: constants.DefaultGenerationCacheTTL,
		},
		Sandbox: SandboxConfig{
			Image:   constants.DefaultSandboxImage,
			Timeout: constants.DefaultAnalysisTimeout,

			// MaxDepth: 6 captures app structure without descending into
			// generated trees.
			MaxDepth: 6,

			// MaxFileKB: files above 256KB are almost never hand-written
			// source; skip them outright.
			MaxFileKB: 256,

			SnippetLines: 30,
		},
		Gateway: GatewayConfig{
			BaseURL: "https://api.anthropic.com",

			// APIKeyEnvVar: keeps the key out of config files.
			APIKeyEnvVar: "ANTHROPIC_API_KEY",

			DefaultModel: "claude-sonnet-4-20250514",
			Models: []string{
				"claude-sonnet-4-20250514",
				"claude-opus-4-20250514",
				"claude-3-5-haiku-20241022",
			},
			Timeout: constants.DefaultGenerationTimeout,
			Policies: map[string]PolicyConfig{
				constants.UseCaseRepoUnderstanding.String(): {
					MaxInputTokens:  100_000,
					MaxOutputTokens: 4_096,
					Temperature:     0.2,
				},
				constants.UseCasePlanGeneration.String(): {
					MaxInputTokens:  120_000,
					MaxOutputTokens: 8_192,
					Temperature:     0.5,
				},
				constants.UseCasePRReview.String(): {
					MaxInputTokens:  150_000,
					MaxOutputTokens: 8_192,
					Temperature:     0.3,
				},
				constants.UseCaseCodeGeneration.String(): {
					MaxInputTokens:  150_000,
					MaxOutputTokens: 16_384,
					Temperature:     0.7,
				},
			},
		},
		Quota: QuotaConfig{
			Limits: map[string]int{
				constants.TierFree.String(): constants.DefaultFreeTierDailyLimit,
				constants.TierPro.String():  constants.DefaultProTierDailyLimit,
				constants.TierTeam.String(): constants.DefaultTeamTierDailyLimit,
			},
		},
	}
}

// setDefaults registers the default configuration values with a Viper instance.
// Keys use dot notation matching the mapstructure tags on Config.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("home", def.Home)

	v.SetDefault("redis.addr", def.Redis.Addr)
	v.SetDefault("redis.db", def.Redis.DB)
	v.SetDefault("redis.max_idle", def.Redis.MaxIdle)
	v.SetDefault("redis.idle_timeout", def.Redis.IdleTimeout)

	v.SetDefault("cache.analysis_ttl", def.Cache.AnalysisTTL)
	v.SetDefault("cache.generation_ttl", def.Cache.GenerationTTL)

	v.SetDefault("sandbox.image", def.Sandbox.Image)
	v.SetDefault("sandbox.timeout", def.Sandbox.Timeout)
	v.SetDefault("sandbox.max_depth", def.Sandbox.MaxDepth)
	v.SetDefault("sandbox.max_file_kb", def.Sandbox.MaxFileKB)
	v.SetDefault("sandbox.snippet_lines", def.Sandbox.SnippetLines)

	v.SetDefault("gateway.base_url", def.Gateway.BaseURL)
	v.SetDefault("gateway.api_key_env_var", def.Gateway.APIKeyEnvVar)
	v.SetDefault("gateway.default_model", def.Gateway.DefaultModel)
	v.SetDefault("gateway.models", def.Gateway.Models)
	v.SetDefault("gateway.timeout", def.Gateway.Timeout)
	for useCase, policy := range def.Gateway.Policies {
		v.SetDefault("gateway.policies."+useCase+".max_input_tokens", policy.MaxInputTokens)
		v.SetDefault("gateway.policies."+useCase+".max_output_tokens", policy.MaxOutputTokens)
		v.SetDefault("gateway.policies."+useCase+".temperature", policy.Temperature)
	}

	for tier, limit := range def.Quota.Limits {
		v.SetDefault("quota.limits."+tier, limit)
	}
}
