// Package config provides configuration management for Overture with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (bound by the cli package)
//  2. Environment variables (OVERTURE_* prefix)
//  3. Project config (.overture/config.yaml)
//  4. Global config (~/.overture/config.yaml)
//  5. Built-in defaults
//
// The loaded Config is immutable after Load returns and is passed to
// components by injection (gateway policies, model registry, quota limits),
// never read through ambient globals. That keeps every component testable
// with fake policies.
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import (
	"time"

	"github.com/overture-dev/overture/internal/constants"
)

// Config is the root configuration structure for Overture.
type Config struct {
	// Home is the Overture data directory (default ~/.overture).
	Home string `yaml:"home" mapstructure:"home"`

	// Redis contains connection settings for the shared cache store.
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`

	// Cache contains TTL settings for memoized results.
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// Sandbox contains settings for the sandboxed repository analyzer.
	Sandbox SandboxConfig `yaml:"sandbox" mapstructure:"sandbox"`

	// Gateway contains settings for the model gateway.
	Gateway GatewayConfig `yaml:"gateway" mapstructure:"gateway"`

	// Quota contains per-tier daily task limits.
	Quota QuotaConfig `yaml:"quota" mapstructure:"quota"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string `yaml:"addr" mapstructure:"addr"`

	// Password authenticates the connection. Empty means no AUTH.
	Password string `yaml:"password" mapstructure:"password"`

	// DB selects the Redis logical database.
	DB int `yaml:"db" mapstructure:"db"`

	// MaxIdle bounds the connection pool's idle connections.
	MaxIdle int `yaml:"max_idle" mapstructure:"max_idle"`

	// IdleTimeout closes idle connections after this duration.
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// CacheConfig contains TTLs for the two memoization flavors.
type CacheConfig struct {
	// AnalysisTTL is how long repository analyses are memoized (~12h:
	// repo structure ages slowly).
	AnalysisTTL time.Duration `yaml:"analysis_ttl" mapstructure:"analysis_ttl"`

	// GenerationTTL is how long model responses are memoized (~2h: plans
	// are more likely to reflect stale repo state).
	GenerationTTL time.Duration `yaml:"generation_ttl" mapstructure:"generation_ttl"`
}

// SandboxConfig contains settings for the sandboxed analyzer.
type SandboxConfig struct {
	// Image is the container image used for analysis runs.
	Image string `yaml:"image" mapstructure:"image"`

	// Timeout bounds the full analysis run (provision + clone + script).
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// MaxDepth is the tree-walk depth ceiling. Directories beyond it are
	// omitted entirely.
	MaxDepth int `yaml:"max_depth" mapstructure:"max_depth"`

	// MaxFileKB is the per-file size ceiling; larger files are skipped,
	// not truncated.
	MaxFileKB int `yaml:"max_file_kb" mapstructure:"max_file_kb"`

	// SnippetLines is how many leading lines are captured for entry points
	// and small-category files.
	SnippetLines int `yaml:"snippet_lines" mapstructure:"snippet_lines"`
}

// GatewayConfig contains settings for the model gateway.
type GatewayConfig struct {
	// BaseURL is the model backend endpoint.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// APIKeyEnvVar names the environment variable holding the backend API
	// key. The key itself never lives in config files.
	APIKeyEnvVar string `yaml:"api_key_env_var" mapstructure:"api_key_env_var"`

	// DefaultModel is the deployment default model id.
	DefaultModel string `yaml:"default_model" mapstructure:"default_model"`

	// Models is the known-model registry. Explicit model ids outside this
	// list are rejected.
	Models []string `yaml:"models" mapstructure:"models"`

	// Timeout bounds a single gateway call, streaming or not.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Policies maps use case names to their token/temperature policies.
	Policies map[string]PolicyConfig `yaml:"policies" mapstructure:"policies"`
}

// PolicyConfig is the per-use-case gateway policy.
type PolicyConfig struct {
	// MaxInputTokens is the input ceiling enforced by the client-side
	// estimate before any network call.
	MaxInputTokens int `yaml:"max_input_tokens" mapstructure:"max_input_tokens"`

	// MaxOutputTokens caps the backend's output.
	MaxOutputTokens int `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`

	// Temperature is the sampling temperature for this use case.
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// QuotaConfig maps subscription tiers to daily task limits.
type QuotaConfig struct {
	// Limits maps tier name to tasks per user per calendar day.
	Limits map[string]int `yaml:"limits" mapstructure:"limits"`
}

// LimitForTier returns the daily task limit for the tier, falling back to
// the free-tier default for unknown tiers.
func (q QuotaConfig) LimitForTier(tier constants.Tier) int {
	if limit, ok := q.Limits[tier.String()]; ok && limit > 0 {
		return limit
	}
	return constants.DefaultFreeTierDailyLimit
}
