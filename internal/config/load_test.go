package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/overture-dev/overture/internal/constants"
)

// isolateHome points HOME at a scratch directory so tests never read the
// developer's real global config. t.Setenv rules out t.Parallel for these.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoad_Defaults(t *testing.T) {
	isolateHome(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, constants.DefaultAnalysisCacheTTL, cfg.Cache.AnalysisTTL)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Gateway.DefaultModel)
	assert.NotEmpty(t, cfg.Gateway.Policies)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	isolateHome(t)
	t.Setenv("OVERTURE_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("OVERTURE_GATEWAY_TIMEOUT", "90s")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 90*time.Second, cfg.Gateway.Timeout)
}

func TestLoad_GlobalConfigFile(t *testing.T) {
	home := isolateHome(t)

	dir := filepath.Join(home, constants.OvertureHome)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	content := []byte("redis:\n  addr: \"10.0.0.5:6379\"\ncache:\n  analysis_ttl: 6h\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.GlobalConfigName), content, 0o600))

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5:6379", cfg.Redis.Addr)
	assert.Equal(t, 6*time.Hour, cfg.Cache.AnalysisTTL)

	// Keys the file does not set keep their defaults.
	assert.Equal(t, constants.DefaultGenerationCacheTTL, cfg.Cache.GenerationTTL)
}

func TestLoad_EnvBeatsConfigFile(t *testing.T) {
	home := isolateHome(t)

	dir := filepath.Join(home, constants.OvertureHome)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	content := []byte("redis:\n  addr: \"from-file:6379\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.GlobalConfigName), content, 0o600))

	t.Setenv("OVERTURE_REDIS_ADDR", "from-env:6379")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env:6379", cfg.Redis.Addr)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	isolateHome(t)
	t.Setenv("OVERTURE_CACHE_ANALYSIS_TTL", "-5m")

	// A nonsense value fails validation at load time, not later inside a
	// component.
	_, err := Load(context.Background())
	require.Error(t, err)
}

func TestRenderYAML_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	out, err := RenderYAML(cfg)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, yaml.Unmarshal(out, &decoded))

	assert.Equal(t, cfg.Redis.Addr, decoded.Redis.Addr)
	assert.Equal(t, cfg.Gateway.DefaultModel, decoded.Gateway.DefaultModel)
	assert.Equal(t, cfg.Quota.Limits, decoded.Quota.Limits)

	// The rendered file passes its own validation.
	require.NoError(t, Validate(&decoded))
}

func TestRenderYAML_NilConfig(t *testing.T) {
	t.Parallel()

	_, err := RenderYAML(nil)
	require.Error(t, err)
}

func TestResolveHome(t *testing.T) {
	explicit := &Config{Home: "/data/overture"}
	got, err := explicit.ResolveHome()
	require.NoError(t, err)
	assert.Equal(t, "/data/overture", got)

	home := isolateHome(t)
	resolved, err := (&Config{}).ResolveHome()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, constants.OvertureHome), resolved)
}
