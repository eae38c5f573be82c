package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.Origins)
	assert.Equal(t, "pattern", cfg.Scraper.Strategy)
	assert.False(t, cfg.Scraper.SampleFallback)
	assert.Equal(t, 30*time.Second, cfg.Scraper.GetTimeout())
	assert.Equal(t, time.Second, cfg.Scraper.GetDelay())
	assert.Zero(t, cfg.Cache.GetTTL())
	require.NoError(t, cfg.Validate())
}

func TestConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("DIVIDENDOS_PORT", "9090")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestConfig_PlatformPortOverride(t *testing.T) {
	t.Setenv("PORT", "8081")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, 8081, cfg.Server.Port)
}

func TestConfig_CORSOriginList(t *testing.T) {
	t.Setenv("CORS_ORIGIN", "http://a.example, http://b.example,")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORS.Origins)
}

func TestConfig_CacheTTLOverride(t *testing.T) {
	t.Setenv("DIVIDENDOS_CACHE_TTL", "6h")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, 6*time.Hour, cfg.Cache.GetTTL())
}

func TestConfig_ZeroDelay(t *testing.T) {
	cfg := ScraperConfig{Delay: "0s"}
	assert.Zero(t, cfg.GetDelay())

	cfg.Delay = "garbage"
	assert.Equal(t, time.Second, cfg.GetDelay())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dividendos.toml")
	content := `
environment = "production"

[scraper]
strategy = "markup"
delay = "2s"

[cache]
ttl = "1h"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("DIVIDENDOS_SCRAPER_DELAY", "500ms")

	cfg, err := LoadConfig(path, filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "markup", cfg.Scraper.Strategy)
	assert.Equal(t, 500*time.Millisecond, cfg.Scraper.GetDelay())
	assert.Equal(t, time.Hour, cfg.Cache.GetTTL())
	// untouched sections keep their defaults
	assert.Equal(t, 3001, cfg.Server.Port)
}

func TestLoadConfig_RejectsUnknownStrategy(t *testing.T) {
	t.Setenv("DIVIDENDOS_SCRAPER_STRATEGY", "xpath")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xpath")
}

func TestLoadConfig_RejectsBadTTL(t *testing.T) {
	t.Setenv("DIVIDENDOS_CACHE_TTL", "six hours")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestValidate_SampleFallbackOnlyOutsideProduction(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Scraper.SampleFallback = true
	require.NoError(t, cfg.Validate())

	cfg.Environment = "production"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample_fallback")
}

func TestIsFresh(t *testing.T) {
	assert.False(t, IsFresh(time.Time{}, time.Hour))
	assert.True(t, IsFresh(time.Now().Add(-30*time.Minute), time.Hour))
	assert.False(t, IsFresh(time.Now().Add(-2*time.Hour), time.Hour))
	assert.True(t, IsFresh(time.Now().Add(-1000*time.Hour), 0))
}

func TestLoadVersionFile(t *testing.T) {
	origV, origB, origC := Version, Build, GitCommit
	t.Cleanup(func() { Version, Build, GitCommit = origV, origB, origC })
	Version, Build, GitCommit = "dev", "unknown", "unknown"

	path := filepath.Join(t.TempDir(), ".version")
	require.NoError(t, os.WriteFile(path, []byte("# build info\nversion: 1.2.0\nbuild: 2026-10-01\ncommit: abc123\n"), 0644))

	loadVersionFile(path)

	assert.Equal(t, "1.2.0", Version)
	assert.Equal(t, "2026-10-01", Build)
	assert.Equal(t, "abc123", GitCommit)
}
