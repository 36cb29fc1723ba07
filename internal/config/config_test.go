package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, 0, cfg.Pool.Workers)
	require.Equal(t, 2, cfg.Crawler.MaxDepth)
	require.Equal(t, 16, cfg.Crawler.PageConcurrency)
	require.Equal(t, 30, cfg.Crawler.NavTimeoutSeconds)
	require.True(t, cfg.Headless.Enabled)
}

func TestLoad_PlainHostPortEnv(t *testing.T) {
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9100")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "127.0.0.1:9100", cfg.ListenAddr())
}

func TestLoad_PrefixedEnvOverrides(t *testing.T) {
	t.Setenv("CRAWLER_POOL_WORKERS", "3")
	t.Setenv("CRAWLER_CRAWLER_MAX_DEPTH", "1")
	t.Setenv("CRAWLER_HEADLESS_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Pool.Workers)
	require.Equal(t, 3, cfg.WorkerCount())
	require.Equal(t, 1, cfg.Crawler.MaxDepth)
	require.False(t, cfg.Headless.Enabled)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "-1")

	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "server.port")
}

func TestValidate_Limits(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8000},
		Crawler:  CrawlerConfig{MaxDepth: 2, PageConcurrency: 16, NavTimeoutSeconds: 30},
		Headless: HeadlessConfig{Enabled: true, MaxParallel: 16},
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.Crawler.PageConcurrency = 0
	require.Error(t, bad.Validate())

	bad = base
	bad.Crawler.NavTimeoutSeconds = 0
	require.Error(t, bad.Validate())

	bad = base
	bad.Headless.MaxParallel = 0
	require.Error(t, bad.Validate())

	bad = base
	bad.Pool.Workers = -1
	require.Error(t, bad.Validate())
}

func TestWorkerCount_DefaultsToLogicalCores(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	require.Equal(t, runtime.NumCPU(), cfg.WorkerCount())

	cfg.Pool.Workers = 5
	require.Equal(t, 5, cfg.WorkerCount())
}

func TestNavTimeout(t *testing.T) {
	t.Parallel()

	cfg := Config{Crawler: CrawlerConfig{NavTimeoutSeconds: 30}}
	require.Equal(t, 30*time.Second, cfg.NavTimeout())
}
