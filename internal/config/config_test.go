package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 15, cfg.Crawl.TimeoutSeconds)
	require.Equal(t, 5, cfg.Crawl.PauseEvery)
	require.Equal(t, 10, cfg.Crawl.ProgressEvery)
	require.Equal(t, 365, cfg.Ranking.DefaultLimit)
	require.Equal(t, "pages", cfg.Archive.Prefix)
	require.False(t, cfg.Crawl.ArchiveRawPages)
	require.Equal(t, 15*time.Second, cfg.FetchTimeout())
	require.Equal(t, 200*time.Millisecond, cfg.Pause())
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
server:
  port: 9090
crawl:
  user_agent: agency-bot/2.0
  pause_ms: 50
ranking:
  default_limit: 90
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "agency-bot/2.0", cfg.Crawl.UserAgent)
	require.Equal(t, 50*time.Millisecond, cfg.Pause())
	require.Equal(t, 90, cfg.Ranking.DefaultLimit)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SEOPIPE_SERVER_PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	t.Run("auth enabled without key", func(t *testing.T) {
		cfg := base()
		cfg.Auth.Enabled = true
		require.Error(t, cfg.Validate())
	})

	t.Run("archive enabled without bucket", func(t *testing.T) {
		cfg := base()
		cfg.Crawl.ArchiveRawPages = true
		require.Error(t, cfg.Validate())
	})

	t.Run("zero pause cadence", func(t *testing.T) {
		cfg := base()
		cfg.Crawl.PauseEvery = 0
		require.Error(t, cfg.Validate())
	})
}
