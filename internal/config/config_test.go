package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points user config lookups at an empty directory and clears env overrides.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{
		TokenEnvVar, "REPOSCOUT_GITLAB_URL", "REPOSCOUT_TIMEOUT", "REPOSCOUT_CACHE_DIR",
		"REPOSCOUT_REPO_TTL", "REPOSCOUT_DOC_TTL", "REPOSCOUT_WORKERS",
		"REPOSCOUT_WARM_CACHE", "REPOSCOUT_LOG_LEVEL", "REPOSCOUT_TELEMETRY",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	require.NotNil(t, cfg)

	assert.Equal(t, "v4", cfg.GitLab.APIVersion)
	assert.Equal(t, 30*time.Second, cfg.GitLab.Timeout)
	assert.Equal(t, 100, cfg.GitLab.PageSize)
	assert.Equal(t, 10, cfg.GitLab.MaxFileSizeMB)

	assert.Equal(t, time.Hour, cfg.Cache.RepoTTL)
	assert.Equal(t, 24*time.Hour, cfg.Cache.DocTTL)
	assert.NotEmpty(t, cfg.Cache.Dir)

	assert.Equal(t, 10, cfg.Search.DefaultTopK)
	assert.Equal(t, 50, cfg.Search.MaxTopK)
	assert.Equal(t, 100, cfg.Search.WarmupLimit)
	assert.Equal(t, 3, cfg.Search.CandidateFactor)
	assert.True(t, cfg.Search.WarmCache)

	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig().GitLab.BaseURL, cfg.GitLab.BaseURL)
	assert.Empty(t, cfg.GitLab.Token)
}

func TestLoad_ProjectYaml_OverridesDefaults(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	// Given: a project config with overrides
	writeFile(t, filepath.Join(dir, ".reposcout.yaml"), `
gitlab:
  base_url: https://git.example.org
  timeout: 5s
cache:
  repo_ttl: 10m
indexer:
  workers: 2
  exclude:
    - "docs/archive/**"
search:
  default_top_k: 5
`)

	// When: loading
	cfg, err := Load(dir)

	// Then: overrides are applied and untouched fields keep defaults
	require.NoError(t, err)
	assert.Equal(t, "https://git.example.org", cfg.GitLab.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.GitLab.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Cache.RepoTTL)
	assert.Equal(t, 24*time.Hour, cfg.Cache.DocTTL)
	assert.Equal(t, 2, cfg.Indexer.Workers)
	assert.Contains(t, cfg.Indexer.Exclude, "docs/archive/**")
	assert.Contains(t, cfg.Indexer.Exclude, "**/node_modules/**")
	assert.Equal(t, 5, cfg.Search.DefaultTopK)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".reposcout.yml"), "server:\n  log_level: debug\n")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".reposcout.yaml"), "gitlab: [unclosed\n")

	_, err := Load(dir)

	assert.Error(t, err)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"relative base url", "gitlab:\n  base_url: gitlab.local\n"},
		{"page size too large", "gitlab:\n  page_size: 500\n"},
		{"too many workers", "indexer:\n  workers: 100\n"},
		{"top k above max", "search:\n  default_top_k: 80\n"},
		{"unknown transport", "server:\n  transport: sse\n"},
		{"bad log level", "server:\n  log_level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, ".reposcout.yaml"), tt.content)

			_, err := Load(dir)

			assert.Error(t, err)
		})
	}
}

func TestLoad_TokenComesOnlyFromEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	// A token key in the file is ignored.
	writeFile(t, filepath.Join(dir, ".reposcout.yaml"), "gitlab:\n  token: from-file\n")
	t.Setenv(TokenEnvVar, "  glpat-secret  ")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "glpat-secret", cfg.GitLab.Token)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	cacheDir := t.TempDir()
	t.Setenv("REPOSCOUT_GITLAB_URL", "https://code.example.net")
	t.Setenv("REPOSCOUT_CACHE_DIR", cacheDir)
	t.Setenv("REPOSCOUT_REPO_TTL", "120")
	t.Setenv("REPOSCOUT_DOC_TTL", "2h")
	t.Setenv("REPOSCOUT_WORKERS", "1")
	t.Setenv("REPOSCOUT_WARM_CACHE", "false")
	t.Setenv("REPOSCOUT_TELEMETRY", "0")

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, "https://code.example.net", cfg.GitLab.BaseURL)
	assert.Equal(t, cacheDir, cfg.Cache.Dir)
	assert.Equal(t, 2*time.Minute, cfg.Cache.RepoTTL)
	assert.Equal(t, 2*time.Hour, cfg.Cache.DocTTL)
	assert.Equal(t, 1, cfg.Indexer.Workers)
	assert.False(t, cfg.Search.WarmCache)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, filepath.Join(cacheDir, "telemetry.db"), cfg.TelemetryPath())
}

func TestLoad_EnvOverridesUserAndProjectConfig(t *testing.T) {
	isolate(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	writeFile(t, filepath.Join(xdg, "reposcout", "config.yaml"), "gitlab:\n  base_url: https://user.example\nsearch:\n  warmup_limit: 20\n")

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".reposcout.yaml"), "gitlab:\n  base_url: https://project.example\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://project.example", cfg.GitLab.BaseURL)
	assert.Equal(t, 20, cfg.Search.WarmupLimit)

	t.Setenv("REPOSCOUT_GITLAB_URL", "https://env.example")
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example", cfg.GitLab.BaseURL)
}

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"3600", time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"0", 0, true},
		{"-5s", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTTL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	cfg := NewConfig()
	cfg.GitLab.BaseURL = "https://git.internal.example"
	cfg.GitLab.Token = "must-not-be-written"
	cfg.Cache.DocTTL = 6 * time.Hour

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ".reposcout.yaml")))

	data, err := os.ReadFile(filepath.Join(dir, ".reposcout.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "must-not-be-written")

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://git.internal.example", loaded.GitLab.BaseURL)
	assert.Equal(t, 6*time.Hour, loaded.Cache.DocTTL)
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	assert.Equal(t, filepath.Join(xdg, "reposcout", "config.yaml"), GetUserConfigPath())
	assert.Equal(t, filepath.Join(xdg, "reposcout"), GetUserConfigDir())
	assert.False(t, UserConfigExists())
}
