package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TokenEnvVar holds the upstream private token. It is only ever read from the
// environment and never persisted to a config file.
const TokenEnvVar = "GITLAB_PRIVATE_TOKEN"

// Config represents the complete reposcout configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	GitLab    GitLabConfig    `yaml:"gitlab" json:"gitlab"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Indexer   IndexerConfig   `yaml:"indexer" json:"indexer"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// GitLabConfig configures the read-only upstream API client.
type GitLabConfig struct {
	// BaseURL is the hosting instance; every request URL must start with it.
	BaseURL    string `yaml:"base_url" json:"base_url"`
	APIVersion string `yaml:"api_version" json:"api_version"`

	// Token is populated from GITLAB_PRIVATE_TOKEN. Empty means public read-only access.
	Token string `yaml:"-" json:"-"`

	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	PageSize      int           `yaml:"page_size" json:"page_size"`
	MaxFileSizeMB int           `yaml:"max_file_size_mb" json:"max_file_size_mb"`
	// MaxTreePages bounds recursive tree pagination per repository.
	MaxTreePages int `yaml:"max_tree_pages" json:"max_tree_pages"`
	// Retries is how many times a timed-out or 5xx request is retried.
	Retries int `yaml:"retries" json:"retries"`
}

// CacheConfig configures the on-disk repository and documentation caches.
type CacheConfig struct {
	Dir     string        `yaml:"dir" json:"dir"`
	RepoTTL time.Duration `yaml:"repo_ttl" json:"repo_ttl"`
	DocTTL  time.Duration `yaml:"doc_ttl" json:"doc_ttl"`
	// LockTimeout is how long a writer waits for the cache directory lock.
	LockTimeout time.Duration `yaml:"lock_timeout" json:"lock_timeout"`
}

// IndexerConfig configures documentation discovery.
type IndexerConfig struct {
	// Workers is the number of repositories indexed concurrently.
	Workers int `yaml:"workers" json:"workers"`
	// Exclude lists extra doublestar globs never indexed, on top of the
	// built-in sensitive path denylist.
	Exclude []string `yaml:"exclude" json:"exclude"`
	// ProgressEvery is how often (in repositories) progress is reported.
	ProgressEvery int `yaml:"progress_every" json:"progress_every"`
}

// SearchConfig configures ranking limits.
type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k" json:"max_top_k"`
	// WarmupLimit is how many metadata candidates are indexed when the
	// documentation cache is stale.
	WarmupLimit int `yaml:"warmup_limit" json:"warmup_limit"`
	// CandidateFactor multiplies top_k to size the content scoring pass.
	CandidateFactor int  `yaml:"candidate_factor" json:"candidate_factor"`
	WarmCache       bool `yaml:"warm_cache" json:"warm_cache"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
	// Prewarm indexes every repository's documentation in the background
	// when the server starts.
	Prewarm bool `yaml:"prewarm" json:"prewarm"`
}

// TelemetryConfig configures local query metrics.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// DBPath is the SQLite file for persisted metrics. Empty puts it in the cache dir.
	DBPath string `yaml:"db_path" json:"db_path"`
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		GitLab: GitLabConfig{
			BaseURL:       "https://gitlab.com",
			APIVersion:    "v4",
			Timeout:       30 * time.Second,
			PageSize:      100,
			MaxFileSizeMB: 10,
			MaxTreePages:  20,
			Retries:       2,
		},
		Cache: CacheConfig{
			Dir:         defaultCacheDir(),
			RepoTTL:     time.Hour,
			DocTTL:      24 * time.Hour,
			LockTimeout: 10 * time.Second,
		},
		Indexer: IndexerConfig{
			Workers:       4,
			Exclude:       []string{"**/node_modules/**", "**/vendor/**", "**/testdata/**"},
			ProgressEvery: 10,
		},
		Search: SearchConfig{
			DefaultTopK:     10,
			MaxTopK:         50,
			WarmupLimit:     100,
			CandidateFactor: 3,
			WarmCache:       true,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
	}
}

func defaultCacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "reposcout")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".reposcout", "cache")
	}
	return filepath.Join(home, ".reposcout", "cache")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/reposcout/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/reposcout/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "reposcout", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "reposcout", "config.yaml")
	}
	return filepath.Join(home, ".config", "reposcout", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := &Config{}
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for the given working directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/reposcout/config.yaml)
//  3. Project config (.reposcout.yaml in dir)
//  4. Environment variables (REPOSCOUT_*, GITLAB_PRIVATE_TOKEN)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, err
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	if dir == "" {
		return nil
	}
	for _, name := range []string{".reposcout.yaml", ".reposcout.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
// Booleans cannot be told apart from "unset", so a file can only turn them on;
// env vars can turn them off.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	g := other.GitLab
	if g.BaseURL != "" {
		c.GitLab.BaseURL = g.BaseURL
	}
	if g.APIVersion != "" {
		c.GitLab.APIVersion = g.APIVersion
	}
	if g.Timeout != 0 {
		c.GitLab.Timeout = g.Timeout
	}
	if g.PageSize != 0 {
		c.GitLab.PageSize = g.PageSize
	}
	if g.MaxFileSizeMB != 0 {
		c.GitLab.MaxFileSizeMB = g.MaxFileSizeMB
	}
	if g.MaxTreePages != 0 {
		c.GitLab.MaxTreePages = g.MaxTreePages
	}
	if g.Retries != 0 {
		c.GitLab.Retries = g.Retries
	}

	if other.Cache.Dir != "" {
		c.Cache.Dir = other.Cache.Dir
	}
	if other.Cache.RepoTTL != 0 {
		c.Cache.RepoTTL = other.Cache.RepoTTL
	}
	if other.Cache.DocTTL != 0 {
		c.Cache.DocTTL = other.Cache.DocTTL
	}
	if other.Cache.LockTimeout != 0 {
		c.Cache.LockTimeout = other.Cache.LockTimeout
	}

	if other.Indexer.Workers != 0 {
		c.Indexer.Workers = other.Indexer.Workers
	}
	if len(other.Indexer.Exclude) > 0 {
		c.Indexer.Exclude = append(c.Indexer.Exclude, other.Indexer.Exclude...)
	}
	if other.Indexer.ProgressEvery != 0 {
		c.Indexer.ProgressEvery = other.Indexer.ProgressEvery
	}

	s := other.Search
	if s.DefaultTopK != 0 {
		c.Search.DefaultTopK = s.DefaultTopK
	}
	if s.MaxTopK != 0 {
		c.Search.MaxTopK = s.MaxTopK
	}
	if s.WarmupLimit != 0 {
		c.Search.WarmupLimit = s.WarmupLimit
	}
	if s.CandidateFactor != 0 {
		c.Search.CandidateFactor = s.CandidateFactor
	}
	if s.WarmCache {
		c.Search.WarmCache = true
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.Prewarm {
		c.Server.Prewarm = true
	}

	if other.Telemetry.Enabled {
		c.Telemetry.Enabled = true
	}
	if other.Telemetry.DBPath != "" {
		c.Telemetry.DBPath = other.Telemetry.DBPath
	}
}

func (c *Config) applyEnvOverrides() {
	c.GitLab.Token = strings.TrimSpace(os.Getenv(TokenEnvVar))

	if v := os.Getenv("REPOSCOUT_GITLAB_URL"); v != "" {
		c.GitLab.BaseURL = v
	}
	if v := os.Getenv("REPOSCOUT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.GitLab.Timeout = d
		}
	}
	if v := os.Getenv("REPOSCOUT_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("REPOSCOUT_REPO_TTL"); v != "" {
		if d, err := parseTTL(v); err == nil {
			c.Cache.RepoTTL = d
		}
	}
	if v := os.Getenv("REPOSCOUT_DOC_TTL"); v != "" {
		if d, err := parseTTL(v); err == nil {
			c.Cache.DocTTL = d
		}
	}
	if v := os.Getenv("REPOSCOUT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Indexer.Workers = n
		}
	}
	if v := os.Getenv("REPOSCOUT_WARM_CACHE"); v != "" {
		c.Search.WarmCache = parseBool(v)
	}
	if v := os.Getenv("REPOSCOUT_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("REPOSCOUT_PREWARM"); v != "" {
		c.Server.Prewarm = parseBool(v)
	}
	if v := os.Getenv("REPOSCOUT_TELEMETRY"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
}

// parseTTL accepts a Go duration ("90m") or a bare number of seconds ("3600").
func parseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("ttl must be positive, got %d", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("ttl must be positive, got %s", d)
	}
	return d, nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.GitLab.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("gitlab.base_url must be an absolute http(s) URL, got %q", c.GitLab.BaseURL)
	}
	if c.GitLab.Timeout <= 0 {
		return fmt.Errorf("gitlab.timeout must be positive, got %s", c.GitLab.Timeout)
	}
	if c.GitLab.PageSize < 1 || c.GitLab.PageSize > 100 {
		return fmt.Errorf("gitlab.page_size must be between 1 and 100, got %d", c.GitLab.PageSize)
	}
	if c.GitLab.MaxFileSizeMB < 1 {
		return fmt.Errorf("gitlab.max_file_size_mb must be positive, got %d", c.GitLab.MaxFileSizeMB)
	}
	if c.GitLab.Retries < 0 {
		return fmt.Errorf("gitlab.retries must be non-negative, got %d", c.GitLab.Retries)
	}

	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir must not be empty")
	}
	if c.Cache.RepoTTL <= 0 || c.Cache.DocTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive, got repo=%s doc=%s", c.Cache.RepoTTL, c.Cache.DocTTL)
	}

	if c.Indexer.Workers < 1 || c.Indexer.Workers > 32 {
		return fmt.Errorf("indexer.workers must be between 1 and 32, got %d", c.Indexer.Workers)
	}

	if c.Search.MaxTopK < 1 {
		return fmt.Errorf("search.max_top_k must be positive, got %d", c.Search.MaxTopK)
	}
	if c.Search.DefaultTopK < 1 || c.Search.DefaultTopK > c.Search.MaxTopK {
		return fmt.Errorf("search.default_top_k must be between 1 and %d, got %d", c.Search.MaxTopK, c.Search.DefaultTopK)
	}
	if c.Search.CandidateFactor < 1 {
		return fmt.Errorf("search.candidate_factor must be positive, got %d", c.Search.CandidateFactor)
	}

	if strings.ToLower(c.Server.Transport) != "stdio" {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// TelemetryPath returns where query metrics are stored.
func (c *Config) TelemetryPath() string {
	if c.Telemetry.DBPath != "" {
		return c.Telemetry.DBPath
	}
	return filepath.Join(c.Cache.Dir, "telemetry.db")
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
