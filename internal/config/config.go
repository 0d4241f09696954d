package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	triageErrors "github.com/harunnryd/triage/internal/errors"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	LogLevel string        `koanf:"log_level" yaml:"log_level"`
	Slack    SlackConfig   `koanf:"slack" yaml:"slack"`
	Tracker  TrackerConfig `koanf:"tracker" yaml:"tracker"`
	AI       AIConfig      `koanf:"ai" yaml:"ai"`
	Store    StoreConfig   `koanf:"store" yaml:"store"`
	Sync     SyncConfig    `koanf:"sync" yaml:"sync"`
}

type SlackConfig struct {
	Token            string       `koanf:"token" yaml:"token"`
	APIURL           string       `koanf:"api_url" yaml:"api_url"`
	PageDelay        string       `koanf:"page_delay" yaml:"page_delay"`
	MaxPages         int          `koanf:"max_pages" yaml:"max_pages"`
	MaxItems         int          `koanf:"max_items" yaml:"max_items"`
	PageSize         int          `koanf:"page_size" yaml:"page_size"`
	Search           SearchConfig `koanf:"search" yaml:"search"`
	DocumentDomains  []string     `koanf:"document_domains" yaml:"document_domains"`
	DocumentServices []string     `koanf:"document_services" yaml:"document_services"`
}

type SearchConfig struct {
	Query            string `koanf:"query" yaml:"query"`
	PageSize         int    `koanf:"page_size" yaml:"page_size"`
	MaxPages         int    `koanf:"max_pages" yaml:"max_pages"`
	SystemAuthor     string `koanf:"system_author" yaml:"system_author"`
	ExcludeSelf      bool   `koanf:"exclude_self" yaml:"exclude_self"`
	FileLookup       bool   `koanf:"file_lookup" yaml:"file_lookup"`
	MinFetchInterval string `koanf:"min_fetch_interval" yaml:"min_fetch_interval"`
}

type TrackerConfig struct {
	Token     string `koanf:"token" yaml:"token"`
	Workspace string `koanf:"workspace" yaml:"workspace"`
	BaseURL   string `koanf:"base_url" yaml:"base_url"`
	Timeout   string `koanf:"timeout" yaml:"timeout"`
}

type AIConfig struct {
	Candidates []ModelCandidate `koanf:"candidates" yaml:"candidates"`
}

type ModelCandidate struct {
	Name     string `koanf:"name" yaml:"name"`
	Provider string `koanf:"provider" yaml:"provider"`
	BaseURL  string `koanf:"base_url" yaml:"base_url"`
	APIKey   string `koanf:"api_key" yaml:"api_key"`
}

type StoreConfig struct {
	Path         string `koanf:"path" yaml:"path"`
	LockTimeout  string `koanf:"lock_timeout" yaml:"lock_timeout"`
	LockRetry    string `koanf:"lock_retry" yaml:"lock_retry"`
	ArchivedList string `koanf:"archived_list" yaml:"archived_list"`
	BlockedList  string `koanf:"blocked_list" yaml:"blocked_list"`
}

type SyncConfig struct {
	Lookback string `koanf:"lookback" yaml:"lookback"`
	Schedule string `koanf:"schedule" yaml:"schedule"`
}

const (
	DefaultLogLevel               = "info"
	DefaultSlackPageDelay         = "250ms"
	DefaultSlackMaxPages          = 10
	DefaultSlackMaxItems          = 1000
	DefaultSlackPageSize          = 200
	DefaultSearchQuery            = "to:me"
	DefaultSearchPageSize         = 100
	DefaultSearchMaxPages         = 10
	DefaultSearchSystemAuthor     = "asana"
	DefaultSearchExcludeSelf      = true
	DefaultSearchFileLookup       = true
	DefaultSearchMinFetchInterval = "30s"
	DefaultTrackerBaseURL         = "https://app.asana.com/api/1.0"
	DefaultTrackerTimeout         = "15s"
	DefaultGeminiModelPrimary     = "gemini-2.5-flash"
	DefaultGeminiModelSecondary   = "gemini-2.0-flash"
	DefaultGeminiModelTertiary    = "gemini-1.5-flash"
	DefaultOpenAIBaseURL          = "https://api.openai.com/v1"
	DefaultOllamaBaseURL          = "http://localhost:11434/v1"
	DefaultOllamaAPIKey           = "ollama"
	DefaultStoreLockTimeout       = "5s"
	DefaultStoreLockRetry         = "50ms"
	DefaultStoreArchivedList      = "archived"
	DefaultStoreBlockedList       = "blocked"
	DefaultSyncLookback           = "72h"
	DefaultSyncSchedule           = "@every 5m"
)

// DefaultDocumentDomains are hosts treated as external documents.
var DefaultDocumentDomains = []string{
	"docs.google.com",
	"drive.google.com",
	"notion.so",
	"www.notion.so",
	"dropbox.com",
	"www.dropbox.com",
	"atlassian.net",
}

// DefaultDocumentServices are integration names whose posts are third-party documents.
var DefaultDocumentServices = []string{
	"Google Drive",
	"Google Docs",
	"Notion",
	"Dropbox",
	"Confluence",
}

func Load(cmd *cobra.Command) (*Config, error) {
	// Optional .env, never overrides variables already set
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"log_level":                       DefaultLogLevel,
		"slack.page_delay":                DefaultSlackPageDelay,
		"slack.max_pages":                 DefaultSlackMaxPages,
		"slack.max_items":                 DefaultSlackMaxItems,
		"slack.page_size":                 DefaultSlackPageSize,
		"slack.document_domains":          DefaultDocumentDomains,
		"slack.document_services":         DefaultDocumentServices,
		"slack.search.query":              DefaultSearchQuery,
		"slack.search.page_size":          DefaultSearchPageSize,
		"slack.search.max_pages":          DefaultSearchMaxPages,
		"slack.search.system_author":      DefaultSearchSystemAuthor,
		"slack.search.exclude_self":       DefaultSearchExcludeSelf,
		"slack.search.file_lookup":        DefaultSearchFileLookup,
		"slack.search.min_fetch_interval": DefaultSearchMinFetchInterval,
		"tracker.base_url":                DefaultTrackerBaseURL,
		"tracker.timeout":                 DefaultTrackerTimeout,
		"ai.candidates": []ModelCandidate{
			{Name: DefaultGeminiModelPrimary, Provider: "gemini"},
			{Name: DefaultGeminiModelSecondary, Provider: "gemini"},
			{Name: DefaultGeminiModelTertiary, Provider: "gemini"},
		},
		"store.path":          filepath.Join(homeDir(), ".triage", "lists.json"),
		"store.lock_timeout":  DefaultStoreLockTimeout,
		"store.lock_retry":    DefaultStoreLockRetry,
		"store.archived_list": DefaultStoreArchivedList,
		"store.blocked_list":  DefaultStoreBlockedList,
		"sync.lookback":       DefaultSyncLookback,
		"sync.schedule":       DefaultSyncSchedule,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		globalPath := filepath.Join(homeDir(), ".triage", "config.yaml")
		if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
			slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
		}
	}

	// Environment Variables
	k.Load(env.Provider("TRIAGE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "TRIAGE_")), "__", ".", -1)
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i, m := range cfg.AI.Candidates {
		if m.Provider == "" {
			cfg.AI.Candidates[i].Provider = "gemini"
		}
	}

	path, err := ExpandPath(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	cfg.Store.Path = path

	// Post-Process: Inject standard Env Vars if missing
	if cfg.Slack.Token == "" {
		cfg.Slack.Token = os.Getenv("SLACK_TOKEN")
	}
	if cfg.Tracker.Token == "" {
		cfg.Tracker.Token = os.Getenv("ASANA_TOKEN")
	}
	injectKey(cfg.AI.Candidates, "gemini", os.Getenv("GEMINI_API_KEY"))
	injectKey(cfg.AI.Candidates, "openai", os.Getenv("OPENAI_API_KEY"))
	injectKey(cfg.AI.Candidates, "anthropic", os.Getenv("ANTHROPIC_API_KEY"))

	return &cfg, nil
}

// Validate reports configuration that must stop the process before any
// provider call is made.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Slack.Token) == "" {
		return triageErrors.Configuration("slack token is required (set SLACK_TOKEN or slack.token)")
	}
	if c.Slack.MaxPages <= 0 || c.Slack.MaxItems <= 0 {
		return triageErrors.Configuration("slack.max_pages and slack.max_items must be positive")
	}
	if c.Slack.MaxPages > DefaultSlackMaxPages || c.Slack.MaxItems > DefaultSlackMaxItems {
		return triageErrors.Configuration(fmt.Sprintf("slack.max_pages must be at most %d and slack.max_items at most %d",
			DefaultSlackMaxPages, DefaultSlackMaxItems))
	}
	if c.Slack.Search.MaxPages <= 0 || c.Slack.Search.PageSize <= 0 {
		return triageErrors.Configuration("slack.search.max_pages and slack.search.page_size must be positive")
	}
	if c.Slack.Search.MaxPages > DefaultSearchMaxPages {
		return triageErrors.Configuration(fmt.Sprintf("slack.search.max_pages must be at most %d", DefaultSearchMaxPages))
	}
	return nil
}

func injectKey(candidates []ModelCandidate, provider, key string) {
	if key == "" {
		return
	}
	for i, m := range candidates {
		if m.Provider == provider && m.APIKey == "" {
			candidates[i].APIKey = key
		}
	}
}
