package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"

	deepseekAPIKeyEnv = "DEEPSEEK_API_KEY"
	openaiAPIKeyEnv   = "OPENAI_API_KEY"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	serverChanKeyEnv  = "SERVERCHAN_KEY"
	dataDirEnv        = "PAPERDIGEST_DATA_DIR"
	siteBaseURLEnv    = "PAPERDIGEST_SITE_URL"
	githubRepoEnv     = "GITHUB_REPOSITORY"
)

// Config holds high-level settings required across the application.
type Config struct {
	Storage       StorageConfig      `yaml:"storage"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Selection     SelectionConfig    `yaml:"selection"`
	Oracle        OracleConfig       `yaml:"oracle"`
	Pages         PagesConfig        `yaml:"pages"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sources       []SourceConfig     `yaml:"sources"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// StorageConfig locates the on-disk state: ledger, score cache, snapshots.
type StorageConfig struct {
	DataDir string `yaml:"dataDir"`
}

// SchedulerConfig defines when the daily run executes.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// SelectionConfig bounds what a single run may fetch and publish.
type SelectionConfig struct {
	Quota      int `yaml:"quota"`
	WindowDays int `yaml:"windowDays"`
	MaxResults int `yaml:"maxResults"`
}

// OracleConfig defines how to contact the scoring and summary LLM endpoint.
type OracleConfig struct {
	BaseURL        string `yaml:"baseUrl"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"apiKey"`
	Profile        string `yaml:"profile"`
	Language       string `yaml:"language"`
	Workers        int    `yaml:"workers"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	CallDelayMS    int    `yaml:"callDelayMs"`
}

// Timeout bounds a single oracle call.
func (o OracleConfig) Timeout() time.Duration {
	if o.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// CallDelay spaces consecutive summary calls.
func (o OracleConfig) CallDelay() time.Duration {
	if o.CallDelayMS <= 0 {
		return 0
	}
	return time.Duration(o.CallDelayMS) * time.Millisecond
}

// PagesConfig drives the static site renderer.
type PagesConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	BaseURL     string `yaml:"baseUrl"`
	OutputDir   string `yaml:"outputDir"`
}

// SiteURL returns the configured base URL, deriving a GitHub Pages URL from
// GITHUB_REPOSITORY when unset. Empty means the site has no public address.
func (p PagesConfig) SiteURL() string {
	if p.BaseURL != "" {
		return p.BaseURL
	}
	repo := os.Getenv(githubRepoEnv)
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.github.io/%s/", owner, name)
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	ServerChan ServerChanConfig `yaml:"serverchan"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// ServerChanConfig carries the WeChat push key.
type ServerChanConfig struct {
	Key string `yaml:"key"`
}

// SourceConfig describes a single document source with its scanner strategy.
type SourceConfig struct {
	Name    string            `yaml:"name"`
	Scanner string            `yaml:"scanner"`
	Query   string            `yaml:"query"`
	Feeds   []FeedConfig      `yaml:"feeds"`
	Options map[string]string `yaml:"options"`
}

// FeedConfig holds one concrete endpoint to poll (feed URL, listing URL).
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads YAML configuration over built-in defaults, applies environment
// overrides, and validates the result. A missing file runs on defaults.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Selection.Quota <= 0 {
		return fmt.Errorf("config: selection quota must be positive, got %d", c.Selection.Quota)
	}
	if c.Selection.WindowDays <= 0 {
		return fmt.Errorf("config: recency window must be positive, got %d", c.Selection.WindowDays)
	}
	if c.Selection.MaxResults <= 0 {
		return fmt.Errorf("config: max results must be positive, got %d", c.Selection.MaxResults)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("config: storage data dir is required")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("config: at least one source is required")
	}
	for i, src := range c.Sources {
		if src.Name == "" || src.Scanner == "" {
			return fmt.Errorf("config: source %d needs a name and a scanner", i)
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(deepseekAPIKeyEnv); v != "" {
		c.Oracle.APIKey = v
	}
	if c.Oracle.APIKey == "" {
		c.Oracle.APIKey = os.Getenv(openaiAPIKeyEnv)
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv(serverChanKeyEnv); v != "" {
		c.Notifications.ServerChan.Key = v
	}

	if v := os.Getenv(dataDirEnv); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv(siteBaseURLEnv); v != "" {
		c.Pages.BaseURL = v
	}
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("config: unknown timezone %s: %w", tz, err)
	}
	c.Scheduler.Timezone = tz
	c.Scheduler.location = loc
	return nil
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Storage:   StorageConfig{DataDir: "data"},
		Scheduler: SchedulerConfig{CronExpression: "0 7 * * *", Timezone: defaultTimezone, location: tz},
		Selection: SelectionConfig{Quota: 5, WindowDays: 30, MaxResults: 300},
		Oracle: OracleConfig{
			BaseURL:        "https://api.deepseek.com",
			Model:          "deepseek-chat",
			Profile:        "new tools, methods, and systems in machine learning",
			Language:       "English",
			Workers:        4,
			TimeoutSeconds: 60,
			CallDelayMS:    500,
		},
		Pages: PagesConfig{
			Title:       "Paper Digest",
			Description: "A daily selection of newly published research",
			OutputDir:   "public",
		},
		Sources: []SourceConfig{
			{
				Name:    "pubmed",
				Scanner: "entrez",
				Query:   "machine learning",
			},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
