package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "BRIEFCAST_CONFIG"
	geminiAPIKeyEnv  = "GEMINI_API_KEY"
	geminiModelEnv   = "GEMINI_MODEL"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
	serverPortEnv    = "PORT"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Feeds      []FeedConfig     `yaml:"feeds"`
	Recency    RecencyConfig    `yaml:"recency"`
	Selection  SelectionConfig  `yaml:"selection"`
	Research   ResearchConfig   `yaml:"research"`
	Generation GenerationConfig `yaml:"generation"`
	Scripts    []ScriptConfig   `yaml:"scripts"`
	Audio      AudioConfig      `yaml:"audio"`
	Telegram   TelegramConfig   `yaml:"telegram"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig describes the keep-alive HTTP endpoint.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// SchedulerConfig defines when briefing runs trigger.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	RunOnStart     bool           `yaml:"runOnStart"`
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

// PipelineConfig holds run-level policies.
type PipelineConfig struct {
	WorkDir        string `yaml:"workDir"`
	AllowEmptyScan bool   `yaml:"allowEmptyScan"`
}

// FeedConfig is one (category, feed URL) pair to scan.
type FeedConfig struct {
	Category string `yaml:"category"`
	URL      string `yaml:"url"`
}

// RecencyConfig bounds how old an entry may be to enter a run.
type RecencyConfig struct {
	WindowHours    int  `yaml:"windowHours"`
	ToleranceHours int  `yaml:"toleranceHours"`
	DropUndated    bool `yaml:"dropUndated"`
}

// Window returns the base recency cutoff.
func (r RecencyConfig) Window() time.Duration {
	return time.Duration(r.WindowHours) * time.Hour
}

// Tolerance absorbs clock skew and feeds with imprecise timestamps.
func (r RecencyConfig) Tolerance() time.Duration {
	return time.Duration(r.ToleranceHours) * time.Hour
}

// SelectionConfig is the topic-selection policy.
type SelectionConfig struct {
	TopicCount        int    `yaml:"topicCount"`
	MandatoryCategory string `yaml:"mandatoryCategory"`
	MaxPerCategory    int    `yaml:"maxPerCategory"`
	MaxHeadlines      int    `yaml:"maxHeadlines"`
}

// ResearchConfig bounds per-topic evidence gathering.
type ResearchConfig struct {
	SearchURL       string `yaml:"searchUrl"`
	Workers         int    `yaml:"workers"`
	MaxExcerpts     int    `yaml:"maxExcerpts"`
	SnippetMaxChars int    `yaml:"snippetMaxChars"`
}

// GenerationConfig defines how to contact the generation service.
type GenerationConfig struct {
	APIKey          string        `yaml:"apiKey"`
	Endpoint        string        `yaml:"endpoint"`
	Models          []string      `yaml:"models"`
	CooldownSeconds int           `yaml:"cooldownSeconds"`
	Backoff         BackoffConfig `yaml:"backoff"`
}

// BackoffConfig is the shared retry policy for rate-limited generation calls.
type BackoffConfig struct {
	MaxAttempts int `yaml:"maxAttempts"`
	BaseSeconds int `yaml:"baseSeconds"`
}

// ScriptConfig describes one narrated variant to produce per run.
type ScriptConfig struct {
	Voice         string `yaml:"voice"`
	Language      string `yaml:"language"`
	TargetMinutes int    `yaml:"targetMinutes"`
}

// AudioConfig drives synthesis and the mixing job.
type AudioConfig struct {
	TTSEndpoint string  `yaml:"ttsEndpoint"`
	FFmpegPath  string  `yaml:"ffmpegPath"`
	FFprobePath string  `yaml:"ffprobePath"`
	BedPath     string  `yaml:"bedPath"`
	BedGainDB   float64 `yaml:"bedGainDb"`
	GapSeconds  float64 `yaml:"gapSeconds"`
	FadeSeconds float64 `yaml:"fadeSeconds"`
}

// TelegramConfig wires all data required to deliver the briefing.
type TelegramConfig struct {
	BotToken             string `yaml:"botToken"`
	ChatID               string `yaml:"chatId"`
	UploadTimeoutSeconds int    `yaml:"uploadTimeoutSeconds"`
	Title                string `yaml:"title"`
	Performer            string `yaml:"performer"`
}

// Load reads YAML configuration (if present) over defaults and applies
// environment overrides. Call Validate before using the result.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate reports missing required secrets and impossible settings.
// A non-nil result is a fatal configuration error.
func (c Config) Validate() error {
	if c.Generation.APIKey == "" {
		return fmt.Errorf("generation api key is required (set %s)", geminiAPIKeyEnv)
	}
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required (set %s)", telegramTokenEnv)
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram chat id is required (set %s)", telegramChatEnv)
	}
	if len(c.Feeds) == 0 {
		return fmt.Errorf("at least one feed must be configured")
	}
	if c.Selection.TopicCount <= 0 {
		return fmt.Errorf("selection.topicCount must be positive, got %d", c.Selection.TopicCount)
	}
	if len(c.Scripts) == 0 {
		return fmt.Errorf("at least one script variant must be configured")
	}
	if c.Research.Workers <= 0 {
		return fmt.Errorf("research.workers must be positive, got %d", c.Research.Workers)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.Generation.APIKey = v
	}
	if v := os.Getenv(geminiModelEnv); v != "" {
		c.Generation.Models = append([]string{v}, c.Generation.Models...)
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv(serverPortEnv); v != "" {
		c.Server.Addr = ":" + v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Server:    ServerConfig{Addr: ":8080"},
		Scheduler: SchedulerConfig{CronExpression: "0 7 * * *", Timezone: defaultTimezone, RunOnStart: true, location: tz},
		Pipeline:  PipelineConfig{WorkDir: os.TempDir(), AllowEmptyScan: false},
		Feeds: []FeedConfig{
			{Category: "World", URL: "https://news.google.com/rss/headlines/section/topic/WORLD"},
			{Category: "Tech", URL: "https://news.google.com/rss/headlines/section/topic/TECHNOLOGY"},
			{Category: "Business", URL: "https://news.google.com/rss/headlines/section/topic/BUSINESS"},
		},
		Recency:   RecencyConfig{WindowHours: 24, ToleranceHours: 2, DropUndated: false},
		Selection: SelectionConfig{TopicCount: 5, MandatoryCategory: "", MaxPerCategory: 15, MaxHeadlines: 40},
		Research: ResearchConfig{
			SearchURL:       "https://news.google.com/rss/search?q=%s",
			Workers:         4,
			MaxExcerpts:     3,
			SnippetMaxChars: 400,
		},
		Generation: GenerationConfig{
			Endpoint:        "https://generativelanguage.googleapis.com/v1beta",
			Models:          []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-1.5-pro"},
			CooldownSeconds: 20,
			Backoff:         BackoffConfig{MaxAttempts: 3, BaseSeconds: 20},
		},
		Scripts: []ScriptConfig{
			{Voice: "sara", Language: "en", TargetMinutes: 3},
		},
		Audio: AudioConfig{
			TTSEndpoint: "https://translate.google.com/translate_tts",
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			BedGainDB:   -14,
			GapSeconds:  0.6,
			FadeSeconds: 1,
		},
		Telegram: TelegramConfig{
			UploadTimeoutSeconds: 120,
			Title:                "Daily Briefing",
			Performer:            "Briefcast",
		},
	}
}
