// Package config builds the immutable process configuration from a .env
// file, an optional YAML settings file and the environment, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
)

const (
	DefaultLedgerPath     = "history.db"
	DefaultGeminiModel    = "gemini-2.0-flash"
	DefaultLikeQuery      = "#python -is:retweet lang:en"
	DefaultQuoteQuery     = "#automation -is:retweet lang:en"
	DefaultMentionLimit   = 5
	DefaultLikeLimit      = 3
	DefaultQuoteLimit     = 1
	DefaultTextLimit      = 280
	DefaultPacingDelay    = 2 * time.Second
	DefaultPostInterval   = 3 * time.Hour
	DefaultPostChance     = 0.25
	DefaultMaxDelay       = 10 * time.Minute
	DefaultReconcileLimit = 50

	DefaultMoodPrompt = `Write a tweet as a well-read, emotionally aware person who finds comfort in the absurd.
Keep it to one or two sentences: personal, layered, dry when funny and stylish when sad.
Let films, lyrics and books shape the tone without naming them. Do not use hashtags.

Mood: {mood}`
	DefaultReplyPrompt = "{text}"
	DefaultQuotePrompt = "{text}"
)

// TwitterCredentials holds the platform credential set. Writes need the
// OAuth 1.0a quadruple; the bearer token is optional and used for reads.
type TwitterCredentials struct {
	BearerToken  string
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

// HasUserContext reports whether the OAuth 1.0a quadruple is complete.
func (c TwitterCredentials) HasUserContext() bool {
	return c.APIKey != "" && c.APISecret != "" && c.AccessToken != "" && c.AccessSecret != ""
}

// Config is built once in main and passed by value into every constructor.
type Config struct {
	GeminiAPIKey string
	GeminiModels []string

	Twitter TwitterCredentials

	LedgerPath  string
	DatabaseURL string

	LikeQuery    string
	QuoteQuery   string
	MentionLimit int
	LikeLimit    int
	QuoteLimit   int

	TextLimit   int
	PacingDelay time.Duration

	PostInterval time.Duration
	PostChance   float64
	MaxDelay     time.Duration

	Moods       []domain.Mood
	MoodPrompt  string
	ReplyPrompt string
	QuotePrompt string

	// Dedupe turns ledger filtering on or off for quote and like. Post and
	// reply always record.
	Dedupe map[domain.WorkflowKind]bool

	ReconcileLimit int

	TelegramToken  string
	TelegramChatID string

	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// fileConfig is the YAML settings file. Secrets are not read from it.
type fileConfig struct {
	GeminiModels   []string        `yaml:"gemini_models"`
	LedgerPath     string          `yaml:"ledger_path"`
	LikeQuery      string          `yaml:"like_query"`
	QuoteQuery     string          `yaml:"quote_query"`
	MentionLimit   int             `yaml:"mention_limit"`
	LikeLimit      int             `yaml:"like_limit"`
	QuoteLimit     int             `yaml:"quote_limit"`
	TextLimit      int             `yaml:"text_limit"`
	PacingDelay    string          `yaml:"pacing_delay"`
	PostInterval   string          `yaml:"post_interval"`
	PostChance     *float64        `yaml:"post_chance"`
	MaxDelay       string          `yaml:"max_delay"`
	Moods          []string        `yaml:"moods"`
	MoodPrompt     string          `yaml:"mood_prompt"`
	ReplyPrompt    string          `yaml:"reply_prompt"`
	QuotePrompt    string          `yaml:"quote_prompt"`
	Dedupe         map[string]bool `yaml:"dedupe"`
	ReconcileLimit int             `yaml:"reconcile_limit"`
	LogLevel       string          `yaml:"log_level"`
	LogFormat      string          `yaml:"log_format"`
	MetricsAddr    string          `yaml:"metrics_addr"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		GeminiModels:   []string{DefaultGeminiModel},
		LedgerPath:     DefaultLedgerPath,
		LikeQuery:      DefaultLikeQuery,
		QuoteQuery:     DefaultQuoteQuery,
		MentionLimit:   DefaultMentionLimit,
		LikeLimit:      DefaultLikeLimit,
		QuoteLimit:     DefaultQuoteLimit,
		TextLimit:      DefaultTextLimit,
		PacingDelay:    DefaultPacingDelay,
		PostInterval:   DefaultPostInterval,
		PostChance:     DefaultPostChance,
		MaxDelay:       DefaultMaxDelay,
		Moods:          append([]domain.Mood(nil), domain.DefaultMoods...),
		MoodPrompt:     DefaultMoodPrompt,
		ReplyPrompt:    DefaultReplyPrompt,
		QuotePrompt:    DefaultQuotePrompt,
		Dedupe:         map[domain.WorkflowKind]bool{domain.KindQuote: false, domain.KindLike: false},
		ReconcileLimit: DefaultReconcileLimit,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load reads envFiles (missing files are ignored), then the YAML file at
// path if non-empty, then the process environment.
func Load(path string, envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: load %s: %v", domain.ErrConfig, f, err)
		}
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("BOT_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %v", domain.ErrConfig, path, err)
		}
		if err := cfg.applyYAML(data); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyYAML(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("%w: parse settings: %v", domain.ErrConfig, err)
	}

	if len(fc.GeminiModels) > 0 {
		c.GeminiModels = fc.GeminiModels
	}
	setString(&c.LedgerPath, fc.LedgerPath)
	setString(&c.LikeQuery, fc.LikeQuery)
	setString(&c.QuoteQuery, fc.QuoteQuery)
	setInt(&c.MentionLimit, fc.MentionLimit)
	setInt(&c.LikeLimit, fc.LikeLimit)
	setInt(&c.QuoteLimit, fc.QuoteLimit)
	setInt(&c.TextLimit, fc.TextLimit)
	setInt(&c.ReconcileLimit, fc.ReconcileLimit)
	setString(&c.MoodPrompt, fc.MoodPrompt)
	setString(&c.ReplyPrompt, fc.ReplyPrompt)
	setString(&c.QuotePrompt, fc.QuotePrompt)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
	setString(&c.MetricsAddr, fc.MetricsAddr)
	if fc.PostChance != nil {
		c.PostChance = *fc.PostChance
	}

	for _, f := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"pacing_delay", fc.PacingDelay, &c.PacingDelay},
		{"post_interval", fc.PostInterval, &c.PostInterval},
		{"max_delay", fc.MaxDelay, &c.MaxDelay},
	} {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrConfig, f.name, err)
		}
		*f.dst = d
	}

	if len(fc.Moods) > 0 {
		c.Moods = parseMoods(fc.Moods)
	}
	for k, v := range fc.Dedupe {
		kind := domain.WorkflowKind(k)
		switch kind {
		case domain.KindQuote, domain.KindLike:
			c.Dedupe[kind] = v
		case domain.KindPost, domain.KindReply:
			return fmt.Errorf("%w: dedupe: %s always deduplicates and cannot be configured", domain.ErrConfig, k)
		default:
			return fmt.Errorf("%w: dedupe: unknown workflow %q", domain.ErrConfig, k)
		}
	}
	return c.validateRanges()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	c.GeminiAPIKey = get("GEMINI_API_KEY")
	if v := get("GEMINI_MODELS"); v != "" {
		c.GeminiModels = splitList(v)
	}
	c.Twitter = TwitterCredentials{
		BearerToken:  get("TWITTER_BEARER_TOKEN"),
		APIKey:       get("TWITTER_API_KEY"),
		APISecret:    get("TWITTER_API_SECRET"),
		AccessToken:  get("TWITTER_ACCESS_TOKEN"),
		AccessSecret: get("TWITTER_ACCESS_SECRET"),
	}
	setString(&c.LedgerPath, get("LEDGER_PATH"))
	setString(&c.DatabaseURL, get("DATABASE_URL"))
	setString(&c.LikeQuery, get("LIKE_QUERY"))
	setString(&c.QuoteQuery, get("QUOTE_QUERY"))
	setString(&c.TelegramToken, get("TELEGRAM_BOT_TOKEN"))
	setString(&c.TelegramChatID, get("TELEGRAM_CHAT_ID"))
	setString(&c.LogLevel, get("LOG_LEVEL"))
	setString(&c.LogFormat, get("LOG_FORMAT"))
	setString(&c.MetricsAddr, get("METRICS_ADDR"))

	if v := get("TEXT_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: TEXT_LIMIT: %v", domain.ErrConfig, err)
		}
		c.TextLimit = n
	}
	for key, dst := range map[string]*time.Duration{
		"PACING_DELAY":  &c.PacingDelay,
		"POST_INTERVAL": &c.PostInterval,
	} {
		if v := get(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", domain.ErrConfig, key, err)
			}
			*dst = d
		}
	}
	return c.validateRanges()
}

func (c *Config) validateRanges() error {
	switch {
	case c.TextLimit < 4:
		return fmt.Errorf("%w: text limit must be at least 4, got %d", domain.ErrConfig, c.TextLimit)
	case c.PostInterval <= 0:
		return fmt.Errorf("%w: post interval must be positive", domain.ErrConfig)
	case c.PacingDelay < 0:
		return fmt.Errorf("%w: pacing delay must not be negative", domain.ErrConfig)
	case c.PostChance < 0 || c.PostChance > 1:
		return fmt.Errorf("%w: post chance must be within [0,1], got %v", domain.ErrConfig, c.PostChance)
	}
	return nil
}

// Requirements says which credential groups a command needs.
type Requirements struct {
	Generator bool
	Social    bool
}

// Validate enumerates every missing credential for req in one error.
func (c Config) Validate(req Requirements) error {
	var missing []string
	if req.Generator && c.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if req.Social {
		for _, kv := range []struct{ key, val string }{
			{"TWITTER_API_KEY", c.Twitter.APIKey},
			{"TWITTER_API_SECRET", c.Twitter.APISecret},
			{"TWITTER_ACCESS_TOKEN", c.Twitter.AccessToken},
			{"TWITTER_ACCESS_SECRET", c.Twitter.AccessSecret},
		} {
			if kv.val == "" {
				missing = append(missing, kv.key)
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required credentials: %s", domain.ErrConfig, strings.Join(missing, ", "))
	}
	return nil
}

// DedupeEnabled reports the ledger policy for kind.
func (c Config) DedupeEnabled(kind domain.WorkflowKind) bool {
	switch kind {
	case domain.KindPost, domain.KindReply:
		return true
	}
	return c.Dedupe[kind]
}

func parseMoods(raw []string) []domain.Mood {
	moods := make([]domain.Mood, 0, len(raw))
	for _, m := range raw {
		if m = strings.TrimSpace(m); m != "" {
			moods = append(moods, domain.Mood(m))
		}
	}
	return moods
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
