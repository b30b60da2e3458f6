package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres|sqlite
	URL    string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type CacheConfig struct {
	Shards           int           `yaml:"shards"`
	Horizon          time.Duration `yaml:"horizon"`
	EvictionInterval time.Duration `yaml:"eviction_interval"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type AIConfig struct {
	Provider         string            `yaml:"provider"` // openai|gemini|noop
	OpenAIKey        string            `yaml:"openai_key"`
	OpenAIBaseURL    string            `yaml:"openai_base_url"`
	GeminiKey        string            `yaml:"gemini_key"`
	GeminiURL        string            `yaml:"gemini_url"`
	DefaultModel     string            `yaml:"default_model"`
	ModelProviders   map[string]string `yaml:"model_providers"`
	ConcurrentLimit  int               `yaml:"concurrent_limit"` // max concurrent AI calls
	MaxInputTokens   int               `yaml:"max_input_tokens"`
	MaxOutputTokens  int               `yaml:"max_output_tokens"`
	SynthesisTimeout time.Duration     `yaml:"synthesis_timeout"`
}

type WebsiteConfig struct {
	RenderFallback bool          `yaml:"render_fallback"` // use headless chrome when static html yields nothing
	RenderTimeout  time.Duration `yaml:"render_timeout"`
	MaxItems       int           `yaml:"max_items"`
}

type MarketplaceConfig struct {
	MaxReviews int `yaml:"max_reviews"`
	MaxPages   int `yaml:"max_pages"`
}

type DiscussionConfig struct {
	BaseURL            string `yaml:"base_url"`
	MaxPostsPerKeyword int    `yaml:"max_posts_per_keyword"`
	MaxCommentsPerPost int    `yaml:"max_comments_per_post"`
}

type VideoConfig struct {
	BaseURL             string `yaml:"base_url"`
	APIKey              string `yaml:"api_key"`
	MaxVideosPerKeyword int    `yaml:"max_videos_per_keyword"`
	MaxCommentsPerVideo int    `yaml:"max_comments_per_video"`
}

type CollectorsConfig struct {
	UserAgent      string            `yaml:"user_agent"`
	HTTPTimeout    time.Duration     `yaml:"http_timeout"`
	CourtesyDelay  time.Duration     `yaml:"courtesy_delay"`
	RateLimitDelay time.Duration     `yaml:"rate_limit_delay"`
	MaxRetries     int               `yaml:"max_retries"`
	Languages      []string          `yaml:"languages"` // ISO 639-1 codes for item language tagging
	Website        WebsiteConfig     `yaml:"website"`
	Marketplace    MarketplaceConfig `yaml:"marketplace"`
	Discussion     DiscussionConfig  `yaml:"discussion"`
	Video          VideoConfig       `yaml:"video"`
}

type OrchestratorConfig struct {
	Workers    int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
	JobTimeout time.Duration `yaml:"job_timeout"`
}

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Cache        CacheConfig        `yaml:"cache"`
	Auth         AuthConfig         `yaml:"auth"`
	AI           AIConfig           `yaml:"ai"`
	Collectors   CollectorsConfig   `yaml:"collectors"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the yaml file at path, applies environment overrides and
// defaults, and validates the result. An empty path skips the file.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Database.URL, "DATABASE_URL")
	set(&cfg.Redis.URL, "REDIS_URL")
	set(&cfg.Redis.Password, "REDIS_PASSWORD")
	set(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	set(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	set(&cfg.Collectors.Video.APIKey, "YOUTUBE_API_KEY")
	set(&cfg.Auth.JWTSecret, "JWT_SECRET")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 15 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
		if cfg.Database.URL == "" {
			cfg.Database.Driver = "sqlite"
		}
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.URL == "" {
		cfg.Database.URL = "research.db"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL, 72*time.Hour)

	if cfg.Cache.Shards <= 0 {
		cfg.Cache.Shards = 32
	}
	cfg.Cache.Horizon = normalizeTTL(cfg.Cache.Horizon, 72*time.Hour)
	cfg.Cache.EvictionInterval = normalizeTTL(cfg.Cache.EvictionInterval, 10*time.Minute)
	cfg.Auth.TokenTTL = normalizeTTL(cfg.Auth.TokenTTL, 12*time.Hour)

	if cfg.AI.Provider == "" {
		switch {
		case cfg.AI.OpenAIKey != "":
			cfg.AI.Provider = "openai"
		case cfg.AI.GeminiKey != "":
			cfg.AI.Provider = "gemini"
		default:
			cfg.AI.Provider = "noop"
		}
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 4
	}
	if cfg.AI.MaxInputTokens <= 0 {
		cfg.AI.MaxInputTokens = 12000
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 2048
	}
	cfg.AI.SynthesisTimeout = normalizeTTL(cfg.AI.SynthesisTimeout, 2*time.Minute)

	c := &cfg.Collectors
	if c.UserAgent == "" {
		c.UserAgent = "persona-research/1.0 (+https://example.invalid/bot)"
	}
	c.HTTPTimeout = normalizeTTL(c.HTTPTimeout, 20*time.Second)
	if c.CourtesyDelay <= 0 {
		c.CourtesyDelay = 2 * time.Second
	}
	if c.RateLimitDelay <= 0 {
		c.RateLimitDelay = 60 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if len(c.Languages) == 0 {
		c.Languages = []string{"en", "es", "de", "fr"}
	}
	c.Website.RenderTimeout = normalizeTTL(c.Website.RenderTimeout, 30*time.Second)
	if c.Website.MaxItems <= 0 {
		c.Website.MaxItems = 60
	}
	if c.Marketplace.MaxReviews <= 0 {
		c.Marketplace.MaxReviews = 100
	}
	if c.Marketplace.MaxPages <= 0 {
		c.Marketplace.MaxPages = 10
	}
	if c.Discussion.BaseURL == "" {
		c.Discussion.BaseURL = "https://www.reddit.com"
	}
	if c.Discussion.MaxPostsPerKeyword <= 0 {
		c.Discussion.MaxPostsPerKeyword = 10
	}
	if c.Discussion.MaxCommentsPerPost <= 0 {
		c.Discussion.MaxCommentsPerPost = 50
	}
	if c.Video.BaseURL == "" {
		c.Video.BaseURL = "https://www.googleapis.com/youtube/v3"
	}
	if c.Video.MaxVideosPerKeyword <= 0 {
		c.Video.MaxVideosPerKeyword = 5
	}
	if c.Video.MaxCommentsPerVideo <= 0 {
		c.Video.MaxCommentsPerVideo = 100
	}

	if cfg.Orchestrator.Workers <= 0 {
		cfg.Orchestrator.Workers = 4
	}
	if cfg.Orchestrator.QueueSize <= 0 {
		cfg.Orchestrator.QueueSize = cfg.Orchestrator.Workers * 4
	}
	cfg.Orchestrator.JobTimeout = normalizeTTL(cfg.Orchestrator.JobTimeout, 15*time.Minute)
}

// Validate performs minimal validation.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres driver")
		}
	case "sqlite":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	switch c.AI.Provider {
	case "openai":
		if c.AI.OpenAIKey == "" {
			return errors.New("ai.openai_key is required for the openai provider")
		}
	case "gemini":
		if c.AI.GeminiKey == "" {
			return errors.New("ai.gemini_key is required for the gemini provider")
		}
	case "multi":
		if c.AI.OpenAIKey == "" && c.AI.GeminiKey == "" {
			return errors.New("ai.multi needs at least one provider key")
		}
	case "noop":
	default:
		return fmt.Errorf("ai.provider %q is not supported", c.AI.Provider)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log.format %q must be json or console", c.Log.Format)
	}
	return nil
}

func normalizeTTL(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
